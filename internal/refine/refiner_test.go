package refine_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/goleak"

	"reelsmith/internal/config"
	"reelsmith/internal/logging"
	"reelsmith/internal/refine"
	"reelsmith/internal/services"
	"reelsmith/internal/services/llm"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))
}

type staticKeys map[string]string

func (k staticKeys) Get(_ context.Context, userID, provider string) (string, error) {
	if key, ok := k[userID+"/"+provider]; ok {
		return key, nil
	}
	return k["/"+provider], nil
}

type chatRequest struct {
	Model    string `json:"model"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
	Temperature float64 `json:"temperature"`
}

func newOpenRouter(t *testing.T, reply string) (*httptest.Server, <-chan chatRequest, <-chan string) {
	t.Helper()
	requests := make(chan chatRequest, 1)
	auths := make(chan string, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		requests <- req
		auths <- r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []any{map[string]any{"message": map[string]any{"content": reply}}},
		})
	}))
	t.Cleanup(server.Close)
	return server, requests, auths
}

func openRouterConfig(url string) *config.Config {
	cfg := config.Default()
	cfg.Refiner.Provider = refine.ProviderOpenRouter
	cfg.Refiner.BaseURL = url
	cfg.Refiner.Model = "test/model"
	return &cfg
}

func TestRefineOpenRouterUsesUserKey(t *testing.T) {
	server, requests, auths := newOpenRouter(t, "  A barista in soft morning light holding the Aurora Mug.  ")
	keys := staticKeys{"/openrouter": "sk-config", "user-1/openrouter": "sk-user"}
	refiner := refine.New(openRouterConfig(server.URL), keys, logging.NewNop())

	result, err := refiner.Refine(context.Background(), "user-1", refine.Request{Prompt: "barista with mug", Kind: refine.KindImage})
	if err != nil {
		t.Fatalf("Refine: %v", err)
	}
	if result.RefinedPrompt != "A barista in soft morning light holding the Aurora Mug." {
		t.Fatalf("unexpected prompt %q", result.RefinedPrompt)
	}
	if result.Provider != refine.ProviderOpenRouter || result.Model != "test/model" {
		t.Fatalf("unexpected result metadata %+v", result)
	}

	req := <-requests
	if got := <-auths; got != "Bearer sk-user" {
		t.Fatalf("expected user key, got %q", got)
	}
	if len(req.Messages) != 2 || req.Messages[0].Content != refine.SystemPrompt(refine.KindImage) {
		t.Fatalf("unexpected messages %+v", req.Messages)
	}
	if req.Messages[1].Content != "User prompt: barista with mug" {
		t.Fatalf("unexpected user message %q", req.Messages[1].Content)
	}
	if req.Temperature != 0.7 {
		t.Fatalf("unexpected temperature %v", req.Temperature)
	}
}

func TestRefineRequestModelOverridesConfig(t *testing.T) {
	server, requests, _ := newOpenRouter(t, "Slow dolly-in on the mug.")
	refiner := refine.New(openRouterConfig(server.URL), staticKeys{"/openrouter": "sk"}, logging.NewNop())

	result, err := refiner.Refine(context.Background(), "user-1", refine.Request{Prompt: "mug", Kind: refine.KindVideo, Model: "other/model"})
	if err != nil {
		t.Fatalf("Refine: %v", err)
	}
	req := <-requests
	if req.Model != "other/model" || result.Model != "other/model" {
		t.Fatalf("model override ignored: request %q result %q", req.Model, result.Model)
	}
	if req.Messages[0].Content != refine.SystemPrompt(refine.KindVideo) {
		t.Fatal("expected video system prompt")
	}
}

func TestRefineGemini(t *testing.T) {
	paths := make(chan string, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths <- r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"candidates":[{"content":{"role":"model","parts":[{"text":"Grab your Aurora Mug today!"}]}}]}`)
	}))
	t.Cleanup(server.Close)

	cfg := config.Default()
	cfg.Refiner.GeminiModel = "gemini-test"
	refiner := refine.New(&cfg, staticKeys{"/google": "g-key"}, logging.NewNop(), refine.WithGeminiBaseURL(server.URL))

	result, err := refiner.Refine(context.Background(), "user-1", refine.Request{Prompt: "sell the mug", Kind: refine.KindNarration, Provider: "Google"})
	if err != nil {
		t.Fatalf("Refine: %v", err)
	}
	if result.RefinedPrompt != "Grab your Aurora Mug today!" || result.Provider != refine.ProviderGoogle || result.Model != "gemini-test" {
		t.Fatalf("unexpected result %+v", result)
	}
	if path := <-paths; !strings.Contains(path, "gemini-test:generateContent") {
		t.Fatalf("unexpected path %q", path)
	}
}

func TestRefineValidation(t *testing.T) {
	refiner := refine.New(nil, staticKeys{}, logging.NewNop())
	tests := []struct {
		name string
		req  refine.Request
		want error
		msg  string
	}{
		{name: "empty prompt", req: refine.Request{Prompt: "  "}, want: services.ErrValidation, msg: "prompt is required"},
		{name: "bad kind", req: refine.Request{Prompt: "x", Kind: "podcast"}, want: services.ErrValidation},
		{name: "bad provider", req: refine.Request{Prompt: "x", Provider: "openai"}, want: services.ErrValidation},
		{name: "missing key", req: refine.Request{Prompt: "x", Provider: "google"}, want: services.ErrConfiguration, msg: "Google API key not configured"},
		{name: "missing default key", req: refine.Request{Prompt: "x"}, want: services.ErrConfiguration, msg: "OpenRouter API key not configured"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := refiner.Refine(context.Background(), "user-1", tc.req)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if tc.msg != "" && services.Details(err).Message != tc.msg {
				t.Fatalf("unexpected message %q", services.Details(err).Message)
			}
		})
	}
}

func TestRefineProviderFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"boom"}}`, http.StatusInternalServerError)
	}))
	t.Cleanup(server.Close)

	refiner := refine.New(openRouterConfig(server.URL), staticKeys{"/openrouter": "sk"}, logging.NewNop(),
		refine.WithLLMOptions(llm.WithRetryMaxAttempts(1), llm.WithSleeper(func(time.Duration) {})))
	_, err := refiner.Refine(context.Background(), "user-1", refine.Request{Prompt: "mug"})
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
}

func TestParseKind(t *testing.T) {
	for input, want := range map[string]refine.Kind{"": refine.KindImage, "VIDEO": refine.KindVideo, " narration ": refine.KindNarration} {
		got, err := refine.ParseKind(input)
		if err != nil || got != want {
			t.Fatalf("ParseKind(%q) = %q, %v", input, got, err)
		}
	}
}
