package replicate_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"reelsmith/internal/services"
	"reelsmith/internal/services/replicate"
	"reelsmith/internal/services/retry"
	"reelsmith/internal/storage"
)

type fakePredictions struct {
	server   *httptest.Server
	polls    atomic.Int32
	mu       sync.Mutex
	created  map[string]any
	path     string
	auth     string
	final    string
	output   any
	errorMsg string
	pending  int32
}

func newFakePredictions(t *testing.T, output any, opts ...func(*fakePredictions)) *fakePredictions {
	t.Helper()
	f := &fakePredictions{final: replicate.StatusSucceeded, output: output, pending: 1}
	for _, opt := range opts {
		opt(f)
	}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.path = r.URL.Path
		f.auth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&f.created); err != nil {
			t.Errorf("decode create body: %v", err)
		}
		writeJSON(w, map[string]any{"id": "pred-1", "status": replicate.StatusStarting})
	})
	mux.HandleFunc("GET /v1/predictions/pred-1", func(w http.ResponseWriter, r *http.Request) {
		n := f.polls.Add(1)
		if n <= f.pending {
			writeJSON(w, map[string]any{"id": "pred-1", "status": replicate.StatusProcessing})
			return
		}
		output := f.output
		if output == nil && f.final == replicate.StatusSucceeded {
			output = []string{"http://" + r.Host + "/files/out.png"}
		}
		payload := map[string]any{"id": "pred-1", "status": f.final, "output": output}
		if f.errorMsg != "" {
			payload["error"] = f.errorMsg
		}
		writeJSON(w, payload)
	})
	mux.HandleFunc("GET /files/out.png", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("png-bytes"))
	})
	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakePredictions) request() (string, string, map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.path, f.auth, f.created
}

func (f *fakePredictions) input() map[string]any {
	_, _, created := f.request()
	input, _ := created["input"].(map[string]any)
	return input
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func newClient(t *testing.T, f *fakePredictions, assets replicate.AssetStore) *replicate.Client {
	t.Helper()
	policy := retry.Policy{Attempts: 3, BaseDelay: time.Millisecond, Sleeper: func(time.Duration) {}}
	return replicate.NewClient(
		replicate.Config{BaseURL: f.server.URL + "/v1", PollInterval: 0, Timeout: 5 * time.Second},
		assets,
		replicate.WithRetryPolicy(policy),
	)
}

func TestGenerateImageStoresOutput(t *testing.T) {
	f := newFakePredictions(t, nil)
	assets, err := storage.NewLocal(t.TempDir(), "http://127.0.0.1:7490", nil)
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}
	client := newClient(t, f, assets)

	result, err := client.GenerateImage(context.Background(), "r8-key", replicate.ImageParams{Prompt: "Nova holding a mug"})
	if err != nil {
		t.Fatalf("GenerateImage: %v", err)
	}
	path, auth, _ := f.request()
	if path != "/v1/models/black-forest-labs/flux-schnell/predictions" {
		t.Fatalf("unexpected create path %q", path)
	}
	if auth != "Bearer r8-key" {
		t.Fatalf("unexpected auth header %q", auth)
	}
	input := f.input()
	if input["prompt"] != "Nova holding a mug" || input["aspect_ratio"] != "1:1" {
		t.Fatalf("unexpected input %#v", input)
	}
	if result.PredictionID != "pred-1" {
		t.Fatalf("prediction id = %q", result.PredictionID)
	}
	if !strings.HasPrefix(result.PublicID, "images/") {
		t.Fatalf("public id = %q", result.PublicID)
	}
	if !strings.HasPrefix(result.OutputURL, "http://127.0.0.1:7490/assets/images/") || !strings.HasSuffix(result.OutputURL, ".png") {
		t.Fatalf("output url = %q", result.OutputURL)
	}
	if f.polls.Load() < 2 {
		t.Fatalf("expected polling until terminal, got %d polls", f.polls.Load())
	}
}

func TestGenerateVideoUsesFirstFrameForMinimax(t *testing.T) {
	f := newFakePredictions(t, "https://delivery.example/v.mp4")
	client := newClient(t, f, nil)

	result, err := client.GenerateVideo(context.Background(), "key", replicate.VideoParams{
		Prompt:         "Nova presenting",
		SourceImageURL: "https://assets.example/nova.png",
	})
	if err != nil {
		t.Fatalf("GenerateVideo: %v", err)
	}
	input := f.input()
	if input["first_frame_image"] != "https://assets.example/nova.png" {
		t.Fatalf("expected first_frame_image input, got %#v", input)
	}
	if input["duration"] != float64(5) {
		t.Fatalf("duration = %v", input["duration"])
	}
	if result.OutputURL != "https://delivery.example/v.mp4" {
		t.Fatalf("output url = %q", result.OutputURL)
	}
}

func TestGenerateLipSyncMapsModelInputs(t *testing.T) {
	f := newFakePredictions(t, "https://delivery.example/talk.mp4")
	client := newClient(t, f, nil)

	_, err := client.GenerateLipSync(context.Background(), "key", replicate.LipSyncParams{
		ImageURL: "https://assets.example/face.png",
		AudioURL: "https://assets.example/voice.mp3",
	})
	if err != nil {
		t.Fatalf("GenerateLipSync: %v", err)
	}
	if path, _, _ := f.request(); path != "/v1/models/cjwbw/sadtalker/predictions" {
		t.Fatalf("unexpected path %q", path)
	}
	input := f.input()
	if input["source_image"] != "https://assets.example/face.png" || input["driven_audio"] != "https://assets.example/voice.mp3" {
		t.Fatalf("unexpected input %#v", input)
	}
}

func TestPinnedVersionUsesPredictionsEndpoint(t *testing.T) {
	f := newFakePredictions(t, "https://delivery.example/x.png")
	client := newClient(t, f, nil)

	if _, err := client.Run(context.Background(), "key", "owner/model:abc123", map[string]any{"prompt": "x"}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	path, _, created := f.request()
	if path != "/v1/predictions" {
		t.Fatalf("unexpected path %q", path)
	}
	if created["version"] != "abc123" {
		t.Fatalf("version = %v", created["version"])
	}
}

func TestFailedPredictionReportsError(t *testing.T) {
	f := newFakePredictions(t, nil, func(f *fakePredictions) {
		f.final = replicate.StatusFailed
		f.errorMsg = "NSFW content detected"
	})
	client := newClient(t, f, nil)

	_, err := client.GenerateImage(context.Background(), "key", replicate.ImageParams{Prompt: "x"})
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool marker, got %v", err)
	}
	if !strings.Contains(services.Details(err).Message, "NSFW content detected") {
		t.Fatalf("unexpected message %q", services.Details(err).Message)
	}
}

func TestRunRequiresToken(t *testing.T) {
	client := replicate.NewClient(replicate.Config{}, nil)
	_, err := client.Run(context.Background(), " ", "owner/model", nil)
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestUnauthorizedIsClassified(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"Invalid token"}`, http.StatusUnauthorized)
	}))
	t.Cleanup(server.Close)
	client := replicate.NewClient(replicate.Config{BaseURL: server.URL}, nil)

	_, err := client.Run(context.Background(), "bad", "owner/model", map[string]any{})
	if !errors.Is(err, services.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestCreateRetriesOnlyUndeliveredRequests(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantCalls int32
		wantErr   bool
	}{
		{name: "rate limited", status: http.StatusTooManyRequests, wantCalls: 2},
		{name: "server error", status: http.StatusServiceUnavailable, wantCalls: 1, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var creates atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if creates.Add(1) == 1 {
					http.Error(w, "busy", tt.status)
					return
				}
				writeJSON(w, map[string]any{"id": "p", "status": replicate.StatusSucceeded, "output": "https://x.example/a.png"})
			}))
			t.Cleanup(server.Close)
			policy := retry.Policy{Attempts: 3, BaseDelay: time.Millisecond, Sleeper: func(time.Duration) {}}
			client := replicate.NewClient(replicate.Config{BaseURL: server.URL}, nil, replicate.WithRetryPolicy(policy))

			_, err := client.Run(context.Background(), "key", "owner/model", map[string]any{})
			if (err != nil) != tt.wantErr {
				t.Fatalf("Run error = %v, wantErr %v", err, tt.wantErr)
			}
			if got := creates.Load(); got != tt.wantCalls {
				t.Fatalf("expected %d create requests, got %d", tt.wantCalls, got)
			}
		})
	}
}

func TestPollServerErrorsAreRetried(t *testing.T) {
	var polls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("POST /models/owner/model/predictions", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"id": "p", "status": replicate.StatusStarting})
	})
	mux.HandleFunc("GET /predictions/p", func(w http.ResponseWriter, r *http.Request) {
		if polls.Add(1) == 1 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, map[string]any{"id": "p", "status": replicate.StatusSucceeded, "output": "https://x.example/a.png"})
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	policy := retry.Policy{Attempts: 3, BaseDelay: time.Millisecond, Sleeper: func(time.Duration) {}}
	client := replicate.NewClient(replicate.Config{BaseURL: server.URL, Timeout: 5 * time.Second}, nil, replicate.WithRetryPolicy(policy))

	prediction, err := client.Run(context.Background(), "key", "owner/model", map[string]any{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if prediction.Status != replicate.StatusSucceeded || polls.Load() != 2 {
		t.Fatalf("status=%s polls=%d", prediction.Status, polls.Load())
	}
}

func TestPollingTimesOut(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"id": "slow", "status": replicate.StatusProcessing})
	}))
	t.Cleanup(server.Close)
	client := replicate.NewClient(replicate.Config{BaseURL: server.URL, PollInterval: 5 * time.Millisecond, Timeout: 30 * time.Millisecond}, nil)

	_, err := client.Run(context.Background(), "key", "owner/model", map[string]any{})
	if !errors.Is(err, services.ErrTimeout) {
		t.Fatalf("expected timeout, got %v", err)
	}
}

func TestOutputURLsShapes(t *testing.T) {
	cases := map[string][]string{
		`"https://a/1.png"`:                     {"https://a/1.png"},
		`["https://a/1.png","https://a/2.png"]`: {"https://a/1.png", "https://a/2.png"},
		`{"video":"https://a/v.mp4"}`:           {"https://a/v.mp4"},
		`null`:                                  nil,
	}
	for raw, want := range cases {
		p := replicate.Prediction{Output: json.RawMessage(raw)}
		got := p.OutputURLs()
		if len(got) != len(want) {
			t.Fatalf("OutputURLs(%s) = %v, want %v", raw, got, want)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("OutputURLs(%s) = %v, want %v", raw, got, want)
			}
		}
	}
}

func TestResolveLipSyncModel(t *testing.T) {
	if got := replicate.ResolveLipSyncModel(""); got.Model != "cjwbw/sadtalker" {
		t.Fatalf("default model = %q", got.Model)
	}
	if got := replicate.ResolveLipSyncModel("Wav2Lip"); got.ImageInput != "face" {
		t.Fatalf("wav2lip input = %q", got.ImageInput)
	}
	if got := replicate.ResolveLipSyncModel("acme/talker"); got.Model != "acme/talker" || got.AudioInput != "audio" {
		t.Fatalf("passthrough = %#v", got)
	}
}
