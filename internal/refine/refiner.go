package refine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"reelsmith/internal/apikeys"
	"reelsmith/internal/config"
	"reelsmith/internal/logging"
	"reelsmith/internal/services"
	"reelsmith/internal/services/gemini"
	"reelsmith/internal/services/llm"
)

// Kind selects the system prompt used for refinement.
type Kind string

const (
	KindImage     Kind = "image"
	KindVideo     Kind = "video"
	KindNarration Kind = "narration"
)

// Providers accepted by Refine.
const (
	ProviderGoogle     = apikeys.ProviderGoogle
	ProviderOpenRouter = apikeys.ProviderOpenRouter
)

const refineTemperature = 0.7

// ParseKind normalizes a kind name. An empty value means image.
func ParseKind(value string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(value))) {
	case "", KindImage:
		return KindImage, nil
	case KindVideo:
		return KindVideo, nil
	case KindNarration:
		return KindNarration, nil
	}
	return "", services.Wrap(services.ErrValidation, "refine", "kind", fmt.Sprintf("unknown prompt type %q", value), nil)
}

// Request is one refinement call. Provider and Model fall back to the
// configured values when empty.
type Request struct {
	Prompt   string `json:"prompt"`
	Kind     Kind   `json:"type,omitempty"`
	Provider string `json:"provider,omitempty"`
	Model    string `json:"model,omitempty"`
}

// Result carries the refined prompt and the model that produced it.
type Result struct {
	RefinedPrompt string `json:"refinedPrompt"`
	Provider      string `json:"provider"`
	Model         string `json:"model,omitempty"`
}

// Keys resolves provider credentials for a user.
type Keys interface {
	Get(ctx context.Context, userID, provider string) (string, error)
}

// Refiner dispatches refinement requests to the selected provider.
type Refiner struct {
	keys     Keys
	provider string
	llmCfg   config.LLMConfig
	gemini   gemini.Config
	llmOpts  []llm.Option
	logger   *slog.Logger
}

// Option customizes a Refiner.
type Option func(*Refiner)

// WithLLMOptions passes options to every OpenRouter client the refiner builds.
func WithLLMOptions(opts ...llm.Option) Option {
	return func(r *Refiner) {
		r.llmOpts = append(r.llmOpts, opts...)
	}
}

// WithGeminiBaseURL points Gemini requests at another endpoint.
func WithGeminiBaseURL(url string) Option {
	return func(r *Refiner) {
		r.gemini.BaseURL = url
	}
}

// New builds a refiner from the [refiner] configuration section.
func New(cfg *config.Config, keys Keys, logger *slog.Logger, opts ...Option) *Refiner {
	r := &Refiner{
		keys:     keys,
		provider: ProviderOpenRouter,
		logger:   logging.NewComponentLogger(logger, "refine"),
	}
	if cfg != nil {
		if p := strings.ToLower(strings.TrimSpace(cfg.Refiner.Provider)); p != "" {
			r.provider = p
		}
		r.llmCfg = cfg.RefinerLLM()
		r.gemini = gemini.Config{Model: cfg.Refiner.GeminiModel}
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Refine rewrites req.Prompt for the requested kind on behalf of userID.
func (r *Refiner) Refine(ctx context.Context, userID string, req Request) (Result, error) {
	text := strings.TrimSpace(req.Prompt)
	if text == "" {
		return Result{}, services.Wrap(services.ErrValidation, "refine", "prompt", "prompt is required", nil)
	}
	kind, err := ParseKind(string(req.Kind))
	if err != nil {
		return Result{}, err
	}
	provider := strings.ToLower(strings.TrimSpace(req.Provider))
	if provider == "" {
		provider = r.provider
	}
	if provider != ProviderGoogle && provider != ProviderOpenRouter {
		return Result{}, services.Wrap(services.ErrValidation, "refine", "provider",
			fmt.Sprintf("unknown provider %q (use %s or %s)", provider, ProviderOpenRouter, ProviderGoogle), nil)
	}

	key, err := r.keys.Get(ctx, userID, provider)
	if err != nil {
		return Result{}, err
	}
	if strings.TrimSpace(key) == "" {
		return Result{}, services.Wrap(services.ErrConfiguration, "", "", providerLabel(provider)+" API key not configured", nil)
	}

	started := time.Now()
	var result Result
	switch provider {
	case ProviderGoogle:
		result, err = r.refineGemini(ctx, key, strings.TrimSpace(req.Model), kind, text)
	default:
		result, err = r.refineOpenRouter(ctx, key, strings.TrimSpace(req.Model), kind, text)
	}
	logger := logging.WithContext(ctx, r.logger)
	if err != nil {
		logging.WarnWithContext(logger, "prompt refinement failed", "refine_failure",
			logging.String("provider", provider),
			logging.Error(err),
			logging.String(logging.FieldImpact, "original prompt kept"),
		)
		return Result{}, err
	}
	logger.Info("prompt refined",
		logging.String(logging.FieldEventType, "refine_complete"),
		logging.String("provider", provider),
		logging.String("kind", string(kind)),
		logging.Int64("duration_ms", time.Since(started).Milliseconds()),
	)
	return result, nil
}

func (r *Refiner) refineGemini(ctx context.Context, key, model string, kind Kind, text string) (Result, error) {
	cfg := r.gemini
	if model != "" {
		cfg.Model = model
	}
	client := gemini.NewClient(cfg)
	refined, err := client.Generate(ctx, key, SystemPrompt(kind), userMessage(text))
	if err != nil {
		return Result{}, err
	}
	return Result{RefinedPrompt: refined, Provider: ProviderGoogle, Model: client.Model()}, nil
}

func (r *Refiner) refineOpenRouter(ctx context.Context, key, model string, kind Kind, text string) (Result, error) {
	if model == "" {
		model = r.llmCfg.Model
	}
	client := llm.NewClient(llm.Config{
		APIKey:         key,
		BaseURL:        r.llmCfg.BaseURL,
		Model:          model,
		Referer:        r.llmCfg.Referer,
		Title:          r.llmCfg.Title,
		TimeoutSeconds: r.llmCfg.TimeoutSeconds,
	}, r.llmOpts...)
	refined, err := client.Complete(ctx, SystemPrompt(kind), userMessage(text), refineTemperature)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return Result{}, err
		}
		return Result{}, services.Wrap(services.ErrExternalTool, "refine", "openrouter", "", err)
	}
	refined = strings.TrimSpace(refined)
	if refined == "" {
		return Result{}, services.Wrap(services.ErrExternalTool, "refine", "openrouter", "empty response", nil)
	}
	return Result{RefinedPrompt: refined, Provider: ProviderOpenRouter, Model: client.Model()}, nil
}

func userMessage(text string) string {
	return "User prompt: " + text
}

func providerLabel(provider string) string {
	if provider == ProviderGoogle {
		return "Google"
	}
	return "OpenRouter"
}
