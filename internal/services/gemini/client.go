// Package gemini wraps the Google Gemini API for short text generation.
package gemini

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"reelsmith/internal/services"
)

const (
	defaultModel       = "gemini-2.5-flash"
	defaultTemperature = 0.7
	defaultMaxTokens   = 500
)

// Config captures Gemini settings. BaseURL overrides the API endpoint.
type Config struct {
	APIKey          string
	Model           string
	BaseURL         string
	Temperature     float32
	MaxOutputTokens int32
	HTTPClient      *http.Client
}

// Client generates text with Gemini.
type Client struct {
	cfg Config
}

// NewClient returns a client with defaults applied.
func NewClient(cfg Config) *Client {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.Model = strings.TrimSpace(cfg.Model)
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = defaultTemperature
	}
	if cfg.MaxOutputTokens <= 0 {
		cfg.MaxOutputTokens = defaultMaxTokens
	}
	return &Client{cfg: cfg}
}

// Model returns the configured model id.
func (c *Client) Model() string {
	return c.cfg.Model
}

// Generate sends system instructions plus the user text and returns the
// trimmed response text. apiKey overrides the configured key when set.
func (c *Client) Generate(ctx context.Context, apiKey, system, user string) (string, error) {
	key := strings.TrimSpace(apiKey)
	if key == "" {
		key = c.cfg.APIKey
	}
	if key == "" {
		return "", services.Wrap(services.ErrConfiguration, "gemini", "generate", "Google API key not configured", nil)
	}
	clientCfg := &genai.ClientConfig{
		APIKey:     key,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: c.cfg.HTTPClient,
	}
	if c.cfg.BaseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: c.cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return "", services.Wrap(services.ErrConfiguration, "gemini", "new client", "", err)
	}

	genCfg := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(c.cfg.Temperature),
		MaxOutputTokens: c.cfg.MaxOutputTokens,
	}
	if strings.TrimSpace(system) != "" {
		genCfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	resp, err := client.Models.GenerateContent(ctx, c.cfg.Model, genai.Text(user), genCfg)
	if err != nil {
		return "", classify(err)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", services.Wrap(services.ErrExternalTool, "gemini", "generate", "empty response", nil)
	}
	return text, nil
}

func classify(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusUnauthorized, http.StatusForbidden:
			return services.Wrap(services.ErrUnauthorized, "gemini", "generate", apiErr.Message, err)
		case http.StatusBadRequest:
			if strings.Contains(strings.ToLower(apiErr.Message), "api key") {
				return services.Wrap(services.ErrUnauthorized, "gemini", "generate", apiErr.Message, err)
			}
			return services.Wrap(services.ErrValidation, "gemini", "generate", apiErr.Message, err)
		case http.StatusTooManyRequests:
			return services.Wrap(services.ErrTransient, "gemini", "generate", apiErr.Message, err)
		}
	}
	return services.Wrap(services.ErrExternalTool, "gemini", "generate", "", err)
}
