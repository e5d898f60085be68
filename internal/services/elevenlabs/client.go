// Package elevenlabs synthesizes narration audio through the ElevenLabs
// text-to-speech API.
package elevenlabs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"reelsmith/internal/logging"
	"reelsmith/internal/services"
	"reelsmith/internal/services/retry"
	"reelsmith/internal/storage"
)

const (
	defaultBaseURL = "https://api.elevenlabs.io/v1"
	defaultModelID = "eleven_multilingual_v2"
	defaultTimeout = 120 * time.Second
	outputFormat   = "mp3_44100_128"
	maxAudioBytes  = 50 << 20
)

// Config captures the ElevenLabs settings.
type Config struct {
	BaseURL string
	ModelID string
	Timeout time.Duration
}

// VoiceSettings tunes synthesis. Zero values are omitted.
type VoiceSettings struct {
	Stability       float64 `json:"stability,omitempty"`
	SimilarityBoost float64 `json:"similarity_boost,omitempty"`
}

type speechRequest struct {
	Text          string         `json:"text"`
	ModelID       string         `json:"model_id"`
	VoiceSettings *VoiceSettings `json:"voice_settings,omitempty"`
}

// Voice is a voice available to the account.
type Voice struct {
	VoiceID  string `json:"voice_id"`
	Name     string `json:"name"`
	Category string `json:"category"`
}

// Client talks to the ElevenLabs API.
type Client struct {
	cfg        Config
	httpClient *http.Client
	policy     retry.Policy
	settings   *VoiceSettings
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithRetryPolicy overrides the retry policy.
func WithRetryPolicy(policy retry.Policy) Option {
	return func(c *Client) { c.policy = policy }
}

// WithVoiceSettings applies voice settings to every synthesis request.
func WithVoiceSettings(settings VoiceSettings) Option {
	return func(c *Client) { c.settings = &settings }
}

// NewClient constructs an ElevenLabs client.
func NewClient(cfg Config, opts ...Option) *Client {
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if strings.TrimSpace(cfg.ModelID) == "" {
		cfg.ModelID = defaultModelID
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	client := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		policy:     retry.DefaultPolicy(),
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Synthesize converts text to speech with the given voice and returns MP3 bytes.
func (c *Client) Synthesize(ctx context.Context, apiKey, voiceID, text string) ([]byte, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, services.Wrap(services.ErrConfiguration, "elevenlabs", "synthesize", "ElevenLabs API key not configured", nil)
	}
	voiceID = strings.TrimSpace(voiceID)
	if voiceID == "" {
		return nil, services.Wrap(services.ErrValidation, "elevenlabs", "synthesize", "voice id required", nil)
	}
	if strings.TrimSpace(text) == "" {
		return nil, services.Wrap(services.ErrValidation, "elevenlabs", "synthesize", "text required", nil)
	}

	body, err := json.Marshal(speechRequest{Text: text, ModelID: c.cfg.ModelID, VoiceSettings: c.settings})
	if err != nil {
		return nil, fmt.Errorf("encode speech request: %w", err)
	}
	endpoint := c.cfg.BaseURL + "/text-to-speech/" + url.PathEscape(voiceID) + "?output_format=" + outputFormat

	var audio []byte
	err = c.policy.Do(ctx, "elevenlabs synthesize", func(int) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("xi-api-key", apiKey)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "audio/mpeg")
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("elevenlabs request: %w", err)
		}
		defer resp.Body.Close()
		if err := retry.CheckResponse("elevenlabs", resp); err != nil {
			return err
		}
		audio, err = io.ReadAll(io.LimitReader(resp.Body, maxAudioBytes))
		if err != nil {
			return fmt.Errorf("elevenlabs request: read audio: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, classify("synthesize", err)
	}
	if len(audio) == 0 {
		return nil, services.Wrap(services.ErrExternalTool, "elevenlabs", "synthesize", "empty audio response", nil)
	}
	return audio, nil
}

// Voices lists the voices available to the key. Used for key validation.
func (c *Client) Voices(ctx context.Context, apiKey string) ([]Voice, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, services.Wrap(services.ErrConfiguration, "elevenlabs", "voices", "ElevenLabs API key not configured", nil)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/voices", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("xi-api-key", strings.TrimSpace(apiKey))
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classify("voices", fmt.Errorf("elevenlabs request: %w", err))
	}
	defer resp.Body.Close()
	if err := retry.CheckResponse("elevenlabs", resp); err != nil {
		return nil, classify("voices", err)
	}
	var payload struct {
		Voices []Voice `json:"voices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode voices: %w", err)
	}
	return payload.Voices, nil
}

func classify(operation string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var statusErr *retry.StatusError
	if errors.As(err, &statusErr) {
		switch statusErr.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return services.Wrap(services.ErrUnauthorized, "elevenlabs", operation, "api key rejected", err)
		case http.StatusBadRequest, http.StatusNotFound, http.StatusUnprocessableEntity:
			return services.Wrap(services.ErrValidation, "elevenlabs", operation, "request rejected", err)
		}
	}
	return services.Wrap(services.ErrExternalTool, "elevenlabs", operation, "", err)
}

// AssetWriter stores synthesized audio.
type AssetWriter interface {
	PutBytes(ctx context.Context, folder, ext string, data []byte) (storage.Asset, error)
}

// Speech is a stored narration track.
type Speech struct {
	AudioURL string
	PublicID string
	Bytes    int
}

// Narrator synthesizes narration and keeps the result in the asset store.
type Narrator struct {
	client *Client
	assets AssetWriter
	logger *slog.Logger
}

// NewNarrator wires a client to an asset store.
func NewNarrator(client *Client, assets AssetWriter, logger *slog.Logger) *Narrator {
	return &Narrator{client: client, assets: assets, logger: logging.NewComponentLogger(logger, "narration")}
}

// GenerateSpeech synthesizes text with voiceID and stores it under audio/.
func (n *Narrator) GenerateSpeech(ctx context.Context, apiKey, voiceID, text string) (Speech, error) {
	audio, err := n.client.Synthesize(ctx, apiKey, voiceID, text)
	if err != nil {
		return Speech{}, err
	}
	asset, err := n.assets.PutBytes(ctx, storage.FolderAudio, ".mp3", audio)
	if err != nil {
		return Speech{}, services.Wrap(services.ErrTransient, "narration", "store audio", "", err)
	}
	logging.WithContext(ctx, n.logger).Debug("narration stored",
		logging.String("public_id", asset.PublicID),
		logging.Int("bytes", len(audio)),
	)
	return Speech{AudioURL: asset.URL, PublicID: asset.PublicID, Bytes: len(audio)}, nil
}
