package replicate

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
	defaultBaseURL      = "https://api.replicate.com/v1"
	defaultPollInterval = 2 * time.Second
	defaultTimeout      = 10 * time.Minute
	requestTimeout      = 60 * time.Second
)

// Prediction states reported by Replicate.
const (
	StatusStarting   = "starting"
	StatusProcessing = "processing"
	StatusSucceeded  = "succeeded"
	StatusFailed     = "failed"
	StatusCanceled   = "canceled"
)

// Config captures the client settings.
type Config struct {
	BaseURL      string
	PollInterval time.Duration
	Timeout      time.Duration
}

// AssetStore receives generated outputs.
type AssetStore interface {
	Fetch(ctx context.Context, rawURL, folder string) (storage.Asset, error)
}

// Client creates and polls predictions.
type Client struct {
	cfg        Config
	httpClient *http.Client
	policy     retry.Policy
	assets     AssetStore
	logger     *slog.Logger
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithRetryPolicy overrides the retry policy for create and poll requests.
func WithRetryPolicy(policy retry.Policy) Option {
	return func(c *Client) {
		c.policy = policy
	}
}

// WithLogger sets the logger used for prediction progress.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logging.NewComponentLogger(logger, "replicate")
	}
}

// NewClient constructs a Replicate client that stores outputs in assets.
func NewClient(cfg Config, assets AssetStore, opts ...Option) *Client {
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.PollInterval < 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	client := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: requestTimeout},
		policy:     retry.DefaultPolicy(),
		assets:     assets,
		logger:     logging.NewNop(),
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Prediction is the subset of the Replicate prediction resource reelsmith uses.
type Prediction struct {
	ID      string          `json:"id"`
	Model   string          `json:"model"`
	Version string          `json:"version"`
	Status  string          `json:"status"`
	Output  json.RawMessage `json:"output"`
	Error   any             `json:"error"`
	Logs    string          `json:"logs"`
	URLs    struct {
		Get    string `json:"get"`
		Cancel string `json:"cancel"`
	} `json:"urls"`
}

// Terminal reports whether the prediction will not change any more.
func (p *Prediction) Terminal() bool {
	switch p.Status {
	case StatusSucceeded, StatusFailed, StatusCanceled:
		return true
	}
	return false
}

// OutputURLs flattens the prediction output into its URL strings. Replicate
// returns a single string, a list of strings or an object of named files
// depending on the model.
func (p *Prediction) OutputURLs() []string {
	if len(p.Output) == 0 || string(p.Output) == "null" {
		return nil
	}
	var single string
	if err := json.Unmarshal(p.Output, &single); err == nil {
		if single == "" {
			return nil
		}
		return []string{single}
	}
	var list []any
	if err := json.Unmarshal(p.Output, &list); err == nil {
		var urls []string
		for _, item := range list {
			if s, ok := item.(string); ok && s != "" {
				urls = append(urls, s)
			}
		}
		return urls
	}
	var named map[string]any
	if err := json.Unmarshal(p.Output, &named); err == nil {
		var urls []string
		for _, key := range []string{"video", "output", "image", "file"} {
			if s, ok := named[key].(string); ok && s != "" {
				urls = append(urls, s)
			}
		}
		return urls
	}
	return nil
}

func (p *Prediction) errorMessage() string {
	switch v := p.Error.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	default:
		data, _ := json.Marshal(v)
		return string(data)
	}
}

// Run creates a prediction for model and waits for it to finish. It returns
// the succeeded prediction, or an error describing the failure.
func (c *Client) Run(ctx context.Context, apiKey, model string, input map[string]any) (*Prediction, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, services.Wrap(services.ErrConfiguration, "replicate", "run", "api token required", nil)
	}
	prediction, err := c.create(ctx, apiKey, model, input)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("prediction created",
		logging.String("prediction_id", prediction.ID),
		logging.String("model", model),
	)
	return c.wait(ctx, apiKey, prediction)
}

func (c *Client) create(ctx context.Context, apiKey, model string, input map[string]any) (*Prediction, error) {
	endpoint, body, err := c.createRequest(model, input)
	if err != nil {
		return nil, err
	}
	// A 5xx may arrive after Replicate accepted the prediction, so repeating
	// the POST could start and bill a second one.
	policy := c.policy
	policy.Allow = retry.NotDelivered
	var prediction Prediction
	err = policy.Do(ctx, "replicate create", func(int) error {
		return c.do(ctx, apiKey, http.MethodPost, endpoint, body, &prediction)
	})
	if err != nil {
		return nil, classify("create prediction", err)
	}
	return &prediction, nil
}

func (c *Client) createRequest(model string, input map[string]any) (string, []byte, error) {
	model = strings.TrimSpace(model)
	if model == "" {
		return "", nil, services.Wrap(services.ErrValidation, "replicate", "create prediction", "model required", nil)
	}
	payload := map[string]any{"input": input}
	var endpoint string
	if name, version, ok := strings.Cut(model, ":"); ok {
		if version == "" || !strings.Contains(name, "/") {
			return "", nil, services.Wrap(services.ErrValidation, "replicate", "create prediction", "invalid model "+model, nil)
		}
		payload["version"] = version
		endpoint = c.cfg.BaseURL + "/predictions"
	} else {
		owner, modelName, found := strings.Cut(model, "/")
		if !found || owner == "" || modelName == "" {
			return "", nil, services.Wrap(services.ErrValidation, "replicate", "create prediction", "invalid model "+model, nil)
		}
		endpoint = c.cfg.BaseURL + "/models/" + url.PathEscape(owner) + "/" + url.PathEscape(modelName) + "/predictions"
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", nil, fmt.Errorf("encode prediction input: %w", err)
	}
	return endpoint, body, nil
}

func (c *Client) wait(ctx context.Context, apiKey string, prediction *Prediction) (*Prediction, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	getURL := prediction.URLs.Get
	if getURL == "" {
		getURL = c.cfg.BaseURL + "/predictions/" + url.PathEscape(prediction.ID)
	}
	for !prediction.Terminal() {
		if err := c.policy.Sleep(ctx, c.cfg.PollInterval); err != nil {
			return nil, c.waitError(err, prediction)
		}
		var next Prediction
		err := c.policy.Do(ctx, "replicate poll", func(int) error {
			return c.do(ctx, apiKey, http.MethodGet, getURL, nil, &next)
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil, c.waitError(ctx.Err(), prediction)
			}
			return nil, classify("poll prediction", err)
		}
		prediction = &next
	}

	switch prediction.Status {
	case StatusSucceeded:
		return prediction, nil
	case StatusCanceled:
		return nil, services.Wrap(services.ErrExternalTool, "replicate", "prediction", "prediction "+prediction.ID+" was canceled", nil)
	default:
		msg := prediction.errorMessage()
		if msg == "" {
			msg = "prediction " + prediction.ID + " failed"
		}
		return nil, services.Wrap(services.ErrExternalTool, "replicate", "prediction", msg, nil)
	}
}

func (c *Client) waitError(err error, prediction *Prediction) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return services.Wrap(services.ErrTimeout, "replicate", "prediction",
			fmt.Sprintf("prediction %s still %s after %s", prediction.ID, prediction.Status, c.cfg.Timeout), err)
	}
	return err
}

func (c *Client) do(ctx context.Context, apiKey, method, endpoint string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("replicate request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("replicate request: %w", err)
	}
	defer resp.Body.Close()
	if err := retry.CheckResponse("replicate", resp); err != nil {
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("replicate request: decode response: %w", err)
	}
	return nil
}

// classify tags transport and API errors with service markers.
func classify(operation string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var statusErr *retry.StatusError
	if errors.As(err, &statusErr) {
		switch statusErr.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return services.Wrap(services.ErrUnauthorized, "replicate", operation, "api token rejected", err)
		case http.StatusNotFound, http.StatusUnprocessableEntity, http.StatusBadRequest:
			return services.Wrap(services.ErrValidation, "replicate", operation, "request rejected", err)
		}
	}
	return services.Wrap(services.ErrExternalTool, "replicate", operation, "", err)
}
