package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"reelsmith/internal/apikeys"
	"reelsmith/internal/batch"
	"reelsmith/internal/campaign"
	"reelsmith/internal/captions"
	"reelsmith/internal/config"
	"reelsmith/internal/refine"
	"reelsmith/internal/services"
)

// ErrDaemonUnavailable is returned when the daemon cannot be reached.
var ErrDaemonUnavailable = errors.New("daemon API unavailable")

// Client calls the daemon HTTP API.
type Client struct {
	base   *url.URL
	token  string
	userID string
	http   *http.Client
}

// ClientOption customizes a Client.
type ClientOption func(*Client)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		if client != nil {
			c.http = client
		}
	}
}

// WithUserID sets the X-User-ID header sent with every request.
func WithUserID(userID string) ClientOption {
	return func(c *Client) {
		if userID = strings.TrimSpace(userID); userID != "" {
			c.userID = userID
		}
	}
}

// NewClient builds a client for baseURL authenticated with token.
func NewClient(baseURL, token string, opts ...ClientOption) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(strings.TrimSpace(baseURL), "/"))
	if err != nil {
		return nil, fmt.Errorf("parse api url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("api url %q must include scheme and host", baseURL)
	}
	base.RawQuery = ""
	base.Fragment = ""
	c := &Client{
		base:   base,
		token:  strings.TrimSpace(token),
		userID: DefaultUserID,
		http:   &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// NewClientFromConfig builds a client for the daemon configured in cfg.
func NewClientFromConfig(cfg *config.Config, opts ...ClientOption) (*Client, error) {
	return NewClient(cfg.APIBaseURL(), cfg.Paths.APIToken, opts...)
}

// ListQuery narrows ListCampaigns.
type ListQuery struct {
	Status     string
	PersonaID  string
	TemplateID string
	Search     string
	Page       int
	Limit      int
}

func (q ListQuery) values() url.Values {
	values := url.Values{}
	set := func(key, value string) {
		if value = strings.TrimSpace(value); value != "" {
			values.Set(key, value)
		}
	}
	set("status", q.Status)
	set("personaId", q.PersonaID)
	set("templateId", q.TemplateID)
	set("search", q.Search)
	if q.Page > 0 {
		values.Set("page", strconv.Itoa(q.Page))
	}
	if q.Limit > 0 {
		values.Set("limit", strconv.Itoa(q.Limit))
	}
	return values
}

// Status fetches daemon status.
func (c *Client) Status(ctx context.Context) (DaemonStatus, error) {
	var out DaemonStatus
	err := c.do(ctx, http.MethodGet, "/api/status", nil, nil, &out)
	return out, err
}

// ListCampaigns returns one page of campaigns.
func (c *Client) ListCampaigns(ctx context.Context, q ListQuery) (CampaignListResponse, error) {
	var out CampaignListResponse
	err := c.do(ctx, http.MethodGet, "/api/campaigns", q.values(), nil, &out)
	return out, err
}

// GetCampaign returns a campaign with its execution log.
func (c *Client) GetCampaign(ctx context.Context, id string) (*campaign.Campaign, error) {
	var out CampaignResponse
	if err := c.do(ctx, http.MethodGet, "/api/campaigns/"+url.PathEscape(id), nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Campaign, nil
}

// CreateCampaign creates a draft campaign.
func (c *Client) CreateCampaign(ctx context.Context, req CreateCampaignRequest) (*campaign.Campaign, error) {
	var out CampaignResponse
	if err := c.do(ctx, http.MethodPost, "/api/campaigns", nil, req, &out); err != nil {
		return nil, err
	}
	return out.Campaign, nil
}

// UpdateCampaign patches a draft campaign.
func (c *Client) UpdateCampaign(ctx context.Context, id string, req UpdateCampaignRequest) (*campaign.Campaign, error) {
	var out CampaignResponse
	if err := c.do(ctx, http.MethodPatch, "/api/campaigns/"+url.PathEscape(id), nil, req, &out); err != nil {
		return nil, err
	}
	return out.Campaign, nil
}

// DeleteCampaign removes a campaign and its assets.
func (c *Client) DeleteCampaign(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/campaigns/"+url.PathEscape(id), nil, nil, nil)
}

// DuplicateCampaign copies a campaign into a new draft.
func (c *Client) DuplicateCampaign(ctx context.Context, id string) (*campaign.Campaign, error) {
	var out CampaignResponse
	if err := c.do(ctx, http.MethodPost, "/api/campaigns/"+url.PathEscape(id)+"/duplicate", nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Campaign, nil
}

// ExecuteCampaign starts a background run and returns the running snapshot.
func (c *Client) ExecuteCampaign(ctx context.Context, id string, req ExecuteRequest) (ExecuteResponse, error) {
	var out ExecuteResponse
	err := c.do(ctx, http.MethodPost, "/api/campaigns/"+url.PathEscape(id)+"/execute", nil, req, &out)
	return out, err
}

// WaitCampaign polls until the campaign leaves the running state.
func (c *Client) WaitCampaign(ctx context.Context, id string, interval time.Duration) (*campaign.Campaign, error) {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		current, err := c.GetCampaign(ctx, id)
		if err != nil {
			return nil, err
		}
		if current.Status != campaign.StatusRunning && current.Status != campaign.StatusQueued {
			return current, nil
		}
		select {
		case <-ctx.Done():
			return current, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Subtitles downloads the caption track in format (srt or ass).
func (c *Client) Subtitles(ctx context.Context, id, format string) (string, error) {
	values := url.Values{}
	if format != "" {
		values.Set("format", format)
	}
	var buf bytes.Buffer
	if err := c.do(ctx, http.MethodGet, "/api/campaigns/"+url.PathEscape(id)+"/subtitles", values, nil, &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// ListPersonas returns the user's personas.
func (c *Client) ListPersonas(ctx context.Context) ([]*campaign.Persona, error) {
	var out PersonaListResponse
	if err := c.do(ctx, http.MethodGet, "/api/personas", nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Personas, nil
}

// CreatePersona stores a new persona.
func (c *Client) CreatePersona(ctx context.Context, persona campaign.Persona) (*campaign.Persona, error) {
	var out PersonaResponse
	if err := c.do(ctx, http.MethodPost, "/api/personas", nil, persona, &out); err != nil {
		return nil, err
	}
	return out.Persona, nil
}

// DeletePersona removes a persona owned by the user.
func (c *Client) DeletePersona(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/personas/"+url.PathEscape(id), nil, nil, nil)
}

// ListTemplates returns active templates, optionally limited to category.
func (c *Client) ListTemplates(ctx context.Context, category string) ([]*campaign.Template, error) {
	values := url.Values{}
	if category = strings.TrimSpace(category); category != "" {
		values.Set("category", category)
	}
	var out TemplateListResponse
	if err := c.do(ctx, http.MethodGet, "/api/templates", values, nil, &out); err != nil {
		return nil, err
	}
	return out.Templates, nil
}

// GetTemplate looks a template up by id or slug.
func (c *Client) GetTemplate(ctx context.Context, idOrSlug string) (*campaign.Template, error) {
	var out TemplateResponse
	if err := c.do(ctx, http.MethodGet, "/api/templates/"+url.PathEscape(idOrSlug), nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Template, nil
}

// CaptionPresets lists the built-in caption styles.
func (c *Client) CaptionPresets(ctx context.Context) ([]captions.Preset, error) {
	var out CaptionPresetListResponse
	if err := c.do(ctx, http.MethodGet, "/api/captions/presets", nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Presets, nil
}

// TestNotification asks the daemon to publish a test notification.
func (c *Client) TestNotification(ctx context.Context) (bool, string, error) {
	var out struct {
		Sent    bool   `json:"sent"`
		Message string `json:"message"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/notifications/test", nil, nil, &out); err != nil {
		return false, "", err
	}
	return out.Sent, out.Message, nil
}

// KeyStatuses reports where each provider key comes from.
func (c *Client) KeyStatuses(ctx context.Context) ([]apikeys.Status, error) {
	var out KeyStatusResponse
	if err := c.do(ctx, http.MethodGet, "/api/keys", nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Keys, nil
}

// SetKey stores a provider key for the user. An empty key removes it.
func (c *Client) SetKey(ctx context.Context, provider, key string) error {
	return c.do(ctx, http.MethodPut, "/api/keys/"+url.PathEscape(provider), nil, SetKeyRequest{APIKey: key}, nil)
}

// DeleteKey removes the user's stored key for provider.
func (c *Client) DeleteKey(ctx context.Context, provider string) error {
	return c.do(ctx, http.MethodDelete, "/api/keys/"+url.PathEscape(provider), nil, nil, nil)
}

// Refine asks the daemon to rewrite a prompt.
func (c *Client) Refine(ctx context.Context, req refine.Request) (refine.Result, error) {
	var out refine.Result
	err := c.do(ctx, http.MethodPost, "/api/refine-prompt", nil, req, &out)
	return out, err
}

// CreateBatch stores a batch with its queued members.
func (c *Client) CreateBatch(ctx context.Context, req batch.CreateRequest) (BatchResponse, error) {
	var out BatchResponse
	err := c.do(ctx, http.MethodPost, "/api/batches", nil, req, &out)
	return out, err
}

// GetBatch returns a batch and its members.
func (c *Client) GetBatch(ctx context.Context, id string) (BatchResponse, error) {
	var out BatchResponse
	err := c.do(ctx, http.MethodGet, "/api/batches/"+url.PathEscape(id), nil, nil, &out)
	return out, err
}

// ListBatches returns the user's batches.
func (c *Client) ListBatches(ctx context.Context) ([]*campaign.Batch, error) {
	var out BatchListResponse
	if err := c.do(ctx, http.MethodGet, "/api/batches", nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Batches, nil
}

// ExecuteBatch starts a queued batch in the background.
func (c *Client) ExecuteBatch(ctx context.Context, id string) (BatchResponse, error) {
	var out BatchResponse
	err := c.do(ctx, http.MethodPost, "/api/batches/"+url.PathEscape(id)+"/execute", nil, nil, &out)
	return out, err
}

// CancelBatch cancels a queued batch.
func (c *Client) CancelBatch(ctx context.Context, id string) (BatchResponse, error) {
	var out BatchResponse
	err := c.do(ctx, http.MethodPost, "/api/batches/"+url.PathEscape(id)+"/cancel", nil, nil, &out)
	return out, err
}

// do sends one request. out may be a *bytes.Buffer to receive the raw body.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	endpoint := c.base.JoinPath(path)
	if len(query) > 0 {
		endpoint.RawQuery = query.Encode()
	}
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set(HeaderUserID, c.userID)

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %v", ErrDaemonUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	if buf, ok := out.(*bytes.Buffer); ok {
		_, err := io.Copy(buf, resp.Body)
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	var payload ErrorResponse
	if err := json.Unmarshal(data, &payload); err != nil || payload.Error == "" {
		payload.Error = strings.TrimSpace(string(data))
		if payload.Error == "" {
			payload.Error = http.StatusText(resp.StatusCode)
		}
	}
	marker := services.MarkerForKind(payload.Kind)
	if payload.Kind == "" {
		marker = markerForStatus(resp.StatusCode)
	}
	return services.Wrap(marker, "", "", payload.Error, nil)
}

func markerForStatus(status int) error {
	switch status {
	case http.StatusNotFound:
		return services.ErrNotFound
	case http.StatusBadRequest:
		return services.ErrValidation
	case http.StatusConflict:
		return services.ErrConflict
	case http.StatusUnauthorized, http.StatusForbidden:
		return services.ErrUnauthorized
	case http.StatusUnprocessableEntity:
		return services.ErrConfiguration
	case http.StatusGatewayTimeout:
		return services.ErrTimeout
	case http.StatusBadGateway:
		return services.ErrExternalTool
	default:
		return services.ErrTransient
	}
}
