package api

import (
	"strings"

	"reelsmith/internal/apikeys"
	"reelsmith/internal/campaign"
	"reelsmith/internal/captions"
	"reelsmith/internal/services"
	"reelsmith/internal/storage"
)

// HeaderUserID carries the acting user. Requests without it act as DefaultUserID.
const (
	HeaderUserID  = "X-User-ID"
	DefaultUserID = "local"
)

// DependencyStatus captures availability of an external dependency.
type DependencyStatus struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail,omitempty"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running       bool               `json:"running"`
	PID           int                `json:"pid"`
	DatabasePath  string             `json:"databasePath"`
	LockFilePath  string             `json:"lockFilePath"`
	ActiveRuns    []string           `json:"activeRuns"`
	CampaignStats map[string]int     `json:"campaignStats"`
	Keys          []apikeys.Status   `json:"keys,omitempty"`
	Storage       *storage.Health    `json:"storage,omitempty"`
	Dependencies  []DependencyStatus `json:"dependencies"`
}

// Pagination describes one page of a list response.
type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

// CampaignListResponse wraps a page of campaigns.
type CampaignListResponse struct {
	Campaigns  []*campaign.Campaign `json:"campaigns"`
	Pagination Pagination           `json:"pagination"`
}

// CampaignResponse wraps a single campaign.
type CampaignResponse struct {
	Campaign *campaign.Campaign `json:"campaign"`
}

// ExecuteResponse is returned when a run was started in the background.
type ExecuteResponse struct {
	Status   string             `json:"status"`
	Campaign *campaign.Campaign `json:"campaign"`
}

// CreateCampaignRequest is the body of POST /api/campaigns.
type CreateCampaignRequest struct {
	Name                    string                   `json:"name"`
	Description             string                   `json:"description,omitempty"`
	PersonaID               string                   `json:"personaId"`
	TemplateID              string                   `json:"templateId"`
	Variables               map[string]string        `json:"variables,omitempty"`
	UseLipSync              bool                     `json:"useLipSync,omitempty"`
	LipSyncModel            string                   `json:"lipSyncModel,omitempty"`
	CaptionPresetID         string                   `json:"captionPresetId,omitempty"`
	CaptionCustomStyle      *captions.StyleOverrides `json:"captionCustomStyle,omitempty"`
	CaptionSegmentationMode string                   `json:"captionSegmentationMode,omitempty"`
}

// UpdateCampaignRequest is the body of PATCH /api/campaigns/{id}. Absent
// fields are left unchanged.
type UpdateCampaignRequest struct {
	Name                    *string                  `json:"name,omitempty"`
	Description             *string                  `json:"description,omitempty"`
	Variables               map[string]string        `json:"variables,omitempty"`
	UseLipSync              *bool                    `json:"useLipSync,omitempty"`
	LipSyncModel            *string                  `json:"lipSyncModel,omitempty"`
	CaptionPresetID         *string                  `json:"captionPresetId,omitempty"`
	CaptionCustomStyle      *captions.StyleOverrides `json:"captionCustomStyle,omitempty"`
	CaptionSegmentationMode *string                  `json:"captionSegmentationMode,omitempty"`
}

// ExecuteRequest is the optional body of POST /api/campaigns/{id}/execute.
type ExecuteRequest struct {
	Steps              []string                 `json:"steps,omitempty"`
	ImageModel         string                   `json:"imageModel,omitempty"`
	VideoModel         string                   `json:"videoModel,omitempty"`
	AspectRatio        string                   `json:"aspectRatio,omitempty"`
	VideoDuration      int                      `json:"videoDuration,omitempty"`
	CaptionPresetID    string                   `json:"captionPresetId,omitempty"`
	CaptionCustomStyle *captions.StyleOverrides `json:"captionCustomStyle,omitempty"`
	UseLipSync         *bool                    `json:"useLipSync,omitempty"`
	LipSyncModel       string                   `json:"lipSyncModel,omitempty"`
}

// Options validates the request and converts it to pipeline options.
func (r ExecuteRequest) Options() (campaign.ExecuteOptions, error) {
	steps, err := campaign.ParseSteps(r.Steps)
	if err != nil {
		return campaign.ExecuteOptions{}, services.Wrap(services.ErrValidation, "", "", err.Error(), nil)
	}
	if r.VideoDuration < 0 {
		return campaign.ExecuteOptions{}, services.Wrap(services.ErrValidation, "", "", "videoDuration must be positive", nil)
	}
	return campaign.ExecuteOptions{
		Steps:              steps,
		ImageModel:         strings.TrimSpace(r.ImageModel),
		VideoModel:         strings.TrimSpace(r.VideoModel),
		AspectRatio:        strings.TrimSpace(r.AspectRatio),
		VideoDuration:      r.VideoDuration,
		CaptionPresetID:    strings.TrimSpace(r.CaptionPresetID),
		CaptionCustomStyle: r.CaptionCustomStyle,
		UseLipSync:         r.UseLipSync,
		LipSyncModel:       strings.TrimSpace(r.LipSyncModel),
	}, nil
}

// PersonaListResponse wraps the user's personas.
type PersonaListResponse struct {
	Personas []*campaign.Persona `json:"personas"`
}

// PersonaResponse wraps a single persona.
type PersonaResponse struct {
	Persona *campaign.Persona `json:"persona"`
}

// TemplateListResponse wraps the active templates.
type TemplateListResponse struct {
	Templates []*campaign.Template `json:"templates"`
}

// TemplateResponse wraps a single template.
type TemplateResponse struct {
	Template *campaign.Template `json:"template"`
}

// CaptionPresetListResponse lists the built-in caption styles.
type CaptionPresetListResponse struct {
	Presets []captions.Preset `json:"presets"`
}

// BatchResponse wraps a batch and, when loaded, its member campaigns.
type BatchResponse struct {
	Batch     *campaign.Batch      `json:"batch"`
	Campaigns []*campaign.Campaign `json:"campaigns,omitempty"`
}

// BatchListResponse wraps the user's batches.
type BatchListResponse struct {
	Batches []*campaign.Batch `json:"batches"`
}

// SetKeyRequest is the body of PUT /api/keys/{provider}.
type SetKeyRequest struct {
	APIKey string `json:"apiKey"`
}

// KeyStatusResponse lists where each provider key comes from.
type KeyStatusResponse struct {
	Keys []apikeys.Status `json:"keys"`
}

// ErrorResponse is the body of every non-2xx JSON response.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// MergeStatusCounts returns counts for every campaign status, filling zeros
// for statuses without campaigns.
func MergeStatusCounts(stats map[campaign.Status]int) map[string]int {
	out := make(map[string]int, len(campaign.AllStatuses()))
	for _, status := range campaign.AllStatuses() {
		out[string(status)] = stats[status]
	}
	return out
}
