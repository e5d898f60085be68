package api

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"reelsmith/internal/campaign"
	"reelsmith/internal/captions"
	"reelsmith/internal/logging"
	"reelsmith/internal/prompt"
	"reelsmith/internal/services"
	"reelsmith/internal/store"
)

// Subtitle export formats.
const (
	SubtitleFormatSRT = "srt"
	SubtitleFormatASS = "ass"
)

// Default ASS canvas used for subtitle downloads.
const (
	subtitleWidth  = 1080
	subtitleHeight = 1920
)

// CampaignStore is the persistence surface CampaignService needs.
type CampaignStore interface {
	CreateCampaign(ctx context.Context, c *campaign.Campaign) (*campaign.Campaign, error)
	GetCampaign(ctx context.Context, id string) (*campaign.Campaign, error)
	ListCampaigns(ctx context.Context, filter store.CampaignFilter) ([]*campaign.Campaign, int, error)
	UpdateCampaign(ctx context.Context, id string, patch store.CampaignPatch) error
	DeleteCampaign(ctx context.Context, id string) error
}

// Personas resolves personas owned by a user.
type Personas interface {
	Get(ctx context.Context, userID, personaID string) (*campaign.Persona, error)
}

// Templates resolves templates by id.
type Templates interface {
	Get(ctx context.Context, templateID string) (*campaign.Template, error)
}

// AssetRemover deletes stored assets by public id.
type AssetRemover interface {
	Delete(publicID string) error
}

// RunTracker reports whether a campaign is executing in this process.
type RunTracker interface {
	Running(campaignID string) bool
}

// CampaignService implements campaign CRUD on behalf of the HTTP handlers.
type CampaignService struct {
	store     CampaignStore
	personas  Personas
	templates Templates
	assets    AssetRemover
	runs      RunTracker
	logger    *slog.Logger
}

// NewCampaignService wires the campaign service. assets and runs may be nil.
func NewCampaignService(st CampaignStore, personas Personas, templates Templates, assets AssetRemover, runs RunTracker, logger *slog.Logger) *CampaignService {
	return &CampaignService{
		store:     st,
		personas:  personas,
		templates: templates,
		assets:    assets,
		runs:      runs,
		logger:    logging.NewComponentLogger(logger, "campaigns"),
	}
}

// Create validates the request against its persona and template and stores a
// draft campaign.
func (s *CampaignService) Create(ctx context.Context, userID string, req CreateCampaignRequest) (*campaign.Campaign, error) {
	var problems []string
	name := strings.TrimSpace(req.Name)
	if name == "" {
		problems = append(problems, "name is required")
	}
	if strings.TrimSpace(req.PersonaID) == "" {
		problems = append(problems, "personaId is required")
	}
	if strings.TrimSpace(req.TemplateID) == "" {
		problems = append(problems, "templateId is required")
	}
	mode, err := captions.ParseMode(req.CaptionSegmentationMode)
	if err != nil {
		problems = append(problems, err.Error())
	}
	if len(problems) > 0 {
		return nil, validationError(problems)
	}

	persona, err := s.personas.Get(ctx, userID, req.PersonaID)
	if err != nil {
		return nil, err
	}
	tmpl, err := s.templates.Get(ctx, req.TemplateID)
	if err != nil {
		return nil, err
	}
	variables := req.Variables
	if variables == nil {
		variables = map[string]string{}
	}
	if problems := prompt.ValidateVariables(tmpl.Variables, variables); len(problems) > 0 {
		return nil, validationError(problems)
	}

	created, err := s.store.CreateCampaign(ctx, &campaign.Campaign{
		UserID:                  userID,
		Name:                    name,
		Description:             strings.TrimSpace(req.Description),
		PersonaID:               persona.ID,
		TemplateID:              tmpl.ID,
		Variables:               variables,
		UseLipSync:              req.UseLipSync,
		LipSyncModel:            strings.TrimSpace(req.LipSyncModel),
		CaptionPresetID:         strings.TrimSpace(req.CaptionPresetID),
		CaptionCustomStyle:      req.CaptionCustomStyle,
		CaptionSegmentationMode: mode,
		Status:                  campaign.StatusDraft,
	})
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "campaigns", "create", "", err)
	}
	logging.WithContext(services.WithCampaignID(ctx, created.ID), s.logger).Info("campaign created",
		logging.String(logging.FieldEventType, "campaign_created"),
		logging.String("template", tmpl.Slug),
	)
	return created, nil
}

// Get returns a campaign owned by userID including its execution log.
func (s *CampaignService) Get(ctx context.Context, userID, campaignID string) (*campaign.Campaign, error) {
	c, err := s.store.GetCampaign(ctx, campaignID)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "campaigns", "load", "", err)
	}
	if c == nil || c.UserID != userID {
		return nil, services.Wrap(services.ErrNotFound, "", "", "campaign not found", nil)
	}
	return c, nil
}

// List returns one page of the user's campaigns with pagination metadata.
func (s *CampaignService) List(ctx context.Context, userID string, filter store.CampaignFilter) (CampaignListResponse, error) {
	filter.UserID = userID
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 {
		filter.Limit = store.DefaultListLimit
	}
	campaigns, total, err := s.store.ListCampaigns(ctx, filter)
	if err != nil {
		return CampaignListResponse{}, services.Wrap(services.ErrTransient, "campaigns", "list", "", err)
	}
	if campaigns == nil {
		campaigns = []*campaign.Campaign{}
	}
	return CampaignListResponse{
		Campaigns: campaigns,
		Pagination: Pagination{
			Page:       filter.Page,
			Limit:      filter.Limit,
			Total:      total,
			TotalPages: int(math.Ceil(float64(total) / float64(filter.Limit))),
		},
	}, nil
}

// Update applies req to a draft campaign.
func (s *CampaignService) Update(ctx context.Context, userID, campaignID string, req UpdateCampaignRequest) (*campaign.Campaign, error) {
	current, err := s.Get(ctx, userID, campaignID)
	if err != nil {
		return nil, err
	}
	if !current.Status.Editable() {
		return nil, services.Wrap(services.ErrConflict, "", "", fmt.Sprintf("cannot update campaign with status %s", current.Status), nil)
	}

	patch := store.CampaignPatch{
		Description:        trimmed(req.Description),
		UseLipSync:         req.UseLipSync,
		LipSyncModel:       trimmed(req.LipSyncModel),
		CaptionPresetID:    trimmed(req.CaptionPresetID),
		CaptionCustomStyle: req.CaptionCustomStyle,
	}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, validationError([]string{"name is required"})
		}
		patch.Name = &name
	}
	if req.CaptionSegmentationMode != nil {
		mode, err := captions.ParseMode(*req.CaptionSegmentationMode)
		if err != nil {
			return nil, validationError([]string{err.Error()})
		}
		patch.CaptionSegmentationMode = &mode
	}
	if req.Variables != nil {
		tmpl, err := s.templates.Get(ctx, current.TemplateID)
		if err != nil {
			return nil, err
		}
		if problems := prompt.ValidateVariables(tmpl.Variables, req.Variables); len(problems) > 0 {
			return nil, validationError(problems)
		}
		patch.Variables = req.Variables
	}

	if err := s.store.UpdateCampaign(ctx, campaignID, patch); err != nil {
		return nil, services.Wrap(services.ErrTransient, "campaigns", "update", "", err)
	}
	return s.Get(ctx, userID, campaignID)
}

// Delete removes a campaign and its stored assets. Asset removal failures
// are logged and do not block the delete.
func (s *CampaignService) Delete(ctx context.Context, userID, campaignID string) error {
	current, err := s.Get(ctx, userID, campaignID)
	if err != nil {
		return err
	}
	if current.Status == campaign.StatusRunning || (s.runs != nil && s.runs.Running(campaignID)) {
		return services.Wrap(services.ErrConflict, "", "", "cannot delete a running campaign", nil)
	}
	logger := logging.WithContext(services.WithCampaignID(ctx, campaignID), s.logger)
	if s.assets != nil {
		for _, publicID := range current.PublicIDs() {
			if err := s.assets.Delete(publicID); err != nil {
				logging.WarnWithContext(logger, "asset removal failed", "asset_cleanup_failed",
					logging.String("public_id", publicID),
					logging.Error(err),
					logging.String(logging.FieldImpact, "orphaned file remains in asset storage"),
				)
			}
		}
	}
	if err := s.store.DeleteCampaign(ctx, campaignID); err != nil {
		return services.Wrap(services.ErrTransient, "campaigns", "delete", "", err)
	}
	logger.Info("campaign deleted", logging.String(logging.FieldEventType, "campaign_deleted"))
	return nil
}

// Duplicate copies the configuration of a campaign into a new draft. Outputs
// and the execution log are not copied.
func (s *CampaignService) Duplicate(ctx context.Context, userID, campaignID string) (*campaign.Campaign, error) {
	source, err := s.Get(ctx, userID, campaignID)
	if err != nil {
		return nil, err
	}
	variables := make(map[string]string, len(source.Variables))
	for key, value := range source.Variables {
		variables[key] = value
	}
	created, err := s.store.CreateCampaign(ctx, &campaign.Campaign{
		UserID:                  userID,
		Name:                    source.Name + " (copy)",
		Description:             source.Description,
		PersonaID:               source.PersonaID,
		TemplateID:              source.TemplateID,
		Variables:               variables,
		UseLipSync:              source.UseLipSync,
		LipSyncModel:            source.LipSyncModel,
		CaptionPresetID:         source.CaptionPresetID,
		CaptionCustomStyle:      source.CaptionCustomStyle,
		CaptionSegmentationMode: source.CaptionSegmentationMode,
		Status:                  campaign.StatusDraft,
	})
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "campaigns", "duplicate", "", err)
	}
	return created, nil
}

// Subtitles renders the stored caption track as SRT or ASS and returns the
// download filename with the content.
func (s *CampaignService) Subtitles(ctx context.Context, userID, campaignID, format string) (string, string, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = SubtitleFormatSRT
	}
	if format != SubtitleFormatSRT && format != SubtitleFormatASS {
		return "", "", services.Wrap(services.ErrValidation, "", "", "format must be srt or ass", nil)
	}
	c, err := s.Get(ctx, userID, campaignID)
	if err != nil {
		return "", "", err
	}
	if c.Subtitles == nil || len(c.Subtitles.Segments) == 0 {
		return "", "", services.Wrap(services.ErrNotFound, "", "", "no subtitles available", nil)
	}
	filename := fmt.Sprintf("campaign-%s.%s", c.ID, format)
	if format == SubtitleFormatASS {
		style := captions.ResolveStyle(c.CaptionPresetID, c.CaptionCustomStyle)
		return filename, captions.GenerateASS(c.Subtitles.Segments, style, subtitleWidth, subtitleHeight), nil
	}
	return filename, captions.GenerateSRT(c.Subtitles.Segments), nil
}

func validationError(problems []string) error {
	return services.Wrap(services.ErrValidation, "", "", strings.Join(problems, "; "), nil)
}

func trimmed(value *string) *string {
	if value == nil {
		return nil
	}
	out := strings.TrimSpace(*value)
	return &out
}
