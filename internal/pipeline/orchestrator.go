package pipeline

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"strings"
	"time"

	"reelsmith/internal/apikeys"
	"reelsmith/internal/campaign"
	"reelsmith/internal/captions"
	"reelsmith/internal/config"
	"reelsmith/internal/logging"
	"reelsmith/internal/notifications"
	"reelsmith/internal/prompt"
	"reelsmith/internal/services"
	"reelsmith/internal/services/elevenlabs"
	"reelsmith/internal/services/replicate"
	"reelsmith/internal/stepexec"
	"reelsmith/internal/storage"
	"reelsmith/internal/store"
)

// Store is the campaign persistence the orchestrator needs.
type Store interface {
	GetCampaign(ctx context.Context, id string) (*campaign.Campaign, error)
	UpdateCampaign(ctx context.Context, id string, patch store.CampaignPatch) error
	BeginRun(ctx context.Context, id string) (int, error)
	AppendLog(ctx context.Context, campaignID string, entry campaign.LogEntry) error
	FinishRun(ctx context.Context, id string, status campaign.Status, errorMessage string) error
}

// Personas loads a persona owned by a user.
type Personas interface {
	Get(ctx context.Context, userID, personaID string) (*campaign.Persona, error)
}

// Templates loads a template.
type Templates interface {
	Get(ctx context.Context, templateID string) (*campaign.Template, error)
}

// Keys resolves provider API keys. An empty key means none is configured.
type Keys interface {
	Get(ctx context.Context, userID, provider string) (string, error)
}

// Generator produces images, videos and lip-sync videos.
type Generator interface {
	GenerateImage(ctx context.Context, apiKey string, params replicate.ImageParams) (replicate.Result, error)
	GenerateVideo(ctx context.Context, apiKey string, params replicate.VideoParams) (replicate.Result, error)
	GenerateLipSync(ctx context.Context, apiKey string, params replicate.LipSyncParams) (replicate.Result, error)
}

// Narrator synthesizes narration audio.
type Narrator interface {
	GenerateSpeech(ctx context.Context, apiKey, voiceID, text string) (elevenlabs.Speech, error)
}

// Compositor renders overlays and burns captions into videos.
type Compositor interface {
	ApplyTextOverlay(ctx context.Context, imagePublicID, text string, overlay campaign.OverlayConfig) (storage.Asset, error)
	ComposeVideoWithCaptions(ctx context.Context, videoURL, assContent string) *storage.Asset
	ExtractThumbnail(ctx context.Context, videoPublicID string) (storage.Asset, error)
}

// AssetWriter stores generated subtitle files.
type AssetWriter interface {
	PutBytes(ctx context.Context, folder, ext string, data []byte) (storage.Asset, error)
}

// Defaults are the instance-wide fallbacks used when neither the execution
// options, the campaign nor the template pick a value.
type Defaults struct {
	ImageModel    string
	VideoModel    string
	LipSyncModel  string
	AspectRatio   string
	VideoDuration int

	CaptionPreset string
	CaptionMode   captions.Mode
	VideoWidth    int
	VideoHeight   int
}

// DefaultsFromConfig extracts Defaults from cfg.
func DefaultsFromConfig(cfg *config.Config) Defaults {
	if cfg == nil {
		return Defaults{}
	}
	mode, err := captions.ParseMode(cfg.Captions.SegmentationMode)
	if err != nil {
		mode = captions.ModeTimed
	}
	return Defaults{
		ImageModel:    cfg.Generation.ImageModel,
		VideoModel:    cfg.Generation.VideoModel,
		LipSyncModel:  cfg.Generation.LipSyncModel,
		AspectRatio:   cfg.Generation.AspectRatio,
		VideoDuration: cfg.Generation.VideoDuration,
		CaptionPreset: cfg.Captions.DefaultPreset,
		CaptionMode:   mode,
		VideoWidth:    cfg.Captions.VideoWidth,
		VideoHeight:   cfg.Captions.VideoHeight,
	}
}

// Deps wires the orchestrator's collaborators.
type Deps struct {
	Store      Store
	Personas   Personas
	Templates  Templates
	Keys       Keys
	Generator  Generator
	Narrator   Narrator
	Compositor Compositor
	Assets     AssetWriter
	Notifier   notifications.Service
	Logger     *slog.Logger
	Defaults   Defaults
	Clock      func() time.Time
}

// Orchestrator sequences campaign steps.
type Orchestrator struct {
	store      Store
	personas   Personas
	templates  Templates
	keys       Keys
	generator  Generator
	narrator   Narrator
	compositor Compositor
	assets     AssetWriter
	notifier   notifications.Service
	logger     *slog.Logger
	defaults   Defaults
	now        func() time.Time
	exec       *stepexec.Executor
}

// New constructs an orchestrator.
func New(deps Deps) *Orchestrator {
	now := deps.Clock
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	logger := deps.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	notifier := deps.Notifier
	if notifier == nil {
		notifier = notifications.NewService(nil)
	}
	return &Orchestrator{
		store:      deps.Store,
		personas:   deps.Personas,
		templates:  deps.Templates,
		keys:       deps.Keys,
		generator:  deps.Generator,
		narrator:   deps.Narrator,
		compositor: deps.Compositor,
		assets:     deps.Assets,
		notifier:   notifier,
		logger:     logging.NewComponentLogger(logger, "pipeline"),
		defaults:   deps.Defaults,
		now:        now,
		exec:       stepexec.New(logger, stepexec.WithClock(now)),
	}
}

// Run is a prepared execution: the campaign has been moved to running and
// every input the steps share has been resolved.
type Run struct {
	Number       int
	UserID       string
	Campaign     *campaign.Campaign
	Persona      *campaign.Persona
	Template     *campaign.Template
	Variables    map[string]string
	Options      campaign.ExecuteOptions
	Steps        []campaign.Step
	ReplicateKey string
}

// Execute prepares and runs a campaign synchronously.
func (o *Orchestrator) Execute(ctx context.Context, userID, campaignID string, opts campaign.ExecuteOptions) (*campaign.Campaign, error) {
	run, err := o.Prepare(ctx, userID, campaignID, opts)
	if err != nil {
		return nil, err
	}
	return o.RunSteps(ctx, run)
}

// Prepare validates everything that must hold before any step runs and
// begins a new run. Errors returned here leave the campaign untouched.
func (o *Orchestrator) Prepare(ctx context.Context, userID, campaignID string, opts campaign.ExecuteOptions) (*Run, error) {
	current, err := o.store.GetCampaign(ctx, campaignID)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "pipeline", "load campaign", "", err)
	}
	if current == nil || current.UserID != userID {
		return nil, services.Wrap(services.ErrNotFound, "pipeline", "load campaign", "campaign not found", nil)
	}
	if !current.Status.Executable() {
		return nil, services.Wrap(services.ErrConflict, "pipeline", "begin run", "campaign already running", store.ErrAlreadyRunning)
	}

	tmpl, err := o.templates.Get(ctx, current.TemplateID)
	if err != nil {
		return nil, err
	}
	persona, err := o.personas.Get(ctx, userID, current.PersonaID)
	if err != nil {
		return nil, err
	}

	key, err := o.keys.Get(ctx, userID, apikeys.ProviderReplicate)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "pipeline", "load api key", "", err)
	}
	if strings.TrimSpace(key) == "" {
		return nil, services.Wrap(services.ErrConfiguration, "", "", "Replicate API key not configured", nil)
	}

	number, err := o.store.BeginRun(ctx, current.ID)
	switch {
	case errors.Is(err, store.ErrAlreadyRunning):
		return nil, services.Wrap(services.ErrConflict, "pipeline", "begin run", "campaign already running", err)
	case errors.Is(err, sql.ErrNoRows):
		return nil, services.Wrap(services.ErrNotFound, "pipeline", "begin run", "campaign not found", err)
	case err != nil:
		return nil, services.Wrap(services.ErrTransient, "pipeline", "begin run", "", err)
	}

	if started, err := o.store.GetCampaign(ctx, current.ID); err == nil && started != nil {
		current = started
	}

	return &Run{
		Number:       number,
		UserID:       userID,
		Campaign:     current,
		Persona:      persona,
		Template:     tmpl,
		Variables:    prompt.WithDefaults(tmpl.Variables, current.Variables),
		Options:      opts,
		Steps:        campaign.OrderSteps(opts.Steps),
		ReplicateKey: key,
	}, nil
}

// RunSteps executes the prepared steps in order, records one log entry per
// step, stores the final status and returns the reloaded campaign.
func (o *Orchestrator) RunSteps(ctx context.Context, run *Run) (*campaign.Campaign, error) {
	id := run.Campaign.ID
	ctx = services.WithCampaignID(ctx, id)
	ctx = services.WithUserID(ctx, run.UserID)
	if run.Campaign.BatchID != "" {
		ctx = services.WithBatchID(ctx, run.Campaign.BatchID)
	}
	logger := logging.WithContext(ctx, o.logger)
	persistCtx := context.WithoutCancel(ctx)

	steps := make([]string, 0, len(run.Steps))
	for _, step := range run.Steps {
		steps = append(steps, string(step))
	}
	logger.Info("campaign run started",
		logging.String(logging.FieldEventType, "run_start"),
		logging.Int("run", run.Number),
		logging.String("steps", strings.Join(steps, ",")),
	)

	entries := make([]campaign.LogEntry, 0, len(run.Steps))
	for _, step := range run.Steps {
		entry := o.exec.Execute(ctx, run.Number, step, func(stepCtx context.Context) (stepexec.Outcome, error) {
			current, err := o.reload(stepCtx, id)
			if err != nil {
				return stepexec.Outcome{}, err
			}
			return o.runStep(stepCtx, run, current, step)
		})
		if err := o.store.AppendLog(persistCtx, id, entry); err != nil {
			logging.WarnWithContext(logger, "execution log append failed", "log_append_failed",
				logging.String(logging.FieldStep, string(step)),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check database access"),
				logging.String(logging.FieldImpact, "step outcome missing from execution log"),
			)
		}
		entries = append(entries, entry)
	}

	status := campaign.FinalStatus(entries)
	summary := campaign.ErrorSummary(entries)
	if err := o.store.FinishRun(persistCtx, id, status, summary); err != nil {
		return nil, services.Wrap(services.ErrTransient, "pipeline", "finish run", "", err)
	}

	counts := countEntries(entries)
	eventType := "run_complete"
	if status == campaign.StatusFailed {
		eventType = "run_failed"
	}
	logger.Info("campaign run finished",
		logging.String(logging.FieldEventType, eventType),
		logging.String("status", string(status)),
		logging.Int("completed", counts[campaign.EntryCompleted]),
		logging.Int("failed", counts[campaign.EntryFailed]),
		logging.Int("skipped", counts[campaign.EntrySkipped]),
	)

	final, err := o.store.GetCampaign(persistCtx, id)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "pipeline", "reload campaign", "", err)
	}
	if final == nil {
		return nil, services.Wrap(services.ErrNotFound, "pipeline", "reload campaign", "campaign deleted during run", nil)
	}
	o.notifyFinished(persistCtx, final, counts)
	return final, nil
}

func (o *Orchestrator) runStep(ctx context.Context, run *Run, current *campaign.Campaign, step campaign.Step) (stepexec.Outcome, error) {
	switch step {
	case campaign.StepImage:
		return o.imageStep(ctx, run)
	case campaign.StepVideo:
		return o.videoStep(ctx, run, current)
	case campaign.StepAudio:
		return o.audioStep(ctx, run)
	case campaign.StepLipSync:
		return o.lipSyncStep(ctx, run, current)
	case campaign.StepCompose:
		return o.composeStep(ctx, run, current)
	case campaign.StepCaptions:
		return o.captionsStep(ctx, run, current)
	}
	return stepexec.Outcome{}, services.Wrap(services.ErrValidation, "", "", "unknown step "+string(step), nil)
}

func (o *Orchestrator) reload(ctx context.Context, id string) (*campaign.Campaign, error) {
	current, err := o.store.GetCampaign(ctx, id)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "pipeline", "reload campaign", "", err)
	}
	if current == nil {
		return nil, services.Wrap(services.ErrNotFound, "pipeline", "reload campaign", "campaign not found", nil)
	}
	return current, nil
}

func (o *Orchestrator) save(ctx context.Context, id string, patch store.CampaignPatch) error {
	if err := o.store.UpdateCampaign(ctx, id, patch); err != nil {
		return services.Wrap(services.ErrTransient, "pipeline", "persist outputs", "", err)
	}
	return nil
}

func (o *Orchestrator) notifyFinished(ctx context.Context, c *campaign.Campaign, counts map[campaign.EntryStatus]int) {
	// Batch members are reported once per batch.
	if c.BatchID != "" {
		return
	}
	event := notifications.EventCampaignCompleted
	if c.Status == campaign.StatusFailed {
		event = notifications.EventCampaignFailed
	}
	err := o.notifier.Publish(ctx, event, notifications.Payload{
		"name":    c.Name,
		"error":   c.ErrorMessage,
		"skipped": counts[campaign.EntrySkipped],
	})
	if err != nil {
		o.logger.Debug("campaign notification failed", logging.Error(err))
	}
}

func countEntries(entries []campaign.LogEntry) map[campaign.EntryStatus]int {
	counts := make(map[campaign.EntryStatus]int, 3)
	for _, entry := range entries {
		counts[entry.Status]++
	}
	return counts
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func firstPositive(values ...int) int {
	for _, value := range values {
		if value > 0 {
			return value
		}
	}
	return 0
}
