package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"reelsmith/internal/campaign"
	"reelsmith/internal/logging"
	"reelsmith/internal/notifications"
	"reelsmith/internal/prompt"
	"reelsmith/internal/services"
	"reelsmith/internal/store"
)

const defaultMaxConcurrent = 2

// Store persists batches and their member campaigns.
type Store interface {
	CreateBatch(ctx context.Context, b *campaign.Batch, members []*campaign.Campaign) (*campaign.Batch, error)
	GetBatch(ctx context.Context, id string) (*campaign.Batch, error)
	ListBatches(ctx context.Context, userID string) ([]*campaign.Batch, error)
	UpdateBatch(ctx context.Context, b *campaign.Batch) error
	BatchMembers(ctx context.Context, batchID string) ([]*campaign.Campaign, error)
	TransitionStatus(ctx context.Context, id string, from, to campaign.Status, errorMessage string) error
}

// Personas resolves a persona owned by a user.
type Personas interface {
	Get(ctx context.Context, userID, personaID string) (*campaign.Persona, error)
}

// Templates resolves a template by id.
type Templates interface {
	Get(ctx context.Context, templateID string) (*campaign.Template, error)
}

// Runner executes one campaign synchronously.
type Runner interface {
	Run(ctx context.Context, userID, campaignID string, opts campaign.ExecuteOptions) (*campaign.Campaign, error)
}

// Item is one member of a batch.
type Item struct {
	Name      string            `json:"name,omitempty"`
	Variables map[string]string `json:"variables"`
}

// CreateRequest describes a new batch. BaseVariables are merged under every
// item's variables.
type CreateRequest struct {
	Name            string            `json:"name"`
	TemplateID      string            `json:"templateId"`
	PersonaID       string            `json:"personaId"`
	BaseVariables   map[string]string `json:"baseVariables,omitempty"`
	Items           []Item            `json:"items"`
	UseLipSync      bool              `json:"useLipSync,omitempty"`
	CaptionPresetID string            `json:"captionPresetId,omitempty"`
}

// Deps wires a Service.
type Deps struct {
	Store         Store
	Personas      Personas
	Templates     Templates
	Runner        Runner
	Notifier      notifications.Service
	Logger        *slog.Logger
	MaxConcurrent int
	Clock         func() time.Time
}

// Service manages batches.
type Service struct {
	store     Store
	personas  Personas
	templates Templates
	runner    Runner
	notifier  notifications.Service
	logger    *slog.Logger
	limit     int
	now       func() time.Time

	// mu serializes status checks against status writes.
	mu sync.Mutex

	base   context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New builds a batch service.
func New(deps Deps) *Service {
	limit := deps.MaxConcurrent
	if limit <= 0 {
		limit = defaultMaxConcurrent
	}
	notifier := deps.Notifier
	if notifier == nil {
		notifier = notifications.NewService(nil)
	}
	now := deps.Clock
	if now == nil {
		now = time.Now
	}
	base, cancel := context.WithCancel(context.Background())
	return &Service{
		store:     deps.Store,
		personas:  deps.Personas,
		templates: deps.Templates,
		runner:    deps.Runner,
		notifier:  notifier,
		logger:    logging.NewComponentLogger(deps.Logger, "batch"),
		limit:     limit,
		now:       now,
		base:      base,
		cancel:    cancel,
	}
}

// Create validates every variable set and stores the batch with its queued
// member campaigns.
func (s *Service) Create(ctx context.Context, userID string, req CreateRequest) (*campaign.Batch, []*campaign.Campaign, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, nil, services.Wrap(services.ErrValidation, "batch", "create", "name is required", nil)
	}
	if len(req.Items) == 0 {
		return nil, nil, services.Wrap(services.ErrValidation, "batch", "create", "at least one item is required", nil)
	}
	persona, err := s.personas.Get(ctx, userID, req.PersonaID)
	if err != nil {
		return nil, nil, err
	}
	tmpl, err := s.templates.Get(ctx, req.TemplateID)
	if err != nil {
		return nil, nil, err
	}

	var problems []string
	members := make([]*campaign.Campaign, 0, len(req.Items))
	for i, item := range req.Items {
		variables := mergeVariables(req.BaseVariables, item.Variables)
		for _, problem := range prompt.ValidateVariables(tmpl.Variables, variables) {
			problems = append(problems, fmt.Sprintf("item %d: %s", i+1, problem))
		}
		memberName := strings.TrimSpace(item.Name)
		if memberName == "" {
			memberName = fmt.Sprintf("%s #%d", name, i+1)
		}
		members = append(members, &campaign.Campaign{
			UserID:          userID,
			Name:            memberName,
			PersonaID:       persona.ID,
			TemplateID:      tmpl.ID,
			Variables:       variables,
			UseLipSync:      req.UseLipSync,
			CaptionPresetID: strings.TrimSpace(req.CaptionPresetID),
		})
	}
	if len(problems) > 0 {
		return nil, nil, services.Wrap(services.ErrValidation, "batch", "create", strings.Join(problems, "; "), nil)
	}

	b, err := s.store.CreateBatch(ctx, &campaign.Batch{
		UserID:     userID,
		Name:       name,
		TemplateID: tmpl.ID,
		PersonaID:  persona.ID,
		Status:     campaign.StatusQueued,
	}, members)
	if err != nil {
		return nil, nil, services.Wrap(services.ErrTransient, "batch", "create", "", err)
	}
	logging.WithContext(services.WithBatchID(ctx, b.ID), s.logger).Info("batch created",
		logging.String(logging.FieldEventType, "batch_created"),
		logging.Int("members", len(members)),
	)
	return b, members, nil
}

// Get returns a batch owned by userID with its members.
func (s *Service) Get(ctx context.Context, userID, batchID string) (*campaign.Batch, []*campaign.Campaign, error) {
	b, err := s.load(ctx, userID, batchID)
	if err != nil {
		return nil, nil, err
	}
	members, err := s.store.BatchMembers(ctx, b.ID)
	if err != nil {
		return nil, nil, services.Wrap(services.ErrTransient, "batch", "members", "", err)
	}
	return b, members, nil
}

// List returns the user's batches, newest first.
func (s *Service) List(ctx context.Context, userID string) ([]*campaign.Batch, error) {
	batches, err := s.store.ListBatches(ctx, userID)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "batch", "list", "", err)
	}
	if batches == nil {
		batches = []*campaign.Batch{}
	}
	return batches, nil
}

// Execute runs a queued batch to completion and returns its final state.
func (s *Service) Execute(ctx context.Context, userID, batchID string, opts campaign.ExecuteOptions) (*campaign.Batch, error) {
	b, err := s.begin(ctx, userID, batchID)
	if err != nil {
		return nil, err
	}
	return s.run(ctx, b, opts)
}

// Start moves a queued batch to running and executes it in the background.
func (s *Service) Start(ctx context.Context, userID, batchID string, opts campaign.ExecuteOptions) (*campaign.Batch, error) {
	b, err := s.begin(ctx, userID, batchID)
	if err != nil {
		return nil, err
	}
	snapshot := *b
	runCtx := s.base
	if requestID, ok := services.RequestIDFromContext(ctx); ok {
		runCtx = services.WithRequestID(runCtx, requestID)
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if _, err := s.run(runCtx, b, opts); err != nil {
			logging.ErrorWithContext(logging.WithContext(services.WithBatchID(runCtx, b.ID), s.logger),
				"background batch failed", "batch_error",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "inspect member campaigns and the database"),
			)
		}
	}()
	return &snapshot, nil
}

// Cancel fails a queued batch and all of its members.
func (s *Service) Cancel(ctx context.Context, userID, batchID string) (*campaign.Batch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := s.load(ctx, userID, batchID)
	if err != nil {
		return nil, err
	}
	if b.Status != campaign.StatusQueued {
		return nil, services.Wrap(services.ErrConflict, "batch", "cancel",
			fmt.Sprintf("cannot cancel batch with status %s", b.Status), nil)
	}
	members, err := s.store.BatchMembers(ctx, b.ID)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "batch", "members", "", err)
	}
	for _, member := range members {
		err := s.store.TransitionStatus(ctx, member.ID, campaign.StatusQueued, campaign.StatusFailed, campaign.CancelReason)
		if err != nil && !errors.Is(err, store.ErrInvalidTransition) {
			return nil, services.Wrap(services.ErrTransient, "batch", "cancel member", "", err)
		}
	}
	now := s.now()
	b.Status = campaign.StatusFailed
	b.ErrorMessage = campaign.CancelReason
	b.Failed = b.Total - b.Completed
	b.CompletedAt = &now
	if err := s.store.UpdateBatch(ctx, b); err != nil {
		return nil, services.Wrap(services.ErrTransient, "batch", "cancel", "", err)
	}
	logging.WithContext(services.WithBatchID(ctx, b.ID), s.logger).Info("batch canceled",
		logging.String(logging.FieldEventType, "batch_canceled"),
	)
	return b, nil
}

// Wait blocks until background executions finish.
func (s *Service) Wait() {
	s.wg.Wait()
}

// Shutdown waits for background executions; when ctx ends first they are
// canceled and Shutdown still waits for them to record their state.
func (s *Service) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.cancel()
		return nil
	case <-ctx.Done():
		s.cancel()
		<-done
		return ctx.Err()
	}
}

func (s *Service) begin(ctx context.Context, userID, batchID string) (*campaign.Batch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := s.load(ctx, userID, batchID)
	if err != nil {
		return nil, err
	}
	if b.Status != campaign.StatusQueued {
		return nil, services.Wrap(services.ErrConflict, "batch", "execute",
			fmt.Sprintf("cannot execute batch with status %s", b.Status), nil)
	}
	now := s.now()
	b.Status = campaign.StatusRunning
	b.StartedAt = &now
	if err := s.store.UpdateBatch(ctx, b); err != nil {
		return nil, services.Wrap(services.ErrTransient, "batch", "start", "", err)
	}
	return b, nil
}

func (s *Service) run(ctx context.Context, b *campaign.Batch, opts campaign.ExecuteOptions) (*campaign.Batch, error) {
	ctx = services.WithBatchID(ctx, b.ID)
	logger := logging.WithContext(ctx, s.logger)
	members, err := s.store.BatchMembers(ctx, b.ID)
	if err != nil {
		return nil, s.abort(ctx, b, err)
	}
	logger.Info("batch started",
		logging.String(logging.FieldEventType, "batch_start"),
		logging.Int("members", len(members)),
		logging.Int("max_concurrent", s.limit),
	)

	var (
		mu       sync.Mutex
		progress = *b
		failures []string
	)
	record := func(member *campaign.Campaign, final *campaign.Campaign, runErr error) {
		mu.Lock()
		defer mu.Unlock()
		switch {
		case runErr != nil:
			progress.Failed++
			failures = append(failures, member.Name+": "+services.Details(runErr).Message)
		case final.Status == campaign.StatusFailed:
			progress.Failed++
		default:
			progress.Completed++
		}
		snapshot := progress
		if err := s.store.UpdateBatch(context.WithoutCancel(ctx), &snapshot); err != nil {
			logger.Warn("batch progress not saved",
				logging.Error(err),
				logging.String(logging.FieldEventType, "batch_progress_failed"),
				logging.String(logging.FieldErrorHint, "check database access"),
				logging.String(logging.FieldImpact, "batch counters lag until the next update"),
			)
		}
	}

	group := new(errgroup.Group)
	group.SetLimit(s.limit)
	for _, member := range members {
		if member.Status == campaign.StatusFailed && member.ErrorMessage == campaign.CancelReason {
			record(member, member, nil)
			continue
		}
		group.Go(func() error {
			final, runErr := s.runner.Run(ctx, b.UserID, member.ID, opts)
			record(member, final, runErr)
			return nil
		})
	}
	_ = group.Wait()

	started := s.now()
	if b.StartedAt != nil {
		started = *b.StartedAt
	}
	completedAt := s.now()
	progress.CompletedAt = &completedAt
	progress.Status = campaign.StatusCompleted
	if progress.Completed == 0 {
		progress.Status = campaign.StatusFailed
	}
	progress.ErrorMessage = ""
	if progress.Failed > 0 {
		progress.ErrorMessage = fmt.Sprintf("%d of %d campaigns failed", progress.Failed, progress.Total)
		if len(failures) > 0 {
			progress.ErrorMessage += ": " + strings.Join(failures, "; ")
		}
	}
	if err := s.store.UpdateBatch(context.WithoutCancel(ctx), &progress); err != nil {
		return nil, services.Wrap(services.ErrTransient, "batch", "finish", "", err)
	}
	*b = progress

	logger.Info("batch finished",
		logging.String(logging.FieldEventType, "batch_complete"),
		logging.String("status", string(progress.Status)),
		logging.Int("completed", progress.Completed),
		logging.Int("failed", progress.Failed),
	)
	if err := s.notifier.Publish(context.WithoutCancel(ctx), notifications.EventBatchCompleted, notifications.Payload{
		"name":     progress.Name,
		"total":    progress.Total,
		"failed":   progress.Failed,
		"duration": completedAt.Sub(started),
	}); err != nil {
		logger.Debug("batch notification failed", logging.Error(err))
	}
	return &progress, nil
}

func (s *Service) abort(ctx context.Context, b *campaign.Batch, cause error) error {
	now := s.now()
	b.Status = campaign.StatusFailed
	b.ErrorMessage = services.Details(cause).Message
	b.CompletedAt = &now
	if err := s.store.UpdateBatch(context.WithoutCancel(ctx), b); err != nil {
		return errors.Join(cause, err)
	}
	return services.Wrap(services.ErrTransient, "batch", "run", "", cause)
}

func (s *Service) load(ctx context.Context, userID, batchID string) (*campaign.Batch, error) {
	b, err := s.store.GetBatch(ctx, batchID)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "batch", "load", "", err)
	}
	if b == nil || b.UserID != userID {
		return nil, services.Wrap(services.ErrNotFound, "", "", "batch not found", nil)
	}
	return b, nil
}

func mergeVariables(base, overrides map[string]string) map[string]string {
	merged := make(map[string]string, len(base)+len(overrides))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range overrides {
		merged[k] = v
	}
	return merged
}
