package pipeline

import (
	"context"
	"log/slog"
	"slices"
	"sync"

	"reelsmith/internal/campaign"
	"reelsmith/internal/logging"
	"reelsmith/internal/services"
)

// Runner tracks in-flight campaign executions. It refuses a second run of a
// campaign that is already executing in this process and lets the daemon
// drain outstanding runs on shutdown.
type Runner struct {
	orch   *Orchestrator
	logger *slog.Logger

	base   context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	active map[string]struct{}
	closed bool
	wg     sync.WaitGroup
}

// NewRunner wraps an orchestrator.
func NewRunner(orch *Orchestrator, logger *slog.Logger) *Runner {
	base, cancel := context.WithCancel(context.Background())
	return &Runner{
		orch:   orch,
		logger: logging.NewComponentLogger(logger, "runner"),
		base:   base,
		cancel: cancel,
		active: make(map[string]struct{}),
	}
}

// Start prepares a run and executes its steps in the background. The
// returned campaign is the running snapshot taken right after the run began.
func (r *Runner) Start(ctx context.Context, userID, campaignID string, opts campaign.ExecuteOptions) (*campaign.Campaign, error) {
	if err := r.acquire(campaignID); err != nil {
		return nil, err
	}
	run, err := r.orch.Prepare(ctx, userID, campaignID, opts)
	if err != nil {
		r.release(campaignID)
		return nil, err
	}

	runCtx := r.base
	if requestID, ok := services.RequestIDFromContext(ctx); ok {
		runCtx = services.WithRequestID(runCtx, requestID)
	}

	go func() {
		defer r.release(campaignID)
		if _, err := r.orch.RunSteps(runCtx, run); err != nil {
			logging.ErrorWithContext(logging.WithContext(services.WithCampaignID(runCtx, campaignID), r.logger),
				"background campaign run failed", "run_error",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check database access and re-run the campaign"),
			)
		}
	}()
	return run.Campaign, nil
}

// Run executes a campaign synchronously under the same guard as Start.
func (r *Runner) Run(ctx context.Context, userID, campaignID string, opts campaign.ExecuteOptions) (*campaign.Campaign, error) {
	if err := r.acquire(campaignID); err != nil {
		return nil, err
	}
	defer r.release(campaignID)
	return r.orch.Execute(ctx, userID, campaignID, opts)
}

// Active lists the campaigns currently executing.
func (r *Runner) Active() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.active))
	for id := range r.active {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Running reports whether campaignID is executing.
func (r *Runner) Running(campaignID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.active[campaignID]
	return ok
}

// Wait blocks until every started run has finished.
func (r *Runner) Wait() {
	r.wg.Wait()
}

// Shutdown stops accepting runs and waits for in-flight ones. When ctx ends
// first, outstanding runs are canceled and Shutdown still waits for them to
// record their final status.
func (r *Runner) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.cancel()
		return nil
	case <-ctx.Done():
		r.cancel()
		<-done
		return ctx.Err()
	}
}

func (r *Runner) acquire(campaignID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return services.Wrap(services.ErrConflict, "runner", "start", "daemon shutting down", nil)
	}
	if _, ok := r.active[campaignID]; ok {
		return services.Wrap(services.ErrConflict, "pipeline", "begin run", "campaign already running", nil)
	}
	r.active[campaignID] = struct{}{}
	r.wg.Add(1)
	return nil
}

func (r *Runner) release(campaignID string) {
	r.mu.Lock()
	delete(r.active, campaignID)
	r.mu.Unlock()
	r.wg.Done()
}
