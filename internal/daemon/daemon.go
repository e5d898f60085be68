package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"

	"github.com/gofrs/flock"

	"reelsmith/internal/api"
	"reelsmith/internal/apikeys"
	"reelsmith/internal/batch"
	"reelsmith/internal/catalog"
	"reelsmith/internal/config"
	"reelsmith/internal/logging"
	"reelsmith/internal/notifications"
	"reelsmith/internal/pipeline"
	"reelsmith/internal/preflight"
	"reelsmith/internal/refine"
	"reelsmith/internal/storage"
	"reelsmith/internal/store"
)

// InterruptedMessage is recorded on campaigns a previous daemon left running.
const InterruptedMessage = "interrupted: daemon restarted"

// Daemon owns the services behind the HTTP API and enforces single-instance
// execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *store.Store
	assets   *storage.Local
	notifier notifications.Service

	personas  *catalog.Personas
	templates *catalog.Templates
	importer  *catalog.Importer
	watcher   *catalog.Watcher
	keys      *apikeys.Service
	refiner   *refine.Refiner
	runner    *pipeline.Runner
	batches   *batch.Service
	campaigns *api.CampaignService

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	stopped atomic.Bool
	cancel  context.CancelFunc
	api     *apiServer
}

// Option customizes daemon wiring, mostly for tests.
type Option func(*options)

type options struct {
	orchestrator *pipeline.Orchestrator
	refineOpts   []refine.Option
}

// WithOrchestrator replaces the production pipeline orchestrator.
func WithOrchestrator(orch *pipeline.Orchestrator) Option {
	return func(o *options) { o.orchestrator = orch }
}

// WithRefinerOptions passes options to the prompt refiner.
func WithRefinerOptions(opts ...refine.Option) Option {
	return func(o *options) { o.refineOpts = append(o.refineOpts, opts...) }
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, st *store.Store, logger *slog.Logger, opts ...Option) (*Daemon, error) {
	if cfg == nil || st == nil || logger == nil {
		return nil, errors.New("daemon requires config, store, and logger")
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	assets, err := storage.NewLocal(cfg.Paths.AssetsDir, cfg.AssetBaseURL(), nil)
	if err != nil {
		return nil, err
	}
	notifier := notifications.NewService(cfg)

	orch := o.orchestrator
	if orch == nil {
		orch = pipeline.NewFromConfig(cfg, st, assets, notifier, logger)
	}
	runner := pipeline.NewRunner(orch, logger)

	personas := catalog.NewPersonas(st)
	templates := catalog.NewTemplates(st)
	importer := catalog.NewImporter(st)
	keys := apikeys.New(st, cfg)

	d := &Daemon{
		cfg:       cfg,
		logger:    logging.NewComponentLogger(logger, "daemon"),
		store:     st,
		assets:    assets,
		notifier:  notifier,
		personas:  personas,
		templates: templates,
		importer:  importer,
		keys:      keys,
		refiner:   refine.New(cfg, keys, logger, o.refineOpts...),
		runner:    runner,
		batches: batch.New(batch.Deps{
			Store:         st,
			Personas:      personas,
			Templates:     templates,
			Runner:        runner,
			Notifier:      notifier,
			Logger:        logger,
			MaxConcurrent: cfg.Batch.MaxConcurrent,
		}),
		campaigns: api.NewCampaignService(st, personas, templates, assets, runner, logger),
		lockPath:  cfg.LockPath(),
		lock:      flock.New(cfg.LockPath()),
	}
	if dir := strings.TrimSpace(cfg.Paths.TemplatesDir); dir != "" {
		d.watcher = catalog.NewWatcher(dir, importer, logger)
	}
	d.api = newAPIServer(cfg, d, logger)
	return d, nil
}

// Start acquires the daemon lock, recovers interrupted runs, loads the
// template catalog and begins serving the API.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}
	if d.stopped.Load() {
		return errors.New("daemon already stopped")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another reelsmith daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.prepare(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return err
	}
	if err := d.api.start(runCtx); err != nil {
		cancel()
		d.stopWatcher()
		_ = d.lock.Unlock()
		return err
	}

	d.cancel = cancel
	d.running.Store(true)
	d.logger.Info("reelsmith daemon started",
		logging.String(logging.FieldEventType, "daemon_started"),
		logging.String("lock_path", d.lockPath),
	)
	return nil
}

func (d *Daemon) prepare(ctx context.Context) error {
	failed, err := d.store.FailInterrupted(ctx, InterruptedMessage)
	if err != nil {
		return fmt.Errorf("recover interrupted campaigns: %w", err)
	}
	if failed > 0 {
		logging.WarnWithContext(d.logger, "campaigns interrupted by restart marked failed", "runs_interrupted",
			logging.Int64("campaigns", failed),
			logging.String(logging.FieldImpact, "interrupted campaigns must be executed again"),
			logging.String(logging.FieldErrorHint, "re-run the campaigns with reelsmith campaign execute"),
		)
	}

	seeded, err := d.importer.LoadSeed(ctx)
	if err != nil {
		return fmt.Errorf("load seed templates: %w", err)
	}
	d.logger.Info("seed templates loaded",
		logging.String(logging.FieldEventType, "seed_loaded"),
		logging.Int("templates", len(seeded.Templates)),
	)

	if d.watcher != nil {
		dir := d.cfg.Paths.TemplatesDir
		if imported, err := d.importer.ImportDir(ctx, dir, ""); err != nil {
			logging.WarnWithContext(d.logger, "template directory import failed", "catalog_import_failed",
				logging.String("templates_dir", dir),
				logging.Error(err),
				logging.String(logging.FieldImpact, "templates from this directory are unavailable until fixed"),
			)
		} else {
			d.logger.Info("template directory imported",
				logging.String(logging.FieldEventType, "catalog_imported"),
				logging.Int("templates", len(imported.Templates)),
				logging.Int("personas", len(imported.Personas)),
			)
		}
		if err := d.watcher.Start(ctx); err != nil {
			return fmt.Errorf("watch templates: %w", err)
		}
	}

	for _, result := range preflight.Failed(preflight.RunAll(ctx, d.cfg)) {
		logging.WarnWithContext(d.logger, "preflight check failed", "preflight_failed",
			logging.String("check", result.Name),
			logging.String("detail", result.Detail),
		)
	}
	return nil
}

// Stop stops serving, drains in-flight runs until ctx ends and releases the
// daemon lock. Runs still executing when ctx ends are canceled and recorded
// as failed.
func (d *Daemon) Stop(ctx context.Context) error {
	if !d.running.CompareAndSwap(true, false) {
		return nil
	}
	d.stopped.Store(true)

	var drainErr error
	d.api.stop()
	if err := d.batches.Shutdown(ctx); err != nil {
		drainErr = err
	}
	if err := d.runner.Shutdown(ctx); err != nil {
		drainErr = err
	}
	d.stopWatcher()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.logger.Info("reelsmith daemon stopped", logging.String(logging.FieldEventType, "daemon_stopped"))
	return drainErr
}

func (d *Daemon) stopWatcher() {
	if d.watcher != nil {
		d.watcher.Stop()
	}
}

// Close stops the daemon and closes the store.
func (d *Daemon) Close() error {
	_ = d.Stop(context.Background())
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Addr returns the address the API listens on, or "" before Start.
func (d *Daemon) Addr() string {
	return d.api.addr()
}

// Status returns the current daemon status for userID.
func (d *Daemon) Status(ctx context.Context, userID string) api.DaemonStatus {
	status := api.DaemonStatus{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		DatabasePath: d.store.Path(),
		LockFilePath: d.lockPath,
		ActiveRuns:   d.runner.Active(),
	}
	if stats, err := d.store.CampaignStats(ctx, userID); err == nil {
		status.CampaignStats = api.MergeStatusCounts(stats)
	} else {
		d.logger.Warn("campaign stats unavailable", logging.Error(err))
	}
	if keys, err := d.keys.Statuses(ctx, userID); err == nil {
		status.Keys = keys
	}
	if health, err := d.assets.Health(); err == nil {
		status.Storage = &health
	}
	for _, dep := range preflight.CheckSystemDeps(ctx, d.cfg) {
		status.Dependencies = append(status.Dependencies, api.DependencyStatus{
			Name:        dep.Name,
			Command:     dep.Command,
			Description: dep.Description,
			Optional:    dep.Optional,
			Available:   dep.Available,
			Detail:      dep.Detail,
		})
	}
	if status.Dependencies == nil {
		status.Dependencies = []api.DependencyStatus{}
	}
	return status
}
