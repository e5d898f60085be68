package catalog

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"reelsmith/internal/logging"
)

const defaultDebounce = 500 * time.Millisecond

// Watcher re-imports a catalog directory after files in it change. Bursts of
// events for the same file are collapsed into one import.
type Watcher struct {
	dir      string
	importer *Importer
	logger   *slog.Logger
	debounce time.Duration
	onImport func(path string, result Result, err error)

	mu      sync.Mutex
	pending map[string]time.Time
	watcher *fsnotify.Watcher
	cancel  context.CancelFunc
	done    chan struct{}
}

// WatcherOption customizes a Watcher.
type WatcherOption func(*Watcher)

// WithDebounce overrides the quiet period before a changed file is imported.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithImportHook registers a callback invoked after every import attempt.
func WithImportHook(fn func(path string, result Result, err error)) WatcherOption {
	return func(w *Watcher) {
		w.onImport = fn
	}
}

// NewWatcher watches dir and feeds changed files to importer as system
// catalog entries.
func NewWatcher(dir string, importer *Importer, logger *slog.Logger, opts ...WatcherOption) *Watcher {
	w := &Watcher{
		dir:      dir,
		importer: importer,
		logger:   logging.NewComponentLogger(logger, "catalog"),
		debounce: defaultDebounce,
		pending:  make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start begins watching. It returns once the directory is registered.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.watcher != nil {
		return errors.New("catalog watcher already running")
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := fw.Add(w.dir); err != nil {
		fw.Close()
		return err
	}
	runCtx, cancel := context.WithCancel(ctx)
	w.watcher = fw
	w.cancel = cancel
	w.done = make(chan struct{})
	go w.run(runCtx, fw, w.done)

	w.logger.Info("watching catalog directory",
		logging.String(logging.FieldEventType, "catalog_watch_started"),
		logging.String("templates_dir", w.dir),
	)
	return nil
}

// Stop ends watching and waits for the event loop to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	fw, cancel, done := w.watcher, w.cancel, w.done
	w.watcher, w.cancel, w.done = nil, nil, nil
	w.mu.Unlock()
	if fw == nil {
		return
	}
	cancel()
	<-done
	if err := fw.Close(); err != nil {
		w.logger.Debug("close catalog watcher", logging.Error(err))
	}
}

func (w *Watcher) run(ctx context.Context, fw *fsnotify.Watcher, done chan struct{}) {
	defer close(done)

	tick := w.debounce / 5
	if tick <= 0 {
		tick = 10 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-fw.Events:
			if !ok {
				return
			}
			w.record(event)
		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			logging.WarnWithContext(w.logger, "catalog watcher error", "catalog_watch_error",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check the templates directory permissions"),
				logging.String(logging.FieldImpact, "template edits may not be picked up until restart"),
			)
		case <-ticker.C:
			w.flush(ctx)
		}
	}
}

func (w *Watcher) record(event fsnotify.Event) {
	if !isCatalogFile(filepath.Base(event.Name)) {
		return
	}
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return
	}
	w.mu.Lock()
	w.pending[event.Name] = time.Now()
	w.mu.Unlock()
}

func (w *Watcher) flush(ctx context.Context) {
	now := time.Now()
	var ready []string
	w.mu.Lock()
	for path, seen := range w.pending {
		if now.Sub(seen) >= w.debounce {
			ready = append(ready, path)
			delete(w.pending, path)
		}
	}
	w.mu.Unlock()

	for _, path := range ready {
		result, err := w.importer.ImportFile(ctx, path, "")
		if err != nil {
			logging.WarnWithContext(w.logger, "catalog import failed", "catalog_import_failed",
				logging.String("file", filepath.Base(path)),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "fix the YAML file; it is re-imported on the next save"),
			)
		} else {
			w.logger.Info("catalog file imported",
				logging.String(logging.FieldEventType, "catalog_imported"),
				logging.String("file", filepath.Base(path)),
				logging.Int("templates", len(result.Templates)),
				logging.Int("personas", len(result.Personas)),
			)
		}
		if w.onImport != nil {
			w.onImport(path, result, err)
		}
	}
}
