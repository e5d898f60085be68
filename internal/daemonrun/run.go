package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"reelsmith/internal/config"
	"reelsmith/internal/daemon"
	"reelsmith/internal/logging"
	"reelsmith/internal/store"
)

// ShutdownTimeout bounds how long in-flight runs may finish after a signal.
const ShutdownTimeout = 30 * time.Second

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
}

// PIDPath returns the pid file written while the daemon runs.
func PIDPath(cfg *config.Config) string {
	return filepath.Join(cfg.Paths.LogDir, "reelsmith.pid")
}

// LogPath returns the stable link to the current daemon log.
func LogPath(cfg *config.Config) string {
	return filepath.Join(cfg.Paths.LogDir, logPointerName)
}

const logPointerName = "reelsmith.log"

// Run starts the reelsmith daemon and blocks until ctx ends or the process
// receives SIGINT or SIGTERM.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}

	runID := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("reelsmith-%s.log", runID))
	level := opts.LogLevel
	if strings.TrimSpace(level) == "" {
		level = cfg.Logging.Level
	}
	logger, err := logging.New(logging.Options{
		Level:       level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{"stdout", logPath},
		Development: opts.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update reelsmith.log link: %v\n", err)
	}
	logDependencySnapshot(logger, cfg)

	pidPath := PIDPath(cfg)
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	st, err := store.Open(cfg)
	if err != nil {
		logger.Error("open campaign store", logging.Error(err))
		return err
	}

	d, err := daemon.New(cfg, st, logger)
	if err != nil {
		_ = st.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		logger.Error("daemon start failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "daemon_start_failed"),
			logging.String(logging.FieldErrorHint, "check that no other reelsmith daemon holds the lock and the API bind address is free"),
		)
		return err
	}

	<-signalCtx.Done()
	logger.Info("reelsmith daemon shutting down",
		logging.String(logging.FieldEventType, "daemon_shutdown"),
		logging.Duration("grace_period", ShutdownTimeout),
	)
	stopCtx, stopCancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer stopCancel()
	if err := d.Stop(stopCtx); err != nil {
		logging.WarnWithContext(logger, "runs canceled during shutdown", "shutdown_drain_incomplete",
			logging.Error(err),
			logging.String(logging.FieldImpact, "canceled campaigns were recorded as failed"),
		)
	}
	return nil
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, logPointerName)
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logDependencySnapshot(logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	ffmpeg := cfg.Composition.FFmpegBinary
	logger.Info("dependency snapshot",
		logging.String(logging.FieldEventType, "dependency_snapshot"),
		logging.Bool("replicate_key_present", strings.TrimSpace(cfg.Generation.APIToken) != ""),
		logging.Bool("elevenlabs_key_present", strings.TrimSpace(cfg.Narration.APIKey) != ""),
		logging.Bool("refiner_key_present", strings.TrimSpace(cfg.RefinerLLM().APIKey) != ""),
		logging.Bool("composition_enabled", cfg.Composition.Enabled),
		logging.Bool("ffmpeg_available", binaryAvailable(ffmpeg)),
		logging.String("ffmpeg_binary", ffmpeg),
		logging.String("templates_dir", cfg.Paths.TemplatesDir),
		logging.String("api_bind", cfg.Paths.APIBind),
	)
}

func binaryAvailable(name string) bool {
	if strings.TrimSpace(name) == "" {
		return false
	}
	_, err := exec.LookPath(name)
	return err == nil
}
