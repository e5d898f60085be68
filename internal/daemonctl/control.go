package daemonctl

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"reelsmith/internal/api"
	"reelsmith/internal/apikeys"
	"reelsmith/internal/config"
	"reelsmith/internal/daemonrun"
	"reelsmith/internal/preflight"
	"reelsmith/internal/store"
)

// LaunchOptions controls daemon process launch behavior.
type LaunchOptions struct {
	ConfigPath string
	LogLevel   string
}

type StartState string

const (
	StartStateStarted        StartState = "started"
	StartStateAlreadyRunning StartState = "already_running"
)

// StartResult captures daemon start orchestration state.
type StartResult struct {
	State    StartState
	Launched bool
	PID      int
}

// ErrDaemonNotRunning indicates the daemon API is unreachable.
var ErrDaemonNotRunning = errors.New("daemon not running")

// Launch starts a detached reelsmith daemon process.
func Launch(executablePath string, opts LaunchOptions) error {
	if strings.TrimSpace(executablePath) == "" {
		return fmt.Errorf("resolve executable: executable path is empty")
	}
	args := []string{"daemon"}
	if cfg := strings.TrimSpace(opts.ConfigPath); cfg != "" {
		args = append(args, "--config", cfg)
	}
	if level := strings.TrimSpace(opts.LogLevel); level != "" {
		args = append(args, "--log-level", level)
	}
	proc := exec.Command(executablePath, args...)
	proc.SysProcAttr = &unix.SysProcAttr{Setsid: true}
	if err := proc.Start(); err != nil {
		return fmt.Errorf("launch daemon: %w", err)
	}
	return proc.Process.Release()
}

// WaitForAPI polls the daemon until it reports running or timeout elapses.
func WaitForAPI(ctx context.Context, client *api.Client, timeout time.Duration) (api.DaemonStatus, error) {
	deadline := time.Now().Add(timeout)
	var lastErr error
	for time.Now().Before(deadline) {
		status, err := client.Status(ctx)
		if err == nil && status.Running {
			return status, nil
		}
		lastErr = err
		select {
		case <-ctx.Done():
			return api.DaemonStatus{}, ctx.Err()
		case <-time.After(200 * time.Millisecond):
		}
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("timeout waiting for daemon")
	}
	return api.DaemonStatus{}, fmt.Errorf("daemon failed to start: %w", lastErr)
}

// EnsureStarted launches the daemon unless its API already answers.
func EnsureStarted(ctx context.Context, client *api.Client, executablePath string, opts LaunchOptions, waitTimeout time.Duration) (StartResult, error) {
	if status, err := client.Status(ctx); err == nil && status.Running {
		return StartResult{State: StartStateAlreadyRunning, PID: status.PID}, nil
	}
	if err := Launch(executablePath, opts); err != nil {
		return StartResult{}, err
	}
	status, err := WaitForAPI(ctx, client, waitTimeout)
	if err != nil {
		return StartResult{}, err
	}
	return StartResult{State: StartStateStarted, Launched: true, PID: status.PID}, nil
}

// WaitForShutdown waits until the daemon API stops answering.
func WaitForShutdown(ctx context.Context, client *api.Client, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if _, err := client.Status(ctx); errors.Is(err, api.ErrDaemonUnavailable) {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(200 * time.Millisecond):
		}
	}
	return fmt.Errorf("daemon did not stop within %s", timeout)
}

// StopResult captures daemon stop/termination outcome.
type StopResult struct {
	PID        int
	ForcedKill bool
}

// RestartResult captures stop/start outcomes for daemon restart.
type RestartResult struct {
	WasRunning bool
	Stop       StopResult
	Start      StartResult
}

// StopAndTerminate sends SIGTERM to the daemon and SIGKILL when it is still
// answering after gracePeriod.
func StopAndTerminate(ctx context.Context, client *api.Client, cfg *config.Config, gracePeriod time.Duration) (StopResult, error) {
	status, err := client.Status(ctx)
	if errors.Is(err, api.ErrDaemonUnavailable) {
		return StopResult{}, ErrDaemonNotRunning
	}
	pid := status.PID
	if pid <= 0 && cfg != nil {
		pid = readPID(daemonrun.PIDPath(cfg))
	}
	if pid <= 0 {
		return StopResult{}, fmt.Errorf("unable to determine daemon pid")
	}
	if pid == os.Getpid() {
		return StopResult{}, fmt.Errorf("refusing to signal current process (pid %d)", pid)
	}
	if err := unix.Kill(pid, unix.SIGTERM); err != nil {
		return StopResult{}, fmt.Errorf("signal daemon process %d: %w", pid, err)
	}

	result := StopResult{PID: pid}
	if WaitForShutdown(ctx, client, gracePeriod) == nil {
		return result, nil
	}
	if err := unix.Kill(pid, unix.SIGKILL); err != nil && !errors.Is(err, unix.ESRCH) {
		return result, fmt.Errorf("kill daemon process %d: %w", pid, err)
	}
	if cfg != nil {
		_ = os.Remove(daemonrun.PIDPath(cfg))
	}
	result.ForcedKill = true
	return result, nil
}

// Restart stops the daemon if running, then ensures it is started.
func Restart(ctx context.Context, client *api.Client, cfg *config.Config, executablePath string, opts LaunchOptions, stopGracePeriod, startWaitTimeout time.Duration) (RestartResult, error) {
	stopResult, stopErr := StopAndTerminate(ctx, client, cfg, stopGracePeriod)
	if stopErr != nil && !errors.Is(stopErr, ErrDaemonNotRunning) {
		return RestartResult{}, stopErr
	}
	startResult, err := EnsureStarted(ctx, client, executablePath, opts, startWaitTimeout)
	if err != nil {
		return RestartResult{}, err
	}
	return RestartResult{
		WasRunning: stopErr == nil,
		Stop:       stopResult,
		Start:      startResult,
	}, nil
}

func readPID(path string) int {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0
	}
	return pid
}

// StatusLine is one labelled row of status output.
type StatusLine struct {
	Label    string `json:"label"`
	Severity string `json:"severity"`
	Detail   string `json:"detail"`
}

// Snapshot is the status view rendered by the CLI.
type Snapshot struct {
	Daemon       api.DaemonStatus `json:"daemon"`
	SystemChecks []StatusLine     `json:"systemChecks"`
	Paths        []StatusLine     `json:"paths"`
	Dependencies []StatusLine     `json:"dependencies"`
}

// BuildStatusSnapshot collects daemon status and falls back to reading the
// store directly when the daemon is not running.
func BuildStatusSnapshot(ctx context.Context, client *api.Client, cfg *config.Config) (*Snapshot, error) {
	if cfg == nil {
		return nil, errors.New("configuration not available")
	}
	snap := &Snapshot{}
	if client != nil {
		if status, err := client.Status(ctx); err == nil {
			snap.Daemon = status
		}
	}

	if !snap.Daemon.Running {
		snap.Daemon.DatabasePath = cfg.DatabasePath()
		snap.Daemon.LockFilePath = cfg.LockPath()
		queryCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if st, err := store.Open(cfg); err == nil {
			if stats, statsErr := st.CampaignStats(queryCtx, ""); statsErr == nil {
				snap.Daemon.CampaignStats = api.MergeStatusCounts(stats)
			}
			_ = st.Close()
		}
		for _, dep := range preflight.CheckSystemDeps(ctx, cfg) {
			snap.Daemon.Dependencies = append(snap.Daemon.Dependencies, api.DependencyStatus{
				Name:        dep.Name,
				Command:     dep.Command,
				Description: dep.Description,
				Optional:    dep.Optional,
				Available:   dep.Available,
				Detail:      dep.Detail,
			})
		}
	}

	snap.SystemChecks = BuildSystemChecks(cfg, snap.Daemon)
	snap.Paths = BuildPathChecks(cfg)
	snap.Dependencies = BuildDependencyLines(snap.Daemon.Dependencies)
	return snap, nil
}

// BuildSystemChecks summarizes daemon state and provider key availability.
func BuildSystemChecks(cfg *config.Config, status api.DaemonStatus) []StatusLine {
	lines := make([]StatusLine, 0, 2+len(apikeys.Providers))
	if status.Running {
		detail := fmt.Sprintf("Running (pid %d)", status.PID)
		if n := len(status.ActiveRuns); n > 0 {
			detail = fmt.Sprintf("%s, %d active run(s)", detail, n)
		}
		lines = append(lines, StatusLine{Label: "Reelsmith", Severity: "ok", Detail: detail})
	} else {
		lines = append(lines, StatusLine{Label: "Reelsmith", Severity: "warn", Detail: "Not running (run `reelsmith start`)"})
	}

	sources := make(map[string]string, len(status.Keys))
	for _, key := range status.Keys {
		sources[key.Provider] = key.Source
	}
	fallback := map[string]string{
		apikeys.ProviderReplicate:  cfg.Generation.APIToken,
		apikeys.ProviderElevenLabs: cfg.Narration.APIKey,
	}
	for _, provider := range apikeys.Providers {
		source := sources[provider]
		if (source == "" || source == apikeys.SourceNone) && strings.TrimSpace(fallback[provider]) != "" {
			source = apikeys.SourceConfig
		}
		switch source {
		case "", apikeys.SourceNone:
			lines = append(lines, StatusLine{Label: provider + " key", Severity: "warn", Detail: "Not configured"})
		default:
			lines = append(lines, StatusLine{Label: provider + " key", Severity: "ok", Detail: "From " + source})
		}
	}

	if status.Storage != nil {
		severity := "ok"
		if !status.Storage.Writable {
			severity = "error"
		}
		lines = append(lines, StatusLine{
			Label:    "Asset storage",
			Severity: severity,
			Detail:   fmt.Sprintf("%s free of %s", formatBytes(status.Storage.FreeBytes), formatBytes(status.Storage.TotalBytes)),
		})
	}
	return lines
}

// BuildPathChecks reports whether configured directories are usable.
func BuildPathChecks(cfg *config.Config) []StatusLine {
	checks := []preflight.Result{
		preflight.CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
		preflight.CheckDirectoryAccess("Assets directory", cfg.Paths.AssetsDir),
		preflight.CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
	}
	if strings.TrimSpace(cfg.Paths.TemplatesDir) != "" {
		checks = append(checks, preflight.CheckDirectoryAccess("Templates directory", cfg.Paths.TemplatesDir))
	}
	lines := make([]StatusLine, 0, len(checks))
	for _, check := range checks {
		severity := "ok"
		if !check.Passed {
			severity = "error"
		}
		lines = append(lines, StatusLine{Label: check.Name, Severity: severity, Detail: check.Detail})
	}
	return lines
}

// BuildDependencyLines converts dependency availability into status rows.
func BuildDependencyLines(deps []api.DependencyStatus) []StatusLine {
	if len(deps) == 0 {
		return []StatusLine{{Label: "External tools", Severity: "info", Detail: "None required (composition disabled)"}}
	}
	lines := make([]StatusLine, 0, len(deps))
	for _, dep := range deps {
		if dep.Available {
			detail := "Ready"
			if dep.Command != "" {
				detail = fmt.Sprintf("Ready (command: %s)", dep.Command)
			}
			lines = append(lines, StatusLine{Label: dep.Name, Severity: "ok", Detail: detail})
			continue
		}
		severity := "error"
		if dep.Optional {
			severity = "warn"
		}
		detail := strings.TrimSpace(dep.Detail)
		if detail == "" {
			detail = "not available"
		}
		lines = append(lines, StatusLine{Label: dep.Name, Severity: severity, Detail: detail})
	}
	return lines
}

func formatBytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := uint64(unit), 0
	for value := n / unit; value >= unit; value /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
