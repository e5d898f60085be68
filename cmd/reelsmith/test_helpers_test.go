package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"reelsmith/internal/api"
	"reelsmith/internal/config"
	"reelsmith/internal/daemon"
	"reelsmith/internal/logging"
	"reelsmith/internal/store"
	"reelsmith/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	store      *store.Store
	daemon     *daemon.Daemon
	client     *api.Client
	baseURL    string
	configPath string
	baseDir    string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)

	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"username":"test"}`))
	}))
	t.Cleanup(provider.Close)

	cfg := testsupport.NewConfig(t, testsupport.WithGenerationURL(provider.URL))
	cfg.Generation.PollIntervalSeconds = 1
	cfg.Generation.TimeoutSeconds = 60

	configPath := filepath.Join(homeDir, ".config", "reelsmith", "config.toml")
	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	writeTestConfig(t, configPath, cfg)

	st := testsupport.MustOpenStore(t, cfg)
	d, err := daemon.New(cfg, st, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("daemon Start: %v", err)
	}
	t.Cleanup(func() {
		_ = d.Stop(context.Background())
	})

	baseURL := "http://" + d.Addr()
	client, err := api.NewClient(baseURL, "")
	if err != nil {
		t.Fatalf("api.NewClient: %v", err)
	}

	return &cliTestEnv{
		cfg:        cfg,
		store:      st,
		daemon:     d,
		client:     client,
		baseURL:    baseURL,
		configPath: configPath,
		baseDir:    base,
	}
}

func (e *cliTestEnv) run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	return runCLI(t, args, e.baseURL, e.configPath)
}

func runCLI(t *testing.T, args []string, baseURL, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if baseURL != "" {
		flags = append(flags, "--url", baseURL)
	}
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content := fmt.Sprintf(`[paths]
data_dir = %q
log_dir = %q
assets_dir = %q
api_bind = %q

[generation]
base_url = %q
api_token = %q
poll_interval_seconds = %d
timeout_seconds = %d

[composition]
enabled = false
`,
		cfg.Paths.DataDir,
		cfg.Paths.LogDir,
		cfg.Paths.AssetsDir,
		cfg.Paths.APIBind,
		cfg.Generation.BaseURL,
		cfg.Generation.APIToken,
		cfg.Generation.PollIntervalSeconds,
		cfg.Generation.TimeoutSeconds,
	)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func waitFor(t *testing.T, duration time.Duration, fn func() bool) {
	t.Helper()
	deadline := time.Now().Add(duration)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", duration)
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
