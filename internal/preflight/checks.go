package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"reelsmith/internal/config"
	"reelsmith/internal/deps"
	"reelsmith/internal/services/llm"
)

const providerCheckTimeout = 5 * time.Second

// CheckLLM verifies that the LLM API is reachable and the key is valid.
// It uses a 30-second timeout and a single attempt (no retries).
func CheckLLM(ctx context.Context, name string, cfg config.LLMConfig) Result {
	if cfg.APIKey == "" {
		return Result{Name: name, Detail: "API key missing"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	client := llm.NewClient(llm.Config{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Model:   cfg.Model,
		Referer: cfg.Referer,
		Title:   cfg.Title,
	}, llm.WithRetryMaxAttempts(1))

	if err := client.HealthCheck(checkCtx); err != nil {
		return Result{Name: name, Detail: summarizeLLMError(err)}
	}
	return Result{Name: name, Passed: true, Detail: "API reachable"}
}

// CheckReplicate verifies the Replicate token against the account endpoint.
func CheckReplicate(ctx context.Context, baseURL, token string) Result {
	return checkProvider(ctx, providerProbe{
		name:    "Replicate",
		baseURL: baseURL,
		path:    "/account",
		key:     token,
		header:  "Authorization",
		value:   "Bearer " + strings.TrimSpace(token),
	})
}

// CheckElevenLabs verifies the ElevenLabs key against the user endpoint.
func CheckElevenLabs(ctx context.Context, baseURL, apiKey string) Result {
	return checkProvider(ctx, providerProbe{
		name:    "ElevenLabs",
		baseURL: baseURL,
		path:    "/user",
		key:     apiKey,
		header:  "xi-api-key",
		value:   strings.TrimSpace(apiKey),
	})
}

type providerProbe struct {
	name    string
	baseURL string
	path    string
	key     string
	header  string
	value   string
}

func checkProvider(ctx context.Context, probe providerProbe) Result {
	base := strings.TrimRight(strings.TrimSpace(probe.baseURL), "/")
	if base == "" {
		return Result{Name: probe.name, Detail: "missing url"}
	}
	if strings.TrimSpace(probe.key) == "" {
		return Result{Name: probe.name, Detail: "missing api key"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, providerCheckTimeout)
	defer cancel()

	client := &http.Client{Timeout: providerCheckTimeout}
	req, err := http.NewRequestWithContext(checkCtx, http.MethodGet, base+probe.path, nil)
	if err != nil {
		return Result{Name: probe.name, Detail: fmt.Sprintf("auth check failed (%v)", err)}
	}
	req.Header.Set(probe.header, probe.value)

	resp, err := client.Do(req)
	if err != nil {
		return Result{Name: probe.name, Detail: fmt.Sprintf("auth check failed (%v)", err)}
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return Result{Name: probe.name, Passed: true, Detail: "Reachable"}
	case http.StatusUnauthorized, http.StatusForbidden:
		return Result{Name: probe.name, Detail: "auth failed (invalid api key)"}
	default:
		return Result{Name: probe.name, Detail: fmt.Sprintf("auth check failed (%d)", resp.StatusCode)}
	}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckSystemDeps evaluates the external binaries the configuration needs.
// Both the daemon and the CLI status command use this. When composition is
// enabled the ffmpeg build is also probed for the drawtext and ass filters.
func CheckSystemDeps(ctx context.Context, cfg *config.Config) []deps.Status {
	statuses := deps.CheckBinaries(deps.Requirements(cfg))
	for i, status := range statuses {
		if status.Name != "FFmpeg" || !status.Available {
			continue
		}
		probed := deps.CheckFFmpeg(ctx, status.Command)
		probed.Description = status.Description
		probed.Optional = status.Optional
		statuses[i] = probed
	}
	if len(statuses) == 0 {
		return nil
	}
	return statuses
}

// summarizeLLMError produces a human-readable summary for LLM health check failures.
func summarizeLLMError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "health check timed out (LLM API unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "health check timed out (LLM API unreachable)"
	}
	return err.Error()
}
