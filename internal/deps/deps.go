package deps

import (
	"fmt"
	"os/exec"
	"strings"

	"reelsmith/internal/config"
)

// Requirement defines an external binary reelsmith shells out to.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// Requirements lists the binaries the configuration depends on. ffmpeg is
// optional: without it the compose step fails and captions stay SRT-only.
func Requirements(cfg *config.Config) []Requirement {
	if cfg == nil || !cfg.Composition.Enabled {
		return nil
	}
	return []Requirement{{
		Name:        "FFmpeg",
		Command:     cfg.Composition.FFmpegBinary,
		Description: "Text overlays, caption burn-in and video thumbnails",
		Optional:    true,
	}}
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		if cmd == "" {
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		resolved, err := exec.LookPath(cmd)
		if err != nil {
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
			results = append(results, status)
			continue
		}
		status.Command = resolved
		status.Available = true
		results = append(results, status)
	}
	return results
}
