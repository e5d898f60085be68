package deps

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

const probeTimeout = 10 * time.Second

// Filters composition needs from the ffmpeg build.
const (
	FilterDrawText = "drawtext"
	FilterASS      = "ass"
)

// CheckFFmpeg resolves the ffmpeg binary and confirms the build ships the
// drawtext and ass filters (libfreetype and libass).
func CheckFFmpeg(ctx context.Context, binary string) Status {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffmpeg"
	}
	result := Status{
		Name:        "FFmpeg",
		Command:     binary,
		Description: "Text overlays and caption burn-in",
	}
	resolved, err := exec.LookPath(binary)
	if err != nil {
		result.Detail = fmt.Sprintf("binary %q not found", binary)
		return result
	}
	result.Command = resolved

	filters, err := FFmpegFilters(ctx, resolved)
	if err != nil {
		result.Detail = err.Error()
		return result
	}
	var missing []string
	for _, name := range []string{FilterDrawText, FilterASS} {
		if !filters[name] {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		result.Detail = "ffmpeg build lacks filters: " + strings.Join(missing, ", ")
		return result
	}
	result.Available = true
	return result
}

// FFmpegFilters lists the filter names reported by `ffmpeg -filters`.
func FFmpegFilters(ctx context.Context, binary string) (map[string]bool, error) {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	cmd := exec.CommandContext(ctx, binary, "-hide_banner", "-filters") //nolint:gosec
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s -filters: %w: %s", binary, err, strings.TrimSpace(stderr.String()))
	}
	return parseFilters(stdout.Bytes()), nil
}

// parseFilters reads lines shaped like " T.C drawtext   V->V   Draw text".
func parseFilters(output []byte) map[string]bool {
	filters := make(map[string]bool)
	scanner := bufio.NewScanner(bytes.NewReader(output))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 3 || !strings.Contains(fields[2], "->") {
			continue
		}
		filters[fields[1]] = true
	}
	return filters
}
