package deps

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"reelsmith/internal/config"
)

func TestCheckBinaries(t *testing.T) {
	binDir := t.TempDir()
	present := filepath.Join(binDir, "present")
	script := []byte("#!/bin/sh\nexit 0\n")
	if err := os.WriteFile(present, script, 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	reqs := []Requirement{
		{Name: "Present", Command: present},
		{Name: "Missing", Command: "clearly-not-present-binary"},
		{Name: "Unset"},
	}

	results := CheckBinaries(reqs)
	if len(results) != len(reqs) {
		t.Fatalf("expected %d results, got %d", len(reqs), len(results))
	}
	if !results[0].Available || results[0].Detail != "" {
		t.Fatalf("expected first requirement to be available, got %#v", results[0])
	}
	if results[1].Available || results[1].Detail == "" {
		t.Fatalf("expected missing binary to be unavailable with detail, got %#v", results[1])
	}
	if results[1].Command != "clearly-not-present-binary" {
		t.Fatalf("unexpected command recorded: %s", results[1].Command)
	}
	if results[2].Detail != "command not configured" {
		t.Fatalf("unexpected detail for unset command: %q", results[2].Detail)
	}
}

func TestRequirementsFollowCompositionToggle(t *testing.T) {
	cfg := config.Default()
	cfg.Composition.Enabled = false
	if reqs := Requirements(&cfg); len(reqs) != 0 {
		t.Fatalf("expected no requirements when composition disabled, got %#v", reqs)
	}
	cfg.Composition.Enabled = true
	cfg.Composition.FFmpegBinary = "/opt/ffmpeg/bin/ffmpeg"
	reqs := Requirements(&cfg)
	if len(reqs) != 1 || reqs[0].Command != "/opt/ffmpeg/bin/ffmpeg" || !reqs[0].Optional {
		t.Fatalf("unexpected requirements %#v", reqs)
	}
}

func writeFakeFFmpeg(t *testing.T, filters string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ffmpeg")
	script := "#!/bin/sh\ncat <<'OUT'\nFilters:\n  T.. = Timeline support\n ------\n" + filters + "OUT\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("write fake ffmpeg: %v", err)
	}
	return path
}

func TestCheckFFmpegWithRequiredFilters(t *testing.T) {
	binary := writeFakeFFmpeg(t, " T.C drawtext          V->V       Draw text on top of video frames using libfreetype library.\n ... ass               V->V       Render ASS subtitles onto input video using the libass library.\n")

	status := CheckFFmpeg(context.Background(), binary)
	if !status.Available {
		t.Fatalf("expected ffmpeg to be available, got detail %q", status.Detail)
	}
	if status.Command != binary {
		t.Fatalf("expected command %q, got %q", binary, status.Command)
	}
}

func TestCheckFFmpegMissingFilter(t *testing.T) {
	binary := writeFakeFFmpeg(t, " T.C drawtext          V->V       Draw text.\n")

	status := CheckFFmpeg(context.Background(), binary)
	if status.Available {
		t.Fatal("expected ffmpeg without libass to be unavailable")
	}
	if status.Detail != "ffmpeg build lacks filters: ass" {
		t.Fatalf("unexpected detail %q", status.Detail)
	}
}

func TestCheckFFmpegNotFound(t *testing.T) {
	t.Setenv("PATH", "")
	status := CheckFFmpeg(context.Background(), "")
	if status.Available {
		t.Fatal("expected ffmpeg resolution to fail")
	}
	if status.Detail == "" {
		t.Fatal("expected detail message when ffmpeg is unavailable")
	}
}

func TestParseFiltersSkipsHeader(t *testing.T) {
	filters := parseFilters([]byte("Filters:\n  T.. = Timeline support\n  | = Source or sink filter\n ... scale             V->V       Scale the input video size.\n"))
	if !filters["scale"] || len(filters) != 1 {
		t.Fatalf("unexpected filters %#v", filters)
	}
}
