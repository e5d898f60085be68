package testsupport

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// fakeFFmpegScript records its arguments next to itself, answers -filters
// probes and writes a placeholder to the last argument. Creating
// ffmpeg.fail beside the script makes every run exit 1.
const fakeFFmpegScript = `#!/bin/sh
dir=$(dirname "$0")
printf '%s\n' "$*" >> "$dir/ffmpeg.args"
case "$*" in
*-filters*)
	printf ' T.C drawtext          V->V       Draw text.\n ... ass               V->V       Render ASS subtitles.\n'
	exit 0
	;;
esac
if [ -f "$dir/ffmpeg.fail" ]; then
	echo "simulated ffmpeg failure" >&2
	exit 1
fi
for last; do :; done
printf 'fake-media' > "$last"
`

// WriteFakeFFmpeg installs a scripted ffmpeg stand-in in dir and returns its path.
func WriteFakeFFmpeg(t testing.TB, dir string) string {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", dir, err)
	}
	path := filepath.Join(dir, "ffmpeg")
	if err := os.WriteFile(path, []byte(fakeFFmpegScript), 0o755); err != nil {
		t.Fatalf("write fake ffmpeg: %v", err)
	}
	return path
}

// FakeFFmpegCalls returns the argument lines recorded by the fake ffmpeg.
func FakeFFmpegCalls(t testing.TB, binary string) []string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(filepath.Dir(binary), "ffmpeg.args"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		t.Fatalf("read ffmpeg args: %v", err)
	}
	var calls []string
	for _, line := range strings.Split(strings.TrimRight(string(data), "\n"), "\n") {
		if line != "" {
			calls = append(calls, line)
		}
	}
	return calls
}

// FailFakeFFmpeg makes subsequent fake ffmpeg runs exit non-zero.
func FailFakeFFmpeg(t testing.TB, binary string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(filepath.Dir(binary), "ffmpeg.fail"), nil, 0o644); err != nil {
		t.Fatalf("write ffmpeg.fail: %v", err)
	}
}
