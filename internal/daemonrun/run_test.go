package daemonrun

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

func TestEnsureCurrentLogPointerReplacesLink(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "reelsmith-1.log")
	second := filepath.Join(dir, "reelsmith-2.log")
	for _, path := range []string{first, second} {
		if err := os.WriteFile(path, []byte(filepath.Base(path)), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	if err := ensureCurrentLogPointer(dir, first); err != nil {
		t.Fatalf("first pointer: %v", err)
	}
	if err := ensureCurrentLogPointer(dir, second); err != nil {
		t.Fatalf("second pointer: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "reelsmith.log"))
	if err != nil {
		t.Fatalf("read pointer: %v", err)
	}
	if string(data) != "reelsmith-2.log" {
		t.Fatalf("pointer resolves to %q", data)
	}
}

func TestWritePIDFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reelsmith.pid")
	if err := writePIDFile(path); err != nil {
		t.Fatalf("writePIDFile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if pid, _ := strconv.Atoi(strings.TrimSpace(string(data))); pid != os.Getpid() {
		t.Fatalf("pid file = %q", data)
	}
	if err := writePIDFile(""); err != nil {
		t.Fatalf("empty path should be ignored: %v", err)
	}
}
