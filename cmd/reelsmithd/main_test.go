package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRootCommandReportsInvalidConfig(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[generation]\npoll_interval_seconds = 10\ntimeout_seconds = 5\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cmd := newRootCommand()
	cmd.SetArgs([]string{"--config", path})
	err := cmd.Execute()
	if err == nil || !strings.HasPrefix(err.Error(), "load config:") {
		t.Fatalf("expected config error, got %v", err)
	}
}

func TestRootCommandRejectsArguments(t *testing.T) {
	cmd := newRootCommand()
	cmd.SetArgs([]string{"extra"})
	if err := cmd.Execute(); err == nil {
		t.Fatal("expected positional arguments to be rejected")
	}
}
