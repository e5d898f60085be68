package logs_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"reelsmith/internal/logs"
)

func collect(t *testing.T, ctx context.Context, path string, opts logs.Options) []string {
	t.Helper()
	var lines []string
	err := logs.Stream(ctx, path, opts, func(line string) error {
		lines = append(lines, line)
		return nil
	})
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	return lines
}

func TestStreamLastLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reelsmith.log")
	if err := os.WriteFile(path, []byte("a\nb\nc\n"), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}
	got := collect(t, context.Background(), path, logs.Options{Lines: 2})
	if diff := cmp.Diff([]string{"b", "c"}, got); diff != "" {
		t.Fatalf("lines mismatch (-want +got):\n%s", diff)
	}
}

func TestStreamFiltersByMatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reelsmith.log")
	content := "step started campaign_id=c1\nstep started campaign_id=c2\nstep done campaign_id=c1\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}
	got := collect(t, context.Background(), path, logs.Options{Lines: 10, Match: "campaign_id=c1"})
	want := []string{"step started campaign_id=c1", "step done campaign_id=c1"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("lines mismatch (-want +got):\n%s", diff)
	}
}

func TestStreamMissingFile(t *testing.T) {
	got := collect(t, context.Background(), filepath.Join(t.TempDir(), "missing.log"), logs.Options{Lines: 5})
	if len(got) != 0 {
		t.Fatalf("expected no lines, got %v", got)
	}
}

func TestStreamFollowsAppendsAndRotation(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "reelsmith-1.log")
	second := filepath.Join(dir, "reelsmith-2.log")
	link := filepath.Join(dir, "reelsmith.log")
	if err := os.WriteFile(first, []byte("start\n"), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}
	if err := os.Symlink(first, link); err != nil {
		t.Fatalf("symlink: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var got []string
	done := make(chan error, 1)
	go func() {
		done <- logs.Stream(ctx, link, logs.Options{Lines: 1, Follow: true, Poll: 10 * time.Millisecond}, func(line string) error {
			mu.Lock()
			got = append(got, line)
			mu.Unlock()
			return nil
		})
	}()

	waitLines := func(n int) {
		t.Helper()
		deadline := time.Now().Add(2 * time.Second)
		for time.Now().Before(deadline) {
			mu.Lock()
			count := len(got)
			mu.Unlock()
			if count >= n {
				return
			}
			time.Sleep(10 * time.Millisecond)
		}
		t.Fatalf("timed out waiting for %d lines", n)
	}

	waitLines(1)
	f, err := os.OpenFile(first, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open log: %v", err)
	}
	_, _ = f.WriteString("later\n")
	_ = f.Close()
	waitLines(2)

	if err := os.WriteFile(second, []byte("rotated\n"), 0o644); err != nil {
		t.Fatalf("write rotated log: %v", err)
	}
	tmpLink := link + ".tmp"
	if err := os.Symlink(second, tmpLink); err != nil {
		t.Fatalf("symlink: %v", err)
	}
	if err := os.Rename(tmpLink, link); err != nil {
		t.Fatalf("replace link: %v", err)
	}
	waitLines(3)

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Stream: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if diff := cmp.Diff([]string{"start", "later", "rotated"}, got); diff != "" {
		t.Fatalf("lines mismatch (-want +got):\n%s", diff)
	}
}
