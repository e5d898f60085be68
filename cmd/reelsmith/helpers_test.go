package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/cobra"
)

func TestParseVariables(t *testing.T) {
	got, err := parseVariables([]string{"product_name=Glow Serum", " tone =warm", "empty="})
	if err != nil {
		t.Fatalf("parseVariables: %v", err)
	}
	want := map[string]string{"product_name": "Glow Serum", "tone": "warm", "empty": ""}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("variables mismatch (-want +got):\n%s", diff)
	}
	if _, err := parseVariables([]string{"=value"}); err == nil {
		t.Fatal("expected empty name to be rejected")
	}
}

func TestTitleCaseAndTruncate(t *testing.T) {
	if got := titleCase("lip_sync"); got != "Lip Sync" {
		t.Fatalf("titleCase = %q", got)
	}
	if got := truncate("abcdefghij", 6); got != "abc..." {
		t.Fatalf("truncate = %q", got)
	}
	if got := truncate("short", 10); got != "short" {
		t.Fatalf("truncate = %q", got)
	}
}

func TestFormatDuration(t *testing.T) {
	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	end := start.Add(90 * time.Second)
	if got := formatDuration(&start, &end); got != "1m30s" {
		t.Fatalf("formatDuration = %q", got)
	}
	if got := formatDuration(&end, &start); got != "-" {
		t.Fatalf("expected dash for inverted range, got %q", got)
	}
	if got := formatDuration(nil, &end); got != "-" {
		t.Fatalf("expected dash for missing start, got %q", got)
	}
}

func TestSplitList(t *testing.T) {
	if diff := cmp.Diff([]string{"image", "video"}, splitList(" image, ,video ")); diff != "" {
		t.Fatalf("splitList mismatch (-want +got):\n%s", diff)
	}
	if got := splitList(""); got != nil {
		t.Fatalf("expected nil, got %v", got)
	}
}

func TestWriteJSONKeepsURLsVerbatim(t *testing.T) {
	cmd := &cobra.Command{}
	var out bytes.Buffer
	cmd.SetOut(&out)
	if err := writeJSON(cmd, map[string]string{"imageUrl": "http://host/assets/a.png?w=1&h=2"}); err != nil {
		t.Fatalf("writeJSON: %v", err)
	}
	want := "{\n  \"imageUrl\": \"http://host/assets/a.png?w=1&h=2\"\n}\n"
	if got := out.String(); got != want {
		t.Fatalf("writeJSON = %q, want %q", got, want)
	}
}
