package stepexec_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"reelsmith/internal/campaign"
	"reelsmith/internal/logging"
	"reelsmith/internal/services"
	"reelsmith/internal/stepexec"
)

func fixedClock(start time.Time, step time.Duration) func() time.Time {
	current := start
	return func() time.Time {
		now := current
		current = current.Add(step)
		return now
	}
}

func newExecutor(buf *bytes.Buffer) *stepexec.Executor {
	logger := logging.NewNop()
	if buf != nil {
		logger = slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	start := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	return stepexec.New(logger, stepexec.WithClock(fixedClock(start, 1500*time.Millisecond)))
}

func TestExecuteCompleted(t *testing.T) {
	exec := newExecutor(nil)
	entry := exec.Execute(context.Background(), 2, campaign.StepImage, func(context.Context) (stepexec.Outcome, error) {
		return stepexec.Completed("image generated: https://x/a.png"), nil
	})

	started := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	finished := started.Add(1500 * time.Millisecond)
	want := campaign.LogEntry{
		Run:         2,
		Step:        campaign.StepImage,
		Status:      campaign.EntryCompleted,
		StartedAt:   &started,
		CompletedAt: &finished,
		DurationMs:  1500,
		Details:     "image generated: https://x/a.png",
	}
	if diff := cmp.Diff(want, entry); diff != "" {
		t.Fatalf("entry mismatch (-want +got):\n%s", diff)
	}
}

func TestExecuteFailedStripsMarker(t *testing.T) {
	exec := newExecutor(nil)
	entry := exec.Execute(context.Background(), 1, campaign.StepAudio, func(context.Context) (stepexec.Outcome, error) {
		return stepexec.Outcome{}, services.Wrap(services.ErrConfiguration, "", "", "ElevenLabs API key not configured", nil)
	})
	if entry.Status != campaign.EntryFailed {
		t.Fatalf("status = %s", entry.Status)
	}
	if entry.Error != "ElevenLabs API key not configured" {
		t.Fatalf("error = %q", entry.Error)
	}
	if entry.Details != "" || entry.SkipReason != "" {
		t.Fatalf("unexpected details %+v", entry)
	}
}

func TestExecuteEmptyErrorFallsBack(t *testing.T) {
	exec := newExecutor(nil)
	entry := exec.Execute(context.Background(), 1, campaign.StepVideo, func(context.Context) (stepexec.Outcome, error) {
		return stepexec.Outcome{}, errors.New("   ")
	})
	if entry.Error != stepexec.UnknownError {
		t.Fatalf("error = %q", entry.Error)
	}
}

func TestExecuteAbsorbsPanic(t *testing.T) {
	exec := newExecutor(nil)
	entry := exec.Execute(context.Background(), 1, campaign.StepCompose, func(context.Context) (stepexec.Outcome, error) {
		panic("boom")
	})
	if entry.Status != campaign.EntryFailed || entry.Error != "panic: boom" {
		t.Fatalf("unexpected entry %+v", entry)
	}
}

func TestExecuteSkipped(t *testing.T) {
	exec := newExecutor(nil)
	entry := exec.Execute(context.Background(), 1, campaign.StepLipSync, func(context.Context) (stepexec.Outcome, error) {
		return stepexec.Skipped("lip-sync disabled"), nil
	})
	if entry.Status != campaign.EntrySkipped || entry.SkipReason != "lip-sync disabled" {
		t.Fatalf("unexpected entry %+v", entry)
	}
}

func TestExecuteLogsLifecycle(t *testing.T) {
	var buf bytes.Buffer
	exec := newExecutor(&buf)
	ctx := services.WithCampaignID(context.Background(), "camp-1")

	exec.Execute(ctx, 1, campaign.StepImage, func(context.Context) (stepexec.Outcome, error) {
		return stepexec.Completed("ok"), nil
	})
	exec.Execute(ctx, 1, campaign.StepVideo, func(context.Context) (stepexec.Outcome, error) {
		return stepexec.Outcome{}, errors.New("provider down")
	})
	exec.Execute(ctx, 1, campaign.StepAudio, func(context.Context) (stepexec.Outcome, error) {
		return stepexec.Skipped("persona has no voice configured"), nil
	})

	var events []string
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var payload map[string]any
		if err := json.Unmarshal([]byte(line), &payload); err != nil {
			t.Fatalf("decode %q: %v", line, err)
		}
		if payload[logging.FieldCampaignID] != "camp-1" {
			t.Fatalf("missing campaign id in %v", payload)
		}
		events = append(events, payload[logging.FieldStep].(string)+":"+payload[logging.FieldEventType].(string))
	}
	want := []string{
		"image:step_start", "image:step_complete",
		"video:step_start", "video:step_failure",
		"audio:step_start", "audio:step_skip",
	}
	if diff := cmp.Diff(want, events); diff != "" {
		t.Fatalf("events mismatch (-want +got):\n%s", diff)
	}
}

func TestStepBodySeesStepInContext(t *testing.T) {
	exec := newExecutor(nil)
	var seen string
	exec.Execute(context.Background(), 1, campaign.StepCaptions, func(ctx context.Context) (stepexec.Outcome, error) {
		seen, _ = services.StepFromContext(ctx)
		return stepexec.Completed(""), nil
	})
	if seen != "captions" {
		t.Fatalf("step in context = %q", seen)
	}
}
