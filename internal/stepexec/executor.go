// Package stepexec runs a single pipeline step and turns its outcome into an
// execution log entry. Step errors and panics are absorbed here: callers only
// ever see the resulting entry.
package stepexec

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"reelsmith/internal/campaign"
	"reelsmith/internal/logging"
	"reelsmith/internal/services"
)

// UnknownError is recorded when a failing step carries no message.
const UnknownError = "unknown error"

type outcomeKind int

const (
	kindCompleted outcomeKind = iota
	kindSkipped
)

// Outcome is the non-error result of a step body.
type Outcome struct {
	kind   outcomeKind
	detail string
}

// Completed reports success with a human readable detail.
func Completed(detail string) Outcome {
	return Outcome{kind: kindCompleted, detail: detail}
}

// Skipped reports that a precondition was not met.
func Skipped(reason string) Outcome {
	return Outcome{kind: kindSkipped, detail: reason}
}

// Func is a step body. A non-nil error marks the step failed.
type Func func(ctx context.Context) (Outcome, error)

// Executor times step bodies and logs their lifecycle.
type Executor struct {
	logger *slog.Logger
	now    func() time.Time
}

// Option customizes an Executor.
type Option func(*Executor)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Executor) {
		if now != nil {
			e.now = now
		}
	}
}

// New constructs an executor.
func New(logger *slog.Logger, opts ...Option) *Executor {
	e := &Executor{
		logger: logging.NewComponentLogger(logger, "pipeline"),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs fn for step and returns the log entry describing the result.
func (e *Executor) Execute(ctx context.Context, run int, step campaign.Step, fn Func) campaign.LogEntry {
	ctx = services.WithStep(ctx, string(step))
	logger := logging.WithContext(ctx, e.logger)

	started := e.now()
	entry := campaign.LogEntry{Run: run, Step: step, StartedAt: &started}
	logger.Info("step started", logging.String(logging.FieldEventType, "step_start"))

	outcome, err := invoke(ctx, fn)

	finished := e.now()
	entry.CompletedAt = &finished
	entry.DurationMs = finished.Sub(started).Milliseconds()

	switch {
	case err != nil:
		entry.Status = campaign.EntryFailed
		entry.Error = ErrorMessage(err)
		logging.ErrorWithContext(logger, "step failed", "step_failure",
			logging.String("error_message", entry.Error),
			logging.Int64("duration_ms", entry.DurationMs),
			logging.String(logging.FieldErrorHint, hintFor(err)),
			logging.Error(err),
		)
	case outcome.kind == kindSkipped:
		entry.Status = campaign.EntrySkipped
		entry.SkipReason = outcome.detail
		logger.Info("step skipped",
			logging.String(logging.FieldEventType, "step_skip"),
			logging.String("reason", outcome.detail),
		)
	default:
		entry.Status = campaign.EntryCompleted
		entry.Details = outcome.detail
		logger.Info("step completed",
			logging.String(logging.FieldEventType, "step_complete"),
			logging.Int64("duration_ms", entry.DurationMs),
			logging.String("details", outcome.detail),
		)
	}
	return entry
}

func invoke(ctx context.Context, fn Func) (outcome Outcome, err error) {
	if fn == nil {
		return Outcome{}, fmt.Errorf("step has no implementation")
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(ctx)
}

// ErrorMessage extracts the display message for a failed step.
func ErrorMessage(err error) string {
	if err == nil {
		return UnknownError
	}
	message := strings.TrimSpace(services.Details(err).Message)
	if message == "" {
		return UnknownError
	}
	return message
}

func hintFor(err error) string {
	switch services.Details(err).Kind {
	case "configuration":
		return "configure the missing api key or setting and re-run the step"
	case "unauthorized":
		return "check the provider api key"
	case "timeout":
		return "the provider is slow; re-run the step or raise the timeout"
	case "external":
		return "inspect the provider response in the error message"
	default:
		return "check logs for details"
	}
}
