package campaign

import (
	"fmt"
	"strings"
)

// Status represents the lifecycle of a campaign.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

var allStatuses = []Status{StatusDraft, StatusQueued, StatusRunning, StatusCompleted, StatusFailed}

// AllStatuses returns every known status in lifecycle order.
func AllStatuses() []Status {
	out := make([]Status, len(allStatuses))
	copy(out, allStatuses)
	return out
}

// ParseStatus normalizes and validates a status string.
func ParseStatus(value string) (Status, error) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	for _, status := range allStatuses {
		if status == normalized {
			return status, nil
		}
	}
	return "", fmt.Errorf("unknown campaign status %q", value)
}

// Editable reports whether campaign fields may still be changed.
func (s Status) Editable() bool {
	return s == StatusDraft
}

// Executable reports whether the orchestrator may start a run from this status.
func (s Status) Executable() bool {
	return s != StatusRunning
}

// Terminal reports whether the status ends a run.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}
