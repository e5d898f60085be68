package campaign

import (
	"strings"
	"time"
)

// EntryStatus is the outcome recorded for one attempted step.
type EntryStatus string

const (
	EntryPending   EntryStatus = "pending"
	EntryRunning   EntryStatus = "running"
	EntryCompleted EntryStatus = "completed"
	EntryFailed    EntryStatus = "failed"
	EntrySkipped   EntryStatus = "skipped"
)

// LogEntry records one step attempt. Entries are appended in execution order
// and never modified afterwards. Run numbers group entries by execution.
type LogEntry struct {
	Run         int         `json:"run"`
	Step        Step        `json:"step"`
	Status      EntryStatus `json:"status"`
	StartedAt   *time.Time  `json:"startedAt,omitempty"`
	CompletedAt *time.Time  `json:"completedAt,omitempty"`
	DurationMs  int64       `json:"durationMs,omitempty"`
	Details     string      `json:"details,omitempty"`
	Error       string      `json:"error,omitempty"`
	SkipReason  string      `json:"skipReason,omitempty"`
}

// FinalStatus computes the campaign status after a run. A run with at least
// one failure and no successes fails; otherwise any success completes it; a
// run where everything was skipped fails.
func FinalStatus(entries []LogEntry) Status {
	var completed, failed int
	for _, entry := range entries {
		switch entry.Status {
		case EntryCompleted:
			completed++
		case EntryFailed:
			failed++
		}
	}
	switch {
	case completed == 0 && failed > 0:
		return StatusFailed
	case completed > 0:
		return StatusCompleted
	default:
		return StatusFailed
	}
}

// ErrorSummary joins failed entries as "[step] message" separated by "; ".
// The result is empty when nothing failed.
func ErrorSummary(entries []LogEntry) string {
	parts := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.Status != EntryFailed {
			continue
		}
		parts = append(parts, "["+string(entry.Step)+"] "+entry.Error)
	}
	return strings.Join(parts, "; ")
}

// LatestRun returns the highest run number present in entries.
func LatestRun(entries []LogEntry) int {
	latest := 0
	for _, entry := range entries {
		if entry.Run > latest {
			latest = entry.Run
		}
	}
	return latest
}

// RunEntries returns the entries belonging to the given run.
func RunEntries(entries []LogEntry, run int) []LogEntry {
	out := make([]LogEntry, 0, len(canonicalSteps))
	for _, entry := range entries {
		if entry.Run == run {
			out = append(out, entry)
		}
	}
	return out
}
