package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"reelsmith/internal/campaign"
)

// AppendLog inserts one execution log entry for a campaign. Entries are never
// updated once written.
func (s *Store) AppendLog(ctx context.Context, campaignID string, entry campaign.LogEntry) error {
	if _, err := s.execWithRetry(
		ctx,
		`INSERT INTO execution_log (
            campaign_id, run, step, status, started_at, completed_at, duration_ms, details, error, skip_reason
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		campaignID,
		entry.Run,
		entry.Step,
		entry.Status,
		nullableTime(entry.StartedAt),
		nullableTime(entry.CompletedAt),
		entry.DurationMs,
		nullableString(entry.Details),
		nullableString(entry.Error),
		nullableString(entry.SkipReason),
	); err != nil {
		return fmt.Errorf("append execution log: %w", err)
	}
	if err := s.execWithoutResultRetry(ctx,
		`UPDATE campaigns SET updated_at = ? WHERE id = ?`, formatTime(time.Now()), campaignID,
	); err != nil {
		return fmt.Errorf("touch campaign: %w", err)
	}
	return nil
}

// ExecutionLog returns every entry recorded for a campaign in insertion order.
func (s *Store) ExecutionLog(ctx context.Context, campaignID string) ([]campaign.LogEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run, step, status, started_at, completed_at, duration_ms, details, error, skip_reason
         FROM execution_log WHERE campaign_id = ? ORDER BY id`,
		campaignID,
	)
	if err != nil {
		return nil, fmt.Errorf("query execution log: %w", err)
	}
	defer rows.Close()

	entries := make([]campaign.LogEntry, 0)
	for rows.Next() {
		var (
			entry                       campaign.LogEntry
			startedRaw, completedRaw    sql.NullString
			duration                    sql.NullInt64
			details, errMsg, skipReason sql.NullString
		)
		if err := rows.Scan(
			&entry.Run, &entry.Step, &entry.Status, &startedRaw, &completedRaw,
			&duration, &details, &errMsg, &skipReason,
		); err != nil {
			return nil, fmt.Errorf("scan execution log: %w", err)
		}
		entry.StartedAt = parseOptionalTime(startedRaw)
		entry.CompletedAt = parseOptionalTime(completedRaw)
		entry.DurationMs = duration.Int64
		entry.Details = details.String
		entry.Error = errMsg.String
		entry.SkipReason = skipReason.String
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
