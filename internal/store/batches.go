package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"reelsmith/internal/campaign"
)

const batchColumns = `id, user_id, name, template_id, persona_id, status, total, completed, failed,
    error_message, started_at, completed_at, created_at, updated_at`

// CreateBatch inserts a batch together with its member campaigns in one
// transaction. Members are linked to the batch and queued.
func (s *Store) CreateBatch(ctx context.Context, b *campaign.Batch, members []*campaign.Campaign) (*campaign.Batch, error) {
	if b == nil {
		return nil, errors.New("batch is nil")
	}
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	if b.Status == "" {
		b.Status = campaign.StatusQueued
	}
	b.Total = len(members)
	now := formatTime(time.Now())

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin batch tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO batches (`+batchColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, 0, 0, NULL, NULL, NULL, ?, ?)`,
		b.ID, b.UserID, b.Name, b.TemplateID, b.PersonaID, b.Status, b.Total, now, now,
	); err != nil {
		return nil, fmt.Errorf("insert batch: %w", err)
	}

	for _, member := range members {
		if member.ID == "" {
			member.ID = uuid.NewString()
		}
		member.BatchID = b.ID
		member.Status = campaign.StatusQueued
		variables := member.Variables
		if variables == nil {
			variables = map[string]string{}
		}
		data, err := marshalOptional(&variables)
		if err != nil {
			return nil, fmt.Errorf("encode variables: %w", err)
		}
		styleJSON, err := marshalOptional(member.CaptionCustomStyle)
		if err != nil {
			return nil, fmt.Errorf("encode caption style: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO campaigns (
                id, user_id, name, description, persona_id, template_id, batch_id, variables_json,
                use_lip_sync, lip_sync_model, caption_preset_id, caption_style_json, caption_segmentation_mode,
                status, created_at, updated_at
            ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			member.ID,
			member.UserID,
			member.Name,
			nullableString(member.Description),
			member.PersonaID,
			member.TemplateID,
			b.ID,
			data,
			boolToInt(member.UseLipSync),
			nullableString(member.LipSyncModel),
			nullableString(member.CaptionPresetID),
			styleJSON,
			nullableString(string(member.CaptionSegmentationMode)),
			member.Status,
			now,
			now,
		); err != nil {
			return nil, fmt.Errorf("insert batch member %s: %w", member.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit batch: %w", err)
	}
	return s.GetBatch(ctx, b.ID)
}

// GetBatch returns nil, nil when the batch does not exist.
func (s *Store) GetBatch(ctx context.Context, id string) (*campaign.Batch, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+batchColumns+` FROM batches WHERE id = ?`, id)
	b, err := scanBatch(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get batch: %w", err)
	}
	return b, nil
}

// ListBatches returns a user's batches, newest first.
func (s *Store) ListBatches(ctx context.Context, userID string) ([]*campaign.Batch, error) {
	query := `SELECT ` + batchColumns + ` FROM batches`
	var args []any
	if userID != "" {
		query += ` WHERE user_id = ?`
		args = append(args, userID)
	}
	rows, err := s.db.QueryContext(ctx, query+` ORDER BY created_at DESC, id`, args...)
	if err != nil {
		return nil, fmt.Errorf("list batches: %w", err)
	}
	defer rows.Close()
	var batches []*campaign.Batch
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, fmt.Errorf("scan batch: %w", err)
		}
		batches = append(batches, b)
	}
	return batches, rows.Err()
}

// UpdateBatch persists status, counters, error and timestamps of b.
func (s *Store) UpdateBatch(ctx context.Context, b *campaign.Batch) error {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE batches
         SET status = ?, total = ?, completed = ?, failed = ?, error_message = ?,
             started_at = ?, completed_at = ?, updated_at = ?
         WHERE id = ?`,
		b.Status,
		b.Total,
		b.Completed,
		b.Failed,
		nullableString(b.ErrorMessage),
		nullableTime(b.StartedAt),
		nullableTime(b.CompletedAt),
		formatTime(time.Now()),
		b.ID,
	)
	if err != nil {
		return fmt.Errorf("update batch: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return fmt.Errorf("update batch %s: %w", b.ID, sql.ErrNoRows)
	}
	return nil
}

// BatchMembers returns the campaigns of a batch in creation order.
func (s *Store) BatchMembers(ctx context.Context, batchID string) ([]*campaign.Campaign, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+campaignColumns+` FROM campaigns WHERE batch_id = ? ORDER BY created_at, rowid`, batchID)
	if err != nil {
		return nil, fmt.Errorf("list batch members: %w", err)
	}
	defer rows.Close()
	var members []*campaign.Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, fmt.Errorf("scan batch member: %w", err)
		}
		members = append(members, c)
	}
	return members, rows.Err()
}

func scanBatch(scanner rowScanner) (*campaign.Batch, error) {
	var (
		b                                                campaign.Batch
		errorMessage                                     sql.NullString
		startedRaw, completedRaw, createdRaw, updatedRaw sql.NullString
	)
	if err := scanner.Scan(
		&b.ID, &b.UserID, &b.Name, &b.TemplateID, &b.PersonaID, &b.Status, &b.Total, &b.Completed, &b.Failed,
		&errorMessage, &startedRaw, &completedRaw, &createdRaw, &updatedRaw,
	); err != nil {
		return nil, err
	}
	b.ErrorMessage = errorMessage.String
	b.StartedAt = parseOptionalTime(startedRaw)
	b.CompletedAt = parseOptionalTime(completedRaw)
	b.CreatedAt = parseTime(createdRaw)
	b.UpdatedAt = parseTime(updatedRaw)
	return &b, nil
}
