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

const personaColumns = `id, user_id, name, base_prompt, reference_image_url, voice_id, voice_name, created_at, updated_at`

// UpsertPersona inserts a persona or replaces the editable fields of an
// existing one with the same id.
func (s *Store) UpsertPersona(ctx context.Context, p *campaign.Persona) (*campaign.Persona, error) {
	if p == nil {
		return nil, errors.New("persona is nil")
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := formatTime(time.Now())
	if _, err := s.execWithRetry(
		ctx,
		`INSERT INTO personas (`+personaColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT(id) DO UPDATE SET
            name = excluded.name,
            base_prompt = excluded.base_prompt,
            reference_image_url = excluded.reference_image_url,
            voice_id = excluded.voice_id,
            voice_name = excluded.voice_name,
            updated_at = excluded.updated_at`,
		p.ID,
		p.UserID,
		p.Name,
		nullableString(p.BasePrompt),
		nullableString(p.ReferenceImageURL),
		nullableString(p.VoiceID),
		nullableString(p.VoiceName),
		now,
		now,
	); err != nil {
		return nil, fmt.Errorf("upsert persona: %w", err)
	}
	return s.GetPersona(ctx, p.ID)
}

// GetPersona returns nil, nil when the persona does not exist.
func (s *Store) GetPersona(ctx context.Context, id string) (*campaign.Persona, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+personaColumns+` FROM personas WHERE id = ?`, id)
	p, err := scanPersona(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get persona: %w", err)
	}
	return p, nil
}

// ListPersonas returns the personas owned by userID ordered by name. An empty
// userID lists every persona.
func (s *Store) ListPersonas(ctx context.Context, userID string) ([]*campaign.Persona, error) {
	query := `SELECT ` + personaColumns + ` FROM personas`
	var args []any
	if userID != "" {
		query += ` WHERE user_id = ?`
		args = append(args, userID)
	}
	rows, err := s.db.QueryContext(ctx, query+` ORDER BY name, id`, args...)
	if err != nil {
		return nil, fmt.Errorf("list personas: %w", err)
	}
	defer rows.Close()

	var personas []*campaign.Persona
	for rows.Next() {
		p, err := scanPersona(rows)
		if err != nil {
			return nil, fmt.Errorf("scan persona: %w", err)
		}
		personas = append(personas, p)
	}
	return personas, rows.Err()
}

// DeletePersona removes a persona. Campaigns still referencing it make the
// delete fail on the foreign key.
func (s *Store) DeletePersona(ctx context.Context, id string) error {
	if err := s.execWithoutResultRetry(ctx, `DELETE FROM personas WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete persona: %w", err)
	}
	return nil
}

func scanPersona(scanner rowScanner) (*campaign.Persona, error) {
	var (
		p                                        campaign.Persona
		basePrompt, refImage, voiceID, voiceName sql.NullString
		createdRaw, updatedRaw                   sql.NullString
	)
	if err := scanner.Scan(
		&p.ID, &p.UserID, &p.Name, &basePrompt, &refImage, &voiceID, &voiceName, &createdRaw, &updatedRaw,
	); err != nil {
		return nil, err
	}
	p.BasePrompt = basePrompt.String
	p.ReferenceImageURL = refImage.String
	p.VoiceID = voiceID.String
	p.VoiceName = voiceName.String
	p.CreatedAt = parseTime(createdRaw)
	p.UpdatedAt = parseTime(updatedRaw)
	return &p, nil
}
