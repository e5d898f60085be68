package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"reelsmith/internal/campaign"
)

const templateColumns = `id, user_id, slug, name, description, category, icon,
    image_prompt, video_prompt, narration,
    default_image_model, default_video_model, default_aspect_ratio, default_video_duration,
    overlay_json, variables_json, is_system, is_active, created_at, updated_at`

// TemplateFilter narrows ListTemplates results.
type TemplateFilter struct {
	Category string
	// IncludeInactive lists templates whose is_active flag is off.
	IncludeInactive bool
}

// UpsertTemplate inserts a template or updates the template that already
// holds the same slug. The stored template is returned with its id.
func (s *Store) UpsertTemplate(ctx context.Context, t *campaign.Template) (*campaign.Template, error) {
	if t == nil {
		return nil, errors.New("template is nil")
	}
	if strings.TrimSpace(t.Slug) == "" {
		return nil, errors.New("template slug is required")
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Category == "" {
		t.Category = "product"
	}
	variables := t.Variables
	if variables == nil {
		variables = []campaign.TemplateVariable{}
	}
	variablesJSON, err := json.Marshal(variables)
	if err != nil {
		return nil, fmt.Errorf("encode template variables: %w", err)
	}
	overlayJSON, err := marshalOptional(t.Overlay)
	if err != nil {
		return nil, fmt.Errorf("encode overlay: %w", err)
	}
	now := formatTime(time.Now())

	if _, err := s.execWithRetry(
		ctx,
		`INSERT INTO templates (`+templateColumns+`)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT(slug) DO UPDATE SET
            name = excluded.name,
            description = excluded.description,
            category = excluded.category,
            icon = excluded.icon,
            image_prompt = excluded.image_prompt,
            video_prompt = excluded.video_prompt,
            narration = excluded.narration,
            default_image_model = excluded.default_image_model,
            default_video_model = excluded.default_video_model,
            default_aspect_ratio = excluded.default_aspect_ratio,
            default_video_duration = excluded.default_video_duration,
            overlay_json = excluded.overlay_json,
            variables_json = excluded.variables_json,
            is_system = excluded.is_system,
            is_active = excluded.is_active,
            updated_at = excluded.updated_at`,
		t.ID,
		nullableString(t.UserID),
		t.Slug,
		t.Name,
		nullableString(t.Description),
		t.Category,
		nullableString(t.Icon),
		nullableString(t.ImagePromptTemplate),
		nullableString(t.VideoPromptTemplate),
		nullableString(t.NarrationTemplate),
		nullableString(t.DefaultImageModel),
		nullableString(t.DefaultVideoModel),
		nullableString(t.DefaultAspectRatio),
		nullableInt(t.DefaultVideoDuration),
		overlayJSON,
		string(variablesJSON),
		boolToInt(t.IsSystem),
		boolToInt(t.IsActive),
		now,
		now,
	); err != nil {
		return nil, fmt.Errorf("upsert template %s: %w", t.Slug, err)
	}
	return s.GetTemplateBySlug(ctx, t.Slug)
}

// GetTemplate returns nil, nil when the template does not exist.
func (s *Store) GetTemplate(ctx context.Context, id string) (*campaign.Template, error) {
	return s.getTemplate(ctx, "id", id)
}

// GetTemplateBySlug returns nil, nil when no template has the slug.
func (s *Store) GetTemplateBySlug(ctx context.Context, slug string) (*campaign.Template, error) {
	return s.getTemplate(ctx, "slug", slug)
}

func (s *Store) getTemplate(ctx context.Context, column, value string) (*campaign.Template, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+templateColumns+` FROM templates WHERE `+column+` = ?`, value)
	t, err := scanTemplate(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get template: %w", err)
	}
	return t, nil
}

// ListTemplates returns templates ordered with system templates first, then
// by name.
func (s *Store) ListTemplates(ctx context.Context, filter TemplateFilter) ([]*campaign.Template, error) {
	var (
		clauses []string
		args    []any
	)
	if !filter.IncludeInactive {
		clauses = append(clauses, "is_active = 1")
	}
	if filter.Category != "" {
		clauses = append(clauses, "category = ?")
		args = append(args, filter.Category)
	}
	query := `SELECT ` + templateColumns + ` FROM templates`
	if len(clauses) > 0 {
		query += ` WHERE ` + strings.Join(clauses, " AND ")
	}
	rows, err := s.db.QueryContext(ctx, query+` ORDER BY is_system DESC, name, slug`, args...)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer rows.Close()

	var templates []*campaign.Template
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan template: %w", err)
		}
		templates = append(templates, t)
	}
	return templates, rows.Err()
}

// SetTemplateActive toggles whether a template is offered for new campaigns.
func (s *Store) SetTemplateActive(ctx context.Context, id string, active bool) error {
	res, err := s.execWithRetry(ctx,
		`UPDATE templates SET is_active = ?, updated_at = ? WHERE id = ?`,
		boolToInt(active), formatTime(time.Now()), id,
	)
	if err != nil {
		return fmt.Errorf("update template: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return fmt.Errorf("update template %s: %w", id, sql.ErrNoRows)
	}
	return nil
}

// DeleteTemplate removes a template. Campaigns still referencing it make the
// delete fail on the foreign key.
func (s *Store) DeleteTemplate(ctx context.Context, id string) error {
	if err := s.execWithoutResultRetry(ctx, `DELETE FROM templates WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete template: %w", err)
	}
	return nil
}

func scanTemplate(scanner rowScanner) (*campaign.Template, error) {
	var (
		t                                   campaign.Template
		userID, description, icon           sql.NullString
		imagePrompt, videoPrompt, narration sql.NullString
		imageModel, videoModel, aspectRatio sql.NullString
		videoDuration                       sql.NullInt64
		overlayJSON                         sql.NullString
		variablesJSON                       string
		isSystem, isActive                  int
		createdRaw, updatedRaw              sql.NullString
	)
	if err := scanner.Scan(
		&t.ID, &userID, &t.Slug, &t.Name, &description, &t.Category, &icon,
		&imagePrompt, &videoPrompt, &narration,
		&imageModel, &videoModel, &aspectRatio, &videoDuration,
		&overlayJSON, &variablesJSON, &isSystem, &isActive, &createdRaw, &updatedRaw,
	); err != nil {
		return nil, err
	}
	t.UserID = userID.String
	t.Description = description.String
	t.Icon = icon.String
	t.ImagePromptTemplate = imagePrompt.String
	t.VideoPromptTemplate = videoPrompt.String
	t.NarrationTemplate = narration.String
	t.DefaultImageModel = imageModel.String
	t.DefaultVideoModel = videoModel.String
	t.DefaultAspectRatio = aspectRatio.String
	t.DefaultVideoDuration = int(videoDuration.Int64)
	t.IsSystem = isSystem != 0
	t.IsActive = isActive != 0

	overlay, err := unmarshalOptional[campaign.OverlayConfig](overlayJSON, "overlay_json")
	if err != nil {
		return nil, err
	}
	t.Overlay = overlay
	t.Variables = []campaign.TemplateVariable{}
	if variablesJSON != "" {
		if err := json.Unmarshal([]byte(variablesJSON), &t.Variables); err != nil {
			return nil, fmt.Errorf("decode variables_json: %w", err)
		}
	}
	t.CreatedAt = parseTime(createdRaw)
	t.UpdatedAt = parseTime(updatedRaw)
	return &t, nil
}
