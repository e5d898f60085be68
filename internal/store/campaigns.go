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
	"reelsmith/internal/captions"
)

const campaignColumns = `id, user_id, name, description, persona_id, template_id, batch_id, variables_json,
    use_lip_sync, lip_sync_model, caption_preset_id, caption_style_json, caption_segmentation_mode,
    status, error_message,
    image_url, image_public_id, video_url, video_public_id, video_thumbnail_url,
    audio_url, audio_public_id, lip_sync_video_url, lip_sync_video_public_id,
    composed_image_url, composed_image_public_id, composed_video_url, composed_video_public_id,
    srt_url, subtitle_json, started_at, completed_at, created_at, updated_at`

// DefaultListLimit is the page size used when a filter leaves Limit unset.
const DefaultListLimit = 12

// CampaignFilter narrows ListCampaigns results.
type CampaignFilter struct {
	UserID     string
	Status     campaign.Status
	PersonaID  string
	TemplateID string
	BatchID    string
	Search     string
	Page       int
	Limit      int
	OrderBy    string
	OrderDir   string
}

func (f CampaignFilter) normalized() CampaignFilter {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 {
		f.Limit = DefaultListLimit
	}
	switch f.OrderBy {
	case "name", "updated_at", "created_at":
	case "updatedAt":
		f.OrderBy = "updated_at"
	default:
		f.OrderBy = "created_at"
	}
	if strings.EqualFold(f.OrderDir, "asc") {
		f.OrderDir = "ASC"
	} else {
		f.OrderDir = "DESC"
	}
	return f
}

// CampaignPatch lists the fields to write in UpdateCampaign. Nil fields are
// left untouched; pointers to empty strings clear the column.
type CampaignPatch struct {
	Name                    *string
	Description             *string
	Variables               map[string]string
	UseLipSync              *bool
	LipSyncModel            *string
	CaptionPresetID         *string
	CaptionCustomStyle      *captions.StyleOverrides
	CaptionSegmentationMode *captions.Mode

	Status       *campaign.Status
	ErrorMessage *string

	ImageURL              *string
	ImagePublicID         *string
	VideoURL              *string
	VideoPublicID         *string
	VideoThumbnailURL     *string
	AudioURL              *string
	AudioPublicID         *string
	LipSyncVideoURL       *string
	LipSyncVideoPublicID  *string
	ComposedImageURL      *string
	ComposedImagePublicID *string
	ComposedVideoURL      *string
	ComposedVideoPublicID *string
	SRTURL                *string
	Subtitles             *campaign.SubtitleData

	StartedAt   *time.Time
	CompletedAt *time.Time
}

// CreateCampaign inserts a campaign. Missing ids are generated and a missing
// status defaults to draft.
func (s *Store) CreateCampaign(ctx context.Context, c *campaign.Campaign) (*campaign.Campaign, error) {
	if c == nil {
		return nil, errors.New("campaign is nil")
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.Status == "" {
		c.Status = campaign.StatusDraft
	}
	variables := c.Variables
	if variables == nil {
		variables = map[string]string{}
	}
	variablesJSON, err := json.Marshal(variables)
	if err != nil {
		return nil, fmt.Errorf("encode variables: %w", err)
	}
	styleJSON, err := marshalOptional(c.CaptionCustomStyle)
	if err != nil {
		return nil, fmt.Errorf("encode caption style: %w", err)
	}
	now := formatTime(time.Now())

	if _, err := s.execWithRetry(
		ctx,
		`INSERT INTO campaigns (
            id, user_id, name, description, persona_id, template_id, batch_id, variables_json,
            use_lip_sync, lip_sync_model, caption_preset_id, caption_style_json, caption_segmentation_mode,
            status, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID,
		c.UserID,
		c.Name,
		nullableString(c.Description),
		c.PersonaID,
		c.TemplateID,
		nullableString(c.BatchID),
		string(variablesJSON),
		boolToInt(c.UseLipSync),
		nullableString(c.LipSyncModel),
		nullableString(c.CaptionPresetID),
		styleJSON,
		nullableString(string(c.CaptionSegmentationMode)),
		c.Status,
		now,
		now,
	); err != nil {
		return nil, fmt.Errorf("insert campaign: %w", err)
	}
	return s.GetCampaign(ctx, c.ID)
}

// GetCampaign fetches a campaign with its execution log. It returns nil, nil
// when the campaign does not exist.
func (s *Store) GetCampaign(ctx context.Context, id string) (*campaign.Campaign, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+campaignColumns+` FROM campaigns WHERE id = ?`, id)
	c, err := scanCampaign(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get campaign: %w", err)
	}
	entries, err := s.ExecutionLog(ctx, id)
	if err != nil {
		return nil, err
	}
	c.ExecutionLog = entries
	return c, nil
}

// ListCampaigns returns one page of campaigns matching filter plus the total
// number of matches. Execution logs are not loaded.
func (s *Store) ListCampaigns(ctx context.Context, filter CampaignFilter) ([]*campaign.Campaign, int, error) {
	filter = filter.normalized()

	var (
		clauses []string
		args    []any
	)
	if filter.UserID != "" {
		clauses = append(clauses, "user_id = ?")
		args = append(args, filter.UserID)
	}
	if filter.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, filter.Status)
	}
	if filter.PersonaID != "" {
		clauses = append(clauses, "persona_id = ?")
		args = append(args, filter.PersonaID)
	}
	if filter.TemplateID != "" {
		clauses = append(clauses, "template_id = ?")
		args = append(args, filter.TemplateID)
	}
	if filter.BatchID != "" {
		clauses = append(clauses, "batch_id = ?")
		args = append(args, filter.BatchID)
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		clauses = append(clauses, "(name LIKE ? OR description LIKE ?)")
		pattern := "%" + search + "%"
		args = append(args, pattern, pattern)
	}
	where := ""
	if len(clauses) > 0 {
		where = " WHERE " + strings.Join(clauses, " AND ")
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM campaigns`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count campaigns: %w", err)
	}

	query := `SELECT ` + campaignColumns + ` FROM campaigns` + where +
		` ORDER BY ` + filter.OrderBy + ` ` + filter.OrderDir + `, id ` + filter.OrderDir +
		` LIMIT ? OFFSET ?`
	pageArgs := append(append([]any{}, args...), filter.Limit, (filter.Page-1)*filter.Limit)
	rows, err := s.db.QueryContext(ctx, query, pageArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("list campaigns: %w", err)
	}
	defer rows.Close()

	var campaigns []*campaign.Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan campaign: %w", err)
		}
		campaigns = append(campaigns, c)
	}
	return campaigns, total, rows.Err()
}

// UpdateCampaign writes the non-nil fields of patch. It is a no-op for an
// empty patch apart from bumping updated_at.
func (s *Store) UpdateCampaign(ctx context.Context, id string, patch CampaignPatch) error {
	var (
		sets []string
		args []any
	)
	set := func(column string, value any) {
		sets = append(sets, column+" = ?")
		args = append(args, value)
	}
	setString := func(column string, value *string) {
		if value != nil {
			set(column, nullableString(*value))
		}
	}

	setString("name", patch.Name)
	setString("description", patch.Description)
	if patch.Variables != nil {
		data, err := json.Marshal(patch.Variables)
		if err != nil {
			return fmt.Errorf("encode variables: %w", err)
		}
		set("variables_json", string(data))
	}
	if patch.UseLipSync != nil {
		set("use_lip_sync", boolToInt(*patch.UseLipSync))
	}
	setString("lip_sync_model", patch.LipSyncModel)
	setString("caption_preset_id", patch.CaptionPresetID)
	if patch.CaptionCustomStyle != nil {
		data, err := marshalOptional(patch.CaptionCustomStyle)
		if err != nil {
			return fmt.Errorf("encode caption style: %w", err)
		}
		set("caption_style_json", data)
	}
	if patch.CaptionSegmentationMode != nil {
		set("caption_segmentation_mode", nullableString(string(*patch.CaptionSegmentationMode)))
	}
	if patch.Status != nil {
		set("status", string(*patch.Status))
	}
	setString("error_message", patch.ErrorMessage)
	setString("image_url", patch.ImageURL)
	setString("image_public_id", patch.ImagePublicID)
	setString("video_url", patch.VideoURL)
	setString("video_public_id", patch.VideoPublicID)
	setString("video_thumbnail_url", patch.VideoThumbnailURL)
	setString("audio_url", patch.AudioURL)
	setString("audio_public_id", patch.AudioPublicID)
	setString("lip_sync_video_url", patch.LipSyncVideoURL)
	setString("lip_sync_video_public_id", patch.LipSyncVideoPublicID)
	setString("composed_image_url", patch.ComposedImageURL)
	setString("composed_image_public_id", patch.ComposedImagePublicID)
	setString("composed_video_url", patch.ComposedVideoURL)
	setString("composed_video_public_id", patch.ComposedVideoPublicID)
	setString("srt_url", patch.SRTURL)
	if patch.Subtitles != nil {
		data, err := marshalOptional(patch.Subtitles)
		if err != nil {
			return fmt.Errorf("encode subtitles: %w", err)
		}
		set("subtitle_json", data)
	}
	if patch.StartedAt != nil {
		set("started_at", nullableTime(patch.StartedAt))
	}
	if patch.CompletedAt != nil {
		set("completed_at", nullableTime(patch.CompletedAt))
	}
	set("updated_at", formatTime(time.Now()))
	args = append(args, id)

	res, err := s.execWithRetry(ctx, `UPDATE campaigns SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return fmt.Errorf("update campaign: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return fmt.Errorf("update campaign %s: %w", id, sql.ErrNoRows)
	}
	return nil
}

// UpdateStatus sets the campaign status and error message.
func (s *Store) UpdateStatus(ctx context.Context, id string, status campaign.Status, errorMessage string) error {
	return s.UpdateCampaign(ctx, id, CampaignPatch{Status: &status, ErrorMessage: &errorMessage})
}

// BeginRun moves a campaign to running, clears its error message and stamps
// started_at. It returns the run number the new log entries belong to, or
// ErrAlreadyRunning when another run is in flight.
func (s *Store) BeginRun(ctx context.Context, id string) (int, error) {
	now := formatTime(time.Now())
	res, err := s.execWithRetry(
		ctx,
		`UPDATE campaigns
         SET status = ?, error_message = NULL, started_at = ?, completed_at = NULL, updated_at = ?
         WHERE id = ? AND status <> ?`,
		campaign.StatusRunning,
		now,
		now,
		id,
		campaign.StatusRunning,
	)
	if err != nil {
		return 0, fmt.Errorf("begin run: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		existing, getErr := s.GetCampaign(ctx, id)
		if getErr != nil {
			return 0, getErr
		}
		if existing == nil {
			return 0, fmt.Errorf("begin run %s: %w", id, sql.ErrNoRows)
		}
		return 0, ErrAlreadyRunning
	}

	var run int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(run), 0) + 1 FROM execution_log WHERE campaign_id = ?`, id,
	).Scan(&run); err != nil {
		return 0, fmt.Errorf("next run number: %w", err)
	}
	return run, nil
}

// FinishRun records the final status of a run.
func (s *Store) FinishRun(ctx context.Context, id string, status campaign.Status, errorMessage string) error {
	now := time.Now()
	return s.UpdateCampaign(ctx, id, CampaignPatch{
		Status:       &status,
		ErrorMessage: &errorMessage,
		CompletedAt:  &now,
	})
}

// TransitionStatus changes status only when the campaign is currently in from.
func (s *Store) TransitionStatus(ctx context.Context, id string, from, to campaign.Status, errorMessage string) error {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE campaigns SET status = ?, error_message = ?, updated_at = ? WHERE id = ? AND status = ?`,
		to,
		nullableString(errorMessage),
		formatTime(time.Now()),
		id,
		from,
	)
	if err != nil {
		return fmt.Errorf("transition campaign: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return fmt.Errorf("campaign %s not %s: %w", id, from, ErrInvalidTransition)
	}
	return nil
}

// DeleteCampaign removes a campaign and its execution log.
func (s *Store) DeleteCampaign(ctx context.Context, id string) error {
	if err := s.execWithoutResultRetry(ctx, `DELETE FROM campaigns WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete campaign: %w", err)
	}
	return nil
}

// FailInterrupted marks every campaign still running as failed. It is used at
// daemon start to close out runs that a crash or restart cut short.
func (s *Store) FailInterrupted(ctx context.Context, message string) (int64, error) {
	now := formatTime(time.Now())
	res, err := s.execWithRetry(
		ctx,
		`UPDATE campaigns SET status = ?, error_message = ?, completed_at = ?, updated_at = ? WHERE status = ?`,
		campaign.StatusFailed,
		nullableString(message),
		now,
		now,
		campaign.StatusRunning,
	)
	if err != nil {
		return 0, fmt.Errorf("fail interrupted campaigns: %w", err)
	}
	return res.RowsAffected()
}

// CampaignStats returns campaign counts grouped by status.
func (s *Store) CampaignStats(ctx context.Context, userID string) (map[campaign.Status]int, error) {
	query := `SELECT status, COUNT(1) FROM campaigns`
	var args []any
	if userID != "" {
		query += ` WHERE user_id = ?`
		args = append(args, userID)
	}
	rows, err := s.db.QueryContext(ctx, query+` GROUP BY status`, args...)
	if err != nil {
		return nil, fmt.Errorf("campaign stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[campaign.Status]int)
	for rows.Next() {
		var status campaign.Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

func scanCampaign(scanner rowScanner) (*campaign.Campaign, error) {
	var (
		c                                                  campaign.Campaign
		description, batchID, lipSyncModel, presetID, mode sql.NullString
		variablesJSON                                      string
		styleJSON, subtitleJSON, errorMessage, status      sql.NullString
		useLipSync                                         int
		imageURL, imageID, videoURL, videoID, thumbURL     sql.NullString
		audioURL, audioID, lipURL, lipID                   sql.NullString
		composedImageURL, composedImageID                  sql.NullString
		composedVideoURL, composedVideoID, srtURL          sql.NullString
		startedRaw, completedRaw, createdRaw, updatedRaw   sql.NullString
	)
	if err := scanner.Scan(
		&c.ID, &c.UserID, &c.Name, &description, &c.PersonaID, &c.TemplateID, &batchID, &variablesJSON,
		&useLipSync, &lipSyncModel, &presetID, &styleJSON, &mode,
		&status, &errorMessage,
		&imageURL, &imageID, &videoURL, &videoID, &thumbURL,
		&audioURL, &audioID, &lipURL, &lipID,
		&composedImageURL, &composedImageID, &composedVideoURL, &composedVideoID,
		&srtURL, &subtitleJSON, &startedRaw, &completedRaw, &createdRaw, &updatedRaw,
	); err != nil {
		return nil, err
	}

	c.Description = description.String
	c.BatchID = batchID.String
	c.UseLipSync = useLipSync != 0
	c.LipSyncModel = lipSyncModel.String
	c.CaptionPresetID = presetID.String
	c.CaptionSegmentationMode = captions.Mode(mode.String)
	c.Status = campaign.Status(status.String)
	c.ErrorMessage = errorMessage.String

	c.Variables = map[string]string{}
	if variablesJSON != "" {
		if err := json.Unmarshal([]byte(variablesJSON), &c.Variables); err != nil {
			return nil, fmt.Errorf("decode variables: %w", err)
		}
	}
	style, err := unmarshalOptional[captions.StyleOverrides](styleJSON, "caption_style_json")
	if err != nil {
		return nil, err
	}
	c.CaptionCustomStyle = style
	subtitles, err := unmarshalOptional[campaign.SubtitleData](subtitleJSON, "subtitle_json")
	if err != nil {
		return nil, err
	}

	c.Outputs = campaign.Outputs{
		ImageURL:              imageURL.String,
		ImagePublicID:         imageID.String,
		VideoURL:              videoURL.String,
		VideoPublicID:         videoID.String,
		VideoThumbnailURL:     thumbURL.String,
		AudioURL:              audioURL.String,
		AudioPublicID:         audioID.String,
		LipSyncVideoURL:       lipURL.String,
		LipSyncVideoPublicID:  lipID.String,
		ComposedImageURL:      composedImageURL.String,
		ComposedImagePublicID: composedImageID.String,
		ComposedVideoURL:      composedVideoURL.String,
		ComposedVideoPublicID: composedVideoID.String,
		SRTURL:                srtURL.String,
		Subtitles:             subtitles,
	}
	c.StartedAt = parseOptionalTime(startedRaw)
	c.CompletedAt = parseOptionalTime(completedRaw)
	c.CreatedAt = parseTime(createdRaw)
	c.UpdatedAt = parseTime(updatedRaw)
	return &c, nil
}
