package campaign

import (
	"time"

	"reelsmith/internal/captions"
)

// Defaults applied when neither the execution request nor the template names a value.
const (
	DefaultImageModel    = "black-forest-labs/flux-schnell"
	DefaultVideoModel    = "minimax/video-01"
	DefaultAspectRatio   = "1:1"
	DefaultVideoDuration = 5
	DefaultLipSyncModel  = "sadtalker"
)

// Outputs holds the artifacts produced by each step. An empty URL means the
// step never completed successfully.
type Outputs struct {
	ImageURL              string        `json:"imageUrl,omitempty"`
	ImagePublicID         string        `json:"imagePublicId,omitempty"`
	VideoURL              string        `json:"videoUrl,omitempty"`
	VideoPublicID         string        `json:"videoPublicId,omitempty"`
	VideoThumbnailURL     string        `json:"videoThumbnailUrl,omitempty"`
	AudioURL              string        `json:"audioUrl,omitempty"`
	AudioPublicID         string        `json:"audioPublicId,omitempty"`
	LipSyncVideoURL       string        `json:"lipSyncVideoUrl,omitempty"`
	LipSyncVideoPublicID  string        `json:"lipSyncVideoPublicId,omitempty"`
	ComposedImageURL      string        `json:"composedImageUrl,omitempty"`
	ComposedImagePublicID string        `json:"composedImagePublicId,omitempty"`
	ComposedVideoURL      string        `json:"composedVideoUrl,omitempty"`
	ComposedVideoPublicID string        `json:"composedVideoPublicId,omitempty"`
	SRTURL                string        `json:"srtUrl,omitempty"`
	Subtitles             *SubtitleData `json:"subtitleData,omitempty"`
}

// PublicIDs lists every stored asset id referenced by the outputs.
func (o Outputs) PublicIDs() []string {
	ids := make([]string, 0, 6)
	for _, id := range []string{
		o.ImagePublicID,
		o.VideoPublicID,
		o.AudioPublicID,
		o.ComposedImagePublicID,
		o.ComposedVideoPublicID,
		o.LipSyncVideoPublicID,
	} {
		if id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

// SubtitleData is the persisted caption track for a campaign.
type SubtitleData struct {
	Segments         []captions.Segment `json:"segments"`
	TotalDuration    float64            `json:"totalDuration"`
	SegmentationMode captions.Mode      `json:"segmentationMode"`
	GeneratedAt      time.Time          `json:"generatedAt"`
}

// Campaign is the unit of work executed by the pipeline.
type Campaign struct {
	ID          string            `json:"id"`
	UserID      string            `json:"userId"`
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	PersonaID   string            `json:"personaId"`
	TemplateID  string            `json:"templateId"`
	BatchID     string            `json:"batchId,omitempty"`
	Variables   map[string]string `json:"variables"`

	UseLipSync              bool                     `json:"useLipSync"`
	LipSyncModel            string                   `json:"lipSyncModel,omitempty"`
	CaptionPresetID         string                   `json:"captionPresetId,omitempty"`
	CaptionCustomStyle      *captions.StyleOverrides `json:"captionCustomStyle,omitempty"`
	CaptionSegmentationMode captions.Mode            `json:"captionSegmentationMode,omitempty"`

	Status       Status     `json:"status"`
	ErrorMessage string     `json:"errorMessage,omitempty"`
	ExecutionLog []LogEntry `json:"executionLog"`

	Outputs

	StartedAt   *time.Time `json:"startedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// Persona is a reusable character identity.
type Persona struct {
	ID                string    `json:"id" yaml:"id"`
	UserID            string    `json:"userId" yaml:"user_id"`
	Name              string    `json:"name" yaml:"name"`
	BasePrompt        string    `json:"basePrompt,omitempty" yaml:"base_prompt"`
	ReferenceImageURL string    `json:"referenceImageUrl,omitempty" yaml:"reference_image_url"`
	VoiceID           string    `json:"voiceId,omitempty" yaml:"voice_id"`
	VoiceName         string    `json:"voiceName,omitempty" yaml:"voice_name"`
	CreatedAt         time.Time `json:"createdAt" yaml:"-"`
	UpdatedAt         time.Time `json:"updatedAt" yaml:"-"`
}

// VariableType controls how a template variable is collected.
type VariableType string

const (
	VariableText     VariableType = "text"
	VariableTextarea VariableType = "textarea"
	VariableSelect   VariableType = "select"
)

// TemplateVariable declares one user supplied template input.
type TemplateVariable struct {
	Name         string       `json:"name" yaml:"name"`
	Label        string       `json:"label" yaml:"label"`
	Required     bool         `json:"required" yaml:"required"`
	Type         VariableType `json:"type" yaml:"type"`
	Options      []string     `json:"options,omitempty" yaml:"options,omitempty"`
	Placeholder  string       `json:"placeholder,omitempty" yaml:"placeholder,omitempty"`
	DefaultValue string       `json:"defaultValue,omitempty" yaml:"default_value,omitempty"`
}

// OverlayPosition anchors overlay text on the composed image.
type OverlayPosition string

const (
	OverlayTopLeft      OverlayPosition = "top-left"
	OverlayTopCenter    OverlayPosition = "top-center"
	OverlayTopRight     OverlayPosition = "top-right"
	OverlayCenter       OverlayPosition = "center"
	OverlayBottomLeft   OverlayPosition = "bottom-left"
	OverlayBottomCenter OverlayPosition = "bottom-center"
	OverlayBottomRight  OverlayPosition = "bottom-right"
)

// OverlayConfig describes the text overlay burned onto the generated image.
type OverlayConfig struct {
	Enabled         bool            `json:"enabled" yaml:"enabled"`
	Position        OverlayPosition `json:"position" yaml:"position"`
	FontSize        int             `json:"fontSize" yaml:"font_size"`
	FontFamily      string          `json:"fontFamily" yaml:"font_family"`
	Color           string          `json:"color" yaml:"color"`
	BackgroundColor string          `json:"backgroundColor" yaml:"background_color"`
	Opacity         float64         `json:"opacity" yaml:"opacity"`
	Padding         int             `json:"padding" yaml:"padding"`
	Text            string          `json:"text,omitempty" yaml:"text,omitempty"`
}

// Template is a reusable content blueprint.
type Template struct {
	ID                   string             `json:"id" yaml:"-"`
	UserID               string             `json:"userId,omitempty" yaml:"-"`
	Slug                 string             `json:"slug" yaml:"slug"`
	Name                 string             `json:"name" yaml:"name"`
	Description          string             `json:"description,omitempty" yaml:"description"`
	Category             string             `json:"category" yaml:"category"`
	Icon                 string             `json:"icon,omitempty" yaml:"icon"`
	ImagePromptTemplate  string             `json:"imagePromptTemplate,omitempty" yaml:"image_prompt"`
	VideoPromptTemplate  string             `json:"videoPromptTemplate,omitempty" yaml:"video_prompt"`
	NarrationTemplate    string             `json:"narrationTemplate,omitempty" yaml:"narration"`
	DefaultImageModel    string             `json:"defaultImageModel,omitempty" yaml:"default_image_model"`
	DefaultVideoModel    string             `json:"defaultVideoModel,omitempty" yaml:"default_video_model"`
	DefaultAspectRatio   string             `json:"defaultAspectRatio,omitempty" yaml:"default_aspect_ratio"`
	DefaultVideoDuration int                `json:"defaultVideoDuration,omitempty" yaml:"default_video_duration"`
	Overlay              *OverlayConfig     `json:"overlayConfig,omitempty" yaml:"overlay,omitempty"`
	Variables            []TemplateVariable `json:"variables" yaml:"variables"`
	IsSystem             bool               `json:"isSystem" yaml:"-"`
	IsActive             bool               `json:"isActive" yaml:"-"`
	CreatedAt            time.Time          `json:"createdAt" yaml:"-"`
	UpdatedAt            time.Time          `json:"updatedAt" yaml:"-"`
}

// ExecuteOptions are per-call overrides for a campaign run.
type ExecuteOptions struct {
	Steps              []Step                   `json:"steps,omitempty"`
	ImageModel         string                   `json:"imageModel,omitempty"`
	VideoModel         string                   `json:"videoModel,omitempty"`
	AspectRatio        string                   `json:"aspectRatio,omitempty"`
	VideoDuration      int                      `json:"videoDuration,omitempty"`
	CaptionPresetID    string                   `json:"captionPresetId,omitempty"`
	CaptionCustomStyle *captions.StyleOverrides `json:"captionCustomStyle,omitempty"`
	UseLipSync         *bool                    `json:"useLipSync,omitempty"`
	LipSyncModel       string                   `json:"lipSyncModel,omitempty"`
}
