package replicate

import (
	"context"
	"strings"

	"reelsmith/internal/logging"
	"reelsmith/internal/services"
	"reelsmith/internal/storage"
)

// Defaults applied when neither the caller nor the template picks a value.
const (
	DefaultImageModel   = "black-forest-labs/flux-schnell"
	DefaultVideoModel   = "minimax/video-01"
	DefaultLipSyncModel = "sadtalker"
	DefaultAspectRatio  = "1:1"
	DefaultDuration     = 5
)

// LipSyncModel describes how a short lip-sync model name maps onto a
// Replicate model and its input field names.
type LipSyncModel struct {
	Name       string
	Model      string
	ImageInput string
	AudioInput string
	Extra      map[string]any
}

// LipSyncModels lists the lip-sync models campaigns may select.
var LipSyncModels = map[string]LipSyncModel{
	"sadtalker": {
		Name:       "sadtalker",
		Model:      "cjwbw/sadtalker",
		ImageInput: "source_image",
		AudioInput: "driven_audio",
		Extra:      map[string]any{"enhancer": "gfpgan", "preprocess": "full", "still": true},
	},
	"wav2lip": {
		Name:       "wav2lip",
		Model:      "devxpy/cog-wav2lip",
		ImageInput: "face",
		AudioInput: "audio",
	},
}

// Result is a generated asset copied into local storage.
type Result struct {
	OutputURL    string
	PublicID     string
	ThumbnailURL string
	PredictionID string
	SourceURL    string
}

// ImageParams selects the text-to-image generation inputs.
type ImageParams struct {
	Prompt      string
	Model       string
	AspectRatio string
}

// VideoParams selects the image-to-video generation inputs.
type VideoParams struct {
	Prompt         string
	Model          string
	SourceImageURL string
	Duration       int
}

// LipSyncParams selects the talking-head generation inputs.
type LipSyncParams struct {
	Model    string
	ImageURL string
	AudioURL string
}

// GenerateImage renders an image from a text prompt.
func (c *Client) GenerateImage(ctx context.Context, apiKey string, params ImageParams) (Result, error) {
	if strings.TrimSpace(params.Prompt) == "" {
		return Result{}, services.Wrap(services.ErrValidation, "replicate", "generate image", "prompt required", nil)
	}
	model := firstNonEmpty(params.Model, DefaultImageModel)
	input := map[string]any{
		"prompt":        params.Prompt,
		"aspect_ratio":  firstNonEmpty(params.AspectRatio, DefaultAspectRatio),
		"output_format": "png",
		"num_outputs":   1,
	}
	return c.generate(ctx, apiKey, model, input, storage.FolderImages)
}

// GenerateVideo animates the source image guided by the prompt.
func (c *Client) GenerateVideo(ctx context.Context, apiKey string, params VideoParams) (Result, error) {
	if strings.TrimSpace(params.Prompt) == "" {
		return Result{}, services.Wrap(services.ErrValidation, "replicate", "generate video", "prompt required", nil)
	}
	model := firstNonEmpty(params.Model, DefaultVideoModel)
	duration := params.Duration
	if duration <= 0 {
		duration = DefaultDuration
	}
	input := map[string]any{
		"prompt":   params.Prompt,
		"duration": duration,
	}
	if src := strings.TrimSpace(params.SourceImageURL); src != "" {
		input[videoImageInput(model)] = src
	}
	return c.generate(ctx, apiKey, model, input, storage.FolderVideos)
}

// GenerateLipSync animates a portrait so it speaks the narration audio.
func (c *Client) GenerateLipSync(ctx context.Context, apiKey string, params LipSyncParams) (Result, error) {
	if strings.TrimSpace(params.ImageURL) == "" || strings.TrimSpace(params.AudioURL) == "" {
		return Result{}, services.Wrap(services.ErrValidation, "replicate", "generate lip-sync", "image and audio required", nil)
	}
	spec := ResolveLipSyncModel(params.Model)
	input := map[string]any{
		spec.ImageInput: params.ImageURL,
		spec.AudioInput: params.AudioURL,
	}
	for key, value := range spec.Extra {
		input[key] = value
	}
	return c.generate(ctx, apiKey, spec.Model, input, storage.FolderLipSync)
}

// ResolveLipSyncModel maps a short name onto its Replicate model. Unknown
// names are treated as Replicate model identifiers with generic inputs.
func ResolveLipSyncModel(name string) LipSyncModel {
	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultLipSyncModel
	}
	if spec, ok := LipSyncModels[strings.ToLower(name)]; ok {
		return spec
	}
	return LipSyncModel{Name: name, Model: name, ImageInput: "image", AudioInput: "audio"}
}

func (c *Client) generate(ctx context.Context, apiKey, model string, input map[string]any, folder string) (Result, error) {
	prediction, err := c.Run(ctx, apiKey, model, input)
	if err != nil {
		return Result{}, err
	}
	urls := prediction.OutputURLs()
	if len(urls) == 0 {
		return Result{}, services.Wrap(services.ErrExternalTool, "replicate", "generate", "prediction "+prediction.ID+" returned no output", nil)
	}
	result := Result{PredictionID: prediction.ID, SourceURL: urls[0], OutputURL: urls[0]}
	if c.assets == nil {
		return result, nil
	}
	asset, err := c.assets.Fetch(ctx, urls[0], folder)
	if err != nil {
		return Result{}, services.Wrap(services.ErrExternalTool, "replicate", "store output", "download "+urls[0], err)
	}
	result.OutputURL = asset.URL
	result.PublicID = asset.PublicID
	c.logger.Info("generation stored",
		logging.String("model", model),
		logging.String("prediction_id", prediction.ID),
		logging.String("public_id", asset.PublicID),
	)
	return result, nil
}

// videoImageInput returns the input key the video model expects for its
// first frame.
func videoImageInput(model string) string {
	if strings.HasPrefix(model, "minimax/") {
		return "first_frame_image"
	}
	return "image"
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
