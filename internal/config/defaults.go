package config

const (
	defaultConfigPath            = "~/.config/reelsmith/config.toml"
	defaultDataDir               = "~/.local/share/reelsmith"
	defaultLogDir                = "~/.local/share/reelsmith/logs"
	defaultAssetsDir             = "~/.local/share/reelsmith/assets"
	defaultAPIBind               = "127.0.0.1:7490"
	defaultGenerationBaseURL     = "https://api.replicate.com/v1"
	defaultGenerationPollSeconds = 2
	defaultGenerationTimeout     = 600
	defaultImageModel            = "black-forest-labs/flux-schnell"
	defaultVideoModel            = "minimax/video-01"
	defaultLipSyncModel          = "sadtalker"
	defaultAspectRatio           = "1:1"
	defaultVideoDuration         = 5
	defaultNarrationBaseURL      = "https://api.elevenlabs.io/v1"
	defaultNarrationModelID      = "eleven_multilingual_v2"
	defaultNarrationTimeout      = 120
	defaultFFmpegBinary          = "ffmpeg"
	defaultCompositionTimeout    = 300
	defaultCaptionPreset         = "viral-pop"
	defaultSegmentationMode      = "timed"
	defaultCaptionVideoWidth     = 1080
	defaultCaptionVideoHeight    = 1920
	defaultRefinerProvider       = "openrouter"
	defaultRefinerBaseURL        = "https://openrouter.ai/api/v1/chat/completions"
	defaultRefinerModel          = "google/gemini-2.5-flash"
	defaultRefinerReferer        = "https://github.com/reelsmith/reelsmith"
	defaultRefinerTitle          = "reelsmith prompt refiner"
	defaultRefinerTimeoutSeconds = 60
	defaultGeminiModel           = "gemini-2.5-flash"
	defaultBatchMaxConcurrent    = 2
	defaultNotifyRequestTimeout  = 10
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:   defaultDataDir,
			LogDir:    defaultLogDir,
			AssetsDir: defaultAssetsDir,
			APIBind:   defaultAPIBind,
		},
		Generation: Generation{
			BaseURL:             defaultGenerationBaseURL,
			PollIntervalSeconds: defaultGenerationPollSeconds,
			TimeoutSeconds:      defaultGenerationTimeout,
			ImageModel:          defaultImageModel,
			VideoModel:          defaultVideoModel,
			LipSyncModel:        defaultLipSyncModel,
			AspectRatio:         defaultAspectRatio,
			VideoDuration:       defaultVideoDuration,
		},
		Narration: Narration{
			BaseURL:        defaultNarrationBaseURL,
			ModelID:        defaultNarrationModelID,
			TimeoutSeconds: defaultNarrationTimeout,
		},
		Composition: Composition{
			Enabled:        true,
			FFmpegBinary:   defaultFFmpegBinary,
			TimeoutSeconds: defaultCompositionTimeout,
		},
		Captions: Captions{
			DefaultPreset:    defaultCaptionPreset,
			SegmentationMode: defaultSegmentationMode,
			VideoWidth:       defaultCaptionVideoWidth,
			VideoHeight:      defaultCaptionVideoHeight,
		},
		Refiner: Refiner{
			Provider:       defaultRefinerProvider,
			BaseURL:        defaultRefinerBaseURL,
			Model:          defaultRefinerModel,
			Referer:        defaultRefinerReferer,
			Title:          defaultRefinerTitle,
			TimeoutSeconds: defaultRefinerTimeoutSeconds,
			GeminiModel:    defaultGeminiModel,
		},
		Batch: Batch{
			MaxConcurrent: defaultBatchMaxConcurrent,
		},
		Notifications: Notifications{
			RequestTimeout:    defaultNotifyRequestTimeout,
			CampaignCompleted: true,
			CampaignFailed:    true,
			Batch:             true,
			Errors:            true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
