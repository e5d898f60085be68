package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeGeneration()
	c.normalizeNarration()
	if err := c.normalizeComposition(); err != nil {
		return err
	}
	c.normalizeCaptions()
	c.normalizeRefiner()
	if c.Batch.MaxConcurrent == 0 {
		c.Batch.MaxConcurrent = defaultBatchMaxConcurrent
	}
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.AssetsDir) == "" {
		c.Paths.AssetsDir = defaultAssetsDir
	}
	if c.Paths.AssetsDir, err = expandPath(c.Paths.AssetsDir); err != nil {
		return fmt.Errorf("paths.assets_dir: %w", err)
	}
	if c.Paths.TemplatesDir, err = expandPath(strings.TrimSpace(c.Paths.TemplatesDir)); err != nil {
		return fmt.Errorf("paths.templates_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	if c.Paths.APIToken == "" {
		if value, ok := os.LookupEnv("REELSMITH_API_TOKEN"); ok {
			c.Paths.APIToken = strings.TrimSpace(value)
		}
	}
	c.Paths.PublicBaseURL = strings.TrimRight(strings.TrimSpace(c.Paths.PublicBaseURL), "/")
	return nil
}

func (c *Config) normalizeGeneration() {
	c.Generation.BaseURL = strings.TrimRight(strings.TrimSpace(c.Generation.BaseURL), "/")
	if c.Generation.BaseURL == "" {
		c.Generation.BaseURL = defaultGenerationBaseURL
	}
	c.Generation.APIToken = strings.TrimSpace(c.Generation.APIToken)
	if c.Generation.APIToken == "" {
		if value, ok := os.LookupEnv("REPLICATE_API_TOKEN"); ok {
			c.Generation.APIToken = strings.TrimSpace(value)
		}
	}
	if c.Generation.PollIntervalSeconds <= 0 {
		c.Generation.PollIntervalSeconds = defaultGenerationPollSeconds
	}
	if c.Generation.TimeoutSeconds <= 0 {
		c.Generation.TimeoutSeconds = defaultGenerationTimeout
	}
	c.Generation.ImageModel = stringOr(c.Generation.ImageModel, defaultImageModel)
	c.Generation.VideoModel = stringOr(c.Generation.VideoModel, defaultVideoModel)
	c.Generation.LipSyncModel = stringOr(c.Generation.LipSyncModel, defaultLipSyncModel)
	c.Generation.AspectRatio = stringOr(c.Generation.AspectRatio, defaultAspectRatio)
	if c.Generation.VideoDuration <= 0 {
		c.Generation.VideoDuration = defaultVideoDuration
	}
}

func (c *Config) normalizeNarration() {
	c.Narration.BaseURL = strings.TrimRight(strings.TrimSpace(c.Narration.BaseURL), "/")
	if c.Narration.BaseURL == "" {
		c.Narration.BaseURL = defaultNarrationBaseURL
	}
	c.Narration.APIKey = strings.TrimSpace(c.Narration.APIKey)
	if c.Narration.APIKey == "" {
		if value, ok := os.LookupEnv("ELEVENLABS_API_KEY"); ok {
			c.Narration.APIKey = strings.TrimSpace(value)
		}
	}
	c.Narration.ModelID = stringOr(c.Narration.ModelID, defaultNarrationModelID)
	if c.Narration.TimeoutSeconds <= 0 {
		c.Narration.TimeoutSeconds = defaultNarrationTimeout
	}
}

func (c *Config) normalizeComposition() error {
	c.Composition.FFmpegBinary = stringOr(c.Composition.FFmpegBinary, defaultFFmpegBinary)
	if font := strings.TrimSpace(c.Composition.FontFile); font != "" {
		expanded, err := expandPath(font)
		if err != nil {
			return fmt.Errorf("composition.font_file: %w", err)
		}
		c.Composition.FontFile = expanded
	}
	if c.Composition.TimeoutSeconds <= 0 {
		c.Composition.TimeoutSeconds = defaultCompositionTimeout
	}
	return nil
}

func (c *Config) normalizeCaptions() {
	c.Captions.DefaultPreset = stringOr(c.Captions.DefaultPreset, defaultCaptionPreset)
	c.Captions.SegmentationMode = strings.ToLower(stringOr(c.Captions.SegmentationMode, defaultSegmentationMode))
	if c.Captions.VideoWidth <= 0 {
		c.Captions.VideoWidth = defaultCaptionVideoWidth
	}
	if c.Captions.VideoHeight <= 0 {
		c.Captions.VideoHeight = defaultCaptionVideoHeight
	}
}

func (c *Config) normalizeRefiner() {
	c.Refiner.Provider = strings.ToLower(stringOr(c.Refiner.Provider, defaultRefinerProvider))
	c.Refiner.BaseURL = stringOr(c.Refiner.BaseURL, defaultRefinerBaseURL)
	c.Refiner.Model = stringOr(c.Refiner.Model, defaultRefinerModel)
	c.Refiner.Referer = stringOr(c.Refiner.Referer, defaultRefinerReferer)
	c.Refiner.Title = stringOr(c.Refiner.Title, defaultRefinerTitle)
	if c.Refiner.TimeoutSeconds <= 0 {
		c.Refiner.TimeoutSeconds = defaultRefinerTimeoutSeconds
	}
	c.Refiner.APIKey = strings.TrimSpace(c.Refiner.APIKey)
	if c.Refiner.APIKey == "" {
		if value, ok := os.LookupEnv("OPENROUTER_API_KEY"); ok {
			c.Refiner.APIKey = strings.TrimSpace(value)
		}
	}
	c.Refiner.GeminiAPIKey = strings.TrimSpace(c.Refiner.GeminiAPIKey)
	if c.Refiner.GeminiAPIKey == "" {
		if value, ok := os.LookupEnv("GEMINI_API_KEY"); ok {
			c.Refiner.GeminiAPIKey = strings.TrimSpace(value)
		}
	}
	c.Refiner.GeminiModel = stringOr(c.Refiner.GeminiModel, defaultGeminiModel)
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(stringOr(c.Logging.Format, defaultLogFormat))
	c.Logging.Level = strings.ToLower(stringOr(c.Logging.Level, defaultLogLevel))
}

func stringOr(value, fallback string) string {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		return trimmed
	}
	return fallback
}
