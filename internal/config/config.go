package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	DataDir       string `toml:"data_dir"`
	LogDir        string `toml:"log_dir"`
	AssetsDir     string `toml:"assets_dir"`
	TemplatesDir  string `toml:"templates_dir"`
	APIBind       string `toml:"api_bind"`
	APIToken      string `toml:"api_token"`
	PublicBaseURL string `toml:"public_base_url"`
}

// Generation contains settings for the Replicate prediction API used for
// image, video and lip-sync generation.
type Generation struct {
	BaseURL             string `toml:"base_url"`
	APIToken            string `toml:"api_token"`
	PollIntervalSeconds int    `toml:"poll_interval_seconds"`
	TimeoutSeconds      int    `toml:"timeout_seconds"`
	ImageModel          string `toml:"image_model"`
	VideoModel          string `toml:"video_model"`
	LipSyncModel        string `toml:"lip_sync_model"`
	AspectRatio         string `toml:"aspect_ratio"`
	VideoDuration       int    `toml:"video_duration"`
}

// Narration contains settings for the ElevenLabs text-to-speech API.
type Narration struct {
	BaseURL        string `toml:"base_url"`
	APIKey         string `toml:"api_key"`
	ModelID        string `toml:"model_id"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Composition contains settings for ffmpeg based overlay and caption burn-in.
type Composition struct {
	Enabled        bool   `toml:"enabled"`
	FFmpegBinary   string `toml:"ffmpeg_binary"`
	FontFile       string `toml:"font_file"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Captions contains defaults applied when a campaign does not choose its own
// caption configuration.
type Captions struct {
	DefaultPreset    string `toml:"default_preset"`
	SegmentationMode string `toml:"segmentation_mode"`
	VideoWidth       int    `toml:"video_width"`
	VideoHeight      int    `toml:"video_height"`
}

// Refiner contains prompt refinement settings. Provider selects between the
// OpenRouter chat API and Google Gemini.
type Refiner struct {
	Provider       string `toml:"provider"`
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	Referer        string `toml:"referer"`
	Title          string `toml:"title"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	GeminiAPIKey   string `toml:"gemini_api_key"`
	GeminiModel    string `toml:"gemini_model"`
}

// Batch contains bulk execution settings.
type Batch struct {
	MaxConcurrent int `toml:"max_concurrent"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic         string `toml:"ntfy_topic"`
	RequestTimeout    int    `toml:"request_timeout"`
	CampaignCompleted bool   `toml:"campaign_completed"`
	CampaignFailed    bool   `toml:"campaign_failed"`
	Batch             bool   `toml:"batch"`
	Errors            bool   `toml:"errors"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for reelsmith.
//
// Configuration sections by subsystem:
//   - Paths: data, log, asset and template directories plus the API bind address
//   - Generation: Replicate predictions (image, video, lip-sync)
//   - Narration: ElevenLabs speech synthesis
//   - Composition: ffmpeg overlay and caption burn-in
//   - Captions: default preset and segmentation
//   - Refiner: prompt refinement via OpenRouter or Gemini
//   - Batch: bulk execution concurrency
//   - Notifications: ntfy push notification settings
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Generation    Generation    `toml:"generation"`
	Narration     Narration     `toml:"narration"`
	Composition   Composition   `toml:"composition"`
	Captions      Captions      `toml:"captions"`
	Refiner       Refiner       `toml:"refiner"`
	Batch         Batch         `toml:"batch"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("reelsmith.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
// The templates directory is optional and only created when configured.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir, c.Paths.AssetsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if strings.TrimSpace(c.Paths.TemplatesDir) != "" {
		if err := os.MkdirAll(c.Paths.TemplatesDir, 0o755); err != nil {
			return fmt.Errorf("create templates directory %q: %w", c.Paths.TemplatesDir, err)
		}
	}
	return nil
}

// DatabasePath returns the SQLite database location.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "reelsmith.db")
}

// LockPath returns the daemon lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.LogDir, "reelsmithd.lock")
}

// APIBaseURL returns the URL clients use to reach the daemon API.
func (c *Config) APIBaseURL() string {
	bind := strings.TrimSpace(c.Paths.APIBind)
	if bind == "" {
		bind = defaultAPIBind
	}
	if strings.HasPrefix(bind, ":") {
		bind = "127.0.0.1" + bind
	}
	return "http://" + bind
}

// AssetBaseURL returns the prefix used when building stored asset URLs. It
// defaults to the API address, which serves /assets/.
func (c *Config) AssetBaseURL() string {
	if base := strings.TrimSpace(c.Paths.PublicBaseURL); base != "" {
		return base
	}
	return c.APIBaseURL()
}

// PollInterval returns the generation status polling interval.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Generation.PollIntervalSeconds) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// LLMConfig contains the OpenRouter connection settings used by the prompt refiner.
type LLMConfig struct {
	APIKey         string
	BaseURL        string
	Model          string
	Referer        string
	Title          string
	TimeoutSeconds int
}

// RefinerLLM returns the OpenRouter settings for prompt refinement.
func (c *Config) RefinerLLM() LLMConfig {
	return LLMConfig{
		APIKey:         strings.TrimSpace(c.Refiner.APIKey),
		BaseURL:        strings.TrimSpace(c.Refiner.BaseURL),
		Model:          strings.TrimSpace(c.Refiner.Model),
		Referer:        strings.TrimSpace(c.Refiner.Referer),
		Title:          strings.TrimSpace(c.Refiner.Title),
		TimeoutSeconds: c.Refiner.TimeoutSeconds,
	}
}
