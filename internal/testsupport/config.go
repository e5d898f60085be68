package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"reelsmith/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.AssetsDir = filepath.Join(base, "assets")
	cfgVal.Paths.APIBind = "127.0.0.1:0"
	cfgVal.Generation.APIToken = "test-replicate"
	cfgVal.Generation.PollIntervalSeconds = 0
	cfgVal.Composition.Enabled = false

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithReplicateToken sets the instance-wide Replicate token. An empty token
// makes generation steps fail with a configuration error.
func WithReplicateToken(token string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Generation.APIToken = token
	}
}

// WithGenerationURL points the Replicate client at a test server.
func WithGenerationURL(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Generation.BaseURL = url
	}
}

// WithNarration configures the ElevenLabs client against a test server.
func WithNarration(url, key string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Narration.BaseURL = url
		b.cfg.Narration.APIKey = key
	}
}

// WithTemplatesDir creates and configures a watched templates directory.
func WithTemplatesDir() ConfigOption {
	return func(b *configBuilder) {
		dir := filepath.Join(b.baseDir, "templates")
		if err := os.MkdirAll(dir, 0o755); err != nil {
			b.t.Fatalf("mkdir templates dir: %v", err)
		}
		b.cfg.Paths.TemplatesDir = dir
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH. If names is empty, ffmpeg is stubbed. The ffmpeg stub
// is the scripted fake from WriteFakeFFmpeg and composition is enabled.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"ffmpeg"}
		}
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		script := []byte("#!/bin/sh\nexit 0\n")
		for _, name := range names {
			if name == "ffmpeg" {
				b.cfg.Composition.Enabled = true
				b.cfg.Composition.FFmpegBinary = WriteFakeFFmpeg(b.t, binDir)
				continue
			}
			target := filepath.Join(binDir, name)
			if err := os.WriteFile(target, script, 0o755); err != nil {
				b.t.Fatalf("write stub %s: %v", name, err)
			}
		}

		oldPath := os.Getenv("PATH")
		if err := os.Setenv("PATH", binDir+string(os.PathListSeparator)+oldPath); err != nil {
			b.t.Fatalf("set PATH: %v", err)
		}
		b.t.Cleanup(func() {
			_ = os.Setenv("PATH", oldPath)
		})
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
