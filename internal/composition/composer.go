package composition

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"reelsmith/internal/campaign"
	"reelsmith/internal/logging"
	"reelsmith/internal/services"
	"reelsmith/internal/storage"
)

const defaultTimeout = 5 * time.Minute

// Config captures composer settings.
type Config struct {
	Enabled  bool
	Binary   string
	FontFile string
	Timeout  time.Duration
}

// AssetStore is the slice of storage.Local the composer reads and writes.
type AssetStore interface {
	Path(publicID string) (string, error)
	Resolve(assetURL string) (string, bool)
	Put(ctx context.Context, folder, ext string, r io.Reader) (storage.Asset, error)
}

type commandRunner func(ctx context.Context, name string, args ...string) error

// Composer drives ffmpeg against stored assets.
type Composer struct {
	cfg    Config
	assets AssetStore
	logger *slog.Logger
	run    commandRunner
}

// New constructs a composer.
func New(cfg Config, assets AssetStore, logger *slog.Logger) *Composer {
	if strings.TrimSpace(cfg.Binary) == "" {
		cfg.Binary = "ffmpeg"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Composer{
		cfg:    cfg,
		assets: assets,
		logger: logging.NewComponentLogger(logger, "composition"),
		run:    defaultCommandRunner,
	}
}

// Available reports whether composition is enabled and ffmpeg resolves.
func (c *Composer) Available() bool {
	if c == nil || !c.cfg.Enabled {
		return false
	}
	_, err := exec.LookPath(c.cfg.Binary)
	return err == nil
}

func (c *Composer) unavailable(op string) error {
	if !c.cfg.Enabled {
		return services.Wrap(services.ErrConfiguration, "composition", op, "composition disabled", nil)
	}
	return services.Wrap(services.ErrConfiguration, "composition", op, fmt.Sprintf("ffmpeg binary %q not found", c.cfg.Binary), nil)
}

// ApplyTextOverlay renders text over the stored image and stores the result
// under composed/.
func (c *Composer) ApplyTextOverlay(ctx context.Context, imagePublicID, text string, overlay campaign.OverlayConfig) (storage.Asset, error) {
	if !c.Available() {
		return storage.Asset{}, c.unavailable("apply overlay")
	}
	if strings.TrimSpace(text) == "" {
		return storage.Asset{}, services.Wrap(services.ErrValidation, "composition", "apply overlay", "overlay text required", nil)
	}
	input, err := c.assets.Path(imagePublicID)
	if err != nil {
		return storage.Asset{}, services.Wrap(services.ErrNotFound, "composition", "apply overlay", "image "+imagePublicID, err)
	}

	workDir, err := os.MkdirTemp("", "reelsmith-overlay-")
	if err != nil {
		return storage.Asset{}, fmt.Errorf("create work dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	textFile := filepath.Join(workDir, "overlay.txt")
	if err := os.WriteFile(textFile, []byte(strings.Join(strings.Fields(text), " ")), 0o600); err != nil {
		return storage.Asset{}, fmt.Errorf("write overlay text: %w", err)
	}
	output := filepath.Join(workDir, "composed.png")
	args := []string{
		"-hide_banner", "-loglevel", "error", "-y",
		"-i", input,
		"-vf", DrawTextFilter(textFile, overlay, c.cfg.FontFile),
		"-frames:v", "1",
		output,
	}
	if err := c.exec(ctx, args); err != nil {
		return storage.Asset{}, services.Wrap(services.ErrExternalTool, "composition", "apply overlay", "ffmpeg drawtext", err)
	}
	asset, err := c.store(ctx, storage.FolderComposed, output)
	if err != nil {
		return storage.Asset{}, err
	}
	logging.WithContext(ctx, c.logger).Info("overlay composed",
		logging.String("public_id", asset.PublicID),
		logging.String("gravity", Gravity(WithDefaults(overlay).Position)),
	)
	return asset, nil
}

// ComposeVideoWithCaptions burns the ASS track into the video. It returns nil
// when composition is unavailable or ffmpeg fails; the caller keeps its
// SRT-only result in that case.
func (c *Composer) ComposeVideoWithCaptions(ctx context.Context, videoURL, assContent string) *storage.Asset {
	logger := logging.WithContext(ctx, c.logger)
	if !c.Available() {
		logger.Info("caption burn-in skipped", logging.String("reason", services.Details(c.unavailable("compose captions")).Message))
		return nil
	}
	if strings.TrimSpace(videoURL) == "" || strings.TrimSpace(assContent) == "" {
		return nil
	}
	input := videoURL
	if local, ok := c.assets.Resolve(videoURL); ok {
		input = local
	}

	workDir, err := os.MkdirTemp("", "reelsmith-captions-")
	if err != nil {
		logging.WarnWithContext(logger, "caption burn-in failed", "composition_failure",
			logging.Error(err),
			logging.String(logging.FieldImpact, "captions delivered as SRT only"),
		)
		return nil
	}
	defer os.RemoveAll(workDir)

	assPath := filepath.Join(workDir, "captions.ass")
	if err := os.WriteFile(assPath, []byte(assContent), 0o600); err != nil {
		logging.WarnWithContext(logger, "caption burn-in failed", "composition_failure",
			logging.Error(err),
			logging.String(logging.FieldImpact, "captions delivered as SRT only"),
		)
		return nil
	}
	output := filepath.Join(workDir, "captioned.mp4")
	args := []string{
		"-hide_banner", "-loglevel", "error", "-y",
		"-i", input,
		"-vf", "ass='" + escapeFilterValue(assPath) + "'",
		"-c:v", "libx264", "-preset", "veryfast", "-crf", "20",
		"-c:a", "copy",
		"-movflags", "+faststart",
		output,
	}
	if err := c.exec(ctx, args); err != nil {
		logging.WarnWithContext(logger, "caption burn-in failed", "composition_failure",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check that ffmpeg is built with libass"),
			logging.String(logging.FieldImpact, "captions delivered as SRT only"),
		)
		return nil
	}
	asset, err := c.store(ctx, storage.FolderComposed, output)
	if err != nil {
		logging.WarnWithContext(logger, "caption burn-in failed", "composition_failure",
			logging.Error(err),
			logging.String(logging.FieldImpact, "captions delivered as SRT only"),
		)
		return nil
	}
	logger.Info("captions burned in", logging.String("public_id", asset.PublicID))
	return &asset
}

// ExtractThumbnail grabs the first frame of a stored video as a JPEG.
func (c *Composer) ExtractThumbnail(ctx context.Context, videoPublicID string) (storage.Asset, error) {
	if !c.Available() {
		return storage.Asset{}, c.unavailable("thumbnail")
	}
	input, err := c.assets.Path(videoPublicID)
	if err != nil {
		return storage.Asset{}, services.Wrap(services.ErrNotFound, "composition", "thumbnail", "video "+videoPublicID, err)
	}
	workDir, err := os.MkdirTemp("", "reelsmith-thumb-")
	if err != nil {
		return storage.Asset{}, fmt.Errorf("create work dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	output := filepath.Join(workDir, "thumb.jpg")
	args := []string{"-hide_banner", "-loglevel", "error", "-y", "-i", input, "-frames:v", "1", "-q:v", "3", output}
	if err := c.exec(ctx, args); err != nil {
		return storage.Asset{}, services.Wrap(services.ErrExternalTool, "composition", "thumbnail", "ffmpeg frame grab", err)
	}
	return c.store(ctx, storage.FolderImages, output)
}

func (c *Composer) exec(ctx context.Context, args []string) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()
	err := c.run(ctx, c.cfg.Binary, args...)
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return services.Wrap(services.ErrTimeout, "composition", "ffmpeg", fmt.Sprintf("exceeded %s", c.cfg.Timeout), err)
	}
	return err
}

func (c *Composer) store(ctx context.Context, folder, path string) (storage.Asset, error) {
	f, err := os.Open(path)
	if err != nil {
		return storage.Asset{}, services.Wrap(services.ErrExternalTool, "composition", "store", "ffmpeg produced no output", err)
	}
	defer f.Close()
	asset, err := c.assets.Put(ctx, folder, filepath.Ext(path), f)
	if err != nil {
		return storage.Asset{}, services.Wrap(services.ErrTransient, "composition", "store", "", err)
	}
	return asset, nil
}

func defaultCommandRunner(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	var stderr strings.Builder
	cmd.Stdout = io.Discard
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(stderr.String()))
	}
	return nil
}
