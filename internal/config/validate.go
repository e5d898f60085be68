package config

import (
	"errors"
	"fmt"
)

var segmentationModes = map[string]struct{}{
	"timed":    {},
	"sentence": {},
	"word":     {},
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := ensurePositiveMap(map[string]int{
		"generation.poll_interval_seconds": c.Generation.PollIntervalSeconds,
		"generation.timeout_seconds":       c.Generation.TimeoutSeconds,
		"generation.video_duration":        c.Generation.VideoDuration,
		"narration.timeout_seconds":        c.Narration.TimeoutSeconds,
		"composition.timeout_seconds":      c.Composition.TimeoutSeconds,
		"captions.video_width":             c.Captions.VideoWidth,
		"captions.video_height":            c.Captions.VideoHeight,
		"refiner.timeout_seconds":          c.Refiner.TimeoutSeconds,
		"notifications.request_timeout":    c.Notifications.RequestTimeout,
	}); err != nil {
		return err
	}
	if c.Generation.PollIntervalSeconds >= c.Generation.TimeoutSeconds {
		return errors.New("generation.timeout_seconds must be greater than generation.poll_interval_seconds")
	}
	if err := c.validateCaptions(); err != nil {
		return err
	}
	if err := c.validateRefiner(); err != nil {
		return err
	}
	if c.Batch.MaxConcurrent < 1 {
		return errors.New("batch.max_concurrent must be >= 1")
	}
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q (use console or json)", c.Logging.Format)
	}
	return nil
}

func (c *Config) validateCaptions() error {
	if _, ok := segmentationModes[c.Captions.SegmentationMode]; !ok {
		return fmt.Errorf("captions.segmentation_mode: unsupported value %q (use timed, sentence or word)", c.Captions.SegmentationMode)
	}
	return nil
}

func (c *Config) validateRefiner() error {
	switch c.Refiner.Provider {
	case "openrouter", "google":
		return nil
	default:
		return fmt.Errorf("refiner.provider: unsupported value %q (use openrouter or google)", c.Refiner.Provider)
	}
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
