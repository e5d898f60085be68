package pipeline

import (
	"log/slog"
	"time"

	"reelsmith/internal/apikeys"
	"reelsmith/internal/catalog"
	"reelsmith/internal/composition"
	"reelsmith/internal/config"
	"reelsmith/internal/notifications"
	"reelsmith/internal/services/elevenlabs"
	"reelsmith/internal/services/replicate"
	"reelsmith/internal/storage"
	"reelsmith/internal/store"
)

// NewFromConfig wires the production collaborators: Replicate generation,
// ElevenLabs narration, ffmpeg composition and the catalog services.
func NewFromConfig(cfg *config.Config, st *store.Store, assets *storage.Local, notifier notifications.Service, logger *slog.Logger) *Orchestrator {
	generator := replicate.NewClient(replicate.Config{
		BaseURL:      cfg.Generation.BaseURL,
		PollInterval: cfg.PollInterval(),
		Timeout:      time.Duration(cfg.Generation.TimeoutSeconds) * time.Second,
	}, assets, replicate.WithLogger(logger))

	speech := elevenlabs.NewClient(elevenlabs.Config{
		BaseURL: cfg.Narration.BaseURL,
		ModelID: cfg.Narration.ModelID,
		Timeout: time.Duration(cfg.Narration.TimeoutSeconds) * time.Second,
	})

	composer := composition.New(composition.Config{
		Enabled:  cfg.Composition.Enabled,
		Binary:   cfg.Composition.FFmpegBinary,
		FontFile: cfg.Composition.FontFile,
		Timeout:  time.Duration(cfg.Composition.TimeoutSeconds) * time.Second,
	}, assets, logger)

	return New(Deps{
		Store:      st,
		Personas:   catalog.NewPersonas(st),
		Templates:  catalog.NewTemplates(st),
		Keys:       apikeys.New(st, cfg),
		Generator:  generator,
		Narrator:   elevenlabs.NewNarrator(speech, assets, logger),
		Compositor: composer,
		Assets:     assets,
		Notifier:   notifier,
		Logger:     logger,
		Defaults:   DefaultsFromConfig(cfg),
	})
}
