package pipeline_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"reelsmith/internal/apikeys"
	"reelsmith/internal/campaign"
	"reelsmith/internal/catalog"
	"reelsmith/internal/config"
	"reelsmith/internal/logging"
	"reelsmith/internal/notifications"
	"reelsmith/internal/pipeline"
	"reelsmith/internal/services/elevenlabs"
	"reelsmith/internal/services/replicate"
	"reelsmith/internal/storage"
	"reelsmith/internal/store"
	"reelsmith/internal/testsupport"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var fixedNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

type fakeGenerator struct {
	mu       sync.Mutex
	calls    []campaign.Step
	images   []replicate.ImageParams
	videos   []replicate.VideoParams
	lipSyncs []replicate.LipSyncParams
	fail     map[campaign.Step]error
	panicOn  campaign.Step
	block    chan struct{}
	started  chan struct{}
}

func (g *fakeGenerator) enter(ctx context.Context, step campaign.Step) error {
	g.mu.Lock()
	g.calls = append(g.calls, step)
	n := len(g.calls)
	err := g.fail[step]
	block := g.block
	started := g.started
	g.mu.Unlock()

	if started != nil {
		select {
		case started <- struct{}{}:
		default:
		}
	}
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if step == g.panicOn {
		panic(fmt.Sprintf("%s generator exploded on call %d", step, n))
	}
	return err
}

func (g *fakeGenerator) GenerateImage(ctx context.Context, _ string, params replicate.ImageParams) (replicate.Result, error) {
	if err := g.enter(ctx, campaign.StepImage); err != nil {
		return replicate.Result{}, err
	}
	g.mu.Lock()
	g.images = append(g.images, params)
	g.mu.Unlock()
	return replicate.Result{OutputURL: "http://assets.test/assets/images/img-1.png", PublicID: "images/img-1"}, nil
}

func (g *fakeGenerator) GenerateVideo(ctx context.Context, _ string, params replicate.VideoParams) (replicate.Result, error) {
	if err := g.enter(ctx, campaign.StepVideo); err != nil {
		return replicate.Result{}, err
	}
	g.mu.Lock()
	g.videos = append(g.videos, params)
	g.mu.Unlock()
	return replicate.Result{
		OutputURL:    "http://assets.test/assets/videos/vid-1.mp4",
		PublicID:     "videos/vid-1",
		ThumbnailURL: "http://assets.test/assets/images/thumb-1.jpg",
	}, nil
}

func (g *fakeGenerator) GenerateLipSync(ctx context.Context, _ string, params replicate.LipSyncParams) (replicate.Result, error) {
	if err := g.enter(ctx, campaign.StepLipSync); err != nil {
		return replicate.Result{}, err
	}
	g.mu.Lock()
	g.lipSyncs = append(g.lipSyncs, params)
	g.mu.Unlock()
	return replicate.Result{OutputURL: "http://assets.test/assets/lipsync/ls-1.mp4", PublicID: "lipsync/ls-1"}, nil
}

func (g *fakeGenerator) stepCalls() []campaign.Step {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]campaign.Step(nil), g.calls...)
}

type fakeNarrator struct {
	mu    sync.Mutex
	texts []string
	err   error
}

func (n *fakeNarrator) GenerateSpeech(_ context.Context, apiKey, voiceID, text string) (elevenlabs.Speech, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.texts = append(n.texts, apiKey+"|"+voiceID+"|"+text)
	if n.err != nil {
		return elevenlabs.Speech{}, n.err
	}
	return elevenlabs.Speech{AudioURL: "http://assets.test/assets/audio/aud-1.mp3", PublicID: "audio/aud-1"}, nil
}

type fakeCompositor struct {
	mu           sync.Mutex
	overlays     []string
	assContent   []string
	noVideo      bool
	thumbnails   int
	overlayError error
}

func (c *fakeCompositor) ApplyTextOverlay(_ context.Context, imagePublicID, text string, _ campaign.OverlayConfig) (storage.Asset, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.overlays = append(c.overlays, imagePublicID+"|"+text)
	if c.overlayError != nil {
		return storage.Asset{}, c.overlayError
	}
	return storage.Asset{URL: "http://assets.test/assets/composed/ov-1.png", PublicID: "composed/ov-1"}, nil
}

func (c *fakeCompositor) ComposeVideoWithCaptions(_ context.Context, _ string, assContent string) *storage.Asset {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.assContent = append(c.assContent, assContent)
	if c.noVideo {
		return nil
	}
	return &storage.Asset{URL: "http://assets.test/assets/composed/cap-1.mp4", PublicID: "composed/cap-1"}
}

func (c *fakeCompositor) ExtractThumbnail(context.Context, string) (storage.Asset, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.thumbnails++
	return storage.Asset{URL: "http://assets.test/assets/images/extracted.jpg", PublicID: "images/extracted"}, nil
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []notifications.Event
}

func (n *recordingNotifier) Publish(_ context.Context, event notifications.Event, _ notifications.Payload) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	return nil
}

func (n *recordingNotifier) published() []notifications.Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notifications.Event(nil), n.events...)
}

type harness struct {
	cfg        *config.Config
	st         *store.Store
	gen        *fakeGenerator
	narrator   *fakeNarrator
	compositor *fakeCompositor
	notifier   *recordingNotifier
	persona    *campaign.Persona
	tmpl       *campaign.Template
	orch       *pipeline.Orchestrator
}

func newHarness(t *testing.T, opts ...testsupport.ConfigOption) *harness {
	t.Helper()
	opts = append([]testsupport.ConfigOption{testsupport.WithNarration("", "xi-test")}, opts...)
	cfg := testsupport.NewConfig(t, opts...)
	st := testsupport.MustOpenStore(t, cfg)
	assets, err := storage.NewLocal(cfg.Paths.AssetsDir, "http://assets.test", nil)
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}

	h := &harness{
		cfg:        cfg,
		st:         st,
		gen:        &fakeGenerator{fail: map[campaign.Step]error{}},
		narrator:   &fakeNarrator{},
		compositor: &fakeCompositor{},
		notifier:   &recordingNotifier{},
		persona:    testsupport.NewPersona(t, st, "nova"),
		tmpl:       testsupport.NewTemplate(t, st, "mug-review"),
	}
	h.orch = pipeline.New(pipeline.Deps{
		Store:      st,
		Personas:   catalog.NewPersonas(st),
		Templates:  catalog.NewTemplates(st),
		Keys:       apikeys.New(st, cfg),
		Generator:  h.gen,
		Narrator:   h.narrator,
		Compositor: h.compositor,
		Assets:     assets,
		Notifier:   h.notifier,
		Logger:     logging.NewNop(),
		Defaults:   pipeline.DefaultsFromConfig(cfg),
		Clock:      func() time.Time { return fixedNow },
	})
	return h
}

func (h *harness) newCampaign(t *testing.T) *campaign.Campaign {
	t.Helper()
	return testsupport.NewCampaign(t, h.st, h.persona, h.tmpl, map[string]string{"product_name": "Aurora Mug"})
}

func (h *harness) reload(t *testing.T, id string) *campaign.Campaign {
	t.Helper()
	c, err := h.st.GetCampaign(context.Background(), id)
	if err != nil || c == nil {
		t.Fatalf("GetCampaign(%s) = %v, %v", id, c, err)
	}
	return c
}

type stepOutcome struct {
	Step   campaign.Step
	Status campaign.EntryStatus
	Note   string
}

func outcomes(entries []campaign.LogEntry) []stepOutcome {
	out := make([]stepOutcome, 0, len(entries))
	for _, entry := range entries {
		note := entry.SkipReason
		if entry.Status == campaign.EntryFailed {
			note = entry.Error
		}
		out = append(out, stepOutcome{Step: entry.Step, Status: entry.Status, Note: note})
	}
	return out
}
