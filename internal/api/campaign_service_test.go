package api_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"reelsmith/internal/api"
	"reelsmith/internal/campaign"
	"reelsmith/internal/captions"
	"reelsmith/internal/catalog"
	"reelsmith/internal/logging"
	"reelsmith/internal/services"
	"reelsmith/internal/storage"
	"reelsmith/internal/store"
	"reelsmith/internal/testsupport"
)

const userID = "user-1"

type fixture struct {
	st      *store.Store
	assets  *storage.Local
	svc     *api.CampaignService
	persona *campaign.Persona
	tmpl    *campaign.Template
	running map[string]bool
}

type runSet map[string]bool

func (r runSet) Running(id string) bool { return r[id] }

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	assets, err := storage.NewLocal(cfg.Paths.AssetsDir, "http://127.0.0.1:7487", nil)
	if err != nil {
		t.Fatalf("storage.NewLocal: %v", err)
	}
	running := map[string]bool{}
	svc := api.NewCampaignService(st, catalog.NewPersonas(st), catalog.NewTemplates(st), assets, runSet(running), logging.NewNop())
	return &fixture{
		st:      st,
		assets:  assets,
		svc:     svc,
		persona: testsupport.NewPersona(t, st, "nova"),
		tmpl:    testsupport.NewTemplate(t, st, "product-showcase"),
		running: running,
	}
}

func (f *fixture) create(t *testing.T) *campaign.Campaign {
	t.Helper()
	c, err := f.svc.Create(context.Background(), userID, api.CreateCampaignRequest{
		Name:       "Launch",
		PersonaID:  f.persona.ID,
		TemplateID: f.tmpl.ID,
		Variables:  map[string]string{"product_name": "Aurora Mug"},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return c
}

func TestCreateStoresDraft(t *testing.T) {
	f := newFixture(t)
	c := f.create(t)

	if c.Status != campaign.StatusDraft {
		t.Fatalf("status = %s, want draft", c.Status)
	}
	if c.CaptionSegmentationMode != captions.ModeTimed {
		t.Fatalf("segmentation mode = %q, want timed", c.CaptionSegmentationMode)
	}
	if diff := cmp.Diff(map[string]string{"product_name": "Aurora Mug"}, c.Variables); diff != "" {
		t.Fatalf("variables mismatch (-want +got):\n%s", diff)
	}
}

func TestCreateJoinsValidationProblems(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Create(context.Background(), userID, api.CreateCampaignRequest{})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	msg := services.Details(err).Message
	if msg != "name is required; personaId is required; templateId is required" {
		t.Fatalf("message = %q", msg)
	}

	_, err = f.svc.Create(context.Background(), userID, api.CreateCampaignRequest{
		Name:       "Launch",
		PersonaID:  f.persona.ID,
		TemplateID: f.tmpl.ID,
	})
	if !errors.Is(err, services.ErrValidation) || !strings.Contains(err.Error(), `field "Product" is required`) {
		t.Fatalf("expected missing variable error, got %v", err)
	}
}

func TestCreateRejectsForeignPersona(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Create(context.Background(), "someone-else", api.CreateCampaignRequest{
		Name:       "Launch",
		PersonaID:  f.persona.ID,
		TemplateID: f.tmpl.ID,
		Variables:  map[string]string{"product_name": "Mug"},
	})
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestGetHidesOtherUsersCampaigns(t *testing.T) {
	f := newFixture(t)
	c := f.create(t)

	if _, err := f.svc.Get(context.Background(), "someone-else", c.ID); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestUpdateOnlyInDraft(t *testing.T) {
	f := newFixture(t)
	c := f.create(t)
	ctx := context.Background()

	name := "  Relaunch "
	updated, err := f.svc.Update(ctx, userID, c.ID, api.UpdateCampaignRequest{
		Name:      &name,
		Variables: map[string]string{"product_name": "Borealis Mug"},
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Name != "Relaunch" || updated.Variables["product_name"] != "Borealis Mug" {
		t.Fatalf("unexpected update result %+v", updated)
	}

	if err := f.st.FinishRun(ctx, c.ID, campaign.StatusCompleted, ""); err != nil {
		t.Fatalf("FinishRun: %v", err)
	}
	_, err = f.svc.Update(ctx, userID, c.ID, api.UpdateCampaignRequest{Name: &name})
	if !errors.Is(err, services.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if services.Details(err).Message != "cannot update campaign with status completed" {
		t.Fatalf("message = %q", services.Details(err).Message)
	}
}

func TestUpdateValidatesVariables(t *testing.T) {
	f := newFixture(t)
	c := f.create(t)

	_, err := f.svc.Update(context.Background(), userID, c.ID, api.UpdateCampaignRequest{
		Variables: map[string]string{"product_name": ""},
	})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestDeleteRemovesAssets(t *testing.T) {
	f := newFixture(t)
	c := f.create(t)
	ctx := context.Background()

	asset, err := f.assets.PutBytes(ctx, "images", ".png", []byte("png"))
	if err != nil {
		t.Fatalf("PutBytes: %v", err)
	}
	path, err := f.assets.Path(asset.PublicID)
	if err != nil {
		t.Fatalf("Path: %v", err)
	}
	if err := f.st.UpdateCampaign(ctx, c.ID, store.CampaignPatch{
		ImageURL:      &asset.URL,
		ImagePublicID: &asset.PublicID,
	}); err != nil {
		t.Fatalf("UpdateCampaign: %v", err)
	}
	missing := "videos/does-not-exist"
	if err := f.st.UpdateCampaign(ctx, c.ID, store.CampaignPatch{VideoPublicID: &missing}); err != nil {
		t.Fatalf("UpdateCampaign: %v", err)
	}

	if err := f.svc.Delete(ctx, userID, c.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("expected asset file removed, stat err = %v", err)
	}
	if got, _ := f.st.GetCampaign(ctx, c.ID); got != nil {
		t.Fatal("expected campaign row removed")
	}
}

func TestDeleteRefusesRunningCampaign(t *testing.T) {
	f := newFixture(t)
	c := f.create(t)
	f.running[c.ID] = true

	if err := f.svc.Delete(context.Background(), userID, c.ID); !errors.Is(err, services.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestDuplicateCopiesConfigurationOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	source, err := f.svc.Create(ctx, userID, api.CreateCampaignRequest{
		Name:                    "Launch",
		Description:             "spring drop",
		PersonaID:               f.persona.ID,
		TemplateID:              f.tmpl.ID,
		Variables:               map[string]string{"product_name": "Aurora Mug"},
		UseLipSync:              true,
		LipSyncModel:            "wav2lip",
		CaptionPresetID:         "bold-pop",
		CaptionSegmentationMode: "word",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	url := "http://127.0.0.1:7487/assets/images/x.png"
	if err := f.st.UpdateCampaign(ctx, source.ID, store.CampaignPatch{ImageURL: &url}); err != nil {
		t.Fatalf("UpdateCampaign: %v", err)
	}
	if err := f.st.FinishRun(ctx, source.ID, campaign.StatusCompleted, ""); err != nil {
		t.Fatalf("FinishRun: %v", err)
	}

	dup, err := f.svc.Duplicate(ctx, userID, source.ID)
	if err != nil {
		t.Fatalf("Duplicate: %v", err)
	}
	if dup.ID == source.ID || dup.Name != "Launch (copy)" || dup.Status != campaign.StatusDraft {
		t.Fatalf("unexpected duplicate %+v", dup)
	}
	if dup.ImageURL != "" || len(dup.ExecutionLog) != 0 {
		t.Fatalf("expected outputs and log cleared, got %+v", dup.Outputs)
	}
	got := []any{dup.Description, dup.UseLipSync, dup.LipSyncModel, dup.CaptionPresetID, dup.CaptionSegmentationMode, dup.Variables["product_name"]}
	want := []any{"spring drop", true, "wav2lip", "bold-pop", captions.ModeWord, "Aurora Mug"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("copied fields mismatch (-want +got):\n%s", diff)
	}
}

func TestListPaginates(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 5; i++ {
		f.create(t)
	}

	resp, err := f.svc.List(context.Background(), userID, store.CampaignFilter{Page: 2, Limit: 2})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if diff := cmp.Diff(api.Pagination{Page: 2, Limit: 2, Total: 5, TotalPages: 3}, resp.Pagination); diff != "" {
		t.Fatalf("pagination mismatch (-want +got):\n%s", diff)
	}
	if len(resp.Campaigns) != 2 {
		t.Fatalf("expected 2 campaigns on page 2, got %d", len(resp.Campaigns))
	}

	empty, err := f.svc.List(context.Background(), "nobody", store.CampaignFilter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if empty.Campaigns == nil || empty.Pagination.Limit != store.DefaultListLimit || empty.Pagination.TotalPages != 0 {
		t.Fatalf("unexpected empty list %+v", empty)
	}
}

func TestSubtitlesRendersStoredTrack(t *testing.T) {
	f := newFixture(t)
	c := f.create(t)
	ctx := context.Background()

	if _, _, err := f.svc.Subtitles(ctx, userID, c.ID, ""); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found without subtitle data, got %v", err)
	}

	segments := captions.GenerateSegments("Check out Aurora Mug today", 5, captions.ModeTimed)
	if err := f.st.UpdateCampaign(ctx, c.ID, store.CampaignPatch{Subtitles: &campaign.SubtitleData{
		Segments:         segments,
		TotalDuration:    5,
		SegmentationMode: captions.ModeTimed,
		GeneratedAt:      time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}}); err != nil {
		t.Fatalf("UpdateCampaign: %v", err)
	}

	name, srt, err := f.svc.Subtitles(ctx, userID, c.ID, "")
	if err != nil {
		t.Fatalf("Subtitles: %v", err)
	}
	if name != "campaign-"+c.ID+".srt" || !strings.HasPrefix(srt, "1\n00:00:00,000 --> ") {
		t.Fatalf("unexpected srt %q %q", name, srt)
	}

	name, ass, err := f.svc.Subtitles(ctx, userID, c.ID, "ASS")
	if err != nil {
		t.Fatalf("Subtitles ass: %v", err)
	}
	if filepath.Ext(name) != ".ass" || !strings.Contains(ass, "[Script Info]") {
		t.Fatalf("unexpected ass %q", name)
	}

	if _, _, err := f.svc.Subtitles(ctx, userID, c.ID, "vtt"); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for vtt, got %v", err)
	}
}

func TestExecuteRequestOptions(t *testing.T) {
	lip := true
	opts, err := api.ExecuteRequest{Steps: []string{"captions", "image"}, UseLipSync: &lip, ImageModel: " flux "}.Options()
	if err != nil {
		t.Fatalf("Options: %v", err)
	}
	if diff := cmp.Diff([]campaign.Step{campaign.StepCaptions, campaign.StepImage}, opts.Steps); diff != "" {
		t.Fatalf("steps mismatch (-want +got):\n%s", diff)
	}
	if opts.ImageModel != "flux" || opts.UseLipSync == nil || !*opts.UseLipSync {
		t.Fatalf("unexpected options %+v", opts)
	}

	if _, err := (api.ExecuteRequest{Steps: []string{"dance"}}).Options(); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestMergeStatusCountsFillsZeros(t *testing.T) {
	got := api.MergeStatusCounts(map[campaign.Status]int{campaign.StatusCompleted: 3})
	want := map[string]int{"draft": 0, "queued": 0, "running": 0, "completed": 3, "failed": 0}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("counts mismatch (-want +got):\n%s", diff)
	}
}
