package store_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"reelsmith/internal/campaign"
	"reelsmith/internal/captions"
	"reelsmith/internal/store"
	"reelsmith/internal/testsupport"
)

func TestOpenAppliesMigrations(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	versions, err := st.AppliedMigrations(context.Background())
	if err != nil {
		t.Fatalf("AppliedMigrations failed: %v", err)
	}
	want := []string{"0001_campaign_filters", "0002_template_category"}
	if diff := cmp.Diff(want, versions); diff != "" {
		t.Fatalf("migrations mismatch (-want +got):\n%s", diff)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened := testsupport.MustOpenStore(t, cfg)
	versions, err = reopened.AppliedMigrations(context.Background())
	if err != nil {
		t.Fatalf("AppliedMigrations after reopen failed: %v", err)
	}
	if len(versions) != len(want) {
		t.Fatalf("expected migrations to apply once, got %v", versions)
	}
}

func TestCreateCampaignDefaults(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	persona := testsupport.NewPersona(t, st, "ana")
	tmpl := testsupport.NewTemplate(t, st, "product-review")

	style := &captions.StyleOverrides{FontSize: ptr(72)}
	c, err := st.CreateCampaign(context.Background(), &campaign.Campaign{
		UserID:             "user-1",
		Name:               "Launch",
		PersonaID:          persona.ID,
		TemplateID:         tmpl.ID,
		Variables:          map[string]string{"product_name": "Serum"},
		UseLipSync:         true,
		CaptionCustomStyle: style,
	})
	if err != nil {
		t.Fatalf("CreateCampaign failed: %v", err)
	}
	if c.ID == "" {
		t.Fatal("expected campaign ID to be assigned")
	}
	if c.Status != campaign.StatusDraft {
		t.Fatalf("status = %q, want draft", c.Status)
	}
	if !c.UseLipSync {
		t.Fatal("expected lip sync flag to persist")
	}
	if c.Variables["product_name"] != "Serum" {
		t.Fatalf("variables = %#v", c.Variables)
	}
	if c.CaptionCustomStyle == nil || c.CaptionCustomStyle.FontSize == nil || *c.CaptionCustomStyle.FontSize != 72 {
		t.Fatalf("caption style not round-tripped: %#v", c.CaptionCustomStyle)
	}
	if len(c.ExecutionLog) != 0 {
		t.Fatalf("expected empty execution log, got %d entries", len(c.ExecutionLog))
	}
}

func TestGetCampaignMissingReturnsNil(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	c, err := st.GetCampaign(context.Background(), "does-not-exist")
	if err != nil {
		t.Fatalf("GetCampaign failed: %v", err)
	}
	if c != nil {
		t.Fatalf("expected nil campaign, got %#v", c)
	}
}

func TestUpdateCampaignWritesOnlyPatchedFields(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	persona := testsupport.NewPersona(t, st, "ana")
	tmpl := testsupport.NewTemplate(t, st, "product-review")
	c := testsupport.NewCampaign(t, st, persona, tmpl, map[string]string{"product_name": "Serum"})

	ctx := context.Background()
	imageURL := "https://assets.example/image.png"
	subtitles := &campaign.SubtitleData{
		Segments:         []captions.Segment{{Index: 0, Text: "Check out Serum!", StartTime: 0, EndTime: 5}},
		TotalDuration:    5,
		SegmentationMode: captions.ModeTimed,
	}
	if err := st.UpdateCampaign(ctx, c.ID, store.CampaignPatch{ImageURL: &imageURL, Subtitles: subtitles}); err != nil {
		t.Fatalf("UpdateCampaign failed: %v", err)
	}

	updated, err := st.GetCampaign(ctx, c.ID)
	if err != nil {
		t.Fatalf("GetCampaign failed: %v", err)
	}
	if updated.ImageURL != imageURL {
		t.Fatalf("image url = %q", updated.ImageURL)
	}
	if updated.Name != c.Name || updated.Variables["product_name"] != "Serum" {
		t.Fatalf("unpatched fields changed: %#v", updated)
	}
	if updated.Subtitles == nil || len(updated.Subtitles.Segments) != 1 {
		t.Fatalf("subtitles not stored: %#v", updated.Subtitles)
	}

	if err := st.UpdateCampaign(ctx, "missing", store.CampaignPatch{ImageURL: &imageURL}); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected sql.ErrNoRows for missing campaign, got %v", err)
	}
}

func TestBeginRunAssignsRunNumbersAndRejectsConcurrentRuns(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	persona := testsupport.NewPersona(t, st, "ana")
	tmpl := testsupport.NewTemplate(t, st, "product-review")
	c := testsupport.NewCampaign(t, st, persona, tmpl, nil)

	ctx := context.Background()
	if err := st.UpdateStatus(ctx, c.ID, campaign.StatusFailed, "earlier failure"); err != nil {
		t.Fatalf("UpdateStatus failed: %v", err)
	}

	run, err := st.BeginRun(ctx, c.ID)
	if err != nil {
		t.Fatalf("BeginRun failed: %v", err)
	}
	if run != 1 {
		t.Fatalf("first run = %d, want 1", run)
	}
	running, _ := st.GetCampaign(ctx, c.ID)
	if running.Status != campaign.StatusRunning || running.ErrorMessage != "" || running.StartedAt == nil {
		t.Fatalf("unexpected running campaign: status=%q err=%q started=%v", running.Status, running.ErrorMessage, running.StartedAt)
	}

	if _, err := st.BeginRun(ctx, c.ID); !errors.Is(err, store.ErrAlreadyRunning) {
		t.Fatalf("expected ErrAlreadyRunning, got %v", err)
	}

	now := time.Now()
	if err := st.AppendLog(ctx, c.ID, campaign.LogEntry{Run: run, Step: campaign.StepImage, Status: campaign.EntryCompleted, StartedAt: &now, CompletedAt: &now}); err != nil {
		t.Fatalf("AppendLog failed: %v", err)
	}
	if err := st.FinishRun(ctx, c.ID, campaign.StatusCompleted, ""); err != nil {
		t.Fatalf("FinishRun failed: %v", err)
	}

	second, err := st.BeginRun(ctx, c.ID)
	if err != nil {
		t.Fatalf("second BeginRun failed: %v", err)
	}
	if second != 2 {
		t.Fatalf("second run = %d, want 2", second)
	}

	if _, err := st.BeginRun(ctx, "missing"); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected sql.ErrNoRows for missing campaign, got %v", err)
	}
}

func TestExecutionLogIsAppendOnlyInOrder(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	persona := testsupport.NewPersona(t, st, "ana")
	tmpl := testsupport.NewTemplate(t, st, "product-review")
	c := testsupport.NewCampaign(t, st, persona, tmpl, nil)

	ctx := context.Background()
	entries := []campaign.LogEntry{
		{Run: 1, Step: campaign.StepImage, Status: campaign.EntryCompleted, DurationMs: 1200, Details: "image generated: https://a/1.png"},
		{Run: 1, Step: campaign.StepVideo, Status: campaign.EntryFailed, Error: "prediction failed"},
		{Run: 1, Step: campaign.StepAudio, Status: campaign.EntrySkipped, SkipReason: "persona has no voice configured"},
	}
	for _, entry := range entries {
		if err := st.AppendLog(ctx, c.ID, entry); err != nil {
			t.Fatalf("AppendLog failed: %v", err)
		}
	}

	got, err := st.ExecutionLog(ctx, c.ID)
	if err != nil {
		t.Fatalf("ExecutionLog failed: %v", err)
	}
	if diff := cmp.Diff(entries, got); diff != "" {
		t.Fatalf("log mismatch (-want +got):\n%s", diff)
	}

	if err := st.DeleteCampaign(ctx, c.ID); err != nil {
		t.Fatalf("DeleteCampaign failed: %v", err)
	}
	got, err = st.ExecutionLog(ctx, c.ID)
	if err != nil {
		t.Fatalf("ExecutionLog after delete failed: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected log to cascade on delete, got %d entries", len(got))
	}
}

func TestListCampaignsFiltersAndPaginates(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ana := testsupport.NewPersona(t, st, "ana")
	bia := testsupport.NewPersona(t, st, "bia")
	tmpl := testsupport.NewTemplate(t, st, "product-review")

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		persona := ana
		if i%2 == 1 {
			persona = bia
		}
		if _, err := st.CreateCampaign(ctx, &campaign.Campaign{
			UserID:     "user-1",
			Name:       fmt.Sprintf("Campaign %d", i),
			PersonaID:  persona.ID,
			TemplateID: tmpl.ID,
		}); err != nil {
			t.Fatalf("CreateCampaign failed: %v", err)
		}
	}

	page, total, err := st.ListCampaigns(ctx, store.CampaignFilter{UserID: "user-1", Limit: 2, Page: 2, OrderBy: "name", OrderDir: "asc"})
	if err != nil {
		t.Fatalf("ListCampaigns failed: %v", err)
	}
	if total != 5 {
		t.Fatalf("total = %d, want 5", total)
	}
	var names []string
	for _, c := range page {
		names = append(names, c.Name)
	}
	if diff := cmp.Diff([]string{"Campaign 2", "Campaign 3"}, names); diff != "" {
		t.Fatalf("page mismatch (-want +got):\n%s", diff)
	}

	byPersona, total, err := st.ListCampaigns(ctx, store.CampaignFilter{PersonaID: bia.ID})
	if err != nil {
		t.Fatalf("ListCampaigns by persona failed: %v", err)
	}
	if total != 2 || len(byPersona) != 2 {
		t.Fatalf("persona filter: total=%d len=%d", total, len(byPersona))
	}

	searched, total, err := st.ListCampaigns(ctx, store.CampaignFilter{Search: "Campaign 4"})
	if err != nil {
		t.Fatalf("ListCampaigns search failed: %v", err)
	}
	if total != 1 || searched[0].Name != "Campaign 4" {
		t.Fatalf("search returned %d results", total)
	}
}

func TestFailInterruptedMarksRunningCampaigns(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	persona := testsupport.NewPersona(t, st, "ana")
	tmpl := testsupport.NewTemplate(t, st, "product-review")
	running := testsupport.NewCampaign(t, st, persona, tmpl, nil)
	draft := testsupport.NewCampaign(t, st, persona, tmpl, nil)

	ctx := context.Background()
	if _, err := st.BeginRun(ctx, running.ID); err != nil {
		t.Fatalf("BeginRun failed: %v", err)
	}

	count, err := st.FailInterrupted(ctx, "daemon restarted during execution")
	if err != nil {
		t.Fatalf("FailInterrupted failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("count = %d, want 1", count)
	}

	got, _ := st.GetCampaign(ctx, running.ID)
	if got.Status != campaign.StatusFailed || got.ErrorMessage != "daemon restarted during execution" {
		t.Fatalf("unexpected interrupted campaign: %q %q", got.Status, got.ErrorMessage)
	}
	untouched, _ := st.GetCampaign(ctx, draft.ID)
	if untouched.Status != campaign.StatusDraft {
		t.Fatalf("draft campaign changed to %q", untouched.Status)
	}
}

func TestTransitionStatusRequiresExpectedState(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	persona := testsupport.NewPersona(t, st, "ana")
	tmpl := testsupport.NewTemplate(t, st, "product-review")
	c := testsupport.NewCampaign(t, st, persona, tmpl, nil)

	ctx := context.Background()
	if err := st.TransitionStatus(ctx, c.ID, campaign.StatusQueued, campaign.StatusFailed, "canceled"); !errors.Is(err, store.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if err := st.TransitionStatus(ctx, c.ID, campaign.StatusDraft, campaign.StatusQueued, ""); err != nil {
		t.Fatalf("TransitionStatus failed: %v", err)
	}
}

func TestUpsertTemplateBySlug(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	first := testsupport.NewTemplate(t, st, "unboxing")

	ctx := context.Background()
	updated, err := st.UpsertTemplate(ctx, &campaign.Template{
		Slug:              "unboxing",
		Name:              "Unboxing v2",
		Category:          "product",
		NarrationTemplate: "Unboxing {{product_name}}",
		IsSystem:          true,
		IsActive:          true,
	})
	if err != nil {
		t.Fatalf("UpsertTemplate failed: %v", err)
	}
	if updated.ID != first.ID {
		t.Fatalf("expected upsert to keep id %s, got %s", first.ID, updated.ID)
	}
	if updated.Name != "Unboxing v2" || updated.Overlay != nil {
		t.Fatalf("unexpected upserted template: %#v", updated)
	}

	if err := st.SetTemplateActive(ctx, first.ID, false); err != nil {
		t.Fatalf("SetTemplateActive failed: %v", err)
	}
	active, err := st.ListTemplates(ctx, store.TemplateFilter{})
	if err != nil {
		t.Fatalf("ListTemplates failed: %v", err)
	}
	if len(active) != 0 {
		t.Fatalf("expected inactive template to be hidden, got %d", len(active))
	}
	all, err := st.ListTemplates(ctx, store.TemplateFilter{IncludeInactive: true})
	if err != nil {
		t.Fatalf("ListTemplates failed: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected 1 template, got %d", len(all))
	}
}

func TestTemplateOverlayRoundTrip(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	tmpl := testsupport.NewTemplate(t, st, "product-review")

	fetched, err := st.GetTemplate(context.Background(), tmpl.ID)
	if err != nil {
		t.Fatalf("GetTemplate failed: %v", err)
	}
	want := &campaign.OverlayConfig{Enabled: true, Position: campaign.OverlayBottomCenter, Text: "{{product_name}}"}
	if diff := cmp.Diff(want, fetched.Overlay); diff != "" {
		t.Fatalf("overlay mismatch (-want +got):\n%s", diff)
	}
	if len(fetched.Variables) != 1 || !fetched.Variables[0].Required {
		t.Fatalf("variables not stored: %#v", fetched.Variables)
	}
}

func TestPersonaUpsertAndList(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ana := testsupport.NewPersona(t, st, "ana")

	ctx := context.Background()
	ana.VoiceID = ""
	if _, err := st.UpsertPersona(ctx, ana); err != nil {
		t.Fatalf("UpsertPersona failed: %v", err)
	}
	fetched, err := st.GetPersona(ctx, ana.ID)
	if err != nil {
		t.Fatalf("GetPersona failed: %v", err)
	}
	if fetched.VoiceID != "" {
		t.Fatalf("expected voice to be cleared, got %q", fetched.VoiceID)
	}

	testsupport.NewPersona(t, st, "bia")
	personas, err := st.ListPersonas(ctx, "user-1")
	if err != nil {
		t.Fatalf("ListPersonas failed: %v", err)
	}
	if len(personas) != 2 || personas[0].Name != "ana" {
		t.Fatalf("unexpected personas: %d", len(personas))
	}
}

func TestAPIKeys(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	if key, err := st.APIKey(ctx, "user-1", "replicate"); err != nil || key != "" {
		t.Fatalf("expected empty key, got %q err=%v", key, err)
	}
	if err := st.SetAPIKey(ctx, "user-1", "Replicate", "r8_one"); err != nil {
		t.Fatalf("SetAPIKey failed: %v", err)
	}
	if err := st.SetAPIKey(ctx, "user-1", "replicate", "r8_two"); err != nil {
		t.Fatalf("SetAPIKey overwrite failed: %v", err)
	}
	key, err := st.APIKey(ctx, "user-1", "replicate")
	if err != nil || key != "r8_two" {
		t.Fatalf("APIKey = %q err=%v", key, err)
	}
	providers, err := st.ConfiguredProviders(ctx, "user-1")
	if err != nil {
		t.Fatalf("ConfiguredProviders failed: %v", err)
	}
	if diff := cmp.Diff([]string{"replicate"}, providers); diff != "" {
		t.Fatalf("providers mismatch (-want +got):\n%s", diff)
	}
	if err := st.DeleteAPIKey(ctx, "user-1", "replicate"); err != nil {
		t.Fatalf("DeleteAPIKey failed: %v", err)
	}
	if key, _ := st.APIKey(ctx, "user-1", "replicate"); key != "" {
		t.Fatalf("expected key to be deleted, got %q", key)
	}
}

func TestCreateBatchQueuesMembers(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	persona := testsupport.NewPersona(t, st, "ana")
	tmpl := testsupport.NewTemplate(t, st, "product-review")

	ctx := context.Background()
	members := []*campaign.Campaign{
		{UserID: "user-1", Name: "Serum", PersonaID: persona.ID, TemplateID: tmpl.ID, Variables: map[string]string{"product_name": "Serum"}},
		{UserID: "user-1", Name: "Cream", PersonaID: persona.ID, TemplateID: tmpl.ID, Variables: map[string]string{"product_name": "Cream"}},
	}
	batch, err := st.CreateBatch(ctx, &campaign.Batch{
		UserID:     "user-1",
		Name:       "Skincare",
		TemplateID: tmpl.ID,
		PersonaID:  persona.ID,
	}, members)
	if err != nil {
		t.Fatalf("CreateBatch failed: %v", err)
	}
	if batch.Total != 2 || batch.Status != campaign.StatusQueued {
		t.Fatalf("unexpected batch: %#v", batch)
	}

	stored, err := st.BatchMembers(ctx, batch.ID)
	if err != nil {
		t.Fatalf("BatchMembers failed: %v", err)
	}
	if len(stored) != 2 {
		t.Fatalf("expected 2 members, got %d", len(stored))
	}
	for _, member := range stored {
		if member.Status != campaign.StatusQueued || member.BatchID != batch.ID {
			t.Fatalf("unexpected member: status=%q batch=%q", member.Status, member.BatchID)
		}
	}

	now := time.Now()
	batch.Status = campaign.StatusCompleted
	batch.Completed = 2
	batch.CompletedAt = &now
	if err := st.UpdateBatch(ctx, batch); err != nil {
		t.Fatalf("UpdateBatch failed: %v", err)
	}
	reloaded, _ := st.GetBatch(ctx, batch.ID)
	if reloaded.Completed != 2 || reloaded.CompletedAt == nil {
		t.Fatalf("batch update not persisted: %#v", reloaded)
	}
}

func TestHealthReportsCounts(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	persona := testsupport.NewPersona(t, st, "ana")
	tmpl := testsupport.NewTemplate(t, st, "product-review")
	testsupport.NewCampaign(t, st, persona, tmpl, nil)
	failed := testsupport.NewCampaign(t, st, persona, tmpl, nil)

	ctx := context.Background()
	if err := st.UpdateStatus(ctx, failed.ID, campaign.StatusFailed, "boom"); err != nil {
		t.Fatalf("UpdateStatus failed: %v", err)
	}

	summary, err := st.Health(ctx)
	if err != nil {
		t.Fatalf("Health failed: %v", err)
	}
	if summary.Total != 2 || summary.Draft != 1 || summary.Failed != 1 {
		t.Fatalf("unexpected summary: %#v", summary)
	}

	db, err := st.CheckHealth(ctx)
	if err != nil {
		t.Fatalf("CheckHealth failed: %v", err)
	}
	if !db.DatabaseExists || !db.DatabaseReadable || !db.IntegrityCheck {
		t.Fatalf("unexpected database health: %#v", db)
	}
	if len(db.MissingTables) != 0 || db.TotalCampaigns != 2 || db.SchemaVersion != 1 {
		t.Fatalf("unexpected database health: %#v", db)
	}
}

func ptr[T any](v T) *T { return &v }
