package testsupport

import (
	"context"
	"testing"

	"reelsmith/internal/campaign"
	"reelsmith/internal/config"
	"reelsmith/internal/store"
)

// MustOpenStore opens a store.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	return st
}

// NewPersona stores a persona with a voice and a reference image.
func NewPersona(t testing.TB, st *store.Store, name string) *campaign.Persona {
	t.Helper()

	persona, err := st.UpsertPersona(context.Background(), &campaign.Persona{
		UserID:            "user-1",
		Name:              name,
		BasePrompt:        name + ", 28 year old creator, natural light",
		ReferenceImageURL: "https://assets.example/" + name + ".png",
		VoiceID:           "voice-" + name,
		VoiceName:         name,
	})
	if err != nil {
		t.Fatalf("store.UpsertPersona: %v", err)
	}
	return persona
}

// NewTemplate stores a template that exercises every pipeline step.
func NewTemplate(t testing.TB, st *store.Store, slug string) *campaign.Template {
	t.Helper()

	tmpl, err := st.UpsertTemplate(context.Background(), &campaign.Template{
		Slug:                slug,
		Name:                "Template " + slug,
		Category:            "product",
		ImagePromptTemplate: "{{persona}} holding {{product_name}}",
		VideoPromptTemplate: "{{persona}} presenting {{product_name}}",
		NarrationTemplate:   "Check out {{product_name}}!",
		Overlay: &campaign.OverlayConfig{
			Enabled:  true,
			Position: campaign.OverlayBottomCenter,
			Text:     "{{product_name}}",
		},
		Variables: []campaign.TemplateVariable{
			{Name: "product_name", Label: "Product", Required: true, Type: campaign.VariableText},
		},
		IsSystem: true,
		IsActive: true,
	})
	if err != nil {
		t.Fatalf("store.UpsertTemplate: %v", err)
	}
	return tmpl
}

// NewCampaign stores a draft campaign for the persona and template.
func NewCampaign(t testing.TB, st *store.Store, persona *campaign.Persona, tmpl *campaign.Template, variables map[string]string) *campaign.Campaign {
	t.Helper()

	c, err := st.CreateCampaign(context.Background(), &campaign.Campaign{
		UserID:     persona.UserID,
		Name:       "Campaign for " + tmpl.Slug,
		PersonaID:  persona.ID,
		TemplateID: tmpl.ID,
		Variables:  variables,
	})
	if err != nil {
		t.Fatalf("store.CreateCampaign: %v", err)
	}
	return c
}
