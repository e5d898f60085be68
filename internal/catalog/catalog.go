package catalog

import (
	"context"
	"strings"

	"reelsmith/internal/campaign"
	"reelsmith/internal/services"
	"reelsmith/internal/store"
)

// Personas is the persona service.
type Personas struct {
	store *store.Store
}

// NewPersonas wraps a store.
func NewPersonas(st *store.Store) *Personas {
	return &Personas{store: st}
}

// Get returns the persona when it exists and belongs to userID. Personas
// owned by someone else are reported as not found.
func (p *Personas) Get(ctx context.Context, userID, personaID string) (*campaign.Persona, error) {
	persona, err := p.store.GetPersona(ctx, personaID)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "catalog", "load persona", "", err)
	}
	if persona == nil || persona.UserID != userID {
		return nil, services.Wrap(services.ErrNotFound, "", "", "persona not found", nil)
	}
	return persona, nil
}

// List returns the personas owned by userID.
func (p *Personas) List(ctx context.Context, userID string) ([]*campaign.Persona, error) {
	personas, err := p.store.ListPersonas(ctx, userID)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "catalog", "list personas", "", err)
	}
	if personas == nil {
		personas = []*campaign.Persona{}
	}
	return personas, nil
}

// Create stores a new persona for userID.
func (p *Personas) Create(ctx context.Context, userID string, persona campaign.Persona) (*campaign.Persona, error) {
	persona.Name = strings.TrimSpace(persona.Name)
	if persona.Name == "" {
		return nil, services.Wrap(services.ErrValidation, "", "", "persona name is required", nil)
	}
	persona.ID = ""
	persona.UserID = userID
	created, err := p.store.UpsertPersona(ctx, &persona)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "catalog", "create persona", "", err)
	}
	return created, nil
}

// Delete removes a persona owned by userID.
func (p *Personas) Delete(ctx context.Context, userID, personaID string) error {
	if _, err := p.Get(ctx, userID, personaID); err != nil {
		return err
	}
	if err := p.store.DeletePersona(ctx, personaID); err != nil {
		return services.Wrap(services.ErrConflict, "", "", "persona is still used by campaigns", err)
	}
	return nil
}

// Templates is the template service.
type Templates struct {
	store *store.Store
}

// NewTemplates wraps a store.
func NewTemplates(st *store.Store) *Templates {
	return &Templates{store: st}
}

// Get returns a template by id.
func (t *Templates) Get(ctx context.Context, templateID string) (*campaign.Template, error) {
	tmpl, err := t.store.GetTemplate(ctx, templateID)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "catalog", "load template", "", err)
	}
	if tmpl == nil {
		return nil, services.Wrap(services.ErrNotFound, "", "", "template not found", nil)
	}
	return tmpl, nil
}

// Lookup resolves a template by id or slug.
func (t *Templates) Lookup(ctx context.Context, idOrSlug string) (*campaign.Template, error) {
	tmpl, err := t.store.GetTemplateBySlug(ctx, idOrSlug)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "catalog", "load template", "", err)
	}
	if tmpl != nil {
		return tmpl, nil
	}
	return t.Get(ctx, idOrSlug)
}

// List returns active templates, optionally limited to one category.
func (t *Templates) List(ctx context.Context, category string) ([]*campaign.Template, error) {
	templates, err := t.store.ListTemplates(ctx, store.TemplateFilter{Category: strings.TrimSpace(category)})
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "catalog", "list templates", "", err)
	}
	if templates == nil {
		templates = []*campaign.Template{}
	}
	return templates, nil
}
