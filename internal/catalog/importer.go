package catalog

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"reelsmith/internal/campaign"
	"reelsmith/internal/services"
	"reelsmith/internal/store"
)

//go:embed seed/*.yaml
var seedFS embed.FS

// Document kinds accepted in catalog files.
const (
	KindTemplate = "template"
	KindPersona  = "persona"
)

// Result summarizes an import.
type Result struct {
	Templates []string `json:"templates"`
	Personas  []string `json:"personas"`
}

// Documents is the parsed content of one or more catalog files.
type Documents struct {
	Templates []campaign.Template
	Personas  []campaign.Persona
}

type header struct {
	Kind string `yaml:"kind"`
}

// Parse decodes a multi-document YAML stream. Every document must carry a
// kind of "template" or "persona".
func Parse(r io.Reader) (Documents, error) {
	var docs Documents
	decoder := yaml.NewDecoder(r)
	for index := 0; ; index++ {
		var node yaml.Node
		err := decoder.Decode(&node)
		if errors.Is(err, io.EOF) {
			return docs, nil
		}
		if err != nil {
			return Documents{}, fmt.Errorf("document %d: %w", index+1, err)
		}
		var h header
		if err := node.Decode(&h); err != nil {
			return Documents{}, fmt.Errorf("document %d: %w", index+1, err)
		}
		switch strings.ToLower(strings.TrimSpace(h.Kind)) {
		case KindTemplate:
			var tmpl campaign.Template
			if err := node.Decode(&tmpl); err != nil {
				return Documents{}, fmt.Errorf("document %d: %w", index+1, err)
			}
			if err := validateTemplate(tmpl); err != nil {
				return Documents{}, fmt.Errorf("document %d: %w", index+1, err)
			}
			docs.Templates = append(docs.Templates, tmpl)
		case KindPersona:
			var persona campaign.Persona
			if err := node.Decode(&persona); err != nil {
				return Documents{}, fmt.Errorf("document %d: %w", index+1, err)
			}
			if strings.TrimSpace(persona.Name) == "" {
				return Documents{}, fmt.Errorf("document %d: persona name is required", index+1)
			}
			docs.Personas = append(docs.Personas, persona)
		default:
			return Documents{}, fmt.Errorf("document %d: unknown kind %q", index+1, h.Kind)
		}
	}
}

func validateTemplate(tmpl campaign.Template) error {
	if strings.TrimSpace(tmpl.Slug) == "" {
		return errors.New("template slug is required")
	}
	if strings.TrimSpace(tmpl.Name) == "" {
		return fmt.Errorf("template %s: name is required", tmpl.Slug)
	}
	for _, variable := range tmpl.Variables {
		if strings.TrimSpace(variable.Name) == "" {
			return fmt.Errorf("template %s: variable without a name", tmpl.Slug)
		}
		switch variable.Type {
		case "", campaign.VariableText, campaign.VariableTextarea, campaign.VariableSelect:
		default:
			return fmt.Errorf("template %s: variable %s has unknown type %q", tmpl.Slug, variable.Name, variable.Type)
		}
	}
	return nil
}

// Importer writes catalog documents into the store.
type Importer struct {
	store *store.Store
}

// NewImporter wraps a store.
func NewImporter(st *store.Store) *Importer {
	return &Importer{store: st}
}

// LoadSeed installs the embedded system templates. Running it again updates
// the templates in place.
func (i *Importer) LoadSeed(ctx context.Context) (Result, error) {
	entries, err := seedFS.ReadDir("seed")
	if err != nil {
		return Result{}, fmt.Errorf("read seed: %w", err)
	}
	var result Result
	for _, entry := range entries {
		data, err := seedFS.ReadFile("seed/" + entry.Name())
		if err != nil {
			return result, fmt.Errorf("read seed %s: %w", entry.Name(), err)
		}
		docs, err := Parse(bytes.NewReader(data))
		if err != nil {
			return result, fmt.Errorf("parse seed %s: %w", entry.Name(), err)
		}
		if err := i.apply(ctx, docs, "", true, &result); err != nil {
			return result, err
		}
	}
	return result, nil
}

// ImportDir imports every *.yaml and *.yml file in dir. Templates become
// user templates of userID unless userID is empty, in which case they are
// installed as system templates. Personas are always owned by userID, or by
// the user_id field of the document when userID is empty.
func (i *Importer) ImportDir(ctx context.Context, dir, userID string) (Result, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return Result{}, services.Wrap(services.ErrValidation, "catalog", "import", "read directory", err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !isCatalogFile(entry.Name()) {
			continue
		}
		names = append(names, entry.Name())
	}
	slices.Sort(names)

	var result Result
	for _, name := range names {
		path := filepath.Join(dir, name)
		if err := i.importFile(ctx, path, userID, &result); err != nil {
			return result, err
		}
	}
	return result, nil
}

// ImportFile imports a single catalog file.
func (i *Importer) ImportFile(ctx context.Context, path, userID string) (Result, error) {
	var result Result
	err := i.importFile(ctx, path, userID, &result)
	return result, err
}

func (i *Importer) importFile(ctx context.Context, path, userID string, result *Result) error {
	file, err := os.Open(path)
	if err != nil {
		return services.Wrap(services.ErrValidation, "catalog", "import", "open "+filepath.Base(path), err)
	}
	defer file.Close()
	docs, err := Parse(file)
	if err != nil {
		return services.Wrap(services.ErrValidation, "catalog", "import", filepath.Base(path), err)
	}
	return i.apply(ctx, docs, userID, userID == "", result)
}

func (i *Importer) apply(ctx context.Context, docs Documents, userID string, system bool, result *Result) error {
	for _, tmpl := range docs.Templates {
		tmpl.UserID = userID
		tmpl.IsSystem = system
		tmpl.IsActive = true
		stored, err := i.store.UpsertTemplate(ctx, &tmpl)
		if err != nil {
			return services.Wrap(services.ErrTransient, "catalog", "import template", tmpl.Slug, err)
		}
		result.Templates = append(result.Templates, stored.Slug)
	}
	for _, persona := range docs.Personas {
		if userID != "" {
			persona.UserID = userID
		}
		if strings.TrimSpace(persona.UserID) == "" {
			return services.Wrap(services.ErrValidation, "catalog", "import persona", persona.Name+": user_id is required", nil)
		}
		if strings.TrimSpace(persona.ID) == "" {
			persona.ID = PersonaID(persona.UserID, persona.Name)
		}
		stored, err := i.store.UpsertPersona(ctx, &persona)
		if err != nil {
			return services.Wrap(services.ErrTransient, "catalog", "import persona", persona.Name, err)
		}
		result.Personas = append(result.Personas, stored.ID)
	}
	return nil
}

// PersonaID derives a stable id for an imported persona without one, so
// re-importing the same file updates instead of duplicating.
func PersonaID(userID, name string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("reelsmith:persona:"+userID+":"+strings.ToLower(strings.TrimSpace(name)))).String()
}

func isCatalogFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return (ext == ".yaml" || ext == ".yml") && !strings.HasPrefix(name, ".")
}
