package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"reelsmith/internal/api"
	"reelsmith/internal/campaign"
	"reelsmith/internal/catalog"
	"reelsmith/internal/store"
)

func newTemplateCommand(ctx *commandContext) *cobra.Command {
	templateCmd := &cobra.Command{
		Use:     "template",
		Aliases: []string{"templates"},
		Short:   "Browse and import content templates",
	}
	templateCmd.AddCommand(newTemplateListCommand(ctx))
	templateCmd.AddCommand(newTemplateShowCommand(ctx))
	templateCmd.AddCommand(newTemplateImportCommand(ctx))
	templateCmd.AddCommand(newCaptionPresetsCommand(ctx))
	return templateCmd
}

func newTemplateListCommand(ctx *commandContext) *cobra.Command {
	var category string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List active templates",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				templates, err := client.ListTemplates(cmd.Context(), category)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, templates)
				}
				out := cmd.OutOrStdout()
				if len(templates) == 0 {
					fmt.Fprintln(out, "No templates found")
					return nil
				}
				rows := make([][]string, 0, len(templates))
				for _, tmpl := range templates {
					owner := "system"
					if !tmpl.IsSystem {
						owner = orDash(tmpl.UserID)
					}
					rows = append(rows, []string{tmpl.Slug, tmpl.Name, orDash(tmpl.Category), owner, tmpl.ID})
				}
				fmt.Fprint(out, renderTable([]string{"Slug", "Name", "Category", "Owner", "ID"}, rows, nil))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "Only list templates in this category")
	return cmd
}

func newTemplateShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id|slug>",
		Short: "Show a template with its prompts and variables",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				tmpl, err := client.GetTemplate(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, tmpl)
				}
				out := cmd.OutOrStdout()
				fmt.Fprint(out, renderKeyValues(templateDetails(tmpl)))
				if len(tmpl.Variables) > 0 {
					fmt.Fprintln(out)
					fmt.Fprint(out, renderTemplateVariables(tmpl.Variables))
				}
				return nil
			})
		},
	}
}

func templateDetails(tmpl *campaign.Template) [][2]string {
	pairs := [][2]string{
		{"ID", tmpl.ID},
		{"Slug", tmpl.Slug},
		{"Name", tmpl.Name},
		{"Category", orDash(tmpl.Category)},
		{"Description", orDash(tmpl.Description)},
		{"Image prompt", orDash(tmpl.ImagePromptTemplate)},
		{"Video prompt", orDash(tmpl.VideoPromptTemplate)},
		{"Narration", orDash(tmpl.NarrationTemplate)},
		{"Image model", orDash(tmpl.DefaultImageModel)},
		{"Video model", orDash(tmpl.DefaultVideoModel)},
		{"Aspect ratio", orDash(tmpl.DefaultAspectRatio)},
	}
	if tmpl.DefaultVideoDuration > 0 {
		pairs = append(pairs, [2]string{"Duration", strconv.Itoa(tmpl.DefaultVideoDuration) + "s"})
	}
	if tmpl.Overlay != nil && tmpl.Overlay.Enabled {
		pairs = append(pairs, [2]string{"Overlay", fmt.Sprintf("%s, %dpx", tmpl.Overlay.Position, tmpl.Overlay.FontSize)})
	}
	return pairs
}

func renderTemplateVariables(vars []campaign.TemplateVariable) string {
	rows := make([][]string, 0, len(vars))
	for _, v := range vars {
		rows = append(rows, []string{
			v.Name,
			orDash(v.Label),
			string(v.Type),
			yesNo(v.Required),
			orDash(strings.Join(v.Options, ", ")),
			orDash(v.DefaultValue),
		})
	}
	return renderTable([]string{"Variable", "Label", "Type", "Required", "Options", "Default"}, rows, nil)
}

// newTemplateImportCommand writes catalog files straight into the database,
// so it works whether or not the daemon is running.
func newTemplateImportCommand(ctx *commandContext) *cobra.Command {
	var system bool
	cmd := &cobra.Command{
		Use:   "import <file|dir>...",
		Short: "Import templates and personas from YAML catalog files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			userID := ""
			if !system {
				userID = api.DefaultUserID
				if ctx.userFlag != nil && strings.TrimSpace(*ctx.userFlag) != "" {
					userID = strings.TrimSpace(*ctx.userFlag)
				}
			}
			st, err := store.Open(cfg)
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer st.Close()

			importer := catalog.NewImporter(st)
			var total catalog.Result
			for _, path := range args {
				info, err := os.Stat(path)
				if err != nil {
					return fmt.Errorf("import %s: %w", path, err)
				}
				var result catalog.Result
				if info.IsDir() {
					result, err = importer.ImportDir(cmd.Context(), path, userID)
				} else {
					result, err = importer.ImportFile(cmd.Context(), path, userID)
				}
				if err != nil {
					return fmt.Errorf("import %s: %w", path, err)
				}
				total.Templates = append(total.Templates, result.Templates...)
				total.Personas = append(total.Personas, result.Personas...)
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, total)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d templates and %d personas\n", len(total.Templates), len(total.Personas))
			return nil
		},
	}
	cmd.Flags().BoolVar(&system, "system", false, "Install templates as system templates visible to every user")
	return cmd
}

func newCaptionPresetsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "presets",
		Short: "List caption style presets",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				presets, err := client.CaptionPresets(cmd.Context())
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, presets)
				}
				rows := make([][]string, 0, len(presets))
				for _, p := range presets {
					rows = append(rows, []string{p.ID, p.Name, p.Description})
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable([]string{"ID", "Name", "Description"}, rows, nil))
				return nil
			})
		},
	}
}

func newPersonaCommand(ctx *commandContext) *cobra.Command {
	personaCmd := &cobra.Command{
		Use:     "persona",
		Aliases: []string{"personas"},
		Short:   "Manage personas",
	}
	personaCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List your personas",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				personas, err := client.ListPersonas(cmd.Context())
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, personas)
				}
				out := cmd.OutOrStdout()
				if len(personas) == 0 {
					fmt.Fprintln(out, "No personas found")
					return nil
				}
				rows := make([][]string, 0, len(personas))
				for _, p := range personas {
					rows = append(rows, []string{p.ID, p.Name, orDash(p.VoiceName), yesNo(p.ReferenceImageURL != "")})
				}
				fmt.Fprint(out, renderTable([]string{"ID", "Name", "Voice", "Reference"}, rows, nil))
				return nil
			})
		},
	})
	personaCmd.AddCommand(newPersonaCreateCommand(ctx))
	personaCmd.AddCommand(&cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a persona",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				if err := client.DeletePersona(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted persona %s\n", args[0])
				return nil
			})
		},
	})
	return personaCmd
}

func newPersonaCreateCommand(ctx *commandContext) *cobra.Command {
	var persona campaign.Persona
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a persona",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				created, err := client.CreatePersona(cmd.Context(), persona)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, created)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created persona %s (%s)\n", created.ID, created.Name)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&persona.Name, "name", "", "Persona name")
	cmd.Flags().StringVar(&persona.BasePrompt, "prompt", "", "Base appearance prompt prepended to image prompts")
	cmd.Flags().StringVar(&persona.ReferenceImageURL, "reference-image", "", "Reference image URL")
	cmd.Flags().StringVar(&persona.VoiceID, "voice-id", "", "Narration voice id")
	cmd.Flags().StringVar(&persona.VoiceName, "voice-name", "", "Narration voice display name")
	return cmd
}
