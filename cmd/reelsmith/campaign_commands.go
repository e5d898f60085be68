package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"reelsmith/internal/api"
	"reelsmith/internal/campaign"
)

func newCampaignCommand(ctx *commandContext) *cobra.Command {
	campaignCmd := &cobra.Command{
		Use:     "campaign",
		Aliases: []string{"campaigns"},
		Short:   "Author and execute campaigns",
	}

	campaignCmd.AddCommand(newCampaignListCommand(ctx))
	campaignCmd.AddCommand(newCampaignShowCommand(ctx))
	campaignCmd.AddCommand(newCampaignCreateCommand(ctx))
	campaignCmd.AddCommand(newCampaignUpdateCommand(ctx))
	campaignCmd.AddCommand(newCampaignExecuteCommand(ctx))
	campaignCmd.AddCommand(newCampaignLogCommand(ctx))
	campaignCmd.AddCommand(newCampaignSubtitlesCommand(ctx))
	campaignCmd.AddCommand(newCampaignDuplicateCommand(ctx))
	campaignCmd.AddCommand(newCampaignDeleteCommand(ctx))

	return campaignCmd
}

func newCampaignListCommand(ctx *commandContext) *cobra.Command {
	var query api.ListQuery
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List campaigns",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				resp, err := client.ListCampaigns(cmd.Context(), query)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, resp)
				}
				out := cmd.OutOrStdout()
				if len(resp.Campaigns) == 0 {
					fmt.Fprintln(out, "No campaigns found")
					return nil
				}
				colorize := shouldColorize(out)
				rows := make([][]string, 0, len(resp.Campaigns))
				for _, c := range resp.Campaigns {
					rows = append(rows, []string{
						c.ID,
						truncate(c.Name, 40),
						colorizeText(string(c.Status), campaignStatusKind(c.Status), colorize),
						formatTimestamp(&c.UpdatedAt),
						truncate(c.ErrorMessage, 50),
					})
				}
				fmt.Fprint(out, renderTable([]string{"ID", "Name", "Status", "Updated", "Error"}, rows, nil))
				p := resp.Pagination
				fmt.Fprintf(out, "Page %d of %d (%d campaigns)\n", p.Page, max(p.TotalPages, 1), p.Total)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&query.Status, "status", "", "Filter by status (draft, queued, running, completed, failed)")
	cmd.Flags().StringVar(&query.PersonaID, "persona", "", "Filter by persona id")
	cmd.Flags().StringVar(&query.TemplateID, "template", "", "Filter by template id")
	cmd.Flags().StringVar(&query.Search, "search", "", "Match name or description")
	cmd.Flags().IntVar(&query.Page, "page", 0, "Page number")
	cmd.Flags().IntVar(&query.Limit, "limit", 0, "Campaigns per page")
	return cmd
}

func newCampaignShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show campaign details and outputs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				c, err := client.GetCampaign(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, c)
				}
				out := cmd.OutOrStdout()
				fmt.Fprint(out, renderKeyValues(campaignDetails(c)))
				if len(c.ExecutionLog) > 0 {
					fmt.Fprintln(out)
					fmt.Fprint(out, renderExecutionLog(c.ExecutionLog, shouldColorize(out)))
				}
				return nil
			})
		},
	}
}

func campaignDetails(c *campaign.Campaign) [][2]string {
	pairs := [][2]string{
		{"ID", c.ID},
		{"Name", c.Name},
		{"Status", string(c.Status)},
		{"Persona", c.PersonaID},
		{"Template", c.TemplateID},
	}
	if c.BatchID != "" {
		pairs = append(pairs, [2]string{"Batch", c.BatchID})
	}
	for _, key := range sortedKeys(c.Variables) {
		pairs = append(pairs, [2]string{"Var " + key, c.Variables[key]})
	}
	pairs = append(pairs,
		[2]string{"Lip-sync", yesNo(c.UseLipSync)},
		[2]string{"Caption preset", orDash(c.CaptionPresetID)},
		[2]string{"Segmentation", orDash(string(c.CaptionSegmentationMode))},
		[2]string{"Started", formatTimestamp(c.StartedAt)},
		[2]string{"Completed", formatTimestamp(c.CompletedAt)},
	)
	if c.ErrorMessage != "" {
		pairs = append(pairs, [2]string{"Error", c.ErrorMessage})
	}
	outputs := [][2]string{
		{"Image", c.ImageURL},
		{"Video", c.VideoURL},
		{"Thumbnail", c.VideoThumbnailURL},
		{"Audio", c.AudioURL},
		{"Lip-sync video", c.LipSyncVideoURL},
		{"Composed image", c.ComposedImageURL},
		{"Composed video", c.ComposedVideoURL},
		{"Subtitles", c.SRTURL},
	}
	for _, output := range outputs {
		if output[1] != "" {
			pairs = append(pairs, output)
		}
	}
	return pairs
}

func renderExecutionLog(entries []campaign.LogEntry, colorize bool) string {
	rows := make([][]string, 0, len(entries))
	for _, entry := range entries {
		kind := statusInfo
		switch entry.Status {
		case campaign.EntryCompleted:
			kind = statusOK
		case campaign.EntryFailed:
			kind = statusError
		case campaign.EntrySkipped:
			kind = statusWarn
		}
		detail := entry.Details
		switch {
		case entry.Error != "":
			detail = entry.Error
		case entry.SkipReason != "":
			detail = entry.SkipReason
		}
		duration := "-"
		if entry.DurationMs > 0 {
			duration = (time.Duration(entry.DurationMs) * time.Millisecond).String()
		}
		rows = append(rows, []string{
			strconv.Itoa(entry.Run),
			string(entry.Step),
			colorizeText(string(entry.Status), kind, colorize),
			duration,
			orDash(detail),
		})
	}
	return renderTable([]string{"Run", "Step", "Status", "Duration", "Detail"}, rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignLeft})
}

func newCampaignCreateCommand(ctx *commandContext) *cobra.Command {
	var req api.CreateCampaignRequest
	var vars []string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a draft campaign from a persona and template",
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed, err := parseVariables(vars)
			if err != nil {
				return err
			}
			req.Variables = parsed
			return ctx.withClient(func(client *api.Client) error {
				c, err := client.CreateCampaign(cmd.Context(), req)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, c)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created campaign %s (%s)\n", c.ID, c.Name)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&req.Name, "name", "", "Campaign name")
	cmd.Flags().StringVar(&req.Description, "description", "", "Campaign description")
	cmd.Flags().StringVar(&req.PersonaID, "persona", "", "Persona id")
	cmd.Flags().StringVar(&req.TemplateID, "template", "", "Template id")
	cmd.Flags().StringArrayVar(&vars, "var", nil, "Template variable as name=value (repeatable)")
	cmd.Flags().BoolVar(&req.UseLipSync, "lip-sync", false, "Run the lip-sync step")
	cmd.Flags().StringVar(&req.LipSyncModel, "lip-sync-model", "", "Lip-sync model override")
	cmd.Flags().StringVar(&req.CaptionPresetID, "caption-preset", "", "Caption style preset id")
	cmd.Flags().StringVar(&req.CaptionSegmentationMode, "segmentation", "", "Caption segmentation (timed, sentence, word)")
	return cmd
}

func newCampaignUpdateCommand(ctx *commandContext) *cobra.Command {
	var name, description, lipSyncModel, preset, segmentation string
	var lipSync bool
	var vars []string
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update a draft campaign",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var req api.UpdateCampaignRequest
			flags := cmd.Flags()
			if flags.Changed("name") {
				req.Name = &name
			}
			if flags.Changed("description") {
				req.Description = &description
			}
			if flags.Changed("lip-sync") {
				req.UseLipSync = &lipSync
			}
			if flags.Changed("lip-sync-model") {
				req.LipSyncModel = &lipSyncModel
			}
			if flags.Changed("caption-preset") {
				req.CaptionPresetID = &preset
			}
			if flags.Changed("segmentation") {
				req.CaptionSegmentationMode = &segmentation
			}
			parsed, err := parseVariables(vars)
			if err != nil {
				return err
			}
			req.Variables = parsed
			return ctx.withClient(func(client *api.Client) error {
				c, err := client.UpdateCampaign(cmd.Context(), args[0], req)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, c)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Updated campaign %s\n", c.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Campaign name")
	cmd.Flags().StringVar(&description, "description", "", "Campaign description")
	cmd.Flags().StringArrayVar(&vars, "var", nil, "Replace template variables, name=value (repeatable)")
	cmd.Flags().BoolVar(&lipSync, "lip-sync", false, "Run the lip-sync step")
	cmd.Flags().StringVar(&lipSyncModel, "lip-sync-model", "", "Lip-sync model override")
	cmd.Flags().StringVar(&preset, "caption-preset", "", "Caption style preset id")
	cmd.Flags().StringVar(&segmentation, "segmentation", "", "Caption segmentation (timed, sentence, word)")
	return cmd
}

func newCampaignExecuteCommand(ctx *commandContext) *cobra.Command {
	var req api.ExecuteRequest
	var steps string
	var wait bool
	var pollInterval time.Duration
	cmd := &cobra.Command{
		Use:   "execute <id>",
		Short: "Run the campaign pipeline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Steps = splitList(steps)
			if _, err := req.Options(); err != nil {
				return err
			}
			return ctx.withClient(func(client *api.Client) error {
				resp, err := client.ExecuteCampaign(cmd.Context(), args[0], req)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if !wait {
					if ctx.jsonOutput() {
						return writeJSON(cmd, resp)
					}
					fmt.Fprintf(out, "Campaign %s started\n", args[0])
					return nil
				}
				final, err := client.WaitCampaign(cmd.Context(), args[0], pollInterval)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, final)
				}
				colorize := shouldColorize(out)
				fmt.Fprintf(out, "Campaign %s %s\n", final.ID, colorizeText(string(final.Status), campaignStatusKind(final.Status), colorize))
				fmt.Fprint(out, renderExecutionLog(campaign.RunEntries(final.ExecutionLog, campaign.LatestRun(final.ExecutionLog)), colorize))
				if final.Status == campaign.StatusFailed {
					return errors.New(orDash(final.ErrorMessage))
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&steps, "steps", "", "Comma-separated steps (image,video,audio,lipsync,compose,captions)")
	cmd.Flags().StringVar(&req.ImageModel, "image-model", "", "Image model override")
	cmd.Flags().StringVar(&req.VideoModel, "video-model", "", "Video model override")
	cmd.Flags().StringVar(&req.AspectRatio, "aspect-ratio", "", "Aspect ratio override, e.g. 9:16")
	cmd.Flags().IntVar(&req.VideoDuration, "duration", 0, "Video duration in seconds")
	cmd.Flags().StringVar(&req.CaptionPresetID, "caption-preset", "", "Caption style preset for this run")
	cmd.Flags().StringVar(&req.LipSyncModel, "lip-sync-model", "", "Lip-sync model for this run")
	cmd.Flags().BoolVar(&wait, "wait", false, "Wait for the run to finish")
	cmd.Flags().DurationVar(&pollInterval, "poll", 2*time.Second, "Polling interval with --wait")
	return cmd
}

func newCampaignLogCommand(ctx *commandContext) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "log <id>",
		Short: "Show the execution log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				c, err := client.GetCampaign(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				entries := c.ExecutionLog
				if !all {
					entries = campaign.RunEntries(entries, campaign.LatestRun(entries))
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, entries)
				}
				out := cmd.OutOrStdout()
				if len(entries) == 0 {
					fmt.Fprintln(out, "Campaign has not been executed")
					return nil
				}
				fmt.Fprint(out, renderExecutionLog(entries, shouldColorize(out)))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Include entries from earlier runs")
	return cmd
}

func newCampaignSubtitlesCommand(ctx *commandContext) *cobra.Command {
	var format string
	var output string
	cmd := &cobra.Command{
		Use:   "subtitles <id>",
		Short: "Download the caption track as SRT or ASS",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				body, err := client.Subtitles(cmd.Context(), args[0], format)
				if err != nil {
					return err
				}
				var out io.Writer = cmd.OutOrStdout()
				if path := strings.TrimSpace(output); path != "" {
					if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
						return fmt.Errorf("write subtitles: %w", err)
					}
					fmt.Fprintf(out, "Wrote %s\n", path)
					return nil
				}
				_, err = io.WriteString(out, body)
				return err
			})
		},
	}
	cmd.Flags().StringVar(&format, "format", "srt", "Subtitle format (srt or ass)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write to a file instead of stdout")
	return cmd
}

func newCampaignDuplicateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "duplicate <id>",
		Short: "Copy a campaign's configuration into a new draft",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				c, err := client.DuplicateCampaign(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, c)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created campaign %s (%s)\n", c.ID, c.Name)
				return nil
			})
		},
	}
}

func newCampaignDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>...",
		Short: "Delete campaigns and their stored assets",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				var errs []error
				for _, id := range args {
					if err := client.DeleteCampaign(cmd.Context(), id); err != nil {
						errs = append(errs, fmt.Errorf("%s: %w", id, err))
						continue
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Deleted campaign %s\n", id)
				}
				return errors.Join(errs...)
			})
		},
	}
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
