package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"reelsmith/internal/api"
	"reelsmith/internal/batch"
	"reelsmith/internal/campaign"
)

func newBatchCommand(ctx *commandContext) *cobra.Command {
	batchCmd := &cobra.Command{
		Use:     "batch",
		Aliases: []string{"batches"},
		Short:   "Create and run campaign batches",
	}
	batchCmd.AddCommand(newBatchCreateCommand(ctx))
	batchCmd.AddCommand(newBatchListCommand(ctx))
	batchCmd.AddCommand(newBatchShowCommand(ctx))
	batchCmd.AddCommand(newBatchExecuteCommand(ctx))
	batchCmd.AddCommand(newBatchCancelCommand(ctx))
	return batchCmd
}

// batchItemsFile is the layout of --items. JSON files parse as well.
type batchItemsFile struct {
	Items []batch.Item `yaml:"items"`
}

func loadBatchItems(path string) ([]batch.Item, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read items: %w", err)
	}
	var file batchItemsFile
	if err := yaml.Unmarshal(data, &file); err == nil && len(file.Items) > 0 {
		return file.Items, nil
	}
	var items []batch.Item
	if err := yaml.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("parse items %s: %w", path, err)
	}
	return items, nil
}

func newBatchCreateCommand(ctx *commandContext) *cobra.Command {
	var req batch.CreateRequest
	var itemsPath string
	var baseVars []string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a batch of queued campaigns from one template",
		RunE: func(cmd *cobra.Command, args []string) error {
			if itemsPath == "" {
				return errors.New("--items is required")
			}
			items, err := loadBatchItems(itemsPath)
			if err != nil {
				return err
			}
			req.Items = items
			if req.BaseVariables, err = parseVariables(baseVars); err != nil {
				return err
			}
			return ctx.withClient(func(client *api.Client) error {
				resp, err := client.CreateBatch(cmd.Context(), req)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, resp)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created batch %s with %d campaigns\n", resp.Batch.ID, len(resp.Campaigns))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&req.Name, "name", "", "Batch name")
	cmd.Flags().StringVar(&req.TemplateID, "template", "", "Template id")
	cmd.Flags().StringVar(&req.PersonaID, "persona", "", "Persona id")
	cmd.Flags().StringVar(&itemsPath, "items", "", "YAML or JSON file listing items with name and variables")
	cmd.Flags().StringArrayVar(&baseVars, "var", nil, "Variable shared by every item, name=value (repeatable)")
	cmd.Flags().BoolVar(&req.UseLipSync, "lip-sync", false, "Run the lip-sync step for every member")
	cmd.Flags().StringVar(&req.CaptionPresetID, "caption-preset", "", "Caption style preset for every member")
	return cmd
}

func newBatchListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List batches",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				batches, err := client.ListBatches(cmd.Context())
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, batches)
				}
				out := cmd.OutOrStdout()
				if len(batches) == 0 {
					fmt.Fprintln(out, "No batches found")
					return nil
				}
				colorize := shouldColorize(out)
				rows := make([][]string, 0, len(batches))
				for _, b := range batches {
					rows = append(rows, batchRow(b, colorize))
				}
				fmt.Fprint(out, renderTable([]string{"ID", "Name", "Status", "Progress", "Failed", "Created"}, rows, nil))
				return nil
			})
		},
	}
}

func batchRow(b *campaign.Batch, colorize bool) []string {
	return []string{
		b.ID,
		truncate(b.Name, 40),
		colorizeText(string(b.Status), campaignStatusKind(b.Status), colorize),
		fmt.Sprintf("%d/%d", b.Completed+b.Failed, b.Total),
		fmt.Sprintf("%d", b.Failed),
		formatTimestamp(&b.CreatedAt),
	}
}

func newBatchShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a batch and its campaigns",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				resp, err := client.GetBatch(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, resp)
				}
				renderBatch(cmd, resp)
				return nil
			})
		},
	}
}

func renderBatch(cmd *cobra.Command, resp api.BatchResponse) {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)
	b := resp.Batch
	pairs := [][2]string{
		{"ID", b.ID},
		{"Name", b.Name},
		{"Status", colorizeText(string(b.Status), campaignStatusKind(b.Status), colorize)},
		{"Template", b.TemplateID},
		{"Persona", b.PersonaID},
		{"Completed", fmt.Sprintf("%d of %d", b.Completed, b.Total)},
		{"Failed", fmt.Sprintf("%d", b.Failed)},
		{"Duration", formatDuration(b.StartedAt, b.CompletedAt)},
	}
	if b.ErrorMessage != "" {
		pairs = append(pairs, [2]string{"Error", b.ErrorMessage})
	}
	fmt.Fprint(out, renderKeyValues(pairs))
	if len(resp.Campaigns) == 0 {
		return
	}
	rows := make([][]string, 0, len(resp.Campaigns))
	for _, c := range resp.Campaigns {
		rows = append(rows, []string{
			c.ID,
			truncate(c.Name, 40),
			colorizeText(string(c.Status), campaignStatusKind(c.Status), colorize),
			truncate(c.ErrorMessage, 50),
		})
	}
	fmt.Fprintln(out)
	fmt.Fprint(out, renderTable([]string{"Campaign", "Name", "Status", "Error"}, rows, nil))
}

func newBatchExecuteCommand(ctx *commandContext) *cobra.Command {
	var wait bool
	var pollInterval time.Duration
	cmd := &cobra.Command{
		Use:   "execute <id>",
		Short: "Run every queued campaign in the batch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				resp, err := client.ExecuteBatch(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if !wait {
					if ctx.jsonOutput() {
						return writeJSON(cmd, resp)
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Batch %s started\n", args[0])
					return nil
				}
				final, err := waitBatch(cmd, client, args[0], pollInterval)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, final)
				}
				renderBatch(cmd, final)
				if final.Batch.Status == campaign.StatusFailed {
					return fmt.Errorf("batch %s failed", final.Batch.ID)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&wait, "wait", false, "Wait for every member to finish")
	cmd.Flags().DurationVar(&pollInterval, "poll", 2*time.Second, "Polling interval with --wait")
	return cmd
}

func waitBatch(cmd *cobra.Command, client *api.Client, id string, interval time.Duration) (api.BatchResponse, error) {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		resp, err := client.GetBatch(cmd.Context(), id)
		if err != nil {
			return api.BatchResponse{}, err
		}
		if resp.Batch.Status.Terminal() {
			return resp, nil
		}
		select {
		case <-cmd.Context().Done():
			return api.BatchResponse{}, cmd.Context().Err()
		case <-ticker.C:
		}
	}
}

func newBatchCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <id>",
		Short: "Cancel a batch that has not started",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				resp, err := client.CancelBatch(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, resp)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Batch %s canceled\n", args[0])
				return nil
			})
		},
	}
}
