package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"reelsmith/internal/api"
	"reelsmith/internal/refine"
)

func newRefineCommand(ctx *commandContext) *cobra.Command {
	var kind, provider, model string
	cmd := &cobra.Command{
		Use:   "refine <prompt>...",
		Short: "Rewrite a prompt with an LLM",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed, err := refine.ParseKind(kind)
			if err != nil {
				return err
			}
			req := refine.Request{
				Prompt:   strings.Join(args, " "),
				Kind:     parsed,
				Provider: provider,
				Model:    model,
			}
			return ctx.withClient(func(client *api.Client) error {
				result, err := client.Refine(cmd.Context(), req)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, result)
				}
				fmt.Fprintln(cmd.OutOrStdout(), result.RefinedPrompt)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&kind, "type", "image", "Prompt type (image, video, narration)")
	cmd.Flags().StringVar(&provider, "provider", "", "LLM provider (openrouter or google)")
	cmd.Flags().StringVar(&model, "model", "", "Model override")
	return cmd
}

func newTestNotifyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "test-notify",
		Short: "Send a test notification through the daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				sent, message, err := client.TestNotification(cmd.Context())
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, map[string]any{"sent": sent, "message": message})
				}
				out := cmd.OutOrStdout()
				kind := statusOK
				if !sent {
					kind = statusWarn
				}
				fmt.Fprintln(out, renderStatusLine("Notification", kind, message, shouldColorize(out)))
				return nil
			})
		},
	}
}
