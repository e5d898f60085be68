package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"reelsmith/internal/api"
	"reelsmith/internal/apikeys"
)

func newKeyCommand(ctx *commandContext) *cobra.Command {
	keyCmd := &cobra.Command{
		Use:     "key",
		Aliases: []string{"keys"},
		Short:   "Manage provider API keys",
	}

	keyCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "Show where each provider key comes from",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				statuses, err := client.KeyStatuses(cmd.Context())
				if err != nil {
					return err
				}
				return renderKeyStatuses(cmd, ctx, statuses)
			})
		},
	})

	var fromStdin bool
	setCmd := &cobra.Command{
		Use:   "set <provider> [key]",
		Short: "Store a key for replicate, elevenlabs, google or openrouter",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			provider, err := apikeys.NormalizeProvider(args[0])
			if err != nil {
				return err
			}
			var key string
			switch {
			case len(args) == 2:
				key = args[1]
			case fromStdin:
				key, err = readKey(cmd.InOrStdin())
				if err != nil {
					return err
				}
			default:
				return fmt.Errorf("provide the key as an argument or with --stdin")
			}
			if strings.TrimSpace(key) == "" {
				return fmt.Errorf("key is empty; use `reelsmith key delete %s` to remove it", provider)
			}
			return ctx.withClient(func(client *api.Client) error {
				if err := client.SetKey(cmd.Context(), provider, key); err != nil {
					return err
				}
				if ctx.jsonOutput() {
					statuses, err := client.KeyStatuses(cmd.Context())
					if err != nil {
						return err
					}
					return writeJSON(cmd, statuses)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Stored %s key\n", provider)
				return nil
			})
		},
	}
	setCmd.Flags().BoolVar(&fromStdin, "stdin", false, "Read the key from stdin")
	keyCmd.AddCommand(setCmd)

	keyCmd.AddCommand(&cobra.Command{
		Use:   "delete <provider>",
		Short: "Remove a stored key and fall back to the configured one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				if err := client.DeleteKey(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %s key\n", strings.ToLower(strings.TrimSpace(args[0])))
				return nil
			})
		},
	})

	return keyCmd
}

func renderKeyStatuses(cmd *cobra.Command, ctx *commandContext, statuses []apikeys.Status) error {
	if ctx.jsonOutput() {
		return writeJSON(cmd, statuses)
	}
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)
	rows := make([][]string, 0, len(statuses))
	for _, status := range statuses {
		kind := statusOK
		if status.Source == apikeys.SourceNone {
			kind = statusWarn
		}
		rows = append(rows, []string{status.Provider, colorizeText(status.Source, kind, colorize)})
	}
	fmt.Fprint(out, renderTable([]string{"Provider", "Source"}, rows, nil))
	return nil
}

func readKey(r io.Reader) (string, error) {
	scanner := bufio.NewScanner(r)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return "", fmt.Errorf("read key: %w", err)
		}
		return "", nil
	}
	return strings.TrimSpace(scanner.Text()), nil
}
