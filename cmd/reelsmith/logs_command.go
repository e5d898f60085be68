package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"reelsmith/internal/daemonrun"
	"reelsmith/internal/logs"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var opts logs.Options
	var campaignID string
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show the daemon log",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if campaignID != "" {
				opts.Match = campaignID
			}
			out := cmd.OutOrStdout()
			return logs.Stream(cmd.Context(), daemonrun.LogPath(cfg), opts, func(line string) error {
				_, err := fmt.Fprintln(out, line)
				return err
			})
		},
	}
	cmd.Flags().IntVarP(&opts.Lines, "lines", "n", 50, "Number of trailing lines to show")
	cmd.Flags().BoolVarP(&opts.Follow, "follow", "f", false, "Keep printing new lines")
	cmd.Flags().DurationVar(&opts.Poll, "poll", 250*time.Millisecond, "Follow polling interval")
	cmd.Flags().StringVar(&campaignID, "campaign", "", "Only show lines mentioning this campaign id")
	return cmd
}
