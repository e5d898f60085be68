package main

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"reelsmith/internal/campaign"
	"reelsmith/internal/daemonctl"
	"reelsmith/internal/daemonrun"
)

func newDaemonCommands(ctx *commandContext) []*cobra.Command {
	var startLogLevel string
	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start the reelsmith daemon in the background",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			exe, err := daemonExecutable()
			if err != nil {
				return err
			}
			result, err := daemonctl.EnsureStarted(cmd.Context(), client, exe, daemonLaunchOptions(ctx, startLogLevel), 15*time.Second)
			if err != nil {
				return err
			}
			stdout := cmd.OutOrStdout()
			switch result.State {
			case daemonctl.StartStateAlreadyRunning:
				fmt.Fprintf(stdout, "Daemon already running (pid %d)\n", result.PID)
			default:
				fmt.Fprintf(stdout, "Daemon started (pid %d)\n", result.PID)
			}
			return nil
		},
	}
	startCmd.Flags().StringVar(&startLogLevel, "log-level", "", "Override logging.level for the daemon")

	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the reelsmith daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			stdout := cmd.OutOrStdout()
			result, err := daemonctl.StopAndTerminate(cmd.Context(), client, ctx.configValue(), daemonrun.ShutdownTimeout+5*time.Second)
			if errors.Is(err, daemonctl.ErrDaemonNotRunning) {
				fmt.Fprintln(stdout, "Daemon is not running")
				return nil
			}
			if err != nil {
				return err
			}
			if result.ForcedKill {
				fmt.Fprintf(stdout, "Daemon did not exit in time; killed pid %d\n", result.PID)
				return nil
			}
			fmt.Fprintln(stdout, "Daemon stopped")
			return nil
		},
	}

	var restartLogLevel string
	restartCmd := &cobra.Command{
		Use:   "restart",
		Short: "Restart the reelsmith daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			exe, err := daemonExecutable()
			if err != nil {
				return err
			}
			result, err := daemonctl.Restart(cmd.Context(), client, ctx.configValue(), exe,
				daemonLaunchOptions(ctx, restartLogLevel), daemonrun.ShutdownTimeout+5*time.Second, 15*time.Second)
			if err != nil {
				return err
			}
			stdout := cmd.OutOrStdout()
			if result.WasRunning {
				fmt.Fprintln(stdout, "Daemon stopped")
			}
			fmt.Fprintf(stdout, "Daemon restarted (pid %d)\n", result.Start.PID)
			return nil
		},
	}
	restartCmd.Flags().StringVar(&restartLogLevel, "log-level", "", "Override logging.level for the daemon")

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon, provider and campaign status",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			snap, err := daemonctl.BuildStatusSnapshot(cmd.Context(), client, ctx.configValue())
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, snap)
			}

			stdout := cmd.OutOrStdout()
			colorize := shouldColorize(stdout)
			renderSection(stdout, "System Status", snap.SystemChecks, colorize)
			renderSection(stdout, "Dependencies", snap.Dependencies, colorize)
			renderSection(stdout, "Paths", snap.Paths, colorize)

			for _, line := range renderSectionHeader("Campaigns", colorize) {
				fmt.Fprintln(stdout, line)
			}
			rows := buildCampaignStatusRows(snap.Daemon.CampaignStats)
			if len(rows) == 0 {
				fmt.Fprintln(stdout, "No campaigns yet")
				return nil
			}
			fmt.Fprint(stdout, renderTable([]string{"Status", "Count"}, rows, []columnAlignment{alignLeft, alignRight}))
			return nil
		},
	}

	return []*cobra.Command{startCmd, stopCmd, restartCmd, statusCmd}
}

func newDaemonRunCommand(ctx *commandContext) *cobra.Command {
	var logLevel string
	var development bool
	cmd := &cobra.Command{
		Use:    "daemon",
		Short:  "Run the reelsmith daemon in the foreground",
		Hidden: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{LogLevel: logLevel, Development: development})
		},
	}
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Override logging.level")
	cmd.Flags().BoolVar(&development, "dev", false, "Include source locations in log output")
	return cmd
}

// buildCampaignStatusRows lists non-zero counts in lifecycle order.
func buildCampaignStatusRows(stats map[string]int) [][]string {
	order := make(map[string]int, len(campaign.AllStatuses()))
	for i, status := range campaign.AllStatuses() {
		order[string(status)] = i
	}
	keys := make([]string, 0, len(stats))
	for key, count := range stats {
		if count > 0 {
			keys = append(keys, key)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		oi, iok := order[keys[i]]
		oj, jok := order[keys[j]]
		if iok && jok {
			return oi < oj
		}
		if iok != jok {
			return iok
		}
		return keys[i] < keys[j]
	})
	rows := make([][]string, 0, len(keys))
	for _, key := range keys {
		rows = append(rows, []string{titleCase(key), strconv.Itoa(stats[key])})
	}
	return rows
}

func daemonExecutable() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("resolve executable: %w", err)
	}
	return exe, nil
}

func daemonLaunchOptions(ctx *commandContext, logLevel string) daemonctl.LaunchOptions {
	return daemonctl.LaunchOptions{
		ConfigPath: ctx.configPath(),
		LogLevel:   strings.TrimSpace(logLevel),
	}
}
