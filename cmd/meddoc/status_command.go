package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"meddoc/internal/daemonctl"
	"meddoc/internal/preflight"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon, system check and index status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			snapshot, err := daemonctl.BuildStatusSnapshot(cmd.Context(), ctx.client(), cfg)
			if err != nil {
				return err
			}
			checks := preflight.RunAll(cmd.Context(), cfg)
			if asJSON {
				return writeJSON(cmd, map[string]any{
					"daemon": snapshot,
					"checks": checks,
				})
			}

			stdout := cmd.OutOrStdout()
			colorize := shouldColorize(stdout)

			for _, line := range renderSectionHeader("Daemon", colorize) {
				fmt.Fprintln(stdout, line)
			}
			if snapshot.Reachable {
				status := snapshot.Status
				fmt.Fprintln(stdout, renderStatusLine("Daemon", statusOK, fmt.Sprintf("running (pid %d)", status.PID), colorize))
				fmt.Fprintln(stdout, renderStatusLine("Watch root", statusInfo, status.WatchRoot, colorize))
				fmt.Fprintln(stdout, renderStatusLine("Queue depth", statusInfo, strconv.Itoa(status.QueueDepth), colorize))
				fmt.Fprintln(stdout, renderStatusLine("Pending paths", statusInfo, strconv.Itoa(status.PendingPaths), colorize))
				if status.BusDropped > 0 {
					fmt.Fprintln(stdout, renderStatusLine("Dropped messages", statusWarn, strconv.FormatInt(status.BusDropped, 10), colorize))
				}
			} else {
				fmt.Fprintln(stdout, renderStatusLine("Daemon", statusWarn, "not running", colorize))
				fmt.Fprintln(stdout, renderStatusLine("Watch root", statusInfo, snapshot.Status.WatchRoot, colorize))
			}
			fmt.Fprintln(stdout)

			for _, line := range renderSectionHeader("System Checks", colorize) {
				fmt.Fprintln(stdout, line)
			}
			for _, check := range checks {
				fmt.Fprintln(stdout, renderStatusLine(check.Name, checkKind(check), check.Detail, colorize))
			}
			fmt.Fprintln(stdout)

			for _, line := range renderSectionHeader("Records", colorize) {
				fmt.Fprintln(stdout, line)
			}
			records := snapshot.Status.Records
			rows := [][]string{
				{"Total", strconv.Itoa(records.Total)},
				{"Confirmed", strconv.Itoa(records.Confirmed)},
				{"Drafts", strconv.Itoa(records.Drafts)},
			}
			fmt.Fprintln(stdout, renderCounts("Records", rows))
			return nil
		},
	}
	bindJSONFlag(cmd, &asJSON)
	return cmd
}
