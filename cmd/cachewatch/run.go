package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func runCmd(a *app) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one detect, notify and persist cycle",
		Long: `Run one cycle and exit. Meant to be started by cron or a Kubernetes CronJob.

Exit status is 0 when nothing was new or the new failures were notified,
and 1 when any step failed.

Examples:
  # Notify about new failures
  cachewatch run

  # Print the failures that would be notified, without sending or saving
  cachewatch run --dry-run`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			ctx, cancel := context.WithTimeout(ctx, a.cfg.Run.Timeout)
			defer cancel()

			m, _, _, closeStore, err := buildMonitor(ctx, a.cfg, a.logger)
			if err != nil {
				return err
			}
			defer closeStore()

			if !dryRun {
				_, err := m.Run(ctx)
				return err
			}

			report, err := m.DryRun(ctx)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(report.Batch)
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print new failures without notifying or persisting")

	return cmd
}
