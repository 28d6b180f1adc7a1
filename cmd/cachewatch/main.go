// cachewatch watches the study_cache_failure table and emails each new
// failure row exactly once.
//
// Usage:
//
//	cachewatch run             # one detect, notify, persist cycle (for cron)
//	cachewatch run --dry-run   # show what would be notified
//	cachewatch serve           # run every CACHEWATCH_INTERVAL with a status API
//	cachewatch state --list    # inspect the stored fingerprints
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/kiranshivaraju/cachewatch/internal/config"
	"github.com/kiranshivaraju/cachewatch/internal/logging"
	"github.com/kiranshivaraju/cachewatch/internal/monitor"
	"github.com/spf13/cobra"
)

var version = "dev"

// app carries what PersistentPreRunE loads to the subcommands.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		if step := monitor.FailedStep(err); step != "" {
			slog.Error("cachewatch failed", "step", step, "error", err)
		} else {
			slog.Error("cachewatch failed", "error", err)
		}
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "cachewatch",
		Short: "Notify once about each new study cache failure",
		Long: `cachewatch reads the study cache failure table, compares each row's
fingerprint with the fingerprints it has already notified about, and sends
one message listing the new rows. Fingerprints are persisted only after the
message was accepted, so a failed delivery is retried on the next run.

Configuration comes from the environment and an optional .env file.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			a.cfg = cfg
			a.logger = logging.Init(os.Stdout, cfg.Log.Level)
			a.logger.Debug("config loaded",
				"table", cfg.Database.Table,
				"notifier", cfg.Notifier.Kind,
				"state_backend", cfg.State.Backend)
			return nil
		},
	}

	rootCmd.AddCommand(runCmd(a))
	rootCmd.AddCommand(serveCmd(a))
	rootCmd.AddCommand(stateCmd(a))

	return rootCmd
}
