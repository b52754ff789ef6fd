package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yairfalse/shelfwatch/config"
	"github.com/yairfalse/shelfwatch/internal/daemon"
	"github.com/yairfalse/shelfwatch/telemetry"
)

// daemonCmd represents the daemon command
var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the continuous monitoring daemon",
	Long: `Run Shelfwatch in daemon mode: a periodic check loop over all
configured targets, the admin HTTP API, and a Prometheus metrics endpoint.

Features:
- Periodic checks with a bounded worker pool
- Per-target single-flight locking (no overlapping checks)
- Consecutive-observation confirmation before any notification
- Admin API: status, manual trigger, start/stop, target CRUD, history
- Graceful shutdown on SIGTERM/SIGINT`,
	Example: `  shelfwatch daemon                        # Run with ./shelfwatch.yaml
  shelfwatch daemon --config /etc/shelfwatch.yaml`,
	RunE: runDaemon,
}

func init() {
	rootCmd.AddCommand(daemonCmd)
}

func runDaemon(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := telemetry.NewLogger("shelfwatch")
	logger.Info().
		Str("config", cfgPath).
		Dur("interval", cfg.Monitor.Interval).
		Int("targets", len(cfg.Targets)).
		Msg("starting daemon")

	return daemon.Run(context.Background(), cfg, logger)
}
