package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/ewwnotifyd/internal/config"
	"github.com/jmylchreest/ewwnotifyd/internal/daemon"
)

// daemonCmd starts the notification daemon.
var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the notification daemon",
	Long: `Run the notification daemon.

The daemon claims org.freedesktop.Notifications on the session bus,
listens for control commands on its socket, and drives eww windows for
popups, history and inline replies. It runs until the session ends.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(globalOpts.configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		return daemon.Run(ctx, cfg, globalOpts.configPath, version, logger)
	},
}

func init() {
	rootCmd.AddCommand(daemonCmd)
}
