package main

import (
	"github.com/spf13/cobra"

	"github.com/jmylchreest/ewwnotifyd/internal/ipc"
)

// historyCmd groups the history surface commands.
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Control the history window",
}

var historyOpenCmd = &cobra.Command{
	Use:   "open",
	Short: "Open the history window",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return ipc.Send(socketPath(), ipc.Message{Kind: ipc.KindOpenHistory})
	},
}

var historyCloseCmd = &cobra.Command{
	Use:   "close",
	Short: "Close the history window",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return ipc.Send(socketPath(), ipc.Message{Kind: ipc.KindCloseHistory})
	},
}

var historyToggleCmd = &cobra.Command{
	Use:   "toggle",
	Short: "Toggle the history window",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return ipc.Send(socketPath(), ipc.Message{Kind: ipc.KindToggleHistory})
	},
}

func init() {
	historyCmd.AddCommand(historyOpenCmd)
	historyCmd.AddCommand(historyCloseCmd)
	historyCmd.AddCommand(historyToggleCmd)
	rootCmd.AddCommand(historyCmd)
}
