package main

import (
	"github.com/spf13/cobra"

	"github.com/jmylchreest/ewwnotifyd/internal/ipc"
)

// actionCmd invokes a notification action. The special action name
// "inline-reply" opens the reply surface instead of dismissing.
var actionCmd = &cobra.Command{
	Use:   "action <id> <name>",
	Short: "Invoke a notification action",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		return ipc.Send(socketPath(), ipc.Message{
			Kind: ipc.KindActionInvoked,
			ID:   id,
			Text: args[1],
		})
	},
}

func init() {
	rootCmd.AddCommand(actionCmd)
}
