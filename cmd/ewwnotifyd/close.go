package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/ewwnotifyd/internal/ipc"
)

// closeCmd asks the daemon to close a notification.
var closeCmd = &cobra.Command{
	Use:   "close <id>",
	Short: "Close a notification",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		return ipc.Send(socketPath(), ipc.Message{Kind: ipc.KindCloseNotification, ID: id})
	},
}

func init() {
	rootCmd.AddCommand(closeCmd)
}

// parseID parses a notification id argument.
func parseID(arg string) (uint32, error) {
	id, err := strconv.ParseUint(arg, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid notification id %q: %w", arg, err)
	}
	return uint32(id), nil
}
