package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/ewwnotifyd/internal/ipc"
)

// replyCmd groups the inline-reply commands.
var replyCmd = &cobra.Command{
	Use:   "reply",
	Short: "Control the inline-reply surface",
}

var replySendCmd = &cobra.Command{
	Use:   "send <id> <text>",
	Short: "Send an inline reply and close the notification",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		return ipc.Send(socketPath(), ipc.Message{
			Kind: ipc.KindReplySend,
			ID:   id,
			Text: strings.Join(args[1:], " "),
		})
	},
}

var replyCloseCmd = &cobra.Command{
	Use:   "close <id>",
	Short: "Dismiss the reply surface without closing the notification",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		return ipc.Send(socketPath(), ipc.Message{Kind: ipc.KindReplyClose, ID: id})
	},
}

func init() {
	replyCmd.AddCommand(replySendCmd)
	replyCmd.AddCommand(replyCloseCmd)
	rootCmd.AddCommand(replyCmd)
}
