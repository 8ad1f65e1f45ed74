package ipc

import (
	"encoding/json"
	"fmt"
	"net"
)

// Send connects to the control socket, writes one framed message and
// disconnects. Used by the CLI subcommands.
func Send(path string, msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}

	conn, err := net.Dial("unix", path)
	if err != nil {
		return fmt.Errorf("failed to connect to the daemon at %s: %w", path, err)
	}
	defer conn.Close()

	if _, err := conn.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}
