// Package ipc implements the control socket: newline-delimited JSON
// frames carrying renderer-originated commands.
package ipc

import (
	"encoding/json"
	"fmt"
)

// Kind names a control-channel command variant.
type Kind string

// Control-channel command variants.
const (
	KindCloseNotification Kind = "CloseNotification"
	KindOpenHistory       Kind = "OpenHistory"
	KindCloseHistory      Kind = "CloseHistory"
	KindToggleHistory     Kind = "ToggleHistory"
	KindActionInvoked     Kind = "ActionInvoked"
	KindReplySend         Kind = "ReplySend"
	KindReplyClose        Kind = "ReplyClose"
)

// Message is one control command. The wire form is an externally tagged
// variant: unit variants are bare strings ("OpenHistory"), id-only
// variants are {"CloseNotification":42}, and id+text variants are
// {"ActionInvoked":[42,"default"]}.
type Message struct {
	Kind Kind
	ID   uint32
	Text string
}

// hasID reports whether the variant carries a notification id.
func (k Kind) hasID() bool {
	switch k {
	case KindCloseNotification, KindActionInvoked, KindReplySend, KindReplyClose:
		return true
	}
	return false
}

// hasText reports whether the variant carries a string payload.
func (k Kind) hasText() bool {
	return k == KindActionInvoked || k == KindReplySend
}

func validKind(k Kind) bool {
	switch k {
	case KindCloseNotification, KindOpenHistory, KindCloseHistory,
		KindToggleHistory, KindActionInvoked, KindReplySend, KindReplyClose:
		return true
	}
	return false
}

// MarshalJSON implements the tagged-variant wire format.
func (m Message) MarshalJSON() ([]byte, error) {
	if !validKind(m.Kind) {
		return nil, fmt.Errorf("unknown message kind %q", m.Kind)
	}
	switch {
	case m.Kind.hasText():
		return json.Marshal(map[string][2]any{string(m.Kind): {m.ID, m.Text}})
	case m.Kind.hasID():
		return json.Marshal(map[string]uint32{string(m.Kind): m.ID})
	default:
		return json.Marshal(string(m.Kind))
	}
}

// UnmarshalJSON parses the tagged-variant wire format.
func (m *Message) UnmarshalJSON(data []byte) error {
	// Unit variants arrive as a bare string.
	var unit string
	if err := json.Unmarshal(data, &unit); err == nil {
		k := Kind(unit)
		if !validKind(k) || k.hasID() {
			return fmt.Errorf("unknown command %q", unit)
		}
		*m = Message{Kind: k}
		return nil
	}

	var tagged map[string]json.RawMessage
	if err := json.Unmarshal(data, &tagged); err != nil {
		return fmt.Errorf("malformed command frame: %w", err)
	}
	if len(tagged) != 1 {
		return fmt.Errorf("expected exactly one command tag, got %d", len(tagged))
	}

	for tag, raw := range tagged {
		k := Kind(tag)
		if !validKind(k) || !k.hasID() {
			return fmt.Errorf("unknown command %q", tag)
		}
		if k.hasText() {
			var fields [2]json.RawMessage
			if err := json.Unmarshal(raw, &fields); err != nil {
				return fmt.Errorf("malformed %s payload: %w", tag, err)
			}
			var id uint32
			var text string
			if err := json.Unmarshal(fields[0], &id); err != nil {
				return fmt.Errorf("malformed %s id: %w", tag, err)
			}
			if err := json.Unmarshal(fields[1], &text); err != nil {
				return fmt.Errorf("malformed %s text: %w", tag, err)
			}
			*m = Message{Kind: k, ID: id, Text: text}
			return nil
		}
		var id uint32
		if err := json.Unmarshal(raw, &id); err != nil {
			return fmt.Errorf("malformed %s id: %w", tag, err)
		}
		*m = Message{Kind: k, ID: id}
		return nil
	}
	return fmt.Errorf("empty command frame")
}
