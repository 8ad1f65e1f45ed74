package dbus

import (
	"github.com/godbus/dbus/v5"

	"github.com/jmylchreest/ewwnotifyd/internal/registry"
)

// CloseReason represents the reason for closing a notification.
// These values are defined by the freedesktop.org notification
// specification.
type CloseReason uint32

const (
	// CloseReasonExpired indicates the notification expired.
	CloseReasonExpired CloseReason = 1
	// CloseReasonDismissed indicates the user dismissed the notification.
	CloseReasonDismissed CloseReason = 2
	// CloseReasonClosed indicates the notification was closed via a call.
	CloseReasonClosed CloseReason = 3
	// CloseReasonUndefined is reserved by the freedesktop specification.
	CloseReasonUndefined CloseReason = 4
)

// String returns the string representation of the close reason.
func (r CloseReason) String() string {
	switch r {
	case CloseReasonExpired:
		return "expired"
	case CloseReasonDismissed:
		return "dismissed"
	case CloseReasonClosed:
		return "closed"
	case CloseReasonUndefined:
		return "undefined"
	default:
		return "unknown"
	}
}

// Urgency levels as carried in the "urgency" hint.
const (
	UrgencyLow      = 0
	UrgencyNormal   = 1
	UrgencyCritical = 2
)

// Notification carries the raw parameters of an incoming Notify call.
type Notification struct {
	AppName       string
	ReplacesID    uint32
	AppIcon       string
	Summary       string
	Body          string
	Actions       []string // Alternating key, label pairs
	Hints         map[string]dbus.Variant
	ExpireTimeout int32 // -1 = server default, 0 = never expire
}

// ParsedActions reshapes the flat alternating key/label list into pairs.
// A trailing key without a label gets an empty label.
func (n *Notification) ParsedActions() []registry.Action {
	actions := make([]registry.Action, 0, (len(n.Actions)+1)/2)
	for i := 0; i < len(n.Actions); i += 2 {
		a := registry.Action{ID: n.Actions[i]}
		if i+1 < len(n.Actions) {
			a.Text = n.Actions[i+1]
		}
		actions = append(actions, a)
	}
	return actions
}

// Urgency extracts the urgency hint. Returns UrgencyNormal if not
// specified or carried in an unexpected type.
func (n *Notification) Urgency() int {
	if v, ok := n.Hints["urgency"]; ok {
		if b, ok := v.Value().(byte); ok {
			return int(b)
		}
	}
	return UrgencyNormal
}

// UrgencyTag maps the urgency hint to its display tag.
func (n *Notification) UrgencyTag() string {
	switch n.Urgency() {
	case UrgencyLow:
		return "low"
	case UrgencyCritical:
		return "critical"
	default:
		return "normal"
	}
}

// Transient returns true if the transient hint is set. Transient
// notifications are excluded from history.
func (n *Notification) Transient() bool {
	if v, ok := n.Hints["transient"]; ok {
		if b, ok := v.Value().(bool); ok {
			return b
		}
	}
	return false
}

// SoundFile extracts the sound-file hint.
func (n *Notification) SoundFile() string {
	if v, ok := n.Hints["sound-file"]; ok {
		if s, ok := v.Value().(string); ok {
			return s
		}
	}
	return ""
}

// SuppressSound returns true if the suppress-sound hint is set.
func (n *Notification) SuppressSound() bool {
	if v, ok := n.Hints["suppress-sound"]; ok {
		if b, ok := v.Value().(bool); ok {
			return b
		}
	}
	return false
}

// ImageData returns the raw pixmap structure from the image-data hint
// (or its image_data spelling), with the hint-priority spelling checked
// first. The structure fields are width, height, rowstride, has_alpha,
// bits_per_sample, channels, data.
func (n *Notification) ImageData() ([]any, bool) {
	for _, key := range []string{"image-data", "image_data"} {
		if v, ok := n.Hints[key]; ok {
			if fields, ok := v.Value().([]any); ok && len(fields) == 7 {
				return fields, true
			}
		}
	}
	return nil, false
}

// ServerCapabilities lists the capabilities advertised by the daemon.
var ServerCapabilities = []string{
	"body",
	"actions",
}

// ServerInfo contains information about the notification server.
type ServerInfo struct {
	Name        string
	Vendor      string
	Version     string
	SpecVersion string
}

// DefaultServerInfo returns the default server information.
func DefaultServerInfo() ServerInfo {
	return ServerInfo{
		Name:        "ewwnotifyd",
		Vendor:      "jmylchreest",
		Version:     "0.0.1", // Replaced by the build-time version
		SpecVersion: "1.2",
	}
}
