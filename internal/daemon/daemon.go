// Package daemon provides the notification lifecycle engine and the
// main orchestration for ewwnotifyd. Bus calls and IPC commands both
// land here; the registry mutex is the serialization point between the
// two transports.
package daemon

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jmylchreest/ewwnotifyd/internal/config"
	"github.com/jmylchreest/ewwnotifyd/internal/dbus"
	"github.com/jmylchreest/ewwnotifyd/internal/registry"
)

// inlineReplyAction is the action key the renderer sends to open the
// inline-reply surface instead of dismissing the notification.
const inlineReplyAction = "inline-reply"

// Renderer drives the widget toolkit. Implemented by eww.Driver; faked
// in tests.
type Renderer interface {
	UpdateNotifications(active []registry.Notification)
	UpdateHistory(history []registry.HistoryEntry)
	OpenHistory(history []registry.HistoryEntry)
	CloseHistory()
	ToggleHistory(history []registry.HistoryEntry)
	OpenReply(id uint32)
	CloseReply()
}

// Signals emits the bus signals. Implemented by dbus.Server.
type Signals interface {
	ActionInvoked(id uint32, actionKey string) error
	NotificationClosed(id uint32, reason dbus.CloseReason) error
	NotificationReplied(id uint32, message string) error
}

// Icons resolves icon names and persists pixmaps.
type Icons interface {
	Resolve(name string) (string, bool)
	Persist(fields []any, id uint32) (string, bool)
}

// Sounds plays notification sounds. May be nil when audio is disabled.
type Sounds interface {
	PlayFile(path string)
	PlayForUrgency(urgency int)
}

// Daemon is the notification lifecycle engine. It implements both
// dbus.Service and ipc.Handler so every transport drives the same
// state machine.
type Daemon struct {
	cfgMu sync.RWMutex
	cfg   *config.Config

	reg      *registry.Registry
	renderer Renderer
	icons    Icons
	sounds   Sounds
	logger   *slog.Logger

	sigMu   sync.RWMutex
	signals Signals

	ctx context.Context
}

// New creates a Daemon. Signals are attached afterwards via SetSignals
// because the bus server needs the daemon at construction time.
func New(cfg *config.Config, reg *registry.Registry, renderer Renderer, icons Icons, sounds Sounds, logger *slog.Logger) *Daemon {
	if logger == nil {
		logger = slog.Default()
	}
	return &Daemon{
		cfg:      cfg,
		reg:      reg,
		renderer: renderer,
		icons:    icons,
		sounds:   sounds,
		logger:   logger,
		ctx:      context.Background(),
	}
}

// SetSignals attaches the signal emitter.
func (d *Daemon) SetSignals(signals Signals) {
	d.sigMu.Lock()
	defer d.sigMu.Unlock()
	d.signals = signals
}

// SetContext sets the context that bounds the expiry tasks.
func (d *Daemon) SetContext(ctx context.Context) {
	d.ctx = ctx
}

func (d *Daemon) config() *config.Config {
	d.cfgMu.RLock()
	defer d.cfgMu.RUnlock()
	return d.cfg
}

// ApplyConfig swaps in a hot-reloaded configuration.
func (d *Daemon) ApplyConfig(cfg *config.Config) {
	d.cfgMu.Lock()
	d.cfg = cfg
	d.cfgMu.Unlock()
	d.reg.SetHistoryBound(cfg.MaxNotifications)
}

func (d *Daemon) emitActionInvoked(id uint32, key string) {
	d.sigMu.RLock()
	signals := d.signals
	d.sigMu.RUnlock()
	if signals == nil {
		return
	}
	if err := signals.ActionInvoked(id, key); err != nil {
		d.logger.Warn("failed to emit ActionInvoked", "id", id, "error", err)
	}
}

func (d *Daemon) emitNotificationClosed(id uint32, reason dbus.CloseReason) {
	d.sigMu.RLock()
	signals := d.signals
	d.sigMu.RUnlock()
	if signals == nil {
		return
	}
	if err := signals.NotificationClosed(id, reason); err != nil {
		d.logger.Warn("failed to emit NotificationClosed", "id", id, "error", err)
	}
}

func (d *Daemon) emitNotificationReplied(id uint32, message string) {
	d.sigMu.RLock()
	signals := d.signals
	d.sigMu.RUnlock()
	if signals == nil {
		return
	}
	if err := signals.NotificationReplied(id, message); err != nil {
		d.logger.Warn("failed to emit NotificationReplied", "id", id, "error", err)
	}
}

// Notify processes an incoming notification: id assignment, icon
// resolution, history retention, expiry scheduling and the renderer
// refresh. It always returns an id.
func (d *Daemon) Notify(n *dbus.Notification) (uint32, error) {
	cfg := d.config()

	// replaces_id is honored verbatim, even for ids this daemon never
	// allocated; next_id is untouched in that case.
	id := n.ReplacesID
	if id == 0 {
		id = d.reg.NextID()
	}

	icon := d.resolveIcon(n, id)
	appIcon, _ := d.icons.Resolve(n.AppName)

	urgency := n.Urgency()
	timeout := cfg.EffectiveTimeout(n.ExpireTimeout, urgency)

	notif := &registry.Notification{
		ID:      id,
		AppName: n.AppName,
		Icon:    icon,
		AppIcon: appIcon,
		Summary: n.Summary,
		Body:    n.Body,
		Urgency: n.UrgencyTag(),
		Actions: n.ParsedActions(),
	}

	if !n.Transient() {
		d.reg.HistoryAppend(notif.Snapshot())
		if cfg.UpdateHistory {
			d.renderer.UpdateHistory(d.reg.HistorySnapshot())
		}
	}

	// The expiry cancel func is created up front and handed to the
	// insert, so the entry and its timer handle become visible in one
	// critical section. A concurrent replacement for the same id then
	// always finds the handle it must cancel.
	var expiryCtx context.Context
	var cancelExpiry context.CancelFunc
	if timeout > 0 {
		expiryCtx, cancelExpiry = context.WithCancel(d.ctx)
	}

	d.reg.InsertOrReplace(id, notif, cancelExpiry)
	if timeout > 0 {
		d.startExpiry(expiryCtx, cancelExpiry, id, time.Duration(timeout)*time.Millisecond)
	}

	d.renderer.UpdateNotifications(d.reg.Snapshot())
	d.playSound(n, urgency)

	d.logger.Debug("notification created",
		"id", id, "app", n.AppName, "urgency", notif.Urgency, "timeout_ms", timeout)
	return id, nil
}

// resolveIcon picks the notification icon: a persisted image-data
// pixmap wins, then a resolved app_icon name, then the literal app_icon
// string.
func (d *Daemon) resolveIcon(n *dbus.Notification, id uint32) string {
	if fields, ok := n.ImageData(); ok {
		if path, ok := d.icons.Persist(fields, id); ok {
			return path
		}
	}
	if path, ok := d.icons.Resolve(n.AppIcon); ok {
		return path
	}
	return n.AppIcon
}

func (d *Daemon) playSound(n *dbus.Notification, urgency int) {
	if d.sounds == nil || n.SuppressSound() {
		return
	}
	// Decoding may block; keep it off the notify path.
	go func() {
		if file := n.SoundFile(); file != "" {
			d.sounds.PlayFile(file)
			return
		}
		d.sounds.PlayForUrgency(urgency)
	}()
}

// startExpiry spawns the detached timer task for id. The tombstone
// flag is the canonical cancellation; the context handle only releases
// the goroutine early.
func (d *Daemon) startExpiry(ctx context.Context, cancel context.CancelFunc, id uint32, after time.Duration) {
	go func() {
		defer cancel()
		select {
		case <-ctx.Done():
			return
		case <-time.After(after):
		}
		if d.reg.Expire(id) == nil {
			return
		}
		d.renderer.UpdateNotifications(d.reg.Snapshot())
		d.emitNotificationClosed(id, dbus.CloseReasonClosed)
		d.logger.Debug("notification expired", "id", id)
	}()
}

// CloseNotification removes the notification if present, refreshes the
// renderer and emits NotificationClosed. Serves both the bus method and
// the IPC command.
func (d *Daemon) CloseNotification(id uint32) error {
	if d.reg.Remove(id) == nil {
		return nil
	}
	d.renderer.UpdateNotifications(d.reg.Snapshot())
	d.emitNotificationClosed(id, dbus.CloseReasonClosed)
	d.logger.Debug("notification closed", "id", id)
	return nil
}

// OpenHistory refreshes the history payload and opens the window.
func (d *Daemon) OpenHistory() error {
	d.renderer.OpenHistory(d.reg.HistorySnapshot())
	return nil
}

// CloseHistory closes the history window.
func (d *Daemon) CloseHistory() error {
	d.renderer.CloseHistory()
	return nil
}

// ToggleHistory refreshes the history payload and toggles the window.
func (d *Daemon) ToggleHistory() error {
	d.renderer.ToggleHistory(d.reg.HistorySnapshot())
	return nil
}

// ActionInvoked handles an action from the renderer. The inline-reply
// action opens the reply surface and tombstones the entry's timer so a
// mid-reply expiry never vanishes the UI state; any other action is
// signalled to the sender and auto-closes the notification.
func (d *Daemon) ActionInvoked(id uint32, action string) error {
	if action == inlineReplyAction {
		d.reg.Mutate(id, func(n *registry.Notification) {
			n.TimeoutCancelled = true
		})
		d.renderer.OpenReply(id)
		return nil
	}

	// Removing first keeps NotificationClosed at-most-once under races
	// with close and expiry.
	if d.reg.Remove(id) == nil {
		return nil
	}
	d.emitActionInvoked(id, action)
	d.emitNotificationClosed(id, dbus.CloseReasonClosed)
	d.renderer.UpdateNotifications(d.reg.Snapshot())
	return nil
}

// ReplySend forwards an inline reply to the sender, then tears the
// notification down: actions cleared, reply window closed, entry
// closed as in CloseNotification.
func (d *Daemon) ReplySend(id uint32, text string) error {
	d.emitNotificationReplied(id, text)
	d.reg.Mutate(id, func(n *registry.Notification) {
		n.Actions = nil
	})
	d.renderer.CloseReply()
	return d.CloseNotification(id)
}

// ReplyClose dismisses the reply surface without closing the
// notification: actions cleared, renderer refreshed, reply window
// closed.
func (d *Daemon) ReplyClose(id uint32) error {
	if d.reg.Mutate(id, func(n *registry.Notification) {
		n.Actions = nil
	}) {
		d.renderer.UpdateNotifications(d.reg.Snapshot())
	}
	d.renderer.CloseReply()
	return nil
}

// DisableTimeout tombstones the entry's expiry task.
func (d *Daemon) DisableTimeout(id uint32) {
	d.reg.Mutate(id, func(n *registry.Notification) {
		n.TimeoutCancelled = true
	})
}
