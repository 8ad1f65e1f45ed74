package daemon

import (
	"fmt"
	"sync"
	"testing"
	"time"

	godbus "github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/ewwnotifyd/internal/config"
	"github.com/jmylchreest/ewwnotifyd/internal/dbus"
	"github.com/jmylchreest/ewwnotifyd/internal/registry"
)

// fakeRenderer records driver calls and the last active set it saw.
type fakeRenderer struct {
	mu         sync.Mutex
	events     []string
	lastActive []registry.Notification
}

func (f *fakeRenderer) record(event string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
}

func (f *fakeRenderer) UpdateNotifications(active []registry.Notification) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastActive = active
	if len(active) == 0 {
		f.events = append(f.events, "close-windows")
	} else {
		f.events = append(f.events, fmt.Sprintf("update-active %d", len(active)))
	}
}

func (f *fakeRenderer) UpdateHistory(history []registry.HistoryEntry) { f.record("update-history") }
func (f *fakeRenderer) OpenHistory(history []registry.HistoryEntry)  { f.record("open-history") }
func (f *fakeRenderer) CloseHistory()                                { f.record("close-history") }
func (f *fakeRenderer) ToggleHistory(history []registry.HistoryEntry) {
	f.record("toggle-history")
}
func (f *fakeRenderer) OpenReply(id uint32) { f.record(fmt.Sprintf("open-reply %d", id)) }
func (f *fakeRenderer) CloseReply()         { f.record("close-reply") }

func (f *fakeRenderer) count(event string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, e := range f.events {
		if e == event {
			n++
		}
	}
	return n
}

func (f *fakeRenderer) active() []registry.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastActive
}

type closedSignal struct {
	id     uint32
	reason dbus.CloseReason
}

// fakeSignals records emitted bus signals.
type fakeSignals struct {
	mu      sync.Mutex
	actions []string
	closed  []closedSignal
	replied []string
}

func (f *fakeSignals) ActionInvoked(id uint32, actionKey string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.actions = append(f.actions, fmt.Sprintf("%d/%s", id, actionKey))
	return nil
}

func (f *fakeSignals) NotificationClosed(id uint32, reason dbus.CloseReason) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = append(f.closed, closedSignal{id, reason})
	return nil
}

func (f *fakeSignals) NotificationReplied(id uint32, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replied = append(f.replied, fmt.Sprintf("%d/%s", id, message))
	return nil
}

func (f *fakeSignals) closedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.closed)
}

func (f *fakeSignals) closedFor(id uint32) []closedSignal {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []closedSignal
	for _, c := range f.closed {
		if c.id == id {
			out = append(out, c)
		}
	}
	return out
}

// fakeIcons resolves nothing, so notifications keep their literal icon
// strings.
type fakeIcons struct{}

func (fakeIcons) Resolve(name string) (string, bool)              { return "", false }
func (fakeIcons) Persist(fields []any, id uint32) (string, bool) { return "", false }

func newTestDaemon(t *testing.T, cfg *config.Config) (*Daemon, *fakeRenderer, *fakeSignals) {
	t.Helper()
	if cfg == nil {
		cfg = config.Default()
	}
	renderer := &fakeRenderer{}
	signals := &fakeSignals{}
	d := New(cfg, registry.New(cfg.MaxNotifications), renderer, fakeIcons{}, nil, nil)
	d.SetSignals(signals)
	return d, renderer, signals
}

func notification(app, summary string, expireTimeout int32) *dbus.Notification {
	return &dbus.Notification{
		AppName:       app,
		AppIcon:       app + ".png",
		Summary:       summary,
		Body:          "body of " + summary,
		ExpireTimeout: expireTimeout,
	}
}

func withHint(n *dbus.Notification, key string, value any) *dbus.Notification {
	if n.Hints == nil {
		n.Hints = make(map[string]godbus.Variant)
	}
	n.Hints[key] = godbus.MakeVariant(value)
	return n
}

func TestNotify_AssignsUniqueIDs(t *testing.T) {
	d, _, _ := newTestDaemon(t, nil)

	seen := make(map[uint32]bool)
	for i := 0; i < 50; i++ {
		id, err := d.Notify(notification("app", fmt.Sprintf("n%d", i), 0))
		require.NoError(t, err)
		assert.False(t, seen[id], "id %d returned twice", id)
		seen[id] = true
	}
	assert.Equal(t, 50, d.reg.Len())
}

func TestNotify_Replaces(t *testing.T) {
	d, renderer, _ := newTestDaemon(t, nil)

	id, err := d.Notify(notification("app", "old", 0))
	require.NoError(t, err)

	n2 := notification("app", "new", 0)
	n2.ReplacesID = id
	id2, err := d.Notify(n2)
	require.NoError(t, err)
	assert.Equal(t, id, id2)

	// The prior entry is gone; the replacement is in.
	assert.Equal(t, 1, d.reg.Len())
	got, ok := d.reg.Get(id)
	require.True(t, ok)
	assert.Equal(t, "new", got.Summary)

	// Both arrivals landed in history.
	assert.Len(t, d.reg.HistorySnapshot(), 2)

	// The renderer's last-seen state matches the active set.
	active := renderer.active()
	require.Len(t, active, 1)
	assert.Equal(t, "new", active[0].Summary)
}

func TestNotify_UnallocatedReplacesIDHonored(t *testing.T) {
	d, _, _ := newTestDaemon(t, nil)

	n := notification("app", "s", 0)
	n.ReplacesID = 1000
	id, err := d.Notify(n)
	require.NoError(t, err)
	assert.Equal(t, uint32(1000), id)

	// next_id was not consumed by the reuse.
	id2, err := d.Notify(notification("app", "s2", 0))
	require.NoError(t, err)
	assert.Equal(t, uint32(1), id2)
}

func TestNotify_TransientExcludedFromHistory(t *testing.T) {
	d, _, _ := newTestDaemon(t, nil)

	id, err := d.Notify(withHint(notification("app", "secret", 0), "transient", true))
	require.NoError(t, err)

	_, ok := d.reg.Get(id)
	assert.True(t, ok, "transient notification must still be active")
	assert.Empty(t, d.reg.HistorySnapshot())
}

func TestNotify_HistoryBound(t *testing.T) {
	cfg := config.Default()
	cfg.MaxNotifications = 2
	d, _, _ := newTestDaemon(t, cfg)

	for _, s := range []string{"A", "B", "C"} {
		_, err := d.Notify(notification("app", s, 0))
		require.NoError(t, err)
	}

	hist := d.reg.HistorySnapshot()
	require.Len(t, hist, 2)
	assert.Equal(t, "B", hist[0].Summary)
	assert.Equal(t, "C", hist[1].Summary)
}

func TestNotify_UpdateHistoryPush(t *testing.T) {
	t.Run("enabled", func(t *testing.T) {
		cfg := config.Default()
		cfg.UpdateHistory = true
		d, renderer, _ := newTestDaemon(t, cfg)

		_, err := d.Notify(notification("app", "s", 0))
		require.NoError(t, err)
		assert.Equal(t, 1, renderer.count("update-history"))
	})

	t.Run("disabled", func(t *testing.T) {
		cfg := config.Default()
		cfg.UpdateHistory = false
		d, renderer, _ := newTestDaemon(t, cfg)

		_, err := d.Notify(notification("app", "s", 0))
		require.NoError(t, err)
		assert.Equal(t, 0, renderer.count("update-history"))
	})
}

func TestNotify_IconFallsBackToLiteral(t *testing.T) {
	d, renderer, _ := newTestDaemon(t, nil)

	_, err := d.Notify(notification("app", "s", 0))
	require.NoError(t, err)

	active := renderer.active()
	require.Len(t, active, 1)
	assert.Equal(t, "app.png", active[0].Icon)
}

func TestNotify_Expiry(t *testing.T) {
	d, renderer, signals := newTestDaemon(t, nil)

	id, err := d.Notify(notification("app", "fleeting", 50))
	require.NoError(t, err)

	// Still present well before the deadline.
	_, ok := d.reg.Get(id)
	require.True(t, ok)

	require.Eventually(t, func() bool {
		return d.reg.Len() == 0
	}, time.Second, 5*time.Millisecond, "notification should expire")

	require.Eventually(t, func() bool {
		return signals.closedCount() == 1
	}, time.Second, 5*time.Millisecond)
	closed := signals.closedFor(id)
	require.Len(t, closed, 1)
	assert.Equal(t, dbus.CloseReasonClosed, closed[0].reason)

	// Exactly one close-window refresh once active went empty.
	assert.Equal(t, 1, renderer.count("close-windows"))
}

func TestNotify_ZeroTimeoutNeverExpires(t *testing.T) {
	cfg := config.Default()
	cfg.Timeout.Normal = 0
	d, _, signals := newTestDaemon(t, cfg)

	id, err := d.Notify(notification("app", "sticky", -1))
	require.NoError(t, err)

	time.Sleep(80 * time.Millisecond)
	_, ok := d.reg.Get(id)
	assert.True(t, ok)
	assert.Zero(t, signals.closedCount())
}

func TestDisableTimeout_TombstoneBlocksExpiry(t *testing.T) {
	d, _, signals := newTestDaemon(t, nil)

	id, err := d.Notify(notification("app", "pinned", 50))
	require.NoError(t, err)

	d.DisableTimeout(id)

	time.Sleep(150 * time.Millisecond)
	_, ok := d.reg.Get(id)
	assert.True(t, ok, "tombstoned entry must outlive its timer")
	assert.Zero(t, signals.closedCount())
}

func TestCloseNotification(t *testing.T) {
	d, renderer, signals := newTestDaemon(t, nil)

	id, err := d.Notify(notification("app", "s", 0))
	require.NoError(t, err)

	require.NoError(t, d.CloseNotification(id))
	assert.Equal(t, 0, d.reg.Len())
	require.Len(t, signals.closedFor(id), 1)
	assert.Equal(t, dbus.CloseReasonClosed, signals.closedFor(id)[0].reason)
	assert.Equal(t, 1, renderer.count("close-windows"))

	// Closing again emits nothing.
	require.NoError(t, d.CloseNotification(id))
	assert.Equal(t, 1, signals.closedCount())
	assert.Equal(t, 1, renderer.count("close-windows"))
}

func TestCloseRace_OneSignalOneClose(t *testing.T) {
	d, renderer, signals := newTestDaemon(t, nil)

	id, err := d.Notify(notification("app", "racy", 100))
	require.NoError(t, err)

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, d.CloseNotification(id))

	// Let the timer fire into the void.
	time.Sleep(150 * time.Millisecond)

	assert.Equal(t, 1, signals.closedCount())
	assert.Equal(t, 1, renderer.count("close-windows"))
	assert.Equal(t, 0, d.reg.Len())
}

func TestActionInvoked_AutoClose(t *testing.T) {
	d, renderer, signals := newTestDaemon(t, nil)

	n := notification("app", "s", 0)
	n.Actions = []string{"default", "Open"}
	id, err := d.Notify(n)
	require.NoError(t, err)

	require.NoError(t, d.ActionInvoked(id, "default"))

	assert.Equal(t, []string{fmt.Sprintf("%d/default", id)}, signals.actions)
	require.Len(t, signals.closedFor(id), 1)
	assert.Equal(t, 0, d.reg.Len())
	assert.Equal(t, 1, renderer.count("close-windows"))
}

func TestActionInvoked_MissingIDIsNoOp(t *testing.T) {
	d, _, signals := newTestDaemon(t, nil)

	require.NoError(t, d.ActionInvoked(99, "default"))
	assert.Empty(t, signals.actions)
	assert.Zero(t, signals.closedCount())
}

func TestInlineReplyFlow(t *testing.T) {
	d, renderer, signals := newTestDaemon(t, nil)

	n := notification("chat", "ping", 50)
	n.Actions = []string{"inline-reply", "Reply"}
	id, err := d.Notify(n)
	require.NoError(t, err)

	require.NoError(t, d.ActionInvoked(id, "inline-reply"))

	// Reply surface opened, timer tombstoned, nothing closed yet.
	assert.Equal(t, 1, renderer.count(fmt.Sprintf("open-reply %d", id)))
	got, ok := d.reg.Get(id)
	require.True(t, ok)
	assert.True(t, got.TimeoutCancelled)
	assert.Zero(t, signals.closedCount())

	// The tombstone holds even past the original deadline.
	time.Sleep(120 * time.Millisecond)
	_, ok = d.reg.Get(id)
	require.True(t, ok)

	require.NoError(t, d.ReplySend(id, "hi"))

	assert.Equal(t, []string{fmt.Sprintf("%d/hi", id)}, signals.replied)
	require.Len(t, signals.closedFor(id), 1)
	assert.Equal(t, dbus.CloseReasonClosed, signals.closedFor(id)[0].reason)
	assert.Equal(t, 0, d.reg.Len())
	assert.Equal(t, 1, renderer.count("close-reply"))
	assert.Equal(t, 1, renderer.count("close-windows"))
}

func TestReplyClose_KeepsNotification(t *testing.T) {
	d, renderer, signals := newTestDaemon(t, nil)

	n := notification("chat", "ping", 0)
	n.Actions = []string{"inline-reply", "Reply"}
	id, err := d.Notify(n)
	require.NoError(t, err)

	require.NoError(t, d.ReplyClose(id))

	got, ok := d.reg.Get(id)
	require.True(t, ok)
	assert.Empty(t, got.Actions)
	assert.Zero(t, signals.closedCount())
	assert.Equal(t, 1, renderer.count("close-reply"))
}

func TestHistorySurfaceOps(t *testing.T) {
	d, renderer, _ := newTestDaemon(t, nil)

	require.NoError(t, d.OpenHistory())
	require.NoError(t, d.CloseHistory())
	require.NoError(t, d.ToggleHistory())

	assert.Equal(t, 1, renderer.count("open-history"))
	assert.Equal(t, 1, renderer.count("close-history"))
	assert.Equal(t, 1, renderer.count("toggle-history"))
}

func TestApplyConfig_TightensHistoryBound(t *testing.T) {
	d, _, _ := newTestDaemon(t, nil)

	for i := 0; i < 5; i++ {
		_, err := d.Notify(notification("app", fmt.Sprintf("n%d", i), 0))
		require.NoError(t, err)
	}

	cfg := config.Default()
	cfg.MaxNotifications = 2
	d.ApplyConfig(cfg)

	assert.Len(t, d.reg.HistorySnapshot(), 2)
}
