// Package registry owns the active-notification table and the bounded
// history ring. All mutators are atomic with respect to concurrent bus
// calls and IPC commands; the registry mutex is the serialization point.
package registry

import (
	"context"
	"sort"
	"sync"
)

// Action is a single notification action as (id, label).
type Action struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// Notification is a live entry in the active table.
type Notification struct {
	ID      uint32
	AppName string
	Icon    string
	AppIcon string
	Summary string
	Body    string
	Urgency string // "low", "normal" or "critical"
	Actions []Action

	// TimeoutCancelled tombstones a pending expiry: the timer task must
	// not act on this entry. The timer is a best-effort cleaner, not a
	// source of truth.
	TimeoutCancelled bool

	// cancelExpiry aborts the expiry task early. Cancellation by flag is
	// canonical; this handle only releases the goroutine.
	cancelExpiry context.CancelFunc
}

// HistoryEntry is an immutable snapshot retained for later review.
type HistoryEntry struct {
	AppName string
	Icon    string
	AppIcon string
	Summary string
	Body    string
	Urgency string
}

// Snapshot converts a live notification into its history form.
func (n *Notification) Snapshot() HistoryEntry {
	return HistoryEntry{
		AppName: n.AppName,
		Icon:    n.Icon,
		AppIcon: n.AppIcon,
		Summary: n.Summary,
		Body:    n.Body,
		Urgency: n.Urgency,
	}
}

// Registry holds the active notifications, the history ring and the id
// counter.
type Registry struct {
	mu     sync.Mutex
	active map[uint32]*Notification
	nextID uint32

	histMu  sync.RWMutex
	history []HistoryEntry
	maxHist int
}

// New creates a Registry with the given history bound.
func New(maxNotifications int) *Registry {
	if maxNotifications < 1 {
		maxNotifications = 1
	}
	return &Registry{
		active:  make(map[uint32]*Notification),
		maxHist: maxNotifications,
	}
}

// NextID returns the next process-lifetime-unique notification id.
// Used when a client passes replaces_id = 0.
func (r *Registry) NextID() uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	return r.nextID
}

// InsertOrReplace inserts notif under id, overwriting any prior entry.
// A replaced entry's expiry task is tombstoned first so a stale timer
// never removes the replacement. cancelExpiry (nil when no expiry is
// scheduled) is attached inside the same critical section as the
// insert, so there is never a window in which the entry is visible
// without its timer handle.
func (r *Registry) InsertOrReplace(id uint32, notif *Notification, cancelExpiry context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, ok := r.active[id]; ok {
		prev.TimeoutCancelled = true
		if prev.cancelExpiry != nil {
			prev.cancelExpiry()
		}
	}
	notif.ID = id
	notif.cancelExpiry = cancelExpiry
	r.active[id] = notif
}

// Remove deletes the entry with the given id and returns it, or nil if
// it was not present. The removed entry's expiry task is released.
func (r *Registry) Remove(id uint32) *Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	notif, ok := r.active[id]
	if !ok {
		return nil
	}
	delete(r.active, id)
	notif.TimeoutCancelled = true
	if notif.cancelExpiry != nil {
		notif.cancelExpiry()
	}
	return notif
}

// Expire removes the entry with the given id only if it is still present
// and its timeout has not been tombstoned. This is the expiry task's
// single critical section: every interleaving with foreground removal
// paths is safe.
func (r *Registry) Expire(id uint32) *Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	notif, ok := r.active[id]
	if !ok || notif.TimeoutCancelled {
		return nil
	}
	delete(r.active, id)
	return notif
}

// Mutate applies f to the entry with the given id under the registry
// lock. Returns false if the id is not present.
func (r *Registry) Mutate(id uint32, f func(*Notification)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	notif, ok := r.active[id]
	if !ok {
		return false
	}
	f(notif)
	return true
}

// Snapshot returns a copy of the active notifications ordered by id, so
// the renderer sees a stable display order. The copy lets callers do
// I/O without holding the lock.
func (r *Registry) Snapshot() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Notification, 0, len(r.active))
	for _, n := range r.active {
		out = append(out, *n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len returns the number of active notifications.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.active)
}

// Get returns a copy of the entry with the given id.
func (r *Registry) Get(id uint32) (Notification, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	notif, ok := r.active[id]
	if !ok {
		return Notification{}, false
	}
	return *notif, true
}

// HistoryAppend appends entry and trims the oldest entries until the
// ring is within its bound.
func (r *Registry) HistoryAppend(entry HistoryEntry) {
	r.histMu.Lock()
	defer r.histMu.Unlock()
	r.history = append(r.history, entry)
	for len(r.history) > r.maxHist {
		r.history = r.history[1:]
	}
}

// HistorySnapshot returns a copy of the history, oldest first.
func (r *Registry) HistorySnapshot() []HistoryEntry {
	r.histMu.RLock()
	defer r.histMu.RUnlock()
	out := make([]HistoryEntry, len(r.history))
	copy(out, r.history)
	return out
}

// SetHistoryBound updates the history bound and trims immediately if the
// new bound is tighter. Used by config hot-reload.
func (r *Registry) SetHistoryBound(maxNotifications int) {
	if maxNotifications < 1 {
		maxNotifications = 1
	}
	r.histMu.Lock()
	defer r.histMu.Unlock()
	r.maxHist = maxNotifications
	for len(r.history) > r.maxHist {
		r.history = r.history[1:]
	}
}
