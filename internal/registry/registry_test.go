package registry

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_NextIDUnique(t *testing.T) {
	r := New(10)

	seen := make(map[uint32]bool)
	for i := 0; i < 1000; i++ {
		id := r.NextID()
		assert.False(t, seen[id], "id %d issued twice", id)
		seen[id] = true
	}
}

func TestRegistry_NextIDUniqueConcurrent(t *testing.T) {
	r := New(10)

	const workers = 8
	const perWorker = 250

	var mu sync.Mutex
	seen := make(map[uint32]bool)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				id := r.NextID()
				mu.Lock()
				seen[id] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, workers*perWorker)
}

func TestRegistry_InsertAndRemove(t *testing.T) {
	r := New(10)

	r.InsertOrReplace(1, &Notification{Summary: "hello"}, nil)
	assert.Equal(t, 1, r.Len())

	got, ok := r.Get(1)
	require.True(t, ok)
	assert.Equal(t, "hello", got.Summary)

	removed := r.Remove(1)
	require.NotNil(t, removed)
	assert.Equal(t, "hello", removed.Summary)
	assert.Equal(t, 0, r.Len())

	// Removing again is a no-op.
	assert.Nil(t, r.Remove(1))
}

func TestRegistry_ReplaceTombstonesPrior(t *testing.T) {
	r := New(10)

	prior := &Notification{Summary: "old"}
	r.InsertOrReplace(42, prior, nil)
	r.InsertOrReplace(42, &Notification{Summary: "new"}, nil)

	assert.Equal(t, 1, r.Len())
	got, ok := r.Get(42)
	require.True(t, ok)
	assert.Equal(t, "new", got.Summary)

	// The replaced entry's timer is suppressed.
	assert.True(t, prior.TimeoutCancelled)
}

func TestRegistry_ReplaceCancelsPriorExpiryHandle(t *testing.T) {
	r := New(10)

	priorCtx, priorCancel := context.WithCancel(context.Background())
	r.InsertOrReplace(5, &Notification{Summary: "old"}, priorCancel)

	// The handle travels with the insert, so a replacement racing the
	// first notify always finds something to cancel.
	replCtx, replCancel := context.WithCancel(context.Background())
	r.InsertOrReplace(5, &Notification{Summary: "new"}, replCancel)

	assert.Error(t, priorCtx.Err(), "prior expiry task must be cancelled by the replacement")
	assert.NoError(t, replCtx.Err())

	// Removal releases the replacement's own handle.
	require.NotNil(t, r.Remove(5))
	assert.Error(t, replCtx.Err())
}

func TestRegistry_Expire(t *testing.T) {
	r := New(10)

	t.Run("removes a live entry", func(t *testing.T) {
		r.InsertOrReplace(1, &Notification{Summary: "a"}, nil)
		notif := r.Expire(1)
		require.NotNil(t, notif)
		assert.Equal(t, 0, r.Len())
	})

	t.Run("skips a tombstoned entry", func(t *testing.T) {
		r.InsertOrReplace(2, &Notification{Summary: "b"}, nil)
		require.True(t, r.Mutate(2, func(n *Notification) {
			n.TimeoutCancelled = true
		}))

		assert.Nil(t, r.Expire(2))
		// Still present: the tombstone outranks the timer.
		_, ok := r.Get(2)
		assert.True(t, ok)
	})

	t.Run("skips a missing entry", func(t *testing.T) {
		assert.Nil(t, r.Expire(999))
	})
}

func TestRegistry_Mutate(t *testing.T) {
	r := New(10)
	r.InsertOrReplace(7, &Notification{Actions: []Action{{ID: "default", Text: "Open"}}}, nil)

	ok := r.Mutate(7, func(n *Notification) {
		n.Actions = nil
	})
	require.True(t, ok)

	got, _ := r.Get(7)
	assert.Empty(t, got.Actions)

	assert.False(t, r.Mutate(8, func(n *Notification) {}))
}

func TestRegistry_SnapshotOrderedByID(t *testing.T) {
	r := New(10)
	r.InsertOrReplace(3, &Notification{Summary: "c"}, nil)
	r.InsertOrReplace(1, &Notification{Summary: "a"}, nil)
	r.InsertOrReplace(2, &Notification{Summary: "b"}, nil)

	snap := r.Snapshot()
	require.Len(t, snap, 3)
	assert.Equal(t, uint32(1), snap[0].ID)
	assert.Equal(t, uint32(2), snap[1].ID)
	assert.Equal(t, uint32(3), snap[2].ID)

	// The snapshot is a copy; mutating it does not touch the registry.
	snap[0].Summary = "mutated"
	got, _ := r.Get(1)
	assert.Equal(t, "a", got.Summary)
}

func TestRegistry_HistoryBound(t *testing.T) {
	r := New(2)

	r.HistoryAppend(HistoryEntry{Summary: "A"})
	r.HistoryAppend(HistoryEntry{Summary: "B"})
	r.HistoryAppend(HistoryEntry{Summary: "C"})

	hist := r.HistorySnapshot()
	require.Len(t, hist, 2)
	assert.Equal(t, "B", hist[0].Summary)
	assert.Equal(t, "C", hist[1].Summary)
}

func TestRegistry_SetHistoryBoundTrims(t *testing.T) {
	r := New(5)
	for _, s := range []string{"a", "b", "c", "d"} {
		r.HistoryAppend(HistoryEntry{Summary: s})
	}

	r.SetHistoryBound(2)
	hist := r.HistorySnapshot()
	require.Len(t, hist, 2)
	assert.Equal(t, "c", hist[0].Summary)
	assert.Equal(t, "d", hist[1].Summary)
}

func TestNotification_Snapshot(t *testing.T) {
	n := &Notification{
		AppName: "mail",
		Icon:    "/tmp/x.png",
		AppIcon: "/usr/share/icons/mail.png",
		Summary: "s",
		Body:    "b",
		Urgency: "critical",
		Actions: []Action{{ID: "default", Text: "Open"}},
	}

	entry := n.Snapshot()
	assert.Equal(t, "mail", entry.AppName)
	assert.Equal(t, "critical", entry.Urgency)
}
