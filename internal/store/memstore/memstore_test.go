package memstore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mehtakaran9/gridcall/internal/store"
)

const waitFor = 2 * time.Second

func TestDocumentCRUD(t *testing.T) {
	ctx := context.Background()
	m := New()
	defer m.Close()

	t.Run("get_missing", func(t *testing.T) {
		_, err := m.Get(ctx, "rooms/none")
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("create_then_get", func(t *testing.T) {
		require.NoError(t, m.Create(ctx, "rooms/ROOM0", store.Document{"roomName": "alpaca"}))
		doc, err := m.Get(ctx, "rooms/ROOM0")
		require.NoError(t, err)
		assert.Equal(t, "alpaca", doc["roomName"])
	})

	t.Run("create_existing_fails", func(t *testing.T) {
		err := m.Create(ctx, "rooms/ROOM0", store.Document{})
		assert.ErrorIs(t, err, store.ErrExists)
	})

	t.Run("update_merges_fields", func(t *testing.T) {
		require.NoError(t, m.Update(ctx, "rooms/ROOM0", store.Document{"nextUserNum": 2}))
		doc, err := m.Get(ctx, "rooms/ROOM0")
		require.NoError(t, err)
		assert.Equal(t, "alpaca", doc["roomName"])
		assert.Equal(t, 2, doc["nextUserNum"])
	})

	t.Run("update_missing_fails", func(t *testing.T) {
		err := m.Update(ctx, "rooms/none", store.Document{"a": 1})
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("set_replaces", func(t *testing.T) {
		require.NoError(t, m.Set(ctx, "rooms/ROOM0", store.Document{"roomName": "badger"}))
		doc, err := m.Get(ctx, "rooms/ROOM0")
		require.NoError(t, err)
		assert.Equal(t, "badger", doc["roomName"])
		assert.NotContains(t, doc, "nextUserNum")
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, m.Delete(ctx, "rooms/ROOM0"))
		_, err := m.Get(ctx, "rooms/ROOM0")
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("delete_missing_is_noop", func(t *testing.T) {
		assert.NoError(t, m.Delete(ctx, "rooms/none"))
	})
}

func TestGetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	m := New()
	defer m.Close()

	require.NoError(t, m.Create(ctx, "doc", store.Document{"n": 1}))
	doc, err := m.Get(ctx, "doc")
	require.NoError(t, err)
	doc["n"] = 99

	again, err := m.Get(ctx, "doc")
	require.NoError(t, err)
	assert.Equal(t, 1, again["n"])
}

func TestWatch(t *testing.T) {
	ctx := context.Background()

	t.Run("replays_current_document", func(t *testing.T) {
		m := New()
		defer m.Close()
		require.NoError(t, m.Create(ctx, "doc", store.Document{"v": 1}))

		got := make(chan store.Document, 1)
		cancel, err := m.Watch(ctx, "doc", func(d store.Document) { got <- d })
		require.NoError(t, err)
		defer cancel()

		select {
		case d := <-got:
			assert.Equal(t, 1, d["v"])
		case <-time.After(waitFor):
			t.Fatal("no replay delivered")
		}
	})

	t.Run("delivers_changes_in_order", func(t *testing.T) {
		m := New()
		defer m.Close()

		var mu sync.Mutex
		var seen []any
		done := make(chan struct{})
		cancel, err := m.Watch(ctx, "doc", func(d store.Document) {
			mu.Lock()
			seen = append(seen, d["v"])
			if len(seen) == 3 {
				close(done)
			}
			mu.Unlock()
		})
		require.NoError(t, err)
		defer cancel()

		require.NoError(t, m.Set(ctx, "doc", store.Document{"v": 1}))
		require.NoError(t, m.Set(ctx, "doc", store.Document{"v": 2}))
		require.NoError(t, m.Set(ctx, "doc", store.Document{"v": 3}))

		select {
		case <-done:
		case <-time.After(waitFor):
			t.Fatal("timed out waiting for changes")
		}
		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, []any{1, 2, 3}, seen)
	})

	t.Run("cancel_stops_delivery", func(t *testing.T) {
		m := New()
		defer m.Close()

		got := make(chan store.Document, 16)
		cancel, err := m.Watch(ctx, "doc", func(d store.Document) { got <- d })
		require.NoError(t, err)
		cancel()

		require.NoError(t, m.Set(ctx, "doc", store.Document{"v": 1}))
		select {
		case <-got:
			t.Fatal("delivery after cancel")
		case <-time.After(100 * time.Millisecond):
		}
	})
}

func TestWatchCollection(t *testing.T) {
	ctx := context.Background()

	t.Run("replays_existing_then_appends_in_order", func(t *testing.T) {
		m := New()
		defer m.Close()
		require.NoError(t, m.Append(ctx, "cands", store.Document{"i": 0}))
		require.NoError(t, m.Append(ctx, "cands", store.Document{"i": 1}))

		var mu sync.Mutex
		var seen []any
		done := make(chan struct{})
		cancel, err := m.WatchCollection(ctx, "cands", func(ch store.Change) {
			assert.Equal(t, store.Added, ch.Type)
			mu.Lock()
			seen = append(seen, ch.Doc["i"])
			if len(seen) == 4 {
				close(done)
			}
			mu.Unlock()
		})
		require.NoError(t, err)
		defer cancel()

		require.NoError(t, m.Append(ctx, "cands", store.Document{"i": 2}))
		require.NoError(t, m.Append(ctx, "cands", store.Document{"i": 3}))

		select {
		case <-done:
		case <-time.After(waitFor):
			t.Fatal("timed out waiting for collection changes")
		}
		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, []any{0, 1, 2, 3}, seen)
	})

	t.Run("delete_collection_clears_replay", func(t *testing.T) {
		m := New()
		defer m.Close()
		require.NoError(t, m.Append(ctx, "cands", store.Document{"i": 0}))
		require.NoError(t, m.DeleteCollection(ctx, "cands"))

		got := make(chan store.Change, 1)
		cancel, err := m.WatchCollection(ctx, "cands", func(ch store.Change) { got <- ch })
		require.NoError(t, err)
		defer cancel()

		select {
		case <-got:
			t.Fatal("replay from deleted collection")
		case <-time.After(100 * time.Millisecond):
		}
	})
}

func TestClose(t *testing.T) {
	ctx := context.Background()
	m := New()

	cancel, err := m.Watch(ctx, "doc", func(store.Document) {})
	require.NoError(t, err)
	defer cancel()

	require.NoError(t, m.Close())

	_, err = m.Get(ctx, "doc")
	assert.ErrorIs(t, err, store.ErrClosed)
	assert.ErrorIs(t, m.Create(ctx, "doc", store.Document{}), store.ErrClosed)
	_, err = m.Watch(ctx, "doc", func(store.Document) {})
	assert.ErrorIs(t, err, store.ErrClosed)

	// Close is idempotent.
	assert.NoError(t, m.Close())
}
