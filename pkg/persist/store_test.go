package persist_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ripple-dev/ripple/pkg/future"
	"github.com/ripple-dev/ripple/pkg/persist"
	"github.com/ripple-dev/ripple/pkg/ripple"
)

// slowConfig keeps debounce windows open until the test flushes, so
// every write is explicit.
func slowConfig() *persist.SnapshotterConfig {
	return &persist.SnapshotterConfig{Debounce: time.Minute}
}

// The memory store should round-trip payloads and isolate its copies.
func TestMemoryStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := persist.NewMemoryStore()

	_, err := store.Get(ctx, "missing")
	assert.ErrorIs(t, err, persist.ErrNotFound)

	require.NoError(t, store.Put(ctx, "counter", []byte(`42`)))
	got, err := store.Get(ctx, "counter")
	require.NoError(t, err)
	assert.Equal(t, `42`, string(got))

	got[0] = 'X'
	again, err := store.Get(ctx, "counter")
	require.NoError(t, err)
	assert.Equal(t, `42`, string(again))

	require.NoError(t, store.Delete(ctx, "counter"))
	_, err = store.Get(ctx, "counter")
	assert.ErrorIs(t, err, persist.ErrNotFound)
	assert.Equal(t, 0, store.Len())
}

// Tracking an unkeyed cell should fail; snapshots are addressed by key.
func TestTrackRequiresKey(t *testing.T) {
	store := persist.NewMemoryStore()
	snap := persist.NewSnapshotter(store, nil)
	defer snap.Close()

	_, err := persist.Track(snap, ripple.New(0))
	assert.ErrorIs(t, err, persist.ErrUnkeyed)
}

// Tracking a resolved cell should seed the first window with its
// current value.
func TestTrackSeedsCurrentValue(t *testing.T) {
	store := persist.NewMemoryStore()
	snap := persist.NewSnapshotter(store, slowConfig())
	defer snap.Close()

	counter := ripple.New(42, ripple.WithKey[int]("counter"))
	_, err := persist.Track(snap, counter)
	require.NoError(t, err)

	snap.Flush()

	data, err := store.Get(context.Background(), "counter")
	require.NoError(t, err)
	assert.Equal(t, `42`, string(data))
	assert.Equal(t, 1, store.Writes())
}

// Rapid changes within one window should coalesce into a single write
// carrying the latest value.
func TestTrackDebouncesWrites(t *testing.T) {
	store := persist.NewMemoryStore()
	snap := persist.NewSnapshotter(store, slowConfig())
	defer snap.Close()

	counter := ripple.New(0, ripple.WithKey[int]("counter"))
	_, err := persist.Track(snap, counter)
	require.NoError(t, err)

	counter.Set(1)
	counter.Set(2)
	counter.Set(3)
	snap.Flush()

	data, err := store.Get(context.Background(), "counter")
	require.NoError(t, err)
	assert.Equal(t, `3`, string(data))
	assert.Equal(t, 1, store.Writes())

	counter.Set(4)
	snap.Flush()

	data, err = store.Get(context.Background(), "counter")
	require.NoError(t, err)
	assert.Equal(t, `4`, string(data))
	assert.Equal(t, 2, store.Writes())
}

// A loading cell should write nothing until it resolves.
func TestTrackWaitsForResolution(t *testing.T) {
	store := persist.NewMemoryStore()
	snap := persist.NewSnapshotter(store, slowConfig())
	defer snap.Close()

	f := future.New[int]()
	pending := ripple.FromFuture(f, ripple.WithKey[int]("pending"))
	_, err := persist.Track(snap, pending)
	require.NoError(t, err)

	snap.Flush()
	assert.Equal(t, 0, store.Writes())

	f.Resolve(7)
	snap.Flush()

	data, err := store.Get(context.Background(), "pending")
	require.NoError(t, err)
	assert.Equal(t, `7`, string(data))
	assert.Equal(t, 1, store.Writes())
}

// A tracked derived cell should persist its recomputed values.
func TestTrackDerived(t *testing.T) {
	store := persist.NewMemoryStore()
	snap := persist.NewSnapshotter(store, slowConfig())
	defer snap.Close()

	counter := ripple.New(1, ripple.WithKey[int]("counter"))
	doubled := ripple.Derive(func() (int, error) {
		v, err := counter.Use()
		return v * 2, err
	}, ripple.WithKey[int]("doubled"))

	_, err := persist.Track(snap, doubled)
	require.NoError(t, err)

	counter.Set(5)
	snap.Flush()

	data, err := store.Get(context.Background(), "doubled")
	require.NoError(t, err)
	assert.Equal(t, `10`, string(data))
}

// Untracking should stop captures without closing the snapshotter.
func TestTrackOff(t *testing.T) {
	store := persist.NewMemoryStore()
	snap := persist.NewSnapshotter(store, slowConfig())
	defer snap.Close()

	counter := ripple.New(0, ripple.WithKey[int]("counter"))
	off, err := persist.Track(snap, counter)
	require.NoError(t, err)
	snap.Flush()
	require.Equal(t, 1, store.Writes())

	off()
	counter.Set(9)
	snap.Flush()
	assert.Equal(t, 1, store.Writes())
}

// Close should flush pending snapshots and be idempotent.
func TestSnapshotterClose(t *testing.T) {
	store := persist.NewMemoryStore()
	snap := persist.NewSnapshotter(store, slowConfig())

	counter := ripple.New(0, ripple.WithKey[int]("counter"))
	_, err := persist.Track(snap, counter)
	require.NoError(t, err)
	counter.Set(5)

	snap.Close()
	snap.Close()

	data, err := store.Get(context.Background(), "counter")
	require.NoError(t, err)
	assert.Equal(t, `5`, string(data))
	assert.Equal(t, 1, store.Writes())
}

// Restore should seed an atom from its stored snapshot and leave it
// untouched when no snapshot exists.
func TestRestore(t *testing.T) {
	ctx := context.Background()
	store := persist.NewMemoryStore()
	require.NoError(t, store.Put(ctx, "counter", []byte(`42`)))

	counter := ripple.New(0, ripple.WithKey[int]("counter"))
	require.NoError(t, persist.Restore(ctx, store, counter))
	v, ok := counter.Value()
	require.True(t, ok)
	assert.Equal(t, 42, v)

	fresh := ripple.New(7, ripple.WithKey[int]("fresh"))
	require.NoError(t, persist.Restore(ctx, store, fresh))
	v, ok = fresh.Value()
	require.True(t, ok)
	assert.Equal(t, 7, v)

	assert.ErrorIs(t, persist.Restore(ctx, store, ripple.New(0)), persist.ErrUnkeyed)

	require.NoError(t, store.Put(ctx, "broken", []byte(`{not json`)))
	broken := ripple.New(0, ripple.WithKey[int]("broken"))
	assert.Error(t, persist.Restore(ctx, store, broken))
}
