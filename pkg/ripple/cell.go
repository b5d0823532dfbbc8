package ripple

import (
	"context"
	"reflect"
	"sync"

	"github.com/ripple-dev/ripple/pkg/emitter"
	"github.com/ripple-dev/ripple/pkg/future"
)

type cellState int

const (
	stateResolved cellState = iota
	stateLoading
	stateFailed
)

// Snapshot is one consistent observation of a cell: the value (or the
// substitute in fallback mode), the stored error, the loading flag, and
// the version the observation was taken at.
type Snapshot[T any] struct {
	Value   T
	Err     error
	Loading bool

	// Stale reports that Value is a fallback substitute: the cell is
	// loading or failed but was configured to keep exposing its last
	// resolved value (or the configured fallback) instead of no value.
	Stale bool

	Version uint64
}

// State names the snapshot's position in the cell lifecycle.
func (s Snapshot[T]) State() string {
	switch {
	case s.Loading:
		return "loading"
	case s.Err != nil:
		return "failed"
	default:
		return "resolved"
	}
}

// Ok reports whether Value is usable: the cell is resolved, or fallback
// mode substitutes for a loading/failed state.
func (s Snapshot[T]) Ok() bool {
	if s.Stale {
		return true
	}
	return !s.Loading && s.Err == nil
}

// cell is the versioned state container shared by atoms and derived
// atoms. Every write bumps the version, including writes that do not
// change the observable value, so in-flight asynchronous fills can
// detect that a newer write superseded them.
type cell[T any] struct {
	// cid is the cell's identity. It doubles as the subscription
	// identity a derived cell uses when observing its sources, so the
	// scheduler's dedupe spans every emitter the cell subscribes to.
	cid uint64

	mu    sync.Mutex
	state cellState

	// value holds the last resolved value. It survives loading and
	// failed transitions so fallback mode can keep exposing it.
	value    T
	hasValue bool

	err    error
	handle future.Awaitable

	version uint64
	dirty   bool

	fallback    T
	hasFallback bool

	equals func(T, T) bool

	// events delivers snapshots through the scheduler; dependents and
	// plain subscribers both hang off it.
	events *emitter.Emitter[Snapshot[T]]
}

func newCell[T any](cfg cellConfig[T]) *cell[T] {
	c := &cell[T]{
		cid:    emitter.NextID(),
		equals: cfg.equals,
		events: emitter.New[Snapshot[T]](),
	}
	if c.equals == nil {
		c.equals = defaultEquals[T]
	}
	if cfg.fallback != nil {
		c.fallback = *cfg.fallback
		c.hasFallback = true
	}
	return c
}

func (c *cell[T]) snapshotLocked() Snapshot[T] {
	masked := c.hasFallback && c.state != stateResolved
	snap := Snapshot[T]{
		Err:     c.err,
		Loading: c.state == stateLoading,
		Stale:   masked,
		Version: c.version,
	}
	switch {
	case c.state == stateResolved:
		snap.Value = c.value
	case masked && c.hasValue:
		snap.Value = c.value
	case masked:
		snap.Value = c.fallback
	}
	return snap
}

// read returns the current snapshot.
func (c *cell[T]) read() Snapshot[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// readWithHandle returns the snapshot together with the loading handle,
// taken under one lock so they cannot disagree.
func (c *cell[T]) readWithHandle() (Snapshot[T], future.Awaitable) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked(), c.handle
}

// setValue transitions to resolved. The notification is skipped only
// when the prior state was already resolved and the new value is equal
// under the cell's equality; the version bumps regardless. silent
// additionally suppresses the notification but never the bump.
func (c *cell[T]) setValue(v T, silent bool) uint64 {
	c.mu.Lock()
	c.version++
	suppress := c.state == stateResolved && c.equals(c.value, v)
	c.state = stateResolved
	c.value = v
	c.hasValue = true
	c.err = nil
	c.handle = nil
	ver := c.version
	snap := c.snapshotLocked()
	c.mu.Unlock()

	if !silent && !suppress {
		c.events.EmitVia(dispatch, snap)
	}
	return ver
}

// setLoading transitions to loading with w as the pending handle.
func (c *cell[T]) setLoading(w future.Awaitable, silent bool) uint64 {
	c.mu.Lock()
	c.version++
	c.state = stateLoading
	c.err = nil
	c.handle = w
	ver := c.version
	snap := c.snapshotLocked()
	c.mu.Unlock()

	if !silent {
		c.events.EmitVia(dispatch, snap)
	}
	return ver
}

// setError transitions to failed.
func (c *cell[T]) setError(err error, silent bool) uint64 {
	c.mu.Lock()
	c.version++
	c.state = stateFailed
	c.err = err
	c.handle = nil
	ver := c.version
	snap := c.snapshotLocked()
	c.mu.Unlock()

	if !silent {
		c.events.EmitVia(dispatch, snap)
	}
	return ver
}

// reset returns the cell to its pre-initialization state: loading with
// no handle, no retained value, dirty cleared. Observers are notified so
// dependents re-read, which re-arms whatever seeds the cell.
func (c *cell[T]) reset() {
	c.mu.Lock()
	c.version++
	var zero T
	c.state = stateLoading
	c.value = zero
	c.hasValue = false
	c.err = nil
	c.handle = nil
	c.dirty = false
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.events.EmitVia(dispatch, snap)
}

// stale reports whether a write happened after captured was taken. An
// asynchronous continuation that captures the version at attach time
// checks this before writing; a mismatch means its result is obsolete.
func (c *cell[T]) stale(captured uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.version != captured
}

func (c *cell[T]) currentVersion() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.version
}

func (c *cell[T]) markDirty() {
	c.mu.Lock()
	c.dirty = true
	c.mu.Unlock()
}

func (c *cell[T]) clearDirty() {
	c.mu.Lock()
	c.dirty = false
	c.mu.Unlock()
}

func (c *cell[T]) isDirty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dirty
}

func (c *cell[T]) loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == stateLoading
}

// observeBy subscribes l.Notify under l's identity, so the scheduler can
// collapse deliveries from many cells to one listener.
func (c *cell[T]) observeBy(l Listener) func() {
	return c.events.SubscribeAs(l.ID(), func(Snapshot[T]) {
		l.Notify()
	})
}

// awaitCell blocks until the cell leaves loading state, re-arming the
// wait whenever a newer write supersedes the current fill. ensure runs
// every iteration so lazily-seeded cells initialize and reseed.
func awaitCell[T any](ctx context.Context, c *cell[T], ensure func()) (T, error) {
	for {
		ensure()
		snap := c.read()
		if !snap.Loading {
			return snap.Value, snap.Err
		}

		done := make(chan struct{})
		var once sync.Once
		wake := func() { once.Do(func() { close(done) }) }
		unsub := c.events.Subscribe(func(Snapshot[T]) { wake() })
		// The cell may have settled between the read and the subscribe.
		if s := c.read(); s.Version != snap.Version {
			wake()
		}

		select {
		case <-done:
			unsub()
		case <-ctx.Done():
			unsub()
			var zero T
			return zero, ctx.Err()
		}
	}
}

// defaultEquals provides type-appropriate equality checking.
// Uses == for common comparable types and reflect.DeepEqual for others.
func defaultEquals[T any](a, b T) bool {
	switch av := any(a).(type) {
	case int:
		return av == any(b).(int)
	case int8:
		return av == any(b).(int8)
	case int16:
		return av == any(b).(int16)
	case int32:
		return av == any(b).(int32)
	case int64:
		return av == any(b).(int64)
	case uint:
		return av == any(b).(uint)
	case uint8:
		return av == any(b).(uint8)
	case uint16:
		return av == any(b).(uint16)
	case uint32:
		return av == any(b).(uint32)
	case uint64:
		return av == any(b).(uint64)
	case float32:
		return av == any(b).(float32)
	case float64:
		return av == any(b).(float64)
	case string:
		return av == any(b).(string)
	case bool:
		return av == any(b).(bool)
	default:
		return reflect.DeepEqual(a, b)
	}
}
