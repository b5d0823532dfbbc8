package ripple

import (
	"context"
	"sync"
	"sync/atomic"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/ripple-dev/ripple/pkg/emitter"
)

// Derived is a computed reactive cell. Its compute function reads other
// atoms through their tracked getters; the sources it read on the last
// run are exactly the ones it is subscribed to, so branches not taken in
// a given run are not watched.
//
// A compute that returns a *Pending error parks the cell in loading
// state; when the carried handle settles, the computation re-runs unless
// a newer change already superseded it. Any other error fails the cell
// and is re-surfaced to every getter that reads it.
type Derived[T any] struct {
	c       *cell[T]
	key     string
	compute func() (T, error)

	// primed flips on first access; before that the cell has no
	// dependencies and cannot be notified.
	primed atomic.Bool

	// computing guards against re-entrant recomputation. A poke that
	// arrives while a run is in progress sets rerun instead, and the
	// run replays itself before releasing the guard.
	computing atomic.Bool
	rerun     atomic.Bool

	// mu guards the dependency bookkeeping below. deps holds the source
	// identities of the last run; subs maps each to its unsubscribe.
	mu   sync.Mutex
	deps mapset.Set[uint64]
	subs map[uint64]func()

	// unpark removes the continuation attached to the handle of the
	// last parked run. Accessed only while computing is held.
	unpark func()
}

// Derive creates a derived atom over compute. The first computation
// runs lazily, on first read or subscription. Fallback mode does not
// apply to derived cells; a WithFallback option is ignored.
func Derive[T any](compute func() (T, error), opts ...Option[T]) *Derived[T] {
	d := newDerived(compute, buildConfig(opts))
	announceCreate(CellInfo{Kind: KindDerived, Key: d.key, ID: d.c.cid})
	return d
}

func newDerived[T any](compute func() (T, error), cfg cellConfig[T]) *Derived[T] {
	cfg.fallback = nil
	return &Derived[T]{
		c:       newCell(cfg),
		key:     cfg.key,
		compute: compute,
		deps:    mapset.NewThreadUnsafeSet[uint64](),
		subs:    make(map[uint64]func()),
	}
}

func (d *Derived[T]) ensurePrimed() {
	if d.primed.CompareAndSwap(false, true) {
		d.recompute()
	}
}

// Notify implements Listener; sources poke it when they change.
func (d *Derived[T]) Notify() {
	d.recompute()
}

// ID implements Listener with the cell's identity, so the scheduler
// collapses pokes from many sources into one recomputation per batch.
func (d *Derived[T]) ID() uint64 {
	return d.c.cid
}

// recompute runs the computation, replaying if a poke or a synchronous
// handle settlement arrived while the guard was held.
func (d *Derived[T]) recompute() {
	if d.computing.Swap(true) {
		d.rerun.Store(true)
		return
	}
	for {
		d.rerun.Store(false)
		d.recomputeOnce()
		d.computing.Store(false)
		if !d.rerun.Load() {
			return
		}
		if d.computing.Swap(true) {
			return
		}
	}
}

// recomputeOnce performs one run: collect the dependency set, classify
// the outcome, reconcile subscriptions to the collected set, and write
// the cell.
func (d *Derived[T]) recomputeOnce() {
	if d.unpark != nil {
		d.unpark()
		d.unpark = nil
	}

	col := newCollector()
	var v T
	var err error
	track(col, func() {
		v, err = d.compute()
	})

	if p, ok := AsPending(err); ok {
		d.reconcile(col)
		ver := d.c.setLoading(p.Await, false)
		d.unpark = p.Await.OnDone(func(error) {
			if d.c.stale(ver) {
				return
			}
			d.recompute()
		})
		return
	}
	if err != nil {
		d.reconcile(col)
		d.c.setError(err, false)
		return
	}
	d.reconcile(col)
	d.c.setValue(v, false)
}

// reconcile adjusts subscriptions so they exactly match the sources the
// last run read: stale dependencies are unsubscribed, new ones
// subscribed in first-read order.
func (d *Derived[T]) reconcile(col *collector) {
	d.mu.Lock()
	defer d.mu.Unlock()

	gone := d.deps.Difference(col.ids)
	gone.Each(func(id uint64) bool {
		if unsub := d.subs[id]; unsub != nil {
			unsub()
		}
		delete(d.subs, id)
		return false
	})

	for _, id := range col.order {
		if d.deps.Contains(id) {
			continue
		}
		d.subs[id] = col.sources[id].observe(d)
	}
	d.deps = col.ids
}

// Value returns the current computed value; ok is false while the
// computation is parked on a pending source or has failed.
func (d *Derived[T]) Value() (T, bool) {
	d.ensurePrimed()
	record(d)
	snap := d.c.read()
	return snap.Value, snap.Ok()
}

// Use is the tracked suspense read, with the same protocol as an
// atom's: value, *Pending carrying the park handle, or the stored
// computation error.
func (d *Derived[T]) Use() (T, error) {
	d.ensurePrimed()
	record(d)
	snap, handle := d.c.readWithHandle()
	if snap.Loading {
		var zero T
		if handle == nil {
			return zero, &Pending{Await: neverSettles}
		}
		return zero, &Pending{Await: handle}
	}
	if snap.Err != nil {
		var zero T
		return zero, snap.Err
	}
	return snap.Value, nil
}

// Peek returns the current snapshot without subscribing the tracked
// computation.
func (d *Derived[T]) Peek() Snapshot[T] {
	d.ensurePrimed()
	return d.c.read()
}

// Loading reports whether the computation is parked on a pending source.
func (d *Derived[T]) Loading() bool {
	d.ensurePrimed()
	record(d)
	return d.c.read().Loading
}

// Err returns the stored computation error, nil otherwise.
func (d *Derived[T]) Err() error {
	d.ensurePrimed()
	record(d)
	return d.c.read().Err
}

// Stale always reports false: derived cells have no fallback mode.
func (d *Derived[T]) Stale() bool {
	d.ensurePrimed()
	record(d)
	return d.c.read().Stale
}

// Version returns the cell's version counter.
func (d *Derived[T]) Version() uint64 {
	return d.c.currentVersion()
}

// On subscribes fn to change notifications.
func (d *Derived[T]) On(fn func()) func() {
	d.ensurePrimed()
	return d.c.observeBy(NewListener(fn))
}

// Observe subscribes l under its own identity.
func (d *Derived[T]) Observe(l Listener) func() {
	d.ensurePrimed()
	return d.c.observeBy(l)
}

// Watch subscribes fn to resolved values only.
func (d *Derived[T]) Watch(fn func(T)) func() {
	d.ensurePrimed()
	return emitter.MapSubscribe(d.c.events, func(s Snapshot[T]) (T, bool) {
		if s.Loading || s.Err != nil {
			var zero T
			return zero, false
		}
		return s.Value, true
	}, fn)
}

// Wait blocks until the computation is neither parked nor superseded
// and returns the settled value or error.
func (d *Derived[T]) Wait(ctx context.Context) (T, error) {
	return awaitCell(ctx, d.c, d.ensurePrimed)
}

// Key returns the name given with WithKey, empty otherwise.
func (d *Derived[T]) Key() string {
	return d.key
}

func (d *Derived[T]) id() uint64 {
	return d.c.cid
}

func (d *Derived[T]) observe(l Listener) func() {
	return d.c.observeBy(l)
}
