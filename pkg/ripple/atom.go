package ripple

import (
	"context"
	"sync"

	"github.com/ripple-dev/ripple/pkg/emitter"
	"github.com/ripple-dev/ripple/pkg/future"
)

// seed is the product of an atom initializer: either an immediate value
// or a future that fills the cell when it settles.
type seed[T any] struct {
	value T
	fut   *future.Future[T]
}

// Atom is a mutable reactive cell. It is created with an immediate
// value, a pending future, or a deferred initializer consumed on first
// access; afterwards it is written through Set, Update and Reset.
//
// Reads subscribe the current tracked computation, so a derived atom or
// effect that reads this atom re-runs when it changes.
type Atom[T any] struct {
	c   *cell[T]
	key string

	mu          sync.Mutex
	init        func() seed[T]
	initialized bool

	// inflight is the typed future currently filling the cell, kept so
	// Update can compose onto it instead of discarding it.
	inflight *future.Future[T]
}

// New creates an atom holding initial.
func New[T any](initial T, opts ...Option[T]) *Atom[T] {
	return newAtom(func() seed[T] { return seed[T]{value: initial} }, opts)
}

// FromFuture creates an atom filled by f. The atom stays out of loading
// state until first accessed; the first read, subscription or write
// adopts the future and attaches the version-guarded continuation.
func FromFuture[T any](f *future.Future[T], opts ...Option[T]) *Atom[T] {
	return newAtom(func() seed[T] { return seed[T]{fut: f} }, opts)
}

// Lazy creates an atom whose initial value is produced by init, invoked
// at most once, on first access. Reset re-arms it.
func Lazy[T any](init func() T, opts ...Option[T]) *Atom[T] {
	return newAtom(func() seed[T] { return seed[T]{value: init()} }, opts)
}

// LazyFuture creates an atom whose first access starts the future
// returned by init.
func LazyFuture[T any](init func() *future.Future[T], opts ...Option[T]) *Atom[T] {
	return newAtom(func() seed[T] { return seed[T]{fut: init()} }, opts)
}

func newAtom[T any](init func() seed[T], opts []Option[T]) *Atom[T] {
	cfg := buildConfig(opts)
	a := &Atom[T]{
		c:    newCell(cfg),
		key:  cfg.key,
		init: init,
	}
	announceCreate(CellInfo{Kind: KindAtom, Key: cfg.key, ID: a.c.cid})
	return a
}

// ensureInit consumes the initializer on the first access. The seed is
// applied silently: nobody can have observed the cell before its first
// access, and after a Reset the reset notification itself tells the
// observers to re-read.
func (a *Atom[T]) ensureInit() {
	a.mu.Lock()
	if a.initialized {
		a.mu.Unlock()
		return
	}
	a.initialized = true
	init := a.init
	a.mu.Unlock()

	s := init()
	if s.fut != nil {
		a.adopt(s.fut, true)
		return
	}
	a.c.setValue(s.value, true)
}

// adopt makes f the cell's pending fill: the cell transitions to
// loading and a continuation applies f's outcome unless the captured
// version shows a newer write superseded it.
func (a *Atom[T]) adopt(f *future.Future[T], silent bool) {
	a.mu.Lock()
	a.inflight = f
	a.mu.Unlock()

	captured := a.c.setLoading(f, silent)
	f.OnSettle(func(v T, err error) {
		if a.c.stale(captured) {
			return
		}
		if err != nil {
			a.c.setError(err, false)
			return
		}
		a.c.setValue(v, false)
	})
}

// Set writes v. Writing while a future fill is in flight marks the atom
// dirty and replaces the pending future; the superseded future's
// continuation sees the version bump and discards its result.
func (a *Atom[T]) Set(v T) {
	a.ensureInit()
	if a.c.loading() {
		a.c.markDirty()
	}
	a.c.setValue(v, false)
}

// SetFuture makes f the atom's new fill. The atom transitions to
// loading immediately; whichever fill was previously in flight is
// superseded, and its eventual settlement is discarded by the version
// guard even when it arrives after f settles.
func (a *Atom[T]) SetFuture(f *future.Future[T]) {
	a.ensureInit()
	a.adopt(f, false)
}

// Update applies fn to the current value. While a future fill is in
// flight, fn composes onto it: the atom keeps loading and resolves with
// fn applied to the future's value. On a failed cell without fallback
// the current value is the zero value.
func (a *Atom[T]) Update(fn func(T) T) {
	a.ensureInit()

	a.mu.Lock()
	inflight := a.inflight
	a.mu.Unlock()
	if inflight != nil && a.c.loading() {
		composed := future.Then(inflight, func(v T) (T, error) {
			return fn(v), nil
		})
		a.adopt(composed, false)
		return
	}

	snap := a.c.read()
	a.c.setValue(fn(snap.Value), false)
}

// Reset re-arms the initializer: the cell returns to its uninitialized
// state and the next access runs the initializer from scratch. Current
// observers are notified so dependents re-read, which performs that
// next access immediately when the atom is being watched.
func (a *Atom[T]) Reset() {
	a.mu.Lock()
	a.initialized = false
	a.inflight = nil
	a.mu.Unlock()
	a.c.reset()
}

// Value returns the current value. ok is false while the atom is
// loading or failed, unless fallback mode substitutes a stale value.
func (a *Atom[T]) Value() (T, bool) {
	a.ensureInit()
	record(a)
	snap := a.c.read()
	return snap.Value, snap.Ok()
}

// Use is the tracked suspense read. It returns the resolved value; a
// *Pending error carrying the loading handle while a fill is in flight;
// or the stored error after a failure. In fallback mode it returns the
// substitute value instead of parking or failing.
func (a *Atom[T]) Use() (T, error) {
	a.ensureInit()
	record(a)
	snap, handle := a.c.readWithHandle()
	if snap.Stale {
		return snap.Value, nil
	}
	if snap.Loading {
		var zero T
		if handle == nil {
			// A concurrent Reset left the cell loading with no
			// handle; park until the reseed notifies.
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
func (a *Atom[T]) Peek() Snapshot[T] {
	a.ensureInit()
	return a.c.read()
}

// Loading reports whether a future fill is in flight.
func (a *Atom[T]) Loading() bool {
	a.ensureInit()
	record(a)
	return a.c.read().Loading
}

// Err returns the stored error, nil while loading or resolved.
func (a *Atom[T]) Err() error {
	a.ensureInit()
	record(a)
	return a.c.read().Err
}

// Stale reports whether reads currently expose a fallback substitute.
func (a *Atom[T]) Stale() bool {
	a.ensureInit()
	record(a)
	return a.c.read().Stale
}

// Version returns the cell's version counter. It bumps on every write,
// silent or not, and is what stale asynchronous continuations check.
func (a *Atom[T]) Version() uint64 {
	return a.c.currentVersion()
}

// Dirty reports whether a plain write replaced an in-flight fill.
func (a *Atom[T]) Dirty() bool {
	return a.c.isDirty()
}

// MarkDirty sets the dirty flag without writing.
func (a *Atom[T]) MarkDirty() {
	a.c.markDirty()
}

// ClearDirty clears the dirty flag.
func (a *Atom[T]) ClearDirty() {
	a.c.clearDirty()
}

// On subscribes fn to change notifications. fn receives no payload; it
// re-reads whatever it needs. The returned unsubscribe is idempotent.
func (a *Atom[T]) On(fn func()) func() {
	a.ensureInit()
	return a.c.observeBy(NewListener(fn))
}

// Observe subscribes l under its own identity. A listener observed on
// many cells is notified once per batch however many of them changed.
func (a *Atom[T]) Observe(l Listener) func() {
	a.ensureInit()
	return a.c.observeBy(l)
}

// Watch subscribes fn to resolved values only: loading and failed
// transitions are filtered out.
func (a *Atom[T]) Watch(fn func(T)) func() {
	a.ensureInit()
	return emitter.MapSubscribe(a.c.events, func(s Snapshot[T]) (T, bool) {
		if s.Loading || s.Err != nil {
			var zero T
			return zero, false
		}
		return s.Value, true
	}, fn)
}

// Wait blocks until the atom leaves loading state and returns its value
// or stored error. A fill superseded by a newer write re-arms the wait,
// so the returned outcome is always the winning write's.
func (a *Atom[T]) Wait(ctx context.Context) (T, error) {
	return awaitCell(ctx, a.c, a.ensureInit)
}

// Key returns the name given with WithKey, empty otherwise.
func (a *Atom[T]) Key() string {
	return a.key
}

// ID returns the cell's identity, as reported to instrumentation.
func (a *Atom[T]) ID() uint64 {
	return a.c.cid
}

func (a *Atom[T]) id() uint64 {
	return a.c.cid
}

func (a *Atom[T]) observe(l Listener) func() {
	return a.c.observeBy(l)
}
