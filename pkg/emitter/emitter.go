// Package emitter provides the ordered pub/sub primitive underneath the
// reactive cells and futures.
//
// An Emitter holds subscriptions in insertion order and delivers payloads
// forward or in reverse. A one-shot Settle freezes the emitter permanently:
// the stored payload is handed synchronously to every later subscriber, and
// further emissions become no-ops. Futures are built directly on that.
package emitter

import (
	"sync"
	"sync/atomic"
)

// subIDCounter is the source of auto-assigned subscription identities.
var subIDCounter uint64

// NextID returns a process-unique subscription identity.
// IDs are monotonically increasing and never reused.
func NextID() uint64 {
	return atomic.AddUint64(&subIDCounter, 1)
}

// subscription is one registered listener.
type subscription[T any] struct {
	id uint64
	fn func(T)
}

// Emitter is an ordered set of listeners with one-shot settle semantics.
// The zero value is ready to use.
type Emitter[T any] struct {
	mu sync.Mutex

	// subs is kept in subscription order; emission iterates it forward
	// (or backward for the reverse variants), so removal must preserve
	// the order of the remaining entries.
	subs []subscription[T]

	settled bool
	payload T
}

// New returns an empty emitter.
func New[T any]() *Emitter[T] {
	return &Emitter[T]{}
}

// Subscribe registers fn under a fresh identity and returns its
// unsubscribe function. If the emitter has settled, fn is invoked
// synchronously with the settled payload and the returned unsubscribe
// is a no-op.
func (e *Emitter[T]) Subscribe(fn func(T)) func() {
	return e.SubscribeAs(NextID(), fn)
}

// SubscribeAs registers fn under a caller-supplied identity. Subscribing
// an identity that is already registered is a no-op, so one logical
// listener observed through many cells holds a single entry per emitter.
// The returned unsubscribe removes the identity and is idempotent.
func (e *Emitter[T]) SubscribeAs(id uint64, fn func(T)) func() {
	e.mu.Lock()
	if e.settled {
		payload := e.payload
		e.mu.Unlock()
		fn(payload)
		return func() {}
	}
	for _, s := range e.subs {
		if s.id == id {
			e.mu.Unlock()
			return func() { e.remove(id) }
		}
	}
	e.subs = append(e.subs, subscription[T]{id: id, fn: fn})
	e.mu.Unlock()
	return func() { e.remove(id) }
}

// remove deletes the subscription with the given identity, keeping the
// order of the remaining subscriptions intact.
func (e *Emitter[T]) remove(id uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, s := range e.subs {
		if s.id == id {
			e.subs = append(e.subs[:i], e.subs[i+1:]...)
			return
		}
	}
}

// snapshot copies the current subscriptions, optionally clearing the set
// in the same critical section so listeners added during delivery are not
// swept away by a flush.
func (e *Emitter[T]) snapshot(clear bool) []subscription[T] {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.settled {
		return nil
	}
	subs := make([]subscription[T], len(e.subs))
	copy(subs, e.subs)
	if clear {
		e.subs = nil
	}
	return subs
}

// Emit delivers v to every current subscriber in subscription order.
// The subscriber set is snapshotted first, so listeners added or removed
// during delivery affect only future emissions.
func (e *Emitter[T]) Emit(v T) {
	for _, s := range e.snapshot(false) {
		s.fn(v)
	}
}

// EmitReverse delivers v in reverse subscription order.
func (e *Emitter[T]) EmitReverse(v T) {
	subs := e.snapshot(false)
	for i := len(subs) - 1; i >= 0; i-- {
		subs[i].fn(v)
	}
}

// EmitVia routes every delivery through dispatch instead of invoking
// listeners directly. The dispatch hook receives the subscription
// identity so a scheduler can deduplicate deliveries to one logical
// listener across many emitters.
func (e *Emitter[T]) EmitVia(dispatch func(id uint64, fn func()), v T) {
	for _, s := range e.snapshot(false) {
		fn := s.fn
		dispatch(s.id, func() { fn(v) })
	}
}

// Clear removes every subscription without delivering anything.
func (e *Emitter[T]) Clear() {
	e.mu.Lock()
	e.subs = nil
	e.mu.Unlock()
}

// Flush emits v in subscription order and clears the set. The snapshot
// and the clear happen in one step, so a listener that subscribes during
// delivery survives the flush.
func (e *Emitter[T]) Flush(v T) {
	for _, s := range e.snapshot(true) {
		s.fn(v)
	}
}

// FlushReverse emits v in reverse subscription order and clears the set.
func (e *Emitter[T]) FlushReverse(v T) {
	subs := e.snapshot(true)
	for i := len(subs) - 1; i >= 0; i-- {
		subs[i].fn(v)
	}
}

// Settle freezes the emitter with v. The current subscribers receive v in
// subscription order, the set is emptied, and from then on every Subscribe
// call invokes its listener synchronously with v. Later Emit, Flush and
// Settle calls are no-ops; only the first Settle wins.
func (e *Emitter[T]) Settle(v T) {
	e.mu.Lock()
	if e.settled {
		e.mu.Unlock()
		return
	}
	e.settled = true
	e.payload = v
	subs := e.subs
	e.subs = nil
	e.mu.Unlock()

	for _, s := range subs {
		s.fn(v)
	}
}

// Settled reports whether the emitter has been frozen by Settle.
func (e *Emitter[T]) Settled() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.settled
}

// Len returns the number of live subscriptions. A settled emitter
// reports zero.
func (e *Emitter[T]) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.subs)
}

// MapSubscribe registers a listener that receives transform(payload).
// The transform may filter an emission by returning false, in which case
// fn is not invoked for that payload.
func MapSubscribe[T, U any](e *Emitter[T], transform func(T) (U, bool), fn func(U)) func() {
	return e.Subscribe(func(v T) {
		if u, ok := transform(v); ok {
			fn(u)
		}
	})
}
