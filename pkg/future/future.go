// Package future provides one-shot settlement handles for values that are
// not available yet.
//
// A Future settles exactly once, with a value or an error. Continuations
// attach through OnSettle/OnDone and fire synchronously when the future is
// already settled, so late observers never miss the outcome. The reactive
// cells store futures as their loading handles and use version checks to
// discard continuations that a newer write has superseded.
package future

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/ripple-dev/ripple/pkg/emitter"
)

// Awaitable is the settlement-only view of a pending value. It carries no
// result type, which lets heterogeneous futures be combined into a single
// wait.
type Awaitable interface {
	// OnDone registers fn to run when the awaitable settles, invoking it
	// synchronously if it already has. fn receives the settlement error,
	// nil on success. The returned function removes the registration.
	OnDone(fn func(err error)) func()

	// Done reports whether the awaitable has settled.
	Done() bool

	// Err returns the settlement error. It is nil while unsettled and nil
	// after a successful settlement.
	Err() error
}

// outcome is a settled result.
type outcome[T any] struct {
	value T
	err   error
}

// Future is a one-shot container for an eventual value of type T.
type Future[T any] struct {
	mu    sync.Mutex
	done  bool
	value T
	err   error

	// ch is closed on settlement so blocking waits can select on it.
	ch chan struct{}

	// subs delivers the outcome to continuations; its settle semantics
	// give late subscribers a synchronous callback.
	subs *emitter.Emitter[outcome[T]]
}

// New returns an unsettled future.
func New[T any]() *Future[T] {
	return &Future[T]{
		ch:   make(chan struct{}),
		subs: emitter.New[outcome[T]](),
	}
}

// Resolved returns a future already settled with v.
func Resolved[T any](v T) *Future[T] {
	f := New[T]()
	f.Resolve(v)
	return f
}

// Rejected returns a future already settled with err.
func Rejected[T any](err error) *Future[T] {
	f := New[T]()
	f.Reject(err)
	return f
}

// Go runs fn on its own goroutine and settles the returned future with
// its result.
func Go[T any](fn func() (T, error)) *Future[T] {
	f := New[T]()
	go func() {
		v, err := fn()
		f.settle(v, err)
	}()
	return f
}

func (f *Future[T]) settle(v T, err error) {
	f.mu.Lock()
	if f.done {
		f.mu.Unlock()
		return
	}
	f.done = true
	f.value = v
	f.err = err
	f.mu.Unlock()

	close(f.ch)
	f.subs.Settle(outcome[T]{value: v, err: err})
}

// Resolve settles the future with v. Only the first settlement wins;
// later Resolve and Reject calls are no-ops.
func (f *Future[T]) Resolve(v T) {
	f.settle(v, nil)
}

// Reject settles the future with err.
func (f *Future[T]) Reject(err error) {
	var zero T
	f.settle(zero, err)
}

// Done reports whether the future has settled.
func (f *Future[T]) Done() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.done
}

// Err returns the settlement error, nil while unsettled or on success.
func (f *Future[T]) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

// Result returns the settled value and error. The bool reports whether
// the future has settled at all.
func (f *Future[T]) Result() (T, error, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.value, f.err, f.done
}

// OnSettle registers fn to run with the outcome when the future settles,
// synchronously if it already has. The returned function removes the
// registration and is a no-op after settlement.
func (f *Future[T]) OnSettle(fn func(v T, err error)) func() {
	return f.subs.Subscribe(func(o outcome[T]) {
		fn(o.value, o.err)
	})
}

// OnDone implements Awaitable.
func (f *Future[T]) OnDone(fn func(err error)) func() {
	return f.subs.Subscribe(func(o outcome[T]) {
		fn(o.err)
	})
}

// Wait blocks until the future settles or ctx is done, whichever comes
// first, and returns the outcome or the context error.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.ch:
		f.mu.Lock()
		defer f.mu.Unlock()
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Chan returns a channel that is closed when the future settles.
func (f *Future[T]) Chan() <-chan struct{} {
	return f.ch
}

// Map returns a future that settles with fn applied to f's value, or
// with f's error unchanged.
func Map[T, U any](f *Future[T], fn func(T) U) *Future[U] {
	return Then(f, func(v T) (U, error) {
		return fn(v), nil
	})
}

// Then returns a future that, once f resolves, settles with fn's result.
// A rejection of f bypasses fn. This is how a pure updater composes onto
// an in-flight write without discarding it.
func Then[T, U any](f *Future[T], fn func(T) (U, error)) *Future[U] {
	out := New[U]()
	f.OnSettle(func(v T, err error) {
		if err != nil {
			out.Reject(err)
			return
		}
		out.settle(fn(v))
	})
	return out
}

// AfterAll returns an awaitable that resolves once every input has
// resolved, or rejects with the first failure to arrive. With no inputs
// it is already resolved.
func AfterAll(ws ...Awaitable) Awaitable {
	f := New[struct{}]()
	if len(ws) == 0 {
		f.Resolve(struct{}{})
		return f
	}

	var remaining atomic.Int64
	remaining.Store(int64(len(ws)))
	for _, w := range ws {
		w.OnDone(func(err error) {
			if err != nil {
				f.Reject(err)
				return
			}
			if remaining.Add(-1) == 0 {
				f.Resolve(struct{}{})
			}
		})
	}
	return f
}

// AfterFirst returns an awaitable that settles with the outcome of
// whichever input settles first. With no inputs it never settles.
func AfterFirst(ws ...Awaitable) Awaitable {
	f := New[struct{}]()
	for _, w := range ws {
		w.OnDone(func(err error) {
			if err != nil {
				f.Reject(err)
				return
			}
			f.Resolve(struct{}{})
		})
	}
	return f
}

// AfterSettled returns an awaitable that resolves once every input has
// settled, successes and failures alike. It never rejects.
func AfterSettled(ws ...Awaitable) Awaitable {
	f := New[struct{}]()
	if len(ws) == 0 {
		f.Resolve(struct{}{})
		return f
	}

	var remaining atomic.Int64
	remaining.Store(int64(len(ws)))
	for _, w := range ws {
		w.OnDone(func(error) {
			if remaining.Add(-1) == 0 {
				f.Resolve(struct{}{})
			}
		})
	}
	return f
}
