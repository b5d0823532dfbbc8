// Package ripple provides the public API for the Ripple reactive state
// library.
//
// This is the recommended import for most applications:
//
//	import "github.com/ripple-dev/ripple"
//
// Usage:
//
//	count := ripple.New(0)
//	doubled := ripple.Derive(func() (int, error) {
//	    v, err := count.Use()
//	    return v * 2, err
//	})
//	eff := ripple.NewEffect(func() (ripple.Cleanup, error) {
//	    v, err := doubled.Use()
//	    if err != nil {
//	        return nil, err
//	    }
//	    fmt.Println("doubled:", v)
//	    return nil, nil
//	})
//	defer eff.Dispose()
package ripple

import (
	"github.com/ripple-dev/ripple/pkg/cancel"
	"github.com/ripple-dev/ripple/pkg/future"
	coreripple "github.com/ripple-dev/ripple/pkg/ripple"
)

// =============================================================================
// Reactive primitives (re-export from pkg/ripple)
// =============================================================================

// New creates a mutable atom holding the given initial value.
//
// Example:
//
//	count := ripple.New(0)
//	count.Set(1)
//	v, ok := count.Value() // 1, true
func New[T any](initial T, opts ...Option[T]) *Atom[T] {
	return coreripple.New(initial, opts...)
}

// FromFuture creates an atom that starts loading and adopts the
// future's outcome when it settles.
func FromFuture[T any](f *future.Future[T], opts ...Option[T]) *Atom[T] {
	return coreripple.FromFuture(f, opts...)
}

// Lazy creates an atom whose initial value is computed on first access.
func Lazy[T any](init func() T, opts ...Option[T]) *Atom[T] {
	return coreripple.Lazy(init, opts...)
}

// LazyFuture creates an atom whose backing future is started on first
// access.
func LazyFuture[T any](init func() *future.Future[T], opts ...Option[T]) *Atom[T] {
	return coreripple.LazyFuture(init, opts...)
}

// Derive creates a derived atom that recomputes when any cell it read
// during the last computation changes.
//
// Example:
//
//	doubled := ripple.Derive(func() (int, error) {
//	    v, err := count.Use()
//	    return v * 2, err
//	})
func Derive[T any](compute func() (T, error), opts ...Option[T]) *Derived[T] {
	return coreripple.Derive(compute, opts...)
}

// NewEffect registers a side effect that reruns when its dependencies
// change. The body may return a Cleanup that runs before the next run
// and on disposal.
var NewEffect = coreripple.NewEffect

// NewView returns a read-only projection of src.
func NewView[T any](src Readable[T]) *View[T] {
	return coreripple.NewView(src)
}

// Batch groups writes into one flush; observers see the final state
// only.
var Batch = coreripple.Batch

// BatchNamed is Batch with a name for instrumentation.
var BatchNamed = coreripple.BatchNamed

// BatchValue is Batch for write blocks that produce a value.
func BatchValue[T any](fn func() T) T {
	return coreripple.BatchValue(fn)
}

// Untracked runs fn without registering dependencies on the cells it
// reads.
var Untracked = coreripple.Untracked

// Cell type aliases
type Atom[T any] = coreripple.Atom[T]
type Derived[T any] = coreripple.Derived[T]
type Effect = coreripple.Effect
type View[T any] = coreripple.View[T]
type Snapshot[T any] = coreripple.Snapshot[T]
type Readable[T any] = coreripple.Readable[T]
type Listener = coreripple.Listener
type Cleanup = coreripple.Cleanup

// NewListener wraps fn as a Listener with its own identity.
var NewListener = coreripple.NewListener

// =============================================================================
// Options
// =============================================================================

type Option[T any] = coreripple.Option[T]
type EffectOption = coreripple.EffectOption

// WithEquals overrides the equality used to suppress no-change
// notifications.
func WithEquals[T any](fn func(T, T) bool) Option[T] {
	return coreripple.WithEquals(fn)
}

// WithFallback keeps exposing v (or the last resolved value) while the
// cell is loading or failed.
func WithFallback[T any](v T) Option[T] {
	return coreripple.WithFallback(v)
}

// WithKey names a cell for instrumentation and persistence.
func WithKey[T any](key string) Option[T] {
	return coreripple.WithKey(key)
}

// EffectKey names an effect for instrumentation.
var EffectKey = coreripple.EffectKey

// OnEffectError routes an effect's compute errors to fn instead of the
// global error handler.
var OnEffectError = coreripple.OnEffectError

// =============================================================================
// Combinators
// =============================================================================

// Getter is one suspendable read, typically a cell's Use method.
type Getter[T any] = coreripple.Getter[T]

// Settlement is one getter's outcome in a Settled call.
type Settlement[T any] = coreripple.Settlement[T]

// All returns every getter's value, or suspends until all are ready,
// or fails with the first error.
//
// Example:
//
//	vals, err := ripple.All(a.Use, b.Use, c.Use)
func All[T any](getters ...Getter[T]) ([]T, error) {
	return coreripple.All(getters...)
}

// AllKeyed is All with results keyed by the input map's keys.
func AllKeyed[T any](getters map[string]Getter[T]) (map[string]T, error) {
	return coreripple.AllKeyed(getters)
}

// Race returns the first settled getter's outcome, value or error.
func Race[T any](getters ...Getter[T]) (T, error) {
	return coreripple.Race(getters...)
}

// RaceKeyed is Race over a keyed set.
func RaceKeyed[T any](getters map[string]Getter[T]) (T, error) {
	return coreripple.RaceKeyed(getters)
}

// Any returns the first successful getter's value, collecting every
// error into an AggregateError when all fail.
func Any[T any](getters ...Getter[T]) (T, error) {
	return coreripple.Any(getters...)
}

// AnyKeyed is Any over a keyed set.
func AnyKeyed[T any](getters map[string]Getter[T]) (T, error) {
	return coreripple.AnyKeyed(getters)
}

// Settled returns every getter's outcome once none is still pending.
func Settled[T any](getters ...Getter[T]) ([]Settlement[T], error) {
	return coreripple.Settled(getters...)
}

// SettledKeyed is Settled with outcomes keyed by the input map's keys.
func SettledKeyed[T any](getters map[string]Getter[T]) (map[string]Settlement[T], error) {
	return coreripple.SettledKeyed(getters)
}

// =============================================================================
// Errors
// =============================================================================

type Pending = coreripple.Pending
type AggregateError = coreripple.AggregateError

var ErrFlushOverrun = coreripple.ErrFlushOverrun

// IsPending reports whether err marks a suspended read.
var IsPending = coreripple.IsPending

// AsPending extracts the Pending marker from err.
var AsPending = coreripple.AsPending

// Suspend returns a Pending error with no handle, for computations that
// cannot produce a value yet.
var Suspend = coreripple.Suspend

// SetErrorHandler installs the handler for errors with no other
// destination, such as failed effect runs. A nil handler drops them.
var SetErrorHandler = coreripple.SetErrorHandler

// =============================================================================
// Instrumentation
// =============================================================================

type CellKind = coreripple.CellKind
type CellInfo = coreripple.CellInfo
type FlushStats = coreripple.FlushStats

const (
	KindAtom    = coreripple.KindAtom
	KindDerived = coreripple.KindDerived
	KindEffect  = coreripple.KindEffect
)

// OnCreate registers fn to run whenever a cell is constructed.
var OnCreate = coreripple.OnCreate

// OnDispose registers fn to run when an effect is disposed.
var OnDispose = coreripple.OnDispose

// OnFlush registers fn to run after each scheduler flush.
var OnFlush = coreripple.OnFlush

// =============================================================================
// Futures (re-export from pkg/future)
// =============================================================================

// Future is a single-assignment async result, the adoptable backing for
// FromFuture and SetFuture.
type Future[T any] = future.Future[T]

// Awaitable is the settle-only view of a future.
type Awaitable = future.Awaitable

// NewFuture creates an unsettled future.
func NewFuture[T any]() *Future[T] {
	return future.New[T]()
}

// ResolvedFuture creates a future already resolved with v.
func ResolvedFuture[T any](v T) *Future[T] {
	return future.Resolved(v)
}

// RejectedFuture creates a future already rejected with err.
func RejectedFuture[T any](err error) *Future[T] {
	return future.Rejected[T](err)
}

// GoFuture runs fn on its own goroutine and settles the returned future
// with its outcome.
func GoFuture[T any](fn func() (T, error)) *Future[T] {
	return future.Go(fn)
}

// AfterAll settles when every input has settled.
var AfterAll = future.AfterAll

// AfterFirst settles when the first input settles.
var AfterFirst = future.AfterFirst

// AfterSettled settles when every input has settled, never with an
// error.
var AfterSettled = future.AfterSettled

// =============================================================================
// Cancellation (re-export from pkg/cancel)
// =============================================================================

// Token is a hierarchical cancellation handle.
type Token = cancel.Token

// Canceled is the error delivered to aborted operations.
type Canceled = cancel.Canceled

// CancelOption configures Run.
type CancelOption = cancel.Option

// Op is a cancellable async operation producing a value.
type Op[T any] = cancel.Op[T]

// NewToken creates a root cancellation token.
var NewToken = cancel.NewToken

// TokenFromContext derives a token that aborts when ctx is done.
var TokenFromContext = cancel.FromContext

// IsCanceled reports whether err is a cancellation.
var IsCanceled = cancel.IsCanceled

// Run starts fn on its own goroutine under a fresh token.
//
// Example:
//
//	op := ripple.Run(func(tk *ripple.Token) (string, error) {
//	    if err := tk.Err(); err != nil {
//	        return "", err
//	    }
//	    return fetch(tk)
//	})
//	op.Abort(nil)
func Run[T any](fn func(*Token) (T, error), opts ...CancelOption) *Op[T] {
	return cancel.Run(fn, opts...)
}

// WithParents ties the operation's token to parent tokens.
var WithParents = cancel.WithParents

// WithCancelContext ties the operation's token to a context.
var WithCancelContext = cancel.WithContext

// OnAbort registers fn to run if the operation is aborted.
var OnAbort = cancel.OnAbort
