package cancel

import (
	"context"

	"github.com/ripple-dev/ripple/pkg/future"
)

type opConfig struct {
	parents []*Token
	ctx     context.Context
	onAbort func(error)
}

// Option configures Run at call time.
type Option interface {
	isOption()
	apply(*opConfig)
}

type optionFunc func(*opConfig)

func (f optionFunc) isOption()         {}
func (f optionFunc) apply(c *opConfig) { f(c) }

// WithParents links the operation's local token to parents, so
// cancelling any of them aborts the operation.
func WithParents(parents ...*Token) Option {
	return optionFunc(func(c *opConfig) {
		c.parents = append(c.parents, parents...)
	})
}

// WithContext aborts the operation when ctx is done.
func WithContext(ctx context.Context) Option {
	return optionFunc(func(c *opConfig) {
		c.ctx = ctx
	})
}

// OnAbort registers fn to run exactly once if the operation aborts,
// whichever of self-abort, parent cascade or a cancellation-classified
// failure triggered it.
func OnAbort(fn func(error)) Option {
	return optionFunc(func(c *opConfig) {
		c.onAbort = fn
	})
}

// Op is a running cancellable operation: a handle that settles with the
// work's outcome, and an abort switch that settles it immediately with
// a cancellation error instead.
type Op[T any] struct {
	token *Token
	fut   *future.Future[T]
}

// Run starts fn on its own goroutine, guarded by a fresh local token.
//
// If a linked parent (or the configured context) is already cancelled,
// the local token cancels synchronously, the handle rejects, and fn is
// never invoked. Otherwise parent cancellations cascade into the local
// token for as long as the operation runs.
//
// Cancelling the local token, by Abort or by cascade, rejects the
// handle on the same turn with a cancellation-classified error, invokes
// the OnAbort callback once, and detaches every parent subscription.
// fn is expected to observe its token and stop cooperatively; a late
// result from aborted work is discarded by the handle's settle-once
// semantics. An fn error that IsCanceled recognizes routes through the
// same local cancellation path, so OnAbort still fires for work that
// reports its own cancellation.
func Run[T any](fn func(*Token) (T, error), opts ...Option) *Op[T] {
	var cfg opConfig
	for _, opt := range opts {
		opt.apply(&cfg)
	}

	op := &Op[T]{
		token: NewToken(),
		fut:   future.New[T](),
	}

	// The single abort path. Token.Cancel has already detached the
	// parent listeners by the time this runs.
	op.token.OnCancel(func(reason error) {
		cerr := classify(reason)
		op.fut.Reject(cerr)
		if cfg.onAbort != nil {
			cfg.onAbort(cerr)
		}
	})

	if cfg.ctx != nil {
		op.token.Link(FromContext(cfg.ctx))
	}
	op.token.Link(cfg.parents...)

	if op.token.Cancelled() {
		return op
	}

	go func() {
		v, err := fn(op.token)
		if err != nil {
			if IsCanceled(err) {
				op.token.Cancel(err)
				return
			}
			op.token.release()
			op.fut.Reject(err)
			return
		}
		op.token.release()
		op.fut.Resolve(v)
	}()
	return op
}

// Abort cancels the operation with reason. The first abort wins;
// repeats are no-ops and report false.
func (o *Op[T]) Abort(reason error) bool {
	return o.token.Cancel(reason)
}

// Aborted reports whether the operation was cancelled, by Abort, by a
// parent cascade, or by a cancellation-classified failure.
func (o *Op[T]) Aborted() bool {
	return o.token.Cancelled()
}

// Token returns the operation's local token, for handing to nested
// operations as a parent.
func (o *Op[T]) Token() *Token {
	return o.token
}

// Future returns the settlement handle.
func (o *Op[T]) Future() *future.Future[T] {
	return o.fut
}

// Done reports whether the handle has settled.
func (o *Op[T]) Done() bool {
	return o.fut.Done()
}

// Err returns the handle's error, nil until it settles or when it
// resolved.
func (o *Op[T]) Err() error {
	return o.fut.Err()
}

// Wait blocks until the handle settles or ctx is done.
func (o *Op[T]) Wait(ctx context.Context) (T, error) {
	return o.fut.Wait(ctx)
}
