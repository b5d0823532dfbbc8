// Package cancel provides hierarchical, once-only cancellation for
// asynchronous work built on the ripple engine's settlement primitives.
//
// A Token is a one-shot cancellation signal. Tokens link to parent
// tokens so that cancelling an ancestor cascades down, while a token
// cancelled on its own detaches from its parents so no listener leaks
// upward. Run wraps a unit of work with a fresh local token and a
// rejectable handle; Abort settles that handle immediately, whether or
// not the work has noticed yet.
package cancel

import (
	"context"
	"errors"
	"sync"

	"github.com/ripple-dev/ripple/pkg/emitter"
)

// Canceled is the error carried by aborted operations. Reason holds
// the caller-supplied cause, if any.
type Canceled struct {
	Reason error
}

func (c *Canceled) Error() string {
	if c.Reason != nil {
		return "cancel: operation canceled: " + c.Reason.Error()
	}
	return "cancel: operation canceled"
}

func (c *Canceled) Unwrap() error {
	return c.Reason
}

// IsCanceled reports whether err is cancellation-classified: this
// package's Canceled, context.Canceled, or context.DeadlineExceeded.
func IsCanceled(err error) bool {
	if err == nil {
		return false
	}
	var c *Canceled
	if errors.As(err, &c) {
		return true
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// classify wraps reason so it satisfies IsCanceled, leaving errors that
// already do untouched.
func classify(reason error) error {
	if IsCanceled(reason) {
		return reason
	}
	return &Canceled{Reason: reason}
}

// Token is a one-shot cancellation signal. The zero value is not
// usable; create tokens with NewToken or FromContext.
type Token struct {
	subs *emitter.Emitter[error]

	mu        sync.Mutex
	cancelled bool
	reason    error
	done      chan struct{}

	// parents holds the unsubscribe closures for linked parent tokens.
	// They are detached when this token cancels or releases, so a
	// finished child never keeps a listener registered upstream.
	parents []func()
}

// NewToken returns an uncancelled token.
func NewToken() *Token {
	return &Token{
		subs: emitter.New[error](),
		done: make(chan struct{}),
	}
}

// Cancel cancels the token with reason. The first call wins and
// returns true; later calls are no-ops. Listeners run synchronously on
// the calling goroutine, after the token has already detached from its
// parents.
func (t *Token) Cancel(reason error) bool {
	t.mu.Lock()
	if t.cancelled {
		t.mu.Unlock()
		return false
	}
	t.cancelled = true
	t.reason = reason
	detach := t.parents
	t.parents = nil
	close(t.done)
	t.mu.Unlock()

	for _, off := range detach {
		off()
	}
	t.subs.Settle(reason)
	return true
}

// Cancelled reports whether Cancel has been called.
func (t *Token) Cancelled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cancelled
}

// Reason returns the cancellation reason, nil while uncancelled.
func (t *Token) Reason() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.reason
}

// Err returns nil while the token is live and a cancellation-classified
// error once cancelled, mirroring context.Context.Err.
func (t *Token) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.cancelled {
		return nil
	}
	return classify(t.reason)
}

// OnCancel registers fn to run when the token cancels. On an already
// cancelled token fn runs synchronously with the stored reason. The
// returned remove function is idempotent.
func (t *Token) OnCancel(fn func(error)) func() {
	return t.subs.Subscribe(fn)
}

// Done returns a channel closed on cancellation, for select loops in
// wrapped work.
func (t *Token) Done() <-chan struct{} {
	return t.done
}

// Link subscribes t to each parent so their cancellation cascades into
// t. A parent that is already cancelled cancels t synchronously. The
// subscriptions are removed when t itself cancels or releases.
func (t *Token) Link(parents ...*Token) {
	for _, p := range parents {
		if p == nil || p == t {
			continue
		}
		off := p.OnCancel(func(reason error) {
			t.Cancel(reason)
		})
		t.mu.Lock()
		if t.cancelled {
			t.mu.Unlock()
			off()
			return
		}
		t.parents = append(t.parents, off)
		t.mu.Unlock()
	}
}

// release detaches the parent subscriptions without cancelling, used
// when the guarded work finished and cascades no longer matter.
func (t *Token) release() {
	t.mu.Lock()
	detach := t.parents
	t.parents = nil
	t.mu.Unlock()
	for _, off := range detach {
		off()
	}
}

// FromContext returns a token cancelled when ctx is, carrying the
// context's cause as the reason. A ctx that is already done yields an
// already-cancelled token.
func FromContext(ctx context.Context) *Token {
	t := NewToken()
	if ctx == nil {
		return t
	}
	if err := ctx.Err(); err != nil {
		t.Cancel(context.Cause(ctx))
		return t
	}

	stop := context.AfterFunc(ctx, func() {
		t.Cancel(context.Cause(ctx))
	})
	t.mu.Lock()
	if t.cancelled {
		t.mu.Unlock()
		stop()
		return t
	}
	t.parents = append(t.parents, func() { stop() })
	t.mu.Unlock()
	return t
}
