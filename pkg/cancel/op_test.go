package cancel_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ripple-dev/ripple/pkg/cancel"
)

func TestRunResolves(t *testing.T) {
	op := cancel.Run(func(tok *cancel.Token) (int, error) {
		return 42, nil
	})

	v, err := op.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42, v)
	assert.False(t, op.Aborted())
}

// a plain failure is not an abort
func TestRunRejects(t *testing.T) {
	boom := errors.New("boom")
	aborts := 0

	op := cancel.Run(func(tok *cancel.Token) (int, error) {
		return 0, boom
	}, cancel.OnAbort(func(error) { aborts++ }))

	_, err := op.Wait(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.False(t, op.Aborted())
	assert.False(t, cancel.IsCanceled(err))
	assert.Equal(t, 0, aborts)
}

// abort settles the handle on the calling turn
func TestRunAbortRejectsImmediately(t *testing.T) {
	reason := errors.New("user hit stop")
	release := make(chan struct{})
	var aborts atomic.Int32

	op := cancel.Run(func(tok *cancel.Token) (int, error) {
		<-release
		return 1, nil
	}, cancel.OnAbort(func(error) { aborts.Add(1) }))

	assert.True(t, op.Abort(reason))

	// The work has not returned, but the handle already settled.
	require.True(t, op.Done())
	err := op.Err()
	assert.True(t, cancel.IsCanceled(err))
	assert.ErrorIs(t, err, reason)
	assert.True(t, op.Aborted())

	// A late result from the aborted work is discarded.
	close(release)
	time.Sleep(10 * time.Millisecond)
	_, err = op.Wait(context.Background())
	assert.True(t, cancel.IsCanceled(err))
	assert.Equal(t, int32(1), aborts.Load())
}

// aborting twice fires onAbort exactly once
func TestRunAbortTwice(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	var aborts atomic.Int32

	op := cancel.Run(func(tok *cancel.Token) (int, error) {
		<-release
		return 0, nil
	}, cancel.OnAbort(func(error) { aborts.Add(1) }))

	assert.True(t, op.Abort(nil))
	assert.False(t, op.Abort(nil))
	assert.Equal(t, int32(1), aborts.Load())
}

// cancelling a parent token cascades into the operation
func TestRunParentCascade(t *testing.T) {
	reason := errors.New("session closed")
	parent := cancel.NewToken()
	release := make(chan struct{})
	defer close(release)
	var aborts atomic.Int32

	op := cancel.Run(func(tok *cancel.Token) (int, error) {
		<-release
		return 0, nil
	}, cancel.WithParents(parent), cancel.OnAbort(func(error) { aborts.Add(1) }))

	parent.Cancel(reason)

	assert.True(t, op.Aborted())
	require.True(t, op.Done())
	err := op.Err()
	assert.True(t, cancel.IsCanceled(err))
	assert.ErrorIs(t, err, reason)
	assert.Equal(t, int32(1), aborts.Load())
}

// an already cancelled parent prevents the work from ever starting
func TestRunAlreadyCancelledParent(t *testing.T) {
	parent := cancel.NewToken()
	parent.Cancel(errors.New("gone"))

	var invoked atomic.Bool
	op := cancel.Run(func(tok *cancel.Token) (int, error) {
		invoked.Store(true)
		return 0, nil
	}, cancel.WithParents(parent))

	assert.True(t, op.Aborted())
	assert.True(t, op.Done())
	assert.True(t, cancel.IsCanceled(op.Err()))

	time.Sleep(10 * time.Millisecond)
	assert.False(t, invoked.Load(), "fn must never run under a dead parent")
}

// work reporting its own cancellation routes through the abort path
func TestRunSelfReportedCancellation(t *testing.T) {
	var aborts atomic.Int32

	op := cancel.Run(func(tok *cancel.Token) (int, error) {
		return 0, context.Canceled
	}, cancel.OnAbort(func(error) { aborts.Add(1) }))

	_, err := op.Wait(context.Background())
	assert.True(t, cancel.IsCanceled(err))
	assert.True(t, op.Aborted())
	assert.Equal(t, int32(1), aborts.Load())
}

// the configured context aborts the operation
func TestRunWithContext(t *testing.T) {
	ctx, cancelCtx := context.WithCancel(context.Background())
	release := make(chan struct{})
	defer close(release)

	op := cancel.Run(func(tok *cancel.Token) (int, error) {
		<-release
		return 0, nil
	}, cancel.WithContext(ctx))

	cancelCtx()

	waitCtx, done := context.WithTimeout(context.Background(), time.Second)
	defer done()
	_, err := op.Wait(waitCtx)
	assert.True(t, cancel.IsCanceled(err))
	assert.True(t, op.Aborted())
}

// nested operations cascade through their tokens
func TestRunNested(t *testing.T) {
	releaseOuter := make(chan struct{})
	defer close(releaseOuter)
	innerStarted := make(chan *cancel.Op[int], 1)

	outer := cancel.Run(func(tok *cancel.Token) (int, error) {
		inner := cancel.Run(func(innerTok *cancel.Token) (int, error) {
			<-innerTok.Done()
			return 0, innerTok.Err()
		}, cancel.WithParents(tok))
		innerStarted <- inner
		<-releaseOuter
		return 0, nil
	})

	inner := <-innerStarted
	outer.Abort(errors.New("outer gone"))

	waitCtx, done := context.WithTimeout(context.Background(), time.Second)
	defer done()
	_, err := inner.Wait(waitCtx)
	assert.True(t, cancel.IsCanceled(err))
	assert.True(t, inner.Aborted())
}

// the token is observable inside the work
func TestRunTokenObservable(t *testing.T) {
	got := make(chan error, 1)

	op := cancel.Run(func(tok *cancel.Token) (int, error) {
		<-tok.Done()
		got <- tok.Err()
		return 0, tok.Err()
	})

	op.Abort(errors.New("stop"))
	select {
	case err := <-got:
		assert.True(t, cancel.IsCanceled(err))
	case <-time.After(time.Second):
		t.Fatal("work never observed the cancellation")
	}
}
