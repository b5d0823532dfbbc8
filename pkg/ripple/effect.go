package ripple

import (
	"sync"
	"sync/atomic"
)

// Effect runs a side-effecting body whenever the atoms it reads change.
// It is a derived cell whose value is the act of running the body: the
// body's tracked reads follow the same suspense protocol, so a body that
// returns a *Pending error parks until the source settles or changes.
//
// The body may return a Cleanup; it runs before the next body run and
// once more at dispose. Body errors never propagate into the
// notification fan-out: they go to the per-effect handler, or the module
// error handler, or are dropped.
type Effect struct {
	d   *Derived[struct{}]
	key string

	mu      sync.Mutex
	cleanup Cleanup

	disposed atomic.Bool
	onError  func(error)
}

// EffectOption configures an Effect at construction time.
type EffectOption interface {
	isEffectOption()
	applyEffect(e *Effect)
}

type effectOptionFunc func(*Effect)

func (f effectOptionFunc) isEffectOption()       {}
func (f effectOptionFunc) applyEffect(e *Effect) { f(e) }

// OnEffectError routes the effect's body errors to fn instead of the
// module error handler.
func OnEffectError(fn func(error)) EffectOption {
	return effectOptionFunc(func(e *Effect) {
		e.onError = fn
	})
}

// EffectKey names the effect for instrumentation and inspection.
func EffectKey(key string) EffectOption {
	return effectOptionFunc(func(e *Effect) {
		e.key = key
	})
}

// NewEffect creates the effect and runs body immediately. The body runs
// inside a batch, so the writes it performs coalesce into one
// notification phase after the run.
//
//	logger := ripple.NewEffect(func() (ripple.Cleanup, error) {
//	    v, err := user.Use()
//	    if err != nil {
//	        return nil, err
//	    }
//	    stop := audit.Open(v)
//	    return func() { stop() }, nil
//	})
//	defer logger.Dispose()
func NewEffect(body func() (Cleanup, error), opts ...EffectOption) *Effect {
	e := &Effect{}
	for _, opt := range opts {
		opt.applyEffect(e)
	}

	e.d = newDerived(func() (struct{}, error) {
		return struct{}{}, e.run(body)
	}, cellConfig[struct{}]{key: e.key})

	announceCreate(CellInfo{Kind: KindEffect, Key: e.key, ID: e.d.c.cid})
	e.d.ensurePrimed()
	return e
}

// run is one body execution: prior cleanup first, then the body inside
// a batch. Only a *Pending error escapes to the derived layer; real
// errors are routed to the handler so a failing effect cannot take down
// the fan-out.
func (e *Effect) run(body func() (Cleanup, error)) error {
	e.mu.Lock()
	cleanup := e.cleanup
	e.cleanup = nil
	e.mu.Unlock()
	if cleanup != nil {
		cleanup()
	}

	if e.disposed.Load() {
		return nil
	}

	var next Cleanup
	var err error
	Batch(func() {
		next, err = body()
	})

	if err != nil {
		if IsPending(err) {
			return err
		}
		if e.onError != nil {
			e.onError(err)
		} else {
			reportError(err)
		}
		return nil
	}

	e.mu.Lock()
	e.cleanup = next
	e.mu.Unlock()
	return nil
}

// Dispose makes the body a no-op and runs the last cleanup. It is
// idempotent. The underlying derived cell keeps recomputing on source
// changes until the sources themselves are released; a disposed effect
// is retained by its sources, not by the engine.
func (e *Effect) Dispose() {
	if e.disposed.Swap(true) {
		return
	}

	e.mu.Lock()
	cleanup := e.cleanup
	e.cleanup = nil
	e.mu.Unlock()
	if cleanup != nil {
		cleanup()
	}

	announceDispose(e.d.c.cid)
}

// Disposed reports whether Dispose has been called.
func (e *Effect) Disposed() bool {
	return e.disposed.Load()
}

// Err returns the effect's park state error surface: nil when idle or
// parked, never a body error, since those are routed to handlers.
func (e *Effect) Err() error {
	return e.d.c.read().Err
}

// Key returns the name given with EffectKey, empty otherwise.
func (e *Effect) Key() string {
	return e.key
}

// ID returns the effect's identity, as reported to instrumentation.
func (e *Effect) ID() uint64 {
	return e.d.c.cid
}
