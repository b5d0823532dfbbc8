package ripple

import "github.com/ripple-dev/ripple/pkg/emitter"

// Listener is anything that can be notified when a cell changes.
// Derived atoms and effects implement it internally; applications can
// implement it, or wrap a function with NewListener, to observe many
// cells under one identity.
type Listener interface {
	// Notify tells the listener that one of its cells has changed.
	// The listener re-reads whatever state it cares about.
	Notify()

	// ID returns a stable identity for this listener. The scheduler
	// deduplicates by it, so one listener observed on many cells fires
	// once per batch.
	ID() uint64
}

// Cleanup is returned by effect bodies to release whatever the run
// acquired. It is called before the next run and once more at dispose.
type Cleanup func()

type funcListener struct {
	id uint64
	fn func()
}

func (l *funcListener) Notify() { l.fn() }
func (l *funcListener) ID() uint64 {
	return l.id
}

// NewListener wraps fn with a fresh stable identity. Observing the
// returned listener on several cells delivers a single Notify per batch
// no matter how many of those cells changed.
func NewListener(fn func()) Listener {
	return &funcListener{id: emitter.NextID(), fn: fn}
}
