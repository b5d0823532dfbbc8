// Package ripple provides a reactive state-propagation core.
//
// State lives in atoms. A mutable Atom holds a value, a pending future, or
// an error; a Derived atom computes its value from other atoms and tracks,
// per run, exactly which sources it read. Effects re-run a callback when
// their tracked inputs change. Every cell is versioned so that slow
// asynchronous fills can be detected as stale and discarded instead of
// clobbering newer writes.
//
// # Reading
//
// Plain reads return the current state without blocking:
//
//	count := ripple.New(0)
//	v, ok := count.Value()   // ok is false while loading or failed
//	count.Loading()          // true while a future fill is in flight
//	count.Err()              // stored error, nil otherwise
//
// Tracked reads drive derived computations. Use returns the value or an
// error: a *Pending error means the source is still loading and carries a
// handle to the eventual value; any other error is the source's stored
// failure. Derived computations return these errors as-is and the engine
// parks or fails the cell accordingly:
//
//	doubled := ripple.Derive(func() (int, error) {
//	    v, err := count.Use()
//	    if err != nil {
//	        return 0, err
//	    }
//	    return v * 2, nil
//	})
//
// # Batching
//
// Writes inside Batch coalesce: each listener observed by any number of
// written cells fires once, after the body returns, including cascades
// the flush itself produces:
//
//	ripple.Batch(func() {
//	    first.Set("Ada")
//	    last.Set("Lovelace")
//	})
//
// # Combinators
//
// All, Race, Any and Settled classify a set of tracked getters the way
// their promise namesakes would, but synchronously: they either return,
// fail, or report pending with a combined wait handle. They are meant to
// be called from inside a derived or effect body.
//
// # Concurrency
//
// The engine is a cooperative, single-turn design: writes and the
// notifications they trigger run synchronously on the calling goroutine,
// and only future continuations run later. All primitives are still safe
// to touch from multiple goroutines; tracking and batch state are kept
// per goroutine.
package ripple
