package ripple

import "fmt"

// Debug enables development logging for the package. When true, named
// batches log their boundaries. Set it at startup; it is not meant to be
// toggled while the engine is running.
var Debug bool

// MaxFlushPasses bounds how many drain passes one flush may take before
// the scheduler gives up and reports ErrFlushOverrun. Each pass exists
// because a listener in the previous pass performed more writes; an
// application that legitimately cascades deeper than this is almost
// certainly ping-ponging two cells.
var MaxFlushPasses = 1000

// Batch groups writes so every affected listener fires once. Writes
// performed inside fn queue their notifications, deduplicated by
// listener identity; when the outermost Batch returns, the queue drains
// in a loop, and writes performed by the notified listeners coalesce
// into the same drain.
//
// Batches nest: inner calls only adjust the depth counter, and the drain
// happens once at the outermost exit. A panic inside fn propagates to
// the caller after the queued notifications for writes that did happen
// have drained.
//
//	ripple.Batch(func() {
//	    first.Set("Ada")
//	    last.Set("Lovelace")
//	    age.Set(36)
//	})
//	// a listener observing all three cells fired once
func Batch(fn func()) {
	s := currentSlot()
	s.batchDepth++
	defer func() {
		s.batchDepth--
		if s.batchDepth == 0 {
			s.flush()
		}
	}()
	fn()
}

// BatchValue runs fn inside a batch and returns its result.
func BatchValue[T any](fn func() T) T {
	var out T
	Batch(func() {
		out = fn()
	})
	return out
}

// BatchNamed runs fn as a named batch for debugging. The name is logged
// in debug mode so cascades can be attributed to the operation that
// started them.
func BatchNamed(name string, fn func()) {
	if Debug {
		fmt.Printf("[batch] %s start\n", name)
		defer fmt.Printf("[batch] %s end\n", name)
	}
	Batch(fn)
}
