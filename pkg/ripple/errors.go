package ripple

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ripple-dev/ripple/pkg/future"
)

// ErrFlushOverrun is reported through the module error handler when a
// batch flush keeps producing new notifications for more passes than
// MaxFlushPasses allows. It usually means a listener writes to a cell
// that notifies the same listener again, without ever converging.
var ErrFlushOverrun = errors.New("ripple: batch flush passes exhausted")

// Pending is the control transfer used by the suspense protocol. A
// tracked getter returns it when its cell is still loading; the carried
// Await handle settles when the value (or its failure) is available.
//
// Pending must not escape past a derived or effect boundary: the engine
// consumes it there and parks the cell. Application code only ever
// returns it upward, unmodified, from a compute or effect body.
type Pending struct {
	Await future.Awaitable
}

func (p *Pending) Error() string {
	return "ripple: value pending"
}

// IsPending reports whether err is a suspense control transfer.
func IsPending(err error) bool {
	var p *Pending
	return errors.As(err, &p)
}

// AsPending extracts the control transfer from err, if it is one.
func AsPending(err error) (*Pending, bool) {
	var p *Pending
	if errors.As(err, &p) {
		return p, true
	}
	return nil, false
}

// neverSettles backs Suspend. It is shared because it has no state worth
// distinguishing: it only parks a computation until a dependency changes.
var neverSettles = future.New[struct{}]()

// Suspend returns a Pending whose handle never settles. A computation
// that returns it parks until one of the sources it already read
// notifies, which makes it the standard guard clause for values that are
// not usable yet:
//
//	id, err := session.Use()
//	if err != nil {
//	    return nil, err
//	}
//	if id == "" {
//	    return nil, ripple.Suspend()
//	}
func Suspend() error {
	return &Pending{Await: neverSettles}
}

// AggregateError is raised by Any when every getter failed. Keys holds
// the getter keys in deterministic iteration order (positional getters
// use their decimal index) and Errors maps each key to its failure.
type AggregateError struct {
	Keys   []string
	Errors map[string]error
}

func (e *AggregateError) Error() string {
	return fmt.Sprintf("ripple: all %d sources failed", len(e.Keys))
}

// Unwrap returns the per-key errors in Keys order, supporting
// errors.Is and errors.As across the aggregate.
func (e *AggregateError) Unwrap() []error {
	errs := make([]error, 0, len(e.Keys))
	for _, k := range e.Keys {
		errs = append(errs, e.Errors[k])
	}
	return errs
}

// ByKey returns the failure recorded for key, nil if the key is absent.
func (e *AggregateError) ByKey(key string) error {
	return e.Errors[key]
}

var (
	handlerMu    sync.RWMutex
	errorHandler func(error)
)

// SetErrorHandler installs the module-level error handler. It receives
// effect body errors that no per-effect handler claimed and internal
// faults such as ErrFlushOverrun. A nil handler drops them.
func SetErrorHandler(fn func(error)) {
	handlerMu.Lock()
	errorHandler = fn
	handlerMu.Unlock()
}

// reportError hands err to the module error handler, if any.
func reportError(err error) {
	handlerMu.RLock()
	fn := errorHandler
	handlerMu.RUnlock()
	if fn != nil {
		fn(err)
	}
}
