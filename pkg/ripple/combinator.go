package ripple

import (
	"sort"
	"strconv"
	"sync"

	"github.com/ripple-dev/ripple/pkg/future"
)

// Getter is a tracked suspense read, usually an atom's or derived
// atom's Use method. It returns the value, a *Pending error, or the
// stored failure.
type Getter[T any] func() (T, error)

// Settlement is one getter's final outcome as reported by Settled.
type Settlement[T any] struct {
	Value T
	Err   error
}

// Resolved reports whether the settlement carries a value.
func (s Settlement[T]) Resolved() bool {
	return s.Err == nil
}

// probe is one getter's classified outcome for the current read.
type probe[T any] struct {
	value T
	err   error
	pend  *Pending
}

// probeAll invokes every getter exactly once, in iteration order, and
// classifies each outcome. Every getter is probed even after a failure
// so dependency registration covers the full set; classification
// priority is decided afterwards.
func probeAll[T any](getters []Getter[T]) []probe[T] {
	ps := make([]probe[T], len(getters))
	for i, g := range getters {
		v, err := g()
		if err == nil {
			ps[i] = probe[T]{value: v}
			continue
		}
		if p, ok := AsPending(err); ok {
			ps[i] = probe[T]{pend: p}
			continue
		}
		ps[i] = probe[T]{err: err}
	}
	return ps
}

func indexKeys(n int) []string {
	keys := make([]string, n)
	for i := range keys {
		keys[i] = strconv.Itoa(i)
	}
	return keys
}

func sortedKeys[T any](getters map[string]Getter[T]) []string {
	keys := make([]string, 0, len(getters))
	for k := range getters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// probeKeyed probes a keyed getter set in ascending key order, which is
// the deterministic iteration order for every keyed combinator.
func probeKeyed[T any](getters map[string]Getter[T]) ([]string, []probe[T]) {
	keys := sortedKeys(getters)
	gs := make([]Getter[T], len(keys))
	for i, k := range keys {
		gs[i] = getters[k]
	}
	return keys, probeAll(gs)
}

// All returns every getter's value in order. The first failure in
// iteration order is returned immediately, before any pending wait;
// otherwise a *Pending combining every pending handle is returned; only
// when everything resolved does All return the values.
func All[T any](getters ...Getter[T]) ([]T, error) {
	values, err := allProbed(probeAll(getters))
	return values, err
}

// AllKeyed is All over a keyed getter set, iterated in ascending key
// order.
func AllKeyed[T any](getters map[string]Getter[T]) (map[string]T, error) {
	keys, ps := probeKeyed(getters)
	values, err := allProbed(ps)
	if err != nil {
		return nil, err
	}
	out := make(map[string]T, len(keys))
	for i, k := range keys {
		out[k] = values[i]
	}
	return out, nil
}

func allProbed[T any](ps []probe[T]) ([]T, error) {
	var waits []future.Awaitable
	for _, p := range ps {
		if p.err != nil {
			return nil, p.err
		}
		if p.pend != nil {
			waits = append(waits, p.pend.Await)
		}
	}
	if len(waits) > 0 {
		return nil, &Pending{Await: future.AfterAll(waits...)}
	}
	out := make([]T, len(ps))
	for i, p := range ps {
		out[i] = p.value
	}
	return out, nil
}

// Race returns the first resolved value in iteration order. With none
// resolved, a failure that precedes every pending getter is returned;
// otherwise Race reports pending on the first of the pending handles.
func Race[T any](getters ...Getter[T]) (T, error) {
	return raceProbed(probeAll(getters))
}

// RaceKeyed is Race over a keyed getter set, iterated in ascending key
// order.
func RaceKeyed[T any](getters map[string]Getter[T]) (T, error) {
	_, ps := probeKeyed(getters)
	return raceProbed(ps)
}

func raceProbed[T any](ps []probe[T]) (T, error) {
	var zero T
	for _, p := range ps {
		if p.err == nil && p.pend == nil {
			return p.value, nil
		}
	}
	for _, p := range ps {
		if p.err != nil {
			return zero, p.err
		}
		if p.pend != nil {
			break
		}
	}
	var waits []future.Awaitable
	for _, p := range ps {
		if p.pend != nil {
			waits = append(waits, p.pend.Await)
		}
	}
	return zero, &Pending{Await: future.AfterFirst(waits...)}
}

// Any returns the first resolved value in iteration order. When every
// getter failed it returns an *AggregateError carrying each failure
// under its key; with failures and pendings mixed it reports pending on
// a handle that resolves with the first pending success and rejects
// with the full aggregate if every pending fill also fails.
func Any[T any](getters ...Getter[T]) (T, error) {
	return anyProbed(probeAll(getters), indexKeys(len(getters)))
}

// AnyKeyed is Any over a keyed getter set, iterated in ascending key
// order. Positional Any keys the aggregate by decimal index.
func AnyKeyed[T any](getters map[string]Getter[T]) (T, error) {
	keys, ps := probeKeyed(getters)
	return anyProbed(ps, keys)
}

func anyProbed[T any](ps []probe[T], keys []string) (T, error) {
	var zero T
	for _, p := range ps {
		if p.err == nil && p.pend == nil {
			return p.value, nil
		}
	}

	errs := make(map[string]error, len(ps))
	var pends []future.Awaitable
	var pendKeys []string
	for i, p := range ps {
		if p.err != nil {
			errs[keys[i]] = p.err
			continue
		}
		pends = append(pends, p.pend.Await)
		pendKeys = append(pendKeys, keys[i])
	}

	if len(pends) == 0 {
		return zero, &AggregateError{Keys: keys, Errors: errs}
	}
	return zero, &Pending{Await: anyAwait(pends, pendKeys, errs, keys)}
}

// anyAwait waits for the first pending success. If every pending fill
// fails too, it rejects with the aggregate of all failures so the
// handle's observers see the same error a re-probe would produce.
func anyAwait(pends []future.Awaitable, pendKeys []string, seeded map[string]error, allKeys []string) future.Awaitable {
	f := future.New[struct{}]()

	var mu sync.Mutex
	errs := make(map[string]error, len(allKeys))
	for k, e := range seeded {
		errs[k] = e
	}
	remaining := len(pends)

	for i, w := range pends {
		key := pendKeys[i]
		w.OnDone(func(err error) {
			if err == nil {
				f.Resolve(struct{}{})
				return
			}
			mu.Lock()
			errs[key] = err
			remaining--
			var agg *AggregateError
			if remaining == 0 {
				agg = &AggregateError{Keys: allKeys, Errors: errs}
			}
			mu.Unlock()
			if agg != nil {
				f.Reject(agg)
			}
		})
	}
	return f
}

// Settled reports every getter's outcome. While any getter is pending
// it returns a *Pending combining every pending handle; once all have
// settled it returns one Settlement per getter and never an error of
// its own.
func Settled[T any](getters ...Getter[T]) ([]Settlement[T], error) {
	return settledProbed(probeAll(getters))
}

// SettledKeyed is Settled over a keyed getter set.
func SettledKeyed[T any](getters map[string]Getter[T]) (map[string]Settlement[T], error) {
	keys, ps := probeKeyed(getters)
	settled, err := settledProbed(ps)
	if err != nil {
		return nil, err
	}
	out := make(map[string]Settlement[T], len(keys))
	for i, k := range keys {
		out[k] = settled[i]
	}
	return out, nil
}

func settledProbed[T any](ps []probe[T]) ([]Settlement[T], error) {
	var waits []future.Awaitable
	for _, p := range ps {
		if p.pend != nil {
			waits = append(waits, p.pend.Await)
		}
	}
	if len(waits) > 0 {
		return nil, &Pending{Await: future.AfterSettled(waits...)}
	}
	out := make([]Settlement[T], len(ps))
	for i, p := range ps {
		out[i] = Settlement[T]{Value: p.value, Err: p.err}
	}
	return out, nil
}
