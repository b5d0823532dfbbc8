package ripple

import (
	"sync"

	"github.com/ripple-dev/ripple/pkg/emitter"
)

// CellKind classifies a cell for instrumentation callbacks.
type CellKind int

const (
	KindAtom CellKind = iota
	KindDerived
	KindEffect
)

func (k CellKind) String() string {
	switch k {
	case KindAtom:
		return "atom"
	case KindDerived:
		return "derived"
	case KindEffect:
		return "effect"
	default:
		return "unknown"
	}
}

// CellInfo describes a cell at creation time. Callbacks receive IDs and
// metadata only, never the cell itself, so instrumentation cannot keep
// state alive or mutate it.
type CellInfo struct {
	Kind CellKind
	Key  string
	ID   uint64
}

// FlushStats summarizes one completed scheduler flush.
type FlushStats struct {
	// Passes is the number of drain passes the flush took. Cascades
	// that enqueue further work during delivery add passes.
	Passes int
	// Delivered counts listener invocations across all passes.
	Delivered int
}

type hookEntry[T any] struct {
	id uint64
	fn func(T)
}

var (
	instMu       sync.Mutex
	createHooks  []hookEntry[CellInfo]
	disposeHooks []hookEntry[uint64]
	flushHooks   []hookEntry[FlushStats]
)

func addHook[T any](list *[]hookEntry[T], fn func(T)) func() {
	instMu.Lock()
	id := emitter.NextID()
	*list = append(*list, hookEntry[T]{id: id, fn: fn})
	instMu.Unlock()
	return func() {
		instMu.Lock()
		defer instMu.Unlock()
		for i, h := range *list {
			if h.id == id {
				*list = append((*list)[:i], (*list)[i+1:]...)
				return
			}
		}
	}
}

func announce[T any](list *[]hookEntry[T], v T) {
	instMu.Lock()
	if len(*list) == 0 {
		instMu.Unlock()
		return
	}
	hooks := make([]hookEntry[T], len(*list))
	copy(hooks, *list)
	instMu.Unlock()
	for _, h := range hooks {
		h.fn(v)
	}
}

// OnCreate registers fn to run whenever an atom, derived atom or effect
// is constructed. The returned function removes the registration.
func OnCreate(fn func(CellInfo)) func() {
	return addHook(&createHooks, fn)
}

// OnDispose registers fn to run when an effect is disposed, identified
// by the cell ID it reported at creation.
func OnDispose(fn func(id uint64)) func() {
	return addHook(&disposeHooks, fn)
}

// OnFlush registers fn to run after each scheduler flush completes.
func OnFlush(fn func(FlushStats)) func() {
	return addHook(&flushHooks, fn)
}

func announceCreate(info CellInfo)   { announce(&createHooks, info) }
func announceDispose(id uint64)      { announce(&disposeHooks, id) }
func announceFlush(stats FlushStats) { announce(&flushHooks, stats) }
