package ripple

import (
	"sync"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/petermattis/goid"
)

// source is anything a tracked computation can depend on: it has an
// identity and lets a listener observe its change channel.
type source interface {
	id() uint64
	observe(l Listener) func()
}

// collector accumulates the sources read during one tracked computation.
// order keeps first-read order so reconciliation subscribes new
// dependencies deterministically.
type collector struct {
	ids     mapset.Set[uint64]
	sources map[uint64]source
	order   []uint64
}

func newCollector() *collector {
	return &collector{
		ids:     mapset.NewThreadUnsafeSet[uint64](),
		sources: make(map[uint64]source),
	}
}

func (c *collector) add(src source) {
	id := src.id()
	if c.ids.Add(id) {
		c.sources[id] = src
		c.order = append(c.order, id)
	}
}

// queued is one pending listener invocation inside a batch.
type queued struct {
	id uint64
	fn func()
}

// slot holds the reactive state for one goroutine: the active dependency
// collector and the batch scheduler. Each goroutine has its own slot so
// concurrent computations and batches never share tracking state.
type slot struct {
	// collector receives source reads while a tracked computation runs.
	// nil means reads are untracked.
	collector *collector

	// batchDepth counts nested Batch calls. While > 0, cell
	// notifications queue instead of firing immediately.
	batchDepth int

	// pending holds queued notifications in first-enqueue order,
	// deduplicated by listener identity; a re-enqueue keeps the original
	// position but replaces the invocation so the listener sees the
	// freshest payload.
	pending    []queued
	pendingIdx map[uint64]int
}

// slots stores per-goroutine reactive state, keyed by goroutine ID.
var slots sync.Map

// currentSlot returns the slot for the calling goroutine, creating it on
// first use. Slots are small and are reused when goroutine IDs are.
func currentSlot() *slot {
	gid := goid.Get()
	if s, ok := slots.Load(gid); ok {
		return s.(*slot)
	}
	s := &slot{}
	slots.Store(gid, s)
	return s
}

// record registers src with the active collector, if any.
func record(src source) {
	s := currentSlot()
	if s.collector != nil {
		s.collector.add(src)
	}
}

// track runs fn with c collecting every source read, restoring the
// previous collector on the way out so nested computations compose.
func track(c *collector, fn func()) {
	s := currentSlot()
	old := s.collector
	s.collector = c
	defer func() { s.collector = old }()
	fn()
}

// Untracked runs fn with dependency collection suspended. Reads inside
// fn do not subscribe the current computation.
func Untracked(fn func()) {
	s := currentSlot()
	old := s.collector
	s.collector = nil
	defer func() { s.collector = old }()
	fn()
}

// dispatch routes one listener invocation through the scheduler. Outside
// a batch it runs inline; inside, it queues deduplicated by identity and
// the outermost Batch drains the queue.
func dispatch(id uint64, fn func()) {
	s := currentSlot()
	if s.batchDepth > 0 {
		s.enqueue(id, fn)
		return
	}
	fn()
}

func (s *slot) enqueue(id uint64, fn func()) {
	if i, ok := s.pendingIdx[id]; ok {
		s.pending[i].fn = fn
		return
	}
	if s.pendingIdx == nil {
		s.pendingIdx = make(map[uint64]int)
	}
	s.pendingIdx[id] = len(s.pending)
	s.pending = append(s.pending, queued{id: id, fn: fn})
}

// flush drains the pending queue until no listener enqueues further
// work. The batch depth stays elevated during the drain so cascading
// writes coalesce into the next pass instead of firing inline.
func (s *slot) flush() {
	s.batchDepth++
	defer func() { s.batchDepth-- }()

	passes := 0
	delivered := 0
	for len(s.pending) > 0 {
		if passes >= MaxFlushPasses {
			s.pending = nil
			s.pendingIdx = nil
			reportError(ErrFlushOverrun)
			return
		}
		passes++

		batch := s.pending
		s.pending = nil
		s.pendingIdx = nil
		for _, q := range batch {
			q.fn()
		}
		delivered += len(batch)
	}

	if passes > 0 {
		announceFlush(FlushStats{Passes: passes, Delivered: delivered})
	}
}
