// Package devtool exposes a live inspection surface over a reactive graph.
//
// A Registry consumes the creation and disposal hooks and keeps a handle
// table of plain metadata. It never stores the cells themselves, so
// inspecting a graph cannot extend any cell's lifetime. A Server publishes
// the table over HTTP and streams registry events over WebSocket.
package devtool

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/ripple-dev/ripple/pkg/emitter"
	"github.com/ripple-dev/ripple/pkg/ripple"
)

// DefaultRetention is how long disposed entries linger in the table
// before a sweep removes them.
const DefaultRetention = time.Minute

// Entry is one row of the handle table.
type Entry struct {
	ID         uint64    `json:"id"`
	Kind       string    `json:"kind"`
	Key        string    `json:"key,omitempty"`
	WireID     string    `json:"wire_id"`
	CreatedAt  time.Time `json:"created_at"`
	Alive      bool      `json:"alive"`
	DisposedAt time.Time `json:"disposed_at"`
}

// EventType classifies a registry event.
type EventType string

const (
	EventCreated  EventType = "created"
	EventDisposed EventType = "disposed"
	EventSwept    EventType = "swept"
)

// Event is a registry change notification.
type Event struct {
	Type  EventType `json:"type"`
	Entry Entry     `json:"entry"`
	Time  time.Time `json:"time"`
}

// Stats summarizes the handle table.
type Stats struct {
	Atoms    int    `json:"atoms"`
	Deriveds int    `json:"deriveds"`
	Effects  int    `json:"effects"`
	Live     int    `json:"live"`
	Dead     int    `json:"dead"`
	Created  uint64 `json:"created"`
	Disposed uint64 `json:"disposed"`
	Swept    uint64 `json:"swept"`
}

type registryConfig struct {
	retention time.Duration
}

// RegistryOption configures a Registry.
type RegistryOption interface {
	isRegistryOption()
	apply(*registryConfig)
}

type registryOptionFunc func(*registryConfig)

func (registryOptionFunc) isRegistryOption()         {}
func (f registryOptionFunc) apply(c *registryConfig) { f(c) }

// WithRetention sets how long disposed entries stay in the table. With a
// zero retention the next sweep removes every dead entry.
func WithRetention(d time.Duration) RegistryOption {
	return registryOptionFunc(func(c *registryConfig) { c.retention = d })
}

// Registry is a handle table of cells built from creation and disposal
// notifications. Entries carry metadata only; a registry can never keep a
// cell reachable.
type Registry struct {
	mu      sync.Mutex
	entries map[uint64]*Entry

	created  uint64
	disposed uint64
	swept    uint64

	retention time.Duration
	events    *emitter.Emitter[Event]
}

// NewRegistry returns an empty registry. Call Attach to start consuming
// instrumentation hooks.
func NewRegistry(opts ...RegistryOption) *Registry {
	cfg := registryConfig{retention: DefaultRetention}
	for _, opt := range opts {
		opt.apply(&cfg)
	}
	return &Registry{
		entries:   make(map[uint64]*Entry),
		retention: cfg.retention,
		events:    emitter.New[Event](),
	}
}

// Attach subscribes the registry to the cell creation and disposal hooks.
// The returned detach function unhooks it; recorded entries stay.
func (r *Registry) Attach() func() {
	offCreate := ripple.OnCreate(r.record)
	offDispose := ripple.OnDispose(r.dispose)
	return func() {
		offCreate()
		offDispose()
	}
}

// Subscribe registers fn for registry events. Events are delivered after
// the table change they describe is visible.
func (r *Registry) Subscribe(fn func(Event)) func() {
	return r.events.Subscribe(fn)
}

func (r *Registry) record(info ripple.CellInfo) {
	now := time.Now()
	ent := Entry{
		ID:        info.ID,
		Kind:      info.Kind.String(),
		Key:       info.Key,
		WireID:    WireID(info.Kind.String(), info.Key, info.ID),
		CreatedAt: now,
		Alive:     true,
	}

	r.mu.Lock()
	r.entries[info.ID] = &ent
	r.created++
	snap := ent
	r.mu.Unlock()

	r.events.Emit(Event{Type: EventCreated, Entry: snap, Time: now})
}

func (r *Registry) dispose(id uint64) {
	now := time.Now()

	r.mu.Lock()
	ent, ok := r.entries[id]
	if !ok || !ent.Alive {
		r.mu.Unlock()
		return
	}
	ent.Alive = false
	ent.DisposedAt = now
	r.disposed++
	snap := *ent
	swept := r.sweepLocked(now, id)
	r.mu.Unlock()

	r.events.Emit(Event{Type: EventDisposed, Entry: snap, Time: now})
	for _, e := range swept {
		r.events.Emit(Event{Type: EventSwept, Entry: e, Time: now})
	}
}

// Sweep removes every disposed entry older than the retention window and
// returns how many were dropped.
func (r *Registry) Sweep() int {
	now := time.Now()

	r.mu.Lock()
	swept := r.sweepLocked(now, 0)
	r.mu.Unlock()

	for _, e := range swept {
		r.events.Emit(Event{Type: EventSwept, Entry: e, Time: now})
	}
	return len(swept)
}

// sweepLocked drops dead entries past the retention window, skipping the
// entry with the given id so a freshly disposed cell survives its own
// sweep pass. Cell IDs start at one, so zero skips nothing.
func (r *Registry) sweepLocked(now time.Time, skip uint64) []Entry {
	var out []Entry
	for id, ent := range r.entries {
		if id == skip || ent.Alive {
			continue
		}
		if now.Sub(ent.DisposedAt) < r.retention {
			continue
		}
		out = append(out, *ent)
		delete(r.entries, id)
		r.swept++
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Snapshot returns the current table sorted by cell ID.
func (r *Registry) Snapshot() []Entry {
	r.mu.Lock()
	out := make([]Entry, 0, len(r.entries))
	for _, ent := range r.entries {
		out = append(out, *ent)
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Get returns the entry for a cell ID.
func (r *Registry) Get(id uint64) (Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ent, ok := r.entries[id]
	if !ok {
		return Entry{}, false
	}
	return *ent, true
}

// Len returns the number of entries in the table, tombstones included.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Stats summarizes the table and the lifetime counters.
func (r *Registry) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	st := Stats{
		Created:  r.created,
		Disposed: r.disposed,
		Swept:    r.swept,
	}
	for _, ent := range r.entries {
		switch ent.Kind {
		case "atom":
			st.Atoms++
		case "derived":
			st.Deriveds++
		case "effect":
			st.Effects++
		}
		if ent.Alive {
			st.Live++
		} else {
			st.Dead++
		}
	}
	return st
}

// WireID derives a stable textual identity for a cell. Keyed cells hash
// kind and key, so a logical cell keeps its wire ID across processes;
// unkeyed cells fall back to hashing the numeric handle.
func WireID(kind, key string, id uint64) string {
	if key != "" {
		return fmt.Sprintf("%016x", xxhash.Sum64String(kind+":"+key))
	}
	return fmt.Sprintf("%016x", xxhash.Sum64String(fmt.Sprintf("%s:#%d", kind, id)))
}
