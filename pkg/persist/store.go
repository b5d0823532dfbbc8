// Package persist snapshots keyed cells into pluggable storage.
//
// A Snapshotter consumes only the public read and subscribe surface, so
// it works with atoms, deriveds and views alike, and the reactive core
// never learns that persistence exists. Writes are debounced per key:
// rapid changes coalesce into at most one store write per window.
package persist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ripple-dev/ripple/pkg/ripple"
)

// ErrNotFound is returned when a snapshot doesn't exist.
var ErrNotFound = errors.New("persist: snapshot not found")

// ErrUnkeyed is returned when a cell without a key is tracked or
// restored. Snapshots are addressed by cell key.
var ErrUnkeyed = errors.New("persist: cell has no key")

// Store is the interface for snapshot storage backends.
// Implement this interface to use S3, a database, or other storage.
type Store interface {
	// Put stores the serialized snapshot under the given key.
	Put(ctx context.Context, key string, data []byte) error

	// Get returns the serialized snapshot for the key.
	// Returns ErrNotFound when no snapshot exists.
	Get(ctx context.Context, key string) ([]byte, error)

	// Delete removes the snapshot for the key.
	Delete(ctx context.Context, key string) error
}

// MemoryStore keeps snapshots in memory. It backs tests and is the
// reference Store implementation.
type MemoryStore struct {
	mu     sync.Mutex
	data   map[string][]byte
	writes int
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

func (m *MemoryStore) Put(_ context.Context, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	m.data[key] = cp
	m.writes++
	return nil
}

func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	return cp, nil
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// Len returns the number of stored snapshots.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.data)
}

// Writes returns the number of Put calls the store has served.
func (m *MemoryStore) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

// SnapshotterConfig configures a Snapshotter.
type SnapshotterConfig struct {
	// Debounce is the per-key write window (default: 250ms).
	Debounce time.Duration

	// WriteTimeout bounds each store write (default: 5s).
	WriteTimeout time.Duration

	// Logger receives write and marshal errors. Defaults to
	// slog.Default().
	Logger *slog.Logger
}

// DefaultSnapshotterConfig returns the default configuration.
func DefaultSnapshotterConfig() *SnapshotterConfig {
	return &SnapshotterConfig{
		Debounce:     250 * time.Millisecond,
		WriteTimeout: 5 * time.Second,
	}
}

// Snapshotter watches readable cells and writes their resolved values to
// a store as JSON, debounced per key.
type Snapshotter struct {
	store  Store
	config *SnapshotterConfig
	logger *slog.Logger

	mu     sync.Mutex
	offs   []func()
	timers map[string]*time.Timer
	latest map[string][]byte
	closed bool
}

// NewSnapshotter creates a snapshotter over the given store.
func NewSnapshotter(store Store, config *SnapshotterConfig) *Snapshotter {
	if config == nil {
		config = DefaultSnapshotterConfig()
	} else {
		defaults := DefaultSnapshotterConfig()
		if config.Debounce == 0 {
			config.Debounce = defaults.Debounce
		}
		if config.WriteTimeout == 0 {
			config.WriteTimeout = defaults.WriteTimeout
		}
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Snapshotter{
		store:  store,
		config: config,
		logger: logger.With("component", "persist"),
		timers: make(map[string]*time.Timer),
		latest: make(map[string][]byte),
	}
}

// Track subscribes the snapshotter to src. Every resolved value is
// serialized and scheduled for writing under the cell's key; a cell that
// is already resolved seeds the first window. The returned function
// stops tracking.
func Track[T any](s *Snapshotter, src ripple.Readable[T]) (func(), error) {
	key := src.Key()
	if key == "" {
		return nil, ErrUnkeyed
	}

	if snap := src.Peek(); snap.Ok() {
		s.capture(key, snap.Value)
	}

	off := src.Watch(func(v T) {
		s.capture(key, v)
	})

	s.mu.Lock()
	s.offs = append(s.offs, off)
	s.mu.Unlock()

	return off, nil
}

func (s *Snapshotter) capture(key string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		s.logger.Error("snapshot marshal error", "key", key, "error", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.latest[key] = data
	if _, open := s.timers[key]; open {
		return
	}
	s.timers[key] = time.AfterFunc(s.config.Debounce, func() { s.expire(key) })
}

// expire closes the window for key and writes its latest payload.
func (s *Snapshotter) expire(key string) {
	s.mu.Lock()
	data := s.latest[key]
	delete(s.timers, key)
	delete(s.latest, key)
	closed := s.closed
	s.mu.Unlock()

	if closed || data == nil {
		return
	}
	s.write(key, data)
}

func (s *Snapshotter) write(key string, data []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.WriteTimeout)
	defer cancel()

	if err := s.store.Put(ctx, key, data); err != nil {
		s.logger.Error("snapshot write error", "key", key, "error", err)
	}
}

// Flush writes every pending snapshot immediately, cancelling the open
// windows.
func (s *Snapshotter) Flush() {
	s.mu.Lock()
	pending := make(map[string][]byte, len(s.latest))
	for key, data := range s.latest {
		pending[key] = data
		if timer, ok := s.timers[key]; ok {
			timer.Stop()
			delete(s.timers, key)
		}
		delete(s.latest, key)
	}
	s.mu.Unlock()

	for key, data := range pending {
		s.write(key, data)
	}
}

// Close stops tracking, flushes pending snapshots and rejects further
// captures.
func (s *Snapshotter) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	offs := s.offs
	s.offs = nil
	s.mu.Unlock()

	for _, off := range offs {
		off()
	}
	s.Flush()

	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

// Restore reads the snapshot for the atom's key and seeds the atom with
// it. A missing snapshot leaves the atom untouched.
func Restore[T any](ctx context.Context, store Store, a *ripple.Atom[T]) error {
	key := a.Key()
	if key == "" {
		return ErrUnkeyed
	}

	data, err := store.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("persist: decode %q: %w", key, err)
	}
	a.Set(v)
	return nil
}
