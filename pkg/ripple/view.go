package ripple

import "context"

// Readable is the read/subscribe surface shared by atoms, derived atoms
// and views. Collaborators that should observe state without being able
// to write it take a Readable, or a View when the concrete type must
// not be downcast to its writable form.
type Readable[T any] interface {
	Value() (T, bool)
	Use() (T, error)
	Peek() Snapshot[T]
	Loading() bool
	Err() error
	Stale() bool
	Version() uint64
	On(fn func()) func()
	Observe(l Listener) func()
	Watch(fn func(T)) func()
	Wait(ctx context.Context) (T, error)
	Key() string
	ID() uint64
}

var (
	_ Readable[int] = (*Atom[int])(nil)
	_ Readable[int] = (*Derived[int])(nil)
	_ Readable[int] = (*View[int])(nil)
)

// View wraps a cell's read surface while omitting Set, Update and
// Reset, for handing state out without granting write access.
type View[T any] struct {
	src Readable[T]
}

// NewView returns a read-only projection of src.
func NewView[T any](src Readable[T]) *View[T] {
	return &View[T]{src: src}
}

func (v *View[T]) Value() (T, bool)  { return v.src.Value() }
func (v *View[T]) Use() (T, error)   { return v.src.Use() }
func (v *View[T]) Peek() Snapshot[T] { return v.src.Peek() }
func (v *View[T]) Loading() bool     { return v.src.Loading() }
func (v *View[T]) Err() error        { return v.src.Err() }
func (v *View[T]) Stale() bool       { return v.src.Stale() }
func (v *View[T]) Version() uint64   { return v.src.Version() }
func (v *View[T]) Key() string       { return v.src.Key() }
func (v *View[T]) ID() uint64        { return v.src.ID() }
func (v *View[T]) On(fn func()) func() {
	return v.src.On(fn)
}
func (v *View[T]) Observe(l Listener) func() {
	return v.src.Observe(l)
}
func (v *View[T]) Watch(fn func(T)) func() {
	return v.src.Watch(fn)
}
func (v *View[T]) Wait(ctx context.Context) (T, error) {
	return v.src.Wait(ctx)
}
