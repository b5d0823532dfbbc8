package ripple

// cellConfig collects construction options shared by atoms and derived
// atoms.
type cellConfig[T any] struct {
	key      string
	equals   func(T, T) bool
	fallback *T
}

// Option configures an atom or derived atom at construction time.
type Option[T any] interface {
	isOption()
	apply(*cellConfig[T])
}

type optionFunc[T any] func(*cellConfig[T])

func (f optionFunc[T]) isOption()              {}
func (f optionFunc[T]) apply(c *cellConfig[T]) { f(c) }

// WithEquals sets the equality function used to suppress redundant
// notifications. The default compares common comparable types with ==
// and falls back to reflect.DeepEqual.
func WithEquals[T any](fn func(T, T) bool) Option[T] {
	return optionFunc[T](func(c *cellConfig[T]) {
		c.equals = fn
	})
}

// WithFallback puts the atom in fallback mode: while loading or failed,
// reads expose the last resolved value, or v before any value resolved,
// and report stale instead of no value. Fallback mode has no effect on
// derived atoms.
func WithFallback[T any](v T) Option[T] {
	return optionFunc[T](func(c *cellConfig[T]) {
		c.fallback = &v
	})
}

// WithKey names the cell for instrumentation, inspection and
// persistence. Keys are not required to be unique, but collaborators
// that store state by key work best when they are.
func WithKey[T any](key string) Option[T] {
	return optionFunc[T](func(c *cellConfig[T]) {
		c.key = key
	})
}

func buildConfig[T any](opts []Option[T]) cellConfig[T] {
	var cfg cellConfig[T]
	for _, opt := range opts {
		opt.apply(&cfg)
	}
	return cfg
}
