// Package registry maps type discriminators to constructors.
package registry

import "errors"

var ErrDuplicate = errors.New("type already registered")

// Registry is populated during package initialization and read-only afterwards.
type Registry[F any] struct {
	entries  map[string]F
	fallback F
}

func New[F any]() *Registry[F] {
	return &Registry[F]{entries: make(map[string]F)}
}

// Register binds a discriminator to a constructor.
func (r *Registry[F]) Register(name string, f F) error {
	if _, ok := r.entries[name]; ok {
		return ErrDuplicate
	}
	r.entries[name] = f
	return nil
}

// MustRegister panics on duplicates.
func (r *Registry[F]) MustRegister(name string, f F) {
	if err := r.Register(name, f); err != nil {
		panic(name + ": " + err.Error())
	}
}

// Fallback sets the constructor used for unknown discriminators.
func (r *Registry[F]) Fallback(f F) {
	r.fallback = f
}

// Lookup returns the constructor for name, or the fallback. The second result
// reports whether name was registered explicitly.
func (r *Registry[F]) Lookup(name string) (F, bool) {
	if f, ok := r.entries[name]; ok {
		return f, true
	}
	return r.fallback, false
}
