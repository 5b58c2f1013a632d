// Package pool provides typed object pools for search scratch state.
// Uses sync.Pool for automatic memory reuse between searches.
package pool

import "sync"

// Pool is a typed sync.Pool. Values are reset before they are returned to
// the pool, so Get always yields a clean value.
type Pool[T any] struct {
	p     sync.Pool
	reset func(T)
}

// New creates a pool. newFn allocates a value when the pool is empty and
// reset, if not nil, clears a value on Put.
func New[T any](newFn func() T, reset func(T)) *Pool[T] {
	return &Pool[T]{
		p:     sync.Pool{New: func() any { return newFn() }},
		reset: reset,
	}
}

// Get retrieves a value from the pool.
func (p *Pool[T]) Get() T {
	return p.p.Get().(T)
}

// Put returns v to the pool for reuse.
func (p *Pool[T]) Put(v T) {
	if p.reset != nil {
		p.reset(v)
	}
	p.p.Put(v)
}
