// Package event provides an ordered, concurrency-safe listener registry
// shared by the table cache, subscription handles, and reducer flows so
// that callbacks fire in a single consistent order regardless of which
// subsystem raised the event.
package event

import (
	"sync"
	"sync/atomic"
)

// listener pairs a registered callback with the id used to remove it.
type listener[F any] struct {
	id int
	fn F
}

// Registry is a copy-on-write ordered list of callbacks of type F. Adding
// and removing listeners never blocks a concurrent Snapshot: Snapshot
// reads a single atomic pointer, and callers invoke the returned callbacks
// outside any lock, so a listener added mid-pass cannot affect that pass.
type Registry[F any] struct {
	mu        sync.Mutex
	listeners atomic.Pointer[[]listener[F]]
	nextID    int
}

// NewRegistry returns an empty Registry.
func NewRegistry[F any]() *Registry[F] {
	r := &Registry[F]{}
	empty := make([]listener[F], 0)
	r.listeners.Store(&empty)
	return r
}

// Disposer removes the listener it was returned for. Calling it more than
// once is a no-op.
type Disposer func()

// Add registers fn and returns a Disposer that removes it. Listeners fire
// in the order they were added.
func (r *Registry[F]) Add(fn F) Disposer {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.nextID
	r.nextID++

	old := *r.listeners.Load()
	next := make([]listener[F], len(old)+1)
	copy(next, old)
	next[len(old)] = listener[F]{id: id, fn: fn}
	r.listeners.Store(&next)

	var once sync.Once
	return func() {
		once.Do(func() { r.remove(id) })
	}
}

func (r *Registry[F]) remove(id int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	old := *r.listeners.Load()
	idx := -1
	for i, l := range old {
		if l.id == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return
	}

	next := make([]listener[F], len(old)-1)
	copy(next[:idx], old[:idx])
	copy(next[idx:], old[idx+1:])
	r.listeners.Store(&next)
}

// Snapshot returns the currently registered callbacks, in registration
// order. Callers range over this directly rather than through a lock.
func (r *Registry[F]) Snapshot() []F {
	cur := *r.listeners.Load()
	out := make([]F, len(cur))
	for i, l := range cur {
		out[i] = l.fn
	}
	return out
}

// Len reports the number of currently registered listeners.
func (r *Registry[F]) Len() int {
	return len(*r.listeners.Load())
}
