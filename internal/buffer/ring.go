// Package buffer provides the fixed-capacity rolling window used to hold the
// most recent frames of a session.
package buffer

// Ring is a fixed-capacity FIFO window. Pushing onto a full ring evicts the
// oldest element. Ring is not safe for concurrent use; callers serialize
// access (the session store holds a per-session lock).
type Ring[T any] struct {
	items []T
	head  int // index of the oldest element
	size  int
}

// New creates a Ring holding at most capacity elements.
// Capacities below 1 are raised to 1.
func New[T any](capacity int) *Ring[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring[T]{items: make([]T, capacity)}
}

// Push appends v, evicting the oldest element when the ring is full.
// It reports whether an element was evicted.
func (r *Ring[T]) Push(v T) bool {
	if r.size < len(r.items) {
		r.items[(r.head+r.size)%len(r.items)] = v
		r.size++
		return false
	}

	r.items[r.head] = v
	r.head = (r.head + 1) % len(r.items)
	return true
}

// Clear empties the ring. Clearing an empty ring is a no-op.
func (r *Ring[T]) Clear() {
	var zero T
	for i := range r.items {
		r.items[i] = zero
	}
	r.head = 0
	r.size = 0
}

// Len returns the number of buffered elements.
func (r *Ring[T]) Len() int {
	return r.size
}

// Cap returns the ring capacity.
func (r *Ring[T]) Cap() int {
	return len(r.items)
}

// IsFull reports whether the ring holds Cap elements.
func (r *Ring[T]) IsFull() bool {
	return r.size == len(r.items)
}

// Snapshot returns a copy of the buffered elements, oldest first.
func (r *Ring[T]) Snapshot() []T {
	out := make([]T, r.size)
	for i := 0; i < r.size; i++ {
		out[i] = r.items[(r.head+i)%len(r.items)]
	}
	return out
}

// Last returns the newest element.
func (r *Ring[T]) Last() (T, bool) {
	if r.size == 0 {
		var zero T
		return zero, false
	}
	return r.items[(r.head+r.size-1)%len(r.items)], true
}
