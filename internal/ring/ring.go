// Package ring provides the fixed-capacity slot-id FIFO used by the
// engine's channels. It is intentionally free of internal locking; the
// surrounding queue protocol (or the worker's inbox/outbox locks)
// provides thread safety.
package ring

import "github.com/BaSui01/fetchflow/types"

// Ring is a fixed-capacity FIFO of request slot ids. The backing array
// holds one extra element so that a full ring can be distinguished from
// an empty one (head == tail means empty).
type Ring struct {
	buf  []types.Handle
	head int
	tail int
}

// New creates a ring with the given capacity.
func New(capacity int) *Ring {
	if capacity <= 0 {
		panic("ring: capacity must be positive")
	}
	return &Ring{buf: make([]types.Handle, capacity+1)}
}

func (r *Ring) wrap(i int) int {
	return i % len(r.buf)
}

// Empty reports whether the ring holds no items.
func (r *Ring) Empty() bool {
	return r.head == r.tail
}

// Full reports whether the ring is at capacity.
func (r *Ring) Full() bool {
	return r.wrap(r.head+1) == r.tail
}

// Count returns the number of items currently in the ring.
func (r *Ring) Count() int {
	if r.head >= r.tail {
		return r.head - r.tail
	}
	return r.head + len(r.buf) - r.tail
}

// Cap returns the ring's capacity.
func (r *Ring) Cap() int {
	return len(r.buf) - 1
}

// Enqueue appends a slot id. Enqueueing into a full ring is a contract
// violation of the surrounding protocol, not a runtime error.
func (r *Ring) Enqueue(id types.Handle) {
	if r.Full() {
		panic("ring: enqueue on full ring")
	}
	r.buf[r.head] = id
	r.head = r.wrap(r.head + 1)
}

// Dequeue removes and returns the oldest slot id. Dequeueing from an
// empty ring is a contract violation.
func (r *Ring) Dequeue() types.Handle {
	if r.Empty() {
		panic("ring: dequeue on empty ring")
	}
	id := r.buf[r.tail]
	r.tail = r.wrap(r.tail + 1)
	return id
}

// Peek returns the slot id at logical position i from the tail without
// removing it.
func (r *Ring) Peek(i int) types.Handle {
	if i < 0 || i >= r.Count() {
		panic("ring: peek index out of range")
	}
	return r.buf[r.wrap(r.tail+i)]
}
