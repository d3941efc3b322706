package queue

import (
	"fmt"
	"sync/atomic"
)

// DefaultCapacity is the ring size used when none is configured.
const DefaultCapacity = 20

// Ring is a fixed-capacity single-producer/single-consumer queue.
//
// head and tail are free-running counters: the producer owns tail, the
// consumer owns head, and each side only loads the other's index.
type Ring[T any] struct {
	buf     []T
	size    uint64
	head    atomic.Uint64
	tail    atomic.Uint64
	dropped atomic.Uint64
}

// NewRing allocates a ring holding up to capacity values.
func NewRing[T any](capacity int) (*Ring[T], error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("ring capacity must be > 0, got %d", capacity)
	}
	return &Ring[T]{
		buf:  make([]T, capacity),
		size: uint64(capacity),
	}, nil
}

// TryPush appends v without blocking. It reports false, and counts the value
// as dropped, when the ring is full.
func (r *Ring[T]) TryPush(v T) bool {
	tail := r.tail.Load()
	if tail-r.head.Load() >= r.size {
		r.dropped.Add(1)
		return false
	}
	r.buf[tail%r.size] = v
	r.tail.Store(tail + 1)
	return true
}

// Drain pops every value available at the time of the call, in push order,
// and passes each to fn. It returns the number of values popped.
func (r *Ring[T]) Drain(fn func(T)) int {
	head := r.head.Load()
	tail := r.tail.Load()
	n := 0
	for ; head < tail; head++ {
		v := r.buf[head%r.size]
		var zero T
		r.buf[head%r.size] = zero
		r.head.Store(head + 1)
		if fn != nil {
			fn(v)
		}
		n++
	}
	return n
}

// Len returns the number of queued values. head is loaded first: it never
// passes tail, so a concurrent Drain can only make the result stale, not
// negative.
func (r *Ring[T]) Len() int {
	head := r.head.Load()
	return int(r.tail.Load() - head)
}

// Cap returns the ring capacity.
func (r *Ring[T]) Cap() int {
	return int(r.size)
}

// Dropped returns how many pushes failed because the ring was full.
func (r *Ring[T]) Dropped() uint64 {
	return r.dropped.Load()
}
