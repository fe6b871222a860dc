// Package ringbuf provides a lock-free, single-producer single-consumer
// (SPSC) ring buffer for chart events. It uses atomic operations and
// cache-line padding to achieve minimal latency with zero contention.
// It doubles as the replay buffer behind the websocket gateway, where
// the owning hub loop overwrites the oldest entries once full.
package ringbuf

import (
	"sync/atomic"

	"pnf-systemv1/internal/model"
)

// cacheLine is the typical x86-64 cache line size used for padding.
const cacheLine = 64

// Ring is a lock-free SPSC ring buffer for ChartEvent values.
// Size must be a power of two for fast bitwise modulo.
type Ring struct {
	buf  []model.ChartEvent
	mask uint64

	// Separate cache lines to prevent false sharing between producer and consumer.
	_pad0 [cacheLine]byte
	head  atomic.Uint64 // written by producer
	_pad1 [cacheLine]byte
	tail  atomic.Uint64 // written by consumer
	_pad2 [cacheLine]byte

	// Overflow counter (atomic, for metrics)
	overflow atomic.Uint64
}

// New creates a ring buffer. capacity is rounded up to the next power of two.
// Minimum capacity is 2.
func New(capacity int) *Ring {
	cap := nextPow2(capacity)
	if cap < 2 {
		cap = 2
	}
	return &Ring{
		buf:  make([]model.ChartEvent, cap),
		mask: uint64(cap - 1),
	}
}

// Push appends an event to the ring buffer. Returns false if the buffer
// is full (the event is NOT written in that case). Non-blocking.
func (r *Ring) Push(ev model.ChartEvent) bool {
	head := r.head.Load()
	tail := r.tail.Load()

	if head-tail >= uint64(len(r.buf)) {
		// Buffer full
		r.overflow.Add(1)
		return false
	}

	r.buf[head&r.mask] = ev
	r.head.Store(head + 1)
	return true
}

// PushLatest appends an event, overwriting the oldest entry when the
// buffer is full. Callers must serialize PushLatest with Pop and
// Snapshot themselves, either from a single owning goroutine or under
// an external lock; never mix with a concurrent Pop.
func (r *Ring) PushLatest(ev model.ChartEvent) {
	head := r.head.Load()
	tail := r.tail.Load()

	if head-tail >= uint64(len(r.buf)) {
		r.tail.Store(tail + 1)
		r.overflow.Add(1)
	}

	r.buf[head&r.mask] = ev
	r.head.Store(head + 1)
}

// Pop retrieves the next event from the ring buffer.
// Returns false if the buffer is empty. Non-blocking.
func (r *Ring) Pop() (model.ChartEvent, bool) {
	tail := r.tail.Load()
	head := r.head.Load()

	if tail >= head {
		// Buffer empty
		return model.ChartEvent{}, false
	}

	ev := r.buf[tail&r.mask]
	r.tail.Store(tail + 1)
	return ev, true
}

// Snapshot copies out the buffered events, oldest first, without
// consuming them. Same ownership rule as PushLatest.
func (r *Ring) Snapshot() []model.ChartEvent {
	tail := r.tail.Load()
	head := r.head.Load()
	if tail >= head {
		return nil
	}

	out := make([]model.ChartEvent, 0, head-tail)
	for i := tail; i < head; i++ {
		out = append(out, r.buf[i&r.mask])
	}
	return out
}

// Len returns the current number of items in the buffer.
func (r *Ring) Len() int {
	return int(r.head.Load() - r.tail.Load())
}

// Cap returns the buffer capacity.
func (r *Ring) Cap() int {
	return len(r.buf)
}

// Overflow returns the total number of pushes that found the buffer
// full (rejected by Push or overwritten by PushLatest).
func (r *Ring) Overflow() uint64 {
	return r.overflow.Load()
}

// nextPow2 returns the smallest power of 2 >= n.
func nextPow2(n int) int {
	if n <= 0 {
		return 1
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n |= n >> 32
	return n + 1
}
