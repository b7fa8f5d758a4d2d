// Package mpscring implements the bounded multi-producer/single-consumer
// fan-in ring that aggregates several feeds' FeedSlots into one stream for
// a single dispatcher consumer goroutine.
//
// Layout mirrors the SPSC ring package: two monotonic counters (write,
// read) and power-of-two masking. try_push additionally reserves a slot
// with a compare-and-swap loop on write before writing the cell, since
// more than one producer goroutine calls it concurrently — one per feed
// worker's drain step.
//
// This resolves the open question the component design flags about a
// reader observing a reserved-but-not-yet-written cell: rather than treat
// write as "readable up to" (the source's approach, which can tear), each
// cell carries a per-slot sequence number published with a release store
// only after the payload is written. The consumer only advances past a
// cell whose sequence matches its expected read position, so it can never
// observe a half-written cell — at the cost of one extra uint64 per slot
// versus the source's design. Per-feed order is untouched: a single
// worker goroutine still owns every push for a given origin.
package mpscring

import (
	"runtime"
	"sync/atomic"

	"github.com/mdfh-labs/feedhub/record"
)

type cell struct {
	seq  uint64
	slot record.FeedSlot
}

// Ring is a fixed-capacity circular buffer safe for any number of
// concurrent producer goroutines and exactly one consumer goroutine.
type Ring struct {
	_     [64]byte
	write uint64 // producer reservation counter, CAS'd
	_pad1 [56]byte
	read  uint64 // consumer-owned
	_pad2 [56]byte
	mask  uint64
	cells []cell
}

// New allocates a ring whose capacity must be a power of two.
func New(capacity int) *Ring {
	if capacity <= 0 || capacity&(capacity-1) != 0 {
		panic("mpscring: capacity must be >0 and a power of two")
	}
	r := &Ring{
		mask:  uint64(capacity - 1),
		cells: make([]cell, capacity),
	}
	for i := range r.cells {
		r.cells[i].seq = uint64(i)
	}
	return r
}

// Capacity returns the fixed number of cells in the ring.
func (r *Ring) Capacity() int { return len(r.cells) }

// Size returns an approximate count of items currently queued. Racy
// across producers; intended for monitoring only.
func (r *Ring) Size() uint64 {
	return atomic.LoadUint64(&r.write) - atomic.LoadUint64(&r.read)
}

// TryPush reserves a cell via CAS on write and publishes slot into it.
// Returns false immediately if the ring is full at the time of the
// snapshot; a concurrent pop may free space a producer does not retry for
// (matching the SPSC ring's non-blocking contract).
func (r *Ring) TryPush(slot record.FeedSlot) bool {
	for {
		write := atomic.LoadUint64(&r.write)
		read := atomic.LoadUint64(&r.read)
		if write-read == uint64(len(r.cells)) {
			return false
		}
		if atomic.CompareAndSwapUint64(&r.write, write, write+1) {
			c := &r.cells[write&r.mask]
			c.slot = slot
			atomic.StoreUint64(&c.seq, write+1)
			return true
		}
		runtime.Gosched()
	}
}

// TryPop dequeues one FeedSlot into out. Returns false when the next cell
// has not yet been published by its producer (empty, or a reservation is
// still in flight).
func (r *Ring) TryPop(out *record.FeedSlot) bool {
	read := r.read
	c := &r.cells[read&r.mask]
	if atomic.LoadUint64(&c.seq) != read+1 {
		return false
	}
	*out = c.slot
	atomic.StoreUint64(&r.read, read+1)
	return true
}
