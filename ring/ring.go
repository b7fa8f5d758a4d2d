// Package ring implements the bounded lock-free single-producer/
// single-consumer slot queue that hands Slots from a reception thread to a
// consumer thread with sub-microsecond latency.
//
// The design is grounded in the teacher repo's own SPSC ring
// (evm_triarb's ring/ring.go): cache-line-isolated producer and consumer
// counters, acquire/release atomics instead of mutexes, and an
// architecture-specific cpuRelax used while busy-waiting. Where the
// teacher ring stamps a sequence number into each slot (Vyukov-style), this
// ring instead carries two monotonic counters (write, read) plus a
// high-water mark, per the ring's own contract: size is `write - read`
// interpreted as unsigned, and wraparound is handled by masking the cell
// index, never the counters themselves.
//
// Multi-producer use is a programming error, not a supported mode — see
// the mpscring package for the fan-in counterpart.
package ring

import (
	"runtime"
	"sync/atomic"
	"time"

	"github.com/mdfh-labs/feedhub/record"
)

// BackpressureMode selects what TryPushOrBlock does when the ring is full.
type BackpressureMode int

const (
	// Drop returns immediately, matching TryPush's result.
	Drop BackpressureMode = iota
	// Block busy-tries with a cooperative yield until space frees up or
	// the timeout elapses.
	Block
)

// Ring is a fixed-capacity circular buffer dedicated to one producer and
// one consumer. Producer and consumer counters are separated onto distinct
// cache lines to eliminate false sharing between the two threads.
type Ring struct {
	_         [64]byte
	write     uint64 // producer-owned; consumer loads with acquire
	_pad1     [56]byte
	read      uint64 // consumer-owned; producer loads with acquire
	_pad2     [56]byte
	highWater uint64 // monitoring only; racy upper bound is acceptable
	_pad3     [56]byte
	mask      uint64
	buf       []record.Slot
}

// New allocates a ring whose capacity must be a power of two; any other
// value panics so the mask arithmetic stays valid.
func New(capacity int) *Ring {
	if capacity <= 0 || capacity&(capacity-1) != 0 {
		panic("ring: capacity must be >0 and a power of two")
	}
	return &Ring{
		mask: uint64(capacity - 1),
		buf:  make([]record.Slot, capacity),
	}
}

// Capacity returns the fixed number of cells in the ring.
func (r *Ring) Capacity() int { return len(r.buf) }

// Size returns the number of items currently queued. The snapshot is only
// exact when called from either the producer or consumer thread for its
// own side; cross-thread observation is inherently racy but bounded.
func (r *Ring) Size() uint64 {
	return loadAcquireUint64(&r.write) - loadAcquireUint64(&r.read)
}

// HighWaterMark returns the largest size ever observed by a producer.
func (r *Ring) HighWaterMark() uint64 {
	return atomic.LoadUint64(&r.highWater)
}

// TryPush enqueues slot, returning false when the ring is full. Safe to
// call from exactly one producer goroutine; never blocks.
//
//go:nosplit
func (r *Ring) TryPush(slot record.Slot) bool {
	write := r.write
	read := loadAcquireUint64(&r.read)
	if write-read == uint64(len(r.buf)) {
		return false
	}
	r.buf[write&r.mask] = slot
	storeReleaseUint64(&r.write, write+1)
	r.bumpHighWater(write + 1 - read)
	return true
}

// TryPop dequeues one slot into out, returning false when the ring is
// empty. Safe to call from exactly one consumer goroutine; never blocks.
//
//go:nosplit
func (r *Ring) TryPop(out *record.Slot) bool {
	read := r.read
	write := loadAcquireUint64(&r.write)
	if read == write {
		return false
	}
	*out = r.buf[read&r.mask]
	storeReleaseUint64(&r.read, read+1)
	return true
}

// TryPushBulk pushes as many of slots as fit, in order, returning the
// count actually pushed. A single membership check and a single counter
// update back every call — observationally identical to that many
// successive TryPush calls on the first n slots.
func (r *Ring) TryPushBulk(slots []record.Slot) uint64 {
	write := r.write
	read := loadAcquireUint64(&r.read)
	space := uint64(len(r.buf)) - (write - read)
	n := uint64(len(slots))
	if n > space {
		n = space
	}
	for i := uint64(0); i < n; i++ {
		r.buf[(write+i)&r.mask] = slots[i]
	}
	if n > 0 {
		storeReleaseUint64(&r.write, write+n)
		r.bumpHighWater(write + n - read)
	}
	return n
}

// TryPopBulk pops into out up to len(out) slots, returning the count
// actually popped.
func (r *Ring) TryPopBulk(out []record.Slot) uint64 {
	read := r.read
	write := loadAcquireUint64(&r.write)
	avail := write - read
	n := uint64(len(out))
	if n > avail {
		n = avail
	}
	for i := uint64(0); i < n; i++ {
		out[i] = r.buf[(read+i)&r.mask]
	}
	if n > 0 {
		storeReleaseUint64(&r.read, read+n)
	}
	return n
}

// TryPushOrBlock pushes slot, honoring mode when the ring is full. Drop
// behaves exactly like TryPush. Block busy-tries with a cooperative yield
// between attempts and gives up once timeout elapses; a zero timeout
// blocks forever.
func (r *Ring) TryPushOrBlock(slot record.Slot, timeout time.Duration, mode BackpressureMode) bool {
	if mode == Drop {
		return r.TryPush(slot)
	}
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	for {
		if r.TryPush(slot) {
			return true
		}
		if timeout > 0 && time.Now().After(deadline) {
			return false
		}
		runtime.Gosched()
	}
}

// bumpHighWater uses a relaxed update (see DESIGN.md decision 1): a plain
// store when the new size exceeds the previous maximum, never a CAS loop.
//
//go:nosplit
func (r *Ring) bumpHighWater(size uint64) {
	if size > atomic.LoadUint64(&r.highWater) {
		atomic.StoreUint64(&r.highWater, size)
	}
}
