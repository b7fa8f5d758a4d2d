// pinned_consumer.go
//
// Dedicated consumer goroutine for a Ring, adapted from the teacher's
// PinnedConsumer (evm_triarb's ring/pinned_consumer.go) to the spin budget
// named in the concurrency model: up to spinBudget tight iterations with
// an architecture-appropriate pause hint, then a short sleep, rather than
// the teacher's 15-second hot/cold activity window — this consumer never
// blocks on I/O and has no "hot flag" producer signaling it to stay awake.
//
// All cross-goroutine state is a single atomic stop flag; no other
// synchronization primitive appears in the loop.

package ring

import (
	"runtime"
	"sync/atomic"
	"time"

	"github.com/mdfh-labs/feedhub/record"
)

const (
	spinBudget = 1000                  // tight Pop attempts before backing off
	idleSleep  = 10 * time.Microsecond // back-off duration once spinBudget is exhausted
)

// PinnedConsumer drains r on a dedicated, optionally core-pinned goroutine
// until *stop becomes non-zero, calling fn for every popped Slot. done is
// closed exactly once, after the loop exits.
func PinnedConsumer(core int, r *Ring, stop *uint32, fn func(record.Slot), done chan<- struct{}) {
	go func() {
		runtime.LockOSThread()
		if core >= 0 {
			setAffinity(core)
		}
		defer func() {
			runtime.UnlockOSThread()
			close(done)
		}()

		var slot record.Slot
		miss := 0
		for {
			if r.TryPop(&slot) {
				fn(slot)
				miss = 0
				continue
			}
			if atomic.LoadUint32(stop) != 0 {
				return
			}
			if miss++; miss < spinBudget {
				cpuRelax()
				continue
			}
			miss = 0
			time.Sleep(idleSleep)
		}
	}()
}
