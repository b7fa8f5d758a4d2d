// Package obslog is the ambient logging split named in the concurrency
// model: the only locks permitted outside the ring buffers are a
// driver-init lock and "an optional logging lock outside the hot path."
//
// Two tiers, adapted from the teacher's own debug.go / utils.go split
// between a zero-alloc hot-path helper and everything else:
//
//   - Hot exposes pre-allocated, allocation-free counters for events a
//     reception or consumer goroutine may need to tag without ever calling
//     into zerolog — bumping an atomic counter, never formatting a string.
//   - Cold is a github.com/rs/zerolog.Logger (grounded on
//     souravmenon1999-trade-engine, whose exchange adapters depend on and
//     configure zerolog the same way) used for driver state transitions,
//     fault reporting, and the periodic/final observability reports.
package obslog

import (
	"os"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// Cold is the process-wide structured logger for everything outside the
// hot path: driver state transitions, fault reporting, and periodic
// reports. Console-formatted like the teacher's own cmd/* mains.
var Cold = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05.000"}).
	With().Timestamp().Logger()

// SetLevel adjusts Cold's minimum level by setting zerolog's global level.
func SetLevel(level zerolog.Level) {
	zerolog.SetGlobalLevel(level)
}

// Hot holds allocation-free counters that a reception, drain, or consumer
// goroutine may bump without formatting a string or touching Cold. Every
// field is written with atomic ops; readers (the health monitor, the
// periodic flush) load them the same way.
type Hot struct {
	drops  uint64
	faults uint64
}

// Drop records a backpressure drop (a ring rejected a push).
//
//go:nosplit
func (h *Hot) Drop() { atomic.AddUint64(&h.drops, 1) }

// AddDrops records n backpressure drops at once, for a caller that only
// learns the count after the fact (a sink's batched drop counter).
//
//go:nosplit
func (h *Hot) AddDrops(n uint64) { atomic.AddUint64(&h.drops, n) }

// Fault records a fault reaching the hot path's boundary (parser overflow,
// a feed going Dead) without formatting or logging it.
//
//go:nosplit
func (h *Hot) Fault() { atomic.AddUint64(&h.faults, 1) }

// AddFaults records n faults at once.
//
//go:nosplit
func (h *Hot) AddFaults(n uint64) { atomic.AddUint64(&h.faults, n) }

// Drops returns the number of drops recorded so far.
func (h *Hot) Drops() uint64 { return atomic.LoadUint64(&h.drops) }

// Faults returns the number of faults recorded so far.
func (h *Hot) Faults() uint64 { return atomic.LoadUint64(&h.faults) }
