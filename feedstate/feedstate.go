// Package feedstate holds the per-feed status and counters shared between
// a FeedWorker (sole writer) and the dispatcher's health monitor (reader
// only), per the ownership rule: "FeedState is shared by the worker and
// the monitor (reader only); mutation is single-threaded from the
// worker."
//
// Grounded on the teacher's own atomic-counter idiom (ring.go's padded
// atomic fields) applied to feed health instead of ring occupancy.
package feedstate

import (
	"sync/atomic"
	"time"
)

// Status is one of the five feed health states.
type Status int32

const (
	Connecting Status = iota
	Healthy
	Degraded
	Dead
	Failed
)

func (s Status) String() string {
	switch s {
	case Connecting:
		return "Connecting"
	case Healthy:
		return "Healthy"
	case Degraded:
		return "Degraded"
	case Dead:
		return "Dead"
	case Failed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// State is one feed's shared status, counters, and gap-tracking state. The
// zero value starts Connecting with no messages seen.
type State struct {
	FeedID    string
	IsPrimary bool

	// effectivePrimary is the dispatcher monitor's failover annotation:
	// set when this feed stands in for a dead or degraded configured
	// primary. It never changes IsPrimary itself and never affects the
	// data plane, which already aggregates every feed's records
	// regardless of primary status.
	effectivePrimary atomic.Bool

	status atomic.Int32

	bytes   atomic.Uint64
	records atomic.Uint64
	gaps    atomic.Uint64

	lastMessageNS atomic.Int64 // UnixNano

	// nextExpected and seenFirst are touched only by the worker's own
	// record path, never concurrently, per the ownership rule — plain
	// fields, not atomics.
	nextExpected uint64
	seenFirst    bool
}

// New returns a State for feedID, starting in Connecting.
func New(feedID string, isPrimary bool) *State {
	s := &State{FeedID: feedID, IsPrimary: isPrimary}
	s.status.Store(int32(Connecting))
	return s
}

// Status returns the feed's current health status.
func (s *State) Status() Status { return Status(s.status.Load()) }

// SetStatus sets the feed's health status. Called by the worker (first
// Healthy transition) and the dispatcher's monitor (Degraded/Dead/back to
// Healthy) — both are permitted writers of status specifically, per the
// monitor's role of adjusting status without touching counters.
func (s *State) SetStatus(status Status) { s.status.Store(int32(status)) }

// RecordReceived is called by the worker for every record emitted by the
// parser: it advances the byte/record counters, the last-message
// timestamp, gap detection, and the Connecting -> Healthy transition on
// the very first message.
func (s *State) RecordReceived(seq uint64, byteLen int, now time.Time) {
	s.records.Add(1)
	s.bytes.Add(uint64(byteLen))
	s.lastMessageNS.Store(now.UnixNano())

	if !s.seenFirst {
		s.seenFirst = true
		s.nextExpected = seq + 1
		if s.Status() == Connecting {
			s.SetStatus(Healthy)
		}
		return
	}
	if seq != s.nextExpected {
		gap := diffU64(seq, s.nextExpected)
		s.gaps.Add(gap)
	}
	s.nextExpected = seq + 1
}

// diffU64 returns the absolute difference between two uint64 values
// without risking signed overflow.
func diffU64(a, b uint64) uint64 {
	if a > b {
		return a - b
	}
	return b - a
}

// LastMessageTime returns the time of the most recent RecordReceived call,
// or the zero Time if none has occurred yet.
func (s *State) LastMessageTime() time.Time {
	ns := s.lastMessageNS.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

// EffectivePrimary reports whether the dispatcher's health monitor has
// promoted this feed to stand in for a dead or degraded configured
// primary. Distinct from IsPrimary, which reflects only the static
// configuration.
func (s *State) EffectivePrimary() bool { return s.effectivePrimary.Load() }

// SetEffectivePrimary sets or clears the failover annotation. Called only
// by the dispatcher's health monitor.
func (s *State) SetEffectivePrimary(v bool) { s.effectivePrimary.Store(v) }

// Bytes, Records, and Gaps return the monotonic counters.
func (s *State) Bytes() uint64   { return s.bytes.Load() }
func (s *State) Records() uint64 { return s.records.Load() }
func (s *State) Gaps() uint64    { return s.gaps.Load() }
