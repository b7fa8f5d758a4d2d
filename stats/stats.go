// Package stats implements the ingestion data plane's statistics engine:
// monotonic counters, a fixed-size latency histogram, and a periodic
// flush that emits percentiles and throughput deltas.
//
// Grounded on original_source/include/mdfh/performance_tracker.hpp's
// LatencyStats field set (p50/p90/p95/p99/p99_9) and its "zero allocation
// in hot path" pre-allocated sample buffer discipline, re-expressed as a
// fixed 1001-bin histogram instead of a stored sample vector — spec's
// coarser microsecond-bucket design trades sample-level precision for a
// constant-size, allocation-free hot path.
package stats

import (
	"sync/atomic"
	"time"
)

// HistogramBins is the fixed bin count: bins 0..999 count microsecond
// latencies exactly, bin 1000 is the overflow bucket for >=1000us.
const HistogramBins = 1001

// OverflowBin is the last bin, catching every sample at or beyond 1ms.
const OverflowBin = HistogramBins - 1

// Histogram is a fixed-size, allocation-free latency histogram. Not safe
// for concurrent Record calls; the ingestor/dispatcher consumer thread is
// the sole writer, matching the single-consumer-thread ownership already
// established for Rings.
type Histogram struct {
	bins [HistogramBins]uint64
}

// Record buckets one latency sample.
func (h *Histogram) Record(latencyNS uint64) {
	bin := latencyNS / 1000
	if bin > OverflowBin {
		bin = OverflowBin
	}
	h.bins[bin]++
}

// Total returns the total number of recorded samples.
func (h *Histogram) Total() uint64 {
	var total uint64
	for _, c := range h.bins {
		total += c
	}
	return total
}

// Percentile scans bins from 0 upward and returns the first bin whose
// cumulative count reaches ceil(total*p). Returns OverflowBin if total is
// zero or the percentile falls in or past the overflow bucket.
func (h *Histogram) Percentile(p float64) int {
	total := h.Total()
	if total == 0 {
		return OverflowBin
	}
	target := ceilFraction(total, p)
	var cumulative uint64
	for bin, count := range h.bins {
		cumulative += count
		if cumulative >= target {
			return bin
		}
	}
	return OverflowBin
}

// ceilFraction computes ceil(total*p) without floating-point rounding
// surprises at exact boundaries.
func ceilFraction(total uint64, p float64) uint64 {
	f := float64(total) * p
	target := uint64(f)
	if float64(target) < f {
		target++
	}
	if target == 0 {
		target = 1
	}
	return target
}

// Reset zeroes every bin, called at the end of each periodic flush.
func (h *Histogram) Reset() {
	for i := range h.bins {
		h.bins[i] = 0
	}
}

// Counters holds the monotonic cumulative counts the periodic report and
// final report both read. Every field is updated with atomic ops since the
// ingestor's reception handler (received, bytes, dropped) and its consumer
// thread (processed) update different counters concurrently.
type Counters struct {
	received  uint64
	processed uint64
	dropped   uint64
	gaps      uint64
	bytes     uint64
}

func (c *Counters) AddReceived(n uint64)  { atomic.AddUint64(&c.received, n) }
func (c *Counters) AddProcessed(n uint64) { atomic.AddUint64(&c.processed, n) }
func (c *Counters) AddDropped(n uint64)   { atomic.AddUint64(&c.dropped, n) }
func (c *Counters) AddGaps(n uint64)      { atomic.AddUint64(&c.gaps, n) }
func (c *Counters) AddBytes(n uint64)     { atomic.AddUint64(&c.bytes, n) }

func (c *Counters) Received() uint64  { return atomic.LoadUint64(&c.received) }
func (c *Counters) Processed() uint64 { return atomic.LoadUint64(&c.processed) }
func (c *Counters) Dropped() uint64   { return atomic.LoadUint64(&c.dropped) }
func (c *Counters) Gaps() uint64      { return atomic.LoadUint64(&c.gaps) }
func (c *Counters) Bytes() uint64     { return atomic.LoadUint64(&c.bytes) }

// Snapshot captures counter values at one point in time, used to compute
// throughput deltas between flushes.
type Snapshot struct {
	Received, Processed, Dropped, Gaps, Bytes uint64
}

func (c *Counters) snapshot() Snapshot {
	return Snapshot{
		Received:  c.Received(),
		Processed: c.Processed(),
		Dropped:   c.Dropped(),
		Gaps:      c.Gaps(),
		Bytes:     c.Bytes(),
	}
}

// Report is one periodic or final flush's payload.
type Report struct {
	Final bool

	Elapsed time.Duration

	Received, Processed, Dropped, Gaps, Bytes uint64

	// DeltaReceived etc. are the counts since the previous report,
	// used to derive throughput.
	DeltaReceived, DeltaProcessed, DeltaBytes uint64

	// The P*NS fields hold latency percentiles in nanoseconds; every
	// report, periodic or final, fills all five.
	P50NS, P90NS, P95NS, P99NS, P999NS uint64

	Samples uint64
}

// Tracker owns one Histogram and one Counters, plus the bookkeeping
// needed to compute deltas and decide when a second has elapsed.
type Tracker struct {
	Counters  Counters
	Histogram Histogram

	last      Snapshot
	lastFlush time.Time
	started   time.Time
}

// New returns a ready-to-use Tracker with its flush clock started now.
func New() *Tracker {
	now := time.Now()
	return &Tracker{lastFlush: now, started: now}
}

// ObserveLatency records one popped Slot's latency: latencyNS =
// now_monotonic - rxTS.
func (t *Tracker) ObserveLatency(rxTS uint64, nowMonotonicNS uint64) {
	var latency uint64
	if nowMonotonicNS > rxTS {
		latency = nowMonotonicNS - rxTS
	}
	t.Histogram.Record(latency)
}

// ShouldFlush reports whether at least one second has elapsed since the
// last flush.
func (t *Tracker) ShouldFlush(now time.Time) bool {
	return now.Sub(t.lastFlush) >= time.Second
}

// Flush builds a periodic Report from the current window, then zeroes the
// histogram. Counters are cumulative and are never reset; only the delta
// fields and the histogram-derived percentiles reflect the just-closed
// window.
func (t *Tracker) Flush(now time.Time) Report {
	return t.buildReport(now, false)
}

// FinalReport builds the terminal Report without resetting the histogram,
// since the process is about to exit.
func (t *Tracker) FinalReport(now time.Time) Report {
	r := t.buildReport(now, true)
	return r
}

func (t *Tracker) buildReport(now time.Time, final bool) Report {
	cur := t.Counters.snapshot()
	r := Report{
		Final:          final,
		Elapsed:        now.Sub(t.started),
		Received:       cur.Received,
		Processed:      cur.Processed,
		Dropped:        cur.Dropped,
		Gaps:           cur.Gaps,
		Bytes:          cur.Bytes,
		DeltaReceived:  cur.Received - t.last.Received,
		DeltaProcessed: cur.Processed - t.last.Processed,
		DeltaBytes:     cur.Bytes - t.last.Bytes,
		Samples:        t.Histogram.Total(),
		P50NS:          binToNanos(t.Histogram.Percentile(0.50)),
		P90NS:          binToNanos(t.Histogram.Percentile(0.90)),
		P95NS:          binToNanos(t.Histogram.Percentile(0.95)),
		P99NS:          binToNanos(t.Histogram.Percentile(0.99)),
		P999NS:         binToNanos(t.Histogram.Percentile(0.999)),
	}
	t.last = cur
	t.lastFlush = now
	if !final {
		t.Histogram.Reset()
	}
	return r
}

// binToNanos converts a histogram bin index back to a representative
// nanosecond latency (the bin's lower bound in microseconds).
func binToNanos(bin int) uint64 {
	return uint64(bin) * 1000
}
