// Package ingestor wires a single Driver, Parser, Ring, and Stats
// Tracker into a single-feed consumer — the counterpart to the
// dispatcher/feedworker path used for multi-feed mode.
//
// Grounded on the teacher's router.go bootstrap idiom, generalized the
// same way feedworker.Worker is, but adding the Stats Tracker and the
// termination-predicate loop that a single-feed run() needs and a
// FeedWorker (which runs until Stop, forever) does not.
package ingestor

import (
	"time"

	"github.com/mdfh-labs/feedhub/driver"
	"github.com/mdfh-labs/feedhub/faults"
	"github.com/mdfh-labs/feedhub/lifecycle"
	"github.com/mdfh-labs/feedhub/obslog"
	"github.com/mdfh-labs/feedhub/parser"
	"github.com/mdfh-labs/feedhub/record"
	"github.com/mdfh-labs/feedhub/ring"
	"github.com/mdfh-labs/feedhub/stats"
)

// DefaultDisconnectGiveUp is how long the driver may sit in Ready (i.e.
// disconnected, mid-reconnect-backoff per refdriver's own retry loop)
// before the ingestor treats it as "cannot reconnect" and stops.
const DefaultDisconnectGiveUp = 5 * time.Second

// Config bounds one ingestor run. Zero values mean "unbounded" for
// MaxSeconds and MaxMessages.
type Config struct {
	MaxSeconds   time.Duration
	MaxMessages  uint64
	RingCapacity int
	Sink         stats.Sink

	// DisconnectGiveUp overrides DefaultDisconnectGiveUp.
	DisconnectGiveUp time.Duration
}

// Ingestor owns one Driver, one Parser, one Ring, and one Stats Tracker.
type Ingestor struct {
	cfg Config

	drv   driver.Driver
	prs   *parser.Parser
	buf   *ring.Ring
	stats *stats.Tracker
	sink  stats.Sink

	localSink *parser.RingSink

	life *lifecycle.Handle
	hot  obslog.Hot

	readySince time.Time
}

// New constructs an Ingestor around an already-Initialize'd driver.
func New(drv driver.Driver, cfg Config) *Ingestor {
	capacity := cfg.RingCapacity
	if capacity == 0 {
		capacity = 1 << 14
	}
	buf := ring.New(capacity)
	sink := cfg.Sink
	if sink == nil {
		sink = stats.LogSink{}
	}
	return &Ingestor{
		cfg:       cfg,
		drv:       drv,
		prs:       parser.New(),
		buf:       buf,
		stats:     stats.New(),
		sink:      sink,
		localSink: &parser.RingSink{Ring: buf},
	}
}

// Run connects the driver, starts reception, and blocks the calling
// goroutine as the consumer thread until a termination predicate becomes
// true: MaxSeconds elapses, MaxMessages records are processed, or the
// driver disconnects and does not reconnect within the DisconnectGiveUp
// window (DefaultDisconnectGiveUp when unset). On return it drains any records remaining in the Ring, emits
// the final report, and tears the driver down.
func (ing *Ingestor) Run() error {
	ing.life = lifecycle.New()

	if err := ing.drv.Connect(); err != nil {
		ing.life = nil
		return faults.ConnectionWrap(err, "ingestor: initial connect failed")
	}
	if err := ing.drv.StartReception(ing.onPacket); err != nil {
		ing.life = nil
		return faults.ConnectionWrap(err, "ingestor: StartReception failed")
	}

	start := time.Now()
	var processed uint64
	spins := 0

	for {
		if ing.terminationReached(start, processed) {
			break
		}

		var slot record.Slot
		if !ing.buf.TryPop(&slot) {
			spins++
			if spins >= 1000 {
				time.Sleep(10 * time.Microsecond)
				spins = 0
			}
			continue
		}
		spins = 0
		ing.consumeOne(slot)
		processed++

		if ing.stats.ShouldFlush(time.Now()) {
			ing.sink.Emit(ing.stats.Flush(time.Now()))
		}
	}

	ing.drv.StopReception()
	ing.drv.Disconnect()

	ing.drainRemaining()
	ing.sink.Emit(ing.stats.FinalReport(time.Now()))
	return nil
}

// terminationReached evaluates the predicates that end a run: the two
// configured bounds, a driver stuck disconnected past the give-up window,
// or life.Stop having been called (a fatal parser fault in onPacket).
func (ing *Ingestor) terminationReached(start time.Time, processed uint64) bool {
	if ing.life.Stopped() {
		return true
	}
	if ing.cfg.MaxSeconds > 0 && time.Since(start) >= ing.cfg.MaxSeconds {
		return true
	}
	if ing.cfg.MaxMessages > 0 && processed >= ing.cfg.MaxMessages {
		return true
	}
	return ing.disconnectedTooLong()
}

// disconnectedTooLong tracks how long the driver has sat in Ready (i.e.
// disconnected, presumably mid-reconnect-backoff) without recovering to
// Connected/Receiving, and reports true once that exceeds the configured
// give-up window.
func (ing *Ingestor) disconnectedTooLong() bool {
	if ing.drv.State() != driver.Ready {
		ing.readySince = time.Time{}
		return false
	}
	if ing.readySince.IsZero() {
		ing.readySince = time.Now()
		return false
	}
	giveUp := ing.cfg.DisconnectGiveUp
	if giveUp == 0 {
		giveUp = DefaultDisconnectGiveUp
	}
	return time.Since(ing.readySince) >= giveUp
}

// onPacket is the driver.Handler passed to StartReception.
func (ing *Ingestor) onPacket(p driver.PacketDesc) {
	n, err := ing.prs.Feed(p.Data, p.TimestampNS, ing.localSink)
	if err != nil {
		ing.hot.Fault()
		obslog.Cold.Error().Err(err).Msg("ingestor: parser fault, stopping")
		ing.life.Stop()
		return
	}
	ing.stats.Counters.AddReceived(uint64(n))
	ing.stats.Counters.AddBytes(uint64(len(p.Data)))
	if ing.localSink.Dropped > 0 {
		ing.hot.AddDrops(ing.localSink.Dropped)
		ing.stats.Counters.AddDropped(ing.localSink.Dropped)
		ing.localSink.Dropped = 0
	}
	if p.ReleaseToken != nil {
		ing.drv.Release(p.ReleaseToken)
	}
}

// consumeOne pops one Slot's worth of work: records the latency sample and
// bumps the processed counter.
func (ing *Ingestor) consumeOne(slot record.Slot) {
	ing.stats.ObserveLatency(slot.RxTS, nowMonotonicNanos())
	ing.stats.Counters.AddProcessed(1)
}

// drainRemaining pops every Slot left in the Ring after reception has
// stopped, so nothing already buffered is lost before the final report.
func (ing *Ingestor) drainRemaining() {
	var slot record.Slot
	for ing.buf.TryPop(&slot) {
		ing.consumeOne(slot)
	}
}

// nowMonotonicNanos reads the clock directly, matching parser's own RxTS
// stamp: the latency subtraction in ObserveLatency must never compare a
// real-time RxTS against a coarsened "now", or the histogram would absorb
// a systematic skew equal to the cache's refresh interval.
func nowMonotonicNanos() uint64 {
	return uint64(time.Now().UnixNano())
}
