// Package dispatcher hosts the vector of feed workers and the shared MPSC
// ring they drain into, and runs a health-monitor goroutine that tracks
// per-feed liveness and effective-primary failover.
//
// Grounded on aggregator.go's multi-core fan-in shape (a single owner of
// several producers' rings plus one background goroutine folding their
// state) generalized from a fixed hot-spin core loop to a
// lifecycle.Handle-driven ticker, since dispatcher health checks run at a
// 100ms cadence rather than every CPU cycle.
package dispatcher

import (
	"time"

	"github.com/agilira/go-timecache"

	"github.com/mdfh-labs/feedhub/faults"
	"github.com/mdfh-labs/feedhub/feedstate"
	"github.com/mdfh-labs/feedhub/feedworker"
	"github.com/mdfh-labs/feedhub/lifecycle"
	"github.com/mdfh-labs/feedhub/mpscring"
	"github.com/mdfh-labs/feedhub/obslog"
	"github.com/mdfh-labs/feedhub/record"
)

// DefaultHealthCheckInterval is the monitor's default cadence.
const DefaultHealthCheckInterval = 100 * time.Millisecond

// healthSummaryInterval is how often runHealthCheck folds per-feed state
// into one summary line, independent of the (usually much finer)
// health-check cadence itself.
const healthSummaryInterval = time.Second

// Feed bundles a Worker with the heartbeat parameters the health monitor
// needs to judge its liveness; heartbeat and timeout multiplier are
// per-feed configuration, not global, since feeds can run at different
// rates.
type Feed struct {
	Worker            *feedworker.Worker
	HeartbeatInterval time.Duration
	TimeoutMultiplier float64
}

// Dispatcher owns every configured Feed and the shared MPSC ring they
// drain into. It exclusively owns both for its lifetime, matching the
// ownership note that FeedWorkers and the shared ring never outlive their
// Dispatcher.
type Dispatcher struct {
	feeds  []Feed
	global *mpscring.Ring

	healthCheckInterval time.Duration
	life                *lifecycle.Handle

	hot         obslog.Hot
	lastSummary time.Time
}

// New constructs a Dispatcher around global, a pre-allocated MPSC ring
// (capacity configurable by the caller, must be a power of two per
// mpscring.New's own contract).
func New(global *mpscring.Ring, feeds []Feed) *Dispatcher {
	return &Dispatcher{
		feeds:               feeds,
		global:              global,
		healthCheckInterval: DefaultHealthCheckInterval,
	}
}

// SetHealthCheckInterval overrides the default 100ms monitor cadence.
// Must be called before Start.
func (d *Dispatcher) SetHealthCheckInterval(interval time.Duration) {
	d.healthCheckInterval = interval
}

// Start brings up every worker and the health-monitor goroutine. Workers
// are started in the order they were configured; a failure to start one
// does not stop the rest from starting, matching "start brings up all
// workers" without an all-or-nothing requirement the source doesn't
// specify. Every start error is logged; only the first is wrapped and
// returned.
func (d *Dispatcher) Start() error {
	if d.life != nil {
		return nil
	}
	d.life = lifecycle.New()

	var firstErr error
	for i := range d.feeds {
		if err := d.feeds[i].Worker.Start(d.global); err != nil {
			obslog.Cold.Error().Err(err).Str("feed", d.feeds[i].Worker.State.FeedID).
				Msg("worker failed to start")
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	d.life.Go(d.monitorLoop)

	if firstErr != nil {
		return faults.ConnectionWrap(firstErr, "dispatcher: one or more workers failed to start")
	}
	return nil
}

// Stop signals every worker and the health monitor and joins them in
// arbitrary order, matching the source's "join their threads in arbitrary
// order" wording — Go's WaitGroup-based lifecycle.Handle has no ordering
// guarantee across Go calls, so this is already satisfied by construction.
func (d *Dispatcher) Stop() {
	for i := range d.feeds {
		d.feeds[i].Worker.Stop()
	}
	if d.life != nil {
		d.life.StopAndWait()
		d.life = nil
	}
}

// TryConsume proxies the shared MPSC ring's TryPop.
func (d *Dispatcher) TryConsume(out *record.FeedSlot) bool {
	return d.global.TryPop(out)
}

// Feeds returns the configured feeds for inspection (stats reporting,
// tests). The returned slice must not be mutated.
func (d *Dispatcher) Feeds() []Feed { return d.feeds }

// monitorLoop wakes every healthCheckInterval to update per-feed status
// and run failover promotion, until Stop is called.
func (d *Dispatcher) monitorLoop() {
	ticker := time.NewTicker(d.healthCheckInterval)
	defer ticker.Stop()
	for !d.life.Stopped() {
		<-ticker.C
		if d.life.Stopped() {
			return
		}
		d.runHealthCheck()
	}
}

// runHealthCheck implements the dispatcher health-monitor's three duties:
// age-based status transitions per feed, primary failover if no configured
// primary feed is currently Healthy or Degraded, and a periodic health
// summary to the observer hook.
func (d *Dispatcher) runHealthCheck() {
	now := time.Unix(0, timecache.CachedTimeNano())
	for i := range d.feeds {
		d.updateAgeStatus(&d.feeds[i], now)
	}

	if !anyPrimaryAlive(d.feeds) {
		promoteFirstHealthyBackup(d.feeds)
	}

	if d.lastSummary.IsZero() || now.Sub(d.lastSummary) >= healthSummaryInterval {
		d.emitHealthSummary()
		d.lastSummary = now
	}
}

// updateAgeStatus applies the age-vs-heartbeat thresholds: dead past
// timeout_multiplier heartbeats, degraded past 2 heartbeats, recovered to
// healthy once back under one heartbeat while currently degraded. A fresh
// transition into Dead is tallied on the dispatcher's own Hot counter, the
// same allocation-free path every other hot-path fault goes through.
func (d *Dispatcher) updateAgeStatus(f *Feed, now time.Time) {
	state := f.Worker.State
	last := state.LastMessageTime()
	if last.IsZero() {
		return
	}
	age := now.Sub(last)
	deadThreshold := time.Duration(float64(f.HeartbeatInterval) * f.TimeoutMultiplier)

	switch {
	case age > deadThreshold:
		if state.Status() != feedstate.Dead {
			d.hot.Fault()
		}
		state.SetStatus(feedstate.Dead)
	case age > 2*f.HeartbeatInterval:
		state.SetStatus(feedstate.Degraded)
	case state.Status() == feedstate.Degraded && age <= f.HeartbeatInterval:
		state.SetStatus(feedstate.Healthy)
	}
}

// HealthSummary is one snapshot of every feed's status plus the
// hot-path drop/fault tallies accumulated since startup, folded together
// for the observer hook.
type HealthSummary struct {
	Connecting, Healthy, Degraded, Dead, Failed int
	DroppedRecords                              uint64
	Faults                                      uint64
}

// emitHealthSummary folds every feed's current status and drop count into
// one HealthSummary and logs it through obslog.Cold. updateAgeStatus logs
// nothing per transition; promoteFirstHealthyBackup logs each promotion
// itself.
func (d *Dispatcher) emitHealthSummary() {
	var s HealthSummary
	for i := range d.feeds {
		switch d.feeds[i].Worker.State.Status() {
		case feedstate.Connecting:
			s.Connecting++
		case feedstate.Healthy:
			s.Healthy++
		case feedstate.Degraded:
			s.Degraded++
		case feedstate.Dead:
			s.Dead++
		case feedstate.Failed:
			s.Failed++
		}
		s.DroppedRecords += d.feeds[i].Worker.Dropped()
	}
	s.Faults = d.hot.Faults()

	obslog.Cold.Info().
		Int("connecting", s.Connecting).
		Int("healthy", s.Healthy).
		Int("degraded", s.Degraded).
		Int("dead", s.Dead).
		Int("failed", s.Failed).
		Uint64("dropped", s.DroppedRecords).
		Uint64("faults", s.Faults).
		Msg("dispatcher health summary")
}

// anyPrimaryAlive reports whether any feed configured as primary (or
// already carrying the effective-primary annotation from an earlier
// promotion) is currently Healthy or Degraded.
func anyPrimaryAlive(feeds []Feed) bool {
	for i := range feeds {
		state := feeds[i].Worker.State
		alive := state.Status() == feedstate.Healthy || state.Status() == feedstate.Degraded
		if (state.IsPrimary || state.EffectivePrimary()) && alive {
			return true
		}
	}
	return false
}

// promoteFirstHealthyBackup marks the first non-primary Healthy feed as
// the effective primary. The promotion is an observable annotation only:
// the data plane already aggregates every feed's records regardless of
// primary status.
func promoteFirstHealthyBackup(feeds []Feed) {
	for i := range feeds {
		state := feeds[i].Worker.State
		if !state.IsPrimary && !state.EffectivePrimary() && state.Status() == feedstate.Healthy {
			state.SetEffectivePrimary(true)
			obslog.Cold.Warn().Str("feed", state.FeedID).Msg("promoted to effective primary")
			return
		}
	}
}
