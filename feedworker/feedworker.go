// Package feedworker owns one feed end-to-end: a driver.Driver, a
// parser.Parser, and a local SPSC ring.Ring that the driver's reception
// handler fills and a drain goroutine empties into the shared MPSC ring.
//
// Grounded on the teacher's router.go bootstrap idiom — go runLoop(id,
// ring, ...) spawning one goroutine per unit of work around a
// PinnedConsumer — generalized from a fixed set of per-core routers built
// at startup to one worker per configured feed, constructed at dispatcher
// wiring time instead of a fixed CPU-count loop.
package feedworker

import (
	"time"

	"github.com/mdfh-labs/feedhub/driver"
	"github.com/mdfh-labs/feedhub/faults"
	"github.com/mdfh-labs/feedhub/feedstate"
	"github.com/mdfh-labs/feedhub/lifecycle"
	"github.com/mdfh-labs/feedhub/mpscring"
	"github.com/mdfh-labs/feedhub/obslog"
	"github.com/mdfh-labs/feedhub/parser"
	"github.com/mdfh-labs/feedhub/record"
	"github.com/mdfh-labs/feedhub/ring"
)

// localRingCapacity is the per-feed SPSC ring size between the driver's
// reception handler and this worker's drain step.
const localRingCapacity = 1 << 14

// Worker owns one feed's Driver, Parser, and local Ring, and republishes
// into a shared MPSC ring on its drain step.
type Worker struct {
	OriginID uint32
	State    *feedstate.State

	drv    driver.Driver
	prs    *parser.Parser
	local  *ring.Ring
	global *mpscring.Ring

	life *lifecycle.Handle

	localSink *parser.RingSink

	hot obslog.Hot
}

// New constructs a Worker around an already-Initialize'd driver. originID
// disambiguates this feed's records once they land in the shared MPSC
// ring, per the cross-feed ordering note that consumers must carry
// origin_id to tell interleaved producers apart.
func New(originID uint32, feedID string, isPrimary bool, drv driver.Driver) *Worker {
	local := ring.New(localRingCapacity)
	return &Worker{
		OriginID:  originID,
		State:     feedstate.New(feedID, isPrimary),
		drv:       drv,
		prs:       parser.New(),
		local:     local,
		localSink: &parser.RingSink{Ring: local},
	}
}

// Start connects the driver, spawns its reception context, and starts the
// drain goroutine that republishes into global. Idempotent.
func (w *Worker) Start(global *mpscring.Ring) error {
	if w.life != nil {
		return nil
	}
	w.global = global
	w.life = lifecycle.New()
	if err := w.drv.Connect(); err != nil {
		w.life = nil
		return err
	}
	if err := w.drv.StartReception(w.onPacket); err != nil {
		w.life = nil
		return faults.ConnectionWrap(err, "feedworker: StartReception failed")
	}
	w.life.Go(w.drainLoop)
	return nil
}

// Stop tears the driver reception and drain goroutine down deterministically:
// reception first (so no more bytes enter the local ring), then the drain
// loop drains what remains and exits.
func (w *Worker) Stop() {
	w.drv.StopReception()
	w.drv.Disconnect()
	if w.life != nil {
		w.life.StopAndWait()
		w.life = nil
	}
}

// onPacket is the driver.Handler invoked by the reception context for
// every received chunk. It feeds the parser directly; the parser's Sink
// pushes decoded Slots into the local ring.
func (w *Worker) onPacket(p driver.PacketDesc) {
	if _, err := w.prs.Feed(p.Data, p.TimestampNS, w.localSink); err != nil {
		w.hot.Fault()
		obslog.Cold.Error().Err(err).Str("feed", w.State.FeedID).Msg("parser fault, stopping feed")
		w.State.SetStatus(feedstate.Failed)
		w.life.Stop()
	}
	if p.ReleaseToken != nil {
		w.drv.Release(p.ReleaseToken)
	}
}

// drainSpinBudget matches ingestor.Run's idle-suspension loop: spin this
// many times before sleeping, instead of sleeping on every single empty
// pop.
const drainSpinBudget = 1000

// drainLoop pops from the local ring, updates FeedState, and republishes
// into the global MPSC ring until Stop is called, then makes one final
// drain pass so no record already in the local ring is lost.
func (w *Worker) drainLoop() {
	spins := 0
	for !w.life.Stopped() {
		if !w.drainOne() {
			spins++
			if spins >= drainSpinBudget {
				time.Sleep(10 * time.Microsecond)
				spins = 0
			}
			continue
		}
		spins = 0
	}
	for w.drainOne() {
	}
}

func (w *Worker) drainOne() bool {
	var slot record.Slot
	if !w.local.TryPop(&slot) {
		return false
	}
	w.State.RecordReceived(slot.Raw.Seq, record.Size, time.Now())
	feedSlot := record.FeedSlot{
		Base:      slot,
		OriginID:  w.OriginID,
		ArrivalNS: time.Now().UnixNano(),
	}
	if !w.global.TryPush(feedSlot) {
		w.hot.Drop()
		obslog.Cold.Warn().Str("feed", w.State.FeedID).Msg("global ring full, dropping record")
	}
	return true
}

// Dropped returns the number of records this worker could not republish
// because the shared MPSC ring was full.
func (w *Worker) Dropped() uint64 { return w.hot.Drops() }
