// Command feedhub runs the multi-feed dispatcher: one FeedWorker per
// configured feed draining into a shared MPSC ring, plus a health-monitor
// goroutine tracking per-feed liveness and primary failover.
package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/agilira/orpheus/pkg/orpheus"

	"github.com/mdfh-labs/feedhub/config"
	"github.com/mdfh-labs/feedhub/dispatcher"
	"github.com/mdfh-labs/feedhub/driver"
	"github.com/mdfh-labs/feedhub/faults"
	"github.com/mdfh-labs/feedhub/feedstate"
	"github.com/mdfh-labs/feedhub/feedworker"
	"github.com/mdfh-labs/feedhub/mpscring"
	"github.com/mdfh-labs/feedhub/obslog"
	"github.com/mdfh-labs/feedhub/record"
	"github.com/mdfh-labs/feedhub/refdriver"
	"github.com/mdfh-labs/feedhub/stats"
)

func main() {
	runCmd := orpheus.NewCommand("run", "Run the multi-feed dispatcher until every configured feed fails").
		AddFlag("config", "c", "", "path to a multi-feed YAML config; overrides --feeds when set").
		AddFlag("feeds", "f", "", "comma-separated host:port list, first entry is primary").
		AddIntFlag("global-buffer-capacity", "g", 262144, "shared ring capacity, must be a power of two").
		AddBoolFlag("json-stats", "j", false, "emit newline-delimited JSON reports instead of log lines").
		SetHandler(runDispatcher)

	app := orpheus.New("feedhub").
		SetDescription("Multi-feed market data dispatcher with health monitoring and primary failover").
		SetVersion("0.1.0")
	app.AddCommand(runCmd)

	if err := app.Run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "feedhub:", err)
		os.Exit(1)
	}
}

func runDispatcher(ctx *orpheus.Context) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		obslog.Cold.Error().Err(err).Msg("feedhub: configuration error")
		return err
	}

	global := mpscring.New(int(cfg.GlobalBufferCapacity))
	feeds := make([]dispatcher.Feed, 0, len(cfg.Feeds))
	for i, fc := range cfg.Feeds {
		drv := refdriver.New()
		if err := drv.Initialize(driver.Config{Host: fc.Host, Port: fc.Port}); err != nil {
			err = faults.ConfigurationWrap(err, fmt.Sprintf("feedhub: feed %q driver initialize failed", fc.Name))
			obslog.Cold.Error().Err(err).Msg("feedhub: configuration error")
			return err
		}
		worker := feedworker.New(uint32(i), fc.Name, fc.IsPrimary, drv)
		feeds = append(feeds, dispatcher.Feed{
			Worker:            worker,
			HeartbeatInterval: time.Duration(fc.HeartbeatIntervalMS) * time.Millisecond,
			TimeoutMultiplier: float64(fc.TimeoutMultiplier),
		})
	}

	d := dispatcher.New(global, feeds)
	if cfg.HealthCheckIntervalMS > 0 {
		d.SetHealthCheckInterval(time.Duration(cfg.HealthCheckIntervalMS) * time.Millisecond)
	}
	if err := d.Start(); err != nil {
		obslog.Cold.Error().Err(err).Msg("feedhub: dispatcher failed to start")
		return err
	}
	defer d.Stop()

	var sink stats.Sink = stats.LogSink{}
	if ctx.GetFlagBool("json-stats") {
		sink = stats.JSONSink{W: os.Stdout}
	}

	drainLoop(d, cfg, sink)
	return nil
}

// drainLoop pulls fan-in records off the dispatcher until every feed has
// failed or the config's max_seconds/max_messages bound is reached, whichever comes
// first, observing latency and throughput into a Tracker the same way
// cmd/ingestor does — the dispatcher's own goroutines produce the records,
// but nothing else in the multi-feed path aggregates them into a report.
func drainLoop(d *dispatcher.Dispatcher, cfg *config.MultiFeedConfig, sink stats.Sink) {
	start := time.Now()
	tracker := stats.New()
	var processed uint64
	spins := 0

	for {
		if cfg.MaxSeconds > 0 && time.Since(start) >= time.Duration(cfg.MaxSeconds)*time.Second {
			break
		}
		if cfg.MaxMessages > 0 && processed >= cfg.MaxMessages {
			break
		}

		var slot record.FeedSlot
		if !d.TryConsume(&slot) {
			spins++
			if spins >= 1000 {
				time.Sleep(10 * time.Microsecond)
				spins = 0
			}
			if allFeedsFailed(d) {
				break
			}
			continue
		}
		spins = 0
		processed++
		tracker.Counters.AddProcessed(1)
		tracker.Counters.AddBytes(record.Size)
		tracker.ObserveLatency(slot.Base.RxTS, uint64(time.Now().UnixNano()))

		if tracker.ShouldFlush(time.Now()) {
			sink.Emit(tracker.Flush(time.Now()))
		}
	}

	sink.Emit(tracker.FinalReport(time.Now()))
}

func allFeedsFailed(d *dispatcher.Dispatcher) bool {
	for _, f := range d.Feeds() {
		if f.Worker.State.Status() != feedstate.Failed {
			return false
		}
	}
	return true
}

func loadConfig(ctx *orpheus.Context) (*config.MultiFeedConfig, error) {
	if path := ctx.GetFlagString("config"); path != "" {
		return config.FromYAML(path)
	}
	feedsFlag := ctx.GetFlagString("feeds")
	if feedsFlag == "" {
		return nil, faults.Configuration("feedhub: one of --config or --feeds is required")
	}
	specs := strings.Split(feedsFlag, ",")
	cfg, err := config.FromCLIFeeds(specs)
	if err != nil {
		return nil, err
	}
	if gb := ctx.GetFlagInt("global-buffer-capacity"); gb > 0 {
		cfg.GlobalBufferCapacity = uint32(gb)
	}
	return cfg, cfg.Validate()
}
