// Command feedhub-ingestor runs the single-feed ingestion consumer: one
// TCP connection, one Parser, one Ring, one Stats Tracker, printed as a
// periodic line-per-second report and a final summary on exit.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/agilira/orpheus/pkg/orpheus"

	"github.com/mdfh-labs/feedhub/driver"
	"github.com/mdfh-labs/feedhub/faults"
	"github.com/mdfh-labs/feedhub/ingestor"
	"github.com/mdfh-labs/feedhub/obslog"
	"github.com/mdfh-labs/feedhub/refdriver"
	"github.com/mdfh-labs/feedhub/stats"
)

func main() {
	runCmd := orpheus.NewCommand("run", "Connect to one feed and ingest until a limit is reached").
		AddFlag("host", "H", "127.0.0.1", "feed host").
		AddIntFlag("port", "p", 9001, "feed port").
		AddIntFlag("buffer-capacity", "b", 1<<14, "ring capacity, must be a power of two").
		AddIntFlag("max-seconds", "s", 0, "stop after this many seconds (0 = unbounded)").
		AddIntFlag("max-messages", "m", 0, "stop after this many messages (0 = unbounded)").
		AddBoolFlag("json-stats", "j", false, "emit newline-delimited JSON reports instead of log lines").
		SetHandler(runIngestor)

	app := orpheus.New("feedhub-ingestor").
		SetDescription("Single-feed market data ingestion consumer").
		SetVersion("0.1.0")
	app.AddCommand(runCmd)

	if err := app.Run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "feedhub-ingestor:", err)
		os.Exit(1)
	}
}

func runIngestor(ctx *orpheus.Context) error {
	capacity := ctx.GetFlagInt("buffer-capacity")
	if capacity <= 0 || capacity&(capacity-1) != 0 {
		return exitError(faults.Configuration(fmt.Sprintf("buffer-capacity must be a power of two, got %d", capacity)))
	}

	drv := refdriver.New()
	cfg := driver.Config{
		Host: ctx.GetFlagString("host"),
		Port: uint16(ctx.GetFlagInt("port")),
	}
	if err := drv.Initialize(cfg); err != nil {
		return exitError(faults.ConfigurationWrap(err, "ingestor: driver initialize failed"))
	}

	var sink stats.Sink = stats.LogSink{}
	if ctx.GetFlagBool("json-stats") {
		sink = stats.JSONSink{W: os.Stdout}
	}

	ing := ingestor.New(drv, ingestor.Config{
		MaxSeconds:   time.Duration(ctx.GetFlagInt("max-seconds")) * time.Second,
		MaxMessages:  uint64(ctx.GetFlagInt("max-messages")),
		RingCapacity: capacity,
		Sink:         sink,
	})

	if err := ing.Run(); err != nil {
		return exitError(err)
	}
	return nil
}

// exitError logs a fault and returns it unchanged so orpheus's own error
// path drives the process exit code; ConfigurationFault and fatal driver
// errors both terminate with code 1.
func exitError(err error) error {
	obslog.Cold.Error().Err(err).Msg("feedhub-ingestor: fatal")
	return err
}
