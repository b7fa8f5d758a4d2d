// Command feedsim listens on a TCP port and streams synthetic market data
// to whichever client connects first, for driving cmd/ingestor or
// cmd/feedhub end to end without a real exchange feed.
package main

import (
	"fmt"
	"net"
	"os"
	"time"

	"github.com/agilira/orpheus/pkg/orpheus"

	"github.com/mdfh-labs/feedhub/encoding"
	"github.com/mdfh-labs/feedhub/obslog"
	"github.com/mdfh-labs/feedhub/synthgen"
)

func main() {
	runCmd := orpheus.NewCommand("run", "Serve one synthetic market data connection").
		AddFlag("host", "H", "127.0.0.1", "listen host").
		AddIntFlag("port", "p", 9001, "listen port").
		AddIntFlag("rate", "r", 100000, "messages per second, 0 = unbounded").
		AddIntFlag("batch-size", "b", 100, "messages generated per write").
		AddIntFlag("seed", "", 0, "RNG seed, 0 = seed from current time").
		AddIntFlag("max-seconds", "s", 0, "stop after this many seconds (0 = unbounded)").
		AddIntFlag("max-messages", "m", 0, "stop after this many messages (0 = unbounded)").
		AddFlag("encoding", "e", "binary", "wire encoding: binary|fix|itch").
		SetHandler(runSim)

	app := orpheus.New("feedsim").
		SetDescription("Synthetic market data generator and TCP server").
		SetVersion("0.1.0")
	app.AddCommand(runCmd)

	if err := app.Run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "feedsim:", err)
		os.Exit(1)
	}
}

func runSim(ctx *orpheus.Context) error {
	enc, err := pickEncoder(ctx.GetFlagString("encoding"))
	if err != nil {
		return err
	}

	addr := fmt.Sprintf("%s:%d", ctx.GetFlagString("host"), ctx.GetFlagInt("port"))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	defer ln.Close()
	obslog.Cold.Info().Str("addr", addr).Msg("feedsim: listening")

	conn, err := ln.Accept()
	if err != nil {
		return err
	}
	defer conn.Close()
	obslog.Cold.Info().Str("remote", conn.RemoteAddr().String()).Msg("feedsim: client connected")

	gen := synthgen.New(conn, synthgen.Config{
		Seed:          uint64(ctx.GetFlagInt("seed")),
		RatePerSecond: uint32(ctx.GetFlagInt("rate")),
		BatchSize:     uint32(ctx.GetFlagInt("batch-size")),
		MaxSeconds:    time.Duration(ctx.GetFlagInt("max-seconds")) * time.Second,
		MaxMessages:   uint64(ctx.GetFlagInt("max-messages")),
		Encoder:       enc,
	})

	if err := gen.Run(); err != nil {
		obslog.Cold.Error().Err(err).Msg("feedsim: generator stopped")
		return err
	}
	obslog.Cold.Info().Uint64("sent", gen.MessagesSent()).Msg("feedsim: done")
	return nil
}

func pickEncoder(name string) (encoding.Encoder, error) {
	switch name {
	case "binary", "":
		return encoding.BinaryEncoder{}, nil
	case "fix":
		return encoding.NewFIXEncoder(), nil
	case "itch":
		return encoding.ITCHEncoder{}, nil
	default:
		return nil, fmt.Errorf("feedsim: unknown encoding %q", name)
	}
}
