package ingestor

import (
	"net"
	"testing"
	"time"

	"github.com/mdfh-labs/feedhub/driver"
	"github.com/mdfh-labs/feedhub/refdriver"
	"github.com/mdfh-labs/feedhub/stats"
	"github.com/mdfh-labs/feedhub/synthgen"
)

// captureSink records every Report handed to it, so the test can assert on
// the final one without depending on obslog's output format.
type captureSink struct {
	reports []stats.Report
}

func (s *captureSink) Emit(r stats.Report) {
	s.reports = append(s.reports, r)
}

// TestRunEndToEndOverTCPLoopback chains the full ingestion path a
// single-feed deployment actually runs: a synthgen.Generator writes
// encoded records into a TCP loopback connection, refdriver.Driver reads
// them off the wire, parser.Parser decodes them into the local Ring, and
// Ingestor.Run drains that Ring into a Tracker whose final Report is
// captured for inspection.
func TestRunEndToEndOverTCPLoopback(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	const totalMessages = 500

	serverErr := make(chan error, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			serverErr <- err
			return
		}
		defer conn.Close()
		gen := synthgen.New(conn, synthgen.Config{
			Seed:        1,
			BatchSize:   50,
			MaxMessages: totalMessages,
		})
		serverErr <- gen.Run()
	}()

	addr := ln.Addr().(*net.TCPAddr)
	drv := refdriver.New()
	if err := drv.Initialize(driver.Config{Host: "127.0.0.1", Port: uint16(addr.Port)}); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	sink := &captureSink{}
	ing := New(drv, Config{
		MaxMessages:      totalMessages,
		DisconnectGiveUp: 2 * time.Second,
		Sink:             sink,
	})

	done := make(chan error, 1)
	go func() { done <- ing.Run() }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("timed out waiting for Run to finish")
	}

	if err := <-serverErr; err != nil {
		t.Fatalf("generator: %v", err)
	}

	if len(sink.reports) == 0 {
		t.Fatal("expected at least one report, the final one")
	}
	final := sink.reports[len(sink.reports)-1]
	if !final.Final {
		t.Fatal("last report emitted should be the final one")
	}
	if final.Processed != totalMessages {
		t.Fatalf("processed %d records, want %d", final.Processed, totalMessages)
	}
	if final.Received != totalMessages {
		t.Fatalf("received %d records, want %d", final.Received, totalMessages)
	}
}
