package ingestor

import (
	"sync"
	"testing"
	"time"

	"github.com/mdfh-labs/feedhub/driver"
	"github.com/mdfh-labs/feedhub/record"
	"github.com/mdfh-labs/feedhub/stats"
)

// burstDriver delivers a fixed byte stream once from a background
// goroutine shortly after StartReception is called, then reports Ready
// (disconnected) forever so a MaxSeconds-less run still terminates via
// the disconnect-give-up predicate.
type burstDriver struct {
	mu      sync.Mutex
	state   driver.State
	feed    []byte
	handler driver.Handler
}

func (d *burstDriver) Initialize(driver.Config) error { return nil }
func (d *burstDriver) Connect() error {
	d.mu.Lock()
	d.state = driver.Connected
	d.mu.Unlock()
	return nil
}
func (d *burstDriver) Disconnect() {
	d.mu.Lock()
	d.state = driver.Uninit
	d.mu.Unlock()
}
func (d *burstDriver) IsConnected() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state == driver.Connected || d.state == driver.Receiving
}
func (d *burstDriver) StartReception(handler driver.Handler) error {
	d.mu.Lock()
	d.handler = handler
	d.state = driver.Receiving
	d.mu.Unlock()
	go func() {
		time.Sleep(5 * time.Millisecond)
		handler(driver.PacketDesc{Data: d.feed})
		d.mu.Lock()
		d.state = driver.Ready
		d.mu.Unlock()
	}()
	return nil
}
func (d *burstDriver) StopReception() {
	d.mu.Lock()
	d.state = driver.Connected
	d.mu.Unlock()
}
func (d *burstDriver) Release(any)             {}
func (d *burstDriver) PacketsReceived() uint64 { return 1 }
func (d *burstDriver) BytesReceived() uint64   { return uint64(len(d.feed)) }
func (d *burstDriver) PacketsDropped() uint64  { return 0 }
func (d *burstDriver) CPUUtilization() float64 { return 0 }
func (d *burstDriver) State() driver.State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

func encodeRecord(seq uint64, price float64, qty int32) []byte {
	buf := make([]byte, record.Size)
	record.Encode(buf, record.Record{Seq: seq, Price: price, Quantity: qty})
	return buf
}

type collectSink struct {
	reports []stats.Report
}

func (s *collectSink) Emit(r stats.Report) { s.reports = append(s.reports, r) }

func TestRunProcessesAllRecordsThenTerminatesOnDisconnect(t *testing.T) {
	var feed []byte
	for i := uint64(1); i <= 5; i++ {
		feed = append(feed, encodeRecord(i, float64(i), int32(i))...)
	}
	fd := &burstDriver{feed: feed}
	sink := &collectSink{}
	ing := New(fd, Config{DisconnectGiveUp: 20 * time.Millisecond, Sink: sink})

	done := make(chan error, 1)
	go func() { done <- ing.Run() }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not terminate within timeout")
	}

	if len(sink.reports) == 0 {
		t.Fatal("expected at least the final report")
	}
	final := sink.reports[len(sink.reports)-1]
	if !final.Final {
		t.Fatal("expected the last report to be marked Final")
	}
	if final.Processed != 5 {
		t.Fatalf("Processed = %d, want 5", final.Processed)
	}
}

func TestRunRespectsMaxMessages(t *testing.T) {
	var feed []byte
	for i := uint64(1); i <= 20; i++ {
		feed = append(feed, encodeRecord(i, float64(i), int32(i))...)
	}
	fd := &burstDriver{feed: feed}
	sink := &collectSink{}
	ing := New(fd, Config{MaxMessages: 3, DisconnectGiveUp: time.Hour, Sink: sink})

	done := make(chan error, 1)
	go func() { done <- ing.Run() }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not terminate within timeout")
	}

	final := sink.reports[len(sink.reports)-1]
	if final.Processed < 3 {
		t.Fatalf("Processed = %d, want >= 3 (MaxMessages predicate)", final.Processed)
	}
}
