package refdriver

import (
	"net"
	"sync"
	"testing"
	"time"

	"github.com/mdfh-labs/feedhub/driver"
)

func listenLoopback(t *testing.T) (net.Listener, string, uint16) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().(*net.TCPAddr)
	return ln, "127.0.0.1", uint16(addr.Port)
}

func TestInitializeRejectsBadConfig(t *testing.T) {
	d := New()
	if err := d.Initialize(driver.Config{Port: 1}); err == nil {
		t.Fatal("expected error for empty host")
	}
	if err := d.Initialize(driver.Config{Host: "127.0.0.1"}); err == nil {
		t.Fatal("expected error for zero port")
	}
}

func TestConnectReceiveDisconnect(t *testing.T) {
	ln, host, port := listenLoopback(t)
	defer ln.Close()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		conn.Write([]byte("hello-world-payload"))
		time.Sleep(50 * time.Millisecond)
	}()

	d := New()
	if err := d.Initialize(driver.Config{Host: host, Port: port, PollTimeoutUS: 1000}); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if d.State() != driver.Ready {
		t.Fatalf("state after Initialize = %v, want Ready", d.State())
	}
	if err := d.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if !d.IsConnected() {
		t.Fatal("expected IsConnected true after Connect")
	}

	var mu sync.Mutex
	var received []byte
	done := make(chan struct{})
	err := d.StartReception(func(p driver.PacketDesc) {
		mu.Lock()
		defer mu.Unlock()
		if received == nil {
			received = append([]byte(nil), p.Data...)
			close(done)
		}
	})
	if err != nil {
		t.Fatalf("StartReception: %v", err)
	}
	if d.State() != driver.Receiving {
		t.Fatalf("state after StartReception = %v, want Receiving", d.State())
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for received packet")
	}

	mu.Lock()
	got := string(received)
	mu.Unlock()
	if got != "hello-world-payload" {
		t.Fatalf("received %q, want %q", got, "hello-world-payload")
	}
	if d.PacketsReceived() == 0 {
		t.Fatal("PacketsReceived should be nonzero")
	}
	if d.BytesReceived() == 0 {
		t.Fatal("BytesReceived should be nonzero")
	}

	d.StopReception()
	if d.State() != driver.Connected {
		t.Fatalf("state after StopReception = %v, want Connected", d.State())
	}
	d.Disconnect()
	if d.State() != driver.Uninit {
		t.Fatalf("state after Disconnect = %v, want Uninit", d.State())
	}
	wg.Wait()
}

func TestStartStopIdempotent(t *testing.T) {
	ln, host, port := listenLoopback(t)
	defer ln.Close()
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			defer conn.Close()
			time.Sleep(100 * time.Millisecond)
		}
	}()

	d := New()
	_ = d.Initialize(driver.Config{Host: host, Port: port, PollTimeoutUS: 1000})
	_ = d.Connect()
	_ = d.Connect() // idempotent

	err1 := d.StartReception(func(driver.PacketDesc) {})
	err2 := d.StartReception(func(driver.PacketDesc) {}) // idempotent no-op
	if err1 != nil || err2 != nil {
		t.Fatalf("StartReception errors: %v, %v", err1, err2)
	}
	d.StopReception()
	d.StopReception() // idempotent
	d.Disconnect()
	d.Disconnect() // idempotent
}
