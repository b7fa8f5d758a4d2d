// Package refdriver is the reference plain-TCP backend for driver.Driver:
// non-blocking-style reads on a dedicated goroutine, a fixed 64 KiB receive
// buffer, TCP no-delay, a poll-timeout read deadline so a read that yields
// no data returns and the loop rechecks its stop flag, and a one-second
// reconnect backoff on connection loss.
//
// Grounded on the teacher's ws/ws_io.go read loop (ensureRoom/ReadFrame's
// buffer-driven read-then-parse shape) and ws/ws_conn.go's dial/handshake
// sequencing, but rewritten as an instance type: the teacher's wsBuf and
// processor are package-level globals, which cannot serve more than one
// concurrent feed. Every buffer and counter here lives on *Driver instead.
//
// When driver.Config.ZeroCopy is set, StartReception hands out borrowed
// views into a small fixed pool of buffers instead of copying into the
// scratch buffer: a packetpool.Pool defers each PacketDesc.ReleaseToken's
// actual reclaim to a background cleanup goroutine, matching packetpool's
// documented producer/consumer split between the reception handler and a
// cleanup step run off the hot path.
package refdriver

import (
	"net"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/mdfh-labs/feedhub/driver"
	"github.com/mdfh-labs/feedhub/faults"
	"github.com/mdfh-labs/feedhub/lifecycle"
	"github.com/mdfh-labs/feedhub/obslog"
	"github.com/mdfh-labs/feedhub/packetpool"
	"github.com/mdfh-labs/feedhub/ring"
)

const recvBufSize = 64 * 1024

const reconnectBackoff = time.Second

// zeroCopyBufCount is the fixed number of borrowable buffers backing
// zero-copy mode. A packet that arrives while every buffer is still
// outstanding falls back to the scratch buffer and is dropped rather than
// stalling the socket.
const zeroCopyBufCount = 32

// zcCleanupInterval is how often the cleanup goroutine drains released
// tokens back into the free-buffer pool.
const zcCleanupInterval = time.Millisecond

// Driver is the reference TCP implementation of driver.Driver.
type Driver struct {
	cfg  driver.Config
	conn net.Conn

	state int32 // driver.State, accessed atomically for IsConnected/State

	life *lifecycle.Handle
	buf  [recvBufSize]byte

	zcBufs   [][]byte
	freeBufs chan int
	zcPool   *packetpool.Pool

	packetsReceived uint64
	bytesReceived   uint64
	hot             obslog.Hot
}

// New returns a Driver in the Uninit state.
func New() *Driver {
	return &Driver{state: int32(driver.Uninit)}
}

// Initialize validates config and moves the driver to Ready.
func (d *Driver) Initialize(config driver.Config) error {
	if config.Host == "" {
		return faults.Configuration("refdriver: host must not be empty")
	}
	if config.Port == 0 {
		return faults.Configuration("refdriver: port must not be zero")
	}
	d.cfg = config
	if config.ZeroCopy {
		d.initZeroCopy()
	}
	d.setState(driver.Ready)
	return nil
}

// initZeroCopy allocates the borrow pool and its reclaim queue once, so
// buffers survive a Disconnect/Connect cycle instead of being reallocated
// each time reception restarts.
func (d *Driver) initZeroCopy() {
	if d.zcBufs != nil {
		return
	}
	d.zcBufs = make([][]byte, zeroCopyBufCount)
	d.freeBufs = make(chan int, zeroCopyBufCount)
	for i := range d.zcBufs {
		d.zcBufs[i] = make([]byte, recvBufSize)
		d.freeBufs <- i
	}
	d.zcPool = packetpool.New(packetpool.DefaultCapacity)
}

// Connect dials the configured host:port. A no-op when already Connected
// or Receiving.
func (d *Driver) Connect() error {
	if d.State() == driver.Connected || d.State() == driver.Receiving {
		return nil
	}
	addr := net.JoinHostPort(d.cfg.Host, portString(d.cfg.Port))
	conn, err := net.DialTimeout("tcp", addr, 5*time.Second)
	if err != nil {
		return faults.ConnectionWrap(err, "refdriver: dial failed")
	}
	if tc, ok := conn.(*net.TCPConn); ok {
		_ = tc.SetNoDelay(true)
	}
	d.conn = conn
	d.setState(driver.Connected)
	obslog.Cold.Info().Str("addr", addr).Msg("refdriver connected")
	return nil
}

// Disconnect tears the transport down unconditionally and returns to
// Uninit, per the state machine's terminal-transition rule.
func (d *Driver) Disconnect() {
	if d.life != nil {
		d.StopReception()
	}
	if d.conn != nil {
		_ = d.conn.Close()
		d.conn = nil
	}
	d.setState(driver.Uninit)
}

// IsConnected reports whether the driver holds a live connection.
func (d *Driver) IsConnected() bool {
	s := d.State()
	return s == driver.Connected || s == driver.Receiving
}

// StartReception spawns the reception goroutine, plus a reclaim cleanup
// goroutine when zero-copy is active. A no-op if reception is already
// running.
func (d *Driver) StartReception(handler driver.Handler) error {
	if d.State() == driver.Receiving {
		return nil
	}
	if !d.IsConnected() {
		return faults.Connection("refdriver: StartReception before Connect")
	}
	d.life = lifecycle.New()
	d.setState(driver.Receiving)
	d.life.Go(func() { d.receiveLoop(handler) })
	if d.cfg.ZeroCopy {
		d.life.Go(d.zcCleanupLoop)
	}
	return nil
}

// StopReception signals the reception goroutine and blocks until it exits.
// A no-op if reception is not running.
func (d *Driver) StopReception() {
	if d.life == nil {
		return
	}
	d.life.StopAndWait()
	d.life = nil
	if d.State() == driver.Receiving {
		d.setState(driver.Connected)
	}
}

// Release returns a zero-copy buffer to circulation. It never blocks the
// caller (the reception handler's own hot path): the token is enqueued
// onto the reclaim pool for the cleanup goroutine to fold back into the
// free list, or reclaimed immediately if the pool is momentarily full.
// Non-zero-copy mode has nothing to reclaim, since PacketDesc.Data then
// points into d.buf, which the receive loop reuses on its own cadence.
func (d *Driver) Release(token any) {
	if !d.cfg.ZeroCopy || d.zcPool == nil {
		return
	}
	if !d.zcPool.TryEnqueue(token) {
		d.reclaimBuf(token)
	}
}

// reclaimBuf pushes a released buffer index back onto the free list.
func (d *Driver) reclaimBuf(token any) {
	idx, ok := token.(int)
	if !ok {
		return
	}
	select {
	case d.freeBufs <- idx:
	default:
		// Free list is somehow already full (a double-release); drop the
		// token rather than block or panic.
	}
}

// zcCleanupLoop drains released tokens off the hot path and folds them
// back into the free-buffer list, per packetpool's documented split
// between the reception handler (producer) and this cleanup step
// (consumer).
func (d *Driver) zcCleanupLoop() {
	rel := releaseFunc(d.reclaimBuf)
	for !d.life.Stopped() {
		d.zcPool.Drain(rel)
		time.Sleep(zcCleanupInterval)
	}
	d.zcPool.Drain(rel)
}

// releaseFunc adapts a plain function to packetpool.Releaser.
type releaseFunc func(token any)

func (f releaseFunc) Release(token any) { f(token) }

func (d *Driver) PacketsReceived() uint64 { return atomic.LoadUint64(&d.packetsReceived) }
func (d *Driver) BytesReceived() uint64   { return atomic.LoadUint64(&d.bytesReceived) }
func (d *Driver) PacketsDropped() uint64  { return d.hot.Drops() }

// CPUUtilization is unavailable for the reference backend; it always
// reports zero, per the interface's "0 when unknown" contract.
func (d *Driver) CPUUtilization() float64 { return 0 }

func (d *Driver) State() driver.State {
	return driver.State(atomic.LoadInt32(&d.state))
}

func (d *Driver) setState(s driver.State) {
	atomic.StoreInt32(&d.state, int32(s))
}

// receiveLoop is the reception context: poll-timeout reads, handler
// dispatch, and 1-second-backoff reconnection on transport error.
func (d *Driver) receiveLoop(handler driver.Handler) {
	if d.cfg.CPUCore > 0 {
		runtimeLockAndPin(d.cfg.CPUCore)
	}
	pollTimeout := time.Duration(d.cfg.PollTimeoutUS) * time.Microsecond
	if pollTimeout <= 0 {
		pollTimeout = 100 * time.Microsecond
	}
	for !d.life.Stopped() {
		conn := d.conn
		if conn == nil {
			if !d.reconnect() {
				return
			}
			continue
		}
		_ = conn.SetReadDeadline(time.Now().Add(pollTimeout))
		if d.cfg.ZeroCopy {
			if !d.receiveZeroCopy(conn, handler) {
				return
			}
			continue
		}
		n, err := conn.Read(d.buf[:])
		if err != nil {
			if d.handleReadErr(conn, err) {
				continue
			}
			return
		}
		if n == 0 {
			continue
		}
		atomic.AddUint64(&d.packetsReceived, 1)
		atomic.AddUint64(&d.bytesReceived, uint64(n))
		handler(driver.PacketDesc{
			Data:        d.buf[:n],
			TimestampNS: 0,
		})
	}
}

// receiveZeroCopy reads one chunk into a borrowed buffer when one is free,
// or into the scratch buffer and drops the chunk otherwise. Returns false
// when the reception context should stop.
func (d *Driver) receiveZeroCopy(conn net.Conn, handler driver.Handler) bool {
	select {
	case idx := <-d.freeBufs:
		n, err := conn.Read(d.zcBufs[idx])
		if err != nil {
			d.freeBufs <- idx
			if d.handleReadErr(conn, err) {
				return true
			}
			return false
		}
		if n == 0 {
			d.freeBufs <- idx
			return true
		}
		atomic.AddUint64(&d.packetsReceived, 1)
		atomic.AddUint64(&d.bytesReceived, uint64(n))
		handler(driver.PacketDesc{
			Data:         d.zcBufs[idx][:n],
			TimestampNS:  0,
			ReleaseToken: idx,
		})
	default:
		n, err := conn.Read(d.buf[:])
		if err != nil {
			if d.handleReadErr(conn, err) {
				return true
			}
			return false
		}
		if n > 0 {
			d.hot.Drop()
			obslog.Cold.Warn().Msg("refdriver: zero-copy pool exhausted, dropping chunk")
		}
	}
	return true
}

// handleReadErr handles a read error and always returns true ("continue
// the loop"): a timeout is ignored, and any other error closes the
// connection and sets conn to nil so the caller's next iteration
// reconnects.
func (d *Driver) handleReadErr(conn net.Conn, err error) bool {
	if ne, ok := err.(net.Error); ok && ne.Timeout() {
		return true
	}
	obslog.Cold.Warn().Err(err).Msg("refdriver read failed, reconnecting")
	_ = conn.Close()
	d.conn = nil
	d.setState(driver.Ready)
	return true
}

// reconnect waits the full configured reconnect delay (default
// reconnectBackoff), then checks the stop flag and, if it is not set,
// redials. Returns false if the loop should exit.
func (d *Driver) reconnect() bool {
	backoff := reconnectBackoff
	if d.cfg.ReconnectDelay > 0 {
		backoff = time.Duration(d.cfg.ReconnectDelay) * time.Millisecond
	}
	timer := time.NewTimer(backoff)
	defer timer.Stop()
	<-timer.C
	if d.life.Stopped() {
		return false
	}
	if err := d.Connect(); err != nil {
		obslog.Cold.Warn().Err(err).Msg("refdriver reconnect failed")
	}
	return true
}

// runtimeLockAndPin locks the calling goroutine to its OS thread and pins
// that thread to core, mirroring ring.PinnedConsumer's own bootstrap so
// the reception context gets the same treatment as a data-plane consumer.
func runtimeLockAndPin(core int) {
	runtime.LockOSThread()
	ring.PinCurrentThread(core - 1)
}

// portString avoids importing fmt on this hot-path-adjacent file for a
// single conversion.
func portString(port uint16) string {
	return strconv.FormatUint(uint64(port), 10)
}
