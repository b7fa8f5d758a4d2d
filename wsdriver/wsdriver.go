// Package wsdriver implements driver.Driver over a WebSocket transport
// using gorilla/websocket, demonstrating that the ingestion data plane is
// driver-agnostic: it consumes the same Handler/PacketDesc contract as
// refdriver's plain TCP backend.
//
// Grounded on chycee-cryptoGo's exchange worker connection idiom (a
// websocket.Dialer with a handshake timeout, a read loop calling
// ReadMessage in a tight loop under a context) and the teacher's own
// ws/ws.go framing responsibility, re-expressed over the library instead
// of the teacher's hand-rolled RFC 6455 parser.
package wsdriver

import (
	"net"
	"net/url"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mdfh-labs/feedhub/driver"
	"github.com/mdfh-labs/feedhub/faults"
	"github.com/mdfh-labs/feedhub/lifecycle"
	"github.com/mdfh-labs/feedhub/obslog"
)

const handshakeTimeout = 10 * time.Second

const reconnectBackoff = time.Second

// Path is the WebSocket-specific config: the URL path/query appended to
// driver.Config's Host:Port, since driver.Config carries only the fields
// every backend shares.
type Path string

// Driver is the WebSocket implementation of driver.Driver.
type Driver struct {
	cfg  driver.Config
	path Path
	conn *websocket.Conn

	// insecure dials ws:// instead of wss://. Every production feed this
	// backend targets terminates TLS, so there is no exported setter; it
	// exists only for this package's own tests to point at a plain
	// httptest server.
	insecure bool

	state int32

	life *lifecycle.Handle

	packetsReceived uint64
	bytesReceived   uint64
	packetsDropped  uint64
}

// New returns a Driver in the Uninit state that will dial path once
// initialized and connected.
func New(path Path) *Driver {
	return &Driver{state: int32(driver.Uninit), path: path}
}

func (d *Driver) Initialize(config driver.Config) error {
	if config.Host == "" {
		return faults.Configuration("wsdriver: host must not be empty")
	}
	d.cfg = config
	d.setState(driver.Ready)
	return nil
}

func (d *Driver) url() string {
	scheme := "wss"
	if d.insecure {
		scheme = "ws"
	}
	u := url.URL{
		Scheme: scheme,
		Host:   net.JoinHostPort(d.cfg.Host, strconv.FormatUint(uint64(d.cfg.Port), 10)),
		Path:   string(d.path),
	}
	return u.String()
}

func (d *Driver) Connect() error {
	if d.State() == driver.Connected || d.State() == driver.Receiving {
		return nil
	}
	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, _, err := dialer.Dial(d.url(), nil)
	if err != nil {
		return faults.ConnectionWrap(err, "wsdriver: dial failed")
	}
	d.conn = conn
	d.setState(driver.Connected)
	obslog.Cold.Info().Str("url", d.url()).Msg("wsdriver connected")
	return nil
}

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

func (d *Driver) IsConnected() bool {
	s := d.State()
	return s == driver.Connected || s == driver.Receiving
}

func (d *Driver) StartReception(handler driver.Handler) error {
	if d.State() == driver.Receiving {
		return nil
	}
	if !d.IsConnected() {
		return faults.Connection("wsdriver: StartReception before Connect")
	}
	d.life = lifecycle.New()
	d.setState(driver.Receiving)
	d.life.Go(func() { d.receiveLoop(handler) })
	return nil
}

func (d *Driver) StopReception() {
	if d.life == nil {
		return
	}
	if d.conn != nil {
		_ = d.conn.SetReadDeadline(time.Now())
	}
	d.life.StopAndWait()
	d.life = nil
	if d.State() == driver.Receiving {
		d.setState(driver.Connected)
	}
}

// Release is a no-op: gorilla/websocket's ReadMessage already returns an
// owned byte slice, so there is no driver-owned buffer to reclaim.
func (d *Driver) Release(token any) {}

func (d *Driver) PacketsReceived() uint64  { return atomic.LoadUint64(&d.packetsReceived) }
func (d *Driver) BytesReceived() uint64    { return atomic.LoadUint64(&d.bytesReceived) }
func (d *Driver) PacketsDropped() uint64   { return atomic.LoadUint64(&d.packetsDropped) }
func (d *Driver) CPUUtilization() float64  { return 0 }

func (d *Driver) State() driver.State { return driver.State(atomic.LoadInt32(&d.state)) }

func (d *Driver) setState(s driver.State) { atomic.StoreInt32(&d.state, int32(s)) }

func (d *Driver) receiveLoop(handler driver.Handler) {
	pollTimeout := time.Duration(d.cfg.PollTimeoutUS) * time.Microsecond
	if pollTimeout <= 0 {
		pollTimeout = 100 * time.Millisecond
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
		_, data, err := conn.ReadMessage()
		if err != nil {
			if d.life.Stopped() {
				return
			}
			if ne, ok := err.(interface{ Timeout() bool }); ok && ne.Timeout() {
				continue
			}
			obslog.Cold.Warn().Err(err).Msg("wsdriver read failed, reconnecting")
			_ = conn.Close()
			d.conn = nil
			d.setState(driver.Ready)
			continue
		}
		if len(data) == 0 {
			continue
		}
		atomic.AddUint64(&d.packetsReceived, 1)
		atomic.AddUint64(&d.bytesReceived, uint64(len(data)))
		handler(driver.PacketDesc{Data: data, TimestampNS: 0})
	}
}

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
		obslog.Cold.Warn().Err(err).Msg("wsdriver reconnect failed")
	}
	return true
}
