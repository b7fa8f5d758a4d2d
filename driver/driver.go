// Package driver defines the abstract reception capability every network
// backend implements: initialize/connect/disconnect, a start/stop
// reception pair driven by a caller-owned handler closure, zero-copy
// buffer release, and the counters/gauge named in the component design.
//
// DESIGN NOTES calls for replacing the source's inheritance hierarchy
// (an abstract base class with overridable virtuals) with "a capability
// set... over a tagged variant or a trait-like polymorphism" and for
// avoiding dynamic dispatch on the per-packet callback "by letting the
// driver invoke a concrete closure owned by the caller." A plain Go
// interface plus a caller-supplied Handler closure is exactly that: no
// vtable indirection is needed since Go already erases the concrete type
// behind the interface, and the handler is a function value the caller
// closes over its Ring and Parser with, not a virtual method the driver
// overrides.
package driver

// PacketDesc is the borrowed, zero-copy view of one received chunk handed
// to a Handler. It is valid only for the duration of the Handler call
// that receives it — the handler must copy Data or record ReleaseToken
// for later release via Release, never retain the slice itself.
type PacketDesc struct {
	Data         []byte
	TimestampNS  uint64 // 0 means "use software time"
	ReleaseToken any    // opaque; passed back to Release, never dereferenced
}

// Handler processes one received chunk. It must not block indefinitely —
// if the caller's ring is full and zero-copy is active, it is expected to
// release the token immediately rather than retain it.
type Handler func(PacketDesc)

// State enumerates the driver lifecycle from the component design's state
// machine: Uninit -> Ready -> Connected -> Receiving, with Ready reachable
// again via disconnect or a reconnect backoff, and Uninit terminal only
// after Disconnect from any non-Uninit state.
type State int

const (
	Uninit State = iota
	Ready
	Connected
	Receiving
)

func (s State) String() string {
	switch s {
	case Uninit:
		return "Uninit"
	case Ready:
		return "Ready"
	case Connected:
		return "Connected"
	case Receiving:
		return "Receiving"
	default:
		return "Unknown"
	}
}

// Driver is the capability set every reception backend implements:
// refdriver's plain-TCP sockets, wsdriver's WebSocket frames, and
// vendordriver's fail-fast kernel-bypass stubs.
type Driver interface {
	// Initialize reserves resources for config. May fail with a
	// configuration-fault error.
	Initialize(config Config) error

	// Connect establishes the underlying transport. Idempotent state
	// transitions: calling it from Connected or Receiving is a no-op.
	Connect() error

	// Disconnect tears the transport down and returns to Uninit.
	// Idempotent.
	Disconnect()

	// IsConnected reports whether the driver believes it holds a live
	// connection.
	IsConnected() bool

	// StartReception spawns a dedicated reception context that invokes
	// handler for every received chunk until StopReception is called.
	// Idempotent: a second call while already receiving is a no-op.
	StartReception(handler Handler) error

	// StopReception signals the reception context to stop and blocks
	// until it has. Idempotent.
	StopReception()

	// Release returns a zero-copy buffer identified by token to the
	// driver. token is opaque; core code never dereferences it.
	Release(token any)

	// PacketsReceived, BytesReceived, and PacketsDropped are monotonic
	// counters. CPUUtilization is a best-effort gauge, 0 when unknown.
	PacketsReceived() uint64
	BytesReceived() uint64
	PacketsDropped() uint64
	CPUUtilization() float64

	// State returns the driver's current lifecycle state.
	State() State
}

// Config carries the settings every backend accepts. Backend-specific
// fields (WebSocket path, vendor backend name) live in their own
// package's config type; Config is the common subset the top-level
// wiring code (ingestor, feedworker) depends on directly.
type Config struct {
	Host           string
	Port           uint16
	PollTimeoutUS  uint32 // socket poll timeout, microseconds
	CPUCore        int    // >0 pins the reception goroutine; 0 or negative means unpinned
	ZeroCopy       bool
	ReconnectDelay uint32 // milliseconds; 0 means the backend's own default
}
