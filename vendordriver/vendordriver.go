// Package vendordriver stands in for the kernel-bypass backends named in
// the component design (DPDK, Solarflare OpenOnload/ef_vi): a
// driver.Driver that fails fast on Connect with a configuration fault,
// since the vendor SDKs those backends wrap have no portable, pure-Go
// binding available in this environment.
//
// Grounded on the design's BypassBackend enumeration and the capability-
// set note that a backend requiring hardware or a proprietary driver
// should report a hard configuration error rather than silently
// degrading to a software path.
package vendordriver

import (
	"github.com/mdfh-labs/feedhub/driver"
	"github.com/mdfh-labs/feedhub/faults"
)

// Backend names the vendor SDK a Driver instance claims to bind to. None
// are actually available; every value fails identically at Connect.
type Backend int

const (
	DPDK Backend = iota
	SolarflareVI
)

func (b Backend) String() string {
	switch b {
	case DPDK:
		return "DPDK"
	case SolarflareVI:
		return "SolarflareVI"
	default:
		return "Unknown"
	}
}

// Driver is a fail-fast stand-in for a kernel-bypass backend.
type Driver struct {
	backend Backend
	cfg     driver.Config
	state   driver.State
}

// New returns a Driver claiming the given vendor backend.
func New(backend Backend) *Driver {
	return &Driver{backend: backend, state: driver.Uninit}
}

// Initialize always succeeds; the unavailability of the vendor SDK is
// reported at Connect, matching a real binding that only touches hardware
// once a connection is attempted.
func (d *Driver) Initialize(config driver.Config) error {
	d.cfg = config
	d.state = driver.Ready
	return nil
}

// Connect always fails: no vendor SDK binding is available.
func (d *Driver) Connect() error {
	return faults.Configuration("vendordriver: " + d.backend.String() + " backend not available in this build")
}

func (d *Driver) Disconnect()        { d.state = driver.Uninit }
func (d *Driver) IsConnected() bool  { return false }
func (d *Driver) State() driver.State { return d.state }

// StartReception always fails; a connection was never established.
func (d *Driver) StartReception(handler driver.Handler) error {
	return faults.Configuration("vendordriver: cannot start reception without a connection")
}

func (d *Driver) StopReception()       {}
func (d *Driver) Release(token any)    {}
func (d *Driver) PacketsReceived() uint64 { return 0 }
func (d *Driver) BytesReceived() uint64   { return 0 }
func (d *Driver) PacketsDropped() uint64  { return 0 }
func (d *Driver) CPUUtilization() float64 { return 0 }
