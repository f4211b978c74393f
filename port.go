package trafficgen

//
// Port descriptor (§3).
//

import (
	"net"
	"sync"
	"sync/atomic"
)

// Port is a host Ethernet device the core can bind a raw sender to. A Port
// is created at startup from host enumeration and never destroyed; its
// descriptor fields (besides counters and neighbor cache) are immutable.
type Port struct {
	// Name is the stable device name and primary key (e.g. "eth0").
	Name string

	// MAC is the port's hardware address, read from the OS at startup.
	MAC net.HardwareAddr

	// IPv4 and IPv6 are the OPTIONAL addresses assigned to the port, either
	// by host DHCP or declared static.
	IPv4 string
	IPv6 string

	// SpeedMbps is the port's nominal link speed.
	SpeedMbps int

	// MTU is the port's maximum transmission unit, read from the host
	// device at enumeration time. Defaults to 1500 for ports constructed
	// without a real kernel device behind them (tests, synthetic fixtures).
	MTU int

	// Type tags the port's physical medium.
	Type PortType

	// Capabilities describes what the port's NIC can do.
	Capabilities PortCapabilities

	// mu guards status.
	mu sync.RWMutex

	// status is the kernel link status, updated by the Prober.
	status PortStatus

	// neighbors is swapped atomically by the Prober (§4.8, §5).
	neighbors atomic.Pointer[NeighborCache]

	// frames, bytes, dropped are the monotonic TX counters (§4.6, §5):
	// atomic fields so readers never observe a torn snapshot.
	frames  atomic.Uint64
	bytes   atomic.Uint64
	dropped atomic.Uint64
}

// NewPort constructs a Port in the "ready" state with an empty neighbor cache.
func NewPort(name string, mac net.HardwareAddr, speedMbps int, typ PortType, caps PortCapabilities) *Port {
	const defaultMTU = 1500
	p := &Port{
		Name:         name,
		MAC:          mac,
		SpeedMbps:    speedMbps,
		MTU:          defaultMTU,
		Type:         typ,
		Capabilities: caps,
		status:       PortStatusReady,
	}
	p.neighbors.Store(&NeighborCache{})
	return p
}

// Status returns the port's current link status.
func (p *Port) Status() PortStatus {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.status
}

// SetStatus updates the port's link status; called by whatever component
// observes kernel link-state changes (the Prober, in this implementation).
func (p *Port) SetStatus(s PortStatus) {
	p.mu.Lock()
	p.status = s
	p.mu.Unlock()
}

// Neighbors returns the current neighbor cache snapshot.
func (p *Port) Neighbors() *NeighborCache {
	return p.neighbors.Load()
}

// SetNeighbors atomically replaces the neighbor cache (§4.8: "Atomically
// replace the port's neighbor cache with the result").
func (p *Port) SetNeighbors(nc *NeighborCache) {
	p.neighbors.Store(nc)
}

// Counters returns a point-in-time snapshot of the port's TX counters.
func (p *Port) Counters() PortCounters {
	return PortCounters{
		Frames:  p.frames.Load(),
		Bytes:   p.bytes.Load(),
		Dropped: p.dropped.Load(),
	}
}

// addSent records a successful transmission.
func (p *Port) addSent(nbytes int) {
	p.frames.Add(1)
	p.bytes.Add(uint64(nbytes))
}

// addDropped records one or more dropped frames.
func (p *Port) addDropped(n uint64) {
	p.dropped.Add(n)
}

// ResetCounters zeroes the port's TX counters (explicit operator request
// only; §3 "counters are reset only on explicit request").
func (p *Port) ResetCounters() {
	p.frames.Store(0)
	p.bytes.Store(0)
	p.dropped.Store(0)
}

// MaxFrameBytes returns the largest frame this port will accept, i.e. its
// MTU plus a conservative allowance for double VLAN tagging (§4.1 Oversize).
func (p *Port) MaxFrameBytes() int {
	const vlanAllowance = 2 * 4 // outer + inner 802.1Q/802.1ad tag
	const ethernetHeader = 14
	const fcsExcluded = 0
	return ethernetHeader + vlanAllowance + p.MTU + fcsExcluded
}
