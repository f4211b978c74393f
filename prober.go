package trafficgen

//
// Neighbor Prober (§4.8): keeps each port's ARP/NDP and LLDP neighbor cache
// fresh by periodically reading kernel tables via netlink. Read-only: the
// Prober never mutates the kernel. A single periodic task scans every port
// on a schedule, rather than spawning a fixed worker pool at construction
// time.
//

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/vishvananda/netlink"
)

// LLDPSource is a pluggable read-only source of LLDP neighbor information,
// letting a test double stand in for a real host LLDP daemon (§4.8).
type LLDPSource interface {
	// Neighbors returns the LLDP entries witnessed on ifaceName.
	Neighbors(ifaceName string) ([]LLDPEntry, error)
}

// NoLLDPSource is an LLDPSource that always reports no neighbors, used when
// no host LLDP daemon is configured.
type NoLLDPSource struct{}

// Neighbors implements LLDPSource.
func (NoLLDPSource) Neighbors(ifaceName string) ([]LLDPEntry, error) {
	return nil, nil
}

// defaultProbeInterval is the Prober's default fixed schedule (§4.8).
const defaultProbeInterval = 10 * time.Second

// defaultProbeTimeout bounds a single port's scan (§5 "Prober scans have a
// per-port timeout").
const defaultProbeTimeout = 2 * time.Second

// NeighborProber periodically refreshes every Port's neighbor cache. The
// zero value is invalid; use NewNeighborProber.
type NeighborProber struct {
	registry *Registry
	lldp     LLDPSource
	logger   Logger
	interval time.Duration
	timeout  time.Duration
}

// NewNeighborProber constructs a Prober over registry's ports using the
// default 10s schedule and a 2s per-port timeout.
func NewNeighborProber(registry *Registry, lldp LLDPSource, logger Logger) *NeighborProber {
	if lldp == nil {
		lldp = NoLLDPSource{}
	}
	return &NeighborProber{
		registry: registry,
		lldp:     lldp,
		logger:   logger,
		interval: defaultProbeInterval,
		timeout:  defaultProbeTimeout,
	}
}

// Run blocks, scanning every port on the Prober's schedule until ctx is
// canceled.
func (np *NeighborProber) Run(ctx context.Context) {
	ticker := time.NewTicker(np.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			np.ScanAll(ctx)
		}
	}
}

// ScanAll refreshes every known port's neighbor cache, used both by the
// periodic schedule and by the Control Adapter's on-demand
// discover_neighbors command (§4.9).
func (np *NeighborProber) ScanAll(ctx context.Context) {
	for _, port := range np.registry.ListPorts() {
		np.scanOne(ctx, port)
	}
}

// ScanPorts refreshes only the named ports, returning ErrUnknownPort for
// any name not in the Registry.
func (np *NeighborProber) ScanPorts(ctx context.Context, names []string) error {
	for _, name := range names {
		port, err := np.registry.GetPort(name)
		if err != nil {
			return err
		}
		np.scanOne(ctx, port)
	}
	return nil
}

// scanOne scans a single port within the per-port timeout, logging and
// preserving the previous cache on timeout or error (§4.8, §5). A
// successful scan also sets the port's status from the link state it read.
func (np *NeighborProber) scanOne(ctx context.Context, port *Port) {
	scanCtx, cancel := context.WithTimeout(ctx, np.timeout)
	defer cancel()

	type result struct {
		nc  *NeighborCache
		err error
	}
	ch := make(chan result, 1)
	go func() {
		nc, err := np.probe(port)
		ch <- result{nc, err}
	}()

	select {
	case <-scanCtx.Done():
		np.logger.Warnf("trafficgen: prober: port %s: scan timed out, keeping previous cache", port.Name)
	case r := <-ch:
		if r.err != nil {
			np.logger.Warnf("trafficgen: prober: port %s: %s, keeping previous cache", port.Name, r.err.Error())
			return
		}
		port.SetNeighbors(r.nc)
		if r.nc.Link.Up {
			port.SetStatus(PortStatusReady)
		} else {
			port.SetStatus(PortStatusUnavailable)
		}
	}
}

// probe performs the actual synchronous netlink reads for one port.
func (np *NeighborProber) probe(port *Port) (*NeighborCache, error) {
	link, err := netlink.LinkByName(port.Name)
	if err != nil {
		return nil, fmt.Errorf("link lookup: %w", err)
	}

	arpEntries, err := np.readARP(link)
	if err != nil {
		return nil, fmt.Errorf("arp/ndp read: %w", err)
	}

	lldpEntries, err := np.lldp.Neighbors(port.Name)
	if err != nil {
		np.logger.Debugf("trafficgen: prober: port %s: lldp: %s", port.Name, err.Error())
		lldpEntries = nil
	}

	attrs := link.Attrs()
	linkState := LinkState{
		Up:     attrs.Flags&net.FlagUp != 0,
		Speed:  port.SpeedMbps,
		Duplex: "full",
	}

	return &NeighborCache{
		ARP:       arpEntries,
		LLDP:      lldpEntries,
		Link:      linkState,
		ScannedAt: time.Now(),
	}, nil
}

// readARP reads the kernel's IPv4 ARP and IPv6 NDP neighbor tables for
// entries witnessed on link.
func (np *NeighborProber) readARP(link netlink.Link) ([]ARPEntry, error) {
	var out []ARPEntry
	for _, family := range []int{netlink.FAMILY_V4, netlink.FAMILY_V6} {
		neighs, err := netlink.NeighList(link.Attrs().Index, family)
		if err != nil {
			// one address family being unsupported (e.g. no IPv6) is not fatal.
			continue
		}
		for _, n := range neighs {
			if n.IP == nil {
				continue
			}
			out = append(out, ARPEntry{
				IP:    n.IP.String(),
				MAC:   n.HardwareAddr.String(),
				State: neighStateString(n.State),
			})
		}
	}
	return out, nil
}

// neighStateString renders a netlink neighbor state as the coarse
// "reachable"/"stale"/"incomplete"/"other" vocabulary the Frame Builder's
// MAC resolution checks against.
func neighStateString(state int) string {
	switch state {
	case netlink.NUD_REACHABLE, netlink.NUD_PERMANENT, netlink.NUD_NOARP:
		return "reachable"
	case netlink.NUD_STALE:
		return "stale"
	case netlink.NUD_INCOMPLETE:
		return "incomplete"
	default:
		return "other"
	}
}
