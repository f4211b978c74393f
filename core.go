package trafficgen

//
// Core (§9 "Global runtime state"): a single value constructed at startup
// wiring together the Registry, per-port Transmitters, per-profile
// Runners, the Neighbor Prober, and the RFC2544 Driver, with explicit
// lifecycle (Run/Shutdown) instead of package-level mutable state.
//

import (
	"context"
	"fmt"
	"net"
	"path/filepath"
	"sync"
	"time"

	"github.com/vishvananda/netlink"
)

// Core owns every long-lived resource of one traffic-generator process.
type Core struct {
	Registry *Registry
	Adapter  *Adapter
	Prober   *NeighborProber
	Driver   *RFC2544Driver

	logger       Logger
	capabilities Capabilities
	configPath   string
	captureDir   string

	mu          sync.Mutex
	transmitters map[string]*Transmitter
	runners      map[string]*Runner
	dumpers      []*PCAPDumper

	proberCancel context.CancelFunc
	proberDone   chan struct{}
}

// NewCoreOptions configures New.
type NewCoreOptions struct {
	Logger       Logger
	Capabilities Capabilities
	ConfigPath   string
	LLDPSource   LLDPSource

	// CaptureDir, if non-empty, makes enumeratePorts wrap every port's raw
	// endpoint in a [PCAPDumper] writing to "<CaptureDir>/<port>.pcap"
	// (§4.1 "optional PCAPDumper-style wrapper").
	CaptureDir string
}

// New constructs a Core. It does not yet enumerate host ports or start any
// background task; call Run for that.
func New(opts NewCoreOptions) *Core {
	registry := NewRegistry()
	c := &Core{
		Registry:     registry,
		logger:       opts.Logger,
		capabilities: opts.Capabilities,
		configPath:   opts.ConfigPath,
		captureDir:   opts.CaptureDir,
		transmitters: make(map[string]*Transmitter),
		runners:      make(map[string]*Runner),
	}
	c.Prober = NewNeighborProber(registry, opts.LLDPSource, opts.Logger)
	c.Driver = NewRFC2544Driver(registry, opts.Logger)
	c.Adapter = NewAdapter(
		registry, c.Prober, c.Driver, opts.Logger, opts.Capabilities, opts.ConfigPath,
		c.lookupRunner, c.ensureRunner, c.deleteRunner,
	)
	return c
}

// Run enumerates host ports, binds a Transmitter to each, loads the
// persisted configuration (if any), recreates its profiles, starts the
// periodic Prober, and re-enables every profile marked enabled (§6
// "Process-wide state lifecycle"). It returns once startup completes; the
// Prober continues running in the background until Shutdown.
func (c *Core) Run(ctx context.Context) error {
	if err := c.enumeratePorts(); err != nil {
		return fmt.Errorf("trafficgen: enumerate ports: %w", err)
	}

	proberCtx, cancel := context.WithCancel(context.Background())
	c.proberCancel = cancel
	c.proberDone = make(chan struct{})
	go func() {
		defer close(c.proberDone)
		c.Prober.Run(proberCtx)
	}()

	cfg, err := LoadConfig(c.configPath)
	if err != nil {
		return err
	}
	for _, desc := range cfg.Profiles {
		if _, _, err := c.Registry.CreateProfile(desc); err != nil {
			c.logger.Warnf("trafficgen: startup: profile %s: %s", desc.Name, err.Error())
			continue
		}
	}
	c.Adapter.StartAll(ctx)

	return nil
}

// Shutdown disables every running profile (waiting out each Runner's grace
// period), stops the Prober, and tears down every Transmitter (§6 "On
// shutdown ... issues disable_profile for all running profiles and waits
// for the grace period before exiting").
func (c *Core) Shutdown(ctx context.Context) {
	c.Adapter.StopAll()

	if c.proberCancel != nil {
		c.proberCancel()
		select {
		case <-c.proberDone:
		case <-ctx.Done():
		}
	}

	c.mu.Lock()
	transmitters := make([]*Transmitter, 0, len(c.transmitters))
	for _, tx := range c.transmitters {
		transmitters = append(transmitters, tx)
	}
	dumpers := append([]*PCAPDumper{}, c.dumpers...)
	c.mu.Unlock()
	for _, tx := range transmitters {
		tx.Shutdown(time.Second)
	}
	for _, dumper := range dumpers {
		if err := dumper.Close(); err != nil {
			c.logger.Warnf("trafficgen: close pcap dumper: %s", err.Error())
		}
	}
}

// enumeratePorts reads host interfaces via netlink, publishing one Port and
// one bound Transmitter per usable device (§6 "enumerates host network
// ports (via netlink), reads their MAC/IP/speed, and publishes them to the
// Registry").
func (c *Core) enumeratePorts() error {
	links, err := netlink.LinkList()
	if err != nil {
		return err
	}
	for _, link := range links {
		attrs := link.Attrs()
		if attrs.Flags&net.FlagLoopback != 0 {
			continue
		}
		if len(attrs.HardwareAddr) == 0 {
			continue
		}

		ipv4, ipv6 := "", ""
		if addrs, err := netlink.AddrList(link, netlink.FAMILY_ALL); err == nil {
			for _, a := range addrs {
				if a.IP.To4() != nil {
					ipv4 = a.IP.String()
				} else {
					ipv6 = a.IP.String()
				}
			}
		}

		speed := attrs.MTU // placeholder when no ethtool speed is available
		if speed <= 0 {
			speed = 1000
		}

		caps := PortCapabilities{}
		port := NewPort(attrs.Name, attrs.HardwareAddr, speed, PortTypeCopper, caps)
		port.IPv4 = ipv4
		port.IPv6 = ipv6
		if attrs.MTU > 0 {
			port.MTU = attrs.MTU
		}
		if attrs.Flags&net.FlagUp == 0 {
			port.SetStatus(PortStatusUnavailable)
		}
		c.Registry.AddPort(port)

		endpoint, err := c.newEndpointFor(attrs.Name)
		if err != nil {
			c.logger.Warnf("trafficgen: port %s: raw endpoint unavailable, using simulation: %s", attrs.Name, err.Error())
			endpoint = newSimEndpoint()
		}
		if c.captureDir != "" {
			dumper := NewPCAPDumper(filepath.Join(c.captureDir, attrs.Name+".pcap"), c.logger)
			endpoint = dumper.Wrap(endpoint)
			c.mu.Lock()
			c.dumpers = append(c.dumpers, dumper)
			c.mu.Unlock()
		}
		tx := NewTransmitter(port, endpoint, c.logger)
		c.mu.Lock()
		c.transmitters[attrs.Name] = tx
		c.mu.Unlock()
	}
	return nil
}

// lookupRunner returns the existing Runner for a profile name, if any.
func (c *Core) lookupRunner(name string) (*Runner, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.runners[name]
	return r, ok
}

// ensureRunner returns the existing Runner for profile, creating one bound
// to this Core's Transmitter/Port resolvers if none exists yet.
func (c *Core) ensureRunner(profile *Profile) *Runner {
	name := profile.Descriptor().Name
	c.mu.Lock()
	defer c.mu.Unlock()
	if r, ok := c.runners[name]; ok {
		return r
	}
	r := NewRunner(profile, c.logger, c.resolveTransmitter, c.resolvePort)
	c.runners[name] = r
	return r
}

// deleteRunner removes a profile's Runner, if one was ever created, so a
// deleted profile doesn't leak its Runner entry (§9).
func (c *Core) deleteRunner(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.runners, name)
}

// resolveTransmitter looks a bound Transmitter up by port name.
func (c *Core) resolveTransmitter(portName string) (*Transmitter, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	tx, ok := c.transmitters[portName]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPort, portName)
	}
	return tx, nil
}

// resolvePort looks a Port up by name via the Registry.
func (c *Core) resolvePort(portName string) (*Port, error) {
	return c.Registry.GetPort(portName)
}

