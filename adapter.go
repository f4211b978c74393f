package trafficgen

//
// Control Adapter (§4.9): the single point where external requests cross
// into the core. Transport-agnostic: plain Go methods taking/returning
// value types; internal/httpapi is one binding of it over gin. Wires the
// Registry, Runners, Prober, and RFC2544 Driver together as a stable
// command surface instead of one-off test topology construction.
//

import (
	"context"
	"fmt"
	"time"
)

// commandDeadline bounds every Adapter command (§5 "Control Adapter
// commands have a 5s deadline").
const commandDeadline = 5 * time.Second

// ProfileUpdateFields is the partial-update payload for UpdateProfile; a
// nil field is left unchanged. BandwidthMbps, FrameSize, and Impairment may
// be changed while the profile is running; every other non-nil field
// requires the profile to be disabled first (§4.5, §4.9).
type ProfileUpdateFields struct {
	DstAddress     *string
	DstL4Port      *uint16
	Protocol       *ProtocolTag
	ProtocolFields *ProtocolFields
	BandwidthMbps  *float64
	FrameSize      *int
	DSCP           *uint8
	Impairment     *ImpairmentConfig
}

// Adapter is the transport-agnostic control surface over a Core's Registry,
// Runners, Prober, and RFC2544 Driver.
type Adapter struct {
	registry *Registry
	prober   *NeighborProber
	driver   *RFC2544Driver
	logger   Logger

	capabilities Capabilities
	configPath   string

	runner       func(name string) (*Runner, bool)
	ensureRunner func(profile *Profile) *Runner
	deleteRunner func(name string)
}

// NewAdapter constructs an Adapter. ensureRunner lazily creates (or returns
// an existing) Runner for a profile; runner looks one up without creating
// it; deleteRunner prunes a Runner from Core's registry once its profile is
// gone. Core supplies all three closures so the Adapter does not need to
// know how Transmitters are resolved.
func NewAdapter(
	registry *Registry,
	prober *NeighborProber,
	driver *RFC2544Driver,
	logger Logger,
	capabilities Capabilities,
	configPath string,
	runner func(name string) (*Runner, bool),
	ensureRunner func(profile *Profile) *Runner,
	deleteRunner func(name string),
) *Adapter {
	return &Adapter{
		registry:     registry,
		prober:       prober,
		driver:       driver,
		logger:       logger,
		capabilities: capabilities,
		configPath:   configPath,
		runner:       runner,
		ensureRunner: ensureRunner,
		deleteRunner: deleteRunner,
	}
}

// Capabilities returns the capability set this Adapter was constructed
// with (§9).
func (a *Adapter) Capabilities() Capabilities {
	return a.capabilities
}

// ListPorts implements the list_ports command.
func (a *Adapter) ListPorts() []*Port {
	return a.registry.ListPorts()
}

// ListProfiles implements the list_profiles command.
func (a *Adapter) ListProfiles() []*Profile {
	return a.registry.ListProfiles()
}

// CreateProfile implements create_profile.
func (a *Adapter) CreateProfile(desc ProfileDescriptor) (*Profile, string, error) {
	profile, warning, err := a.registry.CreateProfile(desc)
	if err != nil {
		return nil, "", err
	}
	a.persist()
	if desc.Enabled {
		if err := a.EnableProfile(context.Background(), desc.Name); err != nil {
			return profile, warning, err
		}
	}
	return profile, warning, nil
}

// UpdateProfile implements update_profile.
func (a *Adapter) UpdateProfile(name string, fields ProfileUpdateFields) (*Profile, error) {
	profile, err := a.registry.UpdateProfile(name, func(desc *ProfileDescriptor) bool {
		touchesImmutable := false
		if fields.DstAddress != nil {
			desc.DstAddress = *fields.DstAddress
			touchesImmutable = true
		}
		if fields.DstL4Port != nil {
			desc.DstL4Port = *fields.DstL4Port
			touchesImmutable = true
		}
		if fields.Protocol != nil {
			desc.Protocol = *fields.Protocol
			touchesImmutable = true
		}
		if fields.ProtocolFields != nil {
			desc.ProtocolFields = *fields.ProtocolFields
			touchesImmutable = true
		}
		if fields.DSCP != nil {
			desc.DSCP = *fields.DSCP
			touchesImmutable = true
		}
		if fields.BandwidthMbps != nil {
			desc.BandwidthMbps = *fields.BandwidthMbps
		}
		if fields.FrameSize != nil {
			desc.FrameSize = *fields.FrameSize
		}
		if fields.Impairment != nil {
			desc.Impairment = *fields.Impairment
		}
		return touchesImmutable
	})
	if err != nil {
		return nil, err
	}

	if r, ok := a.runner(name); ok {
		desc := profile.Descriptor()
		r.Update(desc.BandwidthMbps, desc.FrameSize, desc.Impairment)
	}
	a.persist()
	return profile, nil
}

// DeleteProfile implements delete_profile: disables if needed, then removes,
// pruning the profile's Runner so it doesn't outlive its registry entry.
func (a *Adapter) DeleteProfile(name string) error {
	if r, ok := a.runner(name); ok {
		r.Disable()
	}
	if err := a.registry.DeleteProfile(name); err != nil {
		return err
	}
	if a.deleteRunner != nil {
		a.deleteRunner(name)
	}
	a.persist()
	return nil
}

// EnableProfile implements enable_profile.
func (a *Adapter) EnableProfile(ctx context.Context, name string) error {
	ctx, cancel := context.WithTimeout(ctx, commandDeadline)
	defer cancel()

	profile, err := a.registry.GetProfile(name)
	if err != nil {
		return err
	}
	r := a.ensureRunner(profile)

	errCh := make(chan error, 1)
	go func() { errCh <- r.Enable() }()
	select {
	case err := <-errCh:
		if err == nil {
			a.persist()
		}
		return err
	case <-ctx.Done():
		return ErrTimeout
	}
}

// DisableProfile implements disable_profile.
func (a *Adapter) DisableProfile(name string) error {
	r, ok := a.runner(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrProfileNotRunning, name)
	}
	r.Disable()
	a.persist()
	return nil
}

// StartAll implements start_all: enables every profile marked Enabled.
func (a *Adapter) StartAll(ctx context.Context) {
	for _, p := range a.registry.ListProfiles() {
		desc := p.Descriptor()
		if !desc.Enabled {
			continue
		}
		if state, _ := p.State(); state == ProfileStateRunning {
			continue
		}
		if err := a.EnableProfile(ctx, desc.Name); err != nil {
			a.logger.Warnf("trafficgen: start_all: profile %s: %s", desc.Name, err.Error())
		}
	}
}

// StopAll implements stop_all: disables every currently running profile.
func (a *Adapter) StopAll() {
	for _, p := range a.registry.ListProfiles() {
		desc := p.Descriptor()
		if state, _ := p.State(); state != ProfileStateRunning {
			continue
		}
		_ = a.DisableProfile(desc.Name)
	}
}

// GetStats implements get_stats.
func (a *Adapter) GetStats() StatsSnapshot {
	return a.registry.SnapshotStats()
}

// ResetStats implements reset_stats.
func (a *Adapter) ResetStats() {
	a.registry.ResetStats()
}

// DiscoverNeighbors implements discover_neighbors. An empty ports list
// scans every port.
func (a *Adapter) DiscoverNeighbors(ctx context.Context, ports []string) error {
	ctx, cancel := context.WithTimeout(ctx, commandDeadline)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		if len(ports) == 0 {
			a.prober.ScanAll(ctx)
			done <- nil
			return
		}
		done <- a.prober.ScanPorts(ctx, ports)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ErrTimeout
	}
}

// RFC2544Start implements rfc2544_start.
func (a *Adapter) RFC2544Start(ctx context.Context, profile string, tests []RFC2544Test) (string, error) {
	return a.driver.Start(ctx, profile, tests)
}

// RFC2544Status implements rfc2544_status.
func (a *Adapter) RFC2544Status(idOrProfile string) (*RFC2544Run, error) {
	return a.driver.Status(idOrProfile)
}

// persist rewrites the configuration file, if one was configured, with the
// current set of profile descriptors (§6 "rewritten atomically ... on any
// successful mutation"). Failures are logged, not propagated: a config
// persistence failure must not roll back an already-applied Registry
// mutation.
func (a *Adapter) persist() {
	if a.configPath == "" {
		return
	}
	cfg := Config{Capabilities: a.capabilities}
	for _, p := range a.registry.ListProfiles() {
		cfg.Profiles = append(cfg.Profiles, p.Descriptor())
	}
	if err := SaveConfig(a.configPath, cfg); err != nil {
		a.logger.Warnf("trafficgen: persist config: %s", err.Error())
	}
}
