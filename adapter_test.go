package trafficgen

import (
	"context"
	"net"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// adapterTestHarness wires an Adapter the way Core does, but over
// simulation-backed Transmitters and without netlink enumeration.
type adapterTestHarness struct {
	registry *Registry

	mu      sync.Mutex
	runners map[string]*Runner

	endpoints map[string]*simEndpoint
	tx        map[string]*Transmitter
}

func newAdapterTestHarness() *adapterTestHarness {
	registry := NewRegistry()
	h := &adapterTestHarness{
		registry:  registry,
		runners:   make(map[string]*Runner),
		endpoints: make(map[string]*simEndpoint),
		tx:        make(map[string]*Transmitter),
	}
	for i, name := range []string{"eth0", "eth1"} {
		port := NewPort(name, net.HardwareAddr{0, 1, 2, 3, 4, byte(i)}, 1000, PortTypeCopper, PortCapabilities{})
		port.IPv4 = "192.0.2.1"
		registry.AddPort(port)
		ep := newSimEndpoint()
		h.endpoints[name] = ep
		h.tx[name] = NewTransmitter(port, ep, testLogger{})
	}
	return h
}

func (h *adapterTestHarness) lookupRunner(name string) (*Runner, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	r, ok := h.runners[name]
	return r, ok
}

func (h *adapterTestHarness) ensureRunner(profile *Profile) *Runner {
	name := profile.Descriptor().Name
	h.mu.Lock()
	defer h.mu.Unlock()
	if r, ok := h.runners[name]; ok {
		return r
	}
	r := NewRunner(profile, testLogger{}, h.resolveTransmitter, h.resolvePort)
	h.runners[name] = r
	return r
}

func (h *adapterTestHarness) deleteRunner(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.runners, name)
}

func (h *adapterTestHarness) hasRunner(name string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.runners[name]
	return ok
}

func (h *adapterTestHarness) resolveTransmitter(name string) (*Transmitter, error) {
	tx, ok := h.tx[name]
	if !ok {
		return nil, ErrUnknownPort
	}
	return tx, nil
}

func (h *adapterTestHarness) resolvePort(name string) (*Port, error) {
	return h.registry.GetPort(name)
}

func (h *adapterTestHarness) newAdapter(configPath string) *Adapter {
	prober := NewNeighborProber(h.registry, nil, testLogger{})
	driver := NewRFC2544Driver(h.registry, testLogger{})
	return NewAdapter(h.registry, prober, driver, testLogger{}, DefaultCapabilities(), configPath, h.lookupRunner, h.ensureRunner, h.deleteRunner)
}

func (h *adapterTestHarness) shutdown() {
	for _, tx := range h.tx {
		tx.Shutdown(time.Second)
	}
}

func adapterTestDescriptor(name string) ProfileDescriptor {
	return ProfileDescriptor{
		Name:          name,
		SrcPort:       "eth0",
		DstPort:       "eth1",
		DstAddress:    "192.0.2.20",
		Protocol:      ProtocolIPv4,
		BandwidthMbps: 100,
		FrameSize:     256,
	}
}

func TestAdapterCreateAndEnableProfile(t *testing.T) {
	h := newAdapterTestHarness()
	defer h.shutdown()
	a := h.newAdapter("")

	profile, warning, err := a.CreateProfile(adapterTestDescriptor("p1"))
	require.NoError(t, err)
	assert.Empty(t, warning)
	assert.NotNil(t, profile)

	require.NoError(t, a.EnableProfile(context.Background(), "p1"))
	require.Eventually(t, func() bool {
		state, _ := profile.State()
		return state == ProfileStateRunning
	}, time.Second, time.Millisecond)

	require.NoError(t, a.DisableProfile("p1"))
	state, _ := profile.State()
	assert.Equal(t, ProfileStateIdle, state)
}

func TestAdapterCreateProfileEnabledTrueAutoStarts(t *testing.T) {
	h := newAdapterTestHarness()
	defer h.shutdown()
	a := h.newAdapter("")

	desc := adapterTestDescriptor("p1")
	desc.Enabled = true
	profile, _, err := a.CreateProfile(desc)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		state, _ := profile.State()
		return state == ProfileStateRunning
	}, time.Second, time.Millisecond)
}

func TestAdapterDisableProfileNotRunning(t *testing.T) {
	h := newAdapterTestHarness()
	defer h.shutdown()
	a := h.newAdapter("")

	_, _, err := a.CreateProfile(adapterTestDescriptor("p1"))
	require.NoError(t, err)

	err = a.DisableProfile("p1")
	require.ErrorIs(t, err, ErrProfileNotRunning)
}

func TestAdapterDeleteProfileDisablesFirst(t *testing.T) {
	h := newAdapterTestHarness()
	defer h.shutdown()
	a := h.newAdapter("")

	_, _, err := a.CreateProfile(adapterTestDescriptor("p1"))
	require.NoError(t, err)
	require.NoError(t, a.EnableProfile(context.Background(), "p1"))

	require.NoError(t, a.DeleteProfile("p1"))

	_, err = a.registry.GetProfile("p1")
	require.ErrorIs(t, err, ErrUnknownProfile)
}

func TestAdapterDeleteProfilePrunesRunner(t *testing.T) {
	h := newAdapterTestHarness()
	defer h.shutdown()
	a := h.newAdapter("")

	_, _, err := a.CreateProfile(adapterTestDescriptor("p1"))
	require.NoError(t, err)
	require.NoError(t, a.EnableProfile(context.Background(), "p1"))
	require.True(t, h.hasRunner("p1"))

	require.NoError(t, a.DeleteProfile("p1"))
	assert.False(t, h.hasRunner("p1"), "Runner should be pruned once its profile is deleted")
}

func TestAdapterStartAllAndStopAll(t *testing.T) {
	h := newAdapterTestHarness()
	defer h.shutdown()
	a := h.newAdapter("")

	desc := adapterTestDescriptor("p1")
	desc.Enabled = true
	_, _, err := a.CreateProfile(desc)
	require.NoError(t, err)
	require.NoError(t, a.DisableProfile("p1")) // undo the auto-start from Enabled:true

	a.StartAll(context.Background())
	profile, err := a.registry.GetProfile("p1")
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		state, _ := profile.State()
		return state == ProfileStateRunning
	}, time.Second, time.Millisecond)

	a.StopAll()
	state, _ := profile.State()
	assert.Equal(t, ProfileStateIdle, state)
}

func TestAdapterUpdateProfileHotFieldWhileRunning(t *testing.T) {
	h := newAdapterTestHarness()
	defer h.shutdown()
	a := h.newAdapter("")

	_, _, err := a.CreateProfile(adapterTestDescriptor("p1"))
	require.NoError(t, err)
	require.NoError(t, a.EnableProfile(context.Background(), "p1"))
	defer a.DisableProfile("p1")

	newBW := 50.0
	profile, err := a.UpdateProfile("p1", ProfileUpdateFields{BandwidthMbps: &newBW})
	require.NoError(t, err)
	assert.Equal(t, 50.0, profile.Descriptor().BandwidthMbps)
}

func TestAdapterGetAndResetStats(t *testing.T) {
	h := newAdapterTestHarness()
	defer h.shutdown()
	a := h.newAdapter("")

	_, _, err := a.CreateProfile(adapterTestDescriptor("p1"))
	require.NoError(t, err)
	require.NoError(t, a.EnableProfile(context.Background(), "p1"))
	defer a.DisableProfile("p1")

	require.Eventually(t, func() bool {
		return a.GetStats().Profiles["p1"].FramesSent > 0
	}, time.Second, time.Millisecond)

	a.ResetStats()
	assert.Equal(t, uint64(0), a.GetStats().Profiles["p1"].FramesSent)
}

func TestAdapterDiscoverNeighborsUnknownPort(t *testing.T) {
	h := newAdapterTestHarness()
	defer h.shutdown()
	a := h.newAdapter("")

	err := a.DiscoverNeighbors(context.Background(), []string{"eth99"})
	require.ErrorIs(t, err, ErrUnknownPort)
}

func TestAdapterPersistsConfigOnMutation(t *testing.T) {
	h := newAdapterTestHarness()
	defer h.shutdown()
	path := filepath.Join(t.TempDir(), "config.yaml")
	a := h.newAdapter(path)

	_, _, err := a.CreateProfile(adapterTestDescriptor("p1"))
	require.NoError(t, err)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Len(t, cfg.Profiles, 1)
	assert.Equal(t, "p1", cfg.Profiles[0].Name)
}

func TestAdapterRFC2544StartAndStatus(t *testing.T) {
	h := newAdapterTestHarness()
	defer h.shutdown()
	a := h.newAdapter("")

	_, _, err := a.CreateProfile(adapterTestDescriptor("p1"))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	runID, err := a.RFC2544Start(ctx, "p1", []RFC2544Test{RFC2544BackToBack})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		run, err := a.RFC2544Status(runID)
		return err == nil && !run.FinishedAt.IsZero()
	}, 2*time.Second, 10*time.Millisecond)
}
