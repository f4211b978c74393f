package trafficgen

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runnerTestHarness wires a Runner to a pair of in-memory ports and a
// sim-backed Transmitter, without a Registry.
type runnerTestHarness struct {
	srcPort *Port
	dstPort *Port
	ep      *simEndpoint
	tx      *Transmitter
}

func newRunnerTestHarness() *runnerTestHarness {
	src := ipv4TestPort()
	dst := NewPort("eth1", nil, 1000, PortTypeCopper, PortCapabilities{})
	ep := newSimEndpoint()
	tx := NewTransmitter(src, ep, testLogger{})
	return &runnerTestHarness{srcPort: src, dstPort: dst, ep: ep, tx: tx}
}

func (h *runnerTestHarness) newRunner(profile *Profile) *Runner {
	return NewRunner(profile, testLogger{},
		func(portName string) (*Transmitter, error) {
			if portName == h.srcPort.Name {
				return h.tx, nil
			}
			return nil, errors.New("no transmitter for " + portName)
		},
		func(portName string) (*Port, error) {
			switch portName {
			case h.srcPort.Name:
				return h.srcPort, nil
			case h.dstPort.Name:
				return h.dstPort, nil
			}
			return nil, ErrUnknownPort
		},
	)
}

func runnableDescriptor() ProfileDescriptor {
	return ProfileDescriptor{
		Name:          "run1",
		SrcPort:       "eth0",
		DstPort:       "eth1",
		DstAddress:    "192.0.2.20",
		Protocol:      ProtocolIPv4,
		BandwidthMbps: 400,
		FrameSize:     128,
	}
}

func TestRunnerEnableSendsFrames(t *testing.T) {
	h := newRunnerTestHarness()
	defer h.tx.Shutdown(time.Second)

	profile := NewProfile(runnableDescriptor())
	r := h.newRunner(profile)

	require.NoError(t, r.Enable())
	defer r.Disable()

	require.Eventually(t, func() bool { return len(h.ep.Written()) > 0 }, time.Second, time.Millisecond)
	state, _ := profile.State()
	assert.Equal(t, ProfileStateRunning, state)
}

func TestRunnerEnableTwiceFails(t *testing.T) {
	h := newRunnerTestHarness()
	defer h.tx.Shutdown(time.Second)

	profile := NewProfile(runnableDescriptor())
	r := h.newRunner(profile)

	require.NoError(t, r.Enable())
	defer r.Disable()

	err := r.Enable()
	require.ErrorIs(t, err, ErrAlreadyRunning)
}

func TestRunnerEnableUnknownSrcPortFails(t *testing.T) {
	h := newRunnerTestHarness()
	defer h.tx.Shutdown(time.Second)

	desc := runnableDescriptor()
	desc.SrcPort = "eth99"
	profile := NewProfile(desc)
	r := h.newRunner(profile)

	err := r.Enable()
	require.ErrorIs(t, err, ErrResolution)

	state, cause := profile.State()
	assert.Equal(t, ProfileStateFailed, state)
	assert.Error(t, cause)
}

func TestRunnerDisableReturnsToIdle(t *testing.T) {
	h := newRunnerTestHarness()
	defer h.tx.Shutdown(time.Second)

	profile := NewProfile(runnableDescriptor())
	r := h.newRunner(profile)
	require.NoError(t, r.Enable())

	require.Eventually(t, func() bool { return len(h.ep.Written()) > 0 }, time.Second, time.Millisecond)
	r.Disable()

	state, _ := profile.State()
	assert.Equal(t, ProfileStateIdle, state)
}

func TestRunnerUpdateWhileRunning(t *testing.T) {
	h := newRunnerTestHarness()
	defer h.tx.Shutdown(time.Second)

	profile := NewProfile(runnableDescriptor())
	r := h.newRunner(profile)
	require.NoError(t, r.Enable())
	defer r.Disable()

	r.Update(800, 256, ImpairmentConfig{LatencyMs: 5})
	state, _ := profile.State()
	assert.Equal(t, ProfileStateRunning, state)
}
