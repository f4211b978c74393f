package trafficgen

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRFC2544TestRegistry(t *testing.T) *Registry {
	t.Helper()
	r := NewRegistry()
	r.AddPort(NewPort("eth0", net.HardwareAddr{0, 1, 2, 3, 4, 5}, 1000, PortTypeCopper, PortCapabilities{}))
	r.AddPort(NewPort("eth1", net.HardwareAddr{0, 1, 2, 3, 4, 6}, 1000, PortTypeCopper, PortCapabilities{}))
	_, _, err := r.CreateProfile(ProfileDescriptor{
		Name:          "bench1",
		SrcPort:       "eth0",
		DstPort:       "eth1",
		DstAddress:    "192.0.2.20",
		Protocol:      ProtocolIPv4,
		BandwidthMbps: 100,
		FrameSize:     128,
	})
	require.NoError(t, err)
	return r
}

func TestRFC2544DriverStartUnknownProfile(t *testing.T) {
	r := newRFC2544TestRegistry(t)
	d := NewRFC2544Driver(r, testLogger{})

	_, err := d.Start(context.Background(), "missing", []RFC2544Test{RFC2544BackToBack})
	require.ErrorIs(t, err, ErrUnknownProfile)
}

func TestRFC2544DriverStatusUnknownRun(t *testing.T) {
	r := newRFC2544TestRegistry(t)
	d := NewRFC2544Driver(r, testLogger{})

	_, err := d.Status("nope")
	require.ErrorIs(t, err, ErrSweepNotFound)
}

func TestRFC2544DriverRejectsConcurrentSweep(t *testing.T) {
	r := newRFC2544TestRegistry(t)
	d := NewRFC2544Driver(r, testLogger{})

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	runID, err := d.Start(ctx, "bench1", []RFC2544Test{RFC2544BackToBack})
	require.NoError(t, err)
	require.NotEmpty(t, runID)

	_, err = d.Start(context.Background(), "bench1", []RFC2544Test{RFC2544BackToBack})
	require.ErrorIs(t, err, ErrSweepAlreadyRunning)

	require.Eventually(t, func() bool {
		run, err := d.Status(runID)
		return err == nil && !run.FinishedAt.IsZero()
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRFC2544DriverStatusAddressableByProfileName(t *testing.T) {
	r := newRFC2544TestRegistry(t)
	d := NewRFC2544Driver(r, testLogger{})

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	runID, err := d.Start(ctx, "bench1", []RFC2544Test{RFC2544BackToBack})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		run, err := d.Status("bench1")
		return err == nil && run.RunID == runID
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRFC2544DriverThroughputStepPassesOverLoopback(t *testing.T) {
	r := newRFC2544TestRegistry(t)
	d := NewRFC2544Driver(r, testLogger{})

	ctx, cancel := context.WithTimeout(context.Background(), 400*time.Millisecond)
	defer cancel()

	runID, err := d.Start(ctx, "bench1", []RFC2544Test{RFC2544Throughput})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		run, err := d.Status(runID)
		return err == nil && !run.FinishedAt.IsZero()
	}, 2*time.Second, 10*time.Millisecond)

	run, err := d.Status(runID)
	require.NoError(t, err)
	require.NoError(t, run.Err)
	require.NotEmpty(t, run.Steps)

	var sawPass bool
	for _, step := range run.Steps {
		if step.Passed {
			sawPass = true
			assert.Greater(t, step.OfferedMbps, 0.0)
			assert.Less(t, step.LossRatio, lossThreshold)
		}
	}
	assert.True(t, sawPass, "expected at least one throughput step to pass over the loopback fixture")
}

func TestRFC2544DriverFrameLossStepsRespectContextDeadline(t *testing.T) {
	r := newRFC2544TestRegistry(t)
	d := NewRFC2544Driver(r, testLogger{})

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	runID, err := d.Start(ctx, "bench1", []RFC2544Test{RFC2544FrameLoss})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		run, err := d.Status(runID)
		return err == nil && !run.FinishedAt.IsZero()
	}, 2*time.Second, 10*time.Millisecond)

	run, err := d.Status(runID)
	require.NoError(t, err)
	assert.NoError(t, run.Err)
}
