package trafficgen

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	r := NewRegistry()
	r.AddPort(NewPort("eth0", net.HardwareAddr{0, 1, 2, 3, 4, 5}, 1000, PortTypeCopper, PortCapabilities{}))
	r.AddPort(NewPort("eth1", net.HardwareAddr{0, 1, 2, 3, 4, 6}, 1000, PortTypeCopper, PortCapabilities{}))
	return r
}

func validDescriptor(name string) ProfileDescriptor {
	return ProfileDescriptor{
		Name:          name,
		SrcPort:       "eth0",
		DstPort:       "eth1",
		DstAddress:    "10.0.0.2",
		Protocol:      ProtocolIPv4,
		BandwidthMbps: 10,
		FrameSize:     256,
	}
}

func TestRegistryCreateProfileUnknownPort(t *testing.T) {
	r := newTestRegistry(t)
	desc := validDescriptor("p1")
	desc.SrcPort = "eth99"
	_, _, err := r.CreateProfile(desc)
	require.ErrorIs(t, err, ErrUnknownPort)
}

func TestRegistryCreateProfileDuplicate(t *testing.T) {
	r := newTestRegistry(t)
	_, _, err := r.CreateProfile(validDescriptor("p1"))
	require.NoError(t, err)

	_, _, err = r.CreateProfile(validDescriptor("p1"))
	require.ErrorIs(t, err, ErrDuplicateProfile)
}

func TestRegistryListPortsSorted(t *testing.T) {
	r := newTestRegistry(t)
	ports := r.ListPorts()
	require.Len(t, ports, 2)
	assert.Equal(t, "eth0", ports[0].Name)
	assert.Equal(t, "eth1", ports[1].Name)
}

func TestRegistryUpdateProfileImmutableWhileRunning(t *testing.T) {
	r := newTestRegistry(t)
	p, _, err := r.CreateProfile(validDescriptor("p1"))
	require.NoError(t, err)
	p.setState(ProfileStateRunning, nil)

	_, err = r.UpdateProfile("p1", func(desc *ProfileDescriptor) bool {
		desc.DstAddress = "10.0.0.99"
		return true
	})
	require.ErrorIs(t, err, ErrImmutableWhileRunning)
}

func TestRegistryUpdateProfileHotFieldWhileRunning(t *testing.T) {
	r := newTestRegistry(t)
	p, _, err := r.CreateProfile(validDescriptor("p1"))
	require.NoError(t, err)
	p.setState(ProfileStateRunning, nil)

	updated, err := r.UpdateProfile("p1", func(desc *ProfileDescriptor) bool {
		desc.BandwidthMbps = 50
		return false
	})
	require.NoError(t, err)
	assert.Equal(t, 50.0, updated.Descriptor().BandwidthMbps)
}

func TestRegistryDeleteUnknownProfile(t *testing.T) {
	r := newTestRegistry(t)
	err := r.DeleteProfile("missing")
	require.ErrorIs(t, err, ErrUnknownProfile)
}

func TestRegistrySnapshotAndResetStats(t *testing.T) {
	r := newTestRegistry(t)
	p, _, err := r.CreateProfile(validDescriptor("p1"))
	require.NoError(t, err)
	p.recordSent(1, 256, 0)

	snap := r.SnapshotStats()
	assert.Equal(t, uint64(1), snap.Profiles["p1"].FramesSent)

	r.ResetStats()
	snap = r.SnapshotStats()
	assert.Equal(t, uint64(0), snap.Profiles["p1"].FramesSent)
}
