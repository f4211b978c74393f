package command

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netforge/trafficgen"
)

func writeTestConfig(t *testing.T, path string, cfg trafficgen.Config) {
	t.Helper()
	require.NoError(t, trafficgen.SaveConfig(path, cfg))
}

func runValidate(t *testing.T, configPath string) error {
	t.Helper()
	cmd := NewValidateConfigCommand()
	cmd.SetArgs([]string{"--config", configPath})
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	return cmd.Execute()
}

func TestValidateConfigAllValid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeTestConfig(t, path, trafficgen.Config{
		Profiles: []trafficgen.ProfileDescriptor{
			{Name: "p1", SrcPort: "eth0", DstPort: "eth1", DstAddress: "192.0.2.20", Protocol: trafficgen.ProtocolIPv4, BandwidthMbps: 10, FrameSize: 256},
		},
	})

	assert.NoError(t, runValidate(t, path))
}

func TestValidateConfigDuplicateNameFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	desc := trafficgen.ProfileDescriptor{Name: "p1", SrcPort: "eth0", DstPort: "eth1", DstAddress: "192.0.2.20", Protocol: trafficgen.ProtocolIPv4, BandwidthMbps: 10, FrameSize: 256}
	writeTestConfig(t, path, trafficgen.Config{Profiles: []trafficgen.ProfileDescriptor{desc, desc}})

	assert.Error(t, runValidate(t, path))
}

func TestValidateConfigInvalidDescriptorFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeTestConfig(t, path, trafficgen.Config{
		Profiles: []trafficgen.ProfileDescriptor{
			{Name: "", SrcPort: "eth0", DstPort: "eth1", DstAddress: "192.0.2.20", Protocol: trafficgen.ProtocolIPv4, BandwidthMbps: 10, FrameSize: 256},
		},
	})

	assert.Error(t, runValidate(t, path))
}

func TestValidateConfigMissingFileSucceedsWithZeroProfiles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "does-not-exist.yaml")
	assert.NoError(t, runValidate(t, path))
}
