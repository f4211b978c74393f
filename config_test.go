package trafficgen

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigMissingFileYieldsEmpty(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	assert.Empty(t, cfg.Profiles)
}

func TestLoadConfigEmptyPathYieldsEmpty(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Empty(t, cfg.Profiles)
}

func TestSaveThenLoadConfigYAMLRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	want := Config{
		Capabilities: Capabilities{RFC2544: true},
		Profiles: []ProfileDescriptor{
			{
				Name:          "p1",
				SrcPort:       "eth0",
				DstPort:       "eth1",
				DstAddress:    "192.0.2.20",
				Protocol:      ProtocolIPv4,
				BandwidthMbps: 100,
				FrameSize:     256,
				Enabled:       true,
			},
		},
	}
	require.NoError(t, SaveConfig(path, want))

	got, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestSaveThenLoadConfigJSONRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	want := Config{
		Profiles: []ProfileDescriptor{
			{Name: "p1", SrcPort: "eth0", DstPort: "eth1", DstAddress: "192.0.2.20", Protocol: ProtocolIPv4, BandwidthMbps: 10, FrameSize: 128},
		},
	}
	require.NoError(t, SaveConfig(path, want))

	got, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestSaveConfigEmptyPathIsNoop(t *testing.T) {
	require.NoError(t, SaveConfig("", Config{}))
}

func TestSaveConfigAtomicRenameLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, SaveConfig(path, Config{Profiles: []ProfileDescriptor{{Name: "p1"}}}))

	matches, err := filepath.Glob(filepath.Join(dir, ".trafficgen-config-*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, matches)
}
