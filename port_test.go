package trafficgen

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewPortDefaultsMTUTo1500(t *testing.T) {
	p := NewPort("eth0", net.HardwareAddr{0, 1, 2, 3, 4, 5}, 1000, PortTypeCopper, PortCapabilities{})
	assert.Equal(t, 1500, p.MTU)
	assert.Equal(t, 1500+14+8, p.MaxFrameBytes())
}

func TestMaxFrameBytesTracksConfiguredMTU(t *testing.T) {
	p := NewPort("eth0", net.HardwareAddr{0, 1, 2, 3, 4, 5}, 1000, PortTypeCopper, PortCapabilities{})
	p.MTU = 9000
	assert.Equal(t, 9000+14+8, p.MaxFrameBytes())
}
