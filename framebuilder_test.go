package trafficgen

import (
	"net"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ipv4TestPort() *Port {
	p := NewPort("eth0", net.HardwareAddr{0x02, 0, 0, 0, 0, 1}, 1000, PortTypeCopper, PortCapabilities{})
	p.IPv4 = "192.0.2.10"
	return p
}

func TestBuildFrameIPv4UDPExactSize(t *testing.T) {
	srcPort := ipv4TestPort()
	desc := ProfileDescriptor{
		Name:       "p1",
		DstAddress: "192.0.2.20",
		DstL4Port:  5000,
		Protocol:   ProtocolIPv4,
		FrameSize:  200,
	}
	raw, err := buildFrame(desc, srcPort, 1, time.Now())
	require.NoError(t, err)
	assert.Len(t, raw, 200)

	pkt := gopacket.NewPacket(raw, layers.LayerTypeEthernet, gopacket.Default)
	ipLayer := pkt.Layer(layers.LayerTypeIPv4)
	require.NotNil(t, ipLayer)
	ip := ipLayer.(*layers.IPv4)
	assert.Equal(t, "192.0.2.20", ip.DstIP.String())

	udpLayer := pkt.Layer(layers.LayerTypeUDP)
	require.NotNil(t, udpLayer)
	udp := udpLayer.(*layers.UDP)
	assert.Equal(t, layers.UDPPort(5000), udp.DstPort)
}

func TestBuildFrameUnknownProtocol(t *testing.T) {
	srcPort := ipv4TestPort()
	desc := ProfileDescriptor{DstAddress: "192.0.2.20", Protocol: "bogus", FrameSize: 128}
	_, err := buildFrame(desc, srcPort, 1, time.Now())
	require.ErrorIs(t, err, ErrUnencodable)
}

func TestBuildFrameTCPSynFloodSetsFlag(t *testing.T) {
	srcPort := ipv4TestPort()
	desc := ProfileDescriptor{
		Name:       "syn",
		DstAddress: "192.0.2.20",
		Protocol:   ProtocolTCPSynFlood,
		FrameSize:  100,
	}
	raw, err := buildFrame(desc, srcPort, 1, time.Now())
	require.NoError(t, err)

	pkt := gopacket.NewPacket(raw, layers.LayerTypeEthernet, gopacket.Default)
	tcpLayer := pkt.Layer(layers.LayerTypeTCP)
	require.NotNil(t, tcpLayer)
	tcp := tcpLayer.(*layers.TCP)
	assert.True(t, tcp.SYN)
}

func TestBuildFrameVXLANHasInnerFrame(t *testing.T) {
	srcPort := ipv4TestPort()
	desc := ProfileDescriptor{
		Name:           "vx",
		DstAddress:     "192.0.2.20",
		Protocol:       ProtocolVXLAN,
		FrameSize:      256,
		ProtocolFields: ProtocolFields{VXLANVNI: 42},
	}
	raw, err := buildFrame(desc, srcPort, 1, time.Now())
	require.NoError(t, err)

	pkt := gopacket.NewPacket(raw, layers.LayerTypeEthernet, gopacket.Default)
	vxlanLayer := pkt.Layer(layers.LayerTypeVXLAN)
	require.NotNil(t, vxlanLayer)
	vx := vxlanLayer.(*layers.VXLAN)
	assert.Equal(t, uint32(42), vx.VNI)
}

func TestResolveDestinationMACFallsBackToBroadcast(t *testing.T) {
	p := ipv4TestPort()
	mac := resolveDestinationMAC(p, "192.0.2.99")
	assert.Equal(t, broadcastMAC, mac)
}

func TestResolveDestinationMACUsesReachableNeighbor(t *testing.T) {
	p := ipv4TestPort()
	want := net.HardwareAddr{0xaa, 0xbb, 0xcc, 0, 0, 1}
	p.SetNeighbors(&NeighborCache{ARP: []ARPEntry{{IP: "192.0.2.99", MAC: want.String(), State: "reachable"}}})

	mac := resolveDestinationMAC(p, "192.0.2.99")
	assert.Equal(t, want, mac)
}
