package trafficgen

//
// Protocol dissector: parses a previously-built Ethernet payload's IP/TCP/UDP
// layers back out, so the RFC2544 loopback fixture (loopback.go) can swap
// addresses and reflect a frame without knowing which Frame Builder produced
// it.
//

import (
	"errors"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// DissectedPacket is a dissected IP packet. The zero-value is invalid; you
// MUST use [DissectPacket] to create a new instance.
type DissectedPacket struct {
	// Packet is the underlying packet.
	Packet gopacket.Packet

	// IP is the network layer (either IPv4 or IPv6).
	IP gopacket.NetworkLayer

	// TCP is the POSSIBLY NIL tcp layer.
	TCP *layers.TCP

	// UDP is the POSSIBLY NIL UDP layer.
	UDP *layers.UDP
}

// ErrDissectShortPacket indicates the packet is too short.
var ErrDissectShortPacket = errors.New("trafficgen: dissect: packet too short")

// ErrDissectNetwork indicates that we do not support the packet's network protocol.
var ErrDissectNetwork = errors.New("trafficgen: dissect: unsupported network protocol")

// ErrDissectTransport indicates that we do not support the packet's transport protocol.
var ErrDissectTransport = errors.New("trafficgen: dissect: unsupported transport protocol")

// DissectPacket parses a raw IPv4 or IPv6 packet's TCP/UDP layers. The input
// does not include the Ethernet header.
func DissectPacket(rawPacket []byte) (*DissectedPacket, error) {
	dp := &DissectedPacket{}

	if len(rawPacket) < 1 {
		return nil, ErrDissectShortPacket
	}
	version := uint8(rawPacket[0]) >> 4

	switch version {
	case 4:
		if len(rawPacket) < 20 {
			return nil, ErrDissectShortPacket
		}
		dp.Packet = gopacket.NewPacket(rawPacket, layers.LayerTypeIPv4, gopacket.Lazy)
		ipLayer := dp.Packet.Layer(layers.LayerTypeIPv4)
		if ipLayer == nil {
			return nil, ErrDissectNetwork
		}
		dp.IP = ipLayer.(*layers.IPv4)

	case 6:
		if len(rawPacket) < 40 {
			return nil, ErrDissectShortPacket
		}
		dp.Packet = gopacket.NewPacket(rawPacket, layers.LayerTypeIPv6, gopacket.Lazy)
		ipLayer := dp.Packet.Layer(layers.LayerTypeIPv6)
		if ipLayer == nil {
			return nil, ErrDissectNetwork
		}
		dp.IP = ipLayer.(*layers.IPv6)

	default:
		return nil, ErrDissectNetwork
	}

	switch dp.TransportProtocol() {
	case layers.IPProtocolTCP:
		if tcpLayer := dp.Packet.Layer(layers.LayerTypeTCP); tcpLayer != nil {
			dp.TCP = tcpLayer.(*layers.TCP)
		}

	case layers.IPProtocolUDP:
		if udpLayer := dp.Packet.Layer(layers.LayerTypeUDP); udpLayer != nil {
			dp.UDP = udpLayer.(*layers.UDP)
		}

	default:
		// not an error: ICMP/ICMPv6 echo and other non-transport protocols
		// are dissected down to the IP layer only.
	}

	return dp, nil
}

// DecrementTimeToLive decrements the IPv4 or IPv6 time to live.
func (dp *DissectedPacket) DecrementTimeToLive() {
	switch v := dp.IP.(type) {
	case *layers.IPv4:
		if v.TTL > 0 {
			v.TTL--
		}
	case *layers.IPv6:
		if v.HopLimit > 0 {
			v.HopLimit--
		}
	}
}

// TimeToLive returns the packet's IPv4 or IPv6 time to live.
func (dp *DissectedPacket) TimeToLive() int64 {
	switch v := dp.IP.(type) {
	case *layers.IPv4:
		return int64(v.TTL)
	case *layers.IPv6:
		return int64(v.HopLimit)
	default:
		return 0
	}
}

// DestinationIPAddress returns the packet's destination IP address.
func (dp *DissectedPacket) DestinationIPAddress() string {
	switch v := dp.IP.(type) {
	case *layers.IPv4:
		return v.DstIP.String()
	case *layers.IPv6:
		return v.DstIP.String()
	default:
		return ""
	}
}

// DestinationPort returns the packet's destination port, or zero if the
// transport layer carries no ports.
func (dp *DissectedPacket) DestinationPort() uint16 {
	switch {
	case dp.TCP != nil:
		return uint16(dp.TCP.DstPort)
	case dp.UDP != nil:
		return uint16(dp.UDP.DstPort)
	default:
		return 0
	}
}

// SourceIPAddress returns the packet's source IP address.
func (dp *DissectedPacket) SourceIPAddress() string {
	switch v := dp.IP.(type) {
	case *layers.IPv4:
		return v.SrcIP.String()
	case *layers.IPv6:
		return v.SrcIP.String()
	default:
		return ""
	}
}

// SourcePort returns the packet's source port, or zero if the transport
// layer carries no ports.
func (dp *DissectedPacket) SourcePort() uint16 {
	switch {
	case dp.TCP != nil:
		return uint16(dp.TCP.SrcPort)
	case dp.UDP != nil:
		return uint16(dp.UDP.SrcPort)
	default:
		return 0
	}
}

// TransportProtocol returns the packet's transport protocol.
func (dp *DissectedPacket) TransportProtocol() layers.IPProtocol {
	switch v := dp.IP.(type) {
	case *layers.IPv4:
		return v.Protocol
	case *layers.IPv6:
		return v.NextHeader
	default:
		return layers.IPProtocolNoNextHeader
	}
}

// SwapAddresses exchanges source and destination IP addresses and, when
// present, transport ports. Used by the RFC2544 loopback fixture to turn an
// inbound test frame into its reflected reply without re-framing from
// scratch.
func (dp *DissectedPacket) SwapAddresses() {
	switch v := dp.IP.(type) {
	case *layers.IPv4:
		v.SrcIP, v.DstIP = v.DstIP, v.SrcIP
	case *layers.IPv6:
		v.SrcIP, v.DstIP = v.DstIP, v.SrcIP
	}
	switch {
	case dp.TCP != nil:
		dp.TCP.SrcPort, dp.TCP.DstPort = dp.TCP.DstPort, dp.TCP.SrcPort
	case dp.UDP != nil:
		dp.UDP.SrcPort, dp.UDP.DstPort = dp.UDP.DstPort, dp.UDP.SrcPort
	}
}

// Serialize serializes a previously dissected and modified packet,
// recomputing lengths and checksums.
func (dp *DissectedPacket) Serialize() ([]byte, error) {
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{
		FixLengths:       true,
		ComputeChecksums: true,
	}
	var layerList []gopacket.SerializableLayer
	layerList = append(layerList, dp.IP.(gopacket.SerializableLayer))
	switch {
	case dp.TCP != nil:
		dp.TCP.SetNetworkLayerForChecksum(dp.IP)
		layerList = append(layerList, dp.TCP)
	case dp.UDP != nil:
		dp.UDP.SetNetworkLayerForChecksum(dp.IP)
		layerList = append(layerList, dp.UDP)
	}
	if payload := dp.TransportPayload(); len(payload) > 0 {
		layerList = append(layerList, gopacket.Payload(payload))
	}
	if err := gopacket.SerializeLayers(buf, opts, layerList...); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// TransportPayload returns the application payload carried by the TCP or
// UDP layer, or nil if there is none.
func (dp *DissectedPacket) TransportPayload() []byte {
	switch {
	case dp.TCP != nil:
		return dp.TCP.Payload
	case dp.UDP != nil:
		return dp.UDP.Payload
	default:
		return nil
	}
}

// MatchesDestination returns true when the given packet has the expected
// protocol, destination address, and port.
func (dp *DissectedPacket) MatchesDestination(proto layers.IPProtocol, address string, port uint16) bool {
	if dp.TransportProtocol() != proto {
		return false
	}
	switch {
	case dp.TCP != nil:
		return dp.DestinationIPAddress() == address && dp.TCP.DstPort == layers.TCPPort(port)
	case dp.UDP != nil:
		return dp.DestinationIPAddress() == address && dp.UDP.DstPort == layers.UDPPort(port)
	default:
		return false
	}
}

// MatchesSource returns true when the given packet has the expected
// protocol, source address, and port.
func (dp *DissectedPacket) MatchesSource(proto layers.IPProtocol, address string, port uint16) bool {
	if dp.TransportProtocol() != proto {
		return false
	}
	switch {
	case dp.TCP != nil:
		return dp.SourceIPAddress() == address && dp.TCP.SrcPort == layers.TCPPort(port)
	case dp.UDP != nil:
		return dp.SourceIPAddress() == address && dp.UDP.SrcPort == layers.UDPPort(port)
	default:
		return false
	}
}

// FlowHash returns a hash uniquely identifying the transport flow. Both
// directions of a flow produce the same hash.
func (dp *DissectedPacket) FlowHash() uint64 {
	switch {
	case dp.TCP != nil:
		return dp.TCP.TransportFlow().FastHash()
	case dp.UDP != nil:
		return dp.UDP.TransportFlow().FastHash()
	default:
		return dp.IP.NetworkFlow().FastHash()
	}
}
