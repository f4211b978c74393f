package trafficgen

//
// Frame Builder (§4.2): deterministically encodes one on-wire Ethernet
// frame from a profile descriptor and a monotonically increasing sequence
// number, using the same gopacket SerializeOptions{FixLengths,
// ComputeChecksums} pattern dissect.go uses to reflect a packet, but
// building one from scratch for each of the protocol tags named in §3.
//

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"math/big"
	"net"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/miekg/dns"
)

var broadcastMAC = net.HardwareAddr{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}

// resolveDestinationMAC looks the destination address up in the source
// port's neighbor cache, falling back to the broadcast address without
// blocking (§4.2: "the builder uses the broadcast address and does not
// block").
func resolveDestinationMAC(srcPort *Port, dstAddress string) net.HardwareAddr {
	nc := srcPort.Neighbors()
	if nc == nil {
		return broadcastMAC
	}
	for _, entry := range nc.ARP {
		if entry.IP == dstAddress && entry.State == "reachable" {
			if mac, err := net.ParseMAC(entry.MAC); err == nil {
				return mac
			}
		}
	}
	return broadcastMAC
}

// randomEphemeralPort returns a cryptographically-sourced but otherwise
// unremarkable ephemeral source port in the IANA ephemeral range.
func randomEphemeralPort() uint16 {
	const lo = 49152
	const hi = 65535
	n, err := rand.Int(rand.Reader, big.NewInt(hi-lo+1))
	if err != nil {
		return lo
	}
	return uint16(lo) + uint16(n.Int64())
}

// randomSeq32 returns a random 32-bit value, used for TCP SYN sequence
// randomization in the tcp-syn-flood protocol.
func randomSeq32() uint32 {
	var buf [4]byte
	_, _ = rand.Read(buf[:])
	return binary.BigEndian.Uint32(buf[:])
}

// buildFrame encodes one fully-framed Ethernet frame per the protocol tag
// carried by desc. The returned buffer is padded or truncated to exactly
// desc.FrameSize bytes (the kernel appends the FCS separately).
func buildFrame(desc ProfileDescriptor, srcPort *Port, seq uint32, emitTime time.Time) ([]byte, error) {
	dstMAC := resolveDestinationMAC(srcPort, desc.DstAddress)

	var (
		raw []byte
		err error
	)
	switch desc.Protocol {
	case ProtocolIPv4:
		raw, err = buildIPv4UDP(desc, srcPort, dstMAC, seq, emitTime, layers.EthernetTypeIPv4)
	case ProtocolIPv6:
		raw, err = buildIPv6UDP(desc, srcPort, dstMAC, seq, emitTime)
	case ProtocolMPLS:
		raw, err = buildMPLS(desc, srcPort, dstMAC, seq, emitTime)
	case ProtocolVXLAN:
		raw, err = buildVXLAN(desc, srcPort, dstMAC, seq, emitTime)
	case ProtocolQinQ:
		raw, err = buildQinQ(desc, srcPort, dstMAC, seq, emitTime)
	case ProtocolUDPFlood:
		raw, err = buildIPv4UDP(desc, srcPort, dstMAC, seq, emitTime, layers.EthernetTypeIPv4)
	case ProtocolDNSAmp:
		raw, err = buildDNSAmp(desc, srcPort, dstMAC, seq, emitTime)
	case ProtocolTCPSynFlood:
		raw, err = buildTCPSynFlood(desc, srcPort, dstMAC, seq, emitTime)
	case ProtocolHTTPFlood:
		raw, err = buildHTTPFlood(desc, srcPort, dstMAC, seq, emitTime)
	default:
		return nil, fmt.Errorf("%w: unknown protocol tag %q", ErrUnencodable, desc.Protocol)
	}
	if err != nil {
		return nil, err
	}
	return padToFrameSize(raw, desc.FrameSize), nil
}

// padToFrameSize pads raw with trailing zero bytes up to size, or truncates
// it to size when longer. minFrameSizeFor does not count the request bytes
// of the http-flood and dns-amp builders, so at small frame sizes those
// frames are cut short.
func padToFrameSize(raw []byte, size int) []byte {
	if len(raw) >= size {
		return raw[:size]
	}
	out := make([]byte, size)
	copy(out, raw)
	return out
}

// signedPayload returns a payload buffer of n bytes starting with the
// 16-byte signature described in §6; an n below signatureLen is raised to
// signatureLen.
func signedPayload(profileName string, seq uint32, emitTime time.Time, n int) []byte {
	if n < signatureLen {
		n = signatureLen
	}
	buf := make([]byte, n)
	copy(buf, buildSignature(profileName, seq, emitTime))
	return buf
}

func dscpToTOS(dscp uint8) uint8 {
	return dscp << 2
}

// buildIPv4UDP encodes Ethernet + IPv4 + UDP + signed payload.
func buildIPv4UDP(desc ProfileDescriptor, srcPort *Port, dstMAC net.HardwareAddr, seq uint32, emitTime time.Time, ethType layers.EthernetType) ([]byte, error) {
	eth := &layers.Ethernet{
		SrcMAC:       srcPort.MAC,
		DstMAC:       dstMAC,
		EthernetType: ethType,
	}
	ip := &layers.IPv4{
		Version:  4,
		TTL:      64,
		TOS:      dscpToTOS(desc.DSCP),
		Protocol: layers.IPProtocolUDP,
		SrcIP:    net.ParseIP(srcPort.IPv4).To4(),
		DstIP:    net.ParseIP(desc.DstAddress).To4(),
	}
	dstL4Port := desc.DstL4Port
	if dstL4Port == 0 {
		dstL4Port = 9999
	}
	udp := &layers.UDP{
		SrcPort: layers.UDPPort(randomEphemeralPort()),
		DstPort: layers.UDPPort(dstL4Port),
	}
	udp.SetNetworkLayerForChecksum(ip)
	payload := gopacket.Payload(signedPayload(desc.Name, seq, emitTime, desc.FrameSize-minFrameSizeFor(ProtocolIPv4)))
	return serializeLayers(eth, ip, udp, payload)
}

// buildIPv6UDP encodes Ethernet + IPv6 + UDP + signed payload.
func buildIPv6UDP(desc ProfileDescriptor, srcPort *Port, dstMAC net.HardwareAddr, seq uint32, emitTime time.Time) ([]byte, error) {
	eth := &layers.Ethernet{
		SrcMAC:       srcPort.MAC,
		DstMAC:       dstMAC,
		EthernetType: layers.EthernetTypeIPv6,
	}
	ip := &layers.IPv6{
		Version:    6,
		HopLimit:   64,
		TrafficClass: dscpToTOS(desc.DSCP),
		NextHeader: layers.IPProtocolUDP,
		SrcIP:      net.ParseIP(srcPort.IPv6),
		DstIP:      net.ParseIP(desc.DstAddress),
	}
	dstL4Port := desc.DstL4Port
	if dstL4Port == 0 {
		dstL4Port = 9999
	}
	udp := &layers.UDP{
		SrcPort: layers.UDPPort(randomEphemeralPort()),
		DstPort: layers.UDPPort(dstL4Port),
	}
	udp.SetNetworkLayerForChecksum(ip)
	payload := gopacket.Payload(signedPayload(desc.Name, seq, emitTime, desc.FrameSize-minFrameSizeFor(ProtocolIPv6)))
	return serializeLayers(eth, ip, udp, payload)
}

// buildMPLS encodes Ethernet (0x8847) + one MPLS shim + inner IPv4 + UDP +
// signed payload.
func buildMPLS(desc ProfileDescriptor, srcPort *Port, dstMAC net.HardwareAddr, seq uint32, emitTime time.Time) ([]byte, error) {
	eth := &layers.Ethernet{
		SrcMAC:       srcPort.MAC,
		DstMAC:       dstMAC,
		EthernetType: layers.EthernetTypeMPLSUnicast,
	}
	mpls := &layers.MPLS{
		Label:       desc.ProtocolFields.MPLSLabel,
		TrafficClass: desc.DSCP >> 3,
		StackBottom: true,
		TTL:         64,
	}
	ip := &layers.IPv4{
		Version:  4,
		TTL:      64,
		TOS:      dscpToTOS(desc.DSCP),
		Protocol: layers.IPProtocolUDP,
		SrcIP:    net.ParseIP(srcPort.IPv4).To4(),
		DstIP:    net.ParseIP(desc.DstAddress).To4(),
	}
	dstL4Port := desc.DstL4Port
	if dstL4Port == 0 {
		dstL4Port = 9999
	}
	udp := &layers.UDP{
		SrcPort: layers.UDPPort(randomEphemeralPort()),
		DstPort: layers.UDPPort(dstL4Port),
	}
	udp.SetNetworkLayerForChecksum(ip)
	payload := gopacket.Payload(signedPayload(desc.Name, seq, emitTime, desc.FrameSize-minFrameSizeFor(ProtocolMPLS)))
	return serializeLayers(eth, mpls, ip, udp, payload)
}

// buildVXLAN encodes outer Ethernet + outer IPv4 + outer UDP (4789) + VXLAN
// header + inner Ethernet + inner IPv4 + inner UDP + signed payload.
func buildVXLAN(desc ProfileDescriptor, srcPort *Port, dstMAC net.HardwareAddr, seq uint32, emitTime time.Time) ([]byte, error) {
	innerEth := &layers.Ethernet{
		SrcMAC:       srcPort.MAC,
		DstMAC:       dstMAC,
		EthernetType: layers.EthernetTypeIPv4,
	}
	innerIP := &layers.IPv4{
		Version:  4,
		TTL:      64,
		TOS:      dscpToTOS(desc.DSCP),
		Protocol: layers.IPProtocolUDP,
		SrcIP:    net.ParseIP(srcPort.IPv4).To4(),
		DstIP:    net.ParseIP(desc.DstAddress).To4(),
	}
	dstL4Port := desc.DstL4Port
	if dstL4Port == 0 {
		dstL4Port = 9999
	}
	innerUDP := &layers.UDP{
		SrcPort: layers.UDPPort(randomEphemeralPort()),
		DstPort: layers.UDPPort(dstL4Port),
	}
	innerUDP.SetNetworkLayerForChecksum(innerIP)
	innerPayload := gopacket.Payload(signedPayload(desc.Name, seq, emitTime, desc.FrameSize-minFrameSizeFor(ProtocolVXLAN)))

	innerBuf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	if err := gopacket.SerializeLayers(innerBuf, opts, innerEth, innerIP, innerUDP, innerPayload); err != nil {
		return nil, fmt.Errorf("%w: vxlan inner frame: %s", ErrUnencodable, err.Error())
	}

	vxlan := &layers.VXLAN{
		ValidIDFlag: true,
		VNI:         desc.ProtocolFields.VXLANVNI,
	}
	outerEth := &layers.Ethernet{
		SrcMAC:       srcPort.MAC,
		DstMAC:       dstMAC,
		EthernetType: layers.EthernetTypeIPv4,
	}
	outerIP := &layers.IPv4{
		Version:  4,
		TTL:      64,
		TOS:      dscpToTOS(desc.DSCP),
		Protocol: layers.IPProtocolUDP,
		SrcIP:    net.ParseIP(srcPort.IPv4).To4(),
		DstIP:    net.ParseIP(desc.DstAddress).To4(),
	}
	outerUDP := &layers.UDP{
		SrcPort: layers.UDPPort(randomEphemeralPort()),
		DstPort: layers.UDPPort(4789),
	}
	outerUDP.SetNetworkLayerForChecksum(outerIP)
	return serializeLayers(outerEth, outerIP, outerUDP, vxlan, gopacket.Payload(innerBuf.Bytes()))
}

// buildQinQ encodes Ethernet with an outer 802.1ad tag (0x88a8) and an inner
// 802.1Q tag (0x8100) + IPv4 + UDP + signed payload.
func buildQinQ(desc ProfileDescriptor, srcPort *Port, dstMAC net.HardwareAddr, seq uint32, emitTime time.Time) ([]byte, error) {
	eth := &layers.Ethernet{
		SrcMAC:       srcPort.MAC,
		DstMAC:       dstMAC,
		EthernetType: layers.EthernetTypeQinQ,
	}
	outerTag := &layers.Dot1Q{
		VLANIdentifier: desc.ProtocolFields.OuterVLANID,
		Type:           layers.EthernetTypeDot1Q,
	}
	innerTag := &layers.Dot1Q{
		VLANIdentifier: desc.ProtocolFields.InnerVLANID,
		Type:           layers.EthernetTypeIPv4,
	}
	ip := &layers.IPv4{
		Version:  4,
		TTL:      64,
		TOS:      dscpToTOS(desc.DSCP),
		Protocol: layers.IPProtocolUDP,
		SrcIP:    net.ParseIP(srcPort.IPv4).To4(),
		DstIP:    net.ParseIP(desc.DstAddress).To4(),
	}
	dstL4Port := desc.DstL4Port
	if dstL4Port == 0 {
		dstL4Port = 9999
	}
	udp := &layers.UDP{
		SrcPort: layers.UDPPort(randomEphemeralPort()),
		DstPort: layers.UDPPort(dstL4Port),
	}
	udp.SetNetworkLayerForChecksum(ip)
	payload := gopacket.Payload(signedPayload(desc.Name, seq, emitTime, desc.FrameSize-minFrameSizeFor(ProtocolQinQ)))
	return serializeLayers(eth, outerTag, innerTag, ip, udp, payload)
}

// buildDNSAmp encodes an IPv4+UDP frame whose payload is a valid DNS query
// skeleton, using github.com/miekg/dns to build the wire-format message.
func buildDNSAmp(desc ProfileDescriptor, srcPort *Port, dstMAC net.HardwareAddr, seq uint32, emitTime time.Time) ([]byte, error) {
	msg := new(dns.Msg)
	msg.Id = uint16(seq)
	msg.RecursionDesired = true
	msg.Question = []dns.Question{{
		Name:   "amplification-probe.example.",
		Qtype:  dns.TypeANY,
		Qclass: dns.ClassINET,
	}}
	wire, err := msg.Pack()
	if err != nil {
		return nil, fmt.Errorf("%w: dns-amp: %s", ErrUnencodable, err.Error())
	}
	// prefix the signature so the signature-parsing path used by the
	// RFC2544 Driver still works for dns-amp traffic; real amplification
	// payloads do not carry it, but this generator always signs its
	// emissions (§6).
	sig := buildSignature(desc.Name, seq, emitTime)
	combined := append(append([]byte{}, sig...), wire...)

	eth := &layers.Ethernet{
		SrcMAC:       srcPort.MAC,
		DstMAC:       dstMAC,
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := &layers.IPv4{
		Version:  4,
		TTL:      64,
		TOS:      dscpToTOS(desc.DSCP),
		Protocol: layers.IPProtocolUDP,
		SrcIP:    net.ParseIP(srcPort.IPv4).To4(),
		DstIP:    net.ParseIP(desc.DstAddress).To4(),
	}
	dstL4Port := desc.DstL4Port
	if dstL4Port == 0 {
		dstL4Port = 53
	}
	udp := &layers.UDP{
		SrcPort: layers.UDPPort(randomEphemeralPort()),
		DstPort: layers.UDPPort(dstL4Port),
	}
	udp.SetNetworkLayerForChecksum(ip)
	return serializeLayers(eth, ip, udp, gopacket.Payload(combined))
}

// buildTCPSynFlood encodes IPv4 + TCP with the SYN flag set, a randomized
// sequence number, and a randomized source port.
func buildTCPSynFlood(desc ProfileDescriptor, srcPort *Port, dstMAC net.HardwareAddr, seq uint32, emitTime time.Time) ([]byte, error) {
	eth := &layers.Ethernet{
		SrcMAC:       srcPort.MAC,
		DstMAC:       dstMAC,
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := &layers.IPv4{
		Version:  4,
		TTL:      64,
		TOS:      dscpToTOS(desc.DSCP),
		Protocol: layers.IPProtocolTCP,
		SrcIP:    net.ParseIP(srcPort.IPv4).To4(),
		DstIP:    net.ParseIP(desc.DstAddress).To4(),
	}
	dstL4Port := desc.DstL4Port
	if dstL4Port == 0 {
		dstL4Port = 80
	}
	tcp := &layers.TCP{
		SrcPort: layers.TCPPort(randomEphemeralPort()),
		DstPort: layers.TCPPort(dstL4Port),
		Seq:     randomSeq32(),
		SYN:     true,
		Window:  65535,
	}
	tcp.SetNetworkLayerForChecksum(ip)
	payload := gopacket.Payload(signedPayload(desc.Name, seq, emitTime, desc.FrameSize-minFrameSizeFor(ProtocolTCPSynFlood)))
	return serializeLayers(eth, ip, tcp, payload)
}

// buildHTTPFlood encodes an IPv4 + TCP segment, without any prior
// handshake, carrying a minimal HTTP/1.1 GET request (§4.2: "this is
// flooding, not conversation").
func buildHTTPFlood(desc ProfileDescriptor, srcPort *Port, dstMAC net.HardwareAddr, seq uint32, emitTime time.Time) ([]byte, error) {
	eth := &layers.Ethernet{
		SrcMAC:       srcPort.MAC,
		DstMAC:       dstMAC,
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := &layers.IPv4{
		Version:  4,
		TTL:      64,
		TOS:      dscpToTOS(desc.DSCP),
		Protocol: layers.IPProtocolTCP,
		SrcIP:    net.ParseIP(srcPort.IPv4).To4(),
		DstIP:    net.ParseIP(desc.DstAddress).To4(),
	}
	dstL4Port := desc.DstL4Port
	if dstL4Port == 0 {
		dstL4Port = 80
	}
	tcp := &layers.TCP{
		SrcPort: layers.TCPPort(randomEphemeralPort()),
		DstPort: layers.TCPPort(dstL4Port),
		Seq:     randomSeq32(),
		PSH:     true,
		ACK:     true,
		Window:  65535,
	}
	tcp.SetNetworkLayerForChecksum(ip)

	request := fmt.Sprintf("GET / HTTP/1.1\r\nHost: %s\r\nConnection: close\r\n\r\n", desc.DstAddress)
	sig := buildSignature(desc.Name, seq, emitTime)
	body := append(append([]byte{}, sig...), []byte(request)...)
	target := desc.FrameSize - minFrameSizeFor(ProtocolHTTPFlood)
	if target > len(body) {
		body = append(body, make([]byte, target-len(body))...)
	}
	return serializeLayers(eth, ip, tcp, gopacket.Payload(body))
}

// serializeLayers is a thin wrapper around gopacket.SerializeLayers that
// wraps failures as ErrUnencodable (§4.2 "Fails with Unencodable if the
// descriptor is internally inconsistent").
func serializeLayers(l ...gopacket.SerializableLayer) ([]byte, error) {
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	if err := gopacket.SerializeLayers(buf, opts, l...); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnencodable, err.Error())
	}
	return buf.Bytes(), nil
}
