package trafficgen

//
// Data model
//

import (
	"time"
)

// Frame is a single on-wire Ethernet frame in flight between the Frame
// Builder and a Port Transmitter.
type Frame struct {
	// Deadline is the time when this frame should be sent.
	Deadline time.Time

	// Payload contains the fully framed bytes, ready for the wire.
	Payload []byte

	// Seq is the per-profile sequence number carried in the signature.
	Seq uint32
}

// ShallowCopy returns a shallow copy of the frame, used whenever a stage
// needs to mutate Deadline without racing with another reader of the frame.
func (f *Frame) ShallowCopy() *Frame {
	c := &Frame{
		Deadline: f.Deadline,
		Payload:  f.Payload,
		Seq:      f.Seq,
	}
	return c
}

// Logger is the logger used throughout the core. The control plane (cmd/)
// supplies a concrete implementation; the core depends only on this
// interface so unit tests can use a null or buffering logger.
type Logger interface {
	// Debugf formats and emits a debug message.
	Debugf(format string, v ...any)

	// Debug emits a debug message.
	Debug(message string)

	// Infof formats and emits an informational message.
	Infof(format string, v ...any)

	// Info emits an informational message.
	Info(message string)

	// Warnf formats and emits a warning message.
	Warnf(format string, v ...any)

	// Warn emits a warning message.
	Warn(message string)
}

// PortType tags a port's physical medium.
type PortType string

const (
	PortTypeCopper          PortType = "copper"
	PortTypeSFP             PortType = "sfp"
	PortTypeFastPathCapable PortType = "fast-path-capable"
)

// PortCapabilities records what a port can do.
type PortCapabilities struct {
	// HardwareTimestamp is true if the NIC can timestamp TX in hardware.
	HardwareTimestamp bool

	// FastPath is true if an optional kernel-bypass fast path is available.
	// This is a capability flag only; the core never requires it (§1 Non-goals).
	FastPath bool
}

// PortCounters is a point-in-time snapshot of a Port's TX counters, each
// field loaded from the Port's atomic counters (§4.6, §5).
type PortCounters struct {
	Frames  uint64
	Bytes   uint64
	Dropped uint64
}

// PortStatus is the link status of a Port.
type PortStatus string

const (
	PortStatusReady       PortStatus = "ready"
	PortStatusUnavailable PortStatus = "unavailable"
)

// ProfileState is a Profile Runner lifecycle state (§4.5).
type ProfileState string

const (
	ProfileStateIdle     ProfileState = "idle"
	ProfileStateStarting ProfileState = "starting"
	ProfileStateRunning  ProfileState = "running"
	ProfileStateUpdating ProfileState = "updating"
	ProfileStateStopping ProfileState = "stopping"
	ProfileStateFailed   ProfileState = "failed"
)

// ProtocolTag is the tagged variant discriminating how the Frame Builder
// encodes a profile's frames (§9 "deep per-protocol builders").
type ProtocolTag string

const (
	ProtocolIPv4         ProtocolTag = "ipv4"
	ProtocolIPv6         ProtocolTag = "ipv6"
	ProtocolMPLS         ProtocolTag = "mpls"
	ProtocolVXLAN        ProtocolTag = "vxlan"
	ProtocolQinQ         ProtocolTag = "qinq"
	ProtocolUDPFlood     ProtocolTag = "udp-flood"
	ProtocolTCPSynFlood  ProtocolTag = "tcp-syn-flood"
	ProtocolHTTPFlood    ProtocolTag = "http-flood"
	ProtocolDNSAmp       ProtocolTag = "dns-amp"
)

// ImpairmentConfig is the impairment block of a Profile (§3, §4.4).
type ImpairmentConfig struct {
	LatencyMs         float64
	JitterMs          float64
	LossPercent       float64
	BurstLossPercent  float64
	ReorderPercent    float64
	DuplicatePercent  float64
	ShapingCapMbps    float64
}

// lossLikeSum returns the sum of the percentages that may not jointly
// exceed 100, per the Profile invariant in §3.
func (ic ImpairmentConfig) lossLikeSum() float64 {
	return ic.LossPercent + ic.DuplicatePercent + ic.ReorderPercent
}

// ProtocolFields carries the protocol-specific fields named in §3; only the
// fields relevant to Profile.Protocol are meaningful.
type ProtocolFields struct {
	MPLSLabel    uint32
	VXLANVNI     uint32
	OuterVLANID  uint16
	InnerVLANID  uint16
}

// ProfileCounters are the live counters of a Profile (§3).
type ProfileCounters struct {
	FramesSent     uint64
	BytesSent      uint64
	LossDrops      uint64
	DupEmits       uint64
	ReorderEvents  uint64
	ShaperOverrun  uint64
	LastSendUnixNs int64
}

// ARPEntry is one entry in a port's ARP/NDP neighbor table (§3).
type ARPEntry struct {
	IP    string
	MAC   string
	State string
}

// LLDPEntry is one entry in a port's LLDP neighbor table (§3).
type LLDPEntry struct {
	ChassisID         string
	PortID            string
	SystemName        string
	SystemDescription string
	TTL               time.Duration
}

// LinkState describes the kernel link state of a port (§3).
type LinkState struct {
	Up     bool
	Speed  int
	Duplex string
}

// NeighborCache is the derived, read-only neighbor state of a port (§3, §4.8).
type NeighborCache struct {
	ARP       []ARPEntry
	LLDP      []LLDPEntry
	Link      LinkState
	ScannedAt time.Time
}
