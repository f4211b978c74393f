package trafficgen

//
// Profile descriptor (§3).
//

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// ProfileDescriptor is the user-supplied, declarative shape of a Profile. It
// is the unit exchanged with the Control Adapter (create/update/get).
type ProfileDescriptor struct {
	Name           string
	SrcPort        string
	DstPort        string
	DstAddress     string
	DstL4Port      uint16
	Protocol       ProtocolTag
	ProtocolFields ProtocolFields
	BandwidthMbps  float64
	FrameSize      int
	DSCP           uint8
	Impairment     ImpairmentConfig
	Enabled        bool
}

// Clone returns a deep-enough copy of the descriptor for safe handoff across
// the Registry's reader/writer boundary (§4.6 "copy-on-read snapshots").
func (d ProfileDescriptor) Clone() ProfileDescriptor {
	return d
}

// minFrameSizeFor returns the minimum frame size a protocol's encapsulation
// requires, per §3's invariant and §4.2's per-protocol overhead.
func minFrameSizeFor(protocol ProtocolTag) int {
	const ethernetIPv4UDPMinimum = 64
	switch protocol {
	case ProtocolIPv4, ProtocolUDPFlood, ProtocolTCPSynFlood, ProtocolHTTPFlood, ProtocolDNSAmp:
		return ethernetIPv4UDPMinimum
	case ProtocolIPv6:
		return 86 // larger fixed IPv6 header than IPv4
	case ProtocolMPLS:
		return ethernetIPv4UDPMinimum + 4 // one MPLS shim
	case ProtocolVXLAN:
		// outer Ethernet+IPv4+UDP+VXLAN header plus a minimal inner frame.
		return 50 + ethernetIPv4UDPMinimum
	case ProtocolQinQ:
		return ethernetIPv4UDPMinimum + 8 // outer + inner 802.1Q/ad tags
	default:
		return ethernetIPv4UDPMinimum
	}
}

// Validate checks the structural invariants of §3 that must hold regardless
// of registry state (name format, ranges, encoding feasibility). It does NOT
// check port resolution, which only happens at enable time (§3, §4.9).
//
// Validate normalizes d in place: an impairment sum violation is clamped and
// a warning is returned rather than an error, matching §3's "at creation a
// violating value is clamped and surfaced as a warning".
func (d *ProfileDescriptor) Validate() (warning string, err error) {
	if d.Name == "" {
		return "", fmt.Errorf("%w: profile name must not be empty", ErrInvalidDescriptor)
	}
	if d.SrcPort == "" || d.DstPort == "" {
		return "", fmt.Errorf("%w: source and destination port names are required", ErrInvalidDescriptor)
	}
	switch d.Protocol {
	case ProtocolIPv4, ProtocolIPv6, ProtocolMPLS, ProtocolVXLAN, ProtocolQinQ,
		ProtocolUDPFlood, ProtocolTCPSynFlood, ProtocolHTTPFlood, ProtocolDNSAmp:
		// recognized
	default:
		return "", fmt.Errorf("%w: unknown protocol tag %q", ErrInvalidDescriptor, d.Protocol)
	}
	if d.FrameSize < 64 || d.FrameSize > 9000 {
		return "", fmt.Errorf("%w: frame_size must be in [64, 9000], got %d", ErrInvalidDescriptor, d.FrameSize)
	}
	if min := minFrameSizeFor(d.Protocol); d.FrameSize < min {
		return "", fmt.Errorf("%w: frame_size %d is below the %s encapsulation minimum of %d",
			ErrInvalidDescriptor, d.FrameSize, d.Protocol, min)
	}
	if d.DSCP > 63 {
		return "", fmt.Errorf("%w: dscp must be in [0, 63], got %d", ErrInvalidDescriptor, d.DSCP)
	}
	if d.BandwidthMbps < 0 {
		return "", fmt.Errorf("%w: bandwidth_mbps must not be negative", ErrInvalidDescriptor)
	}

	if sum := d.Impairment.lossLikeSum(); sum > 100 {
		scale := 100 / sum
		d.Impairment.LossPercent *= scale
		d.Impairment.DuplicatePercent *= scale
		d.Impairment.ReorderPercent *= scale
		warning = fmt.Sprintf(
			"loss+duplicate+reorder summed to %.2f%%, clamped proportionally to fit 100%%", sum)
	}
	return warning, nil
}

// Profile is the Registry-owned, live counterpart of a ProfileDescriptor: it
// carries the descriptor plus the Runner's lifecycle state and atomic
// counters (§3, §4.5, §4.6).
type Profile struct {
	// mu guards desc and state; held only for the duration of a read/write,
	// never across a suspension point (§5).
	mu sync.RWMutex

	desc  ProfileDescriptor
	state ProfileState

	// failureCause records why a Profile entered the "failed" state (§4.5, §7).
	failureCause error

	frames    atomic.Uint64
	bytes     atomic.Uint64
	lossDrops atomic.Uint64
	dupEmits  atomic.Uint64
	reorders  atomic.Uint64
	overruns  atomic.Uint64
	lastSend  atomic.Int64
}

// NewProfile constructs a Profile in the "idle" state from a descriptor.
func NewProfile(desc ProfileDescriptor) *Profile {
	return &Profile{
		desc:  desc,
		state: ProfileStateIdle,
	}
}

// Descriptor returns a copy of the current descriptor (§4.6 snapshot read).
func (p *Profile) Descriptor() ProfileDescriptor {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.desc.Clone()
}

// State returns the current lifecycle state and, if "failed", its cause.
func (p *Profile) State() (ProfileState, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state, p.failureCause
}

// setState transitions the Profile's state; callers (the Runner) are
// responsible for only issuing legal transitions per the §4.5 table.
func (p *Profile) setState(s ProfileState, cause error) {
	p.mu.Lock()
	p.state = s
	p.failureCause = cause
	p.mu.Unlock()
}

// applyHotUpdate applies a live bandwidth/frame-size/impairment change
// (§4.5 "On hot-update, only bandwidth, frame size, and impairment block
// are applied").
func (p *Profile) applyHotUpdate(bandwidthMbps *float64, frameSize *int, impairment *ImpairmentConfig) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if bandwidthMbps != nil {
		p.desc.BandwidthMbps = *bandwidthMbps
	}
	if frameSize != nil {
		p.desc.FrameSize = *frameSize
	}
	if impairment != nil {
		p.desc.Impairment = *impairment
	}
}

// replaceDescriptor overwrites the full descriptor; only legal while the
// Profile is not running (§3 "immutable except for ... while running").
func (p *Profile) replaceDescriptor(desc ProfileDescriptor) {
	p.mu.Lock()
	p.desc = desc
	p.mu.Unlock()
}

// Counters returns a point-in-time snapshot of the profile's counters.
func (p *Profile) Counters() ProfileCounters {
	return ProfileCounters{
		FramesSent:     p.frames.Load(),
		BytesSent:      p.bytes.Load(),
		LossDrops:      p.lossDrops.Load(),
		DupEmits:       p.dupEmits.Load(),
		ReorderEvents:  p.reorders.Load(),
		ShaperOverrun:  p.overruns.Load(),
		LastSendUnixNs: p.lastSend.Load(),
	}
}

// ResetCounters zeroes all profile counters (§3: "profile counters reset
// when the profile is disabled and then re-enabled").
func (p *Profile) ResetCounters() {
	p.frames.Store(0)
	p.bytes.Store(0)
	p.lossDrops.Store(0)
	p.dupEmits.Store(0)
	p.reorders.Store(0)
	p.overruns.Store(0)
	p.lastSend.Store(0)
}

func (p *Profile) recordSent(seq uint32, nbytes int, sendTime int64) {
	p.frames.Add(1)
	p.bytes.Add(uint64(nbytes))
	p.lastSend.Store(sendTime)
}

func (p *Profile) recordLossDrop()     { p.lossDrops.Add(1) }
func (p *Profile) recordDup()          { p.dupEmits.Add(1) }
func (p *Profile) recordReorder()      { p.reorders.Add(1) }
func (p *Profile) recordShaperOverrun() { p.overruns.Add(1) }
