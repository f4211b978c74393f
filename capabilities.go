package trafficgen

//
// Capability flags (§9 "Dynamic feature presence"): optional subsystems are
// declared once at build/startup time rather than probed at runtime. The
// HTTP binding in internal/httpapi consults the RFC2544 flag to decide
// whether to register the /api/rfc2544/* endpoints; no endpoint is gated
// on the other flags.
//

// Capabilities gates which auxiliary, non-hard-core subsystems a Core
// instance exposes. The traffic-generation hard core (Registry, Runner,
// Transmitter, Shaper, Pacer, Frame Builder) is always present; these flags
// govern only informational/auxiliary surface area.
type Capabilities struct {
	// SNMP advertises the SNMP capability. Off by default. This repository
	// contains no SNMP agent or endpoint; the flag is only carried in the
	// capability set and persisted config.
	SNMP bool

	// NetFlow advertises the NetFlow capability. No flow export is
	// implemented; the flag is only carried in the capability set.
	NetFlow bool

	// BGP advertises the BGP capability. No BGP endpoint is implemented;
	// the flag is only carried in the capability set.
	BGP bool

	// RFC2544 enables the /api/rfc2544/* endpoints. On by default since the
	// Driver is a hard-core citizen of this specification (§4.7).
	RFC2544 bool
}

// DefaultCapabilities returns the capability set a freshly started Core
// enables unless overridden by configuration: RFC2544 on, the informational
// SNMP/NetFlow/BGP surfaces off.
func DefaultCapabilities() Capabilities {
	return Capabilities{RFC2544: true}
}
