// Package trafficgen is the traffic core of a multi-port network traffic
// generator and impairment emulator.
//
// A [Core] owns a [Registry] of [Port]s and [Profile]s. Each enabled
// Profile is driven by a [Runner], which composes a [Pacer] (rate control),
// a frame builder (protocol framing, see buildFrame), a [Shaper]
// (impairments: loss, duplication, reorder, latency, jitter), and a
// [Transmitter] (the single writer for one Port's raw send endpoint).
//
// Ports are bound to a raw-L2 [RawEndpoint]: an AF_PACKET socket on Linux
// (see transmitter_rawsock_linux.go), or an in-process simulation endpoint
// when the process lacks CAP_NET_RAW (see transmitter_sim.go). An optional
// [PCAPDumper] may wrap either endpoint to capture a bounded snapshot of
// every frame for offline inspection.
//
// A [NeighborProber] periodically refreshes each Port's ARP/NDP and LLDP
// neighbor cache. An [RFC2544Driver] runs standards-shaped throughput,
// latency, frame-loss, and back-to-back sweeps against a named Profile
// without disturbing other Profiles.
//
// The [Adapter] is the single point where external requests (typically an
// HTTP control surface, see internal/httpapi) cross into the core: it
// validates input, mutates the Registry, and drives Runner lifecycle
// events.
package trafficgen
