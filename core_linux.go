//go:build linux

package trafficgen

// newEndpointFor opens the production AF_PACKET raw endpoint for ifaceName
// (§4.1); the caller falls back to a simulation endpoint if this fails,
// typically for lack of CAP_NET_RAW.
func (c *Core) newEndpointFor(ifaceName string) (RawEndpoint, error) {
	const wantHardwareTimestamp = true
	return newAFPacketEndpoint(ifaceName, wantHardwareTimestamp)
}
