//go:build !linux

package trafficgen

import "fmt"

// newEndpointFor has no raw-socket implementation off Linux; every port
// falls back to an in-process simulation endpoint (§4.1 "substituted
// transparently").
func (c *Core) newEndpointFor(ifaceName string) (RawEndpoint, error) {
	return nil, fmt.Errorf("trafficgen: raw-socket endpoints are only implemented on linux")
}
