package trafficgen

//
// Synthetic interface naming, used for log messages and test fixtures that
// need a unique, human-readable identifier instead of a real kernel device.
//

import (
	"fmt"
	"sync/atomic"
)

// syntheticIfaceID is the unique ID of each synthetic interface name handed
// out by newSyntheticIfaceName.
var syntheticIfaceID = &atomic.Int64{}

// newSyntheticIfaceName constructs a new, unique interface-like name, used
// by the RFC2544 loopback fixture (loopback.go) and by tests that need a
// Port without a real kernel device behind it.
func newSyntheticIfaceName() string {
	return fmt.Sprintf("veth%d", syntheticIfaceID.Add(1))
}
