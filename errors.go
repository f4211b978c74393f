package trafficgen

//
// Error taxonomy (§7). These are sentinel errors; callers use errors.Is
// to classify a failure, and richer context is attached with fmt.Errorf's
// %w verb, following the package's "trafficgen: ..." wrapping convention.
//

import "errors"

// Transmitter errors (§4.1).
var (
	// ErrPortUnavailable indicates the port's link is down.
	ErrPortUnavailable = errors.New("trafficgen: port unavailable")

	// ErrOverflow indicates the transmitter's internal queue is saturated.
	ErrOverflow = errors.New("trafficgen: transmitter queue overflow")

	// ErrOversize indicates the frame exceeds the port MTU+VLAN allowance.
	ErrOversize = errors.New("trafficgen: frame exceeds port MTU")

	// ErrTransmitterClosed indicates the transmitter has been shut down.
	ErrTransmitterClosed = errors.New("trafficgen: transmitter closed")
)

// Frame Builder errors (§4.2, §7).
var ErrUnencodable = errors.New("trafficgen: profile descriptor is unencodable")

// Registry / validation errors (§3, §4.6, §7).
var (
	ErrDuplicateProfile      = errors.New("trafficgen: duplicate profile name")
	ErrUnknownProfile        = errors.New("trafficgen: unknown profile")
	ErrUnknownPort           = errors.New("trafficgen: unknown port")
	ErrInvalidDescriptor     = errors.New("trafficgen: invalid profile descriptor")
	ErrImmutableWhileRunning = errors.New("trafficgen: field is immutable while profile is running")
)

// Runner / lifecycle errors (§4.5, §7).
var (
	ErrResolution        = errors.New("trafficgen: port resolution failed")
	ErrAlreadyRunning    = errors.New("trafficgen: profile is already running")
	ErrProfileNotRunning = errors.New("trafficgen: profile is not running")
)

// Control Adapter errors (§4.9, §5, §7).
var ErrTimeout = errors.New("trafficgen: command deadline exceeded")

// RFC2544 Driver errors (§4.7, §7).
var (
	ErrSweepAlreadyRunning = errors.New("trafficgen: rfc2544 sweep already running for this profile")
	ErrSweepNotFound       = errors.New("trafficgen: rfc2544 run not found")
)
