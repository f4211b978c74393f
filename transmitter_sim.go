package trafficgen

//
// Simulation raw endpoint: an in-process loopback writer substituted when
// the process lacks CAP_NET_RAW or when a test port has no real kernel
// device behind it (§4.1 "a pure-simulation endpoint... is substituted
// transparently"). This is what lets the Transmitter's scheduling and
// counter logic be exercised by unit tests without privilege.
//

import (
	"sync"
	"time"
)

// simEndpoint is a RawEndpoint that records every write instead of sending
// it to the kernel. Tests can read Written() to assert on wire shape.
type simEndpoint struct {
	mu      sync.Mutex
	written [][]byte
	lastTX  time.Time
	closed  bool

	// failNext, when > 0, causes that many subsequent Write calls to return
	// a transient error, used to exercise the Transmitter's retry path.
	failNext int
}

var _ RawEndpoint = &simEndpoint{}

// newSimEndpoint constructs an empty simulation endpoint.
func newSimEndpoint() *simEndpoint {
	return &simEndpoint{}
}

// Write implements RawEndpoint.
func (e *simEndpoint) Write(payload []byte) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.failNext > 0 {
		e.failNext--
		return 0, errSimTransient
	}
	cp := append([]byte{}, payload...)
	e.written = append(e.written, cp)
	e.lastTX = time.Now()
	return len(payload), nil
}

// TXTimestamp implements RawEndpoint: always a software fallback.
func (e *simEndpoint) TXTimestamp() (time.Time, bool) {
	return time.Time{}, false
}

// Close implements RawEndpoint.
func (e *simEndpoint) Close() error {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()
	return nil
}

// Written returns a copy of every payload written so far, in order.
func (e *simEndpoint) Written() [][]byte {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([][]byte, len(e.written))
	copy(out, e.written)
	return out
}

// SetFailNext arranges for the next n writes to fail transiently.
func (e *simEndpoint) SetFailNext(n int) {
	e.mu.Lock()
	e.failNext = n
	e.mu.Unlock()
}

// errSimTransient is the canned transient error used by simEndpoint.
var errSimTransient = &simTransientError{}

type simTransientError struct{}

func (*simTransientError) Error() string { return "trafficgen: simulated transient write error" }
