package trafficgen

//
// Rate Pacer (§4.3): a per-profile token-bucket clock producing emission
// times at the configured bandwidth and packet size.
//

import (
	"sync"
	"time"
)

// defaultPacerBurstDepth is the default token-bucket burst depth in frames.
const defaultPacerBurstDepth = 64

// Pacer emits "send this frame now" ticks at the average rate required to
// realize a bandwidth in Mbps with a given frame size. The zero value is
// invalid; use NewPacer.
type Pacer struct {
	mu sync.Mutex

	bandwidthMbps float64
	frameSize     int
	burstDepth    int

	// tokens is the current token count, never retroactively adjusted on a
	// rate update (§4.3 "Updates").
	tokens float64

	// lastRefill is the last time tokens was topped up.
	lastRefill time.Time
}

// NewPacer constructs a Pacer starting with a full bucket of tokens, so the
// first burstDepth frames may be emitted back-to-back.
func NewPacer(bandwidthMbps float64, frameSize int) *Pacer {
	p := &Pacer{
		bandwidthMbps: bandwidthMbps,
		frameSize:     frameSize,
		burstDepth:    defaultPacerBurstDepth,
		tokens:        float64(defaultPacerBurstDepth),
		lastRefill:    time.Now(),
	}
	return p
}

// ratePerSecond returns the current configured frames/second rate. A zero
// bandwidth yields a zero rate, i.e. the pacer never ticks (§4.3, §8 "A zero
// bandwidth is a valid paused state").
func (p *Pacer) ratePerSecond() float64 {
	if p.frameSize <= 0 {
		return 0
	}
	return p.bandwidthMbps * 1e6 / 8 / float64(p.frameSize)
}

// refillLocked tops up the token bucket for elapsed time, capped at burstDepth.
func (p *Pacer) refillLocked(now time.Time) {
	rate := p.ratePerSecond()
	if rate <= 0 {
		p.lastRefill = now
		return
	}
	elapsed := now.Sub(p.lastRefill).Seconds()
	if elapsed <= 0 {
		return
	}
	p.tokens += elapsed * rate
	if max := float64(p.burstDepth); p.tokens > max {
		p.tokens = max
	}
	p.lastRefill = now
}

// Next blocks until the next token is available (or ctx-like cancellation
// via the done channel) and returns the tick time: the wall-clock time at
// which the token was taken. The tick is not back-dated to the instant the
// token became available; the average rate is held by the token count,
// which credits elapsed time up to burstDepth tokens. ok is false if done fired
// first or the pacer is paused (rate == 0) and done fired while waiting.
func (p *Pacer) Next(done <-chan struct{}) (tickTime time.Time, ok bool) {
	for {
		p.mu.Lock()
		now := time.Now()
		p.refillLocked(now)
		rate := p.ratePerSecond()

		if rate <= 0 {
			p.mu.Unlock()
			// paused: wait for either cancellation or a short poll interval
			// so a live bandwidth update is noticed promptly.
			select {
			case <-done:
				return time.Time{}, false
			case <-time.After(50 * time.Millisecond):
				continue
			}
		}

		if p.tokens >= 1 {
			p.tokens -= 1
			tick := now
			p.mu.Unlock()
			return tick, true
		}

		// compute how long until the next token is due
		deficit := 1 - p.tokens
		wait := time.Duration(deficit / rate * float64(time.Second))
		p.mu.Unlock()
		if wait <= 0 {
			wait = time.Microsecond
		}
		timer := time.NewTimer(wait)
		select {
		case <-done:
			timer.Stop()
			return time.Time{}, false
		case tickTime = <-timer.C:
			// loop back: re-check tokens precisely instead of trusting the
			// timer's own fired time, since refill is recomputed from now.
		}
	}
}

// Update rebases the pacer's bandwidth and frame size without touching the
// current token count, matching §4.3's update semantics exactly.
func (p *Pacer) Update(bandwidthMbps float64, frameSize int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := time.Now()
	p.refillLocked(now)
	p.bandwidthMbps = bandwidthMbps
	p.frameSize = frameSize
}
