package trafficgen

//
// Impairment Shaper (§4.4): the per-profile stage between the Frame Builder
// and the Port Transmitter applying loss, duplication, reordering, and
// latency+jitter delay. The jitter/PLR logic generalizes a fixed per-link
// loss rate into a full per-profile impairment block; frames are put in
// deadline order by the Transmitter's queue, not here.
//

import (
	"math/rand"
	"time"
)

// dupDelay is the fixed offset applied to a duplicated frame (§4.4 step 3).
const dupDelay = 50 * time.Microsecond

// defaultBurstLossMeanRun is the mean run length, in frames, of the burst
// loss Markov model's "bad" state (§4.4 step 2).
const defaultBurstLossMeanRun = 5.0

// Shaper transforms a stream of (frame, tick-time) pairs into a stream of
// (frame, due-time) pairs exhibiting the profile's configured impairments.
// The zero value is invalid; use NewShaper. A Shaper is owned by exactly one
// Profile Runner and is not safe for concurrent use by multiple goroutines.
type Shaper struct {
	rnd        *rand.Rand
	impairment ImpairmentConfig

	// burstBad is the current state of the burst-loss Markov model.
	burstBad bool

	// capNextSlot is the earliest due-time this stage may hand out next,
	// when a shaping bandwidth cap is configured (§4.4 step 6).
	capNextSlot time.Time

	// maxCapQueueDelay bounds how far behind the cap clock may fall before
	// the Shaper starts dropping from the tail (§4.4 "Failure semantics").
	maxCapQueueDelay time.Duration
}

// NewShaper creates a Shaper whose PRNG is seeded with seed. The Runner
// passes a hash of the profile name on every enable, so repeated runs with
// the same configuration produce statistically identical impairment traces
// (§4.4 "reproducibility").
func NewShaper(seed int64, impairment ImpairmentConfig) *Shaper {
	return &Shaper{
		rnd:              rand.New(rand.NewSource(seed)),
		impairment:       impairment,
		maxCapQueueDelay: 250 * time.Millisecond,
	}
}

// Update applies a live impairment-block change (§4.5 hot-update). It does
// not reset the burst-loss Markov state or the shaping cap clock.
func (s *Shaper) Update(impairment ImpairmentConfig) {
	s.impairment = impairment
}

// Process runs one frame through the six impairment steps of §4.4 and
// returns zero, one, or two output frames (duplication may add a second).
// profile is used only to record counter deltas; it is never mutated
// structurally here.
func (s *Shaper) Process(tick time.Time, seq uint32, payload []byte, profile *Profile) []*Frame {
	im := s.impairment

	// Step 1: loss.
	if im.LossPercent > 0 && s.rnd.Float64()*100 < im.LossPercent {
		profile.recordLossDrop()
		return nil
	}

	// Step 2: burst loss, an independent two-state Markov model.
	if s.burstBad {
		profile.recordLossDrop()
		// exit the bad state after a geometric run-length (mean 5 frames).
		if s.rnd.Float64() < 1.0/defaultBurstLossMeanRun {
			s.burstBad = false
		}
		return nil
	}
	if im.BurstLossPercent > 0 && s.rnd.Float64()*100 < im.BurstLossPercent {
		s.burstBad = true
		profile.recordLossDrop()
		return nil
	}

	// Step 3/4: decide duplication and reorder before computing due-times.
	duplicate := im.DuplicatePercent > 0 && s.rnd.Float64()*100 < im.DuplicatePercent
	reorder := im.ReorderPercent > 0 && s.rnd.Float64()*100 < im.ReorderPercent

	// Step 5: latency and jitter. The jitter term is drawn from a symmetric
	// triangular distribution on [-jitter, +jitter] (sum of two independent
	// uniforms on [-jitter/2, +jitter/2] scaled to a triangular shape).
	latency := time.Duration(im.LatencyMs * float64(time.Millisecond))
	jitter := s.triangularJitter(im.JitterMs)
	delay := latency + jitter
	if reorder {
		// an extra delay drawn uniformly from [latency, latency+2*jitter]
		// applied to this frame only, causing it to overtake later frames.
		lo := im.LatencyMs
		hi := im.LatencyMs + 2*im.JitterMs
		extraMs := lo + s.rnd.Float64()*(hi-lo)
		delay += time.Duration(extraMs * float64(time.Millisecond))
		profile.recordReorder()
	}
	if delay < 0 {
		delay = 0
	}

	due := tick.Add(delay)
	out := []*Frame{{Deadline: due, Payload: payload, Seq: seq}}

	if duplicate {
		profile.recordDup()
		dup := &Frame{Deadline: due.Add(dupDelay), Payload: payload, Seq: seq}
		out = append(out, dup)
	}

	// Step 6: shaping cap.
	return s.applyCap(out, profile)
}

// triangularJitter draws from a symmetric triangular distribution on
// [-jitterMs, +jitterMs] as the sum of two independent uniforms.
func (s *Shaper) triangularJitter(jitterMs float64) time.Duration {
	if jitterMs <= 0 {
		return 0
	}
	u1 := s.rnd.Float64()
	u2 := s.rnd.Float64()
	triangular := (u1 + u2 - 1) * jitterMs // in [-jitterMs, +jitterMs]
	return time.Duration(triangular * float64(time.Millisecond))
}

// applyCap releases frames at no more than the configured shaping bandwidth
// cap, queueing overflow behind a virtual leaky bucket clock and dropping
// from the tail (counted as shaper_overrun) once the queue depth exceeds
// maxCapQueueDelay (§4.4 step 6 and "Failure semantics").
func (s *Shaper) applyCap(frames []*Frame, profile *Profile) []*Frame {
	if s.impairment.ShapingCapMbps <= 0 || len(frames) == 0 {
		return frames
	}
	// assume the dominant frame size for the cap's pacing interval is the
	// payload size of the first frame; good enough for a rate cap.
	frameBits := float64(len(frames[0].Payload)) * 8
	if frameBits <= 0 {
		return frames
	}
	interval := time.Duration(frameBits / (s.impairment.ShapingCapMbps * 1e6) * float64(time.Second))

	out := make([]*Frame, 0, len(frames))
	for _, f := range frames {
		if s.capNextSlot.Before(f.Deadline) {
			s.capNextSlot = f.Deadline
		}
		if s.capNextSlot.Sub(f.Deadline) > s.maxCapQueueDelay {
			profile.recordShaperOverrun()
			continue
		}
		f.Deadline = s.capNextSlot
		s.capNextSlot = s.capNextSlot.Add(interval)
		out = append(out, f)
	}
	return out
}
