package trafficgen

//
// Profile Runner (§4.5): owns a single profile's lifecycle and composes its
// pipeline (Pacer -> Frame Builder -> Shaper -> Transmitter) in one
// goroutine that stops when its done channel closes. Modeled as an explicit state machine since a
// Runner's lifecycle is driven by external enable/disable/update events
// rather than running until Close.
//

import (
	"fmt"
	"sync"
	"time"
)

// Runner drives one Profile's pipeline. The zero value is invalid; use
// NewRunner.
type Runner struct {
	profile *Profile
	logger  Logger

	resolveTransmitter func(portName string) (*Transmitter, error)
	resolvePort        func(portName string) (*Port, error)

	mu      sync.Mutex
	done    chan struct{}
	wg      sync.WaitGroup
	running bool

	pacer  *Pacer
	shaper *Shaper
}

// NewRunner constructs a Runner bound to profile. resolveTransmitter and
// resolvePort let the Runner look up the source port's Transmitter and the
// source/destination Port descriptors without depending on the full
// Registry type, keeping the Runner testable in isolation.
func NewRunner(profile *Profile, logger Logger,
	resolveTransmitter func(portName string) (*Transmitter, error),
	resolvePort func(portName string) (*Port, error),
) *Runner {
	return &Runner{
		profile:            profile,
		logger:             logger,
		resolveTransmitter: resolveTransmitter,
		resolvePort:        resolvePort,
	}
}

// Enable resolves ports, builds the pipeline, and starts the Runner's
// goroutine (§4.5 "On enable"). It transitions idle/failed -> starting ->
// running, or -> failed on resolution error.
func (r *Runner) Enable() error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return ErrAlreadyRunning
	}
	r.mu.Unlock()

	r.profile.setState(ProfileStateStarting, nil)

	desc := r.profile.Descriptor()
	srcPort, err := r.resolvePort(desc.SrcPort)
	if err != nil {
		wrapped := fmt.Errorf("%w: %s", ErrResolution, err.Error())
		r.profile.setState(ProfileStateFailed, wrapped)
		return wrapped
	}
	if _, err := r.resolvePort(desc.DstPort); err != nil {
		wrapped := fmt.Errorf("%w: %s", ErrResolution, err.Error())
		r.profile.setState(ProfileStateFailed, wrapped)
		return wrapped
	}
	tx, err := r.resolveTransmitter(desc.SrcPort)
	if err != nil {
		wrapped := fmt.Errorf("%w: %s", ErrResolution, err.Error())
		r.profile.setState(ProfileStateFailed, wrapped)
		return wrapped
	}

	r.profile.ResetCounters()

	r.mu.Lock()
	r.pacer = NewPacer(desc.BandwidthMbps, desc.FrameSize)
	r.shaper = NewShaper(int64(profileIDHash(desc.Name)), desc.Impairment)
	r.done = make(chan struct{})
	r.running = true
	r.wg.Add(1)
	done := r.done
	r.mu.Unlock()

	r.profile.setState(ProfileStateRunning, nil)

	go r.loop(done, srcPort, tx)
	return nil
}

// Disable stops the Pacer, lets the Shaper drain, and releases the
// Transmitter subscription (§4.5 "On disable"). grace bounds how long the
// goroutine is given to notice cancellation before the caller gives up
// waiting on it; the goroutine itself always stops promptly since it only
// suspends on the Pacer's done channel and the Transmitter send path.
func (r *Runner) Disable() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.profile.setState(ProfileStateStopping, nil)
	close(r.done)
	r.running = false
	r.mu.Unlock()

	waited := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(waited)
	}()
	grace := 100 * time.Millisecond
	if d := r.profile.Descriptor(); d.Impairment.LatencyMs > 0 {
		extra := time.Duration(d.Impairment.LatencyMs) * time.Millisecond
		if extra > grace {
			grace = extra + 100*time.Millisecond
		}
	}
	select {
	case <-waited:
	case <-time.After(grace):
		r.logger.Warnf("trafficgen: profile %s: runner did not stop within grace period", r.profile.Descriptor().Name)
	}

	r.profile.setState(ProfileStateIdle, nil)
}

// Update applies a hot-update to the live Pacer and Shaper (§4.5 "On
// hot-update, only bandwidth, frame size, and impairment block are
// applied"). The caller is responsible for rejecting changes to any other
// field while running (see Registry.UpdateProfile).
func (r *Runner) Update(bandwidthMbps float64, frameSize int, impairment ImpairmentConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.running {
		return
	}
	r.profile.setState(ProfileStateUpdating, nil)
	r.pacer.Update(bandwidthMbps, frameSize)
	r.shaper.Update(impairment)
	r.profile.setState(ProfileStateRunning, nil)
}

// loop is the Runner's cooperative task: Pacer tick -> build -> shape ->
// transmit, until done is closed.
func (r *Runner) loop(done chan struct{}, srcPort *Port, tx *Transmitter) {
	defer r.wg.Done()

	var seq uint32
	for {
		tick, ok := r.pacer.Next(done)
		if !ok {
			return
		}

		desc := r.profile.Descriptor()
		payload, err := buildFrame(desc, srcPort, seq, tick)
		if err != nil {
			wrapped := fmt.Errorf("%w: %s", err, desc.Name)
			r.profile.setState(ProfileStateFailed, wrapped)
			r.logger.Warnf("trafficgen: profile %s: build failed, stopping: %s", desc.Name, err.Error())
			return
		}

		r.mu.Lock()
		shaper := r.shaper
		r.mu.Unlock()
		frames := shaper.Process(tick, seq, payload, r.profile)
		seq++

		for _, f := range frames {
			if sendErr := tx.Send(f); sendErr != nil {
				// soft error: a down port or a saturated queue does not tear
				// down the Runner (§4.5 Failure semantics, §7).
				continue
			}
			r.profile.recordSent(f.Seq, len(f.Payload), f.Deadline.UnixNano())
		}

		select {
		case <-done:
			return
		default:
		}
	}
}
