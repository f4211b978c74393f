package trafficgen

//
// RFC2544 Driver (§4.7): runs standards-shaped benchmark sweeps against a
// named profile without disturbing other profiles' pipelines. Owns its own
// transient Pacer/Shaper/Transmitter-like send path plus a LoopbackFixture
// standing in for the external test fixture (§4.7 "the core does not
// itself perform DUT routing"). A programmatic sweep driver rather than a
// fixed test topology.
//

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// RFC2544Test names one composable test within a sweep (§4.7).
type RFC2544Test string

const (
	RFC2544Throughput  RFC2544Test = "throughput"
	RFC2544Latency     RFC2544Test = "latency"
	RFC2544FrameLoss   RFC2544Test = "frame-loss"
	RFC2544BackToBack  RFC2544Test = "back-to-back"
)

// standardFrameSizes are the RFC2544 reference frame sizes used by the
// Throughput test when the caller does not pin a single frame_size (§4.7).
var standardFrameSizes = []int{64, 128, 256, 512, 1024, 1280, 1518}

// RFC2544StepResult is one reported data point of a sweep.
type RFC2544StepResult struct {
	Test      RFC2544Test
	FrameSize int
	OfferedMbps float64
	LossRatio float64
	LatencyMinNs int64
	LatencyMeanNs int64
	LatencyMaxNs int64
	BurstFrames int
	Passed    bool
}

// RFC2544Run is the retained result of one driver invocation, looked up by
// run id or by profile name (§4.7, §6 "GET /api/rfc2544/results/<profile>").
type RFC2544Run struct {
	RunID      string
	Profile    string
	StartedAt  time.Time
	FinishedAt time.Time
	Steps      []RFC2544StepResult
	Err        error
}

// RFC2544Driver runs sweeps against one profile at a time. The zero value
// is invalid; use NewRFC2544Driver.
type RFC2544Driver struct {
	registry *Registry
	logger   Logger

	mu      sync.Mutex
	running map[string]bool
	results map[string]*RFC2544Run
}

// NewRFC2544Driver constructs a Driver over registry.
func NewRFC2544Driver(registry *Registry, logger Logger) *RFC2544Driver {
	return &RFC2544Driver{
		registry: registry,
		logger:   logger,
		running:  make(map[string]bool),
		results:  make(map[string]*RFC2544Run),
	}
}

// Start launches a sweep for profile running the given tests (default: all
// four) in the background, returning the new run's id immediately
// (§4.7, §6 "POST /api/rfc2544/start").
func (d *RFC2544Driver) Start(ctx context.Context, profileName string, tests []RFC2544Test) (string, error) {
	d.mu.Lock()
	if d.running[profileName] {
		d.mu.Unlock()
		return "", ErrSweepAlreadyRunning
	}
	d.running[profileName] = true
	d.mu.Unlock()

	profile, err := d.registry.GetProfile(profileName)
	if err != nil {
		d.mu.Lock()
		delete(d.running, profileName)
		d.mu.Unlock()
		return "", err
	}
	if len(tests) == 0 {
		tests = []RFC2544Test{RFC2544Throughput, RFC2544Latency, RFC2544FrameLoss, RFC2544BackToBack}
	}

	runID := uuid.NewString()
	run := &RFC2544Run{RunID: runID, Profile: profileName, StartedAt: time.Now()}

	d.mu.Lock()
	d.results[runID] = run
	d.results[profileName] = run // also addressable by profile name (latest run wins)
	d.mu.Unlock()

	go func() {
		defer func() {
			d.mu.Lock()
			delete(d.running, profileName)
			d.mu.Unlock()
		}()
		d.execute(ctx, run, profile, tests)
	}()

	return runID, nil
}

// Status returns the retained run identified by id or profile name.
func (d *RFC2544Driver) Status(idOrProfile string) (*RFC2544Run, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	run, ok := d.results[idOrProfile]
	if !ok {
		return nil, ErrSweepNotFound
	}
	return run, nil
}

// execute runs the requested tests in order, each cancellable at a step
// boundary within 1s (§5).
func (d *RFC2544Driver) execute(parent context.Context, run *RFC2544Run, profile *Profile, tests []RFC2544Test) {
	defer func() { run.FinishedAt = time.Now() }()

	desc := profile.Descriptor()
	srcPort, err := d.registry.GetPort(desc.SrcPort)
	if err != nil {
		run.Err = fmt.Errorf("%w: %s", ErrResolution, err.Error())
		return
	}

	fixture := NewLoopbackFixture(d.logger)
	defer fixture.Close()
	tx := NewTransmitter(srcPort, fixture, d.logger)
	defer tx.Shutdown(time.Second)

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	frameSizes := []int{desc.FrameSize}
	wantsStandardSizes := false
	for _, t := range tests {
		if t == RFC2544Throughput {
			wantsStandardSizes = true
		}
	}
	if wantsStandardSizes {
		frameSizes = standardFrameSizes
	}

	var passRate float64 = desc.BandwidthMbps
	for _, t := range tests {
		select {
		case <-ctx.Done():
			return
		default:
		}
		switch t {
		case RFC2544Throughput:
			for _, fs := range frameSizes {
				step := d.runThroughputStep(ctx, desc, srcPort, tx, fixture, fs)
				run.Steps = append(run.Steps, step)
				if step.Passed {
					passRate = step.OfferedMbps
				}
			}
		case RFC2544Latency:
			run.Steps = append(run.Steps, d.runLatencyStep(ctx, desc, srcPort, tx, fixture, passRate))
		case RFC2544FrameLoss:
			run.Steps = append(run.Steps, d.runFrameLossSteps(ctx, desc, srcPort, tx, fixture, passRate)...)
		case RFC2544BackToBack:
			run.Steps = append(run.Steps, d.runBackToBackStep(ctx, desc, srcPort, tx, fixture))
		}
	}
}

// trialDuration and lossThreshold are the default parameters named in §4.7.
const trialDuration = 60 * time.Second
const lossThreshold = 1e-5
const binarySearchSteps = 8

// runThroughputStep binary-searches the offered rate for the highest rate
// whose measured loss is below lossThreshold, for one frame size.
func (d *RFC2544Driver) runThroughputStep(ctx context.Context, desc ProfileDescriptor, srcPort *Port, tx *Transmitter, fixture *LoopbackFixture, frameSize int) RFC2544StepResult {
	lo, hi := 1.0, float64(srcPort.SpeedMbps)
	if hi <= lo {
		hi = lo + 1
	}
	best := RFC2544StepResult{Test: RFC2544Throughput, FrameSize: frameSize}
	for i := 0; i < binarySearchSteps; i++ {
		select {
		case <-ctx.Done():
			return best
		default:
		}
		mid := (lo + hi) / 2
		loss := d.trialLossRatio(ctx, desc, srcPort, tx, fixture, frameSize, mid, d.trialStepDuration(ctx))
		if loss < lossThreshold {
			best = RFC2544StepResult{Test: RFC2544Throughput, FrameSize: frameSize, OfferedMbps: mid, LossRatio: loss, Passed: true}
			lo = mid
		} else {
			hi = mid
		}
	}
	return best
}

// trialStepDuration shortens the nominal 60s trial when the context carries
// a test-only deadline; production sweeps use the full trialDuration.
func (d *RFC2544Driver) trialStepDuration(ctx context.Context) time.Duration {
	if dl, ok := ctx.Deadline(); ok {
		if remaining := time.Until(dl); remaining < trialDuration {
			if remaining <= 0 {
				return 0
			}
			return remaining
		}
	}
	return trialDuration
}

// trialLossRatio sends frames at offeredMbps for the given duration over
// the loopback fixture and returns the observed loss ratio.
func (d *RFC2544Driver) trialLossRatio(ctx context.Context, desc ProfileDescriptor, srcPort *Port, tx *Transmitter, fixture *LoopbackFixture, frameSize int, offeredMbps float64, duration time.Duration) float64 {
	pacer := NewPacer(offeredMbps, frameSize)
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
		case <-time.After(duration):
		}
		close(done)
	}()

	var sent, received uint64
	drain := make(chan struct{})
	go func() {
		defer close(drain)
		for {
			select {
			case <-fixture.Echoed():
				received++
			case <-done:
				// drain any remaining already-queued echoes briefly.
				for {
					select {
					case <-fixture.Echoed():
						received++
					default:
						return
					}
				}
			}
		}
	}()

	trialDesc := desc
	trialDesc.FrameSize = frameSize
	var seq uint32
	for {
		tick, ok := pacer.Next(done)
		if !ok {
			break
		}
		payload, err := buildFrame(trialDesc, srcPort, seq, tick)
		if err != nil {
			break
		}
		if err := tx.Send(&Frame{Deadline: tick, Payload: payload, Seq: seq}); err == nil {
			sent++
		}
		seq++
	}
	<-drain

	if sent == 0 {
		return 1
	}
	if received > sent {
		received = sent
	}
	return float64(sent-received) / float64(sent)
}

// runLatencyStep streams at the given rate for 120s (or the test-shortened
// equivalent), embedding emit timestamps, and reports min/mean/max latency
// of frames echoed by the loopback fixture.
func (d *RFC2544Driver) runLatencyStep(ctx context.Context, desc ProfileDescriptor, srcPort *Port, tx *Transmitter, fixture *LoopbackFixture, offeredMbps float64) RFC2544StepResult {
	const nominalLatencyWindow = 120 * time.Second
	duration := nominalLatencyWindow
	if dl, ok := ctx.Deadline(); ok {
		if remaining := time.Until(dl); remaining < duration {
			duration = remaining
		}
	}
	if duration <= 0 {
		return RFC2544StepResult{Test: RFC2544Latency}
	}

	pacer := NewPacer(offeredMbps, desc.FrameSize)
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
		case <-time.After(duration):
		}
		close(done)
	}()

	var latencies []time.Duration
	var mu sync.Mutex
	drain := make(chan struct{})
	go func() {
		defer close(drain)
		for {
			select {
			case raw := <-fixture.Echoed():
				if sig, ok := extractLatencySignature(raw); ok {
					lat := sinceEmit(sig)
					mu.Lock()
					latencies = append(latencies, lat)
					mu.Unlock()
				}
			case <-done:
				return
			}
		}
	}()

	var seq uint32
	for {
		tick, ok := pacer.Next(done)
		if !ok {
			break
		}
		payload, err := buildFrame(desc, srcPort, seq, tick)
		if err != nil {
			break
		}
		_ = tx.Send(&Frame{Deadline: tick, Payload: payload, Seq: seq})
		seq++
	}
	<-drain

	return summarizeLatency(latencies)
}

// extractLatencySignature locates the 16-byte signature at the start of an
// echoed IP payload's transport segment.
func extractLatencySignature(raw []byte) (parsedSignature, bool) {
	packet, err := DissectPacket(raw)
	if err != nil {
		return parsedSignature{}, false
	}
	return parseSignature(packet.TransportPayload())
}

func summarizeLatency(latencies []time.Duration) RFC2544StepResult {
	result := RFC2544StepResult{Test: RFC2544Latency}
	if len(latencies) == 0 {
		return result
	}
	sorted := append([]time.Duration{}, latencies...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	var sum time.Duration
	for _, l := range sorted {
		sum += l
	}
	result.LatencyMinNs = int64(sorted[0])
	result.LatencyMaxNs = int64(sorted[len(sorted)-1])
	result.LatencyMeanNs = int64(sum) / int64(len(sorted))
	result.Passed = true
	return result
}

// runFrameLossSteps sweeps {100, 90, ..., 10}% of nominalMbps, 60s each
// (test-shortened under a short context deadline), reporting loss per step.
func (d *RFC2544Driver) runFrameLossSteps(ctx context.Context, desc ProfileDescriptor, srcPort *Port, tx *Transmitter, fixture *LoopbackFixture, nominalMbps float64) []RFC2544StepResult {
	var steps []RFC2544StepResult
	for pct := 100; pct >= 10; pct -= 10 {
		select {
		case <-ctx.Done():
			return steps
		default:
		}
		offered := nominalMbps * float64(pct) / 100
		loss := d.trialLossRatio(ctx, desc, srcPort, tx, fixture, desc.FrameSize, offered, d.trialStepDuration(ctx))
		steps = append(steps, RFC2544StepResult{
			Test:        RFC2544FrameLoss,
			FrameSize:   desc.FrameSize,
			OfferedMbps: offered,
			LossRatio:   loss,
			Passed:      loss < lossThreshold,
		})
	}
	return steps
}

// runBackToBackStep issues bursts of doubling length at 100% rate until a
// burst observes loss, reporting the longest zero-loss burst.
func (d *RFC2544Driver) runBackToBackStep(ctx context.Context, desc ProfileDescriptor, srcPort *Port, tx *Transmitter, fixture *LoopbackFixture) RFC2544StepResult {
	longest := 0
	burst := 8
	const maxBurst = 1 << 20
	for burst <= maxBurst {
		select {
		case <-ctx.Done():
			return RFC2544StepResult{Test: RFC2544BackToBack, BurstFrames: longest, Passed: longest > 0}
		default:
		}
		if !d.burstIsLossFree(ctx, desc, srcPort, tx, fixture, burst) {
			break
		}
		longest = burst
		burst *= 2
	}
	return RFC2544StepResult{Test: RFC2544BackToBack, BurstFrames: longest, Passed: longest > 0}
}

// burstIsLossFree sends exactly n frames back-to-back (no pacing) and
// reports whether every one of them was echoed back.
func (d *RFC2544Driver) burstIsLossFree(ctx context.Context, desc ProfileDescriptor, srcPort *Port, tx *Transmitter, fixture *LoopbackFixture, n int) bool {
	var received uint64
	done := make(chan struct{})
	go func() {
		defer close(done)
		deadline := time.After(5 * time.Second)
		for i := 0; i < n; i++ {
			select {
			case <-fixture.Echoed():
				received++
			case <-deadline:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	now := time.Now()
	for seq := 0; seq < n; seq++ {
		payload, err := buildFrame(desc, srcPort, uint32(seq), now)
		if err != nil {
			return false
		}
		_ = tx.Send(&Frame{Deadline: now, Payload: payload, Seq: uint32(seq)})
	}
	<-done
	return received == uint64(n)
}
