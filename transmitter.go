package trafficgen

//
// Port Transmitter (§4.1): owns a raw-L2 sending endpoint bound to exactly
// one port and provides an ordered, single-writer send contract. A single
// timer reset to the earliest pending deadline would suffice for one
// pending frame; since a transmitter may have many frames from many
// enabled profiles in flight concurrently, due-times are kept in a proper
// min-heap instead (§4.1).
//

import (
	"container/heap"
	"sync"
	"time"
)

// RawEndpoint is the raw-L2 sending endpoint a Transmitter writes to. It is
// bound to exactly one physical port (§4.1 "MUST be bound to this one
// device"). Two implementations exist: an AF_PACKET socket on Linux
// (transmitter_rawsock_linux.go) and an in-process simulation endpoint used
// by tests and by ports lacking raw-socket privilege (transmitter_sim.go).
type RawEndpoint interface {
	// Write sends payload and returns the number of bytes written.
	Write(payload []byte) (int, error)

	// TXTimestamp returns the hardware TX timestamp of the last write, if
	// the underlying device supports it, and whether one is available.
	TXTimestamp() (time.Time, bool)

	// Close releases the endpoint.
	Close() error
}

// txQueueEntry is one heap element: a frame plus its enqueue order, used to
// break due-time ties in FIFO order (§4.1 "ties broken by enqueue order").
type txQueueEntry struct {
	frame   *Frame
	seq     uint64
	heapIdx int
}

// txHeap is a container/heap.Interface min-heap keyed on (Deadline, seq).
type txHeap []*txQueueEntry

func (h txHeap) Len() int { return len(h) }
func (h txHeap) Less(i, j int) bool {
	if h[i].frame.Deadline.Equal(h[j].frame.Deadline) {
		return h[i].seq < h[j].seq
	}
	return h[i].frame.Deadline.Before(h[j].frame.Deadline)
}
func (h txHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].heapIdx = i
	h[j].heapIdx = j
}
func (h *txHeap) Push(x any) {
	e := x.(*txQueueEntry)
	e.heapIdx = len(*h)
	*h = append(*h, e)
}
func (h *txHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return e
}

// maxTransmitterQueueDepth bounds the number of frames a Transmitter will
// hold pending before it starts rejecting sends with ErrOverflow (§4.1).
const maxTransmitterQueueDepth = 4096

// maxTransientRetries bounds the retry budget for a transient write error
// before the frame is counted as dropped (§4.1, §7).
const maxTransientRetries = 3

// Transmitter is the single writer for one Port's raw endpoint.
type Transmitter struct {
	port     *Port
	endpoint RawEndpoint
	logger   Logger

	mu         sync.Mutex
	queue      txHeap
	nextSeq    uint64
	closed     bool
	closedCh   chan struct{}
	notify     chan struct{}
	lastTXTime time.Time

	wg sync.WaitGroup
}

// NewTransmitter starts a Transmitter goroutine for port, writing through
// endpoint. Callers must call Shutdown to stop the goroutine.
func NewTransmitter(port *Port, endpoint RawEndpoint, logger Logger) *Transmitter {
	t := &Transmitter{
		port:     port,
		endpoint: endpoint,
		logger:   logger,
		closedCh: make(chan struct{}),
		notify:   make(chan struct{}, 1),
	}
	t.wg.Add(1)
	go t.loop()
	return t
}

// Send enqueues frame to be sent at or after frame.Deadline (§4.1 contract).
func (t *Transmitter) Send(frame *Frame) error {
	if len(frame.Payload) > t.port.MaxFrameBytes() {
		return ErrOversize
	}
	if t.port.Status() != PortStatusReady {
		return ErrPortUnavailable
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrTransmitterClosed
	}
	if len(t.queue) >= maxTransmitterQueueDepth {
		t.mu.Unlock()
		t.port.addDropped(1)
		return ErrOverflow
	}
	entry := &txQueueEntry{frame: frame, seq: t.nextSeq}
	t.nextSeq++
	heap.Push(&t.queue, entry)
	t.mu.Unlock()

	t.wake()
	return nil
}

// wake notifies the loop that the queue changed without blocking.
func (t *Transmitter) wake() {
	select {
	case t.notify <- struct{}{}:
	default:
	}
}

// Counters returns a point-in-time snapshot of the port's TX counters.
func (t *Transmitter) Counters() PortCounters {
	return t.port.Counters()
}

// TXTimestamp returns the latest TX timestamp, hardware if available,
// otherwise a software monotonic clock read taken immediately before the
// write (§4.1 "Hardware timestamp capture is optional").
func (t *Transmitter) TXTimestamp() time.Time {
	if ts, ok := t.endpoint.TXTimestamp(); ok {
		return ts
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastTXTime
}

// Shutdown drains the queue within grace and then force-closes, counting
// any remaining frames as dropped (§4.1, §5 cancellation semantics).
func (t *Transmitter) Shutdown(grace time.Duration) {
	deadline := time.After(grace)
	drained := make(chan struct{})
	go func() {
		for {
			t.mu.Lock()
			empty := len(t.queue) == 0
			t.mu.Unlock()
			if empty {
				close(drained)
				return
			}
			time.Sleep(time.Millisecond)
		}
	}()
	select {
	case <-drained:
	case <-deadline:
	}

	t.mu.Lock()
	if !t.closed {
		t.closed = true
		remaining := uint64(len(t.queue))
		t.queue = nil
		close(t.closedCh)
		t.mu.Unlock()
		if remaining > 0 {
			t.port.addDropped(remaining)
		}
	} else {
		t.mu.Unlock()
	}
	t.wg.Wait()
	_ = t.endpoint.Close()
}

// loop is the Transmitter's single cooperative task: it sleeps until the
// earliest pending due-time, then writes (§5 "Suspension points": only
// channel ops, timed sleep, and the raw-send syscall itself).
func (t *Transmitter) loop() {
	defer t.wg.Done()

	timer := time.NewTimer(time.Hour)
	defer timer.Stop()
	armed := false

	for {
		t.mu.Lock()
		if t.closed {
			t.mu.Unlock()
			return
		}
		var waitFor time.Duration
		haveHead := len(t.queue) > 0
		if haveHead {
			waitFor = time.Until(t.queue[0].frame.Deadline)
		}
		t.mu.Unlock()

		if !haveHead {
			select {
			case <-t.closedCh:
				return
			case <-t.notify:
				continue
			}
		}

		if waitFor <= 0 {
			t.sendDue()
			continue
		}

		if !timer.Stop() && armed {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(waitFor)
		armed = true

		select {
		case <-t.closedCh:
			return
		case <-t.notify:
			continue
		case <-timer.C:
			t.sendDue()
		}
	}
}

// sendDue pops and writes every frame at the head of the queue whose
// deadline has passed.
func (t *Transmitter) sendDue() {
	for {
		t.mu.Lock()
		if len(t.queue) == 0 {
			t.mu.Unlock()
			return
		}
		entry := t.queue[0]
		if time.Until(entry.frame.Deadline) > 0 {
			t.mu.Unlock()
			return
		}
		heap.Pop(&t.queue)
		t.mu.Unlock()

		t.writeWithRetry(entry.frame)
	}
}

// writeWithRetry performs the synchronous raw write with a small bounded
// retry on transient (EAGAIN-like) failures, then counts the frame as
// dropped if the retry budget is exhausted (§4.1, §7).
func (t *Transmitter) writeWithRetry(frame *Frame) {
	if t.port.Status() != PortStatusReady {
		t.port.addDropped(1)
		return
	}
	var err error
	for attempt := 0; attempt <= maxTransientRetries; attempt++ {
		var n int
		before := time.Now()
		n, err = t.endpoint.Write(frame.Payload)
		if err == nil {
			t.mu.Lock()
			t.lastTXTime = before
			t.mu.Unlock()
			t.port.addSent(n)
			return
		}
		if attempt < maxTransientRetries {
			time.Sleep(time.Duration(1<<attempt) * time.Millisecond)
		}
	}
	t.logger.Warnf("trafficgen: port %s: write failed after retries: %s", t.port.Name, err)
	t.port.addDropped(1)
}
