package trafficgen

//
// RFC2544 loopback fixture (§4.7): a software stand-in for the external
// fixture that echoes frames back to the source port for latency/throughput
// measurement. Uses a worker pool like a packet router, but a single
// fixture reflects every frame it receives back to its sender instead of
// routing between distinct destinations, since RFC2544 test traffic always
// loops back to the port that emitted it.
//

import (
	"context"
	"sync"
	"time"
)

// LoopbackFixture is a [RawEndpoint] that reflects every Ethernet frame
// written to it back to the caller, after swapping IP/transport addresses
// and decrementing the TTL, the way a directly-attached peer would. An
// [RFC2544Driver] binds a Profile's destination to a LoopbackFixture instead
// of a real peer when no external tester is available.
type LoopbackFixture struct {
	ifaceName string
	logger    Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup

	incoming chan []byte
	echoed   chan []byte
}

// NewLoopbackFixture creates a fixture with an eight-worker pool that
// reflects incoming frames concurrently.
func NewLoopbackFixture(logger Logger) *LoopbackFixture {
	const incomingBuffer = 1024
	const workers = 8

	ctx, cancel := context.WithCancel(context.Background())
	lf := &LoopbackFixture{
		ifaceName: newSyntheticIfaceName(),
		logger:    logger,
		cancel:    cancel,
		incoming:  make(chan []byte, incomingBuffer),
		echoed:    make(chan []byte, incomingBuffer),
	}

	for idx := 0; idx < workers; idx++ {
		lf.wg.Add(1)
		go lf.workerMain(ctx, idx)
	}

	return lf
}

var _ RawEndpoint = &LoopbackFixture{}

// Write implements RawEndpoint: payload is a full Ethernet frame, the same
// bytes a Port Transmitter would hand to a real raw-L2 socket.
func (lf *LoopbackFixture) Write(payload []byte) (int, error) {
	cp := append([]byte{}, payload...)
	select {
	case lf.incoming <- cp:
		return len(payload), nil
	default:
		return 0, ErrOverflow
	}
}

// TXTimestamp implements RawEndpoint: the fixture never reports a hardware
// timestamp.
func (lf *LoopbackFixture) TXTimestamp() (time.Time, bool) {
	return time.Time{}, false
}

// Close implements RawEndpoint.
func (lf *LoopbackFixture) Close() error {
	lf.cancel()
	lf.wg.Wait()
	return nil
}

// Echoed returns the channel on which reflected frames are delivered. An
// RFC2544Driver reads from this channel to detect receipt and compute
// round-trip latency from the signature embedded by the Frame Builder.
func (lf *LoopbackFixture) Echoed() <-chan []byte {
	return lf.echoed
}

// workerMain is the main function of one loopback worker.
func (lf *LoopbackFixture) workerMain(ctx context.Context, idx int) {
	defer lf.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case rawInput := <-lf.incoming:
			out, ok := lf.reflect(rawInput)
			if !ok {
				continue
			}
			select {
			case lf.echoed <- out:
			default:
				lf.logger.Warnf("trafficgen: loopback fixture %s: echoed queue full, dropping", lf.ifaceName)
			}
		}
	}
}

// ethernetHeaderLen is the fixed 14-byte Ethernet header (dst MAC, src MAC,
// EtherType) every builder prepends ahead of the IP layer DissectPacket
// expects.
const ethernetHeaderLen = 14

// reflect dissects, swaps, and re-serializes one incoming frame. rawInput
// is a full Ethernet frame; DissectPacket only understands the IP layer
// onward, so the Ethernet header is stripped first. The reflected frame is
// handed back IP-only, same as Serialize always produced.
func (lf *LoopbackFixture) reflect(rawInput []byte) ([]byte, bool) {
	if len(rawInput) < ethernetHeaderLen {
		lf.logger.Warnf("trafficgen: loopback fixture %s: frame shorter than an Ethernet header", lf.ifaceName)
		return nil, false
	}
	packet, err := DissectPacket(rawInput[ethernetHeaderLen:])
	if err != nil {
		lf.logger.Warnf("trafficgen: loopback fixture %s: dissect: %s", lf.ifaceName, err.Error())
		return nil, false
	}
	if ttl := packet.TimeToLive(); ttl <= 0 {
		lf.logger.Warn("trafficgen: loopback fixture: TTL exceeded in transit")
		return nil, false
	}
	packet.DecrementTimeToLive()
	packet.SwapAddresses()
	rawOutput, err := packet.Serialize()
	if err != nil {
		lf.logger.Warnf("trafficgen: loopback fixture %s: serialize: %s", lf.ifaceName, err.Error())
		return nil, false
	}
	return rawOutput, true
}
