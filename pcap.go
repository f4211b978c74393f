package trafficgen

//
// PCAP dumper (§4.1 "optional PCAPDumper-style wrapper"): captures a bounded
// snapshot of every frame written on a port. A RawEndpoint decorator rather
// than a NIC decorator, so it can wrap any sending path transparently.
//

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

// PCAPDumper wraps a RawEndpoint and records every write into a PCAP file.
// The zero value is invalid; use NewPCAPDumper to construct, then call Wrap
// to obtain the wrapped endpoint, and Close when the port is torn down.
type PCAPDumper struct {
	filename string
	logger   Logger

	cancel    context.CancelFunc
	closeOnce sync.Once
	joined    chan struct{}
	pich      chan []byte
}

// NewPCAPDumper creates a PCAPDumper writing to filename.
func NewPCAPDumper(filename string, logger Logger) *PCAPDumper {
	const manyPackets = 4096
	ctx, cancel := context.WithCancel(context.Background())
	pd := &PCAPDumper{
		filename: filename,
		logger:   logger,
		cancel:   cancel,
		joined:   make(chan struct{}),
		pich:     make(chan []byte, manyPackets),
	}
	go pd.loop(ctx)
	return pd
}

// Wrap returns a RawEndpoint that captures every write into inner and the
// PCAP file before delegating to inner.
func (pd *PCAPDumper) Wrap(inner RawEndpoint) RawEndpoint {
	return &pcapWrappedEndpoint{dumper: pd, inner: inner}
}

// deliver hands a packet snapshot to the background writer, dropping it on
// the floor (not onto the capture) if the channel is saturated.
func (pd *PCAPDumper) deliver(payload []byte) {
	const captureLength = 256
	n := len(payload)
	if n > captureLength {
		n = captureLength
	}
	snapshot := append([]byte{}, payload[:n]...)
	select {
	case pd.pich <- snapshot:
	default:
	}
}

// loop writes captured packets to the PCAP file until Close is called, then
// writes any snapshots still queued and returns.
func (pd *PCAPDumper) loop(ctx context.Context) {
	defer close(pd.joined)

	filep, err := os.Create(pd.filename)
	if err != nil {
		pd.logger.Warnf("trafficgen: PCAPDumper: os.Create: %s", err.Error())
		return
	}
	defer func() {
		if cerr := filep.Close(); cerr != nil {
			pd.logger.Warnf("trafficgen: PCAPDumper: close: %s", cerr.Error())
		}
	}()

	w := pcapgo.NewWriter(filep)
	const largeSnapLen = 262144
	if err := w.WriteFileHeader(largeSnapLen, layers.LinkTypeEthernet); err != nil {
		pd.logger.Warnf("trafficgen: PCAPDumper: WriteFileHeader: %s", err.Error())
		return
	}

	for {
		var snapshot []byte
		select {
		case <-ctx.Done():
			if len(pd.pich) == 0 {
				return
			}
			snapshot = <-pd.pich
		case snapshot = <-pd.pich:
		}
		ci := gopacket.CaptureInfo{
			Timestamp:     time.Now(),
			CaptureLength: len(snapshot),
			Length:        len(snapshot),
		}
		if err := w.WritePacket(ci, snapshot); err != nil {
			pd.logger.Warnf("trafficgen: PCAPDumper: WritePacket: %s", err.Error())
		}
	}
}

// Close stops the background writer and waits for it to finish.
func (pd *PCAPDumper) Close() error {
	pd.closeOnce.Do(func() {
		pd.cancel()
		<-pd.joined
	})
	return nil
}

// pcapWrappedEndpoint is a RawEndpoint decorator that mirrors writes into a
// PCAPDumper.
type pcapWrappedEndpoint struct {
	dumper *PCAPDumper
	inner  RawEndpoint
}

var _ RawEndpoint = &pcapWrappedEndpoint{}

func (e *pcapWrappedEndpoint) Write(payload []byte) (int, error) {
	e.dumper.deliver(payload)
	return e.inner.Write(payload)
}

func (e *pcapWrappedEndpoint) TXTimestamp() (time.Time, bool) {
	return e.inner.TXTimestamp()
}

func (e *pcapWrappedEndpoint) Close() error {
	return e.inner.Close()
}
