//go:build linux

package trafficgen

//
// AF_PACKET raw-L2 send endpoint, bound to exactly one device via
// unix.Bind, so writes leave the intended physical port even when several
// ports exist on the host (§4.1). Uses golang.org/x/sys/unix to open an
// AF_PACKET SOCK_RAW socket instead of a UDP one, since we must emit full
// Ethernet frames.
//

import (
	"fmt"
	"net"
	"time"

	"golang.org/x/sys/unix"
)

// afPacketEndpoint is a RawEndpoint backed by an AF_PACKET SOCK_RAW socket
// bound to a single interface index.
type afPacketEndpoint struct {
	fd           int
	ifIndex      int
	hwTimestamp  bool
	lastTX       time.Time
}

var _ RawEndpoint = &afPacketEndpoint{}

// newAFPacketEndpoint opens and binds a raw socket to ifaceName. Opening a
// raw socket requires CAP_NET_RAW; callers without that capability should
// fall back to newSimEndpoint (see Core wiring in core.go).
func newAFPacketEndpoint(ifaceName string, hwTimestamp bool) (*afPacketEndpoint, error) {
	iface, err := net.InterfaceByName(ifaceName)
	if err != nil {
		return nil, fmt.Errorf("trafficgen: lookup interface %s: %w", ifaceName, err)
	}

	fd, err := unix.Socket(unix.AF_PACKET, unix.SOCK_RAW, int(htons(unix.ETH_P_ALL)))
	if err != nil {
		return nil, fmt.Errorf("trafficgen: open AF_PACKET socket: %w", err)
	}

	addr := &unix.SockaddrLinklayer{
		Protocol: htons(unix.ETH_P_ALL),
		Ifindex:  iface.Index,
	}
	if err := unix.Bind(fd, addr); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("trafficgen: bind to %s: %w", ifaceName, err)
	}

	if hwTimestamp {
		// best-effort: request hardware TX timestamps; ignore failure and
		// silently fall back to the software clock (§4.1).
		_ = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_TIMESTAMPING,
			unix.SOF_TIMESTAMPING_TX_HARDWARE|unix.SOF_TIMESTAMPING_RAW_HARDWARE)
	}

	return &afPacketEndpoint{fd: fd, ifIndex: iface.Index, hwTimestamp: hwTimestamp}, nil
}

// htons converts a 16-bit value to network byte order, needed because
// AF_PACKET protocol numbers are expected big-endian on the wire.
func htons(v int) uint16 {
	return uint16(v<<8) | uint16(v>>8)
}

// Write implements RawEndpoint.
func (e *afPacketEndpoint) Write(payload []byte) (int, error) {
	n, err := unix.Write(e.fd, payload)
	if err != nil {
		return 0, fmt.Errorf("trafficgen: raw write: %w", err)
	}
	e.lastTX = time.Now()
	return n, nil
}

// TXTimestamp implements RawEndpoint. No hardware timestamp is read back:
// that needs draining MSG_ERRQUEUE for a SCM_TIMESTAMPING control message
// with a blocking recvmsg the caller does not otherwise perform, so this
// always reports none and the Transmitter uses its own software clock read.
func (e *afPacketEndpoint) TXTimestamp() (time.Time, bool) {
	return time.Time{}, false
}

// Close implements RawEndpoint.
func (e *afPacketEndpoint) Close() error {
	return unix.Close(e.fd)
}
