package trafficgen

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEthernetHeader prepends a 14-byte placeholder Ethernet header, the
// shape every frame carries on the wire between a Port Transmitter and a
// RawEndpoint.
func fakeEthernetHeader(ipPacket []byte) []byte {
	frame := make([]byte, ethernetHeaderLen, ethernetHeaderLen+len(ipPacket))
	return append(frame, ipPacket...)
}

func TestLoopbackFixtureReflectsSwappedFrame(t *testing.T) {
	lf := NewLoopbackFixture(testLogger{})
	defer lf.Close()

	raw := fakeEthernetHeader(buildTestIPv4UDP(t, "192.0.2.10", "192.0.2.20", 1000, 2000, []byte("probe")))
	n, err := lf.Write(raw)
	require.NoError(t, err)
	assert.Equal(t, len(raw), n)

	select {
	case echoed := <-lf.Echoed():
		pkt, err := DissectPacket(echoed)
		require.NoError(t, err)
		assert.Equal(t, "192.0.2.20", pkt.SourceIPAddress())
		assert.Equal(t, "192.0.2.10", pkt.DestinationIPAddress())
		assert.Equal(t, uint16(2000), pkt.SourcePort())
		assert.Equal(t, uint16(1000), pkt.DestinationPort())
		assert.Equal(t, int64(63), pkt.TimeToLive())
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for echoed frame")
	}
}

func TestLoopbackFixtureDropsExpiredTTL(t *testing.T) {
	lf := NewLoopbackFixture(testLogger{})
	defer lf.Close()

	raw := buildTestIPv4UDP(t, "192.0.2.10", "192.0.2.20", 1000, 2000, nil)
	pkt, err := DissectPacket(raw)
	require.NoError(t, err)
	for pkt.TimeToLive() > 0 {
		pkt.DecrementTimeToLive()
	}
	expired, err := pkt.Serialize()
	require.NoError(t, err)

	_, err = lf.Write(fakeEthernetHeader(expired))
	require.NoError(t, err)

	select {
	case <-lf.Echoed():
		t.Fatal("expected TTL-expired frame to be dropped, not echoed")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestLoopbackFixtureDropsGarbage(t *testing.T) {
	lf := NewLoopbackFixture(testLogger{})
	defer lf.Close()

	_, err := lf.Write([]byte{})
	require.NoError(t, err)

	select {
	case <-lf.Echoed():
		t.Fatal("expected unparseable frame to be dropped, not echoed")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestLoopbackFixtureCloseStopsWorkers(t *testing.T) {
	lf := NewLoopbackFixture(testLogger{})
	require.NoError(t, lf.Close())
}
