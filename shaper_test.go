package trafficgen

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProfile() *Profile {
	return NewProfile(ProfileDescriptor{
		Name:      "p1",
		SrcPort:   "eth0",
		DstPort:   "eth1",
		Protocol:  ProtocolIPv4,
		FrameSize: 128,
	})
}

func TestShaperNoImpairmentPassesThrough(t *testing.T) {
	s := NewShaper(1, ImpairmentConfig{})
	profile := newTestProfile()
	tick := time.Now()

	out := s.Process(tick, 1, []byte("payload"), profile)
	require.Len(t, out, 1)
	assert.Equal(t, tick, out[0].Deadline)
	assert.Equal(t, uint32(1), out[0].Seq)
}

func TestShaperFullLossDropsEveryFrame(t *testing.T) {
	s := NewShaper(1, ImpairmentConfig{LossPercent: 100})
	profile := newTestProfile()

	for i := 0; i < 20; i++ {
		out := s.Process(time.Now(), uint32(i), []byte("x"), profile)
		assert.Empty(t, out)
	}
	assert.Equal(t, uint64(20), profile.Counters().LossDrops)
}

func TestShaperFullDuplicationEmitsTwoFrames(t *testing.T) {
	s := NewShaper(1, ImpairmentConfig{DuplicatePercent: 100})
	profile := newTestProfile()

	out := s.Process(time.Now(), 1, []byte("x"), profile)
	require.Len(t, out, 2)
	assert.True(t, out[1].Deadline.After(out[0].Deadline))
	assert.Equal(t, uint64(1), profile.Counters().DupEmits)
}

func TestShaperLatencyDelaysDueTime(t *testing.T) {
	s := NewShaper(1, ImpairmentConfig{LatencyMs: 20})
	profile := newTestProfile()
	tick := time.Now()

	out := s.Process(tick, 1, []byte("x"), profile)
	require.Len(t, out, 1)
	assert.InDelta(t, 20*time.Millisecond, out[0].Deadline.Sub(tick), float64(time.Millisecond))
}

func TestShaperShapingCapDropsExcess(t *testing.T) {
	s := NewShaper(1, ImpairmentConfig{ShapingCapMbps: 0.001}) // tiny cap, large interval
	profile := newTestProfile()

	payload := make([]byte, 1000)
	tick := time.Now()
	for i := 0; i < 100; i++ {
		s.Process(tick, uint32(i), payload, profile)
	}
	assert.Greater(t, profile.Counters().ShaperOverrun, uint64(0))
}
