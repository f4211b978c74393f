package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRegistrySetPortUpdatesGauges(t *testing.T) {
	r := NewRegistry()
	r.SetPort("eth0", 10, 2000, 1)

	assert.Equal(t, float64(10), testutil.ToFloat64(r.PortFrames.WithLabelValues("eth0")))
	assert.Equal(t, float64(2000), testutil.ToFloat64(r.PortBytes.WithLabelValues("eth0")))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.PortDropped.WithLabelValues("eth0")))
}

func TestRegistrySetProfileUpdatesGauges(t *testing.T) {
	r := NewRegistry()
	r.SetProfile("p1", 5, 500, 1, 2, 3, 4)

	assert.Equal(t, float64(5), testutil.ToFloat64(r.ProfileFramesSent.WithLabelValues("p1")))
	assert.Equal(t, float64(500), testutil.ToFloat64(r.ProfileBytesSent.WithLabelValues("p1")))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.ProfileLossDrops.WithLabelValues("p1")))
	assert.Equal(t, float64(2), testutil.ToFloat64(r.ProfileDupEmits.WithLabelValues("p1")))
	assert.Equal(t, float64(3), testutil.ToFloat64(r.ProfileReorderEvents.WithLabelValues("p1")))
	assert.Equal(t, float64(4), testutil.ToFloat64(r.ProfileShaperOverrun.WithLabelValues("p1")))
}

func TestNewRegistryProducesIndependentInstances(t *testing.T) {
	a := NewRegistry()
	b := NewRegistry()
	a.SetPort("eth0", 1, 1, 0)

	assert.Equal(t, float64(0), testutil.ToFloat64(b.PortFrames.WithLabelValues("eth0")))
}
