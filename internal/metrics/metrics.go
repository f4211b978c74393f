// Package metrics registers the Prometheus collectors backing GET
// /api/metrics (§6).
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry groups every collector this process exposes. Construct once
// per process with NewRegistry and pass the *prometheus.Registry to the
// HTTP handler.
type Registry struct {
	Registerer *prometheus.Registry

	PortFrames  *prometheus.GaugeVec
	PortBytes   *prometheus.GaugeVec
	PortDropped *prometheus.GaugeVec

	ProfileFramesSent    *prometheus.GaugeVec
	ProfileBytesSent     *prometheus.GaugeVec
	ProfileLossDrops     *prometheus.GaugeVec
	ProfileDupEmits      *prometheus.GaugeVec
	ProfileReorderEvents *prometheus.GaugeVec
	ProfileShaperOverrun *prometheus.GaugeVec
}

// NewRegistry constructs and registers every gauge against a fresh
// *prometheus.Registry (kept separate from the default global registry so
// tests can construct independent instances).
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Registry{
		Registerer: reg,

		PortFrames: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "trafficgen",
			Subsystem: "port",
			Name:      "frames_total",
			Help:      "Frames transmitted on this port.",
		}, []string{"port"}),
		PortBytes: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "trafficgen",
			Subsystem: "port",
			Name:      "bytes_total",
			Help:      "Bytes transmitted on this port.",
		}, []string{"port"}),
		PortDropped: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "trafficgen",
			Subsystem: "port",
			Name:      "dropped_total",
			Help:      "Frames dropped at this port's transmitter.",
		}, []string{"port"}),

		ProfileFramesSent: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "trafficgen",
			Subsystem: "profile",
			Name:      "frames_sent_total",
			Help:      "Frames sent by this profile.",
		}, []string{"profile"}),
		ProfileBytesSent: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "trafficgen",
			Subsystem: "profile",
			Name:      "bytes_sent_total",
			Help:      "Bytes sent by this profile.",
		}, []string{"profile"}),
		ProfileLossDrops: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "trafficgen",
			Subsystem: "profile",
			Name:      "loss_drops_total",
			Help:      "Frames dropped by the impairment shaper's loss model.",
		}, []string{"profile"}),
		ProfileDupEmits: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "trafficgen",
			Subsystem: "profile",
			Name:      "dup_emits_total",
			Help:      "Duplicate frames emitted by the impairment shaper.",
		}, []string{"profile"}),
		ProfileReorderEvents: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "trafficgen",
			Subsystem: "profile",
			Name:      "reorder_events_total",
			Help:      "Frames reordered by the impairment shaper.",
		}, []string{"profile"}),
		ProfileShaperOverrun: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "trafficgen",
			Subsystem: "profile",
			Name:      "shaper_overrun_total",
			Help:      "Frames dropped by the shaping-cap leaky bucket.",
		}, []string{"profile"}),
	}
}

// SetPort updates the per-port gauges from a live counter read.
func (r *Registry) SetPort(name string, frames, bytes, dropped uint64) {
	r.PortFrames.WithLabelValues(name).Set(float64(frames))
	r.PortBytes.WithLabelValues(name).Set(float64(bytes))
	r.PortDropped.WithLabelValues(name).Set(float64(dropped))
}

// SetProfile updates the per-profile gauges from a live counter read.
func (r *Registry) SetProfile(name string, framesSent, bytesSent, lossDrops, dupEmits, reorderEvents, shaperOverrun uint64) {
	r.ProfileFramesSent.WithLabelValues(name).Set(float64(framesSent))
	r.ProfileBytesSent.WithLabelValues(name).Set(float64(bytesSent))
	r.ProfileLossDrops.WithLabelValues(name).Set(float64(lossDrops))
	r.ProfileDupEmits.WithLabelValues(name).Set(float64(dupEmits))
	r.ProfileReorderEvents.WithLabelValues(name).Set(float64(reorderEvents))
	r.ProfileShaperOverrun.WithLabelValues(name).Set(float64(shaperOverrun))
}
