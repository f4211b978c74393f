// Package httpapi is the gin-based HTTP binding of the Control Adapter
// (§6 "Control surface (HTTP, JSON)"). It is one possible transport over
// [trafficgen.Adapter]; every handler does nothing but translate a
// request/response shape and delegate to the Adapter.
package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/netforge/trafficgen"
	"github.com/netforge/trafficgen/internal/metrics"
)

// NewRouter constructs the gin.Engine exposing every endpoint named in §6,
// wired to adapter and reporting through metricsReg.
func NewRouter(adapter *trafficgen.Adapter, metricsReg *metrics.Registry) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestid.New())
	r.Use(gzip.Gzip(gzip.DefaultCompression))

	r.GET("/healthz", healthzHandler)
	r.GET("/api/metrics", metricsHandler(adapter, metricsReg))

	r.GET("/api/interfaces", listInterfacesHandler(adapter))

	r.GET("/api/traffic-profiles", listProfilesHandler(adapter))
	r.POST("/api/traffic-profiles", createProfileHandler(adapter))
	r.PUT("/api/traffic-profiles/:name", updateProfileHandler(adapter))
	r.DELETE("/api/traffic-profiles/:name", deleteProfileHandler(adapter))
	r.POST("/api/traffic-profiles/:name/enable", enableProfileHandler(adapter))
	r.POST("/api/traffic-profiles/:name/disable", disableProfileHandler(adapter))

	r.POST("/api/traffic/start", startTrafficHandler(adapter))
	r.POST("/api/traffic/stop", stopTrafficHandler(adapter))
	r.GET("/api/traffic/stats", statsHandler(adapter))

	r.POST("/api/neighbors/discover", discoverNeighborsHandler(adapter))

	if adapter.Capabilities().RFC2544 {
		r.POST("/api/rfc2544/start", rfc2544StartHandler(adapter))
		r.GET("/api/rfc2544/results/:profile", rfc2544ResultsHandler(adapter))
	}

	return r
}

func healthzHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// metricsHandler refreshes every gauge from the Adapter's current counter
// snapshot and then serves the Prometheus exposition format. Refreshing
// on-scrape (rather than on a background ticker) keeps the exposed values
// exactly consistent with one GetStats call, matching the single-timestamp
// snapshot discipline the Registry already applies internally.
func metricsHandler(adapter *trafficgen.Adapter, metricsReg *metrics.Registry) gin.HandlerFunc {
	inner := gin.WrapH(promhttp.HandlerFor(metricsReg.Registerer, promhttp.HandlerOpts{}))
	return func(c *gin.Context) {
		snap := adapter.GetStats()
		for name, pc := range snap.Ports {
			metricsReg.SetPort(name, pc.Frames, pc.Bytes, pc.Dropped)
		}
		for name, pc := range snap.Profiles {
			metricsReg.SetProfile(name, pc.FramesSent, pc.BytesSent, pc.LossDrops, pc.DupEmits, pc.ReorderEvents, pc.ShaperOverrun)
		}
		inner(c)
	}
}

// portView is the JSON shape of one port in GET /api/interfaces.
type portView struct {
	Name      string             `json:"name"`
	MAC       string             `json:"mac"`
	IPv4      string             `json:"ipv4,omitempty"`
	IPv6      string             `json:"ipv6,omitempty"`
	SpeedMbps int                `json:"speed_mbps"`
	Status    trafficgen.PortStatus `json:"status"`
}

func listInterfacesHandler(adapter *trafficgen.Adapter) gin.HandlerFunc {
	return func(c *gin.Context) {
		ports := adapter.ListPorts()
		views := make([]portView, 0, len(ports))
		for _, p := range ports {
			views = append(views, portView{
				Name:      p.Name,
				MAC:       p.MAC.String(),
				IPv4:      p.IPv4,
				IPv6:      p.IPv6,
				SpeedMbps: p.SpeedMbps,
				Status:    p.Status(),
			})
		}
		c.JSON(http.StatusOK, gin.H{"ports": views})
	}
}

// profileView is the JSON shape of one profile, combining its descriptor
// and live state.
type profileView struct {
	trafficgen.ProfileDescriptor
	State string `json:"state"`
	Cause string `json:"failure_cause,omitempty"`
}

func toProfileView(p *trafficgen.Profile) profileView {
	state, cause := p.State()
	v := profileView{ProfileDescriptor: p.Descriptor(), State: string(state)}
	if cause != nil {
		v.Cause = cause.Error()
	}
	return v
}

func listProfilesHandler(adapter *trafficgen.Adapter) gin.HandlerFunc {
	return func(c *gin.Context) {
		profiles := adapter.ListProfiles()
		views := make([]profileView, 0, len(profiles))
		for _, p := range profiles {
			views = append(views, toProfileView(p))
		}
		c.JSON(http.StatusOK, gin.H{"profiles": views})
	}
}

func createProfileHandler(adapter *trafficgen.Adapter) gin.HandlerFunc {
	return func(c *gin.Context) {
		var desc trafficgen.ProfileDescriptor
		if err := c.ShouldBindJSON(&desc); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		_, warning, err := adapter.CreateProfile(desc)
		if err != nil {
			writeAdapterError(c, err)
			return
		}
		resp := gin.H{"name": desc.Name}
		if warning != "" {
			resp["warning"] = warning
		}
		c.JSON(http.StatusOK, resp)
	}
}

func updateProfileHandler(adapter *trafficgen.Adapter) gin.HandlerFunc {
	return func(c *gin.Context) {
		name := c.Param("name")
		var fields trafficgen.ProfileUpdateFields
		if err := c.ShouldBindJSON(&fields); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		profile, err := adapter.UpdateProfile(name, fields)
		if err != nil {
			writeAdapterError(c, err)
			return
		}
		c.JSON(http.StatusOK, toProfileView(profile))
	}
}

func deleteProfileHandler(adapter *trafficgen.Adapter) gin.HandlerFunc {
	return func(c *gin.Context) {
		name := c.Param("name")
		if err := adapter.DeleteProfile(name); err != nil {
			writeAdapterError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

func enableProfileHandler(adapter *trafficgen.Adapter) gin.HandlerFunc {
	return func(c *gin.Context) {
		name := c.Param("name")
		if err := adapter.EnableProfile(c.Request.Context(), name); err != nil {
			writeAdapterError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

func disableProfileHandler(adapter *trafficgen.Adapter) gin.HandlerFunc {
	return func(c *gin.Context) {
		name := c.Param("name")
		if err := adapter.DisableProfile(name); err != nil {
			writeAdapterError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

func startTrafficHandler(adapter *trafficgen.Adapter) gin.HandlerFunc {
	return func(c *gin.Context) {
		adapter.StartAll(c.Request.Context())
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

func stopTrafficHandler(adapter *trafficgen.Adapter) gin.HandlerFunc {
	return func(c *gin.Context) {
		adapter.StopAll()
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

func statsHandler(adapter *trafficgen.Adapter) gin.HandlerFunc {
	return func(c *gin.Context) {
		snap := adapter.GetStats()
		c.JSON(http.StatusOK, gin.H{
			"snapshot_at": snap.SnapshotAt.Format(time.RFC3339Nano),
			"ports":       snap.Ports,
			"profiles":    snap.Profiles,
		})
	}
}

type discoverRequest struct {
	Interfaces []string `json:"interfaces"`
}

func discoverNeighborsHandler(adapter *trafficgen.Adapter) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req discoverRequest
		_ = c.ShouldBindJSON(&req) // an empty/absent body means "scan everything"
		if err := adapter.DiscoverNeighbors(c.Request.Context(), req.Interfaces); err != nil {
			writeAdapterError(c, err)
			return
		}
		ports := adapter.ListPorts()
		out := make(map[string]*trafficgen.NeighborCache, len(ports))
		for _, p := range ports {
			out[p.Name] = p.Neighbors()
		}
		c.JSON(http.StatusOK, gin.H{"neighbors": out})
	}
}

type rfc2544StartRequest struct {
	Profile string                   `json:"profile"`
	Tests   []trafficgen.RFC2544Test `json:"tests"`
}

func rfc2544StartHandler(adapter *trafficgen.Adapter) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req rfc2544StartRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		runID, err := adapter.RFC2544Start(c.Request.Context(), req.Profile, req.Tests)
		if err != nil {
			writeAdapterError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"run_id": runID})
	}
}

func rfc2544ResultsHandler(adapter *trafficgen.Adapter) gin.HandlerFunc {
	return func(c *gin.Context) {
		profile := c.Param("profile")
		run, err := adapter.RFC2544Status(profile)
		if err != nil {
			writeAdapterError(c, err)
			return
		}
		c.JSON(http.StatusOK, run)
	}
}

// writeAdapterError maps an Adapter-returned sentinel error to the status
// codes named in §6's endpoint table.
func writeAdapterError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, trafficgen.ErrUnknownProfile),
		errors.Is(err, trafficgen.ErrUnknownPort),
		errors.Is(err, trafficgen.ErrSweepNotFound),
		errors.Is(err, trafficgen.ErrProfileNotRunning):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, trafficgen.ErrDuplicateProfile),
		errors.Is(err, trafficgen.ErrImmutableWhileRunning),
		errors.Is(err, trafficgen.ErrAlreadyRunning),
		errors.Is(err, trafficgen.ErrSweepAlreadyRunning),
		errors.Is(err, trafficgen.ErrPortUnavailable):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, trafficgen.ErrTimeout):
		c.JSON(http.StatusRequestTimeout, gin.H{"error": err.Error()})
	case errors.Is(err, trafficgen.ErrInvalidDescriptor):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	}
}
