package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests"},
		[]string{"route", "method", "status"},
	)
	ReqDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Request duration seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)
	InFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "http_in_flight_requests", Help: "In-flight HTTP requests"},
	)

	// IdentityWrites counts management API writes by kind (profile, password) and outcome.
	IdentityWrites = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "profile_identity_writes_total", Help: "Identity provider writes"},
		[]string{"kind", "outcome"},
	)
	// MetadataWrites counts metadata upserts by outcome.
	MetadataWrites = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "profile_metadata_writes_total", Help: "Metadata document upserts"},
		[]string{"outcome"},
	)
	SessionRefreshes = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "profile_session_refreshes_total", Help: "Session refreshes from the identity provider"},
		[]string{"outcome"},
	)
)

func MustRegister() {
	prometheus.MustRegister(RequestsTotal, ReqDuration, InFlight, IdentityWrites, MetadataWrites, SessionRefreshes)
}

func Outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// Middleware records the HTTP collectors, labelled by route template.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		InFlight.Inc()
		start := time.Now()
		c.Next()
		InFlight.Dec()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		method := c.Request.Method
		RequestsTotal.WithLabelValues(route, method, strconv.Itoa(c.Writer.Status())).Inc()
		ReqDuration.WithLabelValues(route, method).Observe(time.Since(start).Seconds())
	}
}

func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
