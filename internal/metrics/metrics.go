// Package metrics provides Prometheus metric collection for the portal.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is the metric collection interface used by handlers and middleware
type Recorder interface {
	RecordSessionCreated()
	RecordSessionCreateFailure(reason string)
	RecordValidation(outcome string)
	RecordSessionRevoked()
	RecordClearFailure()
	RecordRequest(method, path string, status int, duration time.Duration)
}

// Collector implements Recorder on Prometheus
type Collector struct {
	sessionsCreated  prometheus.Counter
	createFailures   *prometheus.CounterVec
	validations      *prometheus.CounterVec
	sessionsRevoked  prometheus.Counter
	clearFailures    prometheus.Counter
	requestDurations *prometheus.HistogramVec
}

var _ Recorder = (*Collector)(nil)

// NewCollector creates a Collector and registers its metrics with reg
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		sessionsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bndy_portal_sessions_created_total",
			Help: "Session cookies minted",
		}),
		createFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bndy_portal_session_create_failures_total",
			Help: "Session creation failures by reason",
		}, []string{"reason"}),
		validations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bndy_portal_session_validations_total",
			Help: "Session cookie validations by outcome",
		}, []string{"outcome"}),
		sessionsRevoked: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bndy_portal_sessions_revoked_total",
			Help: "Sessions revoked on sign-out",
		}),
		clearFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bndy_portal_session_clear_failures_total",
			Help: "Swallowed failures while clearing sessions",
		}),
		requestDurations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "bndy_portal_request_duration_seconds",
			Help:    "HTTP request duration by method, path, and status",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
	}

	reg.MustRegister(
		c.sessionsCreated,
		c.createFailures,
		c.validations,
		c.sessionsRevoked,
		c.clearFailures,
		c.requestDurations,
	)

	return c
}

func (c *Collector) RecordSessionCreated() {
	c.sessionsCreated.Inc()
}

func (c *Collector) RecordSessionCreateFailure(reason string) {
	c.createFailures.WithLabelValues(reason).Inc()
}

func (c *Collector) RecordValidation(outcome string) {
	c.validations.WithLabelValues(outcome).Inc()
}

func (c *Collector) RecordSessionRevoked() {
	c.sessionsRevoked.Inc()
}

func (c *Collector) RecordClearFailure() {
	c.clearFailures.Inc()
}

func (c *Collector) RecordRequest(method, path string, status int, duration time.Duration) {
	c.requestDurations.WithLabelValues(method, path, strconv.Itoa(status)).Observe(duration.Seconds())
}

// Handler returns the Prometheus scrape handler
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
