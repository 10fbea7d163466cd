// Package metrics exposes Prometheus collectors for HTTP traffic and the
// onboarding wizard.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Config names the metric namespace
type Config struct {
	ServiceName string
	Namespace   string
	Subsystem   string
}

// Metrics owns a registry plus the HTTP and onboarding collectors
type Metrics struct {
	registry *prometheus.Registry
	cfg      Config

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	SessionsStarted    prometheus.Counter
	StepsCompleted     *prometheus.CounterVec
	StepValidationFail *prometheus.CounterVec
	StepsSkipped       *prometheus.CounterVec
	Submissions        *prometheus.CounterVec
	ActiveSessions     prometheus.Gauge
	ParkingLookups     *prometheus.CounterVec
}

// New creates and registers all collectors on a private registry
func New(cfg Config) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	constLabels := prometheus.Labels{"service": cfg.ServiceName}
	opts := func(name, help string) prometheus.Opts {
		return prometheus.Opts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        name,
			Help:        help,
			ConstLabels: constLabels,
		}
	}

	m := &Metrics{registry: reg, cfg: cfg}

	m.httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts(opts("http_requests_total", "Total HTTP requests")),
		[]string{"method", "path", "status"})
	m.httpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   cfg.Namespace,
		Subsystem:   cfg.Subsystem,
		Name:        "http_request_duration_seconds",
		Help:        "HTTP request latency",
		ConstLabels: constLabels,
		Buckets:     prometheus.DefBuckets,
	}, []string{"method", "path"})

	m.SessionsStarted = prometheus.NewCounter(prometheus.CounterOpts(opts("onboarding_sessions_started_total", "Onboarding sessions started")))
	m.StepsCompleted = prometheus.NewCounterVec(prometheus.CounterOpts(opts("onboarding_steps_completed_total", "Wizard steps completed")), []string{"step"})
	m.StepValidationFail = prometheus.NewCounterVec(prometheus.CounterOpts(opts("onboarding_step_validation_failures_total", "Wizard step validation failures")), []string{"step"})
	m.StepsSkipped = prometheus.NewCounterVec(prometheus.CounterOpts(opts("onboarding_steps_skipped_total", "Wizard steps skipped")), []string{"step"})
	m.Submissions = prometheus.NewCounterVec(prometheus.CounterOpts(opts("onboarding_submissions_total", "Create-tenant submissions by outcome")), []string{"status"})
	m.ActiveSessions = prometheus.NewGauge(prometheus.GaugeOpts(opts("onboarding_active_sessions", "Sessions currently held in the session store")))
	m.ParkingLookups = prometheus.NewCounterVec(prometheus.CounterOpts(opts("parking_lookups_total", "Available parking spot lookups by outcome")), []string{"outcome"})

	reg.MustRegister(
		m.httpRequests,
		m.httpDuration,
		m.SessionsStarted,
		m.StepsCompleted,
		m.StepValidationFail,
		m.StepsSkipped,
		m.Submissions,
		m.ActiveSessions,
		m.ParkingLookups,
	)
	return m
}

// RegisterCounter registers an extra labelled counter
func (m *Metrics) RegisterCounter(name, help string, labels []string) *prometheus.CounterVec {
	c := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.cfg.Namespace,
		Subsystem: m.cfg.Subsystem,
		Name:      name,
		Help:      help,
	}, labels)
	m.registry.MustRegister(c)
	return c
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry for scraping
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware records request counts and latency by route template
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		m.httpRequests.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		m.httpDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}
