// Package metrics holds the Prometheus collectors for the telemetry pipeline.
// A nil *Collector is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector groups the pipeline counters and histograms on a private registry.
type Collector struct {
	registry *prometheus.Registry

	assessments    *prometheus.CounterVec
	dispatches     *prometheus.CounterVec
	alertsCreated  *prometheus.CounterVec
	notifyFailures *prometheus.CounterVec
	auditFailures  prometheus.Counter
	duration       *prometheus.HistogramVec
}

// New creates a Collector with its own registry.
func New() *Collector {
	registry := prometheus.NewRegistry()
	f := promauto.With(registry)

	return &Collector{
		registry: registry,
		assessments: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "journeywatch_assessments_total",
				Help: "Risk assessments by level",
			},
			[]string{"level"},
		),
		dispatches: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "journeywatch_dispatches_total",
				Help: "Dispatched actions by outcome (executed, duplicate, failed)",
			},
			[]string{"action", "outcome"},
		),
		alertsCreated: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "journeywatch_alerts_created_total",
				Help: "New alerts by priority",
			},
			[]string{"priority"},
		),
		notifyFailures: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "journeywatch_notify_failures_total",
				Help: "Failed alert notifications by sink",
			},
			[]string{"sink"},
		),
		auditFailures: f.NewCounter(
			prometheus.CounterOpts{
				Name: "journeywatch_audit_failures_total",
				Help: "Journey-level audit writes that failed",
			},
		),
		duration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "journeywatch_pipeline_duration_seconds",
				Help:    "End-to-end pipeline duration",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"path"},
		),
	}
}

// Dispatch outcomes.
const (
	OutcomeExecuted  = "executed"
	OutcomeDuplicate = "duplicate"
	OutcomeFailed    = "failed"
)

func (c *Collector) Assessed(level string) {
	if c == nil {
		return
	}
	c.assessments.WithLabelValues(level).Inc()
}

func (c *Collector) Dispatched(action, outcome string) {
	if c == nil {
		return
	}
	c.dispatches.WithLabelValues(action, outcome).Inc()
}

func (c *Collector) AlertCreated(priority string) {
	if c == nil {
		return
	}
	c.alertsCreated.WithLabelValues(priority).Inc()
}

func (c *Collector) NotifyFailed(sink string) {
	if c == nil {
		return
	}
	c.notifyFailures.WithLabelValues(sink).Inc()
}

func (c *Collector) AuditFailed() {
	if c == nil {
		return
	}
	c.auditFailures.Inc()
}

// ObserveSince records the time elapsed since start under path.
func (c *Collector) ObserveSince(path string, start time.Time) {
	if c == nil {
		return
	}
	c.duration.WithLabelValues(path).Observe(time.Since(start).Seconds())
}

// Registry exposes the underlying registry, e.g. for tests.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
