// Package metrics holds the Prometheus collectors shared by the api and
// worker services.
package metrics

import (
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "meetai"

// Metrics bundles every collector. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	registry *prometheus.Registry

	webhookEvents   *prometheus.CounterVec
	entitlementDeny *prometheus.CounterVec
	jobOutcomes     *prometheus.CounterVec
	downloads       *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
	llmDuration     *prometheus.HistogramVec
}

// New builds a registry carrying the service's collectors plus the Go and
// process collectors.
func New(service string) *Metrics {
	reg := prometheus.NewRegistry()
	constLabels := prometheus.Labels{"service": service}
	m := &Metrics{
		registry: reg,
		webhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "webhook",
			Name:        "events_total",
			Help:        "Video provider webhook deliveries by event type and outcome.",
			ConstLabels: constLabels,
		}, []string{"event", "outcome"}),
		entitlementDeny: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "entitlement",
			Name:        "denials_total",
			Help:        "Requests rejected because the tier limit was reached.",
			ConstLabels: constLabels,
		}, []string{"resource", "tier"}),
		jobOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "jobs",
			Name:        "outcomes_total",
			Help:        "Background job attempts by kind and outcome.",
			ConstLabels: constLabels,
		}, []string{"kind", "outcome"}),
		downloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "downloads",
			Name:        "total",
			Help:        "Artifact download attempts by artifact and HTTP status.",
			ConstLabels: constLabels,
		}, []string{"artifact", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   "http",
			Name:        "request_duration_seconds",
			Help:        "HTTP request latency by route and status class.",
			Buckets:     prometheus.DefBuckets,
			ConstLabels: constLabels,
		}, []string{"route", "code"}),
		llmDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   "llm",
			Name:        "generate_duration_seconds",
			Help:        "LLM generation latency by purpose and outcome.",
			Buckets:     []float64{0.5, 1, 2, 5, 10, 20, 40, 80},
			ConstLabels: constLabels,
		}, []string{"purpose", "outcome"}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.webhookEvents, m.entitlementDeny, m.jobOutcomes,
		m.downloads, m.httpDuration, m.llmDuration,
	)
	return m
}

// RegisterDB exports connection pool statistics for db.
func (m *Metrics) RegisterDB(db *sql.DB, name string) error {
	if m == nil || db == nil {
		return nil
	}
	if err := m.registry.Register(collectors.NewDBStatsCollector(db, name)); err != nil {
		var already prometheus.AlreadyRegisteredError
		if !errors.As(err, &already) {
			return err
		}
	}
	return nil
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) WebhookEvent(event, outcome string) {
	if m == nil {
		return
	}
	m.webhookEvents.WithLabelValues(event, outcome).Inc()
}

func (m *Metrics) EntitlementDenied(resource, tier string) {
	if m == nil {
		return
	}
	m.entitlementDeny.WithLabelValues(resource, tier).Inc()
}

// JobOutcome matches queue.Observer.
func (m *Metrics) JobOutcome(kind, outcome string) {
	if m == nil {
		return
	}
	m.jobOutcomes.WithLabelValues(kind, outcome).Inc()
}

func (m *Metrics) Download(artifact string, status int) {
	if m == nil {
		return
	}
	m.downloads.WithLabelValues(artifact, http.StatusText(status)).Inc()
}

func (m *Metrics) ObserveHTTP(route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpDuration.WithLabelValues(route, statusClass(status)).Observe(d.Seconds())
}

func (m *Metrics) ObserveLLM(purpose string, err error, d time.Duration) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.llmDuration.WithLabelValues(purpose, outcome).Observe(d.Seconds())
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
