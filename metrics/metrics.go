// Package metrics bundles the Prometheus collectors shared by the client and the query controllers.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	Registry         *prometheus.Registry
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RetriesTotal     prometheus.Counter
	AttemptsTotal    *prometheus.CounterVec
	SupersededTotal  *prometheus.CounterVec
	ErrorsTotal      *prometheus.CounterVec
	CacheLookupTotal *prometheus.CounterVec
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "openlibrary_requests_total",
			Help: "Total HTTP requests issued to Open Library by endpoint and outcome.",
		},
		[]string{"endpoint", "outcome"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "openlibrary_request_duration_seconds",
			Help:    "HTTP request latency for Open Library requests.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)
	retries := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "openlibrary_retries_total",
			Help: "Total number of retry attempts scheduled.",
		},
	)
	attempts := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "books_query_attempts_total",
			Help: "Fetch attempts started by query controllers.",
		},
		[]string{"controller", "mode"},
	)
	superseded := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "books_query_superseded_total",
			Help: "Attempts whose result was discarded because a newer attempt started or the controller closed.",
		},
		[]string{"controller"},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "books_query_errors_total",
			Help: "Classified errors stored by query controllers.",
		},
		[]string{"controller", "kind"},
	)
	cacheLookups := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "books_cache_lookups_total",
			Help: "Session cache lookups by cache and result.",
		},
		[]string{"cache", "result"},
	)

	registry.MustRegister(requests, requestDuration, retries, attempts, superseded, errorsTotal, cacheLookups)

	return &Metrics{
		Registry:         registry,
		RequestsTotal:    requests,
		RequestDuration:  requestDuration,
		RetriesTotal:     retries,
		AttemptsTotal:    attempts,
		SupersededTotal:  superseded,
		ErrorsTotal:      errorsTotal,
		CacheLookupTotal: cacheLookups,
	}
}

// IncRequest counts a finished request.
func (m *Metrics) IncRequest(endpoint, outcome string) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(endpoint, outcome).Inc()
}

// ObserveDuration records an HTTP request duration.
func (m *Metrics) ObserveDuration(endpoint string, d time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.WithLabelValues(endpoint).Observe(d.Seconds())
}

// IncRetries increments the retries counter.
func (m *Metrics) IncRetries() {
	if m == nil {
		return
	}
	m.RetriesTotal.Inc()
}

// IncAttempt counts a started controller attempt.
func (m *Metrics) IncAttempt(controller, mode string) {
	if m == nil {
		return
	}
	m.AttemptsTotal.WithLabelValues(controller, mode).Inc()
}

// IncSuperseded counts a discarded attempt result.
func (m *Metrics) IncSuperseded(controller string) {
	if m == nil {
		return
	}
	m.SupersededTotal.WithLabelValues(controller).Inc()
}

// IncError counts a stored error by kind label.
func (m *Metrics) IncError(controller, kind string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(controller, kind).Inc()
}

// IncCacheLookup counts a cache hit or miss.
func (m *Metrics) IncCacheLookup(cache string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookupTotal.WithLabelValues(cache, result).Inc()
}
