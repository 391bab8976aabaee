// Package metrics defines the Prometheus collectors of query execution and
// geocoding.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Route labels.
const (
	RouteIndex   = "index"
	RouteSources = "sources"
)

// Geocode outcome labels.
const (
	GeocodeHit      = "hit"
	GeocodeResolved = "resolved"
	GeocodeNotFound = "not_found"
	GeocodeError    = "error"
)

// Metrics groups the collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	Queries                *prometheus.CounterVec
	QueryErrors            *prometheus.CounterVec
	QueryDuration          *prometheus.HistogramVec
	CandidatesMaterialized prometheus.Histogram
	GeocodeLookups         *prometheus.CounterVec
	ConversionWarnings     prometheus.Counter
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Queries: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "graphq_queries_total",
				Help: "Total number of executed queries",
			},
			[]string{"route"},
		),
		QueryErrors: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "graphq_query_errors_total",
				Help: "Total number of failed queries by error kind",
			},
			[]string{"kind"},
		),
		QueryDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "graphq_query_duration_seconds",
				Help:    "Query execution latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		),
		CandidatesMaterialized: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "graphq_candidates_materialized",
				Help:    "Number of entities materialized per query",
				Buckets: prometheus.ExponentialBuckets(1, 4, 10),
			},
		),
		GeocodeLookups: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "graphq_geocode_lookups_total",
				Help: "Total number of geocoding lookups by outcome",
			},
			[]string{"outcome"},
		),
		ConversionWarnings: f.NewCounter(
			prometheus.CounterOpts{
				Name: "graphq_value_conversion_warnings_total",
				Help: "Total number of search values that could not be converted to their key's kind",
			},
		),
	}
}

var (
	defaultOnce sync.Once
	defaultSet  *Metrics
)

// Default returns the collectors registered with the default registry.
func Default() *Metrics {
	defaultOnce.Do(func() {
		defaultSet = New(prometheus.DefaultRegisterer)
	})
	return defaultSet
}

// Query records one finished query.
func (m *Metrics) Query(route string, seconds float64, materialized int) {
	if m == nil {
		return
	}
	m.Queries.WithLabelValues(route).Inc()
	m.QueryDuration.WithLabelValues(route).Observe(seconds)
	m.CandidatesMaterialized.Observe(float64(materialized))
}

// QueryError records a failed query.
func (m *Metrics) QueryError(kind string) {
	if m == nil {
		return
	}
	m.QueryErrors.WithLabelValues(kind).Inc()
}

// Geocode records a geocoding lookup.
func (m *Metrics) Geocode(outcome string) {
	if m == nil {
		return
	}
	m.GeocodeLookups.WithLabelValues(outcome).Inc()
}

// ConversionWarning records n value conversion warnings.
func (m *Metrics) ConversionWarning(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.ConversionWarnings.Add(float64(n))
}
