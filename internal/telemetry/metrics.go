// Package telemetry records search and provider metrics. Prometheus
// collectors back the serve command's /metrics endpoint; a QueryLog keeps
// recent query patterns in memory. All data stays local.
package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Status label values.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Metrics holds the Prometheus collectors for hoopla. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	SearchesTotal      *prometheus.CounterVec
	SearchLatency      *prometheus.HistogramVec
	SearchResultsCount *prometheus.HistogramVec
	ProviderCallsTotal *prometheus.CounterVec
	ProviderLatency    *prometheus.HistogramVec

	queries *QueryLog
}

// NewMetrics creates the collectors and registers them with reg. A nil reg
// registers with the default registry.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		SearchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "hoopla",
				Name:      "searches_total",
				Help:      "Total searches by strategy and status.",
			},
			[]string{"strategy", "status"},
		),
		SearchLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "hoopla",
				Name:      "search_latency_seconds",
				Help:      "Search latency in seconds.",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"strategy"},
		),
		SearchResultsCount: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "hoopla",
				Name:      "search_results_count",
				Help:      "Number of results returned per search.",
				Buckets:   []float64{0, 1, 5, 10, 25, 50, 100},
			},
			[]string{"strategy"},
		),
		ProviderCallsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "hoopla",
				Name:      "provider_calls_total",
				Help:      "External model calls by provider, operation and status.",
			},
			[]string{"provider", "operation", "status"},
		),
		ProviderLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "hoopla",
				Name:      "provider_latency_seconds",
				Help:      "External model call latency in seconds.",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"provider", "operation"},
		),
		queries: NewQueryLog(DefaultQueryLogConfig()),
	}

	for _, c := range []prometheus.Collector{
		m.SearchesTotal,
		m.SearchLatency,
		m.SearchResultsCount,
		m.ProviderCallsTotal,
		m.ProviderLatency,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// ObserveQuery records one engine call including its query text.
func (m *Metrics) ObserveQuery(event QueryEvent) {
	if m == nil {
		return
	}
	m.SearchesTotal.WithLabelValues(event.Strategy, status(event.Failed)).Inc()
	m.SearchLatency.WithLabelValues(event.Strategy).Observe(event.Latency.Seconds())
	if !event.Failed {
		m.SearchResultsCount.WithLabelValues(event.Strategy).Observe(float64(event.ResultCount))
	}
	if event.Query != "" {
		m.queries.Record(event)
	}
}

// ObserveProvider records one external model call.
func (m *Metrics) ObserveProvider(provider, operation string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.ProviderCallsTotal.WithLabelValues(provider, operation, status(err != nil)).Inc()
	m.ProviderLatency.WithLabelValues(provider, operation).Observe(d.Seconds())
}

// Queries returns the in-memory query log. Nil for a nil *Metrics.
func (m *Metrics) Queries() *QueryLog {
	if m == nil {
		return nil
	}
	return m.queries
}

// Handler returns the scrape handler for g. A nil g serves the default
// gatherer.
func Handler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

func status(failed bool) string {
	if failed {
		return StatusError
	}
	return StatusOK
}
