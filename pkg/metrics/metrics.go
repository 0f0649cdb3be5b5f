// Package metrics defines the Prometheus collectors of the search display
// service and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors of the service.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	ScrollDecisions      *prometheus.CounterVec
	PageFetchesTotal     *prometheus.CounterVec
	PageFetchLatency     prometheus.Histogram
	SearchExecutions     *prometheus.CounterVec
	SearchRetries        prometheus.Counter
	CacheHitsTotal       prometheus.Counter
	CacheMissesTotal     prometheus.Counter
	HighlightPasses      *prometheus.CounterVec
	HighlightMarks       prometheus.Histogram
	ActiveViews          prometheus.Gauge
	ZeroResultViews      prometheus.Counter
	CircuitBreakerState  *prometheus.GaugeVec
}

// New creates the collectors and registers them with the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates the collectors and registers them with reg.
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		ScrollDecisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "display_scroll_decisions_total",
				Help: "Scroll signals by paging decision (fetch, busy, not_near, exhausted, disabled).",
			},
			[]string{"decision"},
		),
		PageFetchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "display_page_fetches_total",
				Help: "Appended page fetches by outcome (delivered, failed).",
			},
			[]string{"status"},
		),
		PageFetchLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "display_page_fetch_seconds",
				Help:    "Time from page request to page delivery.",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
		),
		SearchExecutions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "search_executions_total",
				Help: "Search backend calls by result type (hit, zero_result, error).",
			},
			[]string{"result_type"},
		),
		SearchRetries: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "search_retries_total",
				Help: "Search backend calls repeated after a transport failure.",
			},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "page_cache_hits_total",
				Help: "Total number of result-page cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "page_cache_misses_total",
				Help: "Total number of result-page cache misses.",
			},
		),
		HighlightPasses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "display_highlight_passes_total",
				Help: "Highlight passes by mode (terms, strongs, none).",
			},
			[]string{"mode"},
		),
		HighlightMarks: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "display_highlight_marks",
				Help:    "Number of marks applied per highlight pass.",
				Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 250, 500},
			},
		),
		ActiveViews: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "display_active_views",
				Help: "Number of search views currently open.",
			},
		),
		ZeroResultViews: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "display_zero_result_renders_total",
				Help: "Renders that showed the no-results message.",
			},
		),
		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=open, 2=half-open).",
			},
			[]string{"name"},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.ScrollDecisions,
		m.PageFetchesTotal,
		m.PageFetchLatency,
		m.SearchExecutions,
		m.SearchRetries,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.HighlightPasses,
		m.HighlightMarks,
		m.ActiveViews,
		m.ZeroResultViews,
		m.CircuitBreakerState,
	)

	return m
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
