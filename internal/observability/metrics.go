// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Fetch metrics
	FetchPagesTotal    *prometheus.CounterVec
	CandlesUpserted    *prometheus.CounterVec
	PostsUpserted      prometheus.Counter
	FetchErrors        *prometheus.CounterVec
	PlanLimitedFetches *prometheus.CounterVec
	FetchDuration      *prometheus.HistogramVec

	// Export metrics
	ExportRunsTotal  *prometheus.CounterVec
	CandlesExported  *prometheus.CounterVec
	EventsAligned    prometheus.Counter
	TruncationAborts *prometheus.CounterVec
	DuplicateHalts   *prometheus.CounterVec
	AnomaliesFlagged *prometheus.CounterVec
	OverridesApplied *prometheus.CounterVec
	ExportDuration   *prometheus.HistogramVec

	// Validation metrics
	CoverageRatio    *prometheus.GaugeVec
	CoverageFailures *prometheus.CounterVec

	// Health metrics
	LastSuccessfulFetch  prometheus.Gauge
	LastSuccessfulExport prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "tweet_price_lab"
	}

	return &Metrics{
		FetchPagesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_pages_total",
			Help:      "Number of upstream pages fetched",
		}, []string{"asset", "timeframe", "source"}),
		CandlesUpserted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "candles_upserted_total",
			Help:      "Number of candles upserted into the canonical store",
		}, []string{"asset", "timeframe"}),
		PostsUpserted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "posts_upserted_total",
			Help:      "Number of posts upserted into the canonical store",
		}),
		FetchErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_errors_total",
			Help:      "Number of fetch errors by source",
		}, []string{"source"}),
		PlanLimitedFetches: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "plan_limited_fetches_total",
			Help:      "Number of fetch ranges rejected by the upstream plan tier",
		}, []string{"source"}),
		FetchDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Duration of fetch jobs",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		}, []string{"asset"}),

		ExportRunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "export_runs_total",
			Help:      "Number of export runs by result",
		}, []string{"result"}),
		CandlesExported: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "candles_exported_total",
			Help:      "Number of candles written to artifacts",
		}, []string{"asset", "timeframe"}),
		EventsAligned: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_aligned_total",
			Help:      "Number of aligned events produced",
		}),
		TruncationAborts: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "truncation_aborts_total",
			Help:      "Exports blocked by the truncation guard",
		}, []string{"asset", "timeframe"}),
		DuplicateHalts: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "duplicate_halts_total",
			Help:      "Exports halted by duplicate timestamps surviving deduplication",
		}, []string{"asset", "timeframe"}),
		AnomaliesFlagged: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "anomalies_flagged_total",
			Help:      "Candles flagged for manual review by the 5-sigma check",
		}, []string{"asset", "timeframe"}),
		OverridesApplied: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "overrides_applied_total",
			Help:      "Candles capped, excluded, or range-dropped by override rules at export time",
		}, []string{"asset"}),
		ExportDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "export_duration_seconds",
			Help:      "Duration of export runs",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{"asset"}),

		CoverageRatio: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "coverage_ratio",
			Help:      "Actual/expected candle ratio per asset and timeframe",
		}, []string{"asset", "timeframe"}),
		CoverageFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "coverage_failures_total",
			Help:      "Coverage validations below the 95% threshold",
		}, []string{"asset", "timeframe"}),

		LastSuccessfulFetch: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_successful_fetch_timestamp",
			Help:      "Unix timestamp of the last successful fetch",
		}),
		LastSuccessfulExport: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_successful_export_timestamp",
			Help:      "Unix timestamp of the last successful export",
		}),
	}
}

// Handler returns an HTTP handler exposing the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.Handler()
}
