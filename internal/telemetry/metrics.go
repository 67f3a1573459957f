package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the pricewatch collector.
type Metrics struct {
	RunTotal            *prometheus.CounterVec
	RunDurationSeconds  prometheus.Histogram
	ModelsDiscovered    prometheus.Gauge
	NewModelsTotal      prometheus.Counter
	SnapshotsTotal      *prometheus.CounterVec
	ResolveFailTotal    *prometheus.CounterVec
	ValidationFailTotal prometheus.Counter
	PriceAlertTotal     prometheus.Counter
	StagedModels        prometheus.Gauge
	SearchRequestTotal  *prometheus.CounterVec
	VerificationsTotal  *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		RunTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "pricewatch_run_total",
			Help: "Total collection runs, by outcome.",
		}, []string{"status"}),

		RunDurationSeconds: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "pricewatch_run_duration_seconds",
			Help:    "Wall-clock duration of a full collection run.",
			Buckets: []float64{10, 30, 60, 120, 300, 600, 1200, 3600},
		}),

		ModelsDiscovered: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "pricewatch_models_discovered",
			Help: "Models returned by the catalog listing in the last run.",
		}),

		NewModelsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "pricewatch_new_models_total",
			Help: "Models seen for the first time.",
		}),

		SnapshotsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "pricewatch_snapshots_total",
			Help: "Pricing snapshots written, by source.",
		}, []string{"source"}),

		ResolveFailTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "pricewatch_resolve_failures_total",
			Help: "Resolver failures, by provider.",
		}, []string{"provider"}),

		ValidationFailTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "pricewatch_validation_failures_total",
			Help: "Observations discarded by the bounds validator.",
		}),

		PriceAlertTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "pricewatch_price_alerts_total",
			Help: "Price changes exceeding the alert threshold.",
		}),

		StagedModels: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "pricewatch_staged_models",
			Help: "Models staged for the downstream catalog in the last run.",
		}),

		SearchRequestTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "pricewatch_search_requests_total",
			Help: "Web search requests, by outcome.",
		}, []string{"status"}),

		VerificationsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "pricewatch_verifications_total",
			Help: "Usage spot checks, by result.",
		}, []string{"result"}),
	}
}
