// Package metrics registers the service's Prometheus metrics against the
// default registry.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// MatchesIngested counts matches accepted by the import pipeline.
	MatchesIngested = promauto.NewCounter(prometheus.CounterOpts{
		Name: "winmix_matches_ingested_total",
		Help: "Total matches accepted by the import pipeline.",
	})

	// IngestWarnings counts data inconsistency warnings raised on import.
	IngestWarnings = promauto.NewCounter(prometheus.CounterOpts{
		Name: "winmix_ingest_warnings_total",
		Help: "Total data inconsistency warnings raised during import.",
	})

	// OccurrencesDetected counts pattern occurrences, per pattern.
	OccurrencesDetected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "winmix_pattern_occurrences_total",
		Help: "Total pattern occurrences detected per pattern.",
	}, []string{"pattern_id"})

	// PredictionsGenerated counts generated predictions by confidence level.
	PredictionsGenerated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "winmix_predictions_generated_total",
		Help: "Total predictions generated per confidence level.",
	}, []string{"confidence_level"})

	// PredictionsBlocked counts predictions blocked by the overconfidence guard.
	PredictionsBlocked = promauto.NewCounter(prometheus.CounterOpts{
		Name: "winmix_predictions_blocked_total",
		Help: "Total predictions blocked by the overconfidence guard.",
	})

	// ReconciledOutcomes counts reconciled predictions by correctness.
	ReconciledOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "winmix_reconciled_outcomes_total",
		Help: "Total reconciled predictions by correctness.",
	}, []string{"correct"})

	// WindowAccuracy exposes the trailing window accuracy percentage.
	WindowAccuracy = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "winmix_window_accuracy_percent",
		Help: "Prediction accuracy over the trailing monitor window.",
	})

	// RetrainSuggestions counts retrain suggestions emitted by the monitor.
	RetrainSuggestions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "winmix_retrain_suggestions_total",
		Help: "Total retrain suggestions emitted by the accuracy monitor.",
	})

	// RequestDuration tracks API request latency per route.
	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "winmix_request_duration_seconds",
		Help:    "Duration of API requests in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
)

// RecordReconciled increments the reconciliation counter.
func RecordReconciled(wasCorrect bool) {
	label := "false"
	if wasCorrect {
		label = "true"
	}
	ReconciledOutcomes.WithLabelValues(label).Inc()
}

// Handler returns the Prometheus scrape handler for the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
