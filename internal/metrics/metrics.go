// Package metrics exposes Prometheus counters and histograms for
// orchestrator calls, grounded on
// benediktbwimmer-duckmesh's internal/observability/metrics.go — the same
// NewCounterVec/NewHistogramVec-plus-init-registration pattern, applied to
// orchestrator call outcomes instead of HTTP routes.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	OrchestratorCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queryforge_orchestrator_calls_total",
			Help: "Total number of orchestrator calls, by backend and outcome.",
		},
		[]string{"backend", "outcome"},
	)

	OrchestratorCallDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "queryforge_orchestrator_call_duration_seconds",
			Help:    "Orchestrator call latency by backend and stage.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"backend", "stage"},
	)

	SlicesTranslatedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queryforge_slices_translated_total",
			Help: "Total number of FilterIR slices translated into backend plans.",
		},
		[]string{"backend"},
	)
)

func init() {
	prometheus.MustRegister(OrchestratorCallsTotal, OrchestratorCallDurationSeconds, SlicesTranslatedTotal)
}
