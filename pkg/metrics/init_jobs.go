package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initJobMetrics() {
	r.JobsSubmittedTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "netimpact_jobs_submitted_total",
			Help: "Total number of asynchronous jobs submitted",
		},
		[]string{"kind"},
	)

	r.JobsRunning = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "netimpact_jobs_running",
			Help: "Current number of running jobs",
		},
	)

	r.JobsFinishedTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "netimpact_jobs_finished_total",
			Help: "Total number of finished jobs by final state",
		},
		[]string{"kind", "state"},
	)
}

func (r *Registry) initScenarioMetrics() {
	r.ScenarioOperationsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "netimpact_scenario_operations_total",
			Help: "Total number of scenario store operations",
		},
		[]string{"backend", "operation", "status"},
	)

	r.ScenarioOperationDuration = promauto.With(r.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "netimpact_scenario_operation_duration_seconds",
			Help:    "Scenario store operation duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
		},
		[]string{"backend", "operation"},
	)
}
