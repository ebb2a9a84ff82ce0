package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initAnalysisMetrics() {
	r.AnalysesTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "netimpact_analyses_total",
			Help: "Total number of analysis runs",
		},
		[]string{"analysis", "status"},
	)

	r.AnalysisDuration = promauto.With(r.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "netimpact_analysis_duration_seconds",
			Help:    "Analysis run duration in seconds",
			Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0, 30.0},
		},
		[]string{"analysis"},
	)

	r.AnalysisPairs = promauto.With(r.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "netimpact_analysis_pairs",
			Help:    "Number of node pairs or elements evaluated per run",
			Buckets: []float64{10, 100, 1000, 10000, 100000, 1000000},
		},
		[]string{"analysis"},
	)

	r.AnalysesCancelled = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "netimpact_analyses_cancelled_total",
			Help: "Analysis runs that returned an incomplete result",
		},
		[]string{"analysis"},
	)

	r.SPFRunsTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "netimpact_spf_runs_total",
			Help: "Total number of single-source SPF computations",
		},
	)

	r.SPOFsDetected = promauto.With(r.registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "netimpact_spofs_detected",
			Help: "Single points of failure found by the last scan, by severity",
		},
		[]string{"severity"},
	)

	r.RiskScore = promauto.With(r.registry).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "netimpact_risk_score",
			Help:    "Blast radius scores produced",
			Buckets: []float64{20, 40, 70, 100},
		},
	)

	r.ImpactedFlows = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "netimpact_impacted_flows_total",
			Help: "Impact results by classification",
		},
		[]string{"type"},
	)
}
