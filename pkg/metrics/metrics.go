package metrics

import (
	"runtime"
	"time"
)

// Every recorder is a no-op on a nil *Registry so analyses can take an
// optional registry.

// RecordHTTPRequest records an HTTP request with its duration
func (r *Registry) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	if r == nil {
		return
	}
	r.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	r.HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// RecordResponseSize records the size of an HTTP response body
func (r *Registry) RecordResponseSize(method, path string, size float64) {
	if r == nil {
		return
	}
	r.HTTPResponseSizeBytes.WithLabelValues(method, path).Observe(size)
}

// IncHTTPRequestsInFlight marks a request as started
func (r *Registry) IncHTTPRequestsInFlight() {
	if r == nil {
		return
	}
	r.HTTPRequestsInFlight.Inc()
}

// DecHTTPRequestsInFlight marks a request as finished
func (r *Registry) DecHTTPRequestsInFlight() {
	if r == nil {
		return
	}
	r.HTTPRequestsInFlight.Dec()
}

// RecordAnalysis records a finished analysis run. Incomplete runs are
// counted under status "cancelled".
func (r *Registry) RecordAnalysis(analysis string, duration time.Duration, pairs int, incomplete bool) {
	if r == nil {
		return
	}
	status := "complete"
	if incomplete {
		status = "cancelled"
		r.AnalysesCancelled.WithLabelValues(analysis).Inc()
	}
	r.AnalysesTotal.WithLabelValues(analysis, status).Inc()
	r.AnalysisDuration.WithLabelValues(analysis).Observe(duration.Seconds())
	r.AnalysisPairs.WithLabelValues(analysis).Observe(float64(pairs))
}

// RecordAnalysisError records an analysis rejected for invalid input
func (r *Registry) RecordAnalysisError(analysis string) {
	if r == nil {
		return
	}
	r.AnalysesTotal.WithLabelValues(analysis, "error").Inc()
}

// AddSPFRuns counts single-source SPF computations
func (r *Registry) AddSPFRuns(n int) {
	if r == nil || n <= 0 {
		return
	}
	r.SPFRunsTotal.Add(float64(n))
}

// SetSPOFCounts replaces the per-severity SPOF gauges
func (r *Registry) SetSPOFCounts(counts map[string]int) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.SPOFsDetected.Reset()
	for severity, n := range counts {
		r.SPOFsDetected.WithLabelValues(severity).Set(float64(n))
	}
}

// ObserveRiskScore records a blast radius score
func (r *Registry) ObserveRiskScore(score int) {
	if r == nil {
		return
	}
	r.RiskScore.Observe(float64(score))
}

// AddImpactedFlows counts impact results by classification
func (r *Registry) AddImpactedFlows(counts map[string]int) {
	if r == nil {
		return
	}
	for kind, n := range counts {
		r.ImpactedFlows.WithLabelValues(kind).Add(float64(n))
	}
}

// JobStarted records a job submission
func (r *Registry) JobStarted(kind string) {
	if r == nil {
		return
	}
	r.JobsSubmittedTotal.WithLabelValues(kind).Inc()
	r.JobsRunning.Inc()
}

// JobFinished records a job reaching a final state
func (r *Registry) JobFinished(kind, state string) {
	if r == nil {
		return
	}
	r.JobsRunning.Dec()
	r.JobsFinishedTotal.WithLabelValues(kind, state).Inc()
}

// RecordScenarioOperation records a scenario store call
func (r *Registry) RecordScenarioOperation(backend, operation string, err error, duration time.Duration) {
	if r == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	r.ScenarioOperationsTotal.WithLabelValues(backend, operation, status).Inc()
	r.ScenarioOperationDuration.WithLabelValues(backend, operation).Observe(duration.Seconds())
}

// UpdateSystemMetrics refreshes process gauges
func (r *Registry) UpdateSystemMetrics(started time.Time) {
	if r == nil {
		return
	}
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	r.UptimeSeconds.Set(time.Since(started).Seconds())
	r.GoRoutines.Set(float64(runtime.NumGoroutine()))
	r.MemoryAllocBytes.Set(float64(m.Alloc))
	r.MemorySysBytes.Set(float64(m.Sys))
}
