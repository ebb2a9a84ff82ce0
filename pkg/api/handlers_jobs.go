package api

import (
	"net/http"

	"github.com/dd0wney/cluso-netimpact/pkg/jobs"
)

func (s *Server) jobOptions() jobs.AnalysisOptions {
	return jobs.AnalysisOptions{
		BatchSize: s.cfg.Analysis.BatchSize,
		Pool:      s.pool,
		Logger:    s.logger,
		Metrics:   s.metrics,
		Risk:      s.cfg.Risk,
	}
}

// handleSubmitImpact queues an assessment. A resubmitted identical request
// returns the existing job.
func (s *Server) handleSubmitImpact(w http.ResponseWriter, r *http.Request) {
	var req ImpactRequest
	if s.NewRequestDecoder(w, r).DecodeJSON(&req).Validate(&req).RespondError() {
		return
	}

	job, err := s.jobs.SubmitImpact(&req.Topology, req.Changes, s.jobOptions())
	if err != nil {
		s.fail(w, r, err, "submit impact job")
		return
	}
	s.respondJSON(w, http.StatusAccepted, job)
}

func (s *Server) handleSubmitSPOF(w http.ResponseWriter, r *http.Request) {
	var req SPOFRequest
	if s.NewRequestDecoder(w, r).DecodeJSON(&req).Validate(&req).RespondError() {
		return
	}

	job, err := s.jobs.SubmitSPOF(&req.Topology, s.maxSPOFResults(req.MaxResults), s.jobOptions())
	if err != nil {
		s.fail(w, r, err, "submit spof job")
		return
	}
	s.respondJSON(w, http.StatusAccepted, job)
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	list := s.jobs.List()
	// Results can be large; the listing only carries status.
	for i := range list {
		list[i].Result = nil
	}
	s.respondJSON(w, http.StatusOK, map[string]any{
		"jobs":  list,
		"count": len(list),
	})
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.jobs.Get(r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err, "get job")
		return
	}
	s.respondJSON(w, http.StatusOK, job)
}

// handleCancelJob cancels a queued or running job. Cancelling a finished
// job is a no-op that returns its final state.
func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.jobs.Cancel(r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err, "cancel job")
		return
	}
	s.respondJSON(w, http.StatusOK, job)
}
