package api

import (
	"net/http"

	"github.com/dd0wney/cluso-netimpact/pkg/impact"
	"github.com/dd0wney/cluso-netimpact/pkg/risk"
	"github.com/dd0wney/cluso-netimpact/pkg/spof"
	"github.com/dd0wney/cluso-netimpact/pkg/topology"
)

// handleSPOF runs a synchronous scan bounded by the analysis timeout. A scan
// that runs out of time returns the partial report flagged incomplete.
func (s *Server) handleSPOF(w http.ResponseWriter, r *http.Request) {
	var req SPOFRequest
	if s.NewRequestDecoder(w, r).DecodeJSON(&req).Validate(&req).Topology(&req.Topology).RespondError() {
		return
	}

	ctx, cancel := s.analysisContext(r)
	defer cancel()
	report, err := spof.Detect(ctx, &req.Topology, spof.Options{
		MaxResults: s.maxSPOFResults(req.MaxResults),
		BatchSize:  s.cfg.Analysis.BatchSize,
		Pool:       s.pool,
		Logger:     s.logger,
		Metrics:    s.metrics,
	})
	if err != nil {
		s.fail(w, r, err, "spof detection")
		return
	}
	s.respondJSON(w, http.StatusOK, report)
}

// handleImpact simulates the change set and returns the full assessment.
func (s *Server) handleImpact(w http.ResponseWriter, r *http.Request) {
	var req ImpactRequest
	if s.NewRequestDecoder(w, r).
		DecodeJSON(&req).
		Validate(&req).
		Topology(&req.Topology).
		Changes(&req.Topology, req.Changes).
		RespondError() {
		return
	}
	s.assess(w, r, &req.Topology, req.Changes)
}

func (s *Server) assess(w http.ResponseWriter, r *http.Request, snap *topology.Snapshot, changes []topology.Change) {
	ctx, cancel := s.analysisContext(r)
	defer cancel()
	assessment, err := risk.Assess(ctx, snap, changes, impact.Options{
		BatchSize: s.cfg.Analysis.BatchSize,
		Pool:      s.pool,
		Logger:    s.logger,
		Metrics:   s.metrics,
	}, s.cfg.Risk)
	if err != nil {
		s.fail(w, r, err, "impact analysis")
		return
	}
	s.respondJSON(w, http.StatusOK, assessment)
}

func (s *Server) maxSPOFResults(requested int) int {
	if requested == 0 {
		return s.cfg.Analysis.MaxSPOFResults
	}
	return requested
}
