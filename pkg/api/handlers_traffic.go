package api

import (
	"net/http"

	"github.com/dd0wney/cluso-netimpact/pkg/traffic"
)

// matrix returns the explicit matrix of the request or generates one.
func (req *TrafficRequest) matrix() (*traffic.Matrix, error) {
	if req.Matrix != nil {
		return req.Matrix, nil
	}
	model := req.Model
	if model == "" {
		model = traffic.Uniform
	}
	return traffic.GenerateMatrix(&req.Topology, model, req.MatrixOptions)
}

func (s *Server) handleUtilization(w http.ResponseWriter, r *http.Request) {
	var req TrafficRequest
	if s.NewRequestDecoder(w, r).DecodeJSON(&req).Validate(&req).Topology(&req.Topology).RespondError() {
		return
	}

	matrix, err := req.matrix()
	if err != nil {
		s.fail(w, r, err, "traffic matrix")
		return
	}
	report, err := traffic.Utilization(&req.Topology, matrix, req.Utilization)
	if err != nil {
		s.fail(w, r, err, "utilization")
		return
	}
	s.respondJSON(w, http.StatusOK, UtilizationResponse{Matrix: matrix, Report: report})
}

// handleOptimize runs the cost optimizer. Constraints come from the request
// body or from a stored constraint set.
func (s *Server) handleOptimize(w http.ResponseWriter, r *http.Request) {
	var req OptimizeRequest
	if s.NewRequestDecoder(w, r).DecodeJSON(&req).Validate(&req).Topology(&req.Topology).RespondError() {
		return
	}

	var cons traffic.Constraints
	switch {
	case req.ConstraintsID != "":
		rec, err := s.scenarios.Get(r.Context(), req.ConstraintsID)
		if err != nil {
			s.fail(w, r, err, "load constraints")
			return
		}
		if cons, err = rec.Constraints(); err != nil {
			s.fail(w, r, err, "load constraints")
			return
		}
	case req.Constraints != nil:
		cons = *req.Constraints
	}

	matrix, err := req.matrix()
	if err != nil {
		s.fail(w, r, err, "traffic matrix")
		return
	}

	ctx, cancel := s.analysisContext(r)
	defer cancel()
	res, err := traffic.Optimize(ctx, &req.Topology, matrix, cons, traffic.OptimizeOptions{
		Objective:     req.Objective,
		MaxIterations: req.MaxIterations,
		Utilization:   req.Utilization,
		Logger:        s.logger,
		Metrics:       s.metrics,
	})
	if err != nil {
		s.fail(w, r, err, "optimize")
		return
	}
	s.respondJSON(w, http.StatusOK, res)
}
