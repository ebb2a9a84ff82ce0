package api

import (
	"net/http"

	"github.com/dd0wney/cluso-netimpact/pkg/connectivity"
	"github.com/dd0wney/cluso-netimpact/pkg/spf"
)

// handleShortestPath answers a point query. An unreachable destination is
// a successful answer with a null path.
func (s *Server) handleShortestPath(w http.ResponseWriter, r *http.Request) {
	var req PathRequest
	if s.NewRequestDecoder(w, r).DecodeJSON(&req).Validate(&req).Topology(&req.Topology).RespondError() {
		return
	}

	var opts []spf.Option
	if req.Waves {
		opts = append(opts, spf.WithWaves())
	}
	res, err := spf.ShortestPath(&req.Topology, req.Source, req.Destination, opts...)
	if err != nil {
		s.fail(w, r, err, "shortest path")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{
		"reachable": res != nil,
		"result":    res,
	})
}

func (s *Server) handleECMPPaths(w http.ResponseWriter, r *http.Request) {
	var req PathRequest
	if s.NewRequestDecoder(w, r).DecodeJSON(&req).Validate(&req).Topology(&req.Topology).RespondError() {
		return
	}

	maxPaths := req.MaxPaths
	if maxPaths == 0 {
		maxPaths = s.cfg.Analysis.MaxECMPPaths
	}
	res, err := spf.EnumerateECMP(&req.Topology, req.Source, req.Destination, maxPaths)
	if err != nil {
		s.fail(w, r, err, "ecmp enumeration")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{
		"reachable": res != nil,
		"result":    res,
	})
}

func (s *Server) handleECMPSample(w http.ResponseWriter, r *http.Request) {
	var req ECMPSampleRequest
	if s.NewRequestDecoder(w, r).DecodeJSON(&req).Validate(&req).Topology(&req.Topology).RespondError() {
		return
	}

	maxPairs := req.MaxPairs
	if maxPairs == 0 {
		maxPairs = s.cfg.Analysis.SamplePairs
	}
	maxPaths := req.MaxPaths
	if maxPaths == 0 {
		maxPaths = s.cfg.Analysis.MaxECMPPaths
	}

	ctx, cancel := s.analysisContext(r)
	defer cancel()
	report, err := spf.SampleNetworkECMP(ctx, &req.Topology, spf.SampleOptions{
		MaxPairs:  maxPairs,
		MaxPaths:  maxPaths,
		TopPairs:  req.TopPairs,
		BatchSize: s.cfg.Analysis.BatchSize,
		Pool:      s.pool,
		Logger:    s.logger,
		Metrics:   s.metrics,
	})
	if err != nil {
		s.fail(w, r, err, "ecmp sampling")
		return
	}
	s.respondJSON(w, http.StatusOK, report)
}

func (s *Server) handleConnectivity(w http.ResponseWriter, r *http.Request) {
	var req ConnectivityRequest
	if s.NewRequestDecoder(w, r).DecodeJSON(&req).Validate(&req).Topology(&req.Topology).RespondError() {
		return
	}

	res, err := connectivity.Analyze(&req.Topology, req.ExcludedNodes, req.ExcludedEdges)
	if err != nil {
		s.fail(w, r, err, "connectivity")
		return
	}
	s.respondJSON(w, http.StatusOK, res)
}
