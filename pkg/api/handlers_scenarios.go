package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/dd0wney/cluso-netimpact/pkg/scenario"
	"github.com/dd0wney/cluso-netimpact/pkg/topology"
)

// newRecord builds the record a create request describes.
func (req *ScenarioRequest) newRecord() (*scenario.Record, error) {
	switch req.Kind {
	case scenario.KindConstraints:
		if req.Constraints == nil {
			return nil, fmt.Errorf("%w: constraints are required", topology.ErrInvalidInput)
		}
		rec, err := scenario.NewConstraintsRecord(req.Name, *req.Constraints)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", topology.ErrInvalidInput, err)
		}
		return rec, nil
	default:
		if req.Topology == nil {
			return nil, fmt.Errorf("%w: topology is required", topology.ErrInvalidInput)
		}
		return scenario.NewScenarioRecord(req.Name, &scenario.Scenario{
			Description: req.Description,
			Topology:    *req.Topology,
			Changes:     req.Changes,
		})
	}
}

// scenarioResponse decodes the payload of a full record.
func scenarioResponse(rec *scenario.Record) (ScenarioResponse, error) {
	resp := ScenarioResponse{Record: *rec}
	switch rec.Kind {
	case scenario.KindScenario:
		sc, err := rec.Scenario()
		if err != nil {
			return resp, err
		}
		resp.Scenario = sc
	case scenario.KindConstraints:
		c, err := rec.Constraints()
		if err != nil {
			return resp, err
		}
		resp.Constraints = &c
	}
	return resp, nil
}

func (s *Server) handleListScenarios(w http.ResponseWriter, r *http.Request) {
	kind := scenario.Kind(r.URL.Query().Get("kind"))
	if kind != "" && !kind.Valid() {
		s.respondError(w, r, http.StatusBadRequest, fmt.Sprintf("unknown kind %q", kind))
		return
	}
	recs, err := s.scenarios.List(r.Context(), kind)
	if err != nil {
		s.fail(w, r, err, "list scenarios")
		return
	}
	s.respondJSON(w, http.StatusOK, ScenarioListResponse{Scenarios: recs, Count: len(recs)})
}

func (s *Server) handleCreateScenario(w http.ResponseWriter, r *http.Request) {
	var req ScenarioRequest
	if s.NewRequestDecoder(w, r).DecodeJSON(&req).Validate(&req).RespondError() {
		return
	}

	rec, err := req.newRecord()
	if err != nil {
		s.fail(w, r, err, "create scenario")
		return
	}
	if err := s.scenarios.Put(r.Context(), rec); err != nil {
		s.fail(w, r, err, "create scenario")
		return
	}
	resp, err := scenarioResponse(rec)
	if err != nil {
		s.fail(w, r, err, "create scenario")
		return
	}
	s.respondJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleGetScenario(w http.ResponseWriter, r *http.Request) {
	rec, err := s.scenarios.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err, "get scenario")
		return
	}
	resp, err := scenarioResponse(rec)
	if err != nil {
		s.fail(w, r, err, "get scenario")
		return
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDeleteScenario(w http.ResponseWriter, r *http.Request) {
	if err := s.scenarios.Delete(r.Context(), r.PathValue("id")); err != nil {
		s.fail(w, r, err, "delete scenario")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleScenarioImpact assesses a stored scenario's change set.
func (s *Server) handleScenarioImpact(w http.ResponseWriter, r *http.Request) {
	rec, err := s.scenarios.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err, "load scenario")
		return
	}
	sc, err := rec.Scenario()
	if err != nil {
		if errors.Is(err, scenario.ErrInvalidRecord) {
			s.respondError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		s.fail(w, r, err, "load scenario")
		return
	}
	s.assess(w, r, &sc.Topology, sc.Changes)
}
