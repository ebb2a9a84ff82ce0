package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/dd0wney/cluso-netimpact/pkg/api/middleware"
	"github.com/dd0wney/cluso-netimpact/pkg/jobs"
	"github.com/dd0wney/cluso-netimpact/pkg/logging"
	"github.com/dd0wney/cluso-netimpact/pkg/scenario"
	"github.com/dd0wney/cluso-netimpact/pkg/topology"
	"github.com/dd0wney/cluso-netimpact/pkg/validation"
)

// statusFor maps an analysis or store error to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, jobs.ErrNotFound), errors.Is(err, scenario.ErrNotFound):
		return http.StatusNotFound
	case topology.IsInputError(err), errors.Is(err, scenario.ErrInvalidRecord):
		return http.StatusBadRequest
	case errors.Is(err, jobs.ErrClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// sanitizeError converts an internal error to a user-safe message.
// Client errors are returned verbatim; server errors are logged and replaced
// with a generic message.
func (s *Server) sanitizeError(r *http.Request, err error, operation string) (int, string) {
	status := statusFor(err)
	if status < http.StatusInternalServerError {
		return status, err.Error()
	}
	s.logger.Error("request failed",
		logging.String("operation", operation),
		logging.String("request_id", middleware.GetRequestID(r)),
		logging.Error(err))
	return status, fmt.Sprintf("%s failed", operation)
}

// fail responds with the sanitized error.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error, operation string) {
	status, msg := s.sanitizeError(r, err, operation)
	s.respondError(w, r, status, msg)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Warn("failed to encode response", logging.Error(err))
	}
}

func (s *Server) respondError(w http.ResponseWriter, r *http.Request, status int, message string) {
	s.respondJSON(w, status, ErrorResponse{
		Error:     http.StatusText(status),
		Message:   message,
		Code:      status,
		RequestID: middleware.GetRequestID(r),
	})
}

// requestDecoder decodes and validates request bodies.
// It provides a fluent interface for common request handling patterns.
type requestDecoder struct {
	r          *http.Request
	w          http.ResponseWriter
	server     *Server
	err        error
	statusCode int
}

// NewRequestDecoder creates a new request decoder for the given request.
func (s *Server) NewRequestDecoder(w http.ResponseWriter, r *http.Request) *requestDecoder {
	return &requestDecoder{
		r:      r,
		w:      w,
		server: s,
	}
}

// DecodeJSON decodes the request body into the provided struct.
// Returns the decoder for chaining. Check HasError() after calling.
func (rd *requestDecoder) DecodeJSON(v any) *requestDecoder {
	if rd.err != nil {
		return rd
	}
	if err := json.NewDecoder(rd.r.Body).Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			rd.fail(http.StatusRequestEntityTooLarge, fmt.Errorf("request body exceeds %d bytes", maxErr.Limit))
			return rd
		}
		rd.fail(http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
	}
	return rd
}

// Validate checks the request's validate tags.
func (rd *requestDecoder) Validate(v any) *requestDecoder {
	if rd.err != nil {
		return rd
	}
	if err := validation.Struct(v); err != nil {
		rd.fail(http.StatusBadRequest, err)
	}
	return rd
}

// Topology checks the snapshot a request carries.
func (rd *requestDecoder) Topology(snap *topology.Snapshot) *requestDecoder {
	if rd.err != nil {
		return rd
	}
	if err := snap.Validate(); err != nil {
		rd.fail(http.StatusBadRequest, err)
	}
	return rd
}

// Changes checks a change set against the snapshot.
func (rd *requestDecoder) Changes(snap *topology.Snapshot, changes []topology.Change) *requestDecoder {
	if rd.err != nil {
		return rd
	}
	if err := snap.ValidateChanges(changes); err != nil {
		rd.fail(http.StatusBadRequest, err)
	}
	return rd
}

func (rd *requestDecoder) fail(status int, err error) {
	rd.err = err
	rd.statusCode = status
}

// HasError returns true if any error occurred during decoding/validation.
func (rd *requestDecoder) HasError() bool {
	return rd.err != nil
}

// Error returns the error if any occurred.
func (rd *requestDecoder) Error() error {
	return rd.err
}

// RespondError sends the error response and returns true if there was an error.
// Returns false if no error occurred.
func (rd *requestDecoder) RespondError() bool {
	if rd.err == nil {
		return false
	}
	rd.server.respondError(rd.w, rd.r, rd.statusCode, rd.err.Error())
	return true
}

// analysisContext bounds a synchronous analysis by the configured timeout.
func (s *Server) analysisContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), s.cfg.Server.AnalysisTimeout)
}
