package scenario

import (
	"context"
	"errors"
	"time"

	"github.com/dd0wney/cluso-netimpact/pkg/metrics"
)

// Instrumented records operation counts and latency for a backend.
type Instrumented struct {
	Store
	backend string
	metrics *metrics.Registry
}

// Instrument wraps store so every call is recorded under backend.
func Instrument(store Store, backend string, m *metrics.Registry) *Instrumented {
	return &Instrumented{Store: store, backend: backend, metrics: m}
}

func (s *Instrumented) record(op string, start time.Time, err error) {
	// A missing record is an answer, not a backend failure.
	if errors.Is(err, ErrNotFound) {
		err = nil
	}
	s.metrics.RecordScenarioOperation(s.backend, op, err, time.Since(start))
}

func (s *Instrumented) Put(ctx context.Context, rec *Record) error {
	start := time.Now()
	err := s.Store.Put(ctx, rec)
	s.record("put", start, err)
	return err
}

func (s *Instrumented) Get(ctx context.Context, id string) (*Record, error) {
	start := time.Now()
	rec, err := s.Store.Get(ctx, id)
	s.record("get", start, err)
	return rec, err
}

func (s *Instrumented) List(ctx context.Context, kind Kind) ([]Record, error) {
	start := time.Now()
	recs, err := s.Store.List(ctx, kind)
	s.record("list", start, err)
	return recs, err
}

func (s *Instrumented) Delete(ctx context.Context, id string) error {
	start := time.Now()
	err := s.Store.Delete(ctx, id)
	s.record("delete", start, err)
	return err
}
