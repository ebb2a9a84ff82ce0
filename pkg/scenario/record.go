// Package scenario persists named what-if scenarios and optimizer
// constraint sets. Stores treat payloads as opaque bytes; the helpers in this
// file encode the two payload kinds the service knows about.
package scenario

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang/snappy"
	"github.com/google/uuid"

	"github.com/dd0wney/cluso-netimpact/pkg/topology"
	"github.com/dd0wney/cluso-netimpact/pkg/traffic"
	"github.com/dd0wney/cluso-netimpact/pkg/validation"
)

// Kind tags what a record's payload holds.
type Kind string

const (
	KindScenario    Kind = "scenario"
	KindConstraints Kind = "constraints"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	return k == KindScenario || k == KindConstraints
}

var (
	ErrNotFound      = errors.New("scenario not found")
	ErrInvalidRecord = errors.New("invalid scenario record")
)

// Record is one stored item. List results leave Payload nil.
type Record struct {
	ID          string    `json:"id"`
	Kind        Kind      `json:"kind"`
	Name        string    `json:"name"`
	Fingerprint string    `json:"fingerprint,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	Payload     []byte    `json:"-"`
}

// Scenario is a topology plus the cost changes to evaluate against it.
type Scenario struct {
	Description string            `json:"description,omitempty"`
	Topology    topology.Snapshot `json:"topology"`
	Changes     []topology.Change `json:"changes"`
}

// NewScenarioRecord validates sc and wraps it in a record.
func NewScenarioRecord(name string, sc *Scenario) (*Record, error) {
	if err := sc.Topology.Validate(); err != nil {
		return nil, err
	}
	if err := sc.Topology.ValidateChanges(sc.Changes); err != nil {
		return nil, err
	}
	payload, err := json.Marshal(sc)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal scenario: %w", err)
	}
	return &Record{
		Kind:        KindScenario,
		Name:        name,
		Fingerprint: topology.Fingerprint(&sc.Topology, sc.Changes),
		Payload:     payload,
	}, nil
}

// Scenario decodes the record payload.
func (r *Record) Scenario() (*Scenario, error) {
	if r.Kind != KindScenario {
		return nil, fmt.Errorf("%w: record %s holds %s", ErrInvalidRecord, r.ID, r.Kind)
	}
	sc := &Scenario{}
	if err := json.Unmarshal(r.Payload, sc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal scenario %s: %w", r.ID, err)
	}
	return sc, nil
}

// NewConstraintsRecord wraps an optimizer constraint set in a record.
func NewConstraintsRecord(name string, c traffic.Constraints) (*Record, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	payload, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal constraints: %w", err)
	}
	return &Record{Kind: KindConstraints, Name: name, Payload: payload}, nil
}

// Constraints decodes the record payload.
func (r *Record) Constraints() (traffic.Constraints, error) {
	var c traffic.Constraints
	if r.Kind != KindConstraints {
		return c, fmt.Errorf("%w: record %s holds %s", ErrInvalidRecord, r.ID, r.Kind)
	}
	if err := json.Unmarshal(r.Payload, &c); err != nil {
		return c, fmt.Errorf("failed to unmarshal constraints %s: %w", r.ID, err)
	}
	return c, nil
}

// prepare assigns an ID and timestamp when missing and checks the rest.
func prepare(rec *Record, now time.Time) error {
	if rec == nil {
		return fmt.Errorf("%w: nil record", ErrInvalidRecord)
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	} else if !validID(rec.ID) {
		return fmt.Errorf("%w: id %q is not a UUID", ErrInvalidRecord, rec.ID)
	}
	if !rec.Kind.Valid() {
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidRecord, rec.Kind)
	}
	if rec.Name == "" || len(rec.Name) > validation.MaxLabelLength {
		return fmt.Errorf("%w: name must be 1-%d characters", ErrInvalidRecord, validation.MaxLabelLength)
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now.UTC()
	}
	return nil
}

func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// summary returns a copy of rec without its payload.
func summary(rec *Record) Record {
	out := *rec
	out.Payload = nil
	return out
}

func clone(rec *Record) *Record {
	out := *rec
	out.Payload = append([]byte(nil), rec.Payload...)
	return &out
}

// envelope is the serialized form used by the file and S3 backends.
type envelope struct {
	Record
	Data []byte `json:"data"`
}

func encodeEnvelope(rec *Record) ([]byte, error) {
	return json.Marshal(envelope{Record: summary(rec), Data: snappy.Encode(nil, rec.Payload)})
}

func decodeEnvelope(data []byte) (*Record, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to unmarshal record: %w", err)
	}
	payload, err := snappy.Decode(nil, env.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress record %s: %w", env.ID, err)
	}
	rec := env.Record
	rec.Payload = payload
	return &rec, nil
}
