package topology

import (
	"errors"
	"fmt"
)

// Sentinel errors for structural input problems. Unreachable destinations and
// partitioned networks are analysis outcomes and never surface as errors.
var (
	ErrNodeNotFound  = errors.New("node not found")
	ErrEdgeNotFound  = errors.New("edge not found")
	ErrInvalidCost   = errors.New("invalid cost")
	ErrDuplicateID   = errors.New("duplicate identifier")
	ErrEmptyTopology = errors.New("topology has no nodes")
	ErrInvalidInput  = errors.New("invalid input")
)

// Error provides structured error information for topology operations.
type Error struct {
	Op     string // Operation that failed (e.g., "ShortestPath", "ApplyChanges")
	Entity string // "node", "edge" or "change"
	ID     string // Element identifier (if applicable)
	Field  string // Field name (for cost or attribute problems)
	Cause  error  // Underlying error
}

// Error implements the error interface.
func (e *Error) Error() string {
	switch {
	case e.ID != "" && e.Field != "":
		return fmt.Sprintf("%s %s %q (field %s): %v", e.Op, e.Entity, e.ID, e.Field, e.Cause)
	case e.ID != "":
		return fmt.Sprintf("%s %s %q: %v", e.Op, e.Entity, e.ID, e.Cause)
	case e.Field != "":
		return fmt.Sprintf("%s %s (field %s): %v", e.Op, e.Entity, e.Field, e.Cause)
	default:
		return fmt.Sprintf("%s %s: %v", e.Op, e.Entity, e.Cause)
	}
}

// Unwrap returns the underlying cause for error chain support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// ErrorBuilder provides a fluent interface for building topology errors.
type ErrorBuilder struct {
	err Error
}

// NewError creates a new error builder with the given operation.
func NewError(op string) *ErrorBuilder {
	return &ErrorBuilder{err: Error{Op: op}}
}

// Node sets the entity to "node" with the given ID.
func (b *ErrorBuilder) Node(id string) *ErrorBuilder {
	b.err.Entity = "node"
	b.err.ID = id
	return b
}

// Edge sets the entity to "edge" with the given ID.
func (b *ErrorBuilder) Edge(id string) *ErrorBuilder {
	b.err.Entity = "edge"
	b.err.ID = id
	return b
}

// Change sets the entity to "change" for the given edge ID.
func (b *ErrorBuilder) Change(edgeID string) *ErrorBuilder {
	b.err.Entity = "change"
	b.err.ID = edgeID
	return b
}

// Field sets the offending field name.
func (b *ErrorBuilder) Field(name string) *ErrorBuilder {
	b.err.Field = name
	return b
}

// Cause sets the underlying error.
func (b *ErrorBuilder) Cause(err error) *ErrorBuilder {
	b.err.Cause = err
	return b
}

// Build returns the constructed error.
func (b *ErrorBuilder) Build() error {
	e := b.err
	if e.Entity == "" {
		e.Entity = "topology"
	}
	return &e
}

// NodeNotFound is shorthand for an ErrNodeNotFound error on id.
func NodeNotFound(op, id string) error {
	return NewError(op).Node(id).Cause(ErrNodeNotFound).Build()
}

// EdgeNotFound is shorthand for an ErrEdgeNotFound error on id.
func EdgeNotFound(op, id string) error {
	return NewError(op).Edge(id).Cause(ErrEdgeNotFound).Build()
}

// IsNotFound reports whether err refers to a missing node or edge.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNodeNotFound) || errors.Is(err, ErrEdgeNotFound)
}

// IsInputError reports whether err is a structural input error that callers
// should surface as a bad request.
func IsInputError(err error) bool {
	return IsNotFound(err) ||
		errors.Is(err, ErrInvalidCost) ||
		errors.Is(err, ErrDuplicateID) ||
		errors.Is(err, ErrEmptyTopology) ||
		errors.Is(err, ErrInvalidInput)
}
