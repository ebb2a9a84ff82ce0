package topology

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dd0wney/cluso-netimpact/pkg/validation"
)

// ValidateChanges checks that every change names an existing edge and carries
// valid costs.
func (s *Snapshot) ValidateChanges(changes []Change) error {
	edges := make(map[string]struct{}, len(s.Edges))
	for _, e := range s.Edges {
		edges[e.ID] = struct{}{}
	}
	for _, c := range changes {
		if err := validation.ValidateCost(c.NewCost); err != nil {
			return NewError("ApplyChanges").Change(c.EdgeID).Field("newCost").Cause(fmt.Errorf("%w: %v", ErrInvalidCost, err)).Build()
		}
		if c.NewReverseCost != nil {
			if err := validation.ValidateCost(*c.NewReverseCost); err != nil {
				return NewError("ApplyChanges").Change(c.EdgeID).Field("newReverseCost").Cause(fmt.Errorf("%w: %v", ErrInvalidCost, err)).Build()
			}
		}
		if _, ok := edges[c.EdgeID]; !ok {
			return EdgeNotFound("ApplyChanges", c.EdgeID)
		}
	}
	return nil
}

// ApplyChanges returns a copy of the snapshot with the given cost changes
// applied. The receiver is never modified. Later changes to the same edge win.
func (s *Snapshot) ApplyChanges(changes []Change) (*Snapshot, error) {
	if err := s.ValidateChanges(changes); err != nil {
		return nil, err
	}

	after := s.Clone()
	pos := make(map[string]int, len(after.Edges))
	for i, e := range after.Edges {
		pos[e.ID] = i
	}
	for _, c := range changes {
		e := &after.Edges[pos[c.EdgeID]]
		e.Cost = c.NewCost
		if c.NewReverseCost != nil {
			e.ReverseCost = IntPtr(*c.NewReverseCost)
		}
	}
	return after, nil
}

// OriginalCosts returns, for each change, the edge as it was before the
// change. Used for rollback plans.
func (s *Snapshot) OriginalCosts(changes []Change) ([]Edge, error) {
	out := make([]Edge, 0, len(changes))
	for _, c := range changes {
		e, ok := s.Edge(c.EdgeID)
		if !ok {
			return nil, EdgeNotFound("OriginalCosts", c.EdgeID)
		}
		out = append(out, e)
	}
	return out, nil
}

// ParseChanges reads command-line change specs of the form edge=cost or
// edge=cost/reverse. Costs are not range-checked here; ValidateChanges does
// that against a snapshot.
func ParseChanges(specs []string) ([]Change, error) {
	changes := make([]Change, 0, len(specs))
	for _, s := range specs {
		id, costs, ok := strings.Cut(strings.TrimSpace(s), "=")
		if !ok || id == "" {
			return nil, fmt.Errorf("%w: change %q must be edge=cost", ErrInvalidInput, s)
		}
		fwd, rev, hasRev := strings.Cut(costs, "/")
		cost, err := strconv.Atoi(fwd)
		if err != nil {
			return nil, fmt.Errorf("%w: change %q: %v", ErrInvalidInput, s, err)
		}
		c := Change{EdgeID: id, NewCost: cost}
		if hasRev {
			r, err := strconv.Atoi(rev)
			if err != nil {
				return nil, fmt.Errorf("%w: change %q: %v", ErrInvalidInput, s, err)
			}
			c.NewReverseCost = IntPtr(r)
		}
		changes = append(changes, c)
	}
	return changes, nil
}
