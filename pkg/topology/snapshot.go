package topology

import (
	"fmt"

	"github.com/dd0wney/cluso-netimpact/pkg/validation"
)

// Validate checks ids, references and costs. Costs are checked before
// anything else about an edge so that InvalidCost is reported even for
// otherwise malformed links.
func (s *Snapshot) Validate() error {
	if s == nil || len(s.Nodes) == 0 {
		return NewError("Validate").Cause(ErrEmptyTopology).Build()
	}

	nodes := make(map[string]struct{}, len(s.Nodes))
	for i := range s.Nodes {
		n := &s.Nodes[i]
		if err := validation.Struct(n); err != nil {
			return NewError("Validate").Node(n.ID).Cause(fmt.Errorf("%w: %v", ErrInvalidInput, err)).Build()
		}
		if _, dup := nodes[n.ID]; dup {
			return NewError("Validate").Node(n.ID).Cause(ErrDuplicateID).Build()
		}
		nodes[n.ID] = struct{}{}
	}

	edges := make(map[string]struct{}, len(s.Edges))
	for i := range s.Edges {
		e := &s.Edges[i]
		if err := validation.ValidateCost(e.Cost); err != nil {
			return NewError("Validate").Edge(e.ID).Field("cost").Cause(fmt.Errorf("%w: %v", ErrInvalidCost, err)).Build()
		}
		if e.ReverseCost != nil {
			if err := validation.ValidateCost(*e.ReverseCost); err != nil {
				return NewError("Validate").Edge(e.ID).Field("reverseCost").Cause(fmt.Errorf("%w: %v", ErrInvalidCost, err)).Build()
			}
		}
		if err := validation.Struct(e); err != nil {
			return NewError("Validate").Edge(e.ID).Cause(fmt.Errorf("%w: %v", ErrInvalidInput, err)).Build()
		}
		if _, dup := edges[e.ID]; dup {
			return NewError("Validate").Edge(e.ID).Cause(ErrDuplicateID).Build()
		}
		edges[e.ID] = struct{}{}
		if _, ok := nodes[e.From]; !ok {
			return NewError("Validate").Edge(e.ID).Field("from").Cause(fmt.Errorf("%w: %s", ErrNodeNotFound, e.From)).Build()
		}
		if _, ok := nodes[e.To]; !ok {
			return NewError("Validate").Edge(e.ID).Field("to").Cause(fmt.Errorf("%w: %s", ErrNodeNotFound, e.To)).Build()
		}
	}
	return nil
}

// NodeIndex maps node IDs to their position in Nodes.
func (s *Snapshot) NodeIndex() map[string]int {
	idx := make(map[string]int, len(s.Nodes))
	for i, n := range s.Nodes {
		idx[n.ID] = i
	}
	return idx
}

// Node returns the node with the given id.
func (s *Snapshot) Node(id string) (Node, bool) {
	for _, n := range s.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}

// Edge returns the edge with the given id.
func (s *Snapshot) Edge(id string) (Edge, bool) {
	for _, e := range s.Edges {
		if e.ID == id {
			return e, true
		}
	}
	return Edge{}, false
}

// HasNode reports whether id names a node in the snapshot.
func (s *Snapshot) HasNode(id string) bool {
	_, ok := s.Node(id)
	return ok
}

// NodeIDs returns node ids in input order.
func (s *Snapshot) NodeIDs() []string {
	ids := make([]string, len(s.Nodes))
	for i, n := range s.Nodes {
		ids[i] = n.ID
	}
	return ids
}

// Countries maps node IDs to their country bucket.
func (s *Snapshot) Countries() map[string]string {
	m := make(map[string]string, len(s.Nodes))
	for _, n := range s.Nodes {
		m[n.ID] = n.CountryOrUnknown()
	}
	return m
}

// TotalFlows is the number of ordered node pairs, N·(N−1).
func (s *Snapshot) TotalFlows() int {
	n := len(s.Nodes)
	return n * (n - 1)
}

// Arcs expands every logical edge into its directed arcs, forward arc first.
func (s *Snapshot) Arcs() []Arc {
	arcs := make([]Arc, 0, 2*len(s.Edges))
	for _, e := range s.Edges {
		arcs = append(arcs, Arc{
			ID:       e.ID,
			LinkID:   e.ID,
			From:     e.From,
			To:       e.To,
			Cost:     e.Cost,
			Capacity: e.Capacity,
		})
		if e.OneWay {
			continue
		}
		arcs = append(arcs, Arc{
			ID:       e.ID + ReverseSuffix,
			LinkID:   e.ID,
			From:     e.To,
			To:       e.From,
			Cost:     e.EffectiveReverseCost(),
			Capacity: e.Capacity,
			Reverse:  true,
		})
	}
	return arcs
}

// Clone returns a deep copy of the snapshot.
func (s *Snapshot) Clone() *Snapshot {
	c := &Snapshot{
		Nodes: make([]Node, len(s.Nodes)),
		Edges: make([]Edge, len(s.Edges)),
	}
	copy(c.Nodes, s.Nodes)
	copy(c.Edges, s.Edges)
	for i := range c.Edges {
		if rc := c.Edges[i].ReverseCost; rc != nil {
			c.Edges[i].ReverseCost = IntPtr(*rc)
		}
	}
	return c
}
