package spf

import (
	"github.com/dd0wney/cluso-netimpact/pkg/topology"
)

// Graph is the index-based directed adjacency built from one snapshot.
// It is read-only after construction and safe for concurrent use.
type Graph struct {
	nodes []topology.Node
	index map[string]int
	arcs  []topology.Arc
	out   [][]int // node index -> outgoing arc indexes, input order
}

// NewGraph validates the snapshot and builds its adjacency.
func NewGraph(snap *topology.Snapshot) (*Graph, error) {
	if err := snap.Validate(); err != nil {
		return nil, err
	}
	return build(snap), nil
}

func build(snap *topology.Snapshot) *Graph {
	g := &Graph{
		nodes: snap.Nodes,
		index: snap.NodeIndex(),
		arcs:  snap.Arcs(),
		out:   make([][]int, len(snap.Nodes)),
	}
	for i, a := range g.arcs {
		from := g.index[a.From]
		g.out[from] = append(g.out[from], i)
	}
	return g
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// Node returns the node at index i.
func (g *Graph) Node(i int) topology.Node {
	return g.nodes[i]
}

// NodeID returns the identifier of the node at index i.
func (g *Graph) NodeID(i int) string {
	return g.nodes[i].ID
}

// Index returns the position of the node with the given id.
func (g *Graph) Index(id string) (int, bool) {
	i, ok := g.index[id]
	return i, ok
}

// Arc returns the directed arc at index i.
func (g *Graph) Arc(i int) topology.Arc {
	return g.arcs[i]
}

// Arcs returns the number of directed arcs.
func (g *Graph) Arcs() int {
	return len(g.arcs)
}

// Outgoing returns the arc indexes leaving node i.
func (g *Graph) Outgoing(i int) []int {
	return g.out[i]
}

func (g *Graph) resolve(op, src, dst string) (int, int, error) {
	s, ok := g.index[src]
	if !ok {
		return 0, 0, topology.NodeNotFound(op, src)
	}
	d, ok := g.index[dst]
	if !ok {
		return 0, 0, topology.NodeNotFound(op, dst)
	}
	return s, d, nil
}

func (g *Graph) ids(idx []int) []string {
	out := make([]string, len(idx))
	for i, n := range idx {
		out[i] = g.nodes[n].ID
	}
	return out
}
