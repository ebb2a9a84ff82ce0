// Package connectivity computes connected components of the undirected view
// of a topology under arbitrary node and edge exclusions.
package connectivity

import (
	"container/list"

	"github.com/dd0wney/cluso-netimpact/pkg/topology"
)

// Result describes the partition structure after exclusions.
type Result struct {
	Connected  bool       `json:"connected"`
	Components [][]string `json:"components"`
	Isolated   []string   `json:"isolated"`
}

// Partitions returns the number of components.
func (r *Result) Partitions() int {
	return len(r.Components)
}

// Analyzer holds the undirected adjacency of one snapshot so that repeated
// exclusion queries do not rebuild it.
type Analyzer struct {
	snap  *topology.Snapshot
	nodes map[string]int
	edges map[string]int
	adj   [][]neighbor
}

type neighbor struct {
	node int
	edge int
}

// NewAnalyzer validates the snapshot and builds the undirected view. Edge
// direction and one-way flags are ignored.
func NewAnalyzer(snap *topology.Snapshot) (*Analyzer, error) {
	if err := snap.Validate(); err != nil {
		return nil, err
	}
	a := &Analyzer{
		snap:  snap,
		nodes: snap.NodeIndex(),
		edges: make(map[string]int, len(snap.Edges)),
		adj:   make([][]neighbor, len(snap.Nodes)),
	}
	for i, e := range snap.Edges {
		a.edges[e.ID] = i
		from, to := a.nodes[e.From], a.nodes[e.To]
		a.adj[from] = append(a.adj[from], neighbor{node: to, edge: i})
		a.adj[to] = append(a.adj[to], neighbor{node: from, edge: i})
	}
	return a, nil
}

// Analyze is a one-shot NewAnalyzer plus Analyze.
func Analyze(snap *topology.Snapshot, excludedNodes, excludedEdges []string) (*Result, error) {
	a, err := NewAnalyzer(snap)
	if err != nil {
		return nil, err
	}
	return a.Analyze(excludedNodes, excludedEdges)
}

// Analyze reports components over the non-excluded elements. Unknown ids are
// rejected. When every node is excluded the result is not connected and every
// node of the snapshot is reported isolated.
func (a *Analyzer) Analyze(excludedNodes, excludedEdges []string) (*Result, error) {
	nodeOut := make([]bool, len(a.snap.Nodes))
	for _, id := range excludedNodes {
		i, ok := a.nodes[id]
		if !ok {
			return nil, topology.NodeNotFound("Analyze", id)
		}
		nodeOut[i] = true
	}
	edgeOut := make([]bool, len(a.snap.Edges))
	for _, id := range excludedEdges {
		i, ok := a.edges[id]
		if !ok {
			return nil, topology.EdgeNotFound("Analyze", id)
		}
		edgeOut[i] = true
	}
	return a.partition(nodeOut, edgeOut), nil
}

// WithoutNode is Analyze with the node at index i excluded.
func (a *Analyzer) WithoutNode(i int) *Result {
	nodeOut := make([]bool, len(a.snap.Nodes))
	nodeOut[i] = true
	return a.partition(nodeOut, make([]bool, len(a.snap.Edges)))
}

// WithoutEdge is Analyze with the edge at index i excluded.
func (a *Analyzer) WithoutEdge(i int) *Result {
	edgeOut := make([]bool, len(a.snap.Edges))
	edgeOut[i] = true
	return a.partition(make([]bool, len(a.snap.Nodes)), edgeOut)
}

func (a *Analyzer) partition(nodeOut, edgeOut []bool) *Result {
	visited := make([]bool, len(a.snap.Nodes))
	res := &Result{Components: make([][]string, 0)}
	remaining := 0

	// BFS from each unvisited node in input order
	for start := range a.snap.Nodes {
		if nodeOut[start] {
			continue
		}
		remaining++
		if visited[start] {
			continue
		}

		var component []string
		queue := list.New()
		queue.PushBack(start)
		visited[start] = true

		for queue.Len() > 0 {
			u := queue.Remove(queue.Front()).(int)
			component = append(component, a.snap.Nodes[u].ID)

			for _, nb := range a.adj[u] {
				if edgeOut[nb.edge] || nodeOut[nb.node] || visited[nb.node] {
					continue
				}
				visited[nb.node] = true
				queue.PushBack(nb.node)
			}
		}

		res.Components = append(res.Components, component)
		if len(component) == 1 {
			res.Isolated = append(res.Isolated, component[0])
		}
	}

	if remaining == 0 {
		res.Isolated = a.snap.NodeIDs()
		return res
	}
	res.Connected = len(res.Components) == 1
	return res
}
