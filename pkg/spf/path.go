package spf

import (
	"github.com/dd0wney/cluso-netimpact/pkg/topology"
)

// PathResult is the answer to a point query.
type PathResult struct {
	Source      string     `json:"source"`
	Destination string     `json:"destination"`
	Path        []string   `json:"path"`
	PathEdgeIDs []string   `json:"pathEdgeIds"`
	EdgeIDs     []string   `json:"edgeIds"`
	ArcIDs      []string   `json:"arcIds"`
	Cost        int64      `json:"cost"`
	IsECMP      bool       `json:"isEcmp"`
	PathCount   int64      `json:"pathCount"`
	Waves       [][]string `json:"waves,omitempty"`
}

type queryOptions struct {
	waves bool
}

// Option configures a point query.
type Option func(*queryOptions)

// WithWaves fills PathResult.Waves with the hop layers of the ECMP subgraph.
func WithWaves() Option {
	return func(o *queryOptions) { o.waves = true }
}

// ShortestPath builds a graph from snap and answers one query. A nil result
// with a nil error means dst is unreachable.
func ShortestPath(snap *topology.Snapshot, src, dst string, opts ...Option) (*PathResult, error) {
	g, err := NewGraph(snap)
	if err != nil {
		return nil, err
	}
	return g.ShortestPath(src, dst, opts...)
}

// ShortestPath answers one query on a prebuilt graph. Unknown ids return
// topology.ErrNodeNotFound; an unreachable destination returns nil, nil.
func (g *Graph) ShortestPath(src, dst string, opts ...Option) (*PathResult, error) {
	s, d, err := g.resolve("ShortestPath", src, dst)
	if err != nil {
		return nil, err
	}
	var o queryOptions
	for _, opt := range opts {
		opt(&o)
	}
	t := g.spf(s, d)
	res := t.Result(d)
	if res != nil && o.waves {
		res.Waves = t.Waves(d)
	}
	return res, nil
}

// Result assembles the PathResult for dst, or nil when unreachable.
func (t *Tree) Result(dst int) *PathResult {
	if !t.Reachable(dst) {
		return nil
	}
	g := t.g
	nodes, arcs := t.Canonical(dst)
	res := &PathResult{
		Source:      g.NodeID(t.source),
		Destination: g.NodeID(dst),
		Path:        g.ids(nodes),
		PathEdgeIDs: make([]string, len(arcs)),
		Cost:        t.dist[dst],
		PathCount:   t.PathCount(dst),
	}
	res.IsECMP = res.PathCount >= 2
	for i, a := range arcs {
		res.PathEdgeIDs[i] = g.arcs[a].LinkID
	}

	sub := t.Subgraph(dst)
	res.ArcIDs = make([]string, len(sub))
	res.EdgeIDs = make([]string, 0, len(sub))
	seen := make(map[string]bool, len(sub))
	for i, a := range sub {
		arc := g.arcs[a]
		res.ArcIDs[i] = arc.ID
		if !seen[arc.LinkID] {
			seen[arc.LinkID] = true
			res.EdgeIDs = append(res.EdgeIDs, arc.LinkID)
		}
	}
	return res
}

// Path returns the canonical node-id sequence to dst, nil when unreachable.
func (t *Tree) Path(dst int) []string {
	nodes, _ := t.Canonical(dst)
	if nodes == nil {
		return nil
	}
	return t.g.ids(nodes)
}

// Waves layers the ECMP subgraph toward dst by hop count from the source.
// Each node appears once, in the first layer that reaches it.
func (t *Tree) Waves(dst int) [][]string {
	if !t.Reachable(dst) {
		return nil
	}
	next := make(map[int][]int)
	for _, a := range t.Subgraph(dst) {
		arc := t.g.arcs[a]
		from := t.g.index[arc.From]
		next[from] = append(next[from], t.g.index[arc.To])
	}

	seen := map[int]bool{t.source: true}
	layer := []int{t.source}
	var waves [][]string
	for len(layer) > 0 {
		waves = append(waves, t.g.ids(layer))
		var following []int
		for _, u := range layer {
			for _, v := range next[u] {
				if !seen[v] {
					seen[v] = true
					following = append(following, v)
				}
			}
		}
		layer = following
	}
	return waves
}
