package spf

import (
	"github.com/dd0wney/cluso-netimpact/pkg/topology"
)

// DefaultMaxPaths caps path enumeration when the caller passes zero.
const DefaultMaxPaths = 10

// ECMPPathResult is the bounded enumeration of every equal-cost node
// sequence between two nodes.
type ECMPPathResult struct {
	Source      string     `json:"source"`
	Destination string     `json:"destination"`
	Cost        int64      `json:"cost"`
	Paths       [][]string `json:"paths"`
	TotalPaths  int64      `json:"totalPaths"`
	Truncated   bool       `json:"truncated"`
	Divergence  []string   `json:"divergence"`
	Convergence []string   `json:"convergence"`
}

// EnumerateECMP builds a graph from snap and enumerates equal-cost paths.
func EnumerateECMP(snap *topology.Snapshot, src, dst string, maxPaths int) (*ECMPPathResult, error) {
	g, err := NewGraph(snap)
	if err != nil {
		return nil, err
	}
	return g.EnumerateECMP(src, dst, maxPaths)
}

// EnumerateECMP lists up to maxPaths distinct minimal-cost node sequences
// (DefaultMaxPaths when maxPaths <= 0). The first path is the canonical one.
// A nil result with a nil error means dst is unreachable.
func (g *Graph) EnumerateECMP(src, dst string, maxPaths int) (*ECMPPathResult, error) {
	s, d, err := g.resolve("EnumerateECMP", src, dst)
	if err != nil {
		return nil, err
	}
	t := g.spf(s, d)
	if !t.Reachable(d) {
		return nil, nil
	}
	return t.Enumerate(d, maxPaths), nil
}

// Enumerate walks the predecessor lists backward from dst, depth first,
// rejecting branches that revisit a node already on the partial path.
func (t *Tree) Enumerate(dst, maxPaths int) *ECMPPathResult {
	if maxPaths <= 0 {
		maxPaths = DefaultMaxPaths
	}
	g := t.g
	res := &ECMPPathResult{
		Source:      g.NodeID(t.source),
		Destination: g.NodeID(dst),
		Cost:        t.dist[dst],
		TotalPaths:  t.PathCount(dst),
	}

	var paths [][]int
	onPath := make([]bool, g.Len())
	partial := []int{dst}
	onPath[dst] = true

	var walk func(v int) bool
	walk = func(v int) bool {
		if v == t.source {
			p := make([]int, len(partial))
			for i, n := range partial {
				p[len(partial)-1-i] = n
			}
			paths = append(paths, p)
			return len(paths) < maxPaths
		}
		for i, pr := range t.preds[v] {
			u := pr.Node
			if onPath[u] || seenBefore(t.preds[v][:i], u) {
				continue
			}
			onPath[u] = true
			partial = append(partial, u)
			more := walk(u)
			partial = partial[:len(partial)-1]
			onPath[u] = false
			if !more {
				return false
			}
		}
		return true
	}
	walk(dst)

	res.Paths = make([][]string, len(paths))
	for i, p := range paths {
		res.Paths[i] = g.ids(p)
	}
	res.Truncated = res.TotalPaths > int64(len(paths))
	res.Divergence, res.Convergence = SplitPoints(res.Paths)
	return res
}

// SplitPoints returns the divergence nodes (next hop differs across paths)
// and the convergence nodes (previous hop differs), in first-seen order.
func SplitPoints(paths [][]string) (divergence, convergence []string) {
	next := make(map[string]map[string]bool)
	prev := make(map[string]map[string]bool)
	var order []string
	seen := make(map[string]bool)

	add := func(m map[string]map[string]bool, k, v string) {
		if m[k] == nil {
			m[k] = make(map[string]bool)
		}
		m[k][v] = true
	}
	for _, p := range paths {
		for i, n := range p {
			if !seen[n] {
				seen[n] = true
				order = append(order, n)
			}
			if i+1 < len(p) {
				add(next, n, p[i+1])
			}
			if i > 0 {
				add(prev, n, p[i-1])
			}
		}
	}
	for _, n := range order {
		if len(next[n]) > 1 {
			divergence = append(divergence, n)
		}
		if len(prev[n]) > 1 {
			convergence = append(convergence, n)
		}
	}
	return divergence, convergence
}
