package spf

import (
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/dd0wney/cluso-netimpact/pkg/topology"
	"github.com/dd0wney/cluso-netimpact/pkg/topology/topologytest"
)

// randomSnapshot builds a small graph with low costs so that ties are common.
// It mixes symmetric, asymmetric, one-way and parallel links.
func randomSnapshot(seed int64) *topology.Snapshot {
	rng := rand.New(rand.NewSource(seed))
	n := 2 + rng.Intn(5)
	b := topologytest.New()
	for i := 0; i < n; i++ {
		b.Node(fmt.Sprintf("n%d", i), "")
	}
	id := 0
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if rng.Intn(3) == 0 {
				continue
			}
			links := 1
			if rng.Intn(5) == 0 {
				links = 2
			}
			for k := 0; k < links; k++ {
				from, to := fmt.Sprintf("n%d", i), fmt.Sprintf("n%d", j)
				cost := 1 + rng.Intn(4)
				switch rng.Intn(4) {
				case 0:
					b.Asym(fmt.Sprintf("e%d", id), from, to, cost, 1+rng.Intn(4))
				case 1:
					b.Arc(fmt.Sprintf("e%d", id), from, to, cost)
				default:
					b.Link(fmt.Sprintf("e%d", id), from, to, cost)
				}
				id++
			}
		}
	}
	return b.Build()
}

// bruteForce enumerates every simple path and returns the minimal cost and
// the number of distinct node sequences achieving it. Cost -1 means no path.
func bruteForce(g *Graph, src, dst int) (int64, int64) {
	best := int64(-1)
	sequences := make(map[string]bool)
	visited := make([]bool, g.Len())
	path := []int{src}

	var dfs func(u int, cost int64)
	dfs = func(u int, cost int64) {
		if u == dst {
			key := fmt.Sprint(path)
			switch {
			case best < 0 || cost < best:
				best = cost
				sequences = map[string]bool{key: true}
			case cost == best:
				sequences[key] = true
			}
			return
		}
		visited[u] = true
		for _, ai := range g.Outgoing(u) {
			arc := g.Arc(ai)
			v, _ := g.Index(arc.To)
			if visited[v] {
				continue
			}
			path = append(path, v)
			dfs(v, cost+int64(arc.Cost))
			path = path[:len(path)-1]
		}
		visited[u] = false
	}
	dfs(src, 0)
	return best, int64(len(sequences))
}

func TestSPFProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)

	properties.Property("reported cost equals the sum along the canonical path", prop.ForAll(
		func(seed int64) bool {
			g, err := NewGraph(randomSnapshot(seed))
			if err != nil {
				return false
			}
			for s := 0; s < g.Len(); s++ {
				tree := g.Tree(s)
				for d := 0; d < g.Len(); d++ {
					if !tree.Reachable(d) {
						continue
					}
					nodes, arcs := tree.Canonical(d)
					var sum int64
					for i, a := range arcs {
						arc := g.Arc(a)
						if arc.From != g.NodeID(nodes[i]) || arc.To != g.NodeID(nodes[i+1]) {
							return false
						}
						sum += int64(arc.Cost)
					}
					if sum != tree.Dist(d) {
						return false
					}
				}
			}
			return true
		},
		gen.Int64(),
	))

	properties.Property("ECMP flag holds iff two node sequences tie", prop.ForAll(
		func(seed int64) bool {
			g, err := NewGraph(randomSnapshot(seed))
			if err != nil {
				return false
			}
			for s := 0; s < g.Len(); s++ {
				tree := g.Tree(s)
				for d := 0; d < g.Len(); d++ {
					if d == s {
						continue
					}
					cost, count := bruteForce(g, s, d)
					if cost < 0 {
						if tree.Reachable(d) {
							return false
						}
						continue
					}
					if tree.Dist(d) != cost || tree.PathCount(d) != count {
						return false
					}
					if tree.IsECMP(d) != (count >= 2) {
						return false
					}
				}
			}
			return true
		},
		gen.Int64(),
	))

	properties.Property("enumeration yields distinct minimal paths", prop.ForAll(
		func(seed int64) bool {
			g, err := NewGraph(randomSnapshot(seed))
			if err != nil {
				return false
			}
			for s := 0; s < g.Len(); s++ {
				tree := g.Tree(s)
				for d := 0; d < g.Len(); d++ {
					if d == s || !tree.Reachable(d) {
						continue
					}
					res := tree.Enumerate(d, 100)
					seen := make(map[string]bool)
					for _, p := range res.Paths {
						key := strings.Join(p, ">")
						if seen[key] || p[0] != g.NodeID(s) || p[len(p)-1] != g.NodeID(d) {
							return false
						}
						seen[key] = true
					}
					if int64(len(res.Paths)) != res.TotalPaths {
						return false
					}
				}
			}
			return true
		},
		gen.Int64(),
	))

	properties.TestingRun(t)
}
