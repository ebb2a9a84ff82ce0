package spf

import (
	"container/heap"
	"math"
)

// Infinity marks an unreachable node distance.
const Infinity = math.MaxInt64

// MaxCountedPaths is the saturation point of equal-cost path counting.
const MaxCountedPaths = 1 << 30

// Pred is one equal-cost predecessor record: the previous node and the arc
// used to reach the current node from it.
type Pred struct {
	Node int `json:"node"`
	Arc  int `json:"arc"`
}

// Tree is the result of one single-source SPF run.
type Tree struct {
	g      *Graph
	source int
	dist   []int64
	preds  [][]Pred
	order  []int // settle order, ascending distance
	counts []int64
}

// Tree runs SPF from src to exhaustion.
func (g *Graph) Tree(src int) *Tree {
	return g.spf(src, -1)
}

// spf runs Dijkstra from src. When stop >= 0 the run ends as soon as that
// node is settled; its distance and predecessor list are final by then.
func (g *Graph) spf(src, stop int) *Tree {
	n := len(g.nodes)
	t := &Tree{
		g:      g,
		source: src,
		dist:   make([]int64, n),
		preds:  make([][]Pred, n),
		order:  make([]int, 0, n),
	}
	for i := range t.dist {
		t.dist[i] = Infinity
	}
	t.dist[src] = 0

	settled := make([]bool, n)
	pq := &frontier{}
	heap.Push(pq, item{node: src, dist: 0})

	for pq.Len() > 0 {
		it := heap.Pop(pq).(item)
		u := it.node
		if settled[u] || it.dist != t.dist[u] {
			continue
		}
		settled[u] = true
		t.order = append(t.order, u)
		if u == stop {
			break
		}

		for _, ai := range g.out[u] {
			arc := &g.arcs[ai]
			v := g.index[arc.To]
			nd := t.dist[u] + int64(arc.Cost)
			switch {
			case nd < t.dist[v]:
				t.dist[v] = nd
				t.preds[v] = append(t.preds[v][:0:0], Pred{Node: u, Arc: ai})
				heap.Push(pq, item{node: v, dist: nd})
			case nd == t.dist[v]:
				t.preds[v] = append(t.preds[v], Pred{Node: u, Arc: ai})
			}
		}
	}
	return t
}

// Source returns the source node index.
func (t *Tree) Source() int {
	return t.source
}

// Graph returns the graph the tree was computed on.
func (t *Tree) Graph() *Graph {
	return t.g
}

// Reachable reports whether dst has a finite distance.
func (t *Tree) Reachable(dst int) bool {
	return t.dist[dst] != Infinity
}

// Dist returns the distance to dst, or Infinity.
func (t *Tree) Dist(dst int) int64 {
	return t.dist[dst]
}

// Preds returns the equal-cost predecessor records of v in recording order.
func (t *Tree) Preds(v int) []Pred {
	return t.preds[v]
}

// Canonical returns the node and arc indexes of the canonical path to dst,
// following the first recorded predecessor at each hop. Nil when unreachable.
func (t *Tree) Canonical(dst int) (nodes []int, arcs []int) {
	if !t.Reachable(dst) {
		return nil, nil
	}
	nodes = []int{dst}
	for v := dst; v != t.source; {
		p := t.preds[v][0]
		arcs = append(arcs, p.Arc)
		nodes = append(nodes, p.Node)
		v = p.Node
	}
	reverseInts(nodes)
	reverseInts(arcs)
	return nodes, arcs
}

// Subgraph returns every arc lying on some minimal-cost path to dst, in
// backward discovery order.
func (t *Tree) Subgraph(dst int) []int {
	if !t.Reachable(dst) || dst == t.source {
		return nil
	}
	seenNode := map[int]bool{dst: true}
	seenArc := make(map[int]bool)
	var arcs []int
	stack := []int{dst}
	for len(stack) > 0 {
		v := stack[0]
		stack = stack[1:]
		for _, p := range t.preds[v] {
			if !seenArc[p.Arc] {
				seenArc[p.Arc] = true
				arcs = append(arcs, p.Arc)
			}
			if !seenNode[p.Node] {
				seenNode[p.Node] = true
				stack = append(stack, p.Node)
			}
		}
	}
	return arcs
}

// PathCount returns the number of distinct equal-cost node sequences from
// the source to dst, saturating at MaxCountedPaths. Zero when unreachable.
func (t *Tree) PathCount(dst int) int64 {
	if !t.Reachable(dst) {
		return 0
	}
	if t.counts == nil {
		t.countPaths()
	}
	return t.counts[dst]
}

// IsECMP reports whether at least two distinct node sequences tie for the
// minimal cost to dst.
func (t *Tree) IsECMP(dst int) bool {
	return t.PathCount(dst) >= 2
}

// countPaths walks settled nodes in ascending distance. Parallel arcs from the
// same predecessor node produce the same node sequence and count once.
func (t *Tree) countPaths() {
	t.counts = make([]int64, len(t.dist))
	t.counts[t.source] = 1
	for _, v := range t.order {
		if v == t.source {
			continue
		}
		var sum int64
		for i, p := range t.preds[v] {
			if seenBefore(t.preds[v][:i], p.Node) {
				continue
			}
			sum += t.counts[p.Node]
			if sum >= MaxCountedPaths {
				sum = MaxCountedPaths
				break
			}
		}
		t.counts[v] = sum
	}
}

func seenBefore(preds []Pred, node int) bool {
	for _, p := range preds {
		if p.Node == node {
			return true
		}
	}
	return false
}

func reverseInts(s []int) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}

type item struct {
	node int
	dist int64
}

// frontier is a min-heap on (dist, node index).
type frontier []item

func (f frontier) Len() int { return len(f) }
func (f frontier) Less(i, j int) bool {
	if f[i].dist != f[j].dist {
		return f[i].dist < f[j].dist
	}
	return f[i].node < f[j].node
}
func (f frontier) Swap(i, j int) { f[i], f[j] = f[j], f[i] }
func (f *frontier) Push(x any)   { *f = append(*f, x.(item)) }
func (f *frontier) Pop() any {
	old := *f
	n := len(old)
	it := old[n-1]
	*f = old[:n-1]
	return it
}
