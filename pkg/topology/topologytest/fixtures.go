// Package topologytest provides small reference topologies for tests.
package topologytest

import (
	"fmt"

	"github.com/dd0wney/cluso-netimpact/pkg/topology"
)

// Builder accumulates nodes and edges for a test snapshot.
type Builder struct {
	snap topology.Snapshot
}

// New starts an empty builder.
func New() *Builder {
	return &Builder{}
}

// Node adds a node with an optional country.
func (b *Builder) Node(id, country string) *Builder {
	b.snap.Nodes = append(b.snap.Nodes, topology.Node{ID: id, Label: id, Country: country})
	return b
}

// Nodes adds several nodes without a country.
func (b *Builder) Nodes(ids ...string) *Builder {
	for _, id := range ids {
		b.Node(id, "")
	}
	return b
}

// Link adds a symmetric edge.
func (b *Builder) Link(id, from, to string, cost int) *Builder {
	b.snap.Edges = append(b.snap.Edges, topology.Edge{ID: id, From: from, To: to, Cost: cost})
	return b
}

// Asym adds an edge with distinct forward and reverse costs.
func (b *Builder) Asym(id, from, to string, cost, reverse int) *Builder {
	b.snap.Edges = append(b.snap.Edges, topology.Edge{ID: id, From: from, To: to, Cost: cost, ReverseCost: topology.IntPtr(reverse)})
	return b
}

// Arc adds a one-way edge.
func (b *Builder) Arc(id, from, to string, cost int) *Builder {
	b.snap.Edges = append(b.snap.Edges, topology.Edge{ID: id, From: from, To: to, Cost: cost, OneWay: true})
	return b
}

// Capacity sets the capacity of the most recently added edge.
func (b *Builder) Capacity(c float64) *Builder {
	b.snap.Edges[len(b.snap.Edges)-1].Capacity = c
	return b
}

// Build returns the snapshot.
func (b *Builder) Build() *topology.Snapshot {
	s := b.snap
	return &s
}

// Square is the four-node reroute scenario: A→B 10, B→D 10, A→C 12, C→D 9.
func Square() *topology.Snapshot {
	return New().
		Nodes("A", "B", "C", "D").
		Link("ab", "A", "B", 10).
		Link("bd", "B", "D", 10).
		Link("ac", "A", "C", 12).
		Link("cd", "C", "D", 9).
		Build()
}

// Diamond has two equal-cost A→B routes: a direct link of cost 5 and a
// two-hop detour through M with costs 2 and 3.
func Diamond() *topology.Snapshot {
	return New().
		Nodes("A", "M", "B").
		Link("e1", "A", "B", 5).
		Link("e2", "A", "M", 2).
		Link("e3", "M", "B", 3).
		Build()
}

// Ring is A-B-C-A with equal costs.
func Ring() *topology.Snapshot {
	return New().
		Nodes("A", "B", "C").
		Link("ab", "A", "B", 10).
		Link("bc", "B", "C", 10).
		Link("ca", "C", "A", 10).
		Build()
}

// Barbell is two triangles joined by a single bridge edge "bridge".
func Barbell() *topology.Snapshot {
	return New().
		Nodes("A1", "A2", "A3", "B1", "B2", "B3").
		Link("a12", "A1", "A2", 1).
		Link("a23", "A2", "A3", 1).
		Link("a31", "A3", "A1", 1).
		Link("b12", "B1", "B2", 1).
		Link("b23", "B2", "B3", 1).
		Link("b31", "B3", "B1", 1).
		Link("bridge", "A1", "B1", 5).
		Build()
}

// Line is a chain n0-n1-...-n(k-1) with unit costs.
func Line(k int) *topology.Snapshot {
	b := New()
	for i := 0; i < k; i++ {
		b.Node(fmt.Sprintf("n%d", i), "")
	}
	for i := 1; i < k; i++ {
		b.Link(fmt.Sprintf("l%d", i), fmt.Sprintf("n%d", i-1), fmt.Sprintf("n%d", i), 1)
	}
	return b.Build()
}

// Grid is a w×h lattice with unit costs, a dense source of ECMP.
func Grid(w, h int) *topology.Snapshot {
	b := New()
	name := func(x, y int) string { return fmt.Sprintf("g%d_%d", x, y) }
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			b.Node(name(x, y), "")
		}
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if x+1 < w {
				b.Link(fmt.Sprintf("h%d_%d", x, y), name(x, y), name(x+1, y), 1)
			}
			if y+1 < h {
				b.Link(fmt.Sprintf("v%d_%d", x, y), name(x, y), name(x, y+1), 1)
			}
		}
	}
	return b.Build()
}

// Europe is a small multi-country backbone used by aggregation and scoring tests.
func Europe() *topology.Snapshot {
	return New().
		Node("fra", "DE").
		Node("ber", "DE").
		Node("par", "FR").
		Node("lon", "GB").
		Node("ams", "NL").
		Node("lab", "").
		Link("fra-ber", "fra", "ber", 10).
		Link("fra-par", "fra", "par", 15).
		Link("par-lon", "par", "lon", 20).
		Link("lon-ams", "lon", "ams", 12).
		Link("ams-fra", "ams", "fra", 8).
		Link("ber-ams", "ber", "ams", 14).
		Link("lab-fra", "lab", "fra", 5).
		Build()
}
