// Package traffic synthesizes demand matrices, routes them over canonical
// shortest paths to compute link utilization, and runs a greedy cost-bump
// local search that tries to lower the worst utilization.
//
// The optimizer is a heuristic. It stops at an iteration cap, a change budget
// or when no single cost increase strictly improves the objective, and it
// makes no optimality claim.
package traffic

import (
	"fmt"

	"github.com/dd0wney/cluso-netimpact/pkg/spf"
	"github.com/dd0wney/cluso-netimpact/pkg/topology"
)

// Model selects how demand weights are derived.
type Model string

const (
	Uniform    Model = "uniform"
	Population Model = "population"
	Distance   Model = "distance"
	Custom     Model = "custom"
)

// DefaultTotal is the matrix volume when MatrixOptions.Total is unset.
const DefaultTotal = 1000.0

// Demand is the traffic volume from one node to another.
type Demand struct {
	Source      string  `json:"source" yaml:"source"`
	Destination string  `json:"destination" yaml:"destination"`
	Volume      float64 `json:"volume" yaml:"volume"`
}

// Matrix is a set of demands whose volumes sum to Total.
type Matrix struct {
	Model   Model    `json:"model" yaml:"model"`
	Total   float64  `json:"total" yaml:"total"`
	Demands []Demand `json:"demands" yaml:"demands"`
}

// MatrixOptions configures GenerateMatrix. PairWeights and NodeWeights are
// only read by the custom model; a pair weight wins over the product of
// node weights.
type MatrixOptions struct {
	Total       float64                       `json:"total"`
	PairWeights map[string]map[string]float64 `json:"pairWeights,omitempty"`
	NodeWeights map[string]float64            `json:"nodeWeights,omitempty"`
}

// GenerateMatrix builds a demand for every ordered pair with a positive
// weight and scales the volumes to opts.Total.
func GenerateMatrix(snap *topology.Snapshot, model Model, opts MatrixOptions) (*Matrix, error) {
	if err := snap.Validate(); err != nil {
		return nil, err
	}
	total := opts.Total
	if total <= 0 {
		total = DefaultTotal
	}

	weight, err := weigher(snap, model, opts)
	if err != nil {
		return nil, err
	}

	var demands []Demand
	var sum float64
	for i, s := range snap.Nodes {
		for j, d := range snap.Nodes {
			if i == j {
				continue
			}
			w := weight(i, j)
			if w <= 0 {
				continue
			}
			demands = append(demands, Demand{Source: s.ID, Destination: d.ID, Volume: w})
			sum += w
		}
	}

	m := &Matrix{Model: model, Total: total, Demands: make([]Demand, 0, len(demands))}
	if sum == 0 {
		m.Total = 0
		return m, nil
	}
	for _, d := range demands {
		d.Volume = d.Volume / sum * total
		m.Demands = append(m.Demands, d)
	}
	return m, nil
}

func weigher(snap *topology.Snapshot, model Model, opts MatrixOptions) (func(i, j int) float64, error) {
	switch model {
	case Uniform, "":
		return func(int, int) float64 { return 1 }, nil

	case Population:
		pop := func(i int) float64 {
			if p := snap.Nodes[i].Population; p > 0 {
				return p
			}
			return 1
		}
		return func(i, j int) float64 { return pop(i) * pop(j) }, nil

	case Distance:
		g, err := spf.NewGraph(snap)
		if err != nil {
			return nil, err
		}
		dist := make([][]int64, g.Len())
		for s := range dist {
			t := g.Tree(s)
			dist[s] = make([]int64, g.Len())
			for d := range dist[s] {
				dist[s][d] = t.Dist(d)
			}
		}
		return func(i, j int) float64 {
			if dist[i][j] == spf.Infinity {
				return 0
			}
			return 1 / float64(dist[i][j])
		}, nil

	case Custom:
		if len(opts.PairWeights) == 0 && len(opts.NodeWeights) == 0 {
			return nil, fmt.Errorf("%w: custom model needs pair or node weights", topology.ErrInvalidInput)
		}
		for id := range opts.NodeWeights {
			if !snap.HasNode(id) {
				return nil, topology.NodeNotFound("GenerateMatrix", id)
			}
		}
		for src, row := range opts.PairWeights {
			if !snap.HasNode(src) {
				return nil, topology.NodeNotFound("GenerateMatrix", src)
			}
			for dst := range row {
				if !snap.HasNode(dst) {
					return nil, topology.NodeNotFound("GenerateMatrix", dst)
				}
			}
		}
		return func(i, j int) float64 {
			s, d := snap.Nodes[i].ID, snap.Nodes[j].ID
			if w, ok := opts.PairWeights[s][d]; ok {
				return w
			}
			return opts.NodeWeights[s] * opts.NodeWeights[d]
		}, nil
	}
	return nil, fmt.Errorf("%w: unknown traffic model %q", topology.ErrInvalidInput, model)
}
