package traffic

import (
	"context"
	"fmt"
	"math"
	"slices"

	"golang.org/x/exp/constraints"

	"github.com/dd0wney/cluso-netimpact/pkg/logging"
	"github.com/dd0wney/cluso-netimpact/pkg/metrics"
	"github.com/dd0wney/cluso-netimpact/pkg/spf"
	"github.com/dd0wney/cluso-netimpact/pkg/topology"
	"github.com/dd0wney/cluso-netimpact/pkg/validation"
)

// Objective is the quantity the optimizer minimizes.
type Objective string

const (
	MaxUtilization  Objective = "max"
	MeanUtilization Objective = "mean"
)

// Stop reasons reported by Optimize.
const (
	StopIterationLimit = "iteration_limit"
	StopMaxChanges     = "max_changes"
	StopNoImprovement  = "no_improving_move"
	StopCancelled      = "cancelled"
)

const (
	// CostMultiplier is the factor applied to a congested arc's cost per move.
	CostMultiplier = 1.5

	DefaultMaxIterations = 20
	DefaultMaxChanges    = 5
)

// Constraints bound the moves the optimizer may propose.
type Constraints struct {
	MaxCostChangePercent float64  `json:"maxCostChangePercent" yaml:"max_cost_change_percent"`
	MaxChanges           int      `json:"maxChanges" yaml:"max_changes"`
	ProtectedEdges       []string `json:"protectedEdges" yaml:"protected_edges"`
	MinCost              int      `json:"minCost" yaml:"min_cost"`
	MaxCost              int      `json:"maxCost" yaml:"max_cost"`
}

func (c Constraints) withDefaults() Constraints {
	c.MaxChanges = validation.DefaultOr(c.MaxChanges, DefaultMaxChanges)
	c.MinCost = validation.DefaultOr(c.MinCost, validation.MinCost)
	c.MaxCost = validation.DefaultOr(c.MaxCost, validation.MaxCost)
	return c
}

// Validate checks the constraint values.
func (c Constraints) Validate() error {
	return validation.NewConfigValidator("constraints").
		NonNegative("max_changes", c.MaxChanges).
		RangeFloat("max_cost_change_percent", c.MaxCostChangePercent, 0, math.MaxFloat64).
		When(c.MinCost != 0, func(v *validation.ConfigValidator) {
			v.RangeInt("min_cost", c.MinCost, validation.MinCost, validation.MaxCost)
		}).
		When(c.MaxCost != 0, func(v *validation.ConfigValidator) {
			v.RangeInt("max_cost", c.MaxCost, validation.MinCost, validation.MaxCost)
		}).
		When(c.MinCost != 0 && c.MaxCost != 0, func(v *validation.ConfigValidator) {
			v.Custom("min_cost", func() error {
				if c.MinCost > c.MaxCost {
					return fmt.Errorf("min_cost %d exceeds max_cost %d", c.MinCost, c.MaxCost)
				}
				return nil
			})
		}).
		Validate()
}

// OptimizeOptions configures Optimize.
type OptimizeOptions struct {
	Objective     Objective
	MaxIterations int
	Utilization   UtilizationOptions
	Logger        logging.Logger
	Metrics       *metrics.Registry
}

// OptimizeResult is the outcome of a local search.
type OptimizeResult struct {
	Changes     []topology.Change  `json:"changes"`
	Objective   Objective          `json:"objective"`
	Before      float64            `json:"before"`
	After       float64            `json:"after"`
	Iterations  int                `json:"iterations"`
	StopReason  string             `json:"stopReason"`
	Incomplete  bool               `json:"incomplete"`
	Utilization *UtilizationReport `json:"utilization"`
}

// Optimize repeatedly raises the cost of the most congested unprotected arc
// by CostMultiplier and keeps the move only when the objective strictly
// improves. Candidates are tried in descending utilization until one
// improves. The search is bounded by MaxIterations, Constraints.MaxChanges
// and the cost bounds; it returns the proposed changes against snap.
func Optimize(ctx context.Context, snap *topology.Snapshot, matrix *Matrix, cons Constraints, opts OptimizeOptions) (*OptimizeResult, error) {
	if err := cons.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", topology.ErrInvalidInput, err)
	}
	cons = cons.withDefaults()
	if opts.Objective == "" {
		opts.Objective = MaxUtilization
	}
	if opts.Objective != MaxUtilization && opts.Objective != MeanUtilization {
		return nil, fmt.Errorf("%w: unknown objective %q", topology.ErrInvalidInput, opts.Objective)
	}
	iterations := validation.DefaultOr(opts.MaxIterations, DefaultMaxIterations)
	uopts := opts.Utilization.withDefaults()
	for _, id := range cons.ProtectedEdges {
		if _, ok := snap.Edge(id); !ok {
			return nil, topology.EdgeNotFound("Optimize", id)
		}
	}

	g, err := spf.NewGraph(snap)
	if err != nil {
		return nil, err
	}
	current, err := utilization(g, matrix, uopts)
	if err != nil {
		return nil, err
	}

	log := logging.OrNop(opts.Logger).With(logging.Analysis("optimize"))
	timer := logging.StartTimer(log, "traffic optimization", logging.Int("demands", len(matrix.Demands)))

	res := &OptimizeResult{
		Objective: opts.Objective,
		Before:    score(current, opts.Objective),
		Changes:   make([]topology.Change, 0),
	}
	res.After = res.Before

	working := snap
	for {
		if ctx.Err() != nil {
			res.StopReason, res.Incomplete = StopCancelled, true
			break
		}
		if res.Iterations >= iterations {
			res.StopReason = StopIterationLimit
			break
		}
		if len(res.Changes) >= cons.MaxChanges {
			res.StopReason = StopMaxChanges
			break
		}
		res.Iterations++

		next, report, change, ok := improve(ctx, snap, working, matrix, current, res.After, cons, opts.Objective, uopts)
		if !ok {
			res.StopReason = StopNoImprovement
			if ctx.Err() != nil {
				res.StopReason, res.Incomplete = StopCancelled, true
			}
			break
		}
		working, current = next, report
		res.After = score(report, opts.Objective)
		res.Changes = mergeChange(res.Changes, change)
		log.Debug("accepted cost change",
			logging.EdgeID(change.EdgeID),
			logging.Int("new_cost", change.NewCost),
			logging.Float64("objective", res.After))
	}

	res.Utilization = current
	elapsed := timer.End(
		logging.Int("changes", len(res.Changes)),
		logging.Float64("before", res.Before),
		logging.Float64("after", res.After),
		logging.String("stop_reason", res.StopReason))
	opts.Metrics.RecordAnalysis("optimize", elapsed, res.Iterations, res.Incomplete)
	return res, nil
}

// improve tries candidate arcs in descending utilization and returns the
// first strictly improving move.
func improve(ctx context.Context, original, working *topology.Snapshot, matrix *Matrix, current *UtilizationReport,
	objective float64, cons Constraints, obj Objective, uopts UtilizationOptions,
) (*topology.Snapshot, *UtilizationReport, topology.Change, bool) {
	candidates := make([]LinkLoad, 0, len(current.Links))
	for _, ll := range current.Links {
		if ll.Load > 0 && !slices.Contains(cons.ProtectedEdges, ll.LinkID) {
			candidates = append(candidates, ll)
		}
	}
	sortByUtilization(candidates)

	for _, ll := range candidates {
		if ctx.Err() != nil {
			return nil, nil, topology.Change{}, false
		}
		change, ok := bump(original, working, ll, cons)
		if !ok {
			continue
		}
		next, err := working.ApplyChanges([]topology.Change{change})
		if err != nil {
			continue
		}
		g, err := spf.NewGraph(next)
		if err != nil {
			continue
		}
		report, err := utilization(g, matrix, uopts)
		if err != nil {
			continue
		}
		if score(report, obj) < objective {
			return next, report, change, true
		}
	}
	return nil, nil, topology.Change{}, false
}

// bump builds the change raising one arc's cost, keeping the other
// direction's cost as it is in the working snapshot.
func bump(original, working *topology.Snapshot, ll LinkLoad, cons Constraints) (topology.Change, bool) {
	edge, _ := working.Edge(ll.LinkID)
	orig, _ := original.Edge(ll.LinkID)
	reverse := ll.ArcID != edge.ID

	cur, base := edge.Cost, orig.Cost
	if reverse {
		cur, base = edge.EffectiveReverseCost(), orig.EffectiveReverseCost()
	}
	raised := clampCost(int(math.Ceil(float64(cur)*CostMultiplier)), cons.MinCost, cons.MaxCost)
	if raised <= cur {
		return topology.Change{}, false
	}
	if cons.MaxCostChangePercent > 0 && float64(raised-base)/float64(base)*100 > cons.MaxCostChangePercent {
		return topology.Change{}, false
	}

	c := topology.Change{EdgeID: edge.ID, NewCost: edge.Cost}
	if reverse {
		c.NewReverseCost = topology.IntPtr(raised)
	} else {
		c.NewCost = raised
		if !edge.OneWay {
			c.NewReverseCost = topology.IntPtr(edge.EffectiveReverseCost())
		}
	}
	return c, true
}

// mergeChange folds a change for an edge already in the list into its entry.
func mergeChange(changes []topology.Change, c topology.Change) []topology.Change {
	for i := range changes {
		if changes[i].EdgeID == c.EdgeID {
			changes[i] = c
			return changes
		}
	}
	return append(changes, c)
}

func score(r *UtilizationReport, obj Objective) float64 {
	if obj == MeanUtilization {
		return r.MeanUtilization
	}
	return r.MaxUtilization
}

func clampCost[T constraints.Integer](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
