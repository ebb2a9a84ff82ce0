// Package impact simulates link cost changes and classifies how every
// ordered node pair's shortest path reacts.
package impact

import (
	"context"
	"slices"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/dd0wney/cluso-netimpact/pkg/logging"
	"github.com/dd0wney/cluso-netimpact/pkg/metrics"
	"github.com/dd0wney/cluso-netimpact/pkg/parallel"
	"github.com/dd0wney/cluso-netimpact/pkg/spf"
	"github.com/dd0wney/cluso-netimpact/pkg/topology"
)

// Type classifies the effect of a change on one flow.
type Type string

const (
	Unaffected   Type = "unaffected"
	CostIncrease Type = "cost_increase"
	CostDecrease Type = "cost_decrease"
	Reroute      Type = "reroute"
	LostECMP     Type = "lost_ecmp"
	NewECMP      Type = "new_ecmp"
)

// Types lists every classification in reporting order.
var Types = []Type{Unaffected, CostIncrease, CostDecrease, Reroute, LostECMP, NewECMP}

// Result is the before/after comparison for one ordered pair. Costs of an
// unreachable side are zero; check the Reachable flags.
type Result struct {
	Source       string   `json:"source"`
	Destination  string   `json:"destination"`
	OldPath      []string `json:"oldPath"`
	NewPath      []string `json:"newPath"`
	OldCost      int64    `json:"oldCost"`
	NewCost      int64    `json:"newCost"`
	OldReachable bool     `json:"oldReachable"`
	NewReachable bool     `json:"newReachable"`
	PathChanged  bool     `json:"pathChanged"`
	ECMPBefore   bool     `json:"ecmpBefore"`
	ECMPAfter    bool     `json:"ecmpAfter"`
	Type         Type     `json:"impactType"`
}

// CostDelta is NewCost - OldCost.
func (r *Result) CostDelta() int64 {
	return r.NewCost - r.OldCost
}

// Affected reports whether the flow changed at all.
func (r *Result) Affected() bool {
	return r.Type != Unaffected
}

// Classify applies the precedence rules: identical sequence and cost is
// unaffected; identical sequence with a new cost is an increase or decrease;
// a different sequence is a reroute, refined to lost_ecmp or new_ecmp when
// the multipath status flips. Losing or gaining reachability is a reroute.
func Classify(r *Result) Type {
	if !r.PathChanged {
		switch {
		case r.NewCost == r.OldCost:
			return Unaffected
		case r.NewCost > r.OldCost:
			return CostIncrease
		default:
			return CostDecrease
		}
	}
	switch {
	case r.ECMPBefore && !r.ECMPAfter:
		return LostECMP
	case !r.ECMPBefore && r.ECMPAfter:
		return NewECMP
	default:
		return Reroute
	}
}

// Options configures Simulate.
type Options struct {
	BatchSize int // sources per batch
	Pool      *parallel.WorkerPool
	Progress  parallel.ProgressFunc
	Logger    logging.Logger
	Metrics   *metrics.Registry
}

// Report is the outcome of a simulation. Results are ordered by source then
// destination in snapshot order.
type Report struct {
	Results     []Result     `json:"results"`
	Counts      map[Type]int `json:"counts"`
	TotalFlows  int          `json:"totalFlows"`
	Sources     int          `json:"sources"`
	Evaluated   int          `json:"evaluatedSources"`
	Incomplete  bool         `json:"incomplete"`
	Fingerprint string       `json:"fingerprint"`
}

// Affected returns the results whose type is not unaffected.
func (r *Report) Affected() []Result {
	out := make([]Result, 0)
	for _, res := range r.Results {
		if res.Affected() {
			out = append(out, res)
		}
	}
	return out
}

// Simulate applies changes to a copy of snap and compares every ordered pair
// of distinct nodes before and after. Each source is one work item: one full
// SPF tree per side covers all of its destinations. Invalid changes are
// rejected before any path computation. A cancelled context returns the
// sources finished so far with Incomplete set.
func Simulate(ctx context.Context, snap *topology.Snapshot, changes []topology.Change, opts Options) (*Report, error) {
	before, err := spf.NewGraph(snap)
	if err != nil {
		opts.Metrics.RecordAnalysisError("impact")
		return nil, err
	}
	afterSnap, err := snap.ApplyChanges(changes)
	if err != nil {
		opts.Metrics.RecordAnalysisError("impact")
		return nil, err
	}
	after, err := spf.NewGraph(afterSnap)
	if err != nil {
		opts.Metrics.RecordAnalysisError("impact")
		return nil, err
	}

	fp := topology.Fingerprint(snap, changes)
	ctx, span := otel.Tracer("netimpact/impact").Start(ctx, "impact.Simulate")
	defer span.End()
	span.SetAttributes(
		attribute.String("netimpact.fingerprint", fp),
		attribute.Int("netimpact.changes", len(changes)),
	)

	log := logging.OrNop(opts.Logger).With(logging.Analysis("impact"), logging.Fingerprint(fp))
	timer := logging.StartTimer(log, "impact simulation",
		logging.Int("nodes", before.Len()),
		logging.Int("changes", len(changes)))

	n := before.Len()
	perSource := make([][]Result, n)
	outcome := parallel.RunBatches(ctx, n, parallel.BatchOptions{
		BatchSize: opts.BatchSize,
		Pool:      opts.Pool,
		Progress:  opts.Progress,
	}, func(s int) {
		perSource[s] = compareSource(before.Tree(s), after.Tree(s))
	})

	report := &Report{
		Results:     make([]Result, 0, outcome.Done*(n-1)),
		Counts:      make(map[Type]int, len(Types)),
		TotalFlows:  n * (n - 1),
		Sources:     n,
		Evaluated:   outcome.Done,
		Incomplete:  outcome.Cancelled,
		Fingerprint: fp,
	}
	for _, results := range perSource[:outcome.Done] {
		report.Results = append(report.Results, results...)
	}
	for _, res := range report.Results {
		report.Counts[res.Type]++
	}

	if report.Incomplete {
		log.Warn("impact simulation cancelled",
			logging.Int("evaluated_sources", report.Evaluated),
			logging.Int("sources", n))
	}
	span.SetAttributes(
		attribute.Int("netimpact.results", len(report.Results)),
		attribute.Bool("netimpact.incomplete", report.Incomplete),
	)
	elapsed := timer.End(
		logging.Int("results", len(report.Results)),
		logging.Int("affected", len(report.Results)-report.Counts[Unaffected]))

	counts := make(map[string]int, len(report.Counts))
	for t, c := range report.Counts {
		counts[string(t)] = c
	}
	opts.Metrics.AddSPFRuns(2 * outcome.Done)
	opts.Metrics.AddImpactedFlows(counts)
	opts.Metrics.RecordAnalysis("impact", elapsed, len(report.Results), report.Incomplete)
	return report, nil
}

// compareSource emits one result per destination other than the source, in
// node order. Both trees share node indexes since changes only touch costs.
func compareSource(before, after *spf.Tree) []Result {
	g := before.Graph()
	s := before.Source()
	out := make([]Result, 0, g.Len()-1)
	for d := 0; d < g.Len(); d++ {
		if d == s {
			continue
		}
		r := Result{
			Source:       g.NodeID(s),
			Destination:  g.NodeID(d),
			OldPath:      before.Path(d),
			NewPath:      after.Path(d),
			OldReachable: before.Reachable(d),
			NewReachable: after.Reachable(d),
			ECMPBefore:   before.IsECMP(d),
			ECMPAfter:    after.IsECMP(d),
		}
		if r.OldReachable {
			r.OldCost = before.Dist(d)
		}
		if r.NewReachable {
			r.NewCost = after.Dist(d)
		}
		r.PathChanged = !slices.Equal(r.OldPath, r.NewPath)
		r.Type = Classify(&r)
		out = append(out, r)
	}
	return out
}
