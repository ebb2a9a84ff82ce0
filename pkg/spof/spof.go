// Package spof ranks nodes and links whose individual removal partitions the
// network or isolates a node.
package spof

import (
	"context"
	"sort"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/dd0wney/cluso-netimpact/pkg/connectivity"
	"github.com/dd0wney/cluso-netimpact/pkg/logging"
	"github.com/dd0wney/cluso-netimpact/pkg/metrics"
	"github.com/dd0wney/cluso-netimpact/pkg/parallel"
	"github.com/dd0wney/cluso-netimpact/pkg/topology"
)

// DefaultMaxResults bounds Report.Points when Options.MaxResults is zero.
const DefaultMaxResults = 20

// Kind is the element type of a failure point.
type Kind string

const (
	KindNode Kind = "node"
	KindEdge Kind = "edge"
)

// Severity is the criticality tier of a failure point.
type Severity string

const (
	Critical Severity = "CRITICAL"
	High     Severity = "HIGH"
	Medium   Severity = "MEDIUM"
	Low      Severity = "LOW"
)

// Rank orders severities, most severe first.
func (s Severity) Rank() int {
	switch s {
	case Critical:
		return 0
	case High:
		return 1
	case Medium:
		return 2
	default:
		return 3
	}
}

// Point is one single point of failure.
type Point struct {
	ElementID     string   `json:"elementId"`
	Kind          Kind     `json:"kind"`
	IsolatedNodes int      `json:"isolatedNodes"`
	Isolated      []string `json:"isolated,omitempty"`
	Partitions    int      `json:"partitions"`
	AffectedPaths int      `json:"affectedPaths"`
	Severity      Severity `json:"severity"`
}

// Options configures Detect.
type Options struct {
	MaxResults int // DefaultMaxResults when zero, unlimited when negative
	BatchSize  int
	Pool       *parallel.WorkerPool
	Progress   parallel.ProgressFunc
	Logger     logging.Logger
	Metrics    *metrics.Registry
}

// Report is the ranked result of a scan.
type Report struct {
	Points     []Point `json:"points"`
	Found      int     `json:"found"`
	Evaluated  int     `json:"evaluated"`
	Total      int     `json:"total"`
	Incomplete bool    `json:"incomplete"`
}

// Detect removes every edge, then every node, one at a time and records the
// removals that leave the network disconnected or isolate a node. A
// cancelled context returns the elements scanned so far with Incomplete set.
func Detect(ctx context.Context, snap *topology.Snapshot, opts Options) (*Report, error) {
	a, err := connectivity.NewAnalyzer(snap)
	if err != nil {
		opts.Metrics.RecordAnalysisError("spof")
		return nil, err
	}

	ctx, span := otel.Tracer("netimpact/spof").Start(ctx, "spof.Detect")
	defer span.End()

	log := logging.OrNop(opts.Logger).With(logging.Analysis("spof"))
	timer := logging.StartTimer(log, "spof scan",
		logging.Int("nodes", len(snap.Nodes)),
		logging.Int("edges", len(snap.Edges)))

	edges := len(snap.Edges)
	total := edges + len(snap.Nodes)
	n := len(snap.Nodes)
	flows := n * (n - 1)

	found := make([]*Point, total)
	outcome := parallel.RunBatches(ctx, total, parallel.BatchOptions{
		BatchSize: opts.BatchSize,
		Pool:      opts.Pool,
		Progress:  opts.Progress,
	}, func(i int) {
		if i < edges {
			found[i] = evaluate(a.WithoutEdge(i), snap.Edges[i].ID, KindEdge, 0, flows)
			return
		}
		found[i] = evaluate(a.WithoutNode(i-edges), snap.Nodes[i-edges].ID, KindNode, n, flows)
	})

	report := &Report{
		Evaluated:  outcome.Done,
		Total:      total,
		Incomplete: outcome.Cancelled,
		Points:     make([]Point, 0),
	}
	for _, p := range found[:outcome.Done] {
		if p != nil {
			report.Points = append(report.Points, *p)
		}
	}
	report.Found = len(report.Points)
	Sort(report.Points)

	limit := opts.MaxResults
	if limit == 0 {
		limit = DefaultMaxResults
	}
	if limit > 0 && len(report.Points) > limit {
		report.Points = report.Points[:limit]
	}

	counts := make(map[string]int)
	for _, p := range report.Points {
		counts[string(p.Severity)]++
	}
	span.SetAttributes(
		attribute.Int("netimpact.spof_found", report.Found),
		attribute.Bool("netimpact.incomplete", report.Incomplete),
	)
	elapsed := timer.End(logging.Int("found", report.Found), logging.Bool("incomplete", report.Incomplete))
	opts.Metrics.SetSPOFCounts(counts)
	opts.Metrics.RecordAnalysis("spof", elapsed, outcome.Done, report.Incomplete)
	return report, nil
}

// evaluate turns one removal result into a failure point, or nil when the
// network survives it. nodes is non-zero for node removals and adds the
// removed node's own flows to the estimate.
func evaluate(res *connectivity.Result, id string, kind Kind, nodes, flows int) *Point {
	if res.Connected && len(res.Isolated) == 0 {
		return nil
	}
	p := &Point{
		ElementID:     id,
		Kind:          kind,
		IsolatedNodes: len(res.Isolated),
		Isolated:      res.Isolated,
		Partitions:    res.Partitions(),
		AffectedPaths: AffectedPaths(res.Components),
	}
	if kind == KindNode {
		p.AffectedPaths += 2 * (nodes - 1)
	}
	p.Severity = Classify(p.Partitions, p.IsolatedNodes, p.AffectedPaths, flows)
	return p
}

// AffectedPaths estimates the directed flows that cross partitions:
// 2 * sum over component pairs of |Ci| * |Cj|.
func AffectedPaths(components [][]string) int {
	total, sum := 0, 0
	for _, c := range components {
		total += len(c)
	}
	remaining := total
	for _, c := range components {
		remaining -= len(c)
		sum += len(c) * remaining
	}
	return 2 * sum
}

// Classify applies the tier rules in precedence order.
func Classify(partitions, isolated, affected, flows int) Severity {
	var share float64
	if flows > 0 {
		share = float64(affected) / float64(flows)
	}
	switch {
	case partitions > 2 || share > 0.5:
		return Critical
	case partitions == 2 || share > 0.25:
		return High
	case isolated > 0 || share > 0.10:
		return Medium
	default:
		return Low
	}
}

// Sort orders points by tier, then affected paths descending, then id.
func Sort(points []Point) {
	sort.SliceStable(points, func(i, j int) bool {
		a, b := points[i], points[j]
		if ra, rb := a.Severity.Rank(), b.Severity.Rank(); ra != rb {
			return ra < rb
		}
		if a.AffectedPaths != b.AffectedPaths {
			return a.AffectedPaths > b.AffectedPaths
		}
		return a.ElementID < b.ElementID
	})
}
