package spf

import (
	"context"
	"sort"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/dd0wney/cluso-netimpact/pkg/logging"
	"github.com/dd0wney/cluso-netimpact/pkg/metrics"
	"github.com/dd0wney/cluso-netimpact/pkg/parallel"
	"github.com/dd0wney/cluso-netimpact/pkg/topology"
)

const (
	// DefaultTopPairs bounds SampleReport.TopPairs.
	DefaultTopPairs = 10
)

// SampleOptions configures SampleNetworkECMP.
type SampleOptions struct {
	MaxPairs  int // ordered pairs to evaluate; 0 evaluates all of them
	MaxPaths  int // enumeration cap for divergence counting
	TopPairs  int
	BatchSize int // sources per batch
	Pool      *parallel.WorkerPool
	Progress  parallel.ProgressFunc
	Logger    logging.Logger
	Metrics   *metrics.Registry
}

// ECMPPair is one sampled pair with more than one equal-cost path.
type ECMPPair struct {
	Source      string `json:"source"`
	Destination string `json:"destination"`
	PathCount   int64  `json:"pathCount"`
	Cost        int64  `json:"cost"`
}

// NodeFrequency counts how often a node is a divergence point.
type NodeFrequency struct {
	NodeID string `json:"nodeId"`
	Count  int    `json:"count"`
}

// SampleReport summarizes ECMP prevalence across the network.
type SampleReport struct {
	PairsTotal     int             `json:"pairsTotal"`
	PairsEvaluated int             `json:"pairsEvaluated"`
	ReachablePairs int             `json:"reachablePairs"`
	ECMPPairs      int             `json:"ecmpPairs"`
	ECMPRatio      float64         `json:"ecmpRatio"`
	MaxPathCount   int64           `json:"maxPathCount"`
	TopPairs       []ECMPPair      `json:"topPairs"`
	Divergence     []NodeFrequency `json:"divergence"`
	Incomplete     bool            `json:"incomplete"`
}

type sourceSample struct {
	evaluated  int
	reachable  int
	pairs      []ECMPPair
	divergence map[int]int
}

// SampleNetworkECMP evaluates a deterministic stride sample of ordered pairs
// and reports how much of the network has equal-cost alternatives. Work is
// batched per source with one full SPF tree each. A cancelled context yields
// the sources finished so far with Incomplete set.
func SampleNetworkECMP(ctx context.Context, snap *topology.Snapshot, opts SampleOptions) (*SampleReport, error) {
	g, err := NewGraph(snap)
	if err != nil {
		opts.Metrics.RecordAnalysisError("ecmp_sample")
		return nil, err
	}

	ctx, span := otel.Tracer("netimpact/spf").Start(ctx, "spf.SampleNetworkECMP")
	defer span.End()

	log := logging.OrNop(opts.Logger).With(logging.Analysis("ecmp_sample"))
	timer := logging.StartTimer(log, "ecmp sampling", logging.Count(g.Len()))

	n := g.Len()
	total := n * (n - 1)
	stride := 1
	if opts.MaxPairs > 0 && total > opts.MaxPairs {
		stride = (total + opts.MaxPairs - 1) / opts.MaxPairs
	}
	maxPaths := opts.MaxPaths
	if maxPaths <= 0 {
		maxPaths = DefaultMaxPaths
	}

	samples := make([]sourceSample, n)
	outcome := parallel.RunBatches(ctx, n, parallel.BatchOptions{
		BatchSize: opts.BatchSize,
		Pool:      opts.Pool,
		Progress:  opts.Progress,
	}, func(s int) {
		samples[s] = g.sampleSource(s, stride, maxPaths)
	})

	report := &SampleReport{PairsTotal: total, Incomplete: outcome.Cancelled}
	divergence := make(map[int]int)
	var pairs []ECMPPair
	for s := 0; s < outcome.Done; s++ {
		smp := samples[s]
		report.PairsEvaluated += smp.evaluated
		report.ReachablePairs += smp.reachable
		report.ECMPPairs += len(smp.pairs)
		pairs = append(pairs, smp.pairs...)
		for node, c := range smp.divergence {
			divergence[node] += c
		}
	}
	if report.ReachablePairs > 0 {
		report.ECMPRatio = float64(report.ECMPPairs) / float64(report.ReachablePairs)
	}

	sort.SliceStable(pairs, func(i, j int) bool {
		return pairs[i].PathCount > pairs[j].PathCount
	})
	for _, p := range pairs {
		if p.PathCount > report.MaxPathCount {
			report.MaxPathCount = p.PathCount
		}
	}
	top := opts.TopPairs
	if top <= 0 {
		top = DefaultTopPairs
	}
	if len(pairs) > top {
		pairs = pairs[:top]
	}
	report.TopPairs = pairs

	for node, c := range divergence {
		report.Divergence = append(report.Divergence, NodeFrequency{NodeID: g.NodeID(node), Count: c})
	}
	sort.Slice(report.Divergence, func(i, j int) bool {
		a, b := report.Divergence[i], report.Divergence[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.NodeID < b.NodeID
	})

	span.SetAttributes(
		attribute.Int("netimpact.pairs_evaluated", report.PairsEvaluated),
		attribute.Int("netimpact.ecmp_pairs", report.ECMPPairs),
		attribute.Bool("netimpact.incomplete", report.Incomplete),
	)
	elapsed := timer.End(
		logging.Int("pairs_evaluated", report.PairsEvaluated),
		logging.Int("ecmp_pairs", report.ECMPPairs),
		logging.Bool("incomplete", report.Incomplete),
	)
	opts.Metrics.AddSPFRuns(outcome.Done)
	opts.Metrics.RecordAnalysis("ecmp_sample", elapsed, report.PairsEvaluated, report.Incomplete)
	return report, nil
}

// sampleSource evaluates the selected destinations of one source. Pair k is
// selected when k is a multiple of stride, with k = s*(n-1) + position of
// the destination among the nodes other than s.
func (g *Graph) sampleSource(s, stride, maxPaths int) sourceSample {
	n := g.Len()
	out := sourceSample{divergence: make(map[int]int)}
	t := g.Tree(s)
	k := s * (n - 1)
	for d := 0; d < n; d++ {
		if d == s {
			continue
		}
		selected := k%stride == 0
		k++
		if !selected {
			continue
		}
		out.evaluated++
		if !t.Reachable(d) {
			continue
		}
		out.reachable++
		if !t.IsECMP(d) {
			continue
		}
		out.pairs = append(out.pairs, ECMPPair{
			Source:      g.NodeID(s),
			Destination: g.NodeID(d),
			PathCount:   t.PathCount(d),
			Cost:        t.Dist(d),
		})
		enum := t.Enumerate(d, maxPaths)
		for _, id := range enum.Divergence {
			out.divergence[g.index[id]]++
		}
	}
	return out
}
