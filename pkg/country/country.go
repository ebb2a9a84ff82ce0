// Package country rolls impact results up by source and destination country.
package country

import (
	"sort"

	"github.com/dd0wney/cluso-netimpact/pkg/impact"
	"github.com/dd0wney/cluso-netimpact/pkg/topology"
)

// FlowAggregation summarizes the flows between two countries.
type FlowAggregation struct {
	SourceCountry string  `json:"sourceCountry"`
	DestCountry   string  `json:"destCountry"`
	FlowCount     int     `json:"flowCount"`
	AffectedFlows int     `json:"affectedFlows"`
	AvgCostDelta  float64 `json:"avgCostDelta"`
	MaxCostDelta  int64   `json:"maxCostDelta"`
	Reroutes      int     `json:"reroutes"`
	CostIncreases int     `json:"costIncreases"`
	CostDecreases int     `json:"costDecreases"`
	ECMPGained    int     `json:"ecmpGained"`
	ECMPLost      int     `json:"ecmpLost"`
}

// CrossBorder reports whether the pair spans two different countries.
func (f *FlowAggregation) CrossBorder() bool {
	return f.SourceCountry != f.DestCountry
}

// Lookup maps node ids to their country, UnknownCountry when unset.
type Lookup map[string]string

// NewLookup indexes the snapshot's node countries.
func NewLookup(snap *topology.Snapshot) Lookup {
	l := make(Lookup, len(snap.Nodes))
	for _, n := range snap.Nodes {
		l[n.ID] = n.CountryOrUnknown()
	}
	return l
}

// Of returns the country of a node id; ids missing from the snapshot fall
// into the unknown bucket.
func (l Lookup) Of(id string) string {
	if c, ok := l[id]; ok {
		return c
	}
	return topology.UnknownCountry
}

type key struct {
	src, dst string
}

type accumulator struct {
	agg      FlowAggregation
	deltaSum int64
	deltaN   int
}

// Aggregate groups results by (source country, destination country).
// Deltas are averaged over flows reachable both before and after. Groups are
// sorted by flow count descending, then by country pair. The flow counts sum
// to len(results).
func Aggregate(snap *topology.Snapshot, results []impact.Result) []FlowAggregation {
	lookup := NewLookup(snap)
	groups := make(map[key]*accumulator)

	for i := range results {
		r := &results[i]
		k := key{src: lookup.Of(r.Source), dst: lookup.Of(r.Destination)}
		acc, ok := groups[k]
		if !ok {
			acc = &accumulator{agg: FlowAggregation{SourceCountry: k.src, DestCountry: k.dst}}
			groups[k] = acc
		}

		a := &acc.agg
		a.FlowCount++
		if r.Affected() {
			a.AffectedFlows++
		}
		if r.PathChanged {
			a.Reroutes++
		}
		switch r.Type {
		case impact.CostIncrease:
			a.CostIncreases++
		case impact.CostDecrease:
			a.CostDecreases++
		}
		if !r.ECMPBefore && r.ECMPAfter {
			a.ECMPGained++
		}
		if r.ECMPBefore && !r.ECMPAfter {
			a.ECMPLost++
		}

		if r.OldReachable && r.NewReachable {
			d := r.CostDelta()
			if acc.deltaN == 0 || d > a.MaxCostDelta {
				a.MaxCostDelta = d
			}
			acc.deltaSum += d
			acc.deltaN++
		}
	}

	out := make([]FlowAggregation, 0, len(groups))
	for _, acc := range groups {
		if acc.deltaN > 0 {
			acc.agg.AvgCostDelta = float64(acc.deltaSum) / float64(acc.deltaN)
		}
		out = append(out, acc.agg)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.FlowCount != b.FlowCount {
			return a.FlowCount > b.FlowCount
		}
		if a.SourceCountry != b.SourceCountry {
			return a.SourceCountry < b.SourceCountry
		}
		return a.DestCountry < b.DestCountry
	})
	return out
}
