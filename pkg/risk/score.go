// Package risk turns impact results into a 0-100 blast radius score and a
// rule-based recommendation with a rollback plan.
//
// The four factor weights are fixed heuristics:
//
//	FlowImpact       = min(40, A/T * 100)
//	CostMagnitude    = min(30, mean over A of |delta/old| * 100)
//	CountryDiversity = min(20, countries touched * 3)
//	CriticalPaths    = min(10, cross-country reroutes / max(1, A) * 20)
//
// where A is the number of affected flows and T = N*(N-1).
package risk

import (
	"math"
	"sort"

	"golang.org/x/exp/constraints"

	"github.com/dd0wney/cluso-netimpact/pkg/country"
	"github.com/dd0wney/cluso-netimpact/pkg/impact"
	"github.com/dd0wney/cluso-netimpact/pkg/topology"
)

const (
	MaxFlowImpact       = 40
	MaxCostMagnitude    = 30
	MaxCountryDiversity = 20
	MaxCriticalPaths    = 10

	countryWeight = 3
	criticalScale = 20

	// unreachableCostRatio stands in for |delta/old| when old is zero.
	unreachableCostRatio = 1.0
)

// Tier is the risk band of a score.
type Tier string

const (
	Low      Tier = "LOW"
	Medium   Tier = "MEDIUM"
	High     Tier = "HIGH"
	Critical Tier = "CRITICAL"
)

// TierFor maps an overall score to its band.
func TierFor(score int) Tier {
	switch {
	case score < 20:
		return Low
	case score < 40:
		return Medium
	case score < 70:
		return High
	default:
		return Critical
	}
}

// Breakdown holds the four factors, each rounded for display.
type Breakdown struct {
	FlowImpact       int `json:"flowImpact"`
	CostMagnitude    int `json:"costMagnitude"`
	CountryDiversity int `json:"countryDiversity"`
	CriticalPaths    int `json:"criticalPaths"`
}

// Details are the supporting measurements behind the factors.
type Details struct {
	AffectedFlows        int      `json:"affectedFlows"`
	TotalFlows           int      `json:"totalFlows"`
	AffectedShare        float64  `json:"affectedShare"`
	MeanCostChange       float64  `json:"meanCostChange"`
	MaxCostIncrease      float64  `json:"maxCostIncrease"`
	CountriesTouched     []string `json:"countriesTouched"`
	Reroutes             int      `json:"reroutes"`
	CrossCountryReroutes int      `json:"crossCountryReroutes"`
	ECMPLost             int      `json:"ecmpLost"`
	ECMPGained           int      `json:"ecmpGained"`
	LostReachability     int      `json:"lostReachability"`
}

// BlastRadiusScore is the scored impact of a change set.
type BlastRadiusScore struct {
	Overall   int       `json:"overall"`
	Tier      Tier      `json:"tier"`
	Breakdown Breakdown `json:"breakdown"`
	Details   Details   `json:"details"`
}

// Score computes the blast radius of a result set against the snapshot it
// was simulated on.
func Score(snap *topology.Snapshot, results []impact.Result) BlastRadiusScore {
	lookup := country.NewLookup(snap)
	n := len(snap.Nodes)
	d := Details{TotalFlows: n * (n - 1)}

	touched := make(map[string]bool)
	var ratioSum float64
	for i := range results {
		r := &results[i]
		if r.ECMPBefore && !r.ECMPAfter {
			d.ECMPLost++
		}
		if !r.ECMPBefore && r.ECMPAfter {
			d.ECMPGained++
		}
		if !r.Affected() {
			continue
		}
		d.AffectedFlows++

		ratio := CostChangeRatio(r)
		ratioSum += math.Abs(ratio)
		if ratio > d.MaxCostIncrease {
			d.MaxCostIncrease = ratio
		}
		if r.OldReachable && !r.NewReachable {
			d.LostReachability++
		}

		src, dst := lookup.Of(r.Source), lookup.Of(r.Destination)
		for _, c := range []string{src, dst} {
			if c != topology.UnknownCountry {
				touched[c] = true
			}
		}
		if r.PathChanged {
			d.Reroutes++
			if src != dst {
				d.CrossCountryReroutes++
			}
		}
	}

	if d.TotalFlows > 0 {
		d.AffectedShare = float64(d.AffectedFlows) / float64(d.TotalFlows)
	}
	if d.AffectedFlows > 0 {
		d.MeanCostChange = ratioSum / float64(d.AffectedFlows)
	}
	d.CountriesTouched = make([]string, 0, len(touched))
	for c := range touched {
		d.CountriesTouched = append(d.CountriesTouched, c)
	}
	sort.Strings(d.CountriesTouched)

	flow := capAt(d.AffectedShare*100, MaxFlowImpact)
	cost := capAt(d.MeanCostChange*100, MaxCostMagnitude)
	diversity := capAt(float64(len(touched)*countryWeight), MaxCountryDiversity)
	critical := capAt(float64(d.CrossCountryReroutes)/float64(max(1, d.AffectedFlows))*criticalScale, MaxCriticalPaths)

	overall := clamp(int(math.Round(flow+cost+diversity+critical)), 0, 100)
	return BlastRadiusScore{
		Overall: overall,
		Tier:    TierFor(overall),
		Breakdown: Breakdown{
			FlowImpact:       int(math.Round(flow)),
			CostMagnitude:    int(math.Round(cost)),
			CountryDiversity: int(math.Round(diversity)),
			CriticalPaths:    int(math.Round(critical)),
		},
		Details: d,
	}
}

// CostChangeRatio is (new-old)/old for one flow. A flow that was unreachable
// before has no denominator and counts as a full change.
func CostChangeRatio(r *impact.Result) float64 {
	if !r.OldReachable || r.OldCost == 0 {
		return unreachableCostRatio
	}
	if !r.NewReachable {
		return -unreachableCostRatio
	}
	return float64(r.NewCost-r.OldCost) / float64(r.OldCost)
}

func capAt[T constraints.Float](v, limit T) T {
	if v > limit {
		return limit
	}
	return v
}

func clamp[T constraints.Integer](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
