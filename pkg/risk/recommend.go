package risk

import (
	"fmt"
	"math"
	"time"

	"github.com/dd0wney/cluso-netimpact/pkg/impact"
	"github.com/dd0wney/cluso-netimpact/pkg/topology"
	"github.com/dd0wney/cluso-netimpact/pkg/validation"
)

// Action is the primary guidance for a change set.
type Action string

const (
	Proceed Action = "PROCEED"
	Caution Action = "CAUTION"
	Abort   Action = "ABORT"
)

// Advisory codes.
const (
	AdvisoryGeographic = "GEOGRAPHIC_SHIFT"
	AdvisoryECMPLoss   = "ECMP_LOSS"
	AdvisoryCostSpike  = "COST_SPIKE"
)

// Config holds the recommendation thresholds and the convergence model.
type Config struct {
	SPFDelay            time.Duration `yaml:"spf_delay" json:"spfDelay"`
	PerNodeCalculation  time.Duration `yaml:"per_node_calculation" json:"perNodeCalculation"`
	PropagationPerLevel time.Duration `yaml:"propagation_per_level" json:"propagationPerLevel"`
	ECMPLossThreshold   int           `yaml:"ecmp_loss_threshold" json:"ecmpLossThreshold"`
	CostSpikeRatio      float64       `yaml:"cost_spike_ratio" json:"costSpikeRatio"`
}

// DefaultConfig returns typical OSPF timer values.
func DefaultConfig() Config {
	return Config{
		SPFDelay:            200 * time.Millisecond,
		PerNodeCalculation:  time.Millisecond,
		PropagationPerLevel: 50 * time.Millisecond,
		ECMPLossThreshold:   5,
		CostSpikeRatio:      0.5,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	return validation.NewConfigValidator("risk").
		NonNegativeDuration("spf_delay", c.SPFDelay).
		NonNegativeDuration("per_node_calculation", c.PerNodeCalculation).
		NonNegativeDuration("propagation_per_level", c.PropagationPerLevel).
		NonNegative("ecmp_loss_threshold", c.ECMPLossThreshold).
		PositiveFloat("cost_spike_ratio", c.CostSpikeRatio).
		Validate()
}

// Advisory is one independent concern attached to a recommendation.
type Advisory struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// RollbackChange restores one edge to its original costs.
type RollbackChange struct {
	EdgeID             string `json:"edgeId"`
	AppliedCost        int    `json:"appliedCost"`
	RestoreCost        int    `json:"restoreCost"`
	RestoreReverseCost *int   `json:"restoreReverseCost,omitempty"`
}

// Change returns the topology change that performs the rollback.
func (r RollbackChange) Change() topology.Change {
	return topology.Change{EdgeID: r.EdgeID, NewCost: r.RestoreCost, NewReverseCost: r.RestoreReverseCost}
}

// Convergence estimates OSPF reconvergence after the rollback is applied.
type Convergence struct {
	SPFDelay    time.Duration `json:"spfDelay"`
	Calculation time.Duration `json:"calculation"`
	Propagation time.Duration `json:"propagation"`
	Total       time.Duration `json:"total"`
}

// RollbackPlan describes how to undo the change set.
type RollbackPlan struct {
	Changes       []RollbackChange `json:"changes"`
	Convergence   Convergence      `json:"convergence"`
	FlowsToRevert int              `json:"flowsToRevert"`
}

// Recommendation is the guidance generated from a score.
type Recommendation struct {
	Tier       Tier         `json:"tier"`
	Action     Action       `json:"action"`
	Summary    string       `json:"summary"`
	Advisories []Advisory   `json:"advisories"`
	Rollback   RollbackPlan `json:"rollback"`
}

// Recommend runs the rule cascade: tier to primary action, then each
// concern check, then the rollback plan.
func Recommend(snap *topology.Snapshot, changes []topology.Change, results []impact.Result, score BlastRadiusScore, cfg Config) (*Recommendation, error) {
	originals, err := snap.OriginalCosts(changes)
	if err != nil {
		return nil, err
	}

	rec := &Recommendation{Tier: score.Tier, Advisories: make([]Advisory, 0)}
	switch score.Tier {
	case Low:
		rec.Action = Proceed
		rec.Summary = "Low blast radius. Proceed with the change."
	case Medium:
		rec.Action = Caution
		rec.Summary = "Moderate blast radius. Proceed and monitor affected flows."
	case High:
		rec.Action = Caution
		rec.Summary = "High blast radius. Change requires approval before deployment."
	default:
		rec.Action = Abort
		rec.Summary = "Critical blast radius. Reconsider the change."
	}

	if n := score.Details.CrossCountryReroutes; n > 0 {
		rec.Advisories = append(rec.Advisories, Advisory{
			Code:    AdvisoryGeographic,
			Message: fmt.Sprintf("%d flows reroute between countries; review geographic and regulatory constraints", n),
		})
	}
	if n := score.Details.ECMPLost; n > cfg.ECMPLossThreshold {
		rec.Advisories = append(rec.Advisories, Advisory{
			Code:    AdvisoryECMPLoss,
			Message: fmt.Sprintf("%d flows lose equal-cost redundancy", n),
		})
	}
	if n := countCostSpikes(results, cfg.CostSpikeRatio); n > 0 {
		rec.Advisories = append(rec.Advisories, Advisory{
			Code:    AdvisoryCostSpike,
			Message: fmt.Sprintf("%d flows see a cost increase above %.0f%%", n, cfg.CostSpikeRatio*100),
		})
	}

	rec.Rollback = RollbackPlan{
		Changes:       rollbackChanges(changes, originals),
		Convergence:   EstimateConvergence(len(snap.Nodes), cfg),
		FlowsToRevert: score.Details.AffectedFlows,
	}
	return rec, nil
}

func countCostSpikes(results []impact.Result, ratio float64) int {
	n := 0
	for i := range results {
		r := &results[i]
		if r.OldReachable && r.NewReachable && r.OldCost > 0 && CostChangeRatio(r) > ratio {
			n++
		}
	}
	return n
}

// rollbackChanges lists each changed edge once, in first-change order, with
// the last applied cost and the original costs.
func rollbackChanges(changes []topology.Change, originals []topology.Edge) []RollbackChange {
	out := make([]RollbackChange, 0, len(changes))
	pos := make(map[string]int, len(changes))
	for i, c := range changes {
		if j, ok := pos[c.EdgeID]; ok {
			out[j].AppliedCost = c.NewCost
			continue
		}
		orig := originals[i]
		rc := RollbackChange{EdgeID: c.EdgeID, AppliedCost: c.NewCost, RestoreCost: orig.Cost}
		rc.RestoreReverseCost = topology.IntPtr(orig.EffectiveReverseCost())
		pos[c.EdgeID] = len(out)
		out = append(out, rc)
	}
	return out
}

// EstimateConvergence is SPFDelay + PerNodeCalculation*N +
// PropagationPerLevel*ceil(log2 N).
func EstimateConvergence(nodes int, cfg Config) Convergence {
	c := Convergence{
		SPFDelay:    cfg.SPFDelay,
		Calculation: cfg.PerNodeCalculation * time.Duration(nodes),
	}
	if nodes > 1 {
		levels := int(math.Ceil(math.Log2(float64(nodes))))
		c.Propagation = cfg.PropagationPerLevel * time.Duration(levels)
	}
	c.Total = c.SPFDelay + c.Calculation + c.Propagation
	return c
}
