package risk

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dd0wney/cluso-netimpact/pkg/impact"
	"github.com/dd0wney/cluso-netimpact/pkg/topology"
	"github.com/dd0wney/cluso-netimpact/pkg/topology/topologytest"
)

func fourCountries() *topology.Snapshot {
	return topologytest.New().
		Node("A", "DE").
		Node("B", "FR").
		Node("C", "DE").
		Node("D", "").
		Build()
}

func handResults() []impact.Result {
	return []impact.Result{
		{Source: "A", Destination: "B", OldReachable: true, NewReachable: true, OldCost: 10, NewCost: 15, PathChanged: true, Type: impact.Reroute},
		{Source: "A", Destination: "C", OldReachable: true, NewReachable: true, OldCost: 10, NewCost: 20, Type: impact.CostIncrease},
		{Source: "C", Destination: "D", OldReachable: false, NewReachable: true, NewCost: 5, PathChanged: true, Type: impact.Reroute},
		{Source: "B", Destination: "A", OldReachable: true, NewReachable: true, OldCost: 7, NewCost: 7, Type: impact.Unaffected},
	}
}

func TestScore_HandComputed(t *testing.T) {
	score := Score(fourCountries(), handResults())

	assert.Equal(t, Breakdown{FlowImpact: 25, CostMagnitude: 30, CountryDiversity: 6, CriticalPaths: 10}, score.Breakdown)
	assert.Equal(t, 71, score.Overall)
	assert.Equal(t, Critical, score.Tier)

	d := score.Details
	assert.Equal(t, 3, d.AffectedFlows)
	assert.Equal(t, 12, d.TotalFlows)
	assert.Equal(t, 2, d.Reroutes)
	assert.Equal(t, 2, d.CrossCountryReroutes)
	assert.Equal(t, []string{"DE", "FR"}, d.CountriesTouched)
	assert.InDelta(t, 1.0, d.MaxCostIncrease, 1e-9)
	assert.InDelta(t, 2.5/3, d.MeanCostChange, 1e-9)
}

func TestScore_NoImpact(t *testing.T) {
	score := Score(topologytest.Square(), nil)
	assert.Zero(t, score.Overall)
	assert.Equal(t, Low, score.Tier)
	assert.Empty(t, score.Details.CountriesTouched)
}

func TestScore_SingleNodeNeverDivides(t *testing.T) {
	snap := topologytest.New().Node("A", "DE").Build()
	results := []impact.Result{{Source: "A", Destination: "A", PathChanged: true, Type: impact.Reroute}}

	score := Score(snap, results)
	assert.Zero(t, score.Details.TotalFlows)
	assert.Zero(t, score.Breakdown.FlowImpact)
	assert.LessOrEqual(t, score.Overall, 100)
}

func TestScore_FromSimulation(t *testing.T) {
	snap := topologytest.Square()
	report, err := impact.Simulate(context.Background(), snap,
		[]topology.Change{{EdgeID: "ab", NewCost: 25}}, impact.Options{})
	require.NoError(t, err)

	score := Score(snap, report.Results)
	assert.Equal(t, len(report.Affected()), score.Details.AffectedFlows)
	assert.Positive(t, score.Breakdown.FlowImpact)
	assert.Zero(t, score.Breakdown.CountryDiversity, "square has no countries")
}

func TestCostChangeRatio(t *testing.T) {
	assert.Equal(t, 1.0, CostChangeRatio(&impact.Result{OldReachable: false, NewReachable: true, NewCost: 4}))
	assert.Equal(t, -1.0, CostChangeRatio(&impact.Result{OldReachable: true, OldCost: 4}))
	assert.InDelta(t, 0.25, CostChangeRatio(&impact.Result{OldReachable: true, NewReachable: true, OldCost: 4, NewCost: 5}), 1e-9)
}

func TestTierFor(t *testing.T) {
	cases := map[int]Tier{0: Low, 19: Low, 20: Medium, 39: Medium, 40: High, 69: High, 70: Critical, 100: Critical}
	for score, want := range cases {
		assert.Equal(t, want, TierFor(score), "score %d", score)
	}
}

func TestScoreProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 300
	properties := gopter.NewProperties(parameters)

	types := []impact.Type{impact.Unaffected, impact.CostIncrease, impact.CostDecrease, impact.Reroute, impact.LostECMP, impact.NewECMP}
	genResult := gen.Struct(reflect.TypeOf(impact.Result{}), map[string]gopter.Gen{
		"Source":       gen.OneConstOf("A", "B", "C", "D"),
		"Destination":  gen.OneConstOf("A", "B", "C", "D"),
		"OldCost":      gen.Int64Range(0, 500),
		"NewCost":      gen.Int64Range(0, 500),
		"OldReachable": gen.Bool(),
		"NewReachable": gen.Bool(),
		"PathChanged":  gen.Bool(),
		"ECMPBefore":   gen.Bool(),
		"ECMPAfter":    gen.Bool(),
		"Type":         gen.IntRange(0, len(types)-1).Map(func(i int) impact.Type { return types[i] }),
	})

	properties.Property("overall within [0,100] and factors within caps", prop.ForAll(
		func(results []impact.Result) bool {
			s := Score(fourCountries(), results)
			b := s.Breakdown
			return s.Overall >= 0 && s.Overall <= 100 &&
				b.FlowImpact >= 0 && b.FlowImpact <= MaxFlowImpact &&
				b.CostMagnitude >= 0 && b.CostMagnitude <= MaxCostMagnitude &&
				b.CountryDiversity >= 0 && b.CountryDiversity <= MaxCountryDiversity &&
				b.CriticalPaths >= 0 && b.CriticalPaths <= MaxCriticalPaths &&
				s.Tier == TierFor(s.Overall)
		},
		gen.SliceOf(genResult),
	))

	properties.TestingRun(t)
}

func TestRecommend_Actions(t *testing.T) {
	snap := topologytest.Square()
	changes := []topology.Change{{EdgeID: "ab", NewCost: 25}}

	cases := map[Tier]Action{Low: Proceed, Medium: Caution, High: Caution, Critical: Abort}
	for tier, want := range cases {
		rec, err := Recommend(snap, changes, nil, BlastRadiusScore{Tier: tier}, DefaultConfig())
		require.NoError(t, err)
		assert.Equal(t, want, rec.Action, "tier %s", tier)
		assert.NotEmpty(t, rec.Summary)
		assert.Empty(t, rec.Advisories)
	}
}

func TestRecommend_Advisories(t *testing.T) {
	snap := fourCountries()
	score := BlastRadiusScore{Tier: High, Details: Details{CrossCountryReroutes: 2, ECMPLost: 6, AffectedFlows: 3}}

	rec, err := Recommend(snap, nil, handResults(), score, DefaultConfig())
	require.NoError(t, err)

	codes := make([]string, len(rec.Advisories))
	for i, a := range rec.Advisories {
		codes[i] = a.Code
	}
	assert.Equal(t, []string{AdvisoryGeographic, AdvisoryECMPLoss, AdvisoryCostSpike}, codes)
	assert.Equal(t, 3, rec.Rollback.FlowsToRevert)
}

func TestRecommend_ECMPLossThresholdIsStrict(t *testing.T) {
	score := BlastRadiusScore{Tier: Low, Details: Details{ECMPLost: 5}}
	rec, err := Recommend(topologytest.Square(), nil, nil, score, DefaultConfig())
	require.NoError(t, err)
	assert.Empty(t, rec.Advisories)
}

func TestRecommend_Rollback(t *testing.T) {
	snap := topologytest.New().
		Nodes("A", "B", "C").
		Link("ab", "A", "B", 10).
		Asym("bc", "B", "C", 4, 9).
		Build()
	changes := []topology.Change{
		{EdgeID: "ab", NewCost: 20},
		{EdgeID: "bc", NewCost: 6},
		{EdgeID: "ab", NewCost: 30},
	}

	rec, err := Recommend(snap, changes, nil, BlastRadiusScore{Tier: Low}, DefaultConfig())
	require.NoError(t, err)

	require.Len(t, rec.Rollback.Changes, 2)
	ab := rec.Rollback.Changes[0]
	assert.Equal(t, "ab", ab.EdgeID)
	assert.Equal(t, 30, ab.AppliedCost)
	assert.Equal(t, 10, ab.RestoreCost)
	assert.Equal(t, 10, *ab.RestoreReverseCost)

	bc := rec.Rollback.Changes[1]
	assert.Equal(t, 4, bc.RestoreCost)
	assert.Equal(t, 9, *bc.RestoreReverseCost)

	after, err := snap.ApplyChanges(changes)
	require.NoError(t, err)
	restored, err := after.ApplyChanges([]topology.Change{ab.Change(), bc.Change()})
	require.NoError(t, err)
	assert.Equal(t, snap.Edges[0].Cost, restored.Edges[0].Cost)
	assert.Equal(t, snap.Edges[1].EffectiveReverseCost(), restored.Edges[1].EffectiveReverseCost())
}

func TestRecommend_UnknownEdge(t *testing.T) {
	_, err := Recommend(topologytest.Square(), []topology.Change{{EdgeID: "zz", NewCost: 3}}, nil, BlastRadiusScore{}, DefaultConfig())
	assert.True(t, errors.Is(err, topology.ErrEdgeNotFound))
}

func TestEstimateConvergence(t *testing.T) {
	cfg := DefaultConfig()

	c := EstimateConvergence(16, cfg)
	assert.Equal(t, 200*time.Millisecond, c.SPFDelay)
	assert.Equal(t, 16*time.Millisecond, c.Calculation)
	assert.Equal(t, 200*time.Millisecond, c.Propagation)
	assert.Equal(t, 416*time.Millisecond, c.Total)

	single := EstimateConvergence(1, cfg)
	assert.Zero(t, single.Propagation)
	assert.Equal(t, 201*time.Millisecond, single.Total)

	assert.Equal(t, 150*time.Millisecond, EstimateConvergence(5, cfg).Propagation)
}

func TestConfigValidate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	bad := DefaultConfig()
	bad.SPFDelay = -time.Second
	bad.CostSpikeRatio = 0
	err := bad.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "risk.spf_delay")
	assert.Contains(t, err.Error(), "risk.cost_spike_ratio")
}

func TestAssess(t *testing.T) {
	snap := topologytest.Square()
	changes := []topology.Change{{EdgeID: "ab", NewCost: 25}}

	a, err := Assess(context.Background(), snap, changes, impact.Options{}, DefaultConfig())
	require.NoError(t, err)
	assert.False(t, a.Incomplete)
	assert.Equal(t, Score(snap, a.Impact.Results), a.Score)
	require.NotNil(t, a.Recommendation)
	assert.Equal(t, a.Score.Tier, a.Recommendation.Tier)
	require.Len(t, a.Recommendation.Rollback.Changes, 1)
	assert.Equal(t, 10, a.Recommendation.Rollback.Changes[0].RestoreCost)
	require.Len(t, a.Countries, 1, "square has only the unknown bucket")
	assert.Equal(t, 12, a.Countries[0].FlowCount)
}

func TestAssess_Errors(t *testing.T) {
	snap := topologytest.Square()

	_, err := Assess(context.Background(), snap, []topology.Change{{EdgeID: "zz", NewCost: 3}}, impact.Options{}, DefaultConfig())
	assert.ErrorIs(t, err, topology.ErrEdgeNotFound)

	bad := DefaultConfig()
	bad.CostSpikeRatio = 0
	_, err = Assess(context.Background(), snap, nil, impact.Options{}, bad)
	assert.Error(t, err)
}

func TestAssess_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	a, err := Assess(ctx, topologytest.Square(), []topology.Change{{EdgeID: "ab", NewCost: 25}}, impact.Options{}, DefaultConfig())
	require.NoError(t, err)
	assert.True(t, a.Incomplete)
	assert.Empty(t, a.Impact.Results)
	assert.Zero(t, a.Score.Overall)
}
