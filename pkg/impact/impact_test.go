package impact

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/dd0wney/cluso-netimpact/pkg/parallel"
	"github.com/dd0wney/cluso-netimpact/pkg/topology"
	"github.com/dd0wney/cluso-netimpact/pkg/topology/topologytest"
)

func find(t *testing.T, report *Report, src, dst string) Result {
	t.Helper()
	for _, r := range report.Results {
		if r.Source == src && r.Destination == dst {
			return r
		}
	}
	t.Fatalf("no result for %s->%s", src, dst)
	return Result{}
}

func TestSimulate_SquareReroute(t *testing.T) {
	report, err := Simulate(context.Background(), topologytest.Square(),
		[]topology.Change{{EdgeID: "ab", NewCost: 25}}, Options{})
	require.NoError(t, err)

	ad := find(t, report, "A", "D")
	assert.Equal(t, []string{"A", "B", "D"}, ad.OldPath)
	assert.Equal(t, []string{"A", "C", "D"}, ad.NewPath)
	assert.Equal(t, int64(20), ad.OldCost)
	assert.Equal(t, int64(21), ad.NewCost)
	assert.True(t, ad.PathChanged)
	assert.Equal(t, Reroute, ad.Type)

	ab := find(t, report, "A", "B")
	assert.False(t, ab.PathChanged)
	assert.Equal(t, CostIncrease, ab.Type)
	assert.Equal(t, int64(15), ab.CostDelta())

	cd := find(t, report, "C", "D")
	assert.Equal(t, Unaffected, cd.Type)
}

func TestSimulate_ResultCount(t *testing.T) {
	snaps := map[string]*topology.Snapshot{
		"square": topologytest.Square(),
		"grid":   topologytest.Grid(3, 4),
		"europe": topologytest.Europe(),
	}
	for name, snap := range snaps {
		t.Run(name, func(t *testing.T) {
			change := []topology.Change{{EdgeID: snap.Edges[0].ID, NewCost: 100}}
			report, err := Simulate(context.Background(), snap, change, Options{BatchSize: 3})
			require.NoError(t, err)

			n := len(snap.Nodes)
			assert.Len(t, report.Results, n*(n-1))
			assert.Equal(t, n*(n-1), report.TotalFlows)
			assert.False(t, report.Incomplete)

			total := 0
			for _, c := range report.Counts {
				total += c
			}
			assert.Equal(t, n*(n-1), total)
		})
	}
}

func TestSimulate_NoChanges(t *testing.T) {
	report, err := Simulate(context.Background(), topologytest.Grid(3, 3), nil, Options{})
	require.NoError(t, err)

	assert.Equal(t, 72, report.Counts[Unaffected])
	assert.Empty(t, report.Affected())
}

func TestSimulate_LostECMP(t *testing.T) {
	report, err := Simulate(context.Background(), topologytest.Diamond(),
		[]topology.Change{{EdgeID: "e1", NewCost: 6}}, Options{})
	require.NoError(t, err)

	ab := find(t, report, "A", "B")
	assert.True(t, ab.ECMPBefore)
	assert.False(t, ab.ECMPAfter)
	assert.Equal(t, []string{"A", "M", "B"}, ab.NewPath)
	assert.Equal(t, LostECMP, ab.Type)
	assert.Zero(t, ab.CostDelta())
}

func TestSimulate_NewECMP(t *testing.T) {
	snap := topologytest.Diamond()
	snap.Edges[0].Cost = 7

	report, err := Simulate(context.Background(), snap,
		[]topology.Change{{EdgeID: "e3", NewCost: 5}}, Options{})
	require.NoError(t, err)

	ab := find(t, report, "A", "B")
	assert.False(t, ab.ECMPBefore)
	assert.True(t, ab.ECMPAfter)
	assert.Equal(t, []string{"A", "B"}, ab.NewPath)
	assert.Equal(t, NewECMP, ab.Type)
}

func TestSimulate_DoesNotMutateInput(t *testing.T) {
	snap := topologytest.Square()
	pristine := snap.Clone()

	_, err := Simulate(context.Background(), snap,
		[]topology.Change{{EdgeID: "ab", NewCost: 25, NewReverseCost: topology.IntPtr(3)}}, Options{})
	require.NoError(t, err)

	if diff := cmp.Diff(pristine, snap); diff != "" {
		t.Errorf("snapshot mutated (-want +got):\n%s", diff)
	}
}

func TestSimulate_InvalidChanges(t *testing.T) {
	snap := topologytest.Square()

	_, err := Simulate(context.Background(), snap, []topology.Change{{EdgeID: "nope", NewCost: 5}}, Options{})
	assert.True(t, errors.Is(err, topology.ErrEdgeNotFound))

	_, err = Simulate(context.Background(), snap, []topology.Change{{EdgeID: "ab", NewCost: 0}}, Options{})
	assert.True(t, errors.Is(err, topology.ErrInvalidCost))

	_, err = Simulate(context.Background(), snap, []topology.Change{{EdgeID: "ab", NewCost: 70000}}, Options{})
	assert.True(t, errors.Is(err, topology.ErrInvalidCost))
}

func TestSimulate_ProgressMonotonic(t *testing.T) {
	var percents []int
	_, err := Simulate(context.Background(), topologytest.Grid(5, 5),
		[]topology.Change{{EdgeID: "h0_0", NewCost: 9}},
		Options{BatchSize: 2, Progress: func(p parallel.Progress) { percents = append(percents, p.Percent) }})
	require.NoError(t, err)

	require.NotEmpty(t, percents)
	assert.Equal(t, 100, percents[len(percents)-1])
	for i := 1; i < len(percents); i++ {
		assert.Greater(t, percents[i], percents[i-1])
	}
}

func TestSimulate_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	snap := topologytest.Grid(4, 4)
	report, err := Simulate(ctx, snap, []topology.Change{{EdgeID: "h0_0", NewCost: 9}}, Options{
		BatchSize: 4,
		Progress: func(p parallel.Progress) {
			if p.Done == 4 {
				cancel()
			}
		},
	})
	require.NoError(t, err)

	assert.True(t, report.Incomplete)
	assert.Equal(t, 4, report.Evaluated)
	assert.Len(t, report.Results, 4*15)
	for _, r := range report.Results {
		assert.Contains(t, []string{"g0_0", "g1_0", "g2_0", "g3_0"}, r.Source)
	}
}

func TestSimulate_PoolMatchesSerial(t *testing.T) {
	defer goleak.VerifyNone(t)

	pool, err := parallel.NewWorkerPool(4)
	require.NoError(t, err)
	defer pool.Close()

	snap := topologytest.Grid(4, 3)
	changes := []topology.Change{{EdgeID: "v1_0", NewCost: 4}}

	serial, err := Simulate(context.Background(), snap, changes, Options{})
	require.NoError(t, err)
	pooled, err := Simulate(context.Background(), snap, changes, Options{Pool: pool, BatchSize: 5})
	require.NoError(t, err)

	if diff := cmp.Diff(serial.Results, pooled.Results); diff != "" {
		t.Errorf("pooled results differ (-serial +pooled):\n%s", diff)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		r    Result
		want Type
	}{
		{"same", Result{OldCost: 5, NewCost: 5}, Unaffected},
		{"up", Result{OldCost: 5, NewCost: 8}, CostIncrease},
		{"down", Result{OldCost: 5, NewCost: 2}, CostDecrease},
		{"moved", Result{PathChanged: true}, Reroute},
		{"moved ecmp kept", Result{PathChanged: true, ECMPBefore: true, ECMPAfter: true}, Reroute},
		{"lost", Result{PathChanged: true, ECMPBefore: true}, LostECMP},
		{"gained", Result{PathChanged: true, ECMPAfter: true}, NewECMP},
		{"same path ecmp flip", Result{OldCost: 5, NewCost: 5, ECMPBefore: true}, Unaffected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(&tt.r))
		})
	}
}

func TestSimulateProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50

	properties := gopter.NewProperties(parameters)

	properties.Property("a full run yields N*(N-1) results", prop.ForAll(
		func(w, h, cost int) bool {
			snap := topologytest.Grid(w, h)
			if len(snap.Edges) == 0 {
				return true
			}
			report, err := Simulate(context.Background(), snap,
				[]topology.Change{{EdgeID: snap.Edges[0].ID, NewCost: cost}}, Options{})
			if err != nil {
				return false
			}
			n := len(snap.Nodes)
			return len(report.Results) == n*(n-1) && !report.Incomplete
		},
		gen.IntRange(1, 4),
		gen.IntRange(1, 4),
		gen.IntRange(1, 20),
	))

	properties.Property("unchanged costs leave every flow unaffected", prop.ForAll(
		func(w, h int) bool {
			report, err := Simulate(context.Background(), topologytest.Grid(w, h), nil, Options{})
			if err != nil {
				return false
			}
			return len(report.Affected()) == 0
		},
		gen.IntRange(1, 4),
		gen.IntRange(1, 4),
	))

	properties.TestingRun(t)
}
