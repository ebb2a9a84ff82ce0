package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dd0wney/cluso-netimpact/pkg/connectivity"
	"github.com/dd0wney/cluso-netimpact/pkg/impact"
	"github.com/dd0wney/cluso-netimpact/pkg/risk"
	"github.com/dd0wney/cluso-netimpact/pkg/scenario"
	"github.com/dd0wney/cluso-netimpact/pkg/spf"
	"github.com/dd0wney/cluso-netimpact/pkg/spof"
	"github.com/dd0wney/cluso-netimpact/pkg/topology"
	"github.com/dd0wney/cluso-netimpact/pkg/topology/topologytest"
	"github.com/dd0wney/cluso-netimpact/pkg/traffic"
)

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := NewRootCmd(&out, &errOut)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func writeTopology(t *testing.T, snap *topology.Snapshot, changes ...topology.Change) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "net.yaml")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, topology.Encode(f, &topology.Document{Snapshot: *snap, Changes: changes}, topology.FormatYAML))
	return path
}

func TestPathCommand(t *testing.T) {
	file := writeTopology(t, topologytest.Square())

	t.Run("json", func(t *testing.T) {
		out, _, err := run(t, "path", "-t", file, "A", "D", "-o", "json")
		require.NoError(t, err)

		var got struct {
			Reachable bool            `json:"reachable"`
			Result    *spf.PathResult `json:"result"`
		}
		require.NoError(t, json.Unmarshal([]byte(out), &got))
		assert.True(t, got.Reachable)
		assert.Equal(t, []string{"A", "B", "D"}, got.Result.Path)
		assert.Equal(t, int64(20), got.Result.Cost)
	})

	t.Run("text", func(t *testing.T) {
		out, _, err := run(t, "path", "-t", file, "A", "D")
		require.NoError(t, err)
		assert.Contains(t, out, "A → B → D")
		assert.Contains(t, out, "ab, bd")
	})

	t.Run("unknown node", func(t *testing.T) {
		_, _, err := run(t, "path", "-t", file, "A", "Z")
		require.Error(t, err)
		assert.ErrorIs(t, err, topology.ErrNodeNotFound)
	})

	t.Run("missing topology", func(t *testing.T) {
		_, _, err := run(t, "path", "A", "D")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "--topology")
	})
}

func TestECMPCommand(t *testing.T) {
	file := writeTopology(t, topologytest.Diamond())
	out, _, err := run(t, "ecmp", "-t", file, "A", "B", "-o", "json")
	require.NoError(t, err)

	var got struct {
		Reachable bool                `json:"reachable"`
		Result    *spf.ECMPPathResult `json:"result"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, int64(5), got.Result.Cost)
	assert.Len(t, got.Result.Paths, 2)
}

func TestConnectivityCommand(t *testing.T) {
	file := writeTopology(t, topologytest.Barbell())
	out, _, err := run(t, "connectivity", "-t", file, "--exclude-edge", "bridge", "-o", "json")
	require.NoError(t, err)

	var res connectivity.Result
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.False(t, res.Connected)
	assert.Len(t, res.Components, 2)
}

func TestSPOFCommand(t *testing.T) {
	file := writeTopology(t, topologytest.Barbell())
	out, _, err := run(t, "spof", "-t", file, "-o", "json")
	require.NoError(t, err)

	var rep spof.Report
	require.NoError(t, json.Unmarshal([]byte(out), &rep))
	ids := make([]string, len(rep.Points))
	for i, p := range rep.Points {
		ids[i] = p.ElementID
	}
	assert.Contains(t, ids, "bridge")

	text, _, err := run(t, "spof", "-t", file)
	require.NoError(t, err)
	assert.Contains(t, text, "bridge")
}

func TestImpactCommand(t *testing.T) {
	t.Run("flag changes", func(t *testing.T) {
		file := writeTopology(t, topologytest.Square())
		out, _, err := run(t, "impact", "-t", file, "--change", "ab=30", "-o", "json")
		require.NoError(t, err)

		var as risk.Assessment
		require.NoError(t, json.Unmarshal([]byte(out), &as))
		assert.Equal(t, 12, as.Impact.TotalFlows)
		assert.Less(t, as.Impact.Counts[impact.Unaffected], 12)
		require.Len(t, as.Recommendation.Rollback.Changes, 1)
		assert.Equal(t, 10, as.Recommendation.Rollback.Changes[0].RestoreCost)
	})

	t.Run("document changes", func(t *testing.T) {
		file := writeTopology(t, topologytest.Square(), topology.Change{EdgeID: "ab", NewCost: 30})
		out, _, err := run(t, "impact", "-t", file)
		require.NoError(t, err)
		assert.Contains(t, out, "Risk")
		assert.Contains(t, out, "cost_increase")
	})

	t.Run("unknown edge", func(t *testing.T) {
		file := writeTopology(t, topologytest.Square())
		_, _, err := run(t, "impact", "-t", file, "--change", "zz=30")
		require.Error(t, err)
		assert.ErrorIs(t, err, topology.ErrEdgeNotFound)
	})
}

func TestTrafficCommands(t *testing.T) {
	file := writeTopology(t, topologytest.Europe())

	out, _, err := run(t, "utilization", "-t", file, "--capacity", "100", "-o", "json")
	require.NoError(t, err)
	var rep traffic.UtilizationReport
	require.NoError(t, json.Unmarshal([]byte(out), &rep))
	assert.NotEmpty(t, rep.Links)
	assert.Greater(t, rep.MaxUtilization, 0.0)

	out, _, err = run(t, "optimize", "-t", file, "--capacity", "100", "--objective", "mean", "-o", "json")
	require.NoError(t, err)
	var res traffic.OptimizeResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.LessOrEqual(t, res.After, res.Before)
	assert.NotEmpty(t, res.StopReason)

	_, _, err = run(t, "utilization", "-t", file, "--model", "gravity")
	assert.Error(t, err)
}

func TestScenarioCommands(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "netimpact.yaml")
	cfg := "scenarios:\n  backend: file\n  dir: " + filepath.Join(dir, "store") + "\n"
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o600))
	file := writeTopology(t, topologytest.Square())

	out, _, err := run(t, "--config", cfgPath, "scenario", "save", "maint", "-t", file, "--change", "ab=30", "-o", "json")
	require.NoError(t, err)
	var rec scenario.Record
	require.NoError(t, json.Unmarshal([]byte(out), &rec))
	require.NotEmpty(t, rec.ID)
	assert.Equal(t, scenario.KindScenario, rec.Kind)

	consPath := filepath.Join(dir, "cons.yaml")
	require.NoError(t, os.WriteFile(consPath, []byte("max_changes: 2\nprotected_edges: [ab]\n"), 0o600))
	_, _, err = run(t, "--config", cfgPath, "scenario", "save-constraints", "tight", consPath)
	require.NoError(t, err)

	out, _, err = run(t, "--config", cfgPath, "scenario", "list", "-o", "json")
	require.NoError(t, err)
	var recs []scenario.Record
	require.NoError(t, json.Unmarshal([]byte(out), &recs))
	assert.Len(t, recs, 2)

	out, _, err = run(t, "--config", cfgPath, "scenario", "list", "--kind", "constraints", "-o", "json")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &recs))
	require.Len(t, recs, 1)
	assert.Equal(t, "tight", recs[0].Name)

	out, _, err = run(t, "--config", cfgPath, "scenario", "get", rec.ID)
	require.NoError(t, err)
	assert.Contains(t, out, "maint")
	assert.Contains(t, out, "edgeId: ab")

	out, _, err = run(t, "--config", cfgPath, "scenario", "impact", rec.ID, "-o", "json")
	require.NoError(t, err)
	var as risk.Assessment
	require.NoError(t, json.Unmarshal([]byte(out), &as))
	assert.Equal(t, 12, as.Impact.TotalFlows)

	_, _, err = run(t, "--config", cfgPath, "scenario", "delete", rec.ID)
	require.NoError(t, err)
	_, _, err = run(t, "--config", cfgPath, "scenario", "get", rec.ID)
	assert.ErrorIs(t, err, scenario.ErrNotFound)

	_, _, err = run(t, "--config", cfgPath, "scenario", "list", "--kind", "bogus")
	assert.Error(t, err)
}

func TestRootFlags(t *testing.T) {
	file := writeTopology(t, topologytest.Square())

	_, _, err := run(t, "path", "-t", file, "A", "D", "-o", "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "output format")

	_, _, err = run(t, "path", "-t", file, "A", "D", "--log-level", "loud")
	assert.Error(t, err)

	logFile := filepath.Join(t.TempDir(), "logs", "netimpact.log")
	_, _, err = run(t, "spof", "-t", file, "--log-level", "debug", "--log-file", logFile)
	require.NoError(t, err)
	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), `"analysis":"spof"`))

	out, _, err := run(t, "--help")
	require.NoError(t, err)
	assert.Contains(t, out, "COMMANDS")
	assert.Contains(t, out, "impact")
}
