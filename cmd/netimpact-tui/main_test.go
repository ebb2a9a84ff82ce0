package main

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dd0wney/cluso-netimpact/pkg/impact"
	"github.com/dd0wney/cluso-netimpact/pkg/risk"
	"github.com/dd0wney/cluso-netimpact/pkg/topology"
	"github.com/dd0wney/cluso-netimpact/pkg/topology/topologytest"
)

func newTestModel(t *testing.T, snap *topology.Snapshot, changes ...topology.Change) model {
	t.Helper()
	doc := &topology.Document{Snapshot: *snap, Changes: changes}
	m := initialModel(doc, "test.yaml", analysis{batchSize: 4, risk: risk.DefaultConfig()})
	next, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	return next.(model)
}

func update(t *testing.T, m model, msg tea.Msg) (model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	return next.(model), cmd
}

func TestModel_SPOFScan(t *testing.T) {
	m := newTestModel(t, topologytest.Barbell())
	assert.Contains(t, m.View(), "working")

	m, _ = update(t, m, m.scanSPOF()())
	require.NotNil(t, m.spofReport)
	assert.Equal(t, 0, m.busy)
	assert.Contains(t, m.View(), "Critical")

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, spofView, m.currentView)
	assert.Contains(t, m.View(), "bridge")
}

func TestModel_PathQuery(t *testing.T) {
	m := newTestModel(t, topologytest.Square())
	m.currentView = pathView

	m.pathInput.SetValue("A D")
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, m.path)
	assert.Equal(t, int64(20), m.path.Cost)
	assert.False(t, m.messageErr)
	assert.Contains(t, m.View(), "A → B → D")

	m.pathInput.SetValue("A Z")
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.True(t, m.messageErr)

	m.pathInput.SetValue("A")
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.True(t, m.messageErr)
	assert.Contains(t, m.message, "source and a destination")
}

func TestModel_ECMPPath(t *testing.T) {
	m := newTestModel(t, topologytest.Diamond())
	m.currentView = pathView
	m.pathInput.SetValue("A B")
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, m.ecmp)
	assert.Len(t, m.ecmp.Paths, 2)
	assert.Contains(t, m.View(), "2 equal-cost paths")
}

func TestModel_Assess(t *testing.T) {
	m := newTestModel(t, topologytest.Europe(), topology.Change{EdgeID: "fra-ber", NewCost: 40})
	assert.Equal(t, "fra-ber=40", m.changeInput.Value())
	m.busy = 0
	m.currentView = impactView

	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	assert.Equal(t, 1, m.busy)

	m, _ = update(t, m, cmd())
	require.NotNil(t, m.assessment)
	assert.Equal(t, 0, m.busy)
	assert.Equal(t, 30, m.assessment.Impact.TotalFlows)
	assert.Positive(t, m.assessment.Impact.TotalFlows-m.assessment.Impact.Counts[impact.Unaffected])
	assert.Contains(t, m.View(), "Score")

	m.currentView = countryView
	assert.Contains(t, m.View(), "DE")
}

func TestModel_AssessBadInput(t *testing.T) {
	m := newTestModel(t, topologytest.Square())
	m.busy = 0
	m.changeInput.SetValue("ab=oops")
	m.currentView = impactView

	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	m, _ = update(t, m, cmd())
	assert.Nil(t, m.assessment)
	assert.True(t, m.messageErr)
	assert.Contains(t, m.View(), "Assessment failed")
}

func TestModel_Navigation(t *testing.T) {
	m := newTestModel(t, topologytest.Square())

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyShiftTab})
	assert.Equal(t, countryView, m.currentView)
	assert.Contains(t, m.View(), "Run an assessment")

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyShiftTab})
	assert.Equal(t, impactView, m.currentView)
	assert.True(t, m.changeInput.Focused())
	assert.False(t, m.pathInput.Focused())

	_, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}
