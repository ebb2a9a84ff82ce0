// Command netimpact-tui is an interactive terminal explorer for a topology
// file: failure points, shortest paths and what-if cost changes.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/pflag"

	"github.com/dd0wney/cluso-netimpact/pkg/connectivity"
	"github.com/dd0wney/cluso-netimpact/pkg/impact"
	"github.com/dd0wney/cluso-netimpact/pkg/parallel"
	"github.com/dd0wney/cluso-netimpact/pkg/risk"
	"github.com/dd0wney/cluso-netimpact/pkg/spf"
	"github.com/dd0wney/cluso-netimpact/pkg/spof"
	"github.com/dd0wney/cluso-netimpact/pkg/topology"
)

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF00FF")).
			MarginLeft(2).
			MarginTop(1)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#00FFFF")).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#00FFFF")).
			Padding(0, 1)

	activeTabStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(lipgloss.Color("#FF00FF")).
			Padding(0, 2)

	inactiveTabStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#666666")).
				Padding(0, 2)

	contentStyle = lipgloss.NewStyle().
			MarginLeft(2).
			MarginTop(1)

	statsBoxStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#00FF00")).
			Padding(1, 2).
			MarginRight(2)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF0000")).
			Bold(true)

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#00FF00")).
			Bold(true)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888")).
			MarginTop(1).
			MarginLeft(2)
)

type view int

const (
	overviewView view = iota
	spofView
	pathView
	impactView
	countryView
	viewCount
)

var tabNames = []string{"Overview", "Failure Points", "Paths", "Impact", "Countries"}

type keyMap struct {
	Tab      key.Binding
	ShiftTab key.Binding
	Enter    key.Binding
	Refresh  key.Binding
	Quit     key.Binding
}

var keys = keyMap{
	Tab: key.NewBinding(
		key.WithKeys("tab"),
		key.WithHelp("tab", "next view"),
	),
	ShiftTab: key.NewBinding(
		key.WithKeys("shift+tab"),
		key.WithHelp("shift+tab", "prev view"),
	),
	Enter: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "run"),
	),
	Refresh: key.NewBinding(
		key.WithKeys("ctrl+r"),
		key.WithHelp("ctrl+r", "rescan"),
	),
	Quit: key.NewBinding(
		key.WithKeys("ctrl+c", "esc"),
		key.WithHelp("esc", "quit"),
	),
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Tab, k.Enter, k.Refresh, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Tab, k.ShiftTab, k.Enter},
		{k.Refresh, k.Quit},
	}
}

// analysis carries the shared inputs of every background run.
type analysis struct {
	pool      *parallel.WorkerPool
	batchSize int
	risk      risk.Config
}

type model struct {
	doc         *topology.Document
	source      string
	run         analysis
	currentView view
	pathInput   textinput.Model
	changeInput textinput.Model
	spofTable   table.Model
	impactTable table.Model
	countries   table.Model
	spinner     spinner.Model
	help        help.Model
	keys        keyMap
	width       int
	height      int
	message     string
	messageErr  bool
	busy        int

	conn       *connectivity.Result
	spofReport *spof.Report
	path       *spf.PathResult
	ecmp       *spf.ECMPPathResult
	assessment *risk.Assessment
}

type spofDoneMsg struct {
	report  *spof.Report
	err     error
	elapsed time.Duration
}

type assessDoneMsg struct {
	assessment *risk.Assessment
	err        error
	elapsed    time.Duration
}

func newTable(columns []table.Column, height int) table.Model {
	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(height),
	)
	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("#00FFFF")).
		BorderBottom(true).
		Bold(true)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("#FFFFFF")).
		Background(lipgloss.Color("#FF00FF")).
		Bold(false)
	t.SetStyles(s)
	return t
}

func initialModel(doc *topology.Document, source string, run analysis) model {
	pi := textinput.New()
	pi.Placeholder = "SOURCE DESTINATION"
	pi.CharLimit = 200
	pi.Width = 40

	ci := textinput.New()
	ci.Placeholder = "edge=cost edge=cost/reverse ..."
	ci.CharLimit = 500
	ci.Width = 60
	if len(doc.Changes) > 0 {
		specs := make([]string, len(doc.Changes))
		for i, c := range doc.Changes {
			specs[i] = changeSpec(c)
		}
		ci.SetValue(strings.Join(specs, " "))
	}

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	m := model{
		doc:         doc,
		source:      source,
		run:         run,
		currentView: overviewView,
		pathInput:   pi,
		changeInput: ci,
		spofTable: newTable([]table.Column{
			{Title: "Element", Width: 18},
			{Title: "Kind", Width: 6},
			{Title: "Severity", Width: 10},
			{Title: "Partitions", Width: 10},
			{Title: "Isolated", Width: 9},
			{Title: "Affected", Width: 9},
		}, 12),
		impactTable: newTable([]table.Column{
			{Title: "Source", Width: 12},
			{Title: "Destination", Width: 12},
			{Title: "Impact", Width: 14},
			{Title: "Old", Width: 7},
			{Title: "New", Width: 7},
			{Title: "New path", Width: 40},
		}, 10),
		countries: newTable([]table.Column{
			{Title: "From", Width: 8},
			{Title: "To", Width: 8},
			{Title: "Flows", Width: 7},
			{Title: "Affected", Width: 9},
			{Title: "Avg Δ", Width: 8},
			{Title: "Max Δ", Width: 8},
			{Title: "Reroutes", Width: 9},
		}, 10),
		spinner: sp,
		help:    help.New(),
		keys:    keys,
		busy:    1, // Init starts the failure point scan
	}
	if res, err := connectivity.Analyze(&doc.Snapshot, nil, nil); err == nil {
		m.conn = res
	}
	return m
}

func changeSpec(c topology.Change) string {
	s := fmt.Sprintf("%s=%d", c.EdgeID, c.NewCost)
	if c.NewReverseCost != nil {
		s += fmt.Sprintf("/%d", *c.NewReverseCost)
	}
	return s
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		m.spinner.Tick,
		m.scanSPOF(),
	)
}

// scanSPOF runs the failure point scan off the UI goroutine.
func (m model) scanSPOF() tea.Cmd {
	snap := &m.doc.Snapshot
	run := m.run
	return func() tea.Msg {
		start := time.Now()
		rep, err := spof.Detect(context.Background(), snap, spof.Options{
			MaxResults: -1,
			BatchSize:  run.batchSize,
			Pool:       run.pool,
		})
		return spofDoneMsg{report: rep, err: err, elapsed: time.Since(start)}
	}
}

// assess parses the change input and simulates it off the UI goroutine.
func (m model) assess() tea.Cmd {
	changes, err := topology.ParseChanges(strings.Fields(m.changeInput.Value()))
	if err != nil {
		return func() tea.Msg { return assessDoneMsg{err: err} }
	}
	snap := &m.doc.Snapshot
	run := m.run
	return func() tea.Msg {
		start := time.Now()
		as, err := risk.Assess(context.Background(), snap, changes, impact.Options{
			BatchSize: run.batchSize,
			Pool:      run.pool,
		}, run.risk)
		return assessDoneMsg{assessment: as, err: err, elapsed: time.Since(start)}
	}
}

func (m *model) setMessage(msg string, isErr bool) {
	m.message = msg
	m.messageErr = isErr
}

func (m *model) focusInputs() {
	m.pathInput.Blur()
	m.changeInput.Blur()
	switch m.currentView {
	case pathView:
		m.pathInput.Focus()
	case impactView:
		m.changeInput.Focus()
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width

	case spinner.TickMsg:
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case spofDoneMsg:
		m.busy--
		if msg.err != nil {
			m.setMessage(fmt.Sprintf("Failure point scan failed: %v", msg.err), true)
			return m, nil
		}
		m.spofReport = msg.report
		m.updateSPOFTable()
		m.setMessage(fmt.Sprintf("Scanned %d elements in %s, %d failure points",
			msg.report.Evaluated, msg.elapsed.Round(time.Millisecond), msg.report.Found), false)
		return m, nil

	case assessDoneMsg:
		m.busy--
		if msg.err != nil {
			m.setMessage(fmt.Sprintf("Assessment failed: %v", msg.err), true)
			return m, nil
		}
		m.assessment = msg.assessment
		m.updateImpactTables()
		m.setMessage(fmt.Sprintf("Assessed %d flows in %s: %s",
			msg.assessment.Impact.TotalFlows, msg.elapsed.Round(time.Millisecond),
			msg.assessment.Recommendation.Action), false)
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit

		case key.Matches(msg, m.keys.Tab):
			m.currentView = (m.currentView + 1) % viewCount
			m.focusInputs()
			return m, nil

		case key.Matches(msg, m.keys.ShiftTab):
			m.currentView = (m.currentView + viewCount - 1) % viewCount
			m.focusInputs()
			return m, nil

		case key.Matches(msg, m.keys.Refresh):
			m.busy++
			return m, m.scanSPOF()

		case key.Matches(msg, m.keys.Enter):
			switch m.currentView {
			case pathView:
				m.queryPath()
				return m, nil
			case impactView:
				m.busy++
				return m, m.assess()
			}
		}
	}

	// Update focused component
	switch m.currentView {
	case pathView:
		m.pathInput, cmd = m.pathInput.Update(msg)
		cmds = append(cmds, cmd)
	case impactView:
		m.changeInput, cmd = m.changeInput.Update(msg)
		cmds = append(cmds, cmd)
		m.impactTable, cmd = m.impactTable.Update(msg)
		cmds = append(cmds, cmd)
	case spofView:
		m.spofTable, cmd = m.spofTable.Update(msg)
		cmds = append(cmds, cmd)
	case countryView:
		m.countries, cmd = m.countries.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

// queryPath answers a point query synchronously; one SPF run is cheap.
func (m *model) queryPath() {
	fields := strings.Fields(m.pathInput.Value())
	if len(fields) != 2 {
		m.setMessage("Enter a source and a destination", true)
		return
	}
	res, err := spf.ShortestPath(&m.doc.Snapshot, fields[0], fields[1], spf.WithWaves())
	if err != nil {
		m.setMessage(err.Error(), true)
		return
	}
	m.path = res
	m.ecmp = nil
	if res == nil {
		m.setMessage(fmt.Sprintf("%s is unreachable from %s", fields[1], fields[0]), true)
		return
	}
	if res.IsECMP {
		if m.ecmp, err = spf.EnumerateECMP(&m.doc.Snapshot, fields[0], fields[1], 8); err != nil {
			m.setMessage(err.Error(), true)
			return
		}
	}
	m.setMessage(fmt.Sprintf("Cost %d over %d hops", res.Cost, len(res.Path)-1), false)
}

func (m *model) updateSPOFTable() {
	rows := make([]table.Row, 0, len(m.spofReport.Points))
	for _, p := range m.spofReport.Points {
		rows = append(rows, table.Row{
			p.ElementID,
			string(p.Kind),
			string(p.Severity),
			strconv.Itoa(p.Partitions),
			strconv.Itoa(p.IsolatedNodes),
			strconv.Itoa(p.AffectedPaths),
		})
	}
	m.spofTable.SetRows(rows)
}

func (m *model) updateImpactTables() {
	affected := m.assessment.Impact.Affected()
	rows := make([]table.Row, 0, len(affected))
	for _, r := range affected {
		rows = append(rows, table.Row{
			r.Source,
			r.Destination,
			string(r.Type),
			cost(r.OldReachable, r.OldCost),
			cost(r.NewReachable, r.NewCost),
			strings.Join(r.NewPath, " → "),
		})
	}
	m.impactTable.SetRows(rows)

	crows := make([]table.Row, 0, len(m.assessment.Countries))
	for _, c := range m.assessment.Countries {
		crows = append(crows, table.Row{
			c.SourceCountry,
			c.DestCountry,
			strconv.Itoa(c.FlowCount),
			strconv.Itoa(c.AffectedFlows),
			strconv.FormatFloat(c.AvgCostDelta, 'f', 1, 64),
			strconv.FormatInt(c.MaxCostDelta, 10),
			strconv.Itoa(c.Reroutes),
		})
	}
	m.countries.SetRows(crows)
}

func cost(reachable bool, c int64) string {
	if !reachable {
		return "-"
	}
	return strconv.FormatInt(c, 10)
}

func (m model) View() string {
	if m.width == 0 {
		return "Initializing..."
	}

	var s strings.Builder

	s.WriteString(titleStyle.Render("netimpact  " + m.source))
	s.WriteString("\n\n")
	s.WriteString(m.renderTabs())
	s.WriteString("\n\n")

	switch m.currentView {
	case overviewView:
		s.WriteString(m.renderOverview())
	case spofView:
		s.WriteString(m.renderSPOF())
	case pathView:
		s.WriteString(m.renderPath())
	case impactView:
		s.WriteString(m.renderImpact())
	case countryView:
		s.WriteString(m.renderCountries())
	}

	if m.busy > 0 {
		s.WriteString("\n\n  " + m.spinner.View() + " working...")
	} else if m.message != "" {
		s.WriteString("\n\n")
		if m.messageErr {
			s.WriteString(errorStyle.Render("  ✗ " + m.message))
		} else {
			s.WriteString(successStyle.Render("  ✓ " + m.message))
		}
	}

	s.WriteString("\n\n")
	s.WriteString(helpStyle.Render(m.help.ShortHelpView(m.keys.ShortHelp())))

	return s.String()
}

func (m model) renderTabs() string {
	var rendered []string
	for i, tab := range tabNames {
		if view(i) == m.currentView {
			rendered = append(rendered, activeTabStyle.Render(tab))
		} else {
			rendered = append(rendered, inactiveTabStyle.Render(tab))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, rendered...)
}

func (m model) renderOverview() string {
	snap := &m.doc.Snapshot
	countries := make(map[string]bool)
	for _, n := range snap.Nodes {
		countries[n.CountryOrUnknown()] = true
	}

	partitions := "-"
	if m.conn != nil {
		partitions = strconv.Itoa(m.conn.Partitions())
	}
	stats := fmt.Sprintf(`Topology
━━━━━━━━━━━━━━━
Nodes:       %d
Links:       %d
Countries:   %d
Partitions:  %s
Pending:     %d changes`,
		len(snap.Nodes), len(snap.Edges), len(countries), partitions, len(m.doc.Changes))

	failures := "Failure points\n━━━━━━━━━━━━━━━\nscanning..."
	if m.spofReport != nil {
		bySeverity := make(map[spof.Severity]int)
		for _, p := range m.spofReport.Points {
			bySeverity[p.Severity]++
		}
		failures = fmt.Sprintf(`Failure points
━━━━━━━━━━━━━━━
Critical:    %d
High:        %d
Medium:      %d
Low:         %d`,
			bySeverity[spof.Critical], bySeverity[spof.High], bySeverity[spof.Medium], bySeverity[spof.Low])
	}

	return contentStyle.Render(lipgloss.JoinHorizontal(lipgloss.Top,
		statsBoxStyle.Render(stats), statsBoxStyle.Render(failures)))
}

func (m model) renderSPOF() string {
	var s strings.Builder
	s.WriteString(headerStyle.Render("Single Points of Failure"))
	s.WriteString("\n\n")
	if m.spofReport != nil && len(m.spofReport.Points) == 0 {
		s.WriteString(successStyle.Render("No single point of failure"))
	} else {
		s.WriteString(m.spofTable.View())
	}
	return contentStyle.Render(s.String())
}

func (m model) renderPath() string {
	var s strings.Builder
	s.WriteString(headerStyle.Render("Shortest Path"))
	s.WriteString("\n\n")
	s.WriteString(m.pathInput.View())
	s.WriteString("\n\n")

	if p := m.path; p != nil {
		body := fmt.Sprintf("%s\ncost %d  links %s",
			strings.Join(p.Path, " → "), p.Cost, strings.Join(p.PathEdgeIDs, ", "))
		if p.IsECMP {
			body += fmt.Sprintf("\n\nECMP: %d equal-cost paths", p.PathCount)
			for i, w := range p.Waves {
				body += fmt.Sprintf("\n  hop %d: %s", i, strings.Join(w, ", "))
			}
		}
		if m.ecmp != nil {
			for i, path := range m.ecmp.Paths {
				body += fmt.Sprintf("\n  %d. %s", i+1, strings.Join(path, " → "))
			}
			if m.ecmp.Truncated {
				body += "\n  ..."
			}
		}
		s.WriteString(statsBoxStyle.Render(body))
	}
	return contentStyle.Render(s.String())
}

func (m model) renderImpact() string {
	var s strings.Builder
	s.WriteString(headerStyle.Render("What-if Cost Changes"))
	s.WriteString("\n\n")
	s.WriteString(m.changeInput.View())
	s.WriteString("\n\n")

	if as := m.assessment; as != nil {
		counts := make([]string, 0, len(impact.Types))
		for _, t := range impact.Types {
			counts = append(counts, fmt.Sprintf("%s %d", t, as.Impact.Counts[t]))
		}
		rec := as.Recommendation
		summary := fmt.Sprintf("Score %d (%s)  %s\n%s\n%s",
			as.Score.Overall, as.Score.Tier, rec.Action, rec.Summary, strings.Join(counts, "  "))
		for _, adv := range rec.Advisories {
			summary += fmt.Sprintf("\n%s: %s", adv.Code, adv.Message)
		}
		if len(rec.Rollback.Changes) > 0 {
			summary += fmt.Sprintf("\nrollback converges in ~%s", rec.Rollback.Convergence.Total)
		}
		style := successStyle
		if as.Score.Tier == risk.High || as.Score.Tier == risk.Critical {
			style = errorStyle
		}
		s.WriteString(statsBoxStyle.Render(style.Render(summary)))
		s.WriteString("\n\n")
		s.WriteString(m.impactTable.View())
	}
	return contentStyle.Render(s.String())
}

func (m model) renderCountries() string {
	var s strings.Builder
	s.WriteString(headerStyle.Render("Country Flows"))
	s.WriteString("\n\n")
	if m.assessment == nil {
		s.WriteString(helpStyle.Render("Run an assessment in the Impact view first"))
	} else {
		s.WriteString(m.countries.View())
	}
	return contentStyle.Render(s.String())
}

func main() {
	workers := pflag.IntP("workers", "w", 4, "analysis workers")
	batch := pflag.Int("batch-size", 8, "sources per analysis batch")
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: netimpact-tui [flags] TOPOLOGY\n")
		pflag.PrintDefaults()
	}
	pflag.Parse()
	if pflag.NArg() != 1 {
		pflag.Usage()
		os.Exit(2)
	}

	doc, err := topology.LoadFile(pflag.Arg(0))
	if err != nil {
		log.Fatalf("Failed to load topology: %v", err)
	}

	pool, err := parallel.NewWorkerPool(*workers)
	if err != nil {
		log.Fatalf("Failed to start workers: %v", err)
	}
	defer pool.Close()

	m := initialModel(doc, pflag.Arg(0), analysis{pool: pool, batchSize: *batch, risk: risk.DefaultConfig()})
	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		log.Fatalf("Error running program: %v", err)
	}
}
