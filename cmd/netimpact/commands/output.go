package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/dd0wney/cluso-netimpact/pkg/connectivity"
	"github.com/dd0wney/cluso-netimpact/pkg/impact"
	"github.com/dd0wney/cluso-netimpact/pkg/risk"
	"github.com/dd0wney/cluso-netimpact/pkg/scenario"
	"github.com/dd0wney/cluso-netimpact/pkg/spf"
	"github.com/dd0wney/cluso-netimpact/pkg/spof"
	"github.com/dd0wney/cluso-netimpact/pkg/traffic"
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#00FFFF"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF0000")).
			Bold(true)

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#00FF00")).
			Bold(true)

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFF00")).
			Bold(true)
)

// emit writes v as indented JSON in json mode and calls text otherwise.
func (a *app) emit(v any, text func(w io.Writer)) error {
	if a.output() == "json" {
		enc := json.NewEncoder(a.out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	text(a.out)
	return nil
}

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(labelStyle).
		Headers(headers...)
}

func field(w io.Writer, label string, value any) {
	fmt.Fprintf(w, "%s %v\n", labelStyle.Render(fmt.Sprintf("%-14s", label+":")), value)
}

func tierStyle(tier string) lipgloss.Style {
	switch tier {
	case string(risk.Critical), string(risk.High):
		return errorStyle
	case string(risk.Medium):
		return warnStyle
	default:
		return successStyle
	}
}

func renderPath(w io.Writer, src, dst string, res *spf.PathResult) {
	if res == nil {
		fmt.Fprintf(w, "%s %s is unreachable from %s\n", warnStyle.Render("!"), dst, src)
		return
	}
	fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("%s → %s", res.Source, res.Destination)))
	field(w, "path", strings.Join(res.Path, " → "))
	field(w, "links", strings.Join(res.PathEdgeIDs, ", "))
	field(w, "cost", res.Cost)
	field(w, "ecmp", fmt.Sprintf("%v (%d paths)", res.IsECMP, res.PathCount))
	for i, wave := range res.Waves {
		field(w, fmt.Sprintf("wave %d", i), strings.Join(wave, ", "))
	}
}

func renderECMP(w io.Writer, src, dst string, res *spf.ECMPPathResult) {
	if res == nil {
		fmt.Fprintf(w, "%s %s is unreachable from %s\n", warnStyle.Render("!"), dst, src)
		return
	}
	fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("%s → %s  cost %d", res.Source, res.Destination, res.Cost)))
	t := newTable("#", "path")
	for i, p := range res.Paths {
		t.Row(strconv.Itoa(i+1), strings.Join(p, " → "))
	}
	fmt.Fprintln(w, t.String())
	field(w, "total paths", res.TotalPaths)
	if res.Truncated {
		field(w, "truncated", true)
	}
	field(w, "divergence", strings.Join(res.Divergence, ", "))
	field(w, "convergence", strings.Join(res.Convergence, ", "))
}

func renderSample(w io.Writer, rep *spf.SampleReport) {
	fmt.Fprintln(w, headerStyle.Render("ECMP sample"))
	field(w, "pairs", fmt.Sprintf("%d of %d evaluated", rep.PairsEvaluated, rep.PairsTotal))
	field(w, "reachable", rep.ReachablePairs)
	field(w, "ecmp pairs", fmt.Sprintf("%d (%.1f%%)", rep.ECMPPairs, rep.ECMPRatio*100))
	field(w, "max paths", rep.MaxPathCount)
	if len(rep.TopPairs) > 0 {
		t := newTable("source", "destination", "paths", "cost")
		for _, p := range rep.TopPairs {
			t.Row(p.Source, p.Destination, strconv.FormatInt(p.PathCount, 10), strconv.FormatInt(p.Cost, 10))
		}
		fmt.Fprintln(w, t.String())
	}
	if len(rep.Divergence) > 0 {
		t := newTable("divergence node", "count")
		for _, d := range rep.Divergence {
			t.Row(d.NodeID, strconv.Itoa(d.Count))
		}
		fmt.Fprintln(w, t.String())
	}
	if rep.Incomplete {
		fmt.Fprintln(w, warnStyle.Render("incomplete: sampling was cancelled"))
	}
}

func renderConnectivity(w io.Writer, res *connectivity.Result) {
	if res.Connected {
		fmt.Fprintln(w, successStyle.Render("connected"))
	} else {
		fmt.Fprintln(w, errorStyle.Render(fmt.Sprintf("partitioned into %d components", res.Partitions())))
	}
	for i, c := range res.Components {
		field(w, fmt.Sprintf("component %d", i+1), strings.Join(c, ", "))
	}
	if len(res.Isolated) > 0 {
		field(w, "isolated", strings.Join(res.Isolated, ", "))
	}
}

func renderSPOF(w io.Writer, rep *spof.Report) {
	fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("%d single points of failure", rep.Found)))
	if len(rep.Points) > 0 {
		t := newTable("element", "kind", "severity", "partitions", "isolated", "affected paths")
		for _, p := range rep.Points {
			t.Row(p.ElementID, string(p.Kind), tierStyle(string(p.Severity)).Render(string(p.Severity)),
				strconv.Itoa(p.Partitions), strconv.Itoa(p.IsolatedNodes), strconv.Itoa(p.AffectedPaths))
		}
		fmt.Fprintln(w, t.String())
	}
	field(w, "evaluated", fmt.Sprintf("%d of %d elements", rep.Evaluated, rep.Total))
	if rep.Incomplete {
		fmt.Fprintln(w, warnStyle.Render("incomplete: scan was cancelled"))
	}
}

func renderAssessment(w io.Writer, as *risk.Assessment, limit int) {
	rep := as.Impact
	fmt.Fprintln(w, headerStyle.Render("Impact"))
	counts := newTable("impact", "flows")
	for _, t := range impact.Types {
		counts.Row(string(t), strconv.Itoa(rep.Counts[t]))
	}
	fmt.Fprintln(w, counts.String())
	field(w, "total flows", rep.TotalFlows)

	affected := rep.Affected()
	if len(affected) > 0 {
		t := newTable("source", "destination", "impact", "old cost", "new cost", "new path")
		for i, r := range affected {
			if limit > 0 && i == limit {
				break
			}
			t.Row(r.Source, r.Destination, string(r.Type),
				costCell(r.OldReachable, r.OldCost), costCell(r.NewReachable, r.NewCost),
				strings.Join(r.NewPath, " → "))
		}
		fmt.Fprintln(w, t.String())
		if limit > 0 && len(affected) > limit {
			fmt.Fprintf(w, "%s\n", labelStyle.Render(fmt.Sprintf("... and %d more affected flows", len(affected)-limit)))
		}
	}

	if len(as.Countries) > 0 {
		fmt.Fprintln(w, headerStyle.Render("Countries"))
		t := newTable("from", "to", "flows", "affected", "avg Δ", "max Δ", "reroutes")
		for _, c := range as.Countries {
			t.Row(c.SourceCountry, c.DestCountry, strconv.Itoa(c.FlowCount), strconv.Itoa(c.AffectedFlows),
				strconv.FormatFloat(c.AvgCostDelta, 'f', 1, 64), strconv.FormatInt(c.MaxCostDelta, 10), strconv.Itoa(c.Reroutes))
		}
		fmt.Fprintln(w, t.String())
	}

	score := as.Score
	fmt.Fprintln(w, headerStyle.Render("Risk"))
	field(w, "score", tierStyle(string(score.Tier)).Render(fmt.Sprintf("%d (%s)", score.Overall, score.Tier)))
	field(w, "flow impact", score.Breakdown.FlowImpact)
	field(w, "cost", score.Breakdown.CostMagnitude)
	field(w, "countries", score.Breakdown.CountryDiversity)
	field(w, "critical", score.Breakdown.CriticalPaths)

	rec := as.Recommendation
	field(w, "action", tierStyle(string(rec.Tier)).Render(string(rec.Action)))
	fmt.Fprintln(w, rec.Summary)
	for _, adv := range rec.Advisories {
		fmt.Fprintf(w, "  %s %s\n", warnStyle.Render(adv.Code), adv.Message)
	}
	if len(rec.Rollback.Changes) > 0 {
		t := newTable("rollback edge", "applied", "restore")
		for _, c := range rec.Rollback.Changes {
			t.Row(c.EdgeID, strconv.Itoa(c.AppliedCost), strconv.Itoa(c.RestoreCost))
		}
		fmt.Fprintln(w, t.String())
		field(w, "convergence", rec.Rollback.Convergence.Total)
	}
	if as.Incomplete {
		fmt.Fprintln(w, warnStyle.Render("incomplete: simulation was cancelled"))
	}
}

func costCell(reachable bool, cost int64) string {
	if !reachable {
		return "-"
	}
	return strconv.FormatInt(cost, 10)
}

func renderLinks(w io.Writer, links []traffic.LinkLoad) {
	t := newTable("arc", "link", "cost", "load", "capacity", "utilization")
	for _, l := range links {
		t.Row(l.ArcID, l.LinkID, strconv.Itoa(l.Cost), strconv.FormatFloat(l.Load, 'f', 1, 64),
			strconv.FormatFloat(l.Capacity, 'f', 0, 64), fmt.Sprintf("%.1f%%", l.Utilization*100))
	}
	fmt.Fprintln(w, t.String())
}

func renderUtilization(w io.Writer, rep *traffic.UtilizationReport) {
	fmt.Fprintln(w, headerStyle.Render("Utilization"))
	renderLinks(w, rep.Links)
	field(w, "max", fmt.Sprintf("%.1f%%", rep.MaxUtilization*100))
	field(w, "mean", fmt.Sprintf("%.1f%%", rep.MeanUtilization*100))
	field(w, "unrouted", rep.Unrouted)
	if len(rep.Congested) > 0 {
		fmt.Fprintln(w, errorStyle.Render(fmt.Sprintf("%d congested arcs", len(rep.Congested))))
	}
}

func renderOptimize(w io.Writer, res *traffic.OptimizeResult) {
	fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("Optimize %s utilization", res.Objective)))
	field(w, "before", fmt.Sprintf("%.1f%%", res.Before*100))
	field(w, "after", fmt.Sprintf("%.1f%%", res.After*100))
	field(w, "iterations", res.Iterations)
	field(w, "stopped", res.StopReason)
	if len(res.Changes) > 0 {
		t := newTable("edge", "new cost")
		for _, c := range res.Changes {
			t.Row(c.EdgeID, strconv.Itoa(c.NewCost))
		}
		fmt.Fprintln(w, t.String())
	} else {
		fmt.Fprintln(w, labelStyle.Render("no improving change found"))
	}
}

func renderRecords(w io.Writer, recs []scenario.Record) {
	if len(recs) == 0 {
		fmt.Fprintln(w, labelStyle.Render("no scenarios"))
		return
	}
	t := newTable("id", "kind", "name", "created")
	for _, r := range recs {
		t.Row(r.ID, string(r.Kind), r.Name, r.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	fmt.Fprintln(w, t.String())
}
