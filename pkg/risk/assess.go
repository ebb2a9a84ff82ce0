package risk

import (
	"context"

	"github.com/dd0wney/cluso-netimpact/pkg/country"
	"github.com/dd0wney/cluso-netimpact/pkg/impact"
	"github.com/dd0wney/cluso-netimpact/pkg/topology"
)

// Assessment is the full evaluation of a change set.
type Assessment struct {
	Impact         *impact.Report            `json:"impact"`
	Countries      []country.FlowAggregation `json:"countries"`
	Score          BlastRadiusScore          `json:"score"`
	Recommendation *Recommendation           `json:"recommendation"`
	// Incomplete is set when the simulation was cancelled; the score and
	// recommendation then cover only the evaluated sources.
	Incomplete bool `json:"incomplete"`
}

// Assess simulates changes and derives the country breakdown, blast-radius
// score and recommendation from the results.
func Assess(ctx context.Context, snap *topology.Snapshot, changes []topology.Change, opts impact.Options, cfg Config) (*Assessment, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	report, err := impact.Simulate(ctx, snap, changes, opts)
	if err != nil {
		return nil, err
	}
	score := Score(snap, report.Results)
	rec, err := Recommend(snap, changes, report.Results, score, cfg)
	if err != nil {
		return nil, err
	}
	opts.Metrics.ObserveRiskScore(score.Overall)
	return &Assessment{
		Impact:         report,
		Countries:      country.Aggregate(snap, report.Results),
		Score:          score,
		Recommendation: rec,
		Incomplete:     report.Incomplete,
	}, nil
}
