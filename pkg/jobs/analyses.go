package jobs

import (
	"context"
	"sort"
	"strconv"

	"github.com/dd0wney/cluso-netimpact/pkg/impact"
	"github.com/dd0wney/cluso-netimpact/pkg/logging"
	"github.com/dd0wney/cluso-netimpact/pkg/metrics"
	"github.com/dd0wney/cluso-netimpact/pkg/parallel"
	"github.com/dd0wney/cluso-netimpact/pkg/risk"
	"github.com/dd0wney/cluso-netimpact/pkg/spof"
	"github.com/dd0wney/cluso-netimpact/pkg/topology"
)

// AnalysisOptions are shared by the analysis submitters.
type AnalysisOptions struct {
	BatchSize int
	Pool      *parallel.WorkerPool
	Logger    logging.Logger
	Metrics   *metrics.Registry
	Risk      risk.Config
}

// SubmitImpact validates the inputs and queues a full change assessment.
// The job result is a *risk.Assessment.
func (m *Manager) SubmitImpact(snap *topology.Snapshot, changes []topology.Change, opts AnalysisOptions) (Job, error) {
	if err := snap.Validate(); err != nil {
		return Job{}, err
	}
	if err := snap.ValidateChanges(changes); err != nil {
		return Job{}, err
	}
	if err := opts.Risk.Validate(); err != nil {
		return Job{}, err
	}

	// The job outlives the request, so it works on its own copy.
	snap = snap.Clone()
	changes = append([]topology.Change(nil), changes...)
	fp := topology.Fingerprint(snap, changes)

	return m.Submit(KindImpact, fp, func(ctx context.Context, progress parallel.ProgressFunc) (any, error) {
		return risk.Assess(ctx, snap, changes, impact.Options{
			BatchSize: opts.BatchSize,
			Pool:      opts.Pool,
			Progress:  progress,
			Logger:    opts.Logger,
			Metrics:   opts.Metrics,
		}, opts.Risk)
	})
}

// SubmitSPOF validates the snapshot and queues a SPOF scan. The job result
// is a *spof.Report.
func (m *Manager) SubmitSPOF(snap *topology.Snapshot, maxResults int, opts AnalysisOptions) (Job, error) {
	if err := snap.Validate(); err != nil {
		return Job{}, err
	}
	snap = snap.Clone()
	fp := topology.Fingerprint(snap, nil) + "/" + strconv.Itoa(maxResults)

	return m.Submit(KindSPOF, fp, func(ctx context.Context, progress parallel.ProgressFunc) (any, error) {
		return spof.Detect(ctx, snap, spof.Options{
			MaxResults: maxResults,
			BatchSize:  opts.BatchSize,
			Pool:       opts.Pool,
			Progress:   progress,
			Logger:     opts.Logger,
			Metrics:    opts.Metrics,
		})
	})
}

func sortJobs(jobs []Job) {
	sort.Slice(jobs, func(i, j int) bool {
		if !jobs[i].CreatedAt.Equal(jobs[j].CreatedAt) {
			return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
		}
		return jobs[i].ID < jobs[j].ID
	})
}
