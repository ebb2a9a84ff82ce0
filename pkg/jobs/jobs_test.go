package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/dd0wney/cluso-netimpact/pkg/events"
	"github.com/dd0wney/cluso-netimpact/pkg/metrics"
	"github.com/dd0wney/cluso-netimpact/pkg/parallel"
	"github.com/dd0wney/cluso-netimpact/pkg/risk"
	"github.com/dd0wney/cluso-netimpact/pkg/spof"
	"github.com/dd0wney/cluso-netimpact/pkg/topology"
	"github.com/dd0wney/cluso-netimpact/pkg/topology/topologytest"
)

func wait(t *testing.T, m *Manager, id string) Job {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	j, err := m.Wait(ctx, id)
	require.NoError(t, err)
	return j
}

// blocking returns a RunFunc that reports one progress step and then waits
// for release or cancellation.
func blocking(release <-chan struct{}) RunFunc {
	return func(ctx context.Context, progress parallel.ProgressFunc) (any, error) {
		progress(parallel.Progress{Done: 1, Total: 2, Percent: 50})
		select {
		case <-release:
			return "done", nil
		case <-ctx.Done():
			return "partial", nil
		}
	}
}

func TestSubmitImpact(t *testing.T) {
	defer goleak.VerifyNone(t)
	reg := metrics.NewRegistry()
	m := NewManager(Options{Metrics: reg})
	defer m.Close()

	job, err := m.SubmitImpact(topologytest.Square(), []topology.Change{{EdgeID: "ab", NewCost: 25}},
		AnalysisOptions{Risk: risk.DefaultConfig(), Metrics: reg})
	require.NoError(t, err)
	assert.NotEmpty(t, job.ID)
	assert.Equal(t, KindImpact, job.Kind)

	done := wait(t, m, job.ID)
	assert.Equal(t, Succeeded, done.State)
	assert.Equal(t, 100, done.Progress.Percent)
	require.NotNil(t, done.StartedAt)
	require.NotNil(t, done.FinishedAt)

	a, ok := done.Result.(*risk.Assessment)
	require.True(t, ok)
	assert.False(t, a.Incomplete)
	assert.Len(t, a.Impact.Results, 12)

	assert.Equal(t, 1.0, testutil.ToFloat64(reg.JobsFinishedTotal.WithLabelValues("impact", "succeeded")))
	assert.Equal(t, 0.0, testutil.ToFloat64(reg.JobsRunning))
}

func TestSubmitValidatesSynchronously(t *testing.T) {
	defer goleak.VerifyNone(t)
	m := NewManager(Options{})
	defer m.Close()

	_, err := m.SubmitImpact(topologytest.Square(), []topology.Change{{EdgeID: "zz", NewCost: 3}},
		AnalysisOptions{Risk: risk.DefaultConfig()})
	assert.ErrorIs(t, err, topology.ErrEdgeNotFound)

	_, err = m.SubmitSPOF(&topology.Snapshot{}, 0, AnalysisOptions{})
	assert.ErrorIs(t, err, topology.ErrEmptyTopology)
	assert.Empty(t, m.List())
}

func TestSubmitSPOF(t *testing.T) {
	defer goleak.VerifyNone(t)
	m := NewManager(Options{})
	defer m.Close()

	job, err := m.SubmitSPOF(topologytest.Barbell(), 0, AnalysisOptions{})
	require.NoError(t, err)
	done := wait(t, m, job.ID)
	require.Equal(t, Succeeded, done.State)
	report, ok := done.Result.(*spof.Report)
	require.True(t, ok)
	assert.NotEmpty(t, report.Points)
}

func TestDeduplicatesByFingerprint(t *testing.T) {
	defer goleak.VerifyNone(t)
	m := NewManager(Options{})
	defer m.Close()

	snap := topologytest.Square()
	changes := []topology.Change{{EdgeID: "ab", NewCost: 25}}
	first, err := m.SubmitImpact(snap, changes, AnalysisOptions{Risk: risk.DefaultConfig()})
	require.NoError(t, err)
	second, err := m.SubmitImpact(snap, changes, AnalysisOptions{Risk: risk.DefaultConfig()})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	other, err := m.SubmitImpact(snap, []topology.Change{{EdgeID: "ab", NewCost: 26}}, AnalysisOptions{Risk: risk.DefaultConfig()})
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, other.ID)
	wait(t, m, first.ID)
	wait(t, m, other.ID)
}

func TestCancelRunning(t *testing.T) {
	defer goleak.VerifyNone(t)
	bus := events.NewBus(nil)
	defer bus.Shutdown()
	m := NewManager(Options{Bus: bus})
	defer m.Close()

	sub, err := bus.Subscribe(context.Background(), events.AllJobs)
	require.NoError(t, err)

	job, err := m.Submit(KindImpact, "", blocking(nil))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		j, _ := m.Get(job.ID)
		return j.State == Running && j.Progress.Percent == 50
	}, 2*time.Second, 5*time.Millisecond)

	_, err = m.Cancel(job.ID)
	require.NoError(t, err)
	done := wait(t, m, job.ID)
	assert.Equal(t, Cancelled, done.State)
	assert.Equal(t, "partial", done.Result)

	var types []events.Type
	timeout := time.After(time.Second)
	for len(types) == 0 || types[len(types)-1] != events.JobFinished {
		select {
		case ev := <-sub.Channel():
			types = append(types, ev.Type)
		case <-timeout:
			t.Fatalf("missing finished event, got %v", types)
		}
	}
	assert.Equal(t, events.JobSubmitted, types[0])
	assert.Contains(t, types, events.JobProgress)
}

func TestCancelQueued(t *testing.T) {
	defer goleak.VerifyNone(t)
	m := NewManager(Options{MaxRunning: 1})
	defer m.Close()

	release := make(chan struct{})
	first, err := m.Submit(KindSPOF, "", blocking(release))
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		j, _ := m.Get(first.ID)
		return j.State == Running
	}, 2*time.Second, 5*time.Millisecond)

	queued, err := m.Submit(KindSPOF, "", blocking(release))
	require.NoError(t, err)
	j, err := m.Get(queued.ID)
	require.NoError(t, err)
	assert.Equal(t, Queued, j.State)

	_, err = m.Cancel(queued.ID)
	require.NoError(t, err)
	done := wait(t, m, queued.ID)
	assert.Equal(t, Cancelled, done.State)
	assert.Nil(t, done.StartedAt)

	close(release)
	assert.Equal(t, Succeeded, wait(t, m, first.ID).State)
}

func TestFailedJob(t *testing.T) {
	defer goleak.VerifyNone(t)
	m := NewManager(Options{})
	defer m.Close()

	job, err := m.Submit(KindImpact, "fp", func(context.Context, parallel.ProgressFunc) (any, error) {
		return nil, errors.New("boom")
	})
	require.NoError(t, err)
	done := wait(t, m, job.ID)
	assert.Equal(t, Failed, done.State)
	assert.Equal(t, "boom", done.Error)

	// failed jobs are not reused
	again, err := m.Submit(KindImpact, "fp", func(context.Context, parallel.ProgressFunc) (any, error) {
		return 1, nil
	})
	require.NoError(t, err)
	assert.NotEqual(t, job.ID, again.ID)
	wait(t, m, again.ID)
}

func TestRetentionExpires(t *testing.T) {
	defer goleak.VerifyNone(t)
	m := NewManager(Options{Retention: 50 * time.Millisecond})
	defer m.Close()

	job, err := m.Submit(KindImpact, "", func(context.Context, parallel.ProgressFunc) (any, error) {
		return nil, nil
	})
	require.NoError(t, err)
	wait(t, m, job.ID)

	assert.Eventually(t, func() bool {
		_, err := m.Get(job.ID)
		return errors.Is(err, ErrNotFound)
	}, 2*time.Second, 10*time.Millisecond)
}

func TestNotFound(t *testing.T) {
	defer goleak.VerifyNone(t)
	m := NewManager(Options{})
	defer m.Close()

	_, err := m.Get("missing")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = m.Cancel("missing")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = m.Wait(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCloseCancelsAndRejects(t *testing.T) {
	defer goleak.VerifyNone(t)
	m := NewManager(Options{})

	job, err := m.Submit(KindImpact, "", blocking(nil))
	require.NoError(t, err)
	m.Close()
	m.Close()

	j, err := m.Get(job.ID)
	require.NoError(t, err)
	assert.Equal(t, Cancelled, j.State)

	_, err = m.Submit(KindImpact, "", blocking(nil))
	assert.ErrorIs(t, err, ErrClosed)
}

func TestListNewestFirst(t *testing.T) {
	defer goleak.VerifyNone(t)
	m := NewManager(Options{MaxRunning: 2})
	defer m.Close()

	quick := func(context.Context, parallel.ProgressFunc) (any, error) { return nil, nil }
	a, err := m.Submit(KindImpact, "", quick)
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)
	b, err := m.Submit(KindSPOF, "", quick)
	require.NoError(t, err)
	wait(t, m, a.ID)
	wait(t, m, b.ID)

	list := m.List()
	require.Len(t, list, 2)
	assert.Equal(t, b.ID, list[0].ID)
	assert.Equal(t, a.ID, list[1].ID)
}
