// Package jobs runs long analyses asynchronously. Finished jobs stay
// queryable for a retention period and then expire.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jellydator/ttlcache/v3"

	"github.com/dd0wney/cluso-netimpact/pkg/events"
	"github.com/dd0wney/cluso-netimpact/pkg/logging"
	"github.com/dd0wney/cluso-netimpact/pkg/metrics"
	"github.com/dd0wney/cluso-netimpact/pkg/parallel"
)

// Kind names the analysis a job runs.
type Kind string

const (
	KindImpact Kind = "impact"
	KindSPOF   Kind = "spof"
)

// State is a job lifecycle state.
type State string

const (
	Queued    State = "queued"
	Running   State = "running"
	Succeeded State = "succeeded"
	Failed    State = "failed"
	Cancelled State = "cancelled"
)

// Final reports whether s is terminal.
func (s State) Final() bool {
	return s == Succeeded || s == Failed || s == Cancelled
}

// DefaultRetention applies when Options.Retention is zero.
const DefaultRetention = time.Hour

var (
	ErrNotFound = errors.New("job not found")
	ErrClosed   = errors.New("job manager closed")
)

// Job is a point-in-time view of a job.
type Job struct {
	ID          string            `json:"id"`
	Kind        Kind              `json:"kind"`
	State       State             `json:"state"`
	Fingerprint string            `json:"fingerprint"`
	Progress    parallel.Progress `json:"progress"`
	Error       string            `json:"error,omitempty"`
	CreatedAt   time.Time         `json:"createdAt"`
	StartedAt   *time.Time        `json:"startedAt,omitempty"`
	FinishedAt  *time.Time        `json:"finishedAt,omitempty"`
	// Result holds the analysis output once the job is final. Cancelled
	// jobs carry the partial result.
	Result any `json:"result,omitempty"`
}

// RunFunc performs the work. It must honour ctx and report progress; a
// cancelled run returns its partial result and a nil error.
type RunFunc func(ctx context.Context, progress parallel.ProgressFunc) (any, error)

// Options configures a Manager.
type Options struct {
	Retention  time.Duration
	MaxRunning int // concurrent running jobs; 1 when zero
	Bus        *events.Bus
	Logger     logging.Logger
	Metrics    *metrics.Registry
}

type entry struct {
	mu     sync.Mutex
	job    Job
	cancel context.CancelFunc
	done   chan struct{}
}

func (e *entry) snapshot() Job {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.job
}

// Manager owns submitted jobs.
type Manager struct {
	jobs    *ttlcache.Cache[string, *entry]
	byFP    *ttlcache.Cache[string, string]
	slots   chan struct{}
	bus     *events.Bus
	logger  logging.Logger
	metrics *metrics.Registry

	ctx    context.Context
	stop   context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex
	closed bool
}

// NewManager starts a manager and its expiry loop. Close releases both.
func NewManager(opts Options) *Manager {
	retention := opts.Retention
	if retention <= 0 {
		retention = DefaultRetention
	}
	running := opts.MaxRunning
	if running <= 0 {
		running = 1
	}

	ctx, stop := context.WithCancel(context.Background())
	m := &Manager{
		jobs: ttlcache.New[string, *entry](
			ttlcache.WithTTL[string, *entry](retention),
			ttlcache.WithDisableTouchOnHit[string, *entry](),
		),
		byFP: ttlcache.New[string, string](
			ttlcache.WithTTL[string, string](retention),
			ttlcache.WithDisableTouchOnHit[string, string](),
		),
		slots:   make(chan struct{}, running),
		bus:     opts.Bus,
		logger:  logging.OrNop(opts.Logger).With(logging.Component("jobs")),
		metrics: opts.Metrics,
		ctx:     ctx,
		stop:    stop,
	}
	m.wg.Add(2)
	go func() { defer m.wg.Done(); m.jobs.Start() }()
	go func() { defer m.wg.Done(); m.byFP.Start() }()
	return m
}

// Submit queues run. When a live or succeeded job with the same kind and
// fingerprint exists it is returned instead and run is discarded.
func (m *Manager) Submit(kind Kind, fingerprint string, run RunFunc) (Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return Job{}, ErrClosed
	}

	dedupe := string(kind) + ":" + fingerprint
	if fingerprint != "" {
		if item := m.byFP.Get(dedupe); item != nil {
			if existing, ok := m.lookup(item.Value()); ok {
				if j := existing.snapshot(); j.State != Failed && j.State != Cancelled {
					return j, nil
				}
			}
		}
	}

	ctx, cancel := context.WithCancel(m.ctx)
	e := &entry{
		job: Job{
			ID:          uuid.NewString(),
			Kind:        kind,
			State:       Queued,
			Fingerprint: fingerprint,
			CreatedAt:   time.Now().UTC(),
		},
		cancel: cancel,
		done:   make(chan struct{}),
	}
	// Unfinished jobs never expire.
	m.jobs.Set(e.job.ID, e, ttlcache.NoTTL)
	if fingerprint != "" {
		m.byFP.Set(dedupe, e.job.ID, ttlcache.DefaultTTL)
	}

	m.metrics.JobStarted(string(kind))
	m.publish(events.JobSubmitted, e.job)
	m.logger.Info("job submitted",
		logging.JobID(e.job.ID),
		logging.String("kind", string(kind)),
		logging.Fingerprint(fingerprint))

	m.wg.Add(1)
	go m.execute(ctx, e, run)
	return e.snapshot(), nil
}

func (m *Manager) execute(ctx context.Context, e *entry, run RunFunc) {
	defer m.wg.Done()
	defer e.cancel()

	select {
	case m.slots <- struct{}{}:
		defer func() { <-m.slots }()
	case <-ctx.Done():
		m.finish(e, nil, nil, true)
		return
	}

	started := time.Now().UTC()
	e.mu.Lock()
	e.job.State = Running
	e.job.StartedAt = &started
	job := e.job
	e.mu.Unlock()
	m.publish(events.JobProgress, job)

	result, err := run(ctx, func(p parallel.Progress) {
		e.mu.Lock()
		e.job.Progress = p
		job := e.job
		e.mu.Unlock()
		m.publish(events.JobProgress, job)
	})
	m.finish(e, result, err, ctx.Err() != nil)
}

func (m *Manager) finish(e *entry, result any, err error, cancelled bool) {
	finished := time.Now().UTC()
	e.mu.Lock()
	switch {
	case err != nil:
		e.job.State = Failed
		e.job.Error = err.Error()
	case cancelled:
		e.job.State = Cancelled
	default:
		e.job.State = Succeeded
	}
	if err == nil {
		e.job.Result = result
	}
	e.job.FinishedAt = &finished
	job := e.job
	e.mu.Unlock()

	m.jobs.Set(job.ID, e, ttlcache.DefaultTTL)
	close(e.done)

	m.metrics.JobFinished(string(job.Kind), string(job.State))
	m.publish(events.JobFinished, job)

	log := m.logger.With(logging.JobID(job.ID), logging.String("kind", string(job.Kind)))
	if err != nil {
		log.Error("job failed", logging.Error(err))
		return
	}
	log.Info("job finished", logging.String("state", string(job.State)))
}

func (m *Manager) publish(t events.Type, j Job) {
	if m.bus == nil {
		return
	}
	m.bus.Publish(events.Event{
		Type:  t,
		JobID: j.ID,
		Kind:  string(j.Kind),
		State: string(j.State),
		Done:  j.Progress.Done,
		Total: j.Progress.Total,
		Error: j.Error,
	})
}

func (m *Manager) lookup(id string) (*entry, bool) {
	item := m.jobs.Get(id)
	if item == nil {
		return nil, false
	}
	return item.Value(), true
}

// Get returns the current view of a job.
func (m *Manager) Get(id string) (Job, error) {
	e, ok := m.lookup(id)
	if !ok {
		return Job{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return e.snapshot(), nil
}

// List returns every retained job, newest first.
func (m *Manager) List() []Job {
	items := m.jobs.Items()
	out := make([]Job, 0, len(items))
	for _, item := range items {
		out = append(out, item.Value().snapshot())
	}
	sortJobs(out)
	return out
}

// Cancel stops a queued or running job. Cancelling a final job is a no-op.
func (m *Manager) Cancel(id string) (Job, error) {
	e, ok := m.lookup(id)
	if !ok {
		return Job{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	e.cancel()
	return e.snapshot(), nil
}

// Wait blocks until the job is final or ctx ends.
func (m *Manager) Wait(ctx context.Context, id string) (Job, error) {
	e, ok := m.lookup(id)
	if !ok {
		return Job{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	select {
	case <-e.done:
		return e.snapshot(), nil
	case <-ctx.Done():
		return e.snapshot(), ctx.Err()
	}
}

// Close cancels every job, waits for them to stop and ends the expiry loop.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.mu.Unlock()

	m.stop()
	m.jobs.Stop()
	m.byFP.Stop()
	m.wg.Wait()
}
