// Package events fans job lifecycle events out to in-process subscribers and,
// optionally, to remote listeners over a nanomsg PUB socket.
package events

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dd0wney/cluso-netimpact/pkg/logging"
)

// Type names an event.
type Type string

const (
	JobSubmitted Type = "job.submitted"
	JobProgress  Type = "job.progress"
	JobFinished  Type = "job.finished"
)

// AllJobs subscribes to every job's events.
const AllJobs = ""

// ErrClosed is returned by Subscribe after Shutdown.
var ErrClosed = errors.New("event bus closed")

// Event describes one job state change.
type Event struct {
	Type  Type      `json:"type"`
	JobID string    `json:"jobId"`
	Kind  string    `json:"kind"`
	State string    `json:"state,omitempty"`
	Done  int       `json:"done"`
	Total int       `json:"total"`
	Error string    `json:"error,omitempty"`
	Time  time.Time `json:"time"`
}

// Sink receives every published event, e.g. a network publisher.
type Sink interface {
	Publish(ev Event) error
}

// Bus delivers events to subscribers without ever blocking the publisher.
// Slow subscribers drop events once their buffer is full.
type Bus struct {
	subscribers map[string]map[*Subscription]bool
	sinks       []Sink
	logger      logging.Logger
	mu          sync.RWMutex
	shutdown    chan struct{}
	shutdownMu  sync.Mutex
	isShutdown  bool
}

// Subscription receives events for one job, or for all jobs.
type Subscription struct {
	jobID     string
	channel   chan Event
	bus       *Bus
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// SubscriptionBuffer is the per-subscriber channel capacity.
const SubscriptionBuffer = 100

// NewBus creates a bus. A nil logger discards sink errors.
func NewBus(logger logging.Logger) *Bus {
	return &Bus{
		subscribers: make(map[string]map[*Subscription]bool),
		logger:      logging.OrNop(logger),
		shutdown:    make(chan struct{}),
	}
}

// AddSink forwards every later event to s.
func (b *Bus) AddSink(s Sink) {
	b.mu.Lock()
	b.sinks = append(b.sinks, s)
	b.mu.Unlock()
}

// Subscribe listens for events of jobID, or of every job with AllJobs. The
// subscription ends when ctx is cancelled.
func (b *Bus) Subscribe(ctx context.Context, jobID string) (*Subscription, error) {
	b.shutdownMu.Lock()
	if b.isShutdown {
		b.shutdownMu.Unlock()
		return nil, ErrClosed
	}
	b.shutdownMu.Unlock()

	subCtx, cancel := context.WithCancel(ctx)
	sub := &Subscription{
		jobID:   jobID,
		channel: make(chan Event, SubscriptionBuffer),
		bus:     b,
		cancel:  cancel,
	}

	b.mu.Lock()
	if b.subscribers[jobID] == nil {
		b.subscribers[jobID] = make(map[*Subscription]bool)
	}
	b.subscribers[jobID][sub] = true
	b.mu.Unlock()

	go func() {
		select {
		case <-subCtx.Done():
			sub.Unsubscribe()
		case <-b.shutdown:
			sub.close()
		}
	}()

	return sub, nil
}

// Publish delivers ev to the job's subscribers, the AllJobs subscribers and
// every sink.
func (b *Bus) Publish(ev Event) {
	b.shutdownMu.Lock()
	if b.isShutdown {
		b.shutdownMu.Unlock()
		return
	}
	b.shutdownMu.Unlock()

	if ev.Time.IsZero() {
		ev.Time = time.Now().UTC()
	}

	// Snapshot under lock; sends happen outside it.
	b.mu.RLock()
	subs := make([]*Subscription, 0, len(b.subscribers[ev.JobID])+len(b.subscribers[AllJobs]))
	for sub := range b.subscribers[ev.JobID] {
		subs = append(subs, sub)
	}
	if ev.JobID != AllJobs {
		for sub := range b.subscribers[AllJobs] {
			subs = append(subs, sub)
		}
	}
	sinks := append([]Sink(nil), b.sinks...)
	b.mu.RUnlock()

	for _, sub := range subs {
		sub.send(ev)
	}
	for _, s := range sinks {
		if err := s.Publish(ev); err != nil {
			b.logger.Warn("event sink publish failed",
				logging.String("type", string(ev.Type)),
				logging.JobID(ev.JobID),
				logging.Error(err))
		}
	}
}

// SubscriberCount returns the number of subscribers for jobID.
func (b *Bus) SubscriberCount(jobID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers[jobID])
}

// Shutdown closes every subscription. Later publishes are dropped.
func (b *Bus) Shutdown() {
	b.shutdownMu.Lock()
	if b.isShutdown {
		b.shutdownMu.Unlock()
		return
	}
	b.isShutdown = true
	b.shutdownMu.Unlock()

	close(b.shutdown)

	b.mu.Lock()
	for id := range b.subscribers {
		for sub := range b.subscribers[id] {
			sub.close()
		}
		delete(b.subscribers, id)
	}
	b.mu.Unlock()
}

// Channel returns the subscription's event channel. It is closed when the
// subscription ends.
func (s *Subscription) Channel() <-chan Event {
	return s.channel
}

// Unsubscribe removes the subscription and closes its channel.
func (s *Subscription) Unsubscribe() {
	s.cancel()

	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()

	if s.bus.subscribers[s.jobID] != nil {
		delete(s.bus.subscribers[s.jobID], s)
		if len(s.bus.subscribers[s.jobID]) == 0 {
			delete(s.bus.subscribers, s.jobID)
		}
	}

	s.close()
}

// send never blocks. Closing happens under the bus write lock, so holding
// the read lock here keeps the channel open for the duration of the send.
func (s *Subscription) send(ev Event) {
	s.bus.mu.RLock()
	defer s.bus.mu.RUnlock()
	if !s.bus.subscribers[s.jobID][s] {
		return
	}
	select {
	case s.channel <- ev:
	default:
	}
}

func (s *Subscription) close() {
	s.closeOnce.Do(func() {
		close(s.channel)
	})
}
