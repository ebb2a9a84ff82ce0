package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func recv(t *testing.T, sub *Subscription) Event {
	t.Helper()
	select {
	case ev, ok := <-sub.Channel():
		require.True(t, ok, "channel closed")
		return ev
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}
	return Event{}
}

func TestBusDeliversByJob(t *testing.T) {
	defer goleak.VerifyNone(t)
	bus := NewBus(nil)
	defer bus.Shutdown()
	ctx := context.Background()

	mine, err := bus.Subscribe(ctx, "job-1")
	require.NoError(t, err)
	other, err := bus.Subscribe(ctx, "job-2")
	require.NoError(t, err)
	all, err := bus.Subscribe(ctx, AllJobs)
	require.NoError(t, err)

	bus.Publish(Event{Type: JobProgress, JobID: "job-1", Done: 3, Total: 10})

	ev := recv(t, mine)
	assert.Equal(t, JobProgress, ev.Type)
	assert.Equal(t, 3, ev.Done)
	assert.False(t, ev.Time.IsZero())
	assert.Equal(t, "job-1", recv(t, all).JobID)

	select {
	case ev := <-other.Channel():
		t.Fatalf("unexpected event for job-2: %+v", ev)
	default:
	}
}

func TestBusNeverBlocks(t *testing.T) {
	defer goleak.VerifyNone(t)
	bus := NewBus(nil)
	defer bus.Shutdown()

	sub, err := bus.Subscribe(context.Background(), "slow")
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		for i := 0; i < SubscriptionBuffer*3; i++ {
			bus.Publish(Event{Type: JobProgress, JobID: "slow", Done: i})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a full subscriber")
	}
	assert.Len(t, sub.Channel(), SubscriptionBuffer)
	assert.Equal(t, 0, recv(t, sub).Done)
}

func TestSubscriptionContextCancel(t *testing.T) {
	defer goleak.VerifyNone(t)
	bus := NewBus(nil)
	defer bus.Shutdown()

	ctx, cancel := context.WithCancel(context.Background())
	sub, err := bus.Subscribe(ctx, "job")
	require.NoError(t, err)
	assert.Equal(t, 1, bus.SubscriberCount("job"))

	cancel()
	_, ok := <-sub.Channel()
	assert.False(t, ok)
	assert.Eventually(t, func() bool { return bus.SubscriberCount("job") == 0 }, time.Second, 5*time.Millisecond)

	// publishing after the subscriber left must not panic
	bus.Publish(Event{Type: JobFinished, JobID: "job"})
}

func TestShutdown(t *testing.T) {
	defer goleak.VerifyNone(t)
	bus := NewBus(nil)

	sub, err := bus.Subscribe(context.Background(), AllJobs)
	require.NoError(t, err)
	bus.Shutdown()
	bus.Shutdown()

	_, ok := <-sub.Channel()
	assert.False(t, ok)

	_, err = bus.Subscribe(context.Background(), AllJobs)
	assert.ErrorIs(t, err, ErrClosed)
	bus.Publish(Event{Type: JobSubmitted, JobID: "late"})
}

func TestConcurrentPublishUnsubscribe(t *testing.T) {
	defer goleak.VerifyNone(t)
	bus := NewBus(nil)
	defer bus.Shutdown()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		id := fmt.Sprintf("job-%d", i%4)
		go func() {
			defer wg.Done()
			sub, err := bus.Subscribe(context.Background(), id)
			if err == nil {
				sub.Unsubscribe()
			}
		}()
		go func() {
			defer wg.Done()
			bus.Publish(Event{Type: JobProgress, JobID: id})
		}()
	}
	wg.Wait()
}

type recordingSink struct {
	mu     sync.Mutex
	events []Event
	err    error
}

func (s *recordingSink) Publish(ev Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return s.err
}

func TestSinks(t *testing.T) {
	bus := NewBus(nil)
	defer bus.Shutdown()

	ok := &recordingSink{}
	failing := &recordingSink{err: errors.New("down")}
	bus.AddSink(failing)
	bus.AddSink(ok)

	bus.Publish(Event{Type: JobSubmitted, JobID: "a", Kind: "impact"})
	bus.Publish(Event{Type: JobFinished, JobID: "a", Kind: "impact", State: "succeeded"})

	require.Len(t, ok.events, 2)
	assert.Equal(t, "succeeded", ok.events[1].State)
	assert.Len(t, failing.events, 2)
}

func TestEncodeDecode(t *testing.T) {
	ev := Event{Type: JobFinished, JobID: "x", Kind: "spof", State: "failed", Error: "boom", Done: 2, Total: 4,
		Time: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
	msg, err := encode(ev)
	require.NoError(t, err)
	assert.Equal(t, "job.finished\n", string(msg[:len("job.finished\n")]))

	got, err := decode(msg)
	require.NoError(t, err)
	assert.Equal(t, ev, got)

	_, err = decode([]byte("no separator"))
	assert.Error(t, err)
}

func TestNNGPubSub(t *testing.T) {
	url := "inproc://netimpact-events-test"
	pubr, err := NewNNGPublisher(url)
	require.NoError(t, err)
	defer pubr.Close()

	subr, err := NewNNGSubscriber(url, JobFinished)
	require.NoError(t, err)
	defer subr.Close()

	bus := NewBus(nil)
	defer bus.Shutdown()
	bus.AddSink(pubr)

	// PUB drops messages until the SUB connection is established, so keep
	// publishing until one arrives.
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		bus.Publish(Event{Type: JobProgress, JobID: "j", Done: 1, Total: 2})
		bus.Publish(Event{Type: JobFinished, JobID: "j", State: "succeeded"})
		ev, err := subr.Recv(100 * time.Millisecond)
		if IsTimeout(err) {
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, JobFinished, ev.Type)
		assert.Equal(t, "succeeded", ev.State)
		return
	}
	t.Fatal("no event received over nng")
}
