package workers

import (
	"context"
	stderrors "errors"
	"log/slog"
	"support-flow/domain"
	"support-flow/domain/event"
	"support-flow/errors"
	"support-flow/observability"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	mu       sync.Mutex
	events   []event.DomainEvent
	failures []error
}

func (s *recordingSink) Consume(_ context.Context, e event.DomainEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.failures) > 0 {
		err := s.failures[0]
		s.failures = s.failures[1:]
		return err
	}
	s.events = append(s.events, e)
	return nil
}

func (s *recordingSink) received() []event.DomainEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]event.DomainEvent(nil), s.events...)
}

var testBackoff = Backoff{Initial: time.Millisecond, Max: 5 * time.Millisecond}

func appended(conv domain.ConversationID, body string) event.MessageAppended {
	return event.MessageAppended{Message: domain.Message{
		ID:             uuid.New(),
		ConversationID: conv,
		SenderID:       domain.UserID(conv),
		Body:           body,
		CreatedAt:      time.Now().UTC(),
	}}
}

func snapshotLoader(conv domain.ConversationID) SnapshotLoader {
	return func(ctx context.Context, topic domain.Topic) (event.DomainEvent, error) {
		return event.MessagesSnapshot{Conversation: conv}, nil
	}
}

func startDelivery(t *testing.T, w *DeliveryWorker) context.CancelFunc {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = w.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return cancel
}

func TestDeliveryWorker_Snapshot_Before_Queued_Events(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	conv := domain.ConversationID("cust-42")
	topic := domain.MessagesTopic(conv)
	queue := NewDeliveryQueue()
	sink := &recordingSink{}

	// Given events already queued before the worker starts
	first, second := appended(conv, "Hi"), appended(conv, "Hello")
	req.NoError(queue.Consume(context.Background(), first))
	req.NoError(queue.Consume(context.Background(), second))

	w := NewDeliveryWorker(log, topic, queue, sink, snapshotLoader(conv), testBackoff, observability.NewMonitoring())
	startDelivery(t, w)

	// Then the snapshot comes first and the queue is drained in order
	req.Eventually(func() bool { return len(sink.received()) == 3 }, time.Second, 5*time.Millisecond)
	events := sink.received()
	req.IsType(event.MessagesSnapshot{}, events[0])
	req.Equal(first, events[1])
	req.Equal(second, events[2])
	req.Zero(queue.Len())
}

func TestDeliveryWorker_Restored_After_Transient_Snapshot_Failures(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	conv := domain.ConversationID("cust-7")
	topic := domain.MessagesTopic(conv)
	monitoring := observability.NewMonitoring()
	sink := &recordingSink{}

	var mu sync.Mutex
	calls := 0
	loader := func(ctx context.Context, topic domain.Topic) (event.DomainEvent, error) {
		mu.Lock()
		defer mu.Unlock()
		calls++
		if calls <= 2 {
			return nil, errors.Transient(stderrors.New("disk busy"))
		}
		return event.MessagesSnapshot{Conversation: conv}, nil
	}

	w := NewDeliveryWorker(log, topic, NewDeliveryQueue(), sink, loader, testBackoff, monitoring)
	startDelivery(t, w)

	// Then the snapshot still comes first, the notice follows it
	req.Eventually(func() bool { return len(sink.received()) == 2 }, time.Second, 5*time.Millisecond)
	events := sink.received()
	req.IsType(event.MessagesSnapshot{}, events[0])
	req.Equal(event.SubscriptionRestored{Subject: topic, Attempts: 2}, events[1])
	req.Equal(uint64(2), monitoring.GetLatest().DeliveryRetries)
}

func TestDeliveryWorker_Abandons_On_Permanent_Snapshot_Failure(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	conv := domain.ConversationID("cust-8")
	sink := &recordingSink{}
	loader := func(ctx context.Context, topic domain.Topic) (event.DomainEvent, error) {
		return nil, stderrors.New("corrupt record")
	}

	abandoned := make(chan error, 1)
	w := NewDeliveryWorker(log, domain.MessagesTopic(conv), NewDeliveryQueue(), sink, loader, testBackoff, nil).
		OnAbandon(func(err error) { abandoned <- err })

	// When the snapshot cannot be read at all
	req.NoError(w.Run(context.Background()))

	// Then the owner hears about it and nothing reaches the subscriber
	select {
	case err := <-abandoned:
		req.EqualError(err, "corrupt record")
	default:
		req.Fail("abandon callback not called")
	}
	req.Empty(sink.received())
}

type gatedSink struct {
	recordingSink
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (s *gatedSink) Consume(ctx context.Context, e event.DomainEvent) error {
	s.once.Do(func() {
		close(s.entered)
		<-s.release
	})
	return s.recordingSink.Consume(ctx, e)
}

func TestDeliveryWorker_Stops_Draining_Once_Cancelled(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	conv := domain.ConversationID("cust-6")
	queue := NewDeliveryQueue()
	sink := &gatedSink{entered: make(chan struct{}), release: make(chan struct{})}

	// Given events queued while the snapshot delivery is in flight
	for i := 0; i < 5; i++ {
		req.NoError(queue.Consume(context.Background(), appended(conv, "queued")))
	}
	w := NewDeliveryWorker(log, domain.MessagesTopic(conv), queue, sink, snapshotLoader(conv), testBackoff, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = w.Run(ctx)
		close(done)
	}()
	<-sink.entered

	// When the subscription is cancelled before the sink returns
	cancel()
	close(sink.release)
	<-done

	// Then only the in-flight snapshot was delivered
	events := sink.received()
	req.Len(events, 1)
	req.IsType(event.MessagesSnapshot{}, events[0])
	req.Equal(5, queue.Len())
}

func TestDeliveryWorker_Retries_Transient_Sink_Errors(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	conv := domain.ConversationID("cust-9")
	queue := NewDeliveryQueue()
	sink := &recordingSink{failures: []error{
		errors.Transient(stderrors.New("socket full")),
		errors.Transient(stderrors.New("socket full")),
	}}

	w := NewDeliveryWorker(log, domain.MessagesTopic(conv), queue, sink, snapshotLoader(conv), testBackoff, nil)
	startDelivery(t, w)

	msg := appended(conv, "Hi")
	req.NoError(queue.Consume(context.Background(), msg))

	// Then nothing is lost and no restoration notice is sent
	req.Eventually(func() bool { return len(sink.received()) == 2 }, time.Second, 5*time.Millisecond)
	events := sink.received()
	req.IsType(event.MessagesSnapshot{}, events[0])
	req.Equal(msg, events[1])
}

func TestDeliveryWorker_Drops_Rejected_Event(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	conv := domain.ConversationID("cust-3")
	queue := NewDeliveryQueue()
	monitoring := observability.NewMonitoring()
	sink := &recordingSink{}

	w := NewDeliveryWorker(log, domain.MessagesTopic(conv), queue, sink, snapshotLoader(conv), testBackoff, monitoring)
	startDelivery(t, w)
	req.Eventually(func() bool { return len(sink.received()) == 1 }, time.Second, 5*time.Millisecond)

	// Given the subscriber rejects the next event for good
	sink.mu.Lock()
	sink.failures = []error{stderrors.New("bad payload")}
	sink.mu.Unlock()

	rejected, kept := appended(conv, "one"), appended(conv, "two")
	req.NoError(queue.Consume(context.Background(), rejected))
	req.NoError(queue.Consume(context.Background(), kept))

	req.Eventually(func() bool { return len(sink.received()) == 2 }, time.Second, 5*time.Millisecond)
	req.Equal(kept, sink.received()[1])
	req.Equal(uint64(1), monitoring.GetLatest().DroppedEvents)
}

func TestDeliveryWorker_Stops_On_Cancel(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	conv := domain.ConversationID("cust-5")
	w := NewDeliveryWorker(log, domain.MessagesTopic(conv), NewDeliveryQueue(), &recordingSink{},
		snapshotLoader(conv), testBackoff, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		req.NoError(err)
	case <-time.After(time.Second):
		req.Fail("worker should stop when its subscription is cancelled")
	}
}
