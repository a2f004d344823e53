package workers

import (
	"context"
	"log/slog"
	"support-flow/contract"
	"support-flow/domain"
	"support-flow/domain/event"
	"support-flow/errors"
	"support-flow/observability"
	"sync"
	"time"
)

// SnapshotLoader reads the full current state of a topic.
type SnapshotLoader func(ctx context.Context, topic domain.Topic) (event.DomainEvent, error)

// DeliveryQueue is the unbounded FIFO of one subscription.
// Consume never blocks and never drops, so publishers holding a per-topic
// lock enqueue in commit order.
type DeliveryQueue struct {
	mu    sync.Mutex
	items []event.DomainEvent
	ready chan struct{}
}

func NewDeliveryQueue() *DeliveryQueue {
	return &DeliveryQueue{ready: make(chan struct{}, 1)}
}

func (q *DeliveryQueue) Consume(_ context.Context, e event.DomainEvent) error {
	q.mu.Lock()
	q.items = append(q.items, e)
	q.mu.Unlock()
	select {
	case q.ready <- struct{}{}:
	default:
	}
	return nil
}

func (q *DeliveryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *DeliveryQueue) pop() (event.DomainEvent, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil, false
	}
	e := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	return e, true
}

// DeliveryWorker feeds one subscriber: first a full snapshot, then every
// queued event in order. Transient failures are retried with backoff while
// the subscription stays registered.
type DeliveryWorker struct {
	log        *slog.Logger
	topic      domain.Topic
	queue      *DeliveryQueue
	sink       contract.EventSink
	load       SnapshotLoader
	backoff    Backoff
	monitoring *observability.Monitoring
	abandon    func(err error)
}

func NewDeliveryWorker(log *slog.Logger, topic domain.Topic, queue *DeliveryQueue,
	sink contract.EventSink, load SnapshotLoader, backoff Backoff,
	monitoring *observability.Monitoring) *DeliveryWorker {
	return &DeliveryWorker{
		log:        log,
		topic:      topic,
		queue:      queue,
		sink:       sink,
		load:       load,
		backoff:    backoff,
		monitoring: monitoring,
	}
}

// OnAbandon sets the callback run when the snapshot cannot be loaded for
// good. The worker ends right after it.
func (w *DeliveryWorker) OnAbandon(fn func(err error)) *DeliveryWorker {
	w.abandon = fn
	return w
}

// Run returns nil when the subscription is cancelled. A restart after a
// panic starts over with a fresh snapshot.
func (w *DeliveryWorker) Run(ctx context.Context) error {
	snapshot, attempts, ok := w.loadSnapshot(ctx)
	if !ok {
		return nil
	}
	if !w.deliver(ctx, snapshot) {
		return nil
	}
	if attempts > 0 {
		w.log.Info("Subscription restored", "topic", w.topic.String(), "attempts", attempts)
		if !w.deliver(ctx, event.SubscriptionRestored{Subject: w.topic, Attempts: attempts}) {
			return nil
		}
	}

	for {
		for ctx.Err() == nil {
			evt, ok := w.queue.pop()
			if !ok {
				break
			}
			if !w.deliver(ctx, evt) {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			return nil
		case <-w.queue.ready:
		}
	}
}

// loadSnapshot also returns how many attempts failed before it succeeded.
func (w *DeliveryWorker) loadSnapshot(ctx context.Context) (event.DomainEvent, int, bool) {
	attempt := 0
	for {
		snapshot, err := w.load(ctx, w.topic)
		if err == nil {
			return snapshot, attempt, true
		}
		if ctx.Err() != nil {
			return nil, attempt, false
		}
		if !errors.IsRetryable(err) {
			w.log.Error("Snapshot load failed", "topic", w.topic.String(), "error", err)
			if w.abandon != nil {
				w.abandon(err)
			}
			return nil, attempt, false
		}
		attempt++
		w.monitoring.IncrDeliveryRetries()
		w.log.Warn("Snapshot load failed, retrying", "topic", w.topic.String(), "attempt", attempt, "error", err)
		if !w.wait(ctx, attempt) {
			return nil, attempt, false
		}
	}
}

// deliver returns false only when the subscription is gone. Nothing is
// handed to the sink once ctx is cancelled.
func (w *DeliveryWorker) deliver(ctx context.Context, e event.DomainEvent) bool {
	attempt := 0
	for {
		if ctx.Err() != nil {
			return false
		}
		err := w.sink.Consume(ctx, e)
		if err == nil {
			w.monitoring.IncrDeliveries()
			return true
		}
		if ctx.Err() != nil {
			return false
		}
		if !errors.IsRetryable(err) {
			w.monitoring.IncrDroppedEvents()
			w.log.Warn("Event rejected by subscriber, dropping", "topic", w.topic.String(), "error", err)
			return true
		}
		attempt++
		w.monitoring.IncrDeliveryRetries()
		w.log.Debug("Delivery failed, retrying", "topic", w.topic.String(), "attempt", attempt, "error", err)
		if !w.wait(ctx, attempt) {
			return false
		}
	}
}

func (w *DeliveryWorker) wait(ctx context.Context, attempt int) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(w.backoff.Delay(attempt)):
		return true
	}
}
