package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"support-flow/contract"
	"support-flow/domain"
	"support-flow/domain/event"
	"support-flow/errors"
	"support-flow/observability"
	"support-flow/runtime/workers"
	"sync"

	"github.com/google/uuid"
)

type activeSubscription struct {
	topic  domain.Topic
	cancel context.CancelFunc
}

// Notifier is the change-notification hub. Every subscription owns a queue
// registered on its topic and a supervised delivery worker that sends the
// snapshot first and then the queued events.
type Notifier struct {
	mu         sync.Mutex
	log        *slog.Logger
	registry   contract.IRegistry
	supervisor *workers.Supervisor
	backoff    workers.Backoff
	monitoring *observability.Monitoring
	loaders    map[domain.TopicKind]workers.SnapshotLoader
	active     map[string]activeSubscription
	ctx        context.Context
	cancel     context.CancelFunc
	closed     bool
}

func NewNotifier(log *slog.Logger, registry contract.IRegistry, supervisor *workers.Supervisor,
	backoff workers.Backoff, monitoring *observability.Monitoring) *Notifier {
	ctx, cancel := context.WithCancel(context.Background())
	return &Notifier{
		log:        log,
		registry:   registry,
		supervisor: supervisor,
		backoff:    backoff,
		monitoring: monitoring,
		loaders:    make(map[domain.TopicKind]workers.SnapshotLoader),
		active:     make(map[string]activeSubscription),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// RegisterLoader sets how snapshots of a topic kind are read.
func (n *Notifier) RegisterLoader(kind domain.TopicKind, loader workers.SnapshotLoader) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.loaders[kind] = loader
}

// Subscribe registers sink on topic. The queue is registered before the
// snapshot is read, so nothing committed after this call can be missed.
func (n *Notifier) Subscribe(topic domain.Topic, sink contract.EventSink) (contract.Subscription, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed {
		return contract.Subscription{}, errors.ErrClosed
	}
	loader, ok := n.loaders[topic.Kind]
	if !ok {
		return contract.Subscription{}, fmt.Errorf("%w: %s", errors.ErrUnknownTopic, topic.Kind)
	}

	sub := contract.Subscription{ID: uuid.NewString(), Topic: topic}
	queue := workers.NewDeliveryQueue()
	n.registry.Subscribe(sub.ID, topic, queue)

	ctx, cancel := context.WithCancel(n.ctx)
	n.active[sub.ID] = activeSubscription{topic: topic, cancel: cancel}
	n.monitoring.SubscriptionOpened()

	worker := workers.NewDeliveryWorker(n.log, topic, queue, sink, loader, n.backoff, n.monitoring).
		OnAbandon(func(err error) {
			n.log.Error("Subscription dropped, snapshot unavailable", "id", sub.ID, "topic", topic.String(), "error", err)
			n.Unsubscribe(sub)
		})
	n.supervisor.Start(ctx, worker)

	n.log.Debug("Subscription opened", "id", sub.ID, "topic", topic.String())
	return sub, nil
}

// Unsubscribe stops deliveries for sub. Calling it twice is a no-op.
func (n *Notifier) Unsubscribe(sub contract.Subscription) {
	n.mu.Lock()
	active, ok := n.active[sub.ID]
	delete(n.active, sub.ID)
	n.mu.Unlock()

	if !ok {
		return
	}
	n.registry.Unsubscribe(sub.ID, active.topic)
	active.cancel()
	n.monitoring.SubscriptionClosed()
	n.log.Debug("Subscription closed", "id", sub.ID, "topic", sub.Topic.String())
}

// Publish enqueues e for every subscription of its topic. Callers publish
// while holding their per-topic lock, which fixes the delivery order.
func (n *Notifier) Publish(e event.DomainEvent) {
	for _, sink := range n.registry.GetSinksForTopic(e.Topic()) {
		if err := sink.Consume(n.ctx, e); err != nil {
			n.log.Warn("Enqueue failed", "topic", e.Topic().String(), "error", err)
		}
	}
}

// Close cancels every subscription and waits for the delivery workers.
func (n *Notifier) Close() {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return
	}
	n.closed = true
	remaining := n.active
	n.active = make(map[string]activeSubscription)
	n.mu.Unlock()

	for id, active := range remaining {
		n.registry.Unsubscribe(id, active.topic)
		n.monitoring.SubscriptionClosed()
	}
	n.cancel()
	n.supervisor.Wait()
	n.log.Debug("Notifier closed", "subscriptions", len(remaining))
}
