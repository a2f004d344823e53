//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"
	"support-flow/domain"
	"support-flow/domain/event"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

type WorkerName string

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// EventSink receives the events of a subscription.
// Returning an error wrapping errors.ErrTransientIO asks for a retry.
type EventSink interface {
	Consume(ctx context.Context, e event.DomainEvent) error
}

// SinkFunc adapts a plain function to an EventSink.
type SinkFunc func(ctx context.Context, e event.DomainEvent) error

func (f SinkFunc) Consume(ctx context.Context, e event.DomainEvent) error {
	return f(ctx, e)
}

type IRegistry interface {
	GetSinksForTopic(topic domain.Topic) []EventSink
	Subscribe(subscriptionID string, topic domain.Topic, sink EventSink)
	Unsubscribe(subscriptionID string, topic domain.Topic)
}

// Publisher fans a committed change out to the subscribers of its topic.
type Publisher interface {
	Publish(e event.DomainEvent)
}

// Subscription identifies a live subscription.
type Subscription struct {
	ID    string
	Topic domain.Topic
}

type INotifier interface {
	Publisher
	Subscribe(topic domain.Topic, sink EventSink) (Subscription, error)
	Unsubscribe(sub Subscription)
}
