package runtime

import (
	"support-flow/contract"
	"support-flow/domain"
	"sync"
)

type Set map[string]struct{}

type Registry struct {
	mu           sync.RWMutex
	Sinks        map[string]contract.EventSink // map subscription -> Sink
	TopicMembers map[domain.Topic]Set          // map topic to subscriptions
}

func NewRegistry() *Registry {
	return &Registry{
		Sinks:        make(map[string]contract.EventSink),
		TopicMembers: make(map[domain.Topic]Set),
	}
}

// GetSinksForTopic resolves the subscriptions of a topic into their sinks.
// Returns nil if nobody listens on the topic.
func (r *Registry) GetSinksForTopic(topic domain.Topic) []contract.EventSink {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members, ok := r.TopicMembers[topic]
	if !ok {
		return nil
	}
	activeSinks := make([]contract.EventSink, 0, len(members))
	for subscriptionID := range members {
		if sink, exists := r.Sinks[subscriptionID]; exists {
			activeSinks = append(activeSinks, sink)
		}
	}
	return activeSinks
}

// Subscribe registers a sink under a subscription id for one topic.
// The topic entry is created on the fly.
func (r *Registry) Subscribe(subscriptionID string, topic domain.Topic, sink contract.EventSink) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.Sinks[subscriptionID] = sink

	if _, ok := r.TopicMembers[topic]; !ok {
		r.TopicMembers[topic] = make(Set)
	}
	r.TopicMembers[topic][subscriptionID] = struct{}{}
}

// Unsubscribe removes a subscription. Empty topic sets are dropped so the
// map does not grow with every conversation ever watched.
func (r *Registry) Unsubscribe(subscriptionID string, topic domain.Topic) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.Sinks, subscriptionID)

	if members, ok := r.TopicMembers[topic]; ok {
		delete(members, subscriptionID)

		if len(members) == 0 {
			delete(r.TopicMembers, topic)
		}
	}
}
