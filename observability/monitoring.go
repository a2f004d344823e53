package observability

import (
	"sync/atomic"
)

// Stats is a point-in-time copy of the desk counters.
type Stats struct {
	MessagesAppended    uint64
	MessagesDeleted     uint64
	PresenceWrites      uint64
	Deliveries          uint64
	DeliveryRetries     uint64
	DroppedEvents       uint64
	ActiveSubscriptions int64
}

// Monitoring aggregates counters updated from hot paths with atomics.
// A nil *Monitoring is valid and records nothing.
type Monitoring struct {
	messagesAppended    atomic.Uint64
	messagesDeleted     atomic.Uint64
	presenceWrites      atomic.Uint64
	deliveries          atomic.Uint64
	deliveryRetries     atomic.Uint64
	droppedEvents       atomic.Uint64
	activeSubscriptions atomic.Int64
}

func NewMonitoring() *Monitoring {
	return &Monitoring{}
}

func (m *Monitoring) IncrMessagesAppended() {
	if m != nil {
		m.messagesAppended.Add(1)
	}
}

func (m *Monitoring) IncrMessagesDeleted() {
	if m != nil {
		m.messagesDeleted.Add(1)
	}
}

func (m *Monitoring) IncrPresenceWrites() {
	if m != nil {
		m.presenceWrites.Add(1)
	}
}

func (m *Monitoring) IncrDeliveries() {
	if m != nil {
		m.deliveries.Add(1)
	}
}

func (m *Monitoring) IncrDeliveryRetries() {
	if m != nil {
		m.deliveryRetries.Add(1)
	}
}

func (m *Monitoring) IncrDroppedEvents() {
	if m != nil {
		m.droppedEvents.Add(1)
	}
}

func (m *Monitoring) SubscriptionOpened() {
	if m != nil {
		m.activeSubscriptions.Add(1)
	}
}

func (m *Monitoring) SubscriptionClosed() {
	if m != nil {
		m.activeSubscriptions.Add(-1)
	}
}

func (m *Monitoring) GetLatest() Stats {
	if m == nil {
		return Stats{}
	}
	return Stats{
		MessagesAppended:    m.messagesAppended.Load(),
		MessagesDeleted:     m.messagesDeleted.Load(),
		PresenceWrites:      m.presenceWrites.Load(),
		Deliveries:          m.deliveries.Load(),
		DeliveryRetries:     m.deliveryRetries.Load(),
		DroppedEvents:       m.droppedEvents.Load(),
		ActiveSubscriptions: m.activeSubscriptions.Load(),
	}
}
