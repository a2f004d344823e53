// Package projection builds local timelines from observed events.
// Handles ordering, deduplication, and projections.
// Does not emit events or interact with UI directly.
package projection

import (
	"sort"
	"support-flow/domain"
	"support-flow/domain/event"

	"github.com/google/uuid"
)

// Timeline is the local, ordered view of one conversation.
// Deliveries are at-least-once, so every event is applied idempotently.
type Timeline struct {
	Conversation domain.ConversationID
	Messages     []domain.Message
	index        map[uuid.UUID]struct{}
}

func NewTimeline(conversation domain.ConversationID) *Timeline {
	return &Timeline{
		Conversation: conversation,
		index:        make(map[uuid.UUID]struct{}),
	}
}

// Apply folds an event into the timeline and reports whether it changed.
// Events of other conversations are ignored.
func (t *Timeline) Apply(e event.DomainEvent) bool {
	switch evt := e.(type) {
	case event.MessagesSnapshot:
		if evt.Conversation != t.Conversation {
			return false
		}
		t.reset(evt.Messages)
		return true
	case event.MessageAppended:
		if evt.Message.ConversationID != t.Conversation {
			return false
		}
		return t.insert(evt.Message)
	case event.MessageDeleted:
		if evt.Conversation != t.Conversation {
			return false
		}
		return t.remove(evt.MessageID)
	}
	return false
}

func (t *Timeline) Contains(id uuid.UUID) bool {
	_, ok := t.index[id]
	return ok
}

func (t *Timeline) Len() int {
	return len(t.Messages)
}

func (t *Timeline) reset(messages []domain.Message) {
	t.Messages = make([]domain.Message, 0, len(messages))
	t.index = make(map[uuid.UUID]struct{}, len(messages))
	for _, m := range messages {
		if _, dup := t.index[m.ID]; dup {
			continue
		}
		t.index[m.ID] = struct{}{}
		t.Messages = append(t.Messages, m)
	}
	domain.SortMessages(t.Messages)
}

// insert keeps Messages sorted by (CreatedAt, ID).
func (t *Timeline) insert(m domain.Message) bool {
	if _, dup := t.index[m.ID]; dup {
		return false
	}
	t.index[m.ID] = struct{}{}
	i := sort.Search(len(t.Messages), func(i int) bool {
		return m.Before(t.Messages[i])
	})
	t.Messages = append(t.Messages, domain.Message{})
	copy(t.Messages[i+1:], t.Messages[i:])
	t.Messages[i] = m
	return true
}

func (t *Timeline) remove(id uuid.UUID) bool {
	if _, ok := t.index[id]; !ok {
		return false
	}
	delete(t.index, id)
	for i, m := range t.Messages {
		if m.ID == id {
			t.Messages = append(t.Messages[:i], t.Messages[i+1:]...)
			break
		}
	}
	return true
}
