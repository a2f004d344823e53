package event

import (
	"support-flow/domain"
	"time"

	"github.com/google/uuid"
)

// DomainEvent is a change delivered to the subscribers of its topic.
type DomainEvent interface {
	Topic() domain.Topic
}

// MessagesSnapshot is the full ordered history of a conversation.
// It is always the first event a messages subscriber receives.
type MessagesSnapshot struct {
	Conversation domain.ConversationID
	Messages     []domain.Message
}

func (m MessagesSnapshot) Topic() domain.Topic {
	return domain.MessagesTopic(m.Conversation)
}

type MessageAppended struct {
	Message domain.Message
}

func (m MessageAppended) Topic() domain.Topic {
	return domain.MessagesTopic(m.Message.ConversationID)
}

type MessageDeleted struct {
	Conversation domain.ConversationID
	MessageID    uuid.UUID
	DeletedBy    domain.UserID
	At           time.Time
}

func (m MessageDeleted) Topic() domain.Topic {
	return domain.MessagesTopic(m.Conversation)
}

// PresenceSnapshot carries the current record, nil when the user never wrote one.
type PresenceSnapshot struct {
	UserID   domain.UserID
	Presence *domain.Presence
}

func (p PresenceSnapshot) Topic() domain.Topic {
	return domain.PresenceTopic(p.UserID)
}

type PresenceChanged struct {
	Presence domain.Presence
}

func (p PresenceChanged) Topic() domain.Topic {
	return domain.PresenceTopic(p.Presence.UserID)
}

// QueueSnapshot lists conversations by recency, most recent first.
type QueueSnapshot struct {
	Conversations []domain.Conversation
}

func (q QueueSnapshot) Topic() domain.Topic {
	return domain.QueueTopic()
}

type ConversationTouched struct {
	Conversation domain.Conversation
}

func (c ConversationTouched) Topic() domain.Topic {
	return domain.QueueTopic()
}

// SubscriptionRestored tells a subscriber its topic is live again after
// failed attempts. A fresh snapshot always follows it.
type SubscriptionRestored struct {
	Subject  domain.Topic
	Attempts int
}

func (s SubscriptionRestored) Topic() domain.Topic {
	return s.Subject
}
