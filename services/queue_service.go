package services

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"support-flow/contract"
	"support-flow/domain"
	"support-flow/domain/event"
	"support-flow/errors"
	"support-flow/repositories"

	"github.com/samber/lo"
)

const (
	queueLockKey = "queue"
	searchLimit  = 50
)

// QueueEntry is one line of the agent queue.
type QueueEntry struct {
	Conversation domain.Conversation
	// Presence is nil when the customer never wrote one.
	Presence *domain.Presence
	// Typing is true when the customer is typing to the agent.
	Typing bool
}

type IQueueService interface {
	Touch(ctx context.Context, conversation domain.Conversation) (domain.Conversation, error)
	List(ctx context.Context, requester domain.UserID) ([]QueueEntry, error)
	Search(ctx context.Context, requester domain.UserID, term string) ([]QueueEntry, error)
	Subscribe(requester domain.UserID, sink contract.EventSink) (contract.Subscription, error)
	Unsubscribe(sub contract.Subscription)
}

// QueueService keeps the agent's list of conversations sorted by recency.
type QueueService struct {
	log           *slog.Logger
	desk          domain.Desk
	conversations repositories.IConversationRepository
	presence      repositories.IPresenceRepository
	index         repositories.IConversationIndex
	notifier      contract.INotifier
	locks         *keyedMutex
}

func NewQueueService(log *slog.Logger, desk domain.Desk,
	conversations repositories.IConversationRepository,
	presence repositories.IPresenceRepository,
	index repositories.IConversationIndex,
	notifier contract.INotifier) *QueueService {
	return &QueueService{
		log:           log,
		desk:          desk,
		conversations: conversations,
		presence:      presence,
		index:         index,
		notifier:      notifier,
		locks:         newKeyedMutex(),
	}
}

// Touch upserts the conversation metadata and publishes the result on the
// queue topic. The handle is indexed whenever it is known.
func (s *QueueService) Touch(ctx context.Context, conversation domain.Conversation) (domain.Conversation, error) {
	if err := ctx.Err(); err != nil {
		return domain.Conversation{}, err
	}
	unlock := s.locks.Lock(queueLockKey)
	defer unlock()

	touched, err := s.conversations.Touch(conversation)
	if err != nil {
		s.log.Error("Conversation touch failed", "conversation_id", conversation.ID, "error", err)
		return domain.Conversation{}, fromStore(err)
	}
	if conversation.Handle != "" {
		if err = s.index.Index(touched); err != nil {
			s.log.Warn("Conversation indexing failed", "conversation_id", touched.ID, "error", err)
		}
	}
	s.notifier.Publish(event.ConversationTouched{Conversation: touched})
	return touched, nil
}

// List returns every conversation, most recent first. Agent only.
func (s *QueueService) List(ctx context.Context, requester domain.UserID) ([]QueueEntry, error) {
	if err := s.authorize(requester); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	conversations, err := s.conversations.List()
	if err != nil {
		return nil, fromStore(err)
	}
	return s.join(conversations)
}

// Search matches term against customer handles, case-insensitive. Agent only.
func (s *QueueService) Search(ctx context.Context, requester domain.UserID, term string) ([]QueueEntry, error) {
	if err := s.authorize(requester); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ids, err := s.index.Search(term, searchLimit)
	if err != nil {
		return nil, errors.Transient(err)
	}

	conversations := make([]domain.Conversation, 0, len(ids))
	for _, id := range ids {
		conversation, err := s.conversations.Get(id)
		if stderrors.Is(err, errors.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fromStore(err)
		}
		conversations = append(conversations, conversation)
	}
	return s.join(conversations)
}

func (s *QueueService) Subscribe(requester domain.UserID, sink contract.EventSink) (contract.Subscription, error) {
	if err := s.authorize(requester); err != nil {
		return contract.Subscription{}, err
	}
	return s.notifier.Subscribe(domain.QueueTopic(), sink)
}

func (s *QueueService) Unsubscribe(sub contract.Subscription) {
	s.notifier.Unsubscribe(sub)
}

// LoadSnapshot reads the whole queue sorted by recency.
func (s *QueueService) LoadSnapshot(ctx context.Context, _ domain.Topic) (event.DomainEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	conversations, err := s.conversations.List()
	if err != nil {
		return nil, fromStore(err)
	}
	return event.QueueSnapshot{Conversations: conversations}, nil
}

func (s *QueueService) authorize(requester domain.UserID) error {
	if !s.desk.IsAgent(requester) {
		return fmt.Errorf("%w: only the agent can read the queue", errors.ErrAuthorization)
	}
	return nil
}

func (s *QueueService) join(conversations []domain.Conversation) ([]QueueEntry, error) {
	var joinErr error
	entries := lo.Map(conversations, func(conversation domain.Conversation, _ int) QueueEntry {
		entry := QueueEntry{Conversation: conversation}
		presence, err := s.presence.Get(conversation.ID.Customer())
		switch {
		case err == nil:
			entry.Presence = &presence
			entry.Typing = presence.IsTypingTo(s.desk.AgentID)
		case !stderrors.Is(err, errors.ErrNotFound) && joinErr == nil:
			joinErr = fromStore(err)
		}
		return entry
	})
	if joinErr != nil {
		return nil, joinErr
	}
	return entries, nil
}
