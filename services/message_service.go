package services

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"support-flow/clock"
	"support-flow/contract"
	"support-flow/domain"
	"support-flow/domain/event"
	"support-flow/errors"
	"support-flow/observability"
	"support-flow/repositories"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// BodyFilter rewrites a body before it is stored, returning the matched words.
type BodyFilter interface {
	Mask(body string) (string, []string)
}

type IMessageService interface {
	Append(ctx context.Context, conversation domain.ConversationID, senderID domain.UserID, body string) (uuid.UUID, error)
	List(ctx context.Context, conversation domain.ConversationID) ([]domain.Message, error)
	Delete(ctx context.Context, conversation domain.ConversationID, messageID uuid.UUID, requesterID domain.UserID) error
	Subscribe(conversation domain.ConversationID, sink contract.EventSink) (contract.Subscription, error)
	Unsubscribe(sub contract.Subscription)
}

// MessageService is the append-only log of every conversation.
type MessageService struct {
	log           *slog.Logger
	desk          domain.Desk
	repository    repositories.IMessageRepository
	conversations repositories.IConversationRepository
	queue         IQueueService
	typing        ITypingCoordinator
	notifier      contract.INotifier
	clock         clock.Clock
	monitoring    *observability.Monitoring
	filter        BodyFilter
	locks         *keyedMutex

	mu     sync.Mutex
	lastAt map[domain.ConversationID]time.Time
}

func NewMessageService(log *slog.Logger, desk domain.Desk,
	repository repositories.IMessageRepository,
	conversations repositories.IConversationRepository,
	queue IQueueService,
	typing ITypingCoordinator,
	notifier contract.INotifier,
	clk clock.Clock,
	monitoring *observability.Monitoring) *MessageService {
	return &MessageService{
		log:           log,
		desk:          desk,
		repository:    repository,
		conversations: conversations,
		queue:         queue,
		typing:        typing,
		notifier:      notifier,
		clock:         clk,
		monitoring:    monitoring,
		locks:         newKeyedMutex(),
		lastAt:        make(map[domain.ConversationID]time.Time),
	}
}

// WithFilter masks every body through filter before it is stored.
func (s *MessageService) WithFilter(filter BodyFilter) *MessageService {
	s.filter = filter
	return s
}

// Append validates and stores a message, then touches the conversation.
// The sender's typing signal is cleared before the message is written.
// CreatedAt comes from the desk clock and is strictly increasing within
// a conversation, so (CreatedAt, ID) never contradicts commit order.
func (s *MessageService) Append(ctx context.Context, conversation domain.ConversationID,
	senderID domain.UserID, body string) (uuid.UUID, error) {
	if err := domain.ValidateBody(body); err != nil {
		return uuid.Nil, err
	}
	if err := s.authorizeSender(ctx, conversation, senderID); err != nil {
		return uuid.Nil, err
	}
	if s.filter != nil {
		masked, words := s.filter.Mask(body)
		if len(words) > 0 {
			s.log.Info("Message masked", "conversation_id", conversation, "user_id", senderID, "matches", len(words))
		}
		body = masked
	}

	if s.typing != nil {
		if err := s.typing.Stop(ctx, senderID, conversation); err != nil {
			s.log.Warn("Typing reset before send failed", "user_id", senderID, "error", err)
		}
	}

	message, err := s.store(ctx, conversation, senderID, body)
	if err != nil {
		return uuid.Nil, err
	}

	if _, err = s.queue.Touch(ctx, domain.Conversation{ID: conversation, LastActive: message.CreatedAt}); err != nil {
		s.log.Warn("Conversation touch after append failed", "conversation_id", conversation, "error", err)
	}
	return message.ID, nil
}

func (s *MessageService) store(ctx context.Context, conversation domain.ConversationID,
	senderID domain.UserID, body string) (domain.Message, error) {
	unlock := s.locks.Lock(string(conversation))
	defer unlock()

	if err := ctx.Err(); err != nil {
		return domain.Message{}, err
	}
	at, err := s.nextTimestamp(conversation)
	if err != nil {
		return domain.Message{}, err
	}
	message := domain.Message{
		ID:             uuid.New(),
		ConversationID: conversation,
		SenderID:       senderID,
		Body:           body,
		CreatedAt:      at,
	}
	if err = s.repository.StoreMessage(toDiskMessage(message)); err != nil {
		s.log.Error("Message write failed", "conversation_id", conversation, "error", err)
		return domain.Message{}, fromStore(err)
	}
	s.setLast(conversation, at)
	s.monitoring.IncrMessagesAppended()
	s.notifier.Publish(event.MessageAppended{Message: message})
	s.log.Debug("Message appended", "conversation_id", conversation, "message_id", message.ID)
	return message, nil
}

// nextTimestamp is called with the conversation lock held.
func (s *MessageService) nextTimestamp(conversation domain.ConversationID) (time.Time, error) {
	s.mu.Lock()
	last, known := s.lastAt[conversation]
	s.mu.Unlock()

	if !known {
		stored, found, err := s.repository.LastMessageAt(string(conversation))
		if err != nil {
			return time.Time{}, fromStore(err)
		}
		if found {
			last = stored
		}
	}
	now := s.clock.Now()
	if !now.After(last) {
		now = last.Add(time.Nanosecond)
	}
	return now, nil
}

func (s *MessageService) setLast(conversation domain.ConversationID, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastAt[conversation] = at
}

// List returns the conversation ascending by (CreatedAt, ID).
// A conversation without messages is empty, not missing.
func (s *MessageService) List(ctx context.Context, conversation domain.ConversationID) ([]domain.Message, error) {
	if err := conversation.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	diskMessages, err := s.repository.GetMessages(string(conversation))
	if err != nil {
		return nil, fromStore(err)
	}
	messages := lo.Map(diskMessages, func(m repositories.DiskMessage, _ int) domain.Message {
		return toMessage(m)
	})
	domain.SortMessages(messages)
	return messages, nil
}

// Delete removes a message. Only the agent may delete.
func (s *MessageService) Delete(ctx context.Context, conversation domain.ConversationID,
	messageID uuid.UUID, requesterID domain.UserID) error {
	if !s.desk.IsAgent(requesterID) {
		return fmt.Errorf("%w: only the agent can delete messages", errors.ErrAuthorization)
	}
	if err := conversation.Validate(); err != nil {
		return err
	}
	unlock := s.locks.Lock(string(conversation))
	defer unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := s.repository.DeleteMessage(string(conversation), messageID); err != nil {
		if stderrors.Is(err, errors.ErrNotFound) {
			return fmt.Errorf("%w: message %s", errors.ErrNotFound, messageID)
		}
		s.log.Error("Message delete failed", "conversation_id", conversation, "message_id", messageID, "error", err)
		return fromStore(err)
	}
	s.monitoring.IncrMessagesDeleted()
	s.notifier.Publish(event.MessageDeleted{
		Conversation: conversation,
		MessageID:    messageID,
		DeletedBy:    requesterID,
		At:           s.clock.Now(),
	})
	s.log.Info("Message deleted", "conversation_id", conversation, "message_id", messageID)
	return nil
}

func (s *MessageService) Subscribe(conversation domain.ConversationID, sink contract.EventSink) (contract.Subscription, error) {
	return s.notifier.Subscribe(domain.MessagesTopic(conversation), sink)
}

func (s *MessageService) Unsubscribe(sub contract.Subscription) {
	s.notifier.Unsubscribe(sub)
}

// LoadSnapshot reads the full ordered history of the topic's conversation.
func (s *MessageService) LoadSnapshot(ctx context.Context, topic domain.Topic) (event.DomainEvent, error) {
	conversation := domain.ConversationID(topic.Key)
	messages, err := s.List(ctx, conversation)
	if err != nil {
		return nil, err
	}
	return event.MessagesSnapshot{Conversation: conversation, Messages: messages}, nil
}

// authorizeSender accepts the owning customer and the agent. The agent can
// only write to a conversation its customer already opened.
func (s *MessageService) authorizeSender(ctx context.Context, conversation domain.ConversationID, senderID domain.UserID) error {
	if err := conversation.Validate(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	switch {
	case senderID == conversation.Customer():
		return nil
	case s.desk.IsAgent(senderID):
		_, err := s.conversations.Get(conversation)
		if stderrors.Is(err, errors.ErrNotFound) {
			return fmt.Errorf("%w: no conversation with %s", errors.ErrNotFound, conversation)
		}
		return fromStore(err)
	default:
		return fmt.Errorf("%w: %s is not a participant of %s", errors.ErrAuthorization, senderID, conversation)
	}
}

func toDiskMessage(m domain.Message) repositories.DiskMessage {
	return repositories.DiskMessage{
		ID:           m.ID,
		Conversation: string(m.ConversationID),
		Sender:       string(m.SenderID),
		Body:         m.Body,
		At:           m.CreatedAt,
	}
}

func toMessage(m repositories.DiskMessage) domain.Message {
	return domain.Message{
		ID:             m.ID,
		ConversationID: domain.ConversationID(m.Conversation),
		SenderID:       domain.UserID(m.Sender),
		Body:           m.Body,
		CreatedAt:      m.At,
	}
}
