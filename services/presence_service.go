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
)

type IPresenceService interface {
	SetPresence(ctx context.Context, callerID, userID domain.UserID, patch domain.PresencePatch) (domain.Presence, error)
	GetPresence(ctx context.Context, userID domain.UserID) (domain.Presence, bool, error)
	SubscribePresence(userID domain.UserID, sink contract.EventSink) (contract.Subscription, error)
	Unsubscribe(sub contract.Subscription)
}

type PresenceService struct {
	log        *slog.Logger
	repository repositories.IPresenceRepository
	notifier   contract.INotifier
	clock      clock.Clock
	monitoring *observability.Monitoring
	locks      *keyedMutex
}

func NewPresenceService(log *slog.Logger, repository repositories.IPresenceRepository,
	notifier contract.INotifier, clk clock.Clock, monitoring *observability.Monitoring) *PresenceService {
	return &PresenceService{
		log:        log,
		repository: repository,
		notifier:   notifier,
		clock:      clk,
		monitoring: monitoring,
		locks:      newKeyedMutex(),
	}
}

// SetPresence merges patch into the record of userID. Only the owner may
// write its own record. The write is stamped with the desk clock and
// published before the lock is released, so subscribers see writes in
// commit order.
func (s *PresenceService) SetPresence(ctx context.Context, callerID, userID domain.UserID,
	patch domain.PresencePatch) (domain.Presence, error) {
	if callerID != userID {
		return domain.Presence{}, fmt.Errorf("%w: %s cannot write presence of %s", errors.ErrAuthorization, callerID, userID)
	}
	if err := ctx.Err(); err != nil {
		return domain.Presence{}, err
	}

	unlock := s.locks.Lock(string(userID))
	defer unlock()

	presence, err := s.repository.Upsert(userID, patch, s.clock.Now())
	if err != nil {
		s.log.Error("Presence write failed", "user_id", userID, "error", err)
		return domain.Presence{}, fromStore(err)
	}
	s.monitoring.IncrPresenceWrites()
	s.notifier.Publish(event.PresenceChanged{Presence: presence})
	s.log.Debug("Presence updated", "user_id", userID, "is_typing", presence.IsTyping, "typing_target", presence.TypingTarget)
	return presence, nil
}

// GetPresence returns false when the user never wrote a record.
func (s *PresenceService) GetPresence(ctx context.Context, userID domain.UserID) (domain.Presence, bool, error) {
	if err := ctx.Err(); err != nil {
		return domain.Presence{}, false, err
	}
	presence, err := s.repository.Get(userID)
	if stderrors.Is(err, errors.ErrNotFound) {
		return domain.Presence{}, false, nil
	}
	if err != nil {
		return domain.Presence{}, false, fromStore(err)
	}
	return presence, true, nil
}

func (s *PresenceService) SubscribePresence(userID domain.UserID, sink contract.EventSink) (contract.Subscription, error) {
	return s.notifier.Subscribe(domain.PresenceTopic(userID), sink)
}

func (s *PresenceService) Unsubscribe(sub contract.Subscription) {
	s.notifier.Unsubscribe(sub)
}

// LoadSnapshot reads the current presence of the topic's user.
func (s *PresenceService) LoadSnapshot(ctx context.Context, topic domain.Topic) (event.DomainEvent, error) {
	userID := domain.UserID(topic.Key)
	presence, ok, err := s.GetPresence(ctx, userID)
	if err != nil {
		return nil, err
	}
	snapshot := event.PresenceSnapshot{UserID: userID}
	if ok {
		snapshot.Presence = &presence
	}
	return snapshot, nil
}
