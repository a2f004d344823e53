//go:generate go run go.uber.org/mock/mockgen -source=presence.go -destination=../mocks/mock_presence_repository.go -package=mocks
package repositories

import (
	"support-flow/domain"
	"time"

	"github.com/dgraph-io/badger/v4"
)

type IPresenceRepository interface {
	Upsert(userID domain.UserID, patch domain.PresencePatch, at time.Time) (domain.Presence, error)
	Get(userID domain.UserID) (domain.Presence, error)
}

type PresenceRepository struct {
	db *badger.DB
}

func NewPresenceRepository(db *badger.DB) *PresenceRepository {
	return &PresenceRepository{db: db}
}

type diskPresence struct {
	UserID       string `cbor:"user_id"`
	Handle       string `cbor:"handle"`
	IsTyping     bool   `cbor:"is_typing"`
	TypingTarget string `cbor:"typing_target"`
	LastActive   int64  `cbor:"last_active"`
	UpdatedAt    int64  `cbor:"updated_at"`
}

// Upsert merges the patch into the stored record inside one transaction.
// UpdatedAt never goes backwards: a write stamped at or before the stored
// revision is moved one nanosecond past it.
func (p *PresenceRepository) Upsert(userID domain.UserID, patch domain.PresencePatch, at time.Time) (domain.Presence, error) {
	var result domain.Presence
	err := p.db.Update(func(txn *badger.Txn) error {
		current, err := readPresence(txn, userID)
		switch {
		case err == nil:
		case err == badger.ErrKeyNotFound:
			current = domain.Presence{UserID: userID}
		default:
			return err
		}
		if !at.After(current.UpdatedAt) {
			at = current.UpdatedAt.Add(time.Nanosecond)
		}
		result = current.Apply(patch, at)
		bytes, err := marshal(fromPresence(result))
		if err != nil {
			return err
		}
		return txn.Set(presenceKey(userID), bytes)
	})
	return result, err
}

func (p *PresenceRepository) Get(userID domain.UserID) (domain.Presence, error) {
	var presence domain.Presence
	err := p.db.View(func(txn *badger.Txn) error {
		var err error
		presence, err = readPresence(txn, userID)
		return notFound(err)
	})
	return presence, err
}

func readPresence(txn *badger.Txn, userID domain.UserID) (domain.Presence, error) {
	item, err := txn.Get(presenceKey(userID))
	if err != nil {
		return domain.Presence{}, err
	}
	var disk diskPresence
	if err = item.Value(func(val []byte) error {
		return unmarshal(val, &disk)
	}); err != nil {
		return domain.Presence{}, err
	}
	return toPresence(disk), nil
}

func presenceKey(userID domain.UserID) []byte {
	return []byte("presence:" + string(userID))
}

func fromPresence(p domain.Presence) diskPresence {
	return diskPresence{
		UserID:       string(p.UserID),
		Handle:       p.Handle,
		IsTyping:     p.IsTyping,
		TypingTarget: string(p.TypingTarget),
		LastActive:   p.LastActive.UnixNano(),
		UpdatedAt:    p.UpdatedAt.UnixNano(),
	}
}

func toPresence(d diskPresence) domain.Presence {
	return domain.Presence{
		UserID:       domain.UserID(d.UserID),
		Handle:       d.Handle,
		IsTyping:     d.IsTyping,
		TypingTarget: domain.UserID(d.TypingTarget),
		LastActive:   time.Unix(0, d.LastActive).UTC(),
		UpdatedAt:    time.Unix(0, d.UpdatedAt).UTC(),
	}
}
