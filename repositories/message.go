//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	"fmt"
	"log/slog"
	"support-flow/errors"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

type IMessageRepository interface {
	StoreMessage(message DiskMessage) error
	GetMessages(conversation string) ([]DiskMessage, error)
	GetMessage(conversation string, id uuid.UUID) (DiskMessage, error)
	DeleteMessage(conversation string, id uuid.UUID) (DiskMessage, error)
	LastMessageAt(conversation string) (time.Time, bool, error)
}

type MessageRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewMessageRepository(db *badger.DB, log *slog.Logger) MessageRepository {
	return MessageRepository{db: db, log: log}
}

type DiskMessage struct {
	ID           uuid.UUID
	Conversation string
	Sender       string
	Body         string
	At           time.Time
}

// StoreMessage persists a message in BadgerDB.
// The key is formatted as "msg:{conversation}:{timestamp_padded}:{uuid}" to:
//  1. Ensure chronological sorting using 19-digit zero padding (lexicographical order).
//  2. Break ties on the identity when two messages share the same nanosecond.
//
// A second key "msgid:{conversation}:{uuid}" points back to the primary key for deletes.
func (m MessageRepository) StoreMessage(message DiskMessage) error {
	key := messageKey(message.Conversation, message.At, message.ID)
	bytes := encodeMessage(message)
	return m.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(key, bytes); err != nil {
			return err
		}
		return txn.Set(messageIndexKey(message.Conversation, message.ID), key)
	})
}

// GetMessages returns the whole conversation ascending by (timestamp, id).
func (m MessageRepository) GetMessages(conversation string) ([]DiskMessage, error) {
	var diskMessages []DiskMessage
	err := m.db.View(func(txn *badger.Txn) error {
		prefix := messagePrefix(conversation)
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(value []byte) error {
				message, err := decodeMessage(value)
				if err != nil {
					return err
				}
				diskMessages = append(diskMessages, message)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	m.log.Debug("Messages loaded", "conversation_id", conversation, "count", len(diskMessages))
	return diskMessages, nil
}

func (m MessageRepository) GetMessage(conversation string, id uuid.UUID) (DiskMessage, error) {
	var message DiskMessage
	err := m.db.View(func(txn *badger.Txn) error {
		var err error
		message, _, err = lookupMessage(txn, conversation, id)
		return err
	})
	return message, err
}

// DeleteMessage removes the message and its index entry in one transaction.
func (m MessageRepository) DeleteMessage(conversation string, id uuid.UUID) (DiskMessage, error) {
	var message DiskMessage
	err := m.db.Update(func(txn *badger.Txn) error {
		found, key, err := lookupMessage(txn, conversation, id)
		if err != nil {
			return err
		}
		if err = txn.Delete(key); err != nil {
			return err
		}
		message = found
		return txn.Delete(messageIndexKey(conversation, id))
	})
	return message, err
}

// LastMessageAt returns the creation time of the newest message.
// It seeks to the end of the conversation and reads backwards.
func (m MessageRepository) LastMessageAt(conversation string) (time.Time, bool, error) {
	var at time.Time
	var found bool
	err := m.db.View(func(txn *badger.Txn) error {
		prefix := messagePrefix(conversation)
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		it.Seek(append(append([]byte{}, prefix...), []byte("9999999999999999999")...))
		if !it.ValidForPrefix(prefix) {
			return nil
		}
		return it.Item().Value(func(value []byte) error {
			message, err := decodeMessage(value)
			if err != nil {
				return err
			}
			at, found = message.At, true
			return nil
		})
	})
	return at, found, err
}

func lookupMessage(txn *badger.Txn, conversation string, id uuid.UUID) (DiskMessage, []byte, error) {
	item, err := txn.Get(messageIndexKey(conversation, id))
	if err != nil {
		return DiskMessage{}, nil, notFound(err)
	}
	key, err := item.ValueCopy(nil)
	if err != nil {
		return DiskMessage{}, nil, err
	}
	item, err = txn.Get(key)
	if err != nil {
		return DiskMessage{}, nil, notFound(err)
	}
	var message DiskMessage
	err = item.Value(func(value []byte) error {
		message, err = decodeMessage(value)
		return err
	})
	return message, key, err
}

func messagePrefix(conversation string) []byte {
	return []byte(fmt.Sprintf("msg:%s:", conversation))
}

func messageKey(conversation string, at time.Time, id uuid.UUID) []byte {
	return []byte(fmt.Sprintf("msg:%s:%019d:%s", conversation, at.UnixNano(), id))
}

func messageIndexKey(conversation string, id uuid.UUID) []byte {
	return []byte(fmt.Sprintf("msgid:%s:%s", conversation, id))
}

// notFound translates badger misses into the domain error.
func notFound(err error) error {
	if err == badger.ErrKeyNotFound {
		return errors.ErrNotFound
	}
	return err
}
