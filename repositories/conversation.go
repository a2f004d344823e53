//go:generate go run go.uber.org/mock/mockgen -source=conversation.go -destination=../mocks/mock_conversation_repository.go -package=mocks
package repositories

import (
	"sort"
	"support-flow/domain"
	"time"

	"github.com/dgraph-io/badger/v4"
)

type IConversationRepository interface {
	Touch(conversation domain.Conversation) (domain.Conversation, error)
	Get(id domain.ConversationID) (domain.Conversation, error)
	List() ([]domain.Conversation, error)
}

type ConversationRepository struct {
	db *badger.DB
}

func NewConversationRepository(db *badger.DB) *ConversationRepository {
	return &ConversationRepository{db: db}
}

type diskConversation struct {
	ID         string `cbor:"id"`
	Handle     string `cbor:"handle"`
	LastActive int64  `cbor:"last_active"`
}

const conversationPrefix = "conv:"

// Touch creates the conversation or moves its lastActive marker forward.
// An empty handle keeps the stored one.
func (c *ConversationRepository) Touch(conversation domain.Conversation) (domain.Conversation, error) {
	var result domain.Conversation
	err := c.db.Update(func(txn *badger.Txn) error {
		current, err := readConversation(txn, conversation.ID)
		switch {
		case err == nil:
		case err == badger.ErrKeyNotFound:
			current = domain.Conversation{ID: conversation.ID}
		default:
			return err
		}
		if conversation.Handle != "" {
			current.Handle = conversation.Handle
		}
		if conversation.LastActive.After(current.LastActive) {
			current.LastActive = conversation.LastActive
		}
		bytes, err := marshal(diskConversation{
			ID:         string(current.ID),
			Handle:     current.Handle,
			LastActive: current.LastActive.UnixNano(),
		})
		if err != nil {
			return err
		}
		result = current
		return txn.Set([]byte(conversationPrefix+string(current.ID)), bytes)
	})
	return result, err
}

func (c *ConversationRepository) Get(id domain.ConversationID) (domain.Conversation, error) {
	var conversation domain.Conversation
	err := c.db.View(func(txn *badger.Txn) error {
		var err error
		conversation, err = readConversation(txn, id)
		return notFound(err)
	})
	return conversation, err
}

// List returns every conversation, most recently active first.
func (c *ConversationRepository) List() ([]domain.Conversation, error) {
	var conversations []domain.Conversation
	err := c.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte(conversationPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var disk diskConversation
			if err := it.Item().Value(func(val []byte) error {
				return unmarshal(val, &disk)
			}); err != nil {
				return err
			}
			conversations = append(conversations, toConversation(disk))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(conversations, func(i, j int) bool {
		return conversations[i].LastActive.After(conversations[j].LastActive)
	})
	return conversations, nil
}

func readConversation(txn *badger.Txn, id domain.ConversationID) (domain.Conversation, error) {
	item, err := txn.Get([]byte(conversationPrefix + string(id)))
	if err != nil {
		return domain.Conversation{}, err
	}
	var disk diskConversation
	if err = item.Value(func(val []byte) error {
		return unmarshal(val, &disk)
	}); err != nil {
		return domain.Conversation{}, err
	}
	return toConversation(disk), nil
}

func toConversation(d diskConversation) domain.Conversation {
	return domain.Conversation{
		ID:         domain.ConversationID(d.ID),
		Handle:     d.Handle,
		LastActive: time.Unix(0, d.LastActive).UTC(),
	}
}
