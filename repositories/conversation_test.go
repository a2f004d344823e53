package repositories

import (
	"support-flow/domain"
	"support-flow/errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func Test_Conversation_Touch_And_List_By_Recency(t *testing.T) {
	req := require.New(t)
	repository := NewConversationRepository(openTestDB(t))
	at := time.Unix(1_700_000_000, 0).UTC()

	_, err := repository.Touch(domain.Conversation{ID: "alice", Handle: "alice@test.com", LastActive: at})
	req.NoError(err)
	_, err = repository.Touch(domain.Conversation{ID: "bob", Handle: "bob@test.com", LastActive: at.Add(time.Minute)})
	req.NoError(err)

	// When alice becomes active again without a handle
	touched, err := repository.Touch(domain.Conversation{ID: "alice", LastActive: at.Add(2 * time.Minute)})
	req.NoError(err)

	// Then the handle is kept and alice is first in the queue
	req.Equal("alice@test.com", touched.Handle)
	conversations, err := repository.List()
	req.NoError(err)
	req.Len(conversations, 2)
	req.Equal(domain.ConversationID("alice"), conversations[0].ID)
	req.Equal(domain.ConversationID("bob"), conversations[1].ID)
}

func Test_Conversation_Touch_Never_Moves_Backwards(t *testing.T) {
	req := require.New(t)
	repository := NewConversationRepository(openTestDB(t))
	at := time.Unix(1_700_000_000, 0).UTC()

	_, err := repository.Touch(domain.Conversation{ID: "alice", LastActive: at})
	req.NoError(err)
	touched, err := repository.Touch(domain.Conversation{ID: "alice", LastActive: at.Add(-time.Hour)})
	req.NoError(err)
	req.Equal(at, touched.LastActive)
}

func Test_Conversation_Get_Unknown(t *testing.T) {
	req := require.New(t)
	repository := NewConversationRepository(openTestDB(t))

	_, err := repository.Get("missing")
	req.ErrorIs(err, errors.ErrNotFound)
}
