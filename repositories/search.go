//go:generate go run go.uber.org/mock/mockgen -source=search.go -destination=../mocks/mock_conversation_index.go -package=mocks
package repositories

import (
	"context"
	"strings"
	"support-flow/domain"

	"github.com/blugelabs/bluge"
)

type IConversationIndex interface {
	Index(conversation domain.Conversation) error
	Search(term string, limit int) ([]domain.ConversationID, error)
}

// ConversationIndex lets the agent find a customer by any part of its handle.
type ConversationIndex struct {
	writer *bluge.Writer
}

func NewConversationIndex(writer *bluge.Writer) *ConversationIndex {
	return &ConversationIndex{writer: writer}
}

const handleField = "handle"

// Index stores the lowercased handle as a single keyword term so that
// wildcard queries behave like a case-insensitive substring match.
func (i *ConversationIndex) Index(conversation domain.Conversation) error {
	doc := bluge.NewDocument(string(conversation.ID)).
		AddField(bluge.NewKeywordField(handleField, strings.ToLower(conversation.Handle)).StoreValue())
	return i.writer.Update(doc.ID(), doc)
}

// Search returns the conversations whose handle contains term.
// An empty term matches everything.
func (i *ConversationIndex) Search(term string, limit int) ([]domain.ConversationID, error) {
	reader, err := i.writer.Reader()
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	var query bluge.Query = bluge.NewMatchAllQuery()
	if cleaned := cleanTerm(term); cleaned != "" {
		query = bluge.NewWildcardQuery("*" + cleaned + "*").SetField(handleField)
	}

	matches, err := reader.Search(context.Background(), bluge.NewTopNSearch(limit, query))
	if err != nil {
		return nil, err
	}

	var ids []domain.ConversationID
	match, err := matches.Next()
	for err == nil && match != nil {
		err = match.VisitStoredFields(func(field string, value []byte) bool {
			if field == "_id" {
				ids = append(ids, domain.ConversationID(value))
			}
			return true
		})
		if err != nil {
			return nil, err
		}
		match, err = matches.Next()
	}
	return ids, err
}

// cleanTerm drops wildcard operators typed by the user.
func cleanTerm(term string) string {
	return strings.NewReplacer("*", "", "?", "").Replace(strings.ToLower(strings.TrimSpace(term)))
}
