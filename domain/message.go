// Package domain contains core concepts of the support desk.
// This file defines Message events and related rules.
// Messages are immutable and validated by the domain.
package domain

import (
	"sort"
	"strings"
	"support-flow/errors"
	"time"

	"github.com/google/uuid"
)

// Message represents an immutable chat entry of a conversation.
type Message struct {
	ID             uuid.UUID
	ConversationID ConversationID
	SenderID       UserID
	Body           string
	// CreatedAt is assigned by the authoritative clock at write time.
	CreatedAt time.Time
}

// Before orders messages by creation time, ties broken by identity.
func (m Message) Before(other Message) bool {
	if !m.CreatedAt.Equal(other.CreatedAt) {
		return m.CreatedAt.Before(other.CreatedAt)
	}
	return m.ID.String() < other.ID.String()
}

func SortMessages(messages []Message) {
	sort.SliceStable(messages, func(i, j int) bool {
		return messages[i].Before(messages[j])
	})
}

// ValidateBody rejects bodies that are empty once trimmed.
func ValidateBody(body string) error {
	if strings.TrimSpace(body) == "" {
		return errors.ErrEmptyBody
	}
	return nil
}
