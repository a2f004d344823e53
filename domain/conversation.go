package domain

import "time"

// ConversationID equals the customer's user ID.
// There is exactly one agent, so a customer owns exactly one conversation.
type ConversationID string

// Conversation holds the metadata used to sort the agent queue.
type Conversation struct {
	ID         ConversationID
	Handle     string
	LastActive time.Time
}

func (c ConversationID) Validate() error {
	return c.Customer().Validate()
}

// Customer returns the identity owning the conversation.
func (c ConversationID) Customer() UserID {
	return UserID(c)
}
