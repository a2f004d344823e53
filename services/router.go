package services

import (
	"context"
	stderrors "errors"
	"fmt"
	"support-flow/domain"
	"support-flow/errors"
	"support-flow/repositories"
)

type IConversationRouter interface {
	ResolveConversation(ctx context.Context, requester domain.UserID, target domain.UserID) (domain.ConversationID, error)
	Counterpart(self domain.UserID, conversation domain.ConversationID) domain.UserID
}

// ConversationRouter maps participants to conversations. With a single
// agent the conversation of a customer is keyed by the customer's ID.
type ConversationRouter struct {
	desk          domain.Desk
	conversations repositories.IConversationRepository
}

func NewConversationRouter(desk domain.Desk, conversations repositories.IConversationRepository) *ConversationRouter {
	return &ConversationRouter{desk: desk, conversations: conversations}
}

// ResolveConversation returns the customer's own conversation when a customer
// asks (target is ignored), and the target customer's conversation when the
// agent asks. The agent can only open conversations that already exist.
func (r *ConversationRouter) ResolveConversation(ctx context.Context, requester domain.UserID,
	target domain.UserID) (domain.ConversationID, error) {
	if err := requester.Validate(); err != nil {
		return "", fmt.Errorf("requester: %w", err)
	}
	if !r.desk.IsAgent(requester) {
		return domain.ConversationID(requester), nil
	}

	if target == "" || r.desk.IsAgent(target) {
		return "", fmt.Errorf("%w: the agent must target a customer", errors.ErrValidation)
	}
	if err := target.Validate(); err != nil {
		return "", fmt.Errorf("target: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	conversation, err := r.conversations.Get(domain.ConversationID(target))
	if stderrors.Is(err, errors.ErrNotFound) {
		return "", fmt.Errorf("%w: no conversation with %s", errors.ErrNotFound, target)
	}
	if err != nil {
		return "", fromStore(err)
	}
	return conversation.ID, nil
}

// Counterpart returns the other participant of a conversation.
func (r *ConversationRouter) Counterpart(self domain.UserID, conversation domain.ConversationID) domain.UserID {
	if r.desk.IsAgent(self) {
		return conversation.Customer()
	}
	return r.desk.AgentID
}
