package services_test

import (
	"context"
	"support-flow/domain"
	"support-flow/errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConversationRouter_ResolveConversation(t *testing.T) {
	d := newDesk(t)
	ctx := context.Background()
	_, err := d.queue.Touch(ctx, domain.Conversation{ID: "cust-42", Handle: "jane@example.com", LastActive: d.clock.Now()})
	require.NoError(t, err)

	tests := []struct {
		name      string
		requester domain.UserID
		target    domain.UserID
		want      domain.ConversationID
		wantErr   error
	}{
		{name: "customer resolves to itself", requester: "cust-42", want: "cust-42"},
		{name: "customer target is ignored", requester: "cust-7", target: "cust-42", want: "cust-7"},
		{name: "agent opens an existing conversation", requester: agentID, target: "cust-42", want: "cust-42"},
		{name: "agent targets an unknown customer", requester: agentID, target: "cust-99", wantErr: errors.ErrNotFound},
		{name: "agent without target", requester: agentID, wantErr: errors.ErrValidation},
		{name: "agent targets itself", requester: agentID, target: agentID, wantErr: errors.ErrValidation},
		{name: "anonymous requester", target: "cust-42", wantErr: errors.ErrValidation},
		{name: "requester holding the key separator", requester: "cust-42:x", wantErr: errors.ErrValidation},
		{name: "agent targets an id holding the key separator", requester: agentID, target: "cust-42:x", wantErr: errors.ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			got, err := d.router.ResolveConversation(ctx, tt.requester, tt.target)
			if tt.wantErr != nil {
				req.ErrorIs(err, tt.wantErr)
				return
			}
			req.NoError(err)
			req.Equal(tt.want, got)
		})
	}
}

func TestConversationRouter_Counterpart(t *testing.T) {
	req := require.New(t)
	d := newDesk(t)

	req.Equal(agentID, d.router.Counterpart("cust-42", "cust-42"))
	req.Equal(domain.UserID("cust-42"), d.router.Counterpart(agentID, "cust-42"))
}
