package services_test

import (
	"context"
	"support-flow/domain"
	"support-flow/domain/event"
	"support-flow/errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T {
	return &v
}

func TestPresenceService_Only_Owner_Can_Write(t *testing.T) {
	req := require.New(t)
	d := newDesk(t)
	ctx := context.Background()

	_, err := d.presence.SetPresence(ctx, "cust-7", "cust-42", domain.PresencePatch{IsTyping: ptr(true)})
	req.ErrorIs(err, errors.ErrAuthorization)

	_, found, err := d.presence.GetPresence(ctx, "cust-42")
	req.NoError(err)
	req.False(found)
}

func TestPresenceService_Merge_Preserves_Unspecified_Fields(t *testing.T) {
	req := require.New(t)
	d := newDesk(t)
	ctx := context.Background()

	_, err := d.presence.SetPresence(ctx, "cust-42", "cust-42", domain.PresencePatch{
		Handle:       ptr("jane@example.com"),
		IsTyping:     ptr(true),
		TypingTarget: ptr(agentID),
	})
	req.NoError(err)
	d.clock.Advance(time.Second)

	// When only isTyping is written
	updated, err := d.presence.SetPresence(ctx, "cust-42", "cust-42", domain.PresencePatch{IsTyping: ptr(false)})
	req.NoError(err)

	// Then handle and target are kept and the write is stamped by the desk clock
	req.Equal("jane@example.com", updated.Handle)
	req.Equal(agentID, updated.TypingTarget)
	req.False(updated.IsTyping)
	req.True(updated.LastActive.Equal(epoch.Add(time.Second)))

	stored, found, err := d.presence.GetPresence(ctx, "cust-42")
	req.NoError(err)
	req.True(found)
	req.Equal(updated.Handle, stored.Handle)
	req.True(updated.UpdatedAt.Equal(stored.UpdatedAt))
}

func TestPresenceService_Revisions_Increase_With_Frozen_Clock(t *testing.T) {
	req := require.New(t)
	d := newDesk(t)
	ctx := context.Background()

	first, err := d.presence.SetPresence(ctx, agentID, agentID, domain.PresencePatch{IsTyping: ptr(true)})
	req.NoError(err)
	second, err := d.presence.SetPresence(ctx, agentID, agentID, domain.PresencePatch{IsTyping: ptr(false)})
	req.NoError(err)

	req.True(second.UpdatedAt.After(first.UpdatedAt))
}

func TestPresenceService_Subscribe_Snapshot_Then_Changes_In_Write_Order(t *testing.T) {
	req := require.New(t)
	d := newDesk(t)
	ctx := context.Background()

	_, err := d.presence.SetPresence(ctx, "cust-42", "cust-42", domain.PresencePatch{Handle: ptr("jane@example.com")})
	req.NoError(err)

	sink := &recorder{}
	sub, err := d.presence.SubscribePresence("cust-42", sink)
	req.NoError(err)
	defer d.presence.Unsubscribe(sub)

	events := sink.waitFor(t, 1)
	snapshot, ok := events[0].(event.PresenceSnapshot)
	req.True(ok)
	req.NotNil(snapshot.Presence)
	req.Equal("jane@example.com", snapshot.Presence.Handle)

	for _, typing := range []bool{true, false, true} {
		_, err = d.presence.SetPresence(ctx, "cust-42", "cust-42", domain.PresencePatch{IsTyping: ptr(typing)})
		req.NoError(err)
	}

	events = sink.waitFor(t, 4)
	req.Equal([]bool{false, true, false, true}, presenceTrail(events))
	req.Equal(uint64(4), d.monitoring.GetLatest().PresenceWrites)
}

func TestPresenceService_Snapshot_Of_Unknown_User_Is_Empty(t *testing.T) {
	req := require.New(t)
	d := newDesk(t)

	sink := &recorder{}
	_, err := d.presence.SubscribePresence("nobody", sink)
	req.NoError(err)

	events := sink.waitFor(t, 1)
	req.Equal(event.PresenceSnapshot{UserID: "nobody"}, events[0])
}
