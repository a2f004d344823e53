// Package client is a headless chat window for one signed-in identity.
//
// Every action and every subscription callback of a Client runs on a single
// event loop goroutine, so handlers for the same client never run in
// parallel. Writes block the loop until they are committed; deliveries
// that arrive meanwhile wait their turn.
package client

import (
	"context"
	"fmt"
	"log/slog"
	"support-flow/clock"
	"support-flow/contract"
	"support-flow/domain"
	"support-flow/domain/event"
	"support-flow/errors"
	"support-flow/projection"
	"support-flow/services"
	"sync"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// Deps are the process-wide services a client talks to.
type Deps struct {
	Router   services.IConversationRouter
	Messages services.IMessageService
	Presence services.IPresenceService
	Typing   services.ITypingCoordinator
	Queue    services.IQueueService
	Clock    clock.Clock
}

// View is a copy of what the window shows.
type View struct {
	Session           domain.Session
	Conversation      domain.ConversationID
	Counterpart       domain.UserID
	Messages          []domain.Message
	CounterpartTyping bool
	Draft             string
	// Queue is only filled for the agent, most recent first.
	Queue []domain.Conversation
	// Reconnects counts subscriptions restored after failures.
	Reconnects int
}

type Listener func(View)

// queueGeneration tags the queue subscription, which outlives conversations.
const queueGeneration = -1

type Client struct {
	log     *slog.Logger
	deps    Deps
	session domain.Session

	actions   chan func()
	done      chan struct{}
	closeOnce sync.Once

	// Owned by the loop.
	generation   int
	conversation domain.ConversationID
	counterpart  domain.UserID
	timeline     *projection.Timeline
	presence     *domain.Presence
	queue        []domain.Conversation
	draft        string
	reconnects   int
	subs         []contract.Subscription
	queueSub     *contract.Subscription
	listeners    []Listener
}

// New starts the client loop and syncs the session's presence. A customer's
// conversation is touched so it shows in the agent queue with its handle.
// The agent client follows the queue.
func New(ctx context.Context, log *slog.Logger, session domain.Session, deps Deps) (*Client, error) {
	c := &Client{
		log:     log.With("user_id", session.UserID),
		deps:    deps,
		session: session,
		actions: make(chan func()),
		done:    make(chan struct{}),
	}
	go c.loop()

	err := c.do(func() error {
		notTyping := false
		handle := session.Handle
		if _, err := deps.Presence.SetPresence(ctx, session.UserID, session.UserID, domain.PresencePatch{
			Handle:   &handle,
			IsTyping: &notTyping,
		}); err != nil {
			return err
		}
		if !session.IsAgent() {
			_, err := deps.Queue.Touch(ctx, domain.Conversation{
				ID:         domain.ConversationID(session.UserID),
				Handle:     session.Handle,
				LastActive: deps.Clock.Now(),
			})
			return err
		}
		sub, err := deps.Queue.Subscribe(session.UserID, c.sink(queueGeneration))
		if err != nil {
			return err
		}
		c.queueSub = &sub
		return nil
	})
	if err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

// Open switches the window to a conversation. Customers always open their
// own one. The agent names the customer.
func (c *Client) Open(ctx context.Context, target domain.UserID) error {
	return c.do(func() error {
		conversation, err := c.deps.Router.ResolveConversation(ctx, c.session.UserID, target)
		if err != nil {
			return err
		}
		c.leave(ctx)

		c.generation++
		c.conversation = conversation
		c.counterpart = c.deps.Router.Counterpart(c.session.UserID, conversation)
		c.timeline = projection.NewTimeline(conversation)
		c.presence = nil

		messagesSub, err := c.deps.Messages.Subscribe(conversation, c.sink(c.generation))
		if err != nil {
			return err
		}
		c.subs = append(c.subs, messagesSub)
		presenceSub, err := c.deps.Presence.SubscribePresence(c.counterpart, c.sink(c.generation))
		if err != nil {
			return err
		}
		c.subs = append(c.subs, presenceSub)
		c.log.Info("Conversation opened", "conversation_id", conversation)
		c.notify()
		return nil
	})
}

// Input is a keystroke: it replaces the draft and feeds the typing signal.
func (c *Client) Input(ctx context.Context, text string) error {
	return c.do(func() error {
		c.draft = text
		defer c.notify()
		if c.conversation == "" {
			return nil
		}
		return c.deps.Typing.Keystroke(ctx, c.session.UserID, c.conversation, text)
	})
}

// Send appends the draft. On failure the draft is left intact.
func (c *Client) Send(ctx context.Context) (uuid.UUID, error) {
	var id uuid.UUID
	err := c.do(func() error {
		if c.conversation == "" {
			return fmt.Errorf("%w: no conversation open", errors.ErrValidation)
		}
		var err error
		id, err = c.deps.Messages.Append(ctx, c.conversation, c.session.UserID, c.draft)
		if err != nil {
			c.log.Warn("Send failed", "conversation_id", c.conversation, "error", err)
			return err
		}
		c.draft = ""
		c.notify()
		return nil
	})
	return id, err
}

// Delete removes a message of the open conversation. Errors are returned
// to the caller, never swallowed.
func (c *Client) Delete(ctx context.Context, messageID uuid.UUID) error {
	return c.do(func() error {
		if c.conversation == "" {
			return fmt.Errorf("%w: no conversation open", errors.ErrValidation)
		}
		return c.deps.Messages.Delete(ctx, c.conversation, messageID, c.session.UserID)
	})
}

func (c *Client) View() View {
	var view View
	_ = c.do(func() error {
		view = c.view()
		return nil
	})
	return view
}

// OnChange registers a listener called on the loop after every change.
// Listeners must not call back into the client synchronously.
func (c *Client) OnChange(listener Listener) {
	_ = c.do(func() error {
		c.listeners = append(c.listeners, listener)
		return nil
	})
}

// Close drops every subscription and stops the loop. It is idempotent.
func (c *Client) Close() {
	_ = c.do(func() error {
		ctx := context.Background()
		c.leave(ctx)
		if c.queueSub != nil {
			c.deps.Queue.Unsubscribe(*c.queueSub)
			c.queueSub = nil
		}
		return nil
	})
	c.closeOnce.Do(func() { close(c.done) })
}

func (c *Client) loop() {
	for {
		select {
		case fn := <-c.actions:
			fn()
		case <-c.done:
			return
		}
	}
}

// do runs fn on the loop and waits for its result.
func (c *Client) do(fn func() error) error {
	result := make(chan error, 1)
	select {
	case c.actions <- func() { result <- fn() }:
	case <-c.done:
		return errors.ErrClosed
	}
	return <-result
}

// leave drops the conversation subscriptions and clears the typing signal.
func (c *Client) leave(ctx context.Context) {
	for _, sub := range c.subs {
		switch sub.Topic.Kind {
		case domain.TopicMessages:
			c.deps.Messages.Unsubscribe(sub)
		case domain.TopicPresence:
			c.deps.Presence.Unsubscribe(sub)
		}
	}
	c.subs = nil
	if c.conversation != "" {
		if err := c.deps.Typing.Stop(ctx, c.session.UserID, c.conversation); err != nil {
			c.log.Warn("Typing reset failed", "conversation_id", c.conversation, "error", err)
		}
	}
}

// sink hands deliveries to the loop. Events of a previous conversation
// are dropped on arrival.
func (c *Client) sink(generation int) contract.EventSink {
	return contract.SinkFunc(func(ctx context.Context, e event.DomainEvent) error {
		select {
		case c.actions <- func() { c.apply(generation, e) }:
			return nil
		case <-c.done:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
}

func (c *Client) apply(generation int, e event.DomainEvent) {
	if generation != queueGeneration && generation != c.generation {
		return
	}
	changed := false
	switch evt := e.(type) {
	case event.MessagesSnapshot, event.MessageAppended, event.MessageDeleted:
		changed = c.timeline != nil && c.timeline.Apply(evt)
	case event.PresenceSnapshot:
		switch {
		case evt.UserID != c.counterpart:
		case evt.Presence == nil:
			changed = c.presence != nil
			c.presence = nil
		default:
			changed = c.applyPresence(*evt.Presence)
		}
	case event.PresenceChanged:
		changed = c.applyPresence(evt.Presence)
	case event.QueueSnapshot:
		c.queue = append([]domain.Conversation(nil), evt.Conversations...)
		changed = true
	case event.ConversationTouched:
		c.applyTouch(evt.Conversation)
		changed = true
	case event.SubscriptionRestored:
		c.reconnects++
		c.log.Info("Subscription restored", "topic", evt.Subject.String(), "attempts", evt.Attempts)
		changed = true
	}
	if changed {
		c.notify()
	}
}

// applyPresence keeps the newest record of the counterpart.
func (c *Client) applyPresence(p domain.Presence) bool {
	if p.UserID != c.counterpart {
		return false
	}
	if c.presence != nil && !p.UpdatedAt.After(c.presence.UpdatedAt) {
		return false
	}
	c.presence = &p
	return true
}

func (c *Client) applyTouch(conversation domain.Conversation) {
	c.queue = lo.Reject(c.queue, func(item domain.Conversation, _ int) bool {
		return item.ID == conversation.ID
	})
	c.queue = append(c.queue, conversation)
	sortByRecency(c.queue)
}

func (c *Client) view() View {
	view := View{
		Session:      c.session,
		Conversation: c.conversation,
		Counterpart:  c.counterpart,
		Draft:        c.draft,
		Queue:        append([]domain.Conversation(nil), c.queue...),
		Reconnects:   c.reconnects,
	}
	if c.timeline != nil {
		view.Messages = append([]domain.Message(nil), c.timeline.Messages...)
	}
	if c.presence != nil {
		view.CounterpartTyping = c.presence.IsTypingTo(c.session.UserID)
	}
	return view
}

func (c *Client) notify() {
	if len(c.listeners) == 0 {
		return
	}
	view := c.view()
	for _, l := range c.listeners {
		l(view)
	}
}
