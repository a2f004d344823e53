package services

import (
	"context"
	"log/slog"
	"strings"
	"support-flow/clock"
	"support-flow/domain"
	"support-flow/errors"
	"support-flow/runtime/workers"
	"sync"
	"time"
)

const DefaultTypingQuietPeriod = 2000 * time.Millisecond

type ITypingCoordinator interface {
	Keystroke(ctx context.Context, userID domain.UserID, conversation domain.ConversationID, text string) error
	Stop(ctx context.Context, userID domain.UserID, conversation domain.ConversationID) error
}

type typingKey struct {
	user         domain.UserID
	conversation domain.ConversationID
}

func (k typingKey) String() string {
	return string(k.user) + "|" + string(k.conversation)
}

// typingState tracks a Typing pair, or an Idle write still to be retried.
type typingState struct {
	timer       clock.Timer
	generation  uint64
	pendingIdle bool
	attempt     int
}

// TypingCoordinator turns keystrokes into a debounced typing signal per
// (user, conversation). A user is Typing from the first keystroke until
// quietPeriod passes without one, or until Stop is called on send.
// Each transition and its presence write happen under the pair's lock, so
// a timer firing after a send can never publish a stale isTyping.
// A failed transient Idle write is retried with backoff until it lands.
type TypingCoordinator struct {
	log         *slog.Logger
	presence    IPresenceService
	router      IConversationRouter
	clock       clock.Clock
	quietPeriod time.Duration
	retry       workers.Backoff
	locks       *keyedMutex

	mu         sync.Mutex
	states     map[typingKey]*typingState
	generation uint64
}

func NewTypingCoordinator(log *slog.Logger, presence IPresenceService, router IConversationRouter,
	clk clock.Clock, quietPeriod time.Duration) *TypingCoordinator {
	if quietPeriod <= 0 {
		quietPeriod = DefaultTypingQuietPeriod
	}
	return &TypingCoordinator{
		log:         log,
		presence:    presence,
		router:      router,
		clock:       clk,
		quietPeriod: quietPeriod,
		retry:       workers.DefaultBackoff,
		locks:       newKeyedMutex(),
		states:      make(map[typingKey]*typingState),
	}
}

// WithRetry sets the backoff used to retry failed Idle writes.
func (c *TypingCoordinator) WithRetry(retry workers.Backoff) *TypingCoordinator {
	c.retry = retry
	return c
}

// Keystroke records input in the draft. Clearing the draft stops typing at once.
func (c *TypingCoordinator) Keystroke(ctx context.Context, userID domain.UserID,
	conversation domain.ConversationID, text string) error {
	if strings.TrimSpace(text) == "" {
		return c.Stop(ctx, userID, conversation)
	}
	key := typingKey{user: userID, conversation: conversation}
	unlock := c.locks.Lock(key.String())
	defer unlock()

	c.mu.Lock()
	state, tracked := c.states[key]
	typing := tracked && !state.pendingIdle
	if tracked {
		state.timer.Stop()
		state.pendingIdle, state.attempt = false, 0
	} else {
		state = &typingState{}
		c.states[key] = state
	}
	c.generation++
	generation := c.generation
	state.generation = generation
	state.timer = c.clock.AfterFunc(c.quietPeriod, func() { c.expire(key, generation) })
	c.mu.Unlock()

	if typing {
		return nil
	}

	target := c.router.Counterpart(userID, conversation)
	if _, err := c.presence.SetPresence(ctx, userID, userID, typingPatch(true, target)); err != nil {
		c.forget(key, generation)
		return err
	}
	c.log.Debug("Typing started", "user_id", userID, "conversation_id", conversation)
	return nil
}

// Stop forces the pair back to Idle. It returns once the presence write is
// committed, so callers can send right after it.
func (c *TypingCoordinator) Stop(ctx context.Context, userID domain.UserID, conversation domain.ConversationID) error {
	key := typingKey{user: userID, conversation: conversation}
	unlock := c.locks.Lock(key.String())
	defer unlock()

	c.mu.Lock()
	state, tracked := c.states[key]
	if tracked {
		state.timer.Stop()
		delete(c.states, key)
	}
	c.mu.Unlock()

	if !tracked {
		return nil
	}
	if err := c.idle(ctx, key, "stopped"); err != nil {
		c.retryIdle(key, 1, err)
		return err
	}
	return nil
}

// IsTyping reports the local state machine, not the stored record.
func (c *TypingCoordinator) IsTyping(userID domain.UserID, conversation domain.ConversationID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	state, tracked := c.states[typingKey{user: userID, conversation: conversation}]
	return tracked && !state.pendingIdle
}

func (c *TypingCoordinator) expire(key typingKey, generation uint64) {
	unlock := c.locks.Lock(key.String())
	defer unlock()

	c.mu.Lock()
	state, tracked := c.states[key]
	current := tracked && state.generation == generation
	attempt := 0
	if current {
		attempt = state.attempt
		delete(c.states, key)
	}
	c.mu.Unlock()

	if !current {
		return
	}
	if err := c.idle(context.Background(), key, "expired"); err != nil {
		c.retryIdle(key, attempt+1, err)
	}
}

// retryIdle re-arms the pair so a failed Idle write is attempted again.
// The caller holds the pair's lock.
func (c *TypingCoordinator) retryIdle(key typingKey, attempt int, err error) {
	if !errors.IsRetryable(err) {
		c.log.Warn("Typing idle write failed", "user_id", key.user, "error", err)
		return
	}
	delay := c.retry.Delay(attempt)
	c.log.Warn("Typing idle write failed, retrying", "user_id", key.user, "attempt", attempt, "delay", delay, "error", err)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	generation := c.generation
	c.states[key] = &typingState{
		generation:  generation,
		pendingIdle: true,
		attempt:     attempt,
		timer:       c.clock.AfterFunc(delay, func() { c.expire(key, generation) }),
	}
}

func (c *TypingCoordinator) idle(ctx context.Context, key typingKey, reason string) error {
	target := c.router.Counterpart(key.user, key.conversation)
	if _, err := c.presence.SetPresence(ctx, key.user, key.user, typingPatch(false, target)); err != nil {
		return err
	}
	c.log.Debug("Typing "+reason, "user_id", key.user, "conversation_id", key.conversation)
	return nil
}

func (c *TypingCoordinator) forget(key typingKey, generation uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if state, ok := c.states[key]; ok && state.generation == generation {
		state.timer.Stop()
		delete(c.states, key)
	}
}

func typingPatch(isTyping bool, target domain.UserID) domain.PresencePatch {
	return domain.PresencePatch{IsTyping: &isTyping, TypingTarget: &target}
}
