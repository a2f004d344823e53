package services_test

import (
	"context"
	"log/slog"
	"support-flow/clock"
	"support-flow/domain"
	"support-flow/domain/event"
	"support-flow/observability"
	"support-flow/repositories"
	"support-flow/runtime"
	"support-flow/runtime/workers"
	"support-flow/services"
	"sync"
	"testing"
	"time"

	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

const (
	agentID     = domain.UserID("agent-1")
	agentHandle = "admin@test.com"
)

var epoch = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

// desk wires every service on a real badger store and an in-memory index.
type desk struct {
	clock      *clock.FakeClock
	monitoring *observability.Monitoring
	notifier   *runtime.Notifier
	presence   *services.PresenceService
	queue      *services.QueueService
	router     *services.ConversationRouter
	typing     *services.TypingCoordinator
	messages   *services.MessageService
}

func newDesk(t *testing.T) *desk {
	t.Helper()
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)

	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	req.NoError(err)
	writer, err := bluge.OpenWriter(bluge.InMemoryOnlyConfig())
	req.NoError(err)

	d := &desk{clock: clock.Fake(epoch), monitoring: observability.NewMonitoring()}
	support := domain.NewDesk(string(agentID), agentHandle)
	backoff := workers.Backoff{Initial: time.Millisecond, Max: 5 * time.Millisecond}
	d.notifier = runtime.NewNotifier(log, runtime.NewRegistry(), workers.NewSupervisor(log, 10*time.Millisecond), backoff, d.monitoring)

	conversations := repositories.NewConversationRepository(db)
	presenceRepository := repositories.NewPresenceRepository(db)
	d.presence = services.NewPresenceService(log, presenceRepository, d.notifier, d.clock, d.monitoring)
	d.queue = services.NewQueueService(log, support, conversations, presenceRepository,
		repositories.NewConversationIndex(writer), d.notifier)
	d.router = services.NewConversationRouter(support, conversations)
	d.typing = services.NewTypingCoordinator(log, d.presence, d.router, d.clock, services.DefaultTypingQuietPeriod)
	d.messages = services.NewMessageService(log, support, repositories.NewMessageRepository(db, log),
		conversations, d.queue, d.typing, d.notifier, d.clock, d.monitoring)

	d.notifier.RegisterLoader(domain.TopicMessages, d.messages.LoadSnapshot)
	d.notifier.RegisterLoader(domain.TopicPresence, d.presence.LoadSnapshot)
	d.notifier.RegisterLoader(domain.TopicQueue, d.queue.LoadSnapshot)

	t.Cleanup(func() {
		d.notifier.Close()
		_ = writer.Close()
		_ = db.Close()
	})
	return d
}

// recorder is a subscriber keeping every event it receives.
type recorder struct {
	mu     sync.Mutex
	events []event.DomainEvent
}

func (r *recorder) Consume(_ context.Context, e event.DomainEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recorder) received() []event.DomainEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]event.DomainEvent(nil), r.events...)
}

func (r *recorder) waitFor(t *testing.T, n int) []event.DomainEvent {
	t.Helper()
	require.Eventually(t, func() bool { return len(r.received()) >= n }, 2*time.Second, 5*time.Millisecond)
	return r.received()
}

// presenceTrail keeps the typing flags a remote observer saw, snapshot included.
func presenceTrail(events []event.DomainEvent) []bool {
	var trail []bool
	for _, e := range events {
		switch evt := e.(type) {
		case event.PresenceSnapshot:
			if evt.Presence != nil {
				trail = append(trail, evt.Presence.IsTyping)
			}
		case event.PresenceChanged:
			trail = append(trail, evt.Presence.IsTyping)
		}
	}
	return trail
}
