package internal

import (
	"context"
	"fmt"
	"log/slog"
	"support-flow/auth"
	"support-flow/client"
	"support-flow/clock"
	"support-flow/domain"
	"support-flow/moderation"
	"support-flow/observability"
	"support-flow/repositories"
	"support-flow/runtime"
	"support-flow/runtime/workers"
	"support-flow/services"

	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
)

// Desk is the process-wide wiring: one store, one notifier and the
// services built on them. It is constructed once and injected.
type Desk struct {
	Log        *slog.Logger
	Config     Config
	Clock      clock.Clock
	Support    domain.Desk
	Monitoring *observability.Monitoring
	Supervisor *workers.Supervisor
	Notifier   *runtime.Notifier

	Conversations repositories.IConversationRepository
	Index         repositories.IConversationIndex

	Auth     services.IAuthService
	Presence *services.PresenceService
	Queue    *services.QueueService
	Router   *services.ConversationRouter
	Typing   *services.TypingCoordinator
	Messages *services.MessageService

	stopTelemetry context.CancelFunc
}

func NewDesk(log *slog.Logger, config Config, db *badger.DB, writer *bluge.Writer, clk clock.Clock) (*Desk, error) {
	filter, err := moderation.NewFilter(moderation.ParseWords(config.CensoredWords), config.Mask())
	if err != nil {
		return nil, fmt.Errorf("moderation filter failed: %w", err)
	}
	support := domain.NewDesk(config.AgentID, config.AgentHandle)
	monitoring := observability.NewMonitoring()
	supervisor := workers.NewSupervisor(log, config.RestartInterval)
	backoff := workers.Backoff{Initial: config.RetryInitial, Max: config.RetryMax}
	notifier := runtime.NewNotifier(log, runtime.NewRegistry(), supervisor, backoff, monitoring)

	conversations := repositories.NewConversationRepository(db)
	presenceRepository := repositories.NewPresenceRepository(db)
	index := repositories.NewConversationIndex(writer)
	tokens := auth.NewTokenIssuer(config.AuthSecret, config.AuthTokenDuration)

	presence := services.NewPresenceService(log, presenceRepository, notifier, clk, monitoring)
	queue := services.NewQueueService(log, support, conversations, presenceRepository, index, notifier)
	router := services.NewConversationRouter(support, conversations)
	typing := services.NewTypingCoordinator(log, presence, router, clk, config.TypingQuietPeriod).WithRetry(backoff)
	messages := services.NewMessageService(log, support, repositories.NewMessageRepository(db, log),
		conversations, queue, typing, notifier, clk, monitoring).WithFilter(filter)

	notifier.RegisterLoader(domain.TopicMessages, messages.LoadSnapshot)
	notifier.RegisterLoader(domain.TopicPresence, presence.LoadSnapshot)
	notifier.RegisterLoader(domain.TopicQueue, queue.LoadSnapshot)

	return &Desk{
		Log:           log,
		Config:        config,
		Clock:         clk,
		Support:       support,
		Monitoring:    monitoring,
		Supervisor:    supervisor,
		Notifier:      notifier,
		Conversations: conversations,
		Index:         index,
		Auth:          services.NewAuthService(repositories.NewUserRepository(db), tokens, support),
		Presence:      presence,
		Queue:         queue,
		Router:        router,
		Typing:        typing,
		Messages:      messages,
	}, nil
}

// Reindex rebuilds the handle index from the stored conversations.
func (d *Desk) Reindex() error {
	conversations, err := d.Conversations.List()
	if err != nil {
		return fmt.Errorf("listing conversations: %w", err)
	}
	for _, conversation := range conversations {
		if conversation.Handle == "" {
			continue
		}
		if err = d.Index.Index(conversation); err != nil {
			return fmt.Errorf("indexing %s: %w", conversation.ID, err)
		}
	}
	d.Log.Debug("Index rebuilt", "conversations", len(conversations))
	return nil
}

// StartTelemetry logs the counters every METRIC_INTERVAL until ctx is done.
func (d *Desk) StartTelemetry(ctx context.Context) {
	ctx, d.stopTelemetry = context.WithCancel(ctx)
	d.Supervisor.Start(ctx, workers.NewTelemetryWorker(d.Log, d.Config.MetricInterval, d.Monitoring))
}

func (d *Desk) NewIdentityProvider() *services.IdentityProvider {
	return services.NewIdentityProvider(d.Log, d.Auth)
}

func (d *Desk) NewClient(ctx context.Context, session domain.Session) (*client.Client, error) {
	return client.New(ctx, d.Log, session, client.Deps{
		Router:   d.Router,
		Messages: d.Messages,
		Presence: d.Presence,
		Typing:   d.Typing,
		Queue:    d.Queue,
		Clock:    d.Clock,
	})
}

// Close stops every subscription and waits for the supervised workers.
func (d *Desk) Close() {
	if d.stopTelemetry != nil {
		d.stopTelemetry()
	}
	d.Notifier.Close()
}

// OpenStores opens badger at BADGER_FILEPATH and the index at BLUGE_FILEPATH,
// in memory when no path is set.
func OpenStores(config Config) (*badger.DB, *bluge.Writer, error) {
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).WithLoggingLevel(badger.WARNING))
	if err != nil {
		return nil, nil, fmt.Errorf("database opening failed: %w", err)
	}
	indexConfig := bluge.InMemoryOnlyConfig()
	if config.BlugeFilepath != "" {
		indexConfig = bluge.DefaultConfig(config.BlugeFilepath)
	}
	writer, err := bluge.OpenWriter(indexConfig)
	if err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("index opening failed: %w", err)
	}
	return db, writer, nil
}
