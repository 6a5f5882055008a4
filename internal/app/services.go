package app

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/yungbote/missionengine/internal/events"
	"github.com/yungbote/missionengine/internal/jobs/worker"
	"github.com/yungbote/missionengine/internal/missions/catalog"
	"github.com/yungbote/missionengine/internal/observability"
	"github.com/yungbote/missionengine/internal/platform/logger"
	"github.com/yungbote/missionengine/internal/realtime"
	"github.com/yungbote/missionengine/internal/services"
)

type Services struct {
	Catalog     *catalog.Catalog
	Events      *events.Bus
	Resolver    services.MissionResolver
	Notifier    services.MissionNotifier
	Completions services.CompletionPublisher
	Engine      services.ProgressEngine
	Dispatcher  *services.ActionDispatcher
	Drainer     *services.OutboxDrainer
	Reaper      *services.ExpiryReaper
	Query       services.MissionQuery
	Worker      *worker.Worker

	unsubscribe func()
}

func wireServices(db *gorm.DB, log *logger.Logger, cfg Config, clients Clients, reposet Repos, hub *realtime.SSEHub, metrics *observability.Metrics) (Services, error) {
	log.Info("Wiring services...")

	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		return Services{}, fmt.Errorf("load mission catalog: %w", err)
	}

	var emitter services.SSEEmitter = &services.HubEmitter{Hub: hub}
	var completions services.CompletionPublisher
	if clients.Redis != nil {
		emitter = &services.RedisEmitter{Bus: clients.SSEBus, Log: log.With("service", "RedisEmitter")}
		completions = services.NewRedisCompletionPublisher(log, clients.Redis, cfg.CompletionChannel)
	} else {
		completions = services.NewLogCompletionPublisher(log)
	}
	notifier := services.NewMissionNotifier(emitter)

	resolver := services.NewMissionResolver(log, reposet.Missions, cfg.ActiveCacheSize, cfg.ActiveCacheTTL, metrics)

	drainer := services.NewOutboxDrainer(log, reposet.Outbox, reposet.Progress, metrics, services.OutboxDrainerConfig{
		BatchSize:   cfg.OutboxBatch,
		MaxAttempts: cfg.OutboxMaxAttempts,
		Lease:       cfg.OutboxLease,
		BaseBackoff: cfg.OutboxBaseBackoff,
		MaxBackoff:  cfg.OutboxMaxBackoff,
	})

	engine := services.NewProgressEngine(log, services.ProgressEngineDeps{
		Catalog:     cat,
		Resolver:    resolver,
		Counters:    clients.Counters,
		Missions:    reposet.Missions,
		Progress:    reposet.Progress,
		Outbox:      reposet.Outbox,
		Drainer:     drainer,
		Completions: completions,
		Notifier:    notifier,
		Metrics:     metrics,
	}, services.ProgressEngineConfig{
		UserConcurrency: cfg.UserConcurrency,
		CounterMaxTTL:   cfg.CounterMaxTTL,
	})

	dispatcher := services.NewActionDispatcher(log, engine, cat, notifier, metrics, services.DispatcherConfig{
		Window:       cfg.DebounceWindow,
		FlushTimeout: cfg.FlushTimeout,
		MaxBatch:     cfg.MaxBatch,
	})

	eventBus := events.NewBus(log)
	unsubscribe := eventBus.SubscribeAll(dispatcher.Handle)

	reaper := services.NewExpiryReaper(log, services.ExpiryReaperDeps{
		DB:       db,
		Missions: reposet.Missions,
		Progress: reposet.Progress,
		Outbox:   reposet.Outbox,
		Counters: clients.Counters,
		Resolver: resolver,
		Metrics:  metrics,
	})

	query := services.NewMissionQuery(log, reposet.Missions, reposet.Progress, resolver)

	jobWorker := worker.NewWorker(log, reaper, drainer, worker.Config{
		ReaperInterval: cfg.ReaperInterval,
		OutboxInterval: cfg.OutboxInterval,
	})

	return Services{
		Catalog:     cat,
		Events:      eventBus,
		Resolver:    resolver,
		Notifier:    notifier,
		Completions: completions,
		Engine:      engine,
		Dispatcher:  dispatcher,
		Drainer:     drainer,
		Reaper:      reaper,
		Query:       query,
		Worker:      jobWorker,
		unsubscribe: unsubscribe,
	}, nil
}
