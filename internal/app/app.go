package app

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/yungbote/missionengine/internal/data/db"
	apphttp "github.com/yungbote/missionengine/internal/http"
	"github.com/yungbote/missionengine/internal/observability"
	"github.com/yungbote/missionengine/internal/platform/envutil"
	"github.com/yungbote/missionengine/internal/platform/logger"
	"github.com/yungbote/missionengine/internal/realtime"
)

type App struct {
	Log      *logger.Logger
	DB       *gorm.DB
	Cfg      Config
	Clients  Clients
	Repos    Repos
	Services Services
	SSEHub   *realtime.SSEHub
	Server   *apphttp.Server
	Metrics  *observability.Metrics

	pg           *db.PostgresService
	otelShutdown func(context.Context) error
	cancel       context.CancelFunc
}

func New(ctx context.Context) (*App, error) {
	log, err := logger.New(envutil.String("LOG_MODE", "development"))
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	log.Info("Loading environment variables...")
	cfg := LoadConfig(log)

	otelShutdown := observability.InitOTel(ctx, log, observability.OtelConfig{
		Enabled:     cfg.OtelEnabled,
		ServiceName: cfg.OtelServiceName,
		Environment: cfg.Environment,
		Version:     cfg.OtelServiceVersion,
		Endpoint:    cfg.OtelEndpoint,
		Headers:     observability.ParseHeaders(cfg.OtelHeaders),
		Insecure:    cfg.OtelInsecure,
		SampleRatio: cfg.OtelSampleRatio,
	})
	metrics := observability.Init(cfg.MetricsEnabled)

	pg, err := db.NewPostgresService(log, cfg.PostgresDSN)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init postgres: %w", err)
	}
	if err := pg.AutoMigrateAll(); err != nil {
		_ = pg.Close()
		log.Sync()
		return nil, fmt.Errorf("postgres automigrate: %w", err)
	}
	theDB := pg.DB()
	if sqlDB, err := theDB.DB(); err == nil {
		metrics.RegisterDB(sqlDB, "missions")
	}

	clients, err := wireClients(log, cfg)
	if err != nil {
		_ = pg.Close()
		log.Sync()
		return nil, err
	}

	ssehub := realtime.NewSSEHub(log)
	reposet := wireRepos(theDB, log)

	serviceset, err := wireServices(theDB, log, cfg, clients, reposet, ssehub, metrics)
	if err != nil {
		clients.Close()
		_ = pg.Close()
		log.Sync()
		return nil, err
	}

	pingDB := func(ctx context.Context) error {
		sqlDB, err := theDB.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	}
	handlerset := wireHandlers(log, serviceset, clients, pingDB, ssehub)

	routerCfg := apphttp.RouterConfig{
		Log:             log,
		Metrics:         metrics,
		CORSOrigins:     cfg.CORSOrigins,
		MissionHandler:  handlerset.Mission,
		ActionHandler:   handlerset.Action,
		RealtimeHandler: handlerset.Realtime,
		HealthHandler:   handlerset.Health,
	}
	if otelShutdown != nil {
		routerCfg.ServiceName = cfg.OtelServiceName
	}
	server := apphttp.NewServer(routerCfg)
	server.ShutdownTimeout = cfg.ShutdownTimeout

	return &App{
		Log:          log,
		DB:           theDB,
		Cfg:          cfg,
		Clients:      clients,
		Repos:        reposet,
		Services:     serviceset,
		SSEHub:       ssehub,
		Server:       server,
		Metrics:      metrics,
		pg:           pg,
		otelShutdown: otelShutdown,
	}, nil
}

// Start launches the background worker and, with Redis, the SSE forwarder
// that relays cross-instance messages into the local hub.
func (a *App) Start() {
	if a == nil || a.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	if a.Clients.SSEBus != nil {
		if err := a.Clients.SSEBus.StartForwarder(ctx, a.SSEHub.Broadcast); err != nil {
			a.Log.Warn("SSE forwarder failed to start", "error", err)
		}
	}
	if a.Services.Worker != nil {
		a.Services.Worker.Start(ctx)
	}
}

// Run serves HTTP until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.Server == nil {
		return fmt.Errorf("app not initialized")
	}
	a.Log.Info("HTTP server listening", "addr", a.Cfg.HTTPAddr)
	return a.Server.Run(ctx, a.Cfg.HTTPAddr)
}

// Sweep runs the expiry reaper once.
func (a *App) Sweep(ctx context.Context) (int, error) {
	return a.Services.Reaper.Sweep(ctx)
}

// Drain applies every due outbox row once.
func (a *App) Drain(ctx context.Context) (int, error) {
	return a.Services.Drainer.Drain(ctx)
}

// Close stops intake first, flushes queued actions, then drains the outbox
// before releasing connections.
func (a *App) Close() {
	if a == nil {
		return
	}
	if a.Services.unsubscribe != nil {
		a.Services.unsubscribe()
	}
	if a.Services.Dispatcher != nil {
		a.Services.Dispatcher.Close()
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	if a.Services.Worker != nil {
		a.Services.Worker.Wait()
	}
	if a.Services.Drainer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if n, err := a.Services.Drainer.Drain(ctx); err != nil {
			a.Log.Warn("final outbox drain failed", "applied", n, "error", err)
		}
		cancel()
	}
	a.Clients.Close()
	if a.pg != nil {
		_ = a.pg.Close()
	}
	if a.otelShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = a.otelShutdown(ctx)
		cancel()
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
