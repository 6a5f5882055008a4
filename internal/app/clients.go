package app

import (
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/missionengine/internal/data/counters"
	"github.com/yungbote/missionengine/internal/platform/logger"
	"github.com/yungbote/missionengine/internal/platform/redisclient"
	"github.com/yungbote/missionengine/internal/realtime/bus"
)

// Clients holds the optional Redis-backed collaborators. Without REDIS_ADDR
// the counter cache is process-local and SSE stays on the local hub.
type Clients struct {
	Redis    *goredis.Client
	Counters counters.Store
	SSEBus   bus.Bus
}

func wireClients(log *logger.Logger, cfg Config) (Clients, error) {
	log.Info("Wiring clients...")

	if cfg.RedisAddr == "" {
		log.Warn("REDIS_ADDR not set; using in-memory counter cache")
		return Clients{Counters: counters.NewMemoryStore()}, nil
	}

	rdb, err := redisclient.New(log, redisclient.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		return Clients{}, fmt.Errorf("init redis: %w", err)
	}
	sseBus, err := bus.NewRedisBus(log, rdb, cfg.RedisChannel)
	if err != nil {
		_ = rdb.Close()
		return Clients{}, fmt.Errorf("init redis SSE bus: %w", err)
	}

	return Clients{
		Redis:    rdb,
		Counters: counters.NewRedisStore(rdb, log),
		SSEBus:   sseBus,
	}, nil
}

func (c Clients) Close() {
	if c.SSEBus != nil {
		_ = c.SSEBus.Close()
	}
	if c.Redis != nil {
		_ = c.Redis.Close()
	}
}
