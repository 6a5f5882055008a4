package app

import (
	"time"

	"github.com/yungbote/missionengine/internal/data/counters"
	"github.com/yungbote/missionengine/internal/data/db"
	"github.com/yungbote/missionengine/internal/platform/envutil"
	"github.com/yungbote/missionengine/internal/platform/logger"
	"github.com/yungbote/missionengine/internal/services"
)

type Config struct {
	LogMode     string
	HTTPAddr    string
	CORSOrigins []string

	PostgresDSN string

	RedisAddr         string
	RedisPassword     string
	RedisDB           int
	RedisChannel      string
	CompletionChannel string

	CatalogPath string

	DebounceWindow  time.Duration
	FlushTimeout    time.Duration
	MaxBatch        int
	UserConcurrency int
	CounterMaxTTL   time.Duration

	ActiveCacheTTL  time.Duration
	ActiveCacheSize int

	ReaperInterval     time.Duration
	OutboxInterval     time.Duration
	OutboxBatch        int
	OutboxMaxAttempts  int
	OutboxLease        time.Duration
	OutboxBaseBackoff  time.Duration
	OutboxMaxBackoff   time.Duration
	ShutdownTimeout    time.Duration
	MetricsEnabled     bool
	OtelEnabled        bool
	OtelEndpoint       string
	OtelHeaders        string
	OtelInsecure       bool
	OtelSampleRatio    float64
	OtelServiceName    string
	OtelServiceVersion string
	Environment        string
}

func LoadConfig(log *logger.Logger) Config {
	cfg := Config{
		LogMode:  envutil.String("LOG_MODE", "development"),
		HTTPAddr: envutil.String("HTTP_ADDR", ":8080"),

		// Empty falls back to the local development origins.
		CORSOrigins: envutil.List("CORS_ALLOWED_ORIGINS", nil),

		PostgresDSN: db.DSN(),

		RedisAddr:         envutil.String("REDIS_ADDR", ""),
		RedisPassword:     envutil.String("REDIS_PASSWORD", ""),
		RedisDB:           envutil.Int("REDIS_DB", 0),
		RedisChannel:      envutil.String("REDIS_CHANNEL", "sse"),
		CompletionChannel: envutil.String("MISSION_COMPLETION_CHANNEL", "mission_completions"),

		CatalogPath: envutil.String("MISSION_CATALOG_PATH", ""),

		DebounceWindow:  envutil.Duration("MISSION_DEBOUNCE_WINDOW", 100*time.Millisecond),
		FlushTimeout:    envutil.Duration("MISSION_FLUSH_TIMEOUT", 30*time.Second),
		MaxBatch:        envutil.Int("MISSION_MAX_BATCH", 1000),
		UserConcurrency: envutil.Int("MISSION_USER_CONCURRENCY", 8),
		CounterMaxTTL:   envutil.Duration("MISSION_COUNTER_MAX_TTL", counters.DefaultMaxTTL),

		ActiveCacheTTL:  envutil.Duration("MISSION_ACTIVE_CACHE_TTL", services.DefaultActiveCacheTTL),
		ActiveCacheSize: envutil.Int("MISSION_ACTIVE_CACHE_SIZE", services.DefaultActiveCacheSize),

		ReaperInterval:    envutil.Duration("MISSION_REAPER_INTERVAL", 5*time.Minute),
		OutboxInterval:    envutil.Duration("MISSION_OUTBOX_INTERVAL", 2*time.Second),
		OutboxBatch:       envutil.Int("MISSION_OUTBOX_BATCH", 200),
		OutboxMaxAttempts: envutil.Int("MISSION_OUTBOX_MAX_ATTEMPTS", 20),
		OutboxLease:       envutil.Duration("MISSION_OUTBOX_LEASE", 30*time.Second),
		OutboxBaseBackoff: envutil.Duration("MISSION_OUTBOX_BASE_BACKOFF", time.Second),
		OutboxMaxBackoff:  envutil.Duration("MISSION_OUTBOX_MAX_BACKOFF", 5*time.Minute),

		ShutdownTimeout:    envutil.Duration("HTTP_SHUTDOWN_TIMEOUT", 10*time.Second),
		MetricsEnabled:     envutil.Bool("METRICS_ENABLED", false),
		OtelEnabled:        envutil.Bool("OTEL_ENABLED", false),
		OtelEndpoint:       envutil.String("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		OtelHeaders:        envutil.String("OTEL_EXPORTER_OTLP_HEADERS", ""),
		OtelInsecure:       envutil.Bool("OTEL_EXPORTER_OTLP_INSECURE", false),
		OtelSampleRatio:    envutil.Float("OTEL_SAMPLER_RATIO", 0.1),
		OtelServiceName:    envutil.String("OTEL_SERVICE_NAME", "missiond"),
		OtelServiceVersion: envutil.String("SERVICE_VERSION", "dev"),
		Environment:        envutil.String("APP_ENV", "development"),
	}
	log.Info("Config loaded",
		"http_addr", cfg.HTTPAddr,
		"redis", cfg.RedisAddr != "",
		"catalog_path", cfg.CatalogPath,
		"debounce_window", cfg.DebounceWindow.String(),
		"metrics", cfg.MetricsEnabled,
		"otel", cfg.OtelEnabled,
	)
	return cfg
}
