package app

import (
	"testing"
	"time"

	"github.com/yungbote/missionengine/internal/platform/logger"
)

func TestLoadConfigDefaults(t *testing.T) {
	for _, k := range []string{"HTTP_ADDR", "REDIS_ADDR", "MISSION_DEBOUNCE_WINDOW", "MISSION_OUTBOX_BATCH", "MISSION_COUNTER_MAX_TTL"} {
		t.Setenv(k, "")
	}
	cfg := LoadConfig(logger.Nop())

	if cfg.HTTPAddr != ":8080" {
		t.Fatalf("HTTPAddr: want=%q got=%q", ":8080", cfg.HTTPAddr)
	}
	if cfg.RedisAddr != "" {
		t.Fatalf("RedisAddr: want empty got=%q", cfg.RedisAddr)
	}
	if cfg.DebounceWindow != 100*time.Millisecond {
		t.Fatalf("DebounceWindow: want=%v got=%v", 100*time.Millisecond, cfg.DebounceWindow)
	}
	if cfg.OutboxBatch != 200 {
		t.Fatalf("OutboxBatch: want=200 got=%d", cfg.OutboxBatch)
	}
	if cfg.CounterMaxTTL != 168*time.Hour {
		t.Fatalf("CounterMaxTTL: want=%v got=%v", 168*time.Hour, cfg.CounterMaxTTL)
	}
	if cfg.CompletionChannel != "mission_completions" {
		t.Fatalf("CompletionChannel: want=%q got=%q", "mission_completions", cfg.CompletionChannel)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("MISSION_DEBOUNCE_WINDOW", "250ms")
	t.Setenv("MISSION_REAPER_INTERVAL", "60")
	t.Setenv("MISSION_USER_CONCURRENCY", "3")
	t.Setenv("METRICS_ENABLED", "true")
	cfg := LoadConfig(logger.Nop())

	if cfg.HTTPAddr != ":9090" {
		t.Fatalf("HTTPAddr: want=%q got=%q", ":9090", cfg.HTTPAddr)
	}
	if cfg.DebounceWindow != 250*time.Millisecond {
		t.Fatalf("DebounceWindow: want=%v got=%v", 250*time.Millisecond, cfg.DebounceWindow)
	}
	if cfg.ReaperInterval != time.Minute {
		t.Fatalf("ReaperInterval: want=%v got=%v", time.Minute, cfg.ReaperInterval)
	}
	if cfg.UserConcurrency != 3 {
		t.Fatalf("UserConcurrency: want=3 got=%d", cfg.UserConcurrency)
	}
	if !cfg.MetricsEnabled {
		t.Fatalf("MetricsEnabled: want=true")
	}
}
