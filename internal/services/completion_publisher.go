package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	goredis "github.com/redis/go-redis/v9"

	types "github.com/yungbote/missionengine/internal/domain/missions"
	"github.com/yungbote/missionengine/internal/platform/logger"
)

// CompletionPublisher hands completed missions to the reward collaborator.
// Delivery is at-least-once; consumers must treat repeats idempotently.
type CompletionPublisher interface {
	PublishCompletion(ctx context.Context, sig types.CompletionSignal) error
}

type redisCompletionPublisher struct {
	rdb     goredis.UniversalClient
	channel string
	log     *logger.Logger
}

func NewRedisCompletionPublisher(baseLog *logger.Logger, rdb goredis.UniversalClient, channel string) CompletionPublisher {
	channel = strings.TrimSpace(channel)
	if channel == "" {
		channel = "mission_completions"
	}
	return &redisCompletionPublisher{
		rdb:     rdb,
		channel: channel,
		log:     baseLog.With("service", "CompletionPublisher"),
	}
}

func (p *redisCompletionPublisher) PublishCompletion(ctx context.Context, sig types.CompletionSignal) error {
	if len(sig.MissionIDs) == 0 {
		return nil
	}
	raw, err := json.Marshal(sig)
	if err != nil {
		return err
	}
	if err := p.rdb.Publish(ctx, p.channel, raw).Err(); err != nil {
		return fmt.Errorf("publish completion: %w", err)
	}
	p.log.Debug("completion published", "user_id", sig.UserID, "missions", len(sig.MissionIDs))
	return nil
}

type logCompletionPublisher struct {
	log *logger.Logger
}

// NewLogCompletionPublisher is used when no broker is configured.
func NewLogCompletionPublisher(baseLog *logger.Logger) CompletionPublisher {
	return &logCompletionPublisher{log: baseLog.With("service", "CompletionPublisher")}
}

func (p *logCompletionPublisher) PublishCompletion(ctx context.Context, sig types.CompletionSignal) error {
	if len(sig.MissionIDs) == 0 {
		return nil
	}
	p.log.Info("missions completed", "user_id", sig.UserID, "mission_ids", sig.MissionIDs, "completed_at", sig.CompletedAt)
	return nil
}
