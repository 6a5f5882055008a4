package counters

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/missionengine/internal/platform/logger"
)

// KEYS[1]=counter ARGV[1]=delta ARGV[2]=seed ARGV[3]=ttl ms
var incrSeeded = goredis.NewScript(`
local ttl = tonumber(ARGV[3])
if redis.call('EXISTS', KEYS[1]) == 0 then
  redis.call('SET', KEYS[1], ARGV[2], 'PX', ttl)
end
local v = redis.call('INCRBY', KEYS[1], ARGV[1])
if redis.call('PTTL', KEYS[1]) < 0 then
  redis.call('PEXPIRE', KEYS[1], ttl)
end
return v
`)

type redisStore struct {
	rdb goredis.UniversalClient
	log *logger.Logger
}

func NewRedisStore(rdb goredis.UniversalClient, baseLog *logger.Logger) Store {
	return &redisStore{rdb: rdb, log: baseLog.With("service", "RedisCounterStore")}
}

func (s *redisStore) IncrBy(ctx context.Context, key string, delta, seed int64, ttl time.Duration) (int64, error) {
	if seed < 0 {
		seed = 0
	}
	v, err := incrSeeded.Run(ctx, s.rdb, []string{key}, delta, seed, ttl.Milliseconds()).Int64()
	if err != nil {
		return 0, fmt.Errorf("counter incr %s: %w", key, err)
	}
	return v, nil
}

func (s *redisStore) Get(ctx context.Context, key string) (int64, bool, error) {
	v, err := s.rdb.Get(ctx, key).Int64()
	if err == goredis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("counter get %s: %w", key, err)
	}
	return v, true, nil
}

func (s *redisStore) MarkSeen(ctx context.Context, key, member string, ttl time.Duration) (bool, error) {
	var added *goredis.IntCmd
	_, err := s.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		added = pipe.SAdd(ctx, key, member)
		pipe.PExpire(ctx, key, ttl)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("counter mark seen %s: %w", key, err)
	}
	return added.Val() == 1, nil
}

func (s *redisStore) Unmark(ctx context.Context, key, member string) error {
	if err := s.rdb.SRem(ctx, key, member).Err(); err != nil {
		return fmt.Errorf("counter unmark %s: %w", key, err)
	}
	return nil
}

func (s *redisStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := s.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("counter delete: %w", err)
	}
	return nil
}
