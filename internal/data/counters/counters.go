// Package counters holds live per-(user, mission, requirement) progress values.
// Every mutation is a single atomic operation in the backing store; callers
// never lock around it.
package counters

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// DefaultMaxTTL bounds key lifetime even when period metadata is wrong.
const DefaultMaxTTL = 7 * 24 * time.Hour

const minTTL = time.Minute

type Store interface {
	// IncrBy adds delta to key and returns the new value. An absent key is first
	// set to seed, so the counter never starts below the durable ledger value.
	// ttl is applied when the key is created.
	IncrBy(ctx context.Context, key string, delta, seed int64, ttl time.Duration) (int64, error)
	// Get returns the value and whether the key exists.
	Get(ctx context.Context, key string) (int64, bool, error)
	// MarkSeen adds member to the set at key and reports whether it was new.
	MarkSeen(ctx context.Context, key, member string, ttl time.Duration) (bool, error)
	// Unmark removes member from the set at key, undoing a MarkSeen whose
	// increment did not land.
	Unmark(ctx context.Context, key, member string) error
	// Delete removes keys; absent keys are ignored.
	Delete(ctx context.Context, keys ...string) error
}

func ProgressKey(userID, missionID uuid.UUID, requirement string) string {
	return "mission:progress:" + userID.String() + ":" + missionID.String() + ":" + requirement
}

func SeenKey(userID, missionID uuid.UUID, requirement string) string {
	return "mission:seen:" + userID.String() + ":" + missionID.String() + ":" + requirement
}

// MissionKeys lists every key the engine may have written for a mission.
func MissionKeys(userID, missionID uuid.UUID, requirements []string) []string {
	out := make([]string, 0, 2*len(requirements))
	for _, r := range requirements {
		out = append(out, ProgressKey(userID, missionID, r), SeenKey(userID, missionID, r))
	}
	return out
}

// TTLFor is the remaining mission period capped at max, never below one minute.
func TTLFor(periodEnd, now time.Time, max time.Duration) time.Duration {
	if max <= 0 {
		max = DefaultMaxTTL
	}
	ttl := periodEnd.Sub(now)
	if ttl > max {
		ttl = max
	}
	if ttl < minTTL {
		ttl = minTTL
	}
	return ttl
}
