package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/yungbote/missionengine/internal/data/repos"
	types "github.com/yungbote/missionengine/internal/domain/missions"
	"github.com/yungbote/missionengine/internal/observability"
	"github.com/yungbote/missionengine/internal/platform/dbctx"
	"github.com/yungbote/missionengine/internal/platform/logger"
)

const (
	DefaultActiveCacheTTL  = 5 * time.Minute
	DefaultActiveCacheSize = 10000
)

// MissionResolver returns a user's open missions. Results are cached per user
// for the configured TTL, so a mission created or completed elsewhere may take
// up to that long to appear or disappear here.
type MissionResolver interface {
	ActiveMissionsFor(ctx context.Context, userID uuid.UUID) ([]*types.ResolvedMission, error)
	Invalidate(userID uuid.UUID)
}

type missionResolver struct {
	log      *logger.Logger
	missions repos.ActiveMissionRepo
	cache    *expirable.LRU[uuid.UUID, []*types.ResolvedMission]
	metrics  *observability.Metrics
	now      func() time.Time
}

func NewMissionResolver(baseLog *logger.Logger, missions repos.ActiveMissionRepo, size int, ttl time.Duration, metrics *observability.Metrics) MissionResolver {
	if size <= 0 {
		size = DefaultActiveCacheSize
	}
	if ttl <= 0 {
		ttl = DefaultActiveCacheTTL
	}
	return &missionResolver{
		log:      baseLog.With("service", "MissionResolver"),
		missions: missions,
		cache:    expirable.NewLRU[uuid.UUID, []*types.ResolvedMission](size, nil, ttl),
		metrics:  metrics,
		now:      time.Now,
	}
}

func (r *missionResolver) ActiveMissionsFor(ctx context.Context, userID uuid.UUID) ([]*types.ResolvedMission, error) {
	if userID == uuid.Nil {
		return nil, nil
	}
	now := r.now()
	if cached, ok := r.cache.Get(userID); ok {
		r.metrics.ResolverLookup(true)
		return openAt(cached, now), nil
	}
	r.metrics.ResolverLookup(false)

	rows, err := r.missions.ListOpenForUser(dbctx.Context{Ctx: ctx}, userID, now)
	if err != nil {
		return nil, fmt.Errorf("list open missions: %w", err)
	}
	out := make([]*types.ResolvedMission, 0, len(rows))
	for _, row := range rows {
		rm, err := types.Resolve(row)
		if err != nil {
			r.log.Warn("skipping mission with unreadable template", "mission_id", row.ID, "error", err)
			continue
		}
		out = append(out, rm)
	}
	r.cache.Add(userID, out)
	return openAt(out, now), nil
}

func (r *missionResolver) Invalidate(userID uuid.UUID) {
	r.cache.Remove(userID)
}

// openAt drops missions whose period ended or that completed while cached.
func openAt(in []*types.ResolvedMission, now time.Time) []*types.ResolvedMission {
	out := make([]*types.ResolvedMission, 0, len(in))
	for _, m := range in {
		if m == nil || m.CompletedAt != nil || m.Expired(now) {
			continue
		}
		out = append(out, m)
	}
	return out
}
