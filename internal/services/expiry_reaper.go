package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"

	"github.com/yungbote/missionengine/internal/data/counters"
	"github.com/yungbote/missionengine/internal/data/repos"
	types "github.com/yungbote/missionengine/internal/domain/missions"
	"github.com/yungbote/missionengine/internal/observability"
	"github.com/yungbote/missionengine/internal/platform/dbctx"
	"github.com/yungbote/missionengine/internal/platform/logger"
)

const defaultReapBatch = 500

type ExpiryReaperDeps struct {
	DB       *gorm.DB
	Missions repos.ActiveMissionRepo
	Progress repos.MissionProgressRepo
	Outbox   repos.ProgressOutboxRepo
	Counters counters.Store
	Resolver MissionResolver
	Metrics  *observability.Metrics
}

// ExpiryReaper removes incomplete missions whose period has ended, together
// with their progress rows, pending outbox rows and cache keys. Completed
// missions are never touched.
type ExpiryReaper struct {
	log   *logger.Logger
	deps  ExpiryReaperDeps
	batch int
	now   func() time.Time
}

func NewExpiryReaper(baseLog *logger.Logger, deps ExpiryReaperDeps) *ExpiryReaper {
	return &ExpiryReaper{
		log:   baseLog.With("service", "ExpiryReaper"),
		deps:  deps,
		batch: defaultReapBatch,
		now:   time.Now,
	}
}

// Sweep returns how many missions were reset.
func (r *ExpiryReaper) Sweep(ctx context.Context) (int, error) {
	ctx, span := observability.Tracer().Start(ctx, "missions.Sweep")
	defer span.End()

	now := r.now().UTC()
	total := 0
	for {
		expired, err := r.deps.Missions.ListExpiredIncomplete(dbctx.Context{Ctx: ctx}, now, r.batch)
		if err != nil {
			return total, fmt.Errorf("list expired missions: %w", err)
		}
		if len(expired) == 0 {
			break
		}
		n, err := r.reap(ctx, expired)
		total += n
		if err != nil {
			return total, err
		}
		if len(expired) < r.batch || n == 0 {
			break
		}
	}
	span.SetAttributes(attribute.Int("reaped", total))
	r.deps.Metrics.MissionsReaped(total)
	if total > 0 {
		r.log.Info("expired missions reaped", "count", total)
	}
	return total, nil
}

func (r *ExpiryReaper) reap(ctx context.Context, expired []*types.ActiveMission) (int, error) {
	ids := make([]uuid.UUID, 0, len(expired))
	for _, m := range expired {
		ids = append(ids, m.ID)
	}

	// Ledger keys cover requirements a template no longer lists.
	ledgerKeys := map[uuid.UUID][]string{}
	rows, err := r.deps.Progress.ListByMissionIDs(dbctx.Context{Ctx: ctx}, ids)
	if err != nil {
		r.log.Warn("list ledger keys for cleanup failed", "missions", len(ids), "error", err)
	}
	for _, row := range rows {
		ledgerKeys[row.MissionID] = append(ledgerKeys[row.MissionID], row.RequirementKey)
	}

	// A mission completed after the listing keeps its progress and outbox rows.
	reaped := map[uuid.UUID]bool{}
	var deleted int64
	err = r.deps.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		live, err := r.deps.Missions.LockIncompleteByIDs(dbc, ids)
		if err != nil {
			return fmt.Errorf("lock missions: %w", err)
		}
		if len(live) == 0 {
			return nil
		}
		if _, err := r.deps.Progress.DeleteByMissionIDs(dbc, live); err != nil {
			return fmt.Errorf("delete progress: %w", err)
		}
		if _, err := r.deps.Outbox.DeleteByMissionIDs(dbc, live); err != nil {
			return fmt.Errorf("delete outbox: %w", err)
		}
		n, err := r.deps.Missions.DeleteIncompleteByIDs(dbc, live)
		if err != nil {
			return fmt.Errorf("delete missions: %w", err)
		}
		for _, id := range live {
			reaped[id] = true
		}
		deleted = n
		return nil
	})
	if err != nil {
		return 0, err
	}

	users := map[uuid.UUID]bool{}
	for _, m := range expired {
		if !reaped[m.ID] {
			continue
		}
		users[m.UserID] = true
		keys := ledgerKeys[m.ID]
		if targets, terr := m.Template.Targets(); terr == nil {
			for k := range targets {
				keys = append(keys, k)
			}
		}
		if len(keys) == 0 || r.deps.Counters == nil {
			continue
		}
		if err := r.deps.Counters.Delete(ctx, counters.MissionKeys(m.UserID, m.ID, dedupe(keys))...); err != nil {
			r.log.Warn("counter cleanup failed", "mission_id", m.ID, "error", err)
		}
	}
	if r.deps.Resolver != nil {
		for userID := range users {
			r.deps.Resolver.Invalidate(userID)
		}
	}
	return int(deleted), nil
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
