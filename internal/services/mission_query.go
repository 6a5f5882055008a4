package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/yungbote/missionengine/internal/data/repos"
	types "github.com/yungbote/missionengine/internal/domain/missions"
	"github.com/yungbote/missionengine/internal/platform/apierr"
	"github.com/yungbote/missionengine/internal/platform/dbctx"
	"github.com/yungbote/missionengine/internal/platform/logger"
)

var (
	ErrNotFound        = errors.New("mission not found")
	ErrInvalidArgument = errors.New("invalid argument")
)

type MissionView struct {
	Mission      *types.ResolvedMission               `json:"mission"`
	Requirements map[string]types.RequirementProgress `json:"requirements"`
}

// MissionQuery serves the read path. Values come from the ledger only, so
// cache values above target are never exposed.
type MissionQuery interface {
	Progress(ctx context.Context, userID, missionID uuid.UUID) (map[string]types.RequirementProgress, error)
	ListActive(ctx context.Context, userID uuid.UUID) ([]MissionView, error)
}

type missionQuery struct {
	log      *logger.Logger
	missions repos.ActiveMissionRepo
	progress repos.MissionProgressRepo
	resolver MissionResolver
}

func NewMissionQuery(baseLog *logger.Logger, missions repos.ActiveMissionRepo, progress repos.MissionProgressRepo, resolver MissionResolver) MissionQuery {
	return &missionQuery{
		log:      baseLog.With("service", "MissionQuery"),
		missions: missions,
		progress: progress,
		resolver: resolver,
	}
}

func (q *missionQuery) Progress(ctx context.Context, userID, missionID uuid.UUID) (map[string]types.RequirementProgress, error) {
	if userID == uuid.Nil || missionID == uuid.Nil {
		return nil, apierr.InvalidArgument(ErrInvalidArgument)
	}
	dbc := dbctx.Context{Ctx: ctx}
	m, err := q.missions.GetByID(dbc, missionID)
	if err != nil {
		return nil, fmt.Errorf("load mission: %w", err)
	}
	if m == nil || m.UserID != userID {
		return nil, apierr.MissionNotFound(ErrNotFound)
	}
	rm, err := types.Resolve(m)
	if err != nil {
		return nil, err
	}
	rows, err := q.progress.ListByMissionIDs(dbc, []uuid.UUID{missionID})
	if err != nil {
		return nil, fmt.Errorf("load progress: %w", err)
	}
	return requirementView(rm, rows), nil
}

func (q *missionQuery) ListActive(ctx context.Context, userID uuid.UUID) ([]MissionView, error) {
	missions, err := q.resolver.ActiveMissionsFor(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(missions) == 0 {
		return []MissionView{}, nil
	}
	ids := make([]uuid.UUID, 0, len(missions))
	for _, m := range missions {
		ids = append(ids, m.ID)
	}
	rows, err := q.progress.ListByMissionIDs(dbctx.Context{Ctx: ctx}, ids)
	if err != nil {
		return nil, fmt.Errorf("load progress: %w", err)
	}
	byMission := map[uuid.UUID][]*types.MissionProgress{}
	for _, r := range rows {
		byMission[r.MissionID] = append(byMission[r.MissionID], r)
	}
	out := make([]MissionView, 0, len(missions))
	for _, m := range missions {
		out = append(out, MissionView{Mission: m, Requirements: requirementView(m, byMission[m.ID])})
	}
	return out, nil
}

// requirementView reports every template requirement; missing rows read as zero.
func requirementView(m *types.ResolvedMission, rows []*types.MissionProgress) map[string]types.RequirementProgress {
	current := map[string]int64{}
	for _, r := range rows {
		current[r.RequirementKey] = r.CurrentValue
	}
	out := make(map[string]types.RequirementProgress, len(m.Targets))
	for key, target := range m.Targets {
		cur := current[key]
		out[key] = types.RequirementProgress{
			Current:    types.Clamp(cur, target),
			Target:     target,
			Percentage: types.Percentage(cur, target),
		}
	}
	return out
}
