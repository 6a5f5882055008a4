package missions

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/missionengine/internal/domain/missions"
	"github.com/yungbote/missionengine/internal/platform/dbctx"
	"github.com/yungbote/missionengine/internal/platform/logger"
)

type MissionProgressRepo interface {
	// UpsertMax creates the row or raises current_value to row.CurrentValue; it never lowers it.
	UpsertMax(dbc dbctx.Context, row *types.MissionProgress) error
	ListByMissionIDs(dbc dbctx.Context, missionIDs []uuid.UUID) ([]*types.MissionProgress, error)
	DeleteByMissionIDs(dbc dbctx.Context, missionIDs []uuid.UUID) (int64, error)
}

type missionProgressRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewMissionProgressRepo(db *gorm.DB, baseLog *logger.Logger) MissionProgressRepo {
	return &missionProgressRepo{db: db, log: baseLog.With("repo", "MissionProgressRepo")}
}

func (r *missionProgressRepo) UpsertMax(dbc dbctx.Context, row *types.MissionProgress) error {
	t := dbc.Or(r.db)
	if row == nil || row.MissionID == uuid.Nil || row.RequirementKey == "" {
		return nil
	}
	if row.CurrentValue < 0 {
		row.CurrentValue = 0
	}
	now := time.Now().UTC()
	row.UpdatedAt = now
	return t.WithContext(dbc.Ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "mission_id"}, {Name: "requirement_key"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"current_value": gorm.Expr(greatestFn(t) + "(mission_progress.current_value, excluded.current_value)"),
				"target_value":  gorm.Expr("excluded.target_value"),
				"updated_at":    now,
			}),
		}).
		Create(row).Error
}

func (r *missionProgressRepo) ListByMissionIDs(dbc dbctx.Context, missionIDs []uuid.UUID) ([]*types.MissionProgress, error) {
	t := dbc.Or(r.db)
	var out []*types.MissionProgress
	if len(missionIDs) == 0 {
		return out, nil
	}
	if err := t.WithContext(dbc.Ctx).
		Where("mission_id IN ?", missionIDs).
		Order("mission_id ASC, requirement_key ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *missionProgressRepo) DeleteByMissionIDs(dbc dbctx.Context, missionIDs []uuid.UUID) (int64, error) {
	t := dbc.Or(r.db)
	if len(missionIDs) == 0 {
		return 0, nil
	}
	res := t.WithContext(dbc.Ctx).
		Where("mission_id IN ?", missionIDs).
		Delete(&types.MissionProgress{})
	return res.RowsAffected, res.Error
}

// greatestFn is the two-argument max for the active dialect.
func greatestFn(db *gorm.DB) string {
	if db != nil && db.Dialector != nil && db.Dialector.Name() == "sqlite" {
		return "MAX"
	}
	return "GREATEST"
}

func isPostgres(db *gorm.DB) bool {
	return db != nil && db.Dialector != nil && db.Dialector.Name() == "postgres"
}
