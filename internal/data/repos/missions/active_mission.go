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

type ActiveMissionRepo interface {
	Create(dbc dbctx.Context, missions []*types.ActiveMission) ([]*types.ActiveMission, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.ActiveMission, error)
	// ListOpenForUser returns missions with period_end >= now and no completed_at, templates preloaded.
	ListOpenForUser(dbc dbctx.Context, userID uuid.UUID, now time.Time) ([]*types.ActiveMission, error)
	// ListCurrentForUser is ListOpenForUser including completed missions.
	ListCurrentForUser(dbc dbctx.Context, userID uuid.UUID, now time.Time) ([]*types.ActiveMission, error)
	// MarkCompleted sets completed_at only if it is still null and reports whether this call set it.
	MarkCompleted(dbc dbctx.Context, id uuid.UUID, at time.Time) (bool, error)
	ListExpiredIncomplete(dbc dbctx.Context, now time.Time, limit int) ([]*types.ActiveMission, error)
	// LockIncompleteByIDs returns the subset of ids that are still incomplete,
	// holding row locks on postgres until the surrounding transaction ends.
	LockIncompleteByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]uuid.UUID, error)
	DeleteIncompleteByIDs(dbc dbctx.Context, ids []uuid.UUID) (int64, error)
}

type activeMissionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewActiveMissionRepo(db *gorm.DB, baseLog *logger.Logger) ActiveMissionRepo {
	return &activeMissionRepo{db: db, log: baseLog.With("repo", "ActiveMissionRepo")}
}

func (r *activeMissionRepo) Create(dbc dbctx.Context, missions []*types.ActiveMission) ([]*types.ActiveMission, error) {
	t := dbc.Or(r.db)
	if len(missions) == 0 {
		return []*types.ActiveMission{}, nil
	}
	if err := t.WithContext(dbc.Ctx).Omit("Template").Create(&missions).Error; err != nil {
		return nil, err
	}
	return missions, nil
}

func (r *activeMissionRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.ActiveMission, error) {
	t := dbc.Or(r.db)
	if id == uuid.Nil {
		return nil, nil
	}
	var m types.ActiveMission
	if err := t.WithContext(dbc.Ctx).
		Preload("Template").
		Where("id = ?", id).
		Limit(1).
		Find(&m).Error; err != nil {
		return nil, err
	}
	if m.ID == uuid.Nil {
		return nil, nil
	}
	return &m, nil
}

func (r *activeMissionRepo) ListOpenForUser(dbc dbctx.Context, userID uuid.UUID, now time.Time) ([]*types.ActiveMission, error) {
	return r.listForUser(dbc, userID, now, true)
}

func (r *activeMissionRepo) ListCurrentForUser(dbc dbctx.Context, userID uuid.UUID, now time.Time) ([]*types.ActiveMission, error) {
	return r.listForUser(dbc, userID, now, false)
}

func (r *activeMissionRepo) listForUser(dbc dbctx.Context, userID uuid.UUID, now time.Time, openOnly bool) ([]*types.ActiveMission, error) {
	t := dbc.Or(r.db)
	var out []*types.ActiveMission
	if userID == uuid.Nil {
		return out, nil
	}
	q := t.WithContext(dbc.Ctx).
		Preload("Template").
		Where("user_id = ? AND period_end >= ?", userID, now.UTC())
	if openOnly {
		q = q.Where("completed_at IS NULL")
	}
	if err := q.Order("period_end ASC, id ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *activeMissionRepo) MarkCompleted(dbc dbctx.Context, id uuid.UUID, at time.Time) (bool, error) {
	t := dbc.Or(r.db)
	if id == uuid.Nil {
		return false, nil
	}
	res := t.WithContext(dbc.Ctx).
		Model(&types.ActiveMission{}).
		Where("id = ? AND completed_at IS NULL", id).
		Updates(map[string]interface{}{
			"completed_at": at.UTC(),
			"updated_at":   time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *activeMissionRepo) ListExpiredIncomplete(dbc dbctx.Context, now time.Time, limit int) ([]*types.ActiveMission, error) {
	t := dbc.Or(r.db)
	var out []*types.ActiveMission
	q := t.WithContext(dbc.Ctx).
		Preload("Template").
		Where("period_end < ? AND completed_at IS NULL", now.UTC()).
		Order("period_end ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *activeMissionRepo) LockIncompleteByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]uuid.UUID, error) {
	t := dbc.Or(r.db)
	out := []uuid.UUID{}
	if len(ids) == 0 {
		return out, nil
	}
	q := t.WithContext(dbc.Ctx).
		Model(&types.ActiveMission{}).
		Where("id IN ? AND completed_at IS NULL", ids)
	if isPostgres(t) {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	if err := q.Pluck("id", &out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteIncompleteByIDs never removes a completed mission, even if its id is passed.
func (r *activeMissionRepo) DeleteIncompleteByIDs(dbc dbctx.Context, ids []uuid.UUID) (int64, error) {
	t := dbc.Or(r.db)
	if len(ids) == 0 {
		return 0, nil
	}
	res := t.WithContext(dbc.Ctx).
		Where("id IN ? AND completed_at IS NULL", ids).
		Delete(&types.ActiveMission{})
	return res.RowsAffected, res.Error
}
