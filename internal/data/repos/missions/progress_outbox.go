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

type ProgressOutboxRepo interface {
	Append(dbc dbctx.Context, rows []*types.ProgressOutbox) error
	// ClaimDue leases up to limit due rows below maxAttempts and increments their attempt count.
	ClaimDue(dbc dbctx.Context, now time.Time, limit int, maxAttempts int, lease time.Duration) ([]*types.ProgressOutbox, error)
	DeleteByIDs(dbc dbctx.Context, ids []uuid.UUID) error
	MarkFailed(dbc dbctx.Context, id uuid.UUID, nextAttemptAt time.Time, lastErr string) error
	DeleteByMissionIDs(dbc dbctx.Context, missionIDs []uuid.UUID) (int64, error)
	CountStuck(dbc dbctx.Context, maxAttempts int) (int64, error)
}

type progressOutboxRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewProgressOutboxRepo(db *gorm.DB, baseLog *logger.Logger) ProgressOutboxRepo {
	return &progressOutboxRepo{db: db, log: baseLog.With("repo", "ProgressOutboxRepo")}
}

func (r *progressOutboxRepo) Append(dbc dbctx.Context, rows []*types.ProgressOutbox) error {
	t := dbc.Or(r.db)
	if len(rows) == 0 {
		return nil
	}
	return t.WithContext(dbc.Ctx).Create(&rows).Error
}

func (r *progressOutboxRepo) ClaimDue(dbc dbctx.Context, now time.Time, limit int, maxAttempts int, lease time.Duration) ([]*types.ProgressOutbox, error) {
	t := dbc.Or(r.db)
	if limit <= 0 {
		limit = 100
	}
	now = now.UTC()
	var claimed []*types.ProgressOutbox
	err := t.WithContext(dbc.Ctx).Transaction(func(txx *gorm.DB) error {
		q := txx
		if isPostgres(txx) {
			q = q.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
		}
		q = q.Where("next_attempt_at <= ? AND (locked_until IS NULL OR locked_until < ?)", now, now)
		if maxAttempts > 0 {
			q = q.Where("attempts < ?", maxAttempts)
		}
		var rows []*types.ProgressOutbox
		if err := q.Order("created_at ASC").Limit(limit).Find(&rows).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		ids := make([]uuid.UUID, 0, len(rows))
		for _, row := range rows {
			ids = append(ids, row.ID)
		}
		until := now.Add(lease)
		if err := txx.Model(&types.ProgressOutbox{}).
			Where("id IN ?", ids).
			Updates(map[string]interface{}{
				"locked_until": until,
				"attempts":     gorm.Expr("attempts + 1"),
			}).Error; err != nil {
			return err
		}
		for _, row := range rows {
			row.Attempts++
			row.LockedUntil = &until
		}
		claimed = rows
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

func (r *progressOutboxRepo) DeleteByIDs(dbc dbctx.Context, ids []uuid.UUID) error {
	t := dbc.Or(r.db)
	if len(ids) == 0 {
		return nil
	}
	return t.WithContext(dbc.Ctx).Where("id IN ?", ids).Delete(&types.ProgressOutbox{}).Error
}

func (r *progressOutboxRepo) MarkFailed(dbc dbctx.Context, id uuid.UUID, nextAttemptAt time.Time, lastErr string) error {
	t := dbc.Or(r.db)
	if id == uuid.Nil {
		return nil
	}
	if len(lastErr) > 1000 {
		lastErr = lastErr[:1000]
	}
	return t.WithContext(dbc.Ctx).
		Model(&types.ProgressOutbox{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"locked_until":    nil,
			"next_attempt_at": nextAttemptAt.UTC(),
			"last_error":      lastErr,
		}).Error
}

func (r *progressOutboxRepo) DeleteByMissionIDs(dbc dbctx.Context, missionIDs []uuid.UUID) (int64, error) {
	t := dbc.Or(r.db)
	if len(missionIDs) == 0 {
		return 0, nil
	}
	res := t.WithContext(dbc.Ctx).
		Where("mission_id IN ?", missionIDs).
		Delete(&types.ProgressOutbox{})
	return res.RowsAffected, res.Error
}

func (r *progressOutboxRepo) CountStuck(dbc dbctx.Context, maxAttempts int) (int64, error) {
	t := dbc.Or(r.db)
	if maxAttempts <= 0 {
		return 0, nil
	}
	var n int64
	err := t.WithContext(dbc.Ctx).
		Model(&types.ProgressOutbox{}).
		Where("attempts >= ?", maxAttempts).
		Count(&n).Error
	return n, err
}
