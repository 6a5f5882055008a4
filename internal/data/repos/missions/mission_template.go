package missions

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/missionengine/internal/domain/missions"
	"github.com/yungbote/missionengine/internal/platform/dbctx"
	"github.com/yungbote/missionengine/internal/platform/logger"
)

// MissionTemplateRepo is read-mostly; templates are authored elsewhere.
type MissionTemplateRepo interface {
	Create(dbc dbctx.Context, templates []*types.MissionTemplate) ([]*types.MissionTemplate, error)
	UpsertBySlug(dbc dbctx.Context, template *types.MissionTemplate) error
	GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.MissionTemplate, error)
	GetBySlug(dbc dbctx.Context, slug string) (*types.MissionTemplate, error)
}

type missionTemplateRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewMissionTemplateRepo(db *gorm.DB, baseLog *logger.Logger) MissionTemplateRepo {
	return &missionTemplateRepo{db: db, log: baseLog.With("repo", "MissionTemplateRepo")}
}

func (r *missionTemplateRepo) Create(dbc dbctx.Context, templates []*types.MissionTemplate) ([]*types.MissionTemplate, error) {
	t := dbc.Or(r.db)
	if len(templates) == 0 {
		return []*types.MissionTemplate{}, nil
	}
	if err := t.WithContext(dbc.Ctx).Create(&templates).Error; err != nil {
		return nil, err
	}
	return templates, nil
}

func (r *missionTemplateRepo) UpsertBySlug(dbc dbctx.Context, template *types.MissionTemplate) error {
	t := dbc.Or(r.db)
	if template == nil || template.Slug == "" {
		return nil
	}
	return t.WithContext(dbc.Ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "slug"}},
			DoUpdates: clause.AssignmentColumns([]string{"title", "period", "requirements", "updated_at"}),
		}).
		Create(template).Error
}

func (r *missionTemplateRepo) GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.MissionTemplate, error) {
	t := dbc.Or(r.db)
	var out []*types.MissionTemplate
	if len(ids) == 0 {
		return out, nil
	}
	if err := t.WithContext(dbc.Ctx).Where("id IN ?", ids).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *missionTemplateRepo) GetBySlug(dbc dbctx.Context, slug string) (*types.MissionTemplate, error) {
	t := dbc.Or(r.db)
	if slug == "" {
		return nil, nil
	}
	var tmpl types.MissionTemplate
	if err := t.WithContext(dbc.Ctx).Where("slug = ?", slug).Limit(1).Find(&tmpl).Error; err != nil {
		return nil, err
	}
	if tmpl.ID == uuid.Nil {
		return nil, nil
	}
	return &tmpl, nil
}
