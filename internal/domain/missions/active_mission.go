package missions

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ActiveMission is one template instantiated for one user for one period.
type ActiveMission struct {
	ID          uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	UserID      uuid.UUID        `gorm:"type:uuid;not null;index:idx_active_mission_user_open,priority:1" json:"user_id"`
	TemplateID  uuid.UUID        `gorm:"type:uuid;not null;index" json:"template_id"`
	Template    *MissionTemplate `gorm:"foreignKey:TemplateID" json:"template,omitempty"`
	PeriodStart time.Time        `gorm:"column:period_start;not null" json:"period_start"`
	PeriodEnd   time.Time        `gorm:"column:period_end;not null;index;index:idx_active_mission_user_open,priority:2" json:"period_end"`
	CompletedAt *time.Time       `gorm:"column:completed_at;index" json:"completed_at,omitempty"`
	CreatedAt   time.Time        `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time        `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

func (ActiveMission) TableName() string { return "active_mission" }

func (m *ActiveMission) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

// ResolvedMission is an ActiveMission joined with its template's decoded targets.
type ResolvedMission struct {
	ID          uuid.UUID        `json:"id"`
	UserID      uuid.UUID        `json:"user_id"`
	TemplateID  uuid.UUID        `json:"template_id"`
	Title       string           `json:"title,omitempty"`
	PeriodStart time.Time        `json:"period_start"`
	PeriodEnd   time.Time        `json:"period_end"`
	CompletedAt *time.Time       `json:"completed_at,omitempty"`
	Targets     map[string]int64 `json:"requirements"`
}

// Resolve joins m with its preloaded template.
func Resolve(m *ActiveMission) (*ResolvedMission, error) {
	targets, err := m.Template.Targets()
	if err != nil {
		return nil, err
	}
	out := &ResolvedMission{
		ID:          m.ID,
		UserID:      m.UserID,
		TemplateID:  m.TemplateID,
		PeriodStart: m.PeriodStart,
		PeriodEnd:   m.PeriodEnd,
		CompletedAt: m.CompletedAt,
		Targets:     targets,
	}
	if m.Template != nil {
		out.Title = m.Template.Title
	}
	return out, nil
}

func (r *ResolvedMission) Target(key string) (int64, bool) {
	if r == nil {
		return 0, false
	}
	v, ok := r.Targets[key]
	return v, ok
}

// RequirementKeys is sorted so iteration order is stable.
func (r *ResolvedMission) RequirementKeys() []string {
	if r == nil {
		return nil
	}
	return sortedKeys(r.Targets)
}

func (r *ResolvedMission) Expired(now time.Time) bool {
	return r == nil || r.PeriodEnd.Before(now)
}
