package missions

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	PeriodDaily  = "daily"
	PeriodWeekly = "weekly"
	PeriodCustom = "custom"
)

// MissionTemplate is authored elsewhere; this service only reads it.
type MissionTemplate struct {
	ID    uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Slug  string    `gorm:"column:slug;not null;uniqueIndex" json:"slug"`
	Title string    `gorm:"column:title" json:"title"`
	// daily|weekly|custom
	Period string `gorm:"column:period;not null;default:'daily'" json:"period"`
	// requirement key -> target value
	Requirements datatypes.JSON `gorm:"column:requirements;type:jsonb;not null" json:"requirements"`
	CreatedAt    time.Time      `gorm:"not null;autoCreateTime;index" json:"created_at"`
	UpdatedAt    time.Time      `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

func (MissionTemplate) TableName() string { return "mission_template" }

func (t *MissionTemplate) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

// Targets decodes the requirements column.
func (t *MissionTemplate) Targets() (map[string]int64, error) {
	out := map[string]int64{}
	if t == nil || len(t.Requirements) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(t.Requirements, &out); err != nil {
		return nil, fmt.Errorf("decode requirements for template %s: %w", t.ID, err)
	}
	return out, nil
}

// SetTargets encodes targets into the requirements column.
func (t *MissionTemplate) SetTargets(targets map[string]int64) error {
	raw, err := json.Marshal(targets)
	if err != nil {
		return err
	}
	t.Requirements = datatypes.JSON(raw)
	return nil
}

func sortedKeys(m map[string]int64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
