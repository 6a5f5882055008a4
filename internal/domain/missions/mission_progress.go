package missions

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MissionProgress is the durable value of one requirement of one mission.
// CurrentValue never decreases until the row is removed by expiry.
type MissionProgress struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	MissionID      uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_mission_progress_mission_req,priority:1" json:"mission_id"`
	RequirementKey string    `gorm:"column:requirement_key;not null;uniqueIndex:idx_mission_progress_mission_req,priority:2" json:"requirement_key"`
	UserID         uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	CurrentValue   int64     `gorm:"column:current_value;not null;default:0" json:"current_value"`
	TargetValue    int64     `gorm:"column:target_value;not null;default:0" json:"target_value"`
	CreatedAt      time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

func (MissionProgress) TableName() string { return "mission_progress" }

func (p *MissionProgress) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// ProgressOutbox is written alongside every counter increment and applied to
// MissionProgress by the drainer, so an increment is never lost between the
// cache write and the ledger write.
type ProgressOutbox struct {
	ID             uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	MissionID      uuid.UUID  `gorm:"type:uuid;not null;index" json:"mission_id"`
	UserID         uuid.UUID  `gorm:"type:uuid;not null;index" json:"user_id"`
	RequirementKey string     `gorm:"column:requirement_key;not null" json:"requirement_key"`
	Value          int64      `gorm:"column:value;not null" json:"value"`
	Target         int64      `gorm:"column:target;not null" json:"target"`
	Attempts       int        `gorm:"column:attempts;not null;default:0" json:"attempts"`
	NextAttemptAt  time.Time  `gorm:"column:next_attempt_at;not null;index" json:"next_attempt_at"`
	LockedUntil    *time.Time `gorm:"column:locked_until;index" json:"locked_until,omitempty"`
	LastError      string     `gorm:"column:last_error;type:text" json:"last_error,omitempty"`
	CreatedAt      time.Time  `gorm:"not null;autoCreateTime;index" json:"created_at"`
}

func (ProgressOutbox) TableName() string { return "mission_progress_outbox" }

func (o *ProgressOutbox) BeforeCreate(tx *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	if o.NextAttemptAt.IsZero() {
		o.NextAttemptAt = time.Now()
	}
	o.NextAttemptAt = o.NextAttemptAt.UTC()
	return nil
}
