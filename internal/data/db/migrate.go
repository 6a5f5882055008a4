package db

import (
	"fmt"

	"gorm.io/gorm"

	types "github.com/yungbote/missionengine/internal/domain/missions"
)

func AutoMigrateAll(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&types.MissionTemplate{},
		&types.ActiveMission{},
		&types.MissionProgress{},
		&types.ProgressOutbox{},
	); err != nil {
		return err
	}
	return ensureIndexes(db)
}

// Partial indexes backing the resolver and reaper predicates. Both dialects accept them.
func ensureIndexes(db *gorm.DB) error {
	stmts := []string{
		`CREATE INDEX IF NOT EXISTS idx_active_mission_open ON active_mission (user_id, period_end) WHERE completed_at IS NULL`,
		`CREATE INDEX IF NOT EXISTS idx_active_mission_expiring ON active_mission (period_end) WHERE completed_at IS NULL`,
		`CREATE INDEX IF NOT EXISTS idx_progress_outbox_due ON mission_progress_outbox (next_attempt_at, created_at)`,
	}
	for _, stmt := range stmts {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("ensure index: %w", err)
		}
	}
	return nil
}
