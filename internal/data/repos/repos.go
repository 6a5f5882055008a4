package repos

import (
	"gorm.io/gorm"

	"github.com/yungbote/missionengine/internal/data/repos/missions"
	"github.com/yungbote/missionengine/internal/platform/logger"
)

type MissionTemplateRepo = missions.MissionTemplateRepo
type ActiveMissionRepo = missions.ActiveMissionRepo
type MissionProgressRepo = missions.MissionProgressRepo
type ProgressOutboxRepo = missions.ProgressOutboxRepo

func NewMissionTemplateRepo(db *gorm.DB, log *logger.Logger) MissionTemplateRepo {
	return missions.NewMissionTemplateRepo(db, log)
}

func NewActiveMissionRepo(db *gorm.DB, log *logger.Logger) ActiveMissionRepo {
	return missions.NewActiveMissionRepo(db, log)
}

func NewMissionProgressRepo(db *gorm.DB, log *logger.Logger) MissionProgressRepo {
	return missions.NewMissionProgressRepo(db, log)
}

func NewProgressOutboxRepo(db *gorm.DB, log *logger.Logger) ProgressOutboxRepo {
	return missions.NewProgressOutboxRepo(db, log)
}
