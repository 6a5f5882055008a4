package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/missionengine/internal/data/repos"
	"github.com/yungbote/missionengine/internal/platform/logger"
)

type Repos struct {
	Templates repos.MissionTemplateRepo
	Missions  repos.ActiveMissionRepo
	Progress  repos.MissionProgressRepo
	Outbox    repos.ProgressOutboxRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		Templates: repos.NewMissionTemplateRepo(db, log),
		Missions:  repos.NewActiveMissionRepo(db, log),
		Progress:  repos.NewMissionProgressRepo(db, log),
		Outbox:    repos.NewProgressOutboxRepo(db, log),
	}
}
