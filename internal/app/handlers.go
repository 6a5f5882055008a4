package app

import (
	"context"

	httpH "github.com/yungbote/missionengine/internal/http/handlers"
	"github.com/yungbote/missionengine/internal/platform/logger"
	"github.com/yungbote/missionengine/internal/realtime"
)

type Handlers struct {
	Mission  *httpH.MissionHandler
	Action   *httpH.ActionHandler
	Realtime *httpH.RealtimeHandler
	Health   *httpH.HealthHandler
}

func wireHandlers(log *logger.Logger, serviceset Services, clients Clients, pingDB httpH.ReadyCheck, hub *realtime.SSEHub) Handlers {
	log.Info("Wiring handlers...")
	checks := map[string]httpH.ReadyCheck{"postgres": pingDB}
	if clients.Redis != nil {
		checks["redis"] = func(ctx context.Context) error { return clients.Redis.Ping(ctx).Err() }
	}
	return Handlers{
		Mission:  httpH.NewMissionHandler(log, serviceset.Query),
		Action:   httpH.NewActionHandler(log, serviceset.Events, serviceset.Dispatcher),
		Realtime: httpH.NewRealtimeHandler(log, hub),
		Health:   httpH.NewHealthHandler(checks),
	}
}
