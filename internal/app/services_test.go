package app

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/missionengine/internal/data/repos/testutil"
	types "github.com/yungbote/missionengine/internal/domain/missions"
	"github.com/yungbote/missionengine/internal/events"
	"github.com/yungbote/missionengine/internal/observability"
	"github.com/yungbote/missionengine/internal/platform/dbctx"
	"github.com/yungbote/missionengine/internal/platform/logger"
	"github.com/yungbote/missionengine/internal/realtime"
)

func TestWiredServicesCompleteMissionFromEventBus(t *testing.T) {
	t.Setenv("MISSION_CATALOG_PATH", "")
	t.Setenv("REDIS_ADDR", "")
	db := testutil.DB(t)
	log := logger.Nop()
	ctx := t.Context()

	cfg := LoadConfig(log)
	cfg.DebounceWindow = time.Hour

	clients, err := wireClients(log, cfg)
	if err != nil {
		t.Fatalf("wireClients: %v", err)
	}
	reposet := wireRepos(db, log)
	serviceset, err := wireServices(db, log, cfg, clients, reposet, realtime.NewSSEHub(log), observability.NewMetrics())
	if err != nil {
		t.Fatalf("wireServices: %v", err)
	}
	defer serviceset.Dispatcher.Close()

	user := uuid.New()
	tmpl := testutil.SeedTemplate(t, ctx, db, "daily-login", map[string]int64{"daily_logins": 1})
	m := testutil.SeedActiveMission(t, ctx, db, user, tmpl, time.Now().Add(time.Hour))

	serviceset.Events.Publish(ctx, events.UserLogin, types.ActionEvent{UserID: user, Timestamp: time.Now()})

	deadline := time.Now().Add(5 * time.Second)
	for {
		got, err := reposet.Missions.GetByID(dbctx.Context{Ctx: ctx}, m.ID)
		if err != nil {
			t.Fatalf("GetByID: %v", err)
		}
		if got.CompletedAt != nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("mission never completed")
		}
		time.Sleep(10 * time.Millisecond)
	}

	if _, err := serviceset.Drainer.Drain(ctx); err != nil {
		t.Fatalf("Drain: %v", err)
	}
	progress, err := serviceset.Query.Progress(ctx, user, m.ID)
	if err != nil {
		t.Fatalf("Progress: %v", err)
	}
	if got := progress["daily_logins"]; got.Current != 1 || got.Percentage != 100 {
		t.Fatalf("daily_logins: want={1 100} got=%+v", got)
	}
}
