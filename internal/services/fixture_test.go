package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"

	"github.com/yungbote/missionengine/internal/data/counters"
	"github.com/yungbote/missionengine/internal/data/repos"
	"github.com/yungbote/missionengine/internal/data/repos/testutil"
	types "github.com/yungbote/missionengine/internal/domain/missions"
	"github.com/yungbote/missionengine/internal/missions/catalog"
	"github.com/yungbote/missionengine/internal/platform/dbctx"
	"github.com/yungbote/missionengine/internal/platform/logger"
)

type fakeCompletions struct {
	mu      sync.Mutex
	signals []types.CompletionSignal
}

func (f *fakeCompletions) PublishCompletion(ctx context.Context, sig types.CompletionSignal) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signals = append(f.signals, sig)
	return nil
}

func (f *fakeCompletions) missionIDs() []uuid.UUID {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []uuid.UUID
	for _, s := range f.signals {
		out = append(out, s.MissionIDs...)
	}
	return out
}

type fakeNotifier struct {
	mu        sync.Mutex
	progress  map[uuid.UUID][]types.ProgressUpdate
	completed map[uuid.UUID][]uuid.UUID
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{
		progress:  map[uuid.UUID][]types.ProgressUpdate{},
		completed: map[uuid.UUID][]uuid.UUID{},
	}
}

func (f *fakeNotifier) Progress(ctx context.Context, userID uuid.UUID, updates []types.ProgressUpdate) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.progress[userID] = append(f.progress[userID], updates...)
}

func (f *fakeNotifier) Completed(ctx context.Context, userID uuid.UUID, missionIDs []uuid.UUID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completed[userID] = append(f.completed[userID], missionIDs...)
}

type fixture struct {
	t           *testing.T
	ctx         context.Context
	db          *gorm.DB
	log         *logger.Logger
	missions    repos.ActiveMissionRepo
	progress    repos.MissionProgressRepo
	outbox      repos.ProgressOutboxRepo
	counters    *counters.MemoryStore
	resolver    MissionResolver
	completions *fakeCompletions
	notifier    *fakeNotifier
	drainer     *OutboxDrainer
	engine      ProgressEngine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.DB(t)
	log := logger.Nop()
	f := &fixture{
		t:           t,
		ctx:         context.Background(),
		db:          db,
		log:         log,
		missions:    repos.NewActiveMissionRepo(db, log),
		progress:    repos.NewMissionProgressRepo(db, log),
		outbox:      repos.NewProgressOutboxRepo(db, log),
		counters:    counters.NewMemoryStore(),
		completions: &fakeCompletions{},
		notifier:    newFakeNotifier(),
	}
	f.resolver = NewMissionResolver(log, f.missions, 100, time.Minute, nil)
	f.drainer = NewOutboxDrainer(log, f.outbox, f.progress, nil, OutboxDrainerConfig{})
	f.engine = f.newEngine(f.resolver)
	return f
}

func (f *fixture) newEngine(resolver MissionResolver) ProgressEngine {
	return NewProgressEngine(f.log, ProgressEngineDeps{
		Catalog:     catalog.Default(),
		Resolver:    resolver,
		Counters:    f.counters,
		Missions:    f.missions,
		Progress:    f.progress,
		Outbox:      f.outbox,
		Drainer:     f.drainer,
		Completions: f.completions,
		Notifier:    f.notifier,
	}, ProgressEngineConfig{})
}

func (f *fixture) mission(userID uuid.UUID, slug string, targets map[string]int64, periodEnd time.Time) *types.ActiveMission {
	f.t.Helper()
	tmpl := testutil.SeedTemplate(f.t, f.ctx, f.db, slug, targets)
	return testutil.SeedActiveMission(f.t, f.ctx, f.db, userID, tmpl, periodEnd)
}

func (f *fixture) reload(id uuid.UUID) *types.ActiveMission {
	f.t.Helper()
	var m types.ActiveMission
	if err := f.db.Where("id = ?", id).Limit(1).Find(&m).Error; err != nil {
		f.t.Fatalf("reload mission: %v", err)
	}
	if m.ID == uuid.Nil {
		return nil
	}
	return &m
}

func (f *fixture) count(model any) int64 {
	f.t.Helper()
	var n int64
	if err := f.db.Model(model).Count(&n).Error; err != nil {
		f.t.Fatalf("count: %v", err)
	}
	return n
}

func (f *fixture) ledger(missionID uuid.UUID) map[string]int64 {
	f.t.Helper()
	rows, err := f.progress.ListByMissionIDs(dbctx.Background(f.ctx), []uuid.UUID{missionID})
	if err != nil {
		f.t.Fatalf("ledger: %v", err)
	}
	out := map[string]int64{}
	for _, r := range rows {
		out[r.RequirementKey] = r.CurrentValue
	}
	return out
}

func findUpdate(updates []types.ProgressUpdate, key string) (types.ProgressUpdate, bool) {
	for _, u := range updates {
		if u.RequirementKey == key {
			return u, true
		}
	}
	return types.ProgressUpdate{}, false
}

func dbctxOf(f *fixture) dbctx.Context { return dbctx.Background(f.ctx) }

// observedLogger records warnings and above for assertions.
func observedLogger() (*logger.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.WarnLevel)
	return &logger.Logger{SugaredLogger: zap.New(core).Sugar()}, logs
}
