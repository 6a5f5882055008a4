package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/missionengine/internal/data/counters"
	"github.com/yungbote/missionengine/internal/data/repos/testutil"
	types "github.com/yungbote/missionengine/internal/domain/missions"
	"github.com/yungbote/missionengine/internal/missions/catalog"
)

func TestProcessBatchCompletesPostMission(t *testing.T) {
	f := newFixture(t)
	user := uuid.New()
	m := f.mission(user, "posts", map[string]int64{"posts_created": 5}, time.Now().Add(time.Hour))
	testutil.SeedProgress(t, f.ctx, f.db, m, "posts_created", 4, 5)

	updates, err := f.engine.ProcessBatch(f.ctx, []types.ActionEvent{
		{UserID: user, Action: catalog.ActionCreatePost},
	})
	if err != nil {
		t.Fatalf("ProcessBatch: %v", err)
	}
	if len(updates) != 1 {
		t.Fatalf("updates: want=1 got=%d", len(updates))
	}
	u := updates[0]
	if u.MissionID != m.ID || u.PreviousValue != 4 || u.CurrentValue != 5 || u.TargetValue != 5 || u.Percentage != 100 || !u.IsComplete {
		t.Fatalf("unexpected update: %+v", u)
	}
	if got := f.reload(m.ID); got == nil || got.CompletedAt == nil {
		t.Fatalf("expected completed_at to be set")
	}
	if ids := f.completions.missionIDs(); len(ids) != 1 || ids[0] != m.ID {
		t.Fatalf("completion signals: want=[%s] got=%v", m.ID, ids)
	}
	if got := f.notifier.completed[user]; len(got) != 1 {
		t.Fatalf("completion notifications: want=1 got=%d", len(got))
	}
}

func TestProcessBatchTipFeedsCountAndAmount(t *testing.T) {
	f := newFixture(t)
	user := uuid.New()
	m := f.mission(user, "tipper", map[string]int64{"tips_sent": 3, "dgt_spent_tips": 100}, time.Now().Add(time.Hour))
	testutil.SeedProgress(t, f.ctx, f.db, m, "tips_sent", 2, 3)
	testutil.SeedProgress(t, f.ctx, f.db, m, "dgt_spent_tips", 70, 100)

	updates, err := f.engine.ProcessBatch(f.ctx, []types.ActionEvent{
		{UserID: user, Action: catalog.ActionSendTip, Metadata: map[string]any{"amount": 40}},
	})
	if err != nil {
		t.Fatalf("ProcessBatch: %v", err)
	}
	if len(updates) != 2 {
		t.Fatalf("updates: want=2 got=%d", len(updates))
	}
	tips, _ := findUpdate(updates, "tips_sent")
	if tips.CurrentValue != 3 || !tips.IsComplete {
		t.Fatalf("tips_sent: want=3 complete got=%+v", tips)
	}
	dgt, _ := findUpdate(updates, "dgt_spent_tips")
	if dgt.PreviousValue != 70 || dgt.CurrentValue != 100 || dgt.Percentage != 100 || !dgt.IsComplete {
		t.Fatalf("dgt_spent_tips: want=70->100 complete got=%+v", dgt)
	}
	raw, ok, _ := f.counters.Get(f.ctx, counters.ProgressKey(user, m.ID, "dgt_spent_tips"))
	if !ok || raw != 110 {
		t.Fatalf("cache keeps overshoot: want=110 got=%d", raw)
	}
	if got := f.reload(m.ID); got.CompletedAt == nil {
		t.Fatalf("expected mission complete once both requirements are met")
	}

	if _, err := f.drainer.Drain(f.ctx); err != nil {
		t.Fatalf("Drain: %v", err)
	}
	ledger := f.ledger(m.ID)
	if ledger["tips_sent"] != 3 || ledger["dgt_spent_tips"] != 100 {
		t.Fatalf("ledger after drain: got=%v", ledger)
	}
}

func TestProcessBatchWaitsForEveryRequirement(t *testing.T) {
	f := newFixture(t)
	user := uuid.New()
	m := f.mission(user, "tipper", map[string]int64{"tips_sent": 3, "dgt_spent_tips": 100}, time.Now().Add(time.Hour))
	testutil.SeedProgress(t, f.ctx, f.db, m, "tips_sent", 1, 3)
	testutil.SeedProgress(t, f.ctx, f.db, m, "dgt_spent_tips", 70, 100)

	updates, err := f.engine.ProcessBatch(f.ctx, []types.ActionEvent{
		{UserID: user, Action: catalog.ActionSendTip, Metadata: map[string]any{"amount": 40}},
	})
	if err != nil {
		t.Fatalf("ProcessBatch: %v", err)
	}
	dgt, _ := findUpdate(updates, "dgt_spent_tips")
	tips, _ := findUpdate(updates, "tips_sent")
	if !dgt.IsComplete || tips.IsComplete {
		t.Fatalf("want dgt complete and tips incomplete, got dgt=%+v tips=%+v", dgt, tips)
	}
	if got := f.reload(m.ID); got.CompletedAt != nil {
		t.Fatalf("mission must stay open while tips_sent is short")
	}
	if len(f.completions.missionIDs()) != 0 {
		t.Fatalf("no completion signal expected")
	}
}

func TestProcessBatchUnknownActionHasNoEffects(t *testing.T) {
	f := newFixture(t)
	user := uuid.New()
	f.mission(user, "posts", map[string]int64{"posts_created": 5}, time.Now().Add(time.Hour))

	updates, err := f.engine.ProcessBatch(f.ctx, []types.ActionEvent{
		{UserID: user, Action: "moon_landing"},
	})
	if err != nil {
		t.Fatalf("ProcessBatch: %v", err)
	}
	if len(updates) != 0 {
		t.Fatalf("updates: want=0 got=%d", len(updates))
	}
	if n := f.counters.Len(); n != 0 {
		t.Fatalf("cache writes: want=0 got=%d", n)
	}
	if n := f.count(&types.ProgressOutbox{}); n != 0 {
		t.Fatalf("outbox rows: want=0 got=%d", n)
	}
	if n := f.count(&types.MissionProgress{}); n != 0 {
		t.Fatalf("ledger rows: want=0 got=%d", n)
	}
}

func TestProcessBatchZeroIncrementIsSkipped(t *testing.T) {
	f := newFixture(t)
	user := uuid.New()
	f.mission(user, "spender", map[string]int64{"dgt_spent_tips": 100}, time.Now().Add(time.Hour))

	updates, err := f.engine.ProcessBatch(f.ctx, []types.ActionEvent{
		{UserID: user, Action: catalog.ActionSendTip},
	})
	if err != nil {
		t.Fatalf("ProcessBatch: %v", err)
	}
	if len(updates) != 0 || f.counters.Len() != 0 {
		t.Fatalf("missing amount must not write: updates=%d keys=%d", len(updates), f.counters.Len())
	}
}

func TestProcessBatchAggregatesPerPairInOrder(t *testing.T) {
	f := newFixture(t)
	user := uuid.New()
	m := f.mission(user, "posts", map[string]int64{"posts_created": 10}, time.Now().Add(time.Hour))

	ev := types.ActionEvent{UserID: user, Action: catalog.ActionCreatePost}
	updates, err := f.engine.ProcessBatch(f.ctx, []types.ActionEvent{ev, ev, ev})
	if err != nil {
		t.Fatalf("ProcessBatch: %v", err)
	}
	if len(updates) != 1 {
		t.Fatalf("updates: want=1 got=%d", len(updates))
	}
	if updates[0].PreviousValue != 0 || updates[0].CurrentValue != 3 || updates[0].Percentage != 30 {
		t.Fatalf("unexpected update: %+v", updates[0])
	}
	if n := f.count(&types.ProgressOutbox{}); n != 1 {
		t.Fatalf("outbox rows: want=1 got=%d", n)
	}
	_, _ = f.drainer.Drain(f.ctx)
	if got := f.ledger(m.ID)["posts_created"]; got != 3 {
		t.Fatalf("ledger: want=3 got=%d", got)
	}
}

func TestProcessBatchUniqueUsesSeenSet(t *testing.T) {
	f := newFixture(t)
	user := uuid.New()
	f.mission(user, "explorer", map[string]int64{"unique_forums_posted": 3}, time.Now().Add(time.Hour))

	post := func(forum string) types.ActionEvent {
		return types.ActionEvent{UserID: user, Action: catalog.ActionCreatePost, Metadata: map[string]any{"forumId": forum}}
	}
	updates, err := f.engine.ProcessBatch(f.ctx, []types.ActionEvent{post("f1"), post("f1"), post("f2")})
	if err != nil {
		t.Fatalf("ProcessBatch: %v", err)
	}
	u, ok := findUpdate(updates, "unique_forums_posted")
	if !ok || u.CurrentValue != 2 {
		t.Fatalf("unique forums: want=2 got=%+v", u)
	}
}

func TestProcessBatchUniqueIgnoresPostTargets(t *testing.T) {
	f := newFixture(t)
	user := uuid.New()
	f.mission(user, "explorer", map[string]int64{"unique_forums_posted": 3, "posts_created": 5}, time.Now().Add(time.Hour))

	post := func(target string) types.ActionEvent {
		return types.ActionEvent{UserID: user, Action: catalog.ActionCreatePost, Metadata: map[string]any{
			"targetId": target,
			"context":  map[string]any{"isNewForum": false},
		}}
	}
	updates, err := f.engine.ProcessBatch(f.ctx, []types.ActionEvent{post("post-1"), post("post-2")})
	if err != nil {
		t.Fatalf("ProcessBatch: %v", err)
	}
	if u, ok := findUpdate(updates, "unique_forums_posted"); ok {
		t.Fatalf("unique forums: want no update got=%+v", u)
	}
	if u, ok := findUpdate(updates, "posts_created"); !ok || u.CurrentValue != 2 {
		t.Fatalf("posts_created: want=2 got=%+v", u)
	}
}

func TestProcessBatchUniqueExplicitFalseSkipsSeenSet(t *testing.T) {
	f := newFixture(t)
	user := uuid.New()
	f.mission(user, "explorer", map[string]int64{"unique_forums_posted": 3}, time.Now().Add(time.Hour))

	ev := types.ActionEvent{UserID: user, Action: catalog.ActionCreatePost, Metadata: map[string]any{
		"forumId": "forum-1",
		"context": map[string]any{"isNewForum": false},
	}}
	updates, err := f.engine.ProcessBatch(f.ctx, []types.ActionEvent{ev})
	if err != nil {
		t.Fatalf("ProcessBatch: %v", err)
	}
	if u, ok := findUpdate(updates, "unique_forums_posted"); ok {
		t.Fatalf("explicit false: want no update got=%+v", u)
	}
}

func TestProcessBatchUniqueFlagWithoutIdentifier(t *testing.T) {
	f := newFixture(t)
	user := uuid.New()
	f.mission(user, "explorer", map[string]int64{"unique_forums_posted": 3}, time.Now().Add(time.Hour))

	ev := types.ActionEvent{UserID: user, Action: catalog.ActionCreatePost, Metadata: map[string]any{
		"context": map[string]any{"isNewForum": true},
	}}
	updates, err := f.engine.ProcessBatch(f.ctx, []types.ActionEvent{ev, ev})
	if err != nil {
		t.Fatalf("ProcessBatch: %v", err)
	}
	if u, ok := findUpdate(updates, "unique_forums_posted"); !ok || u.CurrentValue != 2 {
		t.Fatalf("flagged without identifier: want=2 got=%+v", u)
	}
}

func TestProcessBatchUniqueRetryAfterCacheFailure(t *testing.T) {
	f := newFixture(t)
	user := uuid.New()
	m := f.mission(user, "explorer", map[string]int64{"unique_forums_posted": 3}, time.Now().Add(time.Hour))

	store := &flakyStore{MemoryStore: f.counters, failKey: counters.ProgressKey(user, m.ID, "unique_forums_posted")}
	failing := NewProgressEngine(f.log, ProgressEngineDeps{
		Resolver: f.resolver,
		Counters: store,
		Missions: f.missions,
		Progress: f.progress,
		Outbox:   f.outbox,
	}, ProgressEngineConfig{})

	ev := types.ActionEvent{UserID: user, Action: catalog.ActionCreatePost, Metadata: map[string]any{"forumId": "forum-1"}}
	if _, err := failing.ProcessBatch(f.ctx, []types.ActionEvent{ev}); err == nil {
		t.Fatalf("expected cache error")
	}

	updates, err := f.engine.ProcessBatch(f.ctx, []types.ActionEvent{ev})
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if u, ok := findUpdate(updates, "unique_forums_posted"); !ok || u.CurrentValue != 1 {
		t.Fatalf("retry after failed increment: want=1 got=%+v", u)
	}
}

func TestProcessBatchCompletesExactlyOnceAcrossEngines(t *testing.T) {
	f := newFixture(t)
	user := uuid.New()
	m := f.mission(user, "posts", map[string]int64{"posts_created": 2}, time.Now().Add(time.Hour))
	testutil.SeedProgress(t, f.ctx, f.db, m, "posts_created", 1, 2)

	// Separate resolvers model two processes, each with its own read cache.
	engines := []ProgressEngine{
		f.newEngine(NewMissionResolver(f.log, f.missions, 10, time.Minute, nil)),
		f.newEngine(NewMissionResolver(f.log, f.missions, 10, time.Minute, nil)),
	}
	for _, e := range engines {
		// Warm both caches so each sees the mission as open.
		if _, err := e.(*progressEngine).deps.Resolver.ActiveMissionsFor(f.ctx, user); err != nil {
			t.Fatalf("warm resolver: %v", err)
		}
	}

	var wg sync.WaitGroup
	for _, e := range engines {
		wg.Add(1)
		go func(e ProgressEngine) {
			defer wg.Done()
			_, _ = e.ProcessBatch(context.Background(), []types.ActionEvent{{UserID: user, Action: catalog.ActionCreatePost}})
		}(e)
	}
	wg.Wait()

	if ids := f.completions.missionIDs(); len(ids) != 1 {
		t.Fatalf("completion signals: want=1 got=%d", len(ids))
	}
	if got := f.reload(m.ID); got.CompletedAt == nil {
		t.Fatalf("expected completed_at")
	}

	updates, _ := f.engine.ProcessBatch(f.ctx, []types.ActionEvent{{UserID: user, Action: catalog.ActionCreatePost}})
	if len(updates) != 0 {
		t.Fatalf("completed mission should not receive updates: got=%d", len(updates))
	}
}

func TestProcessBatchSkipsExpiredMissions(t *testing.T) {
	f := newFixture(t)
	user := uuid.New()
	f.mission(user, "old", map[string]int64{"posts_created": 1}, time.Now().Add(-time.Minute))

	updates, err := f.engine.ProcessBatch(f.ctx, []types.ActionEvent{{UserID: user, Action: catalog.ActionCreatePost}})
	if err != nil || len(updates) != 0 {
		t.Fatalf("expired mission: want=(0,nil) got=(%d,%v)", len(updates), err)
	}
}

type flakyStore struct {
	*counters.MemoryStore
	failKey string
}

func (s *flakyStore) IncrBy(ctx context.Context, key string, delta, seed int64, ttl time.Duration) (int64, error) {
	if key == s.failKey {
		return 0, errors.New("cache unavailable")
	}
	return s.MemoryStore.IncrBy(ctx, key, delta, seed, ttl)
}

func TestProcessBatchIsolatesPairFailures(t *testing.T) {
	f := newFixture(t)
	user := uuid.New()
	m := f.mission(user, "tipper", map[string]int64{"tips_sent": 5, "dgt_spent_tips": 100}, time.Now().Add(time.Hour))

	store := &flakyStore{MemoryStore: f.counters, failKey: counters.ProgressKey(user, m.ID, "tips_sent")}
	engine := NewProgressEngine(f.log, ProgressEngineDeps{
		Resolver: f.resolver,
		Counters: store,
		Missions: f.missions,
		Progress: f.progress,
		Outbox:   f.outbox,
	}, ProgressEngineConfig{})

	updates, err := engine.ProcessBatch(f.ctx, []types.ActionEvent{
		{UserID: user, Action: catalog.ActionSendTip, Metadata: map[string]any{"amount": 10}},
	})
	if err == nil {
		t.Fatalf("expected joined pair error")
	}
	if len(updates) != 1 || updates[0].RequirementKey != "dgt_spent_tips" || updates[0].CurrentValue != 10 {
		t.Fatalf("healthy pair should still update: %+v", updates)
	}
}

func TestProcessBatchMultipleUsers(t *testing.T) {
	f := newFixture(t)
	a, b := uuid.New(), uuid.New()
	f.mission(a, "a", map[string]int64{"daily_logins": 1}, time.Now().Add(time.Hour))
	f.mission(b, "b", map[string]int64{"whispers_sent": 2}, time.Now().Add(time.Hour))

	updates, err := f.engine.ProcessBatch(f.ctx, []types.ActionEvent{
		{UserID: a, Action: catalog.ActionLogin},
		{UserID: b, Action: catalog.ActionSendWhisper},
	})
	if err != nil {
		t.Fatalf("ProcessBatch: %v", err)
	}
	if len(updates) != 2 || updates[0].UserID != a || updates[1].UserID != b {
		t.Fatalf("want one update per user in first-seen order, got=%+v", updates)
	}
	if !updates[0].IsComplete || updates[1].IsComplete {
		t.Fatalf("completion flags: got a=%v b=%v", updates[0].IsComplete, updates[1].IsComplete)
	}
}
