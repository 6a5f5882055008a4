package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/yungbote/missionengine/internal/data/counters"
	"github.com/yungbote/missionengine/internal/data/repos"
	types "github.com/yungbote/missionengine/internal/domain/missions"
	"github.com/yungbote/missionengine/internal/missions/catalog"
	"github.com/yungbote/missionengine/internal/observability"
	"github.com/yungbote/missionengine/internal/platform/dbctx"
	"github.com/yungbote/missionengine/internal/platform/logger"
)

const DefaultUserConcurrency = 8

type ProgressEngine interface {
	// ProcessBatch applies events and returns one update per touched
	// (mission, requirement). The error joins per-user and per-pair failures;
	// the returned updates are valid even when it is non-nil.
	ProcessBatch(ctx context.Context, events []types.ActionEvent) ([]types.ProgressUpdate, error)
}

// OutboxKicker is poked after new outbox rows are written.
type OutboxKicker interface {
	Kick()
}

type ProgressEngineConfig struct {
	UserConcurrency int
	CounterMaxTTL   time.Duration
}

type ProgressEngineDeps struct {
	Catalog     *catalog.Catalog
	Resolver    MissionResolver
	Counters    counters.Store
	Missions    repos.ActiveMissionRepo
	Progress    repos.MissionProgressRepo
	Outbox      repos.ProgressOutboxRepo
	Drainer     OutboxKicker
	Completions CompletionPublisher
	Notifier    MissionNotifier
	Metrics     *observability.Metrics
}

type progressEngine struct {
	log  *logger.Logger
	deps ProgressEngineDeps
	cfg  ProgressEngineConfig
	now  func() time.Time
}

func NewProgressEngine(baseLog *logger.Logger, deps ProgressEngineDeps, cfg ProgressEngineConfig) ProgressEngine {
	if cfg.UserConcurrency <= 0 {
		cfg.UserConcurrency = DefaultUserConcurrency
	}
	if cfg.CounterMaxTTL <= 0 {
		cfg.CounterMaxTTL = counters.DefaultMaxTTL
	}
	if deps.Catalog == nil {
		deps.Catalog = catalog.Default()
	}
	return &progressEngine{
		log:  baseLog.With("service", "ProgressEngine"),
		deps: deps,
		cfg:  cfg,
		now:  time.Now,
	}
}

type pairKey struct {
	missionID uuid.UUID
	key       string
}

type pairState struct {
	mission  *types.ResolvedMission
	key      string
	target   int64
	previous int64
	current  int64
}

func (e *progressEngine) ProcessBatch(ctx context.Context, events []types.ActionEvent) ([]types.ProgressUpdate, error) {
	if len(events) == 0 {
		return nil, nil
	}
	start := time.Now()
	ctx, span := observability.Tracer().Start(ctx, "missions.ProcessBatch")
	defer span.End()

	// Group by user, keeping first-seen order; unmapped actions never reach I/O.
	var order []uuid.UUID
	byUser := map[uuid.UUID][]types.ActionEvent{}
	for _, ev := range events {
		if ev.UserID == uuid.Nil || len(e.deps.Catalog.RequirementsFor(ev.Action)) == 0 {
			continue
		}
		if _, ok := byUser[ev.UserID]; !ok {
			order = append(order, ev.UserID)
		}
		byUser[ev.UserID] = append(byUser[ev.UserID], ev)
	}
	span.SetAttributes(attribute.Int("events", len(events)), attribute.Int("users", len(order)))
	if len(order) == 0 {
		return nil, nil
	}

	results := make([][]types.ProgressUpdate, len(order))
	errs := make([]error, len(order))
	var g errgroup.Group
	g.SetLimit(e.cfg.UserConcurrency)
	for i, userID := range order {
		i, userID := i, userID
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					errs[i] = fmt.Errorf("user %s: panic: %v", userID, r)
					e.log.Error("panic processing user batch", "user_id", userID, "panic", r)
				}
			}()
			results[i], errs[i] = e.processUser(ctx, userID, byUser[userID])
			return nil
		})
	}
	_ = g.Wait()

	var out []types.ProgressUpdate
	for _, ups := range results {
		out = append(out, ups...)
	}
	err := errors.Join(errs...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "partial failure")
	}
	e.deps.Metrics.ProgressUpdates(len(out))
	e.log.Debug("batch processed", "events", len(events), "users", len(order), "updates", len(out), "duration", time.Since(start))
	return out, err
}

func (e *progressEngine) processUser(ctx context.Context, userID uuid.UUID, events []types.ActionEvent) ([]types.ProgressUpdate, error) {
	ctx, span := observability.Tracer().Start(ctx, "missions.processUser")
	defer span.End()

	missions, err := e.deps.Resolver.ActiveMissionsFor(ctx, userID)
	if err != nil {
		e.log.Warn("resolve active missions failed", "user_id", userID, "error", err)
		return nil, fmt.Errorf("user %s: %w", userID, err)
	}
	now := e.now()

	relevant := relevantMissions(e.deps.Catalog, missions, events, now)
	if len(relevant) == 0 {
		return nil, nil
	}

	ids := make([]uuid.UUID, 0, len(relevant))
	for _, m := range relevant {
		ids = append(ids, m.ID)
	}
	ledger, err := e.loadLedger(ctx, ids)
	if err != nil {
		e.log.Warn("load ledger seeds failed", "user_id", userID, "error", err)
		return nil, fmt.Errorf("user %s: load ledger: %w", userID, err)
	}

	var (
		pairErrs []error
		pairs    []pairKey
		state    = map[pairKey]*pairState{}
	)
	for _, ev := range events {
		keys := e.deps.Catalog.RequirementsFor(ev.Action)
		for _, m := range relevant {
			for _, key := range keys {
				target, ok := m.Target(key)
				if !ok {
					continue
				}
				pk := pairKey{missionID: m.ID, key: key}
				ttl := counters.TTLFor(m.PeriodEnd, now, e.cfg.CounterMaxTTL)

				inc, seen, err := e.incrementFor(ctx, userID, m.ID, key, ev, ttl)
				if err != nil {
					e.pairFailed("seen", userID, m.ID, key, err)
					pairErrs = append(pairErrs, fmt.Errorf("%s/%s: %w", m.ID, key, err))
					continue
				}
				if inc <= 0 {
					continue
				}
				cur, err := e.deps.Counters.IncrBy(ctx, counters.ProgressKey(userID, m.ID, key), inc, ledger[pk], ttl)
				if err != nil {
					if seen != "" {
						if uerr := e.deps.Counters.Unmark(ctx, counters.SeenKey(userID, m.ID, key), seen); uerr != nil {
							e.log.Warn("unmark seen target failed", "user_id", userID, "mission_id", m.ID, "requirement_key", key, "error", uerr)
						}
					}
					e.pairFailed("cache", userID, m.ID, key, err)
					pairErrs = append(pairErrs, fmt.Errorf("%s/%s: %w", m.ID, key, err))
					continue
				}
				st, ok := state[pk]
				if !ok {
					st = &pairState{mission: m, key: key, target: target, previous: cur - inc}
					state[pk] = st
					pairs = append(pairs, pk)
				}
				st.current = cur
			}
		}
	}
	if len(pairs) == 0 {
		return nil, errors.Join(pairErrs...)
	}

	updates := make([]types.ProgressUpdate, 0, len(pairs))
	rows := make([]*types.ProgressOutbox, 0, len(pairs))
	for _, pk := range pairs {
		st := state[pk]
		updates = append(updates, types.NewProgressUpdate(userID, pk.missionID, pk.key, st.previous, st.current, st.target))
		rows = append(rows, &types.ProgressOutbox{
			MissionID:      pk.missionID,
			UserID:         userID,
			RequirementKey: pk.key,
			Value:          types.Clamp(st.current, st.target),
			Target:         st.target,
		})
	}
	if err := e.persist(ctx, userID, rows); err != nil {
		pairErrs = append(pairErrs, err)
	}

	if err := e.completeMissions(ctx, userID, pairs, state, ledger); err != nil {
		pairErrs = append(pairErrs, err)
	}
	span.SetAttributes(attribute.Int("updates", len(updates)))
	return updates, errors.Join(pairErrs...)
}

// relevantMissions keeps open missions whose template names a key fed by any event.
func relevantMissions(cat *catalog.Catalog, missions []*types.ResolvedMission, events []types.ActionEvent, now time.Time) []*types.ResolvedMission {
	wanted := map[string]bool{}
	for _, ev := range events {
		for _, k := range cat.RequirementsFor(ev.Action) {
			wanted[k] = true
		}
	}
	var out []*types.ResolvedMission
	for _, m := range missions {
		if m == nil || m.CompletedAt != nil || m.Expired(now) {
			continue
		}
		for k := range m.Targets {
			if wanted[k] {
				out = append(out, m)
				break
			}
		}
	}
	return out
}

func (e *progressEngine) loadLedger(ctx context.Context, missionIDs []uuid.UUID) (map[pairKey]int64, error) {
	rows, err := e.deps.Progress.ListByMissionIDs(dbctx.Context{Ctx: ctx}, missionIDs)
	if err != nil {
		return nil, err
	}
	out := make(map[pairKey]int64, len(rows))
	for _, r := range rows {
		out[pairKey{missionID: r.MissionID, key: r.RequirementKey}] = r.CurrentValue
	}
	return out, nil
}

// incrementFor applies the catalog rule. A uniqueness rule whose identifier
// field is present is decided by the per-requirement seen-set; the returned
// member is set when this call added it, so a failed increment can undo it.
// An explicit false flag never counts.
func (e *progressEngine) incrementFor(ctx context.Context, userID, missionID uuid.UUID, key string, ev types.ActionEvent, ttl time.Duration) (int64, string, error) {
	rule := e.deps.Catalog.RuleFor(key)
	if rule.Kind == catalog.RuleUnique {
		if v, present := catalog.FlagValue(ev.Metadata, rule.Field); present && !v {
			return 0, "", nil
		}
		if rule.IDField != "" {
			if id := catalog.Identifier(ev.Metadata, rule.IDField); id != "" {
				added, err := e.deps.Counters.MarkSeen(ctx, counters.SeenKey(userID, missionID, key), id, ttl)
				if err != nil {
					return 0, "", err
				}
				if added {
					return 1, id, nil
				}
				return 0, "", nil
			}
		}
	}
	return e.deps.Catalog.IncrementFor(key, ev.Metadata), "", nil
}

// persist appends outbox rows; if the outbox is unavailable it writes the
// ledger directly so the increment is not silently lost.
func (e *progressEngine) persist(ctx context.Context, userID uuid.UUID, rows []*types.ProgressOutbox) error {
	dbc := dbctx.Context{Ctx: ctx}
	err := e.deps.Outbox.Append(dbc, rows)
	if err == nil {
		if e.deps.Drainer != nil {
			e.deps.Drainer.Kick()
		}
		return nil
	}
	e.pairFailed("outbox", userID, uuid.Nil, "", err)

	var errs []error
	for _, row := range rows {
		uerr := e.deps.Progress.UpsertMax(dbc, &types.MissionProgress{
			MissionID:      row.MissionID,
			UserID:         row.UserID,
			RequirementKey: row.RequirementKey,
			CurrentValue:   row.Value,
			TargetValue:    row.Target,
		})
		if uerr != nil {
			e.pairFailed("ledger", userID, row.MissionID, row.RequirementKey, uerr)
			errs = append(errs, fmt.Errorf("%s/%s: %w", row.MissionID, row.RequirementKey, uerr))
		}
	}
	return errors.Join(append([]error{fmt.Errorf("append outbox: %w", err)}, errs...)...)
}

// completeMissions sets completed_at for missions that had a requirement cross
// its target in this batch and now have every requirement met. The stored
// completed_at guards the write, so concurrent batches complete a mission once.
func (e *progressEngine) completeMissions(ctx context.Context, userID uuid.UUID, pairs []pairKey, state map[pairKey]*pairState, ledger map[pairKey]int64) error {
	var candidates []*types.ResolvedMission
	seen := map[uuid.UUID]bool{}
	for _, pk := range pairs {
		st := state[pk]
		if seen[pk.missionID] || !types.NewlyComplete(st.previous, st.current, st.target) {
			continue
		}
		seen[pk.missionID] = true
		candidates = append(candidates, st.mission)
	}
	if len(candidates) == 0 {
		return nil
	}

	var (
		errs      []error
		completed []uuid.UUID
	)
	at := e.now().UTC()
	for _, m := range candidates {
		done, err := e.allMet(ctx, userID, m, state, ledger)
		if err != nil {
			e.pairFailed("completion", userID, m.ID, "", err)
			errs = append(errs, fmt.Errorf("mission %s: %w", m.ID, err))
			continue
		}
		if !done {
			continue
		}
		set, err := e.deps.Missions.MarkCompleted(dbctx.Context{Ctx: ctx}, m.ID, at)
		if err != nil {
			e.pairFailed("completion", userID, m.ID, "", err)
			errs = append(errs, fmt.Errorf("mission %s: mark completed: %w", m.ID, err))
			continue
		}
		if !set {
			continue
		}
		completed = append(completed, m.ID)
		e.deps.Metrics.MissionCompleted()
		e.log.Info("mission completed", "user_id", userID, "mission_id", m.ID)
	}
	if len(completed) == 0 {
		return errors.Join(errs...)
	}

	e.deps.Resolver.Invalidate(userID)
	if e.deps.Completions != nil {
		sig := types.CompletionSignal{UserID: userID, MissionIDs: completed, CompletedAt: at}
		if err := e.deps.Completions.PublishCompletion(ctx, sig); err != nil {
			e.log.Warn("publish completion failed", "user_id", userID, "missions", len(completed), "error", err)
			errs = append(errs, err)
		}
	}
	if e.deps.Notifier != nil {
		e.deps.Notifier.Completed(ctx, userID, completed)
	}
	return errors.Join(errs...)
}

// allMet reads each requirement from batch state, then the counter cache, then the ledger.
func (e *progressEngine) allMet(ctx context.Context, userID uuid.UUID, m *types.ResolvedMission, state map[pairKey]*pairState, ledger map[pairKey]int64) (bool, error) {
	for _, key := range m.RequirementKeys() {
		target := m.Targets[key]
		pk := pairKey{missionID: m.ID, key: key}
		var value int64
		if st, ok := state[pk]; ok {
			value = st.current
		} else {
			v, found, err := e.deps.Counters.Get(ctx, counters.ProgressKey(userID, m.ID, key))
			if err != nil {
				return false, err
			}
			value = ledger[pk]
			if found && v > value {
				value = v
			}
		}
		if !types.IsComplete(value, target) {
			return false, nil
		}
	}
	return true, nil
}

func (e *progressEngine) pairFailed(stage string, userID, missionID uuid.UUID, key string, err error) {
	e.deps.Metrics.PairFailed(stage)
	e.log.Warn("progress update failed", "stage", stage, "user_id", userID, "mission_id", missionID, "requirement", key, "error", err)
}
