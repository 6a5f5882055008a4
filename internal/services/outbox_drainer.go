package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/missionengine/internal/data/repos"
	types "github.com/yungbote/missionengine/internal/domain/missions"
	"github.com/yungbote/missionengine/internal/observability"
	"github.com/yungbote/missionengine/internal/platform/dbctx"
	"github.com/yungbote/missionengine/internal/platform/logger"
)

type OutboxDrainerConfig struct {
	BatchSize   int
	MaxAttempts int
	Lease       time.Duration
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
	// MaxRounds bounds how many claim rounds one Drain call performs.
	MaxRounds int
}

// OutboxDrainer applies progress outbox rows to the ledger with at-least-once
// retry. Applying a row twice is harmless because the ledger upsert only raises values.
type OutboxDrainer struct {
	log      *logger.Logger
	outbox   repos.ProgressOutboxRepo
	progress repos.MissionProgressRepo
	metrics  *observability.Metrics
	cfg      OutboxDrainerConfig
	kick     chan struct{}
	now      func() time.Time
}

func NewOutboxDrainer(baseLog *logger.Logger, outbox repos.ProgressOutboxRepo, progress repos.MissionProgressRepo, metrics *observability.Metrics, cfg OutboxDrainerConfig) *OutboxDrainer {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 200
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 20
	}
	if cfg.Lease <= 0 {
		cfg.Lease = 30 * time.Second
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = time.Second
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 5 * time.Minute
	}
	if cfg.MaxRounds <= 0 {
		cfg.MaxRounds = 10
	}
	return &OutboxDrainer{
		log:      baseLog.With("service", "OutboxDrainer"),
		outbox:   outbox,
		progress: progress,
		metrics:  metrics,
		cfg:      cfg,
		kick:     make(chan struct{}, 1),
		now:      time.Now,
	}
}

// Kick requests a drain soon. It never blocks.
func (d *OutboxDrainer) Kick() {
	select {
	case d.kick <- struct{}{}:
	default:
	}
}

func (d *OutboxDrainer) Kicks() <-chan struct{} { return d.kick }

// Drain applies due rows and reports how many were applied.
func (d *OutboxDrainer) Drain(ctx context.Context) (int, error) {
	applied := 0
	var errs []error
	for round := 0; round < d.cfg.MaxRounds; round++ {
		if err := ctx.Err(); err != nil {
			return applied, err
		}
		rows, err := d.outbox.ClaimDue(dbctx.Context{Ctx: ctx}, d.now(), d.cfg.BatchSize, d.cfg.MaxAttempts, d.cfg.Lease)
		if err != nil {
			return applied, fmt.Errorf("claim outbox: %w", err)
		}
		if len(rows) == 0 {
			break
		}
		n, err := d.apply(ctx, rows)
		applied += n
		if err != nil {
			errs = append(errs, err)
		}
		if len(rows) < d.cfg.BatchSize {
			break
		}
	}
	if applied > 0 {
		d.log.Debug("outbox drained", "applied", applied)
	}
	d.reportStuck(ctx)
	return applied, errors.Join(errs...)
}

// reportStuck exports rows that ClaimDue will no longer pick up.
func (d *OutboxDrainer) reportStuck(ctx context.Context) {
	n, err := d.outbox.CountStuck(dbctx.Context{Ctx: ctx}, d.cfg.MaxAttempts)
	if err != nil {
		d.log.Warn("count stuck outbox rows failed", "error", err)
		return
	}
	d.metrics.OutboxStuck(n)
	if n > 0 {
		d.log.Warn("outbox rows exhausted retries", "rows", n, "max_attempts", d.cfg.MaxAttempts)
	}
}

func (d *OutboxDrainer) apply(ctx context.Context, rows []*types.ProgressOutbox) (int, error) {
	dbc := dbctx.Context{Ctx: ctx}
	done := make([]uuid.UUID, 0, len(rows))
	var errs []error
	for _, row := range rows {
		err := d.progress.UpsertMax(dbc, &types.MissionProgress{
			MissionID:      row.MissionID,
			UserID:         row.UserID,
			RequirementKey: row.RequirementKey,
			CurrentValue:   row.Value,
			TargetValue:    row.Target,
		})
		if err == nil {
			done = append(done, row.ID)
			continue
		}
		d.metrics.OutboxFailed()
		errs = append(errs, fmt.Errorf("outbox %s: %w", row.ID, err))
		next := d.now().Add(d.backoff(row.Attempts))
		if merr := d.outbox.MarkFailed(dbc, row.ID, next, err.Error()); merr != nil {
			d.log.Warn("outbox mark failed", "outbox_id", row.ID, "error", merr)
		}
		if row.Attempts >= d.cfg.MaxAttempts {
			d.log.Error("outbox row exhausted retries", "outbox_id", row.ID, "mission_id", row.MissionID, "requirement", row.RequirementKey, "error", err)
		} else {
			d.log.Warn("outbox apply failed", "outbox_id", row.ID, "attempts", row.Attempts, "retry_at", next, "error", err)
		}
	}
	if len(done) > 0 {
		if err := d.outbox.DeleteByIDs(dbc, done); err != nil {
			// Rows stay leased and are re-applied after the lease; the upsert is monotonic.
			errs = append(errs, fmt.Errorf("delete applied outbox rows: %w", err))
		}
	}
	d.metrics.OutboxApplied(len(done))
	return len(done), errors.Join(errs...)
}

func (d *OutboxDrainer) backoff(attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	delay := d.cfg.BaseBackoff
	for i := 1; i < attempts; i++ {
		delay *= 2
		if delay >= d.cfg.MaxBackoff {
			return d.cfg.MaxBackoff
		}
	}
	return delay
}
