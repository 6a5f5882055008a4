package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/yungbote/missionengine/internal/platform/logger"
)

type Sweeper interface {
	Sweep(ctx context.Context) (int, error)
}

type Drainer interface {
	Drain(ctx context.Context) (int, error)
	Kicks() <-chan struct{}
}

type Config struct {
	ReaperInterval time.Duration
	OutboxInterval time.Duration
}

// Worker runs the expiry reaper and the outbox drainer in the background.
type Worker struct {
	log     *logger.Logger
	reaper  Sweeper
	drainer Drainer
	cfg     Config
	wg      sync.WaitGroup
}

func NewWorker(baseLog *logger.Logger, reaper Sweeper, drainer Drainer, cfg Config) *Worker {
	if cfg.ReaperInterval <= 0 {
		cfg.ReaperInterval = 5 * time.Minute
	}
	if cfg.OutboxInterval <= 0 {
		cfg.OutboxInterval = 2 * time.Second
	}
	return &Worker{
		log:     baseLog.With("component", "MissionWorker"),
		reaper:  reaper,
		drainer: drainer,
		cfg:     cfg,
	}
}

// Start returns immediately; loops stop when ctx is cancelled.
func (w *Worker) Start(ctx context.Context) {
	w.log.Info("Starting mission worker", "reaper_interval", w.cfg.ReaperInterval, "outbox_interval", w.cfg.OutboxInterval)
	if w.reaper != nil {
		w.wg.Add(1)
		go w.reaperLoop(ctx)
	}
	if w.drainer != nil {
		w.wg.Add(1)
		go w.drainLoop(ctx)
	}
}

// Wait blocks until every loop has returned.
func (w *Worker) Wait() { w.wg.Wait() }

func (w *Worker) reaperLoop(ctx context.Context) {
	defer w.wg.Done()
	ticker := time.NewTicker(w.cfg.ReaperInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info("Reaper loop stopped")
			return
		case <-ticker.C:
			w.safely("sweep", func() error {
				_, err := w.reaper.Sweep(ctx)
				return err
			})
		}
	}
}

func (w *Worker) drainLoop(ctx context.Context) {
	defer w.wg.Done()
	ticker := time.NewTicker(w.cfg.OutboxInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info("Outbox loop stopped")
			return
		case <-ticker.C:
		case <-w.drainer.Kicks():
		}
		w.safely("drain", func() error {
			_, err := w.drainer.Drain(ctx)
			return err
		})
	}
}

func (w *Worker) safely(stage string, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			w.log.Error("Worker task panic", "stage", stage, "panic", r)
		}
	}()
	if err := fn(); err != nil && !errors.Is(err, context.Canceled) {
		w.log.Warn("Worker task failed", "stage", stage, "error", err)
	}
}
