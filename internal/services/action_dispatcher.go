package services

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	types "github.com/yungbote/missionengine/internal/domain/missions"
	"github.com/yungbote/missionengine/internal/missions/catalog"
	"github.com/yungbote/missionengine/internal/observability"
	"github.com/yungbote/missionengine/internal/platform/logger"
)

const (
	DefaultDebounceWindow = 100 * time.Millisecond
	DefaultFlushTimeout   = 30 * time.Second
	DefaultMaxBatch       = 1000
)

// Timer is the part of *time.Timer the dispatcher uses.
type Timer interface {
	Stop() bool
}

type AfterFunc func(d time.Duration, f func()) Timer

func realAfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

type DispatcherConfig struct {
	Window       time.Duration
	FlushTimeout time.Duration
	// MaxBatch flushes without waiting for the window once the queue reaches it.
	MaxBatch  int
	AfterFunc AfterFunc
}

// ActionDispatcher queues action events and flushes them to the engine either
// after a debounce window or immediately for time-sensitive actions. At most
// one flush runs at a time per dispatcher; nothing is coordinated across
// processes.
type ActionDispatcher struct {
	log      *logger.Logger
	engine   ProgressEngine
	catalog  *catalog.Catalog
	notifier MissionNotifier
	metrics  *observability.Metrics
	cfg      DispatcherConfig

	run sync.Mutex // held while a batch is processed

	mu     sync.Mutex
	queue  []types.ActionEvent
	timer  Timer
	closed bool
	wg     sync.WaitGroup
}

func NewActionDispatcher(baseLog *logger.Logger, engine ProgressEngine, cat *catalog.Catalog, notifier MissionNotifier, metrics *observability.Metrics, cfg DispatcherConfig) *ActionDispatcher {
	if cfg.Window <= 0 {
		cfg.Window = DefaultDebounceWindow
	}
	if cfg.FlushTimeout <= 0 {
		cfg.FlushTimeout = DefaultFlushTimeout
	}
	if cfg.MaxBatch <= 0 {
		cfg.MaxBatch = DefaultMaxBatch
	}
	if cfg.AfterFunc == nil {
		cfg.AfterFunc = realAfterFunc
	}
	if cat == nil {
		cat = catalog.Default()
	}
	return &ActionDispatcher{
		log:      baseLog.With("service", "ActionDispatcher"),
		engine:   engine,
		catalog:  cat,
		notifier: notifier,
		metrics:  metrics,
		cfg:      cfg,
	}
}

// Submit enqueues ev and returns without waiting for any I/O.
func (d *ActionDispatcher) Submit(ev types.ActionEvent) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	d.metrics.ActionReceived(ev.Action)

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		d.log.Warn("dispatcher closed; dropping action", "action", ev.Action, "user_id", ev.UserID)
		return
	}
	d.queue = append(d.queue, ev)
	if d.catalog.IsImmediate(ev.Action) || len(d.queue) >= d.cfg.MaxBatch {
		d.stopTimerLocked()
		d.wg.Add(1)
		d.mu.Unlock()
		go func() {
			defer d.wg.Done()
			d.flush()
		}()
		return
	}
	d.stopTimerLocked()
	d.timer = d.cfg.AfterFunc(d.cfg.Window, d.onTimer)
	d.mu.Unlock()
}

// Handle adapts Submit to the event bus handler shape.
func (d *ActionDispatcher) Handle(ctx context.Context, ev types.ActionEvent) error {
	d.Submit(ev)
	return nil
}

// Flush processes whatever is queued now. If a flush is already running the
// queue is picked up one window after it finishes.
func (d *ActionDispatcher) Flush() {
	d.flush()
}

// Pending reports queued, unflushed events.
func (d *ActionDispatcher) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queue)
}

// Close stops the timer, waits for in-flight flushes and flushes the remainder.
func (d *ActionDispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	d.stopTimerLocked()
	d.mu.Unlock()

	d.wg.Wait()

	d.run.Lock()
	defer d.run.Unlock()
	d.mu.Lock()
	batch := d.queue
	d.queue = nil
	d.mu.Unlock()
	d.process(batch)
}

func (d *ActionDispatcher) stopTimerLocked() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

func (d *ActionDispatcher) onTimer() {
	d.mu.Lock()
	d.timer = nil
	closed := d.closed
	d.mu.Unlock()
	if closed {
		return
	}
	d.flush()
}

// flush claims run under mu and releases it under mu, so an event queued while
// a batch is processing is always seen by the post-batch check.
func (d *ActionDispatcher) flush() {
	d.mu.Lock()
	if !d.run.TryLock() {
		d.mu.Unlock()
		return
	}
	batch := d.queue
	d.queue = nil
	d.mu.Unlock()

	d.process(batch)

	d.mu.Lock()
	d.run.Unlock()
	if !d.closed && d.timer == nil && len(d.queue) > 0 {
		d.timer = d.cfg.AfterFunc(d.cfg.Window, d.onTimer)
	}
	d.mu.Unlock()
}

// process never panics and never returns an error; failures are logged.
func (d *ActionDispatcher) process(batch []types.ActionEvent) {
	if len(batch) == 0 {
		return
	}
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			d.log.Error("panic in mission batch flush", "panic", r, "events", len(batch))
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), d.cfg.FlushTimeout)
	defer cancel()

	updates, err := d.engine.ProcessBatch(ctx, batch)
	d.metrics.BatchFlushed(len(batch), time.Since(start))
	if err != nil {
		d.log.Error("mission batch partially failed", "events", len(batch), "updates", len(updates), "error", err)
	}
	d.fanOut(ctx, updates)
}

func (d *ActionDispatcher) fanOut(ctx context.Context, updates []types.ProgressUpdate) {
	if d.notifier == nil || len(updates) == 0 {
		return
	}
	var order []uuid.UUID
	byUser := map[uuid.UUID][]types.ProgressUpdate{}
	for _, u := range updates {
		if _, ok := byUser[u.UserID]; !ok {
			order = append(order, u.UserID)
		}
		byUser[u.UserID] = append(byUser[u.UserID], u)
	}
	for _, userID := range order {
		d.notifier.Progress(ctx, userID, byUser[userID])
	}
}
