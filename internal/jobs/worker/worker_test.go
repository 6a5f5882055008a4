package worker

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/yungbote/missionengine/internal/platform/logger"
)

type fakeSweeper struct{ calls atomic.Int32 }

func (f *fakeSweeper) Sweep(ctx context.Context) (int, error) {
	if f.calls.Add(1) == 1 {
		panic("first sweep panics")
	}
	return 0, nil
}

type fakeDrainer struct {
	calls atomic.Int32
	kick  chan struct{}
}

func (f *fakeDrainer) Drain(ctx context.Context) (int, error) {
	f.calls.Add(1)
	return 0, nil
}

func (f *fakeDrainer) Kicks() <-chan struct{} { return f.kick }

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestWorkerRecoversAndStops(t *testing.T) {
	sweeper := &fakeSweeper{}
	drainer := &fakeDrainer{kick: make(chan struct{}, 1)}
	w := NewWorker(logger.Nop(), sweeper, drainer, Config{
		ReaperInterval: 10 * time.Millisecond,
		OutboxInterval: time.Hour,
	})

	ctx, cancel := context.WithCancel(context.Background())
	w.Start(ctx)

	waitFor(t, "sweep after panic", func() bool { return sweeper.calls.Load() >= 2 })

	drainer.kick <- struct{}{}
	waitFor(t, "kicked drain", func() bool { return drainer.calls.Load() >= 1 })

	cancel()
	done := make(chan struct{})
	go func() {
		w.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("worker did not stop after cancel")
	}
}
