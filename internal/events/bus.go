// Package events is the in-process publish/subscribe bus the platform's
// domains emit user actions on.
package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	types "github.com/yungbote/missionengine/internal/domain/missions"
	"github.com/yungbote/missionengine/internal/platform/logger"
)

type Handler func(ctx context.Context, ev types.ActionEvent) error

type handlerEntry struct {
	id      int
	handler Handler
}

// Bus is safe for concurrent use. Handler failures are logged and never
// returned to the publisher.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]handlerEntry
	nextID   int
	log      *logger.Logger
}

func NewBus(baseLog *logger.Logger) *Bus {
	return &Bus{
		handlers: make(map[string][]handlerEntry),
		log:      baseLog.With("service", "EventBus"),
	}
}

// Publish fills Action from the channel when empty and Timestamp when zero.
func (b *Bus) Publish(ctx context.Context, channel string, ev types.ActionEvent) {
	if ev.Action == "" {
		if a, ok := ChannelAction(channel); ok {
			ev.Action = a
		}
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}

	b.mu.RLock()
	entries := b.handlers[channel]
	targets := make([]Handler, 0, len(entries))
	for _, e := range entries {
		targets = append(targets, e.handler)
	}
	b.mu.RUnlock()

	for _, h := range targets {
		if err := b.invoke(ctx, h, ev); err != nil {
			b.log.Warn("event handler failed", "channel", channel, "action", ev.Action, "user_id", ev.UserID, "error", err)
		}
	}
}

func (b *Bus) invoke(ctx context.Context, h Handler, ev types.ActionEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return h(ctx, ev)
}

// Subscribe registers h on channel. The returned function unsubscribes it.
func (b *Bus) Subscribe(channel string, h Handler) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.handlers[channel] = append(b.handlers[channel], handlerEntry{id: id, handler: h})

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		entries := b.handlers[channel]
		filtered := make([]handlerEntry, 0, len(entries))
		for _, e := range entries {
			if e.id != id {
				filtered = append(filtered, e)
			}
		}
		if len(filtered) == 0 {
			delete(b.handlers, channel)
		} else {
			b.handlers[channel] = filtered
		}
	}
}

// SubscribeAll registers h on every platform channel.
func (b *Bus) SubscribeAll(h Handler) (unsubscribe func()) {
	var unsubs []func()
	for _, ch := range Channels() {
		unsubs = append(unsubs, b.Subscribe(ch, h))
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}
