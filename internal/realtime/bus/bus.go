package bus

import (
	"context"

	"github.com/yungbote/missionengine/internal/realtime"
)

// Bus carries SSE messages between instances so a user connected to any
// instance receives updates produced on another.
type Bus interface {
	Publish(ctx context.Context, msg realtime.SSEMessage) error
	StartForwarder(ctx context.Context, onMsg func(m realtime.SSEMessage)) error
	Close() error
}
