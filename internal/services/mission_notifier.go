package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	types "github.com/yungbote/missionengine/internal/domain/missions"
	"github.com/yungbote/missionengine/internal/realtime"
)

// MissionNotifier pushes live updates to a user's open sessions. Delivery is
// best-effort: nothing is retried or stored for disconnected users.
type MissionNotifier interface {
	Progress(ctx context.Context, userID uuid.UUID, updates []types.ProgressUpdate)
	Completed(ctx context.Context, userID uuid.UUID, missionIDs []uuid.UUID)
}

type missionNotifier struct {
	emit SSEEmitter
	now  func() time.Time
}

func NewMissionNotifier(emit SSEEmitter) MissionNotifier {
	return &missionNotifier{emit: emit, now: time.Now}
}

func (n *missionNotifier) Progress(ctx context.Context, userID uuid.UUID, updates []types.ProgressUpdate) {
	if n == nil || n.emit == nil || userID == uuid.Nil || len(updates) == 0 {
		return
	}
	n.emit.Emit(ctx, realtime.SSEMessage{
		Channel: userID.String(),
		Event:   realtime.SSEEventMissionProgress,
		Data: map[string]any{
			"type":      string(realtime.SSEEventMissionProgress),
			"userId":    userID,
			"updates":   updates,
			"timestamp": n.now().UTC(),
		},
	})
}

func (n *missionNotifier) Completed(ctx context.Context, userID uuid.UUID, missionIDs []uuid.UUID) {
	if n == nil || n.emit == nil || userID == uuid.Nil || len(missionIDs) == 0 {
		return
	}
	n.emit.Emit(ctx, realtime.SSEMessage{
		Channel: userID.String(),
		Event:   realtime.SSEEventMissionCompleted,
		Data: map[string]any{
			"type":       string(realtime.SSEEventMissionCompleted),
			"userId":     userID,
			"missionIds": missionIDs,
			"timestamp":  n.now().UTC(),
		},
	})
}
