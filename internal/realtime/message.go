package realtime

type SSEEvent string

const (
	SSEEventMissionProgress  SSEEvent = "mission_progress"
	SSEEventMissionCompleted SSEEvent = "mission_completed"
)

type SSEMessage struct {
	Channel string   `json:"channel"`
	Event   SSEEvent `json:"event"`
	Data    any      `json:"data,omitempty"`
}
