package missions

import (
	"time"

	"github.com/google/uuid"
)

// ActionEvent reports that a user did something on the platform. It is never persisted.
type ActionEvent struct {
	UserID    uuid.UUID      `json:"userId"`
	Action    string         `json:"action"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// ProgressUpdate is computed per (mission, requirement) touched by a batch.
// CurrentValue and PreviousValue are clamped to TargetValue.
type ProgressUpdate struct {
	UserID         uuid.UUID `json:"userId"`
	MissionID      uuid.UUID `json:"missionId"`
	RequirementKey string    `json:"requirementKey"`
	PreviousValue  int64     `json:"previousValue"`
	CurrentValue   int64     `json:"currentValue"`
	TargetValue    int64     `json:"targetValue"`
	Percentage     int       `json:"percentage"`
	IsComplete     bool      `json:"isComplete"`
}

func NewProgressUpdate(userID, missionID uuid.UUID, key string, previous, current, target int64) ProgressUpdate {
	return ProgressUpdate{
		UserID:         userID,
		MissionID:      missionID,
		RequirementKey: key,
		PreviousValue:  Clamp(previous, target),
		CurrentValue:   Clamp(current, target),
		TargetValue:    target,
		Percentage:     Percentage(current, target),
		IsComplete:     IsComplete(current, target),
	}
}

// Clamp bounds v to [0, target]. A non-positive target leaves v at zero or above.
func Clamp(v, target int64) int64 {
	if v < 0 {
		return 0
	}
	if target > 0 && v > target {
		return target
	}
	return v
}

// Percentage is floor(100 * min(current, target) / target); a non-positive target is always 100.
func Percentage(current, target int64) int {
	if target <= 0 {
		return 100
	}
	c := Clamp(current, target)
	return int((100 * c) / target)
}

func IsComplete(current, target int64) bool {
	return current >= target
}

// NewlyComplete reports whether moving from previous to current crossed target.
func NewlyComplete(previous, current, target int64) bool {
	return previous < target && current >= target
}

// CompletionSignal is published once every requirement of each listed mission is met.
type CompletionSignal struct {
	UserID      uuid.UUID   `json:"userId"`
	MissionIDs  []uuid.UUID `json:"missionIds"`
	CompletedAt time.Time   `json:"completedAt"`
}

// RequirementProgress is the on-demand view of one requirement, read from the ledger.
type RequirementProgress struct {
	Current    int64 `json:"current"`
	Target     int64 `json:"target"`
	Percentage int   `json:"percentage"`
}
