package models

import "time"

// Turn statuses. A turn is created active and moves to exactly one of the
// terminal states; no transition ever leaves a terminal state.
const (
	TurnStatusActive    = "active"
	TurnStatusCompleted = "completed"
	TurnStatusSkipped   = "skipped"
	TurnStatusExpired   = "expired"
)

// Turn represents a single turn taken by a group member.
type Turn struct {
	// ID is the unique identifier for the turn (UUID format).
	ID string `json:"id"`

	// GroupID references the owning group.
	GroupID string `json:"group_id"`

	// UserID references the member taking the turn.
	UserID string `json:"user_id"`

	// Status is one of the TurnStatus constants.
	Status string `json:"status"`

	// StartedAt is when the turn became active.
	StartedAt time.Time `json:"started_at"`

	// EndedAt is set by the terminal transition (complete/skip/force-end/
	// expire). Nil while the turn is active.
	EndedAt *time.Time `json:"ended_at,omitempty"`

	// DurationSeconds is EndedAt - StartedAt, computed at the terminal
	// transition. Zero while active.
	DurationSeconds int64 `json:"duration_seconds"`

	// Notes is free text, e.g. a skip or force-end reason.
	Notes string `json:"notes,omitempty"`

	// Metadata is an open key-value map for contextual data
	// (device, skip_reason, force_ended_by, ...).
	Metadata map[string]string `json:"metadata,omitempty"`
}

// IsTerminal reports whether the turn has reached a terminal state.
func (t *Turn) IsTerminal() bool {
	switch t.Status {
	case TurnStatusCompleted, TurnStatusSkipped, TurnStatusExpired:
		return true
	}
	return false
}

// Duration returns the turn length when both timestamps are present.
// Returns 0 and false for turns still active or with partial data.
func (t *Turn) Duration() (time.Duration, bool) {
	if t.StartedAt.IsZero() || t.EndedAt == nil {
		return 0, false
	}
	return t.EndedAt.Sub(t.StartedAt), true
}
