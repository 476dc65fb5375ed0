package models

import (
	"encoding/json"
	"time"
)

// HistoryCapacity bounds the per-group turn history ring.
const HistoryCapacity = 100

// HistoryEntry is the compact turn summary stored in a group's history.
type HistoryEntry struct {
	TurnID          string     `json:"turn_id"`
	UserID          string     `json:"user_id"`
	Status          string     `json:"status"`
	StartedAt       time.Time  `json:"started_at"`
	EndedAt         *time.Time `json:"ended_at,omitempty"`
	DurationSeconds int64      `json:"duration_seconds"`
}

// TurnHistory is a fixed-capacity ring buffer of turn summaries. Appending
// beyond capacity evicts the oldest entry. The zero value is not usable;
// construct with NewTurnHistory.
type TurnHistory struct {
	entries []HistoryEntry // ring storage, len == cap once full
	start   int            // index of the oldest entry
	size    int
}

// NewTurnHistory returns an empty history with the standard capacity.
func NewTurnHistory() *TurnHistory {
	return &TurnHistory{entries: make([]HistoryEntry, 0, HistoryCapacity)}
}

// Append records a turn summary, evicting the oldest entry when full.
func (h *TurnHistory) Append(e HistoryEntry) {
	if h.size < HistoryCapacity {
		h.entries = append(h.entries, e)
		h.size++
		return
	}
	h.entries[h.start] = e
	h.start = (h.start + 1) % HistoryCapacity
}

// Len returns the number of stored entries.
func (h *TurnHistory) Len() int { return h.size }

// Entries returns the stored summaries in chronological order,
// oldest first.
func (h *TurnHistory) Entries() []HistoryEntry {
	out := make([]HistoryEntry, 0, h.size)
	for i := 0; i < h.size; i++ {
		out = append(out, h.entries[(h.start+i)%len(h.entries)])
	}
	return out
}

// Last returns the most recent entry, if any.
func (h *TurnHistory) Last() (HistoryEntry, bool) {
	if h.size == 0 {
		return HistoryEntry{}, false
	}
	return h.entries[(h.start+h.size-1)%len(h.entries)], true
}

// MarshalJSON serializes the history as a chronological array.
func (h *TurnHistory) MarshalJSON() ([]byte, error) {
	return json.Marshal(h.Entries())
}

// UnmarshalJSON restores the history from a chronological array, keeping
// only the newest HistoryCapacity entries.
func (h *TurnHistory) UnmarshalJSON(data []byte) error {
	var entries []HistoryEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return err
	}
	if len(entries) > HistoryCapacity {
		entries = entries[len(entries)-HistoryCapacity:]
	}
	h.entries = make([]HistoryEntry, len(entries), HistoryCapacity)
	copy(h.entries, entries)
	h.start = 0
	h.size = len(entries)
	return nil
}
