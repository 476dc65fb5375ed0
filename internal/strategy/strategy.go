// Package strategy implements the pluggable turn assignment strategies
// and the coordinator that dispatches between them.
//
// Strategy implementations should:
//   - Be pure (no mutation of the group snapshot, no side effects)
//   - Handle edge cases (no members, everyone excluded, no history)
//   - Run quickly (called on the turn-transition hot path)
//
// Configuration is passed per call as an immutable value merged over the
// strategy's defaults, so concurrent evaluations for different groups
// never interfere with each other.
package strategy

import (
	"sort"

	"github.com/mmynk/roundtable/internal/models"
)

// Config holds strategy configuration values. Values may arrive from JSON
// group settings, so numeric lookups accept both int and float64.
type Config map[string]any

// Merge returns a copy of c with the override's keys applied on top.
// Keys absent from the override are retained.
func (c Config) Merge(override Config) Config {
	merged := make(Config, len(c)+len(override))
	for k, v := range c {
		merged[k] = v
	}
	for k, v := range override {
		merged[k] = v
	}
	return merged
}

// Bool returns the named value, or def when absent or not a bool.
func (c Config) Bool(key string, def bool) bool {
	if v, ok := c[key].(bool); ok {
		return v
	}
	return def
}

// Float returns the named numeric value, or def when absent.
func (c Config) Float(key string, def float64) float64 {
	switch v := c[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return def
}

// Int64 returns the named numeric value and whether it was present.
func (c Config) Int64(key string) (int64, bool) {
	switch v := c[key].(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case float64:
		return int64(v), true
	}
	return 0, false
}

// Strategy selects the next user to take a turn in a group.
//
// NextUser receives a group snapshot with Members and Turns loaded and the
// effective configuration (defaults merged with any per-call overrides).
// A nil member with nil error means no eligible member exists; callers
// treat that as "anyone may start".
type Strategy interface {
	// Name identifies the strategy in group settings and the registry.
	Name() string

	// Description is a short human-readable summary.
	Description() string

	// DefaultConfig returns the strategy's default configuration.
	// Callers receive a copy and may modify it freely.
	DefaultConfig() Config

	// NextUser picks the next member, or nil when none is eligible.
	NextUser(group *models.Group, cfg Config) (*models.Member, error)
}

// eligibleMembers returns the group's active members, optionally excluding
// the owner of a currently active turn.
func eligibleMembers(group *models.Group, excludeCurrent bool) []*models.Member {
	members := group.ActiveMembers()
	if !excludeCurrent {
		return members
	}
	active := group.ActiveTurn()
	if active == nil {
		return members
	}
	var out []*models.Member
	for _, m := range members {
		if m.UserID != active.UserID {
			out = append(out, m)
		}
	}
	return out
}

// sortByTurnOrder orders members by turn_order ascending. Ties are broken
// by user ID ascending so iteration stays deterministic.
func sortByTurnOrder(members []*models.Member) []*models.Member {
	sorted := make([]*models.Member, len(members))
	copy(sorted, members)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].TurnOrder != sorted[j].TurnOrder {
			return sorted[i].TurnOrder < sorted[j].TurnOrder
		}
		return sorted[i].UserID < sorted[j].UserID
	})
	return sorted
}

// lastTerminalTurn finds the most recent completed or skipped turn,
// ordered by end time descending. Expired turns do not advance the
// round-robin cursor.
func lastTerminalTurn(turns []*models.Turn) *models.Turn {
	var last *models.Turn
	for _, t := range turns {
		if t.Status != models.TurnStatusCompleted && t.Status != models.TurnStatusSkipped {
			continue
		}
		if t.EndedAt == nil {
			continue
		}
		if last == nil || t.EndedAt.After(*last.EndedAt) {
			last = t
		}
	}
	return last
}
