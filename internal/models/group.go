package models

import "time"

// Group statuses.
const (
	GroupStatusActive   = "active"
	GroupStatusInactive = "inactive"
	GroupStatusArchived = "archived"
)

// SettingTurnStrategy is the group settings key naming the assignment
// strategy used to pick the next user.
const SettingTurnStrategy = "turn_strategy"

// SettingStrategyConfig is the group settings key holding per-group
// strategy configuration overrides (a nested map).
const SettingStrategyConfig = "strategy_config"

// Group represents a turn-taking group.
//
// Invariant: at most one Turn in state "active" exists per group at any
// time. The storage layer enforces this with a conditional write; callers
// must never rely on a check-then-insert.
type Group struct {
	// ID is the unique identifier for the group (UUID format).
	ID string `json:"id"`

	// Name is the display name of the group (e.g., "Dish Duty").
	Name string `json:"name"`

	// Description is optional free text about the group.
	Description string `json:"description"`

	// CreatorID references the user who created the group. The creator
	// retains admin-level rights regardless of membership role.
	CreatorID string `json:"creator_id"`

	// Status is one of GroupStatusActive, GroupStatusInactive,
	// GroupStatusArchived. Turns may only start in an active group.
	Status string `json:"status"`

	// InviteCode is the short uppercase code members use to join.
	InviteCode string `json:"invite_code"`

	// Settings is an open key-value map of group configuration. Known keys:
	// SettingTurnStrategy (string) and SettingStrategyConfig (map).
	Settings map[string]any `json:"settings,omitempty"`

	// CurrentUserID is an advisory reference to who should act next,
	// recomputed by the lifecycle manager after every terminal transition.
	// Empty means no recommendation (anyone may start).
	CurrentUserID string `json:"current_user_id,omitempty"`

	// LastTurnAt is when a turn last started in this group.
	LastTurnAt *time.Time `json:"last_turn_at,omitempty"`

	// TurnHistory is a bounded ring of compact summaries of the most
	// recent turns (capacity HistoryCapacity). Full history lives in the
	// turns table.
	TurnHistory *TurnHistory `json:"turn_history,omitempty"`

	// CreatedAt is the Unix timestamp when the group was created.
	CreatedAt int64 `json:"created_at"`

	// Members holds the group's memberships when loaded by the store,
	// ordered by turn_order ascending (ties by user ID).
	Members []*Member `json:"members,omitempty"`

	// Turns holds the group's turn records when loaded by the store,
	// newest first. Strategies and analytics read from this snapshot.
	Turns []*Turn `json:"-"`
}

// StrategyName returns the configured assignment strategy name, or the
// empty string when the group has no preference.
func (g *Group) StrategyName() string {
	if g.Settings == nil {
		return ""
	}
	name, _ := g.Settings[SettingTurnStrategy].(string)
	return name
}

// StrategyConfig returns the group's strategy configuration overrides,
// or nil when none are set.
func (g *Group) StrategyConfig() map[string]any {
	if g.Settings == nil {
		return nil
	}
	cfg, _ := g.Settings[SettingStrategyConfig].(map[string]any)
	return cfg
}

// ActiveMembers returns the loaded memberships with IsActive set,
// preserving order.
func (g *Group) ActiveMembers() []*Member {
	var active []*Member
	for _, m := range g.Members {
		if m.IsActive {
			active = append(active, m)
		}
	}
	return active
}

// ActiveTurn returns the loaded turn in the active state, if any.
func (g *Group) ActiveTurn() *Turn {
	for _, t := range g.Turns {
		if t.Status == TurnStatusActive {
			return t
		}
	}
	return nil
}

// Member returns the loaded membership for the given user, or nil.
func (g *Group) Member(userID string) *Member {
	for _, m := range g.Members {
		if m.UserID == userID {
			return m
		}
	}
	return nil
}

// IsAdmin reports whether the user is a group admin or the creator.
func (g *Group) IsAdmin(userID string) bool {
	if userID == g.CreatorID {
		return true
	}
	m := g.Member(userID)
	return m != nil && m.Role == RoleAdmin
}
