package strategy

import "github.com/mmynk/roundtable/internal/models"

// RoundRobin cycles through active members by ascending turn_order.
type RoundRobin struct{}

var _ Strategy = (*RoundRobin)(nil)

// NewRoundRobin creates the round-robin assignment strategy.
func NewRoundRobin() *RoundRobin { return &RoundRobin{} }

func (rr *RoundRobin) Name() string { return "round_robin" }

func (rr *RoundRobin) Description() string {
	return "Cycles through group members in order based on their turn_order"
}

// DefaultConfig lists the supported options:
//   - reset_on_cycle_complete (bool, default true): wrap to the first
//     member after the last one has gone; when disabled the strategy
//     returns no pick at the end of a cycle
func (rr *RoundRobin) DefaultConfig() Config {
	return Config{
		"reset_on_cycle_complete": true,
	}
}

// NextUser walks the turn_order sequence:
//
//  1. No terminal turn yet: the first member in order goes.
//  2. The last terminal turn's user left the group: restart from the
//     first member.
//  3. Otherwise pick the first member with a strictly greater
//     turn_order, wrapping to the first only when
//     reset_on_cycle_complete is enabled.
func (rr *RoundRobin) NextUser(group *models.Group, cfg Config) (*models.Member, error) {
	members := sortByTurnOrder(group.ActiveMembers())
	if len(members) == 0 {
		return nil, nil
	}

	last := lastTerminalTurn(group.Turns)
	if last == nil {
		return members[0], nil
	}

	var lastOrder *int
	for _, m := range members {
		if m.UserID == last.UserID {
			order := m.TurnOrder
			lastOrder = &order
			break
		}
	}
	if lastOrder == nil {
		// Previous user is no longer a member; restart the cycle.
		return members[0], nil
	}

	for _, m := range members {
		if m.TurnOrder > *lastOrder {
			return m, nil
		}
	}

	if cfg.Bool("reset_on_cycle_complete", true) {
		return members[0], nil
	}
	return nil, nil
}
