package strategy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mmynk/roundtable/internal/models"
)

func testGroup(memberIDs ...string) *models.Group {
	g := &models.Group{ID: "g1", Status: models.GroupStatusActive}
	for i, id := range memberIDs {
		g.Members = append(g.Members, &models.Member{
			UserID:    id,
			IsActive:  true,
			TurnOrder: i + 1,
		})
	}
	return g
}

func terminalTurn(userID, status string, endedAgo time.Duration) *models.Turn {
	ended := time.Now().Add(-endedAgo)
	started := ended.Add(-30 * time.Minute)
	return &models.Turn{
		ID:        "t-" + userID + "-" + status,
		GroupID:   "g1",
		UserID:    userID,
		Status:    status,
		StartedAt: started,
		EndedAt:   &ended,
	}
}

func TestRandomDeterministicWithSeed(t *testing.T) {
	t.Parallel()

	g := testGroup("u1", "u2", "u3")
	r := NewRandom()
	cfg := r.DefaultConfig().Merge(Config{"seed": int64(42)})

	first, err := r.NextUser(g, cfg)
	require.NoError(t, err)
	require.NotNil(t, first)

	for i := 0; i < 10; i++ {
		next, err := r.NextUser(g, cfg)
		require.NoError(t, err)
		require.Equal(t, first.UserID, next.UserID)
	}
}

func TestRandomNoMembers(t *testing.T) {
	t.Parallel()

	r := NewRandom()
	member, err := r.NextUser(testGroup(), r.DefaultConfig())
	require.NoError(t, err)
	require.Nil(t, member)
}

func TestRandomExcludesCurrentUser(t *testing.T) {
	t.Parallel()

	g := testGroup("u1", "u2")
	g.Turns = []*models.Turn{{
		ID: "t1", GroupID: "g1", UserID: "u1",
		Status: models.TurnStatusActive, StartedAt: time.Now(),
	}}

	r := NewRandom()
	for i := 0; i < 20; i++ {
		member, err := r.NextUser(g, r.DefaultConfig())
		require.NoError(t, err)
		require.Equal(t, "u2", member.UserID)
	}

	// With exclusion disabled and everyone else drained, u1 is pickable.
	g.Members = g.Members[:1]
	member, err := r.NextUser(g, r.DefaultConfig().Merge(Config{"exclude_current_user": false}))
	require.NoError(t, err)
	require.Equal(t, "u1", member.UserID)

	// With exclusion on and nobody else, no pick.
	member, err = r.NextUser(g, r.DefaultConfig())
	require.NoError(t, err)
	require.Nil(t, member)
}

func TestRoundRobinCycle(t *testing.T) {
	t.Parallel()

	g := testGroup("u1", "u2", "u3")
	rr := NewRoundRobin()
	cfg := rr.DefaultConfig()

	// No history: first member in turn order.
	next, err := rr.NextUser(g, cfg)
	require.NoError(t, err)
	require.Equal(t, "u1", next.UserID)

	// Walk the full cycle, completing each pick in order.
	order := []string{"u1", "u2", "u3", "u1"}
	for i := 0; i < len(order)-1; i++ {
		g.Turns = append([]*models.Turn{
			terminalTurn(order[i], models.TurnStatusCompleted, time.Duration(len(order)-i)*time.Minute),
		}, g.Turns...)
		next, err := rr.NextUser(g, cfg)
		require.NoError(t, err)
		require.Equal(t, order[i+1], next.UserID, "after %s completed", order[i])
	}
}

func TestRoundRobinSkipAdvancesCursor(t *testing.T) {
	t.Parallel()

	g := testGroup("u1", "u2", "u3")
	g.Turns = []*models.Turn{terminalTurn("u1", models.TurnStatusSkipped, time.Minute)}

	rr := NewRoundRobin()
	next, err := rr.NextUser(g, rr.DefaultConfig())
	require.NoError(t, err)
	require.Equal(t, "u2", next.UserID)
}

func TestRoundRobinExpiredDoesNotAdvanceCursor(t *testing.T) {
	t.Parallel()

	g := testGroup("u1", "u2", "u3")
	g.Turns = []*models.Turn{
		terminalTurn("u2", models.TurnStatusExpired, time.Minute),
		terminalTurn("u1", models.TurnStatusCompleted, time.Hour),
	}

	// The expired turn is ignored; the cursor still points at u1.
	rr := NewRoundRobin()
	next, err := rr.NextUser(g, rr.DefaultConfig())
	require.NoError(t, err)
	require.Equal(t, "u2", next.UserID)
}

func TestRoundRobinNoResetStopsAtCycleEnd(t *testing.T) {
	t.Parallel()

	g := testGroup("u1", "u2")
	g.Turns = []*models.Turn{terminalTurn("u2", models.TurnStatusCompleted, time.Minute)}

	rr := NewRoundRobin()
	cfg := rr.DefaultConfig().Merge(Config{"reset_on_cycle_complete": false})
	next, err := rr.NextUser(g, cfg)
	require.NoError(t, err)
	require.Nil(t, next)
}

func TestRoundRobinDepartedMemberRestartsCycle(t *testing.T) {
	t.Parallel()

	g := testGroup("u1", "u2")
	g.Turns = []*models.Turn{terminalTurn("u3", models.TurnStatusCompleted, time.Minute)}

	rr := NewRoundRobin()
	next, err := rr.NextUser(g, rr.DefaultConfig())
	require.NoError(t, err)
	require.Equal(t, "u1", next.UserID)
}

func TestRoundRobinTurnOrderTiesBreakByUserID(t *testing.T) {
	t.Parallel()

	g := testGroup("b", "a")
	for _, m := range g.Members {
		m.TurnOrder = 1
	}

	rr := NewRoundRobin()
	next, err := rr.NextUser(g, rr.DefaultConfig())
	require.NoError(t, err)
	require.Equal(t, "a", next.UserID)
}

func TestWeightedNewcomerGoesFirst(t *testing.T) {
	t.Parallel()

	g := testGroup("veteran", "newcomer")
	g.Turns = []*models.Turn{terminalTurn("veteran", models.TurnStatusCompleted, 10*time.Minute)}

	w := NewWeighted()
	next, err := w.NextUser(g, w.DefaultConfig())
	require.NoError(t, err)
	require.Equal(t, "newcomer", next.UserID)
}

func TestWeightedRestPeriodZeroesTimeFactor(t *testing.T) {
	t.Parallel()

	now := time.Now()
	w := NewWeighted()
	w.now = func() time.Time { return now }

	recent := terminalTurn("u1", models.TurnStatusCompleted, 10*time.Minute)
	require.Equal(t, 0.0, w.timeWeight([]*models.Turn{recent}, 1))

	rested := terminalTurn("u1", models.TurnStatusCompleted, 12*time.Hour)
	require.InDelta(t, 0.5, w.timeWeight([]*models.Turn{rested}, 1), 0.01)

	longAgo := terminalTurn("u1", models.TurnStatusCompleted, 72*time.Hour)
	require.Equal(t, 1.0, w.timeWeight([]*models.Turn{longAgo}, 1))

	require.Equal(t, 1.0, w.timeWeight(nil, 1))
}

func TestWeightedSkipHistoryPenalized(t *testing.T) {
	t.Parallel()

	g := testGroup("skipper", "finisher")
	// Both rested equally long; the skipper's record drags them down.
	g.Turns = []*models.Turn{
		terminalTurn("skipper", models.TurnStatusSkipped, 48*time.Hour),
		terminalTurn("skipper", models.TurnStatusSkipped, 49*time.Hour),
		terminalTurn("finisher", models.TurnStatusCompleted, 48*time.Hour),
		terminalTurn("finisher", models.TurnStatusCompleted, 49*time.Hour),
	}

	w := NewWeighted()
	next, err := w.NextUser(g, w.DefaultConfig())
	require.NoError(t, err)
	require.Equal(t, "finisher", next.UserID)
}

func TestWeightedFactorHelpers(t *testing.T) {
	t.Parallel()

	turns := []*models.Turn{
		terminalTurn("u1", models.TurnStatusCompleted, time.Hour),
		terminalTurn("u1", models.TurnStatusCompleted, 2*time.Hour),
		terminalTurn("u1", models.TurnStatusSkipped, 3*time.Hour),
	}

	require.InDelta(t, 2.0/3.0, completionWeight(turns), 1e-9)
	require.InDelta(t, 2.0/3.0, skipWeight(turns), 1e-9)
	require.Equal(t, 0.5, completionWeight(nil))
	require.Equal(t, 0.5, skipWeight(nil))
}

func TestConfigMergeDoesNotMutate(t *testing.T) {
	t.Parallel()

	base := Config{"a": 1, "b": 2}
	merged := base.Merge(Config{"b": 3, "c": 4})

	require.Equal(t, Config{"a": 1, "b": 2}, base)
	require.Equal(t, Config{"a": 1, "b": 3, "c": 4}, merged)
}

func TestConfigNumericCoercion(t *testing.T) {
	t.Parallel()

	// JSON-decoded settings arrive as float64.
	cfg := Config{"seed": float64(7), "time_weight": float64(0.9)}

	seed, ok := cfg.Int64("seed")
	require.True(t, ok)
	require.Equal(t, int64(7), seed)
	require.Equal(t, 0.9, cfg.Float("time_weight", 0.4))
	require.Equal(t, 0.4, cfg.Float("missing", 0.4))
}
