package service

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mmynk/roundtable/internal/models"
	"github.com/mmynk/roundtable/internal/storage"
	"github.com/mmynk/roundtable/internal/storage/sqlite"
	"github.com/mmynk/roundtable/internal/strategy"
)

func newTestStore(t *testing.T) storage.Store {
	t.Helper()

	store, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func createTestUser(t *testing.T, store storage.Store, name string) *models.User {
	t.Helper()

	user := models.NewUser(name+"@example.com", name, "hash")
	require.NoError(t, store.CreateUser(context.Background(), user))
	return user
}

// newTestGroup creates a group with the given users as active members in
// join order. The first user is the creator.
func newTestGroup(t *testing.T, store storage.Store, settings map[string]any, users ...*models.User) *models.Group {
	t.Helper()

	members := make([]*models.Member, len(users))
	for i, u := range users {
		role := models.RoleMember
		if i == 0 {
			role = models.RoleAdmin
		}
		members[i] = &models.Member{
			UserID:      u.ID,
			DisplayName: u.DisplayName,
			Role:        role,
			IsActive:    true,
			TurnOrder:   i + 1,
		}
	}
	group := &models.Group{
		Name:      "Dish Duty",
		CreatorID: users[0].ID,
		Status:    models.GroupStatusActive,
		Settings:  settings,
		Members:   members,
	}
	require.NoError(t, store.CreateGroup(context.Background(), group))
	return group
}

func newTurnService(store storage.Store) *TurnService {
	return NewTurnService(store, strategy.NewCoordinator(), nil, nil)
}

func TestStartTurnPreconditions(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	svc := newTurnService(store)
	ctx := context.Background()

	alice := createTestUser(t, store, "alice")
	bob := createTestUser(t, store, "bob")
	stranger := createTestUser(t, store, "stranger")
	settings := map[string]any{models.SettingTurnStrategy: "round_robin"}
	group := newTestGroup(t, store, settings, alice, bob)

	_, err := svc.StartTurn(ctx, group.ID, stranger.ID, nil)
	require.ErrorIs(t, err, models.ErrNotAMember)

	group.Status = models.GroupStatusInactive
	require.NoError(t, store.UpdateGroup(ctx, group))
	_, err = svc.StartTurn(ctx, group.ID, alice.ID, nil)
	require.ErrorIs(t, err, models.ErrGroupNotActive)

	group.Status = models.GroupStatusActive
	require.NoError(t, store.UpdateGroup(ctx, group))

	turn, err := svc.StartTurn(ctx, group.ID, alice.ID, map[string]string{"task": "dishes"})
	require.NoError(t, err)
	require.Equal(t, models.TurnStatusActive, turn.Status)
	require.Equal(t, "dishes", turn.Metadata["task"])

	_, err = svc.StartTurn(ctx, group.ID, bob.ID, nil)
	require.ErrorIs(t, err, models.ErrTurnAlreadyActive)

	// Starting records the advisory current user and last turn time.
	updated, err := store.GetGroup(ctx, group.ID)
	require.NoError(t, err)
	require.Equal(t, alice.ID, updated.CurrentUserID)
	require.NotNil(t, updated.LastTurnAt)
}

func TestStartTurnRespectsRoundRobinOrder(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	svc := newTurnService(store)
	ctx := context.Background()

	alice := createTestUser(t, store, "alice")
	bob := createTestUser(t, store, "bob")
	settings := map[string]any{models.SettingTurnStrategy: "round_robin"}
	group := newTestGroup(t, store, settings, alice, bob)

	// No history: the rotation starts at turn order 1.
	_, err := svc.StartTurn(ctx, group.ID, bob.ID, nil)
	require.ErrorIs(t, err, models.ErrNotYourTurn)

	turn, err := svc.StartTurn(ctx, group.ID, alice.ID, nil)
	require.NoError(t, err)

	_, err = svc.CompleteTurn(ctx, turn.ID, alice.ID, "done", nil)
	require.NoError(t, err)

	// The cursor advanced to bob.
	_, err = svc.StartTurn(ctx, group.ID, alice.ID, nil)
	require.ErrorIs(t, err, models.ErrNotYourTurn)
	_, err = svc.StartTurn(ctx, group.ID, bob.ID, nil)
	require.NoError(t, err)
}

func TestRoundRobinRotationEndToEnd(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	svc := newTurnService(store)
	clock := time.Date(2026, 8, 24, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return clock }
	ctx := context.Background()

	alice := createTestUser(t, store, "alice")
	bob := createTestUser(t, store, "bob")
	settings := map[string]any{models.SettingTurnStrategy: "round_robin"}
	group := newTestGroup(t, store, settings, alice, bob)

	turn, err := svc.StartTurn(ctx, group.ID, alice.ID, nil)
	require.NoError(t, err)

	clock = clock.Add(30 * time.Second)
	done, err := svc.CompleteTurn(ctx, turn.ID, alice.ID, "", nil)
	require.NoError(t, err)
	require.Equal(t, int64(30), done.DurationSeconds)

	// The advisory next user rotates to bob.
	updated, err := store.GetGroup(ctx, group.ID)
	require.NoError(t, err)
	require.Equal(t, bob.ID, updated.CurrentUserID)

	clock = clock.Add(time.Minute)
	turn, err = svc.StartTurn(ctx, group.ID, bob.ID, nil)
	require.NoError(t, err)
	clock = clock.Add(time.Minute)
	skipped, err := svc.SkipTurn(ctx, turn.ID, bob.ID, "busy")
	require.NoError(t, err)
	require.Equal(t, models.TurnStatusSkipped, skipped.Status)
	require.Equal(t, "busy", skipped.Notes)

	// A skip still advances the rotation back to alice.
	updated, err = store.GetGroup(ctx, group.ID)
	require.NoError(t, err)
	require.Equal(t, alice.ID, updated.CurrentUserID)
}

func TestStartTurnUnknownStrategyDoesNotBlock(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	svc := newTurnService(store)
	ctx := context.Background()

	alice := createTestUser(t, store, "alice")
	settings := map[string]any{models.SettingTurnStrategy: "fortune_teller"}
	group := newTestGroup(t, store, settings, alice)

	// A misconfigured strategy name must not lock the group.
	turn, err := svc.StartTurn(ctx, group.ID, alice.ID, nil)
	require.NoError(t, err)
	require.NotNil(t, turn)
}

func TestCompleteTurn(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	svc := newTurnService(store)
	ctx := context.Background()

	alice := createTestUser(t, store, "alice")
	bob := createTestUser(t, store, "bob")
	settings := map[string]any{models.SettingTurnStrategy: "round_robin"}
	group := newTestGroup(t, store, settings, alice, bob)

	turn, err := svc.StartTurn(ctx, group.ID, alice.ID, nil)
	require.NoError(t, err)

	_, err = svc.CompleteTurn(ctx, turn.ID, bob.ID, "", nil)
	require.ErrorIs(t, err, models.ErrNotTurnOwner)

	done, err := svc.CompleteTurn(ctx, turn.ID, alice.ID, "all clean", map[string]string{"load": "full"})
	require.NoError(t, err)
	require.Equal(t, models.TurnStatusCompleted, done.Status)
	require.Equal(t, "all clean", done.Notes)
	require.Equal(t, "full", done.Metadata["load"])
	require.NotNil(t, done.EndedAt)
	require.GreaterOrEqual(t, done.DurationSeconds, int64(0))

	// A second completion observes the turn is no longer active.
	_, err = svc.CompleteTurn(ctx, turn.ID, alice.ID, "", nil)
	require.ErrorIs(t, err, models.ErrTurnNotActive)

	// The transition landed in the group's history ring.
	updated, err := store.GetGroupState(ctx, group.ID)
	require.NoError(t, err)
	require.NotNil(t, updated.TurnHistory)
	last, ok := updated.TurnHistory.Last()
	require.True(t, ok)
	require.Equal(t, turn.ID, last.TurnID)
	require.Equal(t, models.TurnStatusCompleted, last.Status)
}

func TestSkipTurnRecordsReason(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	svc := newTurnService(store)
	ctx := context.Background()

	alice := createTestUser(t, store, "alice")
	group := newTestGroup(t, store, nil, alice)

	turn, err := svc.StartTurn(ctx, group.ID, alice.ID, nil)
	require.NoError(t, err)

	skipped, err := svc.SkipTurn(ctx, turn.ID, alice.ID, "busy this week")
	require.NoError(t, err)
	require.Equal(t, models.TurnStatusSkipped, skipped.Status)
	require.Equal(t, "busy this week", skipped.Notes)
	require.Equal(t, "busy this week", skipped.Metadata["skip_reason"])
}

func TestForceEndTurnRequiresAdmin(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	svc := newTurnService(store)
	ctx := context.Background()

	alice := createTestUser(t, store, "alice")
	bob := createTestUser(t, store, "bob")
	carol := createTestUser(t, store, "carol")
	settings := map[string]any{models.SettingTurnStrategy: "round_robin"}
	group := newTestGroup(t, store, settings, bob, alice, carol)

	// Promote alice so an admin other than the turn owner can intervene.
	promoted := group.Member(alice.ID)
	promoted.Role = models.RoleAdmin
	require.NoError(t, store.UpdateMember(ctx, group.ID, promoted))

	turn, err := svc.StartTurn(ctx, group.ID, bob.ID, nil)
	require.NoError(t, err)

	// carol is a plain member.
	_, err = svc.ForceEndTurn(ctx, turn.ID, carol.ID, "stuck")
	require.ErrorIs(t, err, models.ErrNotAuthorized)

	ended, err := svc.ForceEndTurn(ctx, turn.ID, alice.ID, "stuck")
	require.NoError(t, err)
	require.Equal(t, models.TurnStatusExpired, ended.Status)
	require.Equal(t, alice.ID, ended.Metadata["force_ended_by"])

	_, err = svc.ForceEndTurn(ctx, "no-such-turn", alice.ID, "")
	require.ErrorIs(t, err, models.ErrTurnNotFound)
}

func TestExpireOldTurns(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	svc := newTurnService(store)
	ctx := context.Background()

	alice := createTestUser(t, store, "alice")
	bob := createTestUser(t, store, "bob")
	groupA := newTestGroup(t, store, nil, alice)
	groupB := newTestGroup(t, store, nil, bob)

	stale := &models.Turn{
		GroupID:   groupA.ID,
		UserID:    alice.ID,
		StartedAt: time.Now().Add(-25 * time.Hour).UTC(),
	}
	require.NoError(t, store.CreateActiveTurn(ctx, stale))

	fresh, err := svc.StartTurn(ctx, groupB.ID, bob.ID, nil)
	require.NoError(t, err)

	expired, err := svc.ExpireOldTurns(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, expired)

	got, err := store.GetTurn(ctx, stale.ID)
	require.NoError(t, err)
	require.Equal(t, models.TurnStatusExpired, got.Status)
	require.Equal(t, "Automatically expired after 24 hours", got.Notes)

	// The recent turn is untouched and a repeat sweep finds nothing.
	got, err = store.GetTurn(ctx, fresh.ID)
	require.NoError(t, err)
	require.Equal(t, models.TurnStatusActive, got.Status)

	expired, err = svc.ExpireOldTurns(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, expired)
}

func TestConcurrentStartsOneWinner(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	svc := newTurnService(store)
	ctx := context.Background()

	alice := createTestUser(t, store, "alice")
	group := newTestGroup(t, store, nil, alice)

	// Racing starts for the same eligible user resolve to exactly one
	// active turn, whether the advisory check or the conditional insert
	// catches the loser.
	const racers = 4
	var wg sync.WaitGroup
	errs := make([]error, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.StartTurn(ctx, group.ID, alice.ID, nil)
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, err := range errs {
		if err == nil {
			winners++
		} else {
			require.ErrorIs(t, err, models.ErrTurnAlreadyActive)
		}
	}
	require.Equal(t, 1, winners)

	active, err := store.FindActiveTurnByGroup(ctx, group.ID)
	require.NoError(t, err)
	require.NotNil(t, active)
}

func TestStatistics(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	svc := newTurnService(store)
	ctx := context.Background()

	alice := createTestUser(t, store, "alice")
	group := newTestGroup(t, store, nil, alice)

	turn, err := svc.StartTurn(ctx, group.ID, alice.ID, nil)
	require.NoError(t, err)
	_, err = svc.CompleteTurn(ctx, turn.ID, alice.ID, "", nil)
	require.NoError(t, err)

	turn, err = svc.StartTurn(ctx, group.ID, alice.ID, nil)
	require.NoError(t, err)
	_, err = svc.SkipTurn(ctx, turn.ID, alice.ID, "")
	require.NoError(t, err)

	stats, err := svc.GroupStatistics(ctx, group.ID)
	require.NoError(t, err)
	require.Equal(t, 2, stats.Total)
	require.Equal(t, 1, stats.Completed)
	require.Equal(t, 1, stats.Skipped)
	require.Equal(t, 0.5, stats.CompletionRate)

	userStats, err := svc.UserStatistics(ctx, alice.ID)
	require.NoError(t, err)
	require.Equal(t, 2, userStats.Total)

	history, err := svc.GroupHistory(ctx, group.ID, 1)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Equal(t, models.TurnStatusSkipped, history[0].Status)

	_, err = svc.GroupStatistics(ctx, "missing")
	require.ErrorIs(t, err, models.ErrGroupNotFound)
}

func TestActiveTurn(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	svc := newTurnService(store)
	ctx := context.Background()

	alice := createTestUser(t, store, "alice")
	group := newTestGroup(t, store, nil, alice)

	active, err := svc.ActiveTurn(ctx, group.ID)
	require.NoError(t, err)
	require.Nil(t, active)

	turn, err := svc.StartTurn(ctx, group.ID, alice.ID, nil)
	require.NoError(t, err)

	active, err = svc.ActiveTurn(ctx, group.ID)
	require.NoError(t, err)
	require.NotNil(t, active)
	require.Equal(t, turn.ID, active.ID)
}
