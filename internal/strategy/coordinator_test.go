package strategy

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mmynk/roundtable/internal/models"
)

// failing is a stub strategy that always errors, for fallback tests.
type failing struct{}

func (f *failing) Name() string          { return "failing" }
func (f *failing) Description() string   { return "always fails" }
func (f *failing) DefaultConfig() Config { return Config{} }
func (f *failing) NextUser(group *models.Group, cfg Config) (*models.Member, error) {
	return nil, errors.New("boom")
}

func TestCoordinatorRegistersBuiltins(t *testing.T) {
	t.Parallel()

	c := NewCoordinator()
	infos := c.Strategies()

	names := make([]string, len(infos))
	for i, info := range infos {
		names[i] = info.Name
	}
	require.Equal(t, []string{"random", "round_robin", "weighted"}, names)
	require.Equal(t, "random", c.Default())
}

func TestCoordinatorUnknownStrategy(t *testing.T) {
	t.Parallel()

	c := NewCoordinator()
	_, err := c.NextUserWithStrategy(&models.Group{}, "nope", nil)
	require.ErrorIs(t, err, models.ErrUnknownStrategy)

	require.ErrorIs(t, c.SetDefault("nope"), models.ErrUnknownStrategy)
}

func TestCoordinatorSetDefault(t *testing.T) {
	t.Parallel()

	c := NewCoordinator()
	require.NoError(t, c.SetDefault("round_robin"))
	require.Equal(t, "round_robin", c.Default())

	// A group with no preference now gets round-robin behavior.
	g := testGroup("u1", "u2")
	next, err := c.NextUser(g)
	require.NoError(t, err)
	require.Equal(t, "u1", next.UserID)
}

func TestCoordinatorDispatchesGroupPreference(t *testing.T) {
	t.Parallel()

	c := NewCoordinator()
	g := testGroup("u1", "u2", "u3")
	g.Settings = map[string]any{
		models.SettingTurnStrategy: "round_robin",
	}

	next, err := c.NextUser(g)
	require.NoError(t, err)
	require.Equal(t, "u1", next.UserID)
}

func TestCoordinatorAppliesGroupConfig(t *testing.T) {
	t.Parallel()

	c := NewCoordinator()
	g := testGroup("u1", "u2", "u3")
	g.Settings = map[string]any{
		models.SettingTurnStrategy: "random",
		models.SettingStrategyConfig: map[string]any{
			"seed": float64(7),
		},
	}

	first, err := c.NextUser(g)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		next, err := c.NextUser(g)
		require.NoError(t, err)
		require.Equal(t, first.UserID, next.UserID)
	}
}

func TestCoordinatorFallsBackOnRuntimeError(t *testing.T) {
	t.Parallel()

	c := NewCoordinator()
	c.Register(&failing{})

	g := testGroup("u1")
	next, err := c.NextUserWithStrategy(g, "failing", nil)
	require.NoError(t, err)
	require.NotNil(t, next)
	require.Equal(t, "u1", next.UserID)
}

func TestCoordinatorDefaultFailurePropagates(t *testing.T) {
	t.Parallel()

	c := NewCoordinator()
	c.Register(&failing{})
	require.NoError(t, c.SetDefault("failing"))

	_, err := c.NextUserWithStrategy(testGroup("u1"), "failing", nil)
	require.Error(t, err)
}

func TestCoordinatorRegisterCustomStrategy(t *testing.T) {
	t.Parallel()

	c := NewCoordinator()
	c.Register(NewRoundRobin()) // re-register is a no-op replace
	require.Len(t, c.Strategies(), 3)
}
