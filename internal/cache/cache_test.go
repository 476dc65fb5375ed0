package cache

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSetGet(t *testing.T) {
	t.Parallel()

	c := New()
	_, ok := c.Get("missing")
	require.False(t, ok)

	c.Set("k", 42, time.Minute)
	v, ok := c.Get("k")
	require.True(t, ok)
	require.Equal(t, 42, v)

	c.Set("k", "replaced", time.Minute)
	v, _ = c.Get("k")
	require.Equal(t, "replaced", v)
}

func TestExpiryIsLazy(t *testing.T) {
	t.Parallel()

	c := New()
	current := time.Now()
	c.now = func() time.Time { return current }

	c.Set("k", 1, time.Minute)
	require.Equal(t, 1, c.Len())

	current = current.Add(2 * time.Minute)
	_, ok := c.Get("k")
	require.False(t, ok)
	// The expired entry was dropped on read.
	require.Equal(t, 0, c.Len())
}

func TestRemember(t *testing.T) {
	t.Parallel()

	c := New()
	calls := 0
	compute := func() (any, error) {
		calls++
		return "value", nil
	}

	v, err := c.Remember("k", time.Minute, compute)
	require.NoError(t, err)
	require.Equal(t, "value", v)

	v, err = c.Remember("k", time.Minute, compute)
	require.NoError(t, err)
	require.Equal(t, "value", v)
	require.Equal(t, 1, calls)
}

func TestRememberDoesNotCacheErrors(t *testing.T) {
	t.Parallel()

	c := New()
	boom := errors.New("boom")
	_, err := c.Remember("k", time.Minute, func() (any, error) {
		return nil, boom
	})
	require.ErrorIs(t, err, boom)
	require.Equal(t, 0, c.Len())

	v, err := c.Remember("k", time.Minute, func() (any, error) {
		return "recovered", nil
	})
	require.NoError(t, err)
	require.Equal(t, "recovered", v)
}

func TestDeletePrefix(t *testing.T) {
	t.Parallel()

	c := New()
	c.Set("analytics:fairness:group:g1:", 1, time.Minute)
	c.Set("analytics:insights:group:g1:", 2, time.Minute)
	c.Set("analytics:fairness:group:g2:", 3, time.Minute)

	require.Equal(t, 2, c.DeletePrefix("analytics:fairness:"))
	require.Equal(t, 1, c.Len())

	_, ok := c.Get("analytics:insights:group:g1:")
	require.True(t, ok)
}

func TestDeleteMatching(t *testing.T) {
	t.Parallel()

	c := New()
	c.Set("analytics:percentiles:group:g1:50,95", 1, time.Minute)
	c.Set("analytics:percentiles:user:u1:50,95", 2, time.Minute)
	c.Set("analytics:trends:user:u1:30", 3, time.Minute)

	dropped := c.DeleteMatching(func(key string) bool {
		return len(key) > 0 && key[len(key)-1] != '5'
	})
	require.Equal(t, 1, dropped)
	require.Equal(t, 2, c.Len())

	c.Delete("analytics:percentiles:group:g1:50,95")
	require.Equal(t, 1, c.Len())
}

func TestRememberGeneric(t *testing.T) {
	t.Parallel()

	// Remember round-trips arbitrary value types through the any slot.
	type report struct{ Score float64 }
	c := New()
	c.Set("r", &report{Score: 0.9}, time.Minute)

	v, ok := c.Get("r")
	require.True(t, ok)
	r, ok := v.(*report)
	require.True(t, ok)
	require.Equal(t, 0.9, r.Score)
}
