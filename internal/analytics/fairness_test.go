package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mmynk/roundtable/internal/models"
)

func member(userID string, active bool) *models.Member {
	return &models.Member{UserID: userID, DisplayName: userID, IsActive: active}
}

func completedTurn(userID string, startedAgo time.Duration) *models.Turn {
	started := time.Now().Add(-startedAgo)
	ended := started.Add(30 * time.Minute)
	return &models.Turn{
		UserID:          userID,
		Status:          models.TurnStatusCompleted,
		StartedAt:       started,
		EndedAt:         &ended,
		DurationSeconds: 1800,
	}
}

func TestFairnessScore(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		totals []float64
		want   float64
	}{
		{"empty is perfectly fair", nil, 1.0},
		{"zero totals are perfectly fair", []float64{0, 0, 0}, 1.0},
		{"equal distribution", []float64{5, 5, 5}, 1.0},
		{"single member", []float64{7}, 1.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.InDelta(t, tt.want, FairnessScore(tt.totals), 1e-9)
		})
	}

	// More skew means a lower score, bounded by [0, 1].
	mild := FairnessScore([]float64{4, 5, 6})
	severe := FairnessScore([]float64{0, 0, 15})
	require.Greater(t, mild, severe)
	require.Greater(t, mild, 0.0)
	require.LessOrEqual(t, mild, 1.0)
	require.GreaterOrEqual(t, severe, 0.0)
}

func TestGini(t *testing.T) {
	t.Parallel()

	require.Equal(t, 0.0, Gini(nil))
	require.Equal(t, 0.0, Gini([]float64{0, 0, 0}))
	require.InDelta(t, 0.0, Gini([]float64{5, 5, 5}), 1e-9)

	// One member holding everything: Gini = (n-1)/n.
	require.InDelta(t, 2.0/3.0, Gini([]float64{0, 0, 10}), 1e-9)
}

func TestCountMemberTurns(t *testing.T) {
	t.Parallel()

	members := []*models.Member{
		member("u1", true),
		member("u2", true),
		member("u3", false), // inactive members are excluded
	}
	skipped := completedTurn("u1", time.Hour)
	skipped.Status = models.TurnStatusSkipped
	turns := []*models.Turn{
		completedTurn("u1", 2*time.Hour),
		completedTurn("u1", 3*time.Hour),
		skipped,
		completedTurn("u3", time.Hour),
	}

	counts := CountMemberTurns(members, turns)
	require.Len(t, counts, 2)

	require.Equal(t, "u1", counts[0].UserID)
	require.Equal(t, 3, counts[0].TotalTurns)
	require.Equal(t, 2, counts[0].CompletedTurns)
	require.Equal(t, 1, counts[0].SkippedTurns)
	require.InDelta(t, 0.667, counts[0].CompletionRate, 1e-9)

	require.Equal(t, "u2", counts[1].UserID)
	require.Equal(t, 0, counts[1].TotalTurns)
}

func TestCountMemberTurnsBetween(t *testing.T) {
	t.Parallel()

	members := []*models.Member{member("u1", true)}
	turns := []*models.Turn{
		completedTurn("u1", time.Hour),
		completedTurn("u1", 48*time.Hour),
	}

	counts := CountMemberTurnsBetween(members, turns, time.Now().Add(-24*time.Hour), time.Now())
	require.Equal(t, 1, counts[0].TotalTurns)
}

func TestComputeFairnessImbalance(t *testing.T) {
	t.Parallel()

	counts := []MemberTurnCount{
		{UserID: "hog", Name: "hog", TotalTurns: 9},
		{UserID: "idle", Name: "idle", TotalTurns: 1},
	}

	m := ComputeFairness(counts, time.Now())
	require.Equal(t, 2, m.TotalMembers)
	require.False(t, m.IsBalanced())
	require.Len(t, m.ImbalancedMembers, 2)

	byID := map[string]ImbalancedMember{}
	for _, im := range m.ImbalancedMembers {
		byID[im.UserID] = im
	}
	require.Equal(t, "overshare", byID["hog"].Type)
	require.Equal(t, "undershare", byID["idle"].Type)
	// hog deviates +80%, idle -80%: both severe.
	require.Equal(t, "severe", byID["hog"].Severity)
	require.Equal(t, "severe", byID["idle"].Severity)
}

func TestComputeFairnessBalancedGroup(t *testing.T) {
	t.Parallel()

	counts := []MemberTurnCount{
		{UserID: "u1", TotalTurns: 5},
		{UserID: "u2", TotalTurns: 5},
		{UserID: "u3", TotalTurns: 5},
	}

	m := ComputeFairness(counts, time.Now())
	require.Equal(t, 1.0, m.FairnessScore)
	require.Equal(t, "excellent", m.FairnessLevel())
	require.True(t, m.IsBalanced())
	require.Empty(t, m.ImbalancedMembers)
	require.Equal(t, 0.0, m.GiniCoefficient)

	for _, share := range m.MemberDistribution {
		require.InDelta(t, 33.333, share.SharePercentage, 0.001)
		require.InDelta(t, 0, share.DeviationPercentage, 1e-9)
	}
}

func TestFairnessLevels(t *testing.T) {
	t.Parallel()

	tests := []struct {
		score float64
		want  string
	}{
		{0.95, "excellent"},
		{0.9, "excellent"},
		{0.7, "good"},
		{0.5, "fair"},
		{0.3, "poor"},
		{0.1, "very_poor"},
	}
	for _, tt := range tests {
		m := &FairnessMetrics{FairnessScore: tt.score}
		require.Equal(t, tt.want, m.FairnessLevel(), "score %v", tt.score)
	}
}

func TestImbalanceSeverity(t *testing.T) {
	t.Parallel()

	require.Equal(t, "severe", imbalanceSeverity(85))
	require.Equal(t, "high", imbalanceSeverity(60))
	require.Equal(t, "moderate", imbalanceSeverity(35))
	require.Equal(t, "low", imbalanceSeverity(10))
}
