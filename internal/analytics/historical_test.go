package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mmynk/roundtable/internal/models"
)

func turnAt(userID string, started time.Time, status string, length time.Duration) *models.Turn {
	t := &models.Turn{UserID: userID, Status: status, StartedAt: started}
	if status != models.TurnStatusActive {
		ended := started.Add(length)
		t.EndedAt = &ended
		t.DurationSeconds = int64(length.Seconds())
	}
	return t
}

func TestStartOfWeekIsMonday(t *testing.T) {
	t.Parallel()

	// 2026-08-26 is a Wednesday.
	wed := time.Date(2026, 8, 26, 15, 30, 0, 0, time.UTC)
	monday := startOfWeek(wed)
	require.Equal(t, time.Monday, monday.Weekday())
	require.Equal(t, "2026-08-24", monday.Format(time.DateOnly))
	require.Equal(t, 0, monday.Hour())

	// A Monday maps to itself; a Sunday maps back six days.
	require.Equal(t, monday, startOfWeek(monday))
	sun := time.Date(2026, 8, 30, 3, 0, 0, 0, time.UTC)
	require.Equal(t, monday, startOfWeek(sun))
}

func TestWeeklyActivity(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC) // Wednesday
	turns := []*models.Turn{
		turnAt("u1", now.Add(-time.Hour), models.TurnStatusCompleted, 10*time.Minute),
		turnAt("u2", now.Add(-2*time.Hour), models.TurnStatusSkipped, 0),
		turnAt("u1", now.AddDate(0, 0, -7), models.TurnStatusCompleted, 20*time.Minute),
		turnAt("u1", now.AddDate(0, 0, -30), models.TurnStatusCompleted, 20*time.Minute), // outside window
	}

	weeks := WeeklyActivity(turns, now, 2)
	require.Len(t, weeks, 2)

	// Oldest first.
	require.Equal(t, "2026-08-17", weeks[0].WeekStart)
	require.Equal(t, "2026-08-23", weeks[0].WeekEnd)
	require.Equal(t, 1, weeks[0].TotalTurns)

	require.Equal(t, "2026-08-24", weeks[1].WeekStart)
	require.Equal(t, 2, weeks[1].TotalTurns)
	require.Equal(t, 1, weeks[1].CompletedTurns)
	require.Equal(t, 1, weeks[1].SkippedTurns)
	require.Equal(t, 2, weeks[1].UniqueParticipants)
}

func TestMonthlyActivity(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC)
	turns := []*models.Turn{
		turnAt("u1", time.Date(2026, 8, 2, 10, 0, 0, 0, time.UTC), models.TurnStatusCompleted, 30*time.Minute),
		turnAt("u1", time.Date(2026, 7, 20, 10, 0, 0, 0, time.UTC), models.TurnStatusCompleted, 10*time.Minute),
		turnAt("u2", time.Date(2026, 7, 21, 10, 0, 0, 0, time.UTC), models.TurnStatusSkipped, 0),
	}

	months := MonthlyActivity(turns, now, 2)
	require.Len(t, months, 2)

	require.Equal(t, "2026-07", months[0].Month)
	require.Equal(t, "July 2026", months[0].MonthName)
	require.Equal(t, 2, months[0].TotalTurns)
	require.Equal(t, 2, months[0].UniqueParticipants)
	require.Equal(t, 600.0, months[0].TotalDuration)

	require.Equal(t, "2026-08", months[1].Month)
	require.Equal(t, 1, months[1].TotalTurns)
	require.Equal(t, 1800.0, months[1].TotalDuration)
}

func TestPeakUsageTimes(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 26, 23, 0, 0, 0, time.UTC)
	nineAM := time.Date(2026, 8, 25, 9, 0, 0, 0, time.UTC) // Tuesday
	turns := []*models.Turn{
		turnAt("u1", nineAM, models.TurnStatusCompleted, 10*time.Minute),
		turnAt("u2", nineAM.Add(20*time.Minute), models.TurnStatusCompleted, 10*time.Minute),
		turnAt("u3", nineAM.Add(5*time.Hour), models.TurnStatusCompleted, 10*time.Minute),
	}

	usage := PeakUsageTimes(turns, now, 30)
	require.NotNil(t, usage.PeakHour)
	require.Equal(t, 9, usage.PeakHour.Hour)
	require.Equal(t, "09:00", usage.PeakHour.HourLabel)
	require.Equal(t, 2, usage.PeakHour.TurnCount)

	require.NotNil(t, usage.PeakDay)
	require.Equal(t, int(time.Tuesday), usage.PeakDay.DayOfWeek)
	require.Equal(t, "Tuesday", usage.PeakDay.DayName)
	require.Equal(t, 3, usage.PeakDay.TurnCount)

	require.Equal(t, 30, usage.AnalysisPeriod.TotalDays)
}

func TestPeakUsageTimesEmpty(t *testing.T) {
	t.Parallel()

	usage := PeakUsageTimes(nil, time.Now(), 30)
	require.Nil(t, usage.PeakHour)
	require.Nil(t, usage.PeakDay)
	require.Empty(t, usage.HourlyDistribution)
}

func TestUserTrends(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)
	turns := []*models.Turn{
		turnAt("u1", now.Add(-2*time.Hour), models.TurnStatusCompleted, 30*time.Minute),
		turnAt("u1", now.AddDate(0, 0, -1), models.TurnStatusCompleted, 60*time.Minute),
		turnAt("u1", now.AddDate(0, 0, -2), models.TurnStatusSkipped, 0),
	}

	trend := UserTrends("u1", turns, now, 7)
	require.Equal(t, "u1", trend.UserID)
	require.Equal(t, 3, trend.Summary.TotalTurns)
	require.Equal(t, 2, trend.Summary.CompletedTurns)
	require.Equal(t, 1, trend.Summary.SkippedTurns)
	// Completed turns only: (30 + 60) / 2 minutes.
	require.Equal(t, 45.0, trend.Summary.AverageResponseTime)

	// 8 calendar days inclusive of both ends.
	require.Len(t, trend.DailyActivity, 8)
	require.NotEmpty(t, trend.WeeklyTrends)
	require.NotEmpty(t, trend.CompletionRates)
	require.NotEmpty(t, trend.DurationTrends)
}

func TestCompletionRatesByISOWeek(t *testing.T) {
	t.Parallel()

	week1 := time.Date(2026, 8, 18, 10, 0, 0, 0, time.UTC)
	week2 := time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)
	turns := []*models.Turn{
		turnAt("u1", week1, models.TurnStatusCompleted, time.Minute),
		turnAt("u1", week1.Add(time.Hour), models.TurnStatusSkipped, 0),
		turnAt("u1", week2, models.TurnStatusCompleted, time.Minute),
	}

	rates := completionRates(turns)
	require.Len(t, rates, 2)
	require.Equal(t, "2026-W34", rates[0].Week)
	require.Equal(t, 50.0, rates[0].CompletionRate)
	require.Equal(t, "2026-W35", rates[1].Week)
	require.Equal(t, 100.0, rates[1].CompletionRate)
}

func TestMembershipTrends(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)
	members := []*models.Member{
		{UserID: "u1", IsActive: true, JoinedAt: now.AddDate(0, -1, 0).Unix()},
		{UserID: "u2", IsActive: true, JoinedAt: now.Add(-time.Hour).Unix()},
		{UserID: "gone", IsActive: false, JoinedAt: now.AddDate(0, -1, 0).Unix()},
	}
	turns := []*models.Turn{
		turnAt("u1", now.Add(-time.Hour), models.TurnStatusCompleted, time.Minute),
	}

	trends := MembershipTrends(members, turns, now, 2)
	require.Len(t, trends, 2)

	latest := trends[1]
	require.Equal(t, 2, latest.TotalMembers) // inactive member excluded
	require.Equal(t, 1, latest.ActiveMembers)
	require.Equal(t, 50.0, latest.EngagementRate)

	// The prior week had no turns.
	require.Equal(t, 0, trends[0].ActiveMembers)
	require.Equal(t, 0.0, trends[0].EngagementRate)
}

func TestTurnsBetweenHalfOpen(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 7)
	turns := []*models.Turn{
		turnAt("a", start, models.TurnStatusCompleted, time.Minute),                   // included
		turnAt("b", end.Add(-time.Nanosecond), models.TurnStatusCompleted, time.Minute), // included
		turnAt("c", end, models.TurnStatusCompleted, time.Minute),                     // excluded
		turnAt("d", start.Add(-time.Nanosecond), models.TurnStatusCompleted, time.Minute), // excluded
	}

	got := turnsBetween(turns, start, end)
	require.Len(t, got, 2)
}
