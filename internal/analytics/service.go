// Package analytics computes fairness, percentile, and historical
// activity metrics over turn history. Calculators are pure functions;
// Service composes them over the store with read-through TTL caching.
package analytics

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/mmynk/roundtable/internal/cache"
	"github.com/mmynk/roundtable/internal/models"
	"github.com/mmynk/roundtable/internal/storage"
)

const (
	// fairnessTTL bounds staleness of fairness results; the Gini pass is
	// O(n^2) in member count so recomputation is not free.
	fairnessTTL = 30 * time.Minute

	// aggregateTTL covers the historical rollups.
	aggregateTTL = time.Hour

	// bundleTTL covers composed reports (comprehensive, insights,
	// performance).
	bundleTTL = 30 * time.Minute
)

// DefaultPercentiles is the standard percentile set for group reports.
var DefaultPercentiles = []int{50, 75, 90, 95, 99}

// GroupAnalytics is the composed per-group analytics bundle.
type GroupAnalytics struct {
	GroupID                string           `json:"group_id"`
	DurationPercentiles    map[int]float64  `json:"duration_percentiles"`
	Fairness               *FairnessMetrics `json:"fairness_metrics"`
	WeeklyActivity         []WeekActivity   `json:"weekly_activity"`
	MembershipTrends       []MembershipWeek `json:"membership_trends"`
	PeakUsage              *PeakUsage       `json:"peak_usage_times"`
	AverageSessionDuration float64          `json:"average_session_duration"`
	TotalTurns             int              `json:"total_turns"`
	ActiveTurns            int              `json:"active_turns"`
	GeneratedAt            time.Time        `json:"generated_at"`
}

// Insight is one threshold-triggered observation about a group.
type Insight struct {
	Type        string         `json:"type"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Severity    string         `json:"severity"`
	Data        map[string]any `json:"data"`
}

// InsightReport wraps the generated insights.
type InsightReport struct {
	Insights     []Insight `json:"insights"`
	InsightCount int       `json:"insight_count"`
	GeneratedAt  time.Time `json:"generated_at"`
}

// Performance is the composite efficiency/fairness/engagement view.
type Performance struct {
	Efficiency   EfficiencyMetrics `json:"efficiency"`
	Fairness     FairnessSummary   `json:"fairness"`
	Engagement   EngagementMetrics `json:"engagement"`
	CalculatedAt time.Time         `json:"calculated_at"`
}

// EfficiencyMetrics summarizes turn durations and completion.
type EfficiencyMetrics struct {
	AvgTurnDuration    float64 `json:"avg_turn_duration"`
	MedianTurnDuration float64 `json:"median_turn_duration"`
	P95TurnDuration    float64 `json:"p95_turn_duration"`
	CompletionRate     float64 `json:"completion_rate"`
}

// FairnessSummary condenses the fairness report.
type FairnessSummary struct {
	FairnessScore       float64 `json:"fairness_score"`
	FairnessLevel       string  `json:"fairness_level"`
	DistributionBalance bool    `json:"distribution_balance"`
}

// EngagementMetrics summarizes member participation.
type EngagementMetrics struct {
	AvgWeeklyTurns     float64 `json:"avg_weekly_turns"`
	ActiveMembersRatio float64 `json:"active_members_ratio"`
	ConsistencyScore   float64 `json:"consistency_score"`
}

// Service orchestrates the calculators over the store with read-through
// caching. All methods are defensive: a group or user with zero history
// produces neutral/zero-valued results, never an error.
type Service struct {
	store storage.Store
	cache *cache.Cache
	now   func() time.Time
}

// NewService creates the analytics service. cache may not be nil; pass a
// fresh cache.New() when no shared instance exists.
func NewService(store storage.Store, c *cache.Cache) *Service {
	return &Service{store: store, cache: c, now: time.Now}
}

// GroupFairness computes (or returns cached) fairness metrics for the
// group's active members.
func (s *Service) GroupFairness(ctx context.Context, groupID string) (*FairnessMetrics, error) {
	key := fmt.Sprintf("analytics:fairness:group:%s:", groupID)
	return remember(s.cache, key, fairnessTTL, func() (*FairnessMetrics, error) {
		group, err := s.store.GetGroupState(ctx, groupID)
		if err != nil {
			return nil, err
		}
		return ComputeFairness(CountMemberTurns(group.Members, group.Turns), s.now()), nil
	})
}

// GroupPercentiles computes duration percentiles for a group's terminal
// turns, optionally restricted to a start/end window.
func (s *Service) GroupPercentiles(ctx context.Context, groupID string, percentiles []int, start, end *time.Time) (map[int]float64, error) {
	if len(percentiles) == 0 {
		percentiles = DefaultPercentiles
	}
	key := fmt.Sprintf("analytics:percentiles:group:%s:%s_%s", groupID, pctKey(percentiles), rangeKey(start, end))
	return remember(s.cache, key, aggregateTTL, func() (map[int]float64, error) {
		group, err := s.store.GetGroupState(ctx, groupID)
		if err != nil {
			return nil, err
		}
		return Percentiles(Durations(group.Turns, start, end), percentiles), nil
	})
}

// UserPercentiles computes duration percentiles across all of a user's
// turns.
func (s *Service) UserPercentiles(ctx context.Context, userID string, percentiles []int, start, end *time.Time) (map[int]float64, error) {
	if len(percentiles) == 0 {
		percentiles = []int{50, 95, 99}
	}
	key := fmt.Sprintf("analytics:percentiles:user:%s:%s_%s", userID, pctKey(percentiles), rangeKey(start, end))
	return remember(s.cache, key, aggregateTTL, func() (map[int]float64, error) {
		turns, err := s.store.ListTurnsByUser(ctx, userID, 0)
		if err != nil {
			return nil, err
		}
		return Percentiles(Durations(turns, start, end), percentiles), nil
	})
}

// GroupDurationStats returns the detailed duration statistics view.
func (s *Service) GroupDurationStats(ctx context.Context, groupID string, start, end *time.Time) (DurationStats, error) {
	key := fmt.Sprintf("analytics:duration_stats:group:%s:%s", groupID, rangeKey(start, end))
	return remember(s.cache, key, aggregateTTL, func() (DurationStats, error) {
		group, err := s.store.GetGroupState(ctx, groupID)
		if err != nil {
			return DurationStats{}, err
		}
		return Stats(Durations(group.Turns, start, end)), nil
	})
}

// GroupWeeklyActivity returns weekly rollups for the group.
func (s *Service) GroupWeeklyActivity(ctx context.Context, groupID string, weeks int) ([]WeekActivity, error) {
	key := fmt.Sprintf("analytics:weekly_activity:group:%s:weeks:%d", groupID, weeks)
	return remember(s.cache, key, aggregateTTL, func() ([]WeekActivity, error) {
		group, err := s.store.GetGroupState(ctx, groupID)
		if err != nil {
			return nil, err
		}
		return WeeklyActivity(group.Turns, s.now(), weeks), nil
	})
}

// GroupMonthlyActivity returns monthly rollups for the group.
func (s *Service) GroupMonthlyActivity(ctx context.Context, groupID string, months int) ([]MonthActivity, error) {
	key := fmt.Sprintf("analytics:monthly_activity:group:%s:months:%d", groupID, months)
	return remember(s.cache, key, aggregateTTL, func() ([]MonthActivity, error) {
		group, err := s.store.GetGroupState(ctx, groupID)
		if err != nil {
			return nil, err
		}
		return MonthlyActivity(group.Turns, s.now(), months), nil
	})
}

// GroupPeakUsage returns the peak-usage analysis over the day window.
func (s *Service) GroupPeakUsage(ctx context.Context, groupID string, days int) (*PeakUsage, error) {
	key := fmt.Sprintf("analytics:peak_usage:group:%s:days:%d", groupID, days)
	return remember(s.cache, key, aggregateTTL, func() (*PeakUsage, error) {
		group, err := s.store.GetGroupState(ctx, groupID)
		if err != nil {
			return nil, err
		}
		return PeakUsageTimes(group.Turns, s.now(), days), nil
	})
}

// GroupMembershipTrends returns the weekly membership trend series.
func (s *Service) GroupMembershipTrends(ctx context.Context, groupID string, weeks int) ([]MembershipWeek, error) {
	key := fmt.Sprintf("analytics:membership_trends:group:%s:weeks:%d", groupID, weeks)
	return remember(s.cache, key, aggregateTTL, func() ([]MembershipWeek, error) {
		group, err := s.store.GetGroupState(ctx, groupID)
		if err != nil {
			return nil, err
		}
		return MembershipTrends(group.Members, group.Turns, s.now(), weeks), nil
	})
}

// UserTrends returns the per-user trend report over the day window.
func (s *Service) UserTrends(ctx context.Context, userID string, days int) (*TrendData, error) {
	key := fmt.Sprintf("analytics:user_trends:user:%s:days:%d", userID, days)
	return remember(s.cache, key, aggregateTTL, func() (*TrendData, error) {
		turns, err := s.store.ListTurnsByUser(ctx, userID, 0)
		if err != nil {
			return nil, err
		}
		return UserTrends(userID, turns, s.now(), days), nil
	})
}

// GroupAnalytics composes percentiles, fairness, weekly activity,
// membership trends, peak usage, and aggregate turn statistics into one
// bundle.
func (s *Service) GroupAnalytics(ctx context.Context, groupID string, start, end *time.Time) (*GroupAnalytics, error) {
	key := fmt.Sprintf("analytics:comprehensive:group:%s:%s", groupID, rangeKey(start, end))
	return remember(s.cache, key, bundleTTL, func() (*GroupAnalytics, error) {
		percentiles, err := s.GroupPercentiles(ctx, groupID, DefaultPercentiles, start, end)
		if err != nil {
			return nil, err
		}
		fairness, err := s.GroupFairness(ctx, groupID)
		if err != nil {
			return nil, err
		}
		weekly, err := s.GroupWeeklyActivity(ctx, groupID, 12)
		if err != nil {
			return nil, err
		}
		membership, err := s.GroupMembershipTrends(ctx, groupID, 12)
		if err != nil {
			return nil, err
		}
		peak, err := s.GroupPeakUsage(ctx, groupID, 30)
		if err != nil {
			return nil, err
		}

		group, err := s.store.GetGroupState(ctx, groupID)
		if err != nil {
			return nil, err
		}
		totalTurns, activeTurns, avgDuration := turnStatistics(group.Turns, start, end)

		return &GroupAnalytics{
			GroupID:                groupID,
			DurationPercentiles:    percentiles,
			Fairness:               fairness,
			WeeklyActivity:         weekly,
			MembershipTrends:       membership,
			PeakUsage:              peak,
			AverageSessionDuration: avgDuration,
			TotalTurns:             totalTurns,
			ActiveTurns:            activeTurns,
			GeneratedAt:            s.now(),
		}, nil
	})
}

// GroupInsights applies threshold rules over the computed metrics to
// flag conditions worth surfacing.
func (s *Service) GroupInsights(ctx context.Context, groupID string) (*InsightReport, error) {
	key := fmt.Sprintf("analytics:insights:group:%s:", groupID)
	return remember(s.cache, key, bundleTTL, func() (*InsightReport, error) {
		fairness, err := s.GroupFairness(ctx, groupID)
		if err != nil {
			return nil, err
		}
		stats, err := s.GroupDurationStats(ctx, groupID, nil, nil)
		if err != nil {
			return nil, err
		}
		peak, err := s.GroupPeakUsage(ctx, groupID, 30)
		if err != nil {
			return nil, err
		}
		weekly, err := s.GroupWeeklyActivity(ctx, groupID, 4)
		if err != nil {
			return nil, err
		}

		var insights []Insight

		if fairness.FairnessScore < 0.5 {
			insights = append(insights, Insight{
				Type:        "fairness_warning",
				Title:       "Uneven Turn Distribution",
				Description: "Some members have significantly more or fewer turns than others.",
				Severity:    "medium",
				Data: map[string]any{
					"fairness_score":     fairness.FairnessScore,
					"imbalanced_members": len(fairness.ImbalancedMembers),
				},
			})
		}

		if stats.Count > 0 && stats.Percentiles[95] > 3600 {
			insights = append(insights, Insight{
				Type:        "duration_alert",
				Title:       "Long Turn Durations Detected",
				Description: "95% of turns exceed 1 hour, which may indicate stuck sessions.",
				Severity:    "high",
				Data: map[string]any{
					"p95_duration": stats.Percentiles[95],
					"avg_duration": stats.Mean,
				},
			})
		}

		if len(weekly) >= 2 {
			previous := weekly[len(weekly)-2]
			current := weekly[len(weekly)-1]
			var percentChange float64
			if previous.TotalTurns > 0 {
				percentChange = float64(current.TotalTurns-previous.TotalTurns) / float64(previous.TotalTurns) * 100
			}
			if percentChange < -50 {
				insights = append(insights, Insight{
					Type:        "activity_decline",
					Title:       "Significant Activity Decline",
					Description: "Turn activity has decreased significantly in the past week.",
					Severity:    "medium",
					Data: map[string]any{
						"percent_change":      round2(percentChange),
						"previous_week_turns": previous.TotalTurns,
						"current_week_turns":  current.TotalTurns,
					},
				})
			} else if percentChange > 100 {
				insights = append(insights, Insight{
					Type:        "activity_surge",
					Title:       "Activity Surge Detected",
					Description: "Turn activity has increased significantly in the past week.",
					Severity:    "info",
					Data: map[string]any{
						"percent_change":      round2(percentChange),
						"previous_week_turns": previous.TotalTurns,
						"current_week_turns":  current.TotalTurns,
					},
				})
			}
		}

		if peak.PeakHour != nil && peak.PeakHour.TurnCount > 10 {
			insights = append(insights, Insight{
				Type:        "peak_usage",
				Title:       "Peak Usage Pattern Identified",
				Description: fmt.Sprintf("Most activity occurs around %s.", peak.PeakHour.HourLabel),
				Severity:    "info",
				Data: map[string]any{
					"peak_hour":       peak.PeakHour.Hour,
					"peak_hour_turns": peak.PeakHour.TurnCount,
				},
			})
		}

		return &InsightReport{
			Insights:     insights,
			InsightCount: len(insights),
			GeneratedAt:  s.now(),
		}, nil
	})
}

// GroupPerformance computes the composite efficiency/fairness/engagement
// view over the most recent four weeks.
func (s *Service) GroupPerformance(ctx context.Context, groupID string) (*Performance, error) {
	key := fmt.Sprintf("analytics:performance:group:%s:", groupID)
	return remember(s.cache, key, bundleTTL, func() (*Performance, error) {
		stats, err := s.GroupDurationStats(ctx, groupID, nil, nil)
		if err != nil {
			return nil, err
		}
		fairness, err := s.GroupFairness(ctx, groupID)
		if err != nil {
			return nil, err
		}
		weekly, err := s.GroupWeeklyActivity(ctx, groupID, 4)
		if err != nil {
			return nil, err
		}
		group, err := s.store.GetGroupState(ctx, groupID)
		if err != nil {
			return nil, err
		}

		var weeklyTotals []float64
		var avgWeeklyTurns, avgCompletionRate float64
		for _, w := range weekly {
			weeklyTotals = append(weeklyTotals, float64(w.TotalTurns))
			avgWeeklyTurns += float64(w.TotalTurns)
			if w.TotalTurns > 0 {
				avgCompletionRate += float64(w.CompletedTurns) / float64(w.TotalTurns) * 100
			}
		}
		if len(weekly) > 0 {
			avgWeeklyTurns /= float64(len(weekly))
			avgCompletionRate /= float64(len(weekly))
		}

		return &Performance{
			Efficiency: EfficiencyMetrics{
				AvgTurnDuration:    stats.Mean,
				MedianTurnDuration: stats.Median,
				P95TurnDuration:    stats.Percentiles[95],
				CompletionRate:     round2(avgCompletionRate),
			},
			Fairness: FairnessSummary{
				FairnessScore:       fairness.FairnessScore,
				FairnessLevel:       fairness.FairnessLevel(),
				DistributionBalance: fairness.IsBalanced(),
			},
			Engagement: EngagementMetrics{
				AvgWeeklyTurns:     round2(avgWeeklyTurns),
				ActiveMembersRatio: activeMembersRatio(group, s.now()),
				ConsistencyScore:   round3(ConsistencyScore(weeklyTotals)),
			},
			CalculatedAt: s.now(),
		}, nil
	})
}

// InvalidateGroup drops every cached analytics entry scoped to the
// group. Scoped, not a global flush: unrelated groups keep their
// entries.
func (s *Service) InvalidateGroup(groupID string) int {
	marker := fmt.Sprintf(":group:%s:", groupID)
	return s.cache.DeleteMatching(func(key string) bool {
		return strings.HasPrefix(key, "analytics:") && strings.Contains(key, marker)
	})
}

// InvalidateUser drops every cached analytics entry scoped to the user.
func (s *Service) InvalidateUser(userID string) int {
	marker := fmt.Sprintf(":user:%s:", userID)
	return s.cache.DeleteMatching(func(key string) bool {
		return strings.HasPrefix(key, "analytics:") && strings.Contains(key, marker)
	})
}

// ConsistencyScore maps the coefficient of variation of weekly turn
// totals onto [0, 1]: max(0, 1 - CV). Fewer than two weeks of data or a
// zero mean scores perfect consistency.
func ConsistencyScore(weeklyTotals []float64) float64 {
	if len(weeklyTotals) < 2 {
		return 1.0
	}
	var sum float64
	for _, v := range weeklyTotals {
		sum += v
	}
	mean := sum / float64(len(weeklyTotals))
	if mean == 0 {
		return 1.0
	}
	cv := math.Sqrt(populationVariance(weeklyTotals)) / mean
	if cv > 1 {
		return 0
	}
	return 1 - cv
}

func activeMembersRatio(group *models.Group, now time.Time) float64 {
	total := len(group.ActiveMembers())
	if total == 0 {
		return 0
	}
	weekAgo := now.AddDate(0, 0, -7)
	active := uniqueParticipants(turnsBetween(group.Turns, weekAgo, now.Add(time.Second)))
	return round3(float64(active) / float64(total))
}

func turnStatistics(turns []*models.Turn, start, end *time.Time) (total, active int, avgDuration float64) {
	var completedDuration float64
	var completedCount int
	for _, t := range turns {
		if start != nil && t.StartedAt.Before(*start) {
			continue
		}
		if end != nil && t.StartedAt.After(*end) {
			continue
		}
		total++
		switch t.Status {
		case models.TurnStatusActive:
			active++
		case models.TurnStatusCompleted:
			if d, ok := t.Duration(); ok {
				completedDuration += d.Seconds()
				completedCount++
			}
		}
	}
	if completedCount > 0 {
		avgDuration = round2(completedDuration / float64(completedCount))
	}
	return total, active, avgDuration
}

func pctKey(percentiles []int) string {
	sorted := make([]int, len(percentiles))
	copy(sorted, percentiles)
	sort.Ints(sorted)
	parts := make([]string, len(sorted))
	for i, p := range sorted {
		parts[i] = fmt.Sprintf("%d", p)
	}
	return strings.Join(parts, ",")
}

func rangeKey(start, end *time.Time) string {
	var s, e string
	if start != nil {
		s = start.Format(time.DateOnly)
	}
	if end != nil {
		e = end.Format(time.DateOnly)
	}
	return s + "_" + e
}

// remember is a typed wrapper over the cache's read-through helper.
func remember[T any](c *cache.Cache, key string, ttl time.Duration, compute func() (T, error)) (T, error) {
	if v, ok := c.Get(key); ok {
		if typed, ok := v.(T); ok {
			return typed, nil
		}
	}
	v, err := compute()
	if err != nil {
		var zero T
		return zero, err
	}
	c.Set(key, v, ttl)
	return v, nil
}
