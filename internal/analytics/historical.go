package analytics

import (
	"fmt"
	"sort"
	"time"

	"github.com/mmynk/roundtable/internal/models"
)

// WeekActivity is one weekly rollup row.
type WeekActivity struct {
	WeekStart          string  `json:"week_start"`
	WeekEnd            string  `json:"week_end"`
	TotalTurns         int     `json:"total_turns"`
	CompletedTurns     int     `json:"completed_turns"`
	SkippedTurns       int     `json:"skipped_turns"`
	ActiveTurns        int     `json:"active_turns"`
	AverageDuration    float64 `json:"average_duration"`
	UniqueParticipants int     `json:"unique_participants"`
}

// MonthActivity is one monthly rollup row.
type MonthActivity struct {
	Month              string  `json:"month"`
	MonthName          string  `json:"month_name"`
	TotalTurns         int     `json:"total_turns"`
	CompletedTurns     int     `json:"completed_turns"`
	SkippedTurns       int     `json:"skipped_turns"`
	ActiveTurns        int     `json:"active_turns"`
	AverageDuration    float64 `json:"average_duration"`
	TotalDuration      float64 `json:"total_duration"`
	UniqueParticipants int     `json:"unique_participants"`
}

// HourBucket is turn volume for one hour of day (0-23).
type HourBucket struct {
	Hour            int     `json:"hour"`
	HourLabel       string  `json:"hour_label"`
	TurnCount       int     `json:"turn_count"`
	AverageDuration float64 `json:"average_duration"`
}

// DayBucket is turn volume for one day of week (0=Sunday..6=Saturday).
type DayBucket struct {
	DayOfWeek       int     `json:"day_of_week"`
	DayName         string  `json:"day_name"`
	TurnCount       int     `json:"turn_count"`
	AverageDuration float64 `json:"average_duration"`
}

// AnalysisPeriod describes the window a peak-usage report covers.
type AnalysisPeriod struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	TotalDays int    `json:"total_days"`
}

// PeakUsage is the peak-usage analysis for a group.
type PeakUsage struct {
	HourlyDistribution []HourBucket   `json:"hourly_distribution"`
	DailyDistribution  []DayBucket    `json:"daily_distribution"`
	PeakHour           *HourBucket    `json:"peak_hour"`
	PeakDay            *DayBucket     `json:"peak_day"`
	AnalysisPeriod     AnalysisPeriod `json:"analysis_period"`
}

// DailyActivity is one day of a user's trend series.
type DailyActivity struct {
	Date            string  `json:"date"`
	Turns           int     `json:"turns"`
	Completed       int     `json:"completed"`
	Skipped         int     `json:"skipped"`
	AverageDuration float64 `json:"average_duration"`
}

// WeeklyTrend is one week of a user's trend series.
type WeeklyTrend struct {
	WeekStart       string  `json:"week_start"`
	WeekEnd         string  `json:"week_end"`
	Turns           int     `json:"turns"`
	Completed       int     `json:"completed"`
	Skipped         int     `json:"skipped"`
	AverageDuration float64 `json:"average_duration"`
}

// CompletionRate is a per-ISO-week completion ratio.
type CompletionRate struct {
	Week           string  `json:"week"`
	CompletionRate float64 `json:"completion_rate"`
	TotalTurns     int     `json:"total_turns"`
	CompletedTurns int     `json:"completed_turns"`
}

// DurationTrend is a per-ISO-week duration rollup.
type DurationTrend struct {
	Week            string  `json:"week"`
	AverageDuration float64 `json:"average_duration"`
	TotalDuration   float64 `json:"total_duration"`
	TurnCount       int     `json:"turn_count"`
}

// TrendSummary totals a user's window.
type TrendSummary struct {
	TotalTurns          int     `json:"total_turns"`
	CompletedTurns      int     `json:"completed_turns"`
	SkippedTurns        int     `json:"skipped_turns"`
	AverageResponseTime float64 `json:"average_response_time"` // minutes
	PeriodStart         string  `json:"period_start"`
	PeriodEnd           string  `json:"period_end"`
}

// TrendData is the per-user activity trend report.
type TrendData struct {
	UserID          string           `json:"user_id"`
	DailyActivity   []DailyActivity  `json:"daily_activity"`
	WeeklyTrends    []WeeklyTrend    `json:"weekly_trends"`
	CompletionRates []CompletionRate `json:"completion_rates"`
	DurationTrends  []DurationTrend  `json:"duration_trends"`
	Summary         TrendSummary     `json:"summary"`
}

// MembershipWeek is one row of the membership trend series.
type MembershipWeek struct {
	WeekStart      string  `json:"week_start"`
	WeekEnd        string  `json:"week_end"`
	TotalMembers   int     `json:"total_members"`
	ActiveMembers  int     `json:"active_members"`
	EngagementRate float64 `json:"engagement_rate"`
}

var dayNames = [7]string{"Sunday", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday"}

// WeeklyActivity produces rollups for the most recent weeks, oldest
// first. The current (possibly partial) week is included.
func WeeklyActivity(turns []*models.Turn, now time.Time, weeks int) []WeekActivity {
	out := make([]WeekActivity, 0, weeks)
	for i := weeks - 1; i >= 0; i-- {
		weekStart := startOfWeek(now.AddDate(0, 0, -7*i))
		weekEnd := weekStart.AddDate(0, 0, 7)
		bucket := turnsBetween(turns, weekStart, weekEnd)

		row := WeekActivity{
			WeekStart:          weekStart.Format(time.DateOnly),
			WeekEnd:            weekEnd.AddDate(0, 0, -1).Format(time.DateOnly),
			TotalTurns:         len(bucket),
			AverageDuration:    averageDuration(bucket),
			UniqueParticipants: uniqueParticipants(bucket),
		}
		for _, t := range bucket {
			switch t.Status {
			case models.TurnStatusCompleted:
				row.CompletedTurns++
			case models.TurnStatusSkipped:
				row.SkippedTurns++
			case models.TurnStatusActive:
				row.ActiveTurns++
			}
		}
		out = append(out, row)
	}
	return out
}

// MonthlyActivity produces rollups for the most recent calendar months,
// oldest first.
func MonthlyActivity(turns []*models.Turn, now time.Time, months int) []MonthActivity {
	out := make([]MonthActivity, 0, months)
	for i := months - 1; i >= 0; i-- {
		ref := now.AddDate(0, -i, 0)
		monthStart := time.Date(ref.Year(), ref.Month(), 1, 0, 0, 0, 0, ref.Location())
		monthEnd := monthStart.AddDate(0, 1, 0)
		bucket := turnsBetween(turns, monthStart, monthEnd)

		row := MonthActivity{
			Month:              monthStart.Format("2006-01"),
			MonthName:          monthStart.Format("January 2006"),
			TotalTurns:         len(bucket),
			AverageDuration:    averageDuration(bucket),
			TotalDuration:      totalDuration(bucket),
			UniqueParticipants: uniqueParticipants(bucket),
		}
		for _, t := range bucket {
			switch t.Status {
			case models.TurnStatusCompleted:
				row.CompletedTurns++
			case models.TurnStatusSkipped:
				row.SkippedTurns++
			case models.TurnStatusActive:
				row.ActiveTurns++
			}
		}
		out = append(out, row)
	}
	return out
}

// PeakUsageTimes buckets the window's turns by hour of day and day of
// week and reports the single busiest of each.
func PeakUsageTimes(turns []*models.Turn, now time.Time, days int) *PeakUsage {
	startDate := now.AddDate(0, 0, -days)
	window := turnsBetween(turns, startDate, now.Add(time.Second))

	byHour := make(map[int][]*models.Turn)
	byDay := make(map[int][]*models.Turn)
	for _, t := range window {
		byHour[t.StartedAt.Hour()] = append(byHour[t.StartedAt.Hour()], t)
		dow := int(t.StartedAt.Weekday())
		byDay[dow] = append(byDay[dow], t)
	}

	var hourly []HourBucket
	for hour := 0; hour < 24; hour++ {
		bucket, ok := byHour[hour]
		if !ok {
			continue
		}
		hourly = append(hourly, HourBucket{
			Hour:            hour,
			HourLabel:       fmt.Sprintf("%02d:00", hour),
			TurnCount:       len(bucket),
			AverageDuration: averageDuration(bucket),
		})
	}

	var daily []DayBucket
	for day := 0; day < 7; day++ {
		bucket, ok := byDay[day]
		if !ok {
			continue
		}
		daily = append(daily, DayBucket{
			DayOfWeek:       day,
			DayName:         dayNames[day],
			TurnCount:       len(bucket),
			AverageDuration: averageDuration(bucket),
		})
	}

	usage := &PeakUsage{
		HourlyDistribution: hourly,
		DailyDistribution:  daily,
		AnalysisPeriod: AnalysisPeriod{
			StartDate: startDate.Format(time.DateOnly),
			EndDate:   now.Format(time.DateOnly),
			TotalDays: days,
		},
	}
	for i := range hourly {
		if usage.PeakHour == nil || hourly[i].TurnCount > usage.PeakHour.TurnCount {
			usage.PeakHour = &hourly[i]
		}
	}
	for i := range daily {
		if usage.PeakDay == nil || daily[i].TurnCount > usage.PeakDay.TurnCount {
			usage.PeakDay = &daily[i]
		}
	}
	return usage
}

// UserTrends builds a user's daily and weekly activity series over the
// requested day window, with completion-rate and duration trends keyed
// by ISO week.
func UserTrends(userID string, turns []*models.Turn, now time.Time, days int) *TrendData {
	periodStart := now.AddDate(0, 0, -days)
	window := turnsBetween(turns, periodStart, now.Add(time.Second))

	trend := &TrendData{
		UserID:          userID,
		DailyActivity:   dailyActivity(window, periodStart, now),
		WeeklyTrends:    weeklyTrends(window, periodStart, now),
		CompletionRates: completionRates(window),
		DurationTrends:  durationTrends(window),
	}

	trend.Summary = TrendSummary{
		TotalTurns:          len(window),
		AverageResponseTime: averageResponseMinutes(window),
		PeriodStart:         periodStart.Format(time.DateOnly),
		PeriodEnd:           now.Format(time.DateOnly),
	}
	for _, t := range window {
		switch t.Status {
		case models.TurnStatusCompleted:
			trend.Summary.CompletedTurns++
		case models.TurnStatusSkipped:
			trend.Summary.SkippedTurns++
		}
	}
	return trend
}

// MembershipTrends reports active-vs-total members per week, oldest
// first. A member counts as active in a week when they started at least
// one turn in it; total counts members enrolled by week end.
func MembershipTrends(members []*models.Member, turns []*models.Turn, now time.Time, weeks int) []MembershipWeek {
	out := make([]MembershipWeek, 0, weeks)
	for i := weeks - 1; i >= 0; i-- {
		weekStart := startOfWeek(now.AddDate(0, 0, -7*i))
		weekEnd := weekStart.AddDate(0, 0, 7)

		active := uniqueParticipants(turnsBetween(turns, weekStart, weekEnd))
		var total int
		for _, m := range members {
			if m.IsActive && m.JoinedAt <= weekEnd.Unix() {
				total++
			}
		}

		row := MembershipWeek{
			WeekStart:     weekStart.Format(time.DateOnly),
			WeekEnd:       weekEnd.AddDate(0, 0, -1).Format(time.DateOnly),
			TotalMembers:  total,
			ActiveMembers: active,
		}
		if total > 0 {
			row.EngagementRate = round2(float64(active) / float64(total) * 100)
		}
		out = append(out, row)
	}
	return out
}

func dailyActivity(turns []*models.Turn, start, end time.Time) []DailyActivity {
	var out []DailyActivity
	for day := truncateDay(start); !day.After(end); day = day.AddDate(0, 0, 1) {
		bucket := turnsBetween(turns, day, day.AddDate(0, 0, 1))
		row := DailyActivity{
			Date:            day.Format(time.DateOnly),
			Turns:           len(bucket),
			AverageDuration: averageDuration(bucket),
		}
		for _, t := range bucket {
			switch t.Status {
			case models.TurnStatusCompleted:
				row.Completed++
			case models.TurnStatusSkipped:
				row.Skipped++
			}
		}
		out = append(out, row)
	}
	return out
}

func weeklyTrends(turns []*models.Turn, start, end time.Time) []WeeklyTrend {
	var out []WeeklyTrend
	for week := startOfWeek(start); !week.After(end); week = week.AddDate(0, 0, 7) {
		weekEnd := week.AddDate(0, 0, 7)
		bucket := turnsBetween(turns, week, weekEnd)
		row := WeeklyTrend{
			WeekStart:       week.Format(time.DateOnly),
			WeekEnd:         weekEnd.AddDate(0, 0, -1).Format(time.DateOnly),
			Turns:           len(bucket),
			AverageDuration: averageDuration(bucket),
		}
		for _, t := range bucket {
			switch t.Status {
			case models.TurnStatusCompleted:
				row.Completed++
			case models.TurnStatusSkipped:
				row.Skipped++
			}
		}
		out = append(out, row)
	}
	return out
}

func completionRates(turns []*models.Turn) []CompletionRate {
	byWeek := turnsByISOWeek(turns)
	out := make([]CompletionRate, 0, len(byWeek.keys))
	for _, week := range byWeek.keys {
		var completed, total int
		for _, t := range byWeek.buckets[week] {
			switch t.Status {
			case models.TurnStatusCompleted:
				completed++
				total++
			case models.TurnStatusSkipped:
				total++
			}
		}
		row := CompletionRate{Week: week, TotalTurns: total, CompletedTurns: completed}
		if total > 0 {
			row.CompletionRate = round2(float64(completed) / float64(total) * 100)
		}
		out = append(out, row)
	}
	return out
}

func durationTrends(turns []*models.Turn) []DurationTrend {
	byWeek := turnsByISOWeek(turns)
	out := make([]DurationTrend, 0, len(byWeek.keys))
	for _, week := range byWeek.keys {
		bucket := byWeek.buckets[week]
		out = append(out, DurationTrend{
			Week:            week,
			AverageDuration: averageDuration(bucket),
			TotalDuration:   totalDuration(bucket),
			TurnCount:       len(bucket),
		})
	}
	return out
}

type isoWeekBuckets struct {
	keys    []string
	buckets map[string][]*models.Turn
}

func turnsByISOWeek(turns []*models.Turn) isoWeekBuckets {
	b := isoWeekBuckets{buckets: make(map[string][]*models.Turn)}
	for _, t := range turns {
		year, week := t.StartedAt.ISOWeek()
		key := fmt.Sprintf("%d-W%02d", year, week)
		if _, ok := b.buckets[key]; !ok {
			b.keys = append(b.keys, key)
		}
		b.buckets[key] = append(b.buckets[key], t)
	}
	sort.Strings(b.keys)
	return b
}

// turnsBetween selects turns started in [start, end).
func turnsBetween(turns []*models.Turn, start, end time.Time) []*models.Turn {
	var out []*models.Turn
	for _, t := range turns {
		if t.StartedAt.Before(start) || !t.StartedAt.Before(end) {
			continue
		}
		out = append(out, t)
	}
	return out
}

func averageDuration(turns []*models.Turn) float64 {
	var sum float64
	var count int
	for _, t := range turns {
		if d, ok := t.Duration(); ok {
			sum += d.Seconds()
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return round2(sum / float64(count))
}

func totalDuration(turns []*models.Turn) float64 {
	var sum float64
	for _, t := range turns {
		if d, ok := t.Duration(); ok {
			sum += d.Seconds()
		}
	}
	return sum
}

// averageResponseMinutes is the mean completed-turn length in minutes.
func averageResponseMinutes(turns []*models.Turn) float64 {
	var sum float64
	var count int
	for _, t := range turns {
		if t.Status != models.TurnStatusCompleted {
			continue
		}
		if d, ok := t.Duration(); ok {
			sum += d.Minutes()
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return round2(sum / float64(count))
}

func uniqueParticipants(turns []*models.Turn) int {
	seen := make(map[string]struct{})
	for _, t := range turns {
		seen[t.UserID] = struct{}{}
	}
	return len(seen)
}

// startOfWeek returns midnight Monday of t's week.
func startOfWeek(t time.Time) time.Time {
	day := truncateDay(t)
	offset := (int(day.Weekday()) + 6) % 7 // Monday = 0
	return day.AddDate(0, 0, -offset)
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
