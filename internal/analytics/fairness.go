package analytics

import (
	"math"
	"time"

	"github.com/mmynk/roundtable/internal/models"
)

// imbalanceThreshold is the absolute deviation (in percent of the
// expected share) beyond which a member counts as imbalanced.
const imbalanceThreshold = 30.0

// MemberTurnCount aggregates one active member's turn totals.
type MemberTurnCount struct {
	UserID         string  `json:"user_id"`
	Name           string  `json:"name"`
	TotalTurns     int     `json:"total_turns"`
	CompletedTurns int     `json:"completed_turns"`
	SkippedTurns   int     `json:"skipped_turns"`
	CompletionRate float64 `json:"completion_rate"`
}

// MemberShare is one row of the per-member distribution breakdown.
type MemberShare struct {
	MemberTurnCount
	SharePercentage     float64 `json:"share_percentage"`
	DeviationPercentage float64 `json:"deviation_percentage"`
	ExpectedTurns       float64 `json:"expected_turns"`
}

// ImbalancedMember flags a member whose share deviates more than the
// imbalance threshold from the expected even split.
type ImbalancedMember struct {
	UserID              string  `json:"user_id"`
	Name                string  `json:"name"`
	TotalTurns          int     `json:"total_turns"`
	ExpectedTurns       float64 `json:"expected_turns"`
	DeviationPercentage float64 `json:"deviation_percentage"`
	Type                string  `json:"type"`     // overshare | undershare
	Severity            string  `json:"severity"` // severe | high | moderate | low
}

// FairnessMetrics is the fairness report for a group.
type FairnessMetrics struct {
	FairnessScore        float64            `json:"fairness_score"`
	DistributionVariance float64            `json:"distribution_variance"`
	GiniCoefficient      float64            `json:"gini_coefficient"`
	MemberDistribution   []MemberShare      `json:"member_distribution"`
	ImbalancedMembers    []ImbalancedMember `json:"imbalanced_members"`
	TotalMembers         int                `json:"total_members"`
	CalculatedAt         time.Time          `json:"calculated_at"`
}

// IsBalanced reports whether the distribution is acceptably even.
func (f *FairnessMetrics) IsBalanced() bool {
	return f.FairnessScore >= 0.7
}

// FairnessLevel maps the score onto a coarse label.
func (f *FairnessMetrics) FairnessLevel() string {
	switch {
	case f.FairnessScore >= 0.9:
		return "excellent"
	case f.FairnessScore >= 0.7:
		return "good"
	case f.FairnessScore >= 0.5:
		return "fair"
	case f.FairnessScore >= 0.3:
		return "poor"
	default:
		return "very_poor"
	}
}

// CountMemberTurns tallies turn counts per active member. Total counts
// every turn regardless of status; completed and skipped are broken out
// for the strategy-facing ratios.
func CountMemberTurns(members []*models.Member, turns []*models.Turn) []MemberTurnCount {
	return countMemberTurns(members, turns, nil, nil)
}

// CountMemberTurnsBetween restricts the tally to turns started within
// [start, end].
func CountMemberTurnsBetween(members []*models.Member, turns []*models.Turn, start, end time.Time) []MemberTurnCount {
	return countMemberTurns(members, turns, &start, &end)
}

func countMemberTurns(members []*models.Member, turns []*models.Turn, start, end *time.Time) []MemberTurnCount {
	var counts []MemberTurnCount
	for _, m := range members {
		if !m.IsActive {
			continue
		}
		c := MemberTurnCount{UserID: m.UserID, Name: m.DisplayName}
		for _, t := range turns {
			if t.UserID != m.UserID {
				continue
			}
			if start != nil && t.StartedAt.Before(*start) {
				continue
			}
			if end != nil && t.StartedAt.After(*end) {
				continue
			}
			c.TotalTurns++
			switch t.Status {
			case models.TurnStatusCompleted:
				c.CompletedTurns++
			case models.TurnStatusSkipped:
				c.SkippedTurns++
			}
		}
		if c.TotalTurns > 0 {
			c.CompletionRate = round3(float64(c.CompletedTurns) / float64(c.TotalTurns))
		}
		counts = append(counts, c)
	}
	return counts
}

// ComputeFairness builds the full fairness report from per-member
// counts. An empty member set or a zero total scores perfect fairness.
func ComputeFairness(counts []MemberTurnCount, now time.Time) *FairnessMetrics {
	totals := make([]float64, len(counts))
	for i, c := range counts {
		totals[i] = float64(c.TotalTurns)
	}

	distribution := memberDistribution(counts)
	return &FairnessMetrics{
		FairnessScore:        round3(FairnessScore(totals)),
		DistributionVariance: round3(populationVariance(totals)),
		GiniCoefficient:      round3(Gini(totals)),
		MemberDistribution:   distribution,
		ImbalancedMembers:    imbalancedMembers(distribution),
		TotalMembers:         len(counts),
		CalculatedAt:         now,
	}
}

// FairnessScore maps the coefficient of variation of per-member totals
// onto [0, 1] with exponential decay: exp(-2 * CV). A lower CV means a
// more even distribution and a higher score. Empty input or a zero total
// is perfectly fair.
func FairnessScore(totals []float64) float64 {
	if len(totals) == 0 {
		return 1.0
	}
	var sum float64
	for _, v := range totals {
		sum += v
	}
	if sum == 0 {
		return 1.0
	}
	mean := sum / float64(len(totals))
	cv := math.Sqrt(populationVariance(totals)) / mean
	return math.Max(0, math.Exp(-2*cv))
}

// Gini computes the Gini coefficient of the totals: 0 for perfect
// equality, approaching 1 for maximum inequality. Empty input or a zero
// total yields 0.
func Gini(totals []float64) float64 {
	n := len(totals)
	if n == 0 {
		return 0
	}
	var sum, total float64
	for _, v := range totals {
		total += v
	}
	if total == 0 {
		return 0
	}
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			sum += math.Abs(totals[i] - totals[j])
		}
	}
	mean := total / float64(n)
	return sum / (2 * float64(n) * float64(n) * mean)
}

// populationVariance divides by N, not N-1; 0 when count <= 1.
func populationVariance(values []float64) float64 {
	if len(values) <= 1 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))
	var sq float64
	for _, v := range values {
		sq += (v - mean) * (v - mean)
	}
	return sq / float64(len(values))
}

func memberDistribution(counts []MemberTurnCount) []MemberShare {
	var grandTotal int
	for _, c := range counts {
		grandTotal += c.TotalTurns
	}
	var expected float64
	if len(counts) > 0 {
		expected = float64(grandTotal) / float64(len(counts))
	}

	shares := make([]MemberShare, len(counts))
	for i, c := range counts {
		share := MemberShare{MemberTurnCount: c, ExpectedTurns: round3(expected)}
		if grandTotal > 0 {
			share.SharePercentage = round3(float64(c.TotalTurns) / float64(grandTotal) * 100)
		}
		if expected > 0 {
			share.DeviationPercentage = round3((float64(c.TotalTurns) - expected) / expected * 100)
		}
		shares[i] = share
	}
	return shares
}

func imbalancedMembers(distribution []MemberShare) []ImbalancedMember {
	var out []ImbalancedMember
	for _, s := range distribution {
		deviation := math.Abs(s.DeviationPercentage)
		if deviation <= imbalanceThreshold {
			continue
		}
		kind := "undershare"
		if s.DeviationPercentage > 0 {
			kind = "overshare"
		}
		out = append(out, ImbalancedMember{
			UserID:              s.UserID,
			Name:                s.Name,
			TotalTurns:          s.TotalTurns,
			ExpectedTurns:       s.ExpectedTurns,
			DeviationPercentage: s.DeviationPercentage,
			Type:                kind,
			Severity:            imbalanceSeverity(deviation),
		})
	}
	return out
}

func imbalanceSeverity(deviation float64) string {
	switch {
	case deviation >= 80:
		return "severe"
	case deviation >= 50:
		return "high"
	case deviation >= 30:
		return "moderate"
	default:
		return "low"
	}
}
