package strategy

import (
	"time"

	"github.com/mmynk/roundtable/internal/models"
)

// Weighted scores each eligible member on three factors computed from
// their terminal turn history in the group and picks the highest score.
type Weighted struct {
	now func() time.Time
}

var _ Strategy = (*Weighted)(nil)

// NewWeighted creates the weighted assignment strategy.
func NewWeighted() *Weighted {
	return &Weighted{now: time.Now}
}

func (w *Weighted) Name() string { return "weighted" }

func (w *Weighted) Description() string {
	return "Assigns turns based on weighted factors: time since last turn, completion rate, and skip frequency"
}

// DefaultConfig lists the factor weights and the minimum rest period:
//   - time_weight (default 0.4): time since the member's last terminal turn
//   - completion_weight (default 0.3): completed/(completed+skipped) ratio
//   - skip_weight (default 0.3): inverse of the skip ratio
//   - min_hours_since_turn (default 1): members who went more recently
//     than this score zero on the time factor
//
// The three factor weights should sum to roughly 1 but this is not
// enforced.
func (w *Weighted) DefaultConfig() Config {
	return Config{
		"time_weight":          0.4,
		"completion_weight":    0.3,
		"skip_weight":          0.3,
		"min_hours_since_turn": 1.0,
	}
}

// NextUser scores every eligible member and returns the highest. Equal
// scores resolve to the first member encountered in turn_order iteration.
func (w *Weighted) NextUser(group *models.Group, cfg Config) (*models.Member, error) {
	eligible := sortByTurnOrder(eligibleMembers(group, true))
	if len(eligible) == 0 {
		return nil, nil
	}

	var (
		best      *models.Member
		bestScore float64
	)
	for _, m := range eligible {
		score := w.memberScore(m, group.Turns, cfg)
		if best == nil || score > bestScore {
			best = m
			bestScore = score
		}
	}
	return best, nil
}

func (w *Weighted) memberScore(m *models.Member, turns []*models.Turn, cfg Config) float64 {
	var userTurns []*models.Turn
	for _, t := range turns {
		if t.UserID == m.UserID {
			userTurns = append(userTurns, t)
		}
	}

	timeWeight := w.timeWeight(userTurns, cfg.Float("min_hours_since_turn", 1))
	completionWeight := completionWeight(userTurns)
	skipWeight := skipWeight(userTurns)

	return timeWeight*cfg.Float("time_weight", 0.4) +
		completionWeight*cfg.Float("completion_weight", 0.3) +
		skipWeight*cfg.Float("skip_weight", 0.3)
}

// timeWeight rewards members who have waited longest. Hours since the
// last terminal turn are normalized against a 24-hour window; a member
// with no history scores the maximum so newcomers go first.
func (w *Weighted) timeWeight(userTurns []*models.Turn, minHours float64) float64 {
	last := lastTerminalTurn(userTurns)
	if last == nil {
		return 1.0
	}

	hours := w.now().Sub(*last.EndedAt).Hours()
	if hours < minHours {
		return 0.0
	}
	return min(1.0, hours/24.0)
}

// completionWeight is the completed/(completed+skipped) ratio, neutral
// (0.5) without terminal history.
func completionWeight(userTurns []*models.Turn) float64 {
	completed, skipped := terminalCounts(userTurns)
	total := completed + skipped
	if total == 0 {
		return 0.5
	}
	return float64(completed) / float64(total)
}

// skipWeight is 1 minus the skip ratio, neutral (0.5) without terminal
// history.
func skipWeight(userTurns []*models.Turn) float64 {
	completed, skipped := terminalCounts(userTurns)
	total := completed + skipped
	if total == 0 {
		return 0.5
	}
	return 1.0 - float64(skipped)/float64(total)
}

func terminalCounts(turns []*models.Turn) (completed, skipped int) {
	for _, t := range turns {
		switch t.Status {
		case models.TurnStatusCompleted:
			completed++
		case models.TurnStatusSkipped:
			skipped++
		}
	}
	return completed, skipped
}
