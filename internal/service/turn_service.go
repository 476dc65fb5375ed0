// Package service implements the application services: turn lifecycle,
// group management, authentication, and the background expiry scheduler.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mmynk/roundtable/internal/analytics"
	"github.com/mmynk/roundtable/internal/metrics"
	"github.com/mmynk/roundtable/internal/models"
	"github.com/mmynk/roundtable/internal/storage"
	"github.com/mmynk/roundtable/internal/strategy"
)

// maxTurnAge is how long a turn may stay active before the expiry sweep
// force-ends it.
const maxTurnAge = 24 * time.Hour

// expiredNotes is recorded on turns closed by the expiry sweep.
const expiredNotes = "Automatically expired after 24 hours"

// TurnService manages the turn lifecycle: starting turns, the terminal
// transitions (complete, skip, force-end, expire), and the bookkeeping
// each transition triggers (history ring, advisory next user, metrics,
// analytics cache invalidation).
type TurnService struct {
	store       storage.Store
	coordinator *strategy.Coordinator
	analytics   *analytics.Service
	metrics     *metrics.Metrics

	now func() time.Time
}

// NewTurnService creates a turn lifecycle service. analytics and metrics
// may be nil.
func NewTurnService(store storage.Store, coordinator *strategy.Coordinator, analyticsService *analytics.Service, m *metrics.Metrics) *TurnService {
	return &TurnService{
		store:       store,
		coordinator: coordinator,
		analytics:   analyticsService,
		metrics:     m,
		now:         time.Now,
	}
}

// StartTurn begins a turn for the user. Preconditions are checked in
// order: the user must be an active member, the group must be active, no
// other turn may be active, and the assignment strategy must name the
// user (or name nobody, in which case anyone may start).
//
// The no-active-turn check here is advisory; the database enforces it on
// insert, so concurrent starters resolve to exactly one turn.
func (s *TurnService) StartTurn(ctx context.Context, groupID, userID string, metadata map[string]string) (*models.Turn, error) {
	group, err := s.store.GetGroupState(ctx, groupID)
	if err != nil {
		return nil, err
	}

	member := group.Member(userID)
	if member == nil || !member.IsActive {
		return nil, models.ErrNotAMember
	}
	if group.Status != models.GroupStatusActive {
		return nil, models.ErrGroupNotActive
	}
	if group.ActiveTurn() != nil {
		return nil, models.ErrTurnAlreadyActive
	}

	next, err := s.coordinator.NextUser(group)
	if err != nil && !errors.Is(err, models.ErrUnknownStrategy) {
		return nil, fmt.Errorf("failed to evaluate turn strategy: %w", err)
	}
	if err == nil {
		s.metrics.StrategyPick(s.strategyName(group))
	}
	if next != nil && next.UserID != userID {
		return nil, models.ErrNotYourTurn
	}

	turn := &models.Turn{
		GroupID:   groupID,
		UserID:    userID,
		StartedAt: s.now().UTC(),
		Metadata:  metadata,
	}
	if err := s.store.CreateActiveTurn(ctx, turn); err != nil {
		if errors.Is(err, models.ErrTurnAlreadyActive) {
			s.metrics.StartConflict()
		}
		return nil, err
	}

	group.CurrentUserID = userID
	startedAt := turn.StartedAt
	group.LastTurnAt = &startedAt
	if err := s.store.UpdateGroup(ctx, group); err != nil {
		slog.Error("Failed to record turn start on group",
			"group_id", groupID, "turn_id", turn.ID, "error", err)
	}

	s.metrics.TurnStarted()
	s.invalidate(groupID, userID)
	slog.Info("Turn started", "group_id", groupID, "user_id", userID, "turn_id", turn.ID)
	return turn, nil
}

// CompleteTurn marks the user's active turn as completed.
func (s *TurnService) CompleteTurn(ctx context.Context, turnID, userID, notes string, metadata map[string]string) (*models.Turn, error) {
	return s.endOwnTurn(ctx, turnID, userID, models.TurnStatusCompleted, notes, metadata)
}

// SkipTurn marks the user's active turn as skipped. The reason is stored
// in the turn notes and metadata.
func (s *TurnService) SkipTurn(ctx context.Context, turnID, userID, reason string) (*models.Turn, error) {
	metadata := map[string]string{}
	if reason != "" {
		metadata["skip_reason"] = reason
	}
	return s.endOwnTurn(ctx, turnID, userID, models.TurnStatusSkipped, reason, metadata)
}

// ForceEndTurn lets a group admin or the creator terminate someone
// else's stuck turn. The turn is marked expired with the actor recorded
// in metadata.
func (s *TurnService) ForceEndTurn(ctx context.Context, turnID, actorID, reason string) (*models.Turn, error) {
	turn, err := s.store.GetTurn(ctx, turnID)
	if err != nil {
		return nil, err
	}
	group, err := s.store.GetGroup(ctx, turn.GroupID)
	if err != nil {
		return nil, err
	}
	if !group.IsAdmin(actorID) {
		return nil, models.ErrNotAuthorized
	}

	metadata := map[string]string{"force_ended_by": actorID}
	ended, err := s.endTurn(ctx, turn, models.TurnStatusExpired, reason, metadata)
	if err != nil {
		return nil, err
	}
	slog.Info("Turn force-ended",
		"group_id", turn.GroupID, "turn_id", turnID, "actor_id", actorID)
	return ended, nil
}

// ExpireOldTurns closes every active turn older than 24 hours, applying
// the same bookkeeping a normal terminal transition does. It returns the
// number of turns expired and is safe to run repeatedly; a sweep that
// finds nothing does nothing.
func (s *TurnService) ExpireOldTurns(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-maxTurnAge)
	stale, err := s.store.FindStaleActiveTurns(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to find stale turns: %w", err)
	}

	expired := 0
	for _, turn := range stale {
		if _, err := s.endTurn(ctx, turn, models.TurnStatusExpired, expiredNotes, nil); err != nil {
			// A concurrent transition already closed it; not our problem.
			if errors.Is(err, models.ErrTurnNotActive) {
				continue
			}
			return expired, fmt.Errorf("failed to expire turn %s: %w", turn.ID, err)
		}
		expired++
	}

	s.metrics.ExpirySweep()
	if expired > 0 {
		slog.Info("Expired stale turns", "count", expired)
	}
	return expired, nil
}

// ActiveTurn returns the group's active turn, or nil when none exists.
func (s *TurnService) ActiveTurn(ctx context.Context, groupID string) (*models.Turn, error) {
	if _, err := s.store.GetGroup(ctx, groupID); err != nil {
		return nil, err
	}
	return s.store.FindActiveTurnByGroup(ctx, groupID)
}

// GroupHistory returns the group's turns newest first.
func (s *TurnService) GroupHistory(ctx context.Context, groupID string, limit int) ([]*models.Turn, error) {
	if _, err := s.store.GetGroup(ctx, groupID); err != nil {
		return nil, err
	}
	return s.store.ListTurnsByGroup(ctx, groupID, limit)
}

// UserHistory returns the user's turns across all groups, newest first.
func (s *TurnService) UserHistory(ctx context.Context, userID string, limit int) ([]*models.Turn, error) {
	return s.store.ListTurnsByUser(ctx, userID, limit)
}

// Statistics summarizes a set of turns by outcome.
type Statistics struct {
	Total              int     `json:"total_turns"`
	Completed          int     `json:"completed"`
	Skipped            int     `json:"skipped"`
	Expired            int     `json:"expired"`
	Active             int     `json:"active"`
	CompletionRate     float64 `json:"completion_rate"`
	TotalDurationSecs  int64   `json:"total_duration_seconds"`
	AvgDurationSeconds float64 `json:"avg_duration_seconds"`
}

// GroupStatistics summarizes the group's full turn history.
func (s *TurnService) GroupStatistics(ctx context.Context, groupID string) (*Statistics, error) {
	turns, err := s.GroupHistory(ctx, groupID, 0)
	if err != nil {
		return nil, err
	}
	return summarize(turns), nil
}

// UserStatistics summarizes the user's turns across all groups.
func (s *TurnService) UserStatistics(ctx context.Context, userID string) (*Statistics, error) {
	turns, err := s.store.ListTurnsByUser(ctx, userID, 0)
	if err != nil {
		return nil, err
	}
	return summarize(turns), nil
}

// NextUser computes the advisory next user for the group without
// mutating anything.
func (s *TurnService) NextUser(ctx context.Context, groupID string) (*models.Member, error) {
	group, err := s.store.GetGroupState(ctx, groupID)
	if err != nil {
		return nil, err
	}
	return s.coordinator.NextUser(group)
}

// endOwnTurn is the complete/skip path: only the turn's owner may apply
// these transitions.
func (s *TurnService) endOwnTurn(ctx context.Context, turnID, userID, status, notes string, metadata map[string]string) (*models.Turn, error) {
	turn, err := s.store.GetTurn(ctx, turnID)
	if err != nil {
		return nil, err
	}
	if turn.UserID != userID {
		return nil, models.ErrNotTurnOwner
	}
	return s.endTurn(ctx, turn, status, notes, metadata)
}

// endTurn applies a terminal transition and the bookkeeping that follows
// it: the group's bounded history ring gains an entry, the advisory next
// user is recomputed, and cached analytics for the group and user are
// invalidated.
func (s *TurnService) endTurn(ctx context.Context, turn *models.Turn, status, notes string, metadata map[string]string) (*models.Turn, error) {
	if turn.Status != models.TurnStatusActive {
		return nil, models.ErrTurnNotActive
	}

	endedAt := s.now().UTC()
	turn.Status = status
	turn.EndedAt = &endedAt
	turn.DurationSeconds = int64(endedAt.Sub(turn.StartedAt).Seconds())
	if turn.DurationSeconds < 0 {
		turn.DurationSeconds = 0
	}
	if notes != "" {
		turn.Notes = notes
	}
	for k, v := range metadata {
		if turn.Metadata == nil {
			turn.Metadata = map[string]string{}
		}
		turn.Metadata[k] = v
	}

	if err := s.store.TransitionTurn(ctx, turn); err != nil {
		return nil, err
	}
	s.metrics.TurnEnded(turn)

	if err := s.recordTransition(ctx, turn); err != nil {
		// The turn itself transitioned; group bookkeeping is advisory.
		slog.Error("Failed to record turn transition on group",
			"group_id", turn.GroupID, "turn_id", turn.ID, "error", err)
	}

	s.invalidate(turn.GroupID, turn.UserID)
	slog.Info("Turn ended",
		"group_id", turn.GroupID, "turn_id", turn.ID, "user_id", turn.UserID, "status", status)
	return turn, nil
}

// recordTransition appends the turn to the group's history ring and
// recomputes the advisory next user.
func (s *TurnService) recordTransition(ctx context.Context, turn *models.Turn) error {
	group, err := s.store.GetGroupState(ctx, turn.GroupID)
	if err != nil {
		return err
	}

	if group.TurnHistory == nil {
		group.TurnHistory = models.NewTurnHistory()
	}
	group.TurnHistory.Append(models.HistoryEntry{
		TurnID:          turn.ID,
		UserID:          turn.UserID,
		Status:          turn.Status,
		StartedAt:       turn.StartedAt,
		EndedAt:         turn.EndedAt,
		DurationSeconds: turn.DurationSeconds,
	})

	group.CurrentUserID = ""
	next, err := s.coordinator.NextUser(group)
	if err == nil {
		s.metrics.StrategyPick(s.strategyName(group))
		if next != nil {
			group.CurrentUserID = next.UserID
		}
	} else {
		slog.Warn("Failed to compute next user",
			"group_id", group.ID, "error", err)
	}

	return s.store.UpdateGroup(ctx, group)
}

func (s *TurnService) strategyName(group *models.Group) string {
	if name := group.StrategyName(); name != "" {
		return name
	}
	return s.coordinator.Default()
}

func (s *TurnService) invalidate(groupID, userID string) {
	if s.analytics == nil {
		return
	}
	s.analytics.InvalidateGroup(groupID)
	s.analytics.InvalidateUser(userID)
}

func summarize(turns []*models.Turn) *Statistics {
	stats := &Statistics{Total: len(turns)}
	terminal := 0
	for _, t := range turns {
		switch t.Status {
		case models.TurnStatusCompleted:
			stats.Completed++
		case models.TurnStatusSkipped:
			stats.Skipped++
		case models.TurnStatusExpired:
			stats.Expired++
		case models.TurnStatusActive:
			stats.Active++
		}
		if t.IsTerminal() {
			terminal++
			stats.TotalDurationSecs += t.DurationSeconds
		}
	}
	if terminal > 0 {
		stats.CompletionRate = float64(stats.Completed) / float64(terminal)
		stats.AvgDurationSeconds = float64(stats.TotalDurationSecs) / float64(terminal)
	}
	return stats
}
