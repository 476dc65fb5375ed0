package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/roundtable/internal/models"
)

const turnColumns = `id, group_id, user_id, status, started_at, ended_at,
	duration_seconds, notes, metadata`

// CreateActiveTurn inserts a turn in the active state. The partial
// unique index on active turns makes the insert conditional: a group
// that already has an active turn rejects the row, so racing starters
// get models.ErrTurnAlreadyActive instead of a second active turn.
func (s *SQLiteStore) CreateActiveTurn(ctx context.Context, turn *models.Turn) error {
	if turn.ID == "" {
		turn.ID = uuid.New().String()
	}
	turn.Status = models.TurnStatusActive
	if turn.StartedAt.IsZero() {
		turn.StartedAt = time.Now().UTC()
	}

	metadata, err := marshalJSON(turn.Metadata, "{}")
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO turns (id, group_id, user_id, status, started_at, ended_at,
			duration_seconds, notes, metadata)
		VALUES (?, ?, ?, ?, ?, NULL, 0, ?, ?)`,
		turn.ID,
		turn.GroupID,
		turn.UserID,
		turn.Status,
		turn.StartedAt.Unix(),
		turn.Notes,
		metadata,
	)
	if err != nil {
		if isActiveTurnConflict(err) {
			return models.ErrTurnAlreadyActive
		}
		return fmt.Errorf("failed to create turn: %w", err)
	}
	return nil
}

// GetTurn retrieves a turn by ID.
func (s *SQLiteStore) GetTurn(ctx context.Context, id string) (*models.Turn, error) {
	row := s.db.QueryRowContext(ctx, fmt.Sprintf(
		"SELECT %s FROM turns WHERE id = ?", turnColumns), id)

	turn, err := scanTurn(row)
	if err == sql.ErrNoRows {
		return nil, models.ErrTurnNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get turn: %w", err)
	}
	return turn, nil
}

// FindActiveTurnByGroup returns the group's active turn, or (nil, nil)
// when none exists.
func (s *SQLiteStore) FindActiveTurnByGroup(ctx context.Context, groupID string) (*models.Turn, error) {
	row := s.db.QueryRowContext(ctx, fmt.Sprintf(
		"SELECT %s FROM turns WHERE group_id = ? AND status = ?", turnColumns),
		groupID, models.TurnStatusActive)

	turn, err := scanTurn(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find active turn: %w", err)
	}
	return turn, nil
}

// TransitionTurn persists a terminal transition. The update is
// conditional on the row still being active, so only one of two racing
// transitions wins; the loser gets models.ErrTurnNotActive.
func (s *SQLiteStore) TransitionTurn(ctx context.Context, turn *models.Turn) error {
	metadata, err := marshalJSON(turn.Metadata, "{}")
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE turns
		SET status = ?, ended_at = ?, duration_seconds = ?, notes = ?, metadata = ?
		WHERE id = ? AND status = ?`,
		turn.Status,
		nullableUnix(turn.EndedAt),
		turn.DurationSeconds,
		turn.Notes,
		metadata,
		turn.ID,
		models.TurnStatusActive,
	)
	if err != nil {
		return fmt.Errorf("failed to transition turn: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		var exists bool
		err := s.db.QueryRowContext(ctx,
			"SELECT EXISTS(SELECT 1 FROM turns WHERE id = ?)", turn.ID).Scan(&exists)
		if err != nil {
			return fmt.Errorf("failed to check turn existence: %w", err)
		}
		if !exists {
			return models.ErrTurnNotFound
		}
		return models.ErrTurnNotActive
	}
	return nil
}

// ListTurnsByGroup returns the group's turns newest first.
// limit <= 0 means no limit.
func (s *SQLiteStore) ListTurnsByGroup(ctx context.Context, groupID string, limit int) ([]*models.Turn, error) {
	return s.listTurns(ctx, "group_id", groupID, limit)
}

// ListTurnsByUser returns the user's turns across all groups, newest
// first. limit <= 0 means no limit.
func (s *SQLiteStore) ListTurnsByUser(ctx context.Context, userID string, limit int) ([]*models.Turn, error) {
	return s.listTurns(ctx, "user_id", userID, limit)
}

func (s *SQLiteStore) listTurns(ctx context.Context, column, value string, limit int) ([]*models.Turn, error) {
	query := fmt.Sprintf(
		"SELECT %s FROM turns WHERE %s = ? ORDER BY started_at DESC, id", turnColumns, column)
	args := []any{value}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list turns by %s: %w", column, err)
	}
	defer rows.Close()

	return collectTurns(rows)
}

// FindStaleActiveTurns returns active turns started before the cutoff.
func (s *SQLiteStore) FindStaleActiveTurns(ctx context.Context, cutoff time.Time) ([]*models.Turn, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT %s FROM turns
		WHERE status = ? AND started_at < ?
		ORDER BY started_at`, turnColumns),
		models.TurnStatusActive, cutoff.Unix(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to find stale turns: %w", err)
	}
	defer rows.Close()

	return collectTurns(rows)
}

func collectTurns(rows *sql.Rows) ([]*models.Turn, error) {
	var turns []*models.Turn
	for rows.Next() {
		turn, err := scanTurn(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan turn: %w", err)
		}
		turns = append(turns, turn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate turns: %w", err)
	}
	return turns, nil
}

func scanTurn(row rowScanner) (*models.Turn, error) {
	turn := &models.Turn{}
	var startedAt int64
	var endedAt sql.NullInt64
	var metadata string

	err := row.Scan(
		&turn.ID,
		&turn.GroupID,
		&turn.UserID,
		&turn.Status,
		&startedAt,
		&endedAt,
		&turn.DurationSeconds,
		&turn.Notes,
		&metadata,
	)
	if err != nil {
		return nil, err
	}

	turn.StartedAt = time.Unix(startedAt, 0).UTC()
	turn.EndedAt = unixPtr(endedAt)
	if err := json.Unmarshal([]byte(metadata), &turn.Metadata); err != nil {
		return nil, fmt.Errorf("failed to decode turn metadata: %w", err)
	}
	return turn, nil
}

// isActiveTurnConflict reports whether the error is the unique-index
// violation raised when a group already has an active turn. The driver
// does not export a typed constraint error, so this matches the message.
func isActiveTurnConflict(err error) bool {
	return err != nil && strings.Contains(err.Error(), "idx_turns_one_active")
}
