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

const groupColumns = `id, name, description, creator_id, status, invite_code,
	settings, current_user_id, last_turn_at, turn_history, created_at`

// CreateGroup persists a new group along with any loaded memberships.
func (s *SQLiteStore) CreateGroup(ctx context.Context, group *models.Group) error {
	if group.ID == "" {
		group.ID = uuid.New().String()
	}
	if group.InviteCode == "" {
		group.InviteCode = generateInviteCode()
	}
	if group.Status == "" {
		group.Status = models.GroupStatusActive
	}
	if group.CreatedAt == 0 {
		group.CreatedAt = time.Now().Unix()
	}
	if group.TurnHistory == nil {
		group.TurnHistory = models.NewTurnHistory()
	}

	settings, err := marshalJSON(group.Settings, "{}")
	if err != nil {
		return err
	}
	history, err := marshalJSON(group.TurnHistory, "[]")
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO groups (id, name, description, creator_id, status, invite_code,
			settings, current_user_id, last_turn_at, turn_history, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		group.ID,
		group.Name,
		group.Description,
		group.CreatorID,
		group.Status,
		group.InviteCode,
		settings,
		group.CurrentUserID,
		nullableUnix(group.LastTurnAt),
		history,
		group.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert group: %w", err)
	}

	for _, m := range group.Members {
		if err := insertMember(ctx, tx, group.ID, m); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetGroup retrieves a group with memberships loaded.
func (s *SQLiteStore) GetGroup(ctx context.Context, id string) (*models.Group, error) {
	return s.getGroupBy(ctx, "id", id)
}

// GetGroupByInviteCode resolves an invite code to a group.
func (s *SQLiteStore) GetGroupByInviteCode(ctx context.Context, code string) (*models.Group, error) {
	return s.getGroupBy(ctx, "invite_code", code)
}

// GetGroupState retrieves a group with memberships and the full turn
// history loaded.
func (s *SQLiteStore) GetGroupState(ctx context.Context, id string) (*models.Group, error) {
	group, err := s.getGroupBy(ctx, "id", id)
	if err != nil {
		return nil, err
	}
	turns, err := s.ListTurnsByGroup(ctx, id, 0)
	if err != nil {
		return nil, err
	}
	group.Turns = turns
	return group, nil
}

// ListGroupsByUser returns the groups the user belongs to.
func (s *SQLiteStore) ListGroupsByUser(ctx context.Context, userID string) ([]*models.Group, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT %s FROM groups
		WHERE id IN (SELECT group_id FROM group_members WHERE user_id = ?)
		ORDER BY created_at DESC`, groupColumns),
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}
	defer rows.Close()

	var groups []*models.Group
	for rows.Next() {
		group, err := scanGroup(rows)
		if err != nil {
			return nil, err
		}
		groups = append(groups, group)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate groups: %w", err)
	}

	for _, g := range groups {
		if err := s.loadMembers(ctx, g); err != nil {
			return nil, err
		}
	}
	return groups, nil
}

// UpdateGroup persists the group's mutable fields.
func (s *SQLiteStore) UpdateGroup(ctx context.Context, group *models.Group) error {
	settings, err := marshalJSON(group.Settings, "{}")
	if err != nil {
		return err
	}
	history, err := marshalJSON(group.TurnHistory, "[]")
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE groups
		SET name = ?, description = ?, status = ?, settings = ?,
			current_user_id = ?, last_turn_at = ?, turn_history = ?
		WHERE id = ?`,
		group.Name,
		group.Description,
		group.Status,
		settings,
		group.CurrentUserID,
		nullableUnix(group.LastTurnAt),
		history,
		group.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update group: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return models.ErrGroupNotFound
	}
	return nil
}

// AddMember inserts a membership row.
func (s *SQLiteStore) AddMember(ctx context.Context, groupID string, member *models.Member) error {
	return insertMember(ctx, s.db, groupID, member)
}

// UpdateMember persists a membership's role, activity flag, and turn
// order.
func (s *SQLiteStore) UpdateMember(ctx context.Context, groupID string, member *models.Member) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE group_members
		SET role = ?, is_active = ?, turn_order = ?
		WHERE group_id = ? AND user_id = ?`,
		member.Role,
		member.IsActive,
		member.TurnOrder,
		groupID,
		member.UserID,
	)
	if err != nil {
		return fmt.Errorf("failed to update member: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return models.ErrNotAMember
	}
	return nil
}

// RemoveMember deletes a membership row.
func (s *SQLiteStore) RemoveMember(ctx context.Context, groupID, userID string) error {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM group_members WHERE group_id = ? AND user_id = ?",
		groupID, userID,
	)
	if err != nil {
		return fmt.Errorf("failed to remove member: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return models.ErrNotAMember
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertMember(ctx context.Context, db execer, groupID string, member *models.Member) error {
	if member.JoinedAt == 0 {
		member.JoinedAt = time.Now().Unix()
	}
	if member.Role == "" {
		member.Role = models.RoleMember
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO group_members (group_id, user_id, role, is_active, turn_order, joined_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		groupID,
		member.UserID,
		member.Role,
		member.IsActive,
		member.TurnOrder,
		member.JoinedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert member: %w", err)
	}
	return nil
}

func (s *SQLiteStore) getGroupBy(ctx context.Context, column, value string) (*models.Group, error) {
	row := s.db.QueryRowContext(ctx, fmt.Sprintf(
		"SELECT %s FROM groups WHERE %s = ?", groupColumns, column), value)

	group, err := scanGroup(row)
	if err == sql.ErrNoRows {
		return nil, models.ErrGroupNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get group: %w", err)
	}

	if err := s.loadMembers(ctx, group); err != nil {
		return nil, err
	}
	return group, nil
}

func (s *SQLiteStore) loadMembers(ctx context.Context, group *models.Group) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT gm.user_id, u.display_name, gm.role, gm.is_active, gm.turn_order, gm.joined_at
		FROM group_members gm
		JOIN users u ON u.id = gm.user_id
		WHERE gm.group_id = ?
		ORDER BY gm.turn_order, gm.user_id`,
		group.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to get members: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		m := &models.Member{}
		if err := rows.Scan(&m.UserID, &m.DisplayName, &m.Role, &m.IsActive, &m.TurnOrder, &m.JoinedAt); err != nil {
			return fmt.Errorf("failed to scan member: %w", err)
		}
		group.Members = append(group.Members, m)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate members: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGroup(row rowScanner) (*models.Group, error) {
	group := &models.Group{}
	var settings, history string
	var lastTurnAt sql.NullInt64

	err := row.Scan(
		&group.ID,
		&group.Name,
		&group.Description,
		&group.CreatorID,
		&group.Status,
		&group.InviteCode,
		&settings,
		&group.CurrentUserID,
		&lastTurnAt,
		&history,
		&group.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	group.LastTurnAt = unixPtr(lastTurnAt)
	if err := json.Unmarshal([]byte(settings), &group.Settings); err != nil {
		return nil, fmt.Errorf("failed to decode group settings: %w", err)
	}
	group.TurnHistory = models.NewTurnHistory()
	if err := json.Unmarshal([]byte(history), group.TurnHistory); err != nil {
		return nil, fmt.Errorf("failed to decode turn history: %w", err)
	}
	return group, nil
}

// generateInviteCode creates a short uppercase join code. Uniqueness is
// guarded by the column constraint; the UUID source makes collisions
// practically impossible.
func generateInviteCode() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:8])
}
