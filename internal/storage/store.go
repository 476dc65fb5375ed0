// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"
	"time"

	"github.com/mmynk/roundtable/internal/models"
)

// Store defines the interface for group, membership, turn, and user
// persistence. This abstraction allows swapping storage backends
// (SQLite, PostgreSQL, etc.) without changing the service layer.
//
// The "one active turn per group" invariant is owned by the store:
// CreateActiveTurn and TransitionTurn are conditional writes, so racing
// callers observe models.ErrTurnAlreadyActive / models.ErrTurnNotActive
// instead of corrupting state.
type Store interface {
	// CreateUser persists a new user account.
	CreateUser(ctx context.Context, user *models.User) error

	// GetUserByEmail retrieves a user by email.
	// Returns (nil, nil) when no such user exists.
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)

	// GetUserByID retrieves a user by ID.
	// Returns (nil, nil) when no such user exists.
	GetUserByID(ctx context.Context, id string) (*models.User, error)

	// CreateGroup persists a new group. Missing ID, invite code, and
	// CreatedAt are populated. Loaded Members are persisted as
	// membership rows.
	CreateGroup(ctx context.Context, group *models.Group) error

	// GetGroup retrieves a group with its memberships loaded (ordered
	// by turn_order, ties by user ID) but without turns.
	// Returns models.ErrGroupNotFound when absent.
	GetGroup(ctx context.Context, id string) (*models.Group, error)

	// GetGroupByInviteCode resolves an invite code to a group with
	// memberships loaded.
	GetGroupByInviteCode(ctx context.Context, code string) (*models.Group, error)

	// GetGroupState retrieves a group with memberships and the full
	// turn history loaded, newest turn first. This is the snapshot the
	// strategies and analytics operate on.
	GetGroupState(ctx context.Context, id string) (*models.Group, error)

	// ListGroupsByUser returns the groups the user belongs to,
	// memberships loaded, ordered by creation time descending.
	ListGroupsByUser(ctx context.Context, userID string) ([]*models.Group, error)

	// UpdateGroup persists the group's mutable fields (name,
	// description, status, settings, advisory current user, last turn
	// time, turn history). Membership rows are managed separately.
	UpdateGroup(ctx context.Context, group *models.Group) error

	// AddMember inserts a membership row.
	AddMember(ctx context.Context, groupID string, member *models.Member) error

	// UpdateMember persists a membership's role, activity flag, and
	// turn order.
	UpdateMember(ctx context.Context, groupID string, member *models.Member) error

	// RemoveMember deletes a membership row. Turn history for the user
	// is retained.
	RemoveMember(ctx context.Context, groupID, userID string) error

	// CreateActiveTurn inserts a turn in the active state. The write is
	// conditional on no other active turn existing for the group;
	// a racing insert fails with models.ErrTurnAlreadyActive.
	CreateActiveTurn(ctx context.Context, turn *models.Turn) error

	// GetTurn retrieves a turn by ID.
	// Returns models.ErrTurnNotFound when absent.
	GetTurn(ctx context.Context, id string) (*models.Turn, error)

	// FindActiveTurnByGroup returns the group's active turn, or
	// (nil, nil) when none exists.
	FindActiveTurnByGroup(ctx context.Context, groupID string) (*models.Turn, error)

	// TransitionTurn persists a terminal transition (status, ended_at,
	// duration, notes, metadata). The update is conditional on the turn
	// still being active; a lost race fails with
	// models.ErrTurnNotActive.
	TransitionTurn(ctx context.Context, turn *models.Turn) error

	// ListTurnsByGroup returns the group's turns newest first.
	// limit <= 0 means no limit.
	ListTurnsByGroup(ctx context.Context, groupID string, limit int) ([]*models.Turn, error)

	// ListTurnsByUser returns the user's turns across all groups,
	// newest first. limit <= 0 means no limit.
	ListTurnsByUser(ctx context.Context, userID string, limit int) ([]*models.Turn, error)

	// FindStaleActiveTurns returns active turns started before the
	// cutoff, for the expiry sweep.
	FindStaleActiveTurns(ctx context.Context, cutoff time.Time) ([]*models.Turn, error)

	// Close releases any resources held by the store.
	Close() error
}
