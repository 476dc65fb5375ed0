package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mmynk/roundtable/internal/models"
	"github.com/mmynk/roundtable/internal/storage"
)

// GroupService manages groups and their memberships.
type GroupService struct {
	store storage.Store
}

// NewGroupService creates a group management service.
func NewGroupService(store storage.Store) *GroupService {
	return &GroupService{store: store}
}

// CreateGroup creates a group with the creator as its first (admin)
// member. Settings may carry the turn strategy preference.
func (s *GroupService) CreateGroup(ctx context.Context, creatorID, name, description string, settings map[string]any) (*models.Group, error) {
	creator, err := s.store.GetUserByID(ctx, creatorID)
	if err != nil {
		return nil, err
	}
	if creator == nil {
		return nil, models.ErrUserNotFound
	}

	group := &models.Group{
		Name:        name,
		Description: description,
		CreatorID:   creatorID,
		Status:      models.GroupStatusActive,
		Settings:    settings,
		Members: []*models.Member{
			{
				UserID:      creatorID,
				DisplayName: creator.DisplayName,
				Role:        models.RoleAdmin,
				IsActive:    true,
				TurnOrder:   1,
			},
		},
	}
	if err := s.store.CreateGroup(ctx, group); err != nil {
		return nil, err
	}

	slog.Info("Group created", "group_id", group.ID, "creator_id", creatorID)
	return group, nil
}

// GetGroup returns the group with memberships loaded. Only members may
// view a group.
func (s *GroupService) GetGroup(ctx context.Context, groupID, userID string) (*models.Group, error) {
	group, err := s.store.GetGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if group.Member(userID) == nil {
		return nil, models.ErrNotAMember
	}
	return group, nil
}

// ListGroups returns the user's groups.
func (s *GroupService) ListGroups(ctx context.Context, userID string) ([]*models.Group, error) {
	return s.store.ListGroupsByUser(ctx, userID)
}

// JoinGroup adds the user to the group identified by the invite code.
// The new member is appended to the end of the rotation. Rejoining a
// group the user already belongs to reactivates the membership.
func (s *GroupService) JoinGroup(ctx context.Context, inviteCode, userID string) (*models.Group, error) {
	group, err := s.store.GetGroupByInviteCode(ctx, inviteCode)
	if err != nil {
		return nil, err
	}
	if group.Status == models.GroupStatusArchived {
		return nil, models.ErrGroupNotActive
	}

	if existing := group.Member(userID); existing != nil {
		if !existing.IsActive {
			existing.IsActive = true
			if err := s.store.UpdateMember(ctx, group.ID, existing); err != nil {
				return nil, err
			}
		}
		return group, nil
	}

	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, models.ErrUserNotFound
	}

	member := &models.Member{
		UserID:      userID,
		DisplayName: user.DisplayName,
		Role:        models.RoleMember,
		IsActive:    true,
		TurnOrder:   maxTurnOrder(group.Members) + 1,
	}
	if err := s.store.AddMember(ctx, group.ID, member); err != nil {
		return nil, err
	}
	group.Members = append(group.Members, member)

	slog.Info("Member joined group", "group_id", group.ID, "user_id", userID)
	return group, nil
}

// LeaveGroup deactivates the user's membership. History is retained and
// the member can rejoin via the invite code. The creator cannot leave;
// archive the group instead.
func (s *GroupService) LeaveGroup(ctx context.Context, groupID, userID string) error {
	group, err := s.store.GetGroup(ctx, groupID)
	if err != nil {
		return err
	}
	member := group.Member(userID)
	if member == nil {
		return models.ErrNotAMember
	}
	if userID == group.CreatorID {
		return fmt.Errorf("%w: the creator cannot leave the group", models.ErrNotAuthorized)
	}

	member.IsActive = false
	return s.store.UpdateMember(ctx, groupID, member)
}

// RemoveMember removes another member from the group. Requires admin
// rights; the creator cannot be removed.
func (s *GroupService) RemoveMember(ctx context.Context, groupID, actorID, targetID string) error {
	group, err := s.store.GetGroup(ctx, groupID)
	if err != nil {
		return err
	}
	if !group.IsAdmin(actorID) {
		return models.ErrNotAuthorized
	}
	if targetID == group.CreatorID {
		return fmt.Errorf("%w: the creator cannot be removed", models.ErrNotAuthorized)
	}
	if group.Member(targetID) == nil {
		return models.ErrNotAMember
	}
	return s.store.RemoveMember(ctx, groupID, targetID)
}

// UpdateMemberRole changes a member's role. Requires admin rights.
func (s *GroupService) UpdateMemberRole(ctx context.Context, groupID, actorID, targetID, role string) error {
	if role != models.RoleAdmin && role != models.RoleMember {
		return fmt.Errorf("%w: unknown role %q", models.ErrInvalidConfiguration, role)
	}
	group, err := s.store.GetGroup(ctx, groupID)
	if err != nil {
		return err
	}
	if !group.IsAdmin(actorID) {
		return models.ErrNotAuthorized
	}
	member := group.Member(targetID)
	if member == nil {
		return models.ErrNotAMember
	}

	member.Role = role
	return s.store.UpdateMember(ctx, groupID, member)
}

// UpdateSettings merges the given keys into the group settings. Requires
// admin rights. Keys set to nil are removed.
func (s *GroupService) UpdateSettings(ctx context.Context, groupID, actorID string, settings map[string]any) (*models.Group, error) {
	group, err := s.store.GetGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if !group.IsAdmin(actorID) {
		return nil, models.ErrNotAuthorized
	}

	if group.Settings == nil {
		group.Settings = map[string]any{}
	}
	for k, v := range settings {
		if v == nil {
			delete(group.Settings, k)
			continue
		}
		group.Settings[k] = v
	}
	if err := s.store.UpdateGroup(ctx, group); err != nil {
		return nil, err
	}
	return group, nil
}

// ArchiveGroup archives the group. Requires admin rights. Archived
// groups reject new turns and new members.
func (s *GroupService) ArchiveGroup(ctx context.Context, groupID, actorID string) error {
	group, err := s.store.GetGroup(ctx, groupID)
	if err != nil {
		return err
	}
	if !group.IsAdmin(actorID) {
		return models.ErrNotAuthorized
	}

	group.Status = models.GroupStatusArchived
	if err := s.store.UpdateGroup(ctx, group); err != nil {
		return err
	}
	slog.Info("Group archived", "group_id", groupID, "actor_id", actorID)
	return nil
}

// ReorderMembers assigns a new rotation order from the given user ID
// sequence, which must cover every member exactly once. Orders are
// compacted to 1..n. Requires admin rights.
func (s *GroupService) ReorderMembers(ctx context.Context, groupID, actorID string, userIDs []string) error {
	group, err := s.store.GetGroup(ctx, groupID)
	if err != nil {
		return err
	}
	if !group.IsAdmin(actorID) {
		return models.ErrNotAuthorized
	}
	if len(userIDs) != len(group.Members) {
		return fmt.Errorf("%w: order must list all %d members", models.ErrInvalidConfiguration, len(group.Members))
	}

	seen := make(map[string]bool, len(userIDs))
	for i, id := range userIDs {
		member := group.Member(id)
		if member == nil {
			return fmt.Errorf("%w: %s is not a member", models.ErrInvalidConfiguration, id)
		}
		if seen[id] {
			return fmt.Errorf("%w: %s listed twice", models.ErrInvalidConfiguration, id)
		}
		seen[id] = true
		member.TurnOrder = i + 1
	}

	for _, member := range group.Members {
		if err := s.store.UpdateMember(ctx, groupID, member); err != nil {
			return err
		}
	}
	return nil
}

func maxTurnOrder(members []*models.Member) int {
	max := 0
	for _, m := range members {
		if m.TurnOrder > max {
			max = m.TurnOrder
		}
	}
	return max
}
