package models

// Membership roles.
const (
	RoleAdmin  = "admin"
	RoleMember = "member"
)

// Member is a (group, user) membership row.
//
// TurnOrder defines the round-robin sequence. Values need not be
// contiguous; they are only compared for strict ordering. When two
// members share a turn_order, iteration is kept stable by sorting on
// user ID ascending.
type Member struct {
	// UserID references the member's user account.
	UserID string `json:"user_id"`

	// DisplayName is denormalized from the user record so strategy and
	// analytics output can name members without extra lookups.
	DisplayName string `json:"display_name"`

	// Role is RoleAdmin or RoleMember.
	Role string `json:"role"`

	// IsActive marks whether the member currently participates in the
	// rotation. Inactive members keep their history but are never
	// selected.
	IsActive bool `json:"is_active"`

	// TurnOrder is the member's position in the round-robin sequence.
	TurnOrder int `json:"turn_order"`

	// JoinedAt is the Unix timestamp when the user joined the group.
	JoinedAt int64 `json:"joined_at"`
}
