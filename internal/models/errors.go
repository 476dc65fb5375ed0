package models

import "errors"

// Domain errors. All are caller-correctable validation failures and are
// checked with errors.Is at the HTTP boundary; wrap with
// fmt.Errorf("...: %w", err) when adding context.
var (
	// ErrNotAMember is returned when the acting user is not an active
	// member of the group.
	ErrNotAMember = errors.New("user is not a member of this group")

	// ErrGroupNotActive is returned when a turn is started in a group
	// that is inactive or archived.
	ErrGroupNotActive = errors.New("group is not active")

	// ErrTurnAlreadyActive is returned when a group already has an
	// active turn.
	ErrTurnAlreadyActive = errors.New("there is already an active turn in this group")

	// ErrNotYourTurn is returned when the assignment strategy names a
	// different user as next.
	ErrNotYourTurn = errors.New("it is not your turn")

	// ErrNotTurnOwner is returned when a user tries to complete or skip
	// someone else's turn.
	ErrNotTurnOwner = errors.New("can only act on your own turn")

	// ErrTurnNotActive is returned for transitions on a turn that has
	// already reached a terminal state.
	ErrTurnNotActive = errors.New("turn is not active")

	// ErrNotAuthorized is returned when an action requires group admin
	// or creator rights.
	ErrNotAuthorized = errors.New("not authorized")

	// ErrUnknownStrategy is returned when no strategy is registered
	// under the requested name.
	ErrUnknownStrategy = errors.New("unknown turn assignment strategy")

	// ErrInvalidConfiguration is returned for malformed strategy or
	// group configuration values.
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrGroupNotFound is returned when a group ID or invite code does
	// not resolve.
	ErrGroupNotFound = errors.New("group not found")

	// ErrTurnNotFound is returned when a turn ID does not resolve.
	ErrTurnNotFound = errors.New("turn not found")

	// ErrUserNotFound is returned when a user ID does not resolve.
	ErrUserNotFound = errors.New("user not found")
)
