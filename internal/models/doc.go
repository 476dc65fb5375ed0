// Package models defines the core domain models for Roundtable.
//
// # Models
//
//   - Group: A turn-taking group with members, settings, and a bounded
//     history of recent turns
//   - Member: A (group, user) membership with role, activity flag, and
//     round-robin turn order
//   - Turn: A single turn taken by a member, with a strict lifecycle
//     (active -> completed | skipped | expired)
//   - User: A registered user account
//
// # Design Principles
//
// 1. **Avoid circular references**: Use ID strings instead of pointers for
// relationships; a Group optionally carries its loaded members and turns.
// 2. **Statuses as typed constants**: lifecycle transitions compare against
// the constants declared here, never raw literals.
// 3. **History is permanent**: turns are never deleted. The group-level
// turn history ring is a bounded convenience copy, not the source of truth.
package models
