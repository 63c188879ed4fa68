// Package tokens implements the verification-token store used by the
// registration flow. Tokens live in their own SQLite database, deliberately
// separate from the relational member store: the two resources are never
// coordinated by a distributed transaction, and the orchestrator invalidates
// tokens last so a crash mid-registration leaves the confirmation link
// usable for a retry.
package tokens

import "context"

// Repository issues, validates, and invalidates verification tokens.
type Repository interface {
	// Issue generates a fresh token bound to email, persists the pair, and
	// returns the token. Several live tokens may coexist for one email; each
	// is independently valid.
	Issue(ctx context.Context, email string) (string, error)

	// Validate reports whether a stored pair exists whose token matches the
	// exact cased value and whose email matches exactly. Storage failures
	// read as false; the flow fails closed rather than surfacing the cause.
	Validate(ctx context.Context, email, token string) bool

	// Invalidate deletes every stored token for email, including ones never
	// presented, so stale parallel confirmation links cannot be replayed.
	Invalidate(ctx context.Context, email string) error
}
