package dbaccounts

import "context"

// Repository manages the per-member database login roles that give members
// their own SQL workspace on the shared server.
type Repository interface {
	// Exists reports whether a role with the given name is present.
	Exists(ctx context.Context, username string) (bool, error)

	// Create provisions a login role named after the member and returns the
	// generated password. Fails if the role already exists.
	Create(ctx context.Context, username string) (string, error)

	// UpdatePassword replaces the role's password. Fails if the role does
	// not exist.
	UpdatePassword(ctx context.Context, username, password string) error

	// Drop removes the role if present. Used by the registration
	// compensation path and the admin CLI; absent roles are not an error.
	Drop(ctx context.Context, username string) error
}
