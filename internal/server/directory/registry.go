// Package directory manages member accounts in the society's LDAP directory,
// the authoritative identity store for shell logins.
package directory

import (
	"context"

	"github.com/netsoclabs/memberd/internal/server/models"
)

// Registry is the account interface the registration and login flows consume.
// The LDAP implementation lives in this package; tests substitute fakes.
type Registry interface {
	// LookupUIDCeiling returns the highest uidNumber present under the
	// member namespace, or the configured floor when no accounts exist.
	// The scan-then-increment done by Create is not atomic against
	// concurrent registrations; see Create for how conflicts resolve.
	LookupUIDCeiling(ctx context.Context) (int, error)

	// Exists reports whether username is reserved (blacklist) or already
	// present among directory accounts. The handle comparison is exact-case.
	Exists(ctx context.Context, username string) (bool, error)

	// Create provisions a directory entry for username with a freshly
	// generated password and returns the account plus the plaintext, which
	// the caller mails to the member and then discards. Returns
	// common.ErrUsernameTaken when the handle is in use.
	Create(ctx context.Context, username string) (*models.MemberAccount, string, error)

	// Delete removes the entry for username. Used as rollback compensation.
	Delete(ctx context.Context, username string) error

	// UpdatePassword replaces the stored password hash with a freshly
	// hashed value for password. Returns common.ErrorNotFound when no
	// entry exists for username.
	UpdatePassword(ctx context.Context, username, password string) error

	// UpdateShell replaces the entry's login shell. The caller is
	// responsible for restricting shell to an allowed set; the registry
	// only performs the attribute replace. Returns common.ErrorNotFound
	// when no entry exists for username.
	UpdateShell(ctx context.Context, username, shell string) error

	// GetAccount returns the account for an exact username match, or
	// common.ErrorNotFound. Zero and multiple matches are both reported as
	// not found so login cannot be used to probe directory state.
	GetAccount(ctx context.Context, username string) (*models.MemberAccount, error)
}
