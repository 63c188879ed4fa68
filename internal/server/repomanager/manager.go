package repomanager

import (
	"context"
	"database/sql"

	"github.com/netsoclabs/memberd/internal/dbx"
	"github.com/netsoclabs/memberd/internal/server/repositories/dbaccounts"
	"github.com/netsoclabs/memberd/internal/server/repositories/members"
)

// RepositoryManager vends repositories bound to a DBTX, so the same
// repository code runs against the pool or inside the registration
// transaction. The verification-token store is not vended here: it lives in
// its own database and is wired separately.
type RepositoryManager interface {
	Members(db dbx.DBTX) members.Repository
	DBAccounts(db dbx.DBTX) dbaccounts.Repository
	RunMigrations(ctx context.Context, db *sql.DB) error
}
