package tokens

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/netsoclabs/memberd/internal/common"
	"github.com/netsoclabs/memberd/internal/dbx"
	"github.com/netsoclabs/memberd/internal/logging"
	"github.com/netsoclabs/memberd/internal/server/models"
)

// tokenSeedLength is how many random characters feed the token digest.
// 10 characters over [A-Z0-9] is a little over 51 bits from the set itself;
// the stored token is the full SHA-256 hex digest of that seed.
const tokenSeedLength = 10

// SQLRepository stores verification tokens in a two-column-plus-timestamp
// table. It is written against SQLite (modernc driver) but only uses
// portable SQL over dbx.DBTX.
type SQLRepository struct {
	db     dbx.DBTX
	ttl    time.Duration
	logger logging.Logger
}

// NewSQLRepository constructs a token repository. A ttl of zero means tokens
// never expire and stay live until consumed.
func NewSQLRepository(db dbx.DBTX, ttl time.Duration, logger logging.Logger) *SQLRepository {
	return &SQLRepository{db: db, ttl: ttl, logger: logger}
}

// EnsureSchema creates the token table if it does not exist yet. The token
// database is a standalone file owned entirely by this repository, so the
// schema is bootstrapped here rather than through the goose migrations that
// manage the member schema.
func (r *SQLRepository) EnsureSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS tokens (
			email     TEXT NOT NULL,
			token     TEXT NOT NULL,
			issued_at INTEGER NOT NULL
		)
	`
	if _, err := r.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *SQLRepository) Issue(ctx context.Context, email string) (string, error) {
	seed, err := common.RandString(tokenSeedLength, common.AlphabetUpperDigits)
	if err != nil {
		return "", fmt.Errorf("generating token seed: %w", err)
	}
	sum := sha256.Sum256([]byte(seed))
	token := hex.EncodeToString(sum[:])

	query := `
		INSERT INTO tokens (email, token, issued_at)
		VALUES (?, ?, ?)
	`
	if _, err := r.db.ExecContext(ctx, query, email, token, time.Now().Unix()); err != nil {
		return "", fmt.Errorf("db error: %w", err)
	}
	return token, nil
}

func (r *SQLRepository) Validate(ctx context.Context, email, token string) bool {
	query := `
		SELECT email, issued_at
		FROM tokens
		WHERE token = ?
	`
	stored := models.VerificationToken{Token: token}
	var issuedAt int64
	err := r.db.QueryRowContext(ctx, query, token).Scan(&stored.Email, &issuedAt)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			r.logger.Warn(ctx, "token lookup failed, rejecting", "error", err)
		}
		return false
	}
	stored.IssuedAt = time.Unix(issuedAt, 0)

	if stored.Email != email {
		return false
	}
	if r.ttl > 0 && time.Since(stored.IssuedAt) > r.ttl {
		return false
	}
	return true
}

func (r *SQLRepository) Invalidate(ctx context.Context, email string) error {
	query := `
		DELETE FROM tokens
		WHERE email = ?
	`
	if _, err := r.db.ExecContext(ctx, query, email); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
