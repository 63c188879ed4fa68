// Package members provides a PostgreSQL-backed repository for member profile
// rows. A row references the directory entry through its uid (the username);
// the table enforces at most one row per email and per uid.
package members

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/netsoclabs/memberd/internal/common"
	"github.com/netsoclabs/memberd/internal/dbx"
	"github.com/netsoclabs/memberd/internal/server/models"
)

// pgUniqueViolation is the PostgreSQL error code for unique_violation.
const pgUniqueViolation = "23505"

// PostgresRepository implements Repository over dbx.DBTX (satisfied by
// *sql.DB or *sql.Tx). Registration binds it to the orchestrator's open
// transaction so the insert stays revocable until the final commit.
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts one member row. Unique-constraint violations on uid or
// email map to common.ErrRecordExists.
func (r *PostgresRepository) Create(ctx context.Context, rec *models.MemberRecord) (*models.MemberRecord, error) {
	query := `
		INSERT INTO members (uid, name, email, student_id, course, graduation_year, uid_number, gid_number, password_hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at
	`
	err := r.db.QueryRowContext(ctx, query,
		rec.Username, rec.Name, rec.Email, rec.StudentID, rec.Course,
		rec.GraduationYear, rec.UIDNumber, rec.GIDNumber, rec.PasswordHash,
	).Scan(&rec.ID, &rec.CreatedAt)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return nil, common.ErrRecordExists
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return rec, nil
}

// GetByUsername returns the member row for the given uid, or
// common.ErrorNotFound.
func (r *PostgresRepository) GetByUsername(ctx context.Context, username string) (*models.MemberRecord, error) {
	query := `
		SELECT id, uid, name, email, student_id, course, graduation_year, uid_number, gid_number, password_hash, created_at
		FROM members
		WHERE uid = $1
	`
	rec := &models.MemberRecord{}
	err := r.db.QueryRowContext(ctx, query, username).Scan(
		&rec.ID, &rec.Username, &rec.Name, &rec.Email, &rec.StudentID,
		&rec.Course, &rec.GraduationYear, &rec.UIDNumber, &rec.GIDNumber,
		&rec.PasswordHash, &rec.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return rec, nil
}

// ExistsByEmail reports whether any member row is registered with email.
func (r *PostgresRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	query := `
		SELECT EXISTS(SELECT 1 FROM members WHERE email = $1)
	`
	var exists bool
	if err := r.db.QueryRowContext(ctx, query, email).Scan(&exists); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return exists, nil
}
