// Package dbaccounts provisions per-member database accounts: a login role
// named after the member with the CREATEDB attribute, so members can make
// their own databases on the shared cluster. The generated password is
// mailed to the member at registration and can be reset later through the
// admin CLI.
package dbaccounts

import (
	"context"
	"fmt"
	"regexp"

	"github.com/jackc/pgx/v5"

	"github.com/netsoclabs/memberd/internal/common"
	"github.com/netsoclabs/memberd/internal/dbx"
)

const (
	passwordMinLength = 10
	passwordMaxLength = 15
)

// Role DDL cannot take bound parameters, so everything interpolated into a
// statement is first checked against these patterns and then quoted. User
// input that fails the pattern never reaches a statement.
var (
	validUsername = regexp.MustCompile(`^[a-z0-9]{1,15}$`)
	validPassword = regexp.MustCompile(`^[A-Za-z0-9]+$`)
)

// PostgresRepository implements Repository against the same PostgreSQL
// cluster that holds the member rows. Running Create on the orchestrator's
// open transaction makes the rollback cascade drop the role for free: role
// DDL is transactional in PostgreSQL.
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Exists(ctx context.Context, username string) (bool, error) {
	query := `
		SELECT EXISTS(SELECT 1 FROM pg_roles WHERE rolname = $1)
	`
	var exists bool
	if err := r.db.QueryRowContext(ctx, query, username).Scan(&exists); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return exists, nil
}

func (r *PostgresRepository) Create(ctx context.Context, username string) (string, error) {
	if !validUsername.MatchString(username) {
		return "", fmt.Errorf("invalid username %q: must be lowercase alphanumeric, at most 15 characters", username)
	}

	exists, err := r.Exists(ctx, username)
	if err != nil {
		return "", err
	}
	if exists {
		return "", fmt.Errorf("role %q: %w", username, common.ErrRecordExists)
	}

	length, err := common.RandIntRange(passwordMinLength, passwordMaxLength)
	if err != nil {
		return "", fmt.Errorf("generating password length: %w", err)
	}
	password, err := common.RandString(length, common.AlphabetAlphanumeric)
	if err != nil {
		return "", fmt.Errorf("generating password: %w", err)
	}

	role := pgx.Identifier{username}.Sanitize()
	stmt := fmt.Sprintf(`CREATE ROLE %s LOGIN CREATEDB PASSWORD '%s'`, role, password)
	if _, err := r.db.ExecContext(ctx, stmt); err != nil {
		return "", fmt.Errorf("db error: %w", err)
	}
	return password, nil
}

func (r *PostgresRepository) UpdatePassword(ctx context.Context, username, password string) error {
	if !validUsername.MatchString(username) {
		return fmt.Errorf("invalid username %q: must be lowercase alphanumeric, at most 15 characters", username)
	}
	if !validPassword.MatchString(password) {
		return fmt.Errorf("invalid password: must be alphanumeric")
	}

	exists, err := r.Exists(ctx, username)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("role %q: %w", username, common.ErrorNotFound)
	}

	role := pgx.Identifier{username}.Sanitize()
	stmt := fmt.Sprintf(`ALTER ROLE %s PASSWORD '%s'`, role, password)
	if _, err := r.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Drop(ctx context.Context, username string) error {
	if !validUsername.MatchString(username) {
		return fmt.Errorf("invalid username %q: must be lowercase alphanumeric, at most 15 characters", username)
	}

	role := pgx.Identifier{username}.Sanitize()
	stmt := fmt.Sprintf(`DROP ROLE IF EXISTS %s`, role)
	if _, err := r.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
