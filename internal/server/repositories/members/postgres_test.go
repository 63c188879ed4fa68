package members

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/netsoclabs/memberd/internal/common"
	"github.com/netsoclabs/memberd/internal/server/models"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

func sampleRecord() *models.MemberRecord {
	return &models.MemberRecord{
		Username:       "alice",
		Name:           "Alice Murphy",
		Email:          "alice@example.org",
		StudentID:      "119221144",
		Course:         "CS",
		GraduationYear: "2027",
		UIDNumber:      2044,
		GIDNumber:      422,
		PasswordHash:   "{crypt}$6$salt$digest",
	}
}

func TestCreate_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^\s*INSERT\s+INTO\s+members\s*\(uid,\s*name,\s*email,.*VALUES\s*\(\$1,.*RETURNING\s+id,\s*created_at\s*$`

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "created_at"}).AddRow(int64(7), now)
	mock.ExpectQuery(q).
		WithArgs("alice", "Alice Murphy", "alice@example.org", "119221144", "CS", "2027", 2044, 422, "{crypt}$6$salt$digest").
		WillReturnRows(rows)

	got, err := repo.Create(context.Background(), sampleRecord())
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if got.ID != 7 || !got.CreatedAt.Equal(now) {
		t.Fatalf("unexpected record: %+v", got)
	}
}

func TestCreate_UniqueViolation(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`INSERT\s+INTO\s+members`).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "members_email_key"})

	_, err := repo.Create(context.Background(), sampleRecord())
	if !errors.Is(err, common.ErrRecordExists) {
		t.Fatalf("expected ErrRecordExists, got %v", err)
	}
}

func TestCreate_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`INSERT\s+INTO\s+members`).
		WillReturnError(errors.New("db down"))

	_, err := repo.Create(context.Background(), sampleRecord())
	if err == nil || !regexp.MustCompile(`db error: .*db down`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestGetByUsername_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	rows := sqlmock.NewRows([]string{
		"id", "uid", "name", "email", "student_id", "course",
		"graduation_year", "uid_number", "gid_number", "password_hash", "created_at",
	}).AddRow(int64(7), "alice", "Alice Murphy", "alice@example.org", "119221144", "CS", "2027", 2044, 422, "{crypt}$6$x$y", now)

	mock.ExpectQuery(`SELECT\s+id,\s*uid,.*FROM\s+members\s+WHERE\s+uid\s*=\s*\$1`).
		WithArgs("alice").
		WillReturnRows(rows)

	rec, err := repo.GetByUsername(context.Background(), "alice")
	if err != nil {
		t.Fatalf("GetByUsername error: %v", err)
	}
	if rec.Username != "alice" || rec.UIDNumber != 2044 {
		t.Fatalf("unexpected record: %+v", rec)
	}
}

func TestGetByUsername_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT\s+id,\s*uid,.*FROM\s+members`).
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByUsername(context.Background(), "ghost")
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("expected ErrorNotFound, got %v", err)
	}
}

func TestExistsByEmail(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT\s+EXISTS\(SELECT\s+1\s+FROM\s+members\s+WHERE\s+email\s*=\s*\$1\)`).
		WithArgs("alice@example.org").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := repo.ExistsByEmail(context.Background(), "alice@example.org")
	if err != nil {
		t.Fatalf("ExistsByEmail error: %v", err)
	}
	if !exists {
		t.Fatal("expected exists=true")
	}
}
