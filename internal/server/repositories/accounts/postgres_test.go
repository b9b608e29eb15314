package accounts

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var accountColumns = []string{
	"id", "username", "normalized_username", "email", "normalized_email", "password_hash",
	"first_name", "last_name", "phone_number", "is_active", "is_deleted",
	"refresh_token_hash", "refresh_token_expires_at", "version", "created_at", "modified_at",
}

const (
	qInsert = `(?s)^INSERT\s+INTO\s+accounts\s*\(id,.*is_deleted\)\s*VALUES\s*\(\$1,.*\$11\)\s*RETURNING\s+version,\s*created_at\s*$`
	qUpdate = `(?s)^UPDATE\s+accounts\s+SET.*version\s*=\s*version\s*\+\s*1\s+WHERE\s+id\s*=\s*\$1\s+AND\s+version\s*=\s*\$2\s+RETURNING\s+version,\s*modified_at\s*$`
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

func newAccount() *models.Account {
	return &models.Account{
		ID:                 "acc-1",
		UserName:           "Alice",
		NormalizedUserName: "alice",
		Email:              "Alice@Example.com",
		NormalizedEmail:    "alice@example.com",
		PasswordHash:       "c2FsdA==:a2V5",
		IsActive:           true,
	}
}

func TestCreate_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	mock.ExpectQuery(qInsert).
		WithArgs("acc-1", "Alice", "alice", "Alice@Example.com", "alice@example.com", "c2FsdA==:a2V5",
			"", "", "", true, false).
		WillReturnRows(sqlmock.NewRows([]string{"version", "created_at"}).AddRow(int64(1), created))

	got, err := repo.Create(context.Background(), newAccount())
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Version)
	assert.Equal(t, created, got.CreatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_GeneratesID(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(qInsert).
		WillReturnRows(sqlmock.NewRows([]string{"version", "created_at"}).AddRow(int64(1), time.Now()))

	a := newAccount()
	a.ID = ""
	got, err := repo.Create(context.Background(), a)
	require.NoError(t, err)
	assert.Len(t, got.ID, 36)
}

func TestCreate_Duplicates(t *testing.T) {
	cases := []struct {
		constraint string
		want       error
	}{
		{constraintUserName, ErrDuplicateUserName},
		{constraintEmail, ErrDuplicateEmail},
		{"other_key", common.ErrorAlreadyExists},
	}
	for _, tc := range cases {
		t.Run(tc.constraint, func(t *testing.T) {
			repo, mock, db := newRepoWithMock(t)
			defer db.Close()

			mock.ExpectQuery(qInsert).
				WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: tc.constraint})

			_, err := repo.Create(context.Background(), newAccount())
			assert.ErrorIs(t, err, tc.want)
			assert.ErrorIs(t, err, common.ErrorAlreadyExists)
		})
	}
}

func TestCreate_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(qInsert).WillReturnError(errors.New("db down"))

	_, err := repo.Create(context.Background(), newAccount())
	if err == nil || !regexp.MustCompile(`db error: .*db down`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestFindByUserName_Found(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	exp := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows(accountColumns).AddRow(
		"acc-1", "Alice", "alice", "Alice@Example.com", "alice@example.com", "h",
		"Alice", "Liddell", "", true, false,
		"deadbeef", exp, int64(4), time.Now(), nil)
	mock.ExpectQuery(`(?s)^SELECT\s+id,.*FROM\s+accounts\s+WHERE\s+normalized_username\s*=\s*\$1\s+AND\s+NOT\s+is_deleted$`).
		WithArgs("alice").
		WillReturnRows(rows)

	got, err := repo.FindByUserName(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, "acc-1", got.ID)
	assert.Equal(t, "Liddell", got.LastName)
	assert.Equal(t, "deadbeef", got.RefreshTokenHash)
	assert.Equal(t, exp, got.RefreshTokenExpiresAt)
	assert.Equal(t, int64(4), got.Version)
	assert.True(t, got.ModifiedAt.IsZero())
}

func TestFindByEmail_NullRefreshToken(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	rows := sqlmock.NewRows(accountColumns).AddRow(
		"acc-1", "Alice", "alice", "Alice@Example.com", "alice@example.com", "h",
		"", "", "", true, false,
		nil, nil, int64(1), time.Now(), nil)
	mock.ExpectQuery(`(?s)WHERE\s+normalized_email\s*=\s*\$1\s+AND\s+NOT\s+is_deleted$`).
		WithArgs("alice@example.com").
		WillReturnRows(rows)

	got, err := repo.FindByEmail(context.Background(), "alice@example.com")
	require.NoError(t, err)
	assert.False(t, got.HasRefreshToken())
	assert.True(t, got.RefreshTokenExpiresAt.IsZero())
}

func TestFindByID_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)WHERE\s+id\s*=\s*\$1\s+AND\s+NOT\s+is_deleted$`).
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), "ghost")
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want common.ErrorNotFound, got %v", err)
	}
}

func TestFindByID_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)WHERE\s+id\s*=\s*\$1`).WillReturnError(errors.New("db err"))

	_, err := repo.FindByID(context.Background(), "acc-1")
	assert.ErrorContains(t, err, "db error: db err")
}

func TestList(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	rows := sqlmock.NewRows(accountColumns).
		AddRow("a", "A", "a", "a@x.io", "a@x.io", "h", "", "", "", true, false, nil, nil, int64(1), now, nil).
		AddRow("b", "B", "b", "b@x.io", "b@x.io", "h", "", "", "", false, false, nil, nil, int64(2), now, now)
	mock.ExpectQuery(`(?s)FROM\s+accounts\s+WHERE\s+NOT\s+is_deleted\s+ORDER\s+BY\s+created_at,\s*id$`).
		WillReturnRows(rows)

	got, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID)
	assert.False(t, got[1].IsActive)
}

func TestList_RowError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	rows := sqlmock.NewRows(accountColumns).
		AddRow("a", "A", "a", "a@x.io", "a@x.io", "h", "", "", "", true, false, nil, nil, int64(1), time.Now(), nil).
		RowError(0, errors.New("broken row"))
	mock.ExpectQuery(`(?s)FROM\s+accounts`).WillReturnRows(rows)

	_, err := repo.List(context.Background())
	assert.ErrorContains(t, err, "broken row")
}

func TestUpdate_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	a := newAccount()
	a.Version = 3
	exp := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	a.SetRefreshToken("abc", exp)

	modified := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(qUpdate).
		WithArgs("acc-1", int64(3), "Alice", "alice", "Alice@Example.com", "alice@example.com",
			"c2FsdA==:a2V5", "", "", "", true, false, "abc", exp).
		WillReturnRows(sqlmock.NewRows([]string{"version", "modified_at"}).AddRow(int64(4), modified))

	require.NoError(t, repo.Update(context.Background(), a))
	assert.Equal(t, int64(4), a.Version)
	assert.Equal(t, modified, a.ModifiedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdate_ClearedTokenWritesNulls(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	a := newAccount()
	a.Version = 1
	mock.ExpectQuery(qUpdate).
		WithArgs("acc-1", int64(1), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			nil, nil).
		WillReturnRows(sqlmock.NewRows([]string{"version", "modified_at"}).AddRow(int64(2), time.Now()))

	require.NoError(t, repo.Update(context.Background(), a))
}

func TestUpdate_StaleVersion(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	a := newAccount()
	a.Version = 3
	mock.ExpectQuery(qUpdate).WillReturnError(sql.ErrNoRows)

	err := repo.Update(context.Background(), a)
	assert.ErrorIs(t, err, common.ErrVersionConflict)
	assert.Equal(t, int64(3), a.Version)
}

func TestUpdate_DuplicateEmail(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(qUpdate).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: constraintEmail})

	err := repo.Update(context.Background(), newAccount())
	assert.ErrorIs(t, err, ErrDuplicateEmail)
}
