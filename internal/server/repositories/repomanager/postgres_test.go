package repomanager

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/gophauth/internal/dbx"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/accounts"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/roles"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return db, mock
}

func TestManagersSatisfyInterface(t *testing.T) {
	db, _ := newDB(t)
	defer db.Close()

	var _ RepositoryManager = NewPostgresRepositoryManager(db)
	var _ RepositoryManager = NewInMemoryRepositoryManager()
}

func TestFactories_ReturnConcreteRepos(t *testing.T) {
	db, _ := newDB(t)
	defer db.Close()

	m := NewPostgresRepositoryManager(db)

	if a := m.Accounts(m.DB()); a == nil {
		t.Fatal("Accounts() nil")
	}
	if r := m.Roles(m.DB()); r == nil {
		t.Fatal("Roles() nil")
	}

	assert.IsType(t, &accounts.PostgresRepository{}, m.Accounts(db))
	assert.IsType(t, &roles.PostgresRepository{}, m.Roles(db))
}

func TestTransactor_CommitsThroughSQL(t *testing.T) {
	db, mock := newDB(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectCommit()

	m := NewPostgresRepositoryManager(db)
	err := m.Transactor().WithTx(context.Background(), func(ctx context.Context, tx dbx.DBTX) error {
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRunMigrations_Success(t *testing.T) {
	db, _ := newDB(t)
	defer db.Close()

	orig := gooseUpContext
	gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		if dir != "." {
			return errors.New("unexpected dir")
		}
		if len(opts) != 0 {
			return errors.New("unexpected opts")
		}
		return nil
	}
	defer func() { gooseUpContext = orig }()

	if err := NewPostgresRepositoryManager(db).RunMigrations(context.Background()); err != nil {
		t.Fatalf("RunMigrations error: %v", err)
	}
}

func TestRunMigrations_Error(t *testing.T) {
	db, _ := newDB(t)
	defer db.Close()

	orig := gooseUpContext
	gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		return errors.New("boom")
	}
	defer func() { gooseUpContext = orig }()

	if err := NewPostgresRepositoryManager(db).RunMigrations(context.Background()); err == nil || err.Error() != "boom" {
		t.Fatalf("expected boom, got %v", err)
	}
}

func TestClose(t *testing.T) {
	db, mock := newDB(t)
	mock.ExpectClose()

	require.NoError(t, NewPostgresRepositoryManager(db).Close())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInMemoryManager_TransactionSharesStore(t *testing.T) {
	ctx := context.Background()
	m := NewInMemoryRepositoryManager()
	require.NoError(t, m.RunMigrations(ctx))

	err := m.Transactor().WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		return m.Roles(tx).AddMember(ctx, "acc", "MISSING")
	})
	assert.Error(t, err)

	ok, err := m.Roles(m.DB()).Exists(ctx, "MISSING")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, m.Close())
}
