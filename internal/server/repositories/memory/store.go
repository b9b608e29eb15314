// Package memory keeps accounts and roles in process memory. It backs the
// server when no database DSN is configured and is used by service tests.
//
// Writes performed through repositories bound to a Tx are undone when the
// transaction function fails, mirroring the PostgreSQL behaviour.
package memory

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/dbx"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

var errSQLUnsupported = errors.New("memory: SQL is not supported")

// Store is the shared state behind the memory repositories.
type Store struct {
	mu       sync.Mutex
	accounts map[string]*models.Account
	roles    map[string]*models.Role
	members  map[string]map[string]struct{}

	// txMu serializes transactions; it is never held by plain repository calls.
	txMu sync.Mutex

	now func() time.Time
}

func NewStore() *Store {
	return &Store{
		accounts: make(map[string]*models.Account),
		roles:    make(map[string]*models.Role),
		members:  make(map[string]map[string]struct{}),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Tx is the dbx.DBTX handle passed to transaction functions. It only
// collects undo actions; the SQL methods fail.
type Tx struct {
	undo []func()
}

func (t *Tx) record(fn func()) {
	if t != nil {
		t.undo = append(t.undo, fn)
	}
}

func (t *Tx) ExecContext(context.Context, string, ...any) (sql.Result, error) {
	return nil, errSQLUnsupported
}

func (t *Tx) QueryContext(context.Context, string, ...any) (*sql.Rows, error) {
	return nil, errSQLUnsupported
}

// QueryRowContext is unusable: a *sql.Row cannot be built outside database/sql.
func (t *Tx) QueryRowContext(context.Context, string, ...any) *sql.Row {
	return nil
}

func txFrom(db dbx.DBTX) *Tx {
	tx, _ := db.(*Tx)
	return tx
}

// Transactor implements dbx.Transactor over a Store.
type Transactor struct {
	s *Store
}

func NewTransactor(s *Store) *Transactor {
	return &Transactor{s: s}
}

// WithTx runs fn with a fresh Tx. When fn fails or panics the recorded writes
// are reverted in reverse order.
func (t *Transactor) WithTx(ctx context.Context, fn func(ctx context.Context, tx dbx.DBTX) error) (err error) {
	t.s.txMu.Lock()
	defer t.s.txMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	tx := &Tx{}
	defer func() {
		if p := recover(); p != nil {
			t.s.rollback(tx)
			panic(p)
		}
		if err != nil {
			t.s.rollback(tx)
		}
	}()

	err = fn(ctx, tx)
	return err
}

func (s *Store) rollback(tx *Tx) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(tx.undo) - 1; i >= 0; i-- {
		tx.undo[i]()
	}
}
