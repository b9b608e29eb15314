package repomanager

import (
	"context"

	"github.com/dmitrijs2005/gophauth/internal/dbx"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/accounts"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/memory"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/roles"
)

// InMemoryRepositoryManager serves repositories over a memory.Store.
type InMemoryRepositoryManager struct {
	store *memory.Store
	tx    *memory.Transactor
}

func NewInMemoryRepositoryManager() *InMemoryRepositoryManager {
	s := memory.NewStore()
	return &InMemoryRepositoryManager{store: s, tx: memory.NewTransactor(s)}
}

func (m *InMemoryRepositoryManager) RunMigrations(context.Context) error {
	return nil
}

// DB returns nil; memory repositories bound to nil act outside transactions.
func (m *InMemoryRepositoryManager) DB() dbx.DBTX {
	return nil
}

func (m *InMemoryRepositoryManager) Transactor() dbx.Transactor {
	return m.tx
}

func (m *InMemoryRepositoryManager) Accounts(db dbx.DBTX) accounts.Repository {
	return memory.NewAccountRepository(m.store, db)
}

func (m *InMemoryRepositoryManager) Roles(db dbx.DBTX) roles.Repository {
	return memory.NewRoleRepository(m.store, db)
}

func (m *InMemoryRepositoryManager) Close() error {
	return nil
}
