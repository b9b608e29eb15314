package repomanager

import (
	"context"

	"github.com/dmitrijs2005/gophauth/internal/dbx"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/accounts"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/roles"
)

// RepositoryManager vends repositories bound to a DBTX. Pass DB() for plain
// calls or the handle received inside Transactor().WithTx to join a
// transaction.
type RepositoryManager interface {
	RunMigrations(ctx context.Context) error
	DB() dbx.DBTX
	Transactor() dbx.Transactor
	Accounts(db dbx.DBTX) accounts.Repository
	Roles(db dbx.DBTX) roles.Repository
	Close() error
}
