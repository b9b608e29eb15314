// Package accounts persists identity records.
package accounts

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

// Duplicate-key errors. Both match common.ErrorAlreadyExists.
var (
	ErrDuplicateUserName = fmt.Errorf("username %w", common.ErrorAlreadyExists)
	ErrDuplicateEmail    = fmt.Errorf("email %w", common.ErrorAlreadyExists)
)

// Repository stores accounts. Deleted accounts are never returned by reads.
//
// Update is a compare-and-swap on Account.Version: it succeeds only when the
// stored version equals the one carried by the argument, bumps the version on
// the argument, and returns common.ErrVersionConflict otherwise.
type Repository interface {
	Create(ctx context.Context, a *models.Account) (*models.Account, error)
	FindByID(ctx context.Context, id string) (*models.Account, error)
	FindByUserName(ctx context.Context, normalizedUserName string) (*models.Account, error)
	FindByEmail(ctx context.Context, normalizedEmail string) (*models.Account, error)
	List(ctx context.Context) ([]*models.Account, error)
	Update(ctx context.Context, a *models.Account) error
}
