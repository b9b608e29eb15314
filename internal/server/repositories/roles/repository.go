// Package roles persists roles and account memberships. Role names passed to
// the repository are already normalized.
package roles

import (
	"context"

	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

type Repository interface {
	Exists(ctx context.Context, normalizedName string) (bool, error)
	// Create returns common.ErrorAlreadyExists when the name is taken.
	Create(ctx context.Context, role *models.Role) (*models.Role, error)
	List(ctx context.Context) ([]*models.Role, error)
	// AddMember returns common.ErrorNotFound for an unknown role and
	// common.ErrorAlreadyExists when the membership is present.
	AddMember(ctx context.Context, accountID, normalizedName string) error
	// RemoveMember returns common.ErrorNotFound when there is nothing to remove.
	RemoveMember(ctx context.Context, accountID, normalizedName string) error
	IsMember(ctx context.Context, accountID, normalizedName string) (bool, error)
	// ListForAccount returns display names sorted alphabetically.
	ListForAccount(ctx context.Context, accountID string) ([]string, error)
}
