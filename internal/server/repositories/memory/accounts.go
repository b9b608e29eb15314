package memory

import (
	"context"
	"slices"
	"strings"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/dbx"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/accounts"
	"github.com/google/uuid"
)

type AccountRepository struct {
	s  *Store
	tx *Tx
}

var _ accounts.Repository = (*AccountRepository)(nil)

// NewAccountRepository binds an account repository to s. When db is a *Tx
// the writes join that transaction.
func NewAccountRepository(s *Store, db dbx.DBTX) *AccountRepository {
	return &AccountRepository{s: s, tx: txFrom(db)}
}

// conflict checks the unique indexes. Deleted rows still hold their names.
func (s *Store) conflict(a *models.Account) error {
	for id, other := range s.accounts {
		if id == a.ID {
			continue
		}
		if other.NormalizedUserName == a.NormalizedUserName {
			return accounts.ErrDuplicateUserName
		}
		if other.NormalizedEmail == a.NormalizedEmail {
			return accounts.ErrDuplicateEmail
		}
	}
	return nil
}

func (r *AccountRepository) Create(ctx context.Context, a *models.Account) (*models.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if _, ok := r.s.accounts[a.ID]; ok {
		return nil, common.ErrorAlreadyExists
	}
	if err := r.s.conflict(a); err != nil {
		return nil, err
	}

	a.Version = 1
	a.CreatedAt = r.s.now()
	stored := a.Clone()
	stored.Roles = nil
	r.s.accounts[a.ID] = stored

	id := a.ID
	r.tx.record(func() { delete(r.s.accounts, id) })

	return a, nil
}

func (r *AccountRepository) find(ctx context.Context, match func(*models.Account) bool) (*models.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, a := range r.s.accounts {
		if !a.IsDeleted && match(a) {
			return a.Clone(), nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r *AccountRepository) FindByID(ctx context.Context, id string) (*models.Account, error) {
	return r.find(ctx, func(a *models.Account) bool { return a.ID == id })
}

func (r *AccountRepository) FindByUserName(ctx context.Context, normalizedUserName string) (*models.Account, error) {
	return r.find(ctx, func(a *models.Account) bool { return a.NormalizedUserName == normalizedUserName })
}

func (r *AccountRepository) FindByEmail(ctx context.Context, normalizedEmail string) (*models.Account, error) {
	return r.find(ctx, func(a *models.Account) bool { return a.NormalizedEmail == normalizedEmail })
}

func (r *AccountRepository) List(ctx context.Context) ([]*models.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var res []*models.Account
	for _, a := range r.s.accounts {
		if !a.IsDeleted {
			res = append(res, a.Clone())
		}
	}
	slices.SortFunc(res, func(x, y *models.Account) int {
		if c := x.CreatedAt.Compare(y.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(x.ID, y.ID)
	})
	return res, nil
}

func (r *AccountRepository) Update(ctx context.Context, a *models.Account) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	prev, ok := r.s.accounts[a.ID]
	if !ok || prev.Version != a.Version {
		return common.ErrVersionConflict
	}
	if err := r.s.conflict(a); err != nil {
		return err
	}

	next := a.Clone()
	next.Roles = nil
	next.CreatedAt = prev.CreatedAt
	next.Version = prev.Version + 1
	next.ModifiedAt = r.s.now()
	r.s.accounts[a.ID] = next

	a.Version = next.Version
	a.ModifiedAt = next.ModifiedAt

	r.tx.record(func() { r.s.accounts[prev.ID] = prev })

	return nil
}
