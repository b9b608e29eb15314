package memory

import (
	"context"
	"slices"
	"strings"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/dbx"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/roles"
	"github.com/google/uuid"
)

type RoleRepository struct {
	s  *Store
	tx *Tx
}

var _ roles.Repository = (*RoleRepository)(nil)

func NewRoleRepository(s *Store, db dbx.DBTX) *RoleRepository {
	return &RoleRepository{s: s, tx: txFrom(db)}
}

func (r *RoleRepository) Exists(ctx context.Context, normalizedName string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	_, ok := r.s.roles[normalizedName]
	return ok, nil
}

func (r *RoleRepository) Create(ctx context.Context, role *models.Role) (*models.Role, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.roles[role.NormalizedName]; ok {
		return nil, common.ErrorAlreadyExists
	}
	if role.ID == "" {
		role.ID = uuid.NewString()
	}
	c := *role
	r.s.roles[role.NormalizedName] = &c

	name := role.NormalizedName
	r.tx.record(func() { delete(r.s.roles, name) })

	return role, nil
}

func (r *RoleRepository) List(ctx context.Context) ([]*models.Role, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	res := make([]*models.Role, 0, len(r.s.roles))
	for _, role := range r.s.roles {
		c := *role
		res = append(res, &c)
	}
	slices.SortFunc(res, func(a, b *models.Role) int { return strings.Compare(a.NormalizedName, b.NormalizedName) })
	return res, nil
}

func (r *RoleRepository) AddMember(ctx context.Context, accountID, normalizedName string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.roles[normalizedName]; !ok {
		return common.ErrorNotFound
	}
	set, ok := r.s.members[accountID]
	if !ok {
		set = make(map[string]struct{})
		r.s.members[accountID] = set
	}
	if _, ok := set[normalizedName]; ok {
		return common.ErrorAlreadyExists
	}
	set[normalizedName] = struct{}{}

	r.tx.record(func() { delete(r.s.members[accountID], normalizedName) })

	return nil
}

func (r *RoleRepository) RemoveMember(ctx context.Context, accountID, normalizedName string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	set := r.s.members[accountID]
	if _, ok := set[normalizedName]; !ok {
		return common.ErrorNotFound
	}
	delete(set, normalizedName)

	r.tx.record(func() { r.s.members[accountID][normalizedName] = struct{}{} })

	return nil
}

func (r *RoleRepository) IsMember(ctx context.Context, accountID, normalizedName string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	_, ok := r.s.members[accountID][normalizedName]
	return ok, nil
}

func (r *RoleRepository) ListForAccount(ctx context.Context, accountID string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	names := []string{}
	for n := range r.s.members[accountID] {
		if role, ok := r.s.roles[n]; ok {
			names = append(names, role.Name)
		}
	}
	slices.Sort(names)
	return names, nil
}
