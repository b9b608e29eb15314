package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

const MaxRoleNameLength = 64

func validateRoleName(name string) error {
	v := validator{}
	v.check(name != "", "role", "required")
	v.check(len(name) <= MaxRoleNameLength, "role", "too long")
	return v.err()
}

// CreateRole adds a new role. Names are unique case-insensitively.
func (s *AuthService) CreateRole(ctx context.Context, name string) (*models.Role, error) {
	name = strings.TrimSpace(name)
	if err := validateRoleName(name); err != nil {
		return nil, err
	}

	roles := s.repos.Roles(s.repos.DB())
	role := &models.Role{Name: name, NormalizedName: models.NormalizeRoleName(name)}

	exists, err := roles.Exists(ctx, role.NormalizedName)
	if err != nil {
		return nil, fmt.Errorf("role exists: %w", err)
	}
	if exists {
		return nil, reject(ReasonRoleAlreadyExists)
	}

	if _, err := roles.Create(ctx, role); err != nil {
		if errors.Is(err, common.ErrorAlreadyExists) {
			return nil, reject(ReasonRoleAlreadyExists)
		}
		return nil, fmt.Errorf("create role: %w", err)
	}

	s.logger.Info(ctx, "role created", "role", role.Name)
	return role, nil
}

func (s *AuthService) ListAllRoles(ctx context.Context) ([]*models.Role, error) {
	list, err := s.repos.Roles(s.repos.DB()).List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}
	return list, nil
}

// roleTarget checks the shared preconditions of AddRole and RemoveRole and
// returns the normalized role name.
func (s *AuthService) roleTarget(ctx context.Context, accountID, role string) (string, error) {
	role = strings.TrimSpace(role)
	if err := validateRoleName(role); err != nil {
		return "", err
	}
	if _, err := s.findVisible(ctx, accountID); err != nil {
		return "", err
	}

	normalized := models.NormalizeRoleName(role)
	exists, err := s.repos.Roles(s.repos.DB()).Exists(ctx, normalized)
	if err != nil {
		return "", fmt.Errorf("role exists: %w", err)
	}
	if !exists {
		return "", reject(ReasonRoleNotFound)
	}
	return normalized, nil
}

// AddRole assigns an existing role to an account.
func (s *AuthService) AddRole(ctx context.Context, accountID, role string) error {
	normalized, err := s.roleTarget(ctx, accountID, role)
	if err != nil {
		return err
	}

	roles := s.repos.Roles(s.repos.DB())
	member, err := roles.IsMember(ctx, accountID, normalized)
	if err != nil {
		return fmt.Errorf("is member: %w", err)
	}
	if member {
		return reject(ReasonRoleAlreadyAssigned)
	}

	if err := roles.AddMember(ctx, accountID, normalized); err != nil {
		switch {
		case errors.Is(err, common.ErrorAlreadyExists):
			return reject(ReasonRoleAlreadyAssigned)
		case errors.Is(err, common.ErrorNotFound):
			return reject(ReasonRoleNotFound)
		}
		return fmt.Errorf("add member: %w", err)
	}

	s.logger.Info(ctx, "role assigned", "account_id", accountID, "role", normalized)
	return nil
}

// RemoveRole takes a role away from an account.
func (s *AuthService) RemoveRole(ctx context.Context, accountID, role string) error {
	normalized, err := s.roleTarget(ctx, accountID, role)
	if err != nil {
		return err
	}

	roles := s.repos.Roles(s.repos.DB())
	member, err := roles.IsMember(ctx, accountID, normalized)
	if err != nil {
		return fmt.Errorf("is member: %w", err)
	}
	if !member {
		return reject(ReasonRoleNotAssigned)
	}

	if err := roles.RemoveMember(ctx, accountID, normalized); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return reject(ReasonRoleNotAssigned)
		}
		return fmt.Errorf("remove member: %w", err)
	}

	s.logger.Info(ctx, "role removed", "account_id", accountID, "role", normalized)
	return nil
}

// ListRoles returns the role names held by an account, sorted.
func (s *AuthService) ListRoles(ctx context.Context, accountID string) ([]string, error) {
	a, err := s.findVisible(ctx, accountID)
	if err != nil {
		return nil, err
	}
	a, err = s.withRoles(ctx, a)
	if err != nil {
		return nil, err
	}
	return a.Roles, nil
}

// GrantAdmin makes sure the Admin role exists and that the visible account
// with userName holds it. Repeated calls are no-ops.
func (s *AuthService) GrantAdmin(ctx context.Context, userName string) error {
	if _, err := s.CreateRole(ctx, common.AdminRoleName); err != nil && !errors.Is(err, ErrRoleAlreadyExists) {
		return err
	}

	a, err := s.repos.Accounts(s.repos.DB()).FindByUserName(ctx, models.NormalizeUserName(userName))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return reject(ReasonNotFound)
		}
		return fmt.Errorf("find by username: %w", err)
	}
	if err := requireVisible(a); err != nil {
		return err
	}

	if err := s.AddRole(ctx, a.ID, common.AdminRoleName); err != nil && !errors.Is(err, ErrRoleAlreadyAssigned) {
		return err
	}
	return nil
}
