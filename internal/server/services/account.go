package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

// ProfileUpdate carries the editable profile fields; nil leaves a field
// unchanged.
type ProfileUpdate struct {
	FirstName   *string
	LastName    *string
	PhoneNumber *string
}

func (u ProfileUpdate) validate() error {
	v := validator{}
	if u.FirstName != nil {
		v.check(len(strings.TrimSpace(*u.FirstName)) <= MaxNameLength, "first_name", "too long")
	}
	if u.LastName != nil {
		v.check(len(strings.TrimSpace(*u.LastName)) <= MaxNameLength, "last_name", "too long")
	}
	if u.PhoneNumber != nil {
		v.check(len(strings.TrimSpace(*u.PhoneNumber)) <= 32, "phone_number", "too long")
	}
	return v.err()
}

func (s *AuthService) GetAccount(ctx context.Context, id string) (*models.Account, error) {
	a, err := s.findVisible(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.withRoles(ctx, a)
}

func (s *AuthService) GetAccountByEmail(ctx context.Context, email string) (*models.Account, error) {
	a, err := s.repos.Accounts(s.repos.DB()).FindByEmail(ctx, models.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, reject(ReasonNotFound)
		}
		return nil, fmt.Errorf("find by email: %w", err)
	}
	if !a.Visible() {
		return nil, reject(ReasonNotFound)
	}
	return s.withRoles(ctx, a)
}

// ListAccounts returns the active accounts in creation order.
func (s *AuthService) ListAccounts(ctx context.Context) ([]*models.Account, error) {
	all, err := s.repos.Accounts(s.repos.DB()).List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}

	res := make([]*models.Account, 0, len(all))
	for _, a := range all {
		if !a.Visible() {
			continue
		}
		if _, err := s.withRoles(ctx, a); err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, nil
}

func (s *AuthService) UpdateProfile(ctx context.Context, id string, upd ProfileUpdate) (*models.Account, error) {
	if err := upd.validate(); err != nil {
		return nil, err
	}

	a, err := s.mutate(ctx, id, func(a *models.Account) error {
		if err := requireVisible(a); err != nil {
			return err
		}
		if upd.FirstName != nil {
			a.FirstName = strings.TrimSpace(*upd.FirstName)
		}
		if upd.LastName != nil {
			a.LastName = strings.TrimSpace(*upd.LastName)
		}
		if upd.PhoneNumber != nil {
			a.PhoneNumber = strings.TrimSpace(*upd.PhoneNumber)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.withRoles(ctx, a)
}

// DeleteAccount soft-deletes the account and drops its refresh token.
func (s *AuthService) DeleteAccount(ctx context.Context, id string) error {
	_, err := s.mutate(ctx, id, func(a *models.Account) error {
		if err := requireVisible(a); err != nil {
			return err
		}
		a.IsDeleted = true
		a.ClearRefreshToken()
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Info(ctx, "account deleted", "account_id", id)
	return nil
}

// SetActive enables or disables an account. Deactivation also drops the
// refresh token. It is the only operation that can see inactive accounts.
func (s *AuthService) SetActive(ctx context.Context, id string, active bool) error {
	_, err := s.mutate(ctx, id, func(a *models.Account) error {
		a.IsActive = active
		if !active {
			a.ClearRefreshToken()
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Info(ctx, "account activation changed", "account_id", id, "active", active)
	return nil
}

// UserNameExists reports whether the username is taken by any non-deleted
// account, active or not.
func (s *AuthService) UserNameExists(ctx context.Context, userName string) (bool, error) {
	_, err := s.repos.Accounts(s.repos.DB()).FindByUserName(ctx, models.NormalizeUserName(userName))
	return exists(err)
}

func (s *AuthService) EmailExists(ctx context.Context, email string) (bool, error) {
	_, err := s.repos.Accounts(s.repos.DB()).FindByEmail(ctx, models.NormalizeEmail(email))
	return exists(err)
}

func exists(err error) (bool, error) {
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, common.ErrorNotFound):
		return false, nil
	default:
		return false, fmt.Errorf("find account: %w", err)
	}
}

// EncryptValue encrypts value with the configured encryption key.
func (s *AuthService) EncryptValue(value string) (string, error) {
	if s.encrypter == nil {
		return "", ErrEncryptionUnavailable
	}
	return s.encrypter.Encrypt(value)
}

// DecryptValue reverses EncryptValue. Input that was not produced by
// EncryptValue with the same key is a validation failure.
func (s *AuthService) DecryptValue(value string) (string, error) {
	if s.encrypter == nil {
		return "", ErrEncryptionUnavailable
	}
	plain, err := s.encrypter.Decrypt(value)
	if err != nil {
		return "", &ValidationError{Fields: map[string]string{"value": "cannot be decrypted"}}
	}
	return plain, nil
}
