package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/notify"
)

func validateNewPassword(p string) error {
	v := validator{}
	v.check(validPassword(p), "new_password",
		fmt.Sprintf("must be %d to %d characters", MinPasswordLength, MaxPasswordLength))
	return v.err()
}

// ForgotPassword issues a reset token for an active account and publishes it.
// Unknown and inactive accounts yield ReasonNotFound, which callers must not
// distinguish from success on the wire.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) (token string, err error) {
	defer s.observe("forgot_password", &err)

	email = strings.TrimSpace(email)
	if email == "" {
		return "", &ValidationError{Fields: map[string]string{"email": "required"}}
	}

	a, err := s.repos.Accounts(s.repos.DB()).FindByEmail(ctx, models.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.logger.Warn(ctx, "password reset not issued", "cause", "unknown e-mail")
			return "", reject(ReasonNotFound)
		}
		return "", fmt.Errorf("find by email: %w", err)
	}
	if !a.Visible() {
		s.logger.Warn(ctx, "password reset not issued", "account_id", a.ID, "cause", "inactive account")
		return "", reject(ReasonNotFound)
	}

	token, err = s.resets.Issue(ctx, a.ID)
	if err != nil {
		return "", fmt.Errorf("issue reset token: %w", err)
	}

	ev := notify.Event{
		Type:      notify.PasswordResetRequested,
		AccountID: a.ID,
		UserName:  a.UserName,
		Email:     a.Email,
		Token:     token,
	}
	if s.encrypter != nil {
		if ev.Token, err = s.EncryptValue(token); err != nil {
			return "", fmt.Errorf("seal reset token: %w", err)
		}
		ev.TokenSealed = true
	}
	s.publish(ctx, ev)
	return token, nil
}

// ResetPassword consumes a reset token and sets a new password. All other
// sessions are ended by dropping the refresh token.
func (s *AuthService) ResetPassword(ctx context.Context, email, token, newPassword string) (err error) {
	defer s.observe("reset_password", &err)

	if err := validateNewPassword(newPassword); err != nil {
		return err
	}

	a, err := s.repos.Accounts(s.repos.DB()).FindByEmail(ctx, models.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return reject(ReasonInvalidResetToken)
		}
		return fmt.Errorf("find by email: %w", err)
	}
	if !a.Visible() || token == "" {
		return reject(ReasonInvalidResetToken)
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	ok, err := s.resets.Consume(ctx, a.ID, token)
	if err != nil {
		return fmt.Errorf("consume reset token: %w", err)
	}
	if !ok {
		s.logger.Warn(ctx, "password reset rejected", "account_id", a.ID, "cause", "bad token")
		return reject(ReasonInvalidResetToken)
	}

	_, err = s.mutate(ctx, a.ID, func(a *models.Account) error {
		if !a.Visible() {
			return reject(ReasonInvalidResetToken)
		}
		a.PasswordHash = hash
		a.ClearRefreshToken()
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return reject(ReasonInvalidResetToken)
		}
		if _, rejected := AsRejection(err); !rejected {
			// The password was not written, so the token stays valid.
			if rerr := s.resets.Restore(context.WithoutCancel(ctx), a.ID, token); rerr != nil {
				s.logger.Error(ctx, "reset token not restored", "account_id", a.ID, "error", rerr)
			}
		}
		return err
	}

	if err := s.lockout.Reset(ctx, a.ID); err != nil {
		s.logger.Warn(ctx, "lockout counter not reset", "account_id", a.ID, "error", err)
	}
	s.logger.Info(ctx, "password reset", "account_id", a.ID)
	return nil
}

// ChangePassword replaces the password after checking the current one. The
// refresh token is dropped so other sessions have to log in again.
func (s *AuthService) ChangePassword(ctx context.Context, accountID, current, newPassword string) (err error) {
	defer s.observe("change_password", &err)

	if err := validateNewPassword(newPassword); err != nil {
		return err
	}

	a, err := s.findVisible(ctx, accountID)
	if err != nil {
		return err
	}
	if !s.hasher.Verify(a.PasswordHash, current) {
		s.logger.Warn(ctx, "password change rejected", "account_id", a.ID, "cause", "wrong password")
		return reject(ReasonInvalidCredentials)
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	verified := a.PasswordHash
	_, err = s.mutate(ctx, accountID, func(a *models.Account) error {
		if err := requireVisible(a); err != nil {
			return err
		}
		// The password changed under us; the check above no longer holds.
		if a.PasswordHash != verified {
			return reject(ReasonInvalidCredentials)
		}
		a.PasswordHash = hash
		a.ClearRefreshToken()
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info(ctx, "password changed", "account_id", accountID)
	return nil
}
