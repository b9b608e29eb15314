package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"unicode"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/dbx"
	"github.com/dmitrijs2005/gophauth/internal/server/auth"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/notify"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/accounts"
)

const (
	MinUserNameLength = 3
	MaxUserNameLength = 64
	MinPasswordLength = 8
	MaxPasswordLength = 256
	MaxNameLength     = 100
)

type RegisterRequest struct {
	UserName    string
	Email       string
	Password    string
	FirstName   string
	LastName    string
	PhoneNumber string
	// Role defaults to common.DefaultRoleName.
	Role string
}

func validUserName(name string) bool {
	if n := len(name); n < MinUserNameLength || n > MaxUserNameLength {
		return false
	}
	return !strings.ContainsFunc(name, unicode.IsSpace)
}

func validEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}

func validPassword(p string) bool {
	return len(p) >= MinPasswordLength && len(p) <= MaxPasswordLength
}

func (r *RegisterRequest) normalize() {
	r.UserName = strings.TrimSpace(r.UserName)
	r.Email = strings.TrimSpace(r.Email)
	r.FirstName = strings.TrimSpace(r.FirstName)
	r.LastName = strings.TrimSpace(r.LastName)
	r.PhoneNumber = strings.TrimSpace(r.PhoneNumber)
	r.Role = strings.TrimSpace(r.Role)
	if r.Role == "" {
		r.Role = common.DefaultRoleName
	}
}

func (r *RegisterRequest) validate() error {
	v := validator{}
	v.check(validUserName(r.UserName), "username",
		fmt.Sprintf("must be %d to %d characters without spaces", MinUserNameLength, MaxUserNameLength))
	v.check(validEmail(r.Email), "email", "must be a valid e-mail address")
	v.check(validPassword(r.Password), "password",
		fmt.Sprintf("must be %d to %d characters", MinPasswordLength, MaxPasswordLength))
	v.check(len(r.FirstName) <= MaxNameLength, "first_name", "too long")
	v.check(len(r.LastName) <= MaxNameLength, "last_name", "too long")
	v.check(len(r.PhoneNumber) <= 32, "phone_number", "too long")
	return v.err()
}

// Register creates an active account and assigns it the requested role,
// creating the role when it does not exist yet. No tokens are issued.
func (s *AuthService) Register(ctx context.Context, req RegisterRequest) (id string, err error) {
	defer s.observe("register", &err)

	req.normalize()
	if err := req.validate(); err != nil {
		return "", err
	}

	acc := &models.Account{
		UserName:           req.UserName,
		NormalizedUserName: models.NormalizeUserName(req.UserName),
		Email:              req.Email,
		NormalizedEmail:    models.NormalizeEmail(req.Email),
		FirstName:          req.FirstName,
		LastName:           req.LastName,
		PhoneNumber:        req.PhoneNumber,
		IsActive:           true,
	}

	repo := s.repos.Accounts(s.repos.DB())
	if _, err := repo.FindByUserName(ctx, acc.NormalizedUserName); err == nil {
		return "", reject(ReasonDuplicateUserName)
	} else if !errors.Is(err, common.ErrorNotFound) {
		return "", fmt.Errorf("find by username: %w", err)
	}
	if _, err := repo.FindByEmail(ctx, acc.NormalizedEmail); err == nil {
		return "", reject(ReasonDuplicateEmail)
	} else if !errors.Is(err, common.ErrorNotFound) {
		return "", fmt.Errorf("find by email: %w", err)
	}

	acc.PasswordHash, err = s.hasher.Hash(req.Password)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}

	role := &models.Role{Name: req.Role, NormalizedName: models.NormalizeRoleName(req.Role)}

	err = s.repos.Transactor().WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := s.repos.Accounts(tx).Create(ctx, acc); err != nil {
			return err
		}

		roles := s.repos.Roles(tx)
		exists, err := roles.Exists(ctx, role.NormalizedName)
		if err != nil {
			return err
		}
		if !exists {
			if _, err := roles.Create(ctx, role); err != nil && !errors.Is(err, common.ErrorAlreadyExists) {
				return err
			}
		}
		return roles.AddMember(ctx, acc.ID, role.NormalizedName)
	})
	switch {
	case errors.Is(err, accounts.ErrDuplicateUserName):
		return "", reject(ReasonDuplicateUserName)
	case errors.Is(err, accounts.ErrDuplicateEmail):
		return "", reject(ReasonDuplicateEmail)
	case err != nil:
		return "", fmt.Errorf("register: %w", err)
	}

	s.logger.Info(ctx, "account registered", "account_id", acc.ID, "role", role.Name)
	s.publish(ctx, notify.Event{
		Type:      notify.AccountRegistered,
		AccountID: acc.ID,
		UserName:  acc.UserName,
		Email:     acc.Email,
	})

	return acc.ID, nil
}

// findForLogin resolves login as a username first and as an e-mail second.
func (s *AuthService) findForLogin(ctx context.Context, login string) (*models.Account, error) {
	repo := s.repos.Accounts(s.repos.DB())

	a, err := repo.FindByUserName(ctx, models.NormalizeUserName(login))
	if err == nil {
		return a, nil
	}
	if !errors.Is(err, common.ErrorNotFound) {
		return nil, fmt.Errorf("find by username: %w", err)
	}

	a, err = repo.FindByEmail(ctx, models.NormalizeEmail(login))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("find by email: %w", err)
	}
	return a, nil
}

// burnHash spends roughly the cost of a real verification against a dummy
// hash so that unknown, inactive and locked accounts answer as slowly as a
// wrong password.
func (s *AuthService) burnHash(password string) {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = s.hasher.Hash("gophauth-dummy-password")
	})
	_ = s.hasher.Verify(s.dummyHash, password)
}

// Login authenticates by username or e-mail. Every failure is reported as
// ReasonInvalidCredentials; the log carries the real cause.
func (s *AuthService) Login(ctx context.Context, login, password string) (res *models.AuthResult, err error) {
	defer s.observe("login", &err)

	login = strings.TrimSpace(login)
	if login == "" || password == "" {
		return nil, reject(ReasonInvalidCredentials)
	}

	a, err := s.findForLogin(ctx, login)
	if err != nil {
		return nil, err
	}
	if a == nil {
		s.burnHash(password)
		s.logger.Warn(ctx, "login rejected", "login", login, "cause", "unknown account")
		return nil, reject(ReasonInvalidCredentials)
	}
	if !a.Visible() {
		s.burnHash(password)
		s.logger.Warn(ctx, "login rejected", "account_id", a.ID, "cause", "inactive account")
		return nil, reject(ReasonInvalidCredentials)
	}

	locked, err := s.lockout.IsLocked(ctx, a.ID)
	if err != nil {
		return nil, fmt.Errorf("lockout check: %w", err)
	}
	if locked {
		s.burnHash(password)
		s.logger.Warn(ctx, "login rejected", "account_id", a.ID, "cause", "locked out")
		return nil, reject(ReasonInvalidCredentials)
	}

	if !s.hasher.Verify(a.PasswordHash, password) {
		if err := s.lockout.RecordFailure(ctx, a.ID); err != nil {
			s.logger.Warn(ctx, "lockout failure not recorded", "account_id", a.ID, "error", err)
		}
		s.logger.Warn(ctx, "login rejected", "account_id", a.ID, "cause", "wrong password")
		return nil, reject(ReasonInvalidCredentials)
	}

	if err := s.lockout.Reset(ctx, a.ID); err != nil {
		s.logger.Warn(ctx, "lockout counter not reset", "account_id", a.ID, "error", err)
	}

	for attempt := 1; ; attempt++ {
		res, err = s.issue(ctx, a)
		if !errors.Is(err, common.ErrVersionConflict) || attempt >= 2 {
			break
		}
		// A concurrent write moved the account on; start again from the
		// stored state.
		if a, err = s.findVisible(ctx, a.ID); err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil, reject(ReasonInvalidCredentials)
			}
			return nil, err
		}
	}
	if err != nil {
		return nil, fmt.Errorf("issue tokens: %w", err)
	}

	s.logger.Info(ctx, "login succeeded", "account_id", a.ID)
	return res, nil
}

// issue mints an access/refresh pair for a and stores the refresh token
// digest with a compare-and-swap write. Tokens are returned only after the
// write succeeded.
func (s *AuthService) issue(ctx context.Context, a *models.Account) (*models.AuthResult, error) {
	a, err := s.withRoles(ctx, a)
	if err != nil {
		return nil, err
	}

	access, expires, err := s.signer.IssueAccessToken(auth.Identity{
		AccountID: a.ID,
		UserName:  a.UserName,
		Email:     a.Email,
		Roles:     a.Roles,
		FirstName: a.FirstName,
		LastName:  a.LastName,
	})
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}
	refresh, err := s.signer.IssueRefreshToken()
	if err != nil {
		return nil, fmt.Errorf("generate refresh token: %w", err)
	}
	refreshExpires := s.clock().Add(s.refreshTTL)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	a.SetRefreshToken(common.SHA256Hex(refresh), refreshExpires)
	if err := s.repos.Accounts(s.repos.DB()).Update(ctx, a); err != nil {
		return nil, err
	}

	s.metrics.TokenIssued("access")
	s.metrics.TokenIssued("refresh")

	return &models.AuthResult{
		AccessToken:            access,
		RefreshToken:           refresh,
		Expiration:             expires,
		RefreshTokenExpiration: a.RefreshTokenExpiresAt,
		Roles:                  a.Roles,
		Profile:                a.Profile(),
	}, nil
}

// Refresh rotates the token pair. The access token may be expired but must
// carry a valid signature. Exactly one of several concurrent calls with the
// same refresh token succeeds.
func (s *AuthService) Refresh(ctx context.Context, accessToken, refreshToken string) (res *models.AuthResult, err error) {
	defer s.observe("refresh", &err)

	subject, ok := s.signer.ExtractSubjectIgnoringExpiry(accessToken)
	if !ok {
		s.logger.Warn(ctx, "refresh rejected", "cause", "bad access token")
		return nil, reject(ReasonInvalidToken)
	}

	a, err := s.findVisible(ctx, subject)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.logger.Warn(ctx, "refresh rejected", "account_id", subject, "cause", "unknown or inactive account")
			return nil, reject(ReasonInvalidToken)
		}
		return nil, err
	}

	if refreshToken == "" || !a.HasRefreshToken() || !common.EqualHash(a.RefreshTokenHash, common.SHA256Hex(refreshToken)) {
		s.logger.Warn(ctx, "refresh rejected", "account_id", a.ID, "cause", "refresh token mismatch")
		return nil, reject(ReasonRefreshTokenInvalid)
	}
	if !s.clock().Before(a.RefreshTokenExpiresAt) {
		s.logger.Warn(ctx, "refresh rejected", "account_id", a.ID, "cause", "refresh token expired")
		return nil, reject(ReasonRefreshTokenExpired)
	}

	res, err = s.issue(ctx, a)
	if err != nil {
		if errors.Is(err, common.ErrVersionConflict) {
			s.logger.Warn(ctx, "refresh rejected", "account_id", a.ID, "cause", "concurrent rotation")
			return nil, reject(ReasonRefreshTokenInvalid)
		}
		return nil, fmt.Errorf("rotate tokens: %w", err)
	}
	return res, nil
}

// Logout forgets the stored refresh token. It reports false only when the
// account does not exist or is not visible; repeated calls succeed.
func (s *AuthService) Logout(ctx context.Context, accountID string) (ok bool, err error) {
	defer s.observe("logout", &err)

	a, err := s.findVisible(ctx, accountID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if !a.HasRefreshToken() {
		return true, nil
	}

	_, err = s.mutate(ctx, accountID, func(a *models.Account) error {
		if err := requireVisible(a); err != nil {
			return err
		}
		a.ClearRefreshToken()
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}

	s.logger.Info(ctx, "logged out", "account_id", accountID)
	return true, nil
}
