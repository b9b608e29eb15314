// Package services holds the authentication and token lifecycle engine.
//
// AuthService registers accounts, verifies credentials, issues and rotates
// tokens and manages roles and passwords. Expected failures come back as
// *Rejection or *ValidationError; anything else is an infrastructure fault.
package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/auth"
	"github.com/dmitrijs2005/gophauth/internal/server/lockout"
	"github.com/dmitrijs2005/gophauth/internal/server/metrics"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/notify"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gophauth/internal/server/resettokens"
)

// DefaultResetTokenTTL applies when no ResetTokenProvider is supplied.
const DefaultResetTokenTTL = time.Hour

// maxWriteAttempts bounds re-read-and-retry loops on version conflicts.
const maxWriteAttempts = 3

var ErrEncryptionUnavailable = errors.New("encryption key is not configured")

type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(encoded, password string) bool
}

type TokenSigner interface {
	IssueAccessToken(id auth.Identity) (string, time.Time, error)
	IssueRefreshToken() (string, error)
	ExtractSubjectIgnoringExpiry(token string) (string, bool)
}

// LockoutPolicy is consulted before a password is checked.
type LockoutPolicy interface {
	IsLocked(ctx context.Context, accountID string) (bool, error)
	RecordFailure(ctx context.Context, accountID string) error
	Reset(ctx context.Context, accountID string) error
}

// ResetTokenProvider issues single-use password reset tokens.
type ResetTokenProvider interface {
	Issue(ctx context.Context, accountID string) (string, error)
	Consume(ctx context.Context, accountID, token string) (bool, error)
	// Restore puts back a token whose reset could not be written.
	Restore(ctx context.Context, accountID, token string) error
}

type Notifier interface {
	Notify(ctx context.Context, e notify.Event) error
}

type MetricsRecorder interface {
	Operation(op, outcome, reason string)
	TokenIssued(kind string)
}

type Encrypter interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(encoded string) (string, error)
}

type AuthService struct {
	repos      repomanager.RepositoryManager
	hasher     PasswordHasher
	signer     TokenSigner
	refreshTTL time.Duration
	logger     logging.Logger

	lockout   LockoutPolicy
	resets    ResetTokenProvider
	notifier  Notifier
	metrics   MetricsRecorder
	encrypter Encrypter
	now       func() time.Time

	dummyOnce sync.Once
	dummyHash string
}

type Option func(*AuthService)

func WithLockout(l LockoutPolicy) Option {
	return func(s *AuthService) { s.lockout = l }
}

func WithResetTokens(p ResetTokenProvider) Option {
	return func(s *AuthService) { s.resets = p }
}

func WithNotifier(n Notifier) Option {
	return func(s *AuthService) { s.notifier = n }
}

func WithMetrics(m MetricsRecorder) Option {
	return func(s *AuthService) { s.metrics = m }
}

func WithEncrypter(e Encrypter) Option {
	return func(s *AuthService) { s.encrypter = e }
}

// WithClock replaces time.Now. It must agree with the signer's clock.
func WithClock(now func() time.Time) Option {
	return func(s *AuthService) { s.now = now }
}

func NewAuthService(repos repomanager.RepositoryManager, hasher PasswordHasher, signer TokenSigner,
	refreshTTL time.Duration, logger logging.Logger, opts ...Option) (*AuthService, error) {

	if repos == nil || hasher == nil || signer == nil {
		return nil, errors.New("repositories, hasher and signer are required")
	}
	if refreshTTL <= 0 {
		return nil, errors.New("refresh token lifetime must be positive")
	}
	if logger == nil {
		logger = logging.Nop{}
	}

	s := &AuthService{
		repos:      repos,
		hasher:     hasher,
		signer:     signer,
		refreshTTL: refreshTTL,
		logger:     logger.With("module", "auth"),
		lockout:    lockout.Noop{},
		resets:     resettokens.NewMemoryProvider(DefaultResetTokenTTL),
		notifier:   notify.Noop{},
		metrics:    metrics.Noop{},
		now:        time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

func (s *AuthService) clock() time.Time {
	return s.now().UTC()
}

// observe records the outcome of op. Call it deferred with a pointer to the
// named error result.
func (s *AuthService) observe(op string, errp *error) {
	err := *errp
	if r, ok := AsRejection(err); ok {
		s.metrics.Operation(op, metrics.OutcomeRejected, string(r.Reason))
		return
	}
	if _, ok := AsValidationError(err); ok {
		s.metrics.Operation(op, metrics.OutcomeRejected, "Validation")
		return
	}
	if err != nil {
		s.metrics.Operation(op, metrics.OutcomeError, "")
		return
	}
	s.metrics.Operation(op, metrics.OutcomeSuccess, "")
}

func (s *AuthService) publish(ctx context.Context, e notify.Event) {
	e.OccurredAt = s.clock()
	if err := s.notifier.Notify(ctx, e); err != nil {
		s.logger.Warn(ctx, "event not published", "type", e.Type, "account_id", e.AccountID, "error", err)
	}
}

// findVisible loads an account that is neither deleted nor inactive.
func (s *AuthService) findVisible(ctx context.Context, id string) (*models.Account, error) {
	if id == "" {
		return nil, reject(ReasonNotFound)
	}
	a, err := s.repos.Accounts(s.repos.DB()).FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, reject(ReasonNotFound)
		}
		return nil, fmt.Errorf("find account: %w", err)
	}
	if !a.Visible() {
		return nil, reject(ReasonNotFound)
	}
	return a, nil
}

// mutate re-reads the account, applies fn and writes it back, retrying when
// a concurrent write bumped the version in between. fn sees the account as
// stored, including inactive ones, and may return a rejection to abort.
func (s *AuthService) mutate(ctx context.Context, id string, fn func(a *models.Account) error) (*models.Account, error) {
	repo := s.repos.Accounts(s.repos.DB())

	for attempt := 1; ; attempt++ {
		a, err := repo.FindByID(ctx, id)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return nil, reject(ReasonNotFound)
			}
			return nil, fmt.Errorf("find account: %w", err)
		}
		if err := fn(a); err != nil {
			return nil, err
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		err = repo.Update(ctx, a)
		if err == nil {
			return a, nil
		}
		if !errors.Is(err, common.ErrVersionConflict) || attempt >= maxWriteAttempts {
			return nil, fmt.Errorf("update account: %w", err)
		}
		s.logger.Debug(ctx, "version conflict, retrying", "account_id", id, "attempt", attempt)
	}
}

func requireVisible(a *models.Account) error {
	if !a.Visible() {
		return reject(ReasonNotFound)
	}
	return nil
}

func (s *AuthService) withRoles(ctx context.Context, a *models.Account) (*models.Account, error) {
	names, err := s.repos.Roles(s.repos.DB()).ListForAccount(ctx, a.ID)
	if err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}
	a.Roles = names
	return a, nil
}
