// Package auth issues and verifies the service's bearer credentials:
// HS256-signed JWT access tokens and opaque random refresh tokens.
package auth

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// MinSecretLength is the smallest accepted HMAC key, in bytes.
const MinSecretLength = 32

// RefreshTokenBytes is the amount of randomness in a refresh token.
const RefreshTokenBytes = 32

// Config holds the signing parameters. It is immutable after NewSigner.
type Config struct {
	Secret    []byte
	Issuer    string
	Audience  string
	AccessTTL time.Duration
	// Leeway is the tolerated clock skew for exp/nbf checks. Zero is strict.
	Leeway time.Duration
}

// Claims is the access token payload.
type Claims struct {
	jwt.RegisteredClaims
	UserName   string   `json:"unique_name,omitempty"`
	Email      string   `json:"email,omitempty"`
	Roles      []string `json:"role,omitempty"`
	GivenName  string   `json:"given_name,omitempty"`
	FamilyName string   `json:"family_name,omitempty"`
}

// HasRole reports whether the claims carry role. Role names are unique
// regardless of case, so the comparison is case-insensitive.
func (c *Claims) HasRole(role string) bool {
	role = strings.TrimSpace(role)
	return slices.ContainsFunc(c.Roles, func(r string) bool {
		return strings.EqualFold(strings.TrimSpace(r), role)
	})
}

// Identity is what gets encoded into an access token.
type Identity struct {
	AccountID string
	UserName  string
	Email     string
	Roles     []string
	FirstName string
	LastName  string
}

// Signer creates and validates tokens with a single symmetric key.
type Signer struct {
	cfg Config
	now func() time.Time
}

// Option customises a Signer.
type Option func(*Signer)

// WithClock replaces time.Now; used by tests to move time forward.
func WithClock(now func() time.Time) Option {
	return func(s *Signer) { s.now = now }
}

// NewSigner validates cfg and returns a Signer.
func NewSigner(cfg Config, opts ...Option) (*Signer, error) {
	if len(cfg.Secret) < MinSecretLength {
		return nil, fmt.Errorf("signing key must be at least %d bytes", MinSecretLength)
	}
	if cfg.Issuer == "" || cfg.Audience == "" {
		return nil, errors.New("issuer and audience are required")
	}
	if cfg.AccessTTL <= 0 {
		return nil, errors.New("access token lifetime must be positive")
	}
	if cfg.Leeway < 0 {
		return nil, errors.New("leeway must not be negative")
	}

	s := &Signer{cfg: cfg, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// AccessTTL returns the configured access token lifetime.
func (s *Signer) AccessTTL() time.Duration {
	return s.cfg.AccessTTL
}

// IssueAccessToken signs a new access token for id and returns it with its
// expiry.
func (s *Signer) IssueAccessToken(id Identity) (string, time.Time, error) {
	if id.AccountID == "" {
		return "", time.Time{}, errors.New("account id is required")
	}

	now := s.now().UTC()
	expires := now.Add(s.cfg.AccessTTL)

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   id.AccountID,
			Issuer:    s.cfg.Issuer,
			Audience:  jwt.ClaimStrings{s.cfg.Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
		UserName:   id.UserName,
		Email:      id.Email,
		Roles:      id.Roles,
		GivenName:  id.FirstName,
		FamilyName: id.LastName,
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.cfg.Secret)
	if err != nil {
		return "", time.Time{}, err
	}

	return token, claims.ExpiresAt.Time, nil
}

// IssueRefreshToken returns a new opaque refresh token: standard base64 of
// RefreshTokenBytes random bytes.
func (s *Signer) IssueRefreshToken() (string, error) {
	return common.MakeRandBase64String(RefreshTokenBytes)
}

// Validate reports whether token is correctly signed, unexpired and was
// issued for this issuer/audience.
func (s *Signer) Validate(token string) bool {
	_, err := s.Parse(token)
	return err == nil
}

// Parse fully validates token and returns its claims. Expired tokens yield
// common.ErrTokenExpired; everything else common.ErrInvalidToken.
func (s *Signer) Parse(token string) (*Claims, error) {
	if token == "" {
		return nil, common.ErrInvalidToken
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, s.keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.cfg.Issuer),
		jwt.WithAudience(s.cfg.Audience),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(s.cfg.Leeway),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, common.ErrTokenExpired
		}
		return nil, common.ErrInvalidToken
	}
	if claims.Subject == "" {
		return nil, common.ErrInvalidToken
	}

	return claims, nil
}

// ExtractSubjectIgnoringExpiry returns the subject of a correctly signed
// token even if it has expired. Algorithm, issuer and audience are still
// enforced.
func (s *Signer) ExtractSubjectIgnoringExpiry(token string) (string, bool) {
	if token == "" {
		return "", false
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, s.keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return "", false
	}

	if claims.Issuer != s.cfg.Issuer || !slices.Contains(claims.Audience, s.cfg.Audience) {
		return "", false
	}
	if claims.Subject == "" {
		return "", false
	}

	return claims.Subject, true
}

func (s *Signer) keyFunc(t *jwt.Token) (any, error) {
	if t.Method != jwt.SigningMethodHS256 {
		return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
	}
	return s.cfg.Secret, nil
}
