// Package models defines server-side data models persisted in the database.
package models

import (
	"slices"
	"strings"
	"time"
)

// Account is an identity record. Refresh-token state lives here too: at
// most one refresh token is active per account.
type Account struct {
	ID                 string
	UserName           string
	NormalizedUserName string
	Email              string
	NormalizedEmail    string
	PasswordHash       string
	FirstName          string
	LastName           string
	PhoneNumber        string
	IsActive           bool
	IsDeleted          bool

	// Roles is filled from the role repository; it is not a column.
	Roles []string

	// RefreshTokenHash is the hex SHA-256 of the issued refresh token, or ""
	// when none is active.
	RefreshTokenHash      string
	RefreshTokenExpiresAt time.Time

	// Version is the optimistic concurrency stamp. Repositories bump it on
	// every successful write and refuse writes carrying a stale value.
	Version int64

	CreatedAt  time.Time
	ModifiedAt time.Time
}

// NormalizeUserName performs case-insensitive canonicalization.
func NormalizeUserName(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// NormalizeEmail performs case-insensitive canonicalization.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Visible reports whether the account may be returned by read operations
// and may authenticate.
func (a *Account) Visible() bool {
	return a != nil && a.IsActive && !a.IsDeleted
}

// HasRefreshToken reports whether a refresh token is currently stored.
func (a *Account) HasRefreshToken() bool {
	return a.RefreshTokenHash != ""
}

// SetRefreshToken stores hash with its absolute expiry.
func (a *Account) SetRefreshToken(hash string, expiresAt time.Time) {
	a.RefreshTokenHash = hash
	a.RefreshTokenExpiresAt = expiresAt.UTC()
}

// ClearRefreshToken forgets the active refresh token.
func (a *Account) ClearRefreshToken() {
	a.RefreshTokenHash = ""
	a.RefreshTokenExpiresAt = time.Time{}
}

// Clone returns a deep copy; in-memory stores hand out clones so callers
// cannot mutate shared state.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	c := *a
	c.Roles = slices.Clone(a.Roles)
	return &c
}

// Profile is the public view of an account.
type Profile struct {
	ID          string
	UserName    string
	Email       string
	FirstName   string
	LastName    string
	PhoneNumber string
	IsActive    bool
	Roles       []string
	CreatedAt   time.Time
}

// Profile projects the account to its public view.
func (a *Account) Profile() Profile {
	return Profile{
		ID:          a.ID,
		UserName:    a.UserName,
		Email:       a.Email,
		FirstName:   a.FirstName,
		LastName:    a.LastName,
		PhoneNumber: a.PhoneNumber,
		IsActive:    a.IsActive,
		Roles:       slices.Clone(a.Roles),
		CreatedAt:   a.CreatedAt,
	}
}
