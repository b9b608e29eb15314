package services

import (
	"errors"
	"maps"
	"slices"
	"strings"
)

// Reason names an expected, non-fatal failure of an auth operation.
type Reason string

const (
	ReasonInvalidCredentials  Reason = "InvalidCredentials"
	ReasonNotFound            Reason = "NotFound"
	ReasonDuplicateUserName   Reason = "DuplicateUserName"
	ReasonDuplicateEmail      Reason = "DuplicateEmail"
	ReasonInvalidToken        Reason = "InvalidToken"
	ReasonRefreshTokenInvalid Reason = "RefreshTokenInvalid"
	ReasonRefreshTokenExpired Reason = "RefreshTokenExpired"
	ReasonRoleNotFound        Reason = "RoleNotFound"
	ReasonRoleAlreadyExists   Reason = "RoleAlreadyExists"
	ReasonRoleAlreadyAssigned Reason = "RoleAlreadyAssigned"
	ReasonRoleNotAssigned     Reason = "RoleNotAssigned"
	ReasonInvalidResetToken   Reason = "InvalidResetToken"
)

// Rejection is returned for expected outcomes such as a wrong password or a
// stale refresh token. It is never an infrastructure fault.
type Rejection struct {
	Reason Reason
}

func (r *Rejection) Error() string {
	return "rejected: " + string(r.Reason)
}

// Is matches any Rejection with the same reason, so callers can write
// errors.Is(err, services.ErrInvalidCredentials).
func (r *Rejection) Is(target error) bool {
	t, ok := target.(*Rejection)
	return ok && t.Reason == r.Reason
}

var (
	ErrInvalidCredentials  = &Rejection{Reason: ReasonInvalidCredentials}
	ErrNotFound            = &Rejection{Reason: ReasonNotFound}
	ErrDuplicateUserName   = &Rejection{Reason: ReasonDuplicateUserName}
	ErrDuplicateEmail      = &Rejection{Reason: ReasonDuplicateEmail}
	ErrInvalidToken        = &Rejection{Reason: ReasonInvalidToken}
	ErrRefreshTokenInvalid = &Rejection{Reason: ReasonRefreshTokenInvalid}
	ErrRefreshTokenExpired = &Rejection{Reason: ReasonRefreshTokenExpired}
	ErrRoleNotFound        = &Rejection{Reason: ReasonRoleNotFound}
	ErrRoleAlreadyExists   = &Rejection{Reason: ReasonRoleAlreadyExists}
	ErrRoleAlreadyAssigned = &Rejection{Reason: ReasonRoleAlreadyAssigned}
	ErrRoleNotAssigned     = &Rejection{Reason: ReasonRoleNotAssigned}
	ErrInvalidResetToken   = &Rejection{Reason: ReasonInvalidResetToken}
)

func reject(r Reason) error {
	return &Rejection{Reason: r}
}

// AsRejection extracts a Rejection from err.
func AsRejection(err error) (*Rejection, bool) {
	var r *Rejection
	if errors.As(err, &r) {
		return r, true
	}
	return nil, false
}

// ValidationError reports malformed input, keyed by field name. It is
// returned before anything is mutated.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := slices.Sorted(maps.Keys(e.Fields))
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// AsValidationError extracts a ValidationError from err.
func AsValidationError(err error) (*ValidationError, bool) {
	var v *ValidationError
	if errors.As(err, &v) {
		return v, true
	}
	return nil, false
}

type validator map[string]string

func (v validator) check(ok bool, field, msg string) {
	if !ok {
		if _, seen := v[field]; !seen {
			v[field] = msg
		}
	}
}

func (v validator) err() error {
	if len(v) == 0 {
		return nil
	}
	return &ValidationError{Fields: v}
}
