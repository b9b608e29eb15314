// Package common defines shared constants and sentinel errors used across
// client and server layers of gophauth. Callers should use errors.Is to
// match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")
	// ErrVersionConflict means the row changed since it was read.
	ErrVersionConflict = errors.New("version conflict")

	// ErrorForbidden is returned to callers lacking a required role.
	ErrorForbidden = errors.New("forbidden")

	// Access token errors. The transport sends ErrTokenExpired verbatim so
	// clients can refresh.
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)
