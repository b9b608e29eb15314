package models

import "time"

// AuthResult is returned by successful login and refresh calls.
type AuthResult struct {
	AccessToken            string
	RefreshToken           string
	Expiration             time.Time
	RefreshTokenExpiration time.Time
	Roles                  []string
	Profile                Profile
}
