// Package common contains shared constants and sentinel errors used across
// gophauth components.
package common

// AccessTokenHeaderName is the gRPC metadata key used to carry the
// access token on outbound requests.
const AccessTokenHeaderName = "access_token"

// DefaultRoleName is assigned to newly registered accounts when the caller
// does not ask for a specific role.
const DefaultRoleName = "User"

// AdminRoleName guards administrative operations.
const AdminRoleName = "Admin"
