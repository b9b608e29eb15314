package models

import "strings"

// Role is a named group of accounts. Names are unique case-insensitively.
type Role struct {
	ID             string
	Name           string
	NormalizedName string
}

// NormalizeRoleName canonicalizes role names for lookups.
func NormalizeRoleName(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
