// Package password derives and verifies salted password hashes.
//
// Hashes are PBKDF2-HMAC-SHA256 and are stored as "base64(salt):base64(key)".
// The encoding carries no parameters, so every hash in one deployment must be
// produced with the same Params.
package password

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const (
	DefaultIterations = 10000
	DefaultSaltLength = 16
	DefaultKeyLength  = 32
)

// ErrWeakParams is returned by NewHasherWithParams for parameters below the
// accepted floor.
var ErrWeakParams = errors.New("password: hashing parameters too weak")

// Params controls the cost and sizes of the derivation.
type Params struct {
	Iterations int
	SaltLength int
	KeyLength  int
}

// DefaultParams returns 10 000 iterations, a 128-bit salt and a 256-bit key.
func DefaultParams() Params {
	return Params{
		Iterations: DefaultIterations,
		SaltLength: DefaultSaltLength,
		KeyLength:  DefaultKeyLength,
	}
}

// Hasher hashes and verifies passwords. It is safe for concurrent use.
type Hasher struct {
	params Params
}

// NewHasher returns a Hasher with DefaultParams.
func NewHasher() *Hasher {
	return &Hasher{params: DefaultParams()}
}

// NewHasherWithParams validates p and returns a Hasher. The salt must be at
// least 128 bits and the key at least 128 bits; iterations must be positive.
func NewHasherWithParams(p Params) (*Hasher, error) {
	if p.Iterations <= 0 || p.SaltLength < 16 || p.KeyLength < 16 {
		return nil, ErrWeakParams
	}
	return &Hasher{params: p}, nil
}

// Hash derives a key from password with a fresh random salt.
func (h *Hasher) Hash(password string) (string, error) {
	salt := make([]byte, h.params.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("password: salt: %w", err)
	}

	key := h.derive(password, salt)

	return base64.StdEncoding.EncodeToString(salt) + ":" + base64.StdEncoding.EncodeToString(key), nil
}

// Verify reports whether password matches encoded. Malformed input yields
// false.
func (h *Hasher) Verify(encoded, password string) bool {
	saltPart, keyPart, ok := strings.Cut(encoded, ":")
	if !ok || strings.Contains(keyPart, ":") {
		return false
	}

	salt, err := base64.StdEncoding.DecodeString(saltPart)
	if err != nil || len(salt) == 0 {
		return false
	}
	want, err := base64.StdEncoding.DecodeString(keyPart)
	if err != nil || len(want) == 0 {
		return false
	}

	got := pbkdf2.Key([]byte(password), salt, h.params.Iterations, len(want), sha256.New)
	return subtle.ConstantTimeCompare(got, want) == 1
}

func (h *Hasher) derive(password string, salt []byte) []byte {
	return pbkdf2.Key([]byte(password), salt, h.params.Iterations, h.params.KeyLength, sha256.New)
}
