// Package cryptox provides the auxiliary reversible encryption used for
// values that must be recoverable later (for example contact details that
// should not sit in plaintext in the database).
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
)

// ErrInvalidKey is returned when the key is not 16, 24 or 32 bytes long.
var ErrInvalidKey = errors.New("encryption key must be 16, 24 or 32 bytes")

// ErrMalformedCiphertext is returned when the input cannot be decoded or is
// shorter than a nonce.
var ErrMalformedCiphertext = errors.New("malformed ciphertext")

// Encrypter seals strings with AES-GCM. The output is
// base64(nonce || ciphertext || tag), so a single string carries everything
// Decrypt needs.
type Encrypter struct {
	aead cipher.AEAD
}

// NewEncrypter builds an Encrypter from the raw key bytes.
func NewEncrypter(key []byte) (*Encrypter, error) {
	switch len(key) {
	case 16, 24, 32:
	default:
		return nil, ErrInvalidKey
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &Encrypter{aead: aead}, nil
}

// Encrypt seals plaintext with a fresh random nonce.
func (e *Encrypter) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, e.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("nonce: %w", err)
	}

	sealed := e.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt. Tampered input fails authentication.
func (e *Encrypter) Decrypt(encoded string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", ErrMalformedCiphertext
	}
	ns := e.aead.NonceSize()
	if len(raw) < ns {
		return "", ErrMalformedCiphertext
	}

	plain, err := e.aead.Open(nil, raw[:ns], raw[ns:], nil)
	if err != nil {
		return "", fmt.Errorf("decrypt: %w", err)
	}
	return string(plain), nil
}
