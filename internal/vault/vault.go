// Package vault encrypts TURN credentials at rest using a single symmetric key.
package vault

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/nacl/secretbox"
)

// ErrInvalidKey is returned when the configured vault key is not a valid
// base64-encoded 32-byte secretbox key.
var ErrInvalidKey = errors.New("vault: key must decode to exactly 32 bytes")

// Vault encrypts and decrypts short secrets (TURN usernames and credentials)
// with a single process-wide key, stored nowhere but the process environment.
type Vault struct {
	key [32]byte
}

// New builds a Vault from a base64-encoded 32-byte key. An empty key string
// generates a fresh random key, suitable for development only: credentials
// encrypted under it will not decrypt after a restart.
func New(base64Key string) (*Vault, error) {
	if base64Key == "" {
		var v Vault
		if _, err := rand.Read(v.key[:]); err != nil {
			return nil, fmt.Errorf("vault: generate random key: %w", err)
		}
		return &v, nil
	}

	raw, err := base64.StdEncoding.DecodeString(base64Key)
	if err != nil {
		return nil, fmt.Errorf("vault: decode key: %w", err)
	}
	if len(raw) != 32 {
		return nil, ErrInvalidKey
	}

	var v Vault
	copy(v.key[:], raw)
	return &v, nil
}

// Seal encrypts plaintext and returns a base64-encoded nonce||ciphertext blob.
func (v *Vault) Seal(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}

	var nonce [24]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return "", fmt.Errorf("vault: generate nonce: %w", err)
	}

	sealed := secretbox.Seal(nonce[:], []byte(plaintext), &nonce, &v.key)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Open decrypts a blob produced by Seal.
func (v *Vault) Open(blob string) (string, error) {
	if blob == "" {
		return "", nil
	}

	raw, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return "", fmt.Errorf("vault: decode blob: %w", err)
	}
	if len(raw) < 24 {
		return "", errors.New("vault: blob too short")
	}

	var nonce [24]byte
	copy(nonce[:], raw[:24])

	plaintext, ok := secretbox.Open(nil, raw[24:], &nonce, &v.key)
	if !ok {
		return "", errors.New("vault: decryption failed")
	}

	return string(plaintext), nil
}
