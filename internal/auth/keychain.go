// Package auth gates the HTTP surface with static API keys. Keys are stored
// as bcrypt hashes in the server config; the deliberation core itself only
// ever sees the caller identity as an opaque string.
package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// Keychain validates presented API keys against configured bcrypt hashes.
type Keychain struct {
	hashes [][]byte
}

// NewKeychain builds a keychain from bcrypt hash strings. An empty list
// produces a disabled keychain: every request passes.
func NewKeychain(hashes []string) *Keychain {
	k := &Keychain{hashes: make([][]byte, 0, len(hashes))}
	for _, h := range hashes {
		if h != "" {
			k.hashes = append(k.hashes, []byte(h))
		}
	}
	return k
}

// Enabled reports whether any keys are configured.
func (k *Keychain) Enabled() bool {
	return len(k.hashes) > 0
}

// Validate checks a presented key against every configured hash.
func (k *Keychain) Validate(key string) bool {
	if key == "" {
		return false
	}
	for _, hash := range k.hashes {
		if bcrypt.CompareHashAndPassword(hash, []byte(key)) == nil {
			return true
		}
	}
	return false
}

// HashKey produces the bcrypt hash to store in config for a new API key.
func HashKey(key string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("key must not be empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash key: %w", err)
	}
	return string(hash), nil
}
