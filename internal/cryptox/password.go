// Package cryptox holds the password credential helpers: one-way hashing of
// account passwords and verification of login attempts.
package cryptox

import (
	"errors"
	"fmt"

	"github.com/akovalyov/cliphub/internal/common"
	"golang.org/x/crypto/bcrypt"
)

// HashPassword derives a salted one-way credential from a plaintext
// password. The result is safe to persist; the plaintext is not recoverable.
func HashPassword(plaintext string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("error hashing password: %w", err)
	}
	return string(hash), nil
}

// VerifyPassword reports whether plaintext matches the stored credential.
// A mismatch is (false, nil). A credential that cannot be parsed at all is a
// data-integrity failure and returns common.ErrMalformedCredential.
func VerifyPassword(plaintext, credential string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(credential), []byte(plaintext))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}
	return false, fmt.Errorf("%w: %v", common.ErrMalformedCredential, err)
}
