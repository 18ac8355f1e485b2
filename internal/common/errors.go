// Package common defines shared sentinel errors used across cliphub service
// layers. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")

	// Service-level errors (generic/internal flow control).
	ErrInternal          = errors.New("internal error")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrInvalidCredential = errors.New("invalid credential")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")

	// Token lifecycle errors.
	ErrTokenExpired = errors.New("token expired")

	// ErrTokenReuse marks a refresh token that is structurally valid but no
	// longer matches the stored session value: it was already rotated.
	// Security event, not a retryable failure.
	ErrTokenReuse = errors.New("refresh token reuse detected")

	// ErrMalformedCredential means the stored password hash cannot be parsed.
	// Data corruption, not a failed verification.
	ErrMalformedCredential = errors.New("malformed stored credential")
)
