// Package sessions provides the per-account session record: the single
// currently valid refresh token for each user.
package sessions

import "context"

type Repository interface {
	// Set unconditionally stores token as the account's current refresh
	// token, creating the record if needed. Used on login.
	Set(ctx context.Context, userID string, token string) error

	// Replace swaps old for new only if old is still the stored value.
	// Returns false when the stored value differs (the token was already
	// rotated) or the record does not exist. Used for rotation so the
	// read-verify-write sequence stays atomic.
	Replace(ctx context.Context, userID string, old, new string) (bool, error)

	// Get returns the stored refresh token, or "" when the account has no
	// live session.
	Get(ctx context.Context, userID string) (string, error)

	// Clear empties the account's refresh token. Idempotent.
	Clear(ctx context.Context, userID string) error
}
