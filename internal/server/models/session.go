package models

import "time"

// Session is the single per-account session record. RefreshToken holds the
// one currently valid refresh token, or "" when the account is logged out.
type Session struct {
	UserID       string
	RefreshToken string
	UpdatedAt    time.Time
}
