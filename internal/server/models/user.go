package models

import "time"

// User is the persisted account record. PasswordHash is write-only outward:
// it never appears in any API response.
type User struct {
	ID           string
	Username     string
	Email        string
	FullName     string
	PasswordHash string
	AvatarKey    string
	CoverKey     string
	CreatedAt    time.Time
}
