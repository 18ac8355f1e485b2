// Package users provides the account repository: creation, lookup by
// identifier, and profile/credential updates.
package users

import (
	"context"

	"github.com/akovalyov/cliphub/internal/server/models"
)

type Repository interface {
	// Create inserts a new account. A username or email collision yields
	// common.ErrAlreadyExists.
	Create(ctx context.Context, user *models.User) (*models.User, error)

	// GetByIdentifier matches an account by username or email.
	GetByIdentifier(ctx context.Context, identifier string) (*models.User, error)

	GetByID(ctx context.Context, id string) (*models.User, error)

	UpdatePasswordHash(ctx context.Context, id string, passwordHash string) error

	UpdateDetails(ctx context.Context, id string, fullName, email string) error

	UpdateAvatarKey(ctx context.Context, id string, key string) error

	UpdateCoverKey(ctx context.Context, id string, key string) error
}
