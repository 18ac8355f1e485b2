// Package services contains server-side business logic. This file implements
// UserService, which handles registration, login and the refresh-token
// lifecycle: issuing, rotating and revoking the single session each account
// may hold.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/akovalyov/cliphub/internal/common"
	"github.com/akovalyov/cliphub/internal/cryptox"
	"github.com/akovalyov/cliphub/internal/dbx"
	"github.com/akovalyov/cliphub/internal/logging"
	"github.com/akovalyov/cliphub/internal/server/auth"
	"github.com/akovalyov/cliphub/internal/server/models"
	"github.com/akovalyov/cliphub/internal/server/repositories/repomanager"
)

// TokenPair bundles a short-lived access token and a long-lived refresh token.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// UserService provides authentication-related operations:
//   - Register: create accounts
//   - Login: verify credentials and mint tokens
//   - Refresh: rotate the refresh token and mint a new pair
//   - Logout / ChangePassword: terminate the session
type UserService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	issuer      *auth.Issuer
	logger      logging.Logger
}

// NewUserService constructs a UserService using repositories and the token
// issuer built once from server config.
func NewUserService(db *sql.DB, m repomanager.RepositoryManager, issuer *auth.Issuer, logger logging.Logger) *UserService {
	return &UserService{
		db:          db,
		repomanager: m,
		issuer:      issuer,
		logger:      logger.With("module", "user_service"),
	}
}

// Register creates a new account with a hashed password. Username and email
// collisions yield common.ErrAlreadyExists.
func (s *UserService) Register(ctx context.Context, username, email, fullName, password string) (*models.User, error) {
	if err := common.RequireFields(
		"username", username,
		"email", email,
		"fullName", fullName,
		"password", password,
	); err != nil {
		return nil, err
	}

	hash, err := cryptox.HashPassword(password)
	if err != nil {
		return nil, common.ErrInternal
	}

	user := &models.User{Username: username, Email: email, FullName: fullName, PasswordHash: hash}

	repo := s.repomanager.Users(s.db)
	created, err := repo.Create(ctx, user)
	if err != nil {
		if errors.Is(err, common.ErrAlreadyExists) {
			return nil, err
		}
		return nil, fmt.Errorf("error creating user: %w", err)
	}
	return created, nil
}

// Login matches an account by username or email, verifies the password and,
// on success, mints a token pair and stores the refresh token as the
// account's one live session.
//
// ErrNotFound and ErrInvalidCredential both surface; the boundary layer
// collapses them into one opaque response so account existence never leaks.
func (s *UserService) Login(ctx context.Context, identifier, password string) (*models.User, *TokenPair, error) {
	if err := common.RequireFields(
		"identifier", identifier,
		"password", password,
	); err != nil {
		return nil, nil, err
	}

	repo := s.repomanager.Users(s.db)
	user, err := repo.GetByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, nil, common.ErrNotFound
		}
		return nil, nil, common.ErrInternal
	}

	ok, err := cryptox.VerifyPassword(password, user.PasswordHash)
	if err != nil {
		// Malformed stored hash: data integrity problem, not a failed login.
		s.logger.Error(ctx, "stored credential unreadable", "user_id", user.ID)
		return nil, nil, common.ErrInternal
	}
	if !ok {
		return nil, nil, common.ErrInvalidCredential
	}

	pair, err := s.issueTokenPair(ctx, user.ID)
	if err != nil {
		return nil, nil, err
	}
	return user, pair, nil
}

// Refresh validates a presented refresh token (signature and expiry, then
// equality with the stored session value) and rotates it: the returned pair
// carries a new refresh token and the old one is unusable from here on.
//
// A token that verifies but no longer matches the stored value was already
// rotated; that is reported as common.ErrTokenReuse and logged as a
// security event.
func (s *UserService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if refreshToken == "" {
		return nil, common.ErrUnauthorized
	}

	userID, err := s.issuer.VerifyRefresh(refreshToken)
	if err != nil {
		return nil, err
	}

	access, err := s.issuer.IssueAccess(userID)
	if err != nil {
		return nil, common.ErrInternal
	}
	next, err := s.issuer.IssueRefresh(userID)
	if err != nil {
		return nil, common.ErrInternal
	}

	sessionRepo := s.repomanager.Sessions(s.db)
	replaced, err := sessionRepo.Replace(ctx, userID, refreshToken, next)
	if err != nil {
		return nil, fmt.Errorf("error rotating refresh token: %w", err)
	}
	if !replaced {
		stored, err := sessionRepo.Get(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("error reading session record: %w", err)
		}
		if stored == "" {
			// Logged out (or never logged in): nothing to rotate.
			return nil, common.ErrUnauthorized
		}
		s.logger.Warn(ctx, "refresh token reuse detected", "user_id", userID)
		return nil, common.ErrTokenReuse
	}

	// The persisted token and the returned token are one and the same value.
	return &TokenPair{AccessToken: access, RefreshToken: next}, nil
}

// Logout clears the account's stored refresh token. Idempotent: logging out
// twice is not an error.
func (s *UserService) Logout(ctx context.Context, userID string) error {
	repo := s.repomanager.Sessions(s.db)
	if err := repo.Clear(ctx, userID); err != nil {
		return fmt.Errorf("error clearing session: %w", err)
	}
	return nil
}

// ChangePassword verifies the old password, persists the new hash and
// terminates the session in one transaction, so a refresh token issued
// before the change cannot outlive it.
func (s *UserService) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	if err := common.RequireFields(
		"oldPassword", oldPassword,
		"newPassword", newPassword,
	); err != nil {
		return err
	}

	userRepo := s.repomanager.Users(s.db)
	user, err := userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return common.ErrNotFound
		}
		return common.ErrInternal
	}

	ok, err := cryptox.VerifyPassword(oldPassword, user.PasswordHash)
	if err != nil {
		s.logger.Error(ctx, "stored credential unreadable", "user_id", userID)
		return common.ErrInternal
	}
	if !ok {
		return common.ErrInvalidCredential
	}

	hash, err := cryptox.HashPassword(newPassword)
	if err != nil {
		return common.ErrInternal
	}

	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repomanager.Users(tx).UpdatePasswordHash(ctx, userID, hash); err != nil {
			return fmt.Errorf("error updating password: %w", err)
		}
		if err := s.repomanager.Sessions(tx).Clear(ctx, userID); err != nil {
			return fmt.Errorf("error clearing session: %w", err)
		}
		return nil
	})
}

// CurrentUser returns the account for an authenticated principal.
func (s *UserService) CurrentUser(ctx context.Context, userID string) (*models.User, error) {
	repo := s.repomanager.Users(s.db)
	user, err := repo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.ErrNotFound
		}
		return nil, common.ErrInternal
	}
	return user, nil
}

// UpdateDetails changes the mutable profile fields and returns the updated
// account.
func (s *UserService) UpdateDetails(ctx context.Context, userID, fullName, email string) (*models.User, error) {
	if err := common.RequireFields(
		"fullName", fullName,
		"email", email,
	); err != nil {
		return nil, err
	}

	repo := s.repomanager.Users(s.db)
	if err := repo.UpdateDetails(ctx, userID, fullName, email); err != nil {
		if errors.Is(err, common.ErrAlreadyExists) || errors.Is(err, common.ErrNotFound) {
			return nil, err
		}
		return nil, common.ErrInternal
	}
	return s.CurrentUser(ctx, userID)
}

func (s *UserService) issueTokenPair(ctx context.Context, userID string) (*TokenPair, error) {
	access, err := s.issuer.IssueAccess(userID)
	if err != nil {
		return nil, common.ErrInternal
	}
	refresh, err := s.issuer.IssueRefresh(userID)
	if err != nil {
		return nil, common.ErrInternal
	}

	sessionRepo := s.repomanager.Sessions(s.db)
	if err := sessionRepo.Set(ctx, userID, refresh); err != nil {
		return nil, common.ErrInternal
	}

	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}
