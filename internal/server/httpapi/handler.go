// Package httpapi exposes the session lifecycle over HTTP. Handlers only
// parse requests, call the services and map typed failures to status codes;
// every decision about credentials and tokens lives in the services layer.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/akovalyov/cliphub/internal/common"
	"github.com/akovalyov/cliphub/internal/logging"
	"github.com/akovalyov/cliphub/internal/server/config"
	"github.com/akovalyov/cliphub/internal/server/models"
	"github.com/akovalyov/cliphub/internal/server/services"
	"github.com/gin-gonic/gin"
)

// UserAPI is the slice of UserService the handlers need.
type UserAPI interface {
	Register(ctx context.Context, username, email, fullName, password string) (*models.User, error)
	Login(ctx context.Context, identifier, password string) (*models.User, *services.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (*services.TokenPair, error)
	Logout(ctx context.Context, userID string) error
	ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error
	CurrentUser(ctx context.Context, userID string) (*models.User, error)
	UpdateDetails(ctx context.Context, userID, fullName, email string) (*models.User, error)
}

// MediaAPI is the slice of MediaService the handlers need.
type MediaAPI interface {
	GetUploadURL(ctx context.Context) (string, string, error)
	GetDownloadURL(ctx context.Context, key string) (string, error)
	SetImage(ctx context.Context, userID string, kind services.ImageKind, key string) error
}

type Handler struct {
	users  UserAPI
	media  MediaAPI
	cfg    *config.Config
	logger logging.Logger
}

func NewHandler(users UserAPI, media MediaAPI, cfg *config.Config, logger logging.Logger) *Handler {
	return &Handler{users: users, media: media, cfg: cfg, logger: logger.With("module", "httpapi")}
}

type accountView struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	FullName  string    `json:"fullName"`
	AvatarURL string    `json:"avatarUrl,omitempty"`
	CoverURL  string    `json:"coverUrl,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// newAccountView shapes the outward account record. The password hash and
// refresh token never appear here; stored media keys are resolved to
// presigned download URLs.
func (h *Handler) newAccountView(ctx context.Context, u *models.User) accountView {
	view := accountView{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		FullName:  u.FullName,
		CreatedAt: u.CreatedAt,
	}
	if u.AvatarKey != "" {
		if url, err := h.media.GetDownloadURL(ctx, u.AvatarKey); err == nil {
			view.AvatarURL = url
		}
	}
	if u.CoverKey != "" {
		if url, err := h.media.GetDownloadURL(ctx, u.CoverKey); err == nil {
			view.CoverURL = url
		}
	}
	return view
}

func (h *Handler) Register(c *gin.Context) {
	var req struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		FullName string `json:"fullName"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	user, err := h.users.Register(c.Request.Context(), req.Username, req.Email, req.FullName, req.Password)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"user": h.newAccountView(c.Request.Context(), user)})
}

func (h *Handler) Login(c *gin.Context) {
	var req struct {
		Identifier string `json:"identifier"`
		Password   string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	user, pair, err := h.users.Login(c.Request.Context(), req.Identifier, req.Password)
	if err != nil {
		// Unknown identifier and wrong password collapse into one opaque
		// response so account existence never leaks.
		if errors.Is(err, common.ErrNotFound) || errors.Is(err, common.ErrInvalidCredential) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid identifier or password"})
			return
		}
		h.writeError(c, err)
		return
	}

	h.setTokenCookies(c, pair)
	c.JSON(http.StatusOK, gin.H{
		"user":         h.newAccountView(c.Request.Context(), user),
		"accessToken":  pair.AccessToken,
		"refreshToken": pair.RefreshToken,
	})
}

func (h *Handler) Refresh(c *gin.Context) {
	// Side channel first, body as fallback.
	token := h.refreshTokenFromCookie(c)
	if token == "" {
		var req struct {
			RefreshToken string `json:"refreshToken"`
		}
		// Body is optional; ignore bind errors and let the service decide.
		_ = c.ShouldBindJSON(&req)
		token = req.RefreshToken
	}

	pair, err := h.users.Refresh(c.Request.Context(), token)
	if err != nil {
		h.writeError(c, err)
		return
	}

	h.setTokenCookies(c, pair)
	c.JSON(http.StatusOK, gin.H{
		"accessToken":  pair.AccessToken,
		"refreshToken": pair.RefreshToken,
	})
}

func (h *Handler) Logout(c *gin.Context) {
	userID := principalID(c)

	if err := h.users.Logout(c.Request.Context(), userID); err != nil {
		h.writeError(c, err)
		return
	}

	h.clearTokenCookies(c)
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

func (h *Handler) ChangePassword(c *gin.Context) {
	var req struct {
		OldPassword string `json:"oldPassword"`
		NewPassword string `json:"newPassword"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if err := h.users.ChangePassword(c.Request.Context(), principalID(c), req.OldPassword, req.NewPassword); err != nil {
		h.writeError(c, err)
		return
	}

	h.clearTokenCookies(c)
	c.JSON(http.StatusOK, gin.H{"message": "password changed"})
}

func (h *Handler) CurrentUser(c *gin.Context) {
	user, err := h.users.CurrentUser(c.Request.Context(), principalID(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": h.newAccountView(c.Request.Context(), user)})
}

func (h *Handler) UpdateDetails(c *gin.Context) {
	var req struct {
		FullName string `json:"fullName"`
		Email    string `json:"email"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	user, err := h.users.UpdateDetails(c.Request.Context(), principalID(c), req.FullName, req.Email)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": h.newAccountView(c.Request.Context(), user)})
}

// ImageUploadURL hands out a presigned PUT URL plus the storage key the
// client must echo back once the upload finished.
func (h *Handler) ImageUploadURL(c *gin.Context) {
	key, url, err := h.media.GetUploadURL(c.Request.Context())
	if err != nil {
		h.logger.Error(c.Request.Context(), "presign failed", "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"key": key, "uploadUrl": url})
}

func (h *Handler) SetAvatar(c *gin.Context) { h.setImage(c, services.ImageAvatar) }

func (h *Handler) SetCover(c *gin.Context) { h.setImage(c, services.ImageCover) }

func (h *Handler) setImage(c *gin.Context, kind services.ImageKind) {
	var req struct {
		Key string `json:"key"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if err := h.media.SetImage(c.Request.Context(), principalID(c), kind, req.Key); err != nil {
		h.writeError(c, err)
		return
	}

	user, err := h.users.CurrentUser(c.Request.Context(), principalID(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": h.newAccountView(c.Request.Context(), user)})
}

// writeError maps the typed failures of the services onto status codes.
// Token reuse intentionally looks like any other invalid token to the
// caller; the distinct classification exists for audit, not for clients.
func (h *Handler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, common.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, common.ErrAlreadyExists):
		c.JSON(http.StatusConflict, gin.H{"error": "user with this username or email already exists"})
	case errors.Is(err, common.ErrInvalidCredential):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credential"})
	case errors.Is(err, common.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
	case errors.Is(err, common.ErrTokenReuse),
		errors.Is(err, common.ErrTokenExpired),
		errors.Is(err, common.ErrInvalidToken):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
	case errors.Is(err, common.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	default:
		h.logger.Error(c.Request.Context(), "request failed", "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
