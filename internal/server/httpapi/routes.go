package httpapi

import (
	"github.com/akovalyov/cliphub/internal/server/auth"
	"github.com/gin-gonic/gin"
)

// RegisterRoutes mounts the user/session API under the given group.
func RegisterRoutes(rg *gin.RouterGroup, handler *Handler, issuer *auth.Issuer) {
	users := rg.Group("/users")

	// public routes
	users.POST("/register", handler.Register)
	users.POST("/login", handler.Login)
	users.POST("/refresh", handler.Refresh)

	// private routes
	protected := users.Group("/")
	protected.Use(AuthMiddleware(issuer))

	protected.POST("/logout", handler.Logout)
	protected.POST("/change-password", handler.ChangePassword)
	protected.GET("/me", handler.CurrentUser)
	protected.PATCH("/me", handler.UpdateDetails)
	protected.POST("/media/upload-url", handler.ImageUploadURL)
	protected.PATCH("/avatar", handler.SetAvatar)
	protected.PATCH("/cover", handler.SetCover)
}
