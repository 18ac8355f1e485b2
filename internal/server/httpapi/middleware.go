package httpapi

import (
	"net/http"
	"strings"

	"github.com/akovalyov/cliphub/internal/server/auth"
	"github.com/gin-gonic/gin"
)

const principalKey = "principal_id"

// AuthMiddleware resolves the authenticated principal from a Bearer access
// token, falling back to the access-token cookie, and aborts with 401 when
// neither verifies.
func AuthMiddleware(issuer *auth.Issuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		accessToken := extractTokenFromHeader(c.GetHeader("Authorization"))
		if accessToken == "" {
			if cookie, err := c.Cookie(accessTokenCookie); err == nil {
				accessToken = cookie
			}
		}

		if accessToken == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing access token"})
			return
		}

		userID, err := issuer.VerifyAccess(accessToken)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set(principalKey, userID)
		c.Next()
	}
}

func extractTokenFromHeader(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func principalID(c *gin.Context) string {
	return c.GetString(principalKey)
}
