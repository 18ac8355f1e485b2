package httpapi

import (
	"net/http"

	"github.com/akovalyov/cliphub/internal/server/services"
	"github.com/gin-gonic/gin"
)

const (
	accessTokenCookie  = "accessToken"
	refreshTokenCookie = "refreshToken"
)

// setTokenCookies transports both tokens as httpOnly cookies alongside the
// JSON body, so browser clients never touch them from script.
func (h *Handler) setTokenCookies(c *gin.Context, pair *services.TokenPair) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(accessTokenCookie, pair.AccessToken,
		int(h.cfg.AccessTokenValidityDuration.Seconds()), "/", "", h.cfg.CookieSecure, true)
	c.SetCookie(refreshTokenCookie, pair.RefreshToken,
		int(h.cfg.RefreshTokenValidityDuration.Seconds()), "/", "", h.cfg.CookieSecure, true)
}

func (h *Handler) clearTokenCookies(c *gin.Context) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(accessTokenCookie, "", -1, "/", "", h.cfg.CookieSecure, true)
	c.SetCookie(refreshTokenCookie, "", -1, "/", "", h.cfg.CookieSecure, true)
}

func (h *Handler) refreshTokenFromCookie(c *gin.Context) string {
	token, err := c.Cookie(refreshTokenCookie)
	if err != nil {
		return ""
	}
	return token
}
