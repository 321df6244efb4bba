package middlewares

import (
	"net/http"

	"github.com/blogward/blogward/internal/auth"
	"github.com/gin-gonic/gin"
)

// Keep this small interface so tests can fake it easily.
type TokenVerifier interface {
	VerifyAccessToken(token string) (*auth.Claims, error)
	VerifyTwoFAToken(token string) (*auth.Claims, error)
}

type AuthMiddleware struct {
	jwt TokenVerifier
}

func NewAuthMiddleware(jwt TokenVerifier) *AuthMiddleware {
	return &AuthMiddleware{jwt: jwt}
}

// RequireAuth admits only requests carrying a valid access token cookie and
// stashes the verified identity on the context. Verification fails closed:
// any error is treated as no identity.
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, err := c.Cookie(AccessTokenCookie)
		if err != nil || raw == "" {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}

		claims, err := m.jwt.VerifyAccessToken(raw)
		if err != nil {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}

		c.Set(ctxIdentityKey, claims)
		c.Next()
	}
}

// RequireGuest blocks already-authenticated clients from the register/login
// endpoints. A stale or invalid cookie counts as unauthenticated.
func (m *AuthMiddleware) RequireGuest() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, err := c.Cookie(AccessTokenCookie)
		if err != nil || raw == "" {
			c.Next()
			return
		}

		if _, err := m.jwt.VerifyAccessToken(raw); err == nil {
			c.AbortWithStatus(http.StatusForbidden)
			return
		}

		c.Next()
	}
}

// RequireTwoFAPending admits only clients holding the short-lived token
// issued after the password check, and stashes the pending user id.
func (m *AuthMiddleware) RequireTwoFAPending() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, err := c.Cookie(TwoFATokenCookie)
		if err != nil || raw == "" {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}

		claims, err := m.jwt.VerifyTwoFAToken(raw)
		if err != nil {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}

		c.Set(ctxPendingUserKey, claims.UserID)
		c.Next()
	}
}

// Helpers so handlers and downstream guards don't need the magic keys.

func IdentityFromContext(c *gin.Context) (*auth.Claims, bool) {
	v, ok := c.Get(ctxIdentityKey)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*auth.Claims)
	return claims, ok
}

func PendingUserIDFromContext(c *gin.Context) (int64, bool) {
	v, ok := c.Get(ctxPendingUserKey)
	if !ok {
		return 0, false
	}
	id, ok := v.(int64)
	return id, ok
}
