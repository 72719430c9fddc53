package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/zipgallery/zipgallery/internal/auth"
	appctx "github.com/zipgallery/zipgallery/internal/context"
)

// APIKeyAuth returns a Gin middleware that validates the API key and
// injects the authenticated Account into the context.
//
// The key is read from the Authorization header (format: "Bearer zg-xxx")
// or, for websocket clients that cannot set headers, from the "token"
// query parameter. Lookup is delegated to auth.AccountService.GetByAPIKey.
func APIKeyAuth(accounts auth.AccountService) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := extractToken(c)
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "missing or malformed Authorization header (expected: Bearer <api-key>)",
			})
			return
		}

		account, err := accounts.GetByAPIKey(c.Request.Context(), raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "invalid api key",
			})
			return
		}

		if account.Status != "active" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "account is " + account.Status,
			})
			return
		}

		c.Set(appctx.CtxKeyAccount, account)
		c.Next()
	}
}

// extractToken gets the API key from the "token" query parameter or from
// "Authorization: Bearer <token>".
func extractToken(c *gin.Context) string {
	if q := c.Query("token"); q != "" {
		return q
	}
	h := c.GetHeader("Authorization")
	if h == "" {
		return ""
	}
	parts := strings.SplitN(h, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// AdminTokenAuth returns a Gin middleware that validates the X-Admin-Token
// header against the configured admin token. This provides simple admin
// authentication without account database lookup.
func AdminTokenAuth(adminToken string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if adminToken == "" {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
				"error": "admin authentication not configured",
			})
			return
		}

		token := c.GetHeader("X-Admin-Token")
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "missing X-Admin-Token header",
			})
			return
		}

		if token != adminToken {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "invalid admin token",
			})
			return
		}

		c.Next()
	}
}
