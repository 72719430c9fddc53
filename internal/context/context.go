package context

import (
	"github.com/gin-gonic/gin"
	"github.com/zipgallery/zipgallery/internal/auth"
)

// Context key for the authenticated account.
const CtxKeyAccount = "auth_account"

// MustGetAccount extracts the authenticated account from the Gin context.
// Panics if not present (should only be called after APIKeyAuth middleware).
func MustGetAccount(c *gin.Context) *auth.Account {
	v, exists := c.Get(CtxKeyAccount)
	if !exists {
		panic("MustGetAccount called without APIKeyAuth middleware")
	}
	return v.(*auth.Account)
}

// RequesterID is a shorthand that returns the account ID string.
// Batches, sessions and websocket connections are all keyed by this value.
func RequesterID(c *gin.Context) string {
	a := MustGetAccount(c)
	return a.ID
}
