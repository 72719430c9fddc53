package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/zipgallery/zipgallery/internal/auth"
	appctx "github.com/zipgallery/zipgallery/internal/context"
)

// AccountHandler handles the authenticated account endpoints.
type AccountHandler struct {
	accounts auth.AccountService
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(accounts auth.AccountService) *AccountHandler {
	return &AccountHandler{accounts: accounts}
}

// RegisterRoutes registers account routes on the api group.
func (h *AccountHandler) RegisterRoutes(api *gin.RouterGroup) {
	api.GET("/me", h.Me)
	api.POST("/me/reset-key", h.ResetAPIKey)
}

// ─────────────────────────────────────────────
// GET /api/v1/me
// ─────────────────────────────────────────────

// Me returns the authenticated account's profile.
func (h *AccountHandler) Me(c *gin.Context) {
	c.JSON(http.StatusOK, appctx.MustGetAccount(c))
}

// ─────────────────────────────────────────────
// POST /api/v1/me/reset-key
// ─────────────────────────────────────────────

type ResetKeyResponse struct {
	APIKey string `json:"api_key"`
}

// ResetAPIKey regenerates the account's API key. The old key stops
// working immediately, open websocket connections included.
func (h *AccountHandler) ResetAPIKey(c *gin.Context) {
	account := appctx.MustGetAccount(c)

	updated, err := h.accounts.ResetAPIKey(c.Request.Context(), account.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to reset api key"})
		return
	}

	c.JSON(http.StatusOK, ResetKeyResponse{APIKey: updated.APIKey})
}
