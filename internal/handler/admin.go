package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/zipgallery/zipgallery/internal/config"
	"github.com/zipgallery/zipgallery/internal/keypool"
	"github.com/zipgallery/zipgallery/internal/model"
)

// AdminHandler handles credential pool administration.
type AdminHandler struct {
	pool *keypool.Pool
	cfg  *config.Config
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(pool *keypool.Pool, cfg *config.Config) *AdminHandler {
	return &AdminHandler{pool: pool, cfg: cfg}
}

// RegisterRoutes registers admin routes on the admin group.
func (h *AdminHandler) RegisterRoutes(admin *gin.RouterGroup) {
	admin.GET("/keys", h.ListKeys)
	admin.POST("/keys", h.AddKey)
}

// ─────────────────────────────────────────────
// GET /api/v1/admin/keys
// ─────────────────────────────────────────────

type KeyListResponse struct {
	Keys   []keypool.KeyInfo `json:"keys"` // tokens are masked
	Total  int               `json:"total"`
	Valid  int               `json:"valid"`
	Failed int               `json:"failed"`
}

// ListKeys returns the credential pool with masked tokens.
func (h *AdminHandler) ListKeys(c *gin.Context) {
	total, valid, failed := h.pool.Counts()
	c.JSON(http.StatusOK, KeyListResponse{
		Keys:   h.pool.Snapshot(),
		Total:  total,
		Valid:  valid,
		Failed: failed,
	})
}

// ─────────────────────────────────────────────
// POST /api/v1/admin/keys
// ─────────────────────────────────────────────

type AddKeyResponse struct {
	Added bool   `json:"added"` // false when the key was already pooled
	Key   string `json:"key"`   // masked
	Total int    `json:"total"`
}

// AddKey registers an image-host credential in the pool.
func (h *AdminHandler) AddKey(c *gin.Context) {
	var req model.AddKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(req.Key) < h.cfg.Batch.MinKeyLength {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": fmt.Sprintf("key is too short (minimum %d characters)", h.cfg.Batch.MinKeyLength),
		})
		return
	}

	added := h.pool.Add(req.Key)
	total, _, _ := h.pool.Counts()
	c.JSON(http.StatusOK, AddKeyResponse{
		Added: added,
		Key:   keypool.Mask(req.Key),
		Total: total,
	})
}
