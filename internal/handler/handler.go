package handler

import (
	"archive/zip"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/zipgallery/zipgallery/internal/archive"
	"github.com/zipgallery/zipgallery/internal/config"
	appctx "github.com/zipgallery/zipgallery/internal/context"
	"github.com/zipgallery/zipgallery/internal/history"
	"github.com/zipgallery/zipgallery/internal/keypool"
	"github.com/zipgallery/zipgallery/internal/service"
	"github.com/zipgallery/zipgallery/internal/session"
	"github.com/zipgallery/zipgallery/internal/stats"
	"github.com/zipgallery/zipgallery/internal/store"
	"github.com/zipgallery/zipgallery/internal/ws"
)

// Handler holds the HTTP/WS endpoint handlers around the batch service.
type Handler struct {
	svc      *service.BatchService
	hub      *ws.Hub
	sessions *session.Store
	pool     *keypool.Pool
	tracker  *stats.Tracker
	histDB   *history.DB
	cfg      *config.Config
	upgrader websocket.Upgrader
}

// NewHandler creates the handler set.
func NewHandler(svc *service.BatchService, hub *ws.Hub, sessions *session.Store, pool *keypool.Pool, tracker *stats.Tracker, histDB *history.DB, cfg *config.Config) *Handler {
	return &Handler{
		svc:      svc,
		hub:      hub,
		sessions: sessions,
		pool:     pool,
		tracker:  tracker,
		histDB:   histDB,
		cfg:      cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// RegisterRoutes registers the public and requester-facing routes.
// apiKey protects everything under /api/v1 except the status endpoint.
func (h *Handler) RegisterRoutes(r *gin.Engine, apiKey gin.HandlerFunc) {
	// ── Public endpoints (no auth) ──
	r.GET("/health", h.Health)
	r.GET("/api/v1/status", h.Status)

	// ── Requester endpoints (API key auth) ──
	api := r.Group("/api/v1", apiKey)
	{
		api.GET("/ws", h.WebSocket)
		api.POST("/batches", h.SubmitBatch)
		api.GET("/batches/:id", h.BatchStatus)
	}
}

// ─────────────────────────────────────────────
// POST /api/v1/batches
// ─────────────────────────────────────────────

// SubmitBatch accepts one archive upload and starts a batch for it.
//
// Multipart field "archive" carries the file; form field "force=true"
// bypasses the published-gallery cache. Responds 202 with the batch ID,
// or 200 when the archive was answered from the cache.
func (h *Handler) SubmitBatch(c *gin.Context) {
	requesterID := appctx.RequesterID(c)

	file, err := c.FormFile("archive")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": `multipart field "archive" is required`})
		return
	}
	if file.Size > h.cfg.Batch.MaxArchiveSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{
			"error": fmt.Sprintf("archive exceeds the %d MiB limit", h.cfg.Batch.MaxArchiveSize>>20),
		})
		return
	}
	force := c.PostForm("force") == "true"

	// Spool the upload to disk; extraction reads it more than once.
	tmp, err := os.CreateTemp("", "zipgallery-*"+filepath.Ext(file.Filename))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to buffer upload"})
		return
	}
	tmpPath := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpPath)

	if err := c.SaveUploadedFile(file, tmpPath); err != nil {
		log.Printf("[handler] save upload error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to buffer upload"})
		return
	}

	resp, err := h.svc.SubmitArchive(c.Request.Context(), requesterID, tmpPath, filepath.Base(file.Filename), force)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrJobActive):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		case errors.Is(err, service.ErrNoCredentials),
			errors.Is(err, service.ErrEmptyArchive),
			errors.Is(err, archive.ErrUnsupported),
			errors.Is(err, zip.ErrFormat):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	if resp.Cached {
		c.JSON(http.StatusOK, resp)
		return
	}
	c.JSON(http.StatusAccepted, resp)
}

// ─────────────────────────────────────────────
// GET /api/v1/batches/:id
// ─────────────────────────────────────────────

// BatchStatus returns the snapshot of one of the requester's batches,
// live or finished.
func (h *Handler) BatchStatus(c *gin.Context) {
	snap, err := h.svc.Snapshot(c.Request.Context(), appctx.RequesterID(c), c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrBatchNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "batch not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load batch"})
		return
	}
	c.JSON(http.StatusOK, snap)
}

// ─────────────────────────────────────────────
// GET /api/v1/ws  (Requester gateway)
// ─────────────────────────────────────────────

// WebSocket upgrades the connection and attaches it to the requester's
// hub slot. The API key middleware has already resolved the requester;
// browser clients pass the key as the "token" query parameter.
func (h *Handler) WebSocket(c *gin.Context) {
	requesterID := appctx.RequesterID(c)

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("[handler] websocket upgrade error: %v", err)
		return
	}

	client := ws.NewClient(requesterID, conn, h.hub)
	client.Run(c.Request.Context())
}

// ─────────────────────────────────────────────
// GET /health
// ─────────────────────────────────────────────

// Health returns basic liveness info; the keep-alive self-ping hits it.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"connections": h.hub.ClientCount(),
	})
}

// ─────────────────────────────────────────────
// GET /api/v1/status
// ─────────────────────────────────────────────

type poolStatus struct {
	Total  int `json:"total"`
	Valid  int `json:"valid"`
	Failed int `json:"failed"`
}

// StatusResponse is the public service status document.
type StatusResponse struct {
	Status        string                  `json:"status"`
	UptimeSeconds int64                   `json:"uptime_seconds"`
	Requesters    int                     `json:"requesters"`
	Connections   int                     `json:"connections"`
	Pool          poolStatus              `json:"pool"`
	Live          stats.Stats             `json:"live"`
	Totals        *history.AggregateStats `json:"totals,omitempty"`
	Daily         []history.DailyStat     `json:"daily,omitempty"`
}

// Status reports pool, session and upload statistics. Public: it
// carries no tokens and no requester identifiers.
func (h *Handler) Status(c *gin.Context) {
	st := h.tracker.GetStats()
	total, valid, failed := h.pool.Counts()

	resp := StatusResponse{
		Status:        "ok",
		UptimeSeconds: int64(time.Since(st.StartTime).Seconds()),
		Requesters:    h.sessions.Count(),
		Connections:   h.hub.ClientCount(),
		Pool:          poolStatus{Total: total, Valid: valid, Failed: failed},
		Live:          st,
	}

	if agg, err := h.histDB.GetAggregateStats(); err == nil {
		resp.Totals = agg
	} else {
		log.Printf("[handler] aggregate stats error: %v", err)
	}
	if daily, err := h.histDB.GetRecentDaily(7); err == nil {
		resp.Daily = daily
	}

	c.JSON(http.StatusOK, resp)
}
