package model

import (
	"time"
)

// ─────────────────────────────────────────────
// Batch State Machine
// ─────────────────────────────────────────────

type BatchStatus string

const (
	BatchStatusQueued    BatchStatus = "QUEUED"
	BatchStatusRunning   BatchStatus = "RUNNING"
	BatchStatusAwaiting  BatchStatus = "AWAITING_CREDENTIAL"
	BatchStatusDone      BatchStatus = "DONE"
	BatchStatusCancelled BatchStatus = "CANCELLED"
)

// CancelToken is the reply that aborts a pending credential solicitation.
const CancelToken = "/cancel"

// GalleryCacheKey builds the published-gallery cache key:
// "gallery:{RequesterID}:{ArchiveDigest}"
func GalleryCacheKey(requesterID, digest string) string {
	return "gallery:" + requesterID + ":" + digest
}

// ─────────────────────────────────────────────
// WebSocket Protocol Messages
// ─────────────────────────────────────────────

type MsgType string

const (
	// Server → Requester
	MsgTypeBatchQueued      MsgType = "BATCH_QUEUED"
	MsgTypeProgress         MsgType = "PROGRESS"
	MsgTypeNeedKey          MsgType = "NEED_KEY"
	MsgTypeUploadErrors     MsgType = "UPLOAD_ERRORS"
	MsgTypeGalleryReady     MsgType = "GALLERY_READY"
	MsgTypeBatchDone        MsgType = "BATCH_DONE"
	MsgTypeDescriptionSaved MsgType = "DESCRIPTION_SAVED"
	MsgTypeNotice           MsgType = "NOTICE"

	// Requester → Server
	MsgTypeText MsgType = "TEXT"
)

// Envelope is the top-level WebSocket frame.
type Envelope struct {
	Type    MsgType     `json:"type"`
	Payload interface{} `json:"payload"`
}

// BatchQueued is pushed when a submitted archive has been accepted.
type BatchQueued struct {
	BatchID string `json:"batch_id"`
	Title   string `json:"title"`
	Total   int    `json:"total"`
}

// ProgressUpdate is pushed after each processed item.
type ProgressUpdate struct {
	BatchID string `json:"batch_id"`
	Done    int    `json:"done"`
	Total   int    `json:"total"`
	Percent int    `json:"percent"`
	Bar     string `json:"bar"` // 20-segment text bar
}

// NeedKey asks the requester for a replacement credential.
type NeedKey struct {
	BatchID string `json:"batch_id"`
	Reason  string `json:"reason"`
}

// UploadErrors carries one chunk of per-item error messages.
type UploadErrors struct {
	BatchID string   `json:"batch_id"`
	Chunk   int      `json:"chunk"`
	Chunks  int      `json:"chunks"`
	Errors  []string `json:"errors"`
}

// GalleryReady announces the published gallery URL.
type GalleryReady struct {
	BatchID string `json:"batch_id"`
	Title   string `json:"title"`
	URL     string `json:"url"`
	Count   int    `json:"count"`
	Cached  bool   `json:"cached"`
	Partial bool   `json:"partial"` // batch ended early, gallery holds what succeeded
}

// BatchDone summarises a finished batch.
type BatchDone struct {
	BatchID   string      `json:"batch_id"`
	Status    BatchStatus `json:"status"`
	Uploaded  int         `json:"uploaded"`
	Failed    int         `json:"failed"`
	Rotations int         `json:"rotations"`
}

// DescriptionSaved confirms a post-publish description edit.
type DescriptionSaved struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// Notice is a free-form server→requester text message.
type Notice struct {
	Text string `json:"text"`
}

// TextMessage is the requester→server reply frame: a command, a credential
// while one is being solicited, or a gallery description.
type TextMessage struct {
	Text string `json:"text"`
}

// ─────────────────────────────────────────────
// SQL Persistence Models (async write)
// ─────────────────────────────────────────────

// BatchLog records every batch lifecycle (one record per batch).
type BatchLog struct {
	BatchID     string      `gorm:"primaryKey" json:"batch_id"`
	RequesterID string      `gorm:"index" json:"requester_id"`
	Title       string      `json:"title"`
	Total       int         `json:"total"`
	Uploaded    int         `json:"uploaded"`
	Failed      int         `json:"failed"`
	Rotations   int         `json:"rotations"`
	Status      BatchStatus `json:"status"`
	GalleryURL  string      `json:"gallery_url"`
	CreatedAt   time.Time   `json:"created_at"`
	FinishedAt  *time.Time  `json:"finished_at,omitempty"`
}

// ─────────────────────────────────────────────
// HTTP Request / Response
// ─────────────────────────────────────────────

// SubmitResponse is returned when an archive is accepted for processing,
// or immediately when the same archive was already published and cached.
type SubmitResponse struct {
	BatchID    string `json:"batch_id,omitempty"`
	Title      string `json:"title"`
	Total      int    `json:"total"`
	Cached     bool   `json:"cached,omitempty"`
	GalleryURL string `json:"gallery_url,omitempty"`
}

// BatchSnapshot is the live view of a running or suspended batch.
// RequesterID is never included – the endpoint is already requester-scoped.
type BatchSnapshot struct {
	BatchID   string      `json:"batch_id"`
	Title     string      `json:"title"`
	Status    BatchStatus `json:"status"`
	Done      int         `json:"done"`
	Total     int         `json:"total"`
	Uploaded  int         `json:"uploaded"`
	Failed    int         `json:"failed"`
	Rotations int         `json:"rotations"`
	CreatedAt time.Time   `json:"created_at"`
}

// AddKeyRequest is the admin request to register a pool credential.
type AddKeyRequest struct {
	Key string `json:"key" binding:"required"`
}
