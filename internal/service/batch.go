package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/zipgallery/zipgallery/internal/archive"
	"github.com/zipgallery/zipgallery/internal/config"
	"github.com/zipgallery/zipgallery/internal/gallery"
	"github.com/zipgallery/zipgallery/internal/history"
	"github.com/zipgallery/zipgallery/internal/imghost"
	"github.com/zipgallery/zipgallery/internal/keypool"
	"github.com/zipgallery/zipgallery/internal/model"
	"github.com/zipgallery/zipgallery/internal/session"
	"github.com/zipgallery/zipgallery/internal/stats"
	"github.com/zipgallery/zipgallery/internal/uploader"
)

// Service errors
var (
	ErrNoCredentials = errors.New("no image-host credentials in the pool")
	ErrEmptyArchive  = errors.New("archive contains no images")
)

const errorChunkSize = 5

// Narrow views of the heavier collaborators, so the batch flow can be
// exercised in tests without Postgres, Redis or a live publisher.
type batchStore interface {
	LogBatchCreated(batchID, requesterID, title string, total int)
	LogBatchFinished(batchID string, status model.BatchStatus, uploaded, failed, rotations int, galleryURL string)
	GetBatch(ctx context.Context, batchID, requesterID string) (*model.BatchLog, error)
}

type galleryCache interface {
	Lookup(ctx context.Context, requesterID, digest string) (string, error)
	Store(ctx context.Context, requesterID, digest, url string) error
}

type uploadHistory interface {
	InsertUploadLog(*history.UploadLog) error
}

type pagePublisher interface {
	Publish(ctx context.Context, title string, urls []string) (*gallery.Page, error)
	Describe(ctx context.Context, path, title string, urls []string, text string) (*gallery.Page, error)
}

type sender interface {
	SendTo(requesterID string, env model.Envelope) bool
}

// BatchService orchestrates the full batch lifecycle:
//
//	extract → cache check → upload loop → publish → report
type BatchService struct {
	base      context.Context // bounds the lifetime of background jobs
	sessions  *session.Store
	pool      *keypool.Pool
	host      uploader.Host
	normalize uploader.Normalizer
	publisher pagePublisher
	cache     galleryCache
	store     batchStore
	history   uploadHistory
	tracker   *stats.Tracker
	hub       sender
	solicitor uploader.Solicitor
	cfg       *config.Config
}

// NewBatchService creates the service. Background jobs started by
// SubmitArchive stop when base is cancelled.
func NewBatchService(
	base context.Context,
	sessions *session.Store,
	pool *keypool.Pool,
	host uploader.Host,
	normalize uploader.Normalizer,
	publisher pagePublisher,
	cache galleryCache,
	store batchStore,
	history uploadHistory,
	tracker *stats.Tracker,
	hub sender,
	cfg *config.Config,
) *BatchService {
	return &BatchService{
		base:      base,
		sessions:  sessions,
		pool:      pool,
		host:      host,
		normalize: normalize,
		publisher: publisher,
		cache:     cache,
		store:     store,
		history:   history,
		tracker:   tracker,
		hub:       hub,
		solicitor: &keySolicitor{
			sessions:    sessions,
			hub:         hub,
			tracker:     tracker,
			timeout:     cfg.Batch.SolicitTimeout,
			minKeyLen:   cfg.Batch.MinKeyLength,
			maxAttempts: cfg.Batch.MaxPromptAttempts,
		},
		cfg: cfg,
	}
}

// SubmitArchive is the intake path for one uploaded archive file:
//
//  1. Digest the file; unless force=true, a previous publish of the
//     same archive by the same requester is answered from the cache.
//  2. Extract image members (members with unsafe names are dropped).
//  3. Build the sorted job and claim the requester's single job slot.
//  4. Hand the job to a background goroutine and return immediately.
//
// requesterID is injected by the API key middleware (not from the request body).
func (s *BatchService) SubmitArchive(ctx context.Context, requesterID, archivePath, origName string, force bool) (*model.SubmitResponse, error) {
	title := strings.TrimSuffix(origName, filepath.Ext(origName))

	// ── Step 0: Fast gates ──
	if s.sessions.Job(requesterID) != nil {
		return nil, session.ErrJobActive
	}
	if total, _, _ := s.pool.Counts(); total == 0 {
		return nil, ErrNoCredentials
	}

	// ── Step 1: Cache lookup (skip if force=true) ──
	digest, err := fileDigest(archivePath)
	if err != nil {
		return nil, fmt.Errorf("digest archive: %w", err)
	}
	if !force {
		cached, err := s.cache.Lookup(ctx, requesterID, digest)
		if err != nil {
			log.Printf("[service] cache check error: %v", err)
			// continue – treat as miss
		}
		if cached != "" {
			log.Printf("[service] cache HIT requester=%s digest=%s", requesterID, digest[:12])
			s.hub.SendTo(requesterID, model.Envelope{Type: model.MsgTypeGalleryReady, Payload: model.GalleryReady{
				Title:  title,
				URL:    cached,
				Cached: true,
			}})
			return &model.SubmitResponse{Title: title, Cached: true, GalleryURL: cached}, nil
		}
	}

	// ── Step 2: Extract ──
	entries, skipped, err := archive.Extract(archivePath, origName, s.cfg.Batch.MaxArchiveSize)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", origName, err)
	}
	if len(entries) == 0 {
		return nil, ErrEmptyArchive
	}

	items := make([]uploader.Item, 0, len(entries))
	for _, e := range entries {
		items = append(items, uploader.Item{Name: e.Name, Data: e.Data})
	}

	// ── Step 3: Claim the single job slot ──
	job := uploader.NewJob(uuid.NewString(), requesterID, title, items)
	if err := s.sessions.StartJob(requesterID, job); err != nil {
		return nil, err
	}

	s.tracker.RecordBatchStarted()
	s.store.LogBatchCreated(job.ID, requesterID, title, job.Total())
	log.Printf("[service] NEW batch %s requester=%s title=%q items=%d skipped=%d force=%v",
		job.ID, requesterID, title, job.Total(), skipped, force)

	s.hub.SendTo(requesterID, model.Envelope{Type: model.MsgTypeBatchQueued, Payload: model.BatchQueued{
		BatchID: job.ID,
		Title:   title,
		Total:   job.Total(),
	}})
	if skipped > 0 {
		s.notice(requesterID, fmt.Sprintf("%d archive members had unsafe names and were skipped", skipped))
	}

	// ── Step 4: Run in the background ──
	go s.runJob(job, digest)

	return &model.SubmitResponse{BatchID: job.ID, Title: title, Total: job.Total()}, nil
}

// runJob drives one batch to a terminal state and does the post-run
// reporting. It owns the requester's job slot until it returns.
func (s *BatchService) runJob(job *uploader.Job, digest string) {
	defer s.sessions.ClearJob(job.RequesterID, job.ID)

	orch := uploader.New(s.pool, recordingHost{svc: s, job: job}, s.normalize, s.solicitor, s, uploader.Config{
		InterItemDelay: s.cfg.Batch.InterItemDelay,
		MaxRotations:   s.cfg.Batch.MaxRotations,
	})
	status := orch.Run(s.base, job)

	uploaded := len(job.Results())
	errs := job.Errors()
	log.Printf("[service] batch %s finished status=%s uploaded=%d/%d errors=%d rotations=%d",
		job.ID, status, uploaded, job.Total(), len(errs), job.Rotations())

	s.sendErrorChunks(job, errs)

	galleryURL := ""
	if uploaded > 0 {
		galleryURL = s.publishResult(job, status, digest)
	} else {
		s.notice(job.RequesterID, "no images could be uploaded, nothing to publish")
	}

	switch status {
	case model.BatchStatusDone:
		s.tracker.RecordBatchCompleted()
	case model.BatchStatusCancelled:
		s.tracker.RecordBatchCancelled()
	}

	s.store.LogBatchFinished(job.ID, status, uploaded, len(errs), job.Rotations(), galleryURL)
	s.hub.SendTo(job.RequesterID, model.Envelope{Type: model.MsgTypeBatchDone, Payload: model.BatchDone{
		BatchID:   job.ID,
		Status:    status,
		Uploaded:  uploaded,
		Failed:    len(errs),
		Rotations: job.Rotations(),
	}})
}

// publishResult publishes whatever the batch managed to upload. A batch
// that ended early still gets its partial gallery; only a complete run
// is cached for replay.
func (s *BatchService) publishResult(job *uploader.Job, status model.BatchStatus, digest string) string {
	urls := job.URLs()
	page, err := s.publisher.Publish(s.base, job.Title, urls)
	if err != nil {
		log.Printf("[service] batch %s: publish failed: %v", job.ID, err)
		s.notice(job.RequesterID, fmt.Sprintf("%d images uploaded but publishing failed: %v", len(urls), err))
		return ""
	}

	complete := status == model.BatchStatusDone && len(urls) == job.Total()
	if complete {
		if err := s.cache.Store(s.base, job.RequesterID, digest, page.URL); err != nil {
			log.Printf("[service] cache store error: %v", err)
		}
	}

	s.sessions.SetPost(job.RequesterID, &session.GalleryPost{
		Path:  page.Path,
		Title: job.Title,
		URLs:  urls,
		URL:   page.URL,
	})

	s.hub.SendTo(job.RequesterID, model.Envelope{Type: model.MsgTypeGalleryReady, Payload: model.GalleryReady{
		BatchID: job.ID,
		Title:   job.Title,
		URL:     page.URL,
		Count:   len(urls),
		Partial: !complete,
	}})
	s.notice(job.RequesterID, "send a description for the gallery, or /skip to keep it as is")
	return page.URL
}

// sendErrorChunks reports accumulated errors in chunks of five.
func (s *BatchService) sendErrorChunks(job *uploader.Job, errs []string) {
	if len(errs) == 0 {
		return
	}
	chunks := (len(errs) + errorChunkSize - 1) / errorChunkSize
	for i := 0; i < chunks; i++ {
		lo := i * errorChunkSize
		hi := lo + errorChunkSize
		if hi > len(errs) {
			hi = len(errs)
		}
		s.hub.SendTo(job.RequesterID, model.Envelope{Type: model.MsgTypeUploadErrors, Payload: model.UploadErrors{
			BatchID: job.ID,
			Chunk:   i + 1,
			Chunks:  chunks,
			Errors:  errs[lo:hi],
		}})
	}
}

// Progress implements uploader.ProgressSink by forwarding updates over
// the requester's websocket connection.
func (s *BatchService) Progress(requesterID string, u model.ProgressUpdate) {
	s.hub.SendTo(requesterID, model.Envelope{Type: model.MsgTypeProgress, Payload: u})
}

// Snapshot returns the live view of the requester's batch, falling back
// to the SQL log for finished ones.
func (s *BatchService) Snapshot(ctx context.Context, requesterID, batchID string) (*model.BatchSnapshot, error) {
	if job := s.sessions.Job(requesterID); job != nil && job.ID == batchID {
		snap := job.Snapshot()
		return &snap, nil
	}

	bl, err := s.store.GetBatch(ctx, batchID, requesterID)
	if err != nil {
		return nil, err
	}
	done := bl.Uploaded + bl.Failed
	if done > bl.Total {
		done = bl.Total
	}
	return &model.BatchSnapshot{
		BatchID:   bl.BatchID,
		Title:     bl.Title,
		Status:    bl.Status,
		Done:      done,
		Total:     bl.Total,
		Uploaded:  bl.Uploaded,
		Failed:    bl.Failed,
		Rotations: bl.Rotations,
		CreatedAt: bl.CreatedAt,
	}, nil
}

func (s *BatchService) notice(requesterID, text string) {
	s.hub.SendTo(requesterID, model.Envelope{Type: model.MsgTypeNotice, Payload: model.Notice{Text: text}})
}

// ─────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────

// recordingHost wraps the image-host client so every outcome lands in
// the sqlite history and the live counters.
type recordingHost struct {
	svc *BatchService
	job *uploader.Job
}

func (h recordingHost) Upload(ctx context.Context, key, name string, data []byte) (string, error) {
	start := time.Now()
	url, err := h.svc.host.Upload(ctx, key, name, data)
	if err != nil {
		// Credential rejections are not item failures: the same item is
		// retried after the swap.
		if !errors.Is(err, imghost.ErrCredentialRejected) && ctx.Err() == nil {
			h.svc.tracker.RecordImageFailed()
		}
		return "", err
	}

	h.svc.tracker.RecordImageUploaded()
	if err := h.svc.history.InsertUploadLog(&history.UploadLog{
		BatchID:     h.job.ID,
		RequesterID: h.job.RequesterID,
		ImageName:   name,
		URL:         url,
		Bytes:       int64(len(data)),
		DurationMS:  time.Since(start).Milliseconds(),
		KeyMask:     keypool.Mask(key),
		CreatedAt:   time.Now().UTC(),
	}); err != nil {
		log.Printf("[service] history write error: %v", err)
	}
	return url, nil
}

// fileDigest streams the archive once for its SHA-256 cache identity.
func fileDigest(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
