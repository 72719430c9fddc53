package uploader

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/zipgallery/zipgallery/internal/imghost"
	"github.com/zipgallery/zipgallery/internal/keypool"
	"github.com/zipgallery/zipgallery/internal/model"
)

var (
	// ErrSolicitCancelled is returned by a Solicitor when the requester
	// sent the cancel token.
	ErrSolicitCancelled = errors.New("credential solicitation cancelled")
	// ErrSolicitTimeout is returned by a Solicitor when no usable reply
	// arrived in time.
	ErrSolicitTimeout = errors.New("credential solicitation timed out")
)

// Host uploads one normalized image and returns its hosted URL.
type Host interface {
	Upload(ctx context.Context, key, name string, data []byte) (string, error)
}

// Normalizer prepares raw image bytes for upload.
type Normalizer interface {
	Image(data []byte) ([]byte, error)
}

// Solicitor asks the requester for a replacement credential while the
// job is suspended. It blocks until a credential arrives or returns
// ErrSolicitCancelled / ErrSolicitTimeout.
type Solicitor interface {
	Solicit(ctx context.Context, requesterID, reason string) (string, error)
}

// ProgressSink receives per-item progress updates. Implementations must
// not block; delivery is best effort.
type ProgressSink interface {
	Progress(requesterID string, update model.ProgressUpdate)
}

// Config tunes the orchestration loop.
type Config struct {
	InterItemDelay time.Duration // pause after each remote call
	MaxRotations   int           // credential swaps allowed per batch
}

// Orchestrator drives one upload job through the shared credential pool.
// It holds no state of its own between items; everything mutable lives
// on the Job and the Pool.
type Orchestrator struct {
	pool      *keypool.Pool
	host      Host
	normalize Normalizer
	solicitor Solicitor
	progress  ProgressSink
	cfg       Config
}

// New creates an Orchestrator.
func New(pool *keypool.Pool, host Host, normalize Normalizer, solicitor Solicitor, progress ProgressSink, cfg Config) *Orchestrator {
	return &Orchestrator{
		pool:      pool,
		host:      host,
		normalize: normalize,
		solicitor: solicitor,
		progress:  progress,
		cfg:       cfg,
	}
}

// Run processes the job until a terminal state and returns that state.
// Items are uploaded strictly in order; a credential rejection retries
// the same item after a swap, so no item is skipped or sent twice.
func (o *Orchestrator) Run(ctx context.Context, job *Job) model.BatchStatus {
	key, ok := o.pool.Current()
	if !ok {
		job.noteError("no image-host credentials configured")
		job.setStatus(model.BatchStatusCancelled)
		return model.BatchStatusCancelled
	}

	job.setStatus(model.BatchStatusRunning)
	consecutive := 0

	for {
		item, ok := job.current()
		if !ok {
			break
		}

		data, err := o.normalize.Image(item.Data)
		if err != nil {
			// Nothing was sent, so there is no delay and no progress
			// push; the cursor just moves past the broken item.
			job.markItemError(fmt.Sprintf("%s: %v", item.Name, err))
			continue
		}

		hosted, err := o.host.Upload(ctx, key, item.Name, data)
		switch {
		case err == nil:
			job.markSuccess(item.Name, hosted)
			o.pool.RecordUpload(key)
			consecutive++
			if consecutive == 3 {
				o.pool.MarkValid(key)
			}

		case errors.Is(err, imghost.ErrCredentialRejected):
			o.pool.MarkFailed(key)
			o.pool.Advance()
			consecutive = 0
			if job.addRotation() > o.cfg.MaxRotations {
				job.noteError(fmt.Sprintf("credential rotation limit (%d) reached at %s, giving up", o.cfg.MaxRotations, item.Name))
				job.setStatus(model.BatchStatusCancelled)
				return model.BatchStatusCancelled
			}

			if total, _, failed := o.pool.Counts(); total > failed {
				next, _ := o.pool.Current()
				log.Printf("[uploader] batch %s: credential %s rejected, falling back to %s",
					job.ID, keypool.Mask(key), keypool.Mask(next))
				key = next
				continue // same item, fresh credential
			}

			// No credential left to fall back on: suspend the job and
			// ask the requester for a replacement.
			job.setStatus(model.BatchStatusAwaiting)
			log.Printf("[uploader] batch %s: credential %s rejected, soliciting replacement", job.ID, keypool.Mask(key))
			replacement, serr := o.solicitor.Solicit(ctx, job.RequesterID,
				fmt.Sprintf("credential %s was rejected by the image host", keypool.Mask(key)))
			if serr != nil {
				log.Printf("[uploader] batch %s: solicitation ended: %v", job.ID, serr)
				job.noteError(fmt.Sprintf("stopped at %s: %v", item.Name, serr))
				job.setStatus(model.BatchStatusCancelled)
				return model.BatchStatusCancelled
			}
			o.pool.Add(replacement)
			o.pool.MarkValid(replacement)
			key = replacement
			job.setStatus(model.BatchStatusRunning)
			continue // replay the failed item with the new credential

		default:
			if ctx.Err() != nil {
				job.noteError("service shutting down")
				job.setStatus(model.BatchStatusCancelled)
				return model.BatchStatusCancelled
			}
			job.markItemError(fmt.Sprintf("%s: %v", item.Name, err))
			consecutive = 0
		}

		done, total := job.progress()
		o.pushProgress(job, done, total)

		select {
		case <-time.After(o.cfg.InterItemDelay):
		case <-ctx.Done():
			job.noteError("service shutting down")
			job.setStatus(model.BatchStatusCancelled)
			return model.BatchStatusCancelled
		}
	}

	if consecutive > 0 {
		o.pool.MarkValid(key)
	}
	job.setStatus(model.BatchStatusDone)
	return model.BatchStatusDone
}

func (o *Orchestrator) pushProgress(job *Job, done, total int) {
	if o.progress == nil || total == 0 {
		return
	}
	o.progress.Progress(job.RequesterID, model.ProgressUpdate{
		BatchID: job.ID,
		Done:    done,
		Total:   total,
		Percent: done * 100 / total,
		Bar:     RenderBar(done, total),
	})
}

const barSegments = 20

// RenderBar draws done/total as a 20-segment text bar.
func RenderBar(done, total int) string {
	if total <= 0 {
		return strings.Repeat("░", barSegments)
	}
	filled := done * barSegments / total
	if filled > barSegments {
		filled = barSegments
	}
	return strings.Repeat("█", filled) + strings.Repeat("░", barSegments-filled)
}
