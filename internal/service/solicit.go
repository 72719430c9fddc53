package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/zipgallery/zipgallery/internal/model"
	"github.com/zipgallery/zipgallery/internal/session"
	"github.com/zipgallery/zipgallery/internal/stats"
	"github.com/zipgallery/zipgallery/internal/uploader"
)

// keySolicitor implements uploader.Solicitor over the websocket reply
// channel: it parks the suspended job on a per-requester waiter until a
// usable credential, a cancel, or a timeout arrives.
//
// Every exit path removes the waiter, so no listener outlives its job.
type keySolicitor struct {
	sessions    *session.Store
	hub         sender
	tracker     *stats.Tracker
	timeout     time.Duration // per reply, reset after each re-prompt
	minKeyLen   int
	maxAttempts int // undersized replies tolerated before giving up
}

func (k *keySolicitor) Solicit(ctx context.Context, requesterID, reason string) (string, error) {
	ch, err := k.sessions.CreateKeyWait(requesterID)
	if err != nil {
		return "", fmt.Errorf("create credential waiter: %w", err)
	}
	defer func() { k.sessions.RemoveKeyWait(requesterID, ch) }()

	k.tracker.RecordKeySolicited()

	batchID := ""
	if job := k.sessions.Job(requesterID); job != nil {
		batchID = job.ID
	}
	k.hub.SendTo(requesterID, model.Envelope{Type: model.MsgTypeNeedKey, Payload: model.NeedKey{
		BatchID: batchID,
		Reason:  reason,
	}})

	for attempt := 0; attempt < k.maxAttempts; attempt++ {
		timer := time.NewTimer(k.timeout)

		select {
		case v := <-ch:
			timer.Stop()
			v = strings.TrimSpace(v)
			if v == model.CancelToken {
				return "", uploader.ErrSolicitCancelled
			}
			if len(v) >= k.minKeyLen {
				return v, nil
			}

			// Undersized reply: the waiter was consumed on delivery, so
			// a fresh one must exist before the re-prompt goes out.
			ch, err = k.sessions.CreateKeyWait(requesterID)
			if err != nil {
				return "", fmt.Errorf("recreate credential waiter: %w", err)
			}
			k.notice(requesterID, fmt.Sprintf(
				"that key is too short (minimum %d characters); send another key or %s",
				k.minKeyLen, model.CancelToken))

		case <-timer.C:
			k.notice(requesterID, "no credential arrived in time, stopping the batch")
			return "", uploader.ErrSolicitTimeout

		case <-ctx.Done():
			timer.Stop()
			return "", ctx.Err()
		}
	}

	k.notice(requesterID, fmt.Sprintf("giving up after %d unusable keys", k.maxAttempts))
	return "", fmt.Errorf("%w: %d unusable keys", uploader.ErrSolicitCancelled, k.maxAttempts)
}

func (k *keySolicitor) notice(requesterID, text string) {
	k.hub.SendTo(requesterID, model.Envelope{Type: model.MsgTypeNotice, Payload: model.Notice{Text: text}})
}
