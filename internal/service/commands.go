package service

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/zipgallery/zipgallery/internal/keypool"
	"github.com/zipgallery/zipgallery/internal/model"
	"github.com/zipgallery/zipgallery/internal/session"
	"github.com/zipgallery/zipgallery/internal/uploader"
)

// HandleText is the websocket ingress for everything a requester types:
// commands, credential replies and gallery descriptions. Free text goes
// to the pending credential waiter first, then to the description
// prompt; the two consumers are mutually exclusive by construction.
func (s *BatchService) HandleText(ctx context.Context, requesterID, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}

	if strings.HasPrefix(text, "/") {
		s.handleCommand(requesterID, text)
		return
	}

	if s.sessions.ResolveKeyWait(requesterID, text) {
		return // delivered to the suspended job
	}

	if post := s.sessions.Post(requesterID); post != nil {
		s.saveDescription(ctx, requesterID, post, text)
		return
	}

	s.notice(requesterID, "nothing is waiting for input; send an archive to start a batch, or /help")
}

func (s *BatchService) handleCommand(requesterID, text string) {
	cmd, arg := text, ""
	if i := strings.IndexAny(text, " \t"); i >= 0 {
		cmd, arg = text[:i], strings.TrimSpace(text[i+1:])
	}

	switch cmd {
	case "/addkey":
		s.cmdAddKey(requesterID, arg)
	case "/keys":
		s.cmdKeys(requesterID)
	case "/cancel":
		s.cmdCancel(requesterID)
	case "/skip":
		s.cmdSkip(requesterID)
	case "/reset":
		s.cmdReset(requesterID)
	case "/status":
		s.cmdStatus(requesterID)
	case "/help":
		s.cmdHelp(requesterID)
	default:
		s.notice(requesterID, fmt.Sprintf("unknown command %s, try /help", cmd))
	}
}

// cmdAddKey registers a credential in the pool and, if a solicitation
// is pending, satisfies it with the same key.
func (s *BatchService) cmdAddKey(requesterID, key string) {
	if key == "" {
		s.notice(requesterID, "usage: /addkey <image-host-api-key>")
		return
	}
	if len(key) < s.cfg.Batch.MinKeyLength {
		s.notice(requesterID, fmt.Sprintf("that key is too short (minimum %d characters)", s.cfg.Batch.MinKeyLength))
		return
	}

	added := s.pool.Add(key)
	if s.sessions.ResolveKeyWait(requesterID, key) {
		s.notice(requesterID, fmt.Sprintf("key %s accepted, resuming the batch", keypool.Mask(key)))
		return
	}
	if added {
		total, _, _ := s.pool.Counts()
		s.notice(requesterID, fmt.Sprintf("key %s added to the pool (%d total)", keypool.Mask(key), total))
	} else {
		s.notice(requesterID, fmt.Sprintf("key %s is already in the pool", keypool.Mask(key)))
	}
}

func (s *BatchService) cmdKeys(requesterID string) {
	infos := s.pool.Snapshot()
	if len(infos) == 0 {
		s.notice(requesterID, "the credential pool is empty; add one with /addkey")
		return
	}

	total, valid, failed := s.pool.Counts()
	var b strings.Builder
	fmt.Fprintf(&b, "credential pool: %d total, %d valid, %d failed", total, valid, failed)
	for _, k := range infos {
		fmt.Fprintf(&b, "\n%s  %s  uploads: %d", k.Key, k.State, k.Uploads)
	}
	s.notice(requesterID, b.String())
}

// cmdCancel aborts a pending credential solicitation. Uploads mid-item
// are cooperative: a running batch can only be stopped at the point
// where it asks for a credential.
func (s *BatchService) cmdCancel(requesterID string) {
	if s.sessions.ResolveKeyWait(requesterID, model.CancelToken) {
		s.notice(requesterID, "cancelling the batch")
		return
	}
	if s.sessions.Job(requesterID) != nil {
		s.notice(requesterID, "the batch is mid-upload; it can only be cancelled while a replacement credential is being requested")
		return
	}
	s.notice(requesterID, "nothing to cancel")
}

func (s *BatchService) cmdSkip(requesterID string) {
	post := s.sessions.Post(requesterID)
	if post == nil {
		s.notice(requesterID, "no gallery is waiting for a description")
		return
	}
	s.sessions.ClearPost(requesterID)
	s.notice(requesterID, fmt.Sprintf("kept as published: %s (%d images)\n%s", post.Title, len(post.URLs), post.URL))
}

func (s *BatchService) cmdReset(requesterID string) {
	s.sessions.Reset(requesterID)
	if s.sessions.Job(requesterID) != nil {
		s.notice(requesterID, "session cleared; a batch that is mid-upload keeps running")
		return
	}
	s.notice(requesterID, "session cleared")
}

func (s *BatchService) cmdStatus(requesterID string) {
	if job := s.sessions.Job(requesterID); job != nil {
		snap := job.Snapshot()
		s.notice(requesterID, fmt.Sprintf("batch %s [%s] %s %d/%d, uploaded %d, errors %d, rotations %d",
			snap.BatchID, snap.Status, uploader.RenderBar(snap.Done, snap.Total),
			snap.Done, snap.Total, snap.Uploaded, snap.Failed, snap.Rotations))
		return
	}
	if post := s.sessions.Post(requesterID); post != nil {
		s.notice(requesterID, fmt.Sprintf("gallery published, waiting for a description or /skip: %s", post.URL))
		return
	}
	total, valid, failed := s.pool.Counts()
	s.notice(requesterID, fmt.Sprintf("idle; pool has %d keys (%d valid, %d failed)", total, valid, failed))
}

func (s *BatchService) cmdHelp(requesterID string) {
	s.notice(requesterID, strings.Join([]string{
		"/addkey <key>  add an image-host credential to the pool",
		"/keys          show the credential pool (masked)",
		"/status        show the current batch or session state",
		"/cancel        cancel a batch waiting for a credential",
		"/skip          keep the published gallery without a description",
		"/reset         clear the waiter and the description prompt",
	}, "\n"))
}

// saveDescription inserts the requester's text into the published page.
// On failure the post is retained so the requester can retry or /skip.
func (s *BatchService) saveDescription(ctx context.Context, requesterID string, post *session.GalleryPost, text string) {
	page, err := s.publisher.Describe(ctx, post.Path, post.Title, post.URLs, text)
	if err != nil {
		log.Printf("[service] describe %s failed: %v", post.Path, err)
		s.notice(requesterID, fmt.Sprintf("saving the description failed: %v; send it again or /skip", err))
		return
	}

	s.sessions.ClearPost(requesterID)
	s.hub.SendTo(requesterID, model.Envelope{Type: model.MsgTypeDescriptionSaved, Payload: model.DescriptionSaved{
		Title: post.Title,
		URL:   page.URL,
	}})
}
