package session

import (
	"errors"
	"sync"

	"github.com/zipgallery/zipgallery/internal/model"
	"github.com/zipgallery/zipgallery/internal/uploader"
)

var (
	// ErrJobActive means the requester already has a running or
	// suspended batch; it must finish or be discarded first.
	ErrJobActive = errors.New("a batch is already active for this requester")
	// ErrWaitPending means a credential request is already waiting for
	// this requester's reply.
	ErrWaitPending = errors.New("a credential request is already pending")
)

// GalleryPost is a published gallery retained until the requester adds a
// description, skips it, or resets the session.
type GalleryPost struct {
	Path  string
	Title string
	URLs  []string
	URL   string
}

// Session is the interactive state of one requester: the batch in
// flight, a pending credential request and the last published gallery.
type Session struct {
	RequesterID string

	mu      sync.Mutex
	job     *uploader.Job
	keyWait chan string
	post    *GalleryPost
}

// Store holds sessions keyed by requester ID. Sessions are created on
// demand and all operations are safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewStore creates an empty session store.
func NewStore() *Store {
	return &Store{sessions: make(map[string]*Session)}
}

func (s *Store) get(requesterID string) *Session {
	s.mu.RLock()
	sess := s.sessions[requesterID]
	s.mu.RUnlock()
	if sess != nil {
		return sess
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if sess = s.sessions[requesterID]; sess == nil {
		sess = &Session{RequesterID: requesterID}
		s.sessions[requesterID] = sess
	}
	return sess
}

// Count returns the number of sessions seen so far.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// ─────────────────────────────────────────────
// Batch slot
// ─────────────────────────────────────────────

// StartJob claims the requester's single batch slot. Returns
// ErrJobActive while another batch is running or suspended.
func (s *Store) StartJob(requesterID string, job *uploader.Job) error {
	sess := s.get(requesterID)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.job != nil {
		return ErrJobActive
	}
	sess.job = job
	return nil
}

// Job returns the batch currently occupying the slot, or nil.
func (s *Store) Job(requesterID string) *uploader.Job {
	sess := s.get(requesterID)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.job
}

// ClearJob frees the slot if it still holds the given batch.
func (s *Store) ClearJob(requesterID, batchID string) {
	sess := s.get(requesterID)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.job != nil && sess.job.ID == batchID {
		sess.job = nil
	}
}

// ─────────────────────────────────────────────
// Credential waiter
// ─────────────────────────────────────────────

// CreateKeyWait registers a pending credential request and returns the
// channel its reply will arrive on. At most one may exist per requester.
func (s *Store) CreateKeyWait(requesterID string) (<-chan string, error) {
	sess := s.get(requesterID)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.keyWait != nil {
		return nil, ErrWaitPending
	}
	ch := make(chan string, 1)
	sess.keyWait = ch
	return ch, nil
}

// RemoveKeyWait drops the pending request if ch is still the registered
// one. Safe to call after the request was already resolved.
func (s *Store) RemoveKeyWait(requesterID string, ch <-chan string) {
	sess := s.get(requesterID)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.keyWait != nil && (<-chan string)(sess.keyWait) == ch {
		sess.keyWait = nil
	}
}

// ResolveKeyWait delivers value to the pending credential request,
// resolving it exactly once. Reports whether a request was pending; both
// the free-form reply and the explicit add-key command funnel through
// here.
func (s *Store) ResolveKeyWait(requesterID, value string) bool {
	sess := s.get(requesterID)
	sess.mu.Lock()
	ch := sess.keyWait
	sess.keyWait = nil
	sess.mu.Unlock()
	if ch == nil {
		return false
	}
	select {
	case ch <- value:
	default:
	}
	return true
}

// HasKeyWait reports whether a credential request is pending.
func (s *Store) HasKeyWait(requesterID string) bool {
	sess := s.get(requesterID)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.keyWait != nil
}

// ─────────────────────────────────────────────
// Published gallery
// ─────────────────────────────────────────────

// SetPost retains the just-published gallery for the description flow.
func (s *Store) SetPost(requesterID string, p *GalleryPost) {
	sess := s.get(requesterID)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.post = p
}

// Post returns the retained gallery, or nil.
func (s *Store) Post(requesterID string) *GalleryPost {
	sess := s.get(requesterID)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.post
}

// ClearPost drops the retained gallery.
func (s *Store) ClearPost(requesterID string) {
	sess := s.get(requesterID)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.post = nil
}

// ─────────────────────────────────────────────
// Reset
// ─────────────────────────────────────────────

// Reset clears the requester's interactive state. A pending credential
// request is resolved with the cancel token so a suspended batch ends
// instead of waiting out its timeout; a batch that is mid-upload is not
// touched.
func (s *Store) Reset(requesterID string) {
	s.ResolveKeyWait(requesterID, model.CancelToken)
	sess := s.get(requesterID)
	sess.mu.Lock()
	sess.post = nil
	sess.mu.Unlock()
}
