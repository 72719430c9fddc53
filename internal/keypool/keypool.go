package keypool

import (
	"sync"
)

// State of a pool credential.
type State string

const (
	// StateUnknown marks a freshly added, unverified credential.
	StateUnknown State = "unknown"
	// StateValid marks a credential promoted after consecutive successes.
	StateValid State = "valid"
	// StateFailed marks a credential rejected by the image host. Failed
	// credentials are never retried automatically.
	StateFailed State = "failed"
)

type key struct {
	token   string
	state   State
	uploads int // successful uploads attributed to this credential
}

// KeyInfo is a masked, read-only view of one pool entry.
type KeyInfo struct {
	Key     string `json:"key"` // masked token
	State   State  `json:"state"`
	Uploads int    `json:"uploads"`
}

// Pool holds the shared image-host credentials and the rotation cursor.
// All methods are safe for concurrent use; jobs from different requesters
// share one pool.
type Pool struct {
	mu     sync.Mutex
	keys   []*key
	cursor int
}

// New creates a pool seeded with the given tokens, all starting unknown.
func New(seed []string) *Pool {
	p := &Pool{}
	for _, t := range seed {
		p.Add(t)
	}
	return p
}

// Add appends a credential in the unknown state. Re-adding an existing
// token is a no-op, so the solicitation and /addkey ingress paths cannot
// duplicate an entry. Reports whether the token was new.
func (p *Pool) Add(token string) bool {
	if token == "" {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.find(token) != nil {
		return false
	}
	p.keys = append(p.keys, &key{token: token, state: StateUnknown})
	return true
}

// MarkValid promotes a credential, clearing a previous failure. The
// transition is idempotent.
func (p *Pool) MarkValid(token string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if k := p.find(token); k != nil {
		k.state = StateValid
	}
}

// MarkFailed demotes a credential. Failed credentials are skipped by
// Current while any non-failed one exists. Idempotent.
func (p *Pool) MarkFailed(token string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if k := p.find(token); k != nil {
		k.state = StateFailed
	}
}

// RecordUpload counts one successful upload against a credential.
func (p *Pool) RecordUpload(token string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if k := p.find(token); k != nil {
		k.uploads++
	}
}

// Current selects the credential the next upload should use: the first
// valid one in insertion order, otherwise a round-robin scan from the
// cursor skipping failed entries. When every credential has failed the
// cursor entry is returned anyway; the upload that follows fails with a
// credential error and triggers solicitation. Returns false only when
// the pool is empty.
func (p *Pool) Current() (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := len(p.keys)
	if n == 0 {
		return "", false
	}
	for _, k := range p.keys {
		if k.state == StateValid {
			return k.token, true
		}
	}
	for i := 0; i < n; i++ {
		k := p.keys[(p.cursor+i)%n]
		if k.state != StateFailed {
			return k.token, true
		}
	}
	return p.keys[p.cursor%n].token, true
}

// Advance moves the rotation cursor one slot, wrapping at the end. Used
// when the active unknown credential just failed and the job falls back
// to the next pool entry.
func (p *Pool) Advance() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.keys) == 0 {
		return
	}
	p.cursor = (p.cursor + 1) % len(p.keys)
}

// Counts returns the pool size and how many credentials are currently
// valid and failed.
func (p *Pool) Counts() (total, valid, failed int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, k := range p.keys {
		switch k.state {
		case StateValid:
			valid++
		case StateFailed:
			failed++
		}
	}
	return len(p.keys), valid, failed
}

// Snapshot returns masked pool entries in insertion order.
func (p *Pool) Snapshot() []KeyInfo {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]KeyInfo, 0, len(p.keys))
	for _, k := range p.keys {
		out = append(out, KeyInfo{Key: Mask(k.token), State: k.state, Uploads: k.uploads})
	}
	return out
}

// find returns the entry for token. Caller must hold p.mu.
func (p *Pool) find(token string) *key {
	for _, k := range p.keys {
		if k.token == token {
			return k
		}
	}
	return nil
}

// Mask hides all but the last four characters of a token.
func Mask(token string) string {
	if len(token) <= 4 {
		return token
	}
	return "…" + token[len(token)-4:]
}
