package uploader

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/zipgallery/zipgallery/internal/model"
)

// Item is one image queued for upload.
type Item struct {
	Name string
	Data []byte
}

// Result is one successfully hosted image.
type Result struct {
	Name string
	URL  string
}

// Job is the mutable state of one batch: the ordered item list, the
// replay cursor and everything accumulated so far. The orchestrator
// advances it; handlers read snapshots of it concurrently.
type Job struct {
	ID          string
	RequesterID string
	Title       string
	CreatedAt   time.Time

	mu        sync.Mutex
	items     []Item
	cursor    int
	results   []Result
	errs      []string
	status    model.BatchStatus
	rotations int
}

// NewJob builds a job over the given items. Items are sorted by name,
// case-insensitively; that order fixes both the upload sequence and the
// published gallery.
func NewJob(id, requesterID, title string, items []Item) *Job {
	sort.SliceStable(items, func(i, j int) bool {
		return strings.ToLower(items[i].Name) < strings.ToLower(items[j].Name)
	})
	return &Job{
		ID:          id,
		RequesterID: requesterID,
		Title:       title,
		CreatedAt:   time.Now(),
		items:       items,
		status:      model.BatchStatusQueued,
	}
}

// Total returns the number of items in the batch.
func (j *Job) Total() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.items)
}

// Status returns the current batch status.
func (j *Job) Status() model.BatchStatus {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.status
}

// Rotations returns how many credential swaps the batch has performed.
func (j *Job) Rotations() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.rotations
}

// Results returns a copy of the successful uploads in batch order.
func (j *Job) Results() []Result {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]Result, len(j.results))
	copy(out, j.results)
	return out
}

// URLs returns the hosted URLs in batch order.
func (j *Job) URLs() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	urls := make([]string, 0, len(j.results))
	for _, r := range j.results {
		urls = append(urls, r.URL)
	}
	return urls
}

// Errors returns a copy of the accumulated error messages.
func (j *Job) Errors() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]string, len(j.errs))
	copy(out, j.errs)
	return out
}

// Snapshot returns the live view served by the batch status endpoint.
func (j *Job) Snapshot() model.BatchSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	return model.BatchSnapshot{
		BatchID:   j.ID,
		Title:     j.Title,
		Status:    j.status,
		Done:      j.cursor,
		Total:     len(j.items),
		Uploaded:  len(j.results),
		Failed:    len(j.errs),
		Rotations: j.rotations,
		CreatedAt: j.CreatedAt,
	}
}

func (j *Job) setStatus(st model.BatchStatus) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.status = st
}

// current returns the item under the cursor without advancing it.
func (j *Job) current() (Item, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.cursor >= len(j.items) {
		return Item{}, false
	}
	return j.items[j.cursor], true
}

// markSuccess records a hosted URL and advances the cursor.
func (j *Job) markSuccess(name, url string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.results = append(j.results, Result{Name: name, URL: url})
	j.cursor++
}

// markItemError records a per-item failure and advances the cursor.
func (j *Job) markItemError(msg string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.errs = append(j.errs, msg)
	j.cursor++
}

// noteError records a batch-level problem without advancing the cursor.
func (j *Job) noteError(msg string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.errs = append(j.errs, msg)
}

// addRotation counts one credential swap and returns the running total.
func (j *Job) addRotation() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.rotations++
	return j.rotations
}

// progress returns the processed and total item counts.
func (j *Job) progress() (done, total int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.cursor, len(j.items)
}
