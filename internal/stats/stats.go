package stats

import (
	"sync"
	"time"
)

// Stats holds the service counters (pure data, no mutex)
type Stats struct {
	// Batch statistics
	BatchesStarted   int `json:"batchesStarted"`
	BatchesCompleted int `json:"batchesCompleted"`
	BatchesCancelled int `json:"batchesCancelled"`

	// Image statistics
	ImagesUploaded int `json:"imagesUploaded"`
	ImagesFailed   int `json:"imagesFailed"`
	TodayUploaded  int `json:"todayUploaded"`

	// Credential statistics
	KeysSolicited int `json:"keysSolicited"`

	// Session info
	StartTime time.Time `json:"startTime"`
}

// Tracker manages the service statistics
type Tracker struct {
	mu    sync.RWMutex
	stats Stats
}

// NewTracker creates a new tracker instance
func NewTracker() *Tracker {
	return &Tracker{
		stats: Stats{
			StartTime: time.Now(),
		},
	}
}

// RecordBatchStarted records a newly accepted batch
func (t *Tracker) RecordBatchStarted() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stats.BatchesStarted++
}

// RecordBatchCompleted records a batch that ran to the end of its items
func (t *Tracker) RecordBatchCompleted() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stats.BatchesCompleted++
}

// RecordBatchCancelled records a cancelled batch
func (t *Tracker) RecordBatchCancelled() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stats.BatchesCancelled++
}

// RecordImageUploaded records a successfully uploaded image
func (t *Tracker) RecordImageUploaded() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stats.ImagesUploaded++
	t.stats.TodayUploaded++
}

// RecordImageFailed records an image that could not be uploaded
func (t *Tracker) RecordImageFailed() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stats.ImagesFailed++
}

// RecordKeySolicited records a credential solicited from a requester
func (t *Tracker) RecordKeySolicited() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stats.KeysSolicited++
}

// LoadHistoricalStats initializes counters with historical data from the database
func (t *Tracker) LoadHistoricalStats(totalUploads, totalBatches, todayUploads int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stats.ImagesUploaded = totalUploads
	t.stats.BatchesCompleted = totalBatches
	t.stats.TodayUploaded = todayUploads
}

// GetStats returns a copy of the current stats
func (t *Tracker) GetStats() Stats {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.stats
}
