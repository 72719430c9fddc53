package stats

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTrackerCounters(t *testing.T) {
	a := assert.New(t)
	tr := NewTracker()

	tr.RecordBatchStarted()
	tr.RecordBatchStarted()
	tr.RecordBatchCompleted()
	tr.RecordBatchCancelled()
	tr.RecordImageUploaded()
	tr.RecordImageUploaded()
	tr.RecordImageUploaded()
	tr.RecordImageFailed()
	tr.RecordKeySolicited()

	s := tr.GetStats()
	a.Equal(2, s.BatchesStarted)
	a.Equal(1, s.BatchesCompleted)
	a.Equal(1, s.BatchesCancelled)
	a.Equal(3, s.ImagesUploaded)
	a.Equal(3, s.TodayUploaded)
	a.Equal(1, s.ImagesFailed)
	a.Equal(1, s.KeysSolicited)
	a.False(s.StartTime.IsZero())
}

func TestLoadHistoricalStats(t *testing.T) {
	a := assert.New(t)
	tr := NewTracker()

	tr.LoadHistoricalStats(120, 14, 7)
	tr.RecordImageUploaded()

	s := tr.GetStats()
	a.Equal(121, s.ImagesUploaded)
	a.Equal(14, s.BatchesCompleted)
	a.Equal(8, s.TodayUploaded)
}

func TestGetStatsReturnsCopy(t *testing.T) {
	a := assert.New(t)
	tr := NewTracker()

	s := tr.GetStats()
	s.ImagesUploaded = 99

	a.Zero(tr.GetStats().ImagesUploaded)
}

func TestTrackerConcurrentAccess(t *testing.T) {
	tr := NewTracker()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				tr.RecordImageUploaded()
				_ = tr.GetStats()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 800, tr.GetStats().ImagesUploaded)
}
