package store

import (
	"context"
	"errors"
	"log"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/zipgallery/zipgallery/internal/auth"
	"github.com/zipgallery/zipgallery/internal/model"
)

// ErrBatchNotFound is returned when no batch log matches the lookup.
var ErrBatchNotFound = errors.New("batch not found")

// Store provides SQL persistence via GORM (async writes).
type Store struct {
	db    *gorm.DB
	logCh chan func() // buffered channel for async writes
}

// NewStore opens the database, auto-migrates schemas, and starts the
// background write worker.
func NewStore(dsn string) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(
		&model.BatchLog{},
		&auth.Account{},
	); err != nil {
		return nil, err
	}

	s := &Store{
		db:    db,
		logCh: make(chan func(), 1024),
	}
	go s.writeWorker()

	return s, nil
}

func (s *Store) writeWorker() {
	for fn := range s.logCh {
		fn()
	}
}

// DB returns the underlying GORM database instance.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// GetBatch fetches one batch log, scoped to its requester.
func (s *Store) GetBatch(ctx context.Context, batchID, requesterID string) (*model.BatchLog, error) {
	var bl model.BatchLog
	err := s.db.WithContext(ctx).
		Where("batch_id = ? AND requester_id = ?", batchID, requesterID).
		First(&bl).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBatchNotFound
		}
		return nil, err
	}
	return &bl, nil
}

// ─────────────────────────────────────────────
// Async write helpers
// ─────────────────────────────────────────────

// LogBatchCreated records a freshly accepted batch.
func (s *Store) LogBatchCreated(batchID, requesterID, title string, total int) {
	s.logCh <- func() {
		bl := model.BatchLog{
			BatchID:     batchID,
			RequesterID: requesterID,
			Title:       title,
			Total:       total,
			Status:      model.BatchStatusQueued,
			CreatedAt:   time.Now(),
		}
		if err := s.db.Create(&bl).Error; err != nil {
			log.Printf("[store] log batch created error: %v", err)
		}
	}
}

// LogBatchFinished updates the batch log with its terminal state.
func (s *Store) LogBatchFinished(batchID string, status model.BatchStatus, uploaded, failed, rotations int, galleryURL string) {
	s.logCh <- func() {
		now := time.Now()
		s.db.Model(&model.BatchLog{}).
			Where("batch_id = ?", batchID).
			Updates(map[string]interface{}{
				"status":      status,
				"uploaded":    uploaded,
				"failed":      failed,
				"rotations":   rotations,
				"gallery_url": galleryURL,
				"finished_at": &now,
			})
	}
}
