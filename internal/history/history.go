package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// UploadLog represents one successfully uploaded image
type UploadLog struct {
	ID          int64
	BatchID     string
	RequesterID string
	ImageName   string
	URL         string
	Bytes       int64
	DurationMS  int64
	KeyMask     string
	CreatedAt   time.Time
}

// DB wraps the SQLite upload history database
type DB struct {
	conn *sql.DB
}

// NewDB creates a new database connection and initializes the schema
func NewDB(dbPath string) (*DB, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory failed: %w", err)
	}

	// Open database connection with proper parameters
	// Use WAL mode for better concurrency
	conn, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database failed: %w", err)
	}

	// Configure connection pool for thread safety
	// SQLite works best with limited connections
	conn.SetMaxOpenConns(1)

	db := &DB{conn: conn}

	// Initialize schema
	if err := db.initSchema(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("init schema failed: %w", err)
	}

	return db, nil
}

// initSchema creates the necessary tables
func (db *DB) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS upload_logs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		batch_id TEXT NOT NULL,
		requester_id TEXT NOT NULL,
		image_name TEXT NOT NULL,
		url TEXT NOT NULL,
		bytes INTEGER NOT NULL,
		duration_ms INTEGER NOT NULL,
		key_mask TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_batch_id ON upload_logs(batch_id);
	CREATE INDEX IF NOT EXISTS idx_requester_id ON upload_logs(requester_id);
	CREATE INDEX IF NOT EXISTS idx_created_at ON upload_logs(created_at);
	`

	_, err := db.conn.Exec(schema)
	return err
}

// InsertUploadLog inserts a new upload log entry
func (db *DB) InsertUploadLog(log *UploadLog) error {
	query := `
		INSERT INTO upload_logs (batch_id, requester_id, image_name, url, bytes, duration_ms, key_mask, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := db.conn.Exec(query,
		log.BatchID, log.RequesterID, log.ImageName, log.URL,
		log.Bytes, log.DurationMS, log.KeyMask, log.CreatedAt)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}

	log.ID = id
	return nil
}

// AggregateStats holds aggregate statistics from the database
type AggregateStats struct {
	TotalUploads int     `json:"total_uploads"`
	TotalBytes   int64   `json:"total_bytes"`
	TotalBatches int     `json:"total_batches"`
	TodayUploads int     `json:"today_uploads"`
	TodayBytes   int64   `json:"today_bytes"`
	AvgUploadMS  float64 `json:"avg_upload_ms"`
}

// GetAggregateStats returns aggregate statistics from all upload logs
func (db *DB) GetAggregateStats() (*AggregateStats, error) {
	stats := &AggregateStats{}

	err := db.conn.QueryRow(`
		SELECT COUNT(*), COALESCE(SUM(bytes), 0), COUNT(DISTINCT batch_id), COALESCE(AVG(duration_ms), 0)
		FROM upload_logs
	`).Scan(&stats.TotalUploads, &stats.TotalBytes, &stats.TotalBatches, &stats.AvgUploadMS)
	if err != nil {
		return nil, fmt.Errorf("query total stats: %w", err)
	}

	// DATE() normalises stored timestamps to UTC, so compare against a UTC day.
	today := time.Now().UTC().Format("2006-01-02")
	err = db.conn.QueryRow(`
		SELECT COUNT(*), COALESCE(SUM(bytes), 0)
		FROM upload_logs
		WHERE DATE(created_at) = ?
	`, today).Scan(&stats.TodayUploads, &stats.TodayBytes)
	if err != nil {
		return nil, fmt.Errorf("query today stats: %w", err)
	}

	return stats, nil
}

// DailyStat is one day's upload volume
type DailyStat struct {
	Day     string `json:"day"`
	Uploads int    `json:"uploads"`
	Bytes   int64  `json:"bytes"`
}

// GetRecentDaily returns per-day upload volume for the last n days,
// most recent first. Days without uploads are omitted.
func (db *DB) GetRecentDaily(n int) ([]DailyStat, error) {
	rows, err := db.conn.Query(`
		SELECT DATE(created_at) AS day, COUNT(*), COALESCE(SUM(bytes), 0)
		FROM upload_logs
		GROUP BY day
		ORDER BY day DESC
		LIMIT ?
	`, n)
	if err != nil {
		return nil, fmt.Errorf("query daily stats: %w", err)
	}
	defer rows.Close()

	var out []DailyStat
	for rows.Next() {
		var d DailyStat
		if err := rows.Scan(&d.Day, &d.Uploads, &d.Bytes); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}
