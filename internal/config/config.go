package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the full service configuration.
type Config struct {
	Server struct {
		Addr              string        `yaml:"addr"`               // HTTP listen address (default: :8080)
		AdminToken        string        `yaml:"admin_token"`        // Token for admin endpoints (empty disables them)
		ExternalURL       string        `yaml:"external_url"`       // Public base URL, enables the keep-alive self-ping
		KeepaliveInterval time.Duration `yaml:"keepalive_interval"` // Self-ping interval (default: 5m)
	} `yaml:"server"`

	Redis struct {
		Addr     string `yaml:"addr"` // Redis address (default: localhost:6379)
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`

	Postgres struct {
		DSN string `yaml:"dsn"` // Postgres connection string
	} `yaml:"postgres"`

	History struct {
		Path string `yaml:"path"` // SQLite upload-history path (default: ./data/history.db)
	} `yaml:"history"`

	ImageHost struct {
		Endpoint      string        `yaml:"endpoint"`       // Upload endpoint (default: https://api.imgbb.com/1/upload)
		Keys          []string      `yaml:"keys"`           // Seed credentials for the pool
		UploadTimeout time.Duration `yaml:"upload_timeout"` // Per-attempt timeout (default: 30s)
		MaxRetries    int           `yaml:"max_retries"`    // Attempts per upload on network timeout (default: 3)
		RetryDelay    time.Duration `yaml:"retry_delay"`    // Delay between attempts (default: 1s)
	} `yaml:"imagehost"`

	Publisher struct {
		Endpoint    string `yaml:"endpoint"`     // Page API base URL (default: https://api.telegra.ph)
		AccessToken string `yaml:"access_token"` // Page API access token
		Author      string `yaml:"author"`       // Author name shown on published pages
	} `yaml:"publisher"`

	Batch struct {
		MaxArchiveSize    int64         `yaml:"max_archive_size"`    // Upload size cap in bytes (default: 900 MiB)
		MaxImageDim       int           `yaml:"max_image_dim"`       // Longest image side after normalization (default: 1280)
		JPEGQuality       int           `yaml:"jpeg_quality"`        // Re-encode quality (default: 85)
		InterItemDelay    time.Duration `yaml:"inter_item_delay"`    // Pause between uploads (default: 500ms)
		SolicitTimeout    time.Duration `yaml:"solicit_timeout"`     // Wait for a replacement credential (default: 5m)
		MinKeyLength      int           `yaml:"min_key_length"`      // Shortest accepted credential (default: 10)
		MaxRotations      int           `yaml:"max_rotations"`       // Credential swaps allowed per batch (default: 8)
		MaxPromptAttempts int           `yaml:"max_prompt_attempts"` // Re-prompts for a too-short credential (default: 5)
		CacheTTL          time.Duration `yaml:"cache_ttl"`           // Published-gallery cache lifetime (default: 168h)
	} `yaml:"batch"`
}

// Load reads the configuration from a YAML file, applies defaults and
// validates required fields.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	cfg.applyDefaults()

	if cfg.Postgres.DSN == "" {
		return nil, fmt.Errorf("postgres.dsn is required")
	}
	if cfg.Publisher.AccessToken == "" {
		return nil, fmt.Errorf("publisher.access_token is required")
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.KeepaliveInterval == 0 {
		c.Server.KeepaliveInterval = 5 * time.Minute
	}
	if c.Redis.Addr == "" {
		c.Redis.Addr = "localhost:6379"
	}
	if c.History.Path == "" {
		c.History.Path = "./data/history.db"
	}
	if c.ImageHost.Endpoint == "" {
		c.ImageHost.Endpoint = "https://api.imgbb.com/1/upload"
	}
	if c.ImageHost.UploadTimeout == 0 {
		c.ImageHost.UploadTimeout = 30 * time.Second
	}
	if c.ImageHost.MaxRetries == 0 {
		c.ImageHost.MaxRetries = 3
	}
	if c.ImageHost.RetryDelay == 0 {
		c.ImageHost.RetryDelay = time.Second
	}
	if c.Publisher.Endpoint == "" {
		c.Publisher.Endpoint = "https://api.telegra.ph"
	}
	if c.Publisher.Author == "" {
		c.Publisher.Author = "zipgallery"
	}
	if c.Batch.MaxArchiveSize == 0 {
		c.Batch.MaxArchiveSize = 900 << 20
	}
	if c.Batch.MaxImageDim == 0 {
		c.Batch.MaxImageDim = 1280
	}
	if c.Batch.JPEGQuality == 0 {
		c.Batch.JPEGQuality = 85
	}
	if c.Batch.InterItemDelay == 0 {
		c.Batch.InterItemDelay = 500 * time.Millisecond
	}
	if c.Batch.SolicitTimeout == 0 {
		c.Batch.SolicitTimeout = 5 * time.Minute
	}
	if c.Batch.MinKeyLength == 0 {
		c.Batch.MinKeyLength = 10
	}
	if c.Batch.MaxRotations == 0 {
		c.Batch.MaxRotations = 8
	}
	if c.Batch.MaxPromptAttempts == 0 {
		c.Batch.MaxPromptAttempts = 5
	}
	if c.Batch.CacheTTL == 0 {
		c.Batch.CacheTTL = 168 * time.Hour
	}
}
