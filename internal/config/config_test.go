package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

const minimalConfig = `
postgres:
  dsn: "host=localhost user=zg dbname=zg"
publisher:
  access_token: "tok-123"
`

func TestLoadAppliesDefaults(t *testing.T) {
	a := assert.New(t)

	cfg, err := Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	a.Equal(":8080", cfg.Server.Addr)
	a.Equal(5*time.Minute, cfg.Server.KeepaliveInterval)
	a.Equal("localhost:6379", cfg.Redis.Addr)
	a.Equal("./data/history.db", cfg.History.Path)
	a.Equal("https://api.imgbb.com/1/upload", cfg.ImageHost.Endpoint)
	a.Equal(30*time.Second, cfg.ImageHost.UploadTimeout)
	a.Equal(3, cfg.ImageHost.MaxRetries)
	a.Equal("https://api.telegra.ph", cfg.Publisher.Endpoint)
	a.Equal("zipgallery", cfg.Publisher.Author)
	a.Equal(int64(900<<20), cfg.Batch.MaxArchiveSize)
	a.Equal(1280, cfg.Batch.MaxImageDim)
	a.Equal(85, cfg.Batch.JPEGQuality)
	a.Equal(500*time.Millisecond, cfg.Batch.InterItemDelay)
	a.Equal(5*time.Minute, cfg.Batch.SolicitTimeout)
	a.Equal(10, cfg.Batch.MinKeyLength)
	a.Equal(8, cfg.Batch.MaxRotations)
	a.Equal(5, cfg.Batch.MaxPromptAttempts)
	a.Equal(168*time.Hour, cfg.Batch.CacheTTL)
}

func TestLoadFullConfig(t *testing.T) {
	a := assert.New(t)

	cfg, err := Load(writeConfig(t, `
server:
  addr: ":9090"
  admin_token: "admin-secret"
  external_url: "https://zg.example.com"
  keepalive_interval: 10m
redis:
  addr: "redis:6379"
  password: "pw"
  db: 2
postgres:
  dsn: "host=db user=zg dbname=zg"
history:
  path: "/var/lib/zg/history.db"
imagehost:
  endpoint: "https://host.example/upload"
  keys:
    - "key-aaaaaaaaaa"
    - "key-bbbbbbbbbb"
  upload_timeout: 45s
publisher:
  endpoint: "https://pages.example"
  access_token: "tok-456"
  author: "zg-bot"
batch:
  max_archive_size: 104857600
  inter_item_delay: 250ms
  solicit_timeout: 2m
  min_key_length: 12
  max_rotations: 4
`))
	require.NoError(t, err)

	a.Equal(":9090", cfg.Server.Addr)
	a.Equal("admin-secret", cfg.Server.AdminToken)
	a.Equal("https://zg.example.com", cfg.Server.ExternalURL)
	a.Equal(10*time.Minute, cfg.Server.KeepaliveInterval)
	a.Equal("redis:6379", cfg.Redis.Addr)
	a.Equal(2, cfg.Redis.DB)
	a.Equal("/var/lib/zg/history.db", cfg.History.Path)
	a.Equal([]string{"key-aaaaaaaaaa", "key-bbbbbbbbbb"}, cfg.ImageHost.Keys)
	a.Equal(45*time.Second, cfg.ImageHost.UploadTimeout)
	a.Equal("zg-bot", cfg.Publisher.Author)
	a.Equal(int64(100<<20), cfg.Batch.MaxArchiveSize)
	a.Equal(250*time.Millisecond, cfg.Batch.InterItemDelay)
	a.Equal(2*time.Minute, cfg.Batch.SolicitTimeout)
	a.Equal(12, cfg.Batch.MinKeyLength)
	a.Equal(4, cfg.Batch.MaxRotations)

	// untouched sections still get their defaults
	a.Equal(85, cfg.Batch.JPEGQuality)
	a.Equal(3, cfg.ImageHost.MaxRetries)
}

func TestLoadRequiredFields(t *testing.T) {
	a := assert.New(t)

	_, err := Load(writeConfig(t, `
publisher:
  access_token: "tok"
`))
	require.Error(t, err)
	a.Contains(err.Error(), "postgres.dsn")

	_, err = Load(writeConfig(t, `
postgres:
  dsn: "host=localhost"
`))
	require.Error(t, err)
	a.Contains(err.Error(), "publisher.access_token")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadBadYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "server: [not a mapping"))
	assert.Error(t, err)
}
