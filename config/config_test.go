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
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
database:
  host: db.internal
  port: 5433
  user: playsync
  password: secret
  dbname: playsync
youtube:
  client_id: cid
  client_secret: csecret
  daily_quota: 5000
sync:
  tick: 1m
  retry:
    max_attempts: 3
log_level: debug
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Contains(t, cfg.Database.DSN(), "port=5433")
	assert.Contains(t, cfg.Database.DSN(), "sslmode=disable")
	assert.Equal(t, 5000, cfg.YouTube.DailyQuota)
	assert.Equal(t, time.Minute, cfg.Sync.Tick)
	assert.Equal(t, 3, cfg.Sync.Retry.MaxAttempts)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "{}"))
	require.NoError(t, err)

	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, 10000, cfg.YouTube.DailyQuota)
	assert.Equal(t, 4.0, cfg.YouTube.RequestsPerS)
	assert.Equal(t, 30*time.Second, cfg.Sync.Tick)
	assert.Equal(t, time.Hour, cfg.Sync.MetaTTL)
	assert.Equal(t, 5, cfg.Sync.Retry.MaxAttempts)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "playsync", cfg.RabbitMQ.Exchange)
}

func TestLoad_ExpandsEnv(t *testing.T) {
	t.Setenv("PLAYSYNC_DB_PASSWORD", "hunter2")

	cfg, err := Load(writeConfig(t, `
database:
  password: ${PLAYSYNC_DB_PASSWORD}
`))
	require.NoError(t, err)
	assert.Equal(t, "hunter2", cfg.Database.Password)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
