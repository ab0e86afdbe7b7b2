package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8090, cfg.Server.Port)
	assert.Equal(t, 8091, cfg.API.Port)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 1000, cfg.History.Capacity)
	assert.Equal(t, "memory", cfg.History.Backend)
	assert.Equal(t, "collab-events", cfg.Kafka.Topic)
	assert.Equal(t, 5*time.Second, cfg.Ledger.WriteTimeout)
	assert.Equal(t, 30*time.Second, cfg.WebSocket.PingInterval)
	assert.Equal(t, 200*time.Millisecond, cfg.Database.SlowThreshold)
	assert.Empty(t, cfg.Auth.JWTSecret)
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "config"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config", "config.yaml"), []byte(`
history:
  backend: redis
  capacity: 50
ledger:
  write_timeout: 750ms
kafka:
  enabled: true
`), 0o644))
	chdir(t, dir)

	t.Setenv("JWT_SECRET", "from-env")
	t.Setenv("API_PORT", "9999")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "redis", cfg.History.Backend)
	assert.Equal(t, 50, cfg.History.Capacity)
	assert.Equal(t, 750*time.Millisecond, cfg.Ledger.WriteTimeout)
	assert.True(t, cfg.Kafka.Enabled)
	assert.Equal(t, "from-env", cfg.Auth.JWTSecret)
	assert.Equal(t, 9999, cfg.API.Port)
}
