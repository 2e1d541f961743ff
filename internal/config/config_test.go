package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"admission/internal/models"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "default", cfg.Limits.DefaultTier)
	assert.Equal(t, 60, cfg.Limits.MaxPerMinute)
	assert.Equal(t, 1000, cfg.Limits.MaxPerHour)
	assert.Equal(t, models.StoreTypeMemory, cfg.Store.Type)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.True(t, cfg.Metrics.Enabled)
	assert.False(t, cfg.Observability.Tracing.Enabled)
}

func TestLoad_FromFile(t *testing.T) {
	content := `
server:
  port: 9999
  host: 127.0.0.1
limits:
  default_tier: free
  max_per_minute: 5
  max_per_hour: 50
store:
  type: json
  path: /tmp/catalog.json
logging:
  level: debug
  format: text
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, "free", cfg.Limits.DefaultTier)
	assert.Equal(t, 5, cfg.Limits.MaxPerMinute)
	assert.Equal(t, 50, cfg.Limits.MaxPerHour)
	assert.Equal(t, models.StoreTypeJSON, cfg.Store.Type)
	assert.Equal(t, "/tmp/catalog.json", cfg.Store.Path)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)

	// Unspecified fields keep their defaults.
	assert.Equal(t, 5*time.Minute, cfg.Limits.CleanupInterval)
}

func TestLoad_FileMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("ADMISSION_PORT", "7070")
	t.Setenv("ADMISSION_DEFAULT_TIER", "burst")
	t.Setenv("ADMISSION_MAX_PER_MINUTE", "3")
	t.Setenv("ADMISSION_MAX_PER_HOUR", "10")
	t.Setenv("ADMISSION_CLEANUP_INTERVAL", "90s")
	t.Setenv("ADMISSION_LOG_LEVEL", "warn")
	t.Setenv("ADMISSION_METRICS_ENABLED", "false")
	t.Setenv("ADMISSION_SELF_LIMIT_ENABLED", "true")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "burst", cfg.Limits.DefaultTier)
	assert.Equal(t, 3, cfg.Limits.MaxPerMinute)
	assert.Equal(t, 10, cfg.Limits.MaxPerHour)
	assert.Equal(t, 90*time.Second, cfg.Limits.CleanupInterval)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.False(t, cfg.Metrics.Enabled)
	assert.True(t, cfg.Server.SelfLimit.Enabled)
}

func TestLoad_EnvironmentBeatsFile(t *testing.T) {
	content := `
limits:
  max_per_minute: 5
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	t.Setenv("ADMISSION_MAX_PER_MINUTE", "42")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 42, cfg.Limits.MaxPerMinute)
}

func TestLoad_InvalidRejected(t *testing.T) {
	t.Setenv("ADMISSION_MAX_PER_MINUTE", "-1")

	_, err := Load("")
	assert.ErrorContains(t, err, "invalid configuration")
}

func TestSaveExample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "example", "config.yaml")
	require.NoError(t, SaveExample(path))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, models.StoreTypeJSON, cfg.Store.Type)
	assert.True(t, cfg.Server.SelfLimit.Enabled)
}
