package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Address)
	assert.Equal(t, 30*time.Second, cfg.Server.Timeout)
	assert.Equal(t, "postgres", cfg.DB.Driver)
	assert.Equal(t, CounterBackendDatabase, cfg.Engine.CounterBackend)
	assert.Equal(t, 24*time.Hour, cfg.Engine.MappingCacheTTL)
	assert.Equal(t, 500, cfg.Engine.ReindexBatchSize)
	assert.Equal(t, "traceability-serials", FormatIndex(cfg.Elastic, cfg.Elastic.Index))
}

func TestLoadConfigFromYAML(t *testing.T) {
	dir := t.TempDir()
	yaml := []byte(`
environment: production
database:
  driver: sqlite
  dsn: file:ident.db
redis:
  enabled: true
  port: 6380
engine:
  counter_backend: redis
  reindex_interval: 30s
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), yaml, 0o600))

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.Environment)
	assert.Equal(t, "sqlite", cfg.DB.Driver)
	assert.Equal(t, "file:ident.db", cfg.DB.DSN)
	assert.Equal(t, "localhost:6380", cfg.Redis.Addr())
	assert.Equal(t, CounterBackendRedis, cfg.Engine.CounterBackend)
	assert.Equal(t, 30*time.Second, cfg.Engine.ReindexInterval)
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("IDENT_DATABASE_DRIVER", "sqlite")
	t.Setenv("IDENT_SERVER_ADDRESS", "127.0.0.1:9000")

	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.DB.Driver)
	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Address)
}

func TestValidate(t *testing.T) {
	for _, backend := range []string{"etcd", "memory"} {
		t.Setenv("IDENT_ENGINE_COUNTER_BACKEND", backend)
		_, err := LoadConfig(t.TempDir())
		assert.ErrorContains(t, err, "counter_backend", backend)
	}

	cfg := Config{
		DB:     DatabaseConfig{Driver: "postgres"},
		Engine: EngineConfig{CounterBackend: CounterBackendRedis, ReindexBatchSize: 1},
	}
	assert.ErrorContains(t, cfg.Validate(), "redis is disabled")

	cfg.Redis.Enabled = true
	assert.NoError(t, cfg.Validate())
}
