package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, "json", cfg.Logger.Format)
	assert.Equal(t, "http://localhost:8000/data", cfg.Artifacts.BaseURL)
	assert.Equal(t, 10*time.Second, cfg.Artifacts.RequestTimeout)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 30*time.Minute, cfg.Server.SessionTTL)
	assert.False(t, cfg.Cache.Enabled)
	assert.False(t, cfg.Telemetry.Enabled)

	require.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"missing base url", func(c *Config) { c.Artifacts.BaseURL = "" }, "base_url"},
		{"zero timeout", func(c *Config) { c.Artifacts.RequestTimeout = 0 }, "request_timeout"},
		{"negative retries", func(c *Config) { c.Artifacts.MaxRetries = -1 }, "max_retries"},
		{"zero rate", func(c *Config) { c.Artifacts.RequestsPerSecond = 0 }, "requests_per_second"},
		{"port out of range", func(c *Config) { c.Server.Port = 70000 }, "port"},
		{"enabled cache without ttl", func(c *Config) {
			c.Cache.Enabled = true
			c.Cache.TTL = 0
		}, "cache.ttl"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "attacklens.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
logger:
  level: debug
artifacts:
  base_url: https://artifacts.example.org/data
  max_retries: 3
server:
  port: 9090
cache:
  enabled: true
  ttl: 2m
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Logger.Level)
	assert.Equal(t, "https://artifacts.example.org/data", cfg.Artifacts.BaseURL)
	assert.Equal(t, 3, cfg.Artifacts.MaxRetries)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, 2*time.Minute, cfg.Cache.TTL)

	// Untouched fields keep their defaults.
	assert.Equal(t, "json", cfg.Logger.Format)
	assert.Equal(t, 10*time.Second, cfg.Artifacts.RequestTimeout)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	assert.Error(t, err)
}

func TestLoad_InvalidValuesRejected(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "attacklens.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: -1\n"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "port")
}
