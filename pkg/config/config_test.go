package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "enginectl.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":8090", cfg.Listen)
	assert.Equal(t, "http://localhost:8080", cfg.Engine.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.LifecycleCallTimeout)
}

func TestLoad_FileThenEnv(t *testing.T) {
	p := writeFile(t, `
listen: ":9000"
engine:
  base_url: "http://engine.internal:8080"
  timeout: 3s
  retry_count: 0
  breaker:
    max_consecutive_errors: 2
    cooldown: 1m
lifecycle:
  call_timeout: 45s
sync:
  call_timeout: 5s
log:
  level: debug
  compress: false
`)
	t.Setenv("ENGINECTL_SYNC_CALL_TIMEOUT", "7s")
	t.Setenv("ENGINECTL_LOG_LEVEL", "warn")

	cfg, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Listen)
	assert.Equal(t, "http://engine.internal:8080", cfg.Engine.BaseURL)
	assert.Equal(t, 3*time.Second, cfg.Engine.Timeout)
	assert.Equal(t, 0, cfg.Engine.RetryCount)
	assert.EqualValues(t, 2, cfg.Engine.Breaker.MaxConsecutiveErrors)
	assert.Equal(t, time.Minute, cfg.Engine.Breaker.Cooldown)
	assert.Equal(t, 45*time.Second, cfg.LifecycleCallTimeout)
	assert.Equal(t, 7*time.Second, cfg.SyncCallTimeout)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.False(t, cfg.Log.Compress)
}

func TestLoad_Invalid(t *testing.T) {
	tests := map[string]string{
		"bad duration": "engine:\n  timeout: soon\n",
		"bad url":      "engine:\n  base_url: \"not a url\"\n",
		"bad level":    "log:\n  level: chatty\n",
		"bad yaml":     "listen: [\n",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeFile(t, body))
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
