package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_AppliesDefaults(t *testing.T) {
	path := writeTempConfig(t, "log_level: debug\n")
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 3, cfg.Retry.MaxRetries)
	assert.Equal(t, time.Second, cfg.Retry.BaseDelay)
	assert.Equal(t, 256, cfg.Bus.QueueDepth)
	assert.Equal(t, ":8080", cfg.Server.ListenAddr)
}

func TestLoad_ExpandsEnvVars(t *testing.T) {
	t.Setenv("RVC_TEST_API_KEY", "secret-123")
	path := writeTempConfig(t, "llm:\n  api_key: ${RVC_TEST_API_KEY}\n  base_url: https://example.test/v1\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "secret-123", cfg.LLM.APIKey)
	assert.Equal(t, "https://example.test/v1", cfg.LLM.BaseURL)
}

func TestLoad_ParsesDurationStrings(t *testing.T) {
	path := writeTempConfig(t, "retry:\n  max_retries: 5\n  base_delay: 250ms\n  max_delay: 10s\n")
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Retry.MaxRetries)
	assert.Equal(t, 250*time.Millisecond, cfg.Retry.BaseDelay)
	assert.Equal(t, 10*time.Second, cfg.Retry.MaxDelay)
}

func TestLoad_RejectsInvalidQueueDepth(t *testing.T) {
	path := writeTempConfig(t, "bus:\n  queue_depth: -1\n")
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoad_MissingFileErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
