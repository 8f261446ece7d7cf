package model

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "ollama", cfg.AI.Provider)
	assert.Equal(t, 60, cfg.AI.TimeoutSec)
	assert.Equal(t, "@every 60s", cfg.Poll.InboxSchedule)
	assert.Equal(t, "@every 5m", cfg.Poll.SentSchedule)
	assert.Equal(t, 10, cfg.Poll.SentLimit)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadConfigFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := "ai:\n  model: qwen2.5\n  timeout_sec: 5\npoll:\n  max_concurrency: 0\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	t.Setenv("MAILTRIAGE_LOG_LEVEL", "debug")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "qwen2.5", cfg.AI.Model)
	assert.Equal(t, 5, cfg.AI.TimeoutSec)
	assert.Equal(t, 1, cfg.Poll.MaxConcurrency)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestSaveConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	cfg.AI.Model = "mistral"
	cfg.Dispatch.LinkBaseURL = "https://mail.example.com/ui"

	require.NoError(t, SaveConfig(path, cfg))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "mistral", loaded.AI.Model)
	assert.Equal(t, "https://mail.example.com/ui", loaded.Dispatch.LinkBaseURL)
}
