package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	for _, key := range []string{"HTTP_ADDR", "SESSION_TTL", "COMPLETION_TIMEOUT", "OPENAI_API_BASE", "OPENAI_TEMPERATURE", "SYSTEM_PROMPT_PRESET", "TELEGRAM_BOT_TOKEN"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}

	cfg, err := fromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, 2*time.Hour, cfg.SessionTTL)
	assert.Equal(t, 30*time.Second, cfg.CompletionTimeout)
	assert.Equal(t, "https://api.groq.com/openai/v1", cfg.Completion.BaseURL)
	assert.InDelta(t, 0.7, cfg.Completion.Temperature, 1e-6)
	assert.Equal(t, "helpful", cfg.Prompt.Preset)
	assert.False(t, cfg.TelegramEnabled())
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "gsk_test")
	t.Setenv("OPENAI_API_BASE", "http://localhost:9999/v1")
	t.Setenv("SESSION_TTL", "0s")
	t.Setenv("RATE_LIMIT_RPS", "2.5")
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")

	cfg, err := fromEnv()
	require.NoError(t, err)

	assert.Equal(t, "gsk_test", cfg.Completion.APIKey)
	assert.Equal(t, "http://localhost:9999/v1", cfg.Completion.BaseURL)
	assert.Zero(t, cfg.SessionTTL)
	assert.Equal(t, 2.5, cfg.RateLimit.RPS)
	assert.True(t, cfg.TelegramEnabled())
}

func TestFromEnvRejectsBadValues(t *testing.T) {
	cases := map[string]string{
		"SESSION_TTL":        "soon",
		"COMPLETION_TIMEOUT": "0s",
		"OPENAI_TEMPERATURE": "warm",
		"RATE_LIMIT_BURST":   "many",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			_, err := fromEnv()
			require.Error(t, err)
			assert.Contains(t, err.Error(), key)
		})
	}
}

func TestLoadReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("OPENAI_API_KEY=from_file\nHTTP_ADDR=:9090\n"), 0o600))

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	t.Setenv("HTTP_ADDR", ":7070")
	// godotenv пишет в окружение процесса, чистим за собой.
	t.Setenv("OPENAI_API_KEY", "")
	os.Unsetenv("OPENAI_API_KEY")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "from_file", cfg.Completion.APIKey)
	assert.Equal(t, ":7070", cfg.HTTPAddr, "real environment wins over .env")
}
