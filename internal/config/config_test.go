package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

const validConfigJSON = `{
	"metrics_port": 9091,
	"db_path": "/var/lib/tasksched/tasks.db",
	"timezone": "America/New_York",
	"assistant": {
		"base_url": "http://localhost:8080",
		"api_key": "test-key",
		"model": "gpt-4",
		"dispatch_timeout": "90s"
	},
	"scheduler": {
		"poll_interval": "15s",
		"error_backoff": "45s",
		"fail_threshold": 5
	},
	"telegram": {
		"bot_token": "bot-token",
		"chat_id": 12345
	}
}`

func TestConfig_LoadFromFile(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfigJSON))
	require.NoError(t, err)

	assert.Equal(t, 9091, cfg.MetricsPort)
	assert.Equal(t, "/var/lib/tasksched/tasks.db", cfg.DBPath)
	assert.Equal(t, "America/New_York", cfg.Timezone)
	assert.Equal(t, "http://localhost:8080", cfg.Assistant.BaseURL)
	assert.Equal(t, "test-key", cfg.Assistant.APIKey)
	assert.Equal(t, "gpt-4", cfg.Assistant.Model)
	assert.Equal(t, 90*time.Second, cfg.Assistant.DispatchTimeout.Duration)
	assert.Equal(t, 15*time.Second, cfg.Scheduler.PollInterval.Duration)
	assert.Equal(t, 45*time.Second, cfg.Scheduler.ErrorBackoff.Duration)
	assert.Equal(t, 5, cfg.Scheduler.FailThreshold)
	assert.Equal(t, "bot-token", cfg.Telegram.BotToken)
	assert.Equal(t, int64(12345), cfg.Telegram.ChatID)

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "America/New_York", loc.String())

	// Test loading non-existent file
	_, err = Load("non-existent.json")
	assert.Error(t, err)

	// Test loading invalid JSON
	_, err = Load(writeConfig(t, "{invalid json}"))
	assert.Error(t, err)
}

func TestConfig_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, `{
		"db_path": "/tmp/tasks.db",
		"timezone": "UTC",
		"assistant": {
			"base_url": "http://localhost:8080",
			"api_key": "k",
			"model": "gpt-4"
		}
	}`))
	require.NoError(t, err)

	assert.Equal(t, 30*time.Second, cfg.Scheduler.PollInterval.Duration)
	assert.Equal(t, time.Minute, cfg.Scheduler.ErrorBackoff.Duration)
	assert.Equal(t, 3, cfg.Scheduler.FailThreshold)
	assert.Equal(t, 2*time.Minute, cfg.Assistant.DispatchTimeout.Duration)
}

func TestConfig_Validation(t *testing.T) {
	tests := []struct {
		name string
		json string
	}{
		{
			name: "missing db path",
			json: `{
				"timezone": "UTC",
				"assistant": {"base_url": "http://localhost:8080", "api_key": "k", "model": "m"}
			}`,
		},
		{
			name: "missing timezone",
			json: `{
				"db_path": "/tmp/tasks.db",
				"assistant": {"base_url": "http://localhost:8080", "api_key": "k", "model": "m"}
			}`,
		},
		{
			name: "unknown timezone",
			json: `{
				"db_path": "/tmp/tasks.db",
				"timezone": "Mars/Olympus_Mons",
				"assistant": {"base_url": "http://localhost:8080", "api_key": "k", "model": "m"}
			}`,
		},
		{
			name: "bad assistant url",
			json: `{
				"db_path": "/tmp/tasks.db",
				"timezone": "UTC",
				"assistant": {"base_url": "not a url", "api_key": "k", "model": "m"}
			}`,
		},
		{
			name: "telegram token without chat id",
			json: `{
				"db_path": "/tmp/tasks.db",
				"timezone": "UTC",
				"assistant": {"base_url": "http://localhost:8080", "api_key": "k", "model": "m"},
				"telegram": {"bot_token": "tok"}
			}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.json))
			assert.Error(t, err)
		})
	}
}

func TestConfig_EnvironmentOverrides(t *testing.T) {
	os.Setenv("DB_PATH", "/env/tasks.db")
	os.Setenv("TIMEZONE", "Europe/Berlin")
	os.Setenv("ASSISTANT_API_KEY", "env-key")
	os.Setenv("SCHEDULER_POLL_INTERVAL", "5s")
	os.Setenv("TELEGRAM_CHAT_ID", "999")
	defer func() {
		os.Unsetenv("DB_PATH")
		os.Unsetenv("TIMEZONE")
		os.Unsetenv("ASSISTANT_API_KEY")
		os.Unsetenv("SCHEDULER_POLL_INTERVAL")
		os.Unsetenv("TELEGRAM_CHAT_ID")
	}()

	cfg, err := Load(writeConfig(t, validConfigJSON))
	require.NoError(t, err)

	// Environment variables override file values
	assert.Equal(t, "/env/tasks.db", cfg.DBPath)
	assert.Equal(t, "Europe/Berlin", cfg.Timezone)
	assert.Equal(t, "env-key", cfg.Assistant.APIKey)
	assert.Equal(t, 5*time.Second, cfg.Scheduler.PollInterval.Duration)
	assert.Equal(t, int64(999), cfg.Telegram.ChatID)

	// Non-overridden values remain
	assert.Equal(t, "gpt-4", cfg.Assistant.Model)
	assert.Equal(t, "bot-token", cfg.Telegram.BotToken)
}
