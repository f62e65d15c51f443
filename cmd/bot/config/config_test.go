package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadBotConfig(t *testing.T) {
	t.Run("file with defaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bot_config.yml")
		require.NoError(t, os.WriteFile(path, []byte(`
bot:
  token: "123:abc"
  excel_threshold: 5
  render:
    error: 40
logging:
  format: text
`), 0o600))

		cfg, err := LoadBotConfig(path)
		require.NoError(t, err)

		assert.Equal(t, "123:abc", cfg.Bot.Token)
		assert.Equal(t, 5, cfg.Bot.ExcelThreshold)
		assert.Equal(t, DefaultBackendURL, cfg.Bot.BackendURL)
		assert.Equal(t, DefaultPollingIntervalSeconds, cfg.Bot.PollingIntervalSeconds)
		assert.Equal(t, 40, cfg.Bot.Render.Error)
		assert.Equal(t, DefaultINNColumnWidth, cfg.Bot.Render.INN)
		assert.Equal(t, "text", cfg.Logging.Format)
		assert.Equal(t, DefaultLogLevel, cfg.Logging.Level)
		assert.NoError(t, cfg.ValidateFull())
	})

	t.Run("env overrides and missing file", func(t *testing.T) {
		t.Setenv("BOT_TOKEN", "env-token")
		t.Setenv("BACKEND_URL", "http://backend:9000")

		cfg, err := LoadBotConfig(filepath.Join(t.TempDir(), "absent.yml"))
		require.NoError(t, err)
		assert.Equal(t, "env-token", cfg.Bot.Token)
		assert.Equal(t, "http://backend:9000", cfg.Bot.BackendURL)
	})
}

func TestBotConfig_Validate(t *testing.T) {
	valid := func() Config {
		c := Config{Bot: BotConfig{Token: "123:abc"}}
		c.applyDefaults()
		return c
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "placeholder token", mutate: func(c *Config) { c.Bot.Token = "YOUR_TELEGRAM_BOT_TOKEN" }, wantErr: "bot.token"},
		{name: "negative threshold", mutate: func(c *Config) { c.Bot.ExcelThreshold = -1 }, wantErr: "excel_threshold"},
		{name: "page size too large", mutate: func(c *Config) { c.Bot.ResultPageSize = 1000 }, wantErr: "result_page_size"},
		{name: "bad log format", mutate: func(c *Config) { c.Logging.Format = "xml" }, wantErr: "logging.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.ValidateFull()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}
