package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fullYAML = `
server:
  host: "127.0.0.1"
  port: 8081
  shutdown_timeout: 20s
fetcher:
  mode: "browser"
  base_url: "http://renderer:9222"
  api_key: "secret-key"
  request_timeout: 45s
batch:
  default_region: "г. Москва"
  item_delay: 1500ms
  max_identifiers: 200
  queue_size: 4
  task_ttl: 2h
cache:
  ttl: 30m
logging:
  level: "debug"
  format: "text"
metrics:
  enabled: false
`

const mockYAML = `
fetcher:
  mode: "mock"
  fixtures_path: "testdata/fixtures.yml"
`

func createTempConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	err := os.WriteFile(path, []byte(content), 0644)
	require.NoError(t, err)
	return path
}

func TestLoadFromYAML(t *testing.T) {
	t.Run("full config", func(t *testing.T) {
		cfg := defaultConfig()
		err := loadFromYAML(createTempConfigFile(t, fullYAML), cfg)
		require.NoError(t, err)

		assert.Equal(t, "127.0.0.1:8081", cfg.Address())
		assert.Equal(t, 20*time.Second, cfg.Server.ShutdownTimeout)
		assert.Equal(t, DefaultMaxUploadSizeMB, cfg.Server.MaxUploadSizeMB)
		assert.Equal(t, "http://renderer:9222", cfg.Fetcher.BaseURL)
		assert.Equal(t, "secret-key", cfg.Fetcher.APIKey)
		assert.Equal(t, DefaultStartURL, cfg.Fetcher.StartURL)
		assert.Equal(t, 45*time.Second, cfg.Fetcher.RequestTimeout)
		assert.Equal(t, "г. Москва", cfg.Batch.DefaultRegion)
		assert.Equal(t, 1500*time.Millisecond, cfg.Batch.ItemDelay)
		assert.Equal(t, 200, cfg.Batch.MaxIdentifiers)
		assert.Equal(t, 4, cfg.Batch.QueueSize)
		assert.Equal(t, 2*time.Hour, cfg.Batch.TaskTTL)
		assert.Equal(t, 30*time.Minute, cfg.Cache.TTL)
		assert.Equal(t, "debug", cfg.Logging.Level)
		assert.Equal(t, "text", cfg.Logging.Format)
		assert.False(t, cfg.Metrics.Enabled)
		assert.NoError(t, cfg.Validate())
	})

	t.Run("partial config keeps defaults", func(t *testing.T) {
		cfg := defaultConfig()
		require.NoError(t, loadFromYAML(createTempConfigFile(t, mockYAML), cfg))

		assert.Equal(t, FetcherModeMock, cfg.Fetcher.Mode)
		assert.Equal(t, DefaultRegion, cfg.Batch.DefaultRegion)
		assert.Equal(t, DefaultItemDelay, cfg.Batch.ItemDelay)
		assert.Equal(t, ThrottleFixed, cfg.Batch.Throttle)
		assert.NoError(t, cfg.Validate())
	})

	t.Run("token bucket throttle", func(t *testing.T) {
		cfg := defaultConfig()
		content := "batch:\n  throttle: token_bucket\n  rate_per_second: 0.5\n  burst: 3\n"
		require.NoError(t, loadFromYAML(createTempConfigFile(t, content), cfg))

		assert.Equal(t, ThrottleTokenBucket, cfg.Batch.Throttle)
		assert.Equal(t, 0.5, cfg.Batch.RatePerSecond)
		assert.Equal(t, 3, cfg.Batch.Burst)
		assert.NoError(t, cfg.Validate())
	})

	t.Run("file not found is not an error", func(t *testing.T) {
		cfg := defaultConfig()
		err := loadFromYAML("non_existent_file.yml", cfg)
		assert.NoError(t, err)
		assert.Equal(t, defaultConfig(), cfg)
	})

	t.Run("invalid yaml", func(t *testing.T) {
		cfg := defaultConfig()
		err := loadFromYAML(createTempConfigFile(t, "invalid yaml: {"), cfg)
		assert.Error(t, err)
	})
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("CONFIG_PATH", createTempConfigFile(t, fullYAML))
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("FETCHER_MODE", "mock")
	t.Setenv("ITEM_DELAY", "250ms")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, FetcherModeMock, cfg.Fetcher.Mode)
	assert.Equal(t, 250*time.Millisecond, cfg.Batch.ItemDelay)
	assert.Equal(t, "г. Москва", cfg.Batch.DefaultRegion)

	t.Run("invalid env value", func(t *testing.T) {
		t.Setenv("SERVER_PORT", "not-a-port")
		_, err := LoadConfig()
		assert.Error(t, err)
	})
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		name    string
		mutator func(*Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"zero item delay", func(c *Config) { c.Batch.ItemDelay = 0 }, false},
		{"mock without fixtures", func(c *Config) { c.Fetcher.Mode = FetcherModeMock; c.Fetcher.BaseURL = "" }, false},
		{"invalid port", func(c *Config) { c.Server.Port = 0 }, true},
		{"invalid shutdown timeout", func(c *Config) { c.Server.ShutdownTimeout = 0 }, true},
		{"invalid upload size", func(c *Config) { c.Server.MaxUploadSizeMB = 0 }, true},
		{"unknown fetcher mode", func(c *Config) { c.Fetcher.Mode = "selenium" }, true},
		{"browser without base_url", func(c *Config) { c.Fetcher.BaseURL = "" }, true},
		{"invalid request timeout", func(c *Config) { c.Fetcher.RequestTimeout = 0 }, true},
		{"invalid health check interval", func(c *Config) { c.Fetcher.HealthCheckInterval = 0 }, true},
		{"empty region", func(c *Config) { c.Batch.DefaultRegion = "" }, true},
		{"negative item delay", func(c *Config) { c.Batch.ItemDelay = -time.Second }, true},
		{"token bucket", func(c *Config) { c.Batch.Throttle = ThrottleTokenBucket; c.Batch.RatePerSecond = 0.5; c.Batch.Burst = 2 }, false},
		{"unknown throttle", func(c *Config) { c.Batch.Throttle = "leaky" }, true},
		{"token bucket without rate", func(c *Config) { c.Batch.Throttle = ThrottleTokenBucket; c.Batch.RatePerSecond = 0 }, true},
		{"token bucket without burst", func(c *Config) { c.Batch.Throttle = ThrottleTokenBucket; c.Batch.Burst = 0 }, true},
		{"invalid max identifiers", func(c *Config) { c.Batch.MaxIdentifiers = 0 }, true},
		{"invalid queue size", func(c *Config) { c.Batch.QueueSize = 0 }, true},
		{"invalid task ttl", func(c *Config) { c.Batch.TaskTTL = 0 }, true},
		{"invalid cache ttl", func(c *Config) { c.Cache.TTL = 0 }, true},
		{"invalid logging level", func(c *Config) { c.Logging.Level = "wrong" }, true},
		{"invalid logging format", func(c *Config) { c.Logging.Format = "xml" }, true},
		{"empty metrics path", func(c *Config) { c.Metrics.Path = "" }, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := defaultConfig()
			tc.mutator(cfg)
			err := cfg.Validate()
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestFetcher_RendererURLs(t *testing.T) {
	f := Fetcher{
		BaseURL:      "http://renderer-1:9222/",
		FallbackURLs: []string{" http://renderer-2:9222", "", "http://renderer-1:9222"},
	}
	assert.Equal(t, []string{"http://renderer-1:9222", "http://renderer-2:9222"}, f.RendererURLs())

	t.Setenv("RENDERER_FALLBACK_URLS", "http://a:1,http://b:2")
	cfg := defaultConfig()
	require.NoError(t, applyEnv(cfg))
	assert.Equal(t, []string{DefaultRendererURL, "http://a:1", "http://b:2"}, cfg.Fetcher.RendererURLs())
}
