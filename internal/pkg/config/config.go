// Package config предоставляет управление конфигурацией приложения
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

// Режимы получения данных реестра.
const (
	FetcherModeBrowser = "browser"
	FetcherModeMock    = "mock"
)

// Виды ограничителя частоты запросов.
const (
	ThrottleFixed       = "fixed"
	ThrottleTokenBucket = "token_bucket"
)

// Server содержит конфигурацию сервера
type Server struct {
	Host            string        `json:"host" yaml:"host"`
	Port            int           `json:"port" yaml:"port"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout" yaml:"shutdown_timeout"`
	MaxUploadSizeMB int           `json:"max_upload_size_mb" yaml:"max_upload_size_mb"`
}

// Fetcher содержит настройки доступа к реестру через рендер-сервис
type Fetcher struct {
	Mode           string        `json:"mode" yaml:"mode"` // browser, mock
	BaseURL        string        `json:"base_url" yaml:"base_url"`
	APIKey         string        `json:"api_key" yaml:"api_key"`
	StartURL       string        `json:"start_url" yaml:"start_url"`
	UserAgent      string        `json:"user_agent" yaml:"user_agent"`
	RequestTimeout time.Duration `json:"request_timeout" yaml:"request_timeout"`
	FixturesPath   string        `json:"fixtures_path" yaml:"fixtures_path"`
	// FallbackURLs — дополнительные экземпляры сервиса рендеринга.
	FallbackURLs        []string      `json:"fallback_urls" yaml:"fallback_urls"`
	HealthCheckInterval time.Duration `json:"health_check_interval" yaml:"health_check_interval"`
}

// RendererURLs возвращает адреса всех экземпляров сервиса рендеринга без повторов.
// Первым идет основной адрес.
func (f Fetcher) RendererURLs() []string {
	seen := make(map[string]bool)
	var urls []string
	for _, u := range append([]string{f.BaseURL}, f.FallbackURLs...) {
		u = strings.TrimRight(strings.TrimSpace(u), "/")
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true
		urls = append(urls, u)
	}
	return urls
}

// Batch содержит конфигурацию пакетной проверки
type Batch struct {
	DefaultRegion  string        `json:"default_region" yaml:"default_region"`
	ItemDelay      time.Duration `json:"item_delay" yaml:"item_delay"`
	Throttle       string        `json:"throttle" yaml:"throttle"` // fixed, token_bucket
	RatePerSecond  float64       `json:"rate_per_second" yaml:"rate_per_second"`
	Burst          int           `json:"burst" yaml:"burst"`
	MaxIdentifiers int           `json:"max_identifiers" yaml:"max_identifiers"`
	QueueSize      int           `json:"queue_size" yaml:"queue_size"`
	TaskTTL        time.Duration `json:"task_ttl" yaml:"task_ttl"`
}

// Cache содержит конфигурацию кэша результатов поиска
type Cache struct {
	TTL time.Duration `json:"ttl" yaml:"ttl"`
}

// Logging содержит конфигурацию логирования
type Logging struct {
	Level  string `json:"level" yaml:"level"`   // debug, info, warn, error
	Format string `json:"format" yaml:"format"` // json, text
}

// Metrics содержит конфигурацию экспорта метрик Prometheus
type Metrics struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Path    string `json:"path" yaml:"path"`
}

// Config содержит конфигурацию приложения
type Config struct {
	Server  Server  `json:"server" yaml:"server"`
	Fetcher Fetcher `json:"fetcher" yaml:"fetcher"`
	Batch   Batch   `json:"batch" yaml:"batch"`
	Cache   Cache   `json:"cache" yaml:"cache"`
	Logging Logging `json:"logging" yaml:"logging"`
	Metrics Metrics `json:"metrics" yaml:"metrics"`
}

// defaultConfig возвращает конфигурацию со значениями по умолчанию
func defaultConfig() *Config {
	return &Config{
		Server: Server{
			Host:            DefaultServerHost,
			Port:            DefaultServerPort,
			ShutdownTimeout: DefaultShutdownTimeout,
			MaxUploadSizeMB: DefaultMaxUploadSizeMB,
		},
		Fetcher: Fetcher{
			Mode:           DefaultFetcherMode,
			BaseURL:        DefaultRendererURL,
			StartURL:       DefaultStartURL,
			UserAgent:      DefaultUserAgent,
			RequestTimeout: DefaultRequestTimeout,

			HealthCheckInterval: DefaultHealthCheckInterval,
		},
		Batch: Batch{
			DefaultRegion:  DefaultRegion,
			ItemDelay:      DefaultItemDelay,
			Throttle:       DefaultThrottle,
			RatePerSecond:  DefaultRatePerSecond,
			Burst:          DefaultBurst,
			MaxIdentifiers: DefaultMaxIdentifiers,
			QueueSize:      DefaultQueueSize,
			TaskTTL:        DefaultTaskTTL,
		},
		Cache:   Cache{TTL: DefaultCacheTTL},
		Logging: Logging{Level: DefaultLogLevel, Format: DefaultLogFormat},
		Metrics: Metrics{Enabled: true, Path: DefaultMetricsPath},
	}
}

// LoadConfig загружает конфигурацию: значения по умолчанию, затем config.yml
// (путь можно переопределить переменной CONFIG_PATH), затем переменные окружения и .env файл.
func LoadConfig() (*Config, error) {
	// Загрузка переменных окружения из .env файла, если он существует
	_ = godotenv.Load()

	cfg := defaultConfig()
	if err := loadFromYAML(getEnv("CONFIG_PATH", "config.yml"), cfg); err != nil {
		return nil, err
	}
	if err := applyEnv(cfg); err != nil {
		return nil, fmt.Errorf("не удалось загрузить конфигурацию из env: %w", err)
	}

	return cfg, nil
}

// loadFromYAML накладывает значения из YAML-файла поверх cfg.
// Отсутствие файла не является ошибкой.
func loadFromYAML(filename string, cfg *Config) error {
	data, err := os.ReadFile(filename)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("не удалось прочитать файл конфигурации %s: %w", filename, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("не удалось разобрать YAML конфигурацию: %w", err)
	}
	return nil
}

// applyEnv переопределяет значения из переменных окружения
func applyEnv(cfg *Config) error {
	setString(&cfg.Server.Host, "SERVER_HOST")
	setString(&cfg.Fetcher.Mode, "FETCHER_MODE")
	setString(&cfg.Fetcher.BaseURL, "RENDERER_URL")
	setString(&cfg.Fetcher.APIKey, "RENDERER_API_KEY")
	setString(&cfg.Fetcher.FixturesPath, "FIXTURES_PATH")
	if v := os.Getenv("RENDERER_FALLBACK_URLS"); v != "" {
		cfg.Fetcher.FallbackURLs = strings.Split(v, ",")
	}
	setString(&cfg.Batch.DefaultRegion, "DEFAULT_REGION")
	setString(&cfg.Batch.Throttle, "THROTTLE")
	setString(&cfg.Logging.Level, "LOG_LEVEL")
	setString(&cfg.Logging.Format, "LOG_FORMAT")

	if err := setInt(&cfg.Server.Port, "SERVER_PORT"); err != nil {
		return err
	}
	if err := setInt(&cfg.Batch.MaxIdentifiers, "MAX_IDENTIFIERS"); err != nil {
		return err
	}
	if err := setDuration(&cfg.Batch.ItemDelay, "ITEM_DELAY"); err != nil {
		return err
	}
	if err := setDuration(&cfg.Cache.TTL, "CACHE_TTL"); err != nil {
		return err
	}
	return nil
}

// Address возвращает адрес сервера в формате "host:port"
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// Validate проверяет, являются ли значения конфигурации допустимыми
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port должен быть действительным номером порта (1-65535)")
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("server.shutdown_timeout должно быть положительным")
	}
	if c.Server.MaxUploadSizeMB <= 0 {
		return fmt.Errorf("server.max_upload_size_mb должно быть положительным")
	}

	switch c.Fetcher.Mode {
	case FetcherModeBrowser:
		if c.Fetcher.BaseURL == "" {
			return fmt.Errorf("fetcher.base_url не может быть пустым в режиме browser")
		}
		if c.Fetcher.RequestTimeout <= 0 {
			return fmt.Errorf("fetcher.request_timeout должно быть положительным")
		}
		if c.Fetcher.HealthCheckInterval <= 0 {
			return fmt.Errorf("fetcher.health_check_interval должно быть положительным")
		}
	case FetcherModeMock:
		// fixtures_path может быть пустым: тогда используются синтетические ответы
	default:
		return fmt.Errorf("fetcher.mode должен быть одним из: browser, mock")
	}

	if c.Batch.DefaultRegion == "" {
		return fmt.Errorf("batch.default_region не может быть пустым")
	}
	if c.Batch.ItemDelay < 0 {
		return fmt.Errorf("batch.item_delay должно быть неотрицательным")
	}
	switch c.Batch.Throttle {
	case ThrottleFixed:
	case ThrottleTokenBucket:
		if c.Batch.RatePerSecond <= 0 {
			return fmt.Errorf("batch.rate_per_second должно быть положительным")
		}
		if c.Batch.Burst <= 0 {
			return fmt.Errorf("batch.burst должно быть положительным")
		}
	default:
		return fmt.Errorf("batch.throttle должен быть одним из: fixed, token_bucket")
	}
	if c.Batch.MaxIdentifiers <= 0 {
		return fmt.Errorf("batch.max_identifiers должно быть положительным")
	}
	if c.Batch.QueueSize <= 0 {
		return fmt.Errorf("batch.queue_size должно быть положительным")
	}
	if c.Batch.TaskTTL <= 0 {
		return fmt.Errorf("batch.task_ttl должно быть положительным")
	}

	if c.Cache.TTL <= 0 {
		return fmt.Errorf("cache.ttl должно быть положительным")
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		// all good
	default:
		return fmt.Errorf("logging.level должен быть одним из: debug, info, warn, error")
	}
	switch c.Logging.Format {
	case "json", "text":
	default:
		return fmt.Errorf("logging.format должен быть одним из: json, text")
	}

	if c.Metrics.Enabled && c.Metrics.Path == "" {
		return fmt.Errorf("metrics.path не может быть пустым")
	}

	return nil
}

// getEnv извлекает значение переменной окружения или возвращает значение по умолчанию, если она не установлена
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func setString(dst *string, key string) {
	*dst = getEnv(key, *dst)
}

func setInt(dst *int, key string) error {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("недопустимый %s: %w", key, err)
	}
	*dst = n
	return nil
}

func setDuration(dst *time.Duration, key string) error {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("недопустимый %s: %w", key, err)
	}
	*dst = d
	return nil
}

// Default возвращает конфигурацию со значениями по умолчанию без чтения файлов и окружения
func Default() *Config {
	return defaultConfig()
}
