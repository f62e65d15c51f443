package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

// ColumnWidths определяет ширину колонок для текстового вывода.
type ColumnWidths struct {
	INN    int `yaml:"inn"`
	Status int `yaml:"status"`
	Cases  int `yaml:"cases"`
	Error  int `yaml:"error"`
}

// BotConfig содержит конфигурацию для Telegram-бота
type BotConfig struct {
	Token                  string       `yaml:"token"`
	BackendURL             string       `yaml:"backend_url"`
	PollingIntervalSeconds int          `yaml:"polling_interval_seconds"`
	ExcelThreshold         int          `yaml:"excel_threshold"`
	HTTPTimeoutSeconds     int          `yaml:"http_timeout_seconds"`
	MaxFileSizeBytes       int          `yaml:"max_file_size_bytes"`
	ResultPageSize         int          `yaml:"result_page_size"`
	Deduplicate            bool         `yaml:"deduplicate"`
	Render                 ColumnWidths `yaml:"render"`
}

// LoggingConfig содержит настройки логирования бота.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Config является оберткой для соответствия структуре YAML файла.
type Config struct {
	Bot     BotConfig     `yaml:"bot"`
	Logging LoggingConfig `yaml:"logging"`
}

// LoadBotConfig загружает конфигурацию бота из указанного файла.
// Токен и адрес сервера можно переопределить переменными BOT_TOKEN и BACKEND_URL,
// в том числе из файла .env.
func LoadBotConfig(filename string) (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	data, err := os.ReadFile(filename)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal bot config: %w", err)
		}
	case os.IsNotExist(err):
	default:
		return nil, fmt.Errorf("failed to read bot config file %s: %w", filename, err)
	}

	if v := os.Getenv("BOT_TOKEN"); v != "" {
		cfg.Bot.Token = v
	}
	if v := os.Getenv("BACKEND_URL"); v != "" {
		cfg.Bot.BackendURL = v
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	b := &c.Bot
	if b.BackendURL == "" {
		b.BackendURL = DefaultBackendURL
	}
	if b.PollingIntervalSeconds == 0 {
		b.PollingIntervalSeconds = DefaultPollingIntervalSeconds
	}
	if b.ExcelThreshold == 0 {
		b.ExcelThreshold = DefaultExcelThreshold
	}
	if b.HTTPTimeoutSeconds == 0 {
		b.HTTPTimeoutSeconds = DefaultHTTPTimeoutSeconds
	}
	if b.MaxFileSizeBytes == 0 {
		b.MaxFileSizeBytes = DefaultMaxFileSizeBytes
	}
	if b.ResultPageSize == 0 {
		b.ResultPageSize = DefaultResultPageSize
	}
	if b.Render.INN == 0 {
		b.Render.INN = DefaultINNColumnWidth
	}
	if b.Render.Status == 0 {
		b.Render.Status = DefaultStatusColumnWidth
	}
	if b.Render.Cases == 0 {
		b.Render.Cases = DefaultCasesColumnWidth
	}
	if b.Render.Error == 0 {
		b.Render.Error = DefaultErrorColumnWidth
	}
	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
	if c.Logging.Format == "" {
		c.Logging.Format = DefaultLogFormat
	}
}

// Validate проверяет корректность конфигурации бота.
func (c *BotConfig) Validate() error {
	if c.Token == "" || c.Token == "YOUR_TELEGRAM_BOT_TOKEN" {
		return fmt.Errorf("bot.token is not configured")
	}
	if c.BackendURL == "" {
		return fmt.Errorf("bot.backend_url cannot be empty")
	}
	if c.PollingIntervalSeconds <= 0 {
		return fmt.Errorf("bot.polling_interval_seconds must be positive")
	}
	if c.ExcelThreshold <= 0 {
		return fmt.Errorf("bot.excel_threshold must be positive")
	}
	if c.ResultPageSize <= 0 || c.ResultPageSize > 500 {
		return fmt.Errorf("bot.result_page_size must be between 1 and 500")
	}
	return nil
}

// ValidateFull проверяет всю конфигурацию, включая логирование.
func (c *Config) ValidateFull() error {
	if err := c.Bot.Validate(); err != nil {
		return err
	}
	switch c.Logging.Format {
	case "json", "text":
	default:
		return fmt.Errorf("logging.format must be json or text, got %q", c.Logging.Format)
	}
	return nil
}
