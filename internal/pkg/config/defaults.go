package config

import "time"

// Default values for configuration.
const (
	// Server defaults
	DefaultServerHost      = "0.0.0.0"
	DefaultServerPort      = 8080
	DefaultReadTimeout     = 10 * time.Second
	DefaultWriteTimeout    = 60 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 15 * time.Second
	DefaultMaxUploadSizeMB = 10
	DefaultCleanupInterval = 10 * time.Minute

	// Fetcher defaults
	DefaultFetcherMode    = FetcherModeBrowser
	DefaultRendererURL    = "http://127.0.0.1:9222"
	DefaultStartURL       = "https://bankrot.fedresurs.ru/"
	DefaultUserAgent      = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"
	DefaultRequestTimeout = 60 * time.Second

	DefaultHealthCheckInterval = 30 * time.Second

	// Batch defaults
	DefaultRegion         = "Донецкая Народная Республика"
	DefaultItemDelay      = 1 * time.Second
	DefaultThrottle       = ThrottleFixed
	DefaultRatePerSecond  = 1.0
	DefaultBurst          = 1
	DefaultMaxIdentifiers = 1000
	DefaultQueueSize      = 16
	DefaultTaskTTL        = 60 * time.Minute

	// Cache defaults
	DefaultCacheTTL = 60 * time.Minute

	// Logging defaults
	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	// Metrics defaults
	DefaultMetricsPath = "/metrics"
)
