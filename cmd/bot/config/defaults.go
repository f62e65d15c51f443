package config

// Значения по умолчанию для бота.
const (
	DefaultBackendURL             = "http://127.0.0.1:8080"
	DefaultPollingIntervalSeconds = 3
	DefaultExcelThreshold         = 20
	DefaultHTTPTimeoutSeconds     = 30
	DefaultMaxFileSizeBytes       = 1 << 20
	DefaultResultPageSize         = 200
	DefaultLogLevel               = "info"
	DefaultLogFormat              = "json"
)

// Ширина колонок текстовой таблицы результатов.
const (
	DefaultINNColumnWidth    = 12
	DefaultStatusColumnWidth = 8
	DefaultCasesColumnWidth  = 4
	DefaultErrorColumnWidth  = 24
)
