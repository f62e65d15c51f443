package ports

import (
	"context"
	"io"
	"time"

	"bankrot-parser/internal/domain"
)

// DataSource определяет интерфейс для получения исходного списка ИНН.
type DataSource interface {
	// Fetch загружает данные из источника и возвращает их в виде байтового среза.
	Fetch() ([]byte, error)
}

// Parser определяет интерфейс для разбора списка идентификаторов.
type Parser interface {
	// Parse преобразует сырые данные в упорядоченный список идентификаторов.
	// Дубликаты сохраняются.
	Parse(data []byte) ([]string, error)
}

// Session — открытая сессия с реестром банкротств.
// Сессия хранит состояние и не допускает одновременных запросов.
type Session interface {
	// Fetch выполняет один поисковый запрос. Ошибки, оборачивающие
	// domain.ErrSessionUnusable, означают, что сессией больше нельзя пользоваться.
	Fetch(ctx context.Context, q domain.SearchQuery) ([]domain.CaseRecord, error)
	Close(ctx context.Context) error
}

// SessionProvider открывает новые сессии. Открытие сессии дорогое.
type SessionProvider interface {
	Open(ctx context.Context) (Session, error)
}

// Lease — право исключительного использования сессии.
type Lease interface {
	Fetch(ctx context.Context, q domain.SearchQuery) ([]domain.CaseRecord, error)
	// Release возвращает сессию. Повторные вызовы ничего не делают.
	Release()
}

// SessionManager выдает сессию не более чем одному владельцу одновременно.
type SessionManager interface {
	Acquire(ctx context.Context) (Lease, error)
}

// Throttle приостанавливает пакетную обработку между элементами.
type Throttle interface {
	Wait(ctx context.Context) error
}

// ProgressPublisher принимает события прогресса пакетной обработки.
type ProgressPublisher interface {
	Publish(event domain.ProgressEvent)
}

// BatchRecorder собирает метрики пакетной обработки.
type BatchRecorder interface {
	ObserveOutcome(outcome domain.ItemOutcome)
	ObserveBatch(result domain.BatchResult, elapsed time.Duration)
}

// BatchService определяет интерфейс пакетной проверки ИНН.
type BatchService interface {
	RunBatch(ctx context.Context, batchID string, identifiers []string) domain.BatchResult
}

// SearchService определяет интерфейс одиночного поиска в реестре.
type SearchService interface {
	Search(ctx context.Context, q domain.SearchQuery) (domain.SearchResult, error)
}

// Exporter определяет интерфейс для вывода результатов пакетной проверки.
type Exporter interface {
	// Export записывает результаты по каждому ИНН в w.
	Export(w io.Writer, outcomes []domain.ItemOutcome) error
	// ContentType возвращает MIME-тип результата.
	ContentType() string
	// Extension возвращает расширение файла без точки.
	Extension() string
}

// CaseExporter выводит список найденных дел.
type CaseExporter interface {
	ExportCases(w io.Writer, records []domain.CaseRecord) error
}
