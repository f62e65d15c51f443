package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"bankrot-parser/internal/core/services"
	"bankrot-parser/internal/domain"
	"bankrot-parser/internal/ports"
)

// ErrListTooLarge — список ИНН превышает допустимый размер.
var ErrListTooLarge = errors.New("слишком много ИНН в запросе")

// BulkReport — результат пакетной проверки вместе со сводкой.
type BulkReport struct {
	domain.BatchResult
	Summary domain.Summary `json:"summary"`
}

// PrepareIdentifiers проверяет размер списка и при необходимости удаляет дубликаты.
// Порядок первых вхождений сохраняется. Пустой список допустим.
func PrepareIdentifiers(identifiers []string, deduplicate bool, maxItems int) ([]string, error) {
	prepared := identifiers
	if deduplicate {
		prepared = services.Deduplicate(identifiers)
	}
	if maxItems > 0 && len(prepared) > maxItems {
		return nil, fmt.Errorf("%w: %d, максимум %d", ErrListTooLarge, len(prepared), maxItems)
	}
	return prepared, nil
}

// BulkUseCase выполняет пакетную проверку синхронно, в рамках запроса.
type BulkUseCase struct {
	batch    ports.BatchService
	maxItems int
	log      *slog.Logger
}

// NewBulkUseCase создает новый экземпляр BulkUseCase.
func NewBulkUseCase(batch ports.BatchService, maxItems int, log *slog.Logger) *BulkUseCase {
	if log == nil {
		log = slog.Default()
	}
	return &BulkUseCase{batch: batch, maxItems: maxItems, log: log}
}

// Check проверяет список ИНН и возвращает результат со сводкой.
// Если сессия занята другим запросом, возвращается ошибка domain.ErrSessionBusy.
func (uc *BulkUseCase) Check(ctx context.Context, identifiers []string, deduplicate bool) (BulkReport, error) {
	prepared, err := PrepareIdentifiers(identifiers, deduplicate, uc.maxItems)
	if err != nil {
		return BulkReport{}, err
	}

	batchID := uuid.NewString()
	uc.log.InfoContext(ctx, "Синхронная пакетная проверка", "batch_id", batchID, "total", len(prepared), "original", len(identifiers))

	result := uc.batch.RunBatch(ctx, batchID, prepared)
	if result.FatalKind == domain.ErrorKindBusy {
		return BulkReport{}, fmt.Errorf("пакет %s: %w", batchID, domain.ErrSessionBusy)
	}
	return BulkReport{
		BatchResult: result,
		Summary:     Summary(identifiers, result.Outcomes, deduplicate),
	}, nil
}

// Summary строит сводку пакета. Без удаления дубликатов исходный список
// совпадает с обработанным.
func Summary(original []string, outcomes []domain.ItemOutcome, deduplicated bool) domain.Summary {
	if deduplicated {
		return services.SummarizeInput(original, outcomes)
	}
	s := services.Summarize(outcomes)
	s.TotalOriginal = len(original)
	s.TotalUnique = len(original)
	return s
}
