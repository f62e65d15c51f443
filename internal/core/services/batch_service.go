package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"bankrot-parser/internal/domain"
	"bankrot-parser/internal/inn"
	"bankrot-parser/internal/ports"
	"bankrot-parser/internal/throttle"
)

// MsgCancelled — сообщение об ошибке для пакета, прерванного отменой.
const MsgCancelled = "пакетная обработка отменена"

// errPanic оборачивает панику, возникшую при обработке элемента.
var errPanic = errors.New("паника при обработке элемента")

// BatchOption — функциональная опция для настройки BatchService.
type BatchOption func(*BatchService)

// WithRegion устанавливает регион, подставляемый во все запросы пакета.
func WithRegion(region string) BatchOption {
	return func(s *BatchService) {
		if region != "" {
			s.region = region
		}
	}
}

// WithThrottle устанавливает ограничитель между элементами пакета.
func WithThrottle(t ports.Throttle) BatchOption {
	return func(s *BatchService) {
		if t != nil {
			s.throttle = t
		}
	}
}

// WithProgress устанавливает получателя событий прогресса.
func WithProgress(p ports.ProgressPublisher) BatchOption {
	return func(s *BatchService) {
		if p != nil {
			s.progress = p
		}
	}
}

// WithRecorder устанавливает сборщик метрик.
func WithRecorder(r ports.BatchRecorder) BatchOption {
	return func(s *BatchService) {
		if r != nil {
			s.recorder = r
		}
	}
}

// WithLogger устанавливает логгер для сервиса.
func WithLogger(l *slog.Logger) BatchOption {
	return func(s *BatchService) {
		if l != nil {
			s.log = l
		}
	}
}

// BatchService последовательно проверяет список ИНН в одной сессии реестра.
// Ошибка по одному ИНН записывается в его результат и не прерывает пакет.
// Пакет прерывается только отменой контекста или непригодностью сессии.
type BatchService struct {
	sessions ports.SessionManager
	region   string
	throttle ports.Throttle
	progress ports.ProgressPublisher
	recorder ports.BatchRecorder
	log      *slog.Logger
}

// NewBatchService создает BatchService. По умолчанию используется регион
// domain.DefaultRegion и пауза в одну секунду между элементами.
func NewBatchService(sessions ports.SessionManager, opts ...BatchOption) *BatchService {
	s := &BatchService{
		sessions: sessions,
		region:   domain.DefaultRegion,
		throttle: throttle.NewFixedDelay(throttle.DefaultItemDelay),
		progress: nopPublisher{},
		recorder: nopRecorder{},
		log:      slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// RunBatch обрабатывает идентификаторы строго по порядку.
// Для каждого обработанного идентификатора в результат добавляется ровно один
// ItemOutcome и публикуется ровно одно событие прогресса.
func (s *BatchService) RunBatch(ctx context.Context, batchID string, identifiers []string) (result domain.BatchResult) {
	start := time.Now()
	log := s.log.With("batch_id", batchID)
	result.Outcomes = make([]domain.ItemOutcome, 0, len(identifiers))

	defer func() {
		s.recorder.ObserveBatch(result, time.Since(start))
	}()

	lease, err := s.sessions.Acquire(ctx)
	if err != nil {
		log.ErrorContext(ctx, "Failed to acquire registry session", "error", err)
		result.FatalError = err.Error()
		result.FatalKind = domain.ErrorKindFatal
		if errors.Is(err, domain.ErrSessionBusy) {
			result.FatalKind = domain.ErrorKindBusy
		}
		return result
	}
	defer lease.Release()

	total := len(identifiers)
	log.InfoContext(ctx, "Starting batch", "total", total, "region", s.region)

	for i, raw := range identifiers {
		if ctx.Err() != nil {
			return s.cancelled(ctx, log, result)
		}

		outcome, err := s.processItem(ctx, lease, raw)
		if err != nil {
			if ctx.Err() != nil {
				return s.cancelled(ctx, log, result)
			}
			log.ErrorContext(ctx, "Batch aborted by fatal error", "position", i+1, "inn", strings.TrimSpace(raw), "error", err)
			result.FatalError = err.Error()
			result.FatalKind = domain.ErrorKindFatal
			return result
		}

		result.Outcomes = append(result.Outcomes, outcome)
		result.TotalProcessed++
		s.recorder.ObserveOutcome(outcome)

		position := i + 1
		s.progress.Publish(domain.ProgressEvent{
			BatchID:           batchID,
			Position:          position,
			Total:             total,
			CurrentIdentifier: outcome.Identifier,
			Percentage:        percentage(position, total),
		})
		log.DebugContext(ctx, "Item processed",
			"position", position, "inn", outcome.Identifier, "state", outcome.State, "records", len(outcome.Records))

		if err := s.throttle.Wait(ctx); err != nil {
			return s.cancelled(ctx, log, result)
		}
	}

	result.SucceededOverall = true
	log.InfoContext(ctx, "Batch finished", "processed", result.TotalProcessed, "elapsed", time.Since(start))
	return result
}

// processItem проверяет и запрашивает один идентификатор. Ошибка возвращается
// только для условий, прерывающих пакет.
func (s *BatchService) processItem(ctx context.Context, lease ports.Lease, raw string) (outcome domain.ItemOutcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", errPanic, r)
		}
	}()

	identifier := strings.TrimSpace(raw)
	if v := inn.Validate(identifier); !v.IsValid {
		return domain.NewValidationFailure(identifier, v.Message), nil
	}

	q := domain.SearchQuery{Kind: domain.ByINN, Text: identifier, Region: s.region}
	records, fetchErr := lease.Fetch(ctx, q)
	if fetchErr != nil {
		if domain.IsFatal(fetchErr) || ctx.Err() != nil {
			return domain.ItemOutcome{}, fetchErr
		}
		s.log.WarnContext(ctx, "Registry fetch failed", "inn", identifier, "error", fetchErr)
		return domain.NewFetchFailure(identifier, fetchErr.Error()), nil
	}

	return domain.NewFetchSuccess(identifier, records), nil
}

func (s *BatchService) cancelled(ctx context.Context, log *slog.Logger, result domain.BatchResult) domain.BatchResult {
	log.WarnContext(ctx, "Batch cancelled", "processed", result.TotalProcessed, "error", context.Cause(ctx))
	result.SucceededOverall = false
	result.FatalError = MsgCancelled
	result.FatalKind = domain.ErrorKindCancelled
	return result
}

func percentage(position, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(position) / float64(total) * 100))
}

type nopPublisher struct{}

func (nopPublisher) Publish(domain.ProgressEvent) {}

type nopRecorder struct{}

func (nopRecorder) ObserveOutcome(domain.ItemOutcome)                {}
func (nopRecorder) ObserveBatch(domain.BatchResult, time.Duration) {}
