package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"bankrot-parser/internal/domain"
	"bankrot-parser/internal/inn"
	"bankrot-parser/internal/ports"
)

// ErrInvalidQuery — параметры поискового запроса некорректны.
var ErrInvalidQuery = errors.New("некорректный поисковый запрос")

// MinQueryLength — минимальная длина поисковой строки в символах.
const MinQueryLength = 3

// ValidateQuery проверяет параметры одиночного запроса.
func ValidateQuery(q domain.SearchQuery) error {
	text := strings.TrimSpace(q.Text)
	if text == "" {
		return fmt.Errorf("%w: поисковый запрос не может быть пустым", ErrInvalidQuery)
	}
	if !q.Kind.Valid() {
		return fmt.Errorf("%w: неизвестный тип поиска %q", ErrInvalidQuery, q.Kind)
	}
	if q.Kind == domain.ByINN {
		if v := inn.Validate(text); !v.IsValid {
			return fmt.Errorf("%w: %s", ErrInvalidQuery, v.Message)
		}
	}
	if utf8.RuneCountInString(text) < MinQueryLength {
		return fmt.Errorf("%w: Поисковый запрос должен содержать минимум %d символа", ErrInvalidQuery, MinQueryLength)
	}
	return nil
}

// SearchOption — функциональная опция для настройки RegistrySearchService.
type SearchOption func(*RegistrySearchService)

// WithSearchLogger устанавливает логгер для сервиса поиска.
func WithSearchLogger(l *slog.Logger) SearchOption {
	return func(s *RegistrySearchService) {
		if l != nil {
			s.log = l
		}
	}
}

// WithDefaultRegion устанавливает регион для запросов без региона.
func WithDefaultRegion(region string) SearchOption {
	return func(s *RegistrySearchService) {
		if region != "" {
			s.region = region
		}
	}
}

// RegistrySearchService выполняет одиночные запросы к реестру.
// Запрос занимает ту же сессию, что и пакетная обработка.
type RegistrySearchService struct {
	sessions ports.SessionManager
	region   string
	log      *slog.Logger
}

// NewSearchService создает RegistrySearchService.
func NewSearchService(sessions ports.SessionManager, opts ...SearchOption) *RegistrySearchService {
	s := &RegistrySearchService{
		sessions: sessions,
		region:   domain.DefaultRegion,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Search выполняет один запрос. Ошибка реестра по запросу возвращается
// в SearchResult, а ошибка проверки параметров или занятости сессии в error.
func (s *RegistrySearchService) Search(ctx context.Context, q domain.SearchQuery) (domain.SearchResult, error) {
	if err := ValidateQuery(q); err != nil {
		return domain.SearchResult{}, err
	}
	q.Text = strings.TrimSpace(q.Text)
	if q.Region == "" {
		q.Region = s.region
	}

	lease, err := s.sessions.Acquire(ctx)
	if err != nil {
		return domain.SearchResult{}, err
	}
	defer lease.Release()

	s.log.InfoContext(ctx, "Searching registry", "type", q.Kind, "query", q.Text, "region", q.Region)
	records, err := lease.Fetch(ctx, q)
	if err != nil {
		s.log.WarnContext(ctx, "Registry search failed", "type", q.Kind, "query", q.Text, "error", err)
		return domain.SearchResult{Records: []domain.CaseRecord{}, Error: err.Error()}, nil
	}

	if records == nil {
		records = []domain.CaseRecord{}
	}
	return domain.SearchResult{Success: true, Records: records, TotalFound: len(records)}, nil
}
