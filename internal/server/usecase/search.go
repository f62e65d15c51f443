package usecase

import (
	"context"
	"log/slog"
	"strings"

	"bankrot-parser/internal/cache"
	"bankrot-parser/internal/domain"
	"bankrot-parser/internal/ports"
)

// SearchRecorder учитывает одиночные запросы в метриках.
type SearchRecorder interface {
	ObserveSearch(kind domain.QueryKind, result domain.SearchResult, cached bool)
}

// SearchUseCase выполняет одиночный поиск с кэшированием успешных ответов.
type SearchUseCase struct {
	searcher   ports.SearchService
	cacheStore *cache.CacheStore
	recorder   SearchRecorder
	region     string
	log        *slog.Logger
}

// NewSearchUseCase создает новый экземпляр SearchUseCase. recorder может быть nil.
func NewSearchUseCase(searcher ports.SearchService, cacheStore *cache.CacheStore, recorder SearchRecorder, region string, log *slog.Logger) *SearchUseCase {
	if log == nil {
		log = slog.Default()
	}
	if region == "" {
		region = domain.DefaultRegion
	}
	return &SearchUseCase{
		searcher:   searcher,
		cacheStore: cacheStore,
		recorder:   recorder,
		region:     region,
		log:        log,
	}
}

// Search возвращает результат поиска и признак попадания в кэш.
func (uc *SearchUseCase) Search(ctx context.Context, q domain.SearchQuery) (domain.SearchResult, bool, error) {
	q.Text = strings.TrimSpace(q.Text)
	if q.Region == "" {
		q.Region = uc.region
	}

	if item, found := uc.cacheStore.Get(q); found {
		uc.log.InfoContext(ctx, "Попадание в кеш для запроса", "type", q.Kind, "query", q.Text)
		uc.observe(q.Kind, item.Data, true)
		return item.Data, true, nil
	}

	result, err := uc.searcher.Search(ctx, q)
	if err != nil {
		return domain.SearchResult{}, false, err
	}

	uc.cacheStore.Put(q, result)
	uc.observe(q.Kind, result, false)
	return result, false, nil
}

func (uc *SearchUseCase) observe(kind domain.QueryKind, result domain.SearchResult, cached bool) {
	if uc.recorder != nil {
		uc.recorder.ObserveSearch(kind, result, cached)
	}
}
