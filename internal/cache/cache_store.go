package cache

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"bankrot-parser/internal/domain"
)

// CacheItem представляет кэшированный результат поиска
type CacheItem struct {
	Data      domain.SearchResult
	ExpiresAt time.Time
}

// CacheStore управляет хранением и извлечением кэшированных результатов поиска.
// Ключ - domain.SearchQuery.CacheKey().
type CacheStore struct {
	cache map[string]*CacheItem
	mutex sync.RWMutex
	ttl   time.Duration
	clock clockwork.Clock
}

// Option настраивает CacheStore.
type Option func(*CacheStore)

// WithClock подменяет источник времени.
func WithClock(clock clockwork.Clock) Option {
	return func(cs *CacheStore) {
		cs.clock = clock
	}
}

// NewCacheStore создает новый экземпляр CacheStore со сроком хранения ttl
func NewCacheStore(ttl time.Duration, opts ...Option) *CacheStore {
	cs := &CacheStore{
		cache: make(map[string]*CacheItem),
		ttl:   ttl,
		clock: clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(cs)
	}
	return cs
}

// Get извлекает кэшированный результат для запроса
func (cs *CacheStore) Get(q domain.SearchQuery) (*CacheItem, bool) {
	cs.mutex.RLock()
	defer cs.mutex.RUnlock()

	item, exists := cs.cache[q.CacheKey()]
	if !exists || cs.clock.Now().After(item.ExpiresAt) {
		// Элемент не существует или срок его действия истек
		return nil, false
	}

	return item, true
}

// Put сохраняет результат поиска. Неуспешные результаты не кэшируются.
func (cs *CacheStore) Put(q domain.SearchQuery, data domain.SearchResult) {
	if !data.Success || cs.ttl <= 0 {
		return
	}

	cs.mutex.Lock()
	defer cs.mutex.Unlock()

	cs.cache[q.CacheKey()] = &CacheItem{
		Data:      data,
		ExpiresAt: cs.clock.Now().Add(cs.ttl),
	}
}

// Len возвращает количество элементов, включая просроченные, но еще не удаленные
func (cs *CacheStore) Len() int {
	cs.mutex.RLock()
	defer cs.mutex.RUnlock()
	return len(cs.cache)
}

// CleanupExpired удаляет просроченные элементы из кэша
func (cs *CacheStore) CleanupExpired() {
	cs.mutex.Lock()
	defer cs.mutex.Unlock()

	now := cs.clock.Now()
	for key, item := range cs.cache {
		if now.After(item.ExpiresAt) {
			delete(cs.cache, key)
		}
	}
}

// StartCleanupTicker запускает таймер для периодической очистки просроченных элементов
func (cs *CacheStore) StartCleanupTicker(ctx context.Context, interval time.Duration) {
	ticker := cs.clock.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.Chan():
				cs.CleanupExpired()
			}
		}
	}()
}
