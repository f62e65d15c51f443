package progress

import (
	"sync/atomic"

	"bankrot-parser/internal/domain"
)

// Snapshot хранит последнее событие прогресса в процессе.
// Значение общее для всех пакетов: побеждает последняя запись.
// До первого события возвращается нулевое значение.
type Snapshot struct {
	v atomic.Pointer[domain.ProgressEvent]
}

// NewSnapshot создает Snapshot с нулевым значением.
func NewSnapshot() *Snapshot {
	s := &Snapshot{}
	s.v.Store(&domain.ProgressEvent{})
	return s
}

// Store атомарно заменяет текущее значение.
func (s *Snapshot) Store(event domain.ProgressEvent) {
	s.v.Store(&event)
}

// Load возвращает копию текущего значения.
func (s *Snapshot) Load() domain.ProgressEvent {
	return *s.v.Load()
}

// Reset возвращает нулевое значение.
func (s *Snapshot) Reset() {
	s.v.Store(&domain.ProgressEvent{})
}

// Attach подписывает Snapshot на события брокера.
func (s *Snapshot) Attach(b *Broker) (unsubscribe func()) {
	return b.Subscribe(s.Store)
}
