package router

import (
	"sync/atomic"

	"bankrot-parser/internal/ports"
)

// RoundRobinStrategy выбирает экземпляры по кругу.
type RoundRobinStrategy struct {
	currentIndex uint32
}

// NewRoundRobinStrategy создает новую Round Robin стратегию.
func NewRoundRobinStrategy() *RoundRobinStrategy {
	return &RoundRobinStrategy{}
}

// Next возвращает следующий экземпляр из списка.
func (s *RoundRobinStrategy) Next(renderers []ports.Renderer) (ports.Renderer, error) {
	if len(renderers) == 0 {
		return nil, ErrNoHealthyRenderers
	}
	idx := atomic.AddUint32(&s.currentIndex, 1) - 1
	return renderers[idx%uint32(len(renderers))], nil
}
