// Package progress доставляет события прогресса пакетной обработки подписчикам.
package progress

import (
	"log/slog"
	"sync"

	"bankrot-parser/internal/domain"
)

// DefaultQueueSize — размер очереди одного подписчика по умолчанию.
const DefaultQueueSize = 64

// Handler обрабатывает одно событие прогресса.
type Handler func(domain.ProgressEvent)

// Option — функциональная опция для настройки Broker.
type Option func(*Broker)

// WithQueueSize устанавливает размер очереди каждого подписчика.
func WithQueueSize(n int) Option {
	return func(b *Broker) {
		if n > 0 {
			b.queueSize = n
		}
	}
}

// WithLogger устанавливает логгер для брокера.
func WithLogger(l *slog.Logger) Option {
	return func(b *Broker) {
		if l != nil {
			b.log = l
		}
	}
}

type subscriber struct {
	id      uint64
	handler Handler
	queue   chan domain.ProgressEvent
	done    chan struct{}
}

// Broker рассылает события всем текущим подписчикам.
// У каждого подписчика своя очередь и своя горутина доставки: порядок событий
// для одного подписчика сохраняется, а медленный подписчик теряет события
// и не задерживает публикацию. Поздние подписчики прошлых событий не получают.
type Broker struct {
	mu        sync.RWMutex
	subs      map[uint64]*subscriber
	nextID    uint64
	closed    bool
	queueSize int
	log       *slog.Logger
	wg        sync.WaitGroup
}

// NewBroker создает новый Broker.
func NewBroker(opts ...Option) *Broker {
	b := &Broker{
		subs:      make(map[uint64]*subscriber),
		queueSize: DefaultQueueSize,
		log:       slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Publish отправляет событие всем подписчикам. Никогда не блокируется.
func (b *Broker) Publish(event domain.ProgressEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}
	for _, s := range b.subs {
		select {
		case s.queue <- event:
		default:
			b.log.Warn("Progress subscriber queue is full, dropping event",
				"subscriber_id", s.id, "position", event.Position, "batch_id", event.BatchID)
		}
	}
}

// Subscribe регистрирует обработчик и возвращает функцию отписки.
// Функцию отписки можно вызывать несколько раз.
func (b *Broker) Subscribe(handler Handler) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return func() {}
	}

	b.nextID++
	s := &subscriber{
		id:      b.nextID,
		handler: handler,
		queue:   make(chan domain.ProgressEvent, b.queueSize),
		done:    make(chan struct{}),
	}
	b.subs[s.id] = s

	b.wg.Add(1)
	go b.deliver(s)

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(s.id) })
	}
}

// Subscribers возвращает число текущих подписчиков.
func (b *Broker) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close отписывает всех подписчиков и дожидается завершения их горутин.
// После Close публикация ничего не делает.
func (b *Broker) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	for id, s := range b.subs {
		close(s.done)
		delete(b.subs, id)
	}
	b.mu.Unlock()

	b.wg.Wait()
}

func (b *Broker) remove(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if s, ok := b.subs[id]; ok {
		close(s.done)
		delete(b.subs, id)
	}
}

func (b *Broker) deliver(s *subscriber) {
	defer b.wg.Done()
	for {
		select {
		case <-s.done:
			return
		case event := <-s.queue:
			b.invoke(s, event)
		}
	}
}

// invoke вызывает обработчик, перехватывая панику.
func (b *Broker) invoke(s *subscriber, event domain.ProgressEvent) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("Progress subscriber panicked", "subscriber_id", s.id, "panic", r)
		}
	}()
	s.handler(event)
}
