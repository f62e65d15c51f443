// Package throttle ограничивает частоту запросов к реестру.
package throttle

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"bankrot-parser/internal/ports"
)

// Виды ограничителей, выбираемые конфигурацией.
const (
	KindFixed       = "fixed"
	KindTokenBucket = "token_bucket"
)

// DefaultItemDelay — пауза между элементами пакета по умолчанию.
const DefaultItemDelay = time.Second

// FixedDelay приостанавливает вызывающую горутину на фиксированное время.
// Остальные горутины процесса при этом продолжают работу.
type FixedDelay struct {
	delay time.Duration
	clock clockwork.Clock
}

// Option — функциональная опция для настройки ограничителей.
type Option func(*options)

type options struct {
	clock clockwork.Clock
}

// WithClock подменяет часы, по которым отсчитываются паузы.
func WithClock(c clockwork.Clock) Option {
	return func(o *options) {
		if c != nil {
			o.clock = c
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{clock: clockwork.NewRealClock()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// NewFixedDelay создает ограничитель с фиксированной паузой.
// Неположительная пауза превращает Wait в проверку контекста.
func NewFixedDelay(delay time.Duration, opts ...Option) *FixedDelay {
	o := buildOptions(opts)
	return &FixedDelay{delay: delay, clock: o.clock}
}

// Delay возвращает настроенную паузу.
func (f *FixedDelay) Delay() time.Duration {
	return f.delay
}

// Wait ждет заданное время или отмены контекста.
func (f *FixedDelay) Wait(ctx context.Context) error {
	if f.delay <= 0 {
		return ctx.Err()
	}

	timer := f.clock.NewTimer(f.delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.Chan():
		return nil
	}
}

// TokenBucket пропускает не более rps запросов в секунду в среднем,
// допуская короткие всплески до емкости корзины.
type TokenBucket struct {
	mu           sync.Mutex
	clock        clockwork.Clock
	capacity     float64
	tokens       float64
	refillPerSec float64
	last         time.Time
}

// NewTokenBucket создает корзину с емкостью max(1, burst).
func NewTokenBucket(rps float64, burst int, opts ...Option) *TokenBucket {
	if rps <= 0 {
		rps = 1
	}
	o := buildOptions(opts)
	capacity := math.Max(1, float64(burst))
	return &TokenBucket{
		clock:        o.clock,
		capacity:     capacity,
		tokens:       capacity,
		refillPerSec: rps,
		last:         o.clock.Now(),
	}
}

// Wait забирает один токен, при необходимости дожидаясь пополнения корзины.
func (b *TokenBucket) Wait(ctx context.Context) error {
	for {
		b.mu.Lock()
		now := b.clock.Now()
		if elapsed := now.Sub(b.last).Seconds(); elapsed > 0 {
			b.tokens = math.Min(b.capacity, b.tokens+elapsed*b.refillPerSec)
			b.last = now
		}
		if b.tokens >= 1 {
			b.tokens--
			b.mu.Unlock()
			return nil
		}
		toNext := time.Duration((1 - b.tokens) / b.refillPerSec * float64(time.Second))
		b.mu.Unlock()

		timer := b.clock.NewTimer(toNext)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.Chan():
		}
	}
}

// Settings описывает ограничитель, собираемый New.
type Settings struct {
	Kind  string
	Delay time.Duration
	RPS   float64
	Burst int
}

// New создает ограничитель по настройкам. Пустой Kind означает фиксированную паузу.
func New(s Settings, opts ...Option) (ports.Throttle, error) {
	switch s.Kind {
	case "", KindFixed:
		return NewFixedDelay(s.Delay, opts...), nil
	case KindTokenBucket:
		return NewTokenBucket(s.RPS, s.Burst, opts...), nil
	default:
		return nil, fmt.Errorf("неизвестный вид ограничителя %q", s.Kind)
	}
}

// Noop никогда не ждет.
type Noop struct{}

// Wait возвращает ошибку только если контекст уже отменен.
func (Noop) Wait(ctx context.Context) error {
	return ctx.Err()
}
