// Package router распределяет открытие сессий между несколькими экземплярами
// сервиса рендеринга и выводит из работы недоступные.
package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"bankrot-parser/internal/ports"
)

var (
	// ErrNoHealthyRenderers возвращается, когда в пуле нет доступных экземпляров.
	ErrNoHealthyRenderers = errors.New("нет доступных экземпляров сервиса рендеринга")
	// ErrNoRenderers возвращается при создании роутера без экземпляров.
	ErrNoRenderers = errors.New("не задан ни один экземпляр сервиса рендеринга")
)

// DefaultHealthCheckInterval — период проверки недоступных экземпляров.
const DefaultHealthCheckInterval = 30 * time.Second

// Option определяет функциональную опцию для конфигурации роутера.
type Option func(*Router)

// WithHealthCheckInterval — опция для установки интервала проверки работоспособности.
func WithHealthCheckInterval(d time.Duration) Option {
	return func(r *Router) {
		if d > 0 {
			r.healthCheckInterval = d
		}
	}
}

// WithStrategy — опция для установки стратегии выбора экземпляра.
func WithStrategy(s ports.Strategy) Option {
	return func(r *Router) {
		if s != nil {
			r.strategy = s
		}
	}
}

// WithLogger — опция для установки логгера.
func WithLogger(l *slog.Logger) Option {
	return func(r *Router) {
		if l != nil {
			r.log = l
		}
	}
}

// WithClock подменяет часы фоновой проверки.
func WithClock(c clockwork.Clock) Option {
	return func(r *Router) {
		if c != nil {
			r.clock = c
		}
	}
}

// Router реализует ports.SessionProvider поверх пула экземпляров сервиса рендеринга.
// Сессия открывается на следующем доступном экземпляре. Экземпляр, на котором
// открытие не удалось и который не прошел проверку, исключается из выбора, пока
// фоновая проверка не вернет его обратно.
type Router struct {
	mu        sync.RWMutex
	order     []ports.Renderer
	unhealthy map[string]bool
	strategy  ports.Strategy
	log       *slog.Logger
	clock     clockwork.Clock

	healthCheckInterval time.Duration
	done                chan struct{}
	stopOnce            sync.Once
	wg                  sync.WaitGroup
}

// NewRouter создает роутер. Все экземпляры изначально считаются доступными.
func NewRouter(renderers []ports.Renderer, opts ...Option) (*Router, error) {
	if len(renderers) == 0 {
		return nil, ErrNoRenderers
	}

	r := &Router{
		order:               append([]ports.Renderer(nil), renderers...),
		unhealthy:           make(map[string]bool),
		strategy:            NewRoundRobinStrategy(),
		healthCheckInterval: DefaultHealthCheckInterval,
		done:                make(chan struct{}),
		log:                 slog.Default().With("component", "router"),
		clock:               clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Start запускает фоновую проверку недоступных экземпляров до отмены ctx или вызова Stop.
func (r *Router) Start(ctx context.Context) {
	r.wg.Add(1)
	go r.healthCheckLoop(ctx)
}

// Stop останавливает фоновую проверку.
func (r *Router) Stop() {
	r.stopOnce.Do(func() { close(r.done) })
	r.wg.Wait()
}

// Healthy возвращает число доступных экземпляров.
func (r *Router) Healthy() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order) - len(r.unhealthy)
}

// Open открывает сессию на одном из доступных экземпляров, переходя к следующему
// при ошибке. Каждый экземпляр пробуется не более одного раза.
func (r *Router) Open(ctx context.Context) (ports.Session, error) {
	tried := make(map[string]bool)
	var lastErr error

	for {
		candidates := r.candidates(tried)
		renderer, err := r.strategy.Next(candidates)
		if err != nil {
			if lastErr != nil {
				return nil, fmt.Errorf("%w: %w", ErrNoHealthyRenderers, lastErr)
			}
			return nil, err
		}

		r.log.DebugContext(ctx, "Renderer selected by strategy", "renderer", renderer.ID())
		s, err := renderer.Open(ctx)
		if err == nil {
			return s, nil
		}
		if ctx.Err() != nil {
			return nil, err
		}

		r.log.WarnContext(ctx, "Failed to open session on renderer", "renderer", renderer.ID(), "error", err)
		tried[renderer.ID()] = true
		lastErr = err
		r.forceHealthCheck(ctx, renderer)
	}
}

func (r *Router) candidates(exclude map[string]bool) []ports.Renderer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ports.Renderer, 0, len(r.order))
	for _, rnd := range r.order {
		if !r.unhealthy[rnd.ID()] && !exclude[rnd.ID()] {
			out = append(out, rnd)
		}
	}
	return out
}

func (r *Router) healthCheckLoop(ctx context.Context) {
	defer r.wg.Done()
	ticker := r.clock.NewTicker(r.healthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.Chan():
			r.checkUnhealthy(ctx)
		case <-ctx.Done():
			return
		case <-r.done:
			return
		}
	}
}

// checkUnhealthy возвращает в пул восстановившиеся экземпляры.
func (r *Router) checkUnhealthy(ctx context.Context) {
	r.mu.RLock()
	var toCheck []ports.Renderer
	for _, rnd := range r.order {
		if r.unhealthy[rnd.ID()] {
			toCheck = append(toCheck, rnd)
		}
	}
	r.mu.RUnlock()

	for _, rnd := range toCheck {
		if err := rnd.Health(ctx); err != nil {
			r.log.Debug("Renderer remains unhealthy", "renderer", rnd.ID(), "reason", err)
			continue
		}
		r.setHealthy(rnd.ID(), true)
	}
}

// forceHealthCheck исключает экземпляр из выбора, если он не прошел проверку.
func (r *Router) forceHealthCheck(ctx context.Context, rnd ports.Renderer) {
	if err := rnd.Health(ctx); err != nil {
		r.log.Warn("Renderer failed health check, moving to unhealthy pool", "renderer", rnd.ID(), "reason", err)
		r.setHealthy(rnd.ID(), false)
	}
}

func (r *Router) setHealthy(id string, healthy bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if healthy == !r.unhealthy[id] {
		return
	}
	if healthy {
		delete(r.unhealthy, id)
	} else {
		r.unhealthy[id] = true
	}
	r.log.Info("Renderer pool changed", "renderer", id, "healthy", healthy, "healthy_count", len(r.order)-len(r.unhealthy))
}
