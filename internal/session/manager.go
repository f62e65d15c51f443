// Package session управляет единственной сессией с реестром банкротств.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"bankrot-parser/internal/domain"
	"bankrot-parser/internal/ports"
)

// ErrBusy возвращается, когда сессия уже занята другим владельцем.
var ErrBusy = domain.ErrSessionBusy

// DefaultCloseTimeout — время, отведенное на закрытие сессии.
const DefaultCloseTimeout = 10 * time.Second

// Option — функциональная опция для настройки Manager.
type Option func(*Manager)

// WithLogger устанавливает логгер.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.log = l
		}
	}
}

// WithCloseTimeout устанавливает таймаут закрытия сессии.
func WithCloseTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.closeTimeout = d
		}
	}
}

// Manager выдает сессию не более чем одному владельцу одновременно.
// Каждое успешное Acquire открывает сессию через провайдер, а Release закрывает ее ровно один раз.
type Manager struct {
	provider     ports.SessionProvider
	log          *slog.Logger
	closeTimeout time.Duration

	mu   sync.Mutex
	busy bool

	acquired int
	released int
}

// NewManager создает Manager поверх провайдера сессий.
func NewManager(provider ports.SessionProvider, opts ...Option) *Manager {
	m := &Manager{
		provider:     provider,
		log:          slog.Default(),
		closeTimeout: DefaultCloseTimeout,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Acquire открывает сессию и закрепляет ее за вызывающим.
// Если сессия занята, сразу возвращается ErrBusy.
func (m *Manager) Acquire(ctx context.Context) (ports.Lease, error) {
	m.mu.Lock()
	if m.busy {
		m.mu.Unlock()
		return nil, ErrBusy
	}
	m.busy = true
	m.mu.Unlock()

	start := time.Now()
	s, err := m.provider.Open(ctx)
	if err != nil {
		m.setFree()
		m.log.ErrorContext(ctx, "Failed to open registry session", "error", err)
		return nil, fmt.Errorf("не удалось открыть сессию: %w", err)
	}

	m.mu.Lock()
	m.acquired++
	m.mu.Unlock()

	m.log.InfoContext(ctx, "Registry session acquired", "open_duration", time.Since(start))
	return &Lease{manager: m, session: s}, nil
}

// Busy сообщает, занята ли сессия.
func (m *Manager) Busy() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.busy
}

// Stats возвращает число выданных и возвращенных сессий.
func (m *Manager) Stats() (acquired, released int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.acquired, m.released
}

// WithSession выполняет fn с закрепленной сессией и возвращает ее при любом исходе.
func (m *Manager) WithSession(ctx context.Context, fn func(ports.Lease) error) error {
	lease, err := m.Acquire(ctx)
	if err != nil {
		return err
	}
	defer lease.Release()
	return fn(lease)
}

func (m *Manager) setFree() {
	m.mu.Lock()
	m.busy = false
	m.mu.Unlock()
}

func (m *Manager) release(s ports.Session) {
	// Закрываем без родительского контекста: он мог быть уже отменен.
	ctx, cancel := context.WithTimeout(context.Background(), m.closeTimeout)
	defer cancel()

	if err := s.Close(ctx); err != nil {
		m.log.Warn("Failed to close registry session", "error", err)
	}

	m.mu.Lock()
	m.released++
	m.busy = false
	m.mu.Unlock()

	m.log.Info("Registry session released")
}

// Lease — закрепленная за владельцем сессия.
type Lease struct {
	manager *Manager
	session ports.Session
	once    sync.Once
	mu      sync.Mutex
	done    bool
}

// Fetch выполняет запрос в закрепленной сессии.
func (l *Lease) Fetch(ctx context.Context, q domain.SearchQuery) ([]domain.CaseRecord, error) {
	l.mu.Lock()
	released := l.done
	l.mu.Unlock()
	if released {
		return nil, fmt.Errorf("сессия уже возвращена: %w", domain.ErrSessionUnusable)
	}
	return l.session.Fetch(ctx, q)
}

// Release возвращает сессию менеджеру. Повторные вызовы ничего не делают.
func (l *Lease) Release() {
	l.once.Do(func() {
		l.mu.Lock()
		l.done = true
		l.mu.Unlock()
		l.manager.release(l.session)
	})
}
