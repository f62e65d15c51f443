package router

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bankrot-parser/internal/domain"
	"bankrot-parser/internal/ports"
)

// mockRenderer — мок-реализация ports.Renderer.
type mockRenderer struct {
	id string

	mu        sync.RWMutex
	healthErr error
	openErr   error
	opened    atomic.Int32
}

func newMockRenderer(id string, healthy bool) *mockRenderer {
	m := &mockRenderer{id: id}
	m.setHealthy(healthy)
	return m
}

func (m *mockRenderer) ID() string { return m.id }

func (m *mockRenderer) Health(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.healthErr
}

func (m *mockRenderer) Open(ctx context.Context) (ports.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	m.opened.Add(1)
	if m.openErr != nil {
		return nil, m.openErr
	}
	return &stubSession{renderer: m.id}, nil
}

func (m *mockRenderer) setHealthy(healthy bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if healthy {
		m.healthErr = nil
		m.openErr = nil
	} else {
		m.healthErr = errors.New("renderer is down")
		m.openErr = errors.New("connection refused")
	}
}

type stubSession struct {
	renderer string
}

func (s *stubSession) Fetch(ctx context.Context, q domain.SearchQuery) ([]domain.CaseRecord, error) {
	return nil, nil
}

func (s *stubSession) Close(ctx context.Context) error { return nil }

func newTestRouter(t *testing.T, clock clockwork.Clock, renderers ...ports.Renderer) *Router {
	t.Helper()
	r, err := NewRouter(renderers,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithClock(clock),
		WithHealthCheckInterval(time.Second))
	require.NoError(t, err)
	t.Cleanup(r.Stop)
	return r
}

func TestRoundRobinStrategy(t *testing.T) {
	renderers := []ports.Renderer{
		newMockRenderer("renderer-1", true),
		newMockRenderer("renderer-2", true),
		newMockRenderer("renderer-3", true),
	}
	strategy := NewRoundRobinStrategy()

	for _, want := range []string{"renderer-1", "renderer-2", "renderer-3", "renderer-1"} {
		r, err := strategy.Next(renderers)
		require.NoError(t, err)
		require.Equal(t, want, r.ID())
	}

	_, err := strategy.Next(nil)
	require.ErrorIs(t, err, ErrNoHealthyRenderers)
}

func TestNewRouter_NoRenderers(t *testing.T) {
	_, err := NewRouter(nil)
	assert.ErrorIs(t, err, ErrNoRenderers)
}

func TestRouter_OpenRoundRobin(t *testing.T) {
	r1 := newMockRenderer("renderer-1", true)
	r2 := newMockRenderer("renderer-2", true)
	r := newTestRouter(t, clockwork.NewFakeClock(), r1, r2)

	for _, want := range []string{"renderer-1", "renderer-2", "renderer-1"} {
		s, err := r.Open(context.Background())
		require.NoError(t, err)
		assert.Equal(t, want, s.(*stubSession).renderer)
	}
}

func TestRouter_OpenFailover(t *testing.T) {
	down := newMockRenderer("renderer-1", false)
	up := newMockRenderer("renderer-2", true)
	r := newTestRouter(t, clockwork.NewFakeClock(), down, up)

	s, err := r.Open(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "renderer-2", s.(*stubSession).renderer)
	assert.Equal(t, 1, r.Healthy())

	// Недоступный экземпляр больше не выбирается.
	_, err = r.Open(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), down.opened.Load())
}

func TestRouter_OpenFailsWhenAllDown(t *testing.T) {
	r := newTestRouter(t, clockwork.NewFakeClock(),
		newMockRenderer("renderer-1", false),
		newMockRenderer("renderer-2", false))

	_, err := r.Open(context.Background())
	require.ErrorIs(t, err, ErrNoHealthyRenderers)
	assert.ErrorContains(t, err, "connection refused")
	assert.Equal(t, 0, r.Healthy())
}

func TestRouter_OpenErrorWithPassingHealthCheck(t *testing.T) {
	flaky := newMockRenderer("renderer-1", true)
	flaky.openErr = errors.New("captcha")
	r := newTestRouter(t, clockwork.NewFakeClock(), flaky)

	_, err := r.Open(context.Background())
	require.ErrorIs(t, err, ErrNoHealthyRenderers)
	assert.Equal(t, 1, r.Healthy(), "экземпляр с рабочей проверкой остается в пуле")
}

func TestRouter_HealthCheckRecovers(t *testing.T) {
	clock := clockwork.NewFakeClock()
	down := newMockRenderer("renderer-1", false)
	r := newTestRouter(t, clock, down, newMockRenderer("renderer-2", true))

	_, err := r.Open(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, r.Healthy())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r.Start(ctx)

	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(time.Second)
	assert.Never(t, func() bool { return r.Healthy() == 2 }, 50*time.Millisecond, 5*time.Millisecond)

	down.setHealthy(true)
	clock.Advance(time.Second)
	assert.Eventually(t, func() bool { return r.Healthy() == 2 }, time.Second, 5*time.Millisecond)
}
