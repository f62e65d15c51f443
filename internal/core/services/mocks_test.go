package services

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"bankrot-parser/internal/domain"
	"bankrot-parser/internal/ports"
)

// mockSessions — мок для интерфейса ports.SessionManager.
type mockSessions struct {
	mock.Mock
}

func (m *mockSessions) Acquire(ctx context.Context) (ports.Lease, error) {
	args := m.Called(ctx)
	if l := args.Get(0); l != nil {
		return l.(ports.Lease), args.Error(1)
	}
	return nil, args.Error(1)
}

// mockLease — мок для интерфейса ports.Lease.
type mockLease struct {
	mock.Mock
}

func (m *mockLease) Fetch(ctx context.Context, q domain.SearchQuery) ([]domain.CaseRecord, error) {
	args := m.Called(ctx, q)
	if res := args.Get(0); res != nil {
		return res.([]domain.CaseRecord), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockLease) Release() {
	m.Called()
}

// recordingPublisher синхронно сохраняет опубликованные события.
type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.ProgressEvent
}

func (p *recordingPublisher) Publish(e domain.ProgressEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

func (p *recordingPublisher) Events() []domain.ProgressEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.ProgressEvent(nil), p.events...)
}

// countingThrottle считает вызовы и может вызвать действие на n-м вызове.
type countingThrottle struct {
	calls  int
	onCall func(n int)
}

func (t *countingThrottle) Wait(ctx context.Context) error {
	t.calls++
	if t.onCall != nil {
		t.onCall(t.calls)
	}
	return ctx.Err()
}

// mockRecorder — мок для интерфейса ports.BatchRecorder.
type mockRecorder struct {
	mock.Mock
}

func (m *mockRecorder) ObserveOutcome(o domain.ItemOutcome) {
	m.Called(o)
}

func (m *mockRecorder) ObserveBatch(r domain.BatchResult, elapsed time.Duration) {
	m.Called(r, elapsed)
}
