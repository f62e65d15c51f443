package browser

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bankrot-parser/internal/domain"
)

// fakeRenderer имитирует сервис рендеринга.
type fakeRenderer struct {
	t        *testing.T
	pages    []searchResponse
	status   int
	requests []searchRequest
	closed   []string
	authSeen string
}

func (f *fakeRenderer) handler() http.Handler {
	r := chi.NewRouter()
	r.Post("/sessions", func(w http.ResponseWriter, r *http.Request) {
		f.authSeen = r.Header.Get("Authorization")
		var req openRequest
		require.NoError(f.t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(f.t, DefaultStartURL, req.StartURL)
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(openResponse{SessionID: "s-1"})
	})
	r.Post("/sessions/{id}/search", func(w http.ResponseWriter, r *http.Request) {
		if f.status != 0 {
			w.WriteHeader(f.status)
			return
		}
		var req searchRequest
		require.NoError(f.t, json.NewDecoder(r.Body).Decode(&req))
		f.requests = append(f.requests, req)
		page := f.pages[len(f.requests)-1]
		_ = json.NewEncoder(w).Encode(page)
	})
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Delete("/sessions/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.closed = append(f.closed, chi.URLParam(r, "id"))
		w.WriteHeader(http.StatusNoContent)
	})
	return r
}

func newTestProvider(t *testing.T, f *fakeRenderer) (*Provider, clockwork.Clock) {
	t.Helper()
	srv := httptest.NewServer(f.handler())
	t.Cleanup(srv.Close)

	clock := clockwork.NewFakeClockAt(time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC))
	p := NewProvider(Config{BaseURL: srv.URL + "/", APIKey: "secret"},
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithClock(clock),
	)
	return p, clock
}

func TestSession_FetchWithPagination(t *testing.T) {
	f := &fakeRenderer{t: t, pages: []searchResponse{
		{Success: true, NextPageToken: "p2", Cards: []Card{{
			Text:   "Дело № А40-12345/2023 ИНН 7707083893 введена процедура наблюдение",
			Name:   "ПАО Сбербанк",
			Status: "",
		}}},
		{Success: true, Cards: []Card{{
			Text:       "А41-1/2024 конкурсное производство",
			LastUpdate: "01.02.2024",
			Court:      "Арбитражный суд Московской области",
		}}},
	}}
	p, _ := newTestProvider(t, f)

	s, err := p.Open(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer secret", f.authSeen)

	q := domain.SearchQuery{Kind: domain.ByINN, Text: "7707083893", Region: domain.DefaultRegion}
	records, err := s.Fetch(context.Background(), q)
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "А40-12345/2023", records[0].CaseNumber)
	assert.Equal(t, "ПАО Сбербанк", records[0].DebtorName)
	assert.Equal(t, "7707083893", records[0].INN)
	assert.Equal(t, "Наблюдение", records[0].Status)
	assert.Equal(t, DefaultCourt, records[0].Court)
	assert.Equal(t, "15.03.2024", records[0].LastUpdate)
	assert.Equal(t, domain.DefaultRegion, records[0].Region)

	assert.Equal(t, "7707083893", records[1].DebtorName)
	assert.Equal(t, "Конкурсное производство", records[1].Status)
	assert.Equal(t, "01.02.2024", records[1].LastUpdate)
	assert.Equal(t, "Арбитражный суд Московской области", records[1].Court)

	require.Len(t, f.requests, 2)
	assert.Equal(t, "inn", f.requests[0].Type)
	assert.Empty(t, f.requests[0].PageToken)
	assert.Equal(t, "p2", f.requests[1].PageToken)

	require.NoError(t, s.Close(context.Background()))
	assert.Equal(t, []string{"s-1"}, f.closed)
}

func TestSession_FetchEmpty(t *testing.T) {
	f := &fakeRenderer{t: t, pages: []searchResponse{{Success: true}}}
	p, _ := newTestProvider(t, f)

	s, err := p.Open(context.Background())
	require.NoError(t, err)

	records, err := s.Fetch(context.Background(), domain.SearchQuery{Kind: domain.ByDebtorName, Text: "Ромашка"})
	require.NoError(t, err)
	assert.NotNil(t, records)
	assert.Empty(t, records)
}

func TestSession_FetchErrors(t *testing.T) {
	tests := []struct {
		name     string
		page     searchResponse
		status   int
		sentinel error
		fatal    bool
	}{
		{"blocked", searchResponse{ErrorCode: codeBlocked, Error: "403"}, 0, domain.ErrAccessBlocked, false},
		{"timeout", searchResponse{ErrorCode: codeTimeout}, 0, domain.ErrElementTimeout, false},
		{"captcha", searchResponse{ErrorCode: codeCaptcha}, 0, domain.ErrCaptchaUnresolved, false},
		{"unexpected", searchResponse{ErrorCode: codeUnexpectedPage}, 0, domain.ErrUnexpectedPage, false},
		{"closed", searchResponse{ErrorCode: codeSessionClosed}, 0, domain.ErrSessionUnusable, true},
		{"gone", searchResponse{}, http.StatusGone, domain.ErrSessionUnusable, true},
		{"500", searchResponse{}, http.StatusInternalServerError, domain.ErrUnexpectedPage, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeRenderer{t: t, pages: []searchResponse{tt.page}}
			p, _ := newTestProvider(t, f)
			s, err := p.Open(context.Background())
			require.NoError(t, err)
			f.status = tt.status

			_, err = s.Fetch(context.Background(), domain.SearchQuery{Kind: domain.ByINN, Text: "7707083893"})
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.sentinel)
			assert.Equal(t, tt.fatal, domain.IsFatal(err))
		})
	}
}

func TestSession_UnknownErrorCodeKeepsMessage(t *testing.T) {
	f := &fakeRenderer{t: t, pages: []searchResponse{{ErrorCode: "weird", Error: "Неизвестная ошибка"}}}
	p, _ := newTestProvider(t, f)
	s, err := p.Open(context.Background())
	require.NoError(t, err)

	_, err = s.Fetch(context.Background(), domain.SearchQuery{Kind: domain.ByINN, Text: "7707083893"})
	require.Error(t, err)
	assert.Equal(t, "Неизвестная ошибка", err.Error())
	assert.False(t, domain.IsFatal(err))
}

func TestProvider_Unavailable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	p := NewProvider(Config{BaseURL: url}, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	_, err := p.Open(context.Background())
	assert.Error(t, err)

	s := &Session{provider: p, id: "s-1"}
	_, err = s.Fetch(context.Background(), domain.SearchQuery{Kind: domain.ByINN, Text: "7707083893"})
	assert.ErrorIs(t, err, domain.ErrSessionUnusable)
}

func TestProvider_Health(t *testing.T) {
	p, _ := newTestProvider(t, &fakeRenderer{t: t})
	assert.NoError(t, p.Health(context.Background()))

	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()
	down := NewProvider(Config{BaseURL: srv.URL + "/"}, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	assert.Equal(t, srv.URL, down.ID())
	assert.ErrorContains(t, down.Health(context.Background()), "404")
}
