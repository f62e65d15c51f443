package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"bankrot-parser/internal/cache"
	"bankrot-parser/internal/pkg/config"
	"bankrot-parser/internal/progress"
	"bankrot-parser/internal/server/usecase"
)

// SessionState сообщает, занята ли сессия реестра.
type SessionState interface {
	Busy() bool
}

// Deps содержит зависимости HTTP-сервера.
type Deps struct {
	Search   *usecase.SearchUseCase
	Bulk     *usecase.BulkUseCase
	Runner   *Runner
	Tasks    *TaskStore
	Cache    *cache.CacheStore
	Broker   *progress.Broker
	Snapshot *progress.Snapshot
	Sessions SessionState
	// Metrics - обработчик /metrics; nil отключает маршрут.
	Metrics http.Handler
	Logger  *slog.Logger
}

// Server представляет HTTP-сервер
type Server struct {
	HTTPServer *http.Server
	cfg        *config.Config
	deps       Deps
	log        *slog.Logger
}

// New создает новый экземпляр Server
func New(cfg *config.Config, deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Snapshot == nil {
		deps.Snapshot = progress.NewSnapshot()
	}

	s := &Server{
		cfg:  cfg,
		deps: deps,
		log:  deps.Logger,
	}

	chiRouter := chi.NewRouter()

	// Промежуточное ПО
	chiRouter.Use(middleware.RequestID)
	chiRouter.Use(middleware.Logger)
	chiRouter.Use(middleware.Recoverer)

	// Конечная точка для проверки работоспособности
	chiRouter.Get("/health", s.handleHealth)
	if deps.Metrics != nil {
		chiRouter.Method(http.MethodGet, cfg.Metrics.Path, deps.Metrics)
	}

	// Маршруты API
	chiRouter.Route("/api/v1", func(r chi.Router) {
		r.Post("/search", s.handleSearch)
		r.Post("/bulk-search", s.handleBulkSearch)

		r.Post("/batches", s.handleCreateBatch)
		r.Get("/batches/{taskID}", s.handleGetBatch)
		r.Get("/batches/{taskID}/result", s.handleBatchResult)
		r.Get("/batches/{taskID}/export", s.handleBatchExport)
		r.Delete("/batches/{taskID}", s.handleCancelBatch)

		r.Get("/progress", s.handleProgress)
		r.Get("/progress/ws", s.handleProgressWS)
	})

	s.HTTPServer = &http.Server{
		Addr:         cfg.Address(),
		Handler:      chiRouter,
		ReadTimeout:  config.DefaultReadTimeout,
		WriteTimeout: config.DefaultWriteTimeout,
		IdleTimeout:  config.DefaultIdleTimeout,
	}

	return s
}

// Handler возвращает корневой HTTP-обработчик.
func (s *Server) Handler() http.Handler {
	return s.HTTPServer.Handler
}

// Start запускает фоновые процессы сервера: обработчик очереди пакетов,
// запись прогресса в задачи и очистку просроченных задач и кэша.
// Все они останавливаются при отмене ctx.
func (s *Server) Start(ctx context.Context) {
	s.deps.Runner.Start(ctx)

	if s.deps.Broker != nil {
		stopTasks := s.deps.Broker.Subscribe(s.deps.Runner.trackProgress)
		stopSnapshot := s.deps.Snapshot.Attach(s.deps.Broker)
		go func() {
			<-ctx.Done()
			stopTasks()
			stopSnapshot()
		}()
	}

	s.deps.Tasks.StartCleanupTicker(ctx, config.DefaultCleanupInterval)
	if s.deps.Cache != nil {
		s.deps.Cache.StartCleanupTicker(ctx, config.DefaultCleanupInterval)
	}
}

// ListenAndServe запускает HTTP-сервер
func (s *Server) ListenAndServe() error {
	return s.HTTPServer.ListenAndServe()
}

// Shutdown корректно завершает работу HTTP-сервера и дожидается остановки обработчика очереди
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Завершение работы HTTP-сервера")
	err := s.HTTPServer.Shutdown(ctx)

	done := make(chan struct{})
	go func() {
		s.deps.Runner.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.log.Warn("Обработчик пакетов не остановился вовремя")
	}
	return err
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	busy := false
	if s.deps.Sessions != nil {
		busy = s.deps.Sessions.Busy()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":       "ok",
		"session_busy": busy,
		"time":         time.Now().UTC().Format(time.RFC3339),
	})
}

// writeJSON пишет v как JSON с указанным статусом.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		slog.Warn("Не удалось записать ответ", "error", err)
	}
}

// writeError пишет ошибку в формате {"success": false, "error": "..."}.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{
		"success": false,
		"error":   message,
	})
}
