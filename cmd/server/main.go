package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/sevlyar/go-daemon"

	"bankrot-parser/internal/adapters/browser"
	"bankrot-parser/internal/adapters/mockfetch"
	"bankrot-parser/internal/adapters/router"
	"bankrot-parser/internal/cache"
	"bankrot-parser/internal/core/services"
	"bankrot-parser/internal/log"
	"bankrot-parser/internal/metrics"
	"bankrot-parser/internal/pkg/config"
	"bankrot-parser/internal/ports"
	"bankrot-parser/internal/progress"
	"bankrot-parser/internal/server"
	"bankrot-parser/internal/server/usecase"
	"bankrot-parser/internal/session"
	"bankrot-parser/internal/throttle"
)

func main() {
	daemonize := flag.Bool("daemon", false, "запустить сервер в фоне")
	pidFile := flag.String("pid-file", "bankrot-parser.pid", "pid-файл фонового процесса")
	logFile := flag.String("log-file", "bankrot-parser.log", "файл журнала фонового процесса")
	flag.Parse()

	if *daemonize {
		dctx := &daemon.Context{
			PidFileName: *pidFile,
			PidFilePerm: 0o644,
			LogFileName: *logFile,
			LogFilePerm: 0o640,
			Umask:       0o27,
		}
		child, err := dctx.Reborn()
		if err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "failed to daemonize: %v\n", err)
			os.Exit(1)
		}
		if child != nil {
			return
		}
		defer func() { _ = dctx.Release() }()
	}

	if err := run(); err != nil {
		slog.Error("application run failed", "error", err)
		os.Exit(1)
	}
}

// run инкапсулирует всю логику инициализации и запуска приложения.
func run() error {
	// 1. Загрузка конфигурации
	cfg, err := config.LoadConfig()
	if err != nil {
		// Логгер еще не инициализирован, выводим в stderr
		_, _ = fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 2. Логгер пишет в stderr: в фоновом режиме он перенаправлен в файл журнала
	logger := log.New(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)
	slog.SetDefault(logger)

	// 3. Валидация конфигурации (после инициализации логгера)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	// 4. Доступ к реестру
	appCtx, appCancel := context.WithCancel(context.Background())
	defer appCancel()

	provider, err := newSessionProvider(appCtx, cfg, logger)
	if err != nil {
		return err
	}
	if r, ok := provider.(*router.Router); ok {
		defer r.Stop()
	}
	sessions := session.NewManager(provider, session.WithLogger(logger.With("component", "session")))

	// 5. Инициализация зависимостей
	registry := metrics.NewRegistry()
	recorder := metrics.NewRecorder(registry)
	broker := progress.NewBroker(progress.WithLogger(logger.With("component", "progress")))

	limiter, err := throttle.New(throttle.Settings{
		Kind:  cfg.Batch.Throttle,
		Delay: cfg.Batch.ItemDelay,
		RPS:   cfg.Batch.RatePerSecond,
		Burst: cfg.Batch.Burst,
	})
	if err != nil {
		return fmt.Errorf("failed to create throttle: %w", err)
	}

	batchSvc := services.NewBatchService(sessions,
		services.WithRegion(cfg.Batch.DefaultRegion),
		services.WithThrottle(limiter),
		services.WithProgress(broker),
		services.WithRecorder(recorder),
		services.WithLogger(logger.With("component", "batch")),
	)
	searchSvc := services.NewSearchService(sessions,
		services.WithDefaultRegion(cfg.Batch.DefaultRegion),
		services.WithSearchLogger(logger.With("component", "search")),
	)

	cacheStore := cache.NewCacheStore(cfg.Cache.TTL)
	taskStore := server.NewTaskStore(nil)

	deps := server.Deps{
		Search:   usecase.NewSearchUseCase(searchSvc, cacheStore, recorder, cfg.Batch.DefaultRegion, logger),
		Bulk:     usecase.NewBulkUseCase(batchSvc, cfg.Batch.MaxIdentifiers, logger),
		Runner:   server.NewRunner(batchSvc, taskStore, cfg.Batch.QueueSize, logger.With("component", "runner")),
		Tasks:    taskStore,
		Cache:    cacheStore,
		Broker:   broker,
		Snapshot: progress.NewSnapshot(),
		Sessions: sessions,
		Logger:   logger,
	}
	if cfg.Metrics.Enabled {
		deps.Metrics = metrics.Handler(registry)
	}

	// 6. Создание HTTP-сервера и запуск фоновых процессов
	srv := server.New(cfg, deps)

	srv.Start(appCtx)

	serverDone := make(chan struct{})
	go func() {
		defer close(serverDone)
		slog.Info("Starting server", "addr", cfg.Address(), "fetcher", cfg.Fetcher.Mode)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server error", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
		slog.Info("Signal received, shutting down...")
	case <-serverDone:
	}

	// Отмена контекста прерывает текущий пакет и останавливает очистку
	appCancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}
	<-serverDone
	slog.Info("HTTP server stopped")

	broker.Close()
	if acquired, released := sessions.Stats(); acquired != released {
		slog.Warn("Registry session was not released", "acquired", acquired, "released", released)
	}

	slog.Info("Application exited gracefully")
	return nil
}

// newSessionProvider выбирает способ доступа к реестру. В режиме браузера сессии
// распределяются между всеми экземплярами сервиса рендеринга.
func newSessionProvider(ctx context.Context, cfg *config.Config, logger *slog.Logger) (ports.SessionProvider, error) {
	switch cfg.Fetcher.Mode {
	case config.FetcherModeMock:
		fixtures, err := mockfetch.Load(cfg.Fetcher.FixturesPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load fixtures: %w", err)
		}
		slog.Warn("Registry access is mocked", "fixtures", cfg.Fetcher.FixturesPath)
		return mockfetch.NewProvider(fixtures), nil
	default:
		var renderers []ports.Renderer
		for _, url := range cfg.Fetcher.RendererURLs() {
			renderers = append(renderers, browser.NewProvider(browser.Config{
				BaseURL:        url,
				APIKey:         cfg.Fetcher.APIKey,
				StartURL:       cfg.Fetcher.StartURL,
				UserAgent:      cfg.Fetcher.UserAgent,
				RequestTimeout: cfg.Fetcher.RequestTimeout,
			}, browser.WithLogger(logger.With("component", "browser", "renderer", url))))
		}
		r, err := router.NewRouter(renderers,
			router.WithHealthCheckInterval(cfg.Fetcher.HealthCheckInterval),
			router.WithLogger(logger.With("component", "router")))
		if err != nil {
			return nil, fmt.Errorf("failed to create renderer router: %w", err)
		}
		r.Start(ctx)
		return r, nil
	}
}
