package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"bankrot-parser/cmd/bot/config"
	"bankrot-parser/internal/backend"
	"bankrot-parser/internal/bot"
	"bankrot-parser/internal/log"
)

func main() {
	configPath := os.Getenv("BOT_CONFIG_PATH")
	if configPath == "" {
		configPath = "bot_config.yml"
	}

	// Загрузка конфигурации бота
	cfg, err := config.LoadBotConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load bot config: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.ValidateFull(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to validate bot config: %v\n", err)
		os.Exit(1)
	}

	// Логгер с маскировкой токенов
	logger := log.New(os.Stdout, cfg.Logging.Level, cfg.Logging.Format)
	slog.SetDefault(logger)
	if err := tgbotapi.SetLogger(log.NewTGBotAPIAdapter(logger)); err != nil {
		slog.Warn("failed to set bot api logger", slog.String("error", err.Error()))
	}

	// Инициализация компонентов
	taskStore := bot.NewTaskStore()
	client := backend.NewClient(cfg.Bot.BackendURL, time.Duration(cfg.Bot.HTTPTimeoutSeconds)*time.Second)

	b, err := bot.NewBot(cfg.Bot, client, taskStore, logger.With(slog.String("component", "bot")))
	if err != nil {
		slog.Error("failed to create bot", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("Bot created successfully, starting...", slog.String("backend_url", cfg.Bot.BackendURL))

	// Ожидание сигналов для graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	b.Start(ctx)

	slog.Info("Shutting down bot...")
	b.Wait()
	slog.Info("Bot stopped gracefully")
}
