package log

import (
	"fmt"
	"log/slog"
	"strings"
)

// TGBotAPIAdapter направляет сообщения go-telegram-bot-api/v5 в slog.
// Библиотека пишет в лог URL запросов с токеном, поэтому Logger должен
// быть создан через New или NewMaskedLogger.
type TGBotAPIAdapter struct {
	Logger *slog.Logger
}

// NewTGBotAPIAdapter создает адаптер с пометкой компонента.
func NewTGBotAPIAdapter(logger *slog.Logger) *TGBotAPIAdapter {
	return &TGBotAPIAdapter{Logger: logger.With(slog.String("component", "tgbotapi"))}
}

// Println реализует метод интерфейса tgbotapi.BotLogger.
func (a *TGBotAPIAdapter) Println(v ...interface{}) {
	a.Logger.Debug(strings.TrimSpace(fmt.Sprintln(v...)))
}

// Printf реализует метод интерфейса tgbotapi.BotLogger.
func (a *TGBotAPIAdapter) Printf(format string, v ...interface{}) {
	a.Logger.Debug(strings.TrimSpace(fmt.Sprintf(format, v...)))
}
