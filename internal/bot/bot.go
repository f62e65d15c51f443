package bot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"
	"unicode"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"bankrot-parser/cmd/bot/config"
	"bankrot-parser/internal/adapters/exporter"
	"bankrot-parser/internal/adapters/parser"
	"bankrot-parser/internal/backend"
	"bankrot-parser/internal/ports"
)

const (
	startCommand  = "start"
	helpCommand   = "help"
	statusCommand = "status"
	cancelCommand = "cancel"

	// maxMessageLength — ограничение Telegram на длину сообщения.
	maxMessageLength = 4096
)

const helpText = "Я проверяю ИНН по Единому федеральному реестру сведений о банкротстве.\n\n" +
	"Отправьте список ИНН сообщением или файлом .txt/.csv/.json. " +
	"ИНН можно разделять переводами строк, запятыми или пробелами.\n\n" +
	"Команды:\n" +
	"/status — состояние текущей проверки\n" +
	"/cancel — отменить текущую проверку"

// BackendAPI описывает операции сервера проверки, которые использует бот.
type BackendAPI interface {
	StartBatch(ctx context.Context, identifiers []string, deduplicate bool) (*backend.StartBatchResponse, error)
	StartBatchFile(ctx context.Context, doc backend.Document, deduplicate bool) (*backend.StartBatchResponse, error)
	GetBatch(ctx context.Context, taskID string) (*backend.BatchStatusResponse, error)
	GetAllResults(ctx context.Context, taskID string, pageSize int) (*backend.BatchResultResponse, error)
	Export(ctx context.Context, taskID, format string) ([]byte, error)
	Cancel(ctx context.Context, taskID string) (*backend.BatchStatusResponse, error)
}

// Bot представляет собой основной объект Telegram-бота.
type Bot struct {
	api          *tgbotapi.BotAPI
	cfg          config.BotConfig
	backend      BackendAPI
	taskStore    *TaskStore
	parser       ports.Parser
	table        exporter.Table
	pollInterval time.Duration
	logger       *slog.Logger
	httpClient   *http.Client
	wg           sync.WaitGroup

	sendMessageFunc      func(c tgbotapi.Chattable) (tgbotapi.Message, error)
	getFileDirectURLFunc func(fileID string) (string, error)
}

// NewBot создает и инициализирует новый экземпляр бота.
func NewBot(cfg config.BotConfig, client BackendAPI, taskStore *TaskStore, logger *slog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot api: %w", err)
	}

	logger.Info("Authorized on account", slog.String("username", api.Self.UserName))

	b := newBot(cfg, client, taskStore, logger)
	b.api = api
	b.sendMessageFunc = api.Send
	b.getFileDirectURLFunc = api.GetFileDirectURL
	return b, nil
}

func newBot(cfg config.BotConfig, client BackendAPI, taskStore *TaskStore, logger *slog.Logger) *Bot {
	return &Bot{
		cfg:       cfg,
		backend:   client,
		taskStore: taskStore,
		parser:    parser.NewListParser(),
		table: exporter.Table{Columns: []exporter.Column{
			{Title: "ИНН", Width: cfg.Render.INN},
			{Title: "Статус", Width: cfg.Render.Status},
			{Title: "Дел", Width: cfg.Render.Cases},
			{Title: "Ошибка", Width: cfg.Render.Error},
		}},
		pollInterval: time.Duration(cfg.PollingIntervalSeconds) * time.Second,
		logger:       logger,
		httpClient:   &http.Client{Timeout: time.Duration(cfg.HTTPTimeoutSeconds) * time.Second},
	}
}

// Start запускает основной цикл обработки обновлений от Telegram.
func (b *Bot) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.logger.Info("Context cancelled, stopping bot...")
			b.api.StopReceivingUpdates()
			return
		case update := <-updates:
			if update.Message == nil {
				continue
			}
			b.handleMessage(ctx, update.Message)
		}
	}
}

// Wait дожидается завершения фоновых опросов задач.
func (b *Bot) Wait() {
	b.wg.Wait()
}

// handleMessage обрабатывает входящее сообщение.
func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	switch {
	case msg.IsCommand():
		b.handleCommand(ctx, msg)
	case msg.Document != nil:
		b.handleDocument(ctx, msg)
	default:
		b.handleText(ctx, msg)
	}
}

// handleCommand обрабатывает команды.
func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	switch msg.Command() {
	case startCommand, helpCommand:
		b.reply(chatID, helpText)
	case statusCommand:
		taskID, ok := b.taskStore.Get(chatID)
		if !ok {
			b.reply(chatID, "Активных проверок нет.")
			return
		}
		status, err := b.backend.GetBatch(ctx, taskID)
		if err != nil {
			b.logger.Error("failed to get task status", slog.String("task_id", taskID), slog.String("error", err.Error()))
			b.reply(chatID, "Не удалось получить состояние проверки.")
			return
		}
		b.reply(chatID, fmt.Sprintf("Проверено %d из %d (%d%%).", status.Progress.Position, status.Total, status.Progress.Percentage))
	case cancelCommand:
		taskID, ok := b.taskStore.Get(chatID)
		if !ok {
			b.reply(chatID, "Активных проверок нет.")
			return
		}
		if _, err := b.backend.Cancel(ctx, taskID); err != nil {
			b.logger.Error("failed to cancel task", slog.String("task_id", taskID), slog.String("error", err.Error()))
			b.reply(chatID, "Не удалось отменить проверку.")
			return
		}
		b.reply(chatID, "Проверка отменяется. Пришлю то, что успели проверить.")
	default:
		b.reply(chatID, "Я не знаю такой команды.")
	}
}

// handleText принимает список ИНН из текста сообщения.
func (b *Bot) handleText(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID

	ids, err := b.parser.Parse([]byte(msg.Text))
	if err != nil || !hasDigits(ids) {
		b.reply(chatID, "Пожалуйста, отправьте список ИНН сообщением или файлом. /help — подробнее.")
		return
	}

	b.startTask(ctx, chatID, func() (*backend.StartBatchResponse, error) {
		return b.backend.StartBatch(ctx, ids, b.cfg.Deduplicate)
	})
}

// handleDocument обрабатывает входящий документ со списком ИНН.
func (b *Bot) handleDocument(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	logger := b.logger.With(slog.Int64("chat_id", chatID))

	if msg.Document.FileSize > b.cfg.MaxFileSizeBytes {
		b.reply(chatID, fmt.Sprintf("Файл слишком большой. Максимальный размер: %d КБ.", b.cfg.MaxFileSizeBytes/1024))
		return
	}

	b.startTask(ctx, chatID, func() (*backend.StartBatchResponse, error) {
		content, err := b.download(ctx, msg.Document.FileID)
		if err != nil {
			logger.Error("failed to download file", slog.String("error", err.Error()))
			return nil, errDownload
		}
		doc := backend.Document{Name: msg.Document.FileName, Content: bytes.NewReader(content)}
		return b.backend.StartBatchFile(ctx, doc, b.cfg.Deduplicate)
	})
}

var errDownload = errors.New("download failed")

// startTask резервирует чат и запускает проверку на сервере.
func (b *Bot) startTask(ctx context.Context, chatID int64, start func() (*backend.StartBatchResponse, error)) {
	logger := b.logger.With(slog.Int64("chat_id", chatID))

	if !b.taskStore.Reserve(chatID) {
		logger.Warn("user tried to start a new task while another is active")
		b.reply(chatID, "Пожалуйста, подождите завершения предыдущей проверки, прежде чем начинать новую.")
		return
	}

	resp, err := start()
	if err != nil {
		b.taskStore.Release(chatID)
		switch {
		case errors.Is(err, errDownload):
			b.reply(chatID, "Не удалось скачать файл. Попробуйте отправить его еще раз.")
		case errors.Is(err, backend.ErrQueueFull):
			b.reply(chatID, "Сервер сейчас занят другими проверками. Попробуйте позже.")
		default:
			logger.Error("failed to start task on backend", slog.String("error", err.Error()))
			b.reply(chatID, "Не удалось начать проверку на сервере: "+err.Error())
		}
		return
	}

	logger = logger.With(slog.String("task_id", resp.TaskID))
	logger.Info("task started on backend", slog.Int("total", resp.Total))

	b.taskStore.Bind(chatID, resp.TaskID)
	b.reply(chatID, fmt.Sprintf("✅ Список из %d ИНН поставлен в очередь на проверку. Ожидайте результата.", resp.Total))

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.pollTaskStatus(ctx, chatID, resp.TaskID)
	}()
}

func (b *Bot) download(ctx context.Context, fileID string) ([]byte, error) {
	fileURL, err := b.getFileDirectURLFunc(fileID)
	if err != nil {
		return nil, fmt.Errorf("failed to get file direct url: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, int64(b.cfg.MaxFileSizeBytes)+1))
}

func (b *Bot) reply(chatID int64, text string) {
	b.sendMessage(tgbotapi.NewMessage(chatID, text))
}

func (b *Bot) sendMessage(msg tgbotapi.Chattable) {
	if _, err := b.sendMessageFunc(msg); err != nil {
		b.logger.Error("failed to send message", slog.String("error", err.Error()))
	}
}

// pollTaskStatus опрашивает статус задачи, пока она не завершится.
func (b *Bot) pollTaskStatus(ctx context.Context, chatID int64, taskID string) {
	logger := b.logger.With(slog.Int64("chat_id", chatID), slog.String("task_id", taskID))
	defer b.taskStore.Release(chatID)

	ticker := time.NewTicker(b.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Warn("polling cancelled by context")
			return
		case <-ticker.C:
			status, err := b.backend.GetBatch(ctx, taskID)
			if err != nil {
				logger.Error("failed to get task status", slog.String("error", err.Error()))
				continue
			}
			if !status.Finished() {
				logger.Debug("task is in progress", slog.String("status", status.Status), slog.Int("percentage", status.Progress.Percentage))
				continue
			}

			logger.Info("task finished", slog.String("status", status.Status))
			if status.Status == backend.StatusFailed {
				b.reply(chatID, fmt.Sprintf("Произошла ошибка при проверке: %s", status.ErrorMessage))
				return
			}
			b.processFinishedTask(ctx, chatID, taskID)
			return
		}
	}
}

// processFinishedTask отправляет результаты завершенной или отмененной задачи.
func (b *Bot) processFinishedTask(ctx context.Context, chatID int64, taskID string) {
	logger := b.logger.With(slog.Int64("chat_id", chatID), slog.String("task_id", taskID))

	result, err := b.backend.GetAllResults(ctx, taskID, b.cfg.ResultPageSize)
	if err != nil {
		logger.Error("failed to fetch all results", slog.String("error", err.Error()))
		b.reply(chatID, "Не удалось получить результаты проверки. Пожалуйста, попробуйте позже.")
		return
	}

	summary := formatSummary(result)
	if len(result.Data) == 0 {
		b.reply(chatID, summary)
		return
	}

	if len(result.Data) >= b.cfg.ExcelThreshold {
		logger.Info("result count is over threshold, sending excel file", slog.Int("count", len(result.Data)))
		b.sendExport(ctx, chatID, taskID, exporter.FormatXLSX, summary)
		return
	}

	var sb strings.Builder
	if err := b.table.Render(&sb, exporter.BulkRows(result.Data)); err != nil {
		logger.Error("failed to render table", slog.String("error", err.Error()))
		b.reply(chatID, summary)
		return
	}
	text := html.EscapeString(summary) + "\n<pre>" + html.EscapeString(sb.String()) + "</pre>"
	if len(text) > maxMessageLength {
		logger.Warn("сгенерированный текст слишком длинный, отправка в виде файла", "length", len(text))
		b.sendExport(ctx, chatID, taskID, exporter.FormatCSV, summary)
		return
	}

	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	b.sendMessage(msg)
}

// sendExport отправляет выгрузку результатов файлом.
func (b *Bot) sendExport(ctx context.Context, chatID int64, taskID, format, caption string) {
	data, err := b.backend.Export(ctx, taskID, format)
	if err != nil {
		b.logger.Error("failed to export results", slog.String("task_id", taskID), slog.String("error", err.Error()))
		b.reply(chatID, caption+"\n\nНе удалось сформировать файл с результатами.")
		return
	}

	fileName := fmt.Sprintf("bankrot_%s.%s", time.Now().Format("2006-01-02_15-04-05"), format)
	msg := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{Name: fileName, Bytes: data})
	msg.Caption = caption
	b.sendMessage(msg)
}

// formatSummary описывает итог проверки одной строкой на каждый показатель.
func formatSummary(result *backend.BatchResultResponse) string {
	s := result.Summary
	var sb strings.Builder
	switch result.Status {
	case backend.StatusCancelled:
		sb.WriteString("Проверка отменена.\n")
	default:
		if !result.Success && result.Error != "" {
			fmt.Fprintf(&sb, "Проверка прервана: %s\n", result.Error)
		} else {
			sb.WriteString("Проверка завершена.\n")
		}
	}
	fmt.Fprintf(&sb, "Проверено: %d из %d\n", len(result.Data), s.TotalUnique)
	if s.DuplicatesRemoved > 0 {
		fmt.Fprintf(&sb, "Удалено дубликатов: %d\n", s.DuplicatesRemoved)
	}
	fmt.Fprintf(&sb, "Банкротов: %d\nЧистых: %d\nОшибок: %d", s.ConfirmedCount, s.CleanCount, s.ErrorCount)
	return sb.String()
}

// hasDigits сообщает, похож ли разобранный текст на список ИНН.
func hasDigits(ids []string) bool {
	for _, id := range ids {
		if strings.IndexFunc(id, unicode.IsDigit) >= 0 {
			return true
		}
	}
	return false
}
