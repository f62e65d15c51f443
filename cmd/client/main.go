package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"golang.org/x/term"

	"bankrot-parser/internal/adapters/exporter"
	"bankrot-parser/internal/adapters/parser"
	"bankrot-parser/internal/adapters/source"
	"bankrot-parser/internal/backend"
	"bankrot-parser/internal/domain"
	"bankrot-parser/internal/inn"
	"bankrot-parser/internal/log"
	"bankrot-parser/internal/ports"
)

type options struct {
	serverAddr   string
	format       string
	output       string
	deduplicate  bool
	pollInterval time.Duration
	pageSize     int
}

func main() {
	var opts options
	flag.StringVar(&opts.serverAddr, "server", "http://localhost:8080", "Server address")
	flag.StringVar(&opts.format, "format", "", "формат файла результатов: xlsx, csv, json")
	flag.StringVar(&opts.output, "out", "", "путь к файлу результатов (по умолчанию bankrot_<задача>.<формат>)")
	flag.BoolVar(&opts.deduplicate, "dedupe", false, "удалить повторяющиеся ИНН перед проверкой")
	flag.DurationVar(&opts.pollInterval, "poll", 2*time.Second, "интервал опроса статуса")
	flag.IntVar(&opts.pageSize, "page-size", 200, "размер страницы при загрузке результатов")
	logLevel := flag.String("log-level", "warn", "уровень логирования")
	flag.Parse()

	logger := log.New(os.Stderr, *logLevel, "text")
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts, flag.Args(), os.Stdin, os.Stdout); err != nil {
		slog.Error("client failed", "error", err)
		os.Exit(1)
	}
}

// run читает список ИНН из файлов или stdin, запускает проверку и выводит результат.
// Прерывание ctx отменяет задачу на сервере, после чего выводятся частичные результаты.
func run(ctx context.Context, opts options, paths []string, stdin io.Reader, stdout io.Writer) error {
	var src ports.DataSource
	if len(paths) == 0 {
		src = source.NewReaderSource(stdin)
	} else {
		src = source.NewFileSource(paths...)
	}

	data, err := src.Fetch()
	if err != nil {
		return err
	}
	ids, err := parser.NewListParser().Parse(data)
	if err != nil {
		return fmt.Errorf("не удалось разобрать список ИНН: %w", err)
	}
	if len(ids) == 0 {
		return errors.New("список ИНН пуст")
	}
	if invalid := countInvalid(ids); invalid > 0 {
		fmt.Fprintf(stdout, "Предупреждение: %d ИНН не прошли проверку контрольной суммы и будут отмечены как ошибки.\n", invalid)
	}

	client := backend.NewClient(opts.serverAddr, 30*time.Second)

	started, err := client.StartBatch(ctx, ids, opts.deduplicate)
	if err != nil {
		return fmt.Errorf("не удалось создать задачу: %w", err)
	}
	fmt.Fprintf(stdout, "Задача создана с идентификатором: %s (ИНН: %d)\n", started.TaskID, started.Total)

	status, err := waitForBatch(ctx, client, started.TaskID, opts.pollInterval, stdout)
	if err != nil {
		return err
	}
	if status.Status == backend.StatusFailed {
		return fmt.Errorf("задача не выполнена: %s", status.ErrorMessage)
	}

	// Контекст мог быть отменен сигналом: результаты забираем в любом случае.
	fetchCtx := context.WithoutCancel(ctx)
	result, err := client.GetAllResults(fetchCtx, started.TaskID, opts.pageSize)
	if err != nil {
		return err
	}
	printResult(stdout, result)

	if opts.format == "" {
		return nil
	}
	content, err := client.Export(fetchCtx, started.TaskID, opts.format)
	if err != nil {
		return fmt.Errorf("не удалось выгрузить результаты: %w", err)
	}
	path := opts.output
	if path == "" {
		path = fmt.Sprintf("bankrot_%s.%s", shortID(started.TaskID), exportExtension(opts.format))
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return fmt.Errorf("не удалось записать файл %s: %w", path, err)
	}
	fmt.Fprintf(stdout, "Результаты сохранены в %s\n", filepath.Clean(path))
	return nil
}

// waitForBatch ждет завершения задачи. В терминале прогресс приходит по WebSocket,
// иначе печатается при каждом опросе статуса.
func waitForBatch(ctx context.Context, client *backend.Client, taskID string, interval time.Duration, stdout io.Writer) (*backend.BatchStatusResponse, error) {
	interactive := isTerminal(stdout)

	watchCtx, stopWatch := context.WithCancel(context.WithoutCancel(ctx))
	defer stopWatch()
	if interactive {
		go func() {
			err := client.WatchProgress(watchCtx, taskID, func(e domain.ProgressEvent) {
				fmt.Fprintf(stdout, "\r%s", progressLine(e))
			})
			if err != nil {
				slog.Debug("progress stream closed", "error", err)
			}
		}()
	}

	pollCtx := context.WithoutCancel(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	interrupted := ctx.Done()
	for {
		select {
		case <-interrupted:
			interrupted = nil
			fmt.Fprintln(stdout, "\nОтмена задачи...")
			if _, err := client.Cancel(pollCtx, taskID); err != nil {
				slog.Warn("failed to cancel task", "error", err)
			}
		case <-ticker.C:
			status, err := client.GetBatch(pollCtx, taskID)
			if err != nil {
				return nil, fmt.Errorf("не удалось опросить статус задачи: %w", err)
			}
			if !interactive {
				fmt.Fprintf(stdout, "Статус задачи: %s %s\n", status.Status, progressLine(status.Progress))
			}
			if status.Finished() {
				stopWatch()
				if interactive {
					fmt.Fprintln(stdout)
				}
				return status, nil
			}
		}
	}
}

func printResult(w io.Writer, result *backend.BatchResultResponse) {
	s := result.Summary
	switch {
	case result.Status == backend.StatusCancelled:
		fmt.Fprintln(w, "Проверка отменена, показаны частичные результаты.")
	case !result.Success && result.Error != "":
		fmt.Fprintf(w, "Проверка прервана: %s\n", result.Error)
	}
	fmt.Fprintf(w, "Всего: %d, уникальных: %d, удалено дубликатов: %d\n", s.TotalOriginal, s.TotalUnique, s.DuplicatesRemoved)
	fmt.Fprintf(w, "Банкротов: %d, чистых: %d, ошибок: %d\n\n", s.ConfirmedCount, s.CleanCount, s.ErrorCount)

	if err := exporter.NewConsoleExporter().Export(w, result.Data); err != nil {
		slog.Warn("failed to render table", "error", err)
	}
}

func progressLine(e domain.ProgressEvent) string {
	if e.Total == 0 {
		return ""
	}
	const width = 30
	filled := width * e.Percentage / 100
	return fmt.Sprintf("[%s%s] %3d%% %d/%d %s", strings.Repeat("#", filled), strings.Repeat(".", width-filled), e.Percentage, e.Position, e.Total, e.CurrentIdentifier)
}

func countInvalid(ids []string) int {
	n := 0
	for _, id := range ids {
		if !inn.IsValid(id) {
			n++
		}
	}
	return n
}

func exportExtension(format string) string {
	exp, err := exporter.ForFormat(format)
	if err != nil {
		return format
	}
	return exp.Extension()
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
