package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bankrot-parser/internal/adapters/mockfetch"
	"bankrot-parser/internal/cache"
	"bankrot-parser/internal/core/services"
	"bankrot-parser/internal/domain"
	"bankrot-parser/internal/pkg/config"
	"bankrot-parser/internal/progress"
	"bankrot-parser/internal/server"
	"bankrot-parser/internal/server/usecase"
	"bankrot-parser/internal/session"
	"bankrot-parser/internal/throttle"
)

const fixtures = `
entries:
  "7707083893":
    records:
      - case_number: "А40-123/2024"
        debtor_name: "ООО Ромашка"
        inn: "7707083893"
        status: "Конкурсное производство"
`

func newTestServer(t *testing.T) string {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	f, err := mockfetch.Parse([]byte(fixtures))
	require.NoError(t, err)
	sessions := session.NewManager(mockfetch.NewProvider(f), session.WithLogger(logger))
	broker := progress.NewBroker(progress.WithLogger(logger))

	batch := services.NewBatchService(sessions,
		services.WithThrottle(throttle.Noop{}),
		services.WithProgress(broker),
		services.WithLogger(logger))
	tasks := server.NewTaskStore(nil)
	runner := server.NewRunner(batch, tasks, 2, logger)

	srv := server.New(config.Default(), server.Deps{
		Search:   usecase.NewSearchUseCase(services.NewSearchService(sessions), cache.NewCacheStore(0), nil, "", logger),
		Bulk:     usecase.NewBulkUseCase(batch, 100, logger),
		Runner:   runner,
		Tasks:    tasks,
		Broker:   broker,
		Sessions: sessions,
		Logger:   logger,
	})

	ctx, cancel := context.WithCancel(context.Background())
	srv.Start(ctx)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		cancel()
		runner.Wait()
		broker.Close()
	})
	return ts.URL
}

func TestRun(t *testing.T) {
	url := newTestServer(t)
	out := filepath.Join(t.TempDir(), "result.csv")

	opts := options{
		serverAddr:   url,
		format:       "csv",
		output:       out,
		deduplicate:  true,
		pollInterval: 10 * time.Millisecond,
		pageSize:     1,
	}
	stdin := strings.NewReader("7707083893\n500100732259\n7707083893\n1234567890\n")
	var stdout bytes.Buffer

	require.NoError(t, run(context.Background(), opts, nil, stdin, &stdout))

	text := stdout.String()
	assert.Contains(t, text, "1 ИНН не прошли проверку контрольной суммы")
	assert.Contains(t, text, "Всего: 4, уникальных: 3, удалено дубликатов: 1")
	assert.Contains(t, text, "Банкротов: 1, чистых: 1, ошибок: 1")
	assert.Contains(t, text, "БАНКРОТ")
	assert.Contains(t, text, "А40-123/2024")
	assert.Contains(t, text, "Результаты сохранены")

	content, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(content), "\ufeff"))
	assert.Contains(t, string(content), `"7707083893";"БАНКРОТ"`)
}

func TestRun_EmptyInput(t *testing.T) {
	err := run(context.Background(), options{serverAddr: "http://127.0.0.1:1"}, nil, strings.NewReader("\n"), &bytes.Buffer{})
	assert.EqualError(t, err, "список ИНН пуст")
}

func TestProgressLine(t *testing.T) {
	line := progressLine(domain.ProgressEvent{Position: 1, Total: 2, Percentage: 50, CurrentIdentifier: "7707083893"})
	assert.Equal(t, "[###############...............]  50% 1/2 7707083893", line)
	assert.Empty(t, progressLine(domain.ProgressEvent{}))
}
