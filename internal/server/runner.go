package server

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"bankrot-parser/internal/domain"
	"bankrot-parser/internal/ports"
	"bankrot-parser/internal/server/usecase"
)

// ErrQueueFull возвращается, когда очередь пакетов заполнена.
var ErrQueueFull = errors.New("очередь пакетов заполнена, повторите позже")

// job — пакет, ожидающий выполнения.
type job struct {
	taskID       string
	original     []string
	identifiers  []string
	deduplicated bool
}

// Runner выполняет пакеты из очереди по одному: сессия реестра одна.
type Runner struct {
	batch ports.BatchService
	tasks *TaskStore
	queue chan job
	log   *slog.Logger
	wg    sync.WaitGroup
}

// NewRunner создает Runner с очередью на queueSize пакетов.
func NewRunner(batch ports.BatchService, tasks *TaskStore, queueSize int, log *slog.Logger) *Runner {
	if queueSize < 1 {
		queueSize = 1
	}
	if log == nil {
		log = slog.Default()
	}
	return &Runner{
		batch: batch,
		tasks: tasks,
		queue: make(chan job, queueSize),
		log:   log,
	}
}

// Submit ставит пакет в очередь, не блокируясь.
func (r *Runner) Submit(taskID string, original, identifiers []string, deduplicated bool) error {
	select {
	case r.queue <- job{taskID: taskID, original: original, identifiers: identifiers, deduplicated: deduplicated}:
		return nil
	default:
		return ErrQueueFull
	}
}

// Start запускает обработчик очереди. Он останавливается при отмене ctx,
// а оставшиеся в очереди задачи помечаются как неуспешные.
func (r *Runner) Start(ctx context.Context) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		for {
			select {
			case <-ctx.Done():
				r.drain()
				return
			case j := <-r.queue:
				r.process(ctx, j)
			}
		}
	}()
}

// Wait ожидает остановки обработчика.
func (r *Runner) Wait() {
	r.wg.Wait()
}

func (r *Runner) process(ctx context.Context, j job) {
	jobCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	log := r.log.With("task_id", j.taskID)
	if err := r.tasks.StartTask(j.taskID, cancel); err != nil {
		log.InfoContext(ctx, "Пропуск задачи", "reason", err)
		return
	}

	log.InfoContext(ctx, "Запуск пакетной проверки", "total", len(j.identifiers))
	result := r.batch.RunBatch(jobCtx, j.taskID, j.identifiers)
	summary := usecase.Summary(j.original, result.Outcomes, j.deduplicated)

	if err := r.tasks.UpdateTaskResult(j.taskID, result, summary); err != nil {
		log.ErrorContext(ctx, "Не удалось сохранить результат задачи", "error", err)
		return
	}
	log.InfoContext(ctx, "Пакетная проверка завершена",
		"success", result.SucceededOverall,
		"processed", result.TotalProcessed,
		"bankrupt", summary.ConfirmedCount,
		"errors", summary.ErrorCount)
}

func (r *Runner) drain() {
	for {
		select {
		case j := <-r.queue:
			if task, err := r.tasks.GetTask(j.taskID); err != nil || task.Status != TaskStatusPending {
				continue
			}
			if err := r.tasks.UpdateTaskError(j.taskID, "сервер остановлен до запуска задачи"); err != nil {
				r.log.Warn("Не удалось отметить задачу", "task_id", j.taskID, "error", err)
			}
		default:
			return
		}
	}
}

// trackProgress сохраняет события прогресса в задачах.
func (r *Runner) trackProgress(event domain.ProgressEvent) {
	r.tasks.UpdateTaskProgress(event)
}
