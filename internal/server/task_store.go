package server

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"bankrot-parser/internal/domain"
)

// TaskStatus представляет статус задачи пакетной проверки
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
	TaskStatusCancelled  TaskStatus = "cancelled"
)

// Finished сообщает, что задача больше не изменится.
func (s TaskStatus) Finished() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed || s == TaskStatusCancelled
}

// ErrTaskNotFound возвращается для неизвестного или удаленного ID задачи.
var ErrTaskNotFound = errors.New("задача не найдена")

// Task представляет собой одну задачу пакетной проверки
type Task struct {
	ID           string
	Status       TaskStatus
	Total        int
	Progress     domain.ProgressEvent
	Result       *domain.BatchResult
	Summary      *domain.Summary
	ErrorMessage string
	CreatedAt    time.Time
	FinishedAt   time.Time
	ExpiresAt    time.Time // Для автоматической очистки

	cancel context.CancelFunc
}

// TaskStore управляет хранением и извлечением задач
type TaskStore struct {
	tasks map[string]*Task
	mutex sync.RWMutex
	clock clockwork.Clock
}

// NewTaskStore создает новый экземпляр TaskStore
func NewTaskStore(clock clockwork.Clock) *TaskStore {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &TaskStore{
		tasks: make(map[string]*Task),
		clock: clock,
	}
}

// CreateTask создает новую задачу со статусом 'pending'
func (ts *TaskStore) CreateTask(taskID string, total int, ttl time.Duration) {
	ts.mutex.Lock()
	defer ts.mutex.Unlock()

	now := ts.clock.Now()
	ts.tasks[taskID] = &Task{
		ID:        taskID,
		Status:    TaskStatusPending,
		Total:     total,
		Progress:  domain.ProgressEvent{BatchID: taskID, Total: total},
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
}

// StartTask переводит задачу в статус 'processing' и запоминает функцию отмены.
// Отмененную до запуска задачу запустить нельзя.
func (ts *TaskStore) StartTask(taskID string, cancel context.CancelFunc) error {
	ts.mutex.Lock()
	defer ts.mutex.Unlock()

	task, exists := ts.tasks[taskID]
	if !exists {
		return fmt.Errorf("задача с ID %s: %w", taskID, ErrTaskNotFound)
	}
	if task.Status != TaskStatusPending {
		return fmt.Errorf("задача с ID %s уже в статусе %s", taskID, task.Status)
	}

	task.Status = TaskStatusProcessing
	task.cancel = cancel
	return nil
}

// UpdateTaskProgress сохраняет последнее событие прогресса задачи
func (ts *TaskStore) UpdateTaskProgress(event domain.ProgressEvent) {
	ts.mutex.Lock()
	defer ts.mutex.Unlock()

	if task, exists := ts.tasks[event.BatchID]; exists && !task.Status.Finished() {
		task.Progress = event
	}
}

// UpdateTaskResult сохраняет результат пакета. Статус определяется исходом пакета:
// успех, отмена или фатальная ошибка. Прогресс выставляется по последнему обработанному элементу.
func (ts *TaskStore) UpdateTaskResult(taskID string, result domain.BatchResult, summary domain.Summary) error {
	ts.mutex.Lock()
	defer ts.mutex.Unlock()

	task, exists := ts.tasks[taskID]
	if !exists {
		return fmt.Errorf("задача с ID %s: %w", taskID, ErrTaskNotFound)
	}

	switch {
	case result.SucceededOverall:
		task.Status = TaskStatusCompleted
	case result.FatalKind == domain.ErrorKindCancelled:
		task.Status = TaskStatusCancelled
	default:
		task.Status = TaskStatusFailed
	}
	if n := result.TotalProcessed; n > 0 && n <= len(result.Outcomes) {
		task.Progress = domain.ProgressEvent{
			BatchID:           taskID,
			Position:          n,
			Total:             task.Total,
			CurrentIdentifier: result.Outcomes[n-1].Identifier,
			Percentage:        int(math.Round(float64(n) / float64(max(task.Total, 1)) * 100)),
		}
	}
	task.Result = &result
	task.Summary = &summary
	task.ErrorMessage = result.FatalError
	task.FinishedAt = ts.clock.Now()
	task.cancel = nil
	return nil
}

// UpdateTaskError обновляет сообщение об ошибке и статус задачи на 'failed'
func (ts *TaskStore) UpdateTaskError(taskID string, errorMessage string) error {
	ts.mutex.Lock()
	defer ts.mutex.Unlock()

	task, exists := ts.tasks[taskID]
	if !exists {
		return fmt.Errorf("задача с ID %s: %w", taskID, ErrTaskNotFound)
	}

	task.Status = TaskStatusFailed
	task.ErrorMessage = errorMessage
	task.FinishedAt = ts.clock.Now()
	task.cancel = nil
	return nil
}

// CancelTask отменяет задачу. Ожидающая задача сразу получает статус 'cancelled',
// выполняемая завершится с частичным результатом.
func (ts *TaskStore) CancelTask(taskID string) error {
	ts.mutex.Lock()
	defer ts.mutex.Unlock()

	task, exists := ts.tasks[taskID]
	if !exists {
		return fmt.Errorf("задача с ID %s: %w", taskID, ErrTaskNotFound)
	}

	switch task.Status {
	case TaskStatusPending:
		task.Status = TaskStatusCancelled
		task.ErrorMessage = "задача отменена до запуска"
		task.FinishedAt = ts.clock.Now()
	case TaskStatusProcessing:
		if task.cancel != nil {
			task.cancel()
		}
	}
	return nil
}

// GetTask возвращает копию задачи по ее ID
func (ts *TaskStore) GetTask(taskID string) (Task, error) {
	ts.mutex.RLock()
	defer ts.mutex.RUnlock()

	task, exists := ts.tasks[taskID]
	if !exists {
		return Task{}, fmt.Errorf("задача с ID %s: %w", taskID, ErrTaskNotFound)
	}

	return *task, nil
}

// CleanupExpired удаляет просроченные завершенные задачи из хранилища
func (ts *TaskStore) CleanupExpired() int {
	ts.mutex.Lock()
	defer ts.mutex.Unlock()

	now := ts.clock.Now()
	removed := 0
	for taskID, task := range ts.tasks {
		if task.Status.Finished() && now.After(task.ExpiresAt) {
			delete(ts.tasks, taskID)
			removed++
		}
	}
	return removed
}

// StartCleanupTicker запускает тикер для периодической очистки просроченных задач
func (ts *TaskStore) StartCleanupTicker(ctx context.Context, interval time.Duration) {
	ticker := ts.clock.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.Chan():
				ts.CleanupExpired()
			}
		}
	}()
}
