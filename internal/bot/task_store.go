package bot

import "sync"

// TaskStore хранит активную задачу проверки для каждого чата.
// Чат резервируется до отправки списка на сервер, чтобы два сообщения
// подряд не запустили две проверки.
type TaskStore struct {
	mu    sync.Mutex
	tasks map[int64]string // chatID -> taskID, пустая строка для резерва
}

// NewTaskStore создает новый экземпляр TaskStore.
func NewTaskStore() *TaskStore {
	return &TaskStore{
		tasks: make(map[int64]string),
	}
}

// Reserve занимает чат. Возвращает false, если у чата уже есть задача.
func (s *TaskStore) Reserve(chatID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.tasks[chatID]; busy {
		return false
	}
	s.tasks[chatID] = ""
	return true
}

// Bind связывает занятый чат с задачей на сервере.
func (s *TaskStore) Bind(chatID int64, taskID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[chatID] = taskID
}

// Get возвращает задачу чата. Второе значение false, если чат свободен
// или задача еще не создана.
func (s *TaskStore) Get(chatID int64) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	taskID, ok := s.tasks[chatID]
	return taskID, ok && taskID != ""
}

// Release освобождает чат.
func (s *TaskStore) Release(chatID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tasks, chatID)
}
