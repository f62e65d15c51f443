package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"bankrot-parser/internal/adapters/exporter"
	"bankrot-parser/internal/adapters/parser"
	"bankrot-parser/internal/adapters/source"
	"bankrot-parser/internal/core/services"
	"bankrot-parser/internal/domain"
	"bankrot-parser/internal/ports"
	"bankrot-parser/internal/server/usecase"
	"bankrot-parser/internal/session"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
	maxJSONBody     = 1 << 20
)

// bulkRequest - тело запроса пакетной проверки. Поле innList принимается
// для совместимости со старыми клиентами.
type bulkRequest struct {
	INNList       []string `json:"inn_list"`
	LegacyINNList []string `json:"innList"`
	Deduplicate   bool     `json:"deduplicate"`
}

func (b bulkRequest) identifiers() []string {
	if b.INNList != nil {
		return b.INNList
	}
	return b.LegacyINNList
}

// Pagination описывает страницу результата
type Pagination struct {
	CurrentPage int `json:"current_page"`
	PageSize    int `json:"page_size"`
	TotalItems  int `json:"total_items"`
	TotalPages  int `json:"total_pages"`
}

// TaskResponse - состояние задачи пакетной проверки
type TaskResponse struct {
	TaskID       string               `json:"task_id"`
	Status       TaskStatus           `json:"status"`
	Total        int                  `json:"total"`
	Progress     domain.ProgressEvent `json:"progress"`
	Summary      *domain.Summary      `json:"summary,omitempty"`
	ErrorMessage string               `json:"error_message,omitempty"`
	CreatedAt    time.Time            `json:"created_at"`
	FinishedAt   *time.Time           `json:"finished_at,omitempty"`
}

// ResultResponse - страница результатов завершенной задачи
type ResultResponse struct {
	Pagination Pagination           `json:"pagination"`
	Status     TaskStatus           `json:"status"`
	Success    bool                 `json:"success"`
	Error      string               `json:"error,omitempty"`
	ErrorKind  domain.ErrorKind     `json:"error_kind,omitempty"`
	Summary    domain.Summary       `json:"summary"`
	Data       []domain.ItemOutcome `json:"data"`
}

func newTaskResponse(task Task) TaskResponse {
	resp := TaskResponse{
		TaskID:       task.ID,
		Status:       task.Status,
		Total:        task.Total,
		Progress:     task.Progress,
		Summary:      task.Summary,
		ErrorMessage: task.ErrorMessage,
		CreatedAt:    task.CreatedAt,
	}
	if !task.FinishedAt.IsZero() {
		finished := task.FinishedAt
		resp.FinishedAt = &finished
	}
	return resp
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var q domain.SearchQuery
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody)).Decode(&q); err != nil {
		writeJSON(w, http.StatusBadRequest, domain.SearchResult{Records: []domain.CaseRecord{}, Error: "Не удалось декодировать тело запроса"})
		return
	}

	result, cached, err := s.deps.Search.Search(r.Context(), q)
	switch {
	case errors.Is(err, services.ErrInvalidQuery):
		writeJSON(w, http.StatusBadRequest, domain.SearchResult{Records: []domain.CaseRecord{}, Error: err.Error()})
		return
	case errors.Is(err, session.ErrBusy):
		writeJSON(w, http.StatusConflict, domain.SearchResult{Records: []domain.CaseRecord{}, Error: err.Error()})
		return
	case err != nil:
		s.log.ErrorContext(r.Context(), "Ошибка поиска", "error", err)
		writeJSON(w, http.StatusInternalServerError, domain.SearchResult{Records: []domain.CaseRecord{}, Error: err.Error()})
		return
	}

	if cached {
		w.Header().Set("X-Cache", "HIT")
	} else {
		w.Header().Set("X-Cache", "MISS")
	}

	format := r.URL.Query().Get("format")
	if format == "" || format == exporter.FormatJSON {
		writeJSON(w, http.StatusOK, result)
		return
	}

	exp, err := exporter.ForFormat(format)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	caseExp, ok := exp.(ports.CaseExporter)
	if !ok {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("формат %s не поддерживает выгрузку дел", format))
		return
	}
	setAttachment(w, exp, "bankrot_search")
	if err := caseExp.ExportCases(w, result.Records); err != nil {
		s.log.ErrorContext(r.Context(), "Ошибка выгрузки результатов поиска", "error", err)
	}
}

func (s *Server) handleBulkSearch(w http.ResponseWriter, r *http.Request) {
	var req bulkRequest
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody)).Decode(&req)
	if err != nil || req.identifiers() == nil {
		writeBulkError(w, http.StatusBadRequest, "Некорректный или отсутствующий список inn_list")
		return
	}

	if s.deps.Sessions != nil && s.deps.Sessions.Busy() {
		writeBulkError(w, http.StatusConflict, session.ErrBusy.Error())
		return
	}

	report, err := s.deps.Bulk.Check(r.Context(), req.identifiers(), req.Deduplicate)
	switch {
	case errors.Is(err, usecase.ErrListTooLarge):
		writeBulkError(w, http.StatusRequestEntityTooLarge, err.Error())
		return
	case errors.Is(err, session.ErrBusy):
		writeBulkError(w, http.StatusConflict, session.ErrBusy.Error())
		return
	case err != nil:
		writeBulkError(w, http.StatusInternalServerError, err.Error())
		return
	}

	format := r.URL.Query().Get("format")
	if format == "" || format == exporter.FormatJSON {
		writeJSON(w, http.StatusOK, report)
		return
	}
	exp, err := exporter.ForFormat(format)
	if err != nil {
		writeBulkError(w, http.StatusBadRequest, err.Error())
		return
	}
	setAttachment(w, exp, "bankrot_bulk")
	if err := exp.Export(w, report.Outcomes); err != nil {
		s.log.ErrorContext(r.Context(), "Ошибка выгрузки пакетной проверки", "error", err)
	}
}

func writeBulkError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{
		"success": false,
		"results": []domain.ItemOutcome{},
		"error":   message,
	})
}

func (s *Server) handleCreateBatch(w http.ResponseWriter, r *http.Request) {
	identifiers, deduplicate, err := s.readIdentifiers(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	prepared, err := usecase.PrepareIdentifiers(identifiers, deduplicate, s.cfg.Batch.MaxIdentifiers)
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, err.Error())
		return
	}
	if len(prepared) == 0 {
		writeError(w, http.StatusBadRequest, "список ИНН пуст")
		return
	}

	// Генерация уникального идентификатора задачи
	taskID := uuid.NewString()
	s.deps.Tasks.CreateTask(taskID, len(prepared), s.cfg.Batch.TaskTTL)

	if err := s.deps.Runner.Submit(taskID, identifiers, prepared, deduplicate); err != nil {
		_ = s.deps.Tasks.UpdateTaskError(taskID, err.Error())
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	s.log.InfoContext(r.Context(), "Пакет поставлен в очередь", "task_id", taskID, "total", len(prepared), "original", len(identifiers))
	writeJSON(w, http.StatusAccepted, map[string]any{
		"task_id": taskID,
		"status":  TaskStatusPending,
		"total":   len(prepared),
	})
}

// readIdentifiers читает список ИНН из JSON-тела или из файла multipart-формы (поле "file").
func (s *Server) readIdentifiers(w http.ResponseWriter, r *http.Request) ([]string, bool, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		var req bulkRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody)).Decode(&req); err != nil {
			return nil, false, fmt.Errorf("не удалось декодировать тело запроса: %w", err)
		}
		if req.identifiers() == nil {
			return nil, false, errors.New("отсутствует список inn_list")
		}
		return req.identifiers(), req.Deduplicate, nil
	}

	maxBytes := int64(s.cfg.Server.MaxUploadSizeMB) << 20
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		return nil, false, errors.New("не удалось разобрать форму")
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		return nil, false, errors.New("не удалось получить файл из формы")
	}
	defer file.Close()

	data, err := source.NewReaderSource(file).Fetch()
	if err != nil {
		return nil, false, err
	}
	identifiers, err := parser.NewListParser().Parse(data)
	if err != nil {
		return nil, false, err
	}
	deduplicate, _ := strconv.ParseBool(r.FormValue("deduplicate"))
	return identifiers, deduplicate, nil
}

func (s *Server) handleGetBatch(w http.ResponseWriter, r *http.Request) {
	task, err := s.deps.Tasks.GetTask(chi.URLParam(r, "taskID"))
	if err != nil {
		writeError(w, http.StatusNotFound, "Задача не найдена")
		return
	}
	writeJSON(w, http.StatusOK, newTaskResponse(task))
}

func (s *Server) handleBatchResult(w http.ResponseWriter, r *http.Request) {
	task, ok := s.finishedTask(w, r)
	if !ok {
		return
	}

	page, pageSize, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	outcomes := task.Result.Outcomes
	totalItems := len(outcomes)
	start := min((page-1)*pageSize, totalItems)
	end := min(start+pageSize, totalItems)

	writeJSON(w, http.StatusOK, ResultResponse{
		Pagination: Pagination{
			CurrentPage: page,
			PageSize:    pageSize,
			TotalItems:  totalItems,
			TotalPages:  (totalItems + pageSize - 1) / pageSize,
		},
		Status:    task.Status,
		Success:   task.Result.SucceededOverall,
		Error:     task.Result.FatalError,
		ErrorKind: task.Result.FatalKind,
		Summary:   *task.Summary,
		Data:      outcomes[start:end],
	})
}

func (s *Server) handleBatchExport(w http.ResponseWriter, r *http.Request) {
	task, ok := s.finishedTask(w, r)
	if !ok {
		return
	}

	exp, err := exporter.ForFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	setAttachment(w, exp, "bankrot_"+shortID(task.ID))
	if err := exp.Export(w, task.Result.Outcomes); err != nil {
		s.log.ErrorContext(r.Context(), "Ошибка выгрузки результата задачи", "task_id", task.ID, "error", err)
	}
}

func (s *Server) handleCancelBatch(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")
	if err := s.deps.Tasks.CancelTask(taskID); err != nil {
		writeError(w, http.StatusNotFound, "Задача не найдена")
		return
	}
	task, err := s.deps.Tasks.GetTask(taskID)
	if err != nil {
		writeError(w, http.StatusNotFound, "Задача не найдена")
		return
	}
	s.log.InfoContext(r.Context(), "Запрошена отмена задачи", "task_id", taskID, "status", task.Status)
	writeJSON(w, http.StatusAccepted, newTaskResponse(task))
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Snapshot.Load())
}

// finishedTask возвращает завершенную задачу с результатом или пишет ответ с ошибкой.
func (s *Server) finishedTask(w http.ResponseWriter, r *http.Request) (Task, bool) {
	task, err := s.deps.Tasks.GetTask(chi.URLParam(r, "taskID"))
	if err != nil {
		writeError(w, http.StatusNotFound, "Задача не найдена")
		return Task{}, false
	}
	if !task.Status.Finished() || task.Result == nil {
		writeError(w, http.StatusBadRequest, "Задача не завершена")
		return Task{}, false
	}
	return task, true
}

func parsePagination(r *http.Request) (int, int, error) {
	page, pageSize := 1, defaultPageSize
	if v := r.URL.Query().Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return 0, 0, fmt.Errorf("недопустимый номер страницы: %s", v)
		}
		page = n
	}
	if v := r.URL.Query().Get("page_size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxPageSize {
			return 0, 0, fmt.Errorf("page_size должен быть от 1 до %d", maxPageSize)
		}
		pageSize = n
	}
	return page, pageSize, nil
}

func setAttachment(w http.ResponseWriter, exp ports.Exporter, name string) {
	w.Header().Set("Content-Type", exp.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.%s"`, name, exp.Extension()))
}

func shortID(id string) string {
	id = strings.ReplaceAll(id, "-", "")
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
