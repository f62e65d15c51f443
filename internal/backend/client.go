package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"bankrot-parser/internal/domain"
)

// Статусы задач пакетной проверки.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
	StatusCancelled  = "cancelled"
)

// ErrQueueFull возвращается, когда сервер не принял задачу из-за переполненной очереди.
var ErrQueueFull = errors.New("очередь задач на сервере заполнена")

// Client — клиент для взаимодействия с API сервера проверки.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient создает новый экземпляр Client.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// API-ответы
type StartBatchResponse struct {
	TaskID string `json:"task_id"`
	Status string `json:"status"`
	Total  int    `json:"total"`
}

// PaginationDTO представляет собой объект пагинации из ответа сервера.
type PaginationDTO struct {
	CurrentPage int `json:"current_page"`
	PageSize    int `json:"page_size"`
	TotalItems  int `json:"total_items"`
	TotalPages  int `json:"total_pages"`
}

type BatchStatusResponse struct {
	TaskID       string               `json:"task_id"`
	Status       string               `json:"status"`
	Total        int                  `json:"total"`
	Progress     domain.ProgressEvent `json:"progress"`
	Summary      *domain.Summary      `json:"summary,omitempty"`
	ErrorMessage string               `json:"error_message,omitempty"`
}

// Finished сообщает, что задача больше не изменится.
func (r BatchStatusResponse) Finished() bool {
	switch r.Status {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

type BatchResultResponse struct {
	Pagination PaginationDTO        `json:"pagination"`
	Status     string               `json:"status"`
	Success    bool                 `json:"success"`
	Error      string               `json:"error,omitempty"`
	ErrorKind  domain.ErrorKind     `json:"error_kind,omitempty"`
	Summary    domain.Summary       `json:"summary"`
	Data       []domain.ItemOutcome `json:"data"`
}

// Document представляет файл со списком ИНН для загрузки.
type Document struct {
	Name    string
	Content io.Reader
}

type apiError struct {
	Error string `json:"error"`
}

// StartBatch ставит в очередь проверку списка ИНН.
func (c *Client) StartBatch(ctx context.Context, identifiers []string, deduplicate bool) (*StartBatchResponse, error) {
	body, err := json.Marshal(map[string]any{
		"inn_list":    identifiers,
		"deduplicate": deduplicate,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	return c.startBatch(ctx, bytes.NewReader(body), "application/json")
}

// StartBatchFile загружает файл со списком ИНН и ставит его в очередь.
func (c *Client) StartBatchFile(ctx context.Context, doc Document, deduplicate bool) (*StartBatchResponse, error) {
	var b bytes.Buffer
	w := multipart.NewWriter(&b)

	fw, err := w.CreateFormFile("file", doc.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file for %s: %w", doc.Name, err)
	}
	if _, err = io.Copy(fw, doc.Content); err != nil {
		return nil, fmt.Errorf("failed to copy file content for %s: %w", doc.Name, err)
	}
	if err := w.WriteField("deduplicate", strconv.FormatBool(deduplicate)); err != nil {
		return nil, fmt.Errorf("failed to write form field: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	return c.startBatch(ctx, &b, w.FormDataContentType())
}

func (c *Client) startBatch(ctx context.Context, body io.Reader, contentType string) (*StartBatchResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/batches", body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusServiceUnavailable {
		return nil, ErrQueueFull
	}
	if resp.StatusCode != http.StatusAccepted {
		return nil, readError(resp)
	}

	var startResp StartBatchResponse
	if err := json.NewDecoder(resp.Body).Decode(&startResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &startResp, nil
}

// GetBatch получает статус задачи.
func (c *Client) GetBatch(ctx context.Context, taskID string) (*BatchStatusResponse, error) {
	var status BatchStatusResponse
	if err := c.getJSON(ctx, "/api/v1/batches/"+url.PathEscape(taskID), &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// GetBatchResult получает страницу результатов завершенной задачи.
func (c *Client) GetBatchResult(ctx context.Context, taskID string, page, pageSize int) (*BatchResultResponse, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("page_size", strconv.Itoa(pageSize))

	var result BatchResultResponse
	if err := c.getJSON(ctx, "/api/v1/batches/"+url.PathEscape(taskID)+"/result?"+q.Encode(), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetAllResults собирает все страницы результатов задачи.
func (c *Client) GetAllResults(ctx context.Context, taskID string, pageSize int) (*BatchResultResponse, error) {
	var all *BatchResultResponse
	for page := 1; ; page++ {
		result, err := c.GetBatchResult(ctx, taskID, page, pageSize)
		if err != nil {
			return nil, fmt.Errorf("failed to get task result page %d: %w", page, err)
		}
		if all == nil {
			all = result
		} else {
			all.Data = append(all.Data, result.Data...)
		}
		if page >= result.Pagination.TotalPages {
			break
		}
	}
	all.Pagination.CurrentPage = 1
	all.Pagination.PageSize = len(all.Data)
	all.Pagination.TotalPages = 1
	return all, nil
}

// Export скачивает результаты задачи в указанном формате.
func (c *Client) Export(ctx context.Context, taskID, format string) ([]byte, error) {
	q := url.Values{}
	q.Set("format", format)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/batches/"+url.PathEscape(taskID)+"/export?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, readError(resp)
	}
	return io.ReadAll(resp.Body)
}

// Cancel отменяет задачу.
func (c *Client) Cancel(ctx context.Context, taskID string) (*BatchStatusResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/api/v1/batches/"+url.PathEscape(taskID), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted && resp.StatusCode != http.StatusOK {
		return nil, readError(resp)
	}
	var status BatchStatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &status, nil
}

// WatchProgress читает события прогресса задачи по WebSocket и передает их в fn,
// пока ctx не отменен или сервер не закрыл соединение.
func (c *Client) WatchProgress(ctx context.Context, taskID string, fn func(domain.ProgressEvent)) error {
	wsURL := strings.Replace(c.baseURL, "http", "ws", 1) + "/api/v1/progress/ws?batch_id=" + url.QueryEscape(taskID)

	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("failed to dial progress stream: %w", err)
	}
	defer conn.CloseNow()

	for {
		var event domain.ProgressEvent
		if err := wsjson.Read(ctx, conn, &event); err != nil {
			if ctx.Err() != nil || websocket.CloseStatus(err) == websocket.StatusNormalClosure {
				return nil
			}
			return fmt.Errorf("failed to read progress event: %w", err)
		}
		fn(event)
	}
}

func (c *Client) getJSON(ctx context.Context, path string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return readError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func readError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var apiErr apiError
	if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
		return fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, apiErr.Error)
	}
	return fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
}
