// Package browser реализует сессию с реестром поверх сервиса рендеринга страниц.
// Сервис рендеринга управляет браузером, проходит CAPTCHA и возвращает
// карточки результатов, а этот пакет преобразует их в записи о делах.
package browser

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/xerrors"

	"bankrot-parser/internal/domain"
	"bankrot-parser/internal/ports"
)

// DefaultStartURL — стартовая страница реестра.
const DefaultStartURL = "https://bankrot.fedresurs.ru/"

// MaxPages ограничивает число догрузок результатов одного запроса.
const MaxPages = 50

// Коды ошибок сервиса рендеринга.
const (
	codeBlocked        = "blocked"
	codeTimeout        = "timeout"
	codeCaptcha        = "captcha"
	codeUnexpectedPage = "unexpected_page"
	codeSessionClosed  = "session_closed"
)

// Config хранит параметры подключения к сервису рендеринга.
type Config struct {
	BaseURL        string
	APIKey         string
	StartURL       string
	UserAgent      string
	RequestTimeout time.Duration
}

// Option — функциональная опция для настройки Provider.
type Option func(*Provider)

// WithHTTPClient подменяет HTTP-клиент.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) {
		if c != nil {
			p.httpClient = c
		}
	}
}

// WithLogger устанавливает логгер.
func WithLogger(l *slog.Logger) Option {
	return func(p *Provider) {
		if l != nil {
			p.log = l
		}
	}
}

// WithClock подменяет часы, по которым проставляется дата обновления.
func WithClock(c clockwork.Clock) Option {
	return func(p *Provider) {
		if c != nil {
			p.clock = c
		}
	}
}

// Provider открывает сессии в сервисе рендеринга.
type Provider struct {
	cfg        Config
	httpClient *http.Client
	clock      clockwork.Clock
	log        *slog.Logger
}

// NewProvider создает Provider.
func NewProvider(cfg Config, opts ...Option) *Provider {
	if cfg.StartURL == "" {
		cfg.StartURL = DefaultStartURL
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 60 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	p := &Provider{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.RequestTimeout},
		clock:      clockwork.NewRealClock(),
		log:        slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

type openRequest struct {
	StartURL  string `json:"start_url"`
	UserAgent string `json:"user_agent,omitempty"`
}

type openResponse struct {
	SessionID string `json:"session_id"`
}

type searchRequest struct {
	Type      string `json:"type"`
	Query     string `json:"query"`
	Region    string `json:"region"`
	PageToken string `json:"page_token,omitempty"`
}

type searchResponse struct {
	Success       bool   `json:"success"`
	Cards         []Card `json:"cards"`
	NextPageToken string `json:"next_page_token,omitempty"`
	ErrorCode     string `json:"error_code,omitempty"`
	Error         string `json:"error,omitempty"`
}

// Open запускает браузер и открывает стартовую страницу реестра.
func (p *Provider) Open(ctx context.Context) (ports.Session, error) {
	var resp openResponse
	status, err := p.do(ctx, http.MethodPost, "/sessions", openRequest{StartURL: p.cfg.StartURL, UserAgent: p.cfg.UserAgent}, &resp)
	if err != nil {
		return nil, xerrors.Errorf("open session: %w", err)
	}
	if status != http.StatusCreated && status != http.StatusOK {
		return nil, xerrors.Errorf("open session: unexpected status code: %d", status)
	}
	if resp.SessionID == "" {
		return nil, xerrors.New("open session: empty session id")
	}

	p.log.InfoContext(ctx, "Browser session opened", "session_id", resp.SessionID, "start_url", p.cfg.StartURL)
	return &Session{provider: p, id: resp.SessionID}, nil
}

// Session — открытая сессия браузера.
type Session struct {
	provider *Provider
	id       string
}

// ID возвращает идентификатор сессии в сервисе рендеринга.
func (s *Session) ID() string {
	return s.id
}

// Fetch выполняет поисковый запрос и догружает все страницы результатов.
func (s *Session) Fetch(ctx context.Context, q domain.SearchQuery) ([]domain.CaseRecord, error) {
	p := s.provider
	path := "/sessions/" + url.PathEscape(s.id) + "/search"
	req := searchRequest{Type: string(q.Kind), Query: q.Text, Region: q.Region}

	var records []domain.CaseRecord
	for page := 0; page < MaxPages; page++ {
		var resp searchResponse
		status, err := p.do(ctx, http.MethodPost, path, req, &resp)
		if err != nil {
			return nil, classifyTransport(ctx, err)
		}
		switch {
		case status == http.StatusNotFound || status == http.StatusGone:
			return nil, xerrors.Errorf("сессия %s не найдена: %w", s.id, domain.ErrSessionUnusable)
		case status != http.StatusOK:
			return nil, xerrors.Errorf("сервис рендеринга вернул код %d: %w", status, domain.ErrUnexpectedPage)
		case !resp.Success:
			return nil, classifyCode(resp.ErrorCode, resp.Error)
		}

		now := p.clock.Now()
		for _, c := range resp.Cards {
			records = append(records, normalizeCard(c, q, now))
		}

		if resp.NextPageToken == "" {
			break
		}
		req.PageToken = resp.NextPageToken
		p.log.DebugContext(ctx, "Loading more results", "session_id", s.id, "page", page+1, "found", len(records))
	}

	if records == nil {
		records = []domain.CaseRecord{}
	}
	return records, nil
}

// Close закрывает браузер.
func (s *Session) Close(ctx context.Context) error {
	status, err := s.provider.do(ctx, http.MethodDelete, "/sessions/"+url.PathEscape(s.id), nil, nil)
	if err != nil {
		return xerrors.Errorf("close session %s: %w", s.id, err)
	}
	if status != http.StatusNoContent && status != http.StatusOK && status != http.StatusNotFound {
		return xerrors.Errorf("close session %s: unexpected status code: %d", s.id, status)
	}
	s.provider.log.InfoContext(ctx, "Browser session closed", "session_id", s.id)
	return nil
}

// ID возвращает адрес экземпляра сервиса рендеринга.
func (p *Provider) ID() string {
	return p.cfg.BaseURL
}

// Health проверяет доступность сервиса рендеринга.
func (p *Provider) Health(ctx context.Context) error {
	status, err := p.do(ctx, http.MethodGet, "/health", nil, nil)
	if err != nil {
		return xerrors.Errorf("health check %s: %w", p.cfg.BaseURL, err)
	}
	if status != http.StatusOK {
		return xerrors.Errorf("health check %s: unexpected status code: %d", p.cfg.BaseURL, status)
	}
	return nil
}

// do выполняет JSON-запрос. Тело ответа декодируется в out, если out не nil
// и код ответа 2xx.
func (p *Provider) do(ctx context.Context, method, path string, in, out any) (int, error) {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return 0, fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.cfg.BaseURL+path, body)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if p.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, xerrors.Errorf("failed to decode response: %w", domain.ErrUnexpectedPage)
		}
	}
	return resp.StatusCode, nil
}

func classifyCode(code, message string) error {
	if message == "" {
		message = "ошибка сервиса рендеринга"
	}
	switch code {
	case codeBlocked:
		return xerrors.Errorf("%s: %w", message, domain.ErrAccessBlocked)
	case codeTimeout:
		return xerrors.Errorf("%s: %w", message, domain.ErrElementTimeout)
	case codeCaptcha:
		return xerrors.Errorf("%s: %w", message, domain.ErrCaptchaUnresolved)
	case codeSessionClosed:
		return xerrors.Errorf("%s: %w", message, domain.ErrSessionUnusable)
	case codeUnexpectedPage:
		return xerrors.Errorf("%s: %w", message, domain.ErrUnexpectedPage)
	default:
		return xerrors.New(message)
	}
}

// classifyTransport отделяет таймаут одного запроса от недоступности сервиса.
func classifyTransport(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return xerrors.Errorf("search cancelled: %w", ctx.Err())
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return xerrors.Errorf("таймаут запроса к сервису рендеринга: %w", domain.ErrElementTimeout)
	}
	if errors.Is(err, domain.ErrUnexpectedPage) {
		return err
	}
	return xerrors.Errorf("сервис рендеринга недоступен: %v: %w", err, domain.ErrSessionUnusable)
}
