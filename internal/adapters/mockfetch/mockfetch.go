// Package mockfetch реализует офлайн-сессию реестра на основе YAML-фикстур.
// Используется в режиме разработки и в тестах: сетевых запросов не выполняет
// и детерминированно отвечает на одинаковые запросы.
package mockfetch

import (
	"context"
	"fmt"
	"hash/fnv"
	"os"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v2"

	"bankrot-parser/internal/domain"
	"bankrot-parser/internal/ports"
)

// Entry — заранее заданный ответ на запрос.
type Entry struct {
	Records []domain.CaseRecord `yaml:"records"`
	// Error — код ошибки: blocked, timeout, captcha, unexpected_page, session_closed.
	Error string `yaml:"error"`
}

// Fixtures — содержимое файла фикстур.
type Fixtures struct {
	// Entries сопоставляет текст запроса (без учета регистра) с ответом.
	Entries map[string]Entry `yaml:"entries"`
	// Synthetic включает генерацию дел для ИНН, отсутствующих в Entries.
	Synthetic bool `yaml:"synthetic"`
	// LatencyMillis — искусственная задержка каждого запроса.
	LatencyMillis int `yaml:"latency_ms"`
	// FailOpen заставляет Open возвращать ошибку.
	FailOpen bool `yaml:"fail_open"`
}

// Load читает фикстуры из YAML-файла.
func Load(path string) (*Fixtures, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("не удалось прочитать фикстуры %s: %w", path, err)
	}
	return Parse(data)
}

// Parse разбирает фикстуры из YAML.
func Parse(data []byte) (*Fixtures, error) {
	var f Fixtures
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("не удалось разобрать фикстуры: %w", err)
	}
	normalized := make(map[string]Entry, len(f.Entries))
	for k, v := range f.Entries {
		normalized[strings.ToLower(strings.TrimSpace(k))] = v
	}
	f.Entries = normalized
	return &f, nil
}

// Provider открывает офлайн-сессии.
type Provider struct {
	fixtures *Fixtures

	mu     sync.Mutex
	opened int
	closed int
}

// NewProvider создает Provider. nil-фикстуры означают пустой реестр.
func NewProvider(f *Fixtures) *Provider {
	if f == nil {
		f = &Fixtures{}
	}
	return &Provider{fixtures: f}
}

// Open открывает новую офлайн-сессию.
func (p *Provider) Open(ctx context.Context) (ports.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if p.fixtures.FailOpen {
		return nil, fmt.Errorf("не удалось запустить браузер: %w", domain.ErrSessionUnusable)
	}
	p.mu.Lock()
	p.opened++
	p.mu.Unlock()
	return &session{provider: p}, nil
}

// Stats возвращает число открытых и закрытых сессий.
func (p *Provider) Stats() (opened, closed int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.opened, p.closed
}

type session struct {
	provider *Provider
	closed   bool
}

func (s *session) Fetch(ctx context.Context, q domain.SearchQuery) ([]domain.CaseRecord, error) {
	if s.closed {
		return nil, fmt.Errorf("сессия закрыта: %w", domain.ErrSessionUnusable)
	}
	f := s.provider.fixtures

	if f.LatencyMillis > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(f.LatencyMillis) * time.Millisecond):
		}
	}

	key := strings.ToLower(strings.TrimSpace(q.Text))
	if e, ok := f.Entries[key]; ok {
		if e.Error != "" {
			return nil, errorFor(e.Error)
		}
		return withRegion(e.Records, q.Region), nil
	}

	if f.Synthetic && q.Kind == domain.ByINN {
		return synthesize(q), nil
	}
	return []domain.CaseRecord{}, nil
}

func (s *session) Close(context.Context) error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.provider.mu.Lock()
	s.provider.closed++
	s.provider.mu.Unlock()
	return nil
}

func errorFor(code string) error {
	switch code {
	case "blocked":
		return fmt.Errorf("страница вернула 403: %w", domain.ErrAccessBlocked)
	case "timeout":
		return fmt.Errorf("поле поиска не появилось: %w", domain.ErrElementTimeout)
	case "captcha":
		return fmt.Errorf("сервис решения не ответил: %w", domain.ErrCaptchaUnresolved)
	case "unexpected_page":
		return fmt.Errorf("нет блока результатов: %w", domain.ErrUnexpectedPage)
	case "session_closed":
		return fmt.Errorf("браузер завершился: %w", domain.ErrSessionUnusable)
	default:
		return fmt.Errorf("%s", code)
	}
}

func withRegion(records []domain.CaseRecord, region string) []domain.CaseRecord {
	out := make([]domain.CaseRecord, len(records))
	for i, r := range records {
		if r.Region == "" {
			r.Region = region
		}
		out[i] = r
	}
	return out
}

// synthesize детерминированно относит примерно каждый пятый ИНН к банкротам.
func synthesize(q domain.SearchQuery) []domain.CaseRecord {
	h := fnv.New32a()
	_, _ = h.Write([]byte(q.Text))
	sum := h.Sum32()
	if sum%5 != 0 {
		return []domain.CaseRecord{}
	}
	statuses := []string{"Наблюдение", "Конкурсное производство", domain.CaseStatusCompleted}
	return []domain.CaseRecord{{
		CaseNumber: fmt.Sprintf("А%d-%d/%d", 10+sum%80, 1000+sum%90000, 2015+sum%10),
		DebtorName: "Должник " + q.Text,
		INN:        q.Text,
		Status:     statuses[sum%uint32(len(statuses))],
		Court:      "Арбитражный суд",
		Region:     q.Region,
	}}
}
