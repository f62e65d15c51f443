package browser

import (
	"regexp"
	"strings"
	"time"

	"bankrot-parser/internal/domain"
)

const (
	// DefaultCourt подставляется, когда карточка не содержит названия суда.
	DefaultCourt = "Арбитражный суд"
	// UnknownCaseNumber подставляется, когда номер дела не найден в тексте.
	UnknownCaseNumber = "Не указан"
	// DateLayout — формат дат в карточках реестра.
	DateLayout = "02.01.2006"
)

var (
	caseNumberRegexp = regexp.MustCompile(`А\d+-\d+/\d{4}`)
	innRegexp        = regexp.MustCompile(`\b\d{10,12}\b`)
)

// Card — карточка результата поиска в том виде, в каком ее отдает сервис рендеринга.
type Card struct {
	Text       string `json:"text"`
	Name       string `json:"name,omitempty"`
	Address    string `json:"address,omitempty"`
	OGRN       string `json:"ogrn,omitempty"`
	Status     string `json:"status,omitempty"`
	LastUpdate string `json:"last_update,omitempty"`
	Manager    string `json:"manager,omitempty"`
	Court      string `json:"court,omitempty"`
	Judge      string `json:"judge,omitempty"`
	Category   string `json:"category,omitempty"`
	OpenDate   string `json:"open_date,omitempty"`
	DebtAmount string `json:"debt_amount,omitempty"`
}

// normalizeCard преобразует карточку в запись о деле.
func normalizeCard(c Card, q domain.SearchQuery, now time.Time) domain.CaseRecord {
	rec := domain.CaseRecord{
		CaseNumber: UnknownCaseNumber,
		DebtorName: strings.TrimSpace(c.Name),
		Address:    strings.TrimSpace(c.Address),
		OGRN:       strings.TrimSpace(c.OGRN),
		Status:     strings.TrimSpace(c.Status),
		Court:      strings.TrimSpace(c.Court),
		Judge:      strings.TrimSpace(c.Judge),
		Manager:    strings.TrimSpace(c.Manager),
		Category:   strings.TrimSpace(c.Category),
		OpenDate:   strings.TrimSpace(c.OpenDate),
		DebtAmount: strings.TrimSpace(c.DebtAmount),
		LastUpdate: strings.TrimSpace(c.LastUpdate),
		Region:     q.Region,
	}

	if m := caseNumberRegexp.FindString(c.Text); m != "" {
		rec.CaseNumber = m
	}
	if m := innRegexp.FindString(c.Text); m != "" {
		rec.INN = m
	}
	if rec.DebtorName == "" {
		rec.DebtorName = q.Text
	}
	if rec.Status == "" {
		rec.Status = domain.StatusFromText(c.Text)
	}
	if rec.Court == "" {
		rec.Court = DefaultCourt
	}
	if rec.LastUpdate == "" {
		rec.LastUpdate = now.Format(DateLayout)
	}
	return rec
}
