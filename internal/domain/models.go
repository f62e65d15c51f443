package domain

import "strings"

// DefaultRegion — регион поиска по умолчанию, подставляется во все пакетные запросы.
const DefaultRegion = "Донецкая Народная Республика"

// QueryKind определяет тип поискового запроса к реестру.
type QueryKind string

const (
	ByDebtorName QueryKind = "debtor"
	ByCaseNumber QueryKind = "caseNumber"
	ByINN        QueryKind = "inn"
)

// Valid сообщает, является ли тип запроса одним из поддерживаемых.
func (k QueryKind) Valid() bool {
	switch k {
	case ByDebtorName, ByCaseNumber, ByINN:
		return true
	}
	return false
}

// SearchQuery представляет один запрос к реестру банкротств.
type SearchQuery struct {
	Kind   QueryKind `json:"type"`
	Text   string    `json:"query"`
	Region string    `json:"region,omitempty"`
}

// CacheKey возвращает ключ, по которому результат запроса хранится в кеше.
func (q SearchQuery) CacheKey() string {
	return string(q.Kind) + "|" + strings.ToLower(strings.TrimSpace(q.Text)) + "|" + q.Region
}

// CaseRecord представляет одно дело о банкротстве.
// Запись неизменяема после того, как ее вернул источник данных.
type CaseRecord struct {
	CaseNumber      string `json:"case_number" yaml:"case_number"`
	DebtorName      string `json:"debtor_name" yaml:"debtor_name"`
	INN             string `json:"inn,omitempty" yaml:"inn"`
	OGRN            string `json:"ogrn,omitempty" yaml:"ogrn"`
	Status          string `json:"status" yaml:"status"`
	Court           string `json:"court" yaml:"court"`
	Judge           string `json:"judge,omitempty" yaml:"judge"`
	Manager         string `json:"manager,omitempty" yaml:"manager"`
	OpenDate        string `json:"open_date,omitempty" yaml:"open_date"`
	DebtAmount      string `json:"debt_amount,omitempty" yaml:"debt_amount"`
	Region          string `json:"region,omitempty" yaml:"region"`
	Address         string `json:"address,omitempty" yaml:"address"`
	Category        string `json:"category,omitempty" yaml:"category"`
	LastUpdate      string `json:"last_update,omitempty" yaml:"last_update"`
	PublicationDate string `json:"publication_date,omitempty" yaml:"publication_date"`
}

// ValidationOutcome — результат проверки идентификатора.
type ValidationOutcome struct {
	IsValid bool   `json:"is_valid"`
	Message string `json:"message"`
}

// ErrorKind классифицирует ошибку, записанную в результат по одному элементу
// или в результат пакета целиком.
type ErrorKind string

const (
	ErrorKindNone       ErrorKind = ""
	ErrorKindValidation ErrorKind = "validation"
	ErrorKindFetch      ErrorKind = "fetch"
	ErrorKindFatal      ErrorKind = "fatal"
	ErrorKindCancelled  ErrorKind = "cancelled"
	ErrorKindBusy       ErrorKind = "busy"
)

// OutcomeState — явное состояние результата проверки одного ИНН.
// "clean" означает успешный запрос без найденных дел и отличается от "error".
type OutcomeState string

const (
	StateConfirmed OutcomeState = "confirmed"
	StateClean     OutcomeState = "clean"
	StateError     OutcomeState = "error"
)

// ItemOutcome — итог обработки одного идентификатора из пакета.
// Создается один раз, когда обработка идентификатора завершена, и далее не меняется.
type ItemOutcome struct {
	Identifier  string       `json:"inn"`
	IsConfirmed bool         `json:"is_bankrupt"`
	State       OutcomeState `json:"state"`
	Records     []CaseRecord `json:"cases"`
	Error       string       `json:"error,omitempty"`
	ErrorKind   ErrorKind    `json:"error_kind,omitempty"`
}

// HasError сообщает, записана ли в результат ошибка.
func (o ItemOutcome) HasError() bool {
	return o.Error != ""
}

// NewValidationFailure строит результат для идентификатора, не прошедшего проверку.
func NewValidationFailure(identifier, message string) ItemOutcome {
	return ItemOutcome{
		Identifier: identifier,
		State:      StateError,
		Records:    []CaseRecord{},
		Error:      message,
		ErrorKind:  ErrorKindValidation,
	}
}

// NewFetchFailure строит результат для идентификатора, запрос по которому завершился ошибкой.
func NewFetchFailure(identifier, message string) ItemOutcome {
	return ItemOutcome{
		Identifier: identifier,
		State:      StateError,
		Records:    []CaseRecord{},
		Error:      message,
		ErrorKind:  ErrorKindFetch,
	}
}

// NewFetchSuccess строит результат успешного запроса. Идентификатор считается
// подтвержденным, только если найдена хотя бы одна запись.
func NewFetchSuccess(identifier string, records []CaseRecord) ItemOutcome {
	if records == nil {
		records = []CaseRecord{}
	}
	state := StateClean
	if len(records) > 0 {
		state = StateConfirmed
	}
	return ItemOutcome{
		Identifier:  identifier,
		IsConfirmed: len(records) > 0,
		State:       state,
		Records:     records,
	}
}

// ProgressEvent — событие прогресса пакетной обработки.
// Не хранится: доставляется только текущим подписчикам.
type ProgressEvent struct {
	BatchID           string `json:"batch_id,omitempty"`
	Position          int    `json:"current"`
	Total             int    `json:"total"`
	CurrentIdentifier string `json:"current_inn"`
	Percentage        int    `json:"percentage"`
}

// BatchResult — итог пакетной обработки.
// Инвариант: len(Outcomes) == TotalProcessed.
type BatchResult struct {
	SucceededOverall bool          `json:"success"`
	Outcomes         []ItemOutcome `json:"results"`
	TotalProcessed   int           `json:"total_processed"`
	FatalError       string        `json:"error,omitempty"`
	FatalKind        ErrorKind     `json:"error_kind,omitempty"`
}

// Summary — сводка по результатам пакета.
type Summary struct {
	TotalOriginal     int `json:"total_original"`
	TotalUnique       int `json:"total_unique"`
	DuplicatesRemoved int `json:"duplicates_removed"`
	ConfirmedCount    int `json:"bankrupt_count"`
	CleanCount        int `json:"clean_count"`
	ErrorCount        int `json:"error_count"`
}

// SearchResult — ответ на одиночный поисковый запрос.
type SearchResult struct {
	Success    bool         `json:"success"`
	Records    []CaseRecord `json:"data"`
	Error      string       `json:"error,omitempty"`
	TotalFound int          `json:"total_found"`
}
