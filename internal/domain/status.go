package domain

import "strings"

// Статусы дел, которые показываются пользователю.
const (
	CaseStatusActive     = "Активное"
	CaseStatusCompleted  = "Завершено"
	CaseStatusSuspended  = "Приостановлено"
	CaseStatusTerminated = "Прекращено"
)

// StatusKeywords — ключевые слова процедур, по которым определяется статус
// дела в тексте карточки. Порядок важен: побеждает первое совпадение.
var StatusKeywords = []string{
	"наблюдение",
	"конкурсное производство",
	"мировое соглашение",
	"завершено",
	"прекращено",
}

// StatusClass возвращает класс статуса для отображения.
// Неизвестные статусы считаются активными.
func StatusClass(status string) string {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case strings.ToLower(CaseStatusCompleted):
		return "status-completed"
	case strings.ToLower(CaseStatusSuspended):
		return "status-suspended"
	case strings.ToLower(CaseStatusTerminated):
		return "status-terminated"
	default:
		return "status-active"
	}
}

// StatusFromText определяет статус дела по свободному тексту карточки.
func StatusFromText(text string) string {
	lower := strings.ToLower(text)
	for _, keyword := range StatusKeywords {
		if strings.Contains(lower, keyword) {
			r := []rune(keyword)
			return strings.ToUpper(string(r[0])) + string(r[1:])
		}
	}
	return CaseStatusActive
}
