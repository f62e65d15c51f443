package services

import (
	"strings"

	"bankrot-parser/internal/domain"
)

// Summarize подсчитывает подтвержденные, чистые и ошибочные результаты.
// Каждый результат попадает ровно в одну группу.
func Summarize(outcomes []domain.ItemOutcome) domain.Summary {
	s := domain.Summary{TotalUnique: len(outcomes)}
	for _, o := range outcomes {
		switch {
		case o.HasError():
			s.ErrorCount++
		case o.IsConfirmed:
			s.ConfirmedCount++
		default:
			s.CleanCount++
		}
	}
	return s
}

// SummarizeInput дополняет сводку сведениями об исходном списке,
// из которого вызывающая сторона удалила дубликаты.
func SummarizeInput(original []string, outcomes []domain.ItemOutcome) domain.Summary {
	s := Summarize(outcomes)
	s.TotalOriginal = len(original)
	s.TotalUnique = len(Deduplicate(original))
	s.DuplicatesRemoved = s.TotalOriginal - s.TotalUnique
	return s
}

// Deduplicate удаляет повторы после обрезки пробелов, сохраняя порядок первых вхождений.
// Пустые строки сохраняются как есть, чтобы валидатор сообщил о них.
func Deduplicate(identifiers []string) []string {
	seen := make(map[string]struct{}, len(identifiers))
	unique := make([]string, 0, len(identifiers))
	for _, raw := range identifiers {
		key := strings.TrimSpace(raw)
		if key == "" {
			unique = append(unique, raw)
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		unique = append(unique, key)
	}
	return unique
}
