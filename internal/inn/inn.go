// Package inn проверяет структуру и контрольные суммы ИНН.
package inn

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"bankrot-parser/internal/domain"
)

// Сообщения о результате проверки.
const (
	MsgEmpty         = "ИНН не может быть пустым"
	MsgLength        = "ИНН должен содержать 10 или 12 цифр"
	MsgDigitsOnly    = "ИНН должен содержать только цифры"
	MsgChecksum      = "Некорректная контрольная сумма ИНН"
	MsgValidLegal    = "ИНН корректен (юридическое лицо)"
	MsgValidPersonal = "ИНН корректен (физическое лицо)"
)

// EntityKind — тип налогоплательщика, определяемый по длине ИНН.
type EntityKind int

const (
	Unknown EntityKind = iota
	LegalEntity
	Individual
)

var (
	weights10   = []int{2, 4, 10, 3, 5, 9, 4, 6, 8}
	weights12n1 = []int{7, 2, 4, 10, 3, 5, 9, 4, 6, 8}
	weights12n2 = []int{3, 7, 2, 4, 10, 3, 5, 9, 4, 6, 8}
)

// Validate проверяет ИНН. Функция не имеет побочных эффектов и определена для любой строки.
// Пробельные символы внутри строки игнорируются.
func Validate(raw string) domain.ValidationOutcome {
	clean := normalize(raw)
	if clean == "" {
		return domain.ValidationOutcome{Message: MsgEmpty}
	}

	if n := utf8.RuneCountInString(clean); n != 10 && n != 12 {
		return domain.ValidationOutcome{Message: MsgLength}
	}

	for _, r := range clean {
		if r < '0' || r > '9' {
			return domain.ValidationOutcome{Message: MsgDigitsOnly}
		}
	}

	switch len(clean) {
	case 10:
		if checksum(clean[:9], weights10) != digit(clean[9]) {
			return domain.ValidationOutcome{Message: MsgChecksum}
		}
		return domain.ValidationOutcome{IsValid: true, Message: MsgValidLegal}
	case 12:
		if checksum(clean[:10], weights12n1) != digit(clean[10]) ||
			checksum(clean[:11], weights12n2) != digit(clean[11]) {
			return domain.ValidationOutcome{Message: MsgChecksum}
		}
		return domain.ValidationOutcome{IsValid: true, Message: MsgValidPersonal}
	}
	return domain.ValidationOutcome{Message: MsgLength}
}

// IsValid — сокращение для Validate(raw).IsValid.
func IsValid(raw string) bool {
	return Validate(raw).IsValid
}

// Kind возвращает тип налогоплательщика для корректного ИНН.
func Kind(raw string) EntityKind {
	if !IsValid(raw) {
		return Unknown
	}
	if len(normalize(raw)) == 10 {
		return LegalEntity
	}
	return Individual
}

// CheckDigits дописывает контрольные цифры к префиксу из 9 или 10 цифр
// и возвращает полный ИНН. Для префикса другой длины или с нецифровыми
// символами возвращается пустая строка.
func CheckDigits(prefix string) string {
	for _, r := range prefix {
		if r < '0' || r > '9' {
			return ""
		}
	}
	switch len(prefix) {
	case 9:
		return prefix + string(rune('0'+checksum(prefix, weights10)))
	case 10:
		withFirst := prefix + string(rune('0'+checksum(prefix, weights12n1)))
		return withFirst + string(rune('0'+checksum(withFirst, weights12n2)))
	default:
		return ""
	}
}

func normalize(raw string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, raw)
}

func checksum(digits string, weights []int) int {
	sum := 0
	for i, w := range weights {
		sum += digit(digits[i]) * w
	}
	return sum % 11 % 10
}

func digit(b byte) int {
	return int(b - '0')
}
