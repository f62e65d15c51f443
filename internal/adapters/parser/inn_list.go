package parser

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"unicode"

	"bankrot-parser/internal/ports"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ListParser разбирает список ИНН. Поддерживаются JSON-массив, JSON-объект
// с полем inn_list и простой текст, где ИНН разделены переводами строк,
// запятыми, точками с запятой или пробелами. Порядок и дубликаты сохраняются.
type ListParser struct{}

// NewListParser создает новый экземпляр ListParser.
func NewListParser() ports.Parser {
	return &ListParser{}
}

// Parse преобразует данные в список идентификаторов.
func (p *ListParser) Parse(data []byte) ([]string, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return []string{}, nil
	}

	switch trimmed[0] {
	case '[':
		return parseJSONArray(trimmed)
	case '{':
		var obj struct {
			INNList json.RawMessage `json:"inn_list"`
		}
		if err := json.Unmarshal(trimmed, &obj); err != nil {
			return nil, fmt.Errorf("failed to unmarshal json: %w", err)
		}
		if len(obj.INNList) == 0 {
			return nil, fmt.Errorf("в объекте отсутствует поле inn_list")
		}
		return parseJSONArray(obj.INNList)
	default:
		return parseText(string(trimmed)), nil
	}
}

// parseJSONArray принимает массив строк или чисел.
func parseJSONArray(data []byte) ([]string, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to unmarshal json: %w", err)
	}

	ids := make([]string, 0, len(raw))
	for i, item := range raw {
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			ids = append(ids, s)
			continue
		}
		var n json.Number
		if err := json.Unmarshal(item, &n); err == nil {
			ids = append(ids, n.String())
			continue
		}
		return nil, fmt.Errorf("элемент %d не является строкой или числом: %s", i, string(item))
	}
	return ids, nil
}

func parseText(text string) []string {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return r == ',' || r == ';' || unicode.IsSpace(r)
	})
	ids := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, `"'`)
		if f != "" {
			ids = append(ids, f)
		}
	}
	return ids
}
