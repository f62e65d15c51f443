package exporter

import (
	"fmt"
	"strings"

	"bankrot-parser/internal/ports"
)

// Форматы выгрузки.
const (
	FormatJSON  = "json"
	FormatCSV   = "csv"
	FormatXLSX  = "xlsx"
	FormatTable = "table"
)

// ForFormat возвращает экспортер для формата. Пустой формат означает JSON.
func ForFormat(format string) (ports.Exporter, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", FormatJSON:
		return NewJSONExporter(), nil
	case FormatCSV:
		return NewCSVExporter(), nil
	case FormatXLSX, "excel":
		return NewXLSXExporter(), nil
	case FormatTable, "txt":
		return NewConsoleExporter(), nil
	default:
		return nil, fmt.Errorf("неизвестный формат выгрузки: %s", format)
	}
}
