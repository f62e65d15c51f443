package exporter

import (
	"encoding/json"
	"io"

	"bankrot-parser/internal/domain"
	"bankrot-parser/internal/ports"
)

// JSONExporter пишет результаты в виде отформатированного JSON-массива.
type JSONExporter struct{}

// NewJSONExporter создает новый экземпляр JSONExporter.
func NewJSONExporter() ports.Exporter {
	return &JSONExporter{}
}

// Export пишет массив результатов по ИНН.
func (e *JSONExporter) Export(w io.Writer, outcomes []domain.ItemOutcome) error {
	if outcomes == nil {
		outcomes = []domain.ItemOutcome{}
	}
	return encodeIndented(w, outcomes)
}

// ExportCases пишет массив дел.
func (e *JSONExporter) ExportCases(w io.Writer, records []domain.CaseRecord) error {
	if records == nil {
		records = []domain.CaseRecord{}
	}
	return encodeIndented(w, records)
}

// ContentType возвращает MIME-тип JSON.
func (e *JSONExporter) ContentType() string { return "application/json" }

// Extension возвращает расширение файла.
func (e *JSONExporter) Extension() string { return "json" }

func encodeIndented(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
