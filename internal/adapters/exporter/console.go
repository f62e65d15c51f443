package exporter

import (
	"fmt"
	"io"
	"strconv"

	"bankrot-parser/internal/domain"
	"bankrot-parser/internal/ports"
)

// Метки статуса банкротства в отчетах.
const (
	LabelBankrupt = "БАНКРОТ"
	LabelClean    = "Чистый"
	LabelError    = "Ошибка"
)

// StatusLabel возвращает метку статуса для результата по ИНН.
func StatusLabel(o domain.ItemOutcome) string {
	switch {
	case o.HasError():
		return LabelError
	case o.IsConfirmed:
		return LabelBankrupt
	default:
		return LabelClean
	}
}

// BulkTable — таблица результатов пакетной проверки для терминала и чата.
var BulkTable = Table{Columns: []Column{
	{Title: "ИНН", Width: 12},
	{Title: "Статус", Width: 8},
	{Title: "Дел", Width: 4},
	{Title: "Ошибка", Width: 36},
}}

// BulkRows преобразует результаты в строки таблицы BulkTable.
func BulkRows(outcomes []domain.ItemOutcome) [][]string {
	rows := make([][]string, 0, len(outcomes))
	for _, o := range outcomes {
		rows = append(rows, []string{o.Identifier, StatusLabel(o), strconv.Itoa(len(o.Records)), o.Error})
	}
	return rows
}

// ConsoleExporter реализует интерфейс Exporter для вывода таблицы в терминал.
type ConsoleExporter struct{}

// NewConsoleExporter создает новый экземпляр ConsoleExporter.
func NewConsoleExporter() ports.Exporter {
	return &ConsoleExporter{}
}

// Export выводит таблицу результатов и подтвержденные дела.
func (e *ConsoleExporter) Export(w io.Writer, outcomes []domain.ItemOutcome) error {
	if len(outcomes) == 0 {
		_, err := fmt.Fprintln(w, "Нет результатов.")
		return err
	}
	if err := BulkTable.Render(w, BulkRows(outcomes)); err != nil {
		return err
	}

	var cases []domain.CaseRecord
	for _, o := range outcomes {
		cases = append(cases, o.Records...)
	}
	if len(cases) == 0 {
		return nil
	}
	if _, err := fmt.Fprintf(w, "\nНайдено дел: %d\n", len(cases)); err != nil {
		return err
	}
	return e.ExportCases(w, cases)
}

// ExportCases выводит таблицу дел.
func (e *ConsoleExporter) ExportCases(w io.Writer, records []domain.CaseRecord) error {
	t := Table{Columns: []Column{
		{Title: "Номер дела", Width: 16},
		{Title: "Должник", Width: 28},
		{Title: "ИНН", Width: 12},
		{Title: "Статус", Width: 18},
		{Title: "Обновлено", Width: 10},
	}}
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, []string{r.CaseNumber, r.DebtorName, r.INN, r.Status, r.LastUpdate})
	}
	return t.Render(w, rows)
}

// ContentType возвращает MIME-тип вывода.
func (e *ConsoleExporter) ContentType() string { return "text/plain; charset=utf-8" }

// Extension возвращает расширение файла.
func (e *ConsoleExporter) Extension() string { return "txt" }
