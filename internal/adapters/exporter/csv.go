package exporter

import (
	"bufio"
	"io"
	"strings"

	"bankrot-parser/internal/domain"
	"bankrot-parser/internal/ports"
)

const bom = "\ufeff"

var (
	bulkHeaders = []string{"ИНН", "Статус банкротства", "Количество дел", "Ошибка"}
	caseHeaders = []string{
		"Номер дела", "Должник", "ИНН", "ОГРН", "Статус", "Суд", "Судья", "Управляющий",
		"Дата открытия", "Сумма долга", "Регион", "Адрес", "Категория", "Последнее обновление",
	}
)

// CSVExporter пишет CSV с разделителем ";" и BOM, чтобы файл корректно
// открывался в Excel. Все значения заключаются в кавычки.
type CSVExporter struct{}

// NewCSVExporter создает новый экземпляр CSVExporter.
func NewCSVExporter() ports.Exporter {
	return &CSVExporter{}
}

// Export пишет результаты пакетной проверки.
func (e *CSVExporter) Export(w io.Writer, outcomes []domain.ItemOutcome) error {
	return writeCSV(w, bulkHeaders, BulkRows(outcomes))
}

// ExportCases пишет список дел.
func (e *CSVExporter) ExportCases(w io.Writer, records []domain.CaseRecord) error {
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, []string{
			r.CaseNumber, r.DebtorName, r.INN, r.OGRN, r.Status, r.Court, r.Judge, r.Manager,
			r.OpenDate, r.DebtAmount, r.Region, r.Address, r.Category, r.LastUpdate,
		})
	}
	return writeCSV(w, caseHeaders, rows)
}

// ContentType возвращает MIME-тип CSV.
func (e *CSVExporter) ContentType() string { return "text/csv; charset=utf-8" }

// Extension возвращает расширение файла.
func (e *CSVExporter) Extension() string { return "csv" }

func writeCSV(w io.Writer, headers []string, rows [][]string) error {
	bw := bufio.NewWriter(w)
	bw.WriteString(bom)
	bw.WriteString(strings.Join(headers, ";"))
	for _, row := range rows {
		bw.WriteByte('\n')
		for i, field := range row {
			if i > 0 {
				bw.WriteByte(';')
			}
			bw.WriteString(quote(field))
		}
	}
	return bw.Flush()
}

func quote(field string) string {
	return `"` + strings.ReplaceAll(field, `"`, `""`) + `"`
}
