package exporter

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"bankrot-parser/internal/domain"
	"bankrot-parser/internal/ports"
)

const (
	sheetResults = "Результаты"
	sheetCases   = "Дела"
)

// XLSXExporter пишет книгу Excel: лист с результатами по ИНН и лист с найденными делами.
type XLSXExporter struct {
	now func() time.Time
}

// NewXLSXExporter создает новый экземпляр XLSXExporter.
func NewXLSXExporter() ports.Exporter {
	return &XLSXExporter{now: time.Now}
}

// Export пишет книгу с результатами пакетной проверки.
func (e *XLSXExporter) Export(w io.Writer, outcomes []domain.ItemOutcome) (err error) {
	f := excelize.NewFile()
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close excel file: %w", cerr)
		}
	}()

	exportDate := e.now().Format("02.01.2006 15:04")
	rows := make([][]any, 0, len(outcomes))
	var cases []domain.CaseRecord
	for _, o := range outcomes {
		rows = append(rows, []any{o.Identifier, StatusLabel(o), len(o.Records), o.Error, exportDate})
		cases = append(cases, o.Records...)
	}

	headers := append(append([]string{}, bulkHeaders...), "Дата проверки")
	if err := writeSheet(f, sheetResults, headers, rows); err != nil {
		return err
	}
	if err := writeSheet(f, sheetCases, caseHeaders, caseRows(cases)); err != nil {
		return err
	}
	return finish(f, w)
}

// ExportCases пишет книгу со списком дел.
func (e *XLSXExporter) ExportCases(w io.Writer, records []domain.CaseRecord) (err error) {
	f := excelize.NewFile()
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close excel file: %w", cerr)
		}
	}()

	if err := writeSheet(f, sheetCases, caseHeaders, caseRows(records)); err != nil {
		return err
	}
	return finish(f, w)
}

// ContentType возвращает MIME-тип XLSX.
func (e *XLSXExporter) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

// Extension возвращает расширение файла.
func (e *XLSXExporter) Extension() string { return "xlsx" }

func caseRows(records []domain.CaseRecord) [][]any {
	rows := make([][]any, 0, len(records))
	for _, r := range records {
		rows = append(rows, []any{
			r.CaseNumber, r.DebtorName, r.INN, r.OGRN, r.Status, r.Court, r.Judge, r.Manager,
			r.OpenDate, r.DebtAmount, r.Region, r.Address, r.Category, r.LastUpdate,
		})
	}
	return rows
}

func writeSheet(f *excelize.File, name string, headers []string, rows [][]any) error {
	if _, err := f.NewSheet(name); err != nil {
		return fmt.Errorf("failed to create sheet %s: %w", name, err)
	}

	header := make([]any, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	if err := f.SetSheetRow(name, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(name, cell, &row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}
	return nil
}

func finish(f *excelize.File, w io.Writer) error {
	if idx, err := f.GetSheetIndex(sheetResults); err == nil && idx >= 0 {
		f.SetActiveSheet(idx)
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("failed to delete default sheet: %w", err)
	}
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write excel: %w", err)
	}
	return nil
}
