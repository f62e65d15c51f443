package exporter

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"bankrot-parser/internal/domain"
	"bankrot-parser/internal/ports"
)

func sampleOutcomes() []domain.ItemOutcome {
	return []domain.ItemOutcome{
		domain.NewFetchSuccess("7707083893", []domain.CaseRecord{{
			CaseNumber: "А40-123/2024",
			DebtorName: `ООО "Ромашка"`,
			INN:        "7707083893",
			Status:     "Активное",
			LastUpdate: "15.03.2024",
		}}),
		domain.NewFetchSuccess("500100732259", nil),
		domain.NewValidationFailure("bad", "ИНН должен содержать 10 или 12 цифр"),
	}
}

func TestStatusLabel(t *testing.T) {
	outcomes := sampleOutcomes()
	assert.Equal(t, LabelBankrupt, StatusLabel(outcomes[0]))
	assert.Equal(t, LabelClean, StatusLabel(outcomes[1]))
	assert.Equal(t, LabelError, StatusLabel(outcomes[2]))
}

func TestCSVExporter(t *testing.T) {
	t.Run("Export пишет BOM, заголовок и строки в кавычках", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, NewCSVExporter().Export(&buf, sampleOutcomes()))

		out := buf.String()
		require.True(t, strings.HasPrefix(out, "\ufeff"))
		lines := strings.Split(strings.TrimPrefix(out, "\ufeff"), "\n")
		require.Len(t, lines, 4)
		assert.Equal(t, "ИНН;Статус банкротства;Количество дел;Ошибка", lines[0])
		assert.Equal(t, `"7707083893";"БАНКРОТ";"1";""`, lines[1])
		assert.Equal(t, `"500100732259";"Чистый";"0";""`, lines[2])
		assert.Equal(t, `"bad";"Ошибка";"0";"ИНН должен содержать 10 или 12 цифр"`, lines[3])
	})

	t.Run("ExportCases экранирует кавычки", func(t *testing.T) {
		var buf bytes.Buffer
		exp := NewCSVExporter().(ports.CaseExporter)
		require.NoError(t, exp.ExportCases(&buf, sampleOutcomes()[0].Records))

		lines := strings.Split(strings.TrimPrefix(buf.String(), "\ufeff"), "\n")
		require.Len(t, lines, 2)
		assert.True(t, strings.HasPrefix(lines[0], "Номер дела;Должник;ИНН"))
		assert.Contains(t, lines[1], `"ООО ""Ромашка"""`)
		assert.Equal(t, 14, strings.Count(lines[1], ";")+1)
	})

	t.Run("пустой список дает только заголовок", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, NewCSVExporter().Export(&buf, nil))
		assert.Equal(t, "\ufeffИНН;Статус банкротства;Количество дел;Ошибка", buf.String())
	})
}

func TestJSONExporter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewJSONExporter().Export(&buf, sampleOutcomes()))

	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded, 3)
	assert.Equal(t, "7707083893", decoded[0]["inn"])
	assert.Equal(t, true, decoded[0]["is_bankrupt"])
	assert.Contains(t, buf.String(), `"Ромашка"`)

	buf.Reset()
	require.NoError(t, NewJSONExporter().Export(&buf, nil))
	assert.Equal(t, "[]\n", buf.String())
}

func TestXLSXExporter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewXLSXExporter().Export(&buf, sampleOutcomes()))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{sheetResults, sheetCases}, f.GetSheetList())

	rows, err := f.GetRows(sheetResults)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, "ИНН", rows[0][0])
	assert.Equal(t, "Дата проверки", rows[0][4])
	assert.Equal(t, []string{"7707083893", "БАНКРОТ", "1"}, rows[1][:3])

	cases, err := f.GetRows(sheetCases)
	require.NoError(t, err)
	require.Len(t, cases, 2)
	assert.Equal(t, "А40-123/2024", cases[1][0])
}

func TestConsoleExporter(t *testing.T) {
	t.Run("выводит таблицу результатов и дел", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, NewConsoleExporter().Export(&buf, sampleOutcomes()))

		out := buf.String()
		assert.Contains(t, out, "| ИНН")
		assert.Contains(t, out, "БАНКРОТ")
		assert.Contains(t, out, "Найдено дел: 1")
		assert.Contains(t, out, "А40-123/2024")
	})

	t.Run("пустой результат", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, NewConsoleExporter().Export(&buf, nil))
		assert.Equal(t, "Нет результатов.\n", buf.String())
	})
}

func TestTableWrap(t *testing.T) {
	table := Table{Columns: []Column{{Title: "A", Width: 5}, {Title: "B", Width: 3}}}
	var buf bytes.Buffer
	require.NoError(t, table.Render(&buf, [][]string{{"один два", "x"}}))

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "| A     | B   |", lines[0])
	assert.Equal(t, "| один  | x   |", lines[2])
	assert.Equal(t, "| два   |     |", lines[3])

	assert.Equal(t, []string{"abcde", "fg"}, wrap("abcdefg", 5))
	assert.Equal(t, []string{""}, wrap("", 5))
}

func TestForFormat(t *testing.T) {
	cases := map[string]string{"": "json", "JSON": "json", "csv": "csv", "xlsx": "xlsx", "table": "txt"}
	for format, ext := range cases {
		exp, err := ForFormat(format)
		require.NoError(t, err, format)
		assert.Equal(t, ext, exp.Extension())
	}

	_, err := ForFormat("pdf")
	assert.Error(t, err)
}
