package exporter

import (
	"io"
	"strings"

	"github.com/mattn/go-runewidth"
)

// Column описывает колонку текстовой таблицы.
type Column struct {
	Title string
	Width int
}

// Table выводит моноширинную таблицу с переносом длинных значений по словам.
type Table struct {
	Columns []Column
}

// Render записывает таблицу в w.
func (t Table) Render(w io.Writer, rows [][]string) error {
	var sb strings.Builder

	header := make([]string, len(t.Columns))
	sep := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		header[i] = c.Title
		sep[i] = strings.Repeat("-", c.Width+2)
	}
	t.writeLine(&sb, header)
	sb.WriteString("|" + strings.Join(sep, "|") + "|\n")

	for _, row := range rows {
		cells := make([][]string, len(t.Columns))
		height := 1
		for i, c := range t.Columns {
			value := ""
			if i < len(row) {
				value = strings.Join(strings.Fields(strings.ToValidUTF8(row[i], "")), " ")
			}
			cells[i] = wrap(value, c.Width)
			height = max(height, len(cells[i]))
		}
		for line := 0; line < height; line++ {
			parts := make([]string, len(t.Columns))
			for i := range t.Columns {
				if line < len(cells[i]) {
					parts[i] = cells[i][line]
				}
			}
			t.writeLine(&sb, parts)
		}
	}

	_, err := io.WriteString(w, sb.String())
	return err
}

func (t Table) writeLine(sb *strings.Builder, parts []string) {
	for i, c := range t.Columns {
		sb.WriteString("| ")
		sb.WriteString(runewidth.FillRight(runewidth.Truncate(parts[i], c.Width, ""), c.Width))
		sb.WriteString(" ")
	}
	sb.WriteString("|\n")
}

// wrap разбивает строку на строки шириной не более width, перенося по словам.
// Слово длиннее width разрезается.
func wrap(s string, width int) []string {
	if width <= 0 || runewidth.StringWidth(s) <= width {
		return []string{s}
	}

	var lines []string
	var current string
	for _, word := range strings.Fields(s) {
		if runewidth.StringWidth(word) > width {
			if current != "" {
				lines = append(lines, current)
				current = ""
			}
			chunks := strings.Split(runewidth.Wrap(word, width), "\n")
			lines = append(lines, chunks[:len(chunks)-1]...)
			current = chunks[len(chunks)-1]
			continue
		}
		switch {
		case current == "":
			current = word
		case runewidth.StringWidth(current)+1+runewidth.StringWidth(word) > width:
			lines = append(lines, current)
			current = word
		default:
			current += " " + word
		}
	}
	if current != "" || len(lines) == 0 {
		lines = append(lines, current)
	}
	return lines
}
