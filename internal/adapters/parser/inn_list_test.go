package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListParser_Parse(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"пустой ввод", "  \n ", []string{}},
		{"JSON-массив строк", `["7707083893", "bad", "7707083893"]`, []string{"7707083893", "bad", "7707083893"}},
		{"JSON-массив чисел", `[7707083893, "500100732259"]`, []string{"7707083893", "500100732259"}},
		{"JSON-объект", `{"inn_list": ["7707083893"]}`, []string{"7707083893"}},
		{"текст по строкам", "7707083893\r\n500100732259\n\n", []string{"7707083893", "500100732259"}},
		{"текст с разделителями", `7707083893, 500100732259;"1234567894"`, []string{"7707083893", "500100732259", "1234567894"}},
		{"BOM", "\xEF\xBB\xBF7707083893\n", []string{"7707083893"}},
	}

	p := NewListParser()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := p.Parse([]byte(tt.in))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestListParser_ParseErrors(t *testing.T) {
	p := NewListParser()

	for name, in := range map[string]string{
		"битый JSON":       `["7707083893"`,
		"объект без поля":  `{"inns": []}`,
		"вложенный объект": `[{"inn": "7707083893"}]`,
		"inn_list строкой": `{"inn_list": "7707083893"}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := p.Parse([]byte(in))
			assert.Error(t, err)
		})
	}
}
