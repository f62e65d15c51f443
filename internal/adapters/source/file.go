package source

import (
	"bytes"
	"fmt"
	"os"

	"bankrot-parser/internal/ports"
)

// FileSource реализует интерфейс DataSource для чтения списков ИНН из файлов,
// указанных в командной строке. Содержимое файлов объединяется по порядку.
type FileSource struct {
	paths []string
}

// NewFileSource создает новый экземпляр FileSource.
func NewFileSource(paths ...string) ports.DataSource {
	return &FileSource{paths: paths}
}

// Fetch читает все файлы и возвращает их содержимое, разделенное переводом строки.
func (s *FileSource) Fetch() ([]byte, error) {
	if len(s.paths) == 0 {
		return nil, fmt.Errorf("не указан путь к файлу")
	}

	var buf bytes.Buffer
	for _, path := range s.paths {
		if path == "" {
			return nil, fmt.Errorf("не указан путь к файлу")
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read file %s: %w", path, err)
		}
		buf.Write(bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF}))
		buf.WriteByte('\n')
	}

	return buf.Bytes(), nil
}
