package source

import (
	"fmt"
	"io"

	"bankrot-parser/internal/ports"
)

// MaxReaderSize ограничивает объем данных, читаемых из потока.
const MaxReaderSize = 10 << 20

// ReaderSource реализует интерфейс DataSource для чтения из потока:
// стандартного ввода, тела HTTP-запроса или документа Telegram.
// Поток читается один раз.
type ReaderSource struct {
	r    io.Reader
	read bool
}

// NewReaderSource создает новый экземпляр ReaderSource.
func NewReaderSource(r io.Reader) ports.DataSource {
	return &ReaderSource{r: r}
}

// Fetch читает поток до конца.
func (s *ReaderSource) Fetch() ([]byte, error) {
	if s.r == nil {
		return nil, fmt.Errorf("источник данных не задан")
	}
	if s.read {
		return nil, fmt.Errorf("поток уже прочитан")
	}
	s.read = true

	data, err := io.ReadAll(io.LimitReader(s.r, MaxReaderSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}
	if len(data) > MaxReaderSize {
		return nil, fmt.Errorf("объем данных превышает %d байт", MaxReaderSize)
	}
	return data, nil
}
