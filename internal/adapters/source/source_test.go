package source

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileSource(t *testing.T) {
	t.Run("пустой путь", func(t *testing.T) {
		_, err := NewFileSource().Fetch()
		require.Error(t, err)
		assert.Equal(t, "не указан путь к файлу", err.Error())

		_, err = NewFileSource("").Fetch()
		assert.Error(t, err)
	})

	t.Run("несуществующий файл", func(t *testing.T) {
		_, err := NewFileSource(filepath.Join(t.TempDir(), "missing.txt")).Fetch()
		assert.Error(t, err)
	})

	t.Run("несколько файлов", func(t *testing.T) {
		dir := t.TempDir()
		a := filepath.Join(dir, "a.txt")
		b := filepath.Join(dir, "b.txt")
		require.NoError(t, os.WriteFile(a, []byte("\xEF\xBB\xBF7707083893"), 0o644))
		require.NoError(t, os.WriteFile(b, []byte("500100732259\n"), 0o644))

		data, err := NewFileSource(a, b).Fetch()
		require.NoError(t, err)
		assert.Equal(t, "7707083893\n500100732259\n\n", string(data))
	})
}

func TestReaderSource(t *testing.T) {
	t.Run("читает поток один раз", func(t *testing.T) {
		s := NewReaderSource(strings.NewReader("7707083893"))
		data, err := s.Fetch()
		require.NoError(t, err)
		assert.Equal(t, "7707083893", string(data))

		_, err = s.Fetch()
		assert.Error(t, err)
	})

	t.Run("nil", func(t *testing.T) {
		_, err := NewReaderSource(nil).Fetch()
		assert.Error(t, err)
	})

	t.Run("слишком большой поток", func(t *testing.T) {
		big := bytes.Repeat([]byte("1"), MaxReaderSize+1)
		_, err := NewReaderSource(bytes.NewReader(big)).Fetch()
		assert.Error(t, err)
	})
}
