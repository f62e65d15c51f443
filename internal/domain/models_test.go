package domain

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQueryKind_Valid(t *testing.T) {
	assert.True(t, ByINN.Valid())
	assert.True(t, ByDebtorName.Valid())
	assert.True(t, ByCaseNumber.Valid())
	assert.False(t, QueryKind("ogrn").Valid())
	assert.False(t, QueryKind("").Valid())
}

func TestSearchQuery_CacheKey(t *testing.T) {
	a := SearchQuery{Kind: ByDebtorName, Text: "  ООО Ромашка ", Region: DefaultRegion}
	b := SearchQuery{Kind: ByDebtorName, Text: "ооо ромашка", Region: DefaultRegion}
	c := SearchQuery{Kind: ByDebtorName, Text: "ооо ромашка", Region: "Москва"}

	assert.Equal(t, a.CacheKey(), b.CacheKey())
	assert.NotEqual(t, b.CacheKey(), c.CacheKey())
}

func TestItemOutcomeConstructors(t *testing.T) {
	t.Run("Ошибка проверки", func(t *testing.T) {
		o := NewValidationFailure("bad", "ИНН должен содержать 10 или 12 цифр")
		assert.False(t, o.IsConfirmed)
		assert.Equal(t, StateError, o.State)
		assert.Equal(t, ErrorKindValidation, o.ErrorKind)
		assert.NotNil(t, o.Records)
		assert.Empty(t, o.Records)
		assert.True(t, o.HasError())
	})

	t.Run("Ошибка запроса", func(t *testing.T) {
		o := NewFetchFailure("7707083893", "timeout")
		assert.Equal(t, ErrorKindFetch, o.ErrorKind)
		assert.Equal(t, "timeout", o.Error)
		assert.Empty(t, o.Records)
	})

	t.Run("Успешный запрос без дел", func(t *testing.T) {
		o := NewFetchSuccess("7707083893", nil)
		assert.False(t, o.IsConfirmed)
		assert.Equal(t, StateClean, o.State)
		assert.NotNil(t, o.Records)
		assert.False(t, o.HasError())
	})

	t.Run("Успешный запрос с делами", func(t *testing.T) {
		o := NewFetchSuccess("7707083893", []CaseRecord{{CaseNumber: "А40-1/2024"}})
		assert.True(t, o.IsConfirmed)
		assert.Equal(t, StateConfirmed, o.State)
		assert.Len(t, o.Records, 1)
	})
}

func TestIsFatal(t *testing.T) {
	assert.True(t, IsFatal(ErrSessionUnusable))
	assert.True(t, IsFatal(fmt.Errorf("search: %w", ErrSessionUnusable)))
	assert.False(t, IsFatal(ErrAccessBlocked))
	assert.False(t, IsFatal(nil))
}

func TestStatusClass(t *testing.T) {
	tests := map[string]string{
		"Активное":       "status-active",
		"завершено":      "status-completed",
		" Приостановлено": "status-suspended",
		"ПРЕКРАЩЕНО":     "status-terminated",
		"Наблюдение":     "status-active",
		"":               "status-active",
	}
	for status, want := range tests {
		t.Run(status, func(t *testing.T) {
			assert.Equal(t, want, StatusClass(status))
		})
	}
}

func TestStatusFromText(t *testing.T) {
	assert.Equal(t, "Наблюдение", StatusFromText("Введена процедура: НАБЛЮДЕНИЕ"))
	assert.Equal(t, "Конкурсное производство", StatusFromText("открыто конкурсное производство"))
	assert.Equal(t, CaseStatusActive, StatusFromText("дело принято к рассмотрению"))
}
