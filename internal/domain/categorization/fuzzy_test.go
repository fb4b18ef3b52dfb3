package categorization

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatcher_Suggest(t *testing.T) {
	m := NewMatcher([]Category{
		mustCategory(t, "Supermercado", "mercadona", "carrefour"),
		mustCategory(t, "Restaurante", "restaurantes"),
		mustCategory(t, "Ocio", "cine"),
	})

	t.Run("typo", func(t *testing.T) {
		got := m.Suggest("MERCADOMA VALENCIA", 3)
		require.Len(t, got, 1)
		assert.Equal(t, "Supermercado", got[0].Category)
		assert.Equal(t, "mercadona", got[0].Keyword)
		assert.Equal(t, 88, got[0].Score)
	})

	t.Run("truncation", func(t *testing.T) {
		got := m.Suggest("RESTAURAN EL PUERTO", 3)
		require.NotEmpty(t, got)
		assert.Equal(t, "Restaurante", got[0].Category)
		assert.GreaterOrEqual(t, got[0].Score, 80)
	})

	t.Run("limit and ordering", func(t *testing.T) {
		got := m.Suggest("carrefur restaurant", 1)
		require.Len(t, got, 1)
		assert.Equal(t, "Restaurante", got[0].Category, "exact singular beats a one-letter typo")
	})

	t.Run("short words ignored", func(t *testing.T) {
		assert.Empty(t, m.Suggest("cin de", 3))
	})

	t.Run("nothing close", func(t *testing.T) {
		assert.Empty(t, m.Suggest("transferencia", 3))
		assert.Empty(t, m.Suggest("", 3))
	})
}

func TestFuzzyScore(t *testing.T) {
	assert.Equal(t, 100, fuzzyScore("lidl", "lidl"))
	assert.Equal(t, 88, fuzzyScore("mercadoma", "mercadona"))
	assert.Equal(t, 80, fuzzyScore("resta", "restaurantes"))
	assert.Less(t, fuzzyScore("abcd", "wxyz"), DefaultSuggestThreshold)
}
