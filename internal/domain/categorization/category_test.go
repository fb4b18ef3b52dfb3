package categorization

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCategory(t *testing.T) {
	t.Run("trims and dedups keywords", func(t *testing.T) {
		c, err := NewCategory("  Supermercado ", TypeExpense, "mercadona", "Mercadona", " ", "lidl")
		require.NoError(t, err)
		assert.Equal(t, "Supermercado", c.Name)
		assert.Equal(t, []string{"mercadona", "lidl"}, c.Keywords)
		assert.NotEmpty(t, c.ID)
	})

	t.Run("requires a name", func(t *testing.T) {
		_, err := NewCategory("  ", TypeExpense)
		assert.ErrorIs(t, err, ErrEmptyName)
	})

	t.Run("requires a known type", func(t *testing.T) {
		_, err := NewCategory("Salario", CategoryType("savings"))
		assert.ErrorIs(t, err, ErrInvalidType)
	})
}

func TestCategory_Keywords(t *testing.T) {
	c, err := NewCategory("Café", TypeExpense, "starbucks")
	require.NoError(t, err)

	assert.Equal(t, []string{"Café", "starbucks"}, c.EffectiveKeywords())

	require.NoError(t, c.AddKeyword("Costa"))
	assert.ErrorIs(t, c.AddKeyword("COSTA"), ErrKeywordExists)
	assert.ErrorIs(t, c.AddKeyword(""), ErrEmptyKeyword)

	require.NoError(t, c.RemoveKeyword("STARBUCKS"))
	assert.Equal(t, []string{"Costa"}, c.Keywords)
	assert.ErrorIs(t, c.RemoveKeyword("tim hortons"), ErrKeywordNotFound)

	require.NoError(t, c.Rename("Cafeterías"))
	assert.Equal(t, []string{"Cafeterías", "Costa"}, c.EffectiveKeywords())
	assert.ErrorIs(t, c.Rename(""), ErrEmptyName)
}

func TestParseCategoryType(t *testing.T) {
	typ, err := ParseCategoryType("")
	require.NoError(t, err)
	assert.Equal(t, TypeExpense, typ)

	typ, err = ParseCategoryType(" INCOME ")
	require.NoError(t, err)
	assert.Equal(t, TypeIncome, typ)

	_, err = ParseCategoryType("other")
	assert.ErrorIs(t, err, ErrInvalidType)
}
