// Package categorization assigns user-defined categories to transaction
// descriptions by keyword.
package categorization

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/FACorreiaa/echo-ingest/internal/domain/import/normalizer"
)

var (
	ErrEmptyName        = errors.New("category name is required")
	ErrInvalidType      = errors.New("category type must be income or expense")
	ErrEmptyKeyword     = errors.New("keyword is empty")
	ErrKeywordExists    = errors.New("keyword already exists")
	ErrKeywordNotFound  = errors.New("keyword not found")
	ErrCategoryNotFound = errors.New("category not found")
)

// CategoryType tells income categories from expense ones.
type CategoryType string

const (
	TypeExpense CategoryType = "expense"
	TypeIncome  CategoryType = "income"
)

// ParseCategoryType defaults "" to expense.
func ParseCategoryType(s string) (CategoryType, error) {
	switch CategoryType(strings.ToLower(strings.TrimSpace(s))) {
	case "", TypeExpense:
		return TypeExpense, nil
	case TypeIncome:
		return TypeIncome, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidType, s)
}

// Category is a user-defined bucket. Its name also acts as a keyword.
type Category struct {
	ID       uuid.UUID    `json:"id"`
	Name     string       `json:"name"`
	Keywords []string     `json:"keywords"`
	Type     CategoryType `json:"type"`
}

// NewCategory validates and builds a category with a fresh ID. Duplicate and
// blank keywords are dropped.
func NewCategory(name string, typ CategoryType, keywords ...string) (Category, error) {
	c := Category{ID: uuid.New(), Type: typ}
	if err := c.Rename(name); err != nil {
		return Category{}, err
	}
	if typ != TypeExpense && typ != TypeIncome {
		return Category{}, fmt.Errorf("%w: %q", ErrInvalidType, typ)
	}
	for _, kw := range keywords {
		if err := c.AddKeyword(kw); err != nil && !errors.Is(err, ErrKeywordExists) && !errors.Is(err, ErrEmptyKeyword) {
			return Category{}, err
		}
	}
	return c, nil
}

// EffectiveKeywords returns the name followed by the explicit keywords.
func (c Category) EffectiveKeywords() []string {
	out := make([]string, 0, len(c.Keywords)+1)
	out = append(out, c.Name)
	return append(out, c.Keywords...)
}

// AddKeyword appends kw unless an equivalent keyword (after folding) exists.
func (c *Category) AddKeyword(kw string) error {
	kw = strings.TrimSpace(kw)
	if kw == "" {
		return ErrEmptyKeyword
	}
	if c.keywordIndex(kw) >= 0 {
		return fmt.Errorf("%w: %q", ErrKeywordExists, kw)
	}
	c.Keywords = append(c.Keywords, kw)
	return nil
}

// RemoveKeyword deletes the keyword equivalent to kw.
func (c *Category) RemoveKeyword(kw string) error {
	i := c.keywordIndex(strings.TrimSpace(kw))
	if i < 0 {
		return fmt.Errorf("%w: %q", ErrKeywordNotFound, kw)
	}
	c.Keywords = slices.Delete(c.Keywords, i, i+1)
	return nil
}

func (c *Category) Rename(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrEmptyName
	}
	c.Name = name
	return nil
}

func (c *Category) keywordIndex(kw string) int {
	folded := normalizer.Normalize(kw)
	return slices.IndexFunc(c.Keywords, func(existing string) bool {
		return normalizer.Normalize(strings.TrimSpace(existing)) == folded
	})
}
