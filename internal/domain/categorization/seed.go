package categorization

import (
	"fmt"
	"io"
	"strings"

	"github.com/gocarina/gocsv"
)

// keywordSeparator separates keywords inside the keywords column.
const keywordSeparator = "|"

// categoryRecord is one row of a category seed file:
//
//	name,type,keywords
//	Supermercado,expense,mercadona|lidl|carrefour
type categoryRecord struct {
	Name     string `csv:"name"`
	Type     string `csv:"type"`
	Keywords string `csv:"keywords"`
}

// LoadCategoriesCSV reads a category seed file. Every category gets a new ID.
func LoadCategoriesCSV(r io.Reader) ([]Category, error) {
	var records []categoryRecord
	if err := gocsv.Unmarshal(r, &records); err != nil {
		return nil, fmt.Errorf("failed to parse categories csv: %w", err)
	}

	categories := make([]Category, 0, len(records))
	for i, rec := range records {
		typ, err := ParseCategoryType(rec.Type)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		c, err := NewCategory(rec.Name, typ, strings.Split(rec.Keywords, keywordSeparator)...)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		categories = append(categories, c)
	}
	return categories, nil
}

// WriteCategoriesCSV writes categories in the seed file format.
func WriteCategoriesCSV(w io.Writer, categories []Category) error {
	records := make([]categoryRecord, len(categories))
	for i, c := range categories {
		records[i] = categoryRecord{
			Name:     c.Name,
			Type:     string(c.Type),
			Keywords: strings.Join(c.Keywords, keywordSeparator),
		}
	}
	if err := gocsv.Marshal(&records, w); err != nil {
		return fmt.Errorf("failed to write categories csv: %w", err)
	}
	return nil
}
