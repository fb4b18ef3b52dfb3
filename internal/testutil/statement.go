// Package testutil generates realistic bank statements for tests and
// benchmarks.
package testutil

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"slices"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/xuri/excelize/v2"

	"github.com/FACorreiaa/echo-ingest/internal/domain/import/grid"
	"github.com/FACorreiaa/echo-ingest/internal/domain/import/normalizer"
)

// StatementGenerator generates statements using gofakeit.
type StatementGenerator struct {
	faker  *gofakeit.Faker
	locale normalizer.Locale
	start  time.Time
}

// NewStatementGenerator creates a generator with a fixed seed for
// reproducible output.
func NewStatementGenerator(seed int64, locale normalizer.Locale) *StatementGenerator {
	return &StatementGenerator{
		faker:  gofakeit.New(seed),
		locale: locale,
		start:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// Merchants is keyed by the category a matcher seeded with DefaultCategories
// should assign.
var Merchants = map[string][]string{
	"Supermercado": {"MERCADONA", "LIDL", "CARREFOUR", "ALDI"},
	"Restaurante":  {"RESTAURANTE CASA PEPE", "BAR LA ESQUINA", "RESTAURANTES VIPS"},
	"Transporte":   {"UBER TRIP", "GASOLINERA REPSOL", "RENFE VIAJEROS"},
	"Nómina":       {"NOMINA ACME SL", "TRANSFERENCIA NOMINA"},
}

// DefaultCategories is a category seed in the CSV layout accepted by
// categorization.LoadCategoriesCSV.
const DefaultCategories = `name,type,keywords
Supermercado,expense,mercadona|lidl|carrefour|aldi
Restaurante,expense,restaurantes|bar
Transporte,expense,uber|gasolinera|renfe
Nómina,income,nomina
`

// Row is one generated statement line with its expected parse.
type Row struct {
	Date        time.Time
	Description string
	Amount      float64
	Category    string
}

// Rows generates n statement lines spread over the first months of 2024.
func (g *StatementGenerator) Rows(n int) []Row {
	categories := make([]string, 0, len(Merchants))
	for c := range Merchants {
		categories = append(categories, c)
	}
	// map order is random; the seed must fully decide the output
	slices.Sort(categories)

	rows := make([]Row, n)
	for i := range rows {
		category := g.faker.RandomString(categories)
		amount := -g.faker.Float64Range(1, 400)
		if category == "Nómina" {
			amount = g.faker.Float64Range(1500, 3500)
		}
		rows[i] = Row{
			Date:        g.start.AddDate(0, 0, g.faker.Number(0, 120)),
			Description: fmt.Sprintf("%s %d", g.faker.RandomString(Merchants[category]), g.faker.Number(1000, 999999)),
			Amount:      roundCents(amount),
			Category:    category,
		}
	}
	return rows
}

// Records renders rows under a bank-style preamble and header, the way an
// exported statement looks.
func (g *StatementGenerator) Records(rows []Row) [][]string {
	records := [][]string{
		{"Extracto de cuenta", "", "", ""},
		{"IBAN ES00 " + g.faker.DigitN(20), "", "", ""},
		{"Fecha", "Concepto", "Importe", "Saldo"},
	}
	balance := 1000.0
	for _, r := range rows {
		balance += r.Amount
		records = append(records, []string{
			g.formatDate(r.Date),
			r.Description,
			normalizer.FormatAmount(r.Amount, g.locale),
			normalizer.FormatAmount(balance, g.locale),
		})
	}
	return records
}

// Grid returns the records as a text grid.
func (g *StatementGenerator) Grid(rows []Row) grid.Grid {
	return grid.FromStrings(g.Records(rows))
}

// CSV renders the records with the delimiter banks of the locale use.
func (g *StatementGenerator) CSV(rows []Row) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if g.locale == normalizer.LocaleEuropean {
		w.Comma = ';'
	}
	if err := w.WriteAll(g.Records(rows)); err != nil {
		return nil, fmt.Errorf("failed to write csv: %w", err)
	}
	return buf.Bytes(), nil
}

// XLSX renders the rows as a workbook with real date and number cells.
func (g *StatementGenerator) XLSX(rows []Row) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := "Movimientos"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, err
	}

	header := []any{"Fecha", "Concepto", "Importe"}
	if err := f.SetSheetRow(sheet, "A1", &[]any{"Extracto de cuenta"}); err != nil {
		return nil, err
	}
	if err := f.SetSheetRow(sheet, "A2", &header); err != nil {
		return nil, err
	}
	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+3)
		if err != nil {
			return nil, err
		}
		values := []any{r.Date, r.Description, r.Amount}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return nil, err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func (g *StatementGenerator) formatDate(t time.Time) string {
	if g.locale == normalizer.LocaleAmerican {
		return t.Format("2006-01-02")
	}
	return t.Format("02/01/2006")
}

func roundCents(v float64) float64 {
	cents := int64(v * 100)
	if cents == 0 {
		cents = -1
	}
	return float64(cents) / 100
}
