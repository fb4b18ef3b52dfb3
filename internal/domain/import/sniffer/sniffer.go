// Package sniffer locates the header row of a statement grid and guesses which
// columns hold the date, description and amount.
package sniffer

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"unicode"

	"github.com/FACorreiaa/echo-ingest/internal/domain/import/grid"
	"github.com/FACorreiaa/echo-ingest/internal/domain/import/normalizer"
)

const (
	// MaxHeaderScanRows bounds the header search.
	MaxHeaderScanRows = 20
	// MinHeaderMatches is the number of vocabulary cells a header row needs.
	MinHeaderMatches = 2
)

var ErrEmptyGrid = errors.New("grid has no rows")

// Column synonyms, already folded by normalizer.Normalize.
var (
	dateSynonyms = []string{
		"fecha", "date", "data mov", "data valor", "datum", "f. valor", "f.valor",
	}
	descriptionSynonyms = []string{
		"concepto", "descri", "detalle", "merchant", "payee", "memo", "narrative",
		"details", "movimiento", "beneficiario", "referencia",
	}
	amountSynonyms = []string{
		"importe", "amount", "cantidad", "monto", "montante", "valor", "betrag",
		"montant", "value",
	}
	// exact-only labels, too short to use as substrings
	dateExact        = []string{"data", "dia"}
	descriptionExact = []string{"nome", "name", "texto"}
)

// headerVocabulary is every token that marks a header cell.
var headerVocabulary = concat(
	dateSynonyms, descriptionSynonyms, amountSynonyms,
	[]string{"saldo", "balance", "categoria", "category", "debito", "debit", "credito", "credit", "cargo", "abono"},
)

// Structure is the detected layout of a grid.
type Structure struct {
	HeaderRow int      // 0-based index of the header row
	Headers   []string // header labels, trimmed
	Score     int      // vocabulary hits of the chosen row, 0 on fallback
}

// DetectStructure scans the first rows for the first one with at least two
// cells containing header vocabulary. When none qualifies row 0 is used.
func DetectStructure(g grid.Grid) (*Structure, error) {
	if len(g) == 0 {
		return nil, ErrEmptyGrid
	}

	headerRow, score := 0, 0
	for i, row := range g {
		if i >= MaxHeaderScanRows {
			break
		}
		if s := headerScore(row); s >= MinHeaderMatches {
			headerRow, score = i, s
			break
		}
	}

	headers := make([]string, len(g[headerRow]))
	for i, c := range g[headerRow] {
		headers[i] = strings.TrimSpace(c.String())
	}

	return &Structure{HeaderRow: headerRow, Headers: headers, Score: score}, nil
}

// headerScore counts the cells of a row that contain any vocabulary token.
func headerScore(row []grid.Cell) int {
	score := 0
	for _, c := range row {
		if c.Kind() != grid.KindText {
			continue
		}
		if containsAny(foldHeader(c.TextValue()), headerVocabulary) {
			score++
		}
	}
	return score
}

// ColumnSuggestions holds guessed column indices, -1 when not found.
type ColumnSuggestions struct {
	Date        int `json:"date"`
	Description int `json:"description"`
	Amount      int `json:"amount"`
}

// Complete reports whether all three columns were found.
func (s ColumnSuggestions) Complete() bool {
	return s.Date >= 0 && s.Description >= 0 && s.Amount >= 0
}

// SuggestColumns classifies every header as date, description or amount by
// its first matching synonym group, tried in that order. The first header of
// each class wins; later headers of an already-claimed class are ignored.
func SuggestColumns(headers []string) ColumnSuggestions {
	s := ColumnSuggestions{Date: -1, Description: -1, Amount: -1}

	for i, header := range headers {
		h := foldHeader(header)
		if h == "" {
			continue
		}
		var slot *int
		switch {
		case containsAny(h, dateSynonyms) || equalsAny(h, dateExact):
			slot = &s.Date
		case containsAny(h, descriptionSynonyms) || equalsAny(h, descriptionExact):
			slot = &s.Description
		case containsAny(h, amountSynonyms):
			slot = &s.Amount
		default:
			continue
		}
		if *slot == -1 {
			*slot = i
		}
	}
	return s
}

// Fingerprint hashes the header labels so a layout can be recognised again.
func Fingerprint(headers []string) string {
	var normalized []string
	for _, h := range headers {
		clean := strings.Map(func(r rune) rune {
			if unicode.IsLetter(r) || unicode.IsDigit(r) {
				return unicode.ToLower(r)
			}
			return -1
		}, h)
		if clean != "" {
			normalized = append(normalized, clean)
		}
	}

	hash := sha256.Sum256([]byte(strings.Join(normalized, "|")))
	return hex.EncodeToString(hash[:])
}

func foldHeader(s string) string {
	return strings.TrimSpace(normalizer.Normalize(s))
}

func containsAny(s string, tokens []string) bool {
	for _, t := range tokens {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}

func equalsAny(s string, tokens []string) bool {
	for _, t := range tokens {
		if s == t {
			return true
		}
	}
	return false
}

func concat(lists ...[]string) []string {
	var out []string
	for _, l := range lists {
		out = append(out, l...)
	}
	return out
}
