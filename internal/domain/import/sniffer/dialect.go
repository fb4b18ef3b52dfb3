package sniffer

import (
	"strings"

	"github.com/FACorreiaa/echo-ingest/internal/domain/import/grid"
	"github.com/FACorreiaa/echo-ingest/internal/domain/import/normalizer"
)

// maxProbeRows bounds the rows inspected by ProbeLocale.
const maxProbeRows = 50

// LocaleGuess is the inferred numeric convention of a statement.
type LocaleGuess struct {
	Locale       normalizer.Locale `json:"locale"`
	Confidence   float64           `json:"confidence"` // 0.0-1.0
	CurrencyHint string            `json:"currency_hint,omitempty"`
}

// ProbeLocale votes on European vs American formatting using the text amounts
// of the given column and any currency symbols in the rows. Ties default to
// European with confidence 0.5.
func ProbeLocale(rows [][]grid.Cell, amountCol int) LocaleGuess {
	guess := LocaleGuess{Locale: normalizer.LocaleEuropean, Confidence: 0.5}

	europeanHints, usHints := 0, 0
	for i, row := range rows {
		if i >= maxProbeRows {
			break
		}
		if amountCol >= 0 && amountCol < len(row) && row[amountCol].Kind() == grid.KindText {
			switch hint := analyzeAmountFormat(row[amountCol].TextValue()); {
			case hint > 0:
				europeanHints++
			case hint < 0:
				usHints++
			}
		}

		for _, c := range row {
			if c.Kind() != grid.KindText {
				continue
			}
			cell := c.TextValue()
			switch {
			case strings.Contains(cell, "€") || strings.Contains(cell, "EUR"):
				guess.CurrencyHint = "EUR"
				europeanHints++
			case strings.Contains(cell, "R$") || strings.Contains(cell, "BRL"):
				guess.CurrencyHint = "BRL"
				europeanHints++
			case strings.Contains(cell, "$"):
				if guess.CurrencyHint == "" {
					guess.CurrencyHint = "USD"
				}
				usHints++
			}
		}
	}

	if usHints > europeanHints {
		guess.Locale = normalizer.LocaleAmerican
	}
	if total := europeanHints + usHints; total > 0 && europeanHints != usHints {
		guess.Confidence = float64(max(europeanHints, usHints)) / float64(total)
	}
	return guess
}

// analyzeAmountFormat returns >0 for European, <0 for American, 0 when the
// sample does not tell.
func analyzeAmountFormat(val string) int {
	cleaned := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' || r == ',' || r == '.' {
			return r
		}
		return -1
	}, val)
	if cleaned == "" {
		return 0
	}

	lastComma := strings.LastIndex(cleaned, ",")
	lastDot := strings.LastIndex(cleaned, ".")
	switch {
	case lastComma >= 0 && lastDot >= 0:
		if lastComma > lastDot {
			return 1 // 1.234,56
		}
		return -1 // 1,234.56
	case lastComma >= 0:
		if len(cleaned)-lastComma-1 <= 2 {
			return 1
		}
	case lastDot >= 0:
		if len(cleaned)-lastDot-1 <= 2 {
			return -1
		}
	}
	return 0
}
