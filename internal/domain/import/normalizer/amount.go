package normalizer

import (
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/echo-ingest/internal/domain/import/grid"
)

// ParseAmount reads a signed amount from a cell. Numeric cells are returned as
// is; text is cleaned and its separators resolved against the locale. Anything
// unparseable yields 0.
func ParseAmount(c grid.Cell, locale Locale) float64 {
	switch c.Kind() {
	case grid.KindNumber:
		v := c.NumberValue()
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0
		}
		return v
	case grid.KindText:
		return ParseAmountString(c.TextValue(), locale)
	default:
		return 0
	}
}

// ParseAmountDecimal is ParseAmount as a decimal.
func ParseAmountDecimal(c grid.Cell, locale Locale) decimal.Decimal {
	return decimal.NewFromFloat(ParseAmount(c, locale))
}

// ParseAmountString parses text such as "€ -1.234,56", "$1,234.56" or the
// accounting form "(45.00)".
func ParseAmountString(raw string, locale Locale) float64 {
	raw = strings.TrimSpace(raw)
	negative := strings.HasPrefix(raw, "(") && strings.HasSuffix(raw, ")")

	cleaned := cleanAmount(raw)
	if strings.HasPrefix(cleaned, "-") {
		negative = true
		cleaned = cleaned[1:]
	}
	if cleaned == "" {
		return 0
	}

	hasDot := strings.IndexByte(cleaned, '.') >= 0
	hasComma := strings.IndexByte(cleaned, ',') >= 0
	switch {
	case hasDot && hasComma:
		cleaned = strings.ReplaceAll(cleaned, string(locale.GroupSeparator()), "")
		cleaned = strings.ReplaceAll(cleaned, string(locale.DecimalSeparator()), ".")
	case hasDot:
		cleaned = resolveSeparator(cleaned, '.', locale)
	case hasComma:
		cleaned = resolveSeparator(cleaned, ',', locale)
	}

	val, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || math.IsInf(val, 0) {
		return 0
	}
	if negative {
		val = -val
	}
	return val
}

// cleanAmount keeps digits, '.', ',' and a '-' that precedes every digit.
func cleanAmount(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		switch {
		case r >= '0' && r <= '9', r == '.', r == ',':
			b.WriteRune(r)
		case r == '-' && b.Len() == 0:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// resolveSeparator handles strings carrying a single separator kind. Repeated
// separators are grouping. A lone separator is grouping only when it splits
// a short non-zero integer part from exactly three digits and is not the
// locale's decimal mark; otherwise it is the decimal point.
func resolveSeparator(s string, sep byte, locale Locale) string {
	if strings.Count(s, string(sep)) > 1 {
		return strings.ReplaceAll(s, string(sep), "")
	}

	idx := strings.IndexByte(s, sep)
	intPart, frac := s[:idx], s[idx+1:]
	if len(frac) == 3 && looksGrouped(intPart) && sep != locale.DecimalSeparator() {
		return intPart + frac
	}
	return intPart + "." + frac
}

func looksGrouped(intPart string) bool {
	return len(intPart) >= 1 && len(intPart) <= 3 && intPart[0] != '0'
}

// FormatAmount renders v with two decimals and grouping in the given locale,
// e.g. -1234.5 as "-1.234,50" for LocaleEuropean.
func FormatAmount(v float64, locale Locale) string {
	s := strconv.FormatFloat(math.Abs(v), 'f', 2, 64)
	intPart, frac, _ := strings.Cut(s, ".")

	var b strings.Builder
	if v < 0 && s != "0.00" {
		b.WriteByte('-')
	}
	for i := range len(intPart) {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(locale.GroupSeparator())
		}
		b.WriteByte(intPart[i])
	}
	b.WriteByte(locale.DecimalSeparator())
	b.WriteString(frac)
	return b.String()
}
