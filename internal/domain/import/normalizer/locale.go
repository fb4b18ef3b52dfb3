package normalizer

import (
	"errors"
	"fmt"
	"strings"
)

var ErrUnknownLocale = errors.New("unknown locale")

// Locale selects the numeric convention used to read amounts.
type Locale string

const (
	// LocaleEuropean writes 1.234,56.
	LocaleEuropean Locale = "eu"
	// LocaleAmerican writes 1,234.56.
	LocaleAmerican Locale = "us"
)

// ParseLocale accepts the short codes plus a few common spellings.
func ParseLocale(s string) (Locale, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "eu", "european", "europe", "es", "pt", "de", "fr", "it":
		return LocaleEuropean, nil
	case "us", "american", "en", "uk", "gb":
		return LocaleAmerican, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownLocale, s)
}

func (l Locale) Valid() bool {
	return l == LocaleEuropean || l == LocaleAmerican
}

// DecimalSeparator returns the separator that marks the fractional part.
func (l Locale) DecimalSeparator() byte {
	if l == LocaleEuropean {
		return ','
	}
	return '.'
}

// GroupSeparator returns the thousands separator.
func (l Locale) GroupSeparator() byte {
	if l == LocaleEuropean {
		return '.'
	}
	return ','
}
