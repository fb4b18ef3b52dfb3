package normalizer

import (
	"regexp"
	"strings"
)

var (
	spacePattern     = regexp.MustCompile(`\s+`)
	refSuffixPattern = regexp.MustCompile(`\s+\d{4,}$`)
	dateSuffix       = regexp.MustCompile(`\s+\d{1,2}/\d{1,2}/?$`)
)

// Card and transfer prefixes banks put in front of the counterparty.
var merchantPrefixes = []string{
	"COMPRA ", "COMPRAS ", "PAGAMENTO ", "PAGO ", "PAG ", "PGO ",
	"TRF ", "TRANSF ", "TRANSFERENCIA ", "RECIBO ",
	"MB WAY ", "MBWAY ", "MULTIBANCO ",
	"VISA ", "MASTERCARD ", "MAESTRO ", "TARJETA ",
	"PURCHASE ", "PAYMENT ", "POS ",
}

// CleanDescription trims the text and collapses internal whitespace.
func CleanDescription(raw string) string {
	return strings.TrimSpace(spacePattern.ReplaceAllString(raw, " "))
}

// MerchantName derives a short display name from a bank description by
// dropping card prefixes, trailing references and dates:
// "COMPRA MERCADONA VALENCIA 123456" becomes "Mercadona Valencia".
func MerchantName(description string) string {
	result := CleanDescription(description)

	for _, prefix := range merchantPrefixes {
		// prefixes are ASCII; comparing the same bytes of result keeps the cut on a rune boundary
		if len(result) >= len(prefix) && strings.EqualFold(result[:len(prefix)], prefix) {
			result = result[len(prefix):]
			break
		}
	}

	result = refSuffixPattern.ReplaceAllString(result, "")
	result = dateSuffix.ReplaceAllString(result, "")
	return titleCase(strings.TrimSpace(result))
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, word := range words {
		runes := []rune(strings.ToLower(word))
		if len(runes) > 0 {
			runes[0] = []rune(strings.ToUpper(string(runes[0])))[0]
		}
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}
