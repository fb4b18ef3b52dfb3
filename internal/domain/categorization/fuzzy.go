package categorization

import (
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/FACorreiaa/echo-ingest/internal/domain/import/normalizer"
)

const (
	// DefaultSuggestThreshold is the minimum similarity (0-100) for a suggestion.
	DefaultSuggestThreshold = 75
	// minSuggestTokenLen skips short words such as "de" or "en".
	minSuggestTokenLen = 4
)

// Suggestion is a category that nearly matched a description.
type Suggestion struct {
	Category string `json:"category"`
	Keyword  string `json:"keyword"`
	Score    int    `json:"score"` // 0-100, higher is closer
}

// Suggest ranks categories whose keywords are within a few edits of a word of
// the description. It catches typos and truncations ("MERCADOMA", "RESTAURAN")
// that the exact passes miss. At most limit categories are returned.
func (m *Matcher) Suggest(description string, limit int) []Suggestion {
	tokens := strings.FieldsFunc(normalizer.Normalize(description), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r >= utf8.RuneSelf)
	})
	if len(tokens) == 0 || len(m.candidates) == 0 {
		return nil
	}

	best := make(map[string]Suggestion)
	var order []string
	for _, c := range m.candidates {
		for _, v := range c.variations {
			for _, tok := range tokens {
				if utf8.RuneCountInString(tok) < minSuggestTokenLen {
					continue
				}
				score := fuzzyScore(tok, v)
				if score < DefaultSuggestThreshold {
					continue
				}
				prev, ok := best[c.category]
				if !ok {
					order = append(order, c.category)
				}
				if !ok || score > prev.Score {
					best[c.category] = Suggestion{Category: c.category, Keyword: c.keyword, Score: score}
				}
			}
		}
	}

	out := make([]Suggestion, 0, len(order))
	for _, name := range order {
		out = append(out, best[name])
	}
	// stable: ties keep keyword priority order
	slices.SortStableFunc(out, func(a, b Suggestion) int { return b.Score - a.Score })

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// fuzzyScore converts the edit distance between two words into 0-100. A
// token that starts with the keyword, or the reverse, scores at least 80.
func fuzzyScore(token, keyword string) int {
	if token == keyword {
		return 100
	}
	maxLen := max(utf8.RuneCountInString(token), utf8.RuneCountInString(keyword))
	if maxLen == 0 {
		return 0
	}

	distance := fuzzy.LevenshteinDistance(token, keyword)
	score := 100 * (maxLen - distance) / maxLen

	if strings.HasPrefix(token, keyword) || strings.HasPrefix(keyword, token) {
		score = max(score, 80)
	}
	return score
}
