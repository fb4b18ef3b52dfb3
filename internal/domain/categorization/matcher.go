package categorization

import (
	"regexp"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/cloudflare/ahocorasick"

	"github.com/FACorreiaa/echo-ingest/internal/domain/import/normalizer"
)

// Pass identifies which matching pass produced a result.
type Pass int

const (
	PassNone Pass = iota
	PassWholeWord
	PassSubstring
)

func (p Pass) String() string {
	switch p {
	case PassWholeWord:
		return "whole_word"
	case PassSubstring:
		return "substring"
	default:
		return "none"
	}
}

// MatchResult explains a categorization decision.
type MatchResult struct {
	Category  string // empty when nothing matched
	Keyword   string // raw keyword that matched
	Variation string // folded form that was found in the description
	Pass      Pass
}

// candidate is one keyword of one category, in priority order.
type candidate struct {
	category   string
	keyword    string
	variations []string
}

type wordPattern struct {
	re        *regexp.Regexp
	candidate int
	variation string
}

// Matcher assigns categories to descriptions. It is built once per set of
// categories and is safe for concurrent use.
//
// Longer keywords win over shorter ones. Whole-word hits are preferred over
// plain substring hits; within a pass the first candidate in priority order
// wins.
type Matcher struct {
	candidates []candidate
	words      []wordPattern

	substr     *ahocorasick.Matcher
	substrRefs []wordPattern // regexp unused; indexed by aho-corasick pattern id
}

// NewMatcher flattens the categories' effective keywords and precomputes both
// passes.
func NewMatcher(categories []Category) *Matcher {
	m := &Matcher{}

	for _, c := range categories {
		for _, kw := range c.EffectiveKeywords() {
			variations := keywordVariations(kw)
			if len(variations) == 0 {
				continue
			}
			m.candidates = append(m.candidates, candidate{
				category:   c.Name,
				keyword:    kw,
				variations: variations,
			})
		}
	}

	slices.SortStableFunc(m.candidates, func(a, b candidate) int {
		return utf8.RuneCountInString(b.keyword) - utf8.RuneCountInString(a.keyword)
	})

	seen := make(map[string]bool)
	var patterns [][]byte
	for i, c := range m.candidates {
		for _, v := range c.variations {
			m.words = append(m.words, wordPattern{
				re:        wholeWord(v),
				candidate: i,
				variation: v,
			})
			// Only the first occurrence of a variation can ever win pass 2.
			if !seen[v] {
				seen[v] = true
				patterns = append(patterns, []byte(v))
				m.substrRefs = append(m.substrRefs, wordPattern{candidate: i, variation: v})
			}
		}
	}
	if len(patterns) > 0 {
		m.substr = ahocorasick.NewMatcher(patterns)
	}

	return m
}

// wholeWord matches v between Unicode word boundaries. RE2's \b only knows
// ASCII, so a folded "straße" would otherwise contain the word "stra".
func wholeWord(v string) *regexp.Regexp {
	return regexp.MustCompile(`(?:^|[^\p{L}\p{N}\p{M}_])` + regexp.QuoteMeta(v) + `(?:$|[^\p{L}\p{N}\p{M}_])`)
}

// keywordVariations returns the folded keyword and its naive singular.
func keywordVariations(kw string) []string {
	folded := strings.TrimSpace(normalizer.Normalize(kw))
	if folded == "" {
		return nil
	}
	variations := []string{folded}

	n := utf8.RuneCountInString(folded)
	var singular string
	switch {
	case n > 4 && strings.HasSuffix(folded, "es"):
		singular = folded[:len(folded)-2]
	case n > 3 && strings.HasSuffix(folded, "s"):
		singular = folded[:len(folded)-1]
	}
	if singular = strings.TrimSpace(singular); singular != "" && singular != folded {
		variations = append(variations, singular)
	}
	return variations
}

// Match returns the category name for description, or "" when no keyword
// matches.
func (m *Matcher) Match(description string) string {
	return m.MatchDetail(description).Category
}

// MatchDetail is Match with the keyword and pass that decided it.
func (m *Matcher) MatchDetail(description string) MatchResult {
	text := normalizer.Normalize(description)
	if strings.TrimSpace(text) == "" || len(m.candidates) == 0 {
		return MatchResult{}
	}

	for _, w := range m.words {
		if w.re.MatchString(text) {
			return m.result(w, PassWholeWord)
		}
	}

	if m.substr == nil {
		return MatchResult{}
	}
	hits := m.substr.MatchThreadSafe([]byte(text))
	if len(hits) == 0 {
		return MatchResult{}
	}
	return m.result(m.substrRefs[slices.Min(hits)], PassSubstring)
}

// MatchBatch categorizes many descriptions with the same matcher.
func (m *Matcher) MatchBatch(descriptions []string) []string {
	out := make([]string, len(descriptions))
	for i, d := range descriptions {
		out[i] = m.Match(d)
	}
	return out
}

// Len returns the number of keyword candidates.
func (m *Matcher) Len() int { return len(m.candidates) }

func (m *Matcher) result(w wordPattern, pass Pass) MatchResult {
	c := m.candidates[w.candidate]
	return MatchResult{
		Category:  c.category,
		Keyword:   c.keyword,
		Variation: w.variation,
		Pass:      pass,
	}
}
