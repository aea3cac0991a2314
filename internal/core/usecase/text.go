package usecase

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// BuildKeywordQuery turns free text into a Postgres tsquery conjunction.
// Text is split on anything but letters, digits and underscores, so tsquery
// operators and quotes never reach to_tsquery. Tokens of two characters or
// fewer are dropped.
func BuildKeywordQuery(query string) string {
	words := strings.FieldsFunc(query, isTSQuerySeparator)
	kept := make([]string, 0, len(words))
	for _, word := range words {
		if utf8.RuneCountInString(word) > 2 {
			kept = append(kept, word)
		}
	}
	return strings.Join(kept, " & ")
}

func isTSQuerySeparator(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
}

// NormalizeQuery lowercases, trims and collapses whitespace.
func NormalizeQuery(query string) string {
	return strings.Join(strings.Fields(strings.ToLower(query)), " ")
}

func toWordSet(s string) map[string]struct{} {
	words := strings.Fields(strings.ToLower(s))
	out := make(map[string]struct{}, len(words))
	for _, word := range words {
		out[word] = struct{}{}
	}
	return out
}

func jaccardSimilarity(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	intersection := 0
	for token := range a {
		if _, ok := b[token]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
