package sparse

import (
	"strings"
	"unicode"
)

// minTokenLen drops single-character tokens.
const minTokenLen = 2

// stopwords are common English words that carry no lexical signal.
var stopwords = toSet(
	"a", "an", "and", "are", "as", "at", "be", "been", "but", "by",
	"can", "could", "did", "do", "does", "each", "for", "from", "had",
	"has", "have", "he", "her", "his", "how", "if", "in", "into", "is",
	"it", "its", "may", "might", "more", "most", "must", "no", "not",
	"of", "on", "or", "our", "she", "should", "so", "such", "than",
	"that", "the", "their", "them", "then", "there", "these", "they",
	"this", "those", "to", "too", "very", "was", "we", "were", "what",
	"when", "where", "which", "while", "who", "why", "will", "with",
	"would", "you", "your",
)

func toSet(words ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}

// Tokenize lower-cases text and splits it into runs of letters and digits,
// dropping stopwords and tokens shorter than two characters.
func Tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	tokens := fields[:0]
	for _, f := range fields {
		if len([]rune(f)) < minTokenLen {
			continue
		}
		if _, stop := stopwords[f]; stop {
			continue
		}
		tokens = append(tokens, f)
	}
	return tokens
}
