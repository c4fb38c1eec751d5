package search

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Normalize folds case and compatibility forms so that "Yᵢ" matches "yi"
// and the micro sign matches the Greek mu.
func Normalize(s string) string {
	return cases.Fold().String(norm.NFKC.String(s))
}

// Tokenize splits a normalized query into its distinct terms
func Tokenize(q string) []string {
	fields := strings.Fields(Normalize(q))
	seen := make(map[string]bool, len(fields))
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if !seen[f] {
			seen[f] = true
			tokens = append(tokens, f)
		}
	}
	return tokens
}
