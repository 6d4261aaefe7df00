package store

import (
	"regexp"
	"strings"
)

// tokenPattern matches runs of letters and digits. Punctuation and math
// operators act as separators, so "x^2+3x" yields ["x", "2", "3x"].
var tokenPattern = regexp.MustCompile(`[a-zA-Z0-9]+`)

// Tokenize lowercases text and splits it into alphanumeric runs. The same
// tokenizer is applied to documents at Fit time and to queries at Search
// time; using different rules for the two sides silently breaks scoring.
func Tokenize(text string) []string {
	return tokenPattern.FindAllString(strings.ToLower(text), -1)
}
