package retriever

import (
	"regexp"
	"strings"
)

// Rule rewrites a query into a form that retrieves better. Rules must be
// pure: same input, same output, no side effects. They run in order and each
// sees the previous rule's output.
type Rule func(query string) string

// Normalizer applies a fixed rule chain to incoming queries.
type Normalizer struct {
	rules []Rule
}

// NewNormalizer builds a normalizer with the given rules. With no arguments
// it installs the default rule set.
func NewNormalizer(rules ...Rule) *Normalizer {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	return &Normalizer{rules: rules}
}

// DefaultRules returns the built-in rewrite chain.
func DefaultRules() []Rule {
	return []Rule{QuadraticRule}
}

// Normalize collapses whitespace and runs the rule chain.
func (n *Normalizer) Normalize(query string) string {
	query = strings.Join(strings.Fields(query), " ")
	for _, rule := range n.rules {
		query = rule(query)
	}
	return query
}

// quadraticPattern recognizes equations of the form <var>^2 ... = 0, with or
// without spaces, e.g. "x^2 + 5x + 6 = 0" or "t^2-4=0".
var quadraticPattern = regexp.MustCompile(`(?i)\b[a-z]\s*\^\s*2\b.*=\s*0\b`)

// QuadraticRule expands quadratic equations with the vocabulary the
// knowledge base uses for them. The raw symbols carry almost no lexical
// signal, so the rewrite names the technique instead.
func QuadraticRule(query string) string {
	if !quadraticPattern.MatchString(query) {
		return query
	}
	return query + " solving quadratic equations quadratic formula discriminant roots"
}
