package retriever

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizer_CollapsesWhitespace(t *testing.T) {
	n := NewNormalizer()
	assert.Equal(t, "find the derivative", n.Normalize("  find   the \n derivative "))
}

func TestQuadraticRule(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		expanded bool
	}{
		{"standard form", "solve x^2 + 5x + 6 = 0", true},
		{"no spaces", "t^2-4=0", true},
		{"uppercase variable", "X^2 + 1 = 0", true},
		{"cubic not rewritten", "solve x^3 + 1 = 0", false},
		{"no equation", "what is x^2", false},
		{"nonzero right side", "x^2 + 1 = 5", false},
		{"plain prose", "pythagorean theorem", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := QuadraticRule(tt.query)
			if tt.expanded {
				assert.True(t, strings.HasPrefix(got, tt.query), "original query must be preserved")
				assert.Contains(t, got, "quadratic formula")
				assert.Contains(t, got, "discriminant")
			} else {
				assert.Equal(t, tt.query, got)
			}
		})
	}
}

func TestQuadraticRule_Pure(t *testing.T) {
	query := "solve x^2 - 9 = 0"
	first := QuadraticRule(query)
	second := QuadraticRule(query)
	assert.Equal(t, first, second)
}

func TestNormalizer_CustomRulesRunInOrder(t *testing.T) {
	upper := func(q string) string { return strings.ToUpper(q) }
	suffix := func(q string) string { return q + "!" }

	n := NewNormalizer(upper, suffix)
	assert.Equal(t, "LIMITS!", n.Normalize("limits"))
}
