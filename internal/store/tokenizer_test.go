package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{
			name:  "lowercases words",
			input: "Quadratic Formula",
			want:  []string{"quadratic", "formula"},
		},
		{
			name:  "math operators separate tokens",
			input: "x^2 + 5x + 6 = 0",
			want:  []string{"x", "2", "5x", "6", "0"},
		},
		{
			name:  "punctuation stripped",
			input: "roots: x = (-b ± sqrt(b^2-4ac)) / 2a",
			want:  []string{"roots", "x", "b", "sqrt", "b", "2", "4ac", "2a"},
		},
		{
			name:  "empty input",
			input: "",
			want:  nil,
		},
		{
			name:  "only punctuation",
			input: "+-*/=()",
			want:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Tokenize(tt.input))
		})
	}
}
