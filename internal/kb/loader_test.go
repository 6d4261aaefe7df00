package kb

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mathmentor/mathrag/internal/errors"
)

const algebraDoc = `# Quadratic Equations

Intro text that is not indexed.

## Quadratic Formula

For ax^2 + bx + c = 0 the roots are x = (-b ± sqrt(b^2-4ac)) / 2a.
The discriminant b^2-4ac determines the number of real roots.

## Solution Template

1. Move all terms to one side.
2. Compute the discriminant.
3. Apply the quadratic formula.

## Vieta's Theorem

The sum of the roots equals -b/a and the product equals c/a.

## Empty Section

## Historical Notes

Al-Khwarizmi described completing the square in the 9th century.
`

func writeKB(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	algebraDir := filepath.Join(root, "algebra")
	require.NoError(t, os.MkdirAll(algebraDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(algebraDir, "quadratics.md"), []byte(algebraDoc), 0o644))
	return root
}

func TestChunkDocument_SplitsOnSecondLevelHeaders(t *testing.T) {
	chunks := ChunkDocument(algebraDoc, "quadratics.md", "algebra")

	// Empty Section is skipped; preamble under "# Quadratic Equations" is
	// not indexed.
	require.Len(t, chunks, 4)

	titles := []string{"Quadratic Formula", "Solution Template", "Vieta's Theorem", "Historical Notes"}
	types := []ChunkType{ChunkTypeFormulas, ChunkTypeSolutionTemplate, ChunkTypeTheorems, ChunkTypeGeneral}
	for i, c := range chunks {
		assert.Contains(t, c.Content, "Concept: "+titles[i])
		assert.Equal(t, types[i], c.Type)
		assert.Equal(t, "quadratics.md", c.Source)
		assert.Equal(t, "algebra", c.Topic)
		assert.Equal(t, "quadratics", c.Subtopic)
	}
}

func TestChunkDocument_AnchorsTitleTwiceThenBody(t *testing.T) {
	chunks := ChunkDocument(algebraDoc, "quadratics.md", "algebra")
	require.NotEmpty(t, chunks)

	first := chunks[0]
	assert.True(t, strings.HasPrefix(first.Content,
		"Concept: Quadratic Formula\nQuadratic Formula\n\n"))
	assert.Contains(t, first.Content, "The discriminant b^2-4ac determines the number of real roots.")
}

func TestChunkDocument_NoHeaders(t *testing.T) {
	chunks := ChunkDocument("just a paragraph with no headers", "notes.md", "misc")
	assert.Empty(t, chunks)
}

func TestTypeForTitle(t *testing.T) {
	tests := []struct {
		title string
		want  ChunkType
	}{
		{"Quadratic Formula", ChunkTypeFormulas},
		{"Useful Formulas", ChunkTypeFormulas},
		{"Solution Template", ChunkTypeSolutionTemplate},
		{"Worked Solution", ChunkTypeSolutionTemplate},
		{"Proof Template", ChunkTypeSolutionTemplate},
		{"Pythagorean Theorem", ChunkTypeTheorems},
		{"Historical Notes", ChunkTypeGeneral},
		{"", ChunkTypeGeneral},
	}
	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			assert.Equal(t, tt.want, TypeForTitle(tt.title))
		})
	}
}

func TestLoadDir_Idempotent(t *testing.T) {
	root := writeKB(t)
	loader := NewLoader(nil)

	first, err := loader.LoadDir(root)
	require.NoError(t, err)
	second, err := loader.LoadDir(root)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestLoadDir_MissingRoot(t *testing.T) {
	loader := NewLoader(nil)
	_, err := loader.LoadDir(filepath.Join(t.TempDir(), "does-not-exist"))
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeKnowledgeBaseNotFound, errors.GetCode(err))
}

func TestLoadDir_EmptyIsFatal(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "algebra"), 0o755))

	loader := NewLoader(nil)
	_, err := loader.LoadDir(root)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeKnowledgeBaseEmpty, errors.GetCode(err))
}

func TestLoadDir_SkipsNonMarkdownAndTopLevelFiles(t *testing.T) {
	root := writeKB(t)
	// Stray files outside topic dirs and non-markdown files inside are ignored.
	require.NoError(t, os.WriteFile(filepath.Join(root, "README.md"), []byte("## Ignore\n\nme"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "algebra", "image.png"), []byte{0x89}, 0o644))

	loader := NewLoader(nil)
	chunks, err := loader.LoadDir(root)
	require.NoError(t, err)
	for _, c := range chunks {
		assert.Equal(t, "quadratics.md", c.Source)
	}
}

func TestLoadDir_TopicsInSortedOrder(t *testing.T) {
	root := t.TempDir()
	for _, topic := range []string{"calculus", "algebra"} {
		dir := filepath.Join(root, topic)
		require.NoError(t, os.MkdirAll(dir, 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "doc.md"),
			[]byte("## Formula\n\nbody text"), 0o644))
	}

	loader := NewLoader(nil)
	chunks, err := loader.LoadDir(root)
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, "algebra", chunks[0].Topic)
	assert.Equal(t, "calculus", chunks[1].Topic)
}
