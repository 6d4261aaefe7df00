package store

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mathmentor/mathrag/internal/kb"
)

func lexicalChunks(contents ...string) []kb.Chunk {
	chunks := make([]kb.Chunk, len(contents))
	for i, c := range contents {
		chunks[i] = kb.Chunk{
			Content: c,
			Source:  "doc.md",
			Topic:   "algebra",
			Type:    kb.ChunkTypeGeneral,
		}
	}
	return chunks
}

func TestMemoryBM25_EmptyCorpus(t *testing.T) {
	idx := NewMemoryBM25(0, -1)
	require.NoError(t, idx.Fit(nil))

	results, err := idx.Search("anything", 5)
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Equal(t, 0, idx.Count())
}

func TestMemoryBM25_ZeroScoreExcluded(t *testing.T) {
	idx := NewMemoryBM25(DefaultK1, DefaultB)
	require.NoError(t, idx.Fit(lexicalChunks(
		"quadratic equations and roots",
		"derivative of a polynomial",
	)))

	results, err := idx.Search("integral calculus", 10)
	require.NoError(t, err)
	assert.Empty(t, results, "documents sharing no query term must not appear")
}

func TestMemoryBM25_RanksExactTermMatchFirst(t *testing.T) {
	idx := NewMemoryBM25(DefaultK1, DefaultB)
	require.NoError(t, idx.Fit(lexicalChunks(
		"the quadratic formula solves quadratic equations",
		"a theorem about prime numbers",
		"quadratic expressions appear in many problems",
	)))

	results, err := idx.Search("quadratic formula", 10)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Contains(t, results[0].Chunk.Content, "quadratic formula")
	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].Score, results[i].Score)
	}
}

func TestMemoryBM25_ScoreMatchesOkapiFormula(t *testing.T) {
	idx := NewMemoryBM25(DefaultK1, DefaultB)
	require.NoError(t, idx.Fit(lexicalChunks(
		"apple banana",
		"apple apple banana",
		"cherry",
	)))

	results, err := idx.Search("cherry", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)

	// N=3 docs, df=1, tf=1, doc length 1, average length 2.
	idf := math.Log((3-1+0.5)/(1+0.5) + 1)
	norm := 1 - DefaultB + DefaultB*1.0/2.0
	want := idf * (1 * (DefaultK1 + 1)) / (1 + DefaultK1*norm)
	assert.InDelta(t, want, results[0].Score, 1e-9)
}

func TestMemoryBM25_TiesKeepInsertionOrder(t *testing.T) {
	idx := NewMemoryBM25(DefaultK1, DefaultB)
	// Token-identical documents produce identical scores; sources tell
	// them apart so the returned order is observable.
	chunks := lexicalChunks(
		"pythagoras theorem",
		"pythagoras theorem",
		"pythagoras theorem",
	)
	chunks[0].Source = "a.md"
	chunks[1].Source = "b.md"
	chunks[2].Source = "c.md"
	require.NoError(t, idx.Fit(chunks))

	results, err := idx.Search("pythagoras", 10)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.InDelta(t, results[0].Score, results[1].Score, 1e-12)
	assert.InDelta(t, results[1].Score, results[2].Score, 1e-12)
	assert.Equal(t, "a.md", results[0].Chunk.Source)
	assert.Equal(t, "b.md", results[1].Chunk.Source)
	assert.Equal(t, "c.md", results[2].Chunk.Source)
}

func TestMemoryBM25_TruncatesToK(t *testing.T) {
	idx := NewMemoryBM25(DefaultK1, DefaultB)
	require.NoError(t, idx.Fit(lexicalChunks(
		"limit one", "limit two", "limit three", "limit four",
	)))

	results, err := idx.Search("limit", 2)
	require.NoError(t, err)
	assert.Len(t, results, 2)

	results, err = idx.Search("limit", 100)
	require.NoError(t, err)
	assert.Len(t, results, 4, "never more results than documents")
}

func TestMemoryBM25_FitReplacesCorpus(t *testing.T) {
	idx := NewMemoryBM25(DefaultK1, DefaultB)
	require.NoError(t, idx.Fit(lexicalChunks("old corpus about matrices")))
	require.NoError(t, idx.Fit(lexicalChunks("new corpus about vectors")))

	results, err := idx.Search("matrices", 5)
	require.NoError(t, err)
	assert.Empty(t, results)

	results, err = idx.Search("vectors", 5)
	require.NoError(t, err)
	assert.Len(t, results, 1)
	assert.Equal(t, 1, idx.Count())
}

func TestMemoryBM25_SaveLoadRoundTrip(t *testing.T) {
	idx := NewMemoryBM25(DefaultK1, DefaultB)
	require.NoError(t, idx.Fit(lexicalChunks(
		"the quadratic formula solves quadratic equations",
		"a theorem about prime numbers",
	)))
	idx.SetBuildID("build-42")

	path := filepath.Join(t.TempDir(), "lexical.gob")
	require.NoError(t, idx.Save(path))

	loaded := NewMemoryBM25(0, 0)
	require.NoError(t, loaded.Load(path))
	assert.Equal(t, "build-42", loaded.BuildID())
	assert.Equal(t, idx.Count(), loaded.Count())

	want, err := idx.Search("quadratic", 5)
	require.NoError(t, err)
	got, err := loaded.Search("quadratic", 5)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestMemoryBM25_LoadMissingFile(t *testing.T) {
	idx := NewMemoryBM25(0, 0)
	err := idx.Load(filepath.Join(t.TempDir(), "nope.gob"))
	assert.Error(t, err)
}
