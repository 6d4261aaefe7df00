// Package store provides the two index legs of hybrid retrieval: a vector
// index backed by an HNSW graph and a lexical BM25 index. Both legs carry
// chunk metadata alongside their postings so a search returns full chunks,
// and both persist atomically with a build ID for cross-leg consistency
// checks.
package store

import (
	"fmt"

	"github.com/mathmentor/mathrag/internal/kb"
)

// VectorResult is one vector search hit. Similarity is 1/(1+distance) with
// euclidean distance, so it always falls in (0, 1].
type VectorResult struct {
	Chunk      kb.Chunk
	Distance   float32
	Similarity float64
}

// LexicalResult is one BM25 search hit.
type LexicalResult struct {
	Chunk kb.Chunk
	Score float64
}

// LexicalIndex is the keyword search leg. Fit replaces the corpus wholesale;
// incremental updates are not supported because the retriever always rebuilds
// from a full chunk set.
type LexicalIndex interface {
	Fit(chunks []kb.Chunk) error
	Search(query string, k int) ([]LexicalResult, error)
	Count() int
	Save(path string) error
	Load(path string) error
	SetBuildID(id string)
	BuildID() string
	Close() error
}

// Lexical backend names accepted by the factory.
const (
	LexicalBackendMemory = "memory"
	LexicalBackendBleve  = "bleve"
)

// ErrDimensionMismatch indicates a vector with the wrong number of
// dimensions was handed to the vector index.
type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d (rebuild with 'mathrag index')", e.Expected, e.Got)
}
