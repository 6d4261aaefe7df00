// Package retriever implements hybrid retrieval over the knowledge base:
// query normalization, concurrent vector and lexical search, reciprocal rank
// fusion, and a chunk-type prior rerank. The engine owns both index legs and
// their persistence.
package retriever

import (
	"github.com/mathmentor/mathrag/internal/kb"
)

// Result is one retrieved chunk with its final relevance score.
type Result struct {
	kb.Chunk
	Score float64 `json:"similarity_score"`
}

// ParsedProblem is the interchange type handed in by problem-understanding
// frontends. Only Statement is required; Topic and Subtopic narrow the query
// when the caller knows them.
type ParsedProblem struct {
	Statement string `json:"statement"`
	Topic     string `json:"topic,omitempty"`
	Subtopic  string `json:"subtopic,omitempty"`
}

// ProblemContext is the retrieval package handed onward to solution
// generation: the retrieved chunks, an aggregate confidence, the distinct
// source documents, and the query that was actually executed.
type ProblemContext struct {
	Results    []Result `json:"retrieved_context"`
	Confidence float64  `json:"retrieval_confidence"`
	Sources    []string `json:"retrieval_sources"`
	Query      string   `json:"retrieval_query"`
}

// State describes whether the engine has an index to search.
type State string

const (
	// StateEmpty means no index is loaded; retrieval returns empty results.
	StateEmpty State = "empty"
	// StatePopulated means both index legs are loaded and searchable.
	StatePopulated State = "populated"
)
