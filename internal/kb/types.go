// Package kb ingests the knowledge base: a directory tree of topic
// subdirectories containing sectioned markdown documents. Ingestion splits
// each document into semantically anchored chunks that feed both the vector
// and lexical indexes.
package kb

// ChunkType classifies a chunk by the structural category of knowledge it
// carries. The hybrid retriever uses these as rerank priors.
type ChunkType string

const (
	ChunkTypeFormulas         ChunkType = "formulas"
	ChunkTypeSolutionTemplate ChunkType = "solution_template"
	ChunkTypeTheorems         ChunkType = "theorems"
	ChunkTypeGeneral          ChunkType = "general"
)

// Chunk is a retrievable unit of knowledge-base text. Chunks are immutable:
// created during ingestion, never mutated, replaced wholesale on reindex.
type Chunk struct {
	// Content is the anchored text: a "Concept: <title>" prefix, the title
	// repeated as a semantic anchor, then the section body verbatim.
	Content string `json:"content"`

	// Source is the origin file name.
	Source string `json:"source"`

	// Topic is the parent directory name.
	Topic string `json:"topic"`

	// Subtopic is the document's base file name.
	Subtopic string `json:"subtopic"`

	// Type is derived from the section heading.
	Type ChunkType `json:"chunk_type"`
}
