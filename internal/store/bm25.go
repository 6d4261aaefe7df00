package store

import (
	"encoding/gob"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/mathmentor/mathrag/internal/errors"
	"github.com/mathmentor/mathrag/internal/kb"
)

// Okapi BM25 defaults.
const (
	DefaultK1 = 1.5
	DefaultB  = 0.75
)

// MemoryBM25 is the default lexical backend: an in-memory inverted index
// with explicit Okapi BM25 statistics. It keeps term frequencies, document
// frequencies, and document lengths as plain maps, which makes the scoring
// path fully inspectable and the whole index a single gob payload.
type MemoryBM25 struct {
	mu      sync.RWMutex
	k1      float64
	b       float64
	chunks  []kb.Chunk
	buildID string

	// postings maps term -> document position -> term frequency.
	postings   map[string]map[int]int
	docLengths []int
	avgDocLen  float64
}

// bm25Payload is the persisted form of the index.
type bm25Payload struct {
	K1         float64
	B          float64
	Chunks     []kb.Chunk
	Postings   map[string]map[int]int
	DocLengths []int
	AvgDocLen  float64
	BuildID    string
}

// NewMemoryBM25 creates an empty index. Non-positive parameters fall back to
// the Okapi defaults.
func NewMemoryBM25(k1, b float64) *MemoryBM25 {
	if k1 <= 0 {
		k1 = DefaultK1
	}
	if b < 0 || b > 1 {
		b = DefaultB
	}
	return &MemoryBM25{
		k1:       k1,
		b:        b,
		postings: make(map[string]map[int]int),
	}
}

// Fit replaces the corpus wholesale and recomputes all statistics.
func (m *MemoryBM25) Fit(chunks []kb.Chunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.chunks = make([]kb.Chunk, len(chunks))
	copy(m.chunks, chunks)
	m.postings = make(map[string]map[int]int)
	m.docLengths = make([]int, len(chunks))
	m.avgDocLen = 0

	totalLen := 0
	for i, chunk := range chunks {
		tokens := Tokenize(chunk.Content)
		m.docLengths[i] = len(tokens)
		totalLen += len(tokens)
		for _, term := range tokens {
			docs, ok := m.postings[term]
			if !ok {
				docs = make(map[int]int)
				m.postings[term] = docs
			}
			docs[i]++
		}
	}
	if len(chunks) > 0 {
		m.avgDocLen = float64(totalLen) / float64(len(chunks))
	}

	return nil
}

// Search scores every document containing at least one query term and
// returns up to k hits by decreasing score. Documents scoring zero are
// excluded; ties keep corpus insertion order.
func (m *MemoryBM25) Search(query string, k int) ([]LexicalResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.chunks) == 0 || k <= 0 {
		return []LexicalResult{}, nil
	}

	n := float64(len(m.chunks))
	scores := make(map[int]float64)

	for _, term := range Tokenize(query) {
		docs, ok := m.postings[term]
		if !ok {
			continue
		}
		df := float64(len(docs))
		idf := math.Log((n-df+0.5)/(df+0.5) + 1)
		for doc, tf := range docs {
			tfF := float64(tf)
			docLen := float64(m.docLengths[doc])
			norm := 1 - m.b + m.b*docLen/m.avgDocLen
			scores[doc] += idf * (tfF * (m.k1 + 1)) / (tfF + m.k1*norm)
		}
	}

	ranked := make([]int, 0, len(scores))
	for doc, score := range scores {
		if score > 0 {
			ranked = append(ranked, doc)
		}
	}
	// Ascending document position first, then a stable sort by score, keeps
	// equal-score documents in insertion order.
	sort.Ints(ranked)
	sort.SliceStable(ranked, func(i, j int) bool {
		return scores[ranked[i]] > scores[ranked[j]]
	})

	if len(ranked) > k {
		ranked = ranked[:k]
	}
	results := make([]LexicalResult, 0, len(ranked))
	for _, doc := range ranked {
		results = append(results, LexicalResult{Chunk: m.chunks[doc], Score: scores[doc]})
	}
	return results, nil
}

// Count returns the number of indexed chunks.
func (m *MemoryBM25) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.chunks)
}

// SetBuildID tags the index with the build it belongs to.
func (m *MemoryBM25) SetBuildID(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.buildID = id
}

// BuildID returns the persisted build tag.
func (m *MemoryBM25) BuildID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.buildID
}

// Save persists the full index as one gob file, written to a temp path and
// renamed.
func (m *MemoryBM25) Save(path string) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.New(errors.ErrCodeIndexFailed, "create index directory", err)
	}

	tmpPath := path + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return errors.New(errors.ErrCodeIndexFailed, "create lexical index file", err)
	}

	payload := bm25Payload{
		K1:         m.k1,
		B:          m.b,
		Chunks:     m.chunks,
		Postings:   m.postings,
		DocLengths: m.docLengths,
		AvgDocLen:  m.avgDocLen,
		BuildID:    m.buildID,
	}
	if err := gob.NewEncoder(file).Encode(payload); err != nil {
		file.Close()
		os.Remove(tmpPath)
		return errors.New(errors.ErrCodeIndexFailed, "encode lexical index", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmpPath)
		return errors.New(errors.ErrCodeIndexFailed, "close lexical index file", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return errors.New(errors.ErrCodeIndexFailed, "rename lexical index file", err)
	}
	return nil
}

// Load restores a persisted index, replacing any current state.
func (m *MemoryBM25) Load(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	file, err := os.Open(path)
	if err != nil {
		return errors.New(errors.ErrCodeCorruptIndex, "open lexical index file", err)
	}
	defer file.Close()

	var payload bm25Payload
	if err := gob.NewDecoder(file).Decode(&payload); err != nil {
		return errors.New(errors.ErrCodeCorruptIndex, "decode lexical index", err)
	}

	m.k1 = payload.K1
	m.b = payload.B
	m.chunks = payload.Chunks
	m.postings = payload.Postings
	m.docLengths = payload.DocLengths
	m.avgDocLen = payload.AvgDocLen
	m.buildID = payload.BuildID
	if m.postings == nil {
		m.postings = make(map[string]map[int]int)
	}
	return nil
}

// Close releases nothing for the memory backend; it satisfies LexicalIndex.
func (m *MemoryBM25) Close() error {
	return nil
}
