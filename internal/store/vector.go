package store

import (
	"bufio"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/coder/hnsw"

	"github.com/mathmentor/mathrag/internal/errors"
	"github.com/mathmentor/mathrag/internal/kb"
)

// HNSW parameters. The knowledge base is small (hundreds of chunks), so the
// defaults favor recall over build speed.
const (
	hnswM        = 16
	hnswEfSearch = 40
	hnswMl       = 0.25
)

// VectorIndex is a dense retrieval index over knowledge-base chunks. Graph
// keys are insertion positions into the parallel chunk list; the list and
// the graph grow in lockstep and are cleared together, so a key returned by
// a search is always a valid chunk offset.
type VectorIndex struct {
	mu      sync.RWMutex
	graph   *hnsw.Graph[uint64]
	chunks  []kb.Chunk
	dims    int
	buildID string
}

// vectorSidecar is the gob payload persisted next to the graph export.
type vectorSidecar struct {
	Chunks  []kb.Chunk
	Dims    int
	BuildID string
}

// NewVectorIndex creates an empty index for vectors of the given dimension.
func NewVectorIndex(dims int) (*VectorIndex, error) {
	if dims <= 0 {
		return nil, errors.ValidationError(fmt.Sprintf("vector index dimensions must be positive, got %d", dims), nil)
	}
	return &VectorIndex{
		graph: newGraph(),
		dims:  dims,
	}, nil
}

func newGraph() *hnsw.Graph[uint64] {
	g := hnsw.NewGraph[uint64]()
	g.Distance = hnsw.EuclideanDistance
	g.M = hnswM
	g.EfSearch = hnswEfSearch
	g.Ml = hnswMl
	return g
}

// Add appends vectors with their chunks. The two slices must have equal
// length and every vector must match the index dimension.
func (v *VectorIndex) Add(vectors [][]float32, chunks []kb.Chunk) error {
	if len(vectors) != len(chunks) {
		return errors.ValidationError(fmt.Sprintf("vectors and chunks length mismatch: %d vs %d", len(vectors), len(chunks)), nil)
	}
	if len(vectors) == 0 {
		return nil
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	for _, vec := range vectors {
		if len(vec) != v.dims {
			return ErrDimensionMismatch{Expected: v.dims, Got: len(vec)}
		}
	}

	for i, vec := range vectors {
		key := uint64(len(v.chunks))
		stored := make([]float32, len(vec))
		copy(stored, vec)
		v.graph.Add(hnsw.MakeNode(key, stored))
		v.chunks = append(v.chunks, chunks[i])
	}

	return nil
}

// Search returns up to k nearest chunks by decreasing similarity. An empty
// index returns an empty slice, never an error.
func (v *VectorIndex) Search(query []float32, k int) ([]VectorResult, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	if len(v.chunks) == 0 || k <= 0 {
		return []VectorResult{}, nil
	}
	if len(query) != v.dims {
		return nil, ErrDimensionMismatch{Expected: v.dims, Got: len(query)}
	}

	nodes := v.graph.Search(query, k)

	results := make([]VectorResult, 0, len(nodes))
	for _, node := range nodes {
		if node.Key >= uint64(len(v.chunks)) {
			continue
		}
		distance := hnsw.EuclideanDistance(query, node.Value)
		results = append(results, VectorResult{
			Chunk:      v.chunks[node.Key],
			Distance:   distance,
			Similarity: 1.0 / (1.0 + float64(distance)),
		})
	}

	return results, nil
}

// Clear drops all vectors and chunks. The dimension is kept.
func (v *VectorIndex) Clear() {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.graph = newGraph()
	v.chunks = nil
}

// Count returns the number of indexed chunks.
func (v *VectorIndex) Count() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.chunks)
}

// Dimensions returns the vector dimension the index was created with.
func (v *VectorIndex) Dimensions() int {
	return v.dims
}

// SetBuildID tags the index with the build it belongs to. The tag is
// persisted and checked against the lexical leg on load.
func (v *VectorIndex) SetBuildID(id string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.buildID = id
}

// BuildID returns the persisted build tag.
func (v *VectorIndex) BuildID() string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.buildID
}

// Save persists the graph and its chunk sidecar. Both files are written to a
// temp path and renamed, so a crash mid-save never clobbers a good index.
func (v *VectorIndex) Save(path string) error {
	v.mu.RLock()
	defer v.mu.RUnlock()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.New(errors.ErrCodeIndexFailed, "create index directory", err)
	}

	tmpPath := path + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return errors.New(errors.ErrCodeIndexFailed, "create vector index file", err)
	}
	if err := v.graph.Export(file); err != nil {
		file.Close()
		os.Remove(tmpPath)
		return errors.New(errors.ErrCodeIndexFailed, "export vector graph", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmpPath)
		return errors.New(errors.ErrCodeIndexFailed, "close vector index file", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return errors.New(errors.ErrCodeIndexFailed, "rename vector index file", err)
	}

	return v.saveSidecar(sidecarPath(path))
}

func (v *VectorIndex) saveSidecar(path string) error {
	tmpPath := path + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return errors.New(errors.ErrCodeIndexFailed, "create vector sidecar", err)
	}

	payload := vectorSidecar{
		Chunks:  v.chunks,
		Dims:    v.dims,
		BuildID: v.buildID,
	}
	if err := gob.NewEncoder(file).Encode(payload); err != nil {
		file.Close()
		os.Remove(tmpPath)
		return errors.New(errors.ErrCodeIndexFailed, "encode vector sidecar", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmpPath)
		return errors.New(errors.ErrCodeIndexFailed, "close vector sidecar", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return errors.New(errors.ErrCodeIndexFailed, "rename vector sidecar", err)
	}
	return nil
}

// Load restores a persisted index. The sidecar is read first so a missing or
// corrupt sidecar fails before the graph import touches index state.
func (v *VectorIndex) Load(path string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	sideFile, err := os.Open(sidecarPath(path))
	if err != nil {
		return errors.New(errors.ErrCodeCorruptIndex, "open vector sidecar", err)
	}
	var payload vectorSidecar
	decodeErr := gob.NewDecoder(sideFile).Decode(&payload)
	sideFile.Close()
	if decodeErr != nil {
		return errors.New(errors.ErrCodeCorruptIndex, "decode vector sidecar", decodeErr)
	}

	file, err := os.Open(path)
	if err != nil {
		return errors.New(errors.ErrCodeCorruptIndex, "open vector index file", err)
	}
	defer file.Close()

	graph := newGraph()
	// coder/hnsw Import requires an io.ByteReader.
	if err := graph.Import(bufio.NewReader(file)); err != nil {
		return errors.New(errors.ErrCodeCorruptIndex, "import vector graph", err)
	}

	v.graph = graph
	v.chunks = payload.Chunks
	v.dims = payload.Dims
	v.buildID = payload.BuildID
	return nil
}

func sidecarPath(path string) string {
	return path + ".meta"
}
