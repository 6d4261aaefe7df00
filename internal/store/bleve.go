package store

import (
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/unicode"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/mathmentor/mathrag/internal/errors"
	"github.com/mathmentor/mathrag/internal/kb"
)

// mathAnalyzerName is the registered analyzer for chunk content: unicode
// tokenization plus lowercasing, no stemming. Math identifiers like "sin"
// or "discriminant" must match exactly.
const mathAnalyzerName = "math_text"

const bleveBatchSize = 100

// internalBuildIDKey is the bleve internal-KV key carrying the build tag.
// Storing the tag inside the segment store pairs it with the segments
// themselves, so a sidecar from another build cannot pass unnoticed.
var internalBuildIDKey = []byte("build_id")

// BleveIndex is the alternate lexical backend, backed by a bleve v2 index
// on disk. Scores come from bleve's own ranking rather than the explicit
// statistics of MemoryBM25; the chunk list rides in a gob sidecar keyed by
// document position, exactly like the vector leg.
//
// Fit builds the new corpus in a staging directory next to the live one.
// The live directory is replaced only at Save, together with the sidecar,
// so an interrupted rebuild leaves the previous persisted index loadable.
type BleveIndex struct {
	mu      sync.RWMutex
	index   bleve.Index
	dir     string
	chunks  []kb.Chunk
	buildID string
	staged  bool
	closed  bool
}

// bleveSidecar persists what bleve itself does not: the chunk metadata and
// the build tag.
type bleveSidecar struct {
	Chunks  []kb.Chunk
	BuildID string
}

// bleveDoc is the indexed document shape.
type bleveDoc struct {
	Content string `json:"content"`
}

// NewBleveIndex opens or creates a bleve index rooted at dir. An empty dir
// creates a memory-only index for tests.
func NewBleveIndex(dir string) (*BleveIndex, error) {
	idx, err := openBleve(dir)
	if err != nil {
		return nil, err
	}
	return &BleveIndex{index: idx, dir: dir}, nil
}

func openBleve(dir string) (bleve.Index, error) {
	im, err := buildMathMapping()
	if err != nil {
		return nil, err
	}

	if dir == "" {
		idx, err := bleve.NewMemOnly(im)
		if err != nil {
			return nil, errors.New(errors.ErrCodeIndexFailed, "create in-memory bleve index", err)
		}
		return idx, nil
	}

	if _, statErr := os.Stat(dir); statErr == nil {
		idx, err := bleve.Open(dir)
		if err != nil {
			return nil, errors.New(errors.ErrCodeCorruptIndex,
				fmt.Sprintf("open bleve index at %s", dir), err)
		}
		return idx, nil
	}

	idx, err := bleve.New(dir, im)
	if err != nil {
		return nil, errors.New(errors.ErrCodeIndexFailed,
			fmt.Sprintf("create bleve index at %s", dir), err)
	}
	return idx, nil
}

func buildMathMapping() (*mapping.IndexMappingImpl, error) {
	im := bleve.NewIndexMapping()
	err := im.AddCustomAnalyzer(mathAnalyzerName, map[string]interface{}{
		"type":      custom.Name,
		"tokenizer": unicode.Name,
		"token_filters": []string{
			lowercase.Name,
		},
	})
	if err != nil {
		return nil, errors.New(errors.ErrCodeIndexFailed, "register math analyzer", err)
	}
	im.DefaultAnalyzer = mathAnalyzerName
	return im, nil
}

// stagingDir is where Fit builds the next corpus before Save swaps it in.
func (b *BleveIndex) stagingDir() string {
	return b.dir + ".next"
}

// Fit reindexes the full chunk set into a fresh staging index. The live
// directory keeps the previous build until Save commits the swap, so a
// rebuild that fails or is interrupted loses nothing. Document IDs are
// zero-padded positions, so bleve hit IDs map straight back into the chunk
// list.
func (b *BleveIndex) Fit(chunks []kb.Chunk) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return errors.New(errors.ErrCodeIndexFailed, "lexical index is closed", nil)
	}

	if err := b.index.Close(); err != nil {
		return errors.New(errors.ErrCodeIndexFailed, "close bleve index for rebuild", err)
	}

	target := ""
	if b.dir != "" {
		target = b.stagingDir()
		if err := os.RemoveAll(target); err != nil {
			return errors.New(errors.ErrCodeIndexFailed, "remove stale staging index", err)
		}
	}
	idx, err := openBleve(target)
	if err != nil {
		return err
	}
	b.index = idx
	b.staged = b.dir != ""

	batch := b.index.NewBatch()
	for i, chunk := range chunks {
		if err := batch.Index(docID(i), bleveDoc{Content: chunk.Content}); err != nil {
			return errors.New(errors.ErrCodeIndexFailed,
				fmt.Sprintf("index chunk %d", i), err)
		}
		if batch.Size() >= bleveBatchSize {
			if err := b.index.Batch(batch); err != nil {
				return errors.New(errors.ErrCodeIndexFailed, "execute bleve batch", err)
			}
			batch = b.index.NewBatch()
		}
	}
	if batch.Size() > 0 {
		if err := b.index.Batch(batch); err != nil {
			return errors.New(errors.ErrCodeIndexFailed, "execute bleve batch", err)
		}
	}

	b.chunks = make([]kb.Chunk, len(chunks))
	copy(b.chunks, chunks)
	return nil
}

// Search runs a match query over chunk content and returns up to k hits.
func (b *BleveIndex) Search(query string, k int) ([]LexicalResult, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, errors.New(errors.ErrCodeIndexFailed, "lexical index is closed", nil)
	}
	if len(b.chunks) == 0 || k <= 0 || strings.TrimSpace(query) == "" {
		return []LexicalResult{}, nil
	}

	matchQuery := bleve.NewMatchQuery(query)
	matchQuery.SetField("content")

	req := bleve.NewSearchRequest(matchQuery)
	req.Size = k

	res, err := b.index.Search(req)
	if err != nil {
		return nil, errors.New(errors.ErrCodeIndexFailed, "bleve search", err)
	}

	results := make([]LexicalResult, 0, len(res.Hits))
	for _, hit := range res.Hits {
		pos, err := strconv.Atoi(hit.ID)
		if err != nil || pos < 0 || pos >= len(b.chunks) {
			continue
		}
		results = append(results, LexicalResult{Chunk: b.chunks[pos], Score: hit.Score})
	}
	return results, nil
}

// Count returns the number of indexed chunks.
func (b *BleveIndex) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.chunks)
}

// SetBuildID tags the index with the build it belongs to.
func (b *BleveIndex) SetBuildID(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buildID = id
}

// BuildID returns the persisted build tag.
func (b *BleveIndex) BuildID() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.buildID
}

// Save commits the staged index and writes the chunk sidecar. The build tag
// goes into the bleve store first, then the staging directory replaces the
// live one, then the sidecar lands via temp-file rename. A crash between the
// swap and the sidecar write leaves segments and sidecar with different
// build tags, which Load rejects.
func (b *BleveIndex) Save(path string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return errors.New(errors.ErrCodeIndexFailed, "lexical index is closed", nil)
	}

	if err := b.index.SetInternal(internalBuildIDKey, []byte(b.buildID)); err != nil {
		return errors.New(errors.ErrCodeIndexFailed, "record build tag", err)
	}

	if b.staged {
		if err := b.commitStaged(); err != nil {
			return err
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.New(errors.ErrCodeIndexFailed, "create index directory", err)
	}

	tmpPath := path + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return errors.New(errors.ErrCodeIndexFailed, "create lexical sidecar", err)
	}
	payload := bleveSidecar{Chunks: b.chunks, BuildID: b.buildID}
	if err := gob.NewEncoder(file).Encode(payload); err != nil {
		file.Close()
		os.Remove(tmpPath)
		return errors.New(errors.ErrCodeIndexFailed, "encode lexical sidecar", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmpPath)
		return errors.New(errors.ErrCodeIndexFailed, "close lexical sidecar", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return errors.New(errors.ErrCodeIndexFailed, "rename lexical sidecar", err)
	}
	return nil
}

// commitStaged swaps the staging directory into the live location and
// reopens the index from it. Caller holds the write lock.
func (b *BleveIndex) commitStaged() error {
	if err := b.index.Close(); err != nil {
		return errors.New(errors.ErrCodeIndexFailed, "close staged bleve index", err)
	}

	oldDir := b.dir + ".old"
	if _, err := os.Stat(b.dir); err == nil {
		if err := os.RemoveAll(oldDir); err != nil {
			return errors.New(errors.ErrCodeIndexFailed, "remove previous backup index", err)
		}
		if err := os.Rename(b.dir, oldDir); err != nil {
			return errors.New(errors.ErrCodeIndexFailed, "retire previous bleve index", err)
		}
	}
	if err := os.Rename(b.stagingDir(), b.dir); err != nil {
		return errors.New(errors.ErrCodeIndexFailed, "commit staged bleve index", err)
	}
	_ = os.RemoveAll(oldDir)

	idx, err := bleve.Open(b.dir)
	if err != nil {
		return errors.New(errors.ErrCodeCorruptIndex,
			fmt.Sprintf("reopen committed bleve index at %s", b.dir), err)
	}
	b.index = idx
	b.staged = false
	return nil
}

// Load restores the chunk sidecar and verifies it belongs to the same build
// as the bleve segments opened at construction. Memory-only indexes carry
// nothing durable to cross-check.
func (b *BleveIndex) Load(path string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	file, err := os.Open(path)
	if err != nil {
		return errors.New(errors.ErrCodeCorruptIndex, "open lexical sidecar", err)
	}
	defer file.Close()

	var payload bleveSidecar
	if err := gob.NewDecoder(file).Decode(&payload); err != nil {
		return errors.New(errors.ErrCodeCorruptIndex, "decode lexical sidecar", err)
	}

	if b.dir != "" {
		stored, err := b.index.GetInternal(internalBuildIDKey)
		if err != nil {
			return errors.Wrap(errors.ErrCodeCorruptIndex, err)
		}
		if string(stored) != payload.BuildID {
			return errors.New(errors.ErrCodeCorruptIndex,
				fmt.Sprintf("bleve store and sidecar belong to different builds (store %q, sidecar %q)",
					string(stored), payload.BuildID), nil)
		}
	}

	b.chunks = payload.Chunks
	b.buildID = payload.BuildID
	return nil
}

// Close releases the underlying bleve index.
func (b *BleveIndex) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	return b.index.Close()
}

func docID(pos int) string {
	return fmt.Sprintf("%08d", pos)
}
