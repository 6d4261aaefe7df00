package retriever

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mathmentor/mathrag/internal/errors"
)

// ManifestVersion is bumped whenever the persisted index layout changes in
// an incompatible way. A mismatch forces a rebuild.
const ManifestVersion = 1

// Persisted file names under the index directory.
const (
	ManifestFileName = "manifest.json"
	VectorFileName   = "vectors.hnsw"
	LexicalFileName  = "lexical.gob"
)

// Manifest describes one complete index build. Both index legs carry the
// manifest's build ID; a leg with a different ID belongs to another build
// and must not be paired with this one.
type Manifest struct {
	Version        int       `json:"version"`
	BuildID        string    `json:"build_id"`
	CreatedAt      time.Time `json:"created_at"`
	ChunkCount     int       `json:"chunk_count"`
	Dimensions     int       `json:"dimensions"`
	EmbedderModel  string    `json:"embedder_model"`
	LexicalBackend string    `json:"lexical_backend"`
}

func nowUTC() time.Time {
	return time.Now().UTC()
}

// NewBuildID returns a random 16-hex-char build tag.
func NewBuildID() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand never fails on supported platforms; fall back to a
		// timestamp tag rather than panic.
		return fmt.Sprintf("t%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(buf)
}

// SaveManifest writes the manifest atomically into dir.
func SaveManifest(dir string, m Manifest) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.New(errors.ErrCodeIndexFailed, "create index directory", err)
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return errors.New(errors.ErrCodeIndexFailed, "encode manifest", err)
	}

	path := filepath.Join(dir, ManifestFileName)
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return errors.New(errors.ErrCodeIndexFailed, "write manifest", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return errors.New(errors.ErrCodeIndexFailed, "rename manifest", err)
	}
	return nil
}

// LoadManifest reads the manifest from dir and validates its version.
func LoadManifest(dir string) (*Manifest, error) {
	path := filepath.Join(dir, ManifestFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New(errors.ErrCodeCorruptIndex,
			fmt.Sprintf("read manifest at %s", path), err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, errors.New(errors.ErrCodeCorruptIndex, "decode manifest", err)
	}
	if m.Version != ManifestVersion {
		return nil, errors.New(errors.ErrCodeIndexVersionMismatch,
			fmt.Sprintf("manifest version %d, expected %d (rebuild with 'mathrag index')", m.Version, ManifestVersion), nil)
	}
	return &m, nil
}
