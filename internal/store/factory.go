package store

import (
	"fmt"
	"path/filepath"

	"github.com/mathmentor/mathrag/internal/config"
	"github.com/mathmentor/mathrag/internal/errors"
)

// NewLexicalIndex creates the lexical backend named by cfg.Backend. The
// memory backend ignores indexDir; the bleve backend keeps its data under
// indexDir, or in memory when indexDir is empty.
func NewLexicalIndex(cfg config.BM25Config, indexDir string) (LexicalIndex, error) {
	switch cfg.Backend {
	case LexicalBackendMemory, "":
		return NewMemoryBM25(cfg.K1, cfg.B), nil

	case LexicalBackendBleve:
		var dir string
		if indexDir != "" {
			dir = filepath.Join(indexDir, "lexical.bleve")
		}
		return NewBleveIndex(dir)

	default:
		return nil, errors.ConfigError(
			fmt.Sprintf("unknown lexical backend: %s (valid options: memory, bleve)", cfg.Backend), nil)
	}
}
