package embed

import (
	"context"
	"fmt"
	"strings"

	"github.com/mathmentor/mathrag/internal/config"
)

// ProviderType represents an embedding provider.
type ProviderType string

const (
	// ProviderStatic uses hash-based embeddings (default; no external
	// dependencies, deterministic).
	ProviderStatic ProviderType = "static"

	// ProviderOllama uses the Ollama HTTP API for embeddings.
	ProviderOllama ProviderType = "ollama"
)

// NewEmbedder creates an embedder from configuration. A failure to construct
// the configured provider is returned as-is: the engine cannot function
// without its embedding model, so there is no silent fallback.
//
// The returned embedder is wrapped with an LRU cache when cfg.CacheSize > 0.
func NewEmbedder(ctx context.Context, cfg config.EmbeddingsConfig) (Embedder, error) {
	var embedder Embedder

	switch ProviderType(strings.ToLower(cfg.Provider)) {
	case ProviderStatic, "":
		embedder = NewStaticEmbedder()

	case ProviderOllama:
		e, err := NewOllamaEmbedder(ctx, OllamaConfig{
			Host:       cfg.OllamaHost,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create ollama embedder: %w", err)
		}
		embedder = e

	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}

	if cfg.Dimensions > 0 && embedder.Dimensions() != cfg.Dimensions {
		_ = embedder.Close()
		return nil, fmt.Errorf("embedder %s produces %d dimensions, config expects %d",
			embedder.ModelName(), embedder.Dimensions(), cfg.Dimensions)
	}

	if cfg.CacheSize > 0 {
		embedder = NewCachedEmbedder(embedder, cfg.CacheSize)
	}

	return embedder, nil
}
