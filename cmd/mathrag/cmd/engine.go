package cmd

import (
	"context"
	"log/slog"

	"github.com/mathmentor/mathrag/internal/config"
	"github.com/mathmentor/mathrag/internal/embed"
	"github.com/mathmentor/mathrag/internal/retriever"
	"github.com/mathmentor/mathrag/internal/store"
)

// buildEngine assembles the retrieval engine from config: embedder via the
// provider factory, lexical index via the backend factory, then the engine
// itself. The caller owns Close.
func buildEngine(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*retriever.Engine, error) {
	embedder, err := embed.NewEmbedder(ctx, cfg.Embeddings)
	if err != nil {
		return nil, err
	}

	lexical, err := store.NewLexicalIndex(cfg.BM25, cfg.Paths.IndexDir)
	if err != nil {
		embedder.Close()
		return nil, err
	}

	engine, err := retriever.NewEngine(cfg, embedder, lexical, logger)
	if err != nil {
		embedder.Close()
		lexical.Close()
		return nil, err
	}
	return engine, nil
}
