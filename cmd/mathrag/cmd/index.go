package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/mathmentor/mathrag/internal/kb"
)

// smoke queries exercise the freshly built index across chunk types.
var verifyQueries = []string{
	"solve x^2 + 5x + 6 = 0",
	"quadratic formula",
	"theorem",
}

func newIndexCmd() *cobra.Command {
	var verify bool

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Build the retrieval index from the knowledge base",
		Long: `Ingest the knowledge base directory, embed every chunk, and build both
index legs (vector and BM25). The previous index is replaced atomically.

Examples:
  mathrag index
  mathrag index --verify`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runIndex(cmd.Context(), cmd, verify)
		},
	}

	cmd.Flags().BoolVar(&verify, "verify", false, "Run smoke queries after building")

	return cmd
}

func runIndex(ctx context.Context, cmd *cobra.Command, verify bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, cleanup, err := setupLogging(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	loader := kb.NewLoader(logger)
	chunks, err := loader.LoadDir(cfg.Paths.KnowledgeBase)
	if err != nil {
		return err
	}

	byType := make(map[kb.ChunkType]int)
	for _, c := range chunks {
		byType[c.Type]++
	}

	engine, err := buildEngine(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer engine.Close()

	if err := engine.BuildIndex(ctx, chunks); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Indexed %d chunks from %s\n", len(chunks), cfg.Paths.KnowledgeBase)
	for _, t := range []kb.ChunkType{kb.ChunkTypeSolutionTemplate, kb.ChunkTypeFormulas, kb.ChunkTypeTheorems, kb.ChunkTypeGeneral} {
		if byType[t] > 0 {
			fmt.Fprintf(out, "  %-18s %d\n", t, byType[t])
		}
	}
	fmt.Fprintf(out, "Index written to %s\n", cfg.Paths.IndexDir)

	if !verify {
		return nil
	}

	fmt.Fprintln(out, "\nVerification:")
	for _, query := range verifyQueries {
		results, err := engine.Retrieve(ctx, query, 1)
		if err != nil {
			return err
		}
		if len(results) == 0 {
			logger.Warn("smoke query returned nothing", slog.String("query", query))
			fmt.Fprintf(out, "  %-30q -> no results\n", query)
			continue
		}
		fmt.Fprintf(out, "  %-30q -> [%s] %s (score %.3f)\n",
			query, results[0].Type, results[0].Source, results[0].Score)
	}
	return nil
}
