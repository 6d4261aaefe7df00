package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mathmentor/mathrag/internal/retriever"
)

type searchOptions struct {
	topK     int
	format   string
	noRerank bool
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the knowledge base",
		Long: `Run a hybrid query against the built index.

Examples:
  mathrag search "quadratic formula"
  mathrag search "solve x^2 + 5x + 6 = 0" --top-k 3
  mathrag search "pythagorean theorem" --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd.Context(), cmd, strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().IntVarP(&opts.topK, "top-k", "k", 0, "Maximum number of results (default from config)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")
	cmd.Flags().BoolVar(&opts.noRerank, "no-rerank", false, "Skip the chunk-type rerank")

	return cmd
}

func runSearch(ctx context.Context, cmd *cobra.Command, query string, opts searchOptions) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if opts.noRerank {
		cfg.Retrieval.TypeRerank = false
	}
	logger, cleanup, err := setupLogging(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	engine, err := buildEngine(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer engine.Close()

	if err := engine.LoadPersisted(); err != nil {
		return fmt.Errorf("no usable index found, run 'mathrag index' first: %w", err)
	}

	results, err := engine.Retrieve(ctx, query, opts.topK)
	if err != nil {
		return err
	}

	return printResults(cmd.OutOrStdout(), results, opts.format)
}

func printResults(w io.Writer, results []retriever.Result, format string) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	if len(results) == 0 {
		fmt.Fprintln(w, "No results.")
		return nil
	}
	for i, r := range results {
		fmt.Fprintf(w, "%d. [%s] %s/%s (score %.3f)\n", i+1, r.Type, r.Topic, r.Source, r.Score)
		fmt.Fprintln(w, indent(r.Content, "   "))
	}
	return nil
}

func indent(text, prefix string) string {
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	for i, line := range lines {
		lines[i] = prefix + line
	}
	return strings.Join(lines, "\n")
}
