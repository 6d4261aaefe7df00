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

type askOptions struct {
	topic    string
	subtopic string
	format   string
}

func newAskCmd() *cobra.Command {
	var opts askOptions

	cmd := &cobra.Command{
		Use:   "ask [problem statement]",
		Short: "Retrieve context for a math problem",
		Long: `Retrieve knowledge-base context for a full problem statement. The
statement is taken from the arguments, or from stdin when no arguments are
given. Topic and subtopic hints narrow the query.

The output is the retrieval package a solver would receive: the ranked
context chunks, an aggregate confidence, and the source documents.

Examples:
  mathrag ask "solve x^2 + 5x + 6 = 0"
  mathrag ask --topic algebra "find the roots of t^2 - 9 = 0"
  echo "derivative of x^3" | mathrag ask --format json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			statement := strings.Join(args, " ")
			if strings.TrimSpace(statement) == "" {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return err
				}
				statement = string(data)
			}
			return runAsk(cmd.Context(), cmd, statement, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.topic, "topic", "t", "", "Topic hint (e.g. algebra)")
	cmd.Flags().StringVarP(&opts.subtopic, "subtopic", "s", "", "Subtopic hint (e.g. quadratics)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")

	return cmd
}

func runAsk(ctx context.Context, cmd *cobra.Command, statement string, opts askOptions) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
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

	pc, err := engine.RetrieveForProblem(ctx, retriever.ParsedProblem{
		Statement: statement,
		Topic:     opts.topic,
		Subtopic:  opts.subtopic,
	})
	if err != nil {
		return err
	}

	return printProblemContext(cmd.OutOrStdout(), pc, opts.format)
}

func printProblemContext(w io.Writer, pc *retriever.ProblemContext, format string) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(pc)
	}

	fmt.Fprintf(w, "Query:      %s\n", pc.Query)
	fmt.Fprintf(w, "Confidence: %.3f\n", pc.Confidence)
	if len(pc.Sources) > 0 {
		fmt.Fprintf(w, "Sources:    %s\n", strings.Join(pc.Sources, ", "))
	}
	fmt.Fprintln(w)

	if len(pc.Results) == 0 {
		fmt.Fprintln(w, "No context retrieved.")
		return nil
	}
	for i, r := range pc.Results {
		fmt.Fprintf(w, "%d. [%s] %s (score %.3f)\n", i+1, r.Type, r.Source, r.Score)
		fmt.Fprintln(w, indent(r.Content, "   "))
	}
	return nil
}
