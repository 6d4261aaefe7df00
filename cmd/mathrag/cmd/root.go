// Package cmd provides the CLI commands for mathrag.
package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/mathmentor/mathrag/internal/config"
	"github.com/mathmentor/mathrag/internal/logging"
	"github.com/mathmentor/mathrag/pkg/version"
)

var (
	configPath string
	logLevel   string
)

// NewRootCmd creates the root command for the mathrag CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mathrag",
		Short: "Hybrid retrieval over a math knowledge base",
		Long: `mathrag indexes a directory of sectioned markdown documents and answers
queries with hybrid retrieval: BM25 keyword search and dense vector search,
fused with Reciprocal Rank Fusion and reranked by chunk type.

Build an index with 'mathrag index', then query it with 'mathrag search'
or feed whole problem statements to 'mathrag ask'.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.SetVersionTemplate("mathrag version {{.Version}}\n")

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file (default: ./mathrag.yaml)")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")

	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newAskCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

// loadConfig reads the config file and applies CLI overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	return cfg, nil
}

// setupLogging initializes slog from config and returns a cleanup func.
func setupLogging(cfg *config.Config) (*slog.Logger, func(), error) {
	logCfg := logging.Config{
		Level:         cfg.Logging.Level,
		FilePath:      cfg.Logging.File,
		WriteToStderr: true,
	}
	return logging.Setup(logCfg)
}
