package cmd

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mathmentor/mathrag/internal/retriever"
)

// statusInfo is the machine-readable status shape.
type statusInfo struct {
	State          string    `json:"state"`
	KnowledgeBase  string    `json:"knowledge_base"`
	IndexDir       string    `json:"index_dir"`
	BuildID        string    `json:"build_id,omitempty"`
	BuiltAt        time.Time `json:"built_at,omitempty"`
	ChunkCount     int       `json:"chunk_count,omitempty"`
	Dimensions     int       `json:"dimensions,omitempty"`
	EmbedderModel  string    `json:"embedder_model,omitempty"`
	LexicalBackend string    `json:"lexical_backend,omitempty"`
}

func newStatusCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show index status",
		Long:  `Report whether a built index exists and what it contains.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output status as JSON")

	return cmd
}

func runStatus(cmd *cobra.Command, jsonOutput bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	info := statusInfo{
		State:         string(retriever.StateEmpty),
		KnowledgeBase: cfg.Paths.KnowledgeBase,
		IndexDir:      cfg.Paths.IndexDir,
	}

	manifest, err := retriever.LoadManifest(cfg.Paths.IndexDir)
	if err == nil {
		info.State = string(retriever.StatePopulated)
		info.BuildID = manifest.BuildID
		info.BuiltAt = manifest.CreatedAt
		info.ChunkCount = manifest.ChunkCount
		info.Dimensions = manifest.Dimensions
		info.EmbedderModel = manifest.EmbedderModel
		info.LexicalBackend = manifest.LexicalBackend
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	}

	fmt.Fprintf(out, "State:           %s\n", info.State)
	fmt.Fprintf(out, "Knowledge base:  %s\n", info.KnowledgeBase)
	fmt.Fprintf(out, "Index directory: %s\n", info.IndexDir)
	if info.State == string(retriever.StatePopulated) {
		fmt.Fprintf(out, "Build:           %s (%s)\n", info.BuildID, info.BuiltAt.Format(time.RFC3339))
		fmt.Fprintf(out, "Chunks:          %d\n", info.ChunkCount)
		fmt.Fprintf(out, "Dimensions:      %d\n", info.Dimensions)
		fmt.Fprintf(out, "Embedder:        %s\n", info.EmbedderModel)
		fmt.Fprintf(out, "Lexical backend: %s\n", info.LexicalBackend)
	} else {
		fmt.Fprintln(out, "No index built. Run 'mathrag index'.")
	}
	return nil
}
