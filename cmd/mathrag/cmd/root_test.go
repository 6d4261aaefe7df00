package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mathmentor/mathrag/internal/config"
)

const fixtureDoc = `# Quadratic Equations

## Quadratic Formula

For ax^2 + bx + c = 0 the roots are x = (-b ± sqrt(b^2-4ac)) / 2a.

## Solution Template

Compute the discriminant b^2-4ac, then apply the quadratic formula.

## Vieta's Theorem

The sum of the roots equals -b/a and the product equals c/a.
`

// writeFixture lays out a knowledge base and a config file pointing at it,
// and returns the config path.
func writeFixture(t *testing.T) string {
	t.Helper()
	root := t.TempDir()

	topicDir := filepath.Join(root, "kb", "algebra")
	require.NoError(t, os.MkdirAll(topicDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(topicDir, "quadratics.md"), []byte(fixtureDoc), 0o644))

	cfg := config.NewConfig()
	cfg.Paths.KnowledgeBase = filepath.Join(root, "kb")
	cfg.Paths.IndexDir = filepath.Join(root, "index")
	cfg.Logging.Level = "error"

	cfgPath := filepath.Join(root, "mathrag.yaml")
	require.NoError(t, cfg.WriteYAML(cfgPath))
	return cfgPath
}

// execute runs the CLI with the given args and captures its output.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestRootCmd_Help(t *testing.T) {
	out, err := execute(t, "--help")
	require.NoError(t, err)
	for _, sub := range []string{"index", "search", "ask", "status", "version"} {
		require.Contains(t, out, sub)
	}
}

func TestRootCmd_UnknownCommand(t *testing.T) {
	_, err := execute(t, "frobnicate")
	require.Error(t, err)
}
