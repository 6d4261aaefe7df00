package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig_Defaults(t *testing.T) {
	cfg := NewConfig()

	assert.Equal(t, 5, cfg.Retrieval.TopK)
	assert.Equal(t, 60, cfg.Retrieval.RRFConstant)
	assert.True(t, cfg.Retrieval.TypeRerank)
	assert.Equal(t, 0.6, cfg.Retrieval.FusedWeight)
	assert.Equal(t, 0.4, cfg.Retrieval.PriorWeight)
	assert.Equal(t, 1.5, cfg.BM25.K1)
	assert.Equal(t, 0.75, cfg.BM25.B)
	assert.Equal(t, "memory", cfg.BM25.Backend)
	assert.Equal(t, "static", cfg.Embeddings.Provider)

	assert.Equal(t, 1.0, cfg.Retrieval.TypePriorities["solution_template"])
	assert.Equal(t, 0.9, cfg.Retrieval.TypePriorities["formulas"])
	assert.Equal(t, 0.7, cfg.Retrieval.TypePriorities["theorems"])
	assert.Equal(t, 0.4, cfg.Retrieval.TypePriorities["general"])

	assert.NoError(t, cfg.Validate())
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 60, cfg.Retrieval.RRFConstant)
}

func TestLoad_YAMLOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mathrag.yaml")
	content := `
paths:
  knowledge_base: /data/kb
retrieval:
  top_k: 8
  rrf_constant: 90
bm25:
  k1: 1.2
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/data/kb", cfg.Paths.KnowledgeBase)
	assert.Equal(t, 8, cfg.Retrieval.TopK)
	assert.Equal(t, 90, cfg.Retrieval.RRFConstant)
	assert.Equal(t, 1.2, cfg.BM25.K1)
	// Untouched sections keep defaults.
	assert.Equal(t, 0.75, cfg.BM25.B)
	assert.Equal(t, 1.0, cfg.Retrieval.TypePriorities["solution_template"])
}

func TestLoad_EnvOverridesWin(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mathrag.yaml")
	require.NoError(t, os.WriteFile(path, []byte("retrieval:\n  rrf_constant: 90\n"), 0o644))

	t.Setenv("MATHRAG_RRF_CONSTANT", "120")
	t.Setenv("MATHRAG_TOP_K", "3")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 120, cfg.Retrieval.RRFConstant)
	assert.Equal(t, 3, cfg.Retrieval.TopK)
}

func TestLoad_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mathrag.yaml")
	require.NoError(t, os.WriteFile(path, []byte("retrieval: ["), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"negative top_k", func(c *Config) { c.Retrieval.TopK = -1 }, "top_k"},
		{"zero rrf constant", func(c *Config) { c.Retrieval.RRFConstant = 0 }, "rrf_constant"},
		{"weights not summing", func(c *Config) { c.Retrieval.FusedWeight = 0.9 }, "sum to 1.0"},
		{"negative weight", func(c *Config) {
			c.Retrieval.FusedWeight = -0.2
			c.Retrieval.PriorWeight = 1.2
		}, "non-negative"},
		{"bad k1", func(c *Config) { c.BM25.K1 = 0 }, "k1"},
		{"bad b", func(c *Config) { c.BM25.B = 1.5 }, "bm25.b"},
		{"bad backend", func(c *Config) { c.BM25.Backend = "sqlite" }, "backend"},
		{"bad provider", func(c *Config) { c.Embeddings.Provider = "openai" }, "provider"},
		{"zero batch size", func(c *Config) { c.Embeddings.BatchSize = 0 }, "batch_size"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestWriteYAML_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "mathrag.yaml")

	cfg := NewConfig()
	cfg.Retrieval.TopK = 7
	require.NoError(t, cfg.WriteYAML(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7, loaded.Retrieval.TopK)
	assert.Equal(t, cfg.BM25.K1, loaded.BM25.K1)
}
