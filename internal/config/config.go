// Package config loads and validates mathrag configuration.
//
// Configuration is applied in order of increasing precedence:
//  1. Hardcoded defaults
//  2. Config file (mathrag.yaml in the working directory, or --config path)
//  3. Environment variables (MATHRAG_*)
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config represents the complete mathrag configuration.
type Config struct {
	Version    int              `yaml:"version" json:"version"`
	Paths      PathsConfig      `yaml:"paths" json:"paths"`
	Retrieval  RetrievalConfig  `yaml:"retrieval" json:"retrieval"`
	BM25       BM25Config       `yaml:"bm25" json:"bm25"`
	Embeddings EmbeddingsConfig `yaml:"embeddings" json:"embeddings"`
	Logging    LoggingConfig    `yaml:"logging" json:"logging"`
}

// PathsConfig configures knowledge-base and index locations.
type PathsConfig struct {
	// KnowledgeBase is the root directory of topic subdirectories with
	// sectioned markdown documents.
	KnowledgeBase string `yaml:"knowledge_base" json:"knowledge_base"`
	// IndexDir is where the persisted index (vectors + lexical + manifest)
	// lives.
	IndexDir string `yaml:"index_dir" json:"index_dir"`
}

// RetrievalConfig configures hybrid retrieval parameters.
//
// The RRF constant and rerank weights default to the empirically validated
// values (60 and 0.6/0.4) and are tunable via config file or env vars
// (MATHRAG_RRF_CONSTANT, MATHRAG_FUSED_WEIGHT, MATHRAG_PRIOR_WEIGHT).
type RetrievalConfig struct {
	// TopK is the default number of results returned per query.
	TopK int `yaml:"top_k" json:"top_k"`

	// RRFConstant is the RRF fusion smoothing parameter (k).
	// Higher values reduce the impact of rank differences.
	RRFConstant int `yaml:"rrf_constant" json:"rrf_constant"`

	// TypeRerank enables the chunk-type prior rerank after fusion.
	TypeRerank bool `yaml:"type_rerank" json:"type_rerank"`

	// FusedWeight is the weight of the fused RRF score in the final score.
	// Must sum to 1.0 with PriorWeight.
	FusedWeight float64 `yaml:"fused_weight" json:"fused_weight"`

	// PriorWeight is the weight of the chunk-type prior in the final score.
	// Must sum to 1.0 with FusedWeight.
	PriorWeight float64 `yaml:"prior_weight" json:"prior_weight"`

	// TypePriorities maps chunk types to their prior relevance weight.
	// Unlisted types score 0.
	TypePriorities map[string]float64 `yaml:"type_priorities" json:"type_priorities"`
}

// BM25Config configures the lexical index.
type BM25Config struct {
	// K1 is the term frequency saturation parameter.
	K1 float64 `yaml:"k1" json:"k1"`

	// B is the length normalization parameter.
	B float64 `yaml:"b" json:"b"`

	// Backend selects the lexical index backend.
	// Options: "memory" (default, explicit BM25 statistics) or "bleve".
	Backend string `yaml:"backend" json:"backend"`
}

// EmbeddingsConfig configures the embedding provider.
type EmbeddingsConfig struct {
	// Provider selects the embedder: "static" (default) or "ollama".
	Provider string `yaml:"provider" json:"provider"`
	// Model is the model name for remote providers.
	Model string `yaml:"model" json:"model"`
	// Dimensions is the expected embedding dimension (0 = provider default).
	Dimensions int `yaml:"dimensions" json:"dimensions"`
	// BatchSize is the number of texts embedded per batch during ingestion.
	BatchSize int `yaml:"batch_size" json:"batch_size"`
	// OllamaHost is the Ollama API endpoint.
	OllamaHost string `yaml:"ollama_host" json:"ollama_host"`
	// CacheSize is the query-embedding LRU cache size (0 disables caching).
	CacheSize int `yaml:"cache_size" json:"cache_size"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// CurrentVersion is the current config schema version.
const CurrentVersion = 1

// Default chunk-type priors. Solution templates carry the strongest prior
// because they map most directly onto how a problem gets solved.
func defaultTypePriorities() map[string]float64 {
	return map[string]float64{
		"solution_template": 1.0,
		"formulas":          0.9,
		"theorems":          0.7,
		"general":           0.4,
	}
}

// NewConfig returns a Config populated with defaults.
func NewConfig() *Config {
	return &Config{
		Version: CurrentVersion,
		Paths: PathsConfig{
			KnowledgeBase: "knowledge_base",
			IndexDir:      defaultIndexDir(),
		},
		Retrieval: RetrievalConfig{
			TopK:           5,
			RRFConstant:    60,
			TypeRerank:     true,
			FusedWeight:    0.6,
			PriorWeight:    0.4,
			TypePriorities: defaultTypePriorities(),
		},
		BM25: BM25Config{
			K1:      1.5,
			B:       0.75,
			Backend: "memory",
		},
		Embeddings: EmbeddingsConfig{
			Provider:   "static",
			BatchSize:  32,
			OllamaHost: "http://localhost:11434",
			CacheSize:  256,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// defaultIndexDir returns the default persisted index directory.
func defaultIndexDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".mathrag", "index")
	}
	return filepath.Join(home, ".mathrag", "index")
}

// Load loads configuration from the given file path. An empty path tries
// mathrag.yaml in the working directory; a missing file falls back to
// defaults. Environment overrides are applied last, then the result is
// validated.
func Load(path string) (*Config, error) {
	cfg := NewConfig()

	if path == "" {
		path = "mathrag.yaml"
		if _, err := os.Stat(path); err != nil {
			path = ""
		}
	}

	if path != "" {
		if err := cfg.loadYAML(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// loadYAML loads and merges configuration from a YAML file.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	// Unmarshal replaces the whole map when the file lists priorities, and
	// leaves it nil when the section is absent.
	if c.Retrieval.TypePriorities == nil {
		c.Retrieval.TypePriorities = defaultTypePriorities()
	}

	return nil
}

// applyEnvOverrides applies MATHRAG_* environment variables.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("MATHRAG_KNOWLEDGE_BASE"); v != "" {
		c.Paths.KnowledgeBase = v
	}
	if v := os.Getenv("MATHRAG_INDEX_DIR"); v != "" {
		c.Paths.IndexDir = v
	}
	if v := os.Getenv("MATHRAG_TOP_K"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Retrieval.TopK = n
		}
	}
	if v := os.Getenv("MATHRAG_RRF_CONSTANT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Retrieval.RRFConstant = n
		}
	}
	if v := os.Getenv("MATHRAG_FUSED_WEIGHT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Retrieval.FusedWeight = f
		}
	}
	if v := os.Getenv("MATHRAG_PRIOR_WEIGHT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Retrieval.PriorWeight = f
		}
	}
	if v := os.Getenv("MATHRAG_EMBED_PROVIDER"); v != "" {
		c.Embeddings.Provider = v
	}
	if v := os.Getenv("MATHRAG_OLLAMA_HOST"); v != "" {
		c.Embeddings.OllamaHost = v
	}
	if v := os.Getenv("MATHRAG_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// weightSumTolerance allows for floating-point drift in user-supplied weights.
const weightSumTolerance = 1e-9

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if c.Retrieval.TopK <= 0 {
		return fmt.Errorf("retrieval.top_k must be positive, got %d", c.Retrieval.TopK)
	}
	if c.Retrieval.RRFConstant <= 0 {
		return fmt.Errorf("retrieval.rrf_constant must be positive, got %d", c.Retrieval.RRFConstant)
	}
	if c.Retrieval.FusedWeight < 0 || c.Retrieval.PriorWeight < 0 {
		return fmt.Errorf("retrieval weights must be non-negative")
	}
	sum := c.Retrieval.FusedWeight + c.Retrieval.PriorWeight
	if sum < 1.0-weightSumTolerance || sum > 1.0+weightSumTolerance {
		return fmt.Errorf("retrieval.fused_weight + retrieval.prior_weight must sum to 1.0, got %.4f", sum)
	}
	if c.BM25.K1 <= 0 {
		return fmt.Errorf("bm25.k1 must be positive, got %.2f", c.BM25.K1)
	}
	if c.BM25.B < 0 || c.BM25.B > 1 {
		return fmt.Errorf("bm25.b must be in [0, 1], got %.2f", c.BM25.B)
	}
	switch c.BM25.Backend {
	case "memory", "bleve":
	default:
		return fmt.Errorf("bm25.backend must be \"memory\" or \"bleve\", got %q", c.BM25.Backend)
	}
	switch c.Embeddings.Provider {
	case "static", "ollama":
	default:
		return fmt.Errorf("embeddings.provider must be \"static\" or \"ollama\", got %q", c.Embeddings.Provider)
	}
	if c.Embeddings.BatchSize <= 0 {
		return fmt.Errorf("embeddings.batch_size must be positive, got %d", c.Embeddings.BatchSize)
	}
	return nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
