package embed

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mathmentor/mathrag/internal/config"
)

func TestNewEmbedder_StaticDefault(t *testing.T) {
	e, err := NewEmbedder(context.Background(), config.EmbeddingsConfig{Provider: "static"})
	require.NoError(t, err)
	defer e.Close()

	assert.Equal(t, StaticDimensions, e.Dimensions())
	assert.Equal(t, "static", e.ModelName())
	// CacheSize 0 means no cache wrapper.
	_, isCached := e.(*CachedEmbedder)
	assert.False(t, isCached)
}

func TestNewEmbedder_WrapsWithCache(t *testing.T) {
	e, err := NewEmbedder(context.Background(), config.EmbeddingsConfig{
		Provider:  "static",
		CacheSize: 64,
	})
	require.NoError(t, err)
	defer e.Close()

	_, isCached := e.(*CachedEmbedder)
	assert.True(t, isCached)
}

func TestNewEmbedder_UnknownProvider(t *testing.T) {
	_, err := NewEmbedder(context.Background(), config.EmbeddingsConfig{Provider: "openai"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown embedding provider")
}

func TestNewEmbedder_DimensionMismatchIsFatal(t *testing.T) {
	_, err := NewEmbedder(context.Background(), config.EmbeddingsConfig{
		Provider:   "static",
		Dimensions: 768,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dimensions")
}
