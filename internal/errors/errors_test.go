package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_DerivesCategoryAndSeverity(t *testing.T) {
	tests := []struct {
		name     string
		code     string
		category Category
		severity Severity
	}{
		{"config", ErrCodeConfigInvalid, CategoryConfig, SeverityError},
		{"kb missing is fatal", ErrCodeKnowledgeBaseNotFound, CategoryIO, SeverityFatal},
		{"kb empty is fatal", ErrCodeKnowledgeBaseEmpty, CategoryIO, SeverityFatal},
		{"corrupt index is recoverable", ErrCodeCorruptIndex, CategoryIO, SeverityWarning},
		{"dimension mismatch is fatal", ErrCodeDimensionMismatch, CategoryValidation, SeverityFatal},
		{"network timeout", ErrCodeNetworkTimeout, CategoryNetwork, SeverityError},
		{"internal", ErrCodeInternal, CategoryInternal, SeverityError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code, "boom", nil)
			assert.Equal(t, tt.category, err.Category)
			assert.Equal(t, tt.severity, err.Severity)
		})
	}
}

func TestError_Format(t *testing.T) {
	err := New(ErrCodeCorruptIndex, "vector index unreadable", nil)
	assert.Equal(t, "[ERR_203_CORRUPT_INDEX] vector index unreadable", err.Error())
}

func TestError_Unwrap(t *testing.T) {
	cause := fmt.Errorf("gob: unexpected EOF")
	err := Wrap(ErrCodeCorruptIndex, cause)
	require.NotNil(t, err)
	assert.Equal(t, cause, stderrors.Unwrap(err))
	assert.ErrorIs(t, err, cause)
}

func TestError_IsByCode(t *testing.T) {
	a := New(ErrCodeCorruptIndex, "first", nil)
	b := New(ErrCodeCorruptIndex, "second", nil)
	c := New(ErrCodeConfigInvalid, "other", nil)

	assert.ErrorIs(t, a, b)
	assert.NotErrorIs(t, a, c)
}

func TestWrap_NilReturnsNil(t *testing.T) {
	assert.Nil(t, Wrap(ErrCodeInternal, nil))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(New(ErrCodeNetworkTimeout, "timeout", nil)))
	assert.False(t, IsRetryable(New(ErrCodeConfigInvalid, "bad", nil)))
	assert.False(t, IsRetryable(stderrors.New("plain")))
	assert.False(t, IsRetryable(nil))
}

func TestIsFatal(t *testing.T) {
	assert.True(t, IsFatal(New(ErrCodeKnowledgeBaseEmpty, "nothing to index", nil)))
	assert.False(t, IsFatal(New(ErrCodeCorruptIndex, "recoverable", nil)))
	assert.False(t, IsFatal(nil))
}

func TestWithDetailAndSuggestion(t *testing.T) {
	err := New(ErrCodeDimensionMismatch, "384 vs 256", nil).
		WithDetail("expected", "384").
		WithDetail("got", "256").
		WithSuggestion("rebuild the index with 'mathrag index'")

	assert.Equal(t, "384", err.Details["expected"])
	assert.Equal(t, "256", err.Details["got"])
	assert.Contains(t, err.Suggestion, "mathrag index")
}
