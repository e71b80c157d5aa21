package errors_test

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	photoerrors "github.com/aman-oss/photoidx/internal/errors"
)

func TestNewDerivesCategoryAndSeverity(t *testing.T) {
	err := photoerrors.New(photoerrors.ErrCodeIndexCorrupt, "shape mismatch", nil)
	assert.Equal(t, photoerrors.CategoryDomain, err.Category)
	assert.Equal(t, photoerrors.SeverityFatal, err.Severity)
	assert.False(t, err.Retryable)
}

func TestPathUnreadableIsRetryableAndCarriesPath(t *testing.T) {
	cause := stderrors.New("permission denied")
	err := photoerrors.PathUnreadable("/photos/a.jpg", cause)

	assert.True(t, photoerrors.IsRetryable(err))
	assert.False(t, photoerrors.IsFatal(err))
	assert.Equal(t, "/photos/a.jpg", err.Details["path"])
	assert.ErrorIs(t, err, cause)
}

func TestEmbedderUnavailableIsFatal(t *testing.T) {
	err := photoerrors.EmbedderUnavailable("model failed to load", nil)
	require.True(t, photoerrors.IsFatal(err))
	assert.Equal(t, photoerrors.ErrCodeEmbedderUnavailable, photoerrors.GetCode(err))
}

func TestWrapNilReturnsNil(t *testing.T) {
	assert.Nil(t, photoerrors.Wrap(photoerrors.ErrCodeInternal, nil))
}

func TestIsMatchesByCode(t *testing.T) {
	a := photoerrors.New(photoerrors.ErrCodeANNUnavailable, "graph backend missing", nil)
	b := photoerrors.New(photoerrors.ErrCodeANNUnavailable, "different message", nil)
	assert.True(t, stderrors.Is(a, b))
}

func TestGetCodeOnPlainError(t *testing.T) {
	assert.Equal(t, "", photoerrors.GetCode(stderrors.New("plain")))
	assert.Equal(t, photoerrors.Category(""), photoerrors.GetCategory(stderrors.New("plain")))
}
