package mcp

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	herrors "github.com/Aman-CERP/hoopla/internal/errors"
	"github.com/Aman-CERP/hoopla/internal/store"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"index unavailable sentinel", fmt.Errorf("load: %w", store.ErrIndexUnavailable), ErrCodeIndexUnavailable},
		{"index unavailable code", herrors.New(herrors.ErrCodeIndexUnavailable, "not built", nil), ErrCodeIndexUnavailable},
		{"corrupt index", herrors.New(herrors.ErrCodeCorruptIndex, "bad magic", nil), ErrCodeIndexUnavailable},
		{"document not found", herrors.New(herrors.ErrCodeDocumentNotFound, "no movie 9", nil), ErrCodeNotFound},
		{"empty query", herrors.New(herrors.ErrCodeQueryEmpty, "query is empty", nil), ErrCodeInvalidParams},
		{"network timeout", herrors.New(herrors.ErrCodeNetworkTimeout, "slow", nil), ErrCodeTimeout},
		{"provider failure", herrors.NetworkError("refused", nil), ErrCodeProviderFailed},
		{"deadline", context.DeadlineExceeded, ErrCodeTimeout},
		{"canceled", fmt.Errorf("rrf: %w", context.Canceled), ErrCodeTimeout},
		{"unknown", errors.New("boom"), ErrCodeInternalError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MapError(tt.err).Code)
		})
	}
}

func TestMapError_Nil(t *testing.T) {
	assert.Nil(t, MapError(nil))
}

func TestMapError_KeepsMCPError(t *testing.T) {
	orig := NewInvalidParamsError("alpha must be between 0 and 1")

	assert.Same(t, orig, MapError(fmt.Errorf("wrapped: %w", orig)))
}

func TestMapError_IncludesSuggestion(t *testing.T) {
	err := herrors.New(herrors.ErrCodeInvalidStrategy, "unknown rerank method", nil).
		WithSuggestion("Use one of: individual, batch, cross_encoder")

	got := MapError(err)

	assert.Equal(t, ErrCodeInvalidParams, got.Code)
	assert.Equal(t, "unknown rerank method Use one of: individual, batch, cross_encoder", got.Message)
}

func TestMCPError_Error(t *testing.T) {
	assert.Equal(t, "MCP error -32601: Tool 'x' not found.", NewMethodNotFoundError("x").Error())
}
