package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHooplaError_Unwrap_PreservesCause(t *testing.T) {
	// Given: an original error
	cause := errors.New("open movies.json: no such file")

	// When: wrapping it in a HooplaError
	err := New(ErrCodeFileNotFound, "corpus not found", cause)

	// Then: the cause is reachable through the chain
	require.NotNil(t, err)
	assert.Equal(t, cause, errors.Unwrap(err))
	assert.True(t, errors.Is(err, cause))
}

func TestHooplaError_Error_ReturnsFormattedMessage(t *testing.T) {
	tests := []struct {
		code     string
		message  string
		expected string
	}{
		{ErrCodeStopWordsInvalid, "stop word 3 is empty", "[ERR_104_STOPWORDS_INVALID] stop word 3 is empty"},
		{ErrCodeIndexUnavailable, "index not built", "[ERR_207_INDEX_UNAVAILABLE] index not built"},
		{ErrCodeInvalidQuery, "term must be one token", "[ERR_403_INVALID_QUERY] term must be one token"},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.expected, New(tt.code, tt.message, nil).Error())
		})
	}
}

func TestHooplaError_Is_MatchesByCode(t *testing.T) {
	err1 := New(ErrCodeIndexUnavailable, "missing snapshot", nil)
	err2 := New(ErrCodeIndexUnavailable, "not built", nil)
	other := New(ErrCodeCorruptIndex, "bad checksum", nil)

	assert.True(t, errors.Is(err1, err2))
	assert.False(t, errors.Is(err1, other))
}

func TestHooplaError_Is_ThroughFmtWrap(t *testing.T) {
	// Given: a HooplaError wrapped by fmt.Errorf
	inner := New(ErrCodeDocumentNotFound, "doc 42 not indexed", nil)
	err := fmt.Errorf("term frequency: %w", inner)

	// Then: code helpers look through the chain
	assert.Equal(t, ErrCodeDocumentNotFound, GetCode(err))
	assert.Equal(t, CategoryValidation, GetCategory(err))
	assert.True(t, errors.Is(err, New(ErrCodeDocumentNotFound, "", nil)))
}

func TestHooplaError_WithDetailAndSuggestion(t *testing.T) {
	err := New(ErrCodeFileNotFound, "corpus not found", nil).
		WithDetail("path", "data/movies.json").
		WithSuggestion("Set paths.corpus in .hoopla.yaml")

	assert.Equal(t, "data/movies.json", err.Details["path"])
	assert.Equal(t, "Set paths.corpus in .hoopla.yaml", err.Suggestion)
}

func TestCategoryFromCode(t *testing.T) {
	tests := []struct {
		code string
		want Category
	}{
		{ErrCodeConfigInvalid, CategoryConfig},
		{ErrCodeStopWordsInvalid, CategoryConfig},
		{ErrCodeCorruptIndex, CategoryIO},
		{ErrCodeIndexUnavailable, CategoryIO},
		{ErrCodeNetworkTimeout, CategoryNetwork},
		{ErrCodeInvalidQuery, CategoryValidation},
		{ErrCodeRerankFailed, CategoryInternal},
		{"BOGUS", CategoryInternal},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.want, categoryFromCode(tt.code))
		})
	}
}

func TestSeverityAndRetryable(t *testing.T) {
	tests := []struct {
		code          string
		wantSeverity  Severity
		wantRetryable bool
	}{
		{ErrCodeStopWordsInvalid, SeverityFatal, false},
		{ErrCodeCorruptIndex, SeverityFatal, false},
		{ErrCodeIndexUnavailable, SeverityError, false},
		{ErrCodeNetworkTimeout, SeverityWarning, true},
		{ErrCodeIndexLocked, SeverityWarning, true},
		{ErrCodeInvalidInput, SeverityError, false},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := New(tt.code, "msg", nil)
			assert.Equal(t, tt.wantSeverity, err.Severity)
			assert.Equal(t, tt.wantRetryable, err.Retryable)
			assert.Equal(t, tt.wantRetryable, IsRetryable(err))
			assert.Equal(t, tt.wantSeverity == SeverityFatal, IsFatal(err))
		})
	}
}

func TestWrap_NilReturnsNil(t *testing.T) {
	assert.Nil(t, Wrap(ErrCodeInternal, nil))
}

func TestHelpers_OnPlainErrors(t *testing.T) {
	plain := errors.New("plain")

	assert.False(t, IsRetryable(plain))
	assert.False(t, IsFatal(plain))
	assert.False(t, IsFatal(nil))
	assert.Empty(t, GetCode(plain))
}

// === Formatting ===

func TestFormatForCLI(t *testing.T) {
	// Given: an error with a suggestion
	err := New(ErrCodeIndexUnavailable, "index snapshot missing", nil).
		WithSuggestion("Run 'hoopla build-index' first")

	// When: formatting for the terminal
	out := FormatForCLI(err)

	// Then: message, hint and code are present
	assert.Contains(t, out, "Error: index snapshot missing")
	assert.Contains(t, out, "Hint: Run 'hoopla build-index' first")
	assert.Contains(t, out, "Code: ERR_207_INDEX_UNAVAILABLE")
}

func TestFormatForCLI_PlainErrorIsInternal(t *testing.T) {
	out := FormatForCLI(errors.New("boom"))

	assert.Contains(t, out, "Error: boom")
	assert.Contains(t, out, ErrCodeInternal)
	assert.Empty(t, FormatForCLI(nil))
}

func TestFormatJSON(t *testing.T) {
	err := New(ErrCodeProviderResponse, "reranker returned 2 scores for 3 documents", errors.New("short"))

	data, jerr := FormatJSON(err)
	require.NoError(t, jerr)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, ErrCodeProviderResponse, decoded["code"])
	assert.Equal(t, "NETWORK", decoded["category"])
	assert.Equal(t, "short", decoded["cause"])
}

func TestLogAttrs_SortsDetails(t *testing.T) {
	err := New(ErrCodeCorruptIndex, "checksum mismatch", nil).
		WithDetail("path", "/tmp/index.bin").
		WithDetail("version", "1")

	attrs := LogAttrs(err)

	assert.Equal(t, []any{
		"error_code", ErrCodeCorruptIndex,
		"error", "checksum mismatch",
		"severity", "FATAL",
		"detail_path", "/tmp/index.bin",
		"detail_version", "1",
	}, attrs)
	assert.Equal(t, []any{"error", "x"}, LogAttrs(errors.New("x")))
	assert.Nil(t, LogAttrs(nil))
}
