package cmd

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	herrors "github.com/Aman-CERP/hoopla/internal/errors"
	"github.com/Aman-CERP/hoopla/internal/search"
)

// === semantic-search ===

func TestSemanticSearch(t *testing.T) {
	// Given: built indexes
	buildProject(t)

	// When: searching semantically
	out, err := runCmd(t, "semantic-search", "wormhole", "astronauts", "--limit", "2")

	// Then: movies print with their chunk score
	require.NoError(t, err)
	assert.Contains(t, out, "Semantic Search Results for 'wormhole astronauts':")
	assert.Contains(t, out, "1. ")
	assert.Contains(t, out, "(score: ")
	assert.Equal(t, 2, strings.Count(out, "(score: "))
}

func TestSemanticSearch_MatchesPureSemanticWeighting(t *testing.T) {
	// Given: built indexes
	buildProject(t)

	// When: running semantic-search and weighted-search with alpha 0
	semOut, err := runCmd(t, "semantic-search", "bear", "--limit", "3", "--format", "json")
	require.NoError(t, err)
	wOut, err := runCmd(t, "weighted-search", "bear", "--alpha", "0", "--limit", "3", "--format", "json")
	require.NoError(t, err)

	// Then: both rank the same movies in the same order
	var sem, weighted search.Response
	require.NoError(t, json.Unmarshal([]byte(semOut), &sem))
	require.NoError(t, json.Unmarshal([]byte(wOut), &weighted))
	assert.Equal(t, search.StrategySemantic, sem.Strategy)
	require.Len(t, sem.Results, 3)
	assert.Equal(t, sem.Titles(), weighted.Titles())
}

func TestSemanticSearch_WithoutIndexFails(t *testing.T) {
	setupProject(t)

	_, err := runCmd(t, "semantic-search", "bear")

	assert.Error(t, err)
}

// === chunk / semantic-chunk ===

func TestChunk_WordWindows(t *testing.T) {
	out, err := runCmd(t, "chunk", "one two three four five", "--chunk-size", "2")

	require.NoError(t, err)
	assert.Equal(t, "Chunking 23 characters\n1. one two\n2. three four\n3. five\n", out)
}

func TestChunk_Overlap(t *testing.T) {
	out, err := runCmd(t, "chunk", "one two three four", "--chunk-size", "3", "--overlap", "1", "--format", "json")

	require.NoError(t, err)
	var res chunkResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, []string{"one two three", "three four"}, res.Chunks)
}

func TestChunk_DefaultsToOneWindow(t *testing.T) {
	out, err := runCmd(t, "chunk", "a short text")

	require.NoError(t, err)
	assert.Contains(t, out, "1. a short text")
	assert.NotContains(t, out, "2. ")
}

func TestChunk_RejectsOverlapNotSmallerThanSize(t *testing.T) {
	_, err := runCmd(t, "chunk", "one two three", "--chunk-size", "2", "--overlap", "2")

	require.Error(t, err)
	assert.Equal(t, herrors.ErrCodeInvalidInput, herrors.GetCode(err))
}

func TestSemanticChunk_SentenceWindows(t *testing.T) {
	// Given: four sentences
	text := "Bears eat honey. Bears sleep! Do bears swim? Yes."

	// When: chunking two sentences at a time with one shared
	out, err := runCmd(t, "semantic-chunk", text, "--max-chunk-size", "2", "--overlap", "1")

	// Then: each window starts one sentence after the previous
	require.NoError(t, err)
	assert.Contains(t, out, "1. Bears eat honey. Bears sleep!")
	assert.Contains(t, out, "2. Bears sleep! Do bears swim?")
	assert.Contains(t, out, "3. Do bears swim? Yes.")
	assert.NotContains(t, out, "4. ")
}

func TestSemanticChunk_RejectsZeroSize(t *testing.T) {
	_, err := runCmd(t, "semantic-chunk", "One. Two.", "--max-chunk-size", "0")

	require.Error(t, err)
	assert.Equal(t, herrors.ErrCodeInvalidInput, herrors.GetCode(err))
}
