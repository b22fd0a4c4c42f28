package cmd

import (
	"context"
	"encoding/json"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	herrors "github.com/Aman-CERP/hoopla/internal/errors"
	"github.com/Aman-CERP/hoopla/internal/store"
)

// === Index lifecycle ===

func TestBuildIndex_WritesBothIndexes(t *testing.T) {
	// Given: a corpus of three movies
	cache := setupProject(t)

	// When: building with plain progress output
	out, err := runCmd(t, "build-index", "--no-tui")

	// Then: the lexical snapshot and the vector manifest exist
	require.NoError(t, err)
	assert.NotEmpty(t, out)
	assert.FileExists(t, cache+"/index.bin")
	assert.FileExists(t, cache+"/vectors/manifest.json")
}

func TestSearch_BeforeBuildSuggestsBuildIndex(t *testing.T) {
	setupProject(t)

	_, err := runCmd(t, "bm25-search", "bear")

	require.Error(t, err)
	assert.Equal(t, herrors.ErrCodeIndexUnavailable, herrors.GetCode(err))
}

// === Term statistics ===

func TestTermFrequency(t *testing.T) {
	buildProject(t)

	out, err := runCmd(t, "term-frequency", "1", "bear")

	require.NoError(t, err)
	assert.Equal(t, "Term frequency of 'bear' in document '1': 2\n", out)
}

func TestTermFrequency_Errors(t *testing.T) {
	buildProject(t)

	t.Run("unknown document", func(t *testing.T) {
		_, err := runCmd(t, "term-frequency", "99", "bear")
		assert.Error(t, err)
	})

	t.Run("non-numeric id", func(t *testing.T) {
		_, err := runCmd(t, "term-frequency", "one", "bear")
		assert.Error(t, err)
	})
}

func TestIDF_JSON(t *testing.T) {
	buildProject(t)

	out, err := runCmd(t, "idf", "bear", "--format", "json")

	require.NoError(t, err)
	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "bear", got["term"])
	// ln((3+1)/(2+1))
	assert.InDelta(t, 0.2877, got["score"].(float64), 1e-3)
}

func TestBM25IDF(t *testing.T) {
	buildProject(t)

	out, err := runCmd(t, "bm25-idf", "wormhole")

	require.NoError(t, err)
	// ln((3-1+0.5)/(1+0.5)+1)
	assert.Equal(t, "BM25 IDF score of 'wormhole': 0.98\n", out)
}

// === Search ===

func TestBM25Search(t *testing.T) {
	buildProject(t)

	out, err := runCmd(t, "bm25-search", "bear", "--limit", "2")

	require.NoError(t, err)
	assert.Contains(t, out, "BM25 Search Results for 'bear':")
	assert.Contains(t, out, "Paddington")
	assert.Contains(t, out, "The Revenant")
	assert.NotContains(t, out, "Interstellar")
}

func TestLexicalSearch(t *testing.T) {
	buildProject(t)

	out, err := runCmd(t, "lexical-search", "wormhole")

	require.NoError(t, err)
	assert.Contains(t, out, "Interstellar")
}

func TestSearch_StaleVectorsReportUnavailable(t *testing.T) {
	// Given: both indexes built, then only the keyword index rebuilt over a
	// corpus that lost a movie, as when the vector save never completes
	buildProject(t)
	require.NoError(t, os.WriteFile(os.Getenv("HOOPLA_CORPUS"), []byte(`{"movies": [
	  {"id": 1, "title": "Paddington", "description": "A polite bear from Peru moves to London."}
	]}`), 0o644))
	cfg, err := loadConfig()
	require.NoError(t, err)
	docs, err := store.LoadCorpus(cfg.Paths.Corpus)
	require.NoError(t, err)
	idx, err := newLexicalIndex(cfg)
	require.NoError(t, err)
	require.NoError(t, idx.Build(context.Background(), docs))
	require.NoError(t, idx.Save(cfg.IndexPath()))

	// When: searching
	_, err = runCmd(t, "weighted-search", "bear")

	// Then: the load fails up front with a rebuild hint
	require.Error(t, err)
	assert.Equal(t, herrors.ErrCodeIndexUnavailable, herrors.GetCode(err))
	assert.Contains(t, herrors.FormatForCLI(err), "build-index")

	// And a full rebuild restores search
	_, err = runCmd(t, "build-index", "--no-tui")
	require.NoError(t, err)
	out, err := runCmd(t, "weighted-search", "bear")
	require.NoError(t, err)
	assert.Contains(t, out, "Paddington")
}
