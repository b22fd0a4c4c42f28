package cmd

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/hoopla/internal/eval"
	"github.com/Aman-CERP/hoopla/internal/rag"
)

func TestEvaluate_JSONReport(t *testing.T) {
	// Given: built indexes and a two-case golden dataset
	buildProject(t)
	dataset := filepath.Join(t.TempDir(), "golden.json")
	require.NoError(t, os.WriteFile(dataset, []byte(`{"test_cases": [
	  {"query": "bear", "relevant_docs": ["Paddington", "The Revenant"]},
	  {"query": "wormhole", "relevant_docs": ["Interstellar"]}
	]}`), 0o644))

	// When
	out, err := runCmd(t, "evaluate", "--dataset", dataset, "--limit", "3", "--format", "json")

	// Then: every relevant title is found within three results
	require.NoError(t, err)
	var report eval.Report
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	require.Len(t, report.Cases, 2)
	assert.Equal(t, 3, report.Limit)
	assert.InDelta(t, 1.0, report.MeanRecall, 1e-9)
}

func TestEvaluate_MissingDataset(t *testing.T) {
	buildProject(t)

	_, err := runCmd(t, "evaluate", "--dataset", filepath.Join(t.TempDir(), "none.json"))

	assert.Error(t, err)
}

func TestRAG_Citations(t *testing.T) {
	// Given: a generative model that cites the first source
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]any{"response": "Try Paddington [1].", "done": true})
	}))
	defer srv.Close()
	buildProject(t)
	t.Setenv("HOOPLA_LLM_HOST", srv.URL)

	// When
	out, err := runCmd(t, "rag", "citations", "bear", "--format", "json")

	// Then: the answer and its cited source come back
	require.NoError(t, err)
	var ans rag.Answer
	require.NoError(t, json.Unmarshal([]byte(out), &ans))
	assert.Equal(t, rag.ModeCitations, ans.Mode)
	assert.Equal(t, "Try Paddington [1].", ans.Text)
	assert.Equal(t, []int{1}, ans.Cited)
	assert.NotEmpty(t, ans.Sources)
}
