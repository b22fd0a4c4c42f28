package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/hoopla/internal/eval"
	"github.com/Aman-CERP/hoopla/internal/rag"
	"github.com/Aman-CERP/hoopla/internal/search"
	"github.com/Aman-CERP/hoopla/internal/store"
)

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatText, f)

	f, err = ParseFormat("JSON")
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, f)

	_, err = ParseFormat("yaml")
	assert.Error(t, err)
}

func TestWriter_StatusLines(t *testing.T) {
	buf := &bytes.Buffer{}
	w := New(buf)

	w.Successf("Indexed %d movies", 3)
	w.Warningf("semantic index missing")
	w.Errorf("corpus not found")
	w.Status("", "indented")

	out := buf.String()
	assert.Contains(t, out, "✅ Indexed 3 movies\n")
	assert.Contains(t, out, "semantic index missing")
	assert.Contains(t, out, "❌ corpus not found\n")
	assert.Contains(t, out, "   indented\n")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 10))
	assert.Equal(t, "héll...", Truncate("héllo world", 4))
}

func TestWriter_JSON(t *testing.T) {
	buf := &bytes.Buffer{}

	require.NoError(t, New(buf).JSON(map[string]int{"k": 60}))

	var got map[string]int
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, 60, got["k"])
}

// === Result printers ===

func TestWriter_Documents(t *testing.T) {
	buf := &bytes.Buffer{}

	New(buf).Documents("bear", []store.Document{{ID: 2, Title: "Paddington"}, {ID: 9, Title: "Brother Bear"}})

	assert.Equal(t, "Searching for: bear\n1. Paddington\n2. Brother Bear\n", buf.String())
}

func TestWriter_BM25(t *testing.T) {
	buf := &bytes.Buffer{}

	New(buf).BM25(&search.Response{Query: "bear", Results: []*search.SearchResult{{ID: 2, Title: "Paddington", Score: 1.234}}})

	assert.Contains(t, buf.String(), "1. (2) Paddington - Score: 1.23")
}

func TestWriter_Semantic(t *testing.T) {
	buf := &bytes.Buffer{}

	New(buf).Semantic(&search.Response{Query: "space", Results: []*search.SearchResult{{
		Title:    "Interstellar",
		Document: "Astronauts travel through a wormhole.",
		Score:    0.88,
		Metadata: map[string]float64{search.MetaSemanticScore: 0.87654},
	}}})

	out := buf.String()
	assert.Contains(t, out, "Semantic Search Results for 'space':")
	assert.Contains(t, out, "1. Interstellar (score: 0.8765)")
	assert.Contains(t, out, "   Astronauts travel through a wormhole.")
}

func TestWriter_Chunks(t *testing.T) {
	buf := &bytes.Buffer{}

	New(buf).Chunks(11, []string{"a b", "c d"})

	assert.Equal(t, "Chunking 11 characters\n1. a b\n2. c d\n", buf.String())
}

func TestWriter_Weighted(t *testing.T) {
	// Given
	buf := &bytes.Buffer{}
	resp := &search.Response{
		Query: "bear",
		Alpha: 0.3,
		Results: []*search.SearchResult{{
			Title:    "Paddington",
			Document: strings.Repeat("a", 120),
			Score:    0.82,
			Metadata: map[string]float64{search.MetaBM25Score: 1, search.MetaSemanticScore: 0.743},
		}},
	}

	// When
	New(buf).Weighted(resp)

	// Then
	out := buf.String()
	assert.Contains(t, out, "Weighted Hybrid Search Results for 'bear' (alpha=0.3):")
	assert.Contains(t, out, "Alpha 0.3: 30% Keyword, 70% Semantic")
	assert.Contains(t, out, "   Hybrid Score: 0.820")
	assert.Contains(t, out, "   BM25: 1.000, Semantic: 0.743")
	assert.Contains(t, out, strings.Repeat("a", 100)+"...")
}

func TestWriter_RRF(t *testing.T) {
	buf := &bytes.Buffer{}
	resp := &search.Response{
		Query:         "family bear movies",
		OriginalQuery: "famly bear moveis",
		Enhance:       search.EnhanceSpell,
		K:             60,
		Rerank:        search.RerankBatch,
		Results: []*search.SearchResult{{
			Title:    "Paddington",
			Score:    0.03,
			Metadata: map[string]float64{search.MetaBM25Rank: 1, search.MetaRerankScore: 1},
		}},
	}

	New(buf).RRF(resp)

	out := buf.String()
	assert.Contains(t, out, "Enhanced query (spell): 'famly bear moveis' -> 'family bear movies'")
	assert.Contains(t, out, "Reranking top 1 results using batch method...")
	assert.Contains(t, out, "RRF Hybrid Search Results for 'family bear movies' (k=60)")
	assert.Contains(t, out, "Rerank score: 1.000")
	assert.Contains(t, out, "BM25 Rank: #1, Semantic Rank: -")
}

func TestWriter_Scores(t *testing.T) {
	buf := &bytes.Buffer{}

	New(buf).Scores([]float64{0, 0.5, 1})

	assert.Equal(t, "* 0.0000\n* 0.5000\n* 1.0000\n", buf.String())
}

func TestWriter_Evaluation(t *testing.T) {
	buf := &bytes.Buffer{}
	report := &eval.Report{
		Limit: 3,
		Cases: []eval.CaseResult{{
			Query:     "bear",
			Retrieved: []string{"Paddington", "Up"},
			Relevant:  []string{"Paddington"},
			Precision: 0.5,
			Recall:    1,
			F1:        2.0 / 3.0,
		}},
		MeanPrecision: 0.5,
	}

	New(buf).Evaluation(report)

	out := buf.String()
	assert.Contains(t, out, "- Query: bear")
	assert.Contains(t, out, "  - Precision@3: 0.5000")
	assert.Contains(t, out, "  - F1 Score: 0.6667")
	assert.Contains(t, out, "  - Retrieved: Paddington, Up")
	assert.Contains(t, out, "Mean Precision@3: 0.5000")
}

func TestWriter_Answer(t *testing.T) {
	sources := []*search.SearchResult{{Title: "Paddington"}, {Title: "The Revenant"}}

	buf := &bytes.Buffer{}
	New(buf).Answer(&rag.Answer{Mode: rag.ModeAnswer, Sources: sources, Text: "Watch Paddington."})
	assert.Contains(t, buf.String(), "  - Paddington\n")
	assert.Contains(t, buf.String(), "RAG Response:\n  Watch Paddington.\n")

	buf.Reset()
	New(buf).Answer(&rag.Answer{Mode: rag.ModeCitations, Sources: sources, Text: "See [2]."})
	assert.Contains(t, buf.String(), "  [2] The Revenant\n")
	assert.Contains(t, buf.String(), "LLM Answer:")
}
