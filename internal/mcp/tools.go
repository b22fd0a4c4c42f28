package mcp

import (
	"time"

	"github.com/Aman-CERP/hoopla/internal/search"
	"github.com/Aman-CERP/hoopla/internal/ui"
)

// Limits applied to every search tool.
const (
	defaultLimit = 5
	maxLimit     = 50
)

// BM25Input is the bm25_search tool input.
type BM25Input struct {
	Query string `json:"query" jsonschema:"keywords to search movie titles and descriptions for"`
	Limit int    `json:"limit,omitempty" jsonschema:"maximum number of movies, default 5"`
}

// WeightedInput is the weighted_search tool input.
type WeightedInput struct {
	Query string   `json:"query" jsonschema:"what the movie is about"`
	Alpha *float64 `json:"alpha,omitempty" jsonschema:"keyword weight between 0 and 1; 1 is pure BM25, 0 is pure semantic"`
	Limit int      `json:"limit,omitempty" jsonschema:"maximum number of movies, default 5"`
}

// RRFInput is the rrf_search tool input.
type RRFInput struct {
	Query   string `json:"query" jsonschema:"what the movie is about"`
	K       int    `json:"k,omitempty" jsonschema:"RRF constant, default 60"`
	Limit   int    `json:"limit,omitempty" jsonschema:"maximum number of movies, default 5"`
	Enhance string `json:"enhance,omitempty" jsonschema:"query enhancement: spell, rewrite or expand"`
	Rerank  string `json:"rerank,omitempty" jsonschema:"rerank method: individual, batch or cross_encoder"`
}

// AskInput is the ask tool input.
type AskInput struct {
	Query string `json:"query" jsonschema:"question about the movie catalogue"`
	Mode  string `json:"mode,omitempty" jsonschema:"answer, summarize, citations or question; default answer"`
	Limit int    `json:"limit,omitempty" jsonschema:"documents given to the model, default 5"`
}

// IndexStatusInput takes no parameters.
type IndexStatusInput struct{}

// SearchOutput is the structured result of every search tool.
type SearchOutput struct {
	Query         string         `json:"query" jsonschema:"query that was searched, after enhancement"`
	OriginalQuery string         `json:"original_query,omitempty" jsonschema:"query before enhancement"`
	Strategy      string         `json:"strategy" jsonschema:"bm25, weighted or rrf"`
	Results       []ResultOutput `json:"results" jsonschema:"movies in rank order"`
}

// ResultOutput is one ranked movie.
type ResultOutput struct {
	ID          int                `json:"id"`
	Title       string             `json:"title"`
	Description string             `json:"description"`
	Score       float64            `json:"score"`
	Metadata    map[string]float64 `json:"metadata,omitempty" jsonschema:"per-source scores and ranks"`
}

// AskOutput is the ask tool result.
type AskOutput struct {
	Answer  string   `json:"answer"`
	Sources []string `json:"sources" jsonschema:"titles given to the model, numbered from 1"`
	Cited   []int    `json:"cited,omitempty" jsonschema:"source numbers cited in citations mode"`
}

func toSearchOutput(resp *search.Response) SearchOutput {
	out := SearchOutput{
		Query:         resp.Query,
		OriginalQuery: resp.OriginalQuery,
		Strategy:      string(resp.Strategy),
		Results:       make([]ResultOutput, 0, len(resp.Results)),
	}
	for _, r := range resp.Results {
		out.Results = append(out.Results, ResultOutput{
			ID:          r.ID,
			Title:       r.Title,
			Description: r.Document,
			Score:       r.Score,
			Metadata:    r.Metadata,
		})
	}
	return out
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return defaultLimit
	case limit > maxLimit:
		return maxLimit
	default:
		return limit
	}
}

// IndexStatusOutput is the index_status tool result.
type IndexStatusOutput struct {
	LexicalReady     bool    `json:"lexical_ready" jsonschema:"BM25 index is built"`
	SemanticReady    bool    `json:"semantic_ready" jsonschema:"embedding index is built"`
	Documents        int     `json:"documents"`
	Terms            int     `json:"terms"`
	AvgDocLength     float64 `json:"avg_doc_length"`
	Chunks           int     `json:"chunks"`
	Model            string  `json:"model,omitempty" jsonschema:"embedding model of the semantic index"`
	Dimensions       int     `json:"dimensions,omitempty"`
	CachedEmbeddings int     `json:"cached_embeddings"`
	IndexModified    string  `json:"index_modified,omitempty" jsonschema:"RFC 3339 time the BM25 index was written"`
	SemanticBuilt    string  `json:"semantic_built,omitempty" jsonschema:"RFC 3339 time the embedding index was built"`
}

func toIndexStatusOutput(info *ui.StatusInfo) *IndexStatusOutput {
	out := &IndexStatusOutput{
		LexicalReady:     info.LexicalReady,
		SemanticReady:    info.SemanticReady,
		Documents:        info.Documents,
		Terms:            info.Terms,
		AvgDocLength:     info.AvgDocLength,
		Chunks:           info.Chunks,
		Model:            info.Model,
		Dimensions:       info.Dimensions,
		CachedEmbeddings: info.CachedEmbeddings,
	}
	if !info.IndexModified.IsZero() {
		out.IndexModified = info.IndexModified.Format(time.RFC3339)
	}
	if !info.SemanticBuilt.IsZero() {
		out.SemanticBuilt = info.SemanticBuilt.Format(time.RFC3339)
	}
	return out
}
