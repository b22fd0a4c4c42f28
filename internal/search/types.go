// Package search provides hybrid search combining BM25 and semantic search.
// Results are merged by normalized weighted fusion or Reciprocal Rank Fusion
// (RRF) and can optionally be reranked.
package search

import (
	"context"
	"math"

	"github.com/Aman-CERP/hoopla/internal/store"
)

// Lexical is the BM25 side of the engine.
type Lexical interface {
	BM25Search(query string, limit int) ([]*store.BM25Result, error)
	Document(id int) (store.Document, error)
}

// Semantic is the embedding side of the engine.
type Semantic interface {
	Search(ctx context.Context, query string, limit int) ([]*store.SemanticResult, error)
}

// Strategy names the ranking path that produced a response.
type Strategy string

const (
	StrategyBM25     Strategy = "bm25"
	StrategySemantic Strategy = "semantic"
	StrategyWeighted Strategy = "weighted"
	StrategyRRF      Strategy = "rrf"
)

// Metadata keys attached to SearchResult.Metadata.
const (
	MetaBM25Score     = "bm25_score"
	MetaSemanticScore = "semantic_score"
	MetaBM25Rank      = "bm25_rank"
	MetaSemanticRank  = "semantic_rank"
	MetaBM25RRF       = "bm25_rrf"
	MetaSemanticRRF   = "semantic_rrf"
	MetaRerankScore   = "rerank_score"
)

// SearchResult is one ranked document.
type SearchResult struct {
	ID       int                `json:"id"`
	Title    string             `json:"title"`
	Document string             `json:"document"`
	Score    float64            `json:"score"`
	Metadata map[string]float64 `json:"metadata,omitempty"`
}

// NewSearchResult builds a result with score rounded to two decimals.
// Callers order results on unrounded scores before calling this.
func NewSearchResult(doc store.Document, score float64, metadata map[string]float64) *SearchResult {
	if metadata == nil {
		metadata = map[string]float64{}
	}
	return &SearchResult{
		ID:       doc.ID,
		Title:    doc.Title,
		Document: doc.Description,
		Score:    roundScore(score),
		Metadata: metadata,
	}
}

func roundScore(s float64) float64 {
	return math.Round(s*100) / 100
}

// Response is the outcome of one engine call.
type Response struct {
	Query         string          `json:"query"`
	OriginalQuery string          `json:"original_query,omitempty"`
	Strategy      Strategy        `json:"strategy"`
	Alpha         float64         `json:"alpha,omitempty"`
	K             int             `json:"k,omitempty"`
	Enhance       Enhancement     `json:"enhance,omitempty"`
	Rerank        RerankStrategy  `json:"rerank,omitempty"`
	Results       []*SearchResult `json:"results"`
}

// Titles returns result titles in rank order.
func (r *Response) Titles() []string {
	titles := make([]string, len(r.Results))
	for i, res := range r.Results {
		titles[i] = res.Title
	}
	return titles
}
