package search

import (
	"context"
	"fmt"
	"sort"
	"strings"

	herrors "github.com/Aman-CERP/hoopla/internal/errors"
)

// RerankStrategy names a reranking method. RerankNone is the zero value.
type RerankStrategy string

const (
	RerankNone         RerankStrategy = ""
	RerankIndividual   RerankStrategy = "individual"
	RerankBatch        RerankStrategy = "batch"
	RerankCrossEncoder RerankStrategy = "cross_encoder"
)

// RerankStrategies lists the selectable strategies.
var RerankStrategies = []RerankStrategy{RerankIndividual, RerankBatch, RerankCrossEncoder}

// ParseRerankStrategy maps a user string to a strategy. "" and "none" map
// to RerankNone.
func ParseRerankStrategy(s string) (RerankStrategy, error) {
	switch v := RerankStrategy(strings.ToLower(strings.TrimSpace(s))); v {
	case RerankNone, "none":
		return RerankNone, nil
	case RerankIndividual, RerankBatch, RerankCrossEncoder:
		return v, nil
	default:
		return RerankNone, herrors.New(herrors.ErrCodeInvalidStrategy,
			fmt.Sprintf("unknown rerank method %q", s), nil).
			WithSuggestion("Use one of: individual, batch, cross_encoder")
	}
}

// RerankResult represents a single reranked result
type RerankResult struct {
	// Index is the original position in the input documents slice
	Index int
	// Score is the relevance score; its scale depends on the strategy
	Score float64
	// Document is the original document content
	Document string
}

// Reranker scores documents against a query. Implementations return one
// result per input document unless topK truncates.
type Reranker interface {
	// Rerank scores and reorders documents by relevance to the query.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeouts
	//   - query: The search query
	//   - documents: Documents to rerank
	//   - topK: Optional limit on results (0 = return all)
	Rerank(ctx context.Context, query string, documents []string, topK int) ([]RerankResult, error)

	// Available checks if the reranker service is available
	Available(ctx context.Context) bool

	// Close releases resources
	Close() error
}

// NoOpReranker is a reranker that returns results in original order.
type NoOpReranker struct{}

// Rerank returns documents in original order with decreasing scores.
func (n *NoOpReranker) Rerank(_ context.Context, _ string, documents []string, topK int) ([]RerankResult, error) {
	results := make([]RerankResult, len(documents))
	for i, doc := range documents {
		results[i] = RerankResult{
			Index:    i,
			Score:    float64(len(documents) - i),
			Document: doc,
		}
	}

	if topK > 0 && topK < len(results) {
		results = results[:topK]
	}
	return results, nil
}

// Available always returns true for NoOpReranker.
func (n *NoOpReranker) Available(_ context.Context) bool {
	return true
}

// Close is a no-op for NoOpReranker.
func (n *NoOpReranker) Close() error {
	return nil
}

// Verify interface implementation at compile time
var _ Reranker = (*NoOpReranker)(nil)

// rerankText is the text a reranker sees for a result.
func rerankText(r *SearchResult) string {
	return r.Title + ": " + r.Document
}

// ApplyRerank scores results with r and returns them sorted by the new score
// descending; equal scores keep their fused order. Each result gains a
// rerank_score metadata entry. The reranker must score every candidate
// exactly once.
func ApplyRerank(ctx context.Context, r Reranker, query string, results []*SearchResult) ([]*SearchResult, error) {
	if len(results) == 0 {
		return results, nil
	}

	docs := make([]string, len(results))
	for i, res := range results {
		docs[i] = rerankText(res)
	}

	scored, err := r.Rerank(ctx, query, docs, 0)
	if err != nil {
		return nil, herrors.Wrap(herrors.ErrCodeRerankFailed, err)
	}
	if len(scored) != len(results) {
		return nil, herrors.New(herrors.ErrCodeRerankFailed,
			fmt.Sprintf("reranker scored %d of %d candidates", len(scored), len(results)), nil)
	}

	scores := make([]float64, len(results))
	seen := make([]bool, len(results))
	for _, s := range scored {
		if s.Index < 0 || s.Index >= len(results) || seen[s.Index] {
			return nil, herrors.New(herrors.ErrCodeRerankFailed,
				fmt.Sprintf("reranker returned invalid or duplicate index %d", s.Index), nil)
		}
		seen[s.Index] = true
		scores[s.Index] = s.Score
	}

	order := make([]int, len(results))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] > scores[order[b]]
	})

	out := make([]*SearchResult, len(results))
	for pos, i := range order {
		res := results[i]
		if res.Metadata == nil {
			res.Metadata = map[string]float64{}
		}
		res.Metadata[MetaRerankScore] = scores[i]
		out[pos] = res
	}
	return out, nil
}
