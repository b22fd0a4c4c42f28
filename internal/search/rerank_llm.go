package search

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	herrors "github.com/Aman-CERP/hoopla/internal/errors"
)

// Generator produces a text completion for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// DefaultPointwiseConcurrency bounds parallel scoring calls.
const DefaultPointwiseConcurrency = 4

const pointwisePrompt = `Rate how well this movie matches the search query.

Query: %s
Movie: %s

Consider:
- Direct relevance to query
- User intent (what they're looking for)
- Content appropriateness

Rate 0-10 (10 = perfect match).
Give me ONLY the number in your response, no other text or explanation.

Score:`

const listwisePrompt = `Rank these movies by relevance to the search query.

Query: %s

Movies:
%s
Return ONLY the IDs in order of relevance (best match first). Return a valid JSON list, nothing else. For example:

[2, 0, 1]`

var numberPattern = regexp.MustCompile(`-?\d+(?:\.\d+)?`)

// PointwiseReranker asks the model for a 0-10 score per document.
type PointwiseReranker struct {
	gen         Generator
	concurrency int
}

// NewPointwiseReranker creates a pointwise reranker. concurrency <= 0 uses
// DefaultPointwiseConcurrency.
func NewPointwiseReranker(gen Generator, concurrency int) *PointwiseReranker {
	if concurrency <= 0 {
		concurrency = DefaultPointwiseConcurrency
	}
	return &PointwiseReranker{gen: gen, concurrency: concurrency}
}

// Rerank scores every document independently. One failed or unparsable
// answer fails the whole call.
func (p *PointwiseReranker) Rerank(ctx context.Context, query string, documents []string, topK int) ([]RerankResult, error) {
	results := make([]RerankResult, len(documents))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for i, doc := range documents {
		g.Go(func() error {
			answer, err := p.gen.Generate(gctx, fmt.Sprintf(pointwisePrompt, query, doc))
			if err != nil {
				return fmt.Errorf("score document %d: %w", i, err)
			}
			score, err := ParseScore(answer)
			if err != nil {
				return fmt.Errorf("score document %d: %w", i, err)
			}
			results[i] = RerankResult{Index: i, Score: score, Document: doc}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	slog.Debug("pointwise_rerank", slog.Int("documents", len(documents)))
	return truncateRerank(results, topK), nil
}

// ParseScore extracts the first number from a model answer and clamps it
// to [0, 10].
func ParseScore(answer string) (float64, error) {
	m := numberPattern.FindString(answer)
	if m == "" {
		return 0, herrors.New(herrors.ErrCodeProviderResponse,
			fmt.Sprintf("no score in model answer %q", truncateQuery(answer, 60)), nil)
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0, herrors.New(herrors.ErrCodeProviderResponse, "parse score", err)
	}
	return min(max(v, 0), 10), nil
}

// Available reports true; availability is the generator's concern.
func (p *PointwiseReranker) Available(_ context.Context) bool { return true }

// Close is a no-op.
func (p *PointwiseReranker) Close() error { return nil }

// ListwiseReranker submits all documents at once and converts the returned
// order into scores n - position.
type ListwiseReranker struct {
	gen Generator
}

// NewListwiseReranker creates a listwise reranker.
func NewListwiseReranker(gen Generator) *ListwiseReranker {
	return &ListwiseReranker{gen: gen}
}

// Rerank asks for a total order of candidate ids. Unknown or repeated ids
// in the answer are ignored; candidates the model omitted follow in their
// original order.
func (l *ListwiseReranker) Rerank(ctx context.Context, query string, documents []string, topK int) ([]RerankResult, error) {
	if len(documents) == 0 {
		return []RerankResult{}, nil
	}

	var list strings.Builder
	for i, doc := range documents {
		fmt.Fprintf(&list, "ID: %d\n%s\n\n", i, doc)
	}

	answer, err := l.gen.Generate(ctx, fmt.Sprintf(listwisePrompt, query, list.String()))
	if err != nil {
		return nil, err
	}
	ids, err := ParseIDList(answer)
	if err != nil {
		return nil, err
	}

	n := len(documents)
	placed := make([]bool, n)
	order := make([]int, 0, n)
	for _, id := range ids {
		if id < 0 || id >= n || placed[id] {
			continue
		}
		placed[id] = true
		order = append(order, id)
	}
	for i := range documents {
		if !placed[i] {
			order = append(order, i)
		}
	}

	results := make([]RerankResult, n)
	for pos, i := range order {
		results[pos] = RerankResult{Index: i, Score: float64(n - pos), Document: documents[i]}
	}
	return truncateRerank(results, topK), nil
}

// ParseIDList decodes the first JSON integer array in a model answer.
func ParseIDList(answer string) ([]int, error) {
	start := strings.Index(answer, "[")
	end := strings.LastIndex(answer, "]")
	if start < 0 || end <= start {
		return nil, herrors.New(herrors.ErrCodeProviderResponse,
			fmt.Sprintf("no JSON list in model answer %q", truncateQuery(answer, 60)), nil)
	}
	var ids []int
	if err := json.Unmarshal([]byte(answer[start:end+1]), &ids); err != nil {
		return nil, herrors.New(herrors.ErrCodeProviderResponse, "decode ranked id list", err)
	}
	return ids, nil
}

// Available reports true; availability is the generator's concern.
func (l *ListwiseReranker) Available(_ context.Context) bool { return true }

// Close is a no-op.
func (l *ListwiseReranker) Close() error { return nil }

func truncateRerank(results []RerankResult, topK int) []RerankResult {
	if topK > 0 && topK < len(results) {
		return results[:topK]
	}
	return results
}

// truncateQuery truncates a string for logs and messages
// truncateQuery shortens q to at most maxLen runes for log fields.
func truncateQuery(q string, maxLen int) string {
	if utf8.RuneCountInString(q) <= maxLen {
		return q
	}
	return string([]rune(q)[:maxLen]) + "..."
}

var (
	_ Reranker = (*PointwiseReranker)(nil)
	_ Reranker = (*ListwiseReranker)(nil)
)
