package search

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	herrors "github.com/Aman-CERP/hoopla/internal/errors"
)

// Enhancement names a query rewriting method. EnhanceNone is the zero value
// and means the query is used as typed.
type Enhancement string

const (
	EnhanceNone    Enhancement = ""
	EnhanceSpell   Enhancement = "spell"
	EnhanceRewrite Enhancement = "rewrite"
	EnhanceExpand  Enhancement = "expand"
)

// Enhancements lists the selectable methods.
var Enhancements = []Enhancement{EnhanceSpell, EnhanceRewrite, EnhanceExpand}

// ParseEnhancement maps a user string to a method. "" and "none" map to
// EnhanceNone.
func ParseEnhancement(s string) (Enhancement, error) {
	switch v := Enhancement(strings.ToLower(strings.TrimSpace(s))); v {
	case EnhanceNone, "none":
		return EnhanceNone, nil
	case EnhanceSpell, EnhanceRewrite, EnhanceExpand:
		return v, nil
	default:
		return EnhanceNone, herrors.New(herrors.ErrCodeInvalidStrategy,
			fmt.Sprintf("unknown enhancement method %q", s), nil).
			WithSuggestion("Use one of: spell, rewrite, expand")
	}
}

// QueryEnhancer rewrites a query before retrieval.
type QueryEnhancer interface {
	Enhance(ctx context.Context, query string, method Enhancement) (string, error)
}

var enhancePrompts = map[Enhancement]string{
	EnhanceSpell: `Fix any spelling errors in this movie search query.

Only correct obvious typos. Don't change correctly spelled words.

Query: "%s"

If no errors, return the original query.
Corrected:`,

	EnhanceRewrite: `Rewrite this movie search query to be more specific and searchable.

Original: "%s"

Consider:
- Common movie knowledge (famous actors, popular films)
- Genre conventions (horror = scary, animation = cartoon)
- Keep it concise (under 10 words)
- It should be a search query, not a full sentence

Rewritten query:`,

	EnhanceExpand: `Expand this movie search query with related terms.

Add synonyms and related concepts that might appear in movie descriptions.
Keep expansions relevant and focused.
This will be appended to the original query.

Query: "%s"

Return only the additional terms separated by spaces:`,
}

// LLMEnhancer enhances queries with a generative model.
type LLMEnhancer struct {
	gen Generator
}

// NewLLMEnhancer creates an enhancer over gen.
func NewLLMEnhancer(gen Generator) *LLMEnhancer {
	return &LLMEnhancer{gen: gen}
}

// Enhance returns the enhanced query. spell and rewrite replace the query;
// expand appends the generated terms. An empty completion keeps the query.
func (e *LLMEnhancer) Enhance(ctx context.Context, query string, method Enhancement) (string, error) {
	if method == EnhanceNone {
		return query, nil
	}
	prompt, ok := enhancePrompts[method]
	if !ok {
		return "", herrors.New(herrors.ErrCodeInvalidStrategy,
			fmt.Sprintf("unknown enhancement method %q", method), nil)
	}

	answer, err := e.gen.Generate(ctx, fmt.Sprintf(prompt, query))
	if err != nil {
		return "", fmt.Errorf("enhance query (%s): %w", method, err)
	}
	answer = cleanCompletion(answer)
	if answer == "" {
		slog.Warn("query_enhancement_empty",
			slog.String("method", string(method)),
			slog.String("query", truncateQuery(query, 50)))
		return query, nil
	}

	if method == EnhanceExpand {
		answer = query + " " + answer
	}
	slog.Debug("query_enhanced",
		slog.String("method", string(method)),
		slog.String("original", query),
		slog.String("enhanced", answer))
	return answer, nil
}

// cleanCompletion trims whitespace and surrounding quotes from a model answer.
func cleanCompletion(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, `"'`)
	return strings.TrimSpace(s)
}

var _ QueryEnhancer = (*LLMEnhancer)(nil)
