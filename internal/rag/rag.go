// Package rag answers questions about the movie catalogue by retrieving
// documents with RRF hybrid search and handing them to a generative model.
package rag

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	herrors "github.com/Aman-CERP/hoopla/internal/errors"
	"github.com/Aman-CERP/hoopla/internal/search"
)

// DefaultLimit is the number of documents given to the model.
const DefaultLimit = 5

// SummarizeRRFConstant flattens the rank curve so more documents weigh in
// on a summary.
const SummarizeRRFConstant = 50

// Mode selects the prompt.
type Mode string

const (
	ModeAnswer    Mode = "answer"
	ModeSummarize Mode = "summarize"
	ModeCitations Mode = "citations"
	ModeQuestion  Mode = "question"
)

// Modes lists the supported modes.
var Modes = []Mode{ModeAnswer, ModeSummarize, ModeCitations, ModeQuestion}

// ParseMode maps a user string to a mode.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeAnswer, ModeSummarize, ModeCitations, ModeQuestion:
		return m, nil
	default:
		return "", herrors.New(herrors.ErrCodeInvalidStrategy,
			fmt.Sprintf("unknown rag mode %q", s), nil).
			WithSuggestion("Use one of: answer, summarize, citations, question")
	}
}

// Searcher retrieves documents for a query.
type Searcher interface {
	RRFSearch(ctx context.Context, query string, opts search.RRFOptions) (*search.Response, error)
}

// Answer is a generated response and the documents it was grounded on.
type Answer struct {
	Mode    Mode                   `json:"mode"`
	Query   string                 `json:"query"`
	Sources []*search.SearchResult `json:"sources"`
	Text    string                 `json:"answer"`

	// Cited holds the 1-based source numbers referenced as [n] in Text.
	// Only set in citations mode.
	Cited []int `json:"cited,omitempty"`
}

// Service runs retrieval-augmented generation.
type Service struct {
	searcher Searcher
	gen      search.Generator
}

// NewService creates a service.
func NewService(searcher Searcher, gen search.Generator) *Service {
	return &Service{searcher: searcher, gen: gen}
}

// Run retrieves up to limit documents for query and generates a response
// with the prompt for mode. limit <= 0 uses DefaultLimit.
func (s *Service) Run(ctx context.Context, mode Mode, query string, limit int) (*Answer, error) {
	if strings.TrimSpace(query) == "" {
		return nil, herrors.New(herrors.ErrCodeQueryEmpty, "query is empty", nil)
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	opts := search.RRFOptions{Limit: limit}
	if mode == ModeSummarize {
		opts.K = SummarizeRRFConstant
	}

	started := time.Now()
	resp, err := s.searcher.RRFSearch(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("retrieve documents: %w", err)
	}

	prompt, err := BuildPrompt(mode, query, resp.Results)
	if err != nil {
		return nil, err
	}

	text, err := s.gen.Generate(ctx, prompt)
	if err != nil {
		if _, ok := herrors.As(err); ok {
			return nil, fmt.Errorf("generate answer: %w", err)
		}
		return nil, herrors.Wrap(herrors.ErrCodeGenerationFailed, err)
	}
	text = strings.TrimSpace(text)

	answer := &Answer{
		Mode:    mode,
		Query:   query,
		Sources: resp.Results,
		Text:    text,
	}
	if mode == ModeCitations {
		answer.Cited = Citations(text, len(resp.Results))
	}

	slog.Debug("rag_completed",
		slog.String("mode", string(mode)),
		slog.Int("sources", len(resp.Results)),
		slog.Int("answer_len", len(text)),
		slog.Duration("duration", time.Since(started)))
	return answer, nil
}

var citationPattern = regexp.MustCompile(`\[(\d+)\]`)

// Citations returns the distinct [n] markers in text with 1 <= n <= sources,
// ascending.
func Citations(text string, sources int) []int {
	seen := make(map[int]bool)
	var out []int
	for _, m := range citationPattern.FindAllStringSubmatch(text, -1) {
		n, err := strconv.Atoi(m[1])
		if err != nil || n < 1 || n > sources || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	sort.Ints(out)
	return out
}
