package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	herrors "github.com/Aman-CERP/hoopla/internal/errors"
	"github.com/Aman-CERP/hoopla/internal/store"
	"github.com/Aman-CERP/hoopla/internal/telemetry"
)

// ErrNilDependency is returned when a required dependency is nil.
var ErrNilDependency = errors.New("nil dependency")

// EngineConfig holds search defaults.
type EngineConfig struct {
	// DefaultLimit is used when a call passes limit <= 0.
	DefaultLimit int

	// DefaultAlpha is the weighted-fusion lexical weight when none is given.
	DefaultAlpha float64

	// RRFConstant is the RRF k used when none is given.
	RRFConstant int

	// OverFetch multiplies the requested limit to size each source's
	// candidate set before fusion.
	OverFetch int
}

// DefaultEngineConfig returns the standard search defaults.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		DefaultLimit: 5,
		DefaultAlpha: DefaultAlpha,
		RRFConstant:  DefaultRRFConstant,
		OverFetch:    500,
	}
}

// WeightedOptions configures a weighted-fusion search.
type WeightedOptions struct {
	// Alpha is the lexical weight in [0,1]. nil uses the configured default;
	// 0 is pure semantic.
	Alpha *float64
	Limit int
}

// RRFOptions configures a reciprocal-rank-fusion search.
type RRFOptions struct {
	K       int
	Limit   int
	Enhance Enhancement
	Rerank  RerankStrategy
}

// Alpha returns a pointer to a, for WeightedOptions literals.
func Alpha(a float64) *float64 { return &a }

// Engine runs lexical, semantic, weighted-hybrid and RRF-hybrid searches.
type Engine struct {
	lexical   Lexical
	semantic  Semantic
	config    EngineConfig
	enhancer  QueryEnhancer
	rerankers map[RerankStrategy]Reranker
	metrics   *telemetry.Metrics
}

// EngineOption configures the search engine.
type EngineOption func(*Engine)

// WithEnhancer sets the query enhancer used when a call asks for enhancement.
func WithEnhancer(q QueryEnhancer) EngineOption {
	return func(e *Engine) {
		e.enhancer = q
	}
}

// WithReranker binds a reranker to a strategy name.
func WithReranker(strategy RerankStrategy, r Reranker) EngineOption {
	return func(e *Engine) {
		if strategy == RerankNone || r == nil {
			return
		}
		e.rerankers[strategy] = r
	}
}

// WithMetrics sets an optional metrics collector.
func WithMetrics(m *telemetry.Metrics) EngineOption {
	return func(e *Engine) {
		e.metrics = m
	}
}

// NewEngine creates a hybrid search engine. Non-positive limit, k and
// over-fetch fields take their defaults.
func NewEngine(lexical Lexical, semantic Semantic, config EngineConfig, opts ...EngineOption) (*Engine, error) {
	if lexical == nil {
		return nil, fmt.Errorf("%w: lexical index is required", ErrNilDependency)
	}
	if semantic == nil {
		return nil, fmt.Errorf("%w: semantic index is required", ErrNilDependency)
	}

	def := DefaultEngineConfig()
	if config.DefaultLimit <= 0 {
		config.DefaultLimit = def.DefaultLimit
	}
	if config.RRFConstant <= 0 {
		config.RRFConstant = def.RRFConstant
	}
	if config.OverFetch <= 0 {
		config.OverFetch = def.OverFetch
	}
	if config.DefaultAlpha < 0 || config.DefaultAlpha > 1 {
		return nil, herrors.ValidationError(
			fmt.Sprintf("default alpha %v outside [0,1]", config.DefaultAlpha), nil)
	}

	e := &Engine{
		lexical:   lexical,
		semantic:  semantic,
		config:    config,
		rerankers: make(map[RerankStrategy]Reranker),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Config returns the effective engine configuration.
func (e *Engine) Config() EngineConfig { return e.config }

// BM25Search ranks documents by BM25 alone.
func (e *Engine) BM25Search(ctx context.Context, query string, limit int) (resp *Response, err error) {
	start := time.Now()
	defer func() { e.observe(StrategyBM25, query, start, resp, err) }()

	if err := validateQuery(query); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	limit = e.limit(limit)

	hits, err := e.lexical.BM25Search(query, limit)
	if err != nil {
		return nil, fmt.Errorf("bm25 search: %w", err)
	}

	results := make([]*SearchResult, 0, len(hits))
	for _, h := range hits {
		doc, err := e.lexical.Document(h.DocID)
		if err != nil {
			return nil, err
		}
		results = append(results, NewSearchResult(doc, h.Score, map[string]float64{
			MetaBM25Score: h.Score,
		}))
	}

	return &Response{
		Query:    query,
		Strategy: StrategyBM25,
		Results:  results,
	}, nil
}

// SemanticSearch ranks movies by cosine similarity of their best chunk to
// the query.
func (e *Engine) SemanticSearch(ctx context.Context, query string, limit int) (resp *Response, err error) {
	start := time.Now()
	defer func() { e.observe(StrategySemantic, query, start, resp, err) }()

	if err := validateQuery(query); err != nil {
		return nil, err
	}
	limit = e.limit(limit)

	hits, err := e.semantic.Search(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("semantic search: %w", err)
	}

	results := make([]*SearchResult, 0, len(hits))
	for _, h := range hits {
		doc, err := e.lexical.Document(h.DocID)
		if err != nil {
			return nil, err
		}
		results = append(results, NewSearchResult(doc, h.Score, map[string]float64{
			MetaSemanticScore: h.Score,
		}))
	}

	return &Response{
		Query:    query,
		Strategy: StrategySemantic,
		Results:  results,
	}, nil
}

// WeightedSearch merges normalized lexical and semantic scores.
func (e *Engine) WeightedSearch(ctx context.Context, query string, opts WeightedOptions) (resp *Response, err error) {
	start := time.Now()
	defer func() { e.observe(StrategyWeighted, query, start, resp, err) }()

	if err := validateQuery(query); err != nil {
		return nil, err
	}
	alpha := e.config.DefaultAlpha
	if opts.Alpha != nil {
		alpha = *opts.Alpha
	}
	if alpha < 0 || alpha > 1 {
		return nil, herrors.ValidationError(fmt.Sprintf("alpha %v outside [0,1]", alpha), nil).
			WithSuggestion("Use a value between 0 (pure semantic) and 1 (pure keyword)")
	}
	limit := e.limit(opts.Limit)

	lex, sem, err := e.retrieve(ctx, query, limit*e.config.OverFetch)
	if err != nil {
		return nil, err
	}

	fused := NewWeightedFusion(alpha).Fuse(lex, sem)
	results, err := e.materialize(truncateFused(fused, limit), (*FusedResult).WeightedMetadata)
	if err != nil {
		return nil, err
	}

	slog.Debug("weighted_search_completed",
		slog.String("query", truncateQuery(query, 50)),
		slog.Float64("alpha", alpha),
		slog.Int("lexical", len(lex)),
		slog.Int("semantic", len(sem)),
		slog.Int("results", len(results)))

	return &Response{
		Query:    query,
		Strategy: StrategyWeighted,
		Alpha:    alpha,
		Results:  results,
	}, nil
}

// RRFSearch merges lexical and semantic ranks with Reciprocal Rank Fusion,
// optionally enhancing the query first and reranking the truncated list.
func (e *Engine) RRFSearch(ctx context.Context, query string, opts RRFOptions) (resp *Response, err error) {
	start := time.Now()
	defer func() { e.observe(StrategyRRF, query, start, resp, err) }()

	if err := validateQuery(query); err != nil {
		return nil, err
	}
	k := opts.K
	if k <= 0 {
		k = e.config.RRFConstant
	}
	limit := e.limit(opts.Limit)

	var reranker Reranker
	if opts.Rerank != RerankNone {
		r, ok := e.rerankers[opts.Rerank]
		if !ok {
			return nil, herrors.New(herrors.ErrCodeInvalidStrategy,
				fmt.Sprintf("rerank method %q is not configured", opts.Rerank), nil)
		}
		reranker = r
	}

	original := query
	if opts.Enhance != EnhanceNone {
		if e.enhancer == nil {
			return nil, herrors.New(herrors.ErrCodeInvalidStrategy,
				fmt.Sprintf("enhancement %q requested but no enhancer is configured", opts.Enhance), nil).
				WithSuggestion("Configure an llm section to enable query enhancement")
		}
		enhanced, err := e.enhancer.Enhance(ctx, query, opts.Enhance)
		if err != nil {
			return nil, err
		}
		query = enhanced
	}

	lex, sem, err := e.retrieve(ctx, query, limit*e.config.OverFetch)
	if err != nil {
		return nil, err
	}

	fused := NewRRFFusionWithK(k).Fuse(lex, sem)
	results, err := e.materialize(truncateFused(fused, limit), (*FusedResult).RRFMetadata)
	if err != nil {
		return nil, err
	}

	if reranker != nil {
		results, err = ApplyRerank(ctx, reranker, query, results)
		if err != nil {
			return nil, err
		}
	}

	resp = &Response{
		Query:    query,
		Strategy: StrategyRRF,
		K:        k,
		Enhance:  opts.Enhance,
		Rerank:   opts.Rerank,
		Results:  results,
	}
	if query != original {
		resp.OriginalQuery = original
	}
	return resp, nil
}

// retrieve queries both sources concurrently. Either failure fails the call.
func (e *Engine) retrieve(ctx context.Context, query string, candidates int) ([]*store.BM25Result, []*store.SemanticResult, error) {
	var (
		lex []*store.BM25Result
		sem []*store.SemanticResult
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		lex, err = e.lexical.BM25Search(query, candidates)
		if err != nil {
			return fmt.Errorf("bm25 search: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		sem, err = e.semantic.Search(gctx, query, candidates)
		if err != nil {
			return fmt.Errorf("semantic search: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return lex, sem, nil
}

// materialize resolves fused ids to documents.
func (e *Engine) materialize(fused []*FusedResult, meta func(*FusedResult) map[string]float64) ([]*SearchResult, error) {
	results := make([]*SearchResult, 0, len(fused))
	for _, f := range fused {
		doc, err := e.lexical.Document(f.DocID)
		if err != nil {
			return nil, err
		}
		results = append(results, NewSearchResult(doc, f.Score, meta(f)))
	}
	return results, nil
}

func (e *Engine) limit(limit int) int {
	if limit <= 0 {
		return e.config.DefaultLimit
	}
	return limit
}

func (e *Engine) observe(strategy Strategy, query string, start time.Time, resp *Response, err error) {
	if e.metrics == nil {
		return
	}
	n := 0
	if resp != nil {
		n = len(resp.Results)
	}
	e.metrics.ObserveQuery(telemetry.QueryEvent{
		Query:       query,
		Strategy:    string(strategy),
		ResultCount: n,
		Latency:     time.Since(start),
		Failed:      err != nil,
		Timestamp:   start,
	})
}

func validateQuery(query string) error {
	if strings.TrimSpace(query) == "" {
		return herrors.New(herrors.ErrCodeQueryEmpty, "search query is empty", nil)
	}
	return nil
}

func truncateFused(fused []*FusedResult, limit int) []*FusedResult {
	if limit > 0 && limit < len(fused) {
		return fused[:limit]
	}
	return fused
}
