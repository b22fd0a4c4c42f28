package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Aman-CERP/hoopla/internal/chunk"
	"github.com/Aman-CERP/hoopla/internal/config"
	"github.com/Aman-CERP/hoopla/internal/embed"
	"github.com/Aman-CERP/hoopla/internal/llm"
	"github.com/Aman-CERP/hoopla/internal/search"
	"github.com/Aman-CERP/hoopla/internal/semantic"
	"github.com/Aman-CERP/hoopla/internal/store"
	"github.com/Aman-CERP/hoopla/internal/telemetry"
)

// loadConfig loads configuration for the current directory.
func loadConfig() (*config.Config, error) {
	return config.Load(".")
}

// newLexicalIndex creates an empty inverted index with the configured stop
// words and BM25 parameters.
func newLexicalIndex(cfg *config.Config) (*store.InvertedIndex, error) {
	words, err := store.LoadStopWords(cfg.Paths.StopWords)
	if err != nil {
		return nil, err
	}
	tok, err := store.NewTokenizer(words)
	if err != nil {
		return nil, err
	}
	return store.NewInvertedIndex(tok, store.BM25Config{K1: cfg.BM25.K1, B: cfg.BM25.B})
}

// loadLexicalIndex loads the persisted inverted index.
func loadLexicalIndex(cfg *config.Config) (*store.InvertedIndex, error) {
	idx, err := newLexicalIndex(cfg)
	if err != nil {
		return nil, err
	}
	if err := idx.Load(cfg.IndexPath()); err != nil {
		return nil, err
	}
	return idx, nil
}

// semanticConfig maps the semantic config section to chunking options.
func semanticConfig(cfg *config.Config) semantic.Config {
	return semantic.Config{
		Chunk: chunk.Options{
			Size:    cfg.Semantic.MaxChunkSentences,
			Overlap: cfg.Semantic.ChunkOverlap,
		},
		BatchSize: cfg.Semantic.BatchSize,
	}
}

// openEmbedder creates the configured embedder. persist may be nil.
func openEmbedder(ctx context.Context, cfg *config.Config, persist *store.EmbeddingCache) (embed.Embedder, error) {
	provider, err := embed.ParseProvider(cfg.Embeddings.Provider)
	if err != nil {
		return nil, err
	}
	return embed.NewEmbedder(ctx, embed.FactoryConfig{
		Provider:   provider,
		Model:      cfg.Embeddings.Model,
		Host:       cfg.Embeddings.OllamaHost,
		Dimensions: cfg.Embeddings.Dimensions,
		BatchSize:  cfg.Semantic.BatchSize,
		Timeout:    config.Duration(cfg.Embeddings.Timeout, embed.DefaultTimeout),
		CacheSize:  cfg.Embeddings.CacheSize,
		Persist:    persist,
	})
}

// newLLMClient creates the generative model client.
func newLLMClient(cfg *config.Config, metrics *telemetry.Metrics) *llm.Client {
	lc := llm.Config{
		Host:              cfg.LLM.Host,
		Model:             cfg.LLM.Model,
		Timeout:           config.Duration(cfg.LLM.Timeout, llm.DefaultTimeout),
		RequestsPerSecond: cfg.LLM.RequestsPerSecond,
		APIKey:            cfg.LLMAPIKey(),
	}
	if metrics != nil {
		lc.Observer = metrics
	}
	return llm.NewClient(lc)
}

// lazySemantic loads the persisted semantic index on first use so that
// lexical-only commands never create an embedder.
type lazySemantic struct {
	cfg *config.Config
	// corpus is the keyword index fingerprint the vectors must match.
	corpus string

	once     sync.Once
	index    *semantic.Index
	embedder embed.Embedder
	err      error
}

func (l *lazySemantic) load(ctx context.Context) (*semantic.Index, error) {
	l.once.Do(func() {
		embedder, err := openEmbedder(ctx, l.cfg, nil)
		if err != nil {
			l.err = err
			return
		}
		idx, err := semantic.NewIndex(embedder, semanticConfig(l.cfg))
		if err != nil {
			_ = embedder.Close()
			l.err = err
			return
		}
		if err := idx.Load(l.cfg.VectorDir()); err != nil {
			_ = embedder.Close()
			l.err = err
			return
		}
		if err := idx.Manifest().CheckCorpus(l.corpus); err != nil {
			_ = idx.Close()
			_ = embedder.Close()
			l.err = err
			return
		}
		l.index = idx
		l.embedder = embedder
		slog.Debug("semantic_index_loaded",
			slog.String("model", idx.Manifest().Model),
			slog.Int("chunks", idx.Manifest().Chunks))
	})
	return l.index, l.err
}

func (l *lazySemantic) Search(ctx context.Context, query string, limit int) ([]*store.SemanticResult, error) {
	idx, err := l.load(ctx)
	if err != nil {
		return nil, err
	}
	return idx.Search(ctx, query, limit)
}

func (l *lazySemantic) Close() error {
	var errs []error
	if l.index != nil {
		errs = append(errs, l.index.Close())
	}
	if l.embedder != nil {
		errs = append(errs, l.embedder.Close())
	}
	return errors.Join(errs...)
}

// engineOptions selects the optional engine collaborators.
type engineOptions struct {
	metrics *telemetry.Metrics
	// rerank, when set to cross_encoder, connects to the rerank server up
	// front and fails if it is unreachable.
	rerank search.RerankStrategy
	// optionalCrossEncoder binds the cross encoder if it answers its health
	// check and the fused-order NoOpReranker otherwise.
	optionalCrossEncoder bool
}

// app is a loaded search runtime.
type app struct {
	cfg      *config.Config
	index    *store.InvertedIndex
	semantic *lazySemantic
	llm      *llm.Client
	engine   *search.Engine
	closers  []func() error
}

// openApp loads the lexical index and wires the search engine.
func openApp(ctx context.Context, opts engineOptions) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	idx, err := loadLexicalIndex(cfg)
	if err != nil {
		return nil, err
	}
	corpus, err := idx.Fingerprint()
	if err != nil {
		return nil, err
	}
	if err := semantic.VerifyCorpus(cfg.VectorDir(), corpus); err != nil {
		return nil, err
	}

	a := &app{
		cfg:      cfg,
		index:    idx,
		semantic: &lazySemantic{cfg: cfg, corpus: corpus},
		llm:      newLLMClient(cfg, opts.metrics),
	}
	a.closers = append(a.closers, a.semantic.Close)

	engineOpts := []search.EngineOption{
		search.WithEnhancer(search.NewLLMEnhancer(a.llm)),
		search.WithReranker(search.RerankIndividual, search.NewPointwiseReranker(a.llm, 0)),
		search.WithReranker(search.RerankBatch, search.NewListwiseReranker(a.llm)),
		search.WithMetrics(opts.metrics),
	}
	if opts.rerank == search.RerankCrossEncoder || opts.optionalCrossEncoder {
		cross, err := search.NewCrossEncoderReranker(ctx, search.CrossEncoderConfig{
			Endpoint: cfg.Reranker.Endpoint,
			Model:    cfg.Reranker.Model,
			Timeout:  config.Duration(cfg.Reranker.Timeout, search.DefaultRerankerTimeout),
		})
		switch {
		case err == nil:
			engineOpts = append(engineOpts, search.WithReranker(search.RerankCrossEncoder, cross))
			a.closers = append(a.closers, cross.Close)
		case opts.rerank == search.RerankCrossEncoder:
			_ = a.Close()
			return nil, err
		default:
			// Unreachable: cross_encoder requests keep the fused order.
			slog.Warn("cross_encoder_unavailable",
				slog.String("error", err.Error()),
				slog.String("fallback", "fused_order"))
			engineOpts = append(engineOpts, search.WithReranker(search.RerankCrossEncoder, &search.NoOpReranker{}))
		}
	}

	engine, err := search.NewEngine(idx, a.semantic, search.EngineConfig{
		DefaultLimit: cfg.Search.Limit,
		DefaultAlpha: cfg.Search.Alpha,
		RRFConstant:  cfg.Search.RRFK,
		OverFetch:    cfg.Search.OverFetch,
	}, engineOpts...)
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("create search engine: %w", err)
	}
	a.engine = engine
	return a, nil
}

// Close releases the semantic index and provider clients.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	return errors.Join(errs...)
}
