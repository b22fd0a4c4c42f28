// Package store holds hoopla's persistent state: the movie corpus, the
// lexical inverted index with BM25 scoring, the HNSW vector store, and the
// SQLite embedding cache.
package store

import (
	"context"
	"errors"
	"fmt"
)

// Document is a single movie from the corpus. Documents are immutable once
// loaded.
type Document struct {
	ID          int    `json:"id" cbor:"1,keyasint"`
	Title       string `json:"title" cbor:"2,keyasint"`
	Description string `json:"description" cbor:"3,keyasint"`
}

// Text returns the text indexed for lexical search.
func (d Document) Text() string {
	return d.Title + " " + d.Description
}

// BM25Config configures BM25 scoring parameters.
type BM25Config struct {
	K1 float64 // Term frequency saturation (default: 1.5)
	B  float64 // Length normalization (default: 0.75)
}

// DefaultBM25Config returns the standard BM25 tunables.
func DefaultBM25Config() BM25Config {
	return BM25Config{K1: 1.5, B: 0.75}
}

// Validate checks the tunables are in range.
func (c BM25Config) Validate() error {
	if c.K1 < 0 {
		return fmt.Errorf("bm25 k1 must be non-negative, got %g", c.K1)
	}
	if c.B < 0 || c.B > 1 {
		return fmt.Errorf("bm25 b must be between 0 and 1, got %g", c.B)
	}
	return nil
}

// BM25Result is a lexical search hit.
type BM25Result struct {
	DocID        int
	Score        float64
	MatchedTerms []string
}

// SemanticResult is a semantic search hit aggregated to document level.
type SemanticResult struct {
	DocID int
	Score float64
	// ChunkIndex is the chunk that produced Score.
	ChunkIndex int
}

// IndexStats summarizes an inverted index.
type IndexStats struct {
	DocumentCount int     `json:"document_count"`
	TermCount     int     `json:"term_count"`
	AvgDocLength  float64 `json:"avg_doc_length"`
}

// VectorResult represents a vector search hit at chunk level.
type VectorResult struct {
	ID       string
	Distance float32
	Score    float32
}

// VectorStoreConfig configures the HNSW vector store.
type VectorStoreConfig struct {
	Dimensions int
	Metric     string // "cos" or "l2"
	M          int    // Max connections per node
	EfSearch   int    // Search-time candidate list size
}

// DefaultVectorStoreConfig returns defaults for the given dimensions.
func DefaultVectorStoreConfig(dimensions int) VectorStoreConfig {
	return VectorStoreConfig{
		Dimensions: dimensions,
		Metric:     "cos",
		M:          16,
		EfSearch:   64,
	}
}

// VectorStore manages vector embeddings for semantic search.
type VectorStore interface {
	Add(ctx context.Context, ids []string, vectors [][]float32) error
	Search(ctx context.Context, query []float32, k int) ([]*VectorResult, error)
	Count() int
	Save(path string) error
	Load(path string) error
	Close() error
}

// ErrIndexUnavailable reports that no usable lexical index is loaded. Load
// and query errors wrap it so callers can decide to rebuild.
var ErrIndexUnavailable = errors.New("index unavailable")

// ErrDimensionMismatch indicates embedding dimensions don't match.
type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Got)
}
