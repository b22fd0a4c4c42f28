// Package semantic provides chunked embedding search over the corpus.
//
// Each document is split into overlapping sentence windows, every window is
// embedded and stored in an HNSW graph under "<docID>#<chunk>", and a query
// scores a document by its best matching chunk.
package semantic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Aman-CERP/hoopla/internal/chunk"
	"github.com/Aman-CERP/hoopla/internal/embed"
	herrors "github.com/Aman-CERP/hoopla/internal/errors"
	"github.com/Aman-CERP/hoopla/internal/store"
)

const (
	graphFile    = "chunks.hnsw"
	manifestFile = "manifest.json"

	stagingSuffix  = ".staging"
	previousSuffix = ".previous"
)

// Config controls chunking and embedding batch size.
type Config struct {
	Chunk     chunk.Options
	BatchSize int
}

// DefaultConfig returns the chunking used for the movie corpus.
func DefaultConfig() Config {
	return Config{Chunk: chunk.DefaultSentenceOptions(), BatchSize: embed.DefaultBatchSize}
}

// ProgressFunc receives the number of chunks embedded so far.
type ProgressFunc func(done, total int)

// Manifest describes a persisted semantic index.
type Manifest struct {
	Model      string    `json:"model"`
	Dimensions int       `json:"dimensions"`
	Documents  int       `json:"documents"`
	Chunks     int       `json:"chunks"`
	BuiltAt    time.Time `json:"built_at"`

	// Corpus is the store.Fingerprint of the documents the graph was built
	// from. It must match the lexical snapshot saved alongside.
	Corpus string `json:"corpus"`
}

// Index is the semantic search provider.
type Index struct {
	embedder embed.Embedder
	chunker  *chunk.SentenceChunker
	cfg      Config

	mu       sync.RWMutex
	vectors  *store.HNSWStore
	manifest Manifest
}

// NewIndex creates an empty index over embedder.
func NewIndex(embedder embed.Embedder, cfg Config) (*Index, error) {
	if embedder == nil {
		return nil, errors.New("semantic index requires an embedder")
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = embed.DefaultBatchSize
	}
	chunker, err := chunk.NewSentenceChunker(cfg.Chunk)
	if err != nil {
		return nil, herrors.ConfigError("invalid chunk options", err)
	}
	return &Index{embedder: embedder, chunker: chunker, cfg: cfg}, nil
}

// documentText is the text embedded for a document.
func documentText(doc store.Document) string {
	return doc.Title + ": " + doc.Description
}

// Build chunks and embeds docs into a fresh graph, then swaps it in. On
// error the previous graph stays in place.
func (idx *Index) Build(ctx context.Context, docs []store.Document, progress ProgressFunc) error {
	started := time.Now()

	fingerprint, err := store.Fingerprint(docs)
	if err != nil {
		return herrors.InternalError("fingerprint corpus", err)
	}

	var chunks []*chunk.Chunk
	for _, doc := range docs {
		cs, err := idx.chunker.Chunk(ctx, &chunk.DocumentInput{DocID: doc.ID, Text: documentText(doc)})
		if err != nil {
			return err
		}
		chunks = append(chunks, cs...)
	}

	vectors, err := store.NewHNSWStore(store.DefaultVectorStoreConfig(idx.embedder.Dimensions()))
	if err != nil {
		return herrors.InternalError("create vector store", err)
	}

	for start := 0; start < len(chunks); start += idx.cfg.BatchSize {
		if err := ctx.Err(); err != nil {
			_ = vectors.Close()
			return err
		}
		end := min(start+idx.cfg.BatchSize, len(chunks))
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		ids := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Content
			ids[i] = c.ID
		}

		vecs, err := idx.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			_ = vectors.Close()
			return herrors.Wrap(herrors.ErrCodeEmbeddingFailed, fmt.Errorf("embed chunks %d-%d: %w", start, end, err))
		}
		if err := vectors.Add(ctx, ids, vecs); err != nil {
			_ = vectors.Close()
			return dimensionError(err)
		}
		if progress != nil {
			progress(end, len(chunks))
		}
	}

	idx.mu.Lock()
	old := idx.vectors
	idx.vectors = vectors
	idx.manifest = Manifest{
		Model:      idx.embedder.ModelName(),
		Dimensions: idx.embedder.Dimensions(),
		Documents:  len(docs),
		Chunks:     len(chunks),
		BuiltAt:    time.Now().UTC(),
		Corpus:     fingerprint,
	}
	idx.mu.Unlock()
	if old != nil {
		_ = old.Close()
	}

	slog.Info("semantic_index_built",
		slog.Int("documents", len(docs)),
		slog.Int("chunks", len(chunks)),
		slog.String("model", idx.embedder.ModelName()),
		slog.Duration("duration", time.Since(started)))
	return nil
}

func dimensionError(err error) error {
	var dm store.ErrDimensionMismatch
	if errors.As(err, &dm) {
		return herrors.New(herrors.ErrCodeDimensionMismatch, dm.Error(), err)
	}
	return herrors.Wrap(herrors.ErrCodeIndexFailed, err)
}

// Ready reports whether a graph is loaded.
func (idx *Index) Ready() bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.vectors != nil
}

// Manifest returns the description of the loaded graph.
func (idx *Index) Manifest() Manifest {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.manifest
}

// Search embeds query and returns up to limit documents scored by their best
// chunk, highest first with ties broken by ascending id. limit <= 0 returns
// every document.
func (idx *Index) Search(ctx context.Context, query string, limit int) ([]*store.SemanticResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, herrors.New(herrors.ErrCodeQueryEmpty, "semantic query is empty", nil)
	}

	idx.mu.RLock()
	vectors := idx.vectors
	idx.mu.RUnlock()
	if vectors == nil {
		return nil, herrors.New(herrors.ErrCodeIndexUnavailable, "semantic index not built", store.ErrIndexUnavailable).
			WithSuggestion("Run 'hoopla build-index'")
	}

	qvec, err := idx.embedder.Embed(ctx, query)
	if err != nil {
		return nil, herrors.Wrap(herrors.ErrCodeEmbeddingFailed, fmt.Errorf("embed query: %w", err))
	}

	// Exhaustive over chunks so the per-document maximum is exact.
	hits, err := vectors.Search(ctx, qvec, vectors.Count())
	if err != nil {
		return nil, dimensionError(err)
	}

	best := make(map[int]*store.SemanticResult)
	for _, hit := range hits {
		docID, chunkIdx, err := chunk.ParseChunkID(hit.ID)
		if err != nil {
			return nil, herrors.Wrap(herrors.ErrCodeCorruptIndex, err)
		}
		score := float64(hit.Score)
		if cur, ok := best[docID]; !ok || score > cur.Score {
			best[docID] = &store.SemanticResult{DocID: docID, Score: score, ChunkIndex: chunkIdx}
		}
	}

	results := make([]*store.SemanticResult, 0, len(best))
	for _, r := range best {
		results = append(results, r)
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].DocID < results[j].DocID
	})
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// Save writes the graph and manifest into dir, replacing any previous
// contents.
func (idx *Index) Save(dir string) error {
	commit, err := idx.Stage(dir)
	if err != nil {
		return err
	}
	return commit()
}

// Stage writes the graph and manifest into a staging directory next to dir
// and returns a commit function that swaps the staging directory into
// place. Nothing under dir changes until commit runs; a failed commit
// restores the previous directory.
func (idx *Index) Stage(dir string) (commit func() error, err error) {
	idx.mu.RLock()
	vectors := idx.vectors
	manifest := idx.manifest
	idx.mu.RUnlock()
	if vectors == nil {
		return nil, herrors.New(herrors.ErrCodeIndexUnavailable, "semantic index not built", store.ErrIndexUnavailable)
	}

	staging := dir + stagingSuffix
	if err := os.RemoveAll(staging); err != nil {
		return nil, herrors.IOError("clear vector staging directory", err)
	}
	if err := os.MkdirAll(staging, 0o755); err != nil {
		return nil, herrors.IOError("create vector staging directory", err)
	}
	if err := vectors.Save(GraphPath(staging)); err != nil {
		_ = os.RemoveAll(staging)
		return nil, herrors.Wrap(herrors.ErrCodeIndexFailed, err)
	}

	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		_ = os.RemoveAll(staging)
		return nil, fmt.Errorf("marshal manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(staging, manifestFile), data, 0o644); err != nil {
		_ = os.RemoveAll(staging)
		return nil, herrors.IOError("write manifest", err)
	}

	return func() error { return commitDir(staging, dir) }, nil
}

// commitDir replaces dir with staging using renames only.
func commitDir(staging, dir string) error {
	previous := dir + previousSuffix
	if err := os.RemoveAll(previous); err != nil {
		return herrors.IOError("clear previous vector directory", err)
	}

	hadPrevious := true
	if err := os.Rename(dir, previous); err != nil {
		if !os.IsNotExist(err) {
			_ = os.RemoveAll(staging)
			return herrors.IOError("move previous vector directory", err)
		}
		hadPrevious = false
	}
	if err := os.Rename(staging, dir); err != nil {
		if hadPrevious {
			_ = os.Rename(previous, dir)
		}
		_ = os.RemoveAll(staging)
		return herrors.IOError("commit vector directory", err)
	}
	if hadPrevious {
		_ = os.RemoveAll(previous)
	}
	return nil
}

// Load reads a graph saved by Save. The stored dimensions must match the
// current embedder; on any failure the previous graph stays in place.
func (idx *Index) Load(dir string) error {
	manifest, err := ReadManifest(dir)
	if err != nil {
		return err
	}

	graphPath := GraphPath(dir)
	dims, err := store.ReadHNSWStoreDimensions(graphPath)
	if err != nil {
		return herrors.New(herrors.ErrCodeCorruptIndex, "read vector metadata",
			fmt.Errorf("%w: %w", store.ErrIndexUnavailable, err))
	}
	if dims == 0 {
		return herrors.New(herrors.ErrCodeIndexUnavailable, "semantic vectors not found", store.ErrIndexUnavailable).
			WithSuggestion("Run 'hoopla build-index'")
	}
	if dims != idx.embedder.Dimensions() {
		return herrors.New(herrors.ErrCodeDimensionMismatch,
			store.ErrDimensionMismatch{Expected: idx.embedder.Dimensions(), Got: dims}.Error(), nil).
			WithDetail("stored_model", manifest.Model).
			WithSuggestion("Rebuild with 'hoopla build-index' after changing the embedding model")
	}
	if manifest.Model != idx.embedder.ModelName() {
		slog.Warn("semantic_model_changed",
			slog.String("stored", manifest.Model),
			slog.String("current", idx.embedder.ModelName()))
	}

	vectors, err := store.NewHNSWStore(store.DefaultVectorStoreConfig(dims))
	if err != nil {
		return herrors.InternalError("create vector store", err)
	}
	if err := vectors.Load(graphPath); err != nil {
		_ = vectors.Close()
		return herrors.New(herrors.ErrCodeCorruptIndex, "load vector graph",
			fmt.Errorf("%w: %w", store.ErrIndexUnavailable, err))
	}

	idx.mu.Lock()
	old := idx.vectors
	idx.vectors = vectors
	idx.manifest = manifest
	idx.mu.Unlock()
	if old != nil {
		_ = old.Close()
	}
	return nil
}

// ReadManifest reads the manifest saved in dir without loading the graph.
func ReadManifest(dir string) (Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, manifestFile))
	if err != nil {
		if os.IsNotExist(err) {
			return Manifest{}, herrors.New(herrors.ErrCodeIndexUnavailable, "semantic index not found",
				fmt.Errorf("%w: %w", store.ErrIndexUnavailable, err)).
				WithSuggestion("Run 'hoopla build-index'")
		}
		return Manifest{}, herrors.IOError("read manifest", err)
	}

	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return Manifest{}, herrors.New(herrors.ErrCodeCorruptIndex, "decode semantic manifest",
			fmt.Errorf("%w: %w", store.ErrIndexUnavailable, err))
	}
	return manifest, nil
}

// VerifyCorpus checks that the index saved in dir was built from the corpus
// with the given fingerprint. A missing index passes; a mismatch is
// reported as unavailable so callers rebuild instead of serving vectors for
// documents the keyword index no longer has.
func VerifyCorpus(dir, fingerprint string) error {
	manifest, err := ReadManifest(dir)
	if err != nil {
		if herrors.GetCode(err) == herrors.ErrCodeIndexUnavailable {
			return nil
		}
		return err
	}
	return manifest.CheckCorpus(fingerprint)
}

// CheckCorpus reports a mismatch between the manifest and fingerprint.
func (m Manifest) CheckCorpus(fingerprint string) error {
	if m.Corpus == fingerprint {
		return nil
	}
	return herrors.New(herrors.ErrCodeIndexUnavailable,
		"semantic index was built from a different corpus than the keyword index", store.ErrIndexUnavailable).
		WithDetail("semantic_corpus", m.Corpus).
		WithDetail("keyword_corpus", fingerprint).
		WithSuggestion("Rebuild both indexes with 'hoopla build-index'")
}

// GraphPath is the HNSW graph file inside dir.
func GraphPath(dir string) string {
	return filepath.Join(dir, graphFile)
}

// Close releases the loaded graph.
func (idx *Index) Close() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.vectors == nil {
		return nil
	}
	err := idx.vectors.Close()
	idx.vectors = nil
	return err
}
