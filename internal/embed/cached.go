package embed

import (
	"context"
	"fmt"
	"log/slog"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/Aman-CERP/hoopla/internal/store"
)

// DefaultEmbeddingCacheSize is the default number of embeddings kept in memory.
// At 384 dimensions * 4 bytes * 1000 entries that is about 1.5MB.
const DefaultEmbeddingCacheSize = 1000

// CachedEmbedder wraps an Embedder with an in-process LRU and, optionally, a
// persistent SQLite cache shared across runs. Concurrent misses for the same
// text are collapsed into one inner call.
type CachedEmbedder struct {
	inner   Embedder
	cache   *lru.Cache[string, []float32]
	persist *store.EmbeddingCache
	group   singleflight.Group
}

// NewCachedEmbedder creates a cached embedder wrapping the given embedder.
// persist may be nil.
func NewCachedEmbedder(inner Embedder, cacheSize int, persist *store.EmbeddingCache) *CachedEmbedder {
	if cacheSize <= 0 {
		cacheSize = DefaultEmbeddingCacheSize
	}
	cache, _ := lru.New[string, []float32](cacheSize)
	return &CachedEmbedder{
		inner:   inner,
		cache:   cache,
		persist: persist,
	}
}

// cacheKey scopes the text hash to the inner model.
func (c *CachedEmbedder) cacheKey(text string) string {
	return c.inner.ModelName() + "\x00" + store.TextHash(text)
}

// Embed returns a cached embedding if available, otherwise computes and caches.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := c.cacheKey(text)
	if vec, ok := c.cache.Get(key); ok {
		return vec, nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		if vec, ok := c.lookupPersistent(ctx, text); ok {
			c.cache.Add(key, vec)
			return vec, nil
		}
		vec, err := c.inner.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		c.cache.Add(key, vec)
		c.storePersistent(ctx, []string{text}, [][]float32{vec})
		return vec, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]float32), nil
}

// EmbedBatch checks each text against both caches and sends only misses to
// the inner embedder in one batch.
func (c *CachedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	results := make([][]float32, len(texts))
	missIdx := make([]int, 0, len(texts))
	missTexts := make([]string, 0, len(texts))

	for i, text := range texts {
		key := c.cacheKey(text)
		if vec, ok := c.cache.Get(key); ok {
			results[i] = vec
			continue
		}
		if vec, ok := c.lookupPersistent(ctx, text); ok {
			c.cache.Add(key, vec)
			results[i] = vec
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, text)
	}

	if len(missTexts) == 0 {
		return results, nil
	}

	fresh, err := c.inner.EmbedBatch(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	if len(fresh) != len(missTexts) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(fresh), len(missTexts))
	}

	for j, idx := range missIdx {
		results[idx] = fresh[j]
		c.cache.Add(c.cacheKey(texts[idx]), fresh[j])
	}
	c.storePersistent(ctx, missTexts, fresh)

	slog.Debug("embed_batch_cache",
		slog.Int("texts", len(texts)),
		slog.Int("misses", len(missTexts)))
	return results, nil
}

func (c *CachedEmbedder) lookupPersistent(ctx context.Context, text string) ([]float32, bool) {
	if c.persist == nil {
		return nil, false
	}
	vec, ok, err := c.persist.Get(ctx, c.inner.ModelName(), text)
	if err != nil {
		slog.Warn("embedding_cache_read_failed", slog.String("error", err.Error()))
		return nil, false
	}
	if ok && len(vec) != c.inner.Dimensions() {
		return nil, false
	}
	return vec, ok
}

// storePersistent is best effort; a cache write failure never fails embedding.
func (c *CachedEmbedder) storePersistent(ctx context.Context, texts []string, vecs [][]float32) {
	if c.persist == nil {
		return
	}
	if err := c.persist.Put(ctx, c.inner.ModelName(), texts, vecs); err != nil {
		slog.Warn("embedding_cache_write_failed", slog.String("error", err.Error()))
	}
}

// Dimensions returns the embedding dimension (passthrough to inner).
func (c *CachedEmbedder) Dimensions() int {
	return c.inner.Dimensions()
}

// ModelName returns the model identifier (passthrough to inner).
func (c *CachedEmbedder) ModelName() string {
	return c.inner.ModelName()
}

// Available checks if the embedder is ready (passthrough to inner).
func (c *CachedEmbedder) Available(ctx context.Context) bool {
	return c.inner.Available(ctx)
}

// Close closes the inner embedder. The persistent cache is owned by the caller.
func (c *CachedEmbedder) Close() error {
	return c.inner.Close()
}

// Inner returns the underlying embedder.
func (c *CachedEmbedder) Inner() Embedder {
	return c.inner
}
