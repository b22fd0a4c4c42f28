package embed

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	herrors "github.com/Aman-CERP/hoopla/internal/errors"
	"github.com/Aman-CERP/hoopla/internal/store"
)

// ProviderType represents an embedding provider
type ProviderType string

const (
	// ProviderOllama uses Ollama's /api/embed endpoint
	ProviderOllama ProviderType = "ollama"

	// ProviderStatic uses hash-based embeddings (no network)
	ProviderStatic ProviderType = "static"
)

// ParseProvider maps a configuration string to a provider.
func ParseProvider(s string) (ProviderType, error) {
	switch ProviderType(strings.ToLower(strings.TrimSpace(s))) {
	case ProviderOllama:
		return ProviderOllama, nil
	case ProviderStatic, "":
		return ProviderStatic, nil
	default:
		return "", herrors.New(herrors.ErrCodeInvalidStrategy,
			fmt.Sprintf("unknown embedding provider %q", s), nil).
			WithSuggestion("Use 'static' or 'ollama'")
	}
}

// FactoryConfig selects and configures an embedder.
type FactoryConfig struct {
	Provider   ProviderType
	Model      string
	Host       string
	Dimensions int
	BatchSize  int
	Timeout    time.Duration
	CacheSize  int

	// Persist, when set, backs the in-memory cache with SQLite.
	Persist *store.EmbeddingCache

	// DisableCache returns the bare provider.
	DisableCache bool
}

// NewEmbedder creates the configured embedder, wrapped in a CachedEmbedder
// unless DisableCache is set. An unavailable Ollama is an error; there is no
// silent fallback to the static embedder.
func NewEmbedder(ctx context.Context, cfg FactoryConfig) (Embedder, error) {
	var embedder Embedder

	switch cfg.Provider {
	case ProviderOllama:
		ollama, err := NewOllamaEmbedder(ctx, OllamaConfig{
			Host:       cfg.Host,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			BatchSize:  cfg.BatchSize,
			Timeout:    cfg.Timeout,
		})
		if err != nil {
			return nil, err
		}
		embedder = ollama
	case ProviderStatic, "":
		embedder = NewStaticEmbedder(cfg.Dimensions)
	default:
		return nil, herrors.New(herrors.ErrCodeInvalidStrategy,
			fmt.Sprintf("unknown embedding provider %q", cfg.Provider), nil)
	}

	slog.Debug("embedder_created",
		slog.String("provider", string(cfg.Provider)),
		slog.String("model", embedder.ModelName()),
		slog.Int("dimensions", embedder.Dimensions()))

	if cfg.DisableCache {
		return embedder, nil
	}
	return NewCachedEmbedder(embedder, cfg.CacheSize, cfg.Persist), nil
}
