package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points the user config at an empty temp dir and clears HOOPLA_* vars.
func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	for _, key := range []string{
		"HOOPLA_CORPUS", "HOOPLA_CACHE_DIR", "HOOPLA_BM25_K1", "HOOPLA_BM25_B",
		"HOOPLA_ALPHA", "HOOPLA_RRF_K", "HOOPLA_LIMIT", "HOOPLA_EMBEDDER", "HOOPLA_LOG_LEVEL",
	} {
		t.Setenv(key, "")
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// === Defaults ===

func TestNewConfig_ReturnsDefaults(t *testing.T) {
	cfg := NewConfig()

	assert.Equal(t, 1.5, cfg.BM25.K1)
	assert.Equal(t, 0.75, cfg.BM25.B)
	assert.Equal(t, 0.5, cfg.Search.Alpha)
	assert.Equal(t, 60, cfg.Search.RRFK)
	assert.Equal(t, 5, cfg.Search.Limit)
	assert.Equal(t, 500, cfg.Search.OverFetch)
	assert.Equal(t, "static", cfg.Embeddings.Provider)
	assert.Equal(t, ".hoopla", cfg.Paths.CacheDir)
	assert.Equal(t, filepath.Join(".hoopla", "index.bin"), cfg.IndexPath())
	assert.Equal(t, filepath.Join(".hoopla", "vectors"), cfg.VectorDir())
	assert.NoError(t, cfg.Validate())
}

// === Layering ===

func TestLoad_ProjectOverridesUser(t *testing.T) {
	isolate(t)

	// Given: a user config and a project config
	xdg := os.Getenv("XDG_CONFIG_HOME")
	writeFile(t, filepath.Join(xdg, "hoopla", "config.yaml"), "search:\n  alpha: 0.8\n  rrf_k: 30\n")
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ".hoopla.yaml"), "search:\n  alpha: 0.2\n")

	// When: loading
	cfg, err := Load(dir)
	require.NoError(t, err)

	// Then: project wins for alpha, user value survives for rrf_k
	assert.Equal(t, 0.2, cfg.Search.Alpha)
	assert.Equal(t, 30, cfg.Search.RRFK)
	assert.Equal(t, 5, cfg.Search.Limit)
}

func TestLoad_ExplicitZeroAlphaIsKept(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ".hoopla.yml"), "search:\n  alpha: 0\n")

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, 0.0, cfg.Search.Alpha)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ".hoopla.yaml"), "bm25:\n  k1: 1.2\n")
	t.Setenv("HOOPLA_BM25_K1", "2.0")
	t.Setenv("HOOPLA_RRF_K", "10")
	t.Setenv("HOOPLA_EMBEDDER", "ollama")

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, 2.0, cfg.BM25.K1)
	assert.Equal(t, 10, cfg.Search.RRFK)
	assert.Equal(t, "ollama", cfg.Embeddings.Provider)
}

func TestLoad_MalformedEnvIsError(t *testing.T) {
	isolate(t)
	t.Setenv("HOOPLA_ALPHA", "half")

	_, err := Load(t.TempDir())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "HOOPLA_ALPHA")
}

func TestLoad_InvalidYAML(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ".hoopla.yaml"), "search: [unclosed")

	_, err := Load(dir)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config file")
}

// === Validation ===

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		want   string
	}{
		{"alpha above one", func(c *Config) { c.Search.Alpha = 1.5 }, "search.alpha"},
		{"negative alpha", func(c *Config) { c.Search.Alpha = -0.1 }, "search.alpha"},
		{"b above one", func(c *Config) { c.BM25.B = 2 }, "bm25.b"},
		{"negative k1", func(c *Config) { c.BM25.K1 = -1 }, "bm25.k1"},
		{"zero rrf k", func(c *Config) { c.Search.RRFK = 0 }, "search.rrf_k"},
		{"zero limit", func(c *Config) { c.Search.Limit = 0 }, "search.limit"},
		{"overlap too big", func(c *Config) { c.Semantic.ChunkOverlap = 4 }, "semantic.chunk_overlap"},
		{"unknown provider", func(c *Config) { c.Embeddings.Provider = "mlx" }, "embeddings.provider"},
		{"bad log level", func(c *Config) { c.Server.LogLevel = "loud" }, "server.log_level"},
		{"bad timeout", func(c *Config) { c.LLM.Timeout = "soon" }, "llm.timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			tt.mutate(cfg)

			err := cfg.Validate()

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestDuration(t *testing.T) {
	assert.Equal(t, 5*time.Second, Duration("5s", time.Minute))
	assert.Equal(t, time.Minute, Duration("", time.Minute))
	assert.Equal(t, time.Minute, Duration("bogus", time.Minute))
}

func TestLLMAPIKey(t *testing.T) {
	cfg := NewConfig()
	t.Setenv("HOOPLA_LLM_API_KEY", "secret")

	assert.Equal(t, "secret", cfg.LLMAPIKey())

	cfg.LLM.APIKeyEnv = ""
	assert.Empty(t, cfg.LLMAPIKey())
}

func TestWriteYAML_RoundTrip(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	cfg := NewConfig()
	cfg.Search.Alpha = 0.3

	require.NoError(t, cfg.WriteYAML(filepath.Join(dir, ".hoopla.yaml")))
	loaded, err := Load(dir)

	require.NoError(t, err)
	assert.Equal(t, 0.3, loaded.Search.Alpha)
	assert.Equal(t, cfg.Embeddings, loaded.Embeddings)
}
