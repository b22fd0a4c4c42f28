package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete hoopla configuration.
type Config struct {
	Version    int              `yaml:"version" json:"version"`
	Paths      PathsConfig      `yaml:"paths" json:"paths"`
	BM25       BM25Config       `yaml:"bm25" json:"bm25"`
	Search     SearchConfig     `yaml:"search" json:"search"`
	Semantic   SemanticConfig   `yaml:"semantic" json:"semantic"`
	Embeddings EmbeddingsConfig `yaml:"embeddings" json:"embeddings"`
	LLM        LLMConfig        `yaml:"llm" json:"llm"`
	Reranker   RerankerConfig   `yaml:"reranker" json:"reranker"`
	Server     ServerConfig     `yaml:"server" json:"server"`
}

// PathsConfig locates the input data and the on-disk cache.
type PathsConfig struct {
	Corpus        string `yaml:"corpus" json:"corpus"`
	StopWords     string `yaml:"stop_words" json:"stop_words"` // empty uses the built-in English list
	GoldenDataset string `yaml:"golden_dataset" json:"golden_dataset"`
	CacheDir      string `yaml:"cache_dir" json:"cache_dir"`
}

// BM25Config holds the lexical scoring parameters.
type BM25Config struct {
	K1 float64 `yaml:"k1" json:"k1"`
	B  float64 `yaml:"b" json:"b"`
}

// SearchConfig configures hybrid search.
// Values resolve in order: defaults, user config, project config
// (.hoopla.yaml), HOOPLA_* env vars, then command-line flags.
type SearchConfig struct {
	// Alpha weights the lexical source in weighted fusion (0.0-1.0).
	Alpha float64 `yaml:"alpha" json:"alpha"`
	// RRFK is the reciprocal rank fusion constant.
	RRFK int `yaml:"rrf_k" json:"rrf_k"`
	// Limit is the default number of results.
	Limit int `yaml:"limit" json:"limit"`
	// OverFetch multiplies limit to size the candidate pool per source.
	OverFetch int `yaml:"over_fetch" json:"over_fetch"`
	// EvalWorkers bounds concurrent queries during evaluate.
	EvalWorkers int `yaml:"eval_workers" json:"eval_workers"`
}

// SemanticConfig configures document chunking for the vector index.
type SemanticConfig struct {
	MaxChunkSentences int `yaml:"max_chunk_sentences" json:"max_chunk_sentences"`
	ChunkOverlap      int `yaml:"chunk_overlap" json:"chunk_overlap"`
	BatchSize         int `yaml:"batch_size" json:"batch_size"`
}

// EmbeddingsConfig configures the embedding provider.
type EmbeddingsConfig struct {
	Provider   string `yaml:"provider" json:"provider"` // "static" or "ollama"
	Model      string `yaml:"model" json:"model"`
	OllamaHost string `yaml:"ollama_host" json:"ollama_host"`
	Dimensions int    `yaml:"dimensions" json:"dimensions"`
	CacheSize  int    `yaml:"cache_size" json:"cache_size"`
	Timeout    string `yaml:"timeout" json:"timeout"`
}

// LLMConfig configures the generative model used for query enhancement,
// LLM reranking and RAG.
type LLMConfig struct {
	Host              string  `yaml:"host" json:"host"`
	Model             string  `yaml:"model" json:"model"`
	Timeout           string  `yaml:"timeout" json:"timeout"`
	RequestsPerSecond float64 `yaml:"requests_per_second" json:"requests_per_second"`
	// APIKeyEnv names the environment variable holding the bearer token.
	APIKeyEnv string `yaml:"api_key_env" json:"api_key_env"`
}

// RerankerConfig configures the cross-encoder reranking service.
type RerankerConfig struct {
	Endpoint string `yaml:"endpoint" json:"endpoint"`
	Model    string `yaml:"model" json:"model"`
	Timeout  string `yaml:"timeout" json:"timeout"`
}

// ServerConfig configures logging and the serve command.
type ServerConfig struct {
	LogLevel      string `yaml:"log_level" json:"log_level"`
	MetricsAddr   string `yaml:"metrics_addr" json:"metrics_addr"` // empty disables /metrics
	WatchDebounce string `yaml:"watch_debounce" json:"watch_debounce"`
}

// NewConfig creates a new Config with defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Paths: PathsConfig{
			Corpus:        filepath.Join("data", "movies.json"),
			GoldenDataset: filepath.Join("data", "golden_dataset.json"),
			CacheDir:      ".hoopla",
		},
		BM25: BM25Config{
			K1: 1.5,
			B:  0.75,
		},
		Search: SearchConfig{
			Alpha:       0.5,
			RRFK:        60,
			Limit:       5,
			OverFetch:   500,
			EvalWorkers: 4,
		},
		Semantic: SemanticConfig{
			MaxChunkSentences: 4,
			ChunkOverlap:      1,
			BatchSize:         32,
		},
		Embeddings: EmbeddingsConfig{
			Provider:   "static",
			Model:      "nomic-embed-text",
			OllamaHost: "http://localhost:11434",
			Dimensions: 384,
			CacheSize:  1000,
			Timeout:    "60s",
		},
		LLM: LLMConfig{
			Host:              "http://localhost:11434",
			Model:             "qwen3:0.6b",
			Timeout:           "60s",
			RequestsPerSecond: 4,
			APIKeyEnv:         "HOOPLA_LLM_API_KEY",
		},
		Reranker: RerankerConfig{
			Endpoint: "http://localhost:9659",
			Model:    "cross-encoder/ms-marco-MiniLM-L-6-v2",
			Timeout:  "30s",
		},
		Server: ServerConfig{
			LogLevel:      "warn",
			WatchDebounce: "500ms",
		},
	}
}

// GetUserConfigPath returns the path to the user configuration file:
// $XDG_CONFIG_HOME/hoopla/config.yaml, or ~/.config/hoopla/config.yaml.
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "hoopla", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "hoopla", "config.yaml")
	}
	return filepath.Join(home, ".config", "hoopla", "config.yaml")
}

// Load loads configuration for the project in dir. Precedence, lowest first:
//  1. Hardcoded defaults
//  2. User config (~/.config/hoopla/config.yaml)
//  3. Project config (.hoopla.yaml or .hoopla.yml in dir)
//  4. Environment variables (HOOPLA_*)
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if userPath := GetUserConfigPath(); fileExists(userPath) {
		if err := cfg.loadYAML(userPath); err != nil {
			return nil, fmt.Errorf("load user config: %w", err)
		}
	}

	if err := cfg.loadFromFile(dir); err != nil {
		return nil, err
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// loadFromFile loads .hoopla.yaml, falling back to .hoopla.yml.
func (c *Config) loadFromFile(dir string) error {
	for _, name := range []string{".hoopla.yaml", ".hoopla.yml"} {
		path := filepath.Join(dir, name)
		if fileExists(path) {
			return c.loadYAML(path)
		}
	}
	return nil
}

// loadYAML decodes path on top of c. Keys absent from the file keep their
// current value; keys present override it, including explicit zeros.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

// applyEnvOverrides applies HOOPLA_* environment variable overrides.
// A malformed numeric value is an error rather than silently ignored.
func (c *Config) applyEnvOverrides() error {
	strs := map[string]*string{
		"HOOPLA_CORPUS":         &c.Paths.Corpus,
		"HOOPLA_STOP_WORDS":     &c.Paths.StopWords,
		"HOOPLA_GOLDEN_DATASET": &c.Paths.GoldenDataset,
		"HOOPLA_CACHE_DIR":      &c.Paths.CacheDir,
		"HOOPLA_EMBEDDER":       &c.Embeddings.Provider,
		"HOOPLA_EMBED_MODEL":    &c.Embeddings.Model,
		"HOOPLA_OLLAMA_HOST":    &c.Embeddings.OllamaHost,
		"HOOPLA_LLM_HOST":       &c.LLM.Host,
		"HOOPLA_LLM_MODEL":      &c.LLM.Model,
		"HOOPLA_RERANKER_URL":   &c.Reranker.Endpoint,
		"HOOPLA_LOG_LEVEL":      &c.Server.LogLevel,
		"HOOPLA_METRICS_ADDR":   &c.Server.MetricsAddr,
	}
	for key, dst := range strs {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	floats := map[string]*float64{
		"HOOPLA_BM25_K1": &c.BM25.K1,
		"HOOPLA_BM25_B":  &c.BM25.B,
		"HOOPLA_ALPHA":   &c.Search.Alpha,
	}
	for key, dst := range floats {
		v := os.Getenv(key)
		if v == "" {
			continue
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = f
	}

	ints := map[string]*int{
		"HOOPLA_RRF_K": &c.Search.RRFK,
		"HOOPLA_LIMIT": &c.Search.Limit,
	}
	for key, dst := range ints {
		v := os.Getenv(key)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = n
	}
	return nil
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	if c.BM25.K1 < 0 {
		return fmt.Errorf("bm25.k1 must be non-negative, got %g", c.BM25.K1)
	}
	if c.BM25.B < 0 || c.BM25.B > 1 {
		return fmt.Errorf("bm25.b must be between 0 and 1, got %g", c.BM25.B)
	}
	if c.Search.Alpha < 0 || c.Search.Alpha > 1 {
		return fmt.Errorf("search.alpha must be between 0 and 1, got %g", c.Search.Alpha)
	}
	if c.Search.RRFK <= 0 {
		return fmt.Errorf("search.rrf_k must be positive, got %d", c.Search.RRFK)
	}
	if c.Search.Limit <= 0 {
		return fmt.Errorf("search.limit must be positive, got %d", c.Search.Limit)
	}
	if c.Search.OverFetch < 1 {
		return fmt.Errorf("search.over_fetch must be at least 1, got %d", c.Search.OverFetch)
	}
	if c.Semantic.MaxChunkSentences <= 0 {
		return fmt.Errorf("semantic.max_chunk_sentences must be positive, got %d", c.Semantic.MaxChunkSentences)
	}
	if c.Semantic.ChunkOverlap < 0 || c.Semantic.ChunkOverlap >= c.Semantic.MaxChunkSentences {
		return fmt.Errorf("semantic.chunk_overlap must be in [0, max_chunk_sentences), got %d", c.Semantic.ChunkOverlap)
	}

	switch strings.ToLower(c.Embeddings.Provider) {
	case "static", "ollama":
	default:
		return fmt.Errorf("embeddings.provider must be 'static' or 'ollama', got %q", c.Embeddings.Provider)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Server.LogLevel)] {
		return fmt.Errorf("server.log_level must be 'debug', 'info', 'warn', or 'error', got %s", c.Server.LogLevel)
	}

	for name, d := range map[string]string{
		"embeddings.timeout":    c.Embeddings.Timeout,
		"llm.timeout":           c.LLM.Timeout,
		"reranker.timeout":      c.Reranker.Timeout,
		"server.watch_debounce": c.Server.WatchDebounce,
	} {
		if d == "" {
			continue
		}
		if _, err := time.ParseDuration(d); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

// Duration parses a duration field, returning def when it is empty or
// invalid. Load has already rejected invalid values.
func Duration(value string, def time.Duration) time.Duration {
	if value == "" {
		return def
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return def
	}
	return d
}

// IndexPath is the lexical index snapshot location.
func (c *Config) IndexPath() string {
	return filepath.Join(c.Paths.CacheDir, "index.bin")
}

// VectorDir is the semantic index directory.
func (c *Config) VectorDir() string {
	return filepath.Join(c.Paths.CacheDir, "vectors")
}

// EmbeddingCachePath is the SQLite embedding cache location.
func (c *Config) EmbeddingCachePath() string {
	return filepath.Join(c.Paths.CacheDir, "embeddings.db")
}

// LLMAPIKey reads the generative model credential from the environment.
func (c *Config) LLMAPIKey() string {
	if c.LLM.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(c.LLM.APIKeyEnv)
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
