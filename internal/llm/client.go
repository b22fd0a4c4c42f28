// Package llm is the generative-model client used for query enhancement,
// LLM reranking and answer generation. It speaks the Ollama /api/generate
// protocol, which hosted gateways also expose behind a bearer token.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/time/rate"

	herrors "github.com/Aman-CERP/hoopla/internal/errors"
)

// Client defaults
const (
	DefaultHost      = "http://localhost:11434"
	DefaultModel     = "llama3.2"
	DefaultTimeout   = 120 * time.Second
	DefaultAPIKeyEnv = "HOOPLA_LLM_API_KEY"

	providerName = "llm"
)

// Observer receives one callback per model call.
type Observer interface {
	ObserveProvider(provider, operation string, d time.Duration, err error)
}

// Config configures the client.
type Config struct {
	// Host is the API base URL (default: http://localhost:11434)
	Host string

	// Model is the generation model name
	Model string

	// Timeout bounds one request (default: 120s)
	Timeout time.Duration

	// RequestsPerSecond caps the call rate; <= 0 is unlimited
	RequestsPerSecond float64

	// APIKey is sent as a bearer token when set
	APIKey string

	// Temperature is passed through as a model option when > 0
	Temperature float64

	// Observer is optional
	Observer Observer
}

// DefaultConfig returns local-Ollama defaults.
func DefaultConfig() Config {
	return Config{
		Host:    DefaultHost,
		Model:   DefaultModel,
		Timeout: DefaultTimeout,
	}
}

// APIKeyFromEnv reads the credential from the named variable, falling back
// to DefaultAPIKeyEnv when name is empty.
func APIKeyFromEnv(name string) string {
	if name == "" {
		name = DefaultAPIKeyEnv
	}
	return strings.TrimSpace(os.Getenv(name))
}

type generateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options,omitempty"`
}

type generateResponse struct {
	Model    string `json:"model"`
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// Client calls a generation endpoint. Safe for concurrent use.
type Client struct {
	http    *http.Client
	config  Config
	limiter *rate.Limiter
}

// NewClient creates a client. Zero fields take defaults.
func NewClient(cfg Config) *Client {
	def := DefaultConfig()
	if cfg.Host == "" {
		cfg.Host = def.Host
	}
	cfg.Host = strings.TrimRight(cfg.Host, "/")
	if cfg.Model == "" {
		cfg.Model = def.Model
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	return &Client{
		http:    &http.Client{},
		config:  cfg,
		limiter: rate.NewLimiter(limit, 1),
	}
}

// Model returns the configured model name.
func (c *Client) Model() string { return c.config.Model }

// Generate returns the completion for prompt. Failures are returned as is;
// the client never retries.
func (c *Client) Generate(ctx context.Context, prompt string) (text string, err error) {
	started := time.Now()
	defer func() {
		if c.config.Observer != nil {
			c.config.Observer.ObserveProvider(providerName, "generate", time.Since(started), err)
		}
	}()

	if err := c.limiter.Wait(ctx); err != nil {
		return "", herrors.New(herrors.ErrCodeNetworkTimeout, "waiting for generation rate limit", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	reqBody := generateRequest{Model: c.config.Model, Prompt: prompt}
	if c.config.Temperature > 0 {
		reqBody.Options = map[string]any{"temperature": c.config.Temperature}
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.Host+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", herrors.New(herrors.ErrCodeNetworkTimeout, "generation request timed out", err)
		}
		return "", herrors.NetworkError("generation request failed", err).
			WithSuggestion("Check that the model server is running at " + c.config.Host)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		herr := herrors.New(herrors.ErrCodeGenerationFailed,
			fmt.Sprintf("generation failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody))), nil)
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			herr = herr.WithSuggestion("Set the API key in " + DefaultAPIKeyEnv + " or the variable named by llm.api_key_env")
		}
		return "", herr
	}

	var result generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", herrors.New(herrors.ErrCodeProviderResponse, "decode generation response", err)
	}

	slog.Debug("llm_generate",
		slog.String("model", c.config.Model),
		slog.Int("prompt_len", len(prompt)),
		slog.Int("response_len", len(result.Response)),
		slog.Duration("duration", time.Since(started)))
	return result.Response, nil
}
