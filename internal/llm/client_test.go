package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	herrors "github.com/Aman-CERP/hoopla/internal/errors"
)

// recordingObserver captures provider callbacks.
type recordingObserver struct {
	mu     sync.Mutex
	calls  []string
	failed int
}

func (r *recordingObserver) ObserveProvider(provider, operation string, _ time.Duration, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, provider+"/"+operation)
	if err != nil {
		r.failed++
	}
}

func newGenerateServer(t *testing.T, handler func(w http.ResponseWriter, req generateRequest, r *http.Request)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/generate", r.URL.Path)
		var req generateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		handler(w, req, r)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_Generate(t *testing.T) {
	// Given: a server echoing the prompt
	var gotAuth string
	var gotReq generateRequest
	srv := newGenerateServer(t, func(w http.ResponseWriter, req generateRequest, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotReq = req
		_ = json.NewEncoder(w).Encode(generateResponse{Model: req.Model, Response: "echo: " + req.Prompt, Done: true})
	})
	obs := &recordingObserver{}
	c := NewClient(Config{Host: srv.URL, Model: "tiny", APIKey: "secret", Temperature: 0.2, Observer: obs})

	// When
	out, err := c.Generate(context.Background(), "hello")

	// Then
	require.NoError(t, err)
	assert.Equal(t, "echo: hello", out)
	assert.Equal(t, "Bearer secret", gotAuth)
	assert.Equal(t, "tiny", gotReq.Model)
	assert.False(t, gotReq.Stream)
	assert.Equal(t, 0.2, gotReq.Options["temperature"])
	assert.Equal(t, []string{"llm/generate"}, obs.calls)
	assert.Equal(t, 0, obs.failed)
}

func TestClient_Generate_NoKeyNoHeader(t *testing.T) {
	var gotAuth string
	srv := newGenerateServer(t, func(w http.ResponseWriter, req generateRequest, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewEncoder(w).Encode(generateResponse{Response: "ok"})
	})

	_, err := NewClient(Config{Host: srv.URL}).Generate(context.Background(), "p")

	require.NoError(t, err)
	assert.Empty(t, gotAuth)
}

func TestClient_Generate_ErrorStatus(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		suggestion bool
	}{
		{"server error", http.StatusInternalServerError, false},
		{"unauthorized", http.StatusUnauthorized, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newGenerateServer(t, func(w http.ResponseWriter, _ generateRequest, _ *http.Request) {
				http.Error(w, "nope", tt.status)
			})
			obs := &recordingObserver{}

			_, err := NewClient(Config{Host: srv.URL, Observer: obs}).Generate(context.Background(), "p")

			require.Error(t, err)
			assert.Equal(t, herrors.ErrCodeGenerationFailed, herrors.GetCode(err))
			assert.Contains(t, err.Error(), "nope")
			he, ok := herrors.As(err)
			require.True(t, ok)
			assert.Equal(t, tt.suggestion, he.Suggestion != "")
			assert.Equal(t, 1, obs.failed)
		})
	}
}

func TestClient_Generate_BadJSON(t *testing.T) {
	srv := newGenerateServer(t, func(w http.ResponseWriter, _ generateRequest, _ *http.Request) {
		_, _ = w.Write([]byte("{not json"))
	})

	_, err := NewClient(Config{Host: srv.URL}).Generate(context.Background(), "p")

	assert.Equal(t, herrors.ErrCodeProviderResponse, herrors.GetCode(err))
}

func TestClient_Generate_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewClient(Config{Host: url}).Generate(context.Background(), "p")

	assert.Equal(t, herrors.ErrCodeNetworkUnavailable, herrors.GetCode(err))
}

func TestClient_Generate_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := newGenerateServer(t, func(w http.ResponseWriter, _ generateRequest, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	_, err := NewClient(Config{Host: srv.URL, Timeout: 50 * time.Millisecond}).Generate(context.Background(), "p")

	assert.Equal(t, herrors.ErrCodeNetworkTimeout, herrors.GetCode(err))
}

func TestClient_Generate_RateLimitHonoursContext(t *testing.T) {
	srv := newGenerateServer(t, func(w http.ResponseWriter, _ generateRequest, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(generateResponse{Response: "ok"})
	})
	c := NewClient(Config{Host: srv.URL, RequestsPerSecond: 0.001})

	// First call consumes the single burst token
	_, err := c.Generate(context.Background(), "p")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = c.Generate(ctx, "p")

	require.Error(t, err)
	assert.Equal(t, herrors.ErrCodeNetworkTimeout, herrors.GetCode(err))
}

func TestAPIKeyFromEnv(t *testing.T) {
	t.Setenv(DefaultAPIKeyEnv, " default-key ")
	t.Setenv("CUSTOM_KEY", "custom")

	assert.Equal(t, "default-key", APIKeyFromEnv(""))
	assert.Equal(t, "custom", APIKeyFromEnv("CUSTOM_KEY"))
	assert.Empty(t, APIKeyFromEnv("HOOPLA_TEST_UNSET_VAR"))
}

func TestNewClient_Defaults(t *testing.T) {
	c := NewClient(Config{Host: "http://example.test/"})

	assert.Equal(t, DefaultModel, c.Model())
	assert.Equal(t, "http://example.test", c.config.Host)
	assert.Equal(t, DefaultTimeout, c.config.Timeout)
}
