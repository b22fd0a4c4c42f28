package mcp

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Aman-CERP/hoopla/internal/rag"
	"github.com/Aman-CERP/hoopla/internal/search"
	"github.com/Aman-CERP/hoopla/internal/store"
	"github.com/Aman-CERP/hoopla/internal/telemetry"
	"github.com/Aman-CERP/hoopla/internal/ui"
	"github.com/Aman-CERP/hoopla/pkg/version"
)

// Engine is the search surface exposed as tools.
type Engine interface {
	BM25Search(ctx context.Context, query string, limit int) (*search.Response, error)
	WeightedSearch(ctx context.Context, query string, opts search.WeightedOptions) (*search.Response, error)
	RRFSearch(ctx context.Context, query string, opts search.RRFOptions) (*search.Response, error)
}

// Answerer runs retrieval-augmented generation.
type Answerer interface {
	Run(ctx context.Context, mode rag.Mode, query string, limit int) (*rag.Answer, error)
}

// Documents resolves movies by id for the movie resource.
type Documents interface {
	Document(id int) (store.Document, error)
}

// StatusFunc reports the state of the persisted indexes.
type StatusFunc func(ctx context.Context) (*ui.StatusInfo, error)

// Server is the hoopla MCP server.
type Server struct {
	mcp      *mcp.Server
	engine   Engine
	answerer Answerer
	docs     Documents
	status   StatusFunc
	queries  *telemetry.QueryLog
	logger   *slog.Logger
	tools    []string
}

// Option configures optional server features.
type Option func(*Server)

// WithAnswerer enables the ask tool.
func WithAnswerer(a Answerer) Option { return func(s *Server) { s.answerer = a } }

// WithDocuments enables the hoopla://movies/{id} resource.
func WithDocuments(d Documents) Option { return func(s *Server) { s.docs = d } }

// WithStatus enables the index_status tool.
func WithStatus(f StatusFunc) Option { return func(s *Server) { s.status = f } }

// WithQueryLog enables the hoopla://query_stats resource.
func WithQueryLog(q *telemetry.QueryLog) Option { return func(s *Server) { s.queries = q } }

// NewServer creates a server over engine.
func NewServer(engine Engine, opts ...Option) (*Server, error) {
	if engine == nil {
		return nil, errors.New("search engine is required")
	}
	s := &Server{engine: engine, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}

	s.mcp = mcp.NewServer(&mcp.Implementation{Name: "hoopla", Version: version.Version}, nil)
	s.registerTools()
	s.registerResources()
	return s, nil
}

// MCPServer returns the underlying SDK server.
func (s *Server) MCPServer() *mcp.Server { return s.mcp }

// Tools lists the registered tool names.
func (s *Server) Tools() []string { return append([]string(nil), s.tools...) }

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "bm25_search",
		Description: "Keyword search over the movie catalogue ranked by BM25. Best for exact titles, names and rare words.",
	}, s.handleBM25)
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "weighted_search",
		Description: "Hybrid search blending normalized BM25 and semantic scores. alpha=1 is pure keyword, alpha=0 pure semantic.",
	}, s.handleWeighted)
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "rrf_search",
		Description: "Hybrid search fusing keyword and semantic rankings with Reciprocal Rank Fusion. Optional LLM query enhancement and reranking.",
	}, s.handleRRF)
	s.tools = append(s.tools, "bm25_search", "weighted_search", "rrf_search")

	if s.answerer != nil {
		mcp.AddTool(s.mcp, &mcp.Tool{
			Name:        "ask",
			Description: "Answer a question about the catalogue from the top RRF results using a generative model.",
		}, s.handleAsk)
		s.tools = append(s.tools, "ask")
	}
	if s.status != nil {
		mcp.AddTool(s.mcp, &mcp.Tool{
			Name:        "index_status",
			Description: "Report whether the lexical and semantic indexes are built, with sizes and the embedding model.",
		}, s.handleIndexStatus)
		s.tools = append(s.tools, "index_status")
	}
	s.logger.Debug("mcp_tools_registered", slog.Int("count", len(s.tools)))
}

// CallTool dispatches a tool by name with JSON-style arguments. It backs the
// SDK handlers in tests and local tooling.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) (any, error) {
	switch name {
	case "bm25_search":
		return callTyped(ctx, args, s.handleBM25)
	case "weighted_search":
		return callTyped(ctx, args, s.handleWeighted)
	case "rrf_search":
		return callTyped(ctx, args, s.handleRRF)
	case "ask":
		if s.answerer != nil {
			return callTyped(ctx, args, s.handleAsk)
		}
	case "index_status":
		if s.status != nil {
			return callTyped(ctx, args, s.handleIndexStatus)
		}
	}
	return nil, NewMethodNotFoundError(name)
}

func callTyped[In, Out any](ctx context.Context, args map[string]any,
	h func(context.Context, *mcp.CallToolRequest, In) (*mcp.CallToolResult, Out, error)) (any, error) {
	var in In
	if len(args) > 0 {
		raw, err := json.Marshal(args)
		if err != nil {
			return nil, NewInvalidParamsError(err.Error())
		}
		if err := json.Unmarshal(raw, &in); err != nil {
			return nil, NewInvalidParamsError(err.Error())
		}
	}
	_, out, err := h(ctx, nil, in)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Server) handleBM25(ctx context.Context, _ *mcp.CallToolRequest, in BM25Input) (*mcp.CallToolResult, SearchOutput, error) {
	return s.runSearch(ctx, "bm25_search", in.Query, func(q string) (*search.Response, error) {
		return s.engine.BM25Search(ctx, q, clampLimit(in.Limit))
	})
}

func (s *Server) handleWeighted(ctx context.Context, _ *mcp.CallToolRequest, in WeightedInput) (*mcp.CallToolResult, SearchOutput, error) {
	if in.Alpha != nil && (*in.Alpha < 0 || *in.Alpha > 1) {
		return nil, SearchOutput{}, NewInvalidParamsError("alpha must be between 0 and 1")
	}
	return s.runSearch(ctx, "weighted_search", in.Query, func(q string) (*search.Response, error) {
		return s.engine.WeightedSearch(ctx, q, search.WeightedOptions{Alpha: in.Alpha, Limit: clampLimit(in.Limit)})
	})
}

func (s *Server) handleRRF(ctx context.Context, _ *mcp.CallToolRequest, in RRFInput) (*mcp.CallToolResult, SearchOutput, error) {
	enhance, err := search.ParseEnhancement(in.Enhance)
	if err != nil {
		return nil, SearchOutput{}, MapError(err)
	}
	rerank, err := search.ParseRerankStrategy(in.Rerank)
	if err != nil {
		return nil, SearchOutput{}, MapError(err)
	}
	if in.K < 0 {
		return nil, SearchOutput{}, NewInvalidParamsError("k must be positive")
	}
	return s.runSearch(ctx, "rrf_search", in.Query, func(q string) (*search.Response, error) {
		return s.engine.RRFSearch(ctx, q, search.RRFOptions{
			K:       in.K,
			Limit:   clampLimit(in.Limit),
			Enhance: enhance,
			Rerank:  rerank,
		})
	})
}

func (s *Server) runSearch(ctx context.Context, tool, query string, run func(string) (*search.Response, error)) (*mcp.CallToolResult, SearchOutput, error) {
	if strings.TrimSpace(query) == "" {
		return nil, SearchOutput{}, NewInvalidParamsError("query is required")
	}

	requestID := newRequestID()
	started := time.Now()
	resp, err := run(query)
	if err != nil {
		s.logger.Warn("mcp_tool_failed",
			slog.String("request_id", requestID),
			slog.String("tool", tool),
			slog.Duration("duration", time.Since(started)),
			slog.String("error", err.Error()))
		return nil, SearchOutput{}, MapError(err)
	}
	s.logger.Debug("mcp_tool_completed",
		slog.String("request_id", requestID),
		slog.String("tool", tool),
		slog.Int("results", len(resp.Results)),
		slog.Duration("duration", time.Since(started)))

	return textResult(FormatResults(resp)), toSearchOutput(resp), nil
}

func (s *Server) handleAsk(ctx context.Context, _ *mcp.CallToolRequest, in AskInput) (*mcp.CallToolResult, AskOutput, error) {
	if strings.TrimSpace(in.Query) == "" {
		return nil, AskOutput{}, NewInvalidParamsError("query is required")
	}
	mode := rag.ModeAnswer
	if in.Mode != "" {
		m, err := rag.ParseMode(in.Mode)
		if err != nil {
			return nil, AskOutput{}, MapError(err)
		}
		mode = m
	}

	ans, err := s.answerer.Run(ctx, mode, in.Query, clampLimit(in.Limit))
	if err != nil {
		return nil, AskOutput{}, MapError(err)
	}
	out := AskOutput{Answer: ans.Text, Cited: ans.Cited, Sources: make([]string, 0, len(ans.Sources))}
	for _, src := range ans.Sources {
		out.Sources = append(out.Sources, src.Title)
	}
	return textResult(ans.Text), out, nil
}

func (s *Server) handleIndexStatus(ctx context.Context, _ *mcp.CallToolRequest, _ IndexStatusInput) (*mcp.CallToolResult, *IndexStatusOutput, error) {
	info, err := s.status(ctx)
	if err != nil {
		return nil, nil, MapError(err)
	}
	return nil, toIndexStatusOutput(info), nil
}

// Serve runs the server on transport until ctx ends. Only stdio is
// supported.
func (s *Server) Serve(ctx context.Context, transport string) error {
	if transport != "stdio" {
		return fmt.Errorf("unknown transport: %s (supported: stdio)", transport)
	}
	s.logger.Info("mcp_server_started", slog.String("transport", transport), slog.Int("tools", len(s.tools)))
	err := s.mcp.Run(ctx, &mcp.StdioTransport{})
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Error("mcp_server_stopped", slog.String("error", err.Error()))
		return err
	}
	s.logger.Info("mcp_server_stopped")
	return nil
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: text}}}
}

func newRequestID() string {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
