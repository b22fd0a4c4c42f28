package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	queryStatsURI    = "hoopla://query_stats"
	movieURIPrefix   = "hoopla://movies/"
	movieURITemplate = movieURIPrefix + "{id}"
)

func (s *Server) registerResources() {
	if s.queries != nil {
		s.mcp.AddResource(&mcp.Resource{
			Name:        "query_stats",
			URI:         queryStatsURI,
			Description: "Recent query statistics: strategy counts, top terms, zero-result queries and latency buckets.",
			MIMEType:    "application/json",
		}, s.readQueryStats)
	}
	if s.docs != nil {
		s.mcp.AddResourceTemplate(&mcp.ResourceTemplate{
			Name:        "movie",
			URITemplate: movieURITemplate,
			Description: "Title and description of a movie by document id.",
			MIMEType:    "text/markdown",
		}, s.readMovie)
	}
}

func (s *Server) readQueryStats(_ context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	text, err := s.QueryStats()
	if err != nil {
		return nil, err
	}
	return &mcp.ReadResourceResult{Contents: []*mcp.ResourceContents{{
		URI:      queryStatsURI,
		MIMEType: "application/json",
		Text:     text,
	}}}, nil
}

// QueryStats renders the query log snapshot as indented JSON.
func (s *Server) QueryStats() (string, error) {
	if s.queries == nil {
		return "", &MCPError{Code: ErrCodeNotFound, Message: "query statistics are not enabled"}
	}
	data, err := json.MarshalIndent(s.queries.Snapshot(), "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode query stats: %w", err)
	}
	return string(data), nil
}

func (s *Server) readMovie(_ context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	uri := req.Params.URI
	text, err := s.Movie(uri)
	if err != nil {
		return nil, err
	}
	return &mcp.ReadResourceResult{Contents: []*mcp.ResourceContents{{
		URI:      uri,
		MIMEType: "text/markdown",
		Text:     text,
	}}}, nil
}

// Movie renders the movie addressed by a hoopla://movies/{id} URI.
func (s *Server) Movie(uri string) (string, error) {
	if s.docs == nil {
		return "", mcp.ResourceNotFoundError(uri)
	}
	raw, ok := strings.CutPrefix(uri, movieURIPrefix)
	if !ok {
		return "", mcp.ResourceNotFoundError(uri)
	}
	id, err := strconv.Atoi(raw)
	if err != nil {
		return "", NewInvalidParamsError(fmt.Sprintf("invalid movie id %q", raw))
	}
	doc, err := s.docs.Document(id)
	if err != nil {
		return "", MapError(err)
	}
	return fmt.Sprintf("# %s\n\n%s\n", doc.Title, doc.Description), nil
}
