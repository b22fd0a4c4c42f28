package cmd

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServeCmd_HasTransportFlag(t *testing.T) {
	cmd := newServeCmd()

	flag := cmd.Flags().Lookup("transport")

	require.NotNil(t, flag)
	assert.Equal(t, "stdio", flag.DefValue)
}

func TestServeCmd_HasMetricsAddrFlag(t *testing.T) {
	cmd := newServeCmd()

	flag := cmd.Flags().Lookup("metrics-addr")

	require.NotNil(t, flag)
	assert.Equal(t, "", flag.DefValue)
}

func TestServe_WithoutIndexFails(t *testing.T) {
	// Given: a project that was never built
	setupProject(t)
	t.Setenv("HOME", t.TempDir())

	// When: starting the server
	err := runServe(context.Background(), "stdio", "")

	// Then: it fails before touching stdio
	assert.Error(t, err)
}

func TestServe_UnknownTransport(t *testing.T) {
	buildProject(t)
	t.Setenv("HOME", t.TempDir())
	t.Setenv("HOOPLA_RERANKER_URL", "http://127.0.0.1:1")

	err := runServe(context.Background(), "sse", "")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown transport")
}
