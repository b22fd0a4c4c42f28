package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/Aman-CERP/hoopla/internal/logging"
	"github.com/Aman-CERP/hoopla/internal/mcp"
	"github.com/Aman-CERP/hoopla/internal/rag"
	"github.com/Aman-CERP/hoopla/internal/telemetry"
	"github.com/Aman-CERP/hoopla/internal/ui"
)

func newServeCmd() *cobra.Command {
	var (
		transport   string
		metricsAddr string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the search operations as MCP tools over stdio",
		Long: `Start a Model Context Protocol server on stdin/stdout exposing
bm25_search, weighted_search, rrf_search, ask and index_status.

Stdout carries JSON-RPC only; logs go to ~/.hoopla/logs/hoopla.log.
--metrics-addr additionally serves Prometheus metrics at /metrics.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, transport, metricsAddr)
		},
	}

	cmd.Flags().StringVar(&transport, "transport", "stdio", "Transport: stdio")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9090 (default from config)")
	return cmd
}

func runServe(ctx context.Context, transport, metricsAddr string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	level := cfg.Server.LogLevel
	if debugMode {
		level = "debug"
	}
	logger, cleanup, err := logging.Setup(logging.ServeConfig(level))
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	defer cleanup()
	slog.SetDefault(logger)

	if err := verifyStdinForMCP(); err != nil {
		slog.Warn("stdin_not_piped", slog.String("error", err.Error()))
	}

	registry := prometheus.NewRegistry()
	metrics, err := telemetry.NewMetrics(registry)
	if err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}
	if metricsAddr == "" {
		metricsAddr = cfg.Server.MetricsAddr
	}
	if metricsAddr != "" {
		stopMetrics := serveMetrics(metricsAddr, registry)
		defer stopMetrics()
	}

	a, err := openApp(ctx, engineOptions{metrics: metrics, optionalCrossEncoder: true})
	if err != nil {
		slog.Error("serve_open_failed", slog.String("error", err.Error()))
		return err
	}
	defer func() { _ = a.Close() }()

	server, err := mcp.NewServer(a.engine,
		mcp.WithAnswerer(rag.NewService(a.engine, a.llm)),
		mcp.WithDocuments(a.index),
		mcp.WithQueryLog(metrics.Queries()),
		mcp.WithStatus(func(ctx context.Context) (*ui.StatusInfo, error) {
			return collectStatus(ctx, a.cfg), nil
		}))
	if err != nil {
		return err
	}
	return server.Serve(ctx, transport)
}

// serveMetrics starts the /metrics endpoint and returns a function that
// shuts it down.
func serveMetrics(addr string, registry *prometheus.Registry) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", telemetry.Handler(registry))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		slog.Info("metrics_server_started", slog.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics_server_failed", slog.String("error", err.Error()))
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

// verifyStdinForMCP reports an interactive stdin, which means no MCP client
// is attached.
func verifyStdinForMCP() error {
	fd := os.Stdin.Fd()
	if isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd) {
		return errors.New("stdin is a terminal; serve expects an MCP client on a pipe")
	}
	return nil
}
