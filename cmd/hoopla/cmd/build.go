package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/hoopla/internal/config"
	"github.com/Aman-CERP/hoopla/internal/semantic"
	"github.com/Aman-CERP/hoopla/internal/store"
	"github.com/Aman-CERP/hoopla/internal/ui"
	"github.com/Aman-CERP/hoopla/internal/watcher"
)

func newBuildIndexCmd() *cobra.Command {
	var (
		noTUI bool
		watch bool
	)

	cmd := &cobra.Command{
		Use:   "build-index",
		Short: "Build the keyword and semantic indexes from the corpus",
		Long: `Build the BM25 inverted index and the chunked embedding index from the
movie corpus and save both to the cache directory.

Use --watch to keep running and rebuild whenever the corpus file changes.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runBuildIndex(ctx, cmd.OutOrStdout(), noTUI, watch)
		},
	}

	cmd.Flags().BoolVar(&noTUI, "no-tui", false, "Plain progress output even on a terminal")
	cmd.Flags().BoolVar(&watch, "watch", false, "Rebuild when the corpus file changes")
	return cmd
}

func runBuildIndex(ctx context.Context, out io.Writer, noTUI, watch bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	lock := store.NewBuildLock(cfg.Paths.CacheDir)
	if err := lock.TryLock(); err != nil {
		return err
	}
	defer func() { _ = lock.Unlock() }()

	renderer := ui.NewRenderer(ui.NewConfig(out,
		ui.WithForcePlain(noTUI || watch),
		ui.WithNoColor(ui.DetectNoColor()),
		ui.WithCorpus(cfg.Paths.Corpus)))
	if err := renderer.Start(ctx); err != nil {
		slog.Warn("failed to start progress renderer", slog.String("error", err.Error()))
	}
	_, buildErr := buildIndexes(ctx, cfg, renderer)
	if buildErr != nil {
		renderer.AddError(ui.ErrorEvent{Err: buildErr})
	}
	_ = renderer.Stop()
	if buildErr != nil || !watch {
		return buildErr
	}
	return watchCorpus(ctx, cfg, renderer)
}

// buildIndexes builds and saves both indexes, reporting each stage to
// renderer.
func buildIndexes(ctx context.Context, cfg *config.Config, renderer ui.Renderer) (*ui.CompletionStats, error) {
	started := time.Now()
	var timings ui.StageTimings

	renderer.UpdateProgress(ui.ProgressEvent{Stage: ui.StageLoading, Message: cfg.Paths.Corpus})
	docs, err := store.LoadCorpus(cfg.Paths.Corpus)
	if err != nil {
		return nil, err
	}
	timings.Load = time.Since(started)

	stageStart := time.Now()
	renderer.UpdateProgress(ui.ProgressEvent{Stage: ui.StageLexical, Total: len(docs), Message: "building inverted index"})
	idx, err := newLexicalIndex(cfg)
	if err != nil {
		return nil, err
	}
	if err := idx.Build(ctx, docs); err != nil {
		return nil, err
	}
	stats, err := idx.Stats()
	if err != nil {
		return nil, err
	}
	renderer.UpdateProgress(ui.ProgressEvent{Stage: ui.StageLexical, Current: len(docs), Total: len(docs)})
	timings.Lexical = time.Since(stageStart)

	stageStart = time.Now()
	cache, err := store.OpenEmbeddingCache(cfg.EmbeddingCachePath())
	if err != nil {
		renderer.AddError(ui.ErrorEvent{Err: fmt.Errorf("embedding cache disabled: %w", err), IsWarn: true})
		cache = nil
	} else {
		defer func() { _ = cache.Close() }()
	}
	embedder, err := openEmbedder(ctx, cfg, cache)
	if err != nil {
		return nil, err
	}
	defer func() { _ = embedder.Close() }()

	sem, err := semantic.NewIndex(embedder, semanticConfig(cfg))
	if err != nil {
		return nil, err
	}
	defer func() { _ = sem.Close() }()
	err = sem.Build(ctx, docs, func(done, total int) {
		renderer.UpdateProgress(ui.ProgressEvent{Stage: ui.StageEmbedding, Current: done, Total: total})
	})
	if err != nil {
		return nil, err
	}
	timings.Embed = time.Since(stageStart)

	stageStart = time.Now()
	renderer.UpdateProgress(ui.ProgressEvent{Stage: ui.StageSaving, Message: cfg.Paths.CacheDir})
	if err := os.MkdirAll(cfg.Paths.CacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}
	// Vectors are staged first and swapped in last, so an interrupted save
	// leaves either the old pair or a fingerprint mismatch that openApp
	// rejects.
	commitVectors, err := sem.Stage(cfg.VectorDir())
	if err != nil {
		return nil, err
	}
	if err := idx.Save(cfg.IndexPath()); err != nil {
		return nil, err
	}
	if err := commitVectors(); err != nil {
		return nil, err
	}
	timings.Save = time.Since(stageStart)

	manifest := sem.Manifest()
	completion := ui.CompletionStats{
		Documents: stats.DocumentCount,
		Terms:     stats.TermCount,
		Chunks:    manifest.Chunks,
		Duration:  time.Since(started),
		Stages:    timings,
		Embedder: ui.EmbedderInfo{
			Provider:   cfg.Embeddings.Provider,
			Model:      manifest.Model,
			Dimensions: manifest.Dimensions,
		},
	}
	renderer.UpdateProgress(ui.ProgressEvent{Stage: ui.StageComplete})
	renderer.Complete(completion)

	slog.Info("index_built",
		slog.Int("documents", completion.Documents),
		slog.Int("terms", completion.Terms),
		slog.Int("chunks", completion.Chunks),
		slog.Duration("duration", completion.Duration))
	return &completion, nil
}

// watchCorpus rebuilds after every debounced change to the corpus file
// until ctx ends. A failed rebuild is reported and the previous snapshot on
// disk stays in use.
func watchCorpus(ctx context.Context, cfg *config.Config, renderer ui.Renderer) error {
	w, err := watcher.New(watcher.Options{
		DebounceWindow: config.Duration(cfg.Server.WatchDebounce, watcher.DefaultOptions().DebounceWindow),
	})
	if err != nil {
		return err
	}
	defer func() { _ = w.Stop() }()

	startErr := make(chan error, 1)
	go func() { startErr <- w.Start(ctx, cfg.Paths.Corpus) }()
	slog.Info("watch_started", slog.String("corpus", cfg.Paths.Corpus), slog.String("mode", w.Mode()))

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-startErr:
			if err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("watch corpus: %w", err)
			}
			return nil
		case err, ok := <-w.Errors():
			if !ok {
				return nil
			}
			renderer.AddError(ui.ErrorEvent{Err: err, IsWarn: true})
		case batch, ok := <-w.Events():
			if !ok {
				return nil
			}
			if !shouldRebuild(batch) {
				renderer.AddError(ui.ErrorEvent{Err: fmt.Errorf("corpus %s was removed; keeping the current index", cfg.Paths.Corpus), IsWarn: true})
				continue
			}
			slog.Info("corpus_changed", slog.Int("events", len(batch)))
			if _, err := buildIndexes(ctx, cfg, renderer); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				renderer.AddError(ui.ErrorEvent{Err: err})
			}
		}
	}
}

// shouldRebuild reports whether the latest event in batch leaves a corpus
// file to read.
func shouldRebuild(batch []watcher.FileEvent) bool {
	if len(batch) == 0 {
		return false
	}
	return batch[len(batch)-1].Operation != watcher.OpDelete
}
