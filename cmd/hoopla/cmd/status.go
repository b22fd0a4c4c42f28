package cmd

import (
	"context"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/hoopla/internal/config"
	"github.com/Aman-CERP/hoopla/internal/output"
	"github.com/Aman-CERP/hoopla/internal/semantic"
	"github.com/Aman-CERP/hoopla/internal/store"
	"github.com/Aman-CERP/hoopla/internal/ui"
)

func newStatusCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the state of the persisted indexes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := output.ParseFormat(format)
			if err != nil {
				return err
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			info := collectStatus(cmd.Context(), cfg)
			r := ui.NewStatusRenderer(cmd.OutOrStdout(), ui.DetectNoColor() || !ui.IsTTY(cmd.OutOrStdout()))
			if f == output.FormatJSON {
				return r.RenderJSON(*info)
			}
			return r.Render(*info)
		},
	}

	addFormatFlag(cmd, &format)
	return cmd
}

// collectStatus inspects the cache directory. Missing or unreadable
// indexes are reported as not ready rather than as errors.
func collectStatus(ctx context.Context, cfg *config.Config) *ui.StatusInfo {
	info := &ui.StatusInfo{Corpus: cfg.Paths.Corpus, CacheDir: cfg.Paths.CacheDir}

	if idx, err := loadLexicalIndex(cfg); err == nil {
		if stats, err := idx.Stats(); err == nil {
			info.LexicalReady = true
			info.Documents = stats.DocumentCount
			info.Terms = stats.TermCount
			info.AvgDocLength = stats.AvgDocLength
		}
		if fi, err := os.Stat(cfg.IndexPath()); err == nil {
			info.IndexSize = fi.Size()
			info.IndexModified = fi.ModTime()
		}
	} else {
		slog.Debug("status_lexical_unavailable", slog.String("error", err.Error()))
	}

	if m, err := semantic.ReadManifest(cfg.VectorDir()); err == nil {
		info.SemanticReady = true
		info.Model = m.Model
		info.Dimensions = m.Dimensions
		info.Chunks = m.Chunks
		info.SemanticBuilt = m.BuiltAt
		if fi, err := os.Stat(semantic.GraphPath(cfg.VectorDir())); err == nil {
			info.VectorSize = fi.Size()
		}
	} else {
		slog.Debug("status_semantic_unavailable", slog.String("error", err.Error()))
	}

	if _, err := os.Stat(cfg.EmbeddingCachePath()); err == nil {
		if cache, err := store.OpenEmbeddingCache(cfg.EmbeddingCachePath()); err == nil {
			model := info.Model
			if model == "" {
				model = cfg.Embeddings.Model
			}
			if n, err := cache.Count(ctx, model); err == nil {
				info.CachedEmbeddings = n
			}
			_ = cache.Close()
		}
	}
	return info
}
