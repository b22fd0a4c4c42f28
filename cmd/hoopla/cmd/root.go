// Package cmd provides the CLI commands for hoopla.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	herrors "github.com/Aman-CERP/hoopla/internal/errors"
	"github.com/Aman-CERP/hoopla/internal/logging"
	"github.com/Aman-CERP/hoopla/internal/profiling"
	"github.com/Aman-CERP/hoopla/pkg/version"
)

var (
	debugMode      bool
	loggingCleanup func()

	profileOpts profiling.Options
	profile     *profiling.Session
)

// NewRootCmd creates the root command for the hoopla CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hoopla",
		Short: "Hybrid keyword and semantic search over a movie catalogue",
		Long: `hoopla searches a movie catalogue with BM25 keyword ranking, embedding
similarity, or a fusion of both.

Build the indexes once, then search:
  hoopla build-index
  hoopla bm25-search "bear in london"
  hoopla rrf-search "family film about a bear" --enhance rewrite`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetVersionTemplate("hoopla version {{.Version}}\n")

	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging to ~/.hoopla/logs/")
	cmd.PersistentFlags().StringVar(&profileOpts.CPU, "profile-cpu", "", "Write CPU profile to file")
	cmd.PersistentFlags().StringVar(&profileOpts.Heap, "profile-mem", "", "Write memory profile to file")
	cmd.PersistentFlags().StringVar(&profileOpts.Trace, "profile-trace", "", "Write execution trace to file")
	cmd.PersistentPreRunE = startProfilingAndLogging
	cmd.PersistentPostRunE = stopProfilingAndLogging

	cmd.AddCommand(newBuildIndexCmd())
	cmd.AddCommand(newLexicalSearchCmd())
	cmd.AddCommand(newTermFrequencyCmd())
	cmd.AddCommand(newIDFCmd())
	cmd.AddCommand(newBM25IDFCmd())
	cmd.AddCommand(newBM25TFCmd())
	cmd.AddCommand(newBM25SearchCmd())
	cmd.AddCommand(newSemanticSearchCmd())
	cmd.AddCommand(newChunkCmd())
	cmd.AddCommand(newSemanticChunkCmd())
	cmd.AddCommand(newWeightedSearchCmd())
	cmd.AddCommand(newRRFSearchCmd())
	cmd.AddCommand(newNormalizeCmd())
	cmd.AddCommand(newEvaluateCmd())
	cmd.AddCommand(newRAGCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// startProfilingAndLogging starts any requested profiles and installs the
// debug file logger when --debug is set. serve installs its own logger
// because stdout and stderr must stay quiet.
func startProfilingAndLogging(cmd *cobra.Command, _ []string) error {
	if profileOpts.Enabled() {
		s, err := profiling.Start(profileOpts)
		if err != nil {
			return err
		}
		profile = s
	}

	if !debugMode {
		slog.SetDefault(logging.NewConsoleLogger(cmd.ErrOrStderr(), "warn"))
		return nil
	}

	logger, cleanup, err := logging.Setup(logging.DebugConfig())
	if err != nil {
		_ = profile.Stop()
		profile = nil
		return fmt.Errorf("failed to setup debug logging: %w", err)
	}
	loggingCleanup = cleanup
	slog.SetDefault(logger)
	slog.Info("debug_logging_enabled",
		slog.String("log_file", logging.DefaultLogPath()),
		slog.String("command", cmd.Name()),
		slog.String("version", version.Version))
	return nil
}

func stopProfilingAndLogging(_ *cobra.Command, _ []string) error {
	err := profile.Stop()
	profile = nil

	if loggingCleanup != nil {
		slog.Info("debug_logging_stopped")
		loggingCleanup()
		loggingCleanup = nil
	}
	if err != nil {
		return fmt.Errorf("failed to write profiles: %w", err)
	}
	return nil
}

// Execute runs the root command and prints a failure with its code and
// suggestion.
func Execute() error {
	err := NewRootCmd().Execute()
	if err != nil {
		fmt.Fprint(os.Stderr, herrors.FormatForCLI(err))
	}
	return err
}
