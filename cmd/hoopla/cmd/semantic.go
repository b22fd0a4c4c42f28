package cmd

import (
	"strings"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/hoopla/internal/chunk"
	herrors "github.com/Aman-CERP/hoopla/internal/errors"
	"github.com/Aman-CERP/hoopla/internal/output"
)

func newSemanticSearchCmd() *cobra.Command {
	var (
		limit  int
		format string
	)

	cmd := &cobra.Command{
		Use:   "semantic-search <query>",
		Short: "Rank movies by embedding similarity",
		Long: `Rank movies by the cosine similarity between the query embedding and
each movie's best matching chunk. Requires the semantic index from build-index.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := output.ParseFormat(format)
			if err != nil {
				return err
			}
			a, err := openApp(cmd.Context(), engineOptions{})
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			resp, err := a.engine.SemanticSearch(cmd.Context(), strings.Join(args, " "), limit)
			if err != nil {
				return err
			}

			out := output.New(cmd.OutOrStdout())
			if f == output.FormatJSON {
				return out.JSON(resp)
			}
			out.Semantic(resp)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum number of movies (config search.limit when unset)")
	addFormatFlag(cmd, &format)
	return cmd
}

type chunkResult struct {
	Characters int      `json:"characters"`
	Chunks     []string `json:"chunks"`
}

func newChunkCmd() *cobra.Command {
	var (
		size, overlap int
		format        string
	)

	cmd := &cobra.Command{
		Use:   "chunk <text>",
		Short: "Split text into fixed-size word windows",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChunk(cmd, format, strings.Join(args, " "), chunk.Options{Size: size, Overlap: overlap}, chunk.Words)
		},
	}

	cmd.Flags().IntVar(&size, "chunk-size", chunk.DefaultWordSize, "Words per chunk")
	cmd.Flags().IntVar(&overlap, "overlap", 0, "Words shared by neighboring chunks")
	addFormatFlag(cmd, &format)
	return cmd
}

func newSemanticChunkCmd() *cobra.Command {
	var (
		size, overlap int
		format        string
	)

	cmd := &cobra.Command{
		Use:   "semantic-chunk <text>",
		Short: "Split text into sentence windows",
		Long: `Split text into windows of whole sentences. A sentence ends at '.', '!'
or '?' followed by whitespace.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChunk(cmd, format, strings.Join(args, " "), chunk.Options{Size: size, Overlap: overlap}, chunk.Sentences)
		},
	}

	cmd.Flags().IntVar(&size, "max-chunk-size", chunk.DefaultMaxSentences, "Sentences per chunk")
	cmd.Flags().IntVar(&overlap, "overlap", 0, "Sentences shared by neighboring chunks")
	addFormatFlag(cmd, &format)
	return cmd
}

func runChunk(cmd *cobra.Command, format, text string, opts chunk.Options, split func(string, chunk.Options) ([]string, error)) error {
	f, err := output.ParseFormat(format)
	if err != nil {
		return err
	}
	if err := opts.Validate(); err != nil {
		return herrors.ValidationError(err.Error(), err).
			WithSuggestion("Use a positive size and an overlap smaller than it")
	}

	chunks, err := split(text, opts)
	if err != nil {
		return err
	}

	out := output.New(cmd.OutOrStdout())
	n := utf8.RuneCountInString(text)
	if f == output.FormatJSON {
		return out.JSON(chunkResult{Characters: n, Chunks: chunks})
	}
	out.Chunks(n, chunks)
	return nil
}
