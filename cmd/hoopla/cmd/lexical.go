package cmd

import (
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	herrors "github.com/Aman-CERP/hoopla/internal/errors"
	"github.com/Aman-CERP/hoopla/internal/output"
)

// addFormatFlag registers --format on a command.
func addFormatFlag(cmd *cobra.Command, format *string) {
	cmd.Flags().StringVarP(format, "format", "f", "text", "Output format: text, json")
}

// parseDocID parses a document id argument.
func parseDocID(s string) (int, error) {
	id, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, herrors.ValidationError("document id must be an integer, got "+strconv.Quote(s), err)
	}
	return id, nil
}

type termScore struct {
	Term  string  `json:"term"`
	DocID *int    `json:"doc_id,omitempty"`
	Score float64 `json:"score"`
}

func newLexicalSearchCmd() *cobra.Command {
	var (
		limit  int
		format string
	)

	cmd := &cobra.Command{
		Use:   "lexical-search <query>",
		Short: "List movies containing any query token",
		Long: `List movies whose text contains at least one query token, walking the
query tokens in order. No ranking is applied; use bm25-search for ranked results.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := output.ParseFormat(format)
			if err != nil {
				return err
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			idx, err := loadLexicalIndex(cfg)
			if err != nil {
				return err
			}

			query := strings.Join(args, " ")
			docs, err := idx.LexicalSearch(query, limit)
			if err != nil {
				return err
			}

			out := output.New(cmd.OutOrStdout())
			if f == output.FormatJSON {
				return out.JSON(docs)
			}
			out.Documents(query, docs)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 5, "Maximum number of movies")
	addFormatFlag(cmd, &format)
	return cmd
}

func newTermFrequencyCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "term-frequency <doc-id> <term>",
		Short: "Count occurrences of a term in one movie",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := output.ParseFormat(format)
			if err != nil {
				return err
			}
			docID, err := parseDocID(args[0])
			if err != nil {
				return err
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			idx, err := loadLexicalIndex(cfg)
			if err != nil {
				return err
			}

			tf, err := idx.TermFrequency(docID, args[1])
			if err != nil {
				return err
			}

			out := output.New(cmd.OutOrStdout())
			if f == output.FormatJSON {
				return out.JSON(termScore{Term: args[1], DocID: &docID, Score: float64(tf)})
			}
			out.Linef("Term frequency of '%s' in document '%d': %d", args[1], docID, tf)
			return nil
		},
	}

	addFormatFlag(cmd, &format)
	return cmd
}

func newIDFCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "idf <term>",
		Short: "Show the inverse document frequency of a term",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTermScore(cmd, format, args[0], "Inverse document frequency of '%s': %.2f",
				func(idx lexicalScorer, term string) (float64, error) { return idx.IDF(term) })
		},
	}

	addFormatFlag(cmd, &format)
	return cmd
}

func newBM25IDFCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "bm25-idf <term>",
		Short: "Show the BM25 inverse document frequency of a term",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTermScore(cmd, format, args[0], "BM25 IDF score of '%s': %.2f",
				func(idx lexicalScorer, term string) (float64, error) { return idx.BM25IDF(term) })
		},
	}

	addFormatFlag(cmd, &format)
	return cmd
}

// lexicalScorer is the part of the inverted index used by the term commands.
type lexicalScorer interface {
	IDF(term string) (float64, error)
	BM25IDF(term string) (float64, error)
}

func runTermScore(cmd *cobra.Command, format, term, text string, score func(lexicalScorer, string) (float64, error)) error {
	f, err := output.ParseFormat(format)
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	idx, err := loadLexicalIndex(cfg)
	if err != nil {
		return err
	}

	v, err := score(idx, term)
	if err != nil {
		return err
	}

	out := output.New(cmd.OutOrStdout())
	if f == output.FormatJSON {
		return out.JSON(termScore{Term: term, Score: v})
	}
	out.Linef(text, term, v)
	return nil
}

func newBM25TFCmd() *cobra.Command {
	var (
		k1, b  float64
		format string
	)

	cmd := &cobra.Command{
		Use:   "bm25-tf <doc-id> <term>",
		Short: "Show the saturated, length-normalized BM25 term frequency",
		Long: `Show the BM25 term-frequency component for a term in one movie.

--k1 and --b override the configured parameters for this call only.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := output.ParseFormat(format)
			if err != nil {
				return err
			}
			docID, err := parseDocID(args[0])
			if err != nil {
				return err
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("k1") {
				k1 = cfg.BM25.K1
			}
			if !cmd.Flags().Changed("b") {
				b = cfg.BM25.B
			}
			idx, err := loadLexicalIndex(cfg)
			if err != nil {
				return err
			}

			v, err := idx.BM25TF(docID, args[1], k1, b)
			if err != nil {
				return err
			}

			out := output.New(cmd.OutOrStdout())
			if f == output.FormatJSON {
				return out.JSON(termScore{Term: args[1], DocID: &docID, Score: v})
			}
			out.Linef("BM25 TF score of '%s' in document '%d': %.2f", args[1], docID, v)
			return nil
		},
	}

	cmd.Flags().Float64Var(&k1, "k1", 1.5, "Term frequency saturation")
	cmd.Flags().Float64Var(&b, "b", 0.75, "Length normalization, 0 to 1")
	addFormatFlag(cmd, &format)
	return cmd
}

func newBM25SearchCmd() *cobra.Command {
	var (
		limit  int
		format string
	)

	cmd := &cobra.Command{
		Use:   "bm25-search <query>",
		Short: "Rank movies by BM25 score",
		Args:  cobra.MinimumNArgs(1),
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

			resp, err := a.engine.BM25Search(cmd.Context(), strings.Join(args, " "), limit)
			if err != nil {
				return err
			}

			out := output.New(cmd.OutOrStdout())
			if f == output.FormatJSON {
				return out.JSON(resp)
			}
			out.BM25(resp)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum number of movies (config search.limit when unset)")
	addFormatFlag(cmd, &format)
	return cmd
}
