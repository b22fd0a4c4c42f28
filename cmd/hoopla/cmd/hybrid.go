package cmd

import (
	"math"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	herrors "github.com/Aman-CERP/hoopla/internal/errors"
	"github.com/Aman-CERP/hoopla/internal/output"
	"github.com/Aman-CERP/hoopla/internal/search"
)

func newWeightedSearchCmd() *cobra.Command {
	var (
		alpha  float64
		limit  int
		format string
	)

	cmd := &cobra.Command{
		Use:   "weighted-search <query>",
		Short: "Blend normalized BM25 and semantic scores",
		Long: `Rank movies by alpha * BM25 + (1 - alpha) * semantic, with both scores
min-max normalized over their candidate sets.

--alpha 1 is pure keyword ranking and --alpha 0 pure semantic ranking.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := output.ParseFormat(format)
			if err != nil {
				return err
			}
			opts := search.WeightedOptions{Limit: limit}
			if cmd.Flags().Changed("alpha") {
				opts.Alpha = search.Alpha(alpha)
			}

			a, err := openApp(cmd.Context(), engineOptions{})
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			resp, err := a.engine.WeightedSearch(cmd.Context(), strings.Join(args, " "), opts)
			if err != nil {
				return err
			}

			out := output.New(cmd.OutOrStdout())
			if f == output.FormatJSON {
				return out.JSON(resp)
			}
			out.Weighted(resp)
			return nil
		},
	}

	cmd.Flags().Float64Var(&alpha, "alpha", search.DefaultAlpha, "Keyword weight between 0 and 1 (config search.alpha when unset)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum number of movies (config search.limit when unset)")
	addFormatFlag(cmd, &format)
	return cmd
}

func newRRFSearchCmd() *cobra.Command {
	var (
		k       int
		limit   int
		enhance string
		rerank  string
		format  string
	)

	cmd := &cobra.Command{
		Use:   "rrf-search <query>",
		Short: "Fuse keyword and semantic rankings with Reciprocal Rank Fusion",
		Long: `Rank movies by the sum of 1/(k + rank) over the BM25 and semantic rankings.

--enhance rewrites the query with the language model first:
  spell     fix spelling mistakes
  rewrite   turn a vague query into a specific one
  expand    append related terms

--rerank-method reorders the fused results:
  individual     score each movie 0-10 with the language model
  batch          ask the language model for one ordering
  cross_encoder  score query and movie pairs with a cross-encoder server`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := output.ParseFormat(format)
			if err != nil {
				return err
			}
			enh, err := search.ParseEnhancement(enhance)
			if err != nil {
				return err
			}
			strategy, err := search.ParseRerankStrategy(rerank)
			if err != nil {
				return err
			}
			if k < 0 {
				return herrors.ValidationError("--k must be positive", nil)
			}

			a, err := openApp(cmd.Context(), engineOptions{rerank: strategy})
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			resp, err := a.engine.RRFSearch(cmd.Context(), strings.Join(args, " "), search.RRFOptions{
				K:       k,
				Limit:   limit,
				Enhance: enh,
				Rerank:  strategy,
			})
			if err != nil {
				return err
			}

			out := output.New(cmd.OutOrStdout())
			if f == output.FormatJSON {
				return out.JSON(resp)
			}
			out.RRF(resp)
			return nil
		},
	}

	cmd.Flags().IntVar(&k, "k", 0, "RRF constant (default from config)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum number of movies (config search.limit when unset)")
	cmd.Flags().StringVar(&enhance, "enhance", "", "Query enhancement: spell, rewrite, expand")
	cmd.Flags().StringVar(&rerank, "rerank-method", "", "Rerank method: individual, batch, cross_encoder")
	addFormatFlag(cmd, &format)
	return cmd
}

func newNormalizeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "normalize <score>...",
		Short: "Min-max normalize a list of scores",
		Long: `Scale scores to [0, 1] by (s - min) / (max - min). When every score is
equal, each maps to 1. Scores must be finite. Put -- before negative scores:
  hoopla normalize -- -1.5 0 2`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			scores := make([]float64, len(args))
			for i, arg := range args {
				v, err := strconv.ParseFloat(arg, 64)
				if err != nil {
					return herrors.ValidationError("score must be a number, got "+strconv.Quote(arg), err)
				}
				if math.IsNaN(v) || math.IsInf(v, 0) {
					return herrors.ValidationError("score must be finite, got "+strconv.Quote(arg), nil)
				}
				scores[i] = v
			}
			output.New(cmd.OutOrStdout()).Scores(search.Normalize(scores))
			return nil
		},
	}
	return cmd
}
