package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/hoopla/internal/eval"
	"github.com/Aman-CERP/hoopla/internal/output"
	"github.com/Aman-CERP/hoopla/internal/search"
)

func newEvaluateCmd() *cobra.Command {
	var (
		dataset string
		limit   int
		format  string
	)

	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Score RRF search against a golden dataset",
		Long: `Run every golden dataset query through RRF hybrid search and report
precision@k, recall@k and F1 per query, plus their means. k is --limit.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := output.ParseFormat(format)
			if err != nil {
				return err
			}
			a, err := openApp(cmd.Context(), engineOptions{})
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			if dataset == "" {
				dataset = a.cfg.Paths.GoldenDataset
			}
			ds, err := eval.LoadDataset(dataset)
			if err != nil {
				return err
			}

			searchFn := func(ctx context.Context, query string, limit int) ([]string, error) {
				resp, err := a.engine.RRFSearch(ctx, query, search.RRFOptions{Limit: limit})
				if err != nil {
					return nil, err
				}
				return resp.Titles(), nil
			}
			report, err := eval.Evaluate(cmd.Context(), searchFn, ds, limit, a.cfg.Search.EvalWorkers)
			if err != nil {
				return err
			}

			out := output.New(cmd.OutOrStdout())
			if f == output.FormatJSON {
				return out.JSON(report)
			}
			out.Evaluation(report)
			return nil
		},
	}

	cmd.Flags().StringVar(&dataset, "dataset", "", "Golden dataset path (default from config)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 5, "Results per query; the k in precision@k")
	addFormatFlag(cmd, &format)
	return cmd
}
