package eval

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// DefaultWorkers bounds concurrent queries.
const DefaultWorkers = 4

// SearchFunc returns the titles retrieved for query, best first.
type SearchFunc func(ctx context.Context, query string, limit int) ([]string, error)

// CaseResult scores one test case at k = limit.
type CaseResult struct {
	Query     string   `json:"query"`
	Retrieved []string `json:"retrieved"`
	Relevant  []string `json:"relevant"`
	Precision float64  `json:"precision"`
	Recall    float64  `json:"recall"`
	F1        float64  `json:"f1"`
}

// Report holds per-case scores in dataset order and their macro means.
type Report struct {
	Limit         int          `json:"limit"`
	Cases         []CaseResult `json:"cases"`
	MeanPrecision float64      `json:"mean_precision"`
	MeanRecall    float64      `json:"mean_recall"`
	MeanF1        float64      `json:"mean_f1"`
}

// Evaluate runs every case through search with up to workers concurrent
// queries (<= 0 uses DefaultWorkers). Any failing query fails the run.
func Evaluate(ctx context.Context, search SearchFunc, ds *Dataset, limit, workers int) (*Report, error) {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	started := time.Now()

	cases := make([]CaseResult, len(ds.TestCases))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, tc := range ds.TestCases {
		g.Go(func() error {
			titles, err := search(gctx, tc.Query, limit)
			if err != nil {
				return fmt.Errorf("evaluate %q: %w", tc.Query, err)
			}
			cases[i] = Score(tc.Query, titles, tc.RelevantDocs)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := &Report{Limit: limit, Cases: cases}
	if n := float64(len(cases)); n > 0 {
		for _, c := range cases {
			report.MeanPrecision += c.Precision
			report.MeanRecall += c.Recall
			report.MeanF1 += c.F1
		}
		report.MeanPrecision /= n
		report.MeanRecall /= n
		report.MeanF1 /= n
	}

	slog.Info("evaluation_completed",
		slog.Int("cases", len(cases)),
		slog.Int("limit", limit),
		slog.Float64("mean_precision", report.MeanPrecision),
		slog.Float64("mean_recall", report.MeanRecall),
		slog.Duration("duration", time.Since(started)))
	return report, nil
}

// Score computes precision, recall and F1 for one query. Precision is
// relevant retrieved over retrieved; recall is distinct relevant titles
// retrieved over relevant titles. Empty denominators give 0.
func Score(query string, retrieved, relevant []string) CaseResult {
	relevantSet := make(map[string]bool, len(relevant))
	for _, title := range relevant {
		relevantSet[title] = true
	}

	hits := 0
	found := make(map[string]bool)
	for _, title := range retrieved {
		if relevantSet[title] {
			hits++
			found[title] = true
		}
	}

	res := CaseResult{
		Query:     query,
		Retrieved: retrieved,
		Relevant:  relevant,
	}
	if len(retrieved) > 0 {
		res.Precision = float64(hits) / float64(len(retrieved))
	}
	if len(relevantSet) > 0 {
		res.Recall = float64(len(found)) / float64(len(relevantSet))
	}
	if res.Precision+res.Recall > 0 {
		res.F1 = 2 * res.Precision * res.Recall / (res.Precision + res.Recall)
	}
	return res
}
