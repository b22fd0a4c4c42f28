package output

import (
	"strconv"
	"strings"

	"github.com/Aman-CERP/hoopla/internal/eval"
	"github.com/Aman-CERP/hoopla/internal/rag"
	"github.com/Aman-CERP/hoopla/internal/search"
	"github.com/Aman-CERP/hoopla/internal/store"
)

// snippetLen is how much of a description is shown under a result.
const snippetLen = 100

// Documents prints keyword search matches.
func (w *Writer) Documents(query string, docs []store.Document) {
	w.Linef("Searching for: %s", query)
	for i, d := range docs {
		w.Linef("%d. %s", i+1, d.Title)
	}
}

// BM25 prints a BM25 ranking.
func (w *Writer) BM25(resp *search.Response) {
	w.Linef("BM25 Search Results for '%s':", resp.Query)
	for i, r := range resp.Results {
		w.Linef("%d. (%d) %s - Score: %.2f", i+1, r.ID, r.Title, r.Score)
	}
}

// Semantic prints a semantic ranking with the cosine score of each movie's
// best chunk.
func (w *Writer) Semantic(resp *search.Response) {
	w.Linef("Semantic Search Results for '%s':", resp.Query)
	for i, r := range resp.Results {
		w.Linef("%d. %s (score: %.4f)", i+1, r.Title, r.Metadata[search.MetaSemanticScore])
		w.Linef("   %s", Truncate(r.Document, snippetLen))
		w.Newline()
	}
}

// Chunks prints the chunks cut from a text of n characters.
func (w *Writer) Chunks(n int, chunks []string) {
	w.Linef("Chunking %d characters", n)
	for i, c := range chunks {
		w.Linef("%d. %s", i+1, c)
	}
}

// Weighted prints a weighted hybrid ranking.
func (w *Writer) Weighted(resp *search.Response) {
	w.Linef("Weighted Hybrid Search Results for '%s' (alpha=%v):", resp.Query, resp.Alpha)
	w.Linef("  Alpha %v: %d%% Keyword, %d%% Semantic",
		resp.Alpha, int(resp.Alpha*100+0.5), int((1-resp.Alpha)*100+0.5))
	for i, r := range resp.Results {
		w.Linef("%d. %s", i+1, r.Title)
		w.Linef("   Hybrid Score: %.3f", r.Score)
		bm, okB := r.Metadata[search.MetaBM25Score]
		sem, okS := r.Metadata[search.MetaSemanticScore]
		if okB && okS {
			w.Linef("   BM25: %.3f, Semantic: %.3f", bm, sem)
		}
		w.Linef("   %s", Truncate(r.Document, snippetLen))
		w.Newline()
	}
}

// RRF prints a reciprocal rank fusion ranking, with rerank scores when a
// reranker ran.
func (w *Writer) RRF(resp *search.Response) {
	if resp.OriginalQuery != "" {
		w.Linef("Enhanced query (%s): '%s' -> '%s'", resp.Enhance, resp.OriginalQuery, resp.Query)
	}
	if resp.Rerank != search.RerankNone {
		w.Linef("Reranking top %d results using %s method...", len(resp.Results), resp.Rerank)
	}
	w.Linef("RRF Hybrid Search Results for '%s' (k=%d)", resp.Query, resp.K)
	for i, r := range resp.Results {
		w.Linef("%d. %s", i+1, r.Title)
		if score, ok := r.Metadata[search.MetaRerankScore]; ok {
			w.Linef("     Rerank score: %.3f", score)
		}
		w.Linef("     RRF Score: %.3f", r.Score)
		w.Linef("     %s", ranks(r.Metadata))
		w.Linef("     %s", Truncate(r.Document, snippetLen))
		w.Newline()
	}
}

func ranks(meta map[string]float64) string {
	rank := func(key string) string {
		if v := int(meta[key]); v > 0 {
			return "#" + strconv.Itoa(v)
		}
		return "-"
	}
	return "BM25 Rank: " + rank(search.MetaBM25Rank) + ", Semantic Rank: " + rank(search.MetaSemanticRank)
}

// Scores prints normalized scores.
func (w *Writer) Scores(scores []float64) {
	for _, s := range scores {
		w.Linef("* %.4f", s)
	}
}

// Evaluation prints per-query precision, recall and F1.
func (w *Writer) Evaluation(report *eval.Report) {
	w.Linef("k=%d", report.Limit)
	w.Newline()
	for _, c := range report.Cases {
		w.Linef("- Query: %s", c.Query)
		w.Linef("  - Precision@%d: %.4f", report.Limit, c.Precision)
		w.Linef("  - Recall@%d: %.4f", report.Limit, c.Recall)
		w.Linef("  - F1 Score: %.4f", c.F1)
		w.Linef("  - Retrieved: %s", strings.Join(c.Retrieved, ", "))
		w.Linef("  - Relevant:  %s", strings.Join(c.Relevant, ", "))
		w.Newline()
	}
	w.Linef("Mean Precision@%d: %.4f", report.Limit, report.MeanPrecision)
	w.Linef("Mean Recall@%d: %.4f", report.Limit, report.MeanRecall)
	w.Linef("Mean F1: %.4f", report.MeanF1)
}

// Answer prints a generated answer and its sources.
func (w *Writer) Answer(ans *rag.Answer) {
	w.Linef("Search Results:")
	for i, s := range ans.Sources {
		if ans.Mode == rag.ModeCitations {
			w.Linef("  [%d] %s", i+1, s.Title)
			continue
		}
		w.Linef("  - %s", s.Title)
	}
	w.Newline()
	switch ans.Mode {
	case rag.ModeSummarize:
		w.Linef("LLM Summary:")
	case rag.ModeCitations:
		w.Linef("LLM Answer:")
	default:
		w.Linef("RAG Response:")
	}
	w.Linef("  %s", ans.Text)
}
