package mcp

import (
	"fmt"
	"strings"

	"github.com/Aman-CERP/hoopla/internal/search"
)

const snippetRunes = 200

// FormatResults renders a response as markdown for the tool text content.
func FormatResults(resp *search.Response) string {
	var sb strings.Builder
	if len(resp.Results) == 0 {
		fmt.Fprintf(&sb, "No movies found for %q.\n", resp.Query)
		return sb.String()
	}

	fmt.Fprintf(&sb, "## %s results for %q\n\n", strategyLabel(resp.Strategy), resp.Query)
	if resp.OriginalQuery != "" {
		fmt.Fprintf(&sb, "_Query enhanced from %q._\n\n", resp.OriginalQuery)
	}
	for i, r := range resp.Results {
		fmt.Fprintf(&sb, "%d. **%s** (id %d, score %.3f)\n", i+1, r.Title, r.ID, r.Score)
		if reason := matchReason(r.Metadata); reason != "" {
			fmt.Fprintf(&sb, "   _%s_\n", reason)
		}
		fmt.Fprintf(&sb, "   %s\n", snippet(r.Document))
	}
	return sb.String()
}

func strategyLabel(s search.Strategy) string {
	switch s {
	case search.StrategyBM25:
		return "BM25"
	case search.StrategySemantic:
		return "Semantic"
	case search.StrategyWeighted:
		return "Weighted hybrid"
	case search.StrategyRRF:
		return "RRF hybrid"
	default:
		return string(s)
	}
}

// matchReason explains which retriever contributed to a result.
func matchReason(meta map[string]float64) string {
	if score, ok := meta[search.MetaRerankScore]; ok {
		return fmt.Sprintf("reranked, score %.2f", score)
	}
	bm, sem := meta[search.MetaBM25Rank], meta[search.MetaSemanticRank]
	switch {
	case bm > 0 && sem > 0:
		return fmt.Sprintf("keyword rank %d, semantic rank %d", int(bm), int(sem))
	case bm > 0:
		return fmt.Sprintf("keyword match only (rank %d)", int(bm))
	case sem > 0:
		return fmt.Sprintf("semantic match only (rank %d)", int(sem))
	}
	semScore, okS := meta[search.MetaSemanticScore]
	bmScore, okB := meta[search.MetaBM25Score]
	switch {
	case okS && okB:
		return fmt.Sprintf("keyword %.2f, semantic %.2f", bmScore, semScore)
	case okS:
		return fmt.Sprintf("semantic %.4f", semScore)
	}
	return ""
}

func snippet(s string) string {
	r := []rune(strings.Join(strings.Fields(s), " "))
	if len(r) <= snippetRunes {
		return string(r)
	}
	return string(r[:snippetRunes]) + "..."
}
