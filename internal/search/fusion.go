package search

import (
	"sort"

	"github.com/Aman-CERP/hoopla/internal/store"
)

// DefaultRRFConstant is the standard RRF smoothing parameter.
const DefaultRRFConstant = 60

// DefaultAlpha weights lexical and semantic scores equally.
const DefaultAlpha = 0.5

// FusedResult is one document after merging the lexical and semantic sets.
// Rank fields are 1-indexed and 0 when the document is absent from a source.
type FusedResult struct {
	DocID int
	Score float64

	// Weighted fusion: normalized per-source scores.
	LexicalScore  float64
	SemanticScore float64

	// RRF: per-source rank and contribution.
	LexicalRank  int
	SemanticRank int
	LexicalRRF   float64
	SemanticRRF  float64

	MatchedTerms []string
}

// WeightedMetadata returns the per-source diagnostics for weighted fusion.
func (r *FusedResult) WeightedMetadata() map[string]float64 {
	return map[string]float64{
		MetaBM25Score:     r.LexicalScore,
		MetaSemanticScore: r.SemanticScore,
	}
}

// RRFMetadata returns the per-source diagnostics for RRF.
func (r *FusedResult) RRFMetadata() map[string]float64 {
	return map[string]float64{
		MetaBM25Rank:     float64(r.LexicalRank),
		MetaSemanticRank: float64(r.SemanticRank),
		MetaBM25RRF:      r.LexicalRRF,
		MetaSemanticRRF:  r.SemanticRRF,
	}
}

// WeightedFusion merges sources by alpha * lexical + (1 - alpha) * semantic
// over independently min-max normalized scores.
type WeightedFusion struct {
	Alpha float64
}

// NewWeightedFusion creates a weighted fusion with the given alpha.
func NewWeightedFusion(alpha float64) *WeightedFusion {
	return &WeightedFusion{Alpha: alpha}
}

// Fuse merges both sets. A document keeps the highest normalized score it
// reached in each source and contributes 0 for a source it is absent from.
func (f *WeightedFusion) Fuse(lexical []*store.BM25Result, semantic []*store.SemanticResult) []*FusedResult {
	merged := make(map[int]*FusedResult, len(lexical)+len(semantic))

	lexScores := make([]float64, len(lexical))
	for i, r := range lexical {
		lexScores[i] = r.Score
	}
	for i, norm := range Normalize(lexScores) {
		r := getOrCreate(merged, lexical[i].DocID)
		if r.MatchedTerms == nil {
			r.MatchedTerms = lexical[i].MatchedTerms
		}
		r.LexicalScore = max(r.LexicalScore, norm)
	}

	semScores := make([]float64, len(semantic))
	for i, r := range semantic {
		semScores[i] = r.Score
	}
	for i, norm := range Normalize(semScores) {
		r := getOrCreate(merged, semantic[i].DocID)
		r.SemanticScore = max(r.SemanticScore, norm)
	}

	for _, r := range merged {
		r.Score = f.Alpha*r.LexicalScore + (1-f.Alpha)*r.SemanticScore
	}
	return sortFused(merged)
}

// RRFFusion combines sources using Reciprocal Rank Fusion.
//
// Algorithm: RRF_score(d) = Σ 1 / (k + rank_i(d))
//
// where rank_i is the 1-indexed position of d in source i ranked by its own
// score, and a source that does not contain d contributes 0.
type RRFFusion struct {
	K int // RRF smoothing constant (default: 60)
}

// NewRRFFusion creates a new RRF fusion instance with default k=60.
func NewRRFFusion() *RRFFusion {
	return &RRFFusion{K: DefaultRRFConstant}
}

// NewRRFFusionWithK creates a new RRF fusion with custom k value.
// If k <= 0, defaults to 60.
func NewRRFFusionWithK(k int) *RRFFusion {
	if k <= 0 {
		k = DefaultRRFConstant
	}
	return &RRFFusion{K: k}
}

// RRFContribution is 1 / (k + rank).
func RRFContribution(rank, k int) float64 {
	return 1.0 / float64(k+rank)
}

type rankedID struct {
	docID int
	score float64
}

// rankSource orders a source by score desc then id asc and keeps the first
// (best) occurrence of each document.
func rankSource(items []rankedID) []int {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].score != items[j].score {
			return items[i].score > items[j].score
		}
		return items[i].docID < items[j].docID
	})
	seen := make(map[int]bool, len(items))
	order := make([]int, 0, len(items))
	for _, it := range items {
		if seen[it.docID] {
			continue
		}
		seen[it.docID] = true
		order = append(order, it.docID)
	}
	return order
}

// Fuse merges both sets by summed reciprocal rank.
func (f *RRFFusion) Fuse(lexical []*store.BM25Result, semantic []*store.SemanticResult) []*FusedResult {
	merged := make(map[int]*FusedResult, len(lexical)+len(semantic))

	lexItems := make([]rankedID, len(lexical))
	terms := make(map[int][]string, len(lexical))
	for i, r := range lexical {
		lexItems[i] = rankedID{docID: r.DocID, score: r.Score}
		if _, ok := terms[r.DocID]; !ok {
			terms[r.DocID] = r.MatchedTerms
		}
	}
	for i, docID := range rankSource(lexItems) {
		r := getOrCreate(merged, docID)
		r.LexicalRank = i + 1
		r.LexicalRRF = RRFContribution(i+1, f.K)
		r.MatchedTerms = terms[docID]
	}

	semItems := make([]rankedID, len(semantic))
	for i, r := range semantic {
		semItems[i] = rankedID{docID: r.DocID, score: r.Score}
	}
	for i, docID := range rankSource(semItems) {
		r := getOrCreate(merged, docID)
		r.SemanticRank = i + 1
		r.SemanticRRF = RRFContribution(i+1, f.K)
	}

	for _, r := range merged {
		r.Score = r.LexicalRRF + r.SemanticRRF
	}
	return sortFused(merged)
}

func getOrCreate(m map[int]*FusedResult, docID int) *FusedResult {
	if r, ok := m[docID]; ok {
		return r
	}
	r := &FusedResult{DocID: docID}
	m[docID] = r
	return r
}

// sortFused orders by score desc, then DocID asc.
func sortFused(m map[int]*FusedResult) []*FusedResult {
	results := make([]*FusedResult, 0, len(m))
	for _, r := range m {
		results = append(results, r)
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].DocID < results[j].DocID
	})
	return results
}
