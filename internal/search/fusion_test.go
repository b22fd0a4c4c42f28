package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/hoopla/internal/store"
)

func lexHits(pairs ...any) []*store.BM25Result {
	var out []*store.BM25Result
	for i := 0; i < len(pairs); i += 2 {
		out = append(out, &store.BM25Result{DocID: pairs[i].(int), Score: pairs[i+1].(float64)})
	}
	return out
}

func semHits(pairs ...any) []*store.SemanticResult {
	var out []*store.SemanticResult
	for i := 0; i < len(pairs); i += 2 {
		out = append(out, &store.SemanticResult{DocID: pairs[i].(int), Score: pairs[i+1].(float64)})
	}
	return out
}

func fusedIDs(results []*FusedResult) []int {
	ids := make([]int, len(results))
	for i, r := range results {
		ids[i] = r.DocID
	}
	return ids
}

// === RRF ===

func TestRRFContribution_StrictlyDecreasingInRank(t *testing.T) {
	for _, k := range []int{1, 60, 100} {
		prev := RRFContribution(1, k)
		for rank := 2; rank <= 50; rank++ {
			cur := RRFContribution(rank, k)
			assert.Less(t, cur, prev, "k=%d rank=%d", k, rank)
			prev = cur
		}
	}
	assert.InDelta(t, 1.0/61.0, RRFContribution(1, 60), 1e-12)
}

func TestRRFFusion_SymmetricSourcesTie(t *testing.T) {
	// Given: lexical ranks [A,B], semantic ranks [B,A]
	const a, b = 1, 2
	lex := lexHits(a, 9.0, b, 3.0)
	sem := semHits(b, 0.9, a, 0.1)

	// When: fused with k=60
	got := NewRRFFusionWithK(60).Fuse(lex, sem)

	// Then: both accumulate 1/61 + 1/62 and tie; id breaks the tie
	require.Len(t, got, 2)
	want := 1.0/61.0 + 1.0/62.0
	assert.InDelta(t, want, got[0].Score, 1e-12)
	assert.InDelta(t, want, got[1].Score, 1e-12)
	assert.Equal(t, []int{a, b}, fusedIDs(got))
}

func TestRRFFusion_RanksAndMetadata(t *testing.T) {
	lex := lexHits(10, 5.0, 20, 4.0)
	sem := semHits(30, 0.8, 10, 0.7)

	got := NewRRFFusion().Fuse(lex, sem)

	require.Len(t, got, 3)
	assert.Equal(t, 10, got[0].DocID)
	assert.Equal(t, 1, got[0].LexicalRank)
	assert.Equal(t, 2, got[0].SemanticRank)

	meta := got[0].RRFMetadata()
	assert.Equal(t, 1.0, meta[MetaBM25Rank])
	assert.Equal(t, 2.0, meta[MetaSemanticRank])
	assert.InDelta(t, 1.0/61.0, meta[MetaBM25RRF], 1e-12)
	assert.InDelta(t, 1.0/62.0, meta[MetaSemanticRRF], 1e-12)

	// Doc 20 is lexical-only
	var doc20 *FusedResult
	for _, r := range got {
		if r.DocID == 20 {
			doc20 = r
		}
	}
	require.NotNil(t, doc20)
	assert.Equal(t, 0, doc20.SemanticRank)
	assert.Equal(t, 0.0, doc20.SemanticRRF)
}

func TestRRFFusion_RanksBySourceScoreNotInputOrder(t *testing.T) {
	// Input order deliberately unsorted
	lex := lexHits(2, 1.0, 1, 5.0)

	got := NewRRFFusionWithK(60).Fuse(lex, nil)

	assert.Equal(t, []int{1, 2}, fusedIDs(got))
	assert.Equal(t, 1, got[0].LexicalRank)
}

func TestRRFFusion_DuplicateInSourceKeepsBestRank(t *testing.T) {
	sem := semHits(7, 0.2, 7, 0.9, 8, 0.5)

	got := NewRRFFusionWithK(60).Fuse(nil, sem)

	require.Len(t, got, 2)
	assert.Equal(t, 7, got[0].DocID)
	assert.Equal(t, 1, got[0].SemanticRank)
	assert.Equal(t, 2, got[1].SemanticRank)
}

func TestRRFFusion_EmptyInputs(t *testing.T) {
	assert.Empty(t, NewRRFFusion().Fuse(nil, nil))

	onlySem := NewRRFFusion().Fuse(nil, semHits(3, 0.5))
	require.Len(t, onlySem, 1)
	assert.Equal(t, 3, onlySem[0].DocID)
}

func TestNewRRFFusionWithK_DefaultsNonPositive(t *testing.T) {
	assert.Equal(t, DefaultRRFConstant, NewRRFFusionWithK(0).K)
	assert.Equal(t, DefaultRRFConstant, NewRRFFusionWithK(-3).K)
	assert.Equal(t, 10, NewRRFFusionWithK(10).K)
}

// === Weighted ===

func TestWeightedFusion_AlphaOneMatchesLexicalOrder(t *testing.T) {
	lex := lexHits(1, 3.0, 2, 2.0, 3, 1.0)
	sem := semHits(3, 0.9, 2, 0.5, 1, 0.1)

	got := NewWeightedFusion(1).Fuse(lex, sem)

	assert.Equal(t, []int{1, 2, 3}, fusedIDs(got))
}

func TestWeightedFusion_AlphaZeroMatchesSemanticOrder(t *testing.T) {
	lex := lexHits(1, 3.0, 2, 2.0, 3, 1.0)
	sem := semHits(3, 0.9, 2, 0.5, 1, 0.1)

	got := NewWeightedFusion(0).Fuse(lex, sem)

	assert.Equal(t, []int{3, 2, 1}, fusedIDs(got))
}

func TestWeightedFusion_CombinesNormalizedScores(t *testing.T) {
	// Given: lexical {1:10, 2:0} and semantic {2:1.0, 3:0.5}
	lex := lexHits(1, 10.0, 2, 0.0)
	sem := semHits(2, 1.0, 3, 0.5)

	// When
	got := NewWeightedFusion(0.5).Fuse(lex, sem)

	// Then: normalized lex {1:1, 2:0}, sem {2:1, 3:0}
	require.Len(t, got, 3)
	byID := map[int]*FusedResult{}
	for _, r := range got {
		byID[r.DocID] = r
	}
	assert.InDelta(t, 0.5, byID[1].Score, 1e-12)
	assert.InDelta(t, 0.5, byID[2].Score, 1e-12)
	assert.InDelta(t, 0.0, byID[3].Score, 1e-12)

	// Ties broken by ascending id
	assert.Equal(t, []int{1, 2, 3}, fusedIDs(got))

	meta := byID[2].WeightedMetadata()
	assert.Equal(t, 0.0, meta[MetaBM25Score])
	assert.Equal(t, 1.0, meta[MetaSemanticScore])
}

func TestWeightedFusion_DuplicateKeepsMaxNormalizedScore(t *testing.T) {
	sem := semHits(5, 0.1, 5, 0.9, 6, 0.5)

	got := NewWeightedFusion(0).Fuse(nil, sem)

	require.Len(t, got, 2)
	assert.Equal(t, 5, got[0].DocID)
	assert.InDelta(t, 1.0, got[0].SemanticScore, 1e-12)
}

func TestWeightedFusion_OneSidedInput(t *testing.T) {
	got := NewWeightedFusion(0.5).Fuse(lexHits(4, 2.0, 5, 1.0), nil)

	assert.Equal(t, []int{4, 5}, fusedIDs(got))
	assert.InDelta(t, 0.5, got[0].Score, 1e-12)
	assert.InDelta(t, 0.0, got[1].Score, 1e-12)
}

func TestFusion_Deterministic(t *testing.T) {
	lex := lexHits(3, 1.0, 1, 1.0, 2, 1.0)
	sem := semHits(2, 0.4, 3, 0.4, 1, 0.4)

	first := fusedIDs(NewRRFFusion().Fuse(lex, sem))
	for range 10 {
		assert.Equal(t, first, fusedIDs(NewRRFFusion().Fuse(lex, sem)))
		assert.Equal(t, []int{1, 2, 3}, fusedIDs(NewWeightedFusion(0.5).Fuse(lex, sem)))
	}
}
