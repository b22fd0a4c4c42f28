package embed

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticEmbedder_Deterministic(t *testing.T) {
	e := NewStaticEmbedder(0)
	ctx := context.Background()

	a, err := e.Embed(ctx, "A bear attacks campers")
	require.NoError(t, err)
	b, err := e.Embed(ctx, "A bear attacks campers")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Len(t, a, StaticDimensions)
	assert.InDelta(t, 1.0, vectorMagnitude(a), 1e-5)
}

func TestStaticEmbedder_SimilarTextsScoreHigher(t *testing.T) {
	// Given a query and two candidates sharing different amounts of vocabulary
	e := NewStaticEmbedder(256)
	ctx := context.Background()

	query, err := e.Embed(ctx, "bear attack in the woods")
	require.NoError(t, err)
	near, err := e.Embed(ctx, "a grizzly bear attack deep in the woods")
	require.NoError(t, err)
	far, err := e.Embed(ctx, "spaceships battle over a distant planet")
	require.NoError(t, err)

	// Then the overlapping text is closer
	assert.Greater(t, cosineSimilarity(query, near), cosineSimilarity(query, far))
}

func TestStaticEmbedder_EmptyText(t *testing.T) {
	e := NewStaticEmbedder(8)

	_, err := e.Embed(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptyText)

	_, err = e.EmbedBatch(context.Background(), []string{"ok", ""})
	assert.ErrorIs(t, err, ErrEmptyText)
}

func TestStaticEmbedder_Batch(t *testing.T) {
	e := NewStaticEmbedder(16)
	ctx := context.Background()

	vecs, err := e.EmbedBatch(ctx, []string{"one", "two"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)

	single, err := e.Embed(ctx, "two")
	require.NoError(t, err)
	assert.Equal(t, single, vecs[1])

	empty, err := e.EmbedBatch(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestStaticEmbedder_Close(t *testing.T) {
	e := NewStaticEmbedder(8)
	assert.True(t, e.Available(context.Background()))
	assert.Equal(t, "static-8", e.ModelName())

	require.NoError(t, e.Close())
	assert.False(t, e.Available(context.Background()))

	_, err := e.Embed(context.Background(), "x")
	assert.ErrorIs(t, err, ErrClosed)
}

func TestExtractNgrams(t *testing.T) {
	assert.Equal(t, []string{"bea", "ear"}, extractNgrams([]rune("bear"), 3))
	assert.Empty(t, extractNgrams([]rune("be"), 3))
}
