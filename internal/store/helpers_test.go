package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func bearCorpus() []Document {
	return []Document{
		{ID: 1, Title: "Bear Attack", Description: ""},
		{ID: 2, Title: "Paddington Bear", Description: ""},
		{ID: 3, Title: "Space Wars", Description: ""},
	}
}

func movieCorpus() []Document {
	return []Document{
		{ID: 10, Title: "The Grizzly", Description: "A grizzly bear terrorizes campers in a national park."},
		{ID: 11, Title: "Paddington", Description: "A young bear from Peru travels to London and finds a family."},
		{ID: 12, Title: "Star Voyage", Description: "Explorers travel through space to a distant star."},
		{ID: 13, Title: "Bear Country", Description: "Bears, bears and more bears roam the mountains."},
		{ID: 14, Title: "Quiet Harbor", Description: "A fishing town keeps an old secret."},
	}
}

func newTestIndex(t *testing.T, docs []Document) *InvertedIndex {
	t.Helper()
	tok, err := NewDefaultTokenizer()
	require.NoError(t, err)
	idx, err := NewInvertedIndex(tok, DefaultBM25Config())
	require.NoError(t, err)
	require.NoError(t, idx.Build(context.Background(), docs))
	return idx
}
