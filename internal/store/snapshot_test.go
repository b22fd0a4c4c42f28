package store

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	herrors "github.com/Aman-CERP/hoopla/internal/errors"
)

func emptyIndex(t *testing.T) *InvertedIndex {
	t.Helper()
	tok, err := NewDefaultTokenizer()
	require.NoError(t, err)
	idx, err := NewInvertedIndex(tok, DefaultBM25Config())
	require.NoError(t, err)
	return idx
}

func TestSnapshot_RoundTripPreservesResults(t *testing.T) {
	// Given: a built index saved to disk
	path := filepath.Join(t.TempDir(), "cache", "index.bin")
	built := newTestIndex(t, movieCorpus())
	require.NoError(t, built.Save(path))

	// When: loading into a fresh index
	loaded := emptyIndex(t)
	require.NoError(t, loaded.Load(path))

	// Then: every query answers identically
	for _, q := range []string{"bear", "travel to space", "grizzly park", "dragon", ""} {
		want, err := built.BM25Search(q, 0)
		require.NoError(t, err)
		got, err := loaded.BM25Search(q, 0)
		require.NoError(t, err)
		assert.Equal(t, want, got, "query %q", q)
	}

	wantTF, _ := built.TermFrequency(13, "bear")
	gotTF, err := loaded.TermFrequency(13, "bear")
	require.NoError(t, err)
	assert.Equal(t, wantTF, gotTF)
	assert.NoFileExists(t, path+".tmp")
}

func TestSnapshot_BuildsAreByteIdentical(t *testing.T) {
	dir := t.TempDir()
	a, b := filepath.Join(dir, "a.bin"), filepath.Join(dir, "b.bin")

	require.NoError(t, newTestIndex(t, movieCorpus()).Save(a))
	require.NoError(t, newTestIndex(t, movieCorpus()).Save(b))

	da, err := os.ReadFile(a)
	require.NoError(t, err)
	db, err := os.ReadFile(b)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(da, db))
}

func TestSnapshot_SaveBeforeBuild(t *testing.T) {
	err := emptyIndex(t).Save(filepath.Join(t.TempDir(), "index.bin"))

	assert.True(t, errors.Is(err, ErrIndexUnavailable))
}

func TestSnapshot_LoadMissing(t *testing.T) {
	idx := emptyIndex(t)

	err := idx.Load(filepath.Join(t.TempDir(), "index.bin"))

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrIndexUnavailable))
	assert.Equal(t, herrors.ErrCodeIndexUnavailable, herrors.GetCode(err))
	assert.False(t, idx.Ready())
}

func TestSnapshot_LoadFailureKeepsPriorState(t *testing.T) {
	tests := []struct {
		name    string
		corrupt func(t *testing.T, data []byte) []byte
	}{
		{
			name: "garbage",
			corrupt: func(t *testing.T, _ []byte) []byte {
				return []byte("not a snapshot")
			},
		},
		{
			name: "truncated",
			corrupt: func(t *testing.T, data []byte) []byte {
				return data[:len(data)/2]
			},
		},
		{
			name: "checksum mismatch",
			corrupt: func(t *testing.T, data []byte) []byte {
				var env snapshotEnvelope
				require.NoError(t, cbor.Unmarshal(data, &env))
				env.Body[len(env.Body)-1] ^= 0xff
				out, err := snapshotEncMode.Marshal(env)
				require.NoError(t, err)
				return out
			},
		},
		{
			name: "future version",
			corrupt: func(t *testing.T, data []byte) []byte {
				var env snapshotEnvelope
				require.NoError(t, cbor.Unmarshal(data, &env))
				env.Version = snapshotVersion + 1
				out, err := snapshotEncMode.Marshal(env)
				require.NoError(t, err)
				return out
			},
		},
		{
			name: "wrong format",
			corrupt: func(t *testing.T, data []byte) []byte {
				var env snapshotEnvelope
				require.NoError(t, cbor.Unmarshal(data, &env))
				env.Format = "pickle"
				out, err := snapshotEncMode.Marshal(env)
				require.NoError(t, err)
				return out
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Given: a valid snapshot turned bad, and an index holding the bear corpus
			path := filepath.Join(t.TempDir(), "index.bin")
			require.NoError(t, newTestIndex(t, movieCorpus()).Save(path))
			data, err := os.ReadFile(path)
			require.NoError(t, err)
			require.NoError(t, os.WriteFile(path, tt.corrupt(t, data), 0o644))

			idx := newTestIndex(t, bearCorpus())

			// When: loading the bad snapshot
			err = idx.Load(path)

			// Then: the error is explicit and the bear corpus still answers
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrIndexUnavailable))
			assert.Equal(t, herrors.ErrCodeCorruptIndex, herrors.GetCode(err))

			ids, err := idx.DocumentsFor("paddington")
			require.NoError(t, err)
			assert.Equal(t, []int{2}, ids)
		})
	}
}

func TestStateFromPayload_RejectsInconsistentTables(t *testing.T) {
	good := func() snapshotPayload {
		bm, err := encodeSnapshotPostings(t, map[string][]uint32{"bear": {1}})
		require.NoError(t, err)
		return snapshotPayload{
			Documents: []snapshotDocument{
				{Doc: Document{ID: 1, Title: "Bear"}, Length: 1, TermFreqs: map[string]int{"bear": 1}},
			},
			Postings: bm,
		}
	}

	_, err := stateFromPayload(good())
	require.NoError(t, err)

	t.Run("posting references unknown doc", func(t *testing.T) {
		p := good()
		bm, err := encodeSnapshotPostings(t, map[string][]uint32{"bear": {1, 7}})
		require.NoError(t, err)
		p.Postings = bm
		_, err = stateFromPayload(p)
		assert.ErrorContains(t, err, "unknown document 7")
	})

	t.Run("length mismatch", func(t *testing.T) {
		p := good()
		p.Documents[0].Length = 3
		_, err := stateFromPayload(p)
		assert.ErrorContains(t, err, "length")
	})

	t.Run("term count without posting", func(t *testing.T) {
		p := good()
		p.Documents[0].TermFreqs["attack"] = 1
		p.Documents[0].Length = 2
		_, err := stateFromPayload(p)
		assert.ErrorContains(t, err, "postings hold")
	})
}

func encodeSnapshotPostings(t *testing.T, lists map[string][]uint32) (map[string][]byte, error) {
	t.Helper()
	out := make(map[string][]byte, len(lists))
	for term, ids := range lists {
		raw, err := roaring.BitmapOf(ids...).MarshalBinary()
		if err != nil {
			return nil, err
		}
		out[term] = raw
	}
	return out, nil
}

func TestSnapshot_LoadReplacesState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.bin")
	require.NoError(t, newTestIndex(t, movieCorpus()).Save(path))

	idx := newTestIndex(t, bearCorpus())
	require.NoError(t, idx.Load(path))

	stats, err := idx.Stats()
	require.NoError(t, err)
	assert.Equal(t, 5, stats.DocumentCount)

	require.NoError(t, idx.Build(context.Background(), bearCorpus()))
	stats, err = idx.Stats()
	require.NoError(t, err)
	assert.Equal(t, 3, stats.DocumentCount)
}
