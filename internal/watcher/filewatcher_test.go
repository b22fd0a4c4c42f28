package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startWatcher(t *testing.T, opts Options, files ...string) *Watcher {
	t.Helper()
	w, err := New(opts)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- w.Start(ctx, files...) }()
	t.Cleanup(func() {
		cancel()
		_ = w.Stop()
		<-errCh
	})
	return w
}

func nextBatch(t *testing.T, w *Watcher) []FileEvent {
	t.Helper()
	select {
	case batch, ok := <-w.Events():
		require.True(t, ok, "events closed")
		return batch
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for change batch")
		return nil
	}
}

func TestWatcher_Polling_ReportsCorpusChange(t *testing.T) {
	// Given: a polling watcher on the corpus
	dir := t.TempDir()
	corpus := filepath.Join(dir, "movies.json")
	require.NoError(t, os.WriteFile(corpus, []byte("{}"), 0o644))
	w := startWatcher(t, Options{
		ForcePolling:   true,
		PollInterval:   20 * time.Millisecond,
		DebounceWindow: 20 * time.Millisecond,
	}, corpus)
	assert.Equal(t, "polling", w.Mode())

	// When: the corpus is rewritten with a different size
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, os.WriteFile(corpus, []byte(`{"movies":[]}`), 0o644))

	// Then
	batch := nextBatch(t, w)
	require.Len(t, batch, 1)
	assert.Equal(t, corpus, batch[0].Path)
	assert.Equal(t, OpModify, batch[0].Operation)
}

func TestWatcher_Fsnotify_IgnoresSiblings(t *testing.T) {
	dir := t.TempDir()
	corpus := filepath.Join(dir, "movies.json")
	require.NoError(t, os.WriteFile(corpus, []byte("{}"), 0o644))
	w := startWatcher(t, Options{DebounceWindow: 30 * time.Millisecond}, corpus)
	if w.Mode() != "fsnotify" {
		t.Skip("fsnotify unavailable")
	}
	time.Sleep(100 * time.Millisecond)

	// When: an unrelated file and then the corpus change
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(corpus, []byte(`{"movies":[]}`), 0o644))

	// Then: only the corpus is reported
	batch := nextBatch(t, w)
	for _, ev := range batch {
		assert.Equal(t, corpus, ev.Path)
	}
}

func TestWatcher_StartRequiresFiles(t *testing.T) {
	w, err := New(Options{ForcePolling: true})
	require.NoError(t, err)
	defer func() { _ = w.Stop() }()

	assert.Error(t, w.Start(context.Background()))
}

func TestWatcher_StopWithoutStart(t *testing.T) {
	w, err := New(DefaultOptions())
	require.NoError(t, err)

	require.NoError(t, w.Stop())
	require.NoError(t, w.Stop())

	_, ok := <-w.Events()
	assert.False(t, ok)
}
