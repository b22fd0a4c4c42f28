package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const testCorpus = `{"movies": [
  {"id": 1, "title": "Paddington", "description": "A polite bear from Peru moves to London. The bear loves marmalade."},
  {"id": 2, "title": "The Revenant", "description": "A frontiersman survives a grizzly bear attack in the wilderness."},
  {"id": 3, "title": "Interstellar", "description": "Astronauts travel through a wormhole to find a new home for humanity."}
]}`

// setupProject points hoopla at a temp corpus and cache with the static
// embedder and returns the cache directory.
func setupProject(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	oldDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(oldDir) })

	corpus := filepath.Join(dir, "movies.json")
	require.NoError(t, os.WriteFile(corpus, []byte(testCorpus), 0o644))
	cache := filepath.Join(dir, "cache")

	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOOPLA_CORPUS", corpus)
	t.Setenv("HOOPLA_CACHE_DIR", cache)
	t.Setenv("HOOPLA_EMBEDDER", "static")
	t.Setenv("HOOPLA_STOP_WORDS", "")
	t.Setenv("HOOPLA_LLM_API_KEY", "")
	return cache
}

// runCmd executes the root command with args and returns stdout.
func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	out := new(bytes.Buffer)
	cmd.SetOut(out)
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

// buildProject sets up a project and builds both indexes.
func buildProject(t *testing.T) string {
	t.Helper()
	cache := setupProject(t)
	_, err := runCmd(t, "build-index", "--no-tui")
	require.NoError(t, err)
	return cache
}
