package cmd

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	herrors "github.com/Aman-CERP/hoopla/internal/errors"
	"github.com/Aman-CERP/hoopla/internal/search"
)

func TestNormalize(t *testing.T) {
	out, err := runCmd(t, "normalize", "1", "3", "5")

	require.NoError(t, err)
	assert.Equal(t, "* 0.0000\n* 0.5000\n* 1.0000\n", out)
}

func TestNormalize_Negative(t *testing.T) {
	out, err := runCmd(t, "normalize", "--", "-2", "2")

	require.NoError(t, err)
	assert.Equal(t, "* 0.0000\n* 1.0000\n", out)
}

func TestNormalize_RejectsText(t *testing.T) {
	_, err := runCmd(t, "normalize", "high")

	assert.Error(t, err)
}

func TestNormalize_RejectsNonFinite(t *testing.T) {
	for _, arg := range []string{"NaN", "Inf", "+Inf", "-Inf"} {
		t.Run(arg, func(t *testing.T) {
			out, err := runCmd(t, "normalize", "--", "1", arg)

			require.Error(t, err)
			assert.Equal(t, herrors.ErrCodeInvalidInput, herrors.GetCode(err))
			assert.Empty(t, out)
		})
	}
}

func TestWeightedSearchCmd_AlphaFlagDefault(t *testing.T) {
	flag := newWeightedSearchCmd().Flags().Lookup("alpha")

	require.NotNil(t, flag)
	assert.Equal(t, strconv.FormatFloat(search.DefaultAlpha, 'g', -1, 64), flag.DefValue)
	assert.Contains(t, flag.Usage, "config search.alpha when unset")
}

func TestWeightedSearch_UnsetAlphaUsesConfig(t *testing.T) {
	// Given: built indexes and a config file setting search.alpha
	buildProject(t)
	cfgDir := filepath.Join(os.Getenv("XDG_CONFIG_HOME"), "hoopla")
	require.NoError(t, os.MkdirAll(cfgDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(cfgDir, "config.yaml"), []byte("search:\n  alpha: 0.8\n"), 0o644))

	// When: searching without --alpha
	out, err := runCmd(t, "weighted-search", "bear", "--format", "json")

	// Then: the configured alpha wins over the flag default
	require.NoError(t, err)
	var resp search.Response
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.InDelta(t, 0.8, resp.Alpha, 1e-9)
}

func TestWeightedSearch(t *testing.T) {
	// Given: built indexes
	buildProject(t)

	// When: searching with an explicit alpha
	out, err := runCmd(t, "weighted-search", "bear", "--alpha", "0.7", "--format", "json")

	// Then: the response carries the alpha and both source scores
	require.NoError(t, err)
	var resp search.Response
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, search.StrategyWeighted, resp.Strategy)
	assert.InDelta(t, 0.7, resp.Alpha, 1e-9)
	require.NotEmpty(t, resp.Results)
	assert.Contains(t, []string{"Paddington", "The Revenant"}, resp.Results[0].Title)
}

func TestRRFSearch(t *testing.T) {
	buildProject(t)

	out, err := runCmd(t, "rrf-search", "bear", "--k", "60", "--limit", "3")

	require.NoError(t, err)
	assert.Contains(t, out, "Paddington")
	assert.Contains(t, out, "The Revenant")
}

func TestRRFSearch_UnknownRerankMethod(t *testing.T) {
	buildProject(t)

	_, err := runCmd(t, "rrf-search", "bear", "--rerank-method", "vibes")

	assert.Error(t, err)
}
