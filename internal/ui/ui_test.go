package ui

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStage_Names(t *testing.T) {
	assert.Equal(t, "Embedding", StageEmbedding.String())
	assert.Equal(t, "BM25", StageLexical.Icon())
	assert.Equal(t, "Unknown", Stage(42).String())
	assert.Equal(t, "???", Stage(42).Icon())
}

func TestNewRenderer_NonTTYIsPlain(t *testing.T) {
	var buf bytes.Buffer

	r := NewRenderer(NewConfig(&buf))

	_, ok := r.(*PlainRenderer)
	assert.True(t, ok)
	assert.False(t, IsTTY(&buf))
}

func TestNewTUIRenderer_RequiresTTY(t *testing.T) {
	_, err := NewTUIRenderer(NewConfig(&bytes.Buffer{}))
	assert.Error(t, err)
}

func TestNewConfig_Options(t *testing.T) {
	cfg := NewConfig(nil, WithForcePlain(true), WithNoColor(true), WithCorpus("data/movies.json"))

	assert.True(t, cfg.ForcePlain)
	assert.True(t, cfg.NoColor)
	assert.Equal(t, "data/movies.json", cfg.Corpus)
}

func TestDetectCI(t *testing.T) {
	t.Setenv("CI", "true")
	assert.True(t, DetectCI())
}

// === PlainRenderer ===

func TestPlainRenderer_Lines(t *testing.T) {
	// Given
	var buf bytes.Buffer
	r := NewPlainRenderer(NewConfig(&buf))
	require.NoError(t, r.Start(context.Background()))

	// When
	r.UpdateProgress(ProgressEvent{Stage: StageLoading, Message: "data/movies.json"})
	r.UpdateProgress(ProgressEvent{Stage: StageEmbedding, Current: 32, Total: 64, Message: "chunks"})
	r.UpdateProgress(ProgressEvent{Stage: StageSaving})
	r.AddError(ErrorEvent{Err: errors.New("slow embedder"), IsWarn: true})
	r.Complete(CompletionStats{
		Documents: 3,
		Terms:     12,
		Chunks:    5,
		Duration:  1500 * time.Millisecond,
		Warnings:  1,
		Embedder:  EmbedderInfo{Provider: "static", Model: "static-hash", Dimensions: 384},
	})
	require.NoError(t, r.Stop())

	// Then
	out := buf.String()
	assert.Contains(t, out, "[LOAD] data/movies.json\n")
	assert.Contains(t, out, "[EMBED] 32/64 chunks\n")
	assert.NotContains(t, out, "[SAVE]")
	assert.Contains(t, out, "WARN: slow embedder\n")
	assert.Contains(t, out, "Indexed 3 movies (12 terms, 5 chunks) in 1.5s (0 errors, 1 warnings)\n")
	assert.Contains(t, out, "embedder: static (static-hash, 384 dims)")
}

// === ProgressTracker ===

func TestProgressTracker_Stats(t *testing.T) {
	// Given: a clock advanced by hand
	now := time.Unix(1000, 0)
	p := newTrackerAt(func() time.Time { return now })

	// When: 50 of 200 chunks embed in 5 seconds
	p.Apply(ProgressEvent{Stage: StageEmbedding, Total: 200})
	now = now.Add(5 * time.Second)
	p.Apply(ProgressEvent{Stage: StageEmbedding, Current: 50, Total: 200})
	p.AddError(ErrorEvent{Err: errors.New("x")})
	p.AddError(ErrorEvent{Err: errors.New("y"), IsWarn: true})

	// Then
	s := p.Stats()
	assert.Equal(t, StageEmbedding, s.Stage)
	assert.InDelta(t, 0.25, s.Progress, 1e-9)
	assert.InDelta(t, 10.0, s.Rate, 1e-9)
	assert.Equal(t, 15*time.Second, s.ETA)
	assert.Equal(t, 1, s.Errors)
	assert.Equal(t, 1, s.Warnings)
	assert.Equal(t, 5*time.Second, p.Elapsed())
}

func TestProgressTracker_ClampsAndResetsOnStageChange(t *testing.T) {
	now := time.Unix(0, 0)
	p := newTrackerAt(func() time.Time { return now })

	p.Apply(ProgressEvent{Stage: StageLexical, Current: 12, Total: 10})
	assert.Equal(t, 1.0, p.Stats().Progress)

	p.Apply(ProgressEvent{Stage: StageSaving})
	s := p.Stats()
	assert.Equal(t, 0.0, s.Progress)
	assert.Equal(t, time.Duration(0), s.ETA)
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "45s", formatDuration(45*time.Second))
	assert.Equal(t, "3m", formatDuration(3*time.Minute))
	assert.Equal(t, "3m 5s", formatDuration(185*time.Second))
	assert.Equal(t, "1h 2m", formatDuration(62*time.Minute))
}

// === buildModel ===

func TestBuildModel_View(t *testing.T) {
	tracker := NewProgressTracker()
	m := newBuildModel(tracker, "data/movies.json")
	m.styles = NoColorStyles()

	tracker.Apply(ProgressEvent{Stage: StageEmbedding, Current: 1, Total: 4, Message: "embedding chunks"})
	view := m.View()
	assert.Contains(t, view, "hoopla build-index • data/movies.json")
	assert.Contains(t, view, "● Loading")
	assert.Contains(t, view, "○ Saving")
	assert.Contains(t, view, "1 / 4")
	assert.Contains(t, view, "embedding chunks")

	_, cmd := m.Update(completeMsg(CompletionStats{Documents: 3, Terms: 9, Chunks: 4}))
	assert.NotNil(t, cmd)
	assert.Contains(t, m.View(), "Index built")
}
