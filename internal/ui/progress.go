package ui

import (
	"sync"
	"time"
)

// ProgressTracker keeps the current stage and rate. Safe for concurrent use.
type ProgressTracker struct {
	mu         sync.Mutex
	stage      Stage
	current    int
	total      int
	message    string
	started    time.Time
	stageStart time.Time
	errors     int
	warnings   int
	now        func() time.Time
}

// ProgressStats is a snapshot of a tracker.
type ProgressStats struct {
	Stage    Stage
	Current  int
	Total    int
	Message  string
	Progress float64
	Rate     float64 // items per second in the current stage
	ETA      time.Duration
	Errors   int
	Warnings int
}

// NewProgressTracker starts a tracker at StageLoading.
func NewProgressTracker() *ProgressTracker {
	return newTrackerAt(time.Now)
}

func newTrackerAt(now func() time.Time) *ProgressTracker {
	t := now()
	return &ProgressTracker{started: t, stageStart: t, now: now}
}

// Apply records an event, resetting counters when the stage changes.
func (p *ProgressTracker) Apply(ev ProgressEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if ev.Stage != p.stage {
		p.stage = ev.Stage
		p.stageStart = p.now()
	}
	p.current = ev.Current
	p.total = ev.Total
	if ev.Message != "" {
		p.message = ev.Message
	}
}

// AddError counts an error or warning.
func (p *ProgressTracker) AddError(ev ErrorEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if ev.IsWarn {
		p.warnings++
	} else {
		p.errors++
	}
}

// Elapsed is the time since the tracker started.
func (p *ProgressTracker) Elapsed() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.now().Sub(p.started)
}

// Stats returns a snapshot.
func (p *ProgressTracker) Stats() ProgressStats {
	p.mu.Lock()
	defer p.mu.Unlock()

	s := ProgressStats{
		Stage:    p.stage,
		Current:  p.current,
		Total:    p.total,
		Message:  p.message,
		Errors:   p.errors,
		Warnings: p.warnings,
	}
	if p.total > 0 {
		s.Progress = min(float64(p.current)/float64(p.total), 1)
	}
	if elapsed := p.now().Sub(p.stageStart).Seconds(); elapsed > 0 && p.current > 0 {
		s.Rate = float64(p.current) / elapsed
		if remaining := p.total - p.current; remaining > 0 {
			s.ETA = time.Duration(float64(remaining) / s.Rate * float64(time.Second))
		}
	}
	return s
}
