package watcher

import (
	"context"
	"os"
	"time"
)

type fileState struct {
	exists  bool
	modTime time.Time
	size    int64
}

func statFile(path string) fileState {
	info, err := os.Stat(path)
	if err != nil {
		return fileState{}
	}
	return fileState{exists: true, modTime: info.ModTime(), size: info.Size()}
}

// poller detects changes by comparing file metadata on every tick.
type poller struct {
	interval time.Duration
	paths    []string
	state    map[string]fileState
}

func newPoller(interval time.Duration, paths []string) *poller {
	p := &poller{
		interval: interval,
		paths:    paths,
		state:    make(map[string]fileState, len(paths)),
	}
	for _, path := range paths {
		p.state[path] = statFile(path)
	}
	return p
}

// run calls emit for every detected change until ctx or stop ends.
func (p *poller) run(ctx context.Context, stop <-chan struct{}, emit func(FileEvent)) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			for _, ev := range p.scan() {
				emit(ev)
			}
		}
	}
}

func (p *poller) scan() []FileEvent {
	var events []FileEvent
	now := time.Now()
	for _, path := range p.paths {
		prev, cur := p.state[path], statFile(path)
		p.state[path] = cur

		switch {
		case !prev.exists && cur.exists:
			events = append(events, FileEvent{Path: path, Operation: OpCreate, Timestamp: now})
		case prev.exists && !cur.exists:
			events = append(events, FileEvent{Path: path, Operation: OpDelete, Timestamp: now})
		case cur.exists && (prev.modTime != cur.modTime || prev.size != cur.size):
			events = append(events, FileEvent{Path: path, Operation: OpModify, Timestamp: now})
		}
	}
	return events
}
