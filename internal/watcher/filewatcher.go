package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher reports debounced changes to a set of files.
type Watcher struct {
	opts      Options
	fsWatcher *fsnotify.Watcher
	debouncer *Debouncer
	events    chan []FileEvent
	errors    chan error
	stopCh    chan struct{}
	done      chan struct{}

	mu      sync.Mutex
	stopped bool
	started bool
	paths   map[string]bool
}

// New creates a watcher. It falls back to polling when fsnotify cannot be
// initialised or opts.ForcePolling is set.
func New(opts Options) (*Watcher, error) {
	opts = opts.WithDefaults()
	w := &Watcher{
		opts:      opts,
		debouncer: NewDebouncer(opts.DebounceWindow),
		events:    make(chan []FileEvent, opts.EventBufferSize),
		errors:    make(chan error, 8),
		stopCh:    make(chan struct{}),
		done:      make(chan struct{}),
		paths:     make(map[string]bool),
	}
	if !opts.ForcePolling {
		fsw, err := fsnotify.NewWatcher()
		if err != nil {
			slog.Warn("fsnotify_unavailable", slog.String("error", err.Error()))
		} else {
			w.fsWatcher = fsw
		}
	}
	return w, nil
}

// Mode reports "fsnotify" or "polling".
func (w *Watcher) Mode() string {
	if w.fsWatcher != nil {
		return "fsnotify"
	}
	return "polling"
}

// Start watches files until ctx is cancelled or Stop is called. It blocks.
func (w *Watcher) Start(ctx context.Context, files ...string) error {
	if len(files) == 0 {
		return fmt.Errorf("watch: no files given")
	}

	w.mu.Lock()
	if w.stopped || w.started {
		w.mu.Unlock()
		return fmt.Errorf("watch: watcher already used")
	}
	w.started = true
	defer close(w.done)
	abs := make([]string, 0, len(files))
	for _, f := range files {
		p, err := filepath.Abs(f)
		if err != nil {
			w.mu.Unlock()
			return fmt.Errorf("resolve %s: %w", f, err)
		}
		w.paths[p] = true
		abs = append(abs, p)
	}
	w.mu.Unlock()

	go w.forward()

	if w.fsWatcher == nil {
		newPoller(w.opts.PollInterval, abs).run(ctx, w.stopCh, w.debouncer.Add)
		return ctx.Err()
	}

	dirs := make(map[string]bool)
	for _, p := range abs {
		dir := filepath.Dir(p)
		if dirs[dir] {
			continue
		}
		dirs[dir] = true
		if err := w.fsWatcher.Add(dir); err != nil {
			return fmt.Errorf("watch %s: %w", dir, err)
		}
	}
	slog.Debug("watcher_started", slog.Int("files", len(abs)), slog.String("mode", w.Mode()))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stopCh:
			return nil
		case ev, ok := <-w.fsWatcher.Events:
			if !ok {
				return nil
			}
			w.handle(ev)
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return nil
			}
			w.emitError(err)
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	path := filepath.Clean(ev.Name)
	if !w.paths[path] {
		return
	}

	var op Operation
	switch {
	case ev.Has(fsnotify.Create):
		op = OpCreate
	case ev.Has(fsnotify.Write):
		op = OpModify
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		op = OpDelete
	default:
		return
	}
	w.debouncer.Add(FileEvent{Path: path, Operation: op, Timestamp: time.Now()})
}

func (w *Watcher) forward() {
	for batch := range w.debouncer.Output() {
		if len(batch) == 0 {
			continue
		}
		w.mu.Lock()
		if w.stopped {
			w.mu.Unlock()
			return
		}
		select {
		case w.events <- batch:
		default:
			slog.Warn("watch_batch_dropped", slog.Int("batch_size", len(batch)))
		}
		w.mu.Unlock()
	}
}

func (w *Watcher) emitError(err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}
	select {
	case w.errors <- err:
	default:
	}
}

// Stop releases resources and closes Events and Errors. Safe to call twice.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return nil
	}
	w.stopped = true
	close(w.stopCh)
	started := w.started
	w.mu.Unlock()

	if started {
		<-w.done
	}
	w.debouncer.Stop()

	var err error
	if w.fsWatcher != nil {
		err = w.fsWatcher.Close()
	}

	w.mu.Lock()
	close(w.events)
	close(w.errors)
	w.mu.Unlock()
	return err
}

// Events returns debounced change batches.
func (w *Watcher) Events() <-chan []FileEvent {
	return w.events
}

// Errors returns non-fatal watcher errors.
func (w *Watcher) Errors() <-chan error {
	return w.errors
}
